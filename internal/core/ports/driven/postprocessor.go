package driven

import (
	"context"

	"github.com/custodia-labs/testforge/internal/core/domain"
)

// PostProcessor is one stage between a normalised document and its chunks.
type PostProcessor interface {
	Name() string

	// Process receives the chunks produced so far, nil for the first
	// chunking stage. Text-rewriting stages edit doc.Content in place and
	// pass chunks through.
	Process(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error)
}

// PostProcessorPipeline turns a document into the chunks that get indexed.
type PostProcessorPipeline interface {
	Process(ctx context.Context, doc *domain.Document) ([]domain.Chunk, error)
}
