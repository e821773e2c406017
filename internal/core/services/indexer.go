package services

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/testforge/internal/core/domain"
	"github.com/custodia-labs/testforge/internal/core/ports/driven"
	"github.com/custodia-labs/testforge/internal/logger"
)

const (
	// embedBatchSize is the number of chunk texts sent per EmbedBatch call.
	embedBatchSize = 32

	// embedConcurrency bounds in-flight embedding batches.
	embedConcurrency = 4
)

// Indexer builds immutable index snapshots from chunks.
// It holds no state between builds.
type Indexer struct {
	embedder     driven.EmbeddingService
	maxChunkSize int
}

// NewIndexer creates an indexer. embedder may be nil, in which case
// snapshots are sparse-only. maxChunkSize bounds chunk text length in
// characters; zero disables the check.
func NewIndexer(embedder driven.EmbeddingService, maxChunkSize int) *Indexer {
	return &Indexer{
		embedder:     embedder,
		maxChunkSize: maxChunkSize,
	}
}

// Build indexes chunks into a new snapshot. It is all-or-nothing: any
// invalid chunk or embedding failure discards the build and returns an
// error wrapping domain.ErrIndexBuild.
func (ix *Indexer) Build(ctx context.Context, chunks []domain.Chunk) (*domain.IndexSnapshot, error) {
	logger.Section("Index Build")

	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no chunks to index", domain.ErrIndexBuild)
	}
	for _, c := range chunks {
		if ix.maxChunkSize > 0 && utf8.RuneCountInString(c.Text) > ix.maxChunkSize {
			return nil, fmt.Errorf("%w: chunk %s is %d characters, maximum is %d",
				domain.ErrIndexBuild, c.ID, utf8.RuneCountInString(c.Text), ix.maxChunkSize)
		}
	}

	meta := domain.SnapshotMeta{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
	}

	var vectors [][]float32
	if ix.embedder != nil {
		var err error
		vectors, err = ix.embed(ctx, chunks)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrIndexBuild, err)
		}
		meta.EmbeddingModel = ix.embedder.ModelName()
	}

	snapshot, err := domain.NewIndexSnapshot(meta, chunks, vectors)
	if err != nil {
		return nil, err
	}

	logger.Info("Indexed %d chunks from %d sources (dense=%t)",
		snapshot.Len(), len(snapshot.Sources()), snapshot.HasVectors())
	return snapshot, nil
}

// embed computes one vector per chunk, in batches run concurrently.
// Each batch writes only its own slice range.
func (ix *Indexer) embed(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)

	for start := 0; start < len(chunks); start += embedBatchSize {
		end := min(start+embedBatchSize, len(chunks))

		g.Go(func() error {
			texts := make([]string, end-start)
			for i := start; i < end; i++ {
				texts[i-start] = chunks[i].Text
			}

			batch, err := ix.embedder.EmbedBatch(gctx, texts)
			if err != nil {
				return fmt.Errorf("embed chunks %d-%d: %w", start, end-1, err)
			}
			if len(batch) != len(texts) {
				return fmt.Errorf("embed chunks %d-%d: got %d vectors for %d texts",
					start, end-1, len(batch), len(texts))
			}
			copy(vectors[start:end], batch)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	logger.Debug("Embedded %d chunks with %s", len(chunks), ix.embedder.ModelName())
	return vectors, nil
}
