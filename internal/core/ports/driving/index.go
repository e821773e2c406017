package driving

import (
	"context"

	"github.com/custodia-labs/testforge/internal/core/domain"
)

// IndexService owns the index snapshot lifecycle: build, activate, supersede.
type IndexService interface {
	// Build normalises and chunks files, indexes the chunks and activates the
	// resulting snapshot. Only one build runs at a time; a concurrent request
	// fails with domain.ErrBuildInProgress. On failure the previously active
	// snapshot stays active.
	Build(ctx context.Context, files []domain.RawDocument) (*domain.BuildReport, error)

	// BuildFromChunks indexes an already-chunked corpus.
	BuildFromChunks(ctx context.Context, chunks []domain.Chunk) (*domain.BuildReport, error)

	// Active returns the active snapshot or domain.ErrIndexNotBuilt.
	Active() (*domain.IndexSnapshot, error)

	// Restore activates the latest persisted snapshot, if any.
	Restore(ctx context.Context) error

	// Status describes the current lifecycle state.
	Status() domain.IndexStatus
}
