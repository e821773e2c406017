package driven

import (
	"context"

	"github.com/custodia-labs/testforge/internal/core/domain"
)

// SnapshotStore persists index snapshots so an index built by one process
// can be restored by the next. Persistence is all-or-nothing per snapshot.
type SnapshotStore interface {
	// Save persists a snapshot and marks it as the latest.
	Save(ctx context.Context, snapshot *domain.IndexSnapshot) error

	// Latest restores the most recently saved snapshot.
	// Returns domain.ErrNotFound when nothing has been saved.
	Latest(ctx context.Context) (*domain.IndexSnapshot, error)

	// Prune deletes all snapshots except the latest keep.
	Prune(ctx context.Context, keep int) error
}
