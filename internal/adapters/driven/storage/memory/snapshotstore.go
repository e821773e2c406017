package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/testforge/internal/core/domain"
	"github.com/custodia-labs/testforge/internal/core/ports/driven"
)

var _ driven.SnapshotStore = (*SnapshotStore)(nil)

// SnapshotStore keeps snapshots in save order. Snapshots are immutable, so
// they are stored and returned by reference.
type SnapshotStore struct {
	mu        sync.RWMutex
	snapshots []*domain.IndexSnapshot
}

// NewSnapshotStore creates an empty snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{}
}

// Save appends a snapshot. IDs must be unique.
func (s *SnapshotStore) Save(_ context.Context, snapshot *domain.IndexSnapshot) error {
	if snapshot == nil || snapshot.Len() == 0 {
		return fmt.Errorf("%w: empty snapshot", domain.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.snapshots {
		if existing.ID() == snapshot.ID() {
			return fmt.Errorf("snapshot %s already saved", snapshot.ID())
		}
	}
	s.snapshots = append(s.snapshots, snapshot)
	return nil
}

// Latest returns the most recently saved snapshot or domain.ErrNotFound.
func (s *SnapshotStore) Latest(_ context.Context) (*domain.IndexSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.snapshots) == 0 {
		return nil, domain.ErrNotFound
	}
	return s.snapshots[len(s.snapshots)-1], nil
}

// Prune keeps the keep most recent snapshots, at least one.
func (s *SnapshotStore) Prune(_ context.Context, keep int) error {
	if keep < 1 {
		keep = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.snapshots); n > keep {
		s.snapshots = append([]*domain.IndexSnapshot(nil), s.snapshots[n-keep:]...)
	}
	return nil
}

// Count returns the number of stored snapshots.
func (s *SnapshotStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshots)
}
