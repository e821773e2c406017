package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/custodia-labs/testforge/internal/core/domain"
	"github.com/custodia-labs/testforge/internal/core/ports/driving"
	"github.com/custodia-labs/testforge/internal/logger"
)

// DefaultRebuildDelay is how long the rebuilder waits for changes to settle.
const DefaultRebuildDelay = 500 * time.Millisecond

// FileLoader reads the current corpus for a rebuild.
type FileLoader func(ctx context.Context) ([]domain.RawDocument, error)

// RebuildResult records the outcome of one background rebuild.
type RebuildResult struct {
	StartedAt time.Time
	EndedAt   time.Time
	Report    *domain.BuildReport
	Err       error
}

// Rebuilder rebuilds the index in the background whenever it is
// triggered. Triggers arriving within the delay are coalesced into one
// build, and a build rejected because another is running is retried.
type Rebuilder struct {
	index  driving.IndexService
	load   FileLoader
	delay  time.Duration
	notify func(RebuildResult)

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	trigger chan struct{}
	wg      sync.WaitGroup
}

// NewRebuilder creates a rebuilder. notify, if non-nil, receives every result.
func NewRebuilder(index driving.IndexService, load FileLoader, delay time.Duration, notify func(RebuildResult)) *Rebuilder {
	if delay <= 0 {
		delay = DefaultRebuildDelay
	}
	return &Rebuilder{
		index:   index,
		load:    load,
		delay:   delay,
		notify:  notify,
		trigger: make(chan struct{}, 1),
	}
}

// Trigger requests a rebuild. It never blocks.
func (r *Rebuilder) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Start runs the rebuild loop. It blocks until Stop is called or ctx ends.
func (r *Rebuilder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil // Already running
	}
	r.running = true
	r.stopCh = make(chan struct{})
	stopCh := r.stopCh
	r.wg.Add(1)
	r.mu.Unlock()
	defer r.wg.Done()

	timer := time.NewTimer(r.delay)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-r.trigger:
			timer.Reset(r.delay)
		case <-timer.C:
			if r.rebuild(ctx) {
				timer.Reset(r.delay)
			}
		}
	}
}

// Stop shuts the loop down and waits for an in-flight rebuild.
func (r *Rebuilder) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.stopCh)
	r.mu.Unlock()

	r.wg.Wait()
}

// rebuild runs one build and reports whether it should be retried.
func (r *Rebuilder) rebuild(ctx context.Context) bool {
	result := RebuildResult{StartedAt: time.Now()}

	files, err := r.load(ctx)
	if err == nil {
		result.Report, err = r.index.Build(ctx, files)
	}
	result.EndedAt = time.Now()
	result.Err = err

	if errors.Is(err, domain.ErrBuildInProgress) {
		logger.Debug("Rebuild deferred: another build is running")
		return true
	}
	if err != nil {
		logger.Warn("Rebuild failed: %v", err)
	} else {
		logger.Info("Rebuilt index: snapshot %s, %d chunks", result.Report.SnapshotID, result.Report.ChunksIndexed)
	}
	if r.notify != nil {
		r.notify(result)
	}
	return false
}
