package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/testforge/internal/core/domain"
)

// stubIndex is a driving.IndexService whose Build results are scripted.
type stubIndex struct {
	mu     sync.Mutex
	errs   []error
	builds int
}

func (s *stubIndex) Build(_ context.Context, files []domain.RawDocument) (*domain.BuildReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.builds++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &domain.BuildReport{SnapshotID: "snap-rebuilt", Documents: len(files)}, nil
}

func (s *stubIndex) BuildFromChunks(context.Context, []domain.Chunk) (*domain.BuildReport, error) {
	return nil, errors.New("not used")
}

func (s *stubIndex) Active() (*domain.IndexSnapshot, error) { return nil, domain.ErrIndexNotBuilt }

func (s *stubIndex) Restore(context.Context) error { return nil }

func (s *stubIndex) Status() domain.IndexStatus { return domain.IndexStatus{} }

func (s *stubIndex) buildCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.builds
}

func staticLoader(files ...domain.RawDocument) FileLoader {
	return func(context.Context) ([]domain.RawDocument, error) { return files, nil }
}

// runRebuilder starts r and returns a func that stops it and waits for Start to return.
func runRebuilder(t *testing.T, r *Rebuilder) func() error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- r.Start(context.Background()) }()
	return func() error {
		r.Stop()
		select {
		case err := <-done:
			return err
		case <-time.After(2 * time.Second):
			t.Fatal("rebuilder did not stop")
			return nil
		}
	}
}

func TestRebuilder_CoalescesTriggers(t *testing.T) {
	index := &stubIndex{}
	results := make(chan RebuildResult, 4)
	r := NewRebuilder(index, staticLoader(textFile("a.md", "alpha")), 50*time.Millisecond,
		func(res RebuildResult) { results <- res })
	stop := runRebuilder(t, r)

	for i := 0; i < 5; i++ {
		r.Trigger()
	}

	select {
	case res := <-results:
		require.NoError(t, res.Err)
		assert.Equal(t, "snap-rebuilt", res.Report.SnapshotID)
		assert.Equal(t, 1, res.Report.Documents)
		assert.False(t, res.EndedAt.Before(res.StartedAt))
	case <-time.After(2 * time.Second):
		t.Fatal("no rebuild")
	}

	time.Sleep(150 * time.Millisecond)
	require.NoError(t, stop())
	assert.Equal(t, 1, index.buildCount())
}

func TestRebuilder_RetriesWhileBuildInProgress(t *testing.T) {
	index := &stubIndex{errs: []error{domain.ErrBuildInProgress, domain.ErrBuildInProgress, nil}}
	results := make(chan RebuildResult, 4)
	r := NewRebuilder(index, staticLoader(), 20*time.Millisecond, func(res RebuildResult) { results <- res })
	stop := runRebuilder(t, r)

	r.Trigger()

	select {
	case res := <-results:
		require.NoError(t, res.Err)
	case <-time.After(2 * time.Second):
		t.Fatal("no rebuild")
	}
	require.NoError(t, stop())
	assert.Equal(t, 3, index.buildCount())
	assert.Empty(t, results)
}

func TestRebuilder_ReportsFailures(t *testing.T) {
	t.Run("build error", func(t *testing.T) {
		index := &stubIndex{errs: []error{domain.ErrIndexBuild}}
		results := make(chan RebuildResult, 1)
		r := NewRebuilder(index, staticLoader(), 10*time.Millisecond, func(res RebuildResult) { results <- res })
		stop := runRebuilder(t, r)

		r.Trigger()

		select {
		case res := <-results:
			assert.ErrorIs(t, res.Err, domain.ErrIndexBuild)
			assert.Nil(t, res.Report)
		case <-time.After(2 * time.Second):
			t.Fatal("no result")
		}
		require.NoError(t, stop())
	})

	t.Run("loader error", func(t *testing.T) {
		index := &stubIndex{}
		results := make(chan RebuildResult, 1)
		load := func(context.Context) ([]domain.RawDocument, error) { return nil, errors.New("disk gone") }
		r := NewRebuilder(index, load, 10*time.Millisecond, func(res RebuildResult) { results <- res })
		stop := runRebuilder(t, r)

		r.Trigger()

		select {
		case res := <-results:
			assert.ErrorContains(t, res.Err, "disk gone")
		case <-time.After(2 * time.Second):
			t.Fatal("no result")
		}
		require.NoError(t, stop())
		assert.Zero(t, index.buildCount())
	})
}

func TestRebuilder_StopsOnContextCancel(t *testing.T) {
	r := NewRebuilder(&stubIndex{}, staticLoader(), time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Start(ctx) }()

	r.Trigger()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("rebuilder ignored cancellation")
	}
	r.Stop()
}

func TestRebuilder_StopWithoutStart(t *testing.T) {
	r := NewRebuilder(&stubIndex{}, staticLoader(), 0, nil)

	r.Stop()
	r.Trigger()

	assert.Equal(t, DefaultRebuildDelay, r.delay)
}
