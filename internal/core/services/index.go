package services

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/testforge/internal/core/domain"
	"github.com/custodia-labs/testforge/internal/core/ports/driven"
	"github.com/custodia-labs/testforge/internal/core/ports/driving"
	"github.com/custodia-labs/testforge/internal/logger"
)

// DefaultSnapshotRetention is how many persisted snapshots are kept.
const DefaultSnapshotRetention = 3

// Verify interface compliance.
var _ driving.IndexService = (*IndexService)(nil)

// IndexService owns the snapshot lifecycle. At most one build runs at a
// time. The active snapshot is swapped atomically only after a build
// succeeds and, when a store is configured, after it is persisted.
type IndexService struct {
	normalisers driven.NormaliserRegistry
	pipeline    driven.PostProcessorPipeline
	indexer     *Indexer
	store       driven.SnapshotStore
	maxDocSize  int
	retention   int

	building   atomic.Bool
	active     atomic.Pointer[domain.IndexSnapshot]
	superseded atomic.Int64
}

// NewIndexService creates an index service. store may be nil, in which
// case snapshots live for the lifetime of the process.
func NewIndexService(
	normalisers driven.NormaliserRegistry,
	pipeline driven.PostProcessorPipeline,
	indexer *Indexer,
	store driven.SnapshotStore,
	chunking domain.ChunkingSettings,
) *IndexService {
	return &IndexService{
		normalisers: normalisers,
		pipeline:    pipeline,
		indexer:     indexer,
		store:       store,
		maxDocSize:  chunking.MaxDocumentSize,
		retention:   DefaultSnapshotRetention,
	}
}

// fileResult is the outcome of preparing one uploaded file.
type fileResult struct {
	chunks  []domain.Chunk
	warning *domain.Warning
}

// Build normalises, chunks and indexes files, then activates the snapshot.
// Files that are empty, unsupported or too large are skipped with a
// warning; the build fails only when nothing indexable remains.
func (s *IndexService) Build(ctx context.Context, files []domain.RawDocument) (*domain.BuildReport, error) {
	if !s.building.CompareAndSwap(false, true) {
		return nil, domain.ErrBuildInProgress
	}
	defer s.building.Store(false)

	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files provided", domain.ErrIndexBuild)
	}

	logger.Section("Document Preparation")
	results := make([]fileResult, len(files))
	seen := make(map[string]bool, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range files {
		raw := files[i]
		if seen[raw.URI] {
			results[i].warning = skipped(raw.URI, "duplicate file name")
			continue
		}
		seen[raw.URI] = true

		g.Go(func() error {
			res, err := s.prepare(gctx, &raw)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIndexBuild, err)
	}

	report := &domain.BuildReport{}
	var chunks []domain.Chunk
	for _, r := range results {
		if r.warning != nil {
			report.Warnings = append(report.Warnings, *r.warning)
			logger.Warn("Skipped %s: %s", r.warning.Ref, r.warning.Message)
			continue
		}
		chunks = append(chunks, r.chunks...)
		report.Documents++
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: none of the %d files produced indexable text", domain.ErrIndexBuild, len(files))
	}

	snapshot, err := s.indexer.Build(ctx, chunks)
	if err != nil {
		return nil, err
	}
	if err := s.activate(ctx, snapshot); err != nil {
		return nil, err
	}

	report.Status = "ok"
	report.SnapshotID = snapshot.ID()
	report.ChunksIndexed = snapshot.Len()
	return report, nil
}

// prepare turns one file into chunks, or a skip warning. Only context
// cancellation is returned as an error.
func (s *IndexService) prepare(ctx context.Context, raw *domain.RawDocument) (fileResult, error) {
	if err := ctx.Err(); err != nil {
		return fileResult{}, err
	}
	if raw.IsEmpty() {
		return fileResult{warning: skipped(raw.URI, "file is empty")}, nil
	}

	result, err := s.normalisers.Normalise(ctx, raw)
	if err != nil {
		if ctx.Err() != nil {
			return fileResult{}, ctx.Err()
		}
		if errors.Is(err, domain.ErrUnsupportedType) {
			return fileResult{warning: skipped(raw.URI, "unsupported file type")}, nil
		}
		return fileResult{warning: skipped(raw.URI, err.Error())}, nil
	}

	doc := result.Document
	size := utf8.RuneCountInString(doc.Content)
	if size == 0 {
		return fileResult{warning: skipped(raw.URI, "no text after normalisation")}, nil
	}
	if s.maxDocSize > 0 && size > s.maxDocSize {
		return fileResult{warning: skipped(raw.URI,
			fmt.Sprintf("document is %d characters, maximum is %d", size, s.maxDocSize))}, nil
	}

	chunks, err := s.pipeline.Process(ctx, &doc)
	if err != nil {
		if ctx.Err() != nil {
			return fileResult{}, ctx.Err()
		}
		return fileResult{warning: skipped(raw.URI, err.Error())}, nil
	}
	if len(chunks) == 0 {
		return fileResult{warning: skipped(raw.URI, "no chunks produced")}, nil
	}

	logger.Debug("Prepared %s: %d characters, %d chunks", raw.URI, size, len(chunks))
	return fileResult{chunks: chunks}, nil
}

// BuildFromChunks indexes an already-chunked corpus and activates it.
func (s *IndexService) BuildFromChunks(ctx context.Context, chunks []domain.Chunk) (*domain.BuildReport, error) {
	if !s.building.CompareAndSwap(false, true) {
		return nil, domain.ErrBuildInProgress
	}
	defer s.building.Store(false)

	snapshot, err := s.indexer.Build(ctx, chunks)
	if err != nil {
		return nil, err
	}
	if err := s.activate(ctx, snapshot); err != nil {
		return nil, err
	}

	return &domain.BuildReport{
		Status:        "ok",
		SnapshotID:    snapshot.ID(),
		ChunksIndexed: snapshot.Len(),
		Documents:     len(snapshot.Sources()),
	}, nil
}

// activate persists the snapshot, if a store is configured, then publishes it.
func (s *IndexService) activate(ctx context.Context, snapshot *domain.IndexSnapshot) error {
	if s.store != nil {
		if err := s.store.Save(ctx, snapshot); err != nil {
			return fmt.Errorf("%w: persist snapshot: %w", domain.ErrIndexBuild, err)
		}
		if err := s.store.Prune(ctx, s.retention); err != nil {
			logger.Warn("Failed to prune old snapshots: %v", err)
		}
	}

	if prev := s.active.Swap(snapshot); prev != nil {
		s.superseded.Add(1)
		logger.Debug("Snapshot %s superseded by %s", prev.ID(), snapshot.ID())
	}
	logger.Info("Activated snapshot %s (%d chunks)", snapshot.ID(), snapshot.Len())
	return nil
}

// Active returns the active snapshot.
func (s *IndexService) Active() (*domain.IndexSnapshot, error) {
	snapshot := s.active.Load()
	if snapshot == nil {
		return nil, domain.ErrIndexNotBuilt
	}
	return snapshot, nil
}

// Restore activates the latest persisted snapshot when none is active.
func (s *IndexService) Restore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	snapshot, err := s.store.Latest(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}
	if s.active.CompareAndSwap(nil, snapshot) {
		logger.Info("Restored snapshot %s (%d chunks)", snapshot.ID(), snapshot.Len())
	}
	return nil
}

// Status describes the lifecycle.
func (s *IndexService) Status() domain.IndexStatus {
	status := domain.IndexStatus{
		Building:   s.building.Load(),
		Superseded: int(s.superseded.Load()),
	}
	snapshot := s.active.Load()
	if snapshot == nil {
		if status.Building {
			status.State = domain.SnapshotBuilding
		}
		return status
	}
	status.SnapshotID = snapshot.ID()
	status.State = domain.SnapshotActive
	status.ChunkCount = snapshot.Len()
	status.Sources = snapshot.Sources()
	status.BuiltAt = snapshot.Meta().CreatedAt
	return status
}

func skipped(uri, reason string) *domain.Warning {
	return &domain.Warning{Kind: domain.WarningSkippedDocument, Ref: uri, Message: reason}
}
