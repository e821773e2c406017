package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/testforge/internal/core/domain"
)

func defaultRetrievalOptions() domain.RetrievalOptions {
	return domain.RetrievalOptions{TopK: 5, TokenBudget: 6000, SparseWeight: 0.5, DenseWeight: 0.5}
}

func ticketCorpus() []domain.Chunk {
	return []domain.Chunk{
		chunk("booking.md", 1, "Max tickets per booking = 6 for GEN"),
		chunk("booking.md", 2, "VIP seats include lounge access and a welcome drink"),
		chunk("refunds.md", 1, "Refunds are issued to the original payment method within 5 business days"),
		chunk("promo.md", 1, "Promo code SAVE10 gives 10% off orders over $50"),
	}
}

func TestRetriever_Retrieve_FindsRelevantChunk(t *testing.T) {
	snapshot := mustSnapshot(t, ticketCorpus()...)
	r := NewRetriever(nil)

	result, err := r.Retrieve(context.Background(), "maximum GEN tickets", snapshot, defaultRetrievalOptions())

	require.NoError(t, err)
	require.NotEmpty(t, result.Hits)
	assert.Equal(t, "booking.md__1", result.Hits[0].ChunkID)
	assert.Equal(t, "booking.md", result.Hits[0].Source)
	assert.Equal(t, "snap-test", result.SnapshotID)
}

func TestRetriever_Retrieve_HybridWithEmbeddings(t *testing.T) {
	embedder := &mockEmbeddingService{dims: 128}
	snapshot, err := NewIndexer(embedder, 0).Build(context.Background(), ticketCorpus())
	require.NoError(t, err)

	result, err := NewRetriever(embedder).Retrieve(context.Background(), "refunds payment", snapshot, defaultRetrievalOptions())

	require.NoError(t, err)
	require.NotEmpty(t, result.Hits)
	assert.Equal(t, "refunds.md__1", result.Hits[0].ChunkID)
	assert.InDelta(t, 1.0, result.Hits[0].SparseScore, 1e-9)
	assert.Positive(t, result.Hits[0].DenseScore)
}

func TestRetriever_Retrieve_Deterministic(t *testing.T) {
	embedder := &mockEmbeddingService{dims: 32}
	snapshot, err := NewIndexer(embedder, 0).Build(context.Background(), ticketCorpus())
	require.NoError(t, err)
	r := NewRetriever(embedder)

	first, err := r.Retrieve(context.Background(), "tickets booking promo refunds", snapshot, defaultRetrievalOptions())
	require.NoError(t, err)

	for range 20 {
		again, err := r.Retrieve(context.Background(), "tickets booking promo refunds", snapshot, defaultRetrievalOptions())
		require.NoError(t, err)
		if diff := cmp.Diff(first, again); diff != "" {
			t.Fatalf("retrieval not deterministic (-first +again):\n%s", diff)
		}
	}
}

func TestRetriever_Retrieve_ConcurrentReaders(t *testing.T) {
	snapshot := mustSnapshot(t, ticketCorpus()...)
	r := NewRetriever(&mockEmbeddingService{})
	want, err := r.Retrieve(context.Background(), "promo code", snapshot, defaultRetrievalOptions())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := r.Retrieve(context.Background(), "promo code", snapshot, defaultRetrievalOptions())
			assert.NoError(t, err)
			assert.Equal(t, want, got)
		}()
	}
	wg.Wait()
}

func TestRetriever_Retrieve_RespectsTopK(t *testing.T) {
	snapshot := mustSnapshot(t, ticketCorpus()...)
	opts := defaultRetrievalOptions()
	opts.TopK = 1

	result, err := NewRetriever(nil).Retrieve(context.Background(), "tickets refunds promo", snapshot, opts)

	require.NoError(t, err)
	assert.Len(t, result.Hits, 1)
}

func TestRetriever_Retrieve_StopsAtBudget(t *testing.T) {
	chunks := []domain.Chunk{
		chunk("a.md", 1, "tickets tickets tickets"),
		chunk("a.md", 2, "tickets and a much longer passage that will not fit in the remaining budget"),
		chunk("a.md", 3, "tickets"),
	}
	snapshot := mustSnapshot(t, chunks...)
	opts := defaultRetrievalOptions()
	opts.TokenBudget = utf8.RuneCountInString(chunks[0].Text) + 5

	result, err := NewRetriever(nil).Retrieve(context.Background(), "tickets", snapshot, opts)

	require.NoError(t, err)
	total := 0
	for _, h := range result.Hits {
		total += h.Length
	}
	assert.LessOrEqual(t, total, opts.TokenBudget)
	assert.Equal(t, total, result.TokensUsed)
	// Greedy truncation stops at the first chunk that does not fit,
	// even if a later, shorter one would.
	for _, h := range result.Hits {
		assert.NotEqual(t, "a.md__2", h.ChunkID)
	}
	assert.Less(t, len(result.Hits), 3)
}

func TestRetriever_Retrieve_NoDuplicatesAndOrdered(t *testing.T) {
	snapshot := mustSnapshot(t, ticketCorpus()...)

	result, err := NewRetriever(nil).Retrieve(context.Background(), "tickets booking tickets GEN", snapshot, defaultRetrievalOptions())

	require.NoError(t, err)
	seen := make(map[string]bool)
	for i, h := range result.Hits {
		assert.False(t, seen[h.ChunkID], "duplicate %s", h.ChunkID)
		seen[h.ChunkID] = true
		if i > 0 {
			assert.GreaterOrEqual(t, result.Hits[i-1].FusedScore, h.FusedScore)
		}
	}
}

func TestRetriever_Retrieve_TiesBrokenBySnapshotOrder(t *testing.T) {
	snapshot := mustSnapshot(t,
		chunk("b.md", 1, "alpha"),
		chunk("a.md", 1, "alpha"),
	)

	result, err := NewRetriever(nil).Retrieve(context.Background(), "alpha", snapshot, defaultRetrievalOptions())

	require.NoError(t, err)
	require.Len(t, result.Hits, 2)
	assert.Equal(t, "b.md__1", result.Hits[0].ChunkID)
	assert.Equal(t, "a.md__1", result.Hits[1].ChunkID)
}

func TestRetriever_Retrieve_EmptyInputs(t *testing.T) {
	snapshot := mustSnapshot(t, ticketCorpus()...)
	r := NewRetriever(nil)

	tests := []struct {
		name     string
		query    string
		snapshot *domain.IndexSnapshot
		opts     domain.RetrievalOptions
	}{
		{"empty query", "   ", snapshot, defaultRetrievalOptions()},
		{"nil snapshot", "tickets", nil, defaultRetrievalOptions()},
		{"zero top_k", "tickets", snapshot, domain.RetrievalOptions{TopK: 0, TokenBudget: 100}},
		{"zero budget", "tickets", snapshot, domain.RetrievalOptions{TopK: 5, TokenBudget: 0}},
		{"no matching terms", "zebra", snapshot, defaultRetrievalOptions()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := r.Retrieve(context.Background(), tt.query, tt.snapshot, tt.opts)
			require.NoError(t, err)
			assert.True(t, result.IsEmpty())
			assert.NotNil(t, result.Hits)
		})
	}
}

func TestRetriever_Retrieve_QueryEmbeddingFailureFallsBackToSparse(t *testing.T) {
	snapshot, err := NewIndexer(&mockEmbeddingService{}, 0).Build(context.Background(), ticketCorpus())
	require.NoError(t, err)
	r := NewRetriever(&mockEmbeddingService{embedErr: errors.New("model not loaded")})

	result, err := r.Retrieve(context.Background(), "maximum GEN tickets", snapshot, defaultRetrievalOptions())

	require.NoError(t, err)
	require.NotEmpty(t, result.Hits)
	assert.Equal(t, "booking.md__1", result.Hits[0].ChunkID)
	assert.Zero(t, result.Hits[0].DenseScore)
}

func TestRetriever_Retrieve_Cancelled(t *testing.T) {
	snapshot, err := NewIndexer(&mockEmbeddingService{}, 0).Build(context.Background(), ticketCorpus())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRetriever(&mockEmbeddingService{embedErr: context.Canceled})
	_, err = r.Retrieve(ctx, "tickets", snapshot, defaultRetrievalOptions())

	assert.ErrorIs(t, err, context.Canceled)
}

func TestMinMax(t *testing.T) {
	tests := []struct {
		name string
		in   []float64
		want []float64
	}{
		{"empty", nil, []float64{}},
		{"spread", []float64{2, 4, 6}, []float64{0, 0.5, 1}},
		{"constant positive", []float64{3, 3}, []float64{1, 1}},
		{"constant zero", []float64{0, 0}, []float64{0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, minMax(tt.in))
		})
	}
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Zero(t, cosine([]float32{1}, []float32{1, 2}))
	assert.Zero(t, cosine([]float32{0, 0}, []float32{1, 1}))
	assert.Zero(t, cosine(nil, nil))
}
