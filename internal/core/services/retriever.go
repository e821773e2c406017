package services

import (
	"context"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/testforge/internal/core/domain"
	"github.com/custodia-labs/testforge/internal/core/ports/driven"
	"github.com/custodia-labs/testforge/internal/logger"
)

// BM25 parameters.
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// Retriever ranks snapshot chunks for a query by fusing BM25 and cosine
// scores. It is stateless and safe for concurrent use; the snapshot is
// passed in on every call.
type Retriever struct {
	embedder driven.EmbeddingService
}

// NewRetriever creates a retriever. embedder may be nil, in which case
// ranking is sparse-only.
func NewRetriever(embedder driven.EmbeddingService) *Retriever {
	return &Retriever{embedder: embedder}
}

// Retrieve returns the chunks of snapshot most relevant to query, ordered
// by descending fused score with ties broken by snapshot order, limited to
// opts.TopK entries whose summed text length fits opts.TokenBudget.
//
// An empty query, empty snapshot, or non-positive TopK or TokenBudget
// yields an empty result. The only error is context cancellation.
func (r *Retriever) Retrieve(
	ctx context.Context, query string, snapshot *domain.IndexSnapshot, opts domain.RetrievalOptions,
) (domain.RetrievalResult, error) {
	result := domain.RetrievalResult{
		SnapshotID: snapshot.ID(),
		Query:      query,
		Hits:       []domain.ScoredChunk{},
	}

	query = strings.TrimSpace(query)
	if query == "" || snapshot.Len() == 0 || opts.TopK <= 0 || opts.TokenBudget <= 0 {
		return result, nil
	}

	sparseW, denseW := opts.SparseWeight, opts.DenseWeight
	if sparseW <= 0 && denseW <= 0 {
		sparseW, denseW = 0.5, 0.5
	}

	var sparse, dense []float64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sparse = minMax(bm25Scores(snapshot, domain.Tokenize(query)))
		return nil
	})
	g.Go(func() error {
		raw, err := r.denseScores(gctx, query, snapshot)
		if err != nil {
			return err
		}
		dense = minMax(raw)
		return nil
	})
	if err := g.Wait(); err != nil {
		return result, err
	}

	type candidate struct {
		ordinal int
		fused   float64
	}
	candidates := make([]candidate, 0, snapshot.Len())
	for i := 0; i < snapshot.Len(); i++ {
		fused := sparseW*sparse[i] + denseW*dense[i]
		if fused > 0 {
			candidates = append(candidates, candidate{ordinal: i, fused: fused})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].fused != candidates[j].fused {
			return candidates[i].fused > candidates[j].fused
		}
		return candidates[i].ordinal < candidates[j].ordinal
	})

	for _, c := range candidates {
		if len(result.Hits) == opts.TopK {
			break
		}
		chunk := snapshot.ChunkAt(c.ordinal)
		length := utf8.RuneCountInString(chunk.Text)
		if result.TokensUsed+length > opts.TokenBudget {
			break
		}
		result.Hits = append(result.Hits, domain.ScoredChunk{
			ChunkID:     chunk.ID,
			Source:      chunk.Source,
			FusedScore:  c.fused,
			SparseScore: sparse[c.ordinal],
			DenseScore:  dense[c.ordinal],
			Length:      length,
		})
		result.TokensUsed += length
	}

	logger.Debug("Retrieved %d/%d chunks (%d of %d budget) for %q",
		len(result.Hits), len(candidates), result.TokensUsed, opts.TokenBudget, logger.Redact(query))
	return result, nil
}

// denseScores returns the cosine similarity of the query to every chunk,
// or all zeros when the snapshot is sparse-only or the query cannot be
// embedded.
func (r *Retriever) denseScores(ctx context.Context, query string, snapshot *domain.IndexSnapshot) ([]float64, error) {
	scores := make([]float64, snapshot.Len())
	if r.embedder == nil || !snapshot.HasVectors() {
		return scores, nil
	}

	qv, err := r.embedder.Embed(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn("Query embedding failed, using sparse scores only: %v", err)
		return scores, nil
	}

	for i := range scores {
		scores[i] = cosine(qv, snapshot.VectorAt(i))
	}
	return scores, nil
}

// bm25Scores scores every chunk against the distinct query terms.
// Terms are visited in sorted order so floating-point sums are reproducible.
func bm25Scores(snapshot *domain.IndexSnapshot, queryTerms []string) []float64 {
	terms := make([]string, 0, len(queryTerms))
	seen := make(map[string]bool, len(queryTerms))
	for _, t := range queryTerms {
		if !seen[t] {
			seen[t] = true
			terms = append(terms, t)
		}
	}
	sort.Strings(terms)

	n := float64(snapshot.Len())
	avg := snapshot.AvgLength()
	idf := make([]float64, len(terms))
	for i, t := range terms {
		idf[i] = math.Log((1+n)/(1+float64(snapshot.DocFreq(t)))) + 1
	}

	scores := make([]float64, snapshot.Len())
	for i := range scores {
		counts := snapshot.TermCountsAt(i)
		norm := 1.0
		if avg > 0 {
			norm = 1 - bm25B + bm25B*float64(snapshot.LengthAt(i))/avg
		}
		for j, t := range terms {
			f := float64(counts[t])
			if f == 0 {
				continue
			}
			scores[i] += idf[j] * f * (bm25K1 + 1) / (f + bm25K1*norm)
		}
	}
	return scores
}

// minMax rescales scores to [0,1] over the whole list. A constant list maps
// to all ones when positive and all zeros otherwise.
func minMax(scores []float64) []float64 {
	out := make([]float64, len(scores))
	if len(scores) == 0 {
		return out
	}

	lo, hi := scores[0], scores[0]
	for _, s := range scores[1:] {
		lo = math.Min(lo, s)
		hi = math.Max(hi, s)
	}

	if hi == lo {
		if hi > 0 {
			for i := range out {
				out[i] = 1
			}
		}
		return out
	}

	for i, s := range scores {
		out[i] = (s - lo) / (hi - lo)
	}
	return out
}

// cosine returns the cosine similarity of a and b, 0 when either is empty,
// zero-length or the dimensions differ.
func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
