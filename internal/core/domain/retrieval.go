package domain

import "sort"

// RetrievalOptions configures a hybrid retrieval.
type RetrievalOptions struct {
	// TopK is the maximum number of chunks returned.
	TopK int

	// TokenBudget caps the summed text length of returned chunks.
	TokenBudget int

	// SparseWeight and DenseWeight weight the normalised scores in fusion.
	SparseWeight float64
	DenseWeight  float64
}

// ScoredChunk is one entry of a retrieval result.
type ScoredChunk struct {
	// ChunkID identifies the chunk in the snapshot.
	ChunkID string `json:"chunk_id"`

	// Source is the chunk's document of origin.
	Source string `json:"source_document"`

	// FusedScore is the weighted sum of the normalised scores.
	FusedScore float64 `json:"fused_score"`

	// SparseScore is the normalised BM25 score.
	SparseScore float64 `json:"sparse_score"`

	// DenseScore is the normalised cosine similarity.
	DenseScore float64 `json:"dense_score"`

	// Length is the chunk text length counted against the token budget.
	Length int `json:"length"`
}

// RetrievalResult is an ordered, budget-bounded, duplicate-free list of chunks.
type RetrievalResult struct {
	// SnapshotID identifies the snapshot the result was computed against.
	SnapshotID string `json:"snapshot_id,omitempty"`

	// Query is the query text.
	Query string `json:"query"`

	// Hits are ordered by descending fused score.
	Hits []ScoredChunk `json:"hits"`

	// TokensUsed is the summed text length of Hits.
	TokensUsed int `json:"tokens_used"`
}

// IsEmpty returns true if nothing was retrieved.
func (r RetrievalResult) IsEmpty() bool {
	return len(r.Hits) == 0
}

// Sources returns the distinct source documents of the hits, sorted.
func (r RetrievalResult) Sources() []string {
	seen := make(map[string]struct{}, len(r.Hits))
	for _, h := range r.Hits {
		seen[h.Source] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for src := range seen {
		out = append(out, src)
	}
	sort.Strings(out)
	return out
}

// HasSource reports whether any hit comes from source.
func (r RetrievalResult) HasSource(source string) bool {
	for _, h := range r.Hits {
		if h.Source == source {
			return true
		}
	}
	return false
}
