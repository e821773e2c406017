package domain

import (
	"fmt"
	"sort"
	"time"
)

// SnapshotMeta identifies an index snapshot.
type SnapshotMeta struct {
	// ID is the unique snapshot identifier.
	ID string

	// CreatedAt is when the build finished.
	CreatedAt time.Time

	// EmbeddingModel names the model that produced the dense vectors.
	EmbeddingModel string
}

// IndexSnapshot holds the dense and sparse indexes for one corpus build.
//
// A snapshot is immutable: all fields are private and accessors never hand
// out state that callers could mutate, except where documented. It can be
// shared read-only across any number of concurrent retrievals. Rebuilds
// produce a new snapshot; they never modify an existing one.
type IndexSnapshot struct {
	meta       SnapshotMeta
	dimensions int

	chunks     []Chunk
	positions  map[string]int
	vectors    [][]float32
	termCounts []map[string]int
	lengths    []int

	docFreq   map[string]int
	avgLength float64
}

// NewIndexSnapshot builds a snapshot from ordered chunks and their vectors.
// vectors may be nil when no embedding service is configured; otherwise it
// must hold one vector per chunk, all of the same dimension.
// Sparse statistics are derived from chunk text, so a snapshot restored
// from storage is identical to the one originally built.
func NewIndexSnapshot(meta SnapshotMeta, chunks []Chunk, vectors [][]float32) (*IndexSnapshot, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no chunks", ErrIndexBuild)
	}
	if vectors != nil && len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: %d vectors for %d chunks", ErrIndexBuild, len(vectors), len(chunks))
	}

	s := &IndexSnapshot{
		meta:       meta,
		chunks:     make([]Chunk, len(chunks)),
		positions:  make(map[string]int, len(chunks)),
		termCounts: make([]map[string]int, len(chunks)),
		lengths:    make([]int, len(chunks)),
		docFreq:    make(map[string]int),
	}
	copy(s.chunks, chunks)

	if vectors != nil {
		s.vectors = make([][]float32, len(vectors))
		for i, v := range vectors {
			if i == 0 {
				s.dimensions = len(v)
			}
			if len(v) == 0 || len(v) != s.dimensions {
				return nil, fmt.Errorf("%w: chunk %s has %d-dimension vector, expected %d",
					ErrIndexBuild, chunks[i].ID, len(v), s.dimensions)
			}
			s.vectors[i] = append([]float32(nil), v...)
		}
	}

	total := 0
	for i, c := range s.chunks {
		if c.ID == "" {
			return nil, fmt.Errorf("%w: chunk at position %d has no id", ErrIndexBuild, i)
		}
		if _, dup := s.positions[c.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate chunk id %s", ErrIndexBuild, c.ID)
		}
		s.positions[c.ID] = i

		counts := TermCounts(c.Text)
		s.termCounts[i] = counts
		for term, n := range counts {
			s.docFreq[term]++
			s.lengths[i] += n
		}
		total += s.lengths[i]
	}
	s.avgLength = float64(total) / float64(len(s.chunks))

	return s, nil
}

// ID returns the snapshot identifier.
func (s *IndexSnapshot) ID() string {
	if s == nil {
		return ""
	}
	return s.meta.ID
}

// Meta returns the snapshot metadata.
func (s *IndexSnapshot) Meta() SnapshotMeta {
	if s == nil {
		return SnapshotMeta{}
	}
	return s.meta
}

// Len returns the number of chunks. A nil snapshot is empty.
func (s *IndexSnapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.chunks)
}

// Dimensions returns the dense vector size, 0 when the snapshot is sparse-only.
func (s *IndexSnapshot) Dimensions() int {
	if s == nil {
		return 0
	}
	return s.dimensions
}

// HasVectors reports whether dense vectors are present.
func (s *IndexSnapshot) HasVectors() bool {
	return s.Dimensions() > 0
}

// ChunkAt returns the chunk at ordinal i.
func (s *IndexSnapshot) ChunkAt(i int) Chunk {
	return s.chunks[i]
}

// Chunk looks a chunk up by id. It implements ChunkLookup.
func (s *IndexSnapshot) Chunk(id string) (Chunk, bool) {
	if s == nil {
		return Chunk{}, false
	}
	i, ok := s.positions[id]
	if !ok {
		return Chunk{}, false
	}
	return s.chunks[i], true
}

// Ordinal returns the position of a chunk within the snapshot, or -1.
func (s *IndexSnapshot) Ordinal(id string) int {
	if s == nil {
		return -1
	}
	i, ok := s.positions[id]
	if !ok {
		return -1
	}
	return i
}

// VectorAt returns the dense vector for ordinal i, nil when sparse-only.
// The returned slice must not be modified.
func (s *IndexSnapshot) VectorAt(i int) []float32 {
	if s.vectors == nil {
		return nil
	}
	return s.vectors[i]
}

// TermCountsAt returns the term frequencies of chunk i.
// The returned map must not be modified.
func (s *IndexSnapshot) TermCountsAt(i int) map[string]int {
	return s.termCounts[i]
}

// LengthAt returns the token count of chunk i.
func (s *IndexSnapshot) LengthAt(i int) int {
	return s.lengths[i]
}

// DocFreq returns how many chunks contain term.
func (s *IndexSnapshot) DocFreq(term string) int {
	return s.docFreq[term]
}

// AvgLength returns the mean chunk length in tokens.
func (s *IndexSnapshot) AvgLength() float64 {
	return s.avgLength
}

// Sources returns the distinct source documents, sorted.
func (s *IndexSnapshot) Sources() []string {
	if s == nil {
		return nil
	}
	seen := make(map[string]struct{})
	for _, c := range s.chunks {
		seen[c.Source] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for src := range seen {
		out = append(out, src)
	}
	sort.Strings(out)
	return out
}

// SnapshotState is the lifecycle stage of a snapshot.
type SnapshotState string

// Snapshot lifecycle: build -> active -> superseded.
const (
	SnapshotBuilding   SnapshotState = "building"
	SnapshotActive     SnapshotState = "active"
	SnapshotSuperseded SnapshotState = "superseded"
)

// IndexStatus describes the current index lifecycle.
type IndexStatus struct {
	// SnapshotID is the active snapshot, empty when none is built.
	SnapshotID string `json:"snapshot_id,omitempty"`

	// State is the active snapshot state, or building when none is active yet.
	State SnapshotState `json:"state,omitempty"`

	// ChunkCount is the number of chunks in the active snapshot.
	ChunkCount int `json:"chunk_count"`

	// Sources lists documents in the active snapshot.
	Sources []string `json:"sources,omitempty"`

	// BuiltAt is when the active snapshot was built.
	BuiltAt time.Time `json:"built_at,omitempty"`

	// Building is true while a build is running.
	Building bool `json:"building"`

	// Superseded counts snapshots replaced during this process lifetime.
	Superseded int `json:"superseded"`
}

// BuildReport is the outcome of a successful index build.
type BuildReport struct {
	// Status is "ok" on success.
	Status string `json:"status"`

	// SnapshotID identifies the newly active snapshot.
	SnapshotID string `json:"snapshot_id"`

	// ChunksIndexed is the number of chunks in the snapshot.
	ChunksIndexed int `json:"chunks_indexed"`

	// Documents is the number of documents that produced chunks.
	Documents int `json:"documents"`

	// Warnings lists skipped files.
	Warnings []Warning `json:"warnings,omitempty"`
}
