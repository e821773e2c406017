package postprocessors

import (
	"github.com/custodia-labs/testforge/internal/core/domain"
	"github.com/custodia-labs/testforge/internal/core/ports/driven"
	"github.com/custodia-labs/testforge/internal/postprocessors/chunker"
	"github.com/custodia-labs/testforge/internal/postprocessors/sanitiser"
)

// Processor names in default execution order.
const (
	SanitiserName = "sanitiser"
	ChunkerName   = "chunker"
)

// RegisterDefaults registers all built-in processors with the registry.
// Call this during application initialisation to enable standard processors.
func RegisterDefaults(r *Registry) {
	r.Register(SanitiserName, buildSanitiser)
	r.Register(ChunkerName, buildChunker)
}

// NewDefaultPipeline builds the sanitise-then-chunk pipeline from chunking settings.
func NewDefaultPipeline(settings domain.ChunkingSettings) (*Pipeline, error) {
	r := NewRegistry()
	RegisterDefaults(r)

	configs := map[string]map[string]any{
		SanitiserName: nil,
		ChunkerName: {
			"chunk_size": settings.Size,
			"overlap":    settings.Overlap,
		},
	}

	return r.Pipeline([]string{SanitiserName, ChunkerName}, configs)
}

func buildSanitiser(_ map[string]any) (driven.PostProcessor, error) {
	return sanitiser.New(), nil
}

// buildChunker creates a chunker processor from generic config.
// Supported config keys:
//   - chunk_size (int): Characters per chunk (default: 1000)
//   - overlap (int): Overlapping characters between chunks (default: 200)
func buildChunker(cfg map[string]any) (driven.PostProcessor, error) {
	var opts []chunker.Option

	if size := getIntFromConfig(cfg, "chunk_size"); size > 0 {
		opts = append(opts, chunker.WithChunkSize(size))
	}
	if _, ok := cfg["overlap"]; ok {
		opts = append(opts, chunker.WithOverlap(getIntFromConfig(cfg, "overlap")))
	}

	return chunker.New(opts...), nil
}

// getIntFromConfig safely extracts an int from generic config map.
// Handles int, int64, and float64 types that may come from TOML/JSON parsing.
func getIntFromConfig(cfg map[string]any, key string) int {
	val, ok := cfg[key]
	if !ok {
		return 0
	}

	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
