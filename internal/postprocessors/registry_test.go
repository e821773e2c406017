package postprocessors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/testforge/internal/core/domain"
	"github.com/custodia-labs/testforge/internal/core/ports/driven"
	"github.com/custodia-labs/testforge/internal/postprocessors/chunker"
)

func TestRegistry_RegisterAndBuild(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Has("test"))

	r.Register("test", func(cfg map[string]any) (driven.PostProcessor, error) {
		name := "default"
		if n, ok := cfg["name"].(string); ok {
			name = n
		}
		return &mockProcessor{name: name}, nil
	})

	assert.True(t, r.Has("test"))
	proc, err := r.Build("test", map[string]any{"name": "custom"})
	require.NoError(t, err)
	assert.Equal(t, "custom", proc.Name())
}

func TestRegistry_Build_UnknownProcessor(t *testing.T) {
	_, err := NewRegistry().Build("unknown", nil)
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

func TestRegistry_NamesSorted(t *testing.T) {
	r := NewRegistry()
	assert.Empty(t, r.Names())

	RegisterDefaults(r)
	assert.Equal(t, []string{ChunkerName, SanitiserName}, r.Names())
}

func TestBuildChunker_Config(t *testing.T) {
	t.Run("with values", func(t *testing.T) {
		proc, err := buildChunker(map[string]any{"chunk_size": 500, "overlap": 0})
		require.NoError(t, err)

		c, ok := proc.(*chunker.Processor)
		require.True(t, ok)
		assert.Equal(t, 500, c.ChunkSize())

		chunks, err := c.Process(context.Background(), &domain.Document{ID: "d", Content: string(make([]rune, 1000))}, nil)
		require.NoError(t, err)
		assert.Len(t, chunks, 2)
	})

	t.Run("nil config uses defaults", func(t *testing.T) {
		proc, err := buildChunker(nil)
		require.NoError(t, err)
		assert.Equal(t, chunker.DefaultChunkSize, proc.(*chunker.Processor).ChunkSize())
	})
}

func TestGetIntFromConfig(t *testing.T) {
	tests := []struct {
		name     string
		cfg      map[string]any
		expected int
	}{
		{"int value", map[string]any{"size": 100}, 100},
		{"int64 value", map[string]any{"size": int64(200)}, 200},
		{"float64 value", map[string]any{"size": float64(300)}, 300},
		{"string value", map[string]any{"size": "400"}, 0},
		{"missing key", map[string]any{"other": 100}, 0},
		{"nil config", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, getIntFromConfig(tt.cfg, "size"))
		})
	}
}

func TestRegistry_Pipeline(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r)

	p, err := r.Pipeline([]string{SanitiserName, ChunkerName}, map[string]map[string]any{
		ChunkerName: {"chunk_size": 200},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{SanitiserName, ChunkerName}, p.Names())

	_, err = r.Pipeline([]string{SanitiserName, "ocr"}, nil)
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}
