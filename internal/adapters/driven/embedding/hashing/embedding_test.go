package hashing

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

func TestEmbeddingService_Embed(t *testing.T) {
	svc := NewEmbeddingService(0)
	ctx := context.Background()

	a, err := svc.Embed(ctx, "Max tickets per booking = 6 for GEN")
	require.NoError(t, err)
	again, err := svc.Embed(ctx, "max TICKETS per booking = 6 for gen")
	require.NoError(t, err)
	related, err := svc.Embed(ctx, "maximum GEN tickets per booking")
	require.NoError(t, err)
	unrelated, err := svc.Embed(ctx, "refunds are issued within five business days")
	require.NoError(t, err)

	assert.Len(t, a, DefaultDimensions)
	assert.Equal(t, a, again)
	assert.InDelta(t, 1.0, math.Sqrt(cosine(a, a)), 1e-5)
	assert.Greater(t, cosine(a, related), cosine(a, unrelated))
}

func TestEmbeddingService_EmptyText(t *testing.T) {
	v, err := NewEmbeddingService(16).Embed(context.Background(), " !? ")

	require.NoError(t, err)
	assert.Equal(t, make([]float32, 16), v)
}

func TestEmbeddingService_EmbedBatch(t *testing.T) {
	svc := NewEmbeddingService(32)

	vectors, err := svc.EmbedBatch(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	single, err := svc.Embed(context.Background(), "two")
	require.NoError(t, err)
	assert.Equal(t, single, vectors[1])

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.EmbedBatch(ctx, []string{"x"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEmbeddingService_Metadata(t *testing.T) {
	svc := NewEmbeddingService(64)

	assert.Equal(t, 64, svc.Dimensions())
	assert.Equal(t, DefaultModel, svc.ModelName())
	assert.NoError(t, svc.Ping(context.Background()))
	assert.NoError(t, svc.Close())
}
