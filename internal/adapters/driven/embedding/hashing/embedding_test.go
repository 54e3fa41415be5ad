package hashing

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tome/internal/adapters/driven/storage/scoring"
	"github.com/custodia-labs/tome/internal/core/ports/driven"
)

func TestEmbeddingService_Metadata(t *testing.T) {
	svc := NewEmbeddingService(0)
	assert.Equal(t, DefaultDimensions, svc.Dimensions())
	assert.Equal(t, "hashing-384", svc.ModelName())
	assert.NoError(t, svc.Ping(context.Background()))
	assert.NoError(t, svc.Close())

	assert.Equal(t, "hashing-64", NewEmbeddingService(64).ModelName())
}

func TestEmbeddingService_Deterministic(t *testing.T) {
	svc := NewEmbeddingService(128)
	ctx := context.Background()

	a, err := svc.Embed(ctx, "Fireball deals 8d6 fire damage")
	require.NoError(t, err)
	b, err := svc.Embed(ctx, "Fireball deals 8d6 fire damage")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 128)

	var norm float64
	for _, v := range a {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestEmbeddingService_SimilarTextsScoreHigher(t *testing.T) {
	svc := NewEmbeddingService(DefaultDimensions)
	ctx := context.Background()

	query, _ := svc.Embed(ctx, "fire damage spell")
	near, _ := svc.Embed(ctx, "Fireball is a spell that deals fire damage to each creature")
	far, _ := svc.Embed(ctx, "Grappler feat grants advantage on attack rolls")

	assert.Greater(t, scoring.Cosine(query, near), scoring.Cosine(query, far))
}

func TestEmbeddingService_StopwordOnlyText(t *testing.T) {
	svc := NewEmbeddingService(32)
	ctx := context.Background()

	a, err := svc.Embed(ctx, "the of")
	require.NoError(t, err)
	b, err := svc.Embed(ctx, "!!!")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.NotZero(t, scoring.Cosine(a, a))
}

func TestEmbeddingService_EmbedBatch(t *testing.T) {
	svc := NewEmbeddingService(16)

	out, err := svc.EmbedBatch(context.Background(), []string{"fire", "  ", "cold"})
	var itemErrs driven.ItemErrors
	require.ErrorAs(t, err, &itemErrs)
	assert.Len(t, itemErrs, 1)
	assert.Contains(t, itemErrs, 1)
	assert.Len(t, out, 3)
	assert.NotNil(t, out[0])
	assert.Nil(t, out[1])
	assert.NotNil(t, out[2])

	_, err = svc.Embed(context.Background(), "")
	assert.Error(t, err)
}

func TestEmbeddingService_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewEmbeddingService(8).EmbedBatch(ctx, []string{"x"})
	assert.ErrorIs(t, err, context.Canceled)
}
