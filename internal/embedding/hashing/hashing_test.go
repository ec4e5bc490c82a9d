package hashing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/embedding"
)

func TestEmbedder_DeterministicUnitVectors(t *testing.T) {
	e := NewEmbedder(64)
	ctx := context.Background()

	v1, err := e.Embed(ctx, "Docker is a container runtime")
	require.NoError(t, err)
	v2, err := NewEmbedder(64).Embed(ctx, "Docker is a container runtime")
	require.NoError(t, err)

	assert.Len(t, v1, 64)
	assert.Equal(t, v1, v2)
	assert.True(t, embedding.IsUnit(v1))
}

func TestEmbedder_SimilarTextsScoreHigher(t *testing.T) {
	e := NewEmbedder(256)
	ctx := context.Background()

	q, err := e.Embed(ctx, "What is Docker?")
	require.NoError(t, err)
	near, err := e.Embed(ctx, "Docker packages applications into containers. Docker images.")
	require.NoError(t, err)
	far, err := e.Embed(ctx, "Pandas dataframes support groupby aggregation")
	require.NoError(t, err)

	assert.Greater(t, embedding.Dot(q, near), embedding.Dot(q, far))
}

func TestEmbedder_NoTokens(t *testing.T) {
	_, err := NewEmbedder(16).Embed(context.Background(), "the a an ...")
	assert.Error(t, err)
}

func TestEmbedder_Defaults(t *testing.T) {
	e := NewEmbedder(0)
	assert.Equal(t, DefaultDimension, e.Dimension())
	assert.Equal(t, "hashing", e.Name())
}

func TestEmbedder_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewEmbedder(16).Embed(ctx, "docker")
	assert.ErrorIs(t, err, context.Canceled)
}
