package weaviate_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/adapter/weaviate"
	"ragchat/internal/testutils"
	"ragchat/internal/vector"
)

func TestWeaviateStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := testutils.NewIntegrationSuite(t)
	s.Setup()
	defer s.Teardown()

	store := weaviate.NewStore(s.Weaviate)
	ctx := context.Background()
	spec := vector.CollectionSpec{Name: "documents_collection", Dimension: 3}

	// Search before any ingestion yields nothing.
	hits, err := store.Search(ctx, spec.Name, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	require.NoError(t, store.EnsureCollection(ctx, spec, true))
	require.NoError(t, store.Upsert(ctx, spec.Name, []vector.Point{
		{ID: uuid.NewString(), Vector: []float32{1, 0, 0}, Text: "The sky is blue.", Source: "a.txt", ChunkIndex: 1},
		{ID: uuid.NewString(), Vector: []float32{0, 1, 0}, Text: "Grass is green.", Source: "a.txt", ChunkIndex: 2},
	}))

	hits, err = store.Search(ctx, spec.Name, []float32{0.9, 0.1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "The sky is blue.", hits[0].Text)
	assert.Greater(t, hits[0].Score, hits[1].Score)

	n, err := store.Count(ctx, spec.Name)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Recreate wipes prior points.
	require.NoError(t, store.EnsureCollection(ctx, spec, true))
	n, err = store.Count(ctx, spec.Name)
	require.NoError(t, err)
	assert.Zero(t, n)
}
