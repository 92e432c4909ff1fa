package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorIndex_AddAndSearch(t *testing.T) {
	idx := NewVectorIndex(DefaultVectorIndexConfig(3))
	ctx := context.Background()

	err := idx.Add(ctx, []string{"a", "b", "c"}, [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0.9, 0.1, 0},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Count())

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "a", results[0].Path)
}

func TestVectorIndex_ReplaceExistingPath(t *testing.T) {
	idx := NewVectorIndex(DefaultVectorIndexConfig(2))
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []string{"a"}, [][]float32{{1, 0}}))
	require.NoError(t, idx.Add(ctx, []string{"a"}, [][]float32{{0, 1}}))

	assert.Equal(t, 1, idx.Count())
}

func TestVectorIndex_DimensionMismatch(t *testing.T) {
	idx := NewVectorIndex(DefaultVectorIndexConfig(3))
	err := idx.Add(context.Background(), []string{"a"}, [][]float32{{1, 0}})
	assert.Error(t, err)
}

func TestBuildVectorIndex_FromEmbeddingSnapshot(t *testing.T) {
	idx, err := BuildVectorIndex(DefaultVectorIndexConfig(2), []Embedding{
		{Path: "a", Vector: []float32{1, 0}},
		{Path: "b", Vector: []float32{0, 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Count())
}

func TestVectorIndex_SearchEmptyIndex(t *testing.T) {
	idx := NewVectorIndex(DefaultVectorIndexConfig(2))
	results, err := idx.Search(context.Background(), []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}
