package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraph_AddAndSearch(t *testing.T) {
	// Given: an empty graph
	g := NewGraph(GraphConfig{})
	defer func() { _ = g.Close() }()

	// And: vectors a=[1,0,0,0], b=[0,1,0,0], c=[0.9,0.1,0,0]
	err := g.Add([]string{"a", "b", "c"}, [][]float32{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0.9, 0.1, 0, 0},
	})
	require.NoError(t, err)

	// When: I search for [1,0,0,0] with k=2
	results, err := g.Search([]float32{1, 0, 0, 0}, 2)
	require.NoError(t, err)

	// Then: a is an exact match and c is next
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "c", results[1].ID)
	assert.Greater(t, results[0].Score, float32(0.99))
	assert.Equal(t, 4, g.Dimensions())
}

func TestGraph_UpdateReplaces(t *testing.T) {
	g := NewGraph(GraphConfig{})
	require.NoError(t, g.Add([]string{"a"}, [][]float32{{1, 0, 0, 0}}))

	// When: "a" is re-added with a different vector
	require.NoError(t, g.Add([]string{"a"}, [][]float32{{0, 1, 0, 0}}))

	// Then: there is still one live vector and it has the new value
	assert.Equal(t, 1, g.Len())
	assert.Equal(t, 1, g.Stats().Orphans)

	results, err := g.Search([]float32{0, 1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
	assert.Greater(t, results[0].Score, float32(0.99))
}

func TestGraph_OrphansDoNotStealSlots(t *testing.T) {
	// Given: one live id that was rewritten several times, plus one other id
	g := NewGraph(GraphConfig{})
	for range 5 {
		require.NoError(t, g.Add([]string{"a"}, [][]float32{{1, 0, 0}}))
	}
	require.NoError(t, g.Add([]string{"b"}, [][]float32{{0, 1, 0}}))

	// When: searching for two results
	results, err := g.Search([]float32{1, 0, 0}, 2)
	require.NoError(t, err)

	// Then: both live ids come back
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "b", results[1].ID)
}

func TestGraph_Delete(t *testing.T) {
	g := NewGraph(GraphConfig{})
	require.NoError(t, g.Add([]string{"a", "b"}, [][]float32{{1, 0}, {0, 1}}))

	g.Delete([]string{"a"})

	assert.False(t, g.Contains("a"))
	assert.True(t, g.Contains("b"))
	assert.Equal(t, 1, g.Len())
}

func TestGraph_DimensionMismatch(t *testing.T) {
	g := NewGraph(GraphConfig{Dimensions: 3})

	err := g.Add([]string{"a"}, [][]float32{{1, 0}})

	var dimErr ErrDimensionMismatch
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 3, dimErr.Expected)
	assert.Equal(t, 2, dimErr.Got)

	_, err = g.Search([]float32{1, 0}, 1)
	assert.NoError(t, err, "empty graph answers any query with no results")
}

func TestGraph_EmptySearch(t *testing.T) {
	g := NewGraph(GraphConfig{})

	results, err := g.Search([]float32{1, 0, 0}, 3)

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestGraph_Persistence(t *testing.T) {
	// Given: a saved graph with two vectors
	path := filepath.Join(t.TempDir(), "docs.hnsw")
	g1 := NewGraph(GraphConfig{})
	require.NoError(t, g1.Add([]string{"a", "b"}, [][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}}))
	require.NoError(t, g1.Save(path))
	require.NoError(t, g1.Close())

	assert.FileExists(t, path)
	assert.FileExists(t, path+".meta")
	assert.NoFileExists(t, path+".tmp")

	// When: loading into a fresh graph
	g2 := NewGraph(GraphConfig{})
	require.NoError(t, g2.Load(path))

	// Then: contents and dimensions are restored
	assert.Equal(t, 2, g2.Len())
	assert.Equal(t, 4, g2.Dimensions())
	results, err := g2.Search([]float32{0, 1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].ID)
}

func TestGraph_SaveKeepsRevision(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docs.hnsw")
	g1 := NewGraph(GraphConfig{})
	require.NoError(t, g1.Add([]string{"a"}, [][]float32{{1, 0}}))
	g1.SetRevision(7)
	require.NoError(t, g1.Save(path))
	require.NoError(t, g1.Close())

	g2 := NewGraph(GraphConfig{})
	require.NoError(t, g2.Load(path))
	assert.Equal(t, int64(7), g2.Revision())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "only the graph and its metadata remain")
}

func TestGraph_LoadRejectsMismatchedMetadata(t *testing.T) {
	// Given: the graph of one save next to the metadata of another
	path := filepath.Join(t.TempDir(), "docs.hnsw")
	g := NewGraph(GraphConfig{})
	require.NoError(t, g.Add([]string{"a"}, [][]float32{{1, 0, 0}}))
	require.NoError(t, g.Save(path))
	oldMeta, err := os.ReadFile(path + ".meta")
	require.NoError(t, err)
	require.NoError(t, g.Add([]string{"b"}, [][]float32{{0, 1, 0}}))
	require.NoError(t, g.Save(path))
	require.NoError(t, g.Close())
	require.NoError(t, os.WriteFile(path+".meta", oldMeta, 0o644))

	// When
	err = NewGraph(GraphConfig{}).Load(path)

	// Then
	assert.Error(t, err)
}

func TestGraph_ClosedRejectsWork(t *testing.T) {
	g := NewGraph(GraphConfig{})
	require.NoError(t, g.Close())

	assert.Error(t, g.Add([]string{"a"}, [][]float32{{1}}))
	_, err := g.Search([]float32{1}, 1)
	assert.Error(t, err)
	assert.Equal(t, GraphStats{}, g.Stats())
}

func TestDistanceToScore(t *testing.T) {
	assert.InDelta(t, 1.0, distanceToScore(0), 1e-6)
	assert.InDelta(t, 0.5, distanceToScore(1), 1e-6)
	assert.InDelta(t, 0.0, distanceToScore(2), 1e-6)
}
