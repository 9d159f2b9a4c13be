package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatasetObs(t *testing.T) {
	ds := New([]string{"a", "b", "c"})
	assert.Equal(t, 3, ds.NumNodes())

	col := CategoricalFromValues([]string{"x", "x", "y"})
	require.NoError(t, ds.SetObs("cell_type", col))

	got, ok := ds.Obs("cell_type")
	require.True(t, ok)
	assert.Equal(t, col.Codes(), got.Codes())

	_, ok = ds.Obs("missing")
	assert.False(t, ok)

	short := CategoricalFromValues([]string{"x"})
	assert.Error(t, ds.SetObs("bad", short))
}

func TestDatasetObsKeysOrdered(t *testing.T) {
	ds := New([]string{"a", "b"})
	require.NoError(t, ds.SetObs("second", CategoricalFromValues([]string{"x", "y"})))
	require.NoError(t, ds.SetObs("first", CategoricalFromValues([]string{"x", "y"})))
	// Insertion order, and replacing a column keeps its slot.
	require.NoError(t, ds.SetObs("second", CategoricalFromValues([]string{"y", "y"})))
	assert.Equal(t, []string{"second", "first"}, ds.ObsKeys())
}

func TestDatasetDropObsPrefix(t *testing.T) {
	ds := New([]string{"a", "b"})
	col := CategoricalFromValues([]string{"x", "y"})
	require.NoError(t, ds.SetObs("nsbm_level_0", col))
	require.NoError(t, ds.SetObs("nsbm_level_1", col))
	require.NoError(t, ds.SetObs("nsbm_other", col))
	require.NoError(t, ds.SetObs("batch", col))

	removed := ds.DropObsPrefix("nsbm_level_")
	assert.Equal(t, 2, removed)
	assert.Equal(t, []string{"nsbm_other", "batch"}, ds.ObsKeys())
}

func TestDatasetAdjacency(t *testing.T) {
	ds := New([]string{"a", "b"})
	assert.Nil(t, ds.Adjacency())

	adj, err := NewAdjacencyMatrix(3)
	require.NoError(t, err)
	assert.Error(t, ds.SetAdjacency(adj), "size mismatch must be rejected")

	adj2, err := NewAdjacencyMatrix(2)
	require.NoError(t, err)
	require.NoError(t, ds.SetAdjacency(adj2))
	assert.Equal(t, 2, ds.Adjacency().N())
}

func TestDatasetCopy(t *testing.T) {
	ds := New([]string{"a", "b"})
	require.NoError(t, ds.SetObs("batch", CategoricalFromValues([]string{"x", "y"})))
	adj, err := AdjacencyFromDense([][]float64{{0, 1}, {1, 0}})
	require.NoError(t, err)
	require.NoError(t, ds.SetAdjacency(adj))
	ds.Uns["run"] = "record"

	cp := ds.Copy()
	require.NotSame(t, ds, cp)
	assert.Equal(t, ds.Names(), cp.Names())
	assert.Equal(t, ds.ObsKeys(), cp.ObsKeys())
	assert.Equal(t, "record", cp.Uns["run"])

	// Obs and adjacency are deep copies.
	require.NoError(t, cp.SetObs("batch", CategoricalFromValues([]string{"y", "y"})))
	orig, _ := ds.Obs("batch")
	assert.Equal(t, []int{0, 1}, orig.Codes())
	require.NoError(t, cp.Adjacency().Set(0, 0, 2))
	assert.Equal(t, 2, ds.Adjacency().NNZ())
}

func TestAdjacencySubmatrix(t *testing.T) {
	adj, err := AdjacencyFromDense([][]float64{
		{0, 1, 0, 2},
		{1, 0, 0, 0},
		{0, 0, 0, 3},
		{2, 0, 3, 0},
	})
	require.NoError(t, err)

	sub, err := adj.Submatrix([]int{0, 1, 3})
	require.NoError(t, err)
	assert.Equal(t, 3, sub.N())
	// Edges to dropped node 2 vanish; survivors are reindexed.
	assert.Equal(t, []MatrixEntry{{Col: 1, Weight: 1}, {Col: 2, Weight: 2}}, sub.Row(0))
	assert.Equal(t, []MatrixEntry{{Col: 0, Weight: 2}}, sub.Row(2))

	_, err = adj.Submatrix([]int{0, 9})
	assert.Error(t, err)
	_, err = adj.Submatrix([]int{0, 0})
	assert.Error(t, err)
}

func TestAdjacencyFromDense(t *testing.T) {
	_, err := AdjacencyFromDense([][]float64{{0, 1}, {1}})
	assert.Error(t, err, "ragged input must be rejected")

	adj, err := AdjacencyFromDense([][]float64{{0, 2}, {2, 0}})
	require.NoError(t, err)
	assert.Equal(t, 2, adj.NNZ())
	assert.NoError(t, adj.Validate())
}
