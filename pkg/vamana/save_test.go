package vamana

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsearch/svs/pkg/distance"
	"github.com/vsearch/svs/pkg/dtype"
)

func TestStaticIndexSaveLoadRoundTrips(t *testing.T) {
	d := randomDataset(t, 200, 8, 7)
	metric, err := distance.Get(dtype.L2)
	require.NoError(t, err)

	idx, err := BuildStatic(d, metric, BuildParameters{GraphMaxDegree: 16, WindowSize: 40}, 3)
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "index")
	require.NoError(t, idx.Save(dir))

	loaded, err := LoadStatic(dir)
	require.NoError(t, err)
	assert.Equal(t, idx.Dataset.Size(), loaded.Dataset.Size())
	assert.Equal(t, idx.Dataset.Dimensions(), loaded.Dataset.Dimensions())
	assert.Equal(t, idx.Entry, loaded.Entry)
	assert.Equal(t, idx.Metric.Tag, loaded.Metric.Tag)
	assert.Equal(t, idx.Params, loaded.Params)

	for v := uint64(0); v < idx.Graph.Size(); v++ {
		want, err := idx.Graph.Adjacency(v)
		require.NoError(t, err)
		got, err := loaded.Graph.Adjacency(v)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	query, err := d.Get(0)
	require.NoError(t, err)
	want, err := idx.Search(query, SearchParameters{K: 5})
	require.NoError(t, err)
	got, err := loaded.Search(query, SearchParameters{K: 5})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDynamicSaveLoadRoundTrips(t *testing.T) {
	metric, err := distance.Get(dtype.L2)
	require.NoError(t, err)

	idx := NewDynamic(4, metric, BuildParameters{GraphMaxDegree: 8, WindowSize: 20})
	vectors := [][]float32{
		{0, 0, 0, 0},
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{1, 1, 0, 0},
	}
	for i, v := range vectors {
		require.NoError(t, idx.Insert(uint64(i*10), v))
	}
	require.NoError(t, idx.Delete(20))

	dir := filepath.Join(t.TempDir(), "dynamic")
	require.NoError(t, idx.Save(dir))

	loaded, err := LoadDynamic(dir)
	require.NoError(t, err)
	assert.Equal(t, idx.Size(), loaded.Size())
	assert.Equal(t, idx.Dimensions(), loaded.Dimensions())

	want, err := idx.Search([]float32{1, 0, 0, 0}, SearchParameters{K: 3})
	require.NoError(t, err)
	got, err := loaded.Search([]float32{1, 0, 0, 0}, SearchParameters{K: 3})
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// A loaded index must still support insert/delete/consolidate, not just
	// search — Save/Load is meant to resume, not just serve reads.
	require.NoError(t, loaded.Insert(999, []float32{0, 0, 0, 1}))
	require.NoError(t, loaded.Consolidate())
}
