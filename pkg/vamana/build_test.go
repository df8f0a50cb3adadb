package vamana

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsearch/svs/pkg/distance"
	"github.com/vsearch/svs/pkg/dtype"
)

func TestBuildRespectsMaxDegree(t *testing.T) {
	d := randomDataset(t, 300, 8, 3)
	metric, err := distance.Get(dtype.L2)
	require.NoError(t, err)

	g, entry, err := Build(d, metric, BuildParameters{GraphMaxDegree: 10, WindowSize: 30, PruneTo: 8}, 11)
	require.NoError(t, err)
	assert.Less(t, entry, d.Size())

	for v := uint64(0); v < g.Size(); v++ {
		adj, err := g.Adjacency(v)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(adj), 10)
		for _, u := range adj {
			assert.NotEqual(t, v, u, "graph must not contain self-loops")
		}
	}
}

func TestBuildOnEmptyDatasetReturnsEmptyGraph(t *testing.T) {
	d := randomDataset(t, 0, 4, 1)
	metric, err := distance.Get(dtype.L2)
	require.NoError(t, err)

	g, entry, err := Build(d, metric, BuildParameters{}, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), g.Size())
	assert.Equal(t, uint64(0), entry)
}

func TestBuildRejectsInvalidPruneTo(t *testing.T) {
	d := randomDataset(t, 20, 4, 1)
	metric, err := distance.Get(dtype.L2)
	require.NoError(t, err)

	_, _, err = Build(d, metric, BuildParameters{GraphMaxDegree: 8, PruneTo: 20}, 1)
	assert.Error(t, err)
}

func TestBuildGraphIsSearchableForEveryMetric(t *testing.T) {
	for _, tag := range []dtype.Metric{dtype.L2, dtype.InnerProduct, dtype.Cosine} {
		metric, err := distance.Get(tag)
		require.NoError(t, err)
		d := randomDataset(t, 120, 6, 5)
		g, entry, err := Build(d, metric, BuildParameters{GraphMaxDegree: 12, WindowSize: 24}, 9)
		require.NoError(t, err)

		idx := &StaticIndex{Dataset: d, Graph: g, Metric: metric, Entry: entry}
		query, err := d.Get(3)
		require.NoError(t, err)
		results, err := idx.Search(append([]float32(nil), query...), SearchParameters{WindowSize: 32, K: 5})
		require.NoError(t, err)
		assert.NotEmpty(t, results)
	}
}
