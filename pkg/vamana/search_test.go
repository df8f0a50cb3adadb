package vamana

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsearch/svs/pkg/dataset"
	"github.com/vsearch/svs/pkg/distance"
	"github.com/vsearch/svs/pkg/dtype"
)

func randomDataset(t *testing.T, n uint64, dim int, seed int64) *dataset.Contiguous {
	t.Helper()
	r := rand.New(rand.NewSource(seed))
	d := dataset.NewContiguous(n, dim)
	for i := uint64(0); i < n; i++ {
		v := make([]float32, dim)
		for j := range v {
			v[j] = r.Float32()
		}
		require.NoError(t, d.Set(i, v))
	}
	return d
}

func TestGreedySearchFindsExactSelfMatch(t *testing.T) {
	d := randomDataset(t, 200, 8, 1)
	metric, err := distance.Get(dtype.L2)
	require.NoError(t, err)

	g, entry, err := Build(d, metric, BuildParameters{GraphMaxDegree: 16, WindowSize: 32}, 42)
	require.NoError(t, err)

	query, err := d.Get(57)
	require.NoError(t, err)
	queryCopy := append([]float32(nil), query...)

	idx := &StaticIndex{Dataset: d, Graph: g, Metric: metric, Entry: entry}
	results, err := idx.Search(queryCopy, SearchParameters{WindowSize: 64, K: 5})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, uint64(57), results[0].Id)
	assert.InDelta(t, 0, results[0].Distance, 1e-4)
}

func TestGreedySearchResultsAreSortedAscending(t *testing.T) {
	d := randomDataset(t, 150, 6, 2)
	metric, err := distance.Get(dtype.L2)
	require.NoError(t, err)
	g, entry, err := Build(d, metric, BuildParameters{GraphMaxDegree: 12, WindowSize: 24}, 7)
	require.NoError(t, err)

	idx := &StaticIndex{Dataset: d, Graph: g, Metric: metric, Entry: entry}
	query := make([]float32, 6)
	results, err := idx.Search(query, SearchParameters{WindowSize: 40, K: 10})
	require.NoError(t, err)
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i-1].Distance, results[i].Distance)
	}
}
