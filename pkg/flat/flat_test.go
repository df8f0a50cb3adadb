package flat

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsearch/svs/pkg/dataset"
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

func TestSearchFindsExactSelfMatch(t *testing.T) {
	d := randomDataset(t, 100, 6, 1)
	idx, err := New(d, dtype.L2)
	require.NoError(t, err)

	query, err := d.Get(33)
	require.NoError(t, err)
	results, err := idx.Search(append([]float32(nil), query...), 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, uint64(33), results[0].Id)
	assert.InDelta(t, 0, results[0].Distance, 1e-6)
}

func TestSearchResultsAreSortedAscendingAndBoundedByK(t *testing.T) {
	d := randomDataset(t, 50, 4, 2)
	idx, err := New(d, dtype.L2)
	require.NoError(t, err)

	results, err := idx.Search(make([]float32, 4), 10)
	require.NoError(t, err)
	assert.Len(t, results, 10)
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i-1].Distance, results[i].Distance)
	}
}

func TestRerankOnlyConsidersGivenCandidatesAndSkipsMissingIds(t *testing.T) {
	d := randomDataset(t, 20, 3, 3)
	idx, err := New(d, dtype.L2)
	require.NoError(t, err)

	query, err := d.Get(5)
	require.NoError(t, err)
	results, err := idx.Rerank(append([]float32(nil), query...), []uint64{5, 7, 999}, 5)
	require.NoError(t, err)
	require.Len(t, results, 2) // id 999 is out of range and silently skipped
	assert.Equal(t, uint64(5), results[0].Id)
}

func TestNewRejectsUnsupportedMetric(t *testing.T) {
	d := randomDataset(t, 5, 2, 4)
	_, err := New(d, dtype.Metric(99))
	assert.Error(t, err)
}
