package manager

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsearch/svs/pkg/dataset"
	"github.com/vsearch/svs/pkg/distance"
	"github.com/vsearch/svs/pkg/dtype"
	"github.com/vsearch/svs/pkg/flat"
	"github.com/vsearch/svs/pkg/ivf"
	"github.com/vsearch/svs/pkg/vamana"
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

func TestManagerWrapsVamanaStaticAndSearches(t *testing.T) {
	d := randomDataset(t, 100, 6, 1)
	metric, err := distance.Get(dtype.L2)
	require.NoError(t, err)
	idx, err := vamana.BuildStatic(d, metric, vamana.BuildParameters{GraphMaxDegree: 12, WindowSize: 24}, 1)
	require.NoError(t, err)

	m := NewVamanaStatic(idx, 2)
	assert.Equal(t, VamanaStatic, m.Kind())
	assert.Equal(t, uint64(100), m.Size())
	assert.Equal(t, 6, m.Dimension())

	query, err := d.Get(10)
	require.NoError(t, err)
	results, err := m.Search(append([]float32(nil), query...), 5)
	require.NoError(t, err)
	assert.NotEmpty(t, results)
}

func TestManagerSearchBatchPreservesOrderAndFansOutAcrossThreads(t *testing.T) {
	d := randomDataset(t, 80, 4, 2)
	metric, err := distance.Get(dtype.L2)
	require.NoError(t, err)
	idx, err := vamana.BuildStatic(d, metric, vamana.BuildParameters{GraphMaxDegree: 10, WindowSize: 20}, 2)
	require.NoError(t, err)
	m := NewVamanaStatic(idx, 4)

	queries := make([][]float32, 10)
	for i := range queries {
		v, err := d.Get(uint64(i))
		require.NoError(t, err)
		queries[i] = append([]float32(nil), v...)
	}
	results, err := m.SearchBatch(queries, 3)
	require.NoError(t, err)
	require.Len(t, results, 10)
	for i, r := range results {
		require.NotEmpty(t, r)
		assert.Equal(t, uint64(i), r[0].Id)
	}
}

func TestManagerRejectsWrongKindParameterAccess(t *testing.T) {
	d := randomDataset(t, 20, 3, 3)
	idx, err := flat.New(d, dtype.L2)
	require.NoError(t, err)
	m := NewFlat(idx, 1)

	_, err = m.IVFSearchParameters()
	assert.Error(t, err)
	_, err = m.VamanaSearchParameters()
	assert.Error(t, err)
}

func TestManagerWrapsIVFAndExposesSearchParameters(t *testing.T) {
	vectors := make([][]float32, 200)
	ids := make([]uint64, 200)
	r := rand.New(rand.NewSource(4))
	for i := range vectors {
		v := make([]float32, 5)
		for j := range v {
			v[j] = r.Float32()
		}
		vectors[i] = v
		ids[i] = uint64(i)
	}
	idx, err := ivf.Train(vectors, ids, dtype.L2, ivf.BuildParameters{NumCentroids: 8, NumIterations: 3, Seed: 4})
	require.NoError(t, err)

	m := NewIVF(idx, 1)
	params, err := m.IVFSearchParameters()
	require.NoError(t, err)
	params.NProbes = 3
	require.NoError(t, m.SetIVFSearchParameters(params))

	results, err := m.Search(vectors[0], 5)
	require.NoError(t, err)
	assert.NotEmpty(t, results)
}

func TestManagerSetNumThreadsClampsToAtLeastOne(t *testing.T) {
	d := randomDataset(t, 10, 2, 5)
	idx, err := flat.New(d, dtype.L2)
	require.NoError(t, err)
	m := NewFlat(idx, 1)
	m.SetNumThreads(0)
	assert.Equal(t, 1, m.NumThreads())
}
