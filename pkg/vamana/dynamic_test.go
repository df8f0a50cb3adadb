package vamana

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsearch/svs/pkg/distance"
	"github.com/vsearch/svs/pkg/dtype"
)

func insertRandomPoints(t *testing.T, idx *Dynamic, n int, dim int, seed int64) [][]float32 {
	t.Helper()
	r := rand.New(rand.NewSource(seed))
	vectors := make([][]float32, n)
	for i := 0; i < n; i++ {
		v := make([]float32, dim)
		for j := range v {
			v[j] = r.Float32()
		}
		vectors[i] = v
		require.NoError(t, idx.Insert(uint64(i), v))
	}
	return vectors
}

func TestDynamicInsertThenSearchFindsSelf(t *testing.T) {
	metric, err := distance.Get(dtype.L2)
	require.NoError(t, err)
	idx := NewDynamic(8, metric, BuildParameters{GraphMaxDegree: 16, WindowSize: 32})
	vectors := insertRandomPoints(t, idx, 150, 8, 1)

	query := append([]float32(nil), vectors[42]...)
	results, err := idx.Search(query, SearchParameters{WindowSize: 48, K: 5})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, uint64(42), results[0].Id)
	assert.InDelta(t, 0, results[0].Distance, 1e-4)
}

func TestDynamicInsertRejectsDuplicateExternalID(t *testing.T) {
	metric, _ := distance.Get(dtype.L2)
	idx := NewDynamic(4, metric, BuildParameters{})
	require.NoError(t, idx.Insert(1, []float32{1, 2, 3, 4}))
	assert.Error(t, idx.Insert(1, []float32{5, 6, 7, 8}))
}

func TestDynamicDeleteHidesExternalIdButKeepsRecallUntilConsolidate(t *testing.T) {
	metric, err := distance.Get(dtype.L2)
	require.NoError(t, err)
	idx := NewDynamic(8, metric, BuildParameters{GraphMaxDegree: 16, WindowSize: 32})
	vectors := insertRandomPoints(t, idx, 100, 8, 2)

	require.NoError(t, idx.Delete(10))

	// Deleted id is gone from external lookups...
	assert.Error(t, idx.Delete(10))

	// ...but a query for a point near the deleted vector should still
	// surface its former nearest surviving neighbours without error
	// (soft-delete keeps the graph traversable).
	query := append([]float32(nil), vectors[10]...)
	results, err := idx.Search(query, SearchParameters{WindowSize: 32, K: 5})
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, uint64(10), r.Id)
	}
}

func TestDynamicConsolidateRemovesDanglingEdgesToDeletedSlots(t *testing.T) {
	metric, err := distance.Get(dtype.L2)
	require.NoError(t, err)
	idx := NewDynamic(6, metric, BuildParameters{GraphMaxDegree: 10, WindowSize: 24})
	insertRandomPoints(t, idx, 80, 6, 3)

	require.NoError(t, idx.Delete(5))
	require.NoError(t, idx.Delete(6))
	// Every insert above appended a fresh slot, so ids 5 and 6 sit in slots
	// 5 and 6. Consolidate clears the tombstone bitmap, so the deleted slots
	// are recorded here rather than read back through isDeleted.
	deletedSlots := map[uint64]bool{5: true, 6: true}
	require.NoError(t, idx.Consolidate())

	idx.mu.Lock()
	n := idx.dataset.Size()
	idx.mu.Unlock()
	for v := uint64(0); v < n; v++ {
		if deletedSlots[v] {
			continue
		}
		adj, err := idx.graph.Adjacency(v)
		require.NoError(t, err)
		for _, u := range adj {
			assert.False(t, deletedSlots[u], "vertex %d still points at deleted slot %d after consolidate", v, u)
		}
	}
}

func TestDynamicCompactRenumbersToContiguousLiveRange(t *testing.T) {
	metric, err := distance.Get(dtype.L2)
	require.NoError(t, err)
	idx := NewDynamic(5, metric, BuildParameters{GraphMaxDegree: 8, WindowSize: 16})
	insertRandomPoints(t, idx, 50, 5, 4)

	require.NoError(t, idx.Delete(1))
	require.NoError(t, idx.Delete(2))
	require.NoError(t, idx.Delete(3))
	require.NoError(t, idx.Consolidate())
	require.NoError(t, idx.Compact(8))

	idx.mu.Lock()
	defer idx.mu.Unlock()
	assert.Equal(t, uint64(47), idx.dataset.Size())
	assert.Equal(t, uint64(47), idx.graph.Size())
	assert.Equal(t, 47, len(idx.internalToExternal))
	for v := uint64(0); v < idx.graph.Size(); v++ {
		adj, err := idx.graph.Adjacency(v)
		require.NoError(t, err)
		for _, u := range adj {
			assert.Less(t, u, idx.graph.Size())
		}
	}
}
