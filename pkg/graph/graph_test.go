package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainsBinarySearchesSortedList(t *testing.T) {
	adj := []uint64{2, 5, 9, 20}
	assert.True(t, Contains(adj, 9))
	assert.False(t, Contains(adj, 6))
	assert.False(t, Contains(nil, 1))
}

func TestContiguousSetAdjacencyEnforcesInvariants(t *testing.T) {
	g := NewContiguous(10, 3)
	// Self-loop and duplicate are dropped; list comes out sorted ascending
	// and truncated to MaxDegree (spec §3/§8 graph invariants).
	require.NoError(t, g.SetAdjacency(5, []uint64{9, 5, 1, 9, 1, 7}))
	adj, err := g.Adjacency(5)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 7, 9}, adj)
	assert.LessOrEqual(t, len(adj), g.MaxDegree())
}

func TestContiguousAdjacencyOutOfRange(t *testing.T) {
	g := NewContiguous(3, 2)
	_, err := g.Adjacency(3)
	assert.Error(t, err)
	assert.Error(t, g.SetAdjacency(5, nil))
}

func TestContiguousAddNeighbourLockedKeepsSortedOrderAndReportsDegree(t *testing.T) {
	g := NewContiguous(5, 3)
	require.NoError(t, g.SetAdjacency(0, []uint64{2}))

	g.Lock(0)
	deg := g.AddNeighbourLocked(0, 1)
	g.Unlock(0)
	assert.Equal(t, 2, deg)

	adj, _ := g.Adjacency(0)
	assert.Equal(t, []uint64{1, 2}, adj)

	// Self-loop and re-insert of an existing id are no-ops.
	g.Lock(0)
	deg = g.AddNeighbourLocked(0, 0)
	assert.Equal(t, 2, deg)
	deg = g.AddNeighbourLocked(0, 1)
	g.Unlock(0)
	assert.Equal(t, 2, deg)
}

func TestBlockedResizeAndAppendGrowVertexCount(t *testing.T) {
	g := NewBlocked(4, 2)
	id := g.Append()
	assert.Equal(t, uint64(0), id)
	assert.Equal(t, uint64(1), g.Size())

	g.Resize(5)
	assert.Equal(t, uint64(5), g.Size())
	adj, err := g.Adjacency(4)
	require.NoError(t, err)
	assert.Empty(t, adj)
}

func TestBlockedSetAdjacencyEnforcesInvariants(t *testing.T) {
	g := NewBlocked(2, 2)
	g.Resize(3)
	require.NoError(t, g.SetAdjacency(1, []uint64{2, 1, 2, 0}))
	adj, err := g.Adjacency(1)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 2}, adj)
}

func TestBlockedRemoveNeighbourLocked(t *testing.T) {
	g := NewBlocked(4, 2)
	g.Resize(2)
	require.NoError(t, g.SetAdjacency(0, []uint64{1}))

	g.Lock(0)
	g.RemoveNeighbourLocked(0, 1)
	g.Unlock(0)

	adj, _ := g.Adjacency(0)
	assert.Empty(t, adj)
}

func TestBlockedAddNeighbourLockedAcrossBlockBoundary(t *testing.T) {
	g := NewBlocked(4, 2) // blockSize=2, so vertex 2 lives in the second block
	g.Resize(3)

	g.Lock(2)
	deg := g.AddNeighbourLocked(2, 0)
	g.Unlock(2)
	assert.Equal(t, 1, deg)

	adj, err := g.Adjacency(2)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0}, adj)
}
