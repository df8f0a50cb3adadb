package vamana

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsearch/svs/pkg/dataset"
	"github.com/vsearch/svs/pkg/distance"
	"github.com/vsearch/svs/pkg/dtype"
	"github.com/vsearch/svs/pkg/searchbuf"
)

func line1D(t *testing.T, values ...float32) *dataset.Contiguous {
	t.Helper()
	d := dataset.NewContiguous(uint64(len(values)), 1)
	for i, v := range values {
		require.NoError(t, d.Set(uint64(i), []float32{v}))
	}
	return d
}

func TestRobustPruneBoundsResultToR(t *testing.T) {
	// Points on a line: 0 (target v), 1, 2, 3, 4, 5 all as candidates.
	d := line1D(t, 0, 1, 2, 3, 4, 5)
	metric, err := distance.Get(dtype.L2)
	require.NoError(t, err)

	candidates := []searchbuf.Neighbor{
		{Id: 1, Distance: 1},
		{Id: 2, Distance: 4},
		{Id: 3, Distance: 9},
		{Id: 4, Distance: 16},
		{Id: 5, Distance: 25},
	}
	result, err := RobustPrune(d, metric, 0, candidates, 1.2, 2)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(result), 2)
	// The nearest candidate is always accepted first.
	assert.Equal(t, uint64(1), result[0])
}

func TestRobustPruneOccludesClusteredCandidates(t *testing.T) {
	// v=0; candidates 1 and 2 are very close to each other (clustered) and
	// both farther from v than candidate 10, which sits alone.
	d := line1D(t, 0, 10, 11, 50)
	metric, err := distance.Get(dtype.L2)
	require.NoError(t, err)

	candidates := []searchbuf.Neighbor{
		{Id: 1, Distance: 100}, // (10-0)^2
		{Id: 2, Distance: 121}, // (11-0)^2
		{Id: 3, Distance: 2500},
	}
	result, err := RobustPrune(d, metric, 0, candidates, 1.0, 3)
	require.NoError(t, err)
	// Candidate 2 is occluded by candidate 1 (alpha=1.0, d(1,2)=1 <= d(2,v)=121).
	assert.Contains(t, result, uint64(1))
	assert.NotContains(t, result, uint64(2))
	assert.Contains(t, result, uint64(3))
}

func TestRobustPruneSkipsTargetVertexItself(t *testing.T) {
	d := line1D(t, 0, 1, 2)
	metric, err := distance.Get(dtype.L2)
	require.NoError(t, err)

	candidates := []searchbuf.Neighbor{
		{Id: 0, Distance: 0}, // v itself, must never appear in result
		{Id: 1, Distance: 1},
		{Id: 2, Distance: 4},
	}
	result, err := RobustPrune(d, metric, 0, candidates, 1.2, 3)
	require.NoError(t, err)
	assert.NotContains(t, result, uint64(0))
}

func TestRobustPruneWithStrategyIterativeRelaxesAlpha(t *testing.T) {
	// Tight cluster where a strict alpha=1.0 progressive pass occludes
	// everything but the first candidate; the iterative strategy reruns the
	// prune with a growing alpha and never returns fewer neighbours than
	// the progressive pass.
	d := line1D(t, 0, 10, 10.1, 10.2, 10.3)
	metric, err := distance.Get(dtype.InnerProduct)
	require.NoError(t, err)

	candidates := []searchbuf.Neighbor{
		{Id: 1, Distance: 1},
		{Id: 2, Distance: 1.01},
		{Id: 3, Distance: 1.02},
		{Id: 4, Distance: 1.03},
	}
	progressive, err := RobustPruneWithStrategy(d, metric, 0, candidates, 1.0, 4, Progressive)
	require.NoError(t, err)
	iterative, err := RobustPruneWithStrategy(d, metric, 0, candidates, 1.0, 4, Iterative)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, len(iterative), len(progressive))
}
