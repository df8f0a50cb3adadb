package distance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsearch/svs/pkg/dtype"
)

func TestGetRejectsUnsupportedTag(t *testing.T) {
	_, err := Get(dtype.Metric(99))
	require.Error(t, err)
}

func TestL2OrdersByAscendingDistance(t *testing.T) {
	m, err := Get(dtype.L2)
	require.NoError(t, err)

	origin := m.FixArgument([]float32{0, 0, 0})
	near := m.Compute(origin, []float32{1, 0, 0})
	far := m.Compute(origin, []float32{5, 0, 0})
	assert.True(t, m.Less(near, far))
	assert.False(t, m.Less(far, near))
}

func TestL2SelfDistanceIsZero(t *testing.T) {
	m, _ := Get(dtype.L2)
	q := m.FixArgument([]float32{1, 2, 3})
	assert.Equal(t, float32(0), m.Compute(q, []float32{1, 2, 3}))
}

func TestInnerProductPrefersMoreAlignedVector(t *testing.T) {
	m, err := Get(dtype.InnerProduct)
	require.NoError(t, err)

	q := m.FixArgument([]float32{1, 1})
	aligned := m.Compute(q, []float32{1, 1})
	orthogonal := m.Compute(q, []float32{1, -1})
	assert.True(t, m.Less(aligned, orthogonal))
}

func TestCosineFixArgumentNormalisesQuery(t *testing.T) {
	m, err := Get(dtype.Cosine)
	require.NoError(t, err)

	q := m.FixArgument([]float32{3, 4})
	var sumSq float32
	for _, x := range q.Vector {
		sumSq += x * x
	}
	assert.InDelta(t, 1.0, sumSq, 1e-5)
}

func TestCosinePrefersParallelOverPerpendicular(t *testing.T) {
	m, err := Get(dtype.Cosine)
	require.NoError(t, err)

	q := m.FixArgument([]float32{2, 0})
	parallel := m.Compute(q, []float32{5, 0})
	perpendicular := m.Compute(q, []float32{0, 5})
	assert.True(t, m.Less(parallel, perpendicular))
}

func TestCosineFixArgumentHandlesZeroVector(t *testing.T) {
	m, _ := Get(dtype.Cosine)
	q := m.FixArgument([]float32{0, 0, 0})
	assert.Equal(t, []float32{0, 0, 0}, q.Vector)
}
