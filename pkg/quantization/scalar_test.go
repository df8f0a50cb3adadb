package quantization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsearch/svs/pkg/dtype"
)

func TestTrainRejectsEmptyData(t *testing.T) {
	q := New(dtype.L2)
	require.Error(t, q.Train(nil))
}

func TestQuantizeDequantizeRoundTripIsApproximate(t *testing.T) {
	q := New(dtype.L2)
	vectors := [][]float32{
		{-1, 0, 1, 2.5},
		{3, -2, 0.5, 1},
	}
	require.NoError(t, q.Train(vectors))

	for _, v := range vectors {
		qv := q.Quantize(v)
		dv := q.Dequantize(qv)
		for i := range v {
			assert.InDelta(t, v[i], dv[i], 0.05)
		}
	}
}

func TestQuantizeClampsOutOfRangeValues(t *testing.T) {
	q := New(dtype.L2)
	require.NoError(t, q.Train([][]float32{{0, 1}, {0, 2}}))

	// A value far outside the trained range still clamps into int8 bounds.
	qv := q.Quantize([]float32{1000, -1000})
	assert.LessOrEqual(t, int(qv[0]), 127)
	assert.GreaterOrEqual(t, int(qv[1]), -127)
}

func TestDistanceOrdersQuantizedL2LikeFloatL2(t *testing.T) {
	q := New(dtype.L2)
	vectors := [][]float32{{0, 0}, {1, 1}, {5, 5}, {-3, 2}}
	require.NoError(t, q.Train(vectors))

	origin := q.Quantize([]float32{0, 0})
	near := q.Quantize([]float32{1, 1})
	far := q.Quantize([]float32{5, 5})

	assert.Less(t, q.Distance(origin, near), q.Distance(origin, far))
}

func TestDistanceOrdersQuantizedInnerProductByNegatedDot(t *testing.T) {
	q := New(dtype.InnerProduct)
	vectors := [][]float32{{1, 0}, {0, 1}, {1, 1}, {-1, -1}}
	require.NoError(t, q.Train(vectors))

	query := q.Quantize([]float32{1, 1})
	aligned := q.Quantize([]float32{1, 1}) // highest dot product with query
	orthogonal := q.Quantize([]float32{1, -1})

	assert.Less(t, q.Distance(query, aligned), q.Distance(query, orthogonal))
}

func TestParametersRoundTripThroughSetParameters(t *testing.T) {
	q := New(dtype.L2)
	require.NoError(t, q.Train([][]float32{{-2, 4}, {6, -1}}))

	min, max, scale, offset := q.Parameters()

	q2 := New(dtype.L2)
	q2.SetParameters(min, max, scale, offset)

	v := []float32{1, 1}
	assert.Equal(t, q.Quantize(v), q2.Quantize(v))
}
