package quantization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsearch/svs/pkg/dtype"
)

func TestLVQEncodeDecodeRoundTripIsApproximate(t *testing.T) {
	q := NewLVQ(dtype.L2)
	vectors := [][]float32{
		{-1, 0, 1, 2.5},
		{100, 101, 99, 98},
	}
	for _, v := range vectors {
		e := q.Encode(v)
		dv := q.Decode(e)
		for i := range v {
			assert.InDelta(t, v[i], dv[i], 0.05)
		}
	}
}

func TestLVQToleratesDivergentVectorRangesBetterThanGlobalScalar(t *testing.T) {
	// One vector near the origin and one far away, on dimensions where a
	// single dataset-wide scale would waste precision on whichever vector
	// isn't near that shared range — LVQ fits each vector's own range, so
	// both reconstruct with the same relative precision regardless of the
	// other vector's magnitude.
	near := []float32{0, 0.01, -0.01}
	far := []float32{1000, 1000.01, 999.99}

	lvq := NewLVQ(dtype.L2)
	nearDecoded := lvq.Decode(lvq.Encode(near))
	farDecoded := lvq.Decode(lvq.Encode(far))
	for i := range near {
		assert.InDelta(t, near[i], nearDecoded[i], 0.05)
	}
	for i := range far {
		assert.InDelta(t, far[i], farDecoded[i], 0.05)
	}

	global := New(dtype.L2)
	require.NoError(t, global.Train([][]float32{near, far}))
	nearGlobal := global.Dequantize(global.Quantize(near))
	// The shared [0, 1000] range quantizes "near"'s tiny spread so coarsely
	// that its three components collapse to the same code.
	assert.Equal(t, nearGlobal[0], nearGlobal[1])
}

func TestLVQDistanceOrdersLikeFloatL2(t *testing.T) {
	q := NewLVQ(dtype.L2)
	origin := q.Encode([]float32{0, 0})
	near := q.Encode([]float32{1, 1})
	far := q.Encode([]float32{5, 5})

	dNear, err := q.Distance(origin, near)
	require.NoError(t, err)
	dFar, err := q.Distance(origin, far)
	require.NoError(t, err)
	assert.Less(t, dNear, dFar)
}

func TestLVQDistanceOrdersInnerProductByNegatedDot(t *testing.T) {
	q := NewLVQ(dtype.InnerProduct)
	query := q.Encode([]float32{1, 1})
	aligned := q.Encode([]float32{1, 1})
	orthogonal := q.Encode([]float32{1, -1})

	dAligned, err := q.Distance(query, aligned)
	require.NoError(t, err)
	dOrthogonal, err := q.Distance(query, orthogonal)
	require.NoError(t, err)
	assert.Less(t, dAligned, dOrthogonal)
}

func TestLVQDistanceRejectsMismatchedLength(t *testing.T) {
	q := NewLVQ(dtype.L2)
	a := q.Encode([]float32{1, 2, 3})
	b := q.Encode([]float32{1, 2})
	_, err := q.Distance(a, b)
	assert.Error(t, err)
}
