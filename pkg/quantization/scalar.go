// Package quantization implements global scalar quantization: every
// component of every vector is mapped through the same learned
// scale/offset pair into an int8 lane, giving a uniform 4x memory
// reduction with a distance computation that adapts to the metric the
// caller trained it for.
//
// Grounded directly on the teacher's internal/quantization/scalar.go
// (ScalarQuantizer: global min/max scan, scale/offset derivation,
// Quantize/Dequantize, DistanceInt8), extended with the per-metric
// distance adaptation spec §4.2's component table names explicitly
// ("metric adaptation") and the teacher's version does not have — the
// teacher only ever computes an approximate Euclidean distance on the
// quantized lanes regardless of what metric trained it.
package quantization

import (
	"fmt"
	"math"

	"github.com/vsearch/svs/pkg/dtype"
)

// Scalar is a trained global scalar quantizer: component values in
// [min, max] are linearly mapped onto the full int8 range [-127, 127].
type Scalar struct {
	min, max float32
	scale    float32
	offset   float32
	metric   dtype.Metric
}

// New returns an untrained quantizer bound to metric; call Train before
// Quantize/Distance.
func New(metric dtype.Metric) *Scalar {
	return &Scalar{metric: metric}
}

// Train computes the global scale/offset from a representative sample.
func (q *Scalar) Train(vectors [][]float32) error {
	if len(vectors) == 0 {
		return fmt.Errorf("quantization: no training data")
	}
	q.min = float32(math.MaxFloat32)
	q.max = -float32(math.MaxFloat32)
	for _, v := range vectors {
		for _, x := range v {
			if x < q.min {
				q.min = x
			}
			if x > q.max {
				q.max = x
			}
		}
	}
	valueRange := q.max - q.min
	if valueRange == 0 {
		valueRange = 1.0
	}
	q.scale = 254.0 / valueRange
	q.offset = -127.0 - q.min*q.scale
	return nil
}

// Quantize maps a float32 vector onto int8 lanes using the trained
// scale/offset, clamping to [-127, 127].
func (q *Scalar) Quantize(v []float32) []int8 {
	out := make([]int8, len(v))
	for i, x := range v {
		scaled := x*q.scale + q.offset
		if scaled < -127 {
			scaled = -127
		} else if scaled > 127 {
			scaled = 127
		}
		out[i] = int8(math.Round(float64(scaled)))
	}
	return out
}

// Dequantize reverses Quantize approximately.
func (q *Scalar) Dequantize(v []int8) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = (float32(x) - q.offset) / q.scale
	}
	return out
}

// Parameters exposes the trained scale/offset/min/max for save/load.
func (q *Scalar) Parameters() (min, max, scale, offset float32) {
	return q.min, q.max, q.scale, q.offset
}

// SetParameters restores a previously trained quantizer (used by the
// load path instead of re-running Train).
func (q *Scalar) SetParameters(min, max, scale, offset float32) {
	q.min, q.max, q.scale, q.offset = min, max, scale, offset
}

// Distance computes an ordering score between two quantized vectors that
// matches the semantics of q.metric: squared-Euclidean (ascending) for
// L2, and a dequantized dot product (negated so smaller is still better,
// matching pkg/distance.Metric.Compute's convention) for InnerProduct and
// Cosine.
func (q *Scalar) Distance(a, b []int8) float32 {
	switch q.metric {
	case dtype.InnerProduct, dtype.Cosine:
		var sum float32
		inv := 1.0 / q.scale
		for i := range a {
			da := (float32(a[i]) - q.offset) * inv
			db := (float32(b[i]) - q.offset) * inv
			sum += da * db
		}
		return -sum
	default:
		var sum int64
		for i := range a {
			d := int64(a[i]) - int64(b[i])
			sum += d * d
		}
		return float32(sum) / (q.scale * q.scale)
	}
}
