package quantization

import (
	"fmt"
	"math"

	"github.com/vsearch/svs/pkg/dtype"
)

// LVQ implements locally-adaptive vector quantization: unlike Scalar, which
// derives one scale/offset pair from the whole dataset, LVQ fits each
// vector's scale and bias from that vector's own component range. This
// trades a per-vector storage overhead (two extra float32s) for
// reconstruction error that does not grow with how far a vector's range
// sits from the dataset-wide one.
//
// Grounded on _examples/original_source/include/svs/quantization/lvq/
// encoding.h: the per-vector scale/bias pair (there stored as a
// svs::Float16 "scaling_t", widened here to float32 since nothing else in
// this package stores a narrower float) is that file's central idea. Its
// sub-byte bit-packing machinery (compute_storage, IndexRange) is not
// carried over — this package only ever needs 8-bit codes, so the packing
// math that exists to support nbits < 8 has nothing to serve here.
type LVQ struct {
	metric dtype.Metric
}

// NewLVQ returns an LVQ quantizer bound to metric.
func NewLVQ(metric dtype.Metric) *LVQ {
	return &LVQ{metric: metric}
}

// Vector is one LVQ-encoded vector: its int8 codes plus the scale/bias
// pair Encode derived from that vector alone.
type Vector struct {
	Codes []int8
	Scale float32
	Bias  float32
}

// Encode quantizes v using a scale/bias pair derived from v's own min/max,
// mapping [min, max] onto [-127, 127].
func (q *LVQ) Encode(v []float32) Vector {
	min, max := v[0], v[0]
	for _, x := range v[1:] {
		if x < min {
			min = x
		}
		if x > max {
			max = x
		}
	}
	valueRange := max - min
	if valueRange == 0 {
		valueRange = 1.0
	}
	scale := 254.0 / valueRange
	bias := -127.0 - min*scale

	codes := make([]int8, len(v))
	for i, x := range v {
		scaled := x*scale + bias
		if scaled < -127 {
			scaled = -127
		} else if scaled > 127 {
			scaled = 127
		}
		codes[i] = int8(math.Round(float64(scaled)))
	}
	return Vector{Codes: codes, Scale: scale, Bias: bias}
}

// Decode reverses Encode approximately, using e's own scale/bias.
func (q *LVQ) Decode(e Vector) []float32 {
	out := make([]float32, len(e.Codes))
	for i, c := range e.Codes {
		out[i] = (float32(c) - e.Bias) / e.Scale
	}
	return out
}

// Distance computes an ordering score between two LVQ-encoded vectors,
// dequantizing each with its own scale/bias before applying the same
// per-metric adaptation Scalar.Distance uses (squared-Euclidean for L2,
// negated dot product for InnerProduct/Cosine) — unlike Scalar, a and b may
// come from different scale/bias pairs, so the dequantization can't be
// folded into a single shared constant the way Scalar's can.
func (q *LVQ) Distance(a, b Vector) (float32, error) {
	if len(a.Codes) != len(b.Codes) {
		return 0, fmt.Errorf("quantization: lvq vectors have mismatched length %d != %d", len(a.Codes), len(b.Codes))
	}
	switch q.metric {
	case dtype.InnerProduct, dtype.Cosine:
		var sum float32
		for i := range a.Codes {
			da := (float32(a.Codes[i]) - a.Bias) / a.Scale
			db := (float32(b.Codes[i]) - b.Bias) / b.Scale
			sum += da * db
		}
		return -sum, nil
	default:
		var sum float32
		for i := range a.Codes {
			da := (float32(a.Codes[i]) - a.Bias) / a.Scale
			db := (float32(b.Codes[i]) - b.Bias) / b.Scale
			d := da - db
			sum += d * d
		}
		return sum, nil
	}
}
