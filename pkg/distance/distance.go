// Package distance implements the metric functor abstraction described in
// the index machinery: a comparator plus an optional per-query
// preprocessing hook, so build and search code never need to know which
// concrete metric they are driving.
package distance

import (
	"fmt"
	"math"

	"github.com/vsearch/svs/pkg/dtype"
)

// PreparedQuery is the per-query state a Metric may hoist out of the inner
// search loop via FixArgument (e.g. a normalised copy of the query for
// Cosine).
type PreparedQuery struct {
	Vector []float32
}

// Func is a raw two-vector distance/similarity computation. Pre-defined
// metrics below are plain arithmetic loops; SIMD kernels are treated as an
// external collaborator (spec §1) and are out of scope here.
type Func func(x, y []float32) float32

// Metric is the functor the build and search code depend on. "Closer" is
// metric-specific: Less returns true when a is preferable to b under this
// metric's comparator (distance-ascending for L2, similarity-descending for
// InnerProduct/Cosine is modeled by negating the raw score so Less always
// means "a should sort before b").
type Metric struct {
	Tag    dtype.Metric
	raw    Func
	negate bool // true when the raw score is a similarity (higher is better)
}

// Get resolves a Metric functor by tag, mirroring the teacher's
// GetDistanceFn-by-name dispatch (semadb shard/distance/distance.go).
func Get(tag dtype.Metric) (Metric, error) {
	switch tag {
	case dtype.L2:
		return Metric{Tag: tag, raw: squaredEuclidean}, nil
	case dtype.InnerProduct:
		return Metric{Tag: tag, raw: dotProduct, negate: true}, nil
	case dtype.Cosine:
		return Metric{Tag: tag, raw: dotProduct, negate: true}, nil
	default:
		return Metric{}, fmt.Errorf("distance: unsupported metric tag %v", tag)
	}
}

// FixArgument hoists per-query state out of the search inner loop. Cosine
// normalises the query once; the other metrics pass it through unchanged.
func (m Metric) FixArgument(q []float32) PreparedQuery {
	if m.Tag != dtype.Cosine {
		return PreparedQuery{Vector: q}
	}
	return PreparedQuery{Vector: normalize(q)}
}

// Compute returns the ordering score between a prepared query and a
// candidate vector: smaller is always better regardless of metric.
func (m Metric) Compute(pq PreparedQuery, v []float32) float32 {
	score := m.raw(pq.Vector, v)
	if m.negate {
		return -score
	}
	return score
}

// Less implements the comparator: true if score a sorts before score b.
// Both scores must come from Compute (and are therefore "smaller is
// better" already), so Less is just a numeric less-than with id tie-break
// left to the caller (spec §4.3 ordering rule).
func (Metric) Less(a, b float32) bool { return a < b }

func squaredEuclidean(x, y []float32) float32 {
	var sum float32
	for i := range x {
		d := x[i] - y[i]
		sum += d * d
	}
	return sum
}

func dotProduct(x, y []float32) float32 {
	var sum float32
	for i := range x {
		sum += x[i] * y[i]
	}
	return sum
}

func normL2(v []float32) float32 {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	return float32(math.Sqrt(float64(sum)))
}

func normalize(v []float32) []float32 {
	n := normL2(v)
	if n == 0 {
		out := make([]float32, len(v))
		copy(out, v)
		return out
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / n
	}
	return out
}
