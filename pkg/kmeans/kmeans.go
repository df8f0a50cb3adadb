// Package kmeans implements mini-batch k-means training with empty-cluster
// splitting and a hierarchical two-level variant, used by the IVF index to
// train its centroids.
//
// Grounded on the teacher's internal/quantization/utils.go KMeansPlusPlus
// (k-means++ seeding, per-vector nearest-centroid loop), generalized to
// mini-batch accumulation, GEMM-based batched assignment via
// gonum.org/v1/gonum/mat, and the empty-cluster split/normalise rules
// neither example implements.
package kmeans

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/vsearch/svs/pkg/dtype"
)

// Params controls mini-batch k-means training.
type Params struct {
	NumCentroids  int
	MinibatchSize int
	NumIterations int
	Seed          int64
}

// DefaultParams mirrors the teacher's DefaultConfig pattern: sane defaults,
// backfilled onto any zero fields by Train and TrainHierarchical.
func DefaultParams() Params {
	return Params{
		NumCentroids:  256,
		MinibatchSize: 1024,
		NumIterations: 10,
		Seed:          1,
	}
}

func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.NumCentroids > 0 {
		d.NumCentroids = p.NumCentroids
	}
	if p.MinibatchSize > 0 {
		d.MinibatchSize = p.MinibatchSize
	}
	if p.NumIterations > 0 {
		d.NumIterations = p.NumIterations
	}
	if p.Seed != 0 {
		d.Seed = p.Seed
	}
	return d
}

// epsilon is the alternating-dimension perturbation applied to a duplicated
// centroid when repairing an empty cluster (spec: "perturbing by ±ε in
// alternating dimensions (ε = 1/1024)").
const epsilon = 1.0 / 1024.0

// Result is the outcome of training: the centroid matrix (rows = centroids,
// cols = dimensions) plus the metric it was trained under.
type Result struct {
	Centroids [][]float32
	Metric    dtype.Metric
}

// Train runs mini-batch k-means over vectors (already sampled down to the
// training set by the caller per training_fraction) and returns
// params.NumCentroids centroids.
func Train(vectors [][]float32, metric dtype.Metric, params Params) (Result, error) {
	params = params.withDefaults()
	if len(vectors) == 0 {
		return Result{}, fmt.Errorf("kmeans: empty training set")
	}
	if len(vectors) < params.NumCentroids {
		return Result{}, fmt.Errorf("kmeans: training set (%d) smaller than requested centroids (%d)", len(vectors), params.NumCentroids)
	}
	dim := len(vectors[0])
	r := rand.New(rand.NewSource(params.Seed))

	centroids := seedCentroids(vectors, params.NumCentroids, dim, r)
	sums := make([][]float64, params.NumCentroids)
	counts := make([]int, params.NumCentroids)
	for c := range sums {
		sums[c] = make([]float64, dim)
	}

	for iter := 0; iter < params.NumIterations; iter++ {
		for c := range sums {
			for d := range sums[c] {
				sums[c][d] = 0
			}
			counts[c] = 0
		}

		for start := 0; start < len(vectors); start += params.MinibatchSize {
			end := start + params.MinibatchSize
			if end > len(vectors) {
				end = len(vectors)
			}
			batch := vectors[start:end]
			assignments := AssignBatch(batch, centroids, metric)
			for i, c := range assignments {
				counts[c]++
				for d := 0; d < dim; d++ {
					sums[c][d] += float64(batch[i][d])
				}
			}
		}

		for c := 0; c < params.NumCentroids; c++ {
			if counts[c] == 0 {
				splitEmptyCentroid(centroids, c, r)
				continue
			}
			for d := 0; d < dim; d++ {
				centroids[c][d] = float32(sums[c][d] / float64(counts[c]))
			}
		}

		if metric == dtype.InnerProduct || metric == dtype.Cosine {
			for c := range centroids {
				normalizeInPlace(centroids[c])
			}
		}
	}

	return Result{Centroids: centroids, Metric: metric}, nil
}

// seedCentroids samples NumCentroids centroids from vectors without
// replacement (spec: "sampling trainset without replacement"), mirroring
// the teacher's KMeansPlusPlus first-centroid step generalized to plain
// sampling since mini-batch training does not keep the ++ weighting pass.
func seedCentroids(vectors [][]float32, k, dim int, r *rand.Rand) [][]float32 {
	perm := r.Perm(len(vectors))[:k]
	centroids := make([][]float32, k)
	for i, idx := range perm {
		centroids[i] = make([]float32, dim)
		copy(centroids[i], vectors[idx])
	}
	return centroids
}

// splitEmptyCentroid overwrites centroids[empty] with a copy of a donor
// centroid chosen uniformly at random from every other index, perturbed by
// ±epsilon in alternating dimensions. It is given no cluster counts, so it
// does not check whether the donor's own cluster is empty.
func splitEmptyCentroid(centroids [][]float32, empty int, r *rand.Rand) {
	donor := r.Intn(len(centroids))
	for donor == empty {
		donor = r.Intn(len(centroids))
	}
	dim := len(centroids[empty])
	sign := 1.0
	for d := 0; d < dim; d++ {
		centroids[empty][d] = centroids[donor][d] + float32(sign*epsilon)
		sign = -sign
	}
}

func normalizeInPlace(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(1.0 / math.Sqrt(sum))
	for i := range v {
		v[i] *= norm
	}
}

// AssignBatch assigns every vector in batch to its nearest centroid via a
// dense (batch × centroid) distance matrix multiply, per spec §4.7's
// explicit GEMM requirement. For L2 the squared-distance expansion
// ||x||^2 - 2<x,c> + ||c||^2 is used so the cross term alone needs a GEMM;
// for InnerProduct/Cosine the GEMM output is the similarity directly.
func AssignBatch(batch [][]float32, centroids [][]float32, metric dtype.Metric) []int {
	n := len(batch)
	k := len(centroids)
	if n == 0 || k == 0 {
		return nil
	}
	dim := len(batch[0])

	x := mat.NewDense(n, dim, nil)
	for i, v := range batch {
		for d := 0; d < dim; d++ {
			x.Set(i, d, float64(v[d]))
		}
	}
	c := mat.NewDense(k, dim, nil)
	for i, v := range centroids {
		for d := 0; d < dim; d++ {
			c.Set(i, d, float64(v[d]))
		}
	}

	var cross mat.Dense
	cross.Mul(x, c.T()) // (n x dim) * (dim x k) = n x k

	assignments := make([]int, n)
	for i := 0; i < n; i++ {
		best := 0
		var bestScore float64
		for j := 0; j < k; j++ {
			score := cross.At(i, j)
			switch metric {
			case dtype.InnerProduct, dtype.Cosine:
				// higher is better
				if j == 0 || score > bestScore {
					bestScore = score
					best = j
				}
			default: // L2: minimise ||x-c||^2 = ||x||^2 - 2<x,c> + ||c||^2
				d2 := -2*score + normSq(centroids[j])
				if j == 0 || d2 < bestScore {
					bestScore = d2
					best = j
				}
			}
		}
		assignments[i] = best
	}
	return assignments
}

func normSq(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return sum
}

