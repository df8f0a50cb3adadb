package ivf

import (
	"gonum.org/v1/gonum/mat"

	"github.com/vsearch/svs/pkg/dtype"
)

// centroidScores returns, for each query row, an ordering score (smaller
// is always better, matching pkg/distance.Metric.Compute's convention)
// against every centroid, computed via a single dense matrix multiply
// (spec §4.7's GEMM requirement for query x centroid distance) rather
// than a per-query, per-centroid loop.
func centroidScores(queries [][]float32, centroids [][]float32, metric dtype.Metric) [][]float32 {
	n := len(queries)
	k := len(centroids)
	if n == 0 || k == 0 {
		return nil
	}
	dim := len(queries[0])

	q := mat.NewDense(n, dim, nil)
	for i, v := range queries {
		for d := 0; d < dim; d++ {
			q.Set(i, d, float64(v[d]))
		}
	}
	c := mat.NewDense(k, dim, nil)
	for i, v := range centroids {
		for d := 0; d < dim; d++ {
			c.Set(i, d, float64(v[d]))
		}
	}

	var cross mat.Dense
	cross.Mul(q, c.T()) // (n x dim) * (dim x k) = n x k

	centroidNormSq := make([]float64, k)
	if metric != dtype.InnerProduct && metric != dtype.Cosine {
		for j, v := range centroids {
			centroidNormSq[j] = normSq64(v)
		}
	}

	out := make([][]float32, n)
	for i := 0; i < n; i++ {
		row := make([]float32, k)
		for j := 0; j < k; j++ {
			score := cross.At(i, j)
			switch metric {
			case dtype.InnerProduct, dtype.Cosine:
				row[j] = float32(-score) // similarity: negate so smaller is better
			default:
				row[j] = float32(-2*score + centroidNormSq[j])
			}
		}
		out[i] = row
	}
	return out
}

func normSq64(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return sum
}
