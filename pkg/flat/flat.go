// Package flat implements a brute-force exact index: every search scans
// the whole dataset. It is kept strictly as a reference/reranker index
// (Non-goal (a): "brute-force Flat is reference-only") — ground truth for
// recall tests and an exact-distance reranker over another index's
// candidate set, never the primary index in this library.
//
// Grounded on the teacher's pkg/diskann/search.go (*Index).rerank: an
// exhaustive recompute-and-sort-top-k over a candidate list, generalized
// here into a standalone index whose Search scans every id instead of a
// caller-supplied candidate subset.
package flat

import (
	"fmt"
	"sort"

	"github.com/vsearch/svs/pkg/dataset"
	"github.com/vsearch/svs/pkg/distance"
	"github.com/vsearch/svs/pkg/dtype"
)

// Index is an exhaustive, exact-distance index over a Dataset.
type Index struct {
	Dataset dataset.Dataset
	Metric  distance.Metric
}

// New wraps d with an exact-search index under the given metric tag.
func New(d dataset.Dataset, metricTag dtype.Metric) (*Index, error) {
	metric, err := distance.Get(metricTag)
	if err != nil {
		return nil, fmt.Errorf("flat: %w", err)
	}
	return &Index{Dataset: d, Metric: metric}, nil
}

// Result is one search hit.
type Result struct {
	Id       uint64
	Distance float32
}

// Search scans every row in the dataset and returns the k nearest,
// ascending by distance (spec's reference/reranker semantics).
func (idx *Index) Search(query []float32, k int) ([]Result, error) {
	pq := idx.Metric.FixArgument(query)
	n := idx.Dataset.Size()
	out := make([]Result, 0, n)
	for id := uint64(0); id < n; id++ {
		v, err := idx.Dataset.Get(id)
		if err != nil {
			return nil, fmt.Errorf("flat: reading row %d: %w", id, err)
		}
		out = append(out, Result{Id: id, Distance: idx.Metric.Compute(pq, v)})
	}
	sort.Slice(out, func(i, j int) bool { return idx.Metric.Less(out[i].Distance, out[j].Distance) })
	if k < len(out) {
		out = out[:k]
	}
	return out, nil
}

// Rerank recomputes exact distances for a candidate id subset (as
// produced by an approximate index's search) and returns the k nearest,
// ascending by distance — the teacher's rerank shape generalized to any
// Dataset-backed index.
func (idx *Index) Rerank(query []float32, candidates []uint64, k int) ([]Result, error) {
	pq := idx.Metric.FixArgument(query)
	out := make([]Result, 0, len(candidates))
	for _, id := range candidates {
		v, err := idx.Dataset.Get(id)
		if err != nil {
			continue
		}
		out = append(out, Result{Id: id, Distance: idx.Metric.Compute(pq, v)})
	}
	sort.Slice(out, func(i, j int) bool { return idx.Metric.Less(out[i].Distance, out[j].Distance) })
	if k < len(out) {
		out = out[:k]
	}
	return out, nil
}
