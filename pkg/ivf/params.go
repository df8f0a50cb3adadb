// Package ivf implements the inverted-file index: mini-batch k-means
// training (delegated to pkg/kmeans, including the hierarchical
// two-level variant), sparse and dense cluster storage, and probe-based
// search with optional quantized reranking.
//
// Grounded on the teacher's pkg/ivf/index.go (IVFFlat: inverted lists,
// findNearestCentroid(s), Train/Add/Search shape) generalized to the
// hierarchical training, GEMM-batched assignment, and quantized-rerank
// path the teacher's brute per-vector distance loops do not have.
package ivf

import "math"

// Layout selects how a cluster's member vectors are stored (spec §4.7:
// "sparse (same-dim data with a local-to-global id table) and dense
// (contiguous per-cluster datasets) layouts").
type Layout int

const (
	// Sparse clusters store each member's quantized code in its own
	// separately allocated slice, alongside the member's global id.
	Sparse Layout = iota
	// Dense clusters store all members' quantized codes back to back in
	// one contiguous, growing per-cluster buffer, alongside their global
	// ids.
	Dense
)

// BuildParameters controls training (spec §4.7 IVFBuildParameters).
type BuildParameters struct {
	NumCentroids               int
	MinibatchSize              int
	NumIterations              int
	IsHierarchical             bool
	TrainingFraction           float64
	HierarchicalLevel1Clusters int
	Seed                       int64
	Layout                     Layout
}

func DefaultBuildParameters() BuildParameters {
	return BuildParameters{
		NumCentroids:     256,
		MinibatchSize:    1024,
		NumIterations:    10,
		TrainingFraction: 1.0,
		Seed:             1,
	}
}

func (p BuildParameters) withDefaults() BuildParameters {
	d := DefaultBuildParameters()
	if p.NumCentroids > 0 {
		d.NumCentroids = p.NumCentroids
	}
	if p.MinibatchSize > 0 {
		d.MinibatchSize = p.MinibatchSize
	}
	if p.NumIterations > 0 {
		d.NumIterations = p.NumIterations
	}
	if p.TrainingFraction > 0 {
		d.TrainingFraction = p.TrainingFraction
	}
	if p.HierarchicalLevel1Clusters > 0 {
		d.HierarchicalLevel1Clusters = p.HierarchicalLevel1Clusters
	} else if d.HierarchicalLevel1Clusters == 0 {
		d.HierarchicalLevel1Clusters = int(math.Round(math.Sqrt(float64(d.NumCentroids))))
	}
	if p.Seed != 0 {
		d.Seed = p.Seed
	}
	d.IsHierarchical = p.IsHierarchical
	d.Layout = p.Layout
	return d
}

// SearchParameters controls probe search (spec §4.7 IVFSearchParameters).
type SearchParameters struct {
	NProbes  int
	KReorder float64 // >= 1.0
	K        int
}

func DefaultSearchParameters() SearchParameters {
	return SearchParameters{NProbes: 8, KReorder: 1.0, K: 10}
}

func (p SearchParameters) withDefaults() SearchParameters {
	d := DefaultSearchParameters()
	if p.NProbes > 0 {
		d.NProbes = p.NProbes
	}
	if p.KReorder >= 1.0 {
		d.KReorder = p.KReorder
	}
	if p.K > 0 {
		d.K = p.K
	}
	return d
}
