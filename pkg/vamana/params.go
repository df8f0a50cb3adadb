// Package vamana implements the Vamana graph index: greedy search,
// robust-prune (progressive and iterative strategies), a parallel static
// build, and a dynamic variant supporting insert/delete/consolidate/
// compact over blocked storage.
//
// Grounded on the teacher's pkg/diskann/build.go (medoid selection, greedy
// search, selectNeighbors occlusion pruning, addReverseEdge) for the
// algorithm shape, and on semadb's shard/index/vamana/{search,prune,
// insert}.go for the concurrency and delete/consolidate discipline —
// semadb is the only example in the pack that implements delete and
// consolidate at all.
package vamana

import (
	"fmt"

	"github.com/vsearch/svs/pkg/distance"
	"github.com/vsearch/svs/pkg/dtype"
)

// PruneStrategy selects how RobustPrune behaves when the accepted result
// set ends up smaller than R (spec §4.4).
type PruneStrategy int

const (
	// Auto is the zero value: BuildParameters.withDefaults resolves it to
	// DefaultPruneStrategy(metric) rather than treating it as an explicit
	// choice, since Progressive/Iterative must both be distinguishable
	// from "caller didn't set this".
	Auto PruneStrategy = iota
	// Progressive applies alpha once, accepting whatever result size
	// comes out. Default for L2.
	Progressive
	// Iterative retries with a progressively relaxed alpha until the
	// result reaches min(R, len(candidates)) or a retry cap is hit.
	// Default for InnerProduct/Cosine.
	Iterative
)

// DefaultPruneStrategy maps a metric to its default strategy (spec §4.4:
// "progressive (L2 default)... iterative (inner-product/cosine default)").
func DefaultPruneStrategy(metric dtype.Metric) PruneStrategy {
	switch metric {
	case dtype.InnerProduct, dtype.Cosine:
		return Iterative
	default:
		return Progressive
	}
}

// BuildParameters controls static index construction (spec §4.5).
type BuildParameters struct {
	Alpha                float32
	GraphMaxDegree       int
	WindowSize           int
	MaxCandidatePoolSize int
	PruneTo              int
	Strategy             PruneStrategy
	NumThreads           int
}

// DefaultBuildParameters mirrors the teacher's DefaultConfig pattern.
func DefaultBuildParameters(metric dtype.Metric) BuildParameters {
	return BuildParameters{
		Alpha:                1.2,
		GraphMaxDegree:       64,
		WindowSize:           100,
		MaxCandidatePoolSize: 750,
		PruneTo:              64,
		Strategy:             DefaultPruneStrategy(metric),
	}
}

func (p BuildParameters) withDefaults(metric distance.Metric) BuildParameters {
	d := DefaultBuildParameters(metric.Tag)
	if p.Alpha > 0 {
		d.Alpha = p.Alpha
	}
	if p.GraphMaxDegree > 0 {
		d.GraphMaxDegree = p.GraphMaxDegree
	}
	if p.WindowSize > 0 {
		d.WindowSize = p.WindowSize
	}
	if p.MaxCandidatePoolSize > 0 {
		d.MaxCandidatePoolSize = p.MaxCandidatePoolSize
	}
	if p.PruneTo > 0 {
		d.PruneTo = p.PruneTo
	} else if d.PruneTo > d.GraphMaxDegree {
		d.PruneTo = d.GraphMaxDegree
	}
	if p.Strategy != Auto {
		d.Strategy = p.Strategy
	}
	if p.NumThreads > 0 {
		d.NumThreads = p.NumThreads
	}
	return d
}

func (p BuildParameters) validate() error {
	if p.Alpha < 1.0 {
		return fmt.Errorf("vamana: alpha must be >= 1.0, got %f", p.Alpha)
	}
	if p.PruneTo > p.GraphMaxDegree {
		return fmt.Errorf("vamana: prune_to (%d) must be <= graph_max_degree (%d)", p.PruneTo, p.GraphMaxDegree)
	}
	return nil
}

// SearchParameters controls a single greedy-search call (spec §4.3).
type SearchParameters struct {
	WindowSize  int // W, capacity of the search buffer
	VisitedBits uint
	K           int
}

func DefaultSearchParameters() SearchParameters {
	return SearchParameters{WindowSize: 100, VisitedBits: 14, K: 10}
}

func (p SearchParameters) withDefaults() SearchParameters {
	d := DefaultSearchParameters()
	if p.WindowSize > 0 {
		d.WindowSize = p.WindowSize
	}
	if p.VisitedBits > 0 {
		d.VisitedBits = p.VisitedBits
	}
	if p.K > 0 {
		d.K = p.K
	}
	return d
}
