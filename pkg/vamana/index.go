package vamana

import (
	"fmt"
	"sort"

	"github.com/vsearch/svs/pkg/dataset"
	"github.com/vsearch/svs/pkg/distance"
	"github.com/vsearch/svs/pkg/graph"
	"github.com/vsearch/svs/pkg/searchbuf"
)

// StaticIndex is a built, read-only Vamana graph plus the dataset and
// metric it was built against. Search is a thin wrapper around
// GreedySearch with a Static buffer (spec §4.3).
type StaticIndex struct {
	Dataset dataset.Dataset
	Graph   *graph.Contiguous
	Metric  distance.Metric
	Entry   uint64
	// Params holds the build parameters Build resolved (defaults applied),
	// kept alongside the result so Save can persist them into config/
	// (spec §6) without the caller having to remember what it passed in.
	Params BuildParameters
}

// BuildStatic trains a new StaticIndex from scratch.
func BuildStatic(d dataset.Dataset, metric distance.Metric, params BuildParameters, seed int64) (*StaticIndex, error) {
	g, entry, err := Build(d, metric, params, seed)
	if err != nil {
		return nil, err
	}
	return &StaticIndex{Dataset: d, Graph: g, Metric: metric, Entry: entry, Params: params.withDefaults(metric)}, nil
}

// Result is a single search hit.
type Result struct {
	Id       uint64
	Distance float32
}

// Search runs greedy graph search from the index's fixed entry point and
// returns the top params.K results (spec §4.3 step 3).
func (idx *StaticIndex) Search(query []float32, params SearchParameters) ([]Result, error) {
	params = params.withDefaults()
	if idx.Graph.Size() == 0 {
		return nil, fmt.Errorf("vamana: search on empty index")
	}
	buf := searchbuf.NewStatic(params.WindowSize)
	filter := searchbuf.NewVisitedFilter(params.VisitedBits)

	if err := GreedySearch(idx.Graph, idx.Dataset, idx.Metric, []uint64{idx.Entry}, query, buf, StaticInsert(buf), filter); err != nil {
		return nil, err
	}

	items := buf.TopK(params.K)
	sort.Slice(items, func(i, j int) bool { return items[i].Distance < items[j].Distance })
	out := make([]Result, len(items))
	for i, n := range items {
		out[i] = Result{Id: n.Id, Distance: n.Distance}
	}
	return out, nil
}
