package manager

import (
	"github.com/vsearch/svs/pkg/flat"
	"github.com/vsearch/svs/pkg/ivf"
	"github.com/vsearch/svs/pkg/vamana"
)

// The adapters below translate each index package's own Search shape
// into the manager's common searchable interface. The current
// search-parameter struct lives on *Manager (vamanaSearch/ivfSearch), so
// each adapter's search method takes it as an argument rather than
// caching a copy that could go stale after SetVamanaSearchParameters /
// SetIVFSearchParameters.

type staticVamanaAdapter struct{ idx *vamana.StaticIndex }

func (a staticVamanaAdapter) size() uint64    { return a.idx.Dataset.Size() }
func (a staticVamanaAdapter) dimension() int  { return a.idx.Dataset.Dimensions() }
func (a staticVamanaAdapter) search(query []float32, k int) ([]Result, error) {
	params := vamana.DefaultSearchParameters()
	params.K = k
	results, err := a.idx.Search(query, params)
	if err != nil {
		return nil, err
	}
	return fromVamana(results), nil
}

type dynamicVamanaAdapter struct{ idx *vamana.Dynamic }

func (a dynamicVamanaAdapter) size() uint64 { return a.idx.Size() }
func (a dynamicVamanaAdapter) dimension() int {
	return a.idx.Dimensions()
}
func (a dynamicVamanaAdapter) search(query []float32, k int) ([]Result, error) {
	params := vamana.DefaultSearchParameters()
	params.K = k
	results, err := a.idx.Search(query, params)
	if err != nil {
		return nil, err
	}
	return fromVamana(results), nil
}

type ivfAdapter struct{ idx *ivf.Index }

func (a ivfAdapter) size() uint64   { return a.idx.Size() }
func (a ivfAdapter) dimension() int { return a.idx.Dimension() }
func (a ivfAdapter) search(query []float32, k int) ([]Result, error) {
	params := ivf.DefaultSearchParameters()
	params.K = k
	results, err := a.idx.Search(query, params)
	if err != nil {
		return nil, err
	}
	return fromIVF(results), nil
}

type flatAdapter struct{ idx *flat.Index }

func (a flatAdapter) size() uint64   { return a.idx.Dataset.Size() }
func (a flatAdapter) dimension() int { return a.idx.Dataset.Dimensions() }
func (a flatAdapter) search(query []float32, k int) ([]Result, error) {
	results, err := a.idx.Search(query, k)
	if err != nil {
		return nil, err
	}
	out := make([]Result, len(results))
	for i, r := range results {
		out[i] = Result{Id: r.Id, Distance: r.Distance}
	}
	return out, nil
}

func fromVamana(results []vamana.Result) []Result {
	out := make([]Result, len(results))
	for i, r := range results {
		out[i] = Result{Id: r.Id, Distance: r.Distance}
	}
	return out
}

func fromIVF(results []ivf.Result) []Result {
	out := make([]Result, len(results))
	for i, r := range results {
		out[i] = Result{Id: r.Id, Distance: r.Distance}
	}
	return out
}
