// Package manager exposes the uniform per-index Search API (spec §6)
// over the Vamana, IVF and Flat index families: batched search, thread
// count getters/setters, and index-specific search-parameter accessors,
// each backed by a per-manager structured logger.
//
// Grounded on the teacher's diskann.Index method surface (Search, Size,
// Dimension unified behind one type across what in this repo are three
// separate packages) and on semadb's IndexVamana constructor pattern
// (distance resolved once at construction, zerolog logger scoped per
// instance via log.With().Str("component", ...)).
package manager

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vsearch/svs/pkg/flat"
	"github.com/vsearch/svs/pkg/ivf"
	"github.com/vsearch/svs/pkg/vamana"
)

// Kind tags which concrete index family a Manager wraps.
type Kind int

const (
	VamanaStatic Kind = iota
	VamanaDynamic
	IVF
	Flat
)

// searchable is the common surface every wrapped index satisfies: a
// batch-friendly single-query search plus its current size/dimension.
type searchable interface {
	search(query []float32, k int) ([]Result, error)
	size() uint64
	dimension() int
}

// Result is one search hit, uniform across every wrapped index family.
type Result struct {
	Id       uint64
	Distance float32
}

// Manager wraps exactly one trained index and exposes the spec §6
// uniform Search API (batched search, thread-count accessors,
// index-specific search-parameter accessors) over it.
type Manager struct {
	kind       Kind
	index      searchable
	numThreads int
	logger     zerolog.Logger

	vamanaSearch vamana.SearchParameters
	ivfSearch    ivf.SearchParameters
}

func newManager(kind Kind, idx searchable, numThreads int) *Manager {
	return &Manager{
		kind:       kind,
		index:      idx,
		numThreads: numThreads,
		logger:     log.With().Str("component", "manager").Logger(),
	}
}

// NewVamanaStatic wraps a built static Vamana index.
func NewVamanaStatic(idx *vamana.StaticIndex, numThreads int) *Manager {
	m := newManager(VamanaStatic, staticVamanaAdapter{idx}, numThreads)
	m.vamanaSearch = vamana.DefaultSearchParameters()
	return m
}

// NewVamanaDynamic wraps a dynamic Vamana index.
func NewVamanaDynamic(idx *vamana.Dynamic, numThreads int) *Manager {
	m := newManager(VamanaDynamic, dynamicVamanaAdapter{idx}, numThreads)
	m.vamanaSearch = vamana.DefaultSearchParameters()
	return m
}

// NewIVF wraps a trained IVF index.
func NewIVF(idx *ivf.Index, numThreads int) *Manager {
	m := newManager(IVF, ivfAdapter{idx}, numThreads)
	m.ivfSearch = ivf.DefaultSearchParameters()
	return m
}

// NewFlat wraps a brute-force reference index.
func NewFlat(idx *flat.Index, numThreads int) *Manager {
	return newManager(Flat, flatAdapter{idx}, numThreads)
}

// Kind reports which index family this manager wraps.
func (m *Manager) Kind() Kind { return m.kind }

// NumThreads returns the thread count Search batches fan out across.
func (m *Manager) NumThreads() int { return m.numThreads }

// SetNumThreads updates the thread count used by subsequent Search calls.
func (m *Manager) SetNumThreads(n int) {
	if n <= 0 {
		n = 1
	}
	m.numThreads = n
}

// VamanaSearchParameters returns the current Vamana search parameters.
// Only valid for VamanaStatic/VamanaDynamic managers.
func (m *Manager) VamanaSearchParameters() (vamana.SearchParameters, error) {
	if m.kind != VamanaStatic && m.kind != VamanaDynamic {
		return vamana.SearchParameters{}, fmt.Errorf("manager: not a vamana index")
	}
	return m.vamanaSearch, nil
}

// SetVamanaSearchParameters updates the Vamana search-window-size used by
// subsequent Search calls.
func (m *Manager) SetVamanaSearchParameters(p vamana.SearchParameters) error {
	if m.kind != VamanaStatic && m.kind != VamanaDynamic {
		return fmt.Errorf("manager: not a vamana index")
	}
	m.vamanaSearch = p
	return nil
}

// IVFSearchParameters returns the current n_probes/k_reorder parameters.
// Only valid for IVF managers.
func (m *Manager) IVFSearchParameters() (ivf.SearchParameters, error) {
	if m.kind != IVF {
		return ivf.SearchParameters{}, fmt.Errorf("manager: not an ivf index")
	}
	return m.ivfSearch, nil
}

// SetIVFSearchParameters updates n_probes/k_reorder used by subsequent
// Search calls.
func (m *Manager) SetIVFSearchParameters(p ivf.SearchParameters) error {
	if m.kind != IVF {
		return fmt.Errorf("manager: not an ivf index")
	}
	m.ivfSearch = p
	return nil
}

// Size returns the number of vectors currently in the wrapped index.
func (m *Manager) Size() uint64 { return m.index.size() }

// Dimension returns the wrapped index's vector dimensionality.
func (m *Manager) Dimension() int { return m.index.dimension() }

// Search answers one query against the wrapped index using its current
// search parameters, returning up to k hits ordered nearest-first.
func (m *Manager) Search(query []float32, k int) ([]Result, error) {
	if len(query) != m.index.dimension() {
		return nil, fmt.Errorf("manager: query dimension %d does not match index dimension %d", len(query), m.index.dimension())
	}
	return m.index.search(query, k)
}

// SearchBatch answers m.numThreads-parallel queries, returning one result
// slice per query in input order (spec §6's batched search signature).
// A query that errors yields a nil result slice at its position; the
// first error encountered is also returned.
func (m *Manager) SearchBatch(queries [][]float32, k int) ([][]Result, error) {
	results := make([][]Result, len(queries))
	errs := make([]error, len(queries))

	threads := m.numThreads
	if threads <= 0 {
		threads = 1
	}
	if threads > len(queries) {
		threads = len(queries)
	}
	if threads <= 1 {
		for i, q := range queries {
			results[i], errs[i] = m.Search(q, k)
		}
	} else {
		work := make(chan int, len(queries))
		for i := range queries {
			work <- i
		}
		close(work)
		done := make(chan struct{}, threads)
		for t := 0; t < threads; t++ {
			go func() {
				for i := range work {
					results[i], errs[i] = m.Search(queries[i], k)
				}
				done <- struct{}{}
			}()
		}
		for t := 0; t < threads; t++ {
			<-done
		}
	}

	for _, err := range errs {
		if err != nil {
			m.logger.Debug().Err(err).Msg("search batch encountered a failing query")
			return results, err
		}
	}
	return results, nil
}

// Stats summarizes the wrapped index for observability (SPEC_FULL §5
// "index statistics" supplement).
type Stats struct {
	Kind      Kind
	Size      uint64
	Dimension int
}

// Stats reports the wrapped index's current size/dimension.
func (m *Manager) Stats() Stats {
	return Stats{Kind: m.kind, Size: m.index.size(), Dimension: m.index.dimension()}
}
