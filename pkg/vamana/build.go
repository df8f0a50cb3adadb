package vamana

import (
	"math/rand"
	"sync"

	"github.com/vsearch/svs/pkg/dataset"
	"github.com/vsearch/svs/pkg/distance"
	"github.com/vsearch/svs/pkg/graph"
	"github.com/vsearch/svs/pkg/pool"
	"github.com/vsearch/svs/pkg/searchbuf"
)

// minBatchCount and batchDivisor implement spec §4.5's batch sizing rule:
// "chunked into batches of ~max(40, N/4096) batches".
const (
	minBatchCount = 40
	batchDivisor  = 4096
	visitedBits   = 14
)

// Build constructs a static Vamana graph over d using metric, running the
// four-phase parallel batch loop of spec §4.5 and returning the graph
// plus the chosen medoid entry point.
func Build(d dataset.Dataset, metric distance.Metric, params BuildParameters, seed int64) (*graph.Contiguous, uint64, error) {
	params = params.withDefaults(metric)
	if err := params.validate(); err != nil {
		return nil, 0, err
	}
	n := d.Size()
	g := graph.NewContiguous(n, params.GraphMaxDegree)
	if n == 0 {
		return g, 0, nil
	}

	r := rand.New(rand.NewSource(seed))
	entry, err := FindMedoid(d, metric, r)
	if err != nil {
		return nil, 0, err
	}

	perm := r.Perm(int(n))
	batchCount := len(perm) / batchDivisor
	if batchCount < minBatchCount {
		batchCount = minBatchCount
	}
	if batchCount > len(perm) {
		batchCount = len(perm)
	}
	batchSize := (len(perm) + batchCount - 1) / batchCount

	p := pool.New(params.NumThreads)

	for start := 0; start < len(perm); start += batchSize {
		end := start + batchSize
		if end > len(perm) {
			end = len(perm)
		}
		if err := buildBatch(p, g, d, metric, params, entry, perm[start:end]); err != nil {
			return nil, 0, err
		}
	}

	return g, entry, nil
}

func buildBatch(p *pool.ThreadPool, g *graph.Contiguous, d dataset.Dataset, metric distance.Metric, params BuildParameters, entry uint64, batch []int) error {
	updates := make([][]uint64, len(batch))
	errs := make([]error, len(batch))

	// Phase 1: generate neighbours in parallel over the batch.
	runErr := p.DynamicFor(uint64(len(batch)), 1, func(tid int, rng pool.Range) {
		buf := searchbuf.NewStatic(params.WindowSize)
		filter := searchbuf.NewVisitedFilter(visitedBits)
		for i := rng.Start; i < rng.End; i++ {
			v := uint64(batch[i])
			if v == entry {
				continue
			}
			vec, err := d.Get(v)
			if err != nil {
				errs[i] = err
				continue
			}
			if err := GreedySearch(g, d, metric, []uint64{entry}, vec, buf, StaticInsert(buf), filter); err != nil {
				errs[i] = err
				continue
			}
			existing, err := g.Adjacency(v)
			if err != nil {
				errs[i] = err
				continue
			}
			candidates, err := unionExisting(d, metric, v, append([]searchbuf.Neighbor(nil), buf.Items()...), existing)
			if err != nil {
				errs[i] = err
				continue
			}
			if len(candidates) > params.MaxCandidatePoolSize {
				candidates = candidates[:params.MaxCandidatePoolSize]
			}
			pruned, err := RobustPruneWithStrategy(d, metric, v, candidates, params.Alpha, params.GraphMaxDegree, params.Strategy)
			if err != nil {
				errs[i] = err
				continue
			}
			updates[i] = pruned
		}
	})
	if runErr != nil {
		return runErr
	}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	// Phase 2: apply the staged adjacency updates.
	for i, v := range batch {
		if uint64(v) == entry {
			continue
		}
		if err := g.SetAdjacency(uint64(v), updates[i]); err != nil {
			return err
		}
	}

	// Phase 3: add reverse edges under each target's per-vertex lock,
	// collecting every target whose degree overflowed GraphMaxDegree.
	var touched []uint64
	var touchedMu sync.Mutex
	runErr = p.DynamicFor(uint64(len(batch)), 1, func(tid int, rng pool.Range) {
		var local []uint64
		for i := rng.Start; i < rng.End; i++ {
			v := uint64(batch[i])
			for _, u := range updates[i] {
				g.Lock(u)
				deg := g.AddNeighbourLocked(u, v)
				g.Unlock(u)
				if deg > params.GraphMaxDegree {
					local = append(local, u)
				}
			}
		}
		if len(local) > 0 {
			touchedMu.Lock()
			touched = append(touched, local...)
			touchedMu.Unlock()
		}
	})
	if runErr != nil {
		return runErr
	}

	// Phase 4: re-prune every overflowed vertex back down to PruneTo.
	touched = dedupUint64(touched)
	if len(touched) == 0 {
		return nil
	}
	overflowErrs := make([]error, len(touched))
	runErr = p.DynamicFor(uint64(len(touched)), 1, func(tid int, rng pool.Range) {
		for i := rng.Start; i < rng.End; i++ {
			v := touched[i]
			adj, err := g.Adjacency(v)
			if err != nil {
				overflowErrs[i] = err
				continue
			}
			candidates, err := scoreNeighbours(d, metric, v, append([]uint64(nil), adj...))
			if err != nil {
				overflowErrs[i] = err
				continue
			}
			pruned, err := RobustPruneWithStrategy(d, metric, v, candidates, params.Alpha, params.PruneTo, params.Strategy)
			if err != nil {
				overflowErrs[i] = err
				continue
			}
			g.Lock(v)
			_ = g.SetAdjacency(v, pruned)
			g.Unlock(v)
		}
	})
	if runErr != nil {
		return runErr
	}
	for _, err := range overflowErrs {
		if err != nil {
			return err
		}
	}
	return nil
}
