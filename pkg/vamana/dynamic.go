package vamana

import (
	"fmt"
	"sync"

	"github.com/RoaringBitmap/roaring/roaring64"

	"github.com/vsearch/svs/pkg/dataset"
	"github.com/vsearch/svs/pkg/distance"
	"github.com/vsearch/svs/pkg/graph"
	"github.com/vsearch/svs/pkg/searchbuf"
)

// noSlot marks an internal_to_external entry as unused (spec's
// Vec<Option<Id>>, represented here as a slice with an explicit sentinel
// rather than a pointer/interface, matching the teacher's preference for
// flat typed slices over boxed Option types).
const noSlot = ^uint64(0)

// Dynamic is the insert/delete/consolidate/compact-capable Vamana index
// backed by blocked storage, per spec §4.6. Grounded on semadb's
// shard/index/vamana/{prune,insert}.go for the delete/consolidate
// discipline (pruneDeleteNeighbour/removeInboundEdges), generalized onto
// this repo's Blocked dataset/graph pair.
type Dynamic struct {
	mu sync.Mutex

	dataset *dataset.Blocked
	graph   *graph.Blocked
	metric  distance.Metric
	params  BuildParameters

	hasEntry bool
	entry    uint64

	externalToInternal map[uint64]uint64
	internalToExternal []uint64
	deleted            *roaring64.Bitmap
	freeSlots          []uint64
}

// NewDynamic allocates an empty dynamic index over vectors of dimension
// dim under metric.
func NewDynamic(dim int, metric distance.Metric, params BuildParameters) *Dynamic {
	params = params.withDefaults(metric)
	return &Dynamic{
		dataset:            dataset.NewBlocked(0, dim, 0),
		graph:              graph.NewBlocked(params.GraphMaxDegree, 0),
		metric:             metric,
		params:             params,
		externalToInternal: make(map[uint64]uint64),
		deleted:            roaring64.New(),
	}
}

// Size returns the number of live (non-deleted) external ids.
func (idx *Dynamic) Size() uint64 {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return uint64(len(idx.externalToInternal))
}

// Dimensions returns the index's configured vector dimensionality.
func (idx *Dynamic) Dimensions() int {
	return idx.dataset.Dimensions()
}

func (idx *Dynamic) isDeleted(slot uint64) bool {
	return idx.deleted.Contains(slot)
}

// Insert adds a new vector under externalID (spec §4.6 insert): rejects a
// duplicate id, claims a slot from the free list or by appending, runs
// greedy-search + robust-prune from the current entry point, writes the
// new adjacency list, and adds reverse edges with overflow re-prune as in
// Build.
func (idx *Dynamic) Insert(externalID uint64, vector []float32) error {
	idx.mu.Lock()
	if _, dup := idx.externalToInternal[externalID]; dup {
		idx.mu.Unlock()
		return fmt.Errorf("vamana: external id %d already present", externalID)
	}

	var slot uint64
	if n := len(idx.freeSlots); n > 0 {
		slot = idx.freeSlots[n-1]
		idx.freeSlots = idx.freeSlots[:n-1]
		idx.internalToExternal[slot] = externalID
	} else {
		var err error
		slot, err = idx.dataset.Append(vector)
		if err != nil {
			idx.mu.Unlock()
			return err
		}
		idx.graph.Resize(idx.dataset.Size())
		idx.internalToExternal = append(idx.internalToExternal, externalID)
	}
	idx.externalToInternal[externalID] = slot

	firstInsert := !idx.hasEntry
	if firstInsert {
		idx.hasEntry = true
		idx.entry = slot
	}
	entry := idx.entry
	idx.mu.Unlock()

	if err := idx.dataset.Set(slot, vector); err != nil {
		return err
	}
	if firstInsert {
		return nil
	}

	buf := searchbuf.NewStatic(idx.params.WindowSize)
	filter := searchbuf.NewVisitedFilter(visitedBits)
	if err := GreedySearch(idx.graph, idx.dataset, idx.metric, []uint64{entry}, vector, buf, StaticInsert(buf), filter); err != nil {
		return err
	}
	candidates := append([]searchbuf.Neighbor(nil), buf.Items()...)
	if len(candidates) > idx.params.MaxCandidatePoolSize {
		candidates = candidates[:idx.params.MaxCandidatePoolSize]
	}
	pruned, err := RobustPruneWithStrategy(idx.dataset, idx.metric, slot, candidates, idx.params.Alpha, idx.params.GraphMaxDegree, idx.params.Strategy)
	if err != nil {
		return err
	}
	if err := idx.graph.SetAdjacency(slot, pruned); err != nil {
		return err
	}

	var touched []uint64
	for _, u := range pruned {
		idx.graph.Lock(u)
		deg := idx.graph.AddNeighbourLocked(u, slot)
		idx.graph.Unlock(u)
		if deg > idx.params.GraphMaxDegree {
			touched = append(touched, u)
		}
	}
	for _, v := range touched {
		if err := idx.repruneVertex(v); err != nil {
			return err
		}
	}
	return nil
}

func (idx *Dynamic) repruneVertex(v uint64) error {
	idx.graph.Lock(v)
	adj, err := idx.graph.Adjacency(v)
	if err != nil {
		idx.graph.Unlock(v)
		return err
	}
	adjCopy := append([]uint64(nil), adj...)
	idx.graph.Unlock(v)

	candidates, err := scoreNeighbours(idx.dataset, idx.metric, v, adjCopy)
	if err != nil {
		return err
	}
	pruned, err := RobustPruneWithStrategy(idx.dataset, idx.metric, v, candidates, idx.params.Alpha, idx.params.PruneTo, idx.params.Strategy)
	if err != nil {
		return err
	}
	idx.graph.Lock(v)
	err = idx.graph.SetAdjacency(v, pruned)
	idx.graph.Unlock(v)
	return err
}

// Delete marks externalID's slot as deleted (spec §4.6 delete): external
// lookups fail immediately, but the graph entries are left untouched
// until Consolidate runs, so search recall stays high in the meantime.
func (idx *Dynamic) Delete(externalID uint64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	slot, ok := idx.externalToInternal[externalID]
	if !ok {
		return fmt.Errorf("vamana: external id %d not present", externalID)
	}
	delete(idx.externalToInternal, externalID)
	idx.deleted.Add(slot)
	return nil
}

// Consolidate implements spec §4.6 consolidate(): for every live vertex
// with a deleted out-neighbour, rebuild its candidate pool (extending
// one or two hops into its neighbours' own neighbours, same reconnection
// shape as semadb's pruneDeleteNeighbour/removeInboundEdges) and re-prune
// so no live vertex points to a deleted slot; deleted slots are then
// returned to the free list.
func (idx *Dynamic) Consolidate() error {
	idx.mu.Lock()
	n := idx.dataset.Size()
	deletedSlots := idx.deleted.ToArray()
	idx.mu.Unlock()

	for v := uint64(0); v < n; v++ {
		if idx.isDeleted(v) {
			continue
		}
		adj, err := idx.graph.Adjacency(v)
		if err != nil {
			return err
		}
		needsRepair := false
		for _, u := range adj {
			if idx.isDeleted(u) {
				needsRepair = true
				break
			}
		}
		if !needsRepair {
			continue
		}
		if err := idx.repairVertex(v); err != nil {
			return err
		}
	}

	idx.mu.Lock()
	for _, slot := range deletedSlots {
		idx.internalToExternal[slot] = noSlot
		idx.freeSlots = append(idx.freeSlots, slot)
	}
	idx.deleted.Clear()
	idx.mu.Unlock()
	return nil
}

// repairVertex extends v's candidate pool one or two hops past its
// deleted neighbours (reaching into their own neighbours) to find enough
// live replacement candidates, then re-prunes to PruneTo.
func (idx *Dynamic) repairVertex(v uint64) error {
	adj, err := idx.graph.Adjacency(v)
	if err != nil {
		return err
	}
	pool := make(map[uint64]struct{}, len(adj))
	var candidateIds []uint64
	for _, u := range adj {
		if idx.isDeleted(u) {
			hop, err := idx.graph.Adjacency(u)
			if err != nil {
				return err
			}
			for _, h := range hop {
				if h == v || idx.isDeleted(h) {
					continue
				}
				if _, dup := pool[h]; !dup {
					pool[h] = struct{}{}
					candidateIds = append(candidateIds, h)
				}
			}
			continue
		}
		if _, dup := pool[u]; !dup {
			pool[u] = struct{}{}
			candidateIds = append(candidateIds, u)
		}
	}

	candidates, err := scoreNeighbours(idx.dataset, idx.metric, v, candidateIds)
	if err != nil {
		return err
	}
	pruned, err := RobustPruneWithStrategy(idx.dataset, idx.metric, v, candidates, idx.params.Alpha, idx.params.PruneTo, idx.params.Strategy)
	if err != nil {
		return err
	}
	return idx.graph.SetAdjacency(v, pruned)
}

// Compact implements spec §4.6 compact(): live slots are renumbered into
// [0, live_count) using a reusable batch buffer, adjacency lists are
// rewritten with the new ids, and the dataset/graph are shrunk.
func (idx *Dynamic) Compact(batchSize int) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	n := idx.dataset.Size()
	newID := make([]uint64, n)
	for i := range newID {
		newID[i] = noSlot
	}
	var liveSlots []uint64
	for slot := uint64(0); slot < n; slot++ {
		if idx.deleted.Contains(slot) || idx.internalToExternal[slot] == noSlot {
			continue
		}
		newID[slot] = uint64(len(liveSlots))
		liveSlots = append(liveSlots, slot)
	}
	liveCount := uint64(len(liveSlots))

	if batchSize <= 0 {
		batchSize = 1024
	}
	buf := make([][]float32, 0, batchSize)
	for start := 0; start < len(liveSlots); start += batchSize {
		end := start + batchSize
		if end > len(liveSlots) {
			end = len(liveSlots)
		}
		buf = buf[:0]
		for _, slot := range liveSlots[start:end] {
			row, err := idx.dataset.Get(slot)
			if err != nil {
				return err
			}
			cp := make([]float32, len(row))
			copy(cp, row)
			buf = append(buf, cp)
		}
		for i, row := range buf {
			if err := idx.dataset.Set(uint64(start+i), row); err != nil {
				return err
			}
		}
	}

	newAdjacency := make([][]uint64, liveCount)
	for i, slot := range liveSlots {
		adj, err := idx.graph.Adjacency(slot)
		if err != nil {
			return err
		}
		mapped := make([]uint64, 0, len(adj))
		for _, u := range adj {
			if mappedID := newID[u]; mappedID != noSlot {
				mapped = append(mapped, mappedID)
			}
		}
		newAdjacency[i] = mapped
	}

	idx.dataset.Resize(liveCount)
	idx.graph.Resize(liveCount)
	for i, adj := range newAdjacency {
		if err := idx.graph.SetAdjacency(uint64(i), adj); err != nil {
			return err
		}
	}

	newExternalToInternal := make(map[uint64]uint64, len(idx.externalToInternal))
	newInternalToExternal := make([]uint64, liveCount)
	for i, slot := range liveSlots {
		ext := idx.internalToExternal[slot]
		newInternalToExternal[i] = ext
		if ext != noSlot {
			newExternalToInternal[ext] = uint64(i)
		}
	}
	idx.externalToInternal = newExternalToInternal
	idx.internalToExternal = newInternalToExternal
	idx.freeSlots = nil
	idx.deleted.Clear()
	if idx.hasEntry {
		idx.entry = newID[idx.entry]
	}

	return nil
}

// Search runs greedy graph search using the mutable (skippable) buffer
// variant, treating deleted slots as traversed-but-not-returned (spec
// §4.6 "Search: identical to static search except the buffer uses the
// mutable (skippable) variant").
func (idx *Dynamic) Search(query []float32, params SearchParameters) ([]Result, error) {
	params = params.withDefaults()
	idx.mu.Lock()
	if !idx.hasEntry {
		idx.mu.Unlock()
		return nil, fmt.Errorf("vamana: search on empty index")
	}
	entry := idx.entry
	idx.mu.Unlock()

	buf := searchbuf.NewMutable(params.WindowSize, params.K)
	filter := searchbuf.NewVisitedFilter(params.VisitedBits)
	insert := MutableInsert(buf, idx.isDeleted)
	if err := GreedySearch(idx.graph, idx.dataset, idx.metric, []uint64{entry}, query, buf, insert, filter); err != nil {
		return nil, err
	}

	results := buf.Results(params.K)
	idx.mu.Lock()
	defer idx.mu.Unlock()
	out := make([]Result, 0, len(results))
	for _, n := range results {
		ext := idx.internalToExternal[n.Id]
		if ext == noSlot {
			continue
		}
		out = append(out, Result{Id: ext, Distance: n.Distance})
	}
	return out, nil
}
