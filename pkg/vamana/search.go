package vamana

import (
	"github.com/vsearch/svs/pkg/dataset"
	"github.com/vsearch/svs/pkg/distance"
	"github.com/vsearch/svs/pkg/graph"
	"github.com/vsearch/svs/pkg/searchbuf"
)

// Inserter abstracts the difference between the static buffer's
// Insert(Neighbor) and the mutable buffer's Insert(Neighbor, skipped):
// callers supply the right closure so GreedySearch itself never needs to
// know which variant it is driving.
type Inserter func(id uint64, dist float32) bool

// Buffer is the minimal surface GreedySearch needs from either search
// buffer variant.
type Buffer interface {
	Done() bool
	Next() (searchbuf.Neighbor, error)
	Clear()
}

// GreedySearch implements spec §4.3's traversal: seed the buffer from the
// entry points, then repeatedly pop the best unvisited candidate and
// relax its neighbours, until the buffer is done. insert is called once
// per newly-scored candidate and decides whether it is kept and whether
// it counts toward fullness (the mutable variant also marks skipped
// entries there).
func GreedySearch(
	g graph.Graph,
	d dataset.Dataset,
	metric distance.Metric,
	entryPoints []uint64,
	query []float32,
	buf Buffer,
	insert Inserter,
	filter *searchbuf.VisitedFilter,
) error {
	buf.Clear()
	if filter != nil {
		filter.Reset()
	}
	pq := metric.FixArgument(query)

	for _, e := range entryPoints {
		row, err := d.Get(e)
		if err != nil {
			return err
		}
		dist := metric.Compute(pq, row)
		if filter != nil {
			filter.Emplace(e)
		}
		insert(e, dist)
	}

	for !buf.Done() {
		c, err := buf.Next()
		if err != nil {
			return err
		}
		d.Prefetch(c.Id)
		neighbours, err := g.Adjacency(c.Id)
		if err != nil {
			return err
		}
		for _, n := range neighbours {
			if filter != nil && filter.Contains(n) {
				continue
			}
			row, err := d.Get(n)
			if err != nil {
				return err
			}
			dist := metric.Compute(pq, row)
			if filter != nil {
				filter.Emplace(n)
			}
			insert(n, dist)
		}
	}
	return nil
}

// StaticInsert builds the Inserter closure for a *searchbuf.Static.
func StaticInsert(buf *searchbuf.Static) Inserter {
	return func(id uint64, dist float32) bool {
		return buf.Insert(searchbuf.Neighbor{Id: id, Distance: dist})
	}
}

// MutableInsert builds the Inserter closure for a *searchbuf.Mutable,
// consulting isSkipped (typically a deleted-slot bitmap test) to flag the
// entry as traversed-but-not-returned (spec §4.6 dynamic search).
func MutableInsert(buf *searchbuf.Mutable, isSkipped func(id uint64) bool) Inserter {
	return func(id uint64, dist float32) bool {
		return buf.Insert(searchbuf.Neighbor{Id: id, Distance: dist}, isSkipped(id))
	}
}
