// Package searchbuf implements the bounded, priority-ordered neighbour
// buffer used by graph traversal (spec §4.1) and the direct-mapped
// visited filter (spec §4.2) that accelerates it.
//
// Grounded directly on semadb's shard/index/vamana/distset.go: an
// insertion-sorted slice with a sortedUntil/best-unvisited cursor, reused
// here as two variants (Static, Mutable) per spec §4.1.
package searchbuf

import "fmt"

// Neighbor is a candidate entry: an id, its distance under the metric in
// use (always "smaller is better" — see pkg/distance), and traversal
// state.
type Neighbor struct {
	Id       uint64
	Distance float32
	visited  bool
	skipped  bool // mutable buffer only; see Mutable
}

// Static is the read-only-search variant: capacity-bounded, sorted by
// distance, with an optional attached VisitedFilter used by the caller
// (pkg/vamana's greedy search) to skip redundant distance computation
// before Insert is even called.
type Static struct {
	items       []Neighbor
	capacity    int
	bestCursor  int // index of the lowest-distance entry not yet visited
	ids         map[uint64]struct{}
}

// NewStatic allocates an empty buffer with the given capacity (the
// search-window-size W in spec §4.3).
func NewStatic(capacity int) *Static {
	return &Static{
		items:    make([]Neighbor, 0, capacity),
		capacity: capacity,
		ids:      make(map[uint64]struct{}, capacity),
	}
}

func (b *Static) Size() int     { return len(b.items) }
func (b *Static) Capacity() int { return b.capacity }
func (b *Static) Full() bool    { return len(b.items) >= b.capacity }
func (b *Static) Done() bool    { return b.bestCursor >= len(b.items) }

func (b *Static) Clear() {
	b.items = b.items[:0]
	b.bestCursor = 0
	for k := range b.ids {
		delete(b.ids, k)
	}
}

// Insert adds n if it is not already present and either the buffer has
// room or n beats the current worst entry (spec §4.1 Insert semantics and
// §8 scenario 1).
func (b *Static) Insert(n Neighbor) bool {
	if _, dup := b.ids[n.Id]; dup {
		return false
	}
	if b.Full() && n.Distance >= b.items[len(b.items)-1].Distance {
		return false
	}
	pos := 0
	for pos < len(b.items) && b.items[pos].Distance < n.Distance {
		pos++
	}
	if len(b.items) < b.capacity {
		b.items = append(b.items, Neighbor{})
	} else {
		// Full: the current worst entry is evicted to make room.
		delete(b.ids, b.items[len(b.items)-1].Id)
	}
	copy(b.items[pos+1:], b.items[pos:len(b.items)-1])
	n.visited = false
	b.items[pos] = n
	b.ids[n.Id] = struct{}{}
	if pos < b.bestCursor {
		b.bestCursor = pos
	}
	return true
}

// Next returns and marks-visited the lowest-distance unvisited entry.
// Precondition: !Done().
func (b *Static) Next() (Neighbor, error) {
	if b.Done() {
		return Neighbor{}, fmt.Errorf("searchbuf: Next called on a done buffer")
	}
	n := b.items[b.bestCursor]
	b.items[b.bestCursor].visited = true
	for b.bestCursor < len(b.items) && b.items[b.bestCursor].visited {
		b.bestCursor++
	}
	return n, nil
}

// Sort is a no-op for Static: Insert always keeps the slice sorted. It is
// kept to satisfy the spec's listed operation and to mirror callers that
// sort explicitly before reading results (pkg/vamana greedy search step 3).
func (b *Static) Sort() {}

// Items returns the buffer's entries in ascending distance order. The
// returned slice aliases internal storage.
func (b *Static) Items() []Neighbor { return b.items }

// TopK returns up to k entries, nearest first.
func (b *Static) TopK(k int) []Neighbor {
	if k > len(b.items) {
		k = len(b.items)
	}
	out := make([]Neighbor, k)
	copy(out, b.items[:k])
	return out
}
