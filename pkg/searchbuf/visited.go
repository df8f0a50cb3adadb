package searchbuf

import "github.com/bits-and-blooms/bitset"

// VisitedFilter is the direct-mapped approximate set from spec §4.2: a
// fixed 2^N-slot table indexed by the low N bits of an id, storing a tag
// derived from the upper bits. Collisions silently evict the previous
// occupant, giving possible false negatives but never a false positive —
// callers use it only as a prune hint (spec §4.2, §4.3).
//
// Grounded on semadb's shard/index/vamana/distset.go bitset-backed
// visited set, generalized into the spec's standalone tagged-slot filter
// (semadb's version is untagged and only used internally by its distance
// set; this one is id-tagged so Contains can reject a stale collision).
type VisitedFilter struct {
	bits     uint
	mask     uint64
	tagShift uint
	occupied *bitset.BitSet
	tags     []uint64
	sentinel uint64
}

// NewVisitedFilter constructs a filter with capacity 2^n.
func NewVisitedFilter(n uint) *VisitedFilter {
	capacity := uint64(1) << n
	tagShift := uint(16)
	if n < 16 {
		tagShift = 0
	}
	return &VisitedFilter{
		bits:     n,
		mask:     capacity - 1,
		tagShift: tagShift,
		occupied: bitset.New(uint(capacity)),
		tags:     make([]uint64, capacity),
		sentinel: ^uint64(0),
	}
}

func (f *VisitedFilter) slot(id uint64) (uint64, uint64) {
	slot := id & f.mask
	var tag uint64
	if f.tagShift == 0 {
		tag = id
	} else {
		tag = id >> f.tagShift
	}
	return slot, tag
}

// Reset clears every slot, making the filter ready for reuse across
// searches (spec §4.2 Reset()).
func (f *VisitedFilter) Reset() {
	f.occupied.ClearAll()
}

// Contains reports whether id was plausibly already visited: true only if
// id was inserted and no colliding insert has happened since (spec §4.2).
func (f *VisitedFilter) Contains(id uint64) bool {
	slot, tag := f.slot(id)
	if !f.occupied.Test(uint(slot)) {
		return false
	}
	return f.tags[slot] == tag
}

// Emplace records id as visited and returns whether the slot already held
// a match for id (i.e. whether this is a likely-redundant visit).
// Always overwrites the slot regardless of the return value.
func (f *VisitedFilter) Emplace(id uint64) bool {
	slot, tag := f.slot(id)
	already := f.occupied.Test(uint(slot)) && f.tags[slot] == tag
	f.tags[slot] = tag
	f.occupied.Set(uint(slot))
	return already
}
