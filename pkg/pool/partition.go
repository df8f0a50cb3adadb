package pool

import "sync/atomic"

// Range is a half-open [Start, End) sub-range of [0, N).
type Range struct {
	Start, End uint64
}

func (r Range) Len() uint64 { return r.End - r.Start }

// Balance splits [0, n) into p near-equal contiguous ranges: ceil-div with
// the remainder distributed to the low-index threads, so lengths differ
// by at most 1 and the union is exactly [0, n) (spec §4.9, tested in §8
// scenario 3: balance(10,3,0)=[0,4), balance(10,3,1)=[4,7),
// balance(10,3,2)=[7,10)).
func Balance(n uint64, p, t int) Range {
	if p <= 0 {
		return Range{0, n}
	}
	base := n / uint64(p)
	rem := n % uint64(p)
	start := uint64(t)*base + min64(uint64(t), rem)
	end := start + base
	if uint64(t) < rem {
		end++
	}
	return Range{Start: start, End: end}
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

// StaticFor runs f(tid, Balance(n, pool.NumThreads(), tid)) on every
// worker, giving each thread a deterministic, disjoint sub-range of
// [0, n). The id-to-thread mapping is therefore reproducible across runs
// with the same pool size (spec §5 "static partitioning guarantees a
// deterministic id-to-thread mapping").
func (p *ThreadPool) StaticFor(n uint64, f func(tid int, r Range)) error {
	return p.Run(func(tid int) {
		f(tid, Balance(n, p.numThreads, tid))
	})
}

// DynamicCounter serves grain-sized chunks of [0, n) to whichever thread
// asks next via an atomic cursor (spec §4.9 dynamic partitioning).
type DynamicCounter struct {
	n, grain uint64
	cursor   uint64
}

func NewDynamicCounter(n, grain uint64) *DynamicCounter {
	if grain == 0 {
		grain = 1
	}
	return &DynamicCounter{n: n, grain: grain}
}

// Next claims the next chunk, returning ok=false once [0, n) is exhausted.
func (d *DynamicCounter) Next() (r Range, ok bool) {
	start := atomic.AddUint64(&d.cursor, d.grain) - d.grain
	if start >= d.n {
		return Range{}, false
	}
	end := start + d.grain
	if end > d.n {
		end = d.n
	}
	return Range{Start: start, End: end}, true
}

// DynamicFor runs f repeatedly on every worker until the counter is
// exhausted, with whichever thread is free claiming the next chunk (no
// deterministic id-to-thread mapping, unlike StaticFor).
func (p *ThreadPool) DynamicFor(n, grain uint64, f func(tid int, r Range)) error {
	counter := NewDynamicCounter(n, grain)
	return p.Run(func(tid int) {
		for {
			r, ok := counter.Next()
			if !ok {
				return
			}
			f(tid, r)
		}
	})
}
