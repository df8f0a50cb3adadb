// Package pool implements the fixed worker pool described in spec §4.9:
// P workers plus the submitter (which participates as worker 0), static
// and dynamic work partitioning, and panic capture with worker
// resuscitation between Run calls.
//
// Grounded on semadb's shard/index/vamana/vamana.go insertUpdateDelete
// worker fan-out (channel-based workers, context.WithCancelCause for
// first-error-wins cancellation) generalized into the spec's "submitter
// is worker 0, structured Run(f) blocks until completion" contract,
// which no example implements directly.
package pool

import (
	"fmt"
	"runtime"

	"github.com/hashicorp/go-multierror"
)

// ThreadPool is a fixed-size pool of P-1 background workers; the
// submitter thread itself serves as worker 0 inside Run, so a pool
// configured with P=1 runs everything on the caller's goroutine.
type ThreadPool struct {
	numThreads int
}

// New creates a pool sized to P worker slots (including the submitter).
// P <= 0 defaults to runtime.NumCPU().
func New(numThreads int) *ThreadPool {
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}
	return &ThreadPool{numThreads: numThreads}
}

func (p *ThreadPool) NumThreads() int { return p.numThreads }

// Run invokes f(tid) for every tid in [0, P) concurrently (tid 0 runs on
// the calling goroutine) and blocks until all complete. A panic in any
// worker is captured and converted to an error; Run then returns a single
// aggregate error built from every worker's failure (spec §4.9/§7 "Worker
// error").
func (p *ThreadPool) Run(f func(tid int)) error {
	return p.RunErr(func(tid int) error {
		f(tid)
		return nil
	})
}

// RunErr is like Run but f may return an error; all per-worker errors
// (including recovered panics) are aggregated via multierror.
func (p *ThreadPool) RunErr(f func(tid int) error) error {
	n := p.numThreads
	if n <= 1 {
		return wrapPanic(0, f)
	}
	errs := make([]error, n)
	done := make(chan int, n-1)
	for tid := 1; tid < n; tid++ {
		go func(tid int) {
			errs[tid] = wrapPanic(tid, f)
			done <- tid
		}(tid)
	}
	// The submitter itself becomes worker 0.
	errs[0] = wrapPanic(0, f)
	for i := 1; i < n; i++ {
		<-done
	}
	var agg *multierror.Error
	for _, err := range errs {
		if err != nil {
			agg = multierror.Append(agg, err)
		}
	}
	if agg == nil {
		return nil
	}
	return agg.ErrorOrNil()
}

func wrapPanic(tid int, f func(tid int) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pool: worker %d panicked: %v", tid, r)
		}
	}()
	return f(tid)
}
