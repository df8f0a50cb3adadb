package pool

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunExecutesOnEveryWorker(t *testing.T) {
	p := New(4)
	var seen int32
	err := p.Run(func(tid int) {
		atomic.AddInt32(&seen, 1)
	})
	require.NoError(t, err)
	assert.Equal(t, int32(4), seen)
}

func TestRunErrAggregatesFailures(t *testing.T) {
	p := New(4)
	err := p.RunErr(func(tid int) error {
		if tid%2 == 0 {
			return assert.AnError
		}
		return nil
	})
	require.Error(t, err)
}

func TestRunCapturesPanics(t *testing.T) {
	p := New(3)
	err := p.RunErr(func(tid int) error {
		if tid == 1 {
			panic("boom")
		}
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
}

func TestSingleThreadPoolRunsInline(t *testing.T) {
	p := New(1)
	ran := false
	err := p.Run(func(tid int) {
		require.Equal(t, 0, tid)
		ran = true
	})
	require.NoError(t, err)
	assert.True(t, ran)
}

// Balance(10,3,*) matches spec §8 scenario 3 exactly.
func TestBalanceMatchesSpecScenario(t *testing.T) {
	assert.Equal(t, Range{0, 4}, Balance(10, 3, 0))
	assert.Equal(t, Range{4, 7}, Balance(10, 3, 1))
	assert.Equal(t, Range{7, 10}, Balance(10, 3, 2))
}

func TestBalancePartitionsAreDisjointAndCoverWhole(t *testing.T) {
	const n, p = uint64(97), 7
	var covered [97]bool
	for t0 := 0; t0 < p; t0++ {
		r := Balance(n, p, t0)
		for i := r.Start; i < r.End; i++ {
			require.False(t, covered[i], "index %d covered twice", i)
			covered[i] = true
		}
	}
	for i, c := range covered {
		assert.True(t, c, "index %d never covered", i)
	}
}

func TestBalanceRangeLengthsDifferByAtMostOne(t *testing.T) {
	const n, p = uint64(22), 5
	min, max := ^uint64(0), uint64(0)
	for t0 := 0; t0 < p; t0++ {
		l := Balance(n, p, t0).Len()
		if l < min {
			min = l
		}
		if l > max {
			max = l
		}
	}
	assert.LessOrEqual(t, max-min, uint64(1))
}

func TestDynamicCounterServesDisjointChunksUntilExhausted(t *testing.T) {
	c := NewDynamicCounter(10, 3)
	var got []Range
	for {
		r, ok := c.Next()
		if !ok {
			break
		}
		got = append(got, r)
	}
	require.Equal(t, []Range{{0, 3}, {3, 6}, {6, 9}, {9, 10}}, got)
}

func TestStaticForGivesEachWorkerItsOwnRange(t *testing.T) {
	p := New(4)
	ranges := make([]Range, 4)
	err := p.StaticFor(10, func(tid int, r Range) {
		ranges[tid] = r
	})
	require.NoError(t, err)
	assert.Equal(t, Range{0, 3}, ranges[0])
	assert.Equal(t, Range{3, 6}, ranges[1])
	assert.Equal(t, Range{6, 8}, ranges[2])
	assert.Equal(t, Range{8, 10}, ranges[3])
}

func TestDynamicForCoversWholeRangeAcrossWorkers(t *testing.T) {
	p := New(4)
	var covered [50]int32
	err := p.DynamicFor(50, 4, func(tid int, r Range) {
		for i := r.Start; i < r.End; i++ {
			atomic.AddInt32(&covered[i], 1)
		}
	})
	require.NoError(t, err)
	for i, c := range covered {
		assert.Equal(t, int32(1), c, "index %d covered %d times", i, c)
	}
}
