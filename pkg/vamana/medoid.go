package vamana

import (
	"math"
	"math/rand"

	"github.com/vsearch/svs/pkg/dataset"
	"github.com/vsearch/svs/pkg/distance"
)

// defaultMedoidSampleSize bounds findMedoid's cost on large datasets,
// mirroring the teacher's findMedoid sampling (pkg/diskann/build.go:
// "Sample random points for efficiency", sampleSize := min(1000, n)).
const defaultMedoidSampleSize = 1000

// FindMedoid returns the id in [0, n) with the lowest average distance to
// a random sample of the dataset, used as the fixed entry point for build
// and static search (spec §4.5 "Entry point: choose the medoid of a
// sample").
func FindMedoid(d dataset.Dataset, metric distance.Metric, r *rand.Rand) (uint64, error) {
	n := d.Size()
	if n == 0 {
		return 0, nil
	}
	sampleSize := uint64(defaultMedoidSampleSize)
	if sampleSize > n {
		sampleSize = n
	}
	samples := make([]uint64, sampleSize)
	sampleRows := make([][]float32, sampleSize)
	for i := range samples {
		samples[i] = uint64(r.Int63n(int64(n)))
		row, err := d.Get(samples[i])
		if err != nil {
			return 0, err
		}
		sampleRows[i] = row
	}

	var best uint64
	bestAvg := float32(math.Inf(1))
	for id := uint64(0); id < n; id++ {
		row, err := d.Get(id)
		if err != nil {
			return 0, err
		}
		pq := metric.FixArgument(row)
		var total float32
		for _, s := range sampleRows {
			total += metric.Compute(pq, s)
		}
		avg := total / float32(sampleSize)
		if avg < bestAvg {
			bestAvg = avg
			best = id
		}
	}
	return best, nil
}
