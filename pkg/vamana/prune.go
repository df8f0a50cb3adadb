package vamana

import (
	"github.com/vsearch/svs/pkg/dataset"
	"github.com/vsearch/svs/pkg/distance"
	"github.com/vsearch/svs/pkg/searchbuf"
)

// vectorDistance computes the metric's ordering score between two rows of
// d, using FixArgument(row a) as the "query" side so Cosine normalises
// correctly regardless of which argument is conceptually the query (spec
// §4.4 treats both candidates symmetrically for occlusion testing).
func vectorDistance(d dataset.Dataset, metric distance.Metric, a, b uint64) (float32, error) {
	va, err := d.Get(a)
	if err != nil {
		return 0, err
	}
	vb, err := d.Get(b)
	if err != nil {
		return 0, err
	}
	pq := metric.FixArgument(va)
	return metric.Compute(pq, vb), nil
}

// RobustPrune implements spec §4.4: given v, a candidate pool sorted
// ascending by distance to v, a pruning threshold alpha, and a max result
// size R, returns the pruned neighbour id list.
func RobustPrune(d dataset.Dataset, metric distance.Metric, v uint64, candidates []searchbuf.Neighbor, alpha float32, r int) ([]uint64, error) {
	pruned := make([]bool, len(candidates))
	result := make([]uint64, 0, r)

	for i := range candidates {
		if len(result) >= r {
			break
		}
		if pruned[i] || candidates[i].Id == v {
			continue
		}
		c := candidates[i].Id
		result = append(result, c)

		for j := i + 1; j < len(candidates); j++ {
			if pruned[j] || candidates[j].Id == v {
				continue
			}
			cPrime := candidates[j]
			dcc, err := vectorDistance(d, metric, c, cPrime.Id)
			if err != nil {
				return nil, err
			}
			if alpha*dcc <= cPrime.Distance {
				pruned[j] = true
			}
		}
	}
	return result, nil
}

// maxIterativeAttempts bounds the iterative strategy's alpha-relaxation
// retries (spec §4.4: "retries with progressively relaxed alpha").
const maxIterativeAttempts = 5

// RobustPruneWithStrategy dispatches to the progressive or iterative
// variant per strategy, defaulting the retry alpha growth factor to 1.3x
// per attempt — neither example implements the iterative relaxation loop,
// so this factor is new code matching the spec's qualitative description
// rather than a borrowed constant.
func RobustPruneWithStrategy(d dataset.Dataset, metric distance.Metric, v uint64, candidates []searchbuf.Neighbor, alpha float32, r int, strategy PruneStrategy) ([]uint64, error) {
	target := r
	if target > len(candidates) {
		target = len(candidates)
	}

	result, err := RobustPrune(d, metric, v, candidates, alpha, r)
	if err != nil {
		return nil, err
	}
	if strategy != Iterative {
		return result, nil
	}

	relaxed := alpha
	for attempt := 0; len(result) < target && attempt < maxIterativeAttempts; attempt++ {
		relaxed *= 1.3
		result, err = RobustPrune(d, metric, v, candidates, relaxed, r)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}
