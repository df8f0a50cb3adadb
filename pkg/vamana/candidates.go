package vamana

import (
	"sort"

	"github.com/vsearch/svs/pkg/dataset"
	"github.com/vsearch/svs/pkg/distance"
	"github.com/vsearch/svs/pkg/searchbuf"
)

// unionExisting merges a greedy-search candidate pool with v's current
// adjacency list (scored against v), deduplicating by id and sorting
// ascending by distance, per spec §4.5 step 1 "union with existing
// neighbors of v; sort".
func unionExisting(d dataset.Dataset, metric distance.Metric, v uint64, candidates []searchbuf.Neighbor, existing []uint64) ([]searchbuf.Neighbor, error) {
	seen := make(map[uint64]struct{}, len(candidates)+len(existing))
	out := make([]searchbuf.Neighbor, 0, len(candidates)+len(existing))
	for _, c := range candidates {
		if c.Id == v {
			continue
		}
		if _, dup := seen[c.Id]; dup {
			continue
		}
		seen[c.Id] = struct{}{}
		out = append(out, c)
	}
	for _, id := range existing {
		if id == v {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		dist, err := vectorDistance(d, metric, v, id)
		if err != nil {
			return nil, err
		}
		out = append(out, searchbuf.Neighbor{Id: id, Distance: dist})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out, nil
}

// scoreNeighbours computes v's distance to every id in ids and returns
// them sorted ascending, used to rebuild a candidate pool from current
// (possibly overflowed) adjacency during overflow pruning (spec §4.5
// step 4).
func scoreNeighbours(d dataset.Dataset, metric distance.Metric, v uint64, ids []uint64) ([]searchbuf.Neighbor, error) {
	out := make([]searchbuf.Neighbor, 0, len(ids))
	for _, id := range ids {
		if id == v {
			continue
		}
		dist, err := vectorDistance(d, metric, v, id)
		if err != nil {
			return nil, err
		}
		out = append(out, searchbuf.Neighbor{Id: id, Distance: dist})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out, nil
}

func dedupUint64(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
