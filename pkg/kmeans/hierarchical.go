package kmeans

import (
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/vsearch/svs/pkg/dtype"
)

// TrainHierarchical implements the spec's two-level hierarchical training
// mode: first train L1 = hierarchical_level1_clusters centroids (default
// √num_centroids), assign all data to them, then train
// num_centroids / L1 centroids within each level-1 cluster, and flatten
// the result back into a single centroid set.
func TrainHierarchical(vectors [][]float32, metric dtype.Metric, params Params, level1Clusters int) (Result, error) {
	params = params.withDefaults()
	if level1Clusters <= 0 {
		level1Clusters = int(math.Round(math.Sqrt(float64(params.NumCentroids))))
	}
	if level1Clusters <= 0 {
		level1Clusters = 1
	}
	if level1Clusters > params.NumCentroids {
		level1Clusters = params.NumCentroids
	}

	level1Params := params
	level1Params.NumCentroids = level1Clusters
	level1, err := Train(vectors, metric, level1Params)
	if err != nil {
		return Result{}, fmt.Errorf("kmeans: level-1 training: %w", err)
	}

	assignments := AssignBatch(vectors, level1.Centroids, metric)
	buckets := make([][][]float32, level1Clusters)
	for i, c := range assignments {
		buckets[c] = append(buckets[c], vectors[i])
	}

	perCluster := params.NumCentroids / level1Clusters
	if perCluster <= 0 {
		perCluster = 1
	}

	// Level-1 clusters train independently of one another, so the
	// per-bucket level-2 passes fan out across an errgroup rather than
	// running one after another.
	subResults := make([][][]float32, level1Clusters)
	var g errgroup.Group
	for c, bucket := range buckets {
		if len(bucket) == 0 {
			continue
		}
		c, bucket := c, bucket
		g.Go(func() error {
			want := perCluster
			if want > len(bucket) {
				want = len(bucket)
			}
			sub := params
			sub.NumCentroids = want
			res, err := Train(bucket, metric, sub)
			if err != nil {
				return fmt.Errorf("kmeans: level-2 training for level-1 cluster %d: %w", c, err)
			}
			subResults[c] = res.Centroids
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	var flattened [][]float32
	for _, centroids := range subResults {
		flattened = append(flattened, centroids...)
	}

	if len(flattened) == 0 {
		return Result{}, fmt.Errorf("kmeans: hierarchical training produced no centroids")
	}

	return Result{Centroids: flattened, Metric: metric}, nil
}
