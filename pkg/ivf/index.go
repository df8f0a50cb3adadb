package ivf

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/vsearch/svs/pkg/distance"
	"github.com/vsearch/svs/pkg/dtype"
	"github.com/vsearch/svs/pkg/kmeans"
	"github.com/vsearch/svs/pkg/quantization"
	"github.com/vsearch/svs/pkg/searchbuf"
)

// Index is a trained inverted-file index: a set of centroids, one Cluster
// per centroid holding its members' quantized codes, and the original
// vectors kept alongside for exact-distance reranking.
//
// Grounded on the teacher's pkg/ivf/index.go IVFFlat (numCentroids,
// centroids, invertedLists, mu sync.RWMutex, Train/Add/Search shape),
// generalized to hierarchical training, GEMM-batched centroid scoring,
// and the quantized-rerank search path.
type Index struct {
	mu        sync.RWMutex
	dim       int
	metric    distance.Metric
	metricTag dtype.Metric
	params    BuildParameters
	centroids [][]float32
	clusters  []*Cluster
	quant     *quantization.Scalar
	original  map[uint64][]float32
}

// Result is one search hit: an id and its ordering distance (smaller is
// always better, matching pkg/distance.Metric.Compute's convention).
type Result struct {
	Id       uint64
	Distance float32
}

// Train fits centroids (mini-batch or hierarchical mini-batch k-means,
// per params.IsHierarchical) and a scalar quantizer over vectors, then
// assigns every (id, vector) pair into its nearest centroid's cluster.
func Train(vectors [][]float32, ids []uint64, metricTag dtype.Metric, params BuildParameters) (*Index, error) {
	if len(vectors) != len(ids) {
		return nil, fmt.Errorf("ivf: vectors (%d) and ids (%d) length mismatch", len(vectors), len(ids))
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("ivf: empty training set")
	}
	params = params.withDefaults()
	metric, err := distance.Get(metricTag)
	if err != nil {
		return nil, fmt.Errorf("ivf: %w", err)
	}

	trainSet := vectors
	if params.TrainingFraction < 1.0 {
		trainSet = sampleFraction(vectors, params.TrainingFraction, params.Seed)
	}

	kp := kmeans.Params{
		NumCentroids:  params.NumCentroids,
		MinibatchSize: params.MinibatchSize,
		NumIterations: params.NumIterations,
		Seed:          params.Seed,
	}

	var result kmeans.Result
	if params.IsHierarchical {
		result, err = kmeans.TrainHierarchical(trainSet, metricTag, kp, params.HierarchicalLevel1Clusters)
	} else {
		result, err = kmeans.Train(trainSet, metricTag, kp)
	}
	if err != nil {
		return nil, fmt.Errorf("ivf: training centroids: %w", err)
	}

	quant := quantization.New(metricTag)
	if err := quant.Train(vectors); err != nil {
		return nil, fmt.Errorf("ivf: training quantizer: %w", err)
	}

	idx := &Index{
		dim:       len(vectors[0]),
		metric:    metric,
		metricTag: metricTag,
		params:    params,
		centroids: result.Centroids,
		quant:     quant,
		original:  make(map[uint64][]float32, len(vectors)),
	}
	idx.clusters = make([]*Cluster, len(result.Centroids))
	for i := range idx.clusters {
		idx.clusters[i] = newCluster(params.Layout, idx.dim)
	}

	assignments := centroidScores(vectors, idx.centroids, metricTag)
	for i, scores := range assignments {
		best := argmin(scores)
		idx.assignLocked(ids[i], vectors[i], best)
	}
	return idx, nil
}

// assignLocked records vector's original copy and quantized code under
// cluster centroid. Callers must hold idx.mu for writing, or call it only
// during Train/Add before concurrent access begins.
func (idx *Index) assignLocked(id uint64, vector []float32, centroid int) {
	cp := append([]float32(nil), vector...)
	idx.original[id] = cp
	idx.clusters[centroid].Add(id, idx.quant.Quantize(vector))
}

// Size returns the number of vectors currently indexed.
func (idx *Index) Size() uint64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return uint64(len(idx.original))
}

// Dimension returns the index's vector dimensionality.
func (idx *Index) Dimension() int { return idx.dim }

// Add inserts a single (id, vector) pair into the index, assigning it to
// its nearest trained centroid. The centroid set and quantizer are not
// retrained.
func (idx *Index) Add(id uint64, vector []float32) error {
	if len(vector) != idx.dim {
		return fmt.Errorf("ivf: vector dimension %d does not match index dimension %d", len(vector), idx.dim)
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, exists := idx.original[id]; exists {
		return fmt.Errorf("ivf: id %d already present", id)
	}
	scores := centroidScores([][]float32{vector}, idx.centroids, idx.metricTag)[0]
	idx.assignLocked(id, vector, argmin(scores))
	return nil
}

// Search probes the NProbes nearest clusters to query, scans their
// quantized codes for KReorder*K candidates, and (when KReorder > 1)
// reranks the candidates by exact distance against their original
// vectors before returning the top K.
func (idx *Index) Search(query []float32, params SearchParameters) ([]Result, error) {
	if len(query) != idx.dim {
		return nil, fmt.Errorf("ivf: query dimension %d does not match index dimension %d", len(query), idx.dim)
	}
	params = params.withDefaults()

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	nprobes := params.NProbes
	if nprobes > len(idx.centroids) {
		nprobes = len(idx.centroids)
	}
	centroidDist := centroidScores([][]float32{query}, idx.centroids, idx.metricTag)[0]
	probeBuf := searchbuf.NewStatic(nprobes)
	for j, score := range centroidDist {
		probeBuf.Insert(searchbuf.Neighbor{Id: uint64(j), Distance: score})
	}

	candidateCap := int(math.Ceil(params.KReorder * float64(params.K)))
	if candidateCap < params.K {
		candidateCap = params.K
	}
	candBuf := searchbuf.NewStatic(candidateCap)
	qcode := idx.quant.Quantize(query)
	for _, probe := range probeBuf.Items() {
		idx.clusters[probe.Id].Scan(idx.quant, qcode, func(globalID uint64, score float32) {
			candBuf.Insert(searchbuf.Neighbor{Id: globalID, Distance: score})
		})
	}

	if params.KReorder <= 1.0 {
		return toResults(candBuf.TopK(params.K)), nil
	}

	pq := idx.metric.FixArgument(query)
	reranked := make([]searchbuf.Neighbor, 0, candBuf.Size())
	for _, cand := range candBuf.Items() {
		vec, ok := idx.original[cand.Id]
		if !ok {
			continue
		}
		reranked = append(reranked, searchbuf.Neighbor{Id: cand.Id, Distance: idx.metric.Compute(pq, vec)})
	}
	rerankBuf := searchbuf.NewStatic(params.K)
	for _, n := range reranked {
		rerankBuf.Insert(n)
	}
	return toResults(rerankBuf.TopK(params.K)), nil
}

func toResults(ns []searchbuf.Neighbor) []Result {
	out := make([]Result, len(ns))
	for i, n := range ns {
		out[i] = Result{Id: n.Id, Distance: n.Distance}
	}
	return out
}

func argmin(scores []float32) int {
	best := 0
	for j := 1; j < len(scores); j++ {
		if scores[j] < scores[best] {
			best = j
		}
	}
	return best
}

// sampleFraction draws a deterministic (seeded) sample of roughly
// fraction*len(vectors) rows without replacement, used when
// params.TrainingFraction < 1.0 to bound training cost on large inputs.
func sampleFraction(vectors [][]float32, fraction float64, seed int64) [][]float32 {
	want := int(math.Round(fraction * float64(len(vectors))))
	if want < 1 {
		want = 1
	}
	if want >= len(vectors) {
		return vectors
	}
	r := rand.New(rand.NewSource(seed))
	perm := r.Perm(len(vectors))[:want]
	out := make([][]float32, want)
	for i, idx := range perm {
		out[i] = vectors[idx]
	}
	return out
}
