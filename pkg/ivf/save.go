package ivf

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/vsearch/svs/pkg/distance"
	"github.com/vsearch/svs/pkg/dtype"
	"github.com/vsearch/svs/pkg/iostore"
	"github.com/vsearch/svs/pkg/quantization"
	"github.com/vsearch/svs/pkg/vecfile"
)

const ivfSchema = "ivf"

// Save writes idx to dir as the spec §6 IVF layout: a root svs_config.toml
// alongside centroids and original (rerank vectors, in the cluster
// archive's own global order) plus the cluster archive proper —
// clusters_archive/ids/cluster_sizes/ids_offsets — which packs every
// cluster's member codes into one binary instead of one file per cluster
// (spec §4.10: "cluster archives bundle many sub-artifacts into a single
// binary by packing a directory tree").
func (idx *Index) Save(dir string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ivf: creating %s: %w", dir, err)
	}
	ctx := iostore.NewSaveContext(dir)

	centroidsFile, centroidsPath := ctx.Artifact("centroids")
	flatCentroids := make([]float32, 0, len(idx.centroids)*idx.dim)
	for _, c := range idx.centroids {
		flatCentroids = append(flatCentroids, c...)
	}
	if err := vecfile.WriteSVS(centroidsPath, flatCentroids); err != nil {
		return fmt.Errorf("ivf: writing centroids: %w", err)
	}
	centroidsUUID, err := iostore.ArtifactUUID(centroidsFile)
	if err != nil {
		return err
	}

	archiveFile, archivePath := ctx.Artifact("clusters_archive")
	idsFile, idsPath := ctx.Artifact("ids")
	sizesFile, sizesPath := ctx.Artifact("cluster_sizes")
	offsetsFile, offsetsPath := ctx.Artifact("ids_offsets")
	originalFile, originalPath := ctx.Artifact("original")

	totalMembers, err := writeClusterArchive(archivePath, idsPath, sizesPath, offsetsPath, originalPath, idx.clusters, idx.original)
	if err != nil {
		return err
	}

	archiveUUID, err := iostore.ArtifactUUID(archiveFile)
	if err != nil {
		return err
	}
	idsUUID, err := iostore.ArtifactUUID(idsFile)
	if err != nil {
		return err
	}
	sizesUUID, err := iostore.ArtifactUUID(sizesFile)
	if err != nil {
		return err
	}
	offsetsUUID, err := iostore.ArtifactUUID(offsetsFile)
	if err != nil {
		return err
	}
	originalUUID, err := iostore.ArtifactUUID(originalFile)
	if err != nil {
		return err
	}

	min, max, scale, offset := idx.quant.Parameters()

	table := iostore.NewRootTable(ivfSchema)
	table.Put("centroids", iostore.TypeEntry(centroidsFile, dtype.F32, idx.dim, uint64(len(idx.centroids)), centroidsUUID))
	table.Put("clusters_archive", iostore.TypeEntry(archiveFile, dtype.I8, idx.dim, totalMembers, archiveUUID))
	table.Put("ids", iostore.TypeEntry(idsFile, dtype.U64, 1, totalMembers, idsUUID))
	table.Put("cluster_sizes", iostore.TypeEntry(sizesFile, dtype.U64, 1, uint64(len(idx.clusters)), sizesUUID))
	table.Put("ids_offsets", iostore.TypeEntry(offsetsFile, dtype.U64, 1, uint64(len(idx.clusters)), offsetsUUID))
	table.Put("original", iostore.TypeEntry(originalFile, dtype.F32, idx.dim, totalMembers, originalUUID))
	table.SetString("distance", idx.metricTag.String())
	table.SetInt("layout", int64(idx.params.Layout))
	table.SetInt("num_centroids", int64(idx.params.NumCentroids))
	table.SetInt("minibatch_size", int64(idx.params.MinibatchSize))
	table.SetInt("num_iterations", int64(idx.params.NumIterations))
	table.SetBool("is_hierarchical", idx.params.IsHierarchical)
	table.SetFloat("training_fraction", idx.params.TrainingFraction)
	table.SetInt("hierarchical_level1_clusters", int64(idx.params.HierarchicalLevel1Clusters))
	table.SetInt("seed", idx.params.Seed)
	table.SetFloat("quant_min", float64(min))
	table.SetFloat("quant_max", float64(max))
	table.SetFloat("quant_scale", float64(scale))
	table.SetFloat("quant_offset", float64(offset))

	return iostore.SaveRootTable(filepath.Join(dir, "svs_config.toml"), table)
}

// writeClusterArchive packs every cluster's (id, code) pairs into the
// shared clusters_archive/ids files, in cluster order, recording each
// cluster's size and its cumulative start offset into ids_offsets so a
// loader can seek directly to one cluster without reading the ones before
// it. original records the same members' unquantized vectors in the same
// global order, for exact-distance reranking after load.
func writeClusterArchive(archivePath, idsPath, sizesPath, offsetsPath, originalPath string, clusters []*Cluster, original map[uint64][]float32) (uint64, error) {
	archiveF, err := os.Create(archivePath)
	if err != nil {
		return 0, fmt.Errorf("ivf: creating %s: %w", archivePath, err)
	}
	defer archiveF.Close()
	idsF, err := os.Create(idsPath)
	if err != nil {
		return 0, fmt.Errorf("ivf: creating %s: %w", idsPath, err)
	}
	defer idsF.Close()
	sizesF, err := os.Create(sizesPath)
	if err != nil {
		return 0, fmt.Errorf("ivf: creating %s: %w", sizesPath, err)
	}
	defer sizesF.Close()
	offsetsF, err := os.Create(offsetsPath)
	if err != nil {
		return 0, fmt.Errorf("ivf: creating %s: %w", offsetsPath, err)
	}
	defer offsetsF.Close()
	originalF, err := os.Create(originalPath)
	if err != nil {
		return 0, fmt.Errorf("ivf: creating %s: %w", originalPath, err)
	}
	defer originalF.Close()

	archiveW := bufio.NewWriter(archiveF)
	idsW := bufio.NewWriter(idsF)
	sizesW := bufio.NewWriter(sizesF)
	offsetsW := bufio.NewWriter(offsetsF)
	originalW := bufio.NewWriter(originalF)

	var u64Buf [8]byte
	var floatBuf [4]byte
	offset := uint64(0)
	for _, c := range clusters {
		binary.LittleEndian.PutUint64(u64Buf[:], offset)
		if _, err := offsetsW.Write(u64Buf[:]); err != nil {
			return 0, fmt.Errorf("ivf: writing %s: %w", offsetsPath, err)
		}
		size := uint64(c.Len())
		binary.LittleEndian.PutUint64(u64Buf[:], size)
		if _, err := sizesW.Write(u64Buf[:]); err != nil {
			return 0, fmt.Errorf("ivf: writing %s: %w", sizesPath, err)
		}

		for i := 0; i < c.Len(); i++ {
			id := c.ids[i]
			binary.LittleEndian.PutUint64(u64Buf[:], id)
			if _, err := idsW.Write(u64Buf[:]); err != nil {
				return 0, fmt.Errorf("ivf: writing %s: %w", idsPath, err)
			}

			for _, b := range c.code(i) {
				if err := archiveW.WriteByte(byte(b)); err != nil {
					return 0, fmt.Errorf("ivf: writing %s: %w", archivePath, err)
				}
			}

			vec := original[id]
			for _, x := range vec {
				binary.LittleEndian.PutUint32(floatBuf[:], math.Float32bits(x))
				if _, err := originalW.Write(floatBuf[:]); err != nil {
					return 0, fmt.Errorf("ivf: writing %s: %w", originalPath, err)
				}
			}
		}
		offset += size
	}

	for name, w := range map[string]*bufio.Writer{archivePath: archiveW, idsPath: idsW, sizesPath: sizesW, offsetsPath: offsetsW, originalPath: originalW} {
		if err := w.Flush(); err != nil {
			return 0, fmt.Errorf("ivf: flushing %s: %w", name, err)
		}
	}
	return offset, nil
}

// Load reads an Index previously written by (*Index).Save.
func Load(dir string) (*Index, error) {
	table, err := iostore.LoadRootTable(filepath.Join(dir, "svs_config.toml"), ivfSchema, iostore.CurrentVersion)
	if err != nil {
		return nil, err
	}

	centroidsEntry, ok := table.Get("centroids")
	if !ok {
		return nil, fmt.Errorf("ivf: save table missing centroids artifact")
	}
	archiveEntry, ok := table.Get("clusters_archive")
	if !ok {
		return nil, fmt.Errorf("ivf: save table missing clusters_archive artifact")
	}
	idsEntry, ok := table.Get("ids")
	if !ok {
		return nil, fmt.Errorf("ivf: save table missing ids artifact")
	}
	sizesEntry, ok := table.Get("cluster_sizes")
	if !ok {
		return nil, fmt.Errorf("ivf: save table missing cluster_sizes artifact")
	}
	originalEntry, ok := table.Get("original")
	if !ok {
		return nil, fmt.Errorf("ivf: save table missing original artifact")
	}
	dim := centroidsEntry.Dims
	flatCentroids, err := vecfile.ReadSVS(filepath.Join(dir, centroidsEntry.Filename), centroidsEntry.NumVectors, dim)
	if err != nil {
		return nil, fmt.Errorf("ivf: loading centroids: %w", err)
	}
	centroids := make([][]float32, centroidsEntry.NumVectors)
	for i := range centroids {
		centroids[i] = append([]float32(nil), flatCentroids[i*dim:(i+1)*dim]...)
	}

	distanceTag, ok := table.String("distance")
	if !ok {
		return nil, fmt.Errorf("ivf: save table missing distance tag")
	}
	metricTag, err := dtype.ParseMetric(distanceTag)
	if err != nil {
		return nil, fmt.Errorf("ivf: %w", err)
	}
	metric, err := distance.Get(metricTag)
	if err != nil {
		return nil, fmt.Errorf("ivf: %w", err)
	}

	layout, _ := table.Int("layout")
	numCentroids, _ := table.Int("num_centroids")
	minibatchSize, _ := table.Int("minibatch_size")
	numIterations, _ := table.Int("num_iterations")
	isHierarchical, _ := table.Bool("is_hierarchical")
	trainingFraction, _ := table.Float("training_fraction")
	hierarchicalLevel1Clusters, _ := table.Int("hierarchical_level1_clusters")
	seed, _ := table.Int("seed")

	params := BuildParameters{
		NumCentroids:               int(numCentroids),
		MinibatchSize:              int(minibatchSize),
		NumIterations:              int(numIterations),
		IsHierarchical:             isHierarchical,
		TrainingFraction:           trainingFraction,
		HierarchicalLevel1Clusters: int(hierarchicalLevel1Clusters),
		Seed:                       seed,
		Layout:                     Layout(layout),
	}

	minQ, _ := table.Float("quant_min")
	maxQ, _ := table.Float("quant_max")
	scaleQ, _ := table.Float("quant_scale")
	offsetQ, _ := table.Float("quant_offset")
	quant := quantization.New(metricTag)
	quant.SetParameters(float32(minQ), float32(maxQ), float32(scaleQ), float32(offsetQ))

	sizes, err := readUint64Array(filepath.Join(dir, sizesEntry.Filename), sizesEntry.NumVectors)
	if err != nil {
		return nil, fmt.Errorf("ivf: loading cluster sizes: %w", err)
	}

	clusters, original, err := readClusterArchive(filepath.Join(dir, archiveEntry.Filename), filepath.Join(dir, idsEntry.Filename), filepath.Join(dir, originalEntry.Filename), sizes, dim, params.Layout, originalEntry.NumVectors)
	if err != nil {
		return nil, err
	}

	return &Index{
		dim:       dim,
		metric:    metric,
		metricTag: metricTag,
		params:    params,
		centroids: centroids,
		clusters:  clusters,
		quant:     quant,
		original:  original,
	}, nil
}

func readClusterArchive(archivePath, idsPath, originalPath string, sizes []uint64, dim int, layout Layout, totalMembers uint64) ([]*Cluster, map[uint64][]float32, error) {
	archiveF, err := os.Open(archivePath)
	if err != nil {
		return nil, nil, fmt.Errorf("ivf: opening %s: %w", archivePath, err)
	}
	defer archiveF.Close()
	idsF, err := os.Open(idsPath)
	if err != nil {
		return nil, nil, fmt.Errorf("ivf: opening %s: %w", idsPath, err)
	}
	defer idsF.Close()
	originalF, err := os.Open(originalPath)
	if err != nil {
		return nil, nil, fmt.Errorf("ivf: opening %s: %w", originalPath, err)
	}
	defer originalF.Close()

	archiveR := bufio.NewReader(archiveF)
	idsR := bufio.NewReader(idsF)
	originalR := bufio.NewReader(originalF)

	clusters := make([]*Cluster, len(sizes))
	original := make(map[uint64][]float32, totalMembers)
	var idBuf [8]byte
	codeBuf := make([]byte, dim)
	floatBuf := make([]byte, dim*4)

	for ci, size := range sizes {
		c := newCluster(layout, dim)
		for m := uint64(0); m < size; m++ {
			if _, err := io.ReadFull(idsR, idBuf[:]); err != nil {
				return nil, nil, fmt.Errorf("ivf: reading %s: %w", idsPath, err)
			}
			id := binary.LittleEndian.Uint64(idBuf[:])

			if _, err := io.ReadFull(archiveR, codeBuf); err != nil {
				return nil, nil, fmt.Errorf("ivf: reading %s: %w", archivePath, err)
			}
			code := make([]int8, dim)
			for i, b := range codeBuf {
				code[i] = int8(b)
			}
			c.Add(id, code)

			if _, err := io.ReadFull(originalR, floatBuf); err != nil {
				return nil, nil, fmt.Errorf("ivf: reading %s: %w", originalPath, err)
			}
			vec := make([]float32, dim)
			for i := range vec {
				vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(floatBuf[i*4:]))
			}
			original[id] = vec
		}
		clusters[ci] = c
	}
	return clusters, original, nil
}

func readUint64Array(path string, n uint64) ([]uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ivf: opening %s: %w", path, err)
	}
	defer f.Close()
	r := bufio.NewReader(f)
	out := make([]uint64, n)
	var buf [8]byte
	for i := range out {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, fmt.Errorf("ivf: reading %s: %w", path, err)
		}
		out[i] = binary.LittleEndian.Uint64(buf[:])
	}
	return out, nil
}
