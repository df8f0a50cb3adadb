package vamana

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/RoaringBitmap/roaring/roaring64"

	"github.com/vsearch/svs/pkg/dataset"
	"github.com/vsearch/svs/pkg/distance"
	"github.com/vsearch/svs/pkg/dtype"
	"github.com/vsearch/svs/pkg/graph"
	"github.com/vsearch/svs/pkg/iostore"
	"github.com/vsearch/svs/pkg/vecfile"
)

const (
	staticSchema  = "vamana"
	dynamicSchema = "vamana_dynamic"
)

// Save writes idx to dir using the layout spec §6 describes for a static
// Vamana index: a config/ subdirectory holding the root save table
// (build parameters, distance tag, entry point), a graph/ subdirectory
// holding the adjacency blob, and a data/ subdirectory holding the raw
// vector blob — three independently named artifacts tied together by the
// one svs_config.toml, per spec §4.10/§6.
func (idx *StaticIndex) Save(dir string) error {
	configDir, graphDir, dataDir := filepath.Join(dir, "config"), filepath.Join(dir, "graph"), filepath.Join(dir, "data")
	for _, d := range []string{configDir, graphDir, dataDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("vamana: creating %s: %w", d, err)
		}
	}

	n := idx.Dataset.Size()
	dims := idx.Dataset.Dimensions()

	graphFile, graphPath := iostore.NewSaveContext(graphDir).Artifact("graph")
	if err := idx.Graph.Encode(graphPath); err != nil {
		return fmt.Errorf("vamana: writing graph: %w", err)
	}
	graphUUID, err := iostore.ArtifactUUID(graphFile)
	if err != nil {
		return err
	}

	dataFile, dataPath := iostore.NewSaveContext(dataDir).Artifact("data")
	if err := vecfile.WriteRows(dataPath, n, idx.Dataset.Get); err != nil {
		return fmt.Errorf("vamana: writing data: %w", err)
	}
	dataUUID, err := iostore.ArtifactUUID(dataFile)
	if err != nil {
		return err
	}

	table := iostore.NewRootTable(staticSchema)
	table.Put("graph", iostore.TypeEntry(graphFile, dtype.U64, idx.Graph.MaxDegree(), n, graphUUID))
	table.Put("data", iostore.TypeEntry(dataFile, dtype.F32, dims, n, dataUUID))
	table.SetString("distance", idx.Metric.Tag.String())
	table.SetInt("entry", int64(idx.Entry))
	putBuildParameters(table, idx.Params)

	return iostore.SaveRootTable(filepath.Join(configDir, "svs_config.toml"), table)
}

// LoadStatic reads a static Vamana index previously written by
// (*StaticIndex).Save.
func LoadStatic(dir string) (*StaticIndex, error) {
	configDir, graphDir, dataDir := filepath.Join(dir, "config"), filepath.Join(dir, "graph"), filepath.Join(dir, "data")

	table, err := iostore.LoadRootTable(filepath.Join(configDir, "svs_config.toml"), staticSchema, iostore.CurrentVersion)
	if err != nil {
		return nil, err
	}

	graphEntry, ok := table.Get("graph")
	if !ok {
		return nil, fmt.Errorf("vamana: save table missing graph artifact")
	}
	dataEntry, ok := table.Get("data")
	if !ok {
		return nil, fmt.Errorf("vamana: save table missing data artifact")
	}

	g, err := graph.DecodeContiguous(filepath.Join(graphDir, graphEntry.Filename), graphEntry.NumVectors, graphEntry.Dims)
	if err != nil {
		return nil, fmt.Errorf("vamana: loading graph: %w", err)
	}

	ds := dataset.NewContiguous(dataEntry.NumVectors, dataEntry.Dims)
	if err := vecfile.ReadRows(filepath.Join(dataDir, dataEntry.Filename), dataEntry.NumVectors, dataEntry.Dims, ds.Set); err != nil {
		return nil, fmt.Errorf("vamana: loading data: %w", err)
	}

	metric, err := loadMetric(table)
	if err != nil {
		return nil, err
	}
	entry, _ := table.Int("entry")

	return &StaticIndex{
		Dataset: ds,
		Graph:   g,
		Metric:  metric,
		Entry:   uint64(entry),
		Params:  getBuildParameters(table),
	}, nil
}

// Save writes idx to dir as the dynamic Vamana layout: the same
// config/+graph/+data/ shape as StaticIndex.Save, plus two extra config/
// artifacts a static index has no use for — internal_to_external (the
// slot->external-id table, with free slots recorded as noSlot and
// tombstoned slots still holding their old external id until Consolidate)
// and deleted (the tombstone bitmap) — so Load can resume
// insert/delete/consolidate exactly where Save left off, not just serve
// search.
func (idx *Dynamic) Save(dir string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	configDir, graphDir, dataDir := filepath.Join(dir, "config"), filepath.Join(dir, "graph"), filepath.Join(dir, "data")
	for _, d := range []string{configDir, graphDir, dataDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("vamana: creating %s: %w", d, err)
		}
	}

	n := idx.dataset.Size()
	dims := idx.dataset.Dimensions()

	graphFile, graphPath := iostore.NewSaveContext(graphDir).Artifact("graph")
	if err := idx.graph.Encode(graphPath); err != nil {
		return fmt.Errorf("vamana: writing graph: %w", err)
	}
	graphUUID, err := iostore.ArtifactUUID(graphFile)
	if err != nil {
		return err
	}

	dataFile, dataPath := iostore.NewSaveContext(dataDir).Artifact("data")
	if err := vecfile.WriteRows(dataPath, n, idx.dataset.Get); err != nil {
		return fmt.Errorf("vamana: writing data: %w", err)
	}
	dataUUID, err := iostore.ArtifactUUID(dataFile)
	if err != nil {
		return err
	}

	idMapFile, idMapPath := iostore.NewSaveContext(configDir).Artifact("internal_to_external")
	if err := writeIDMap(idMapPath, idx.internalToExternal); err != nil {
		return fmt.Errorf("vamana: writing id map: %w", err)
	}
	idMapUUID, err := iostore.ArtifactUUID(idMapFile)
	if err != nil {
		return err
	}

	deletedFile, deletedPath := iostore.NewSaveContext(configDir).Artifact("deleted")
	if err := writeBitmap(deletedPath, idx.deleted); err != nil {
		return fmt.Errorf("vamana: writing tombstone bitmap: %w", err)
	}
	deletedUUID, err := iostore.ArtifactUUID(deletedFile)
	if err != nil {
		return err
	}

	table := iostore.NewRootTable(dynamicSchema)
	table.Put("graph", iostore.TypeEntry(graphFile, dtype.U64, idx.graph.MaxDegree(), n, graphUUID))
	table.Put("data", iostore.TypeEntry(dataFile, dtype.F32, dims, n, dataUUID))
	table.Put("internal_to_external", iostore.TypeEntry(idMapFile, dtype.U64, 1, uint64(len(idx.internalToExternal)), idMapUUID))
	table.Put("deleted", iostore.TypeEntry(deletedFile, dtype.U8, 0, 0, deletedUUID))
	table.SetString("distance", idx.metric.Tag.String())
	table.SetBool("has_entry", idx.hasEntry)
	table.SetInt("entry", int64(idx.entry))
	putBuildParameters(table, idx.params)

	return iostore.SaveRootTable(filepath.Join(configDir, "svs_config.toml"), table)
}

// LoadDynamic reads a dynamic Vamana index previously written by
// (*Dynamic).Save, reconstructing externalToInternal and freeSlots from
// internalToExternal (a slot maps back to noSlot exactly when it is free)
// and the tombstone bitmap (a tombstoned slot gets no external mapping),
// so neither needs its own artifact.
func LoadDynamic(dir string) (*Dynamic, error) {
	configDir, graphDir, dataDir := filepath.Join(dir, "config"), filepath.Join(dir, "graph"), filepath.Join(dir, "data")

	table, err := iostore.LoadRootTable(filepath.Join(configDir, "svs_config.toml"), dynamicSchema, iostore.CurrentVersion)
	if err != nil {
		return nil, err
	}

	graphEntry, ok := table.Get("graph")
	if !ok {
		return nil, fmt.Errorf("vamana: save table missing graph artifact")
	}
	dataEntry, ok := table.Get("data")
	if !ok {
		return nil, fmt.Errorf("vamana: save table missing data artifact")
	}
	idMapEntry, ok := table.Get("internal_to_external")
	if !ok {
		return nil, fmt.Errorf("vamana: save table missing internal_to_external artifact")
	}
	deletedEntry, ok := table.Get("deleted")
	if !ok {
		return nil, fmt.Errorf("vamana: save table missing deleted artifact")
	}

	g, err := graph.DecodeBlocked(filepath.Join(graphDir, graphEntry.Filename), graphEntry.NumVectors, graphEntry.Dims)
	if err != nil {
		return nil, fmt.Errorf("vamana: loading graph: %w", err)
	}

	ds := dataset.NewBlocked(dataEntry.NumVectors, dataEntry.Dims, 0)
	if err := vecfile.ReadRows(filepath.Join(dataDir, dataEntry.Filename), dataEntry.NumVectors, dataEntry.Dims, ds.Set); err != nil {
		return nil, fmt.Errorf("vamana: loading data: %w", err)
	}

	internalToExternal, err := readIDMap(filepath.Join(configDir, idMapEntry.Filename), idMapEntry.NumVectors)
	if err != nil {
		return nil, fmt.Errorf("vamana: loading id map: %w", err)
	}

	deleted, err := readBitmap(filepath.Join(configDir, deletedEntry.Filename))
	if err != nil {
		return nil, fmt.Errorf("vamana: loading tombstone bitmap: %w", err)
	}

	metric, err := loadMetric(table)
	if err != nil {
		return nil, err
	}

	externalToInternal := make(map[uint64]uint64, len(internalToExternal))
	var freeSlots []uint64
	for slot, ext := range internalToExternal {
		if ext == noSlot {
			freeSlots = append(freeSlots, uint64(slot))
			continue
		}
		if deleted.Contains(uint64(slot)) {
			continue
		}
		externalToInternal[ext] = uint64(slot)
	}

	hasEntry, _ := table.Bool("has_entry")
	entry, _ := table.Int("entry")

	return &Dynamic{
		dataset:            ds,
		graph:              g,
		metric:             metric,
		params:             getBuildParameters(table),
		hasEntry:           hasEntry,
		entry:              uint64(entry),
		externalToInternal: externalToInternal,
		internalToExternal: internalToExternal,
		deleted:            deleted,
		freeSlots:          freeSlots,
	}, nil
}

func putBuildParameters(table *iostore.RootTable, p BuildParameters) {
	table.SetFloat("alpha", float64(p.Alpha))
	table.SetInt("graph_max_degree", int64(p.GraphMaxDegree))
	table.SetInt("window_size", int64(p.WindowSize))
	table.SetInt("max_candidate_pool_size", int64(p.MaxCandidatePoolSize))
	table.SetInt("prune_to", int64(p.PruneTo))
	table.SetInt("strategy", int64(p.Strategy))
	table.SetInt("num_threads", int64(p.NumThreads))
}

func getBuildParameters(table *iostore.RootTable) BuildParameters {
	alpha, _ := table.Float("alpha")
	graphMaxDegree, _ := table.Int("graph_max_degree")
	windowSize, _ := table.Int("window_size")
	maxCandidatePoolSize, _ := table.Int("max_candidate_pool_size")
	pruneTo, _ := table.Int("prune_to")
	strategy, _ := table.Int("strategy")
	numThreads, _ := table.Int("num_threads")
	return BuildParameters{
		Alpha:                float32(alpha),
		GraphMaxDegree:       int(graphMaxDegree),
		WindowSize:           int(windowSize),
		MaxCandidatePoolSize: int(maxCandidatePoolSize),
		PruneTo:              int(pruneTo),
		Strategy:             PruneStrategy(strategy),
		NumThreads:           int(numThreads),
	}
}

func loadMetric(table *iostore.RootTable) (distance.Metric, error) {
	tag, ok := table.String("distance")
	if !ok {
		return distance.Metric{}, fmt.Errorf("vamana: save table missing distance tag")
	}
	metricTag, err := dtype.ParseMetric(tag)
	if err != nil {
		return distance.Metric{}, fmt.Errorf("vamana: %w", err)
	}
	metric, err := distance.Get(metricTag)
	if err != nil {
		return distance.Metric{}, fmt.Errorf("vamana: %w", err)
	}
	return metric, nil
}

// writeIDMap and readIDMap persist the internal_to_external slot table as
// a flat array of little-endian uint64s (noSlot included verbatim for free
// slots), the same stdlib encoding/binary framing pkg/graph's adjacency
// codec uses for its own fixed-width fields.
func writeIDMap(path string, ids []uint64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("vamana: creating %s: %w", path, err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	var buf [8]byte
	for _, id := range ids {
		binary.LittleEndian.PutUint64(buf[:], id)
		if _, err := w.Write(buf[:]); err != nil {
			return fmt.Errorf("vamana: writing %s: %w", path, err)
		}
	}
	return w.Flush()
}

func readIDMap(path string, n uint64) ([]uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vamana: opening %s: %w", path, err)
	}
	defer f.Close()
	r := bufio.NewReader(f)
	out := make([]uint64, n)
	var buf [8]byte
	for i := range out {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, fmt.Errorf("vamana: reading %s: %w", path, err)
		}
		out[i] = binary.LittleEndian.Uint64(buf[:])
	}
	return out, nil
}

// writeBitmap and readBitmap persist the tombstone set via roaring64's own
// binary serialization (matching the teacher/pack's roaring-bitmap usage;
// no example repo spells the exact method names since none of them persist
// a bitmap to disk, so this follows the library's documented WriteTo/
// ReadFrom contract directly).
func writeBitmap(path string, b *roaring64.Bitmap) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("vamana: creating %s: %w", path, err)
	}
	defer f.Close()
	if _, err := b.WriteTo(f); err != nil {
		return fmt.Errorf("vamana: serializing bitmap to %s: %w", path, err)
	}
	return nil
}

func readBitmap(path string) (*roaring64.Bitmap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vamana: opening %s: %w", path, err)
	}
	defer f.Close()
	b := roaring64.New()
	if _, err := b.ReadFrom(f); err != nil {
		return nil, fmt.Errorf("vamana: parsing bitmap from %s: %w", path, err)
	}
	return b, nil
}
