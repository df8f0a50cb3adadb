package flat

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vsearch/svs/pkg/dataset"
	"github.com/vsearch/svs/pkg/distance"
	"github.com/vsearch/svs/pkg/dtype"
	"github.com/vsearch/svs/pkg/iostore"
	"github.com/vsearch/svs/pkg/vecfile"
)

const schema = "flat"

// Save writes idx to dir: a svs_config.toml recording the distance tag
// and shape, plus a single data/ artifact holding the raw dataset — the
// simplest of the four index layouts spec §6 describes, since Flat has no
// graph, centroids, or quantizer to persist alongside the vectors.
func (idx *Index) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("flat: creating %s: %w", dir, err)
	}
	dataFile, dataPath := iostore.NewSaveContext(dir).Artifact("data")
	n := idx.Dataset.Size()
	dims := idx.Dataset.Dimensions()
	if err := vecfile.WriteRows(dataPath, n, idx.Dataset.Get); err != nil {
		return fmt.Errorf("flat: writing data: %w", err)
	}
	dataUUID, err := iostore.ArtifactUUID(dataFile)
	if err != nil {
		return err
	}

	table := iostore.NewRootTable(schema)
	table.Put("data", iostore.TypeEntry(dataFile, dtype.F32, dims, n, dataUUID))
	table.SetString("distance", idx.Metric.Tag.String())

	return iostore.SaveRootTable(filepath.Join(dir, "svs_config.toml"), table)
}

// Load reads an Index previously written by (*Index).Save.
func Load(dir string) (*Index, error) {
	table, err := iostore.LoadRootTable(filepath.Join(dir, "svs_config.toml"), schema, iostore.CurrentVersion)
	if err != nil {
		return nil, err
	}
	dataEntry, ok := table.Get("data")
	if !ok {
		return nil, fmt.Errorf("flat: save table missing data artifact")
	}
	ds := dataset.NewContiguous(dataEntry.NumVectors, dataEntry.Dims)
	if err := vecfile.ReadRows(filepath.Join(dir, dataEntry.Filename), dataEntry.NumVectors, dataEntry.Dims, ds.Set); err != nil {
		return nil, fmt.Errorf("flat: loading data: %w", err)
	}

	distanceTag, ok := table.String("distance")
	if !ok {
		return nil, fmt.Errorf("flat: save table missing distance tag")
	}
	metricTag, err := dtype.ParseMetric(distanceTag)
	if err != nil {
		return nil, fmt.Errorf("flat: %w", err)
	}
	metric, err := distance.Get(metricTag)
	if err != nil {
		return nil, fmt.Errorf("flat: %w", err)
	}

	return &Index{Dataset: ds, Metric: metric}, nil
}
