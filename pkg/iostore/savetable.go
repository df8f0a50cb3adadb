// Package iostore implements the persisted index layout (spec §6): a
// root save table (svs_config.toml) recording one entry per binary
// artifact, content-addressed artifact filenames minted by a save
// context, and the type-erased owning-storage allocators (heap,
// memory-mapped, huge-page-simulated) datasets and graphs allocate
// through.
//
// Grounded on the *shape* of semadb's diskstore.Bucket abstraction
// (shard/cache: a metadata/binary-blob split behind one save/load call) —
// no example repo serialises a TOML root table or mints UUID-suffixed
// filenames, so that half is new code built directly off spec §6.
package iostore

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/vsearch/svs/pkg/dtype"
)

// ArtifactEntry describes one binary artifact referenced from the root
// save table: its filename, element type, shape, and the UUID suffix of
// its filename (the artifact files themselves carry no embedded header).
type ArtifactEntry struct {
	Filename   string `toml:"filename"`
	Type       string `toml:"type"`
	Dims       int    `toml:"dims"`
	NumVectors uint64 `toml:"num_vectors"`
	UUID       string `toml:"uuid"`
}

// Version is the three-component save-table format revision spec §4.10
// names explicitly: "a Version(major, minor, patch)". Comparison is
// lexicographic on (major, minor, patch), matching spec §4.10/§7 exactly
// ("version comparison is lexicographic... loaders specify a maximum
// accepted version").
type Version struct {
	Major int `toml:"major"`
	Minor int `toml:"minor"`
	Patch int `toml:"patch"`
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0, or 1 as v sorts before, equal to, or after o under
// lexicographic (major, minor, patch) ordering.
func (v Version) Compare(o Version) int {
	switch {
	case v.Major != o.Major:
		return sign(v.Major - o.Major)
	case v.Minor != o.Minor:
		return sign(v.Minor - o.Minor)
	default:
		return sign(v.Patch - o.Patch)
	}
}

// LessOrEqualTo reports whether v is at or below the ceiling a loader
// configured as its maximum accepted version.
func (v Version) LessOrEqualTo(ceiling Version) bool { return v.Compare(ceiling) <= 0 }

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

// CurrentVersion is the save-table format revision this build writes.
var CurrentVersion = Version{Major: 1, Minor: 0, Patch: 0}

// RootTable is the schema/version/body envelope persisted as
// svs_config.toml (spec §4.10: "a string schema, a Version(major, minor,
// patch), and an object body"). Schema names the index kind ("vamana",
// "vamana_dynamic", "ivf", "flat", or one of their per-subdirectory
// children); Artifacts maps a logical artifact name ("graph", "data",
// "centroids", ...) to the binary blob describing it; Body carries the
// free-form typed scalar fields (build parameters, distance tag, entry
// point, ...) that don't warrant their own Go type in this package.
type RootTable struct {
	Schema    string                   `toml:"schema"`
	Version   Version                  `toml:"version"`
	Body      map[string]any           `toml:"body"`
	Artifacts map[string]ArtifactEntry `toml:"artifacts"`
}

// NewRootTable starts an empty table for the given schema name at
// CurrentVersion.
func NewRootTable(schema string) *RootTable {
	return &RootTable{Schema: schema, Version: CurrentVersion, Body: map[string]any{}, Artifacts: map[string]ArtifactEntry{}}
}

// SetInt, SetFloat, SetString, and SetBool stash a scalar config value in
// the table's body. Int reads back either an int64 or a float64 written
// through Unmarshal (go-toml/v2 decodes a TOML integer literal as int64
// into an `any`, but this package controls both the writer and the
// reader, so the exact representation is normalised here rather than
// left to the caller to guess).
func (t *RootTable) SetInt(key string, v int64)     { t.body()[key] = v }
func (t *RootTable) SetFloat(key string, v float64) { t.body()[key] = v }
func (t *RootTable) SetString(key string, v string) { t.body()[key] = v }
func (t *RootTable) SetBool(key string, v bool)     { t.body()[key] = v }

func (t *RootTable) body() map[string]any {
	if t.Body == nil {
		t.Body = map[string]any{}
	}
	return t.Body
}

// Int reads back a value stashed with SetInt (or SetFloat, if the caller
// stored a whole number through the float path).
func (t *RootTable) Int(key string) (int64, bool) {
	v, ok := t.Body[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

// Float reads back a value stashed with SetFloat (or SetInt).
func (t *RootTable) Float(key string) (float64, bool) {
	v, ok := t.Body[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// String reads back a value stashed with SetString.
func (t *RootTable) String(key string) (string, bool) {
	v, ok := t.Body[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Bool reads back a value stashed with SetBool.
func (t *RootTable) Bool(key string) (bool, bool) {
	v, ok := t.Body[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// Put records (or overwrites) the entry for a logical artifact name.
func (t *RootTable) Put(name string, entry ArtifactEntry) {
	if t.Artifacts == nil {
		t.Artifacts = map[string]ArtifactEntry{}
	}
	t.Artifacts[name] = entry
}

// Get looks up a logical artifact's entry.
func (t *RootTable) Get(name string) (ArtifactEntry, bool) {
	e, ok := t.Artifacts[name]
	return e, ok
}

// TypeEntry is a convenience constructor building an ArtifactEntry from a
// dtype.Type tag instead of a raw string.
func TypeEntry(filename string, elem dtype.Type, dims int, n uint64, id string) ArtifactEntry {
	return ArtifactEntry{Filename: filename, Type: elem.String(), Dims: dims, NumVectors: n, UUID: id}
}

// SaveRootTable writes t to path as TOML (spec §6's svs_config.toml).
func SaveRootTable(path string, t *RootTable) error {
	data, err := toml.Marshal(t)
	if err != nil {
		return fmt.Errorf("iostore: marshalling root table: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("iostore: writing %s: %w", path, err)
	}
	return nil
}

// LoadRootTable reads and parses a svs_config.toml file, enforcing spec
// §4.10's two load-time checks: "loading requires a matching schema" and
// a version at or below the loader's maxVersion ceiling ("version
// comparison is lexicographic... loaders specify a maximum accepted
// version", spec §7 Schema error).
func LoadRootTable(path, wantSchema string, maxVersion Version) (*RootTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("iostore: reading %s: %w", path, err)
	}
	var t RootTable
	if err := toml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("iostore: parsing %s: %w", path, err)
	}
	if t.Schema != wantSchema {
		return nil, fmt.Errorf("iostore: %s has schema %q, loader expects %q", path, t.Schema, wantSchema)
	}
	if !t.Version.LessOrEqualTo(maxVersion) {
		return nil, fmt.Errorf("iostore: %s has save-table version %s, this loader accepts up to %s", path, t.Version, maxVersion)
	}
	return &t, nil
}
