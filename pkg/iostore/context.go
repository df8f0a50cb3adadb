package iostore

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
)

// SaveContext mints content-addressed artifact filenames
// (<artifact>_<uuid>.svs, spec §6) rooted at a save directory, so
// repeated saves of the same logical artifact never collide with a
// still-referenced prior version on disk.
type SaveContext struct {
	dir string
}

// NewSaveContext roots a save context at dir. The directory is not
// created here; callers create it (or rely on it already existing)
// before the first Artifact call.
func NewSaveContext(dir string) *SaveContext {
	return &SaveContext{dir: dir}
}

// Artifact mints a fresh UUID-suffixed filename for a logical artifact
// name and returns both the bare filename (for the root table entry) and
// its full path (for writing the binary blob).
func (c *SaveContext) Artifact(name string) (filename, path string) {
	id := uuid.New().String()
	filename = fmt.Sprintf("%s_%s.svs", name, id)
	return filename, filepath.Join(c.dir, filename)
}

// RootTablePath returns the path of the root save table within this
// context's directory.
func (c *SaveContext) RootTablePath() string {
	return filepath.Join(c.dir, "svs_config.toml")
}

// ArtifactUUID extracts the UUID suffix from a minted filename. The Save
// paths use it to fill each artifact entry's uuid field in the root table;
// the loaders do not re-check that field.
func ArtifactUUID(filename string) (string, error) {
	base := filepath.Base(filename)
	ext := filepath.Ext(base)
	stem := base[:len(base)-len(ext)]
	idx := lastUnderscore(stem)
	if idx < 0 {
		return "", fmt.Errorf("iostore: %q is not a content-addressed artifact filename", filename)
	}
	id := stem[idx+1:]
	if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("iostore: %q does not end in a valid uuid: %w", filename, err)
	}
	return id, nil
}

func lastUnderscore(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '_' {
			return i
		}
	}
	return -1
}
