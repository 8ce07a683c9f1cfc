package manager

import (
	"io/fs"
	"os"
	"path/filepath"

	"genaid/pkg/types"
)

// Helper: find model in registry by id.
func (m *Manager) getModelByID(id string) (types.Model, bool) {
	for _, mdl := range m.registry {
		if mdl.ID == id {
			return mdl, true
		}
	}
	return types.Model{}, false
}

// Helper: estimate memory from on-disk size (MB). gguf models are a single
// file; graph models sum every file under the model directory. Returns a
// conservative minimum of 1MB on error so budget checks are never bypassed
// by an unknown size.
func (m *Manager) estimateMemoryMB(mdl types.Model) int {
	var bytes int64
	switch mdl.Kind {
	case types.KindGraph:
		_ = filepath.WalkDir(mdl.Path, func(p string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			if fi, e := d.Info(); e == nil {
				bytes += fi.Size()
			}
			return nil
		})
	default:
		if fi, err := os.Stat(mdl.Path); err == nil {
			bytes = fi.Size()
		}
	}
	mb := int(bytes / (1024 * 1024))
	if mb <= 0 {
		// Fall back to the persisted estimate from a previous run, then to a
		// 1MB floor.
		if rec, ok := m.lruMeta[mdl.ID]; ok && rec.EstMemoryMB > 0 {
			return rec.EstMemoryMB
		}
		mb = 1
	}
	return mb
}
