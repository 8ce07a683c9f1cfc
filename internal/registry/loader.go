// Package registry discovers loadable models under a models directory.
// Two layouts are recognized: a subdirectory containing a genai_config
// document is a graph model, and a top-level *.gguf file is a gguf model.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"genaid/internal/common/fsutil"
	"genaid/internal/config"
	"genaid/pkg/types"
)

// LoadDir scans dir and returns every discovered model. IDs are the
// directory name (graph models) or the full filename (gguf models); paths
// are absolute.
func LoadDir(dir string) ([]types.Model, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		name := e.Name()
		p := filepath.Join(abs, name)
		if e.IsDir() {
			if !config.IsModelDir(p) {
				continue
			}
			models = append(models, types.Model{ID: name, Name: modelDisplayName(p, name), Path: p, Kind: types.KindGraph})
			continue
		}
		if strings.HasSuffix(strings.ToLower(name), ".gguf") {
			models = append(models, types.Model{ID: name, Name: name, Path: p, Kind: types.KindGGUF})
		}
	}
	return models, nil
}

// modelDisplayName prefers the name declared in the model config, falling
// back to the directory name.
func modelDisplayName(dir, fallback string) string {
	mc, err := config.LoadModelConfig(dir)
	if err != nil || mc.Name == "" {
		return fallback
	}
	return mc.Name
}

// Find returns the model with the given ID from dir.
func Find(dir, id string) (types.Model, error) {
	models, err := LoadDir(dir)
	if err != nil {
		return types.Model{}, err
	}
	for _, m := range models {
		if m.ID == id {
			return m, nil
		}
	}
	return types.Model{}, fmt.Errorf("model not found: %s", id)
}
