package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr           string `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir      string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	MemoryBudgetMB int    `json:"memory_budget_mb" yaml:"memory_budget_mb" toml:"memory_budget_mb"`
	MemoryMarginMB int    `json:"memory_margin_mb" yaml:"memory_margin_mb" toml:"memory_margin_mb"`
	DefaultModel   string `json:"default_model" yaml:"default_model" toml:"default_model"`
	// Engine selects the graph execution engine by registered name.
	Engine string `json:"engine" yaml:"engine" toml:"engine"`
	// EngineVerboseLogging enables verbose engine-side logging. Passed to the
	// engine at initialization; never set through process environment.
	EngineVerboseLogging bool `json:"engine_verbose_logging" yaml:"engine_verbose_logging" toml:"engine_verbose_logging"`
	MaxQueueDepth        int  `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth"`
	MaxWaitSeconds       int  `json:"max_wait_seconds" yaml:"max_wait_seconds" toml:"max_wait_seconds"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := unmarshalByExt(path, b, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// unmarshalByExt decodes b into v based on the file extension of path.
func unmarshalByExt(path string, b []byte, v any) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return yaml.Unmarshal(b, v)
	case ".json":
		return json.Unmarshal(b, v)
	case ".toml":
		return toml.Unmarshal(b, v)
	default:
		return fmt.Errorf("unsupported config extension: %s", ext)
	}
}
