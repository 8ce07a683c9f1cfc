package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// modelConfigStem is the file name (any supported extension) that marks a
// directory as a loadable graph model.
const modelConfigStem = "genai_config"

// CompileOptions controls ahead-of-time EP-context compilation of one graph.
// A nil *CompileOptions, or EnableEPContext=false, means the original graph
// file is opened directly and no compilation path is considered.
type CompileOptions struct {
	EnableEPContext        bool   `json:"enable_ep_context" yaml:"enable_ep_context" toml:"enable_ep_context"`
	GraphOptimizationLevel int    `json:"graph_optimization_level" yaml:"graph_optimization_level" toml:"graph_optimization_level"`
	// EPContextFilePath is the compiled artifact output path, resolved
	// relative to the model directory. Empty selects the default layout
	// contexts/<stem>_<engine>_ctx.onnx.
	EPContextFilePath string `json:"ep_context_file_path" yaml:"ep_context_file_path" toml:"ep_context_file_path"`
	// EPContextEmbedMode embeds the compiled context inside the output file.
	// Must be false for models above the external-initializer threshold;
	// that combination is rejected before any engine call.
	EPContextEmbedMode   bool   `json:"ep_context_embed_mode" yaml:"ep_context_embed_mode" toml:"ep_context_embed_mode"`
	ForceCompileIfNeeded bool   `json:"force_compile_if_needed" yaml:"force_compile_if_needed" toml:"force_compile_if_needed"`
	Flags                uint32 `json:"flags" yaml:"flags" toml:"flags"`

	ExternalInitializersFilePath      string `json:"external_initializers_file_path" yaml:"external_initializers_file_path" toml:"external_initializers_file_path"`
	ExternalInitializersSizeThreshold int64  `json:"external_initializers_size_threshold" yaml:"external_initializers_size_threshold" toml:"external_initializers_size_threshold"`
}

// ProviderOptions names an execution provider and its provider-specific
// options, passed through to the engine untouched.
type ProviderOptions struct {
	Name    string            `json:"name" yaml:"name" toml:"name"`
	Options map[string]string `json:"options,omitempty" yaml:"options,omitempty" toml:"options,omitempty"`
}

// SessionOptions configures one engine session.
type SessionOptions struct {
	GraphOptimizationLevel int               `json:"graph_optimization_level" yaml:"graph_optimization_level" toml:"graph_optimization_level"`
	IntraOpNumThreads      int               `json:"intra_op_num_threads" yaml:"intra_op_num_threads" toml:"intra_op_num_threads"`
	LogSeverityLevel       int               `json:"log_severity_level" yaml:"log_severity_level" toml:"log_severity_level"`
	EnableGraphCapture     bool              `json:"enable_graph_capture" yaml:"enable_graph_capture" toml:"enable_graph_capture"`
	ExecutionProviders     []ProviderOptions `json:"execution_providers,omitempty" yaml:"execution_providers,omitempty" toml:"execution_providers,omitempty"`
}

// GraphConfig describes one inference graph of a model.
type GraphConfig struct {
	// Filename of the graph, relative to the model directory.
	Filename       string          `json:"filename" yaml:"filename" toml:"filename"`
	SessionOptions SessionOptions  `json:"session_options" yaml:"session_options" toml:"session_options"`
	CompileOptions *CompileOptions `json:"compile_options,omitempty" yaml:"compile_options,omitempty" toml:"compile_options,omitempty"`
}

// PipelineGraph is a named secondary graph composed under one model
// (e.g. an encoder paired with the primary decoder).
type PipelineGraph struct {
	ID          string `json:"id" yaml:"id" toml:"id"`
	GraphConfig        // embedded fields decode at the same level as ID
}

// ModelConfig is the per-model document read from genai_config.{json,yaml,toml}
// inside the model directory.
type ModelConfig struct {
	Name string `json:"name" yaml:"name" toml:"name"`
	// Type selects the model family ("decoder" when empty).
	Type string `json:"type" yaml:"type" toml:"type"`
	// Decoder is the primary graph.
	Decoder GraphConfig `json:"decoder" yaml:"decoder" toml:"decoder"`
	// Pipeline holds the secondary graphs, compiled and opened in order.
	Pipeline []PipelineGraph `json:"pipeline,omitempty" yaml:"pipeline,omitempty" toml:"pipeline,omitempty"`
	// EOSTokenIDs stop generation when produced.
	EOSTokenIDs []int32 `json:"eos_token_ids,omitempty" yaml:"eos_token_ids,omitempty" toml:"eos_token_ids,omitempty"`
	PadTokenID  int32   `json:"pad_token_id" yaml:"pad_token_id" toml:"pad_token_id"`
	// MaxLength caps total sequence length when the request does not.
	MaxLength int `json:"max_length" yaml:"max_length" toml:"max_length"`
}

// LoadModelConfig locates and parses the genai_config document in dir.
func LoadModelConfig(dir string) (*ModelConfig, error) {
	path, err := FindModelConfig(dir)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var mc ModelConfig
	if err := unmarshalByExt(path, b, &mc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if mc.Decoder.Filename == "" {
		return nil, fmt.Errorf("%s: decoder.filename is required", path)
	}
	for _, p := range mc.Pipeline {
		if p.ID == "" || p.Filename == "" {
			return nil, fmt.Errorf("%s: pipeline entries require id and filename", path)
		}
	}
	return &mc, nil
}

// FindModelConfig returns the path of the genai_config document in dir, or an
// error when none of the supported extensions is present.
func FindModelConfig(dir string) (string, error) {
	for _, ext := range []string{".json", ".yaml", ".yml", ".toml"} {
		p := filepath.Join(dir, modelConfigStem+ext)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no %s.{json,yaml,yml,toml} in %s", modelConfigStem, dir)
}

// IsModelDir reports whether dir contains a genai_config document.
func IsModelDir(dir string) bool {
	_, err := FindModelConfig(dir)
	return err == nil
}
