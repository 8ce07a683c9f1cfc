package types

// ModelKind distinguishes how a registry entry is executed.
type ModelKind string

const (
	// KindGraph is a model directory holding a genai_config document and one
	// or more inference graphs. Served through the graph engine, with
	// optional ahead-of-time EP-context compilation.
	KindGraph ModelKind = "graph"
	// KindGGUF is a single-file gguf model served through the llama adapter.
	KindGGUF ModelKind = "gguf"
)

// Model represents a discoverable model on disk.
type Model struct {
	// Stable identifier for the model.
	// example: phi3-mini
	ID string `json:"id" example:"phi3-mini"`
	// Human-friendly name.
	// example: Phi-3 Mini
	Name string `json:"name" example:"Phi-3 Mini"`
	// Absolute path: a directory for graph models, a file for gguf models.
	// example: /home/user/models/phi3-mini
	Path string `json:"path" example:"/home/user/models/phi3-mini"`
	// How the model is executed.
	// example: graph
	Kind ModelKind `json:"kind" example:"graph"`
}
