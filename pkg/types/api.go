package types

// GenerateRequest represents a generation request payload.
type GenerateRequest struct {
	// Optional model identifier. If empty, the server default is used.
	// example: phi3-mini
	Model string `json:"model,omitempty" example:"phi3-mini"`
	// Required prompt text to generate a completion for.
	// example: Write a haiku about the ocean.
	Prompt string `json:"prompt" example:"Write a haiku about the ocean."`
	// If true, stream results as NDJSON tokens.
	// example: true
	Stream bool `json:"stream,omitempty" example:"true"`
	// Maximum total sequence length (prompt + generated tokens).
	// example: 256
	MaxLength int `json:"max_length,omitempty" example:"256"`
	// Optional stop sequences. Generation stops when any sequence is matched.
	// example: ["\n\n","END"]
	Stop []string `json:"stop,omitempty" example:"[\"\\n\\n\",\"END\"]"`
}

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	// List of available models.
	Models []Model `json:"models"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// InstanceStatus summarizes a loaded instance for /status.
type InstanceStatus struct {
	// ID of the model this instance serves.
	// example: phi3-mini
	ModelID string `json:"model_id" example:"phi3-mini"`
	// Current lifecycle state of the instance (e.g., loading, ready).
	// example: ready
	State string `json:"state" example:"ready"`
	// Last time this instance served a request (unix seconds).
	// example: 1700000000
	LastUsed int64 `json:"last_used_unix" example:"1700000000"`
	// Estimated memory usage in MB.
	// example: 1200
	EstMemoryMB int `json:"est_memory_mb" example:"1200"`
	// Current queue length for incoming requests.
	// example: 0
	QueueLen int `json:"queue_len" example:"0"`
	// Number of in-flight requests currently being processed.
	// example: 1
	Inflight int `json:"inflight" example:"1"`
	// Maximum queued requests allowed before backpressure triggers.
	// example: 32
	MaxQueueDepth int `json:"max_queue_depth" example:"32"`
	// Compiled artifact paths by graph id, when AOT compilation is enabled.
	CompiledPaths map[string]string `json:"compiled_paths,omitempty"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Loaded/managed instances.
	Instances []InstanceStatus `json:"instances"`
	// Memory budget in MB across all instances.
	// example: 8192
	BudgetMB int `json:"budget_mb" example:"8192"`
	// Estimated used memory in MB.
	// example: 2048
	UsedMB int `json:"used_est_mb" example:"2048"`
	// Reserved memory margin in MB.
	// example: 512
	MarginMB int `json:"margin_mb" example:"512"`
	// Optional top-level error message.
	Error string `json:"error,omitempty"`
	// Overall manager state (e.g., loading, ready, error).
	// example: ready
	State string `json:"state" example:"ready"`
	// Total number of evictions performed to free memory.
	// example: 5
	EvictionsTotal uint64 `json:"evictions_total" example:"5"`
	// Total number of model loads.
	// example: 12
	LoadsTotal uint64 `json:"loads_total" example:"12"`
}
