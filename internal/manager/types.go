package manager

import (
	"time"

	"genaid/internal/runtime"
	"genaid/pkg/types"
)

// State represents lifecycle state of the manager/instances.
type State string

const (
	StateReady    State = "ready"
	StateLoading  State = "loading"
	StateDraining State = "draining"
	StateError    State = "error"
)

// ModelInfo is a minimal view of the current model.
type ModelInfo struct {
	ID   string
	Name string
	Path string
	Kind types.ModelKind
}

// Snapshot is a read-only projection of the manager state.
type Snapshot struct {
	State        State
	CurrentModel *ModelInfo
	Err          string
}

// Instance represents a live model context (one per model id).
type Instance struct {
	ID          string
	Kind        types.ModelKind
	State       State
	LastUsed    time.Time
	EstMemoryMB int
	// Queueing primitives
	genCh   chan struct{} // size 1: single in-flight generation
	queueCh chan struct{} // buffered: queue slots
	// Graph instances hold the loaded model and its tokenizer; nil for gguf.
	model runtime.Model
	tok   runtime.Tokenizer
}
