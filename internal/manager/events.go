package manager

// Lifecycle event names emitted by the manager.
const (
	EvEnsureStart         = "ensure_start"
	EvEnsureModelNotFound = "ensure_model_not_found"
	EvEnsureBudgetFail    = "ensure_budget_fail"
	EvEnsureLoadError     = "ensure_load_error"
	EvEnsureReady         = "ensure_ready"
	EvEvicted             = "evicted"
	EvUnloadStart         = "unload_start"
	EvUnloadTimeout       = "unload_timeout"
	EvUnloadDone          = "unload_done"
)

// Event represents a manager lifecycle event.
// Minimal and stable: name + model ID and optional fields via key/values.
type Event struct {
	Name    string
	ModelID string
	Fields  map[string]any
}

// EventPublisher receives events from the manager. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
