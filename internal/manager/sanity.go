package manager

// SanityReport describes runtime checks for external dependencies.
type SanityReport struct {
	EngineAvailable bool   `json:"engine_available"`
	EngineName      string `json:"engine_name,omitempty"`
	LlamaBuilt      bool   `json:"llama_built"`
	Error           string `json:"error,omitempty"`
}

// SanityCheck validates that configured runtimes are available.
// It does not mutate state and is safe to call at any time.
func (m *Manager) SanityCheck() SanityReport {
	r := SanityReport{LlamaBuilt: llamaBuilt}
	if m.engine != nil {
		r.EngineAvailable = true
		r.EngineName = m.engine.Name()
	} else if m.engineErr != nil {
		r.Error = m.engineErr.Error()
	}
	return r
}
