package manager

import (
	"sync"
	"time"

	"genaid/internal/backend"
	"genaid/internal/runtime"
	"genaid/pkg/types"
)

type Manager struct {
	mu           sync.RWMutex
	state        State
	cur          *ModelInfo
	err          string
	registry     []types.Model
	budgetMB     int
	marginMB     int
	defaultModel string
	// Multi-instance fields
	instances map[string]*Instance
	usedEstMB int

	// Counters exposed via /status
	evictionsTotal uint64
	loadsTotal     uint64

	// Queue config
	maxQueueDepth int
	maxWait       time.Duration
	drainTimeout  time.Duration

	// Graph engine; nil when unresolved (engineErr carries the reason).
	engine    backend.Engine
	engineErr error

	// gguf adapter
	adapter InferenceAdapter

	tokenizers TokenizerFactory
	publisher  EventPublisher

	lruPath string
	lruMeta map[string]lruRecord

	startTime time.Time
}

// New constructs a Manager with package defaults for queueing and engines.
func New(reg []types.Model, budgetMB, marginMB int, defaultModel string) *Manager {
	return NewWithConfig(ManagerConfig{
		Registry:     reg,
		BudgetMB:     budgetMB,
		MarginMB:     marginMB,
		DefaultModel: defaultModel,
	})
}

func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state == StateError {
		return false
	}
	for _, inst := range m.instances {
		if inst.State == StateReady {
			return true
		}
	}
	return m.state == StateReady && m.cur != nil
}

func (m *Manager) ListModels() []types.Model {
	m.mu.RLock()
	defer m.mu.RUnlock()
	// return a shallow copy to avoid external mutation
	out := make([]types.Model, len(m.registry))
	copy(out, m.registry)
	return out
}

// Engine returns the resolved graph engine, or nil with the resolution error.
func (m *Manager) Engine() (backend.Engine, error) {
	if m.engine == nil {
		if m.engineErr != nil {
			return nil, m.engineErr
		}
		return nil, ErrDependencyUnavailable("no graph engine configured")
	}
	return m.engine, nil
}

// Model returns the loaded runtime model for a ready graph instance.
func (m *Manager) Model(modelID string) (runtime.Model, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst := m.instances[modelID]
	if inst == nil || inst.model == nil {
		return nil, false
	}
	return inst.model, true
}

// Close drains and unloads every instance and persists LRU metadata.
func (m *Manager) Close() error {
	m.mu.RLock()
	ids := make([]string, 0, len(m.instances))
	for id := range m.instances {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	for _, id := range ids {
		_ = m.Unload(id)
	}
	m.saveLRUMetadata()
	return nil
}
