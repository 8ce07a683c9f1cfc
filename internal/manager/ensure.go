package manager

import (
	"context"
	"log"
	"time"

	"genaid/internal/config"
	"genaid/internal/runtime"
	"genaid/pkg/types"
)

// EnsureInstance ensures a model instance is loaded and marked ready
// according to current resource budgeting and readiness state.
func (m *Manager) EnsureInstance(ctx context.Context, modelID string) error {
	startTs := time.Now()
	if modelID == "" {
		// If unspecified, use default if present; else no-op for now
		modelID = m.defaultModel
		if modelID == "" {
			return nil
		}
	}
	log.Printf("manager event=ensure_start model=%q", modelID)
	m.publisher.Publish(Event{Name: EvEnsureStart, ModelID: modelID, Fields: map[string]any{}})

	m.mu.RLock()
	inst, ok := m.instances[modelID]
	ready := ok && inst != nil && inst.State == StateReady
	m.mu.RUnlock()
	if ready {
		// Upgrade to write lock to safely mutate LastUsed and re-check state
		m.mu.Lock()
		if inst2, ok2 := m.instances[modelID]; ok2 && inst2 != nil && inst2.State == StateReady {
			inst2.LastUsed = time.Now()
			m.mu.Unlock()
			return nil
		}
		m.mu.Unlock()
		// If state changed in between, continue with ensure path
	}

	// Resolve model from registry
	mdl, ok := m.getModelByID(modelID)
	if !ok {
		log.Printf("manager event=ensure_model_not_found model=%q", modelID)
		m.publisher.Publish(Event{Name: EvEnsureModelNotFound, ModelID: modelID, Fields: map[string]any{}})
		return ErrModelNotFound(modelID)
	}
	reqMB := m.estimateMemoryMB(mdl)

	// Evict until it fits budget + margin, if budget configured
	if m.budgetMB > 0 {
		if err := m.evictUntilFits(reqMB); err != nil {
			log.Printf("manager event=ensure_budget_fail model=%q err=%v", modelID, err)
			m.publisher.Publish(Event{Name: EvEnsureBudgetFail, ModelID: modelID, Fields: map[string]any{"error": err.Error()}})
			return err
		}
	}

	// Per-instance load state transition
	m.mu.Lock()
	m.state = StateLoading
	m.err = ""
	inst, existed := m.instances[modelID]
	addedNow := false
	if !existed || inst == nil {
		inst = &Instance{
			ID:          modelID,
			Kind:        mdl.Kind,
			State:       StateLoading,
			LastUsed:    time.Now(),
			EstMemoryMB: reqMB,
			genCh:       make(chan struct{}, 1),
			queueCh:     make(chan struct{}, m.maxQueueDepth),
		}
		m.instances[modelID] = inst
		addedNow = true
	} else {
		inst.State = StateLoading
		inst.EstMemoryMB = reqMB
		inst.LastUsed = time.Now()
	}
	m.mu.Unlock()

	// Graph models load through the engine; compiled artifacts resolve and
	// recompile as part of the model load. gguf models load lazily in the
	// adapter at first generation.
	if mdl.Kind == types.KindGraph {
		if err := m.loadGraphModel(ctx, inst, mdl); err != nil {
			m.mu.Lock()
			if addedNow {
				delete(m.instances, modelID)
			} else {
				inst.State = StateError
			}
			m.state = StateError
			m.err = err.Error()
			m.mu.Unlock()
			log.Printf("manager event=ensure_load_error model=%q err=%v", modelID, err)
			m.publisher.Publish(Event{Name: EvEnsureLoadError, ModelID: modelID, Fields: map[string]any{"error": err.Error()}})
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		m.mu.Lock()
		m.state = StateError
		m.err = err.Error()
		m.mu.Unlock()
		return err
	}

	// Commit instance as ready
	m.mu.Lock()
	if addedNow {
		// Only add to used estimate when we actually added a new instance
		m.usedEstMB += reqMB
	}
	m.loadsTotal++
	inst.State = StateReady
	inst.LastUsed = time.Now()
	m.cur = &ModelInfo{ID: modelID, Name: mdl.Name, Path: mdl.Path, Kind: mdl.Kind}
	m.state = StateReady
	m.err = ""
	m.mu.Unlock()
	log.Printf("manager event=ensure_ready model=%q dur_ms=%d", modelID, time.Since(startTs)/time.Millisecond)
	m.publisher.Publish(Event{Name: EvEnsureReady, ModelID: modelID, Fields: map[string]any{"dur_ms": int(time.Since(startTs) / time.Millisecond)}})
	return nil
}

// loadGraphModel parses the model config and opens the runtime model,
// compiling or reusing artifacts as the config directs.
func (m *Manager) loadGraphModel(ctx context.Context, inst *Instance, mdl types.Model) error {
	eng, err := m.Engine()
	if err != nil {
		return ErrDependencyUnavailable("graph engine unavailable: " + err.Error())
	}
	mc, err := config.LoadModelConfig(mdl.Path)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	rm, err := runtime.NewModel(eng, mdl.Path, mc)
	if err != nil {
		return err
	}
	tok, err := m.tokenizers(mdl)
	if err != nil {
		rm.Close()
		return err
	}
	m.mu.Lock()
	if inst.model != nil {
		inst.model.Close()
	}
	inst.model = rm
	inst.tok = tok
	m.mu.Unlock()
	return nil
}
