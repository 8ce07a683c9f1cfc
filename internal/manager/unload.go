package manager

import (
	"time"
)

// Unload initiates a graceful drain of a model instance and removes it.
// - Sets instance state to draining to reject new enqueues.
// - Waits up to drainTimeout for in-flight and queued requests to finish.
// - Closes the loaded model and removes the instance entry.
func (m *Manager) Unload(modelID string) error {
	if modelID == "" {
		return ErrModelNotFound("(unspecified)")
	}
	m.mu.Lock()
	inst := m.instances[modelID]
	if inst == nil {
		m.mu.Unlock()
		return ErrModelNotFound(modelID)
	}
	inst.State = StateDraining
	m.mu.Unlock()
	m.publisher.Publish(Event{Name: EvUnloadStart, ModelID: modelID, Fields: map[string]any{}})

	deadline := time.Now().Add(m.drainTimeout)
	for {
		m.mu.RLock()
		qlen := len(inst.queueCh)
		inflight := len(inst.genCh)
		m.mu.RUnlock()
		if inflight == 0 && qlen == 0 {
			break
		}
		if time.Now().After(deadline) {
			m.publisher.Publish(Event{Name: EvUnloadTimeout, ModelID: modelID, Fields: map[string]any{"inflight": inflight, "queue": qlen}})
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	m.mu.Lock()
	// Adjust accounting and remove
	var model = inst.model
	if inst2 := m.instances[modelID]; inst2 != nil {
		m.usedEstMB -= inst2.EstMemoryMB
		if m.usedEstMB < 0 {
			m.usedEstMB = 0
		}
	}
	delete(m.instances, modelID)
	if m.cur != nil && m.cur.ID == modelID {
		m.cur = nil
	}
	m.mu.Unlock()

	if model != nil {
		_ = model.Close()
	}
	m.publisher.Publish(Event{Name: EvUnloadDone, ModelID: modelID, Fields: map[string]any{}})
	return nil
}
