package manager

import (
	"genaid/pkg/types"
)

// Snapshot returns a read-only view of the manager state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{State: m.state, CurrentModel: m.cur, Err: m.err}
}

// Status builds a detailed status response for /status.
func (m *Manager) Status() types.StatusResponse {
	m.mu.RLock()
	defer m.mu.RUnlock()
	resp := types.StatusResponse{
		BudgetMB:       m.budgetMB,
		UsedMB:         m.usedEstMB,
		MarginMB:       m.marginMB,
		Error:          m.err,
		State:          string(m.state),
		EvictionsTotal: m.evictionsTotal,
		LoadsTotal:     m.loadsTotal,
	}
	resp.Instances = make([]types.InstanceStatus, 0, len(m.instances))
	for _, inst := range m.instances {
		st := types.InstanceStatus{
			ModelID:       inst.ID,
			State:         string(inst.State),
			LastUsed:      inst.LastUsed.Unix(),
			EstMemoryMB:   inst.EstMemoryMB,
			QueueLen:      len(inst.queueCh),
			Inflight:      len(inst.genCh),
			MaxQueueDepth: cap(inst.queueCh),
		}
		if inst.model != nil {
			if paths := inst.model.CompiledPaths(); len(paths) > 0 {
				st.CompiledPaths = paths
			}
		}
		resp.Instances = append(resp.Instances, st)
	}
	return resp
}
