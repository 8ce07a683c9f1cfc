package manager

import (
	"context"
	"fmt"
	"sync/atomic"
)

var opSeq atomic.Uint64

func (m *Manager) nextOpID() string {
	return fmt.Sprintf("op-%d", opSeq.Add(1))
}

// Switch kicks off an async model switch/ensure and returns an operation ID.
// The operation runs in the background; callers can poll Status() to observe
// state transitions.
func (m *Manager) Switch(ctx context.Context, modelID string) (string, error) {
	op := m.nextOpID()
	go func(opID string) {
		// Use a detached context so background work isn't canceled when the
		// caller context is canceled.
		_ = m.EnsureInstance(context.Background(), modelID)
	}(op)
	return op, nil
}
