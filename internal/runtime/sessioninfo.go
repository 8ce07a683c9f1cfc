package runtime

import (
	"fmt"
	"sort"

	"genaid/internal/backend"
)

// SessionInfo is a read-only catalogue of the named inputs and outputs of
// every session opened under one model. Each session's entries are fixed
// once the graph is opened; sessions added later augment the table.
type SessionInfo struct {
	inputs  map[string]backend.TensorInfo
	outputs map[string]backend.TensorInfo
}

// NewSessionInfo returns an empty table.
func NewSessionInfo() *SessionInfo {
	return &SessionInfo{
		inputs:  make(map[string]backend.TensorInfo),
		outputs: make(map[string]backend.TensorInfo),
	}
}

// Add merges the declared inputs and outputs of sess into the table.
func (si *SessionInfo) Add(sess backend.Session) {
	for _, ti := range sess.InputInfo() {
		si.inputs[ti.Name] = ti
	}
	for _, ti := range sess.OutputInfo() {
		si.outputs[ti.Name] = ti
	}
}

// HasInput reports whether any session declares an input with this name.
func (si *SessionInfo) HasInput(name string) bool {
	_, ok := si.inputs[name]
	return ok
}

// HasOutput reports whether any session declares an output with this name.
func (si *SessionInfo) HasOutput(name string) bool {
	_, ok := si.outputs[name]
	return ok
}

// InputType returns the element type of the named input.
func (si *SessionInfo) InputType(name string) (backend.DataType, error) {
	ti, ok := si.inputs[name]
	if !ok {
		return "", fmt.Errorf("unknown input: %s", name)
	}
	return ti.DataType, nil
}

// OutputType returns the element type of the named output.
func (si *SessionInfo) OutputType(name string) (backend.DataType, error) {
	ti, ok := si.outputs[name]
	if !ok {
		return "", fmt.Errorf("unknown output: %s", name)
	}
	return ti.DataType, nil
}

// InputShape returns the declared shape of the named input (-1 marks
// dynamic dimensions).
func (si *SessionInfo) InputShape(name string) ([]int64, error) {
	ti, ok := si.inputs[name]
	if !ok {
		return nil, fmt.Errorf("unknown input: %s", name)
	}
	return append([]int64(nil), ti.Shape...), nil
}

// OutputShape returns the declared shape of the named output.
func (si *SessionInfo) OutputShape(name string) ([]int64, error) {
	ti, ok := si.outputs[name]
	if !ok {
		return nil, fmt.Errorf("unknown output: %s", name)
	}
	return append([]int64(nil), ti.Shape...), nil
}

// InputSymbolicDims returns the positional symbolic dimension names of the
// named input ("" for static dimensions).
func (si *SessionInfo) InputSymbolicDims(name string) ([]string, error) {
	ti, ok := si.inputs[name]
	if !ok {
		return nil, fmt.Errorf("unknown input: %s", name)
	}
	return append([]string(nil), ti.SymbolicDims...), nil
}

// InputNames lists all known input names, sorted.
func (si *SessionInfo) InputNames() []string {
	out := make([]string, 0, len(si.inputs))
	for n := range si.inputs {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// OutputNames lists all known output names, sorted.
func (si *SessionInfo) OutputNames() []string {
	out := make([]string, 0, len(si.outputs))
	for n := range si.outputs {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
