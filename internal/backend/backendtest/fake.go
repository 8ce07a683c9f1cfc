// Package backendtest provides an in-memory engine with canned
// compatibility verdicts and scripted logits, for tests of the compile
// cache, model orchestration, and generation loop.
package backendtest

import (
	"bytes"
	"fmt"
	"os"
	"sync"

	"genaid/internal/backend"
	"genaid/internal/common/fsutil"
)

// EngineName is the name fake engines report by default.
const EngineName = "fakeep"

// Engine is a fake backend.Engine. The zero value is usable; fields may be
// set before first use to script behavior.
type Engine struct {
	// NameOverride replaces EngineName when non-empty.
	NameOverride string
	// DeviceList defaults to one CPU device when nil.
	DeviceList []backend.Device
	// VocabSize is the width of the logits rows sessions produce.
	VocabSize int
	// CompileErr, when set, makes Compile fail without writing anything.
	CompileErr error
	// LogitsFn overrides the default next-token logits. It receives the
	// 1-based run count and the run inputs.
	LogitsFn func(run int, inputs []backend.NamedTensor) []float32
	// FailRunAfter makes the Nth Run call of every session fail (0 = never).
	FailRunAfter int

	mu           sync.Mutex
	verdicts     map[string][]backend.DeviceVerdict
	compileCalls map[string]int
	totalCompile int
	openPaths    []string
}

func (e *Engine) Name() string {
	if e.NameOverride != "" {
		return e.NameOverride
	}
	return EngineName
}

func (e *Engine) Devices() []backend.Device {
	if e.DeviceList == nil {
		return []backend.Device{{ID: 0, Kind: "cpu", Name: "fake-cpu"}}
	}
	return e.DeviceList
}

// SetVerdict records the verdict Compatibility reports for artifactPath on
// every device.
func (e *Engine) SetVerdict(artifactPath string, v backend.Verdict) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.verdicts == nil {
		e.verdicts = make(map[string][]backend.DeviceVerdict)
	}
	var dvs []backend.DeviceVerdict
	for _, d := range e.Devices() {
		dvs = append(dvs, backend.DeviceVerdict{Device: d, Verdict: v})
	}
	e.verdicts[artifactPath] = dvs
}

// SetDeviceVerdicts records per-device verdicts for artifactPath, for
// scripting mixed multi-device outcomes.
func (e *Engine) SetDeviceVerdicts(artifactPath string, dvs []backend.DeviceVerdict) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.verdicts == nil {
		e.verdicts = make(map[string][]backend.DeviceVerdict)
	}
	e.verdicts[artifactPath] = dvs
}

// ClearVerdict forces Compatibility to report no information for
// artifactPath, even for artifacts this engine compiled itself.
func (e *Engine) ClearVerdict(artifactPath string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.verdicts == nil {
		e.verdicts = make(map[string][]backend.DeviceVerdict)
	}
	e.verdicts[artifactPath] = []backend.DeviceVerdict{}
}

// Compatibility reports explicitly scripted verdicts first. Artifacts this
// engine compiled carry an implicit optimal verdict, mirroring real engines
// that embed compatibility info in the artifact; foreign files carry none.
func (e *Engine) Compatibility(artifactPath string, devices []backend.Device) ([]backend.DeviceVerdict, error) {
	e.mu.Lock()
	if dvs, ok := e.verdicts[artifactPath]; ok {
		e.mu.Unlock()
		return dvs, nil
	}
	e.mu.Unlock()
	b, err := os.ReadFile(artifactPath)
	if err != nil || !bytes.HasPrefix(b, []byte("compiled:")) {
		return nil, nil
	}
	var dvs []backend.DeviceVerdict
	for _, d := range e.Devices() {
		dvs = append(dvs, backend.DeviceVerdict{Device: d, Verdict: backend.VerdictOptimal})
	}
	return dvs, nil
}

// Compile writes a marker artifact at the directive output path and records
// an optimal verdict for the final artifact location.
func (e *Engine) Compile(in backend.CompileInput, d backend.CompileDirectives) error {
	if e.CompileErr != nil {
		return e.CompileErr
	}
	src := in.Path
	if in.Data != nil {
		src = fmt.Sprintf("buffer(%dB)", len(in.Data))
	}
	if err := os.WriteFile(d.OutputPath, []byte("compiled:"+src), 0o644); err != nil {
		return err
	}
	e.mu.Lock()
	if e.compileCalls == nil {
		e.compileCalls = make(map[string]int)
	}
	e.compileCalls[in.Path]++
	e.totalCompile++
	e.mu.Unlock()
	return nil
}

// CompileCalls returns how many times Compile ran for the given source path.
func (e *Engine) CompileCalls(sourcePath string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.compileCalls[sourcePath]
}

// TotalCompiles returns how many Compile calls succeeded overall.
func (e *Engine) TotalCompiles() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalCompile
}

// OpenedPaths returns the session paths opened so far, in order.
func (e *Engine) OpenedPaths() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.openPaths...)
}

func (e *Engine) OpenSession(path string, opts backend.SessionOptions) (backend.Session, error) {
	if !fsutil.PathExists(path) {
		return nil, fmt.Errorf("open %s: %w", path, os.ErrNotExist)
	}
	e.mu.Lock()
	e.openPaths = append(e.openPaths, path)
	e.mu.Unlock()
	return &session{engine: e, path: path}, nil
}

func (e *Engine) vocab() int {
	if e.VocabSize <= 0 {
		return 8
	}
	return e.VocabSize
}

type session struct {
	engine *Engine
	path   string
	runs   int
	closed bool
}

func (s *session) InputInfo() []backend.TensorInfo {
	return []backend.TensorInfo{
		{Name: "input_ids", Shape: []int64{-1, -1}, SymbolicDims: []string{"batch_size", "sequence_length"}, DataType: backend.DataTypeInt32},
		{Name: "total_sequence_length", Shape: []int64{1}, DataType: backend.DataTypeInt32},
	}
}

func (s *session) OutputInfo() []backend.TensorInfo {
	return []backend.TensorInfo{
		{Name: "logits", Shape: []int64{-1, -1, int64(s.engine.vocab())}, SymbolicDims: []string{"batch_size", "sequence_length", ""}, DataType: backend.DataTypeFloat32},
	}
}

func (s *session) Run(inputs []backend.NamedTensor) ([]backend.NamedTensor, error) {
	if s.closed {
		return nil, fmt.Errorf("session closed: %s", s.path)
	}
	s.runs++
	if n := s.engine.FailRunAfter; n > 0 && s.runs >= n {
		return nil, fmt.Errorf("fake evaluation failure on run %d", s.runs)
	}
	logits := s.logits(inputs)
	return []backend.NamedTensor{
		{Name: "logits", Shape: []int64{1, 1, int64(len(logits))}, Data: logits},
	}, nil
}

// logits defaults to favoring (last input token + 1) mod vocab, giving
// deterministic greedy chains: 1 -> 2 -> 3 -> ...
func (s *session) logits(inputs []backend.NamedTensor) []float32 {
	if fn := s.engine.LogitsFn; fn != nil {
		return fn(s.runs, inputs)
	}
	vocab := s.engine.vocab()
	out := make([]float32, vocab)
	var last int32
	for _, in := range inputs {
		if in.Name != "input_ids" {
			continue
		}
		if ids, ok := in.Data.([]int32); ok && len(ids) > 0 {
			last = ids[len(ids)-1]
		}
	}
	out[int(last+1)%vocab] = 1
	return out
}

func (s *session) Close() error {
	s.closed = true
	return nil
}
