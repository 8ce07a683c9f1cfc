// Package backend defines the capability surface of a graph execution
// engine: open a session, evaluate it, ahead-of-time compile a graph, and
// report per-device compatibility of a compiled artifact. The rest of the
// system treats engines as black boxes behind these interfaces.
package backend

import "errors"

// ErrNotSupported is returned by engines for capabilities they do not
// implement (e.g. ahead-of-time compilation on engines without an AOT path).
var ErrNotSupported = errors.New("backend: operation not supported")

// Verdict is an engine's judgment of a compiled artifact for one device.
type Verdict int

const (
	// VerdictNotSupported means the artifact cannot run on the device.
	VerdictNotSupported Verdict = iota
	// VerdictPreferRecompilation means the artifact runs but a recompile
	// would perform better (e.g. newer driver/toolkit available).
	VerdictPreferRecompilation
	// VerdictOptimal means the artifact matches the device as-is.
	VerdictOptimal
)

func (v Verdict) String() string {
	switch v {
	case VerdictOptimal:
		return "optimal"
	case VerdictPreferRecompilation:
		return "prefer_recompilation"
	default:
		return "not_supported"
	}
}

// Device identifies one execution device visible to an engine.
type Device struct {
	ID   int
	Kind string // e.g. "cpu", "gpu", "npu"
	Name string
}

// DeviceVerdict pairs a device with the artifact verdict recorded for it.
type DeviceVerdict struct {
	Device  Device
	Verdict Verdict
}

// DataType is a tensor element type.
type DataType string

const (
	DataTypeFloat32 DataType = "float32"
	DataTypeFloat16 DataType = "float16"
	DataTypeInt32   DataType = "int32"
	DataTypeInt64   DataType = "int64"
	DataTypeBool    DataType = "bool"
)

// TensorInfo describes a declared session input or output.
type TensorInfo struct {
	Name string
	// Shape uses -1 for dynamic dimensions.
	Shape []int64
	// SymbolicDims names dynamic dimensions positionally ("" for static).
	SymbolicDims []string
	DataType     DataType
}

// NamedTensor associates a name with tensor data.
type NamedTensor struct {
	Name  string
	Shape []int64
	Data  any // []float32, []int64, []int32, etc.
}

// SessionOptions are engine-level directives for opening one session.
type SessionOptions struct {
	GraphOptimizationLevel int
	IntraOpNumThreads      int
	LogSeverityLevel       int
	EnableGraphCapture     bool
	Providers              []Provider
}

// Provider selects an execution provider with its options.
type Provider struct {
	Name    string
	Options map[string]string
}

// CompileInput is the graph to compile. Data is preferred when non-nil so a
// caller already holding the model bytes avoids a second disk read.
type CompileInput struct {
	Path string
	Data []byte
}

// CompileDirectives are the engine-level compilation settings, built
// strictly from the caller's compile options.
type CompileDirectives struct {
	OutputPath             string
	EmbedContext           bool
	GraphOptimizationLevel int
	Flags                  uint32

	ExternalInitializersPath          string
	ExternalInitializersSizeThreshold int64
}

// Session is one opened, evaluable graph.
type Session interface {
	// Run executes the graph with the given named inputs and returns the
	// named outputs. Blocking; not safe for concurrent calls.
	Run(inputs []NamedTensor) ([]NamedTensor, error)
	// InputInfo returns metadata about declared inputs.
	InputInfo() []TensorInfo
	// OutputInfo returns metadata about declared outputs.
	OutputInfo() []TensorInfo
	// Close releases the session's native resources.
	Close() error
}

// Engine is a graph execution engine.
type Engine interface {
	// Name is the engine's stable identifier, used in compiled artifact
	// file names.
	Name() string
	// Devices lists the devices currently visible to the engine.
	Devices() []Device
	// OpenSession opens a graph file for evaluation.
	OpenSession(path string, opts SessionOptions) (Session, error)
	// Compile ahead-of-time compiles a graph to directives.OutputPath.
	Compile(in CompileInput, d CompileDirectives) error
	// Compatibility reports the per-device verdicts recorded in a compiled
	// artifact for the given devices. An empty slice with a nil error means
	// the artifact carries no compatibility information for this engine.
	Compatibility(artifactPath string, devices []Device) ([]DeviceVerdict, error)
}

// InitOptions configure engine initialization. Verbose logging is explicit
// configuration here rather than a process-wide environment flag.
type InitOptions struct {
	VerboseLogging bool
}
