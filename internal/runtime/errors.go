package runtime

import "fmt"

// configError signals an invalid option combination, detected before any
// engine call.
type configError struct{ reason string }

func (e configError) Error() string { return "invalid configuration: " + e.reason }

// ErrConfig constructs a configError.
func ErrConfig(reason string) error { return configError{reason: reason} }

// IsConfigError reports whether err is a configuration error.
func IsConfigError(err error) bool {
	_, ok := err.(configError)
	return ok
}

// compileError signals a failed ahead-of-time compilation. Fatal to model
// construction; the partial artifact is never registered.
type compileError struct {
	graphID string
	err     error
}

func (e compileError) Error() string { return fmt.Sprintf("compile %s: %v", e.graphID, e.err) }
func (e compileError) Unwrap() error { return e.err }

// ErrCompile wraps an engine compile failure for the given graph.
func ErrCompile(graphID string, err error) error { return compileError{graphID: graphID, err: err} }

// IsCompileError reports whether err is a compile failure.
func IsCompileError(err error) bool {
	_, ok := err.(compileError)
	return ok
}

// loadError signals a failed session open. Fatal to model construction.
type loadError struct {
	path string
	err  error
}

func (e loadError) Error() string { return fmt.Sprintf("load %s: %v", e.path, e.err) }
func (e loadError) Unwrap() error { return e.err }

// ErrLoad wraps a session-open failure for the given path.
func ErrLoad(path string, err error) error { return loadError{path: path, err: err} }

// IsLoadError reports whether err is a session-open failure.
func IsLoadError(err error) bool {
	_, ok := err.(loadError)
	return ok
}

// evaluationError signals a failed Step. It terminates the State but not
// the process.
type evaluationError struct{ err error }

func (e evaluationError) Error() string { return "evaluation failed: " + e.err.Error() }
func (e evaluationError) Unwrap() error { return e.err }

// ErrEvaluation wraps an engine evaluation failure.
func ErrEvaluation(err error) error { return evaluationError{err: err} }

// IsEvaluationError reports whether err is an evaluation failure.
func IsEvaluationError(err error) bool {
	_, ok := err.(evaluationError)
	return ok
}

// terminatedError is returned by Step calls on a State whose session
// already failed; the engine is not invoked again.
type terminatedError struct{}

func (terminatedError) Error() string { return "state terminated after failed evaluation" }

// IsStateTerminated reports whether err indicates a terminated State.
func IsStateTerminated(err error) bool {
	_, ok := err.(terminatedError)
	return ok
}
