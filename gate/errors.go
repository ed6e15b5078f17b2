package gate

import (
	"fmt"
)

// BuildError reports an invalid network structure: duplicate names,
// dangling ports, or a cycle through plain data edges. Build errors are
// always surfaced at construction time, never during a run.
type BuildError struct {
	Reason string
}

// Error implements the error interface
func (e *BuildError) Error() string {
	return "gate network build: " + e.Reason
}

func buildErrorf(format string, args ...any) *BuildError {
	return &BuildError{Reason: fmt.Sprintf(format, args...)}
}

// EvaluationError reports a gate failing mid-cycle. The cycle's partial
// outputs are discarded and the network remains usable for the next cycle.
type EvaluationError struct {
	Gate string
	Err  error
}

// Error implements the error interface
func (e *EvaluationError) Error() string {
	return fmt.Sprintf("gate %q evaluation: %v", e.Gate, e.Err)
}

// Unwrap returns the gate's underlying error
func (e *EvaluationError) Unwrap() error {
	return e.Err
}
