package engine

import (
	"errors"
	"fmt"
)

// StepError reports the time step at which a simulation failed.
// The wrapped error is usually an *ir.ModelError.
type StepError struct {
	Step int
	Err  error
}

// Error implements the error interface.
func (e *StepError) Error() string {
	return fmt.Sprintf("step %d: %v", e.Step, e.Err)
}

// Unwrap returns the underlying error.
func (e *StepError) Unwrap() error {
	return e.Err
}

// FailedStep returns the step recorded in err, if any.
// Uses errors.As to handle wrapped errors.
func FailedStep(err error) (int, bool) {
	var se *StepError
	if errors.As(err, &se) {
		return se.Step, true
	}
	return 0, false
}

// ErrNotSynced is returned by Cache.GetOrCompute before the first Sync.
var ErrNotSynced = errors.New("frame cache has no netlist: call Sync first")
