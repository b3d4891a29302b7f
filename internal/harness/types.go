package harness

import "github.com/roach88/netsim/internal/engine"

// TraceEvent is one evaluated time step, or the failure that ended the run.
// Ports are keyed by name.
type TraceEvent struct {
	Step    int               `json:"step"`
	Inputs  map[string]string `json:"inputs,omitempty"`
	Outputs map[string]string `json:"outputs,omitempty"`
	Error   *TraceError       `json:"error,omitempty"`

	// Frame is the full frame of the step, nil for a failure.
	Frame *engine.Frame `json:"-"`
}

// TraceError describes a failed step.
type TraceError struct {
	Code    string `json:"code"` // ir.ErrorCode, or "ERROR" for other failures
	Message string `json:"message"`
}

// Failed reports whether the event records a failure.
func (e TraceEvent) Failed() bool { return e.Error != nil }

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all expect clauses and assertions match.
	Pass bool `json:"pass"`

	// Trace contains one event per evaluated step, plus a final failure
	// event if evaluation stopped early.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Failure returns the failure event, if the run stopped early.
func (r *Result) Failure() (TraceEvent, bool) {
	if n := len(r.Trace); n > 0 && r.Trace[n-1].Failed() {
		return r.Trace[n-1], true
	}
	return TraceEvent{}, false
}

// Steps returns the successfully evaluated steps.
func (r *Result) Steps() []TraceEvent {
	if _, failed := r.Failure(); failed {
		return r.Trace[:len(r.Trace)-1]
	}
	return r.Trace
}
