package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/netsim/internal/engine"
	"github.com/roach88/netsim/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		if event.Failed() {
			fmt.Fprintf(&buf, "  [%d] %s\n", event.Step, event.Error.Code)
			continue
		}
		fmt.Fprintf(&buf, "  [%d] %v -> %v\n", event.Step, event.Inputs, event.Outputs)
	}

	return buf.String()
}

// assertOutputSequence checks the output takes the listed values on
// consecutive steps, starting at step 0.
func assertOutputSequence(trace []TraceEvent, steps []TraceEvent, assertion Assertion) error {
	got := make([]string, 0, len(steps))
	for _, ev := range steps {
		got = append(got, ev.Outputs[assertion.Output])
	}
	if len(got) >= len(assertion.Values) && equalStrings(got[:len(assertion.Values)], assertion.Values) {
		return nil
	}
	return &AssertionError{
		Type:     AssertOutputSequence,
		Expected: fmt.Sprintf("%s = %v", assertion.Output, assertion.Values),
		Actual:   fmt.Sprintf("%s = %v", assertion.Output, got),
		Trace:    trace,
	}
}

// assertNodePin checks an internal NodePin value at one step. The pin is
// searched through the whole nested frame.
func assertNodePin(trace []TraceEvent, steps []TraceEvent, assertion Assertion) error {
	actual := "step not evaluated"
	if assertion.Step < len(steps) {
		v, ok := engine.GetNodePinValue(steps[assertion.Step].Frame, ir.NodePinID(assertion.Pin))
		if ok && v.String() == assertion.Value {
			return nil
		}
		actual = "pin not found in frame"
		if ok {
			actual = v.String()
		}
	}
	return &AssertionError{
		Type:     AssertNodePin,
		Expected: fmt.Sprintf("%s = %q at step %d", assertion.Pin, assertion.Value, assertion.Step),
		Actual:   actual,
		Trace:    trace,
	}
}

// assertFailure checks evaluation stopped at the given step with the given
// error code.
func assertFailure(trace []TraceEvent, assertion Assertion) error {
	actual := "no failure"
	if n := len(trace); n > 0 && trace[n-1].Failed() {
		ev := trace[n-1]
		if ev.Step == assertion.Step && ev.Error.Code == assertion.Code {
			return nil
		}
		actual = fmt.Sprintf("%s at step %d", ev.Error.Code, ev.Step)
	}
	return &AssertionError{
		Type:     AssertFailure,
		Expected: fmt.Sprintf("%s at step %d", assertion.Code, assertion.Step),
		Actual:   actual,
		Trace:    trace,
	}
}

// assertStepCount checks exactly Count steps were evaluated successfully.
func assertStepCount(trace []TraceEvent, steps []TraceEvent, assertion Assertion) error {
	if len(steps) == assertion.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertStepCount,
		Expected: fmt.Sprintf("%d steps", assertion.Count),
		Actual:   fmt.Sprintf("%d steps", len(steps)),
		Trace:    trace,
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string
	steps := result.Steps()

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertOutputSequence:
			err = assertOutputSequence(result.Trace, steps, assertion)
		case AssertNodePin:
			err = assertNodePin(result.Trace, steps, assertion)
		case AssertFailure:
			err = assertFailure(result.Trace, assertion)
		case AssertStepCount:
			err = assertStepCount(result.Trace, steps, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
