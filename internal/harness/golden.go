package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/netsim/internal/ir"
)

// TraceSnapshot captures the named-port trace of a scenario execution.
// Full frames and error messages are left out so the golden files only
// change when observable behaviour does.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Component    string       `json:"component"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical JSON serialization.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{"step": event.Step}
		if event.Failed() {
			eventMap["error"] = map[string]any{"code": event.Error.Code}
		} else {
			eventMap["inputs"] = nonNil(event.Inputs)
			eventMap["outputs"] = nonNil(event.Outputs)
		}
		traceList[i] = eventMap
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"component":     s.Component,
		"trace":         traceList,
	}
}

// MarshalCanonical encodes the snapshot as canonical JSON.
func (s *TraceSnapshot) MarshalCanonical() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonicalMap())
}

func nonNil(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, assertGolden(t, scenario.Name, scenario.Component, result)
}

// AssertGolden compares the given result's trace against the scenario's
// golden file without re-running it.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) error {
	t.Helper()
	return assertGolden(t, scenario.Name, scenario.Component, result)
}

func assertGolden(t *testing.T, name, component string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: name,
		Component:    component,
		Trace:        result.Trace,
	}
	traceJSON, err := snapshot.MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, traceJSON)

	return nil
}
