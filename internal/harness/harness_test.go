package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func TestRun_HalfAdder(t *testing.T) {
	result, err := Run(loadTestScenario(t, "half_adder"))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 4)
	last := result.Trace[3]
	assert.Equal(t, 3, last.Step)
	assert.Equal(t, map[string]string{"A": "1", "B": "1"}, last.Inputs)
	assert.Equal(t, map[string]string{"Sum": "0", "Carry": "1"}, last.Outputs)
	require.NotNil(t, last.Frame, "trace keeps the stored frame")
	assert.Equal(t, 3, last.Frame.Step)
}

func TestRun_RepeatExpandsSteps(t *testing.T) {
	result, err := Run(loadTestScenario(t, "register"))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 5)
	assert.Equal(t, "000", result.Trace[4].Inputs["D"])
}

func TestRun_ExpectedFailure(t *testing.T) {
	result, err := Run(loadTestScenario(t, "loop"))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	ev, failed := result.Failure()
	require.True(t, failed)
	assert.Equal(t, 0, ev.Step)
	assert.Equal(t, "COMBINATIONAL_CYCLE", ev.Error.Code)
	assert.Contains(t, ev.Error.Message, "component=Loop")
	assert.Empty(t, result.Steps())
}

func TestRun_UnexpectedFailure(t *testing.T) {
	s := loadTestScenario(t, "loop")
	s.Assertions = nil

	result, err := Run(s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.True(t, strings.HasPrefix(result.Errors[0], "step 0 failed: "), result.Errors[0])
}

func TestRun_ExpectMismatch(t *testing.T) {
	s := loadTestScenario(t, "half_adder")
	s.Steps[1].Expect = map[string]string{"Sum": "0"}
	s.Assertions = nil

	result, err := Run(s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	assert.Equal(t, []string{`step 1: output Sum = "1", want "0"`}, result.Errors)
}

func TestRun_ExpectOnLastRepetition(t *testing.T) {
	s := loadTestScenario(t, "register")
	s.Assertions = nil
	// Q lags D by one step, so only the second repetition sees 101.
	s.Steps = []Step{{Inputs: map[string]string{"D": "101"}, Repeat: 2, Expect: map[string]string{"Q": "101"}}}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_WidthMismatchCode(t *testing.T) {
	s := loadTestScenario(t, "half_adder")
	s.Steps = []Step{{Inputs: map[string]string{"A": "01", "B": "011"}}}
	s.Assertions = []Assertion{{Type: AssertFailure, Step: 0, Code: "WIDTH_MISMATCH"}}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_SetupErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Scenario)
		want   string
	}{
		{"unknown component", func(s *Scenario) { s.Component = "Ghost" }, `has no component "Ghost"`},
		{"unknown input", func(s *Scenario) { s.Steps[0].Inputs = map[string]string{"C": "1"} }, `has no input "C"`},
		{"unknown output", func(s *Scenario) { s.Steps[0].Expect = map[string]string{"Cout": "1"} }, `has no output "Cout"`},
		{"bad bits", func(s *Scenario) { s.Steps[0].Inputs = map[string]string{"A": "2"} }, "input A: invalid bit"},
		{"missing circuit", func(s *Scenario) { s.Circuit = filepath.Join(t.TempDir(), "none.cue") }, "failed to compile circuit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := loadTestScenario(t, "half_adder")
			tt.mutate(s)
			_, err := Run(s)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRun_NestedNodePin(t *testing.T) {
	s := &Scenario{
		Name:      "full_adder",
		Circuit:   filepath.Join("testdata", "circuits", "adders.cue"),
		Component: "FullAdder",
		Steps: []Step{
			{Inputs: map[string]string{"A": "1", "B": "1", "Cin": "1"}, Expect: map[string]string{"Sum": "1", "Cout": "1"}},
			{Inputs: map[string]string{"A": "1", "B": "0", "Cin": "1"}, Expect: map[string]string{"Sum": "0", "Cout": "1"}},
		},
		Assertions: []Assertion{
			{Type: AssertNodePin, Step: 1, Pin: "FullAdder/any.A", Value: "0"},
			{Type: AssertNodePin, Step: 0, Pin: "HalfAdder/carry.Out", Value: "1"},
		},
	}
	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}
