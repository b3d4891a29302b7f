package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, `
name: and_gate
description: "AND of two bits"
circuit: gates.cue
component: Gate
steps:
  - inputs: {A: "1", B: "1"}
    expect: {Out: "1"}
  - inputs: {A: "1"}
    repeat: 3
assertions:
  - type: step_count
    count: 4
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "and_gate", scenario.Name)
	assert.Equal(t, filepath.Join(dir, "gates.cue"), scenario.Circuit, "circuit resolves next to the scenario")
	assert.Equal(t, "Gate", scenario.Component)
	require.Len(t, scenario.Steps, 2)
	assert.Equal(t, "1", scenario.Steps[0].Expect["Out"])
	assert.Equal(t, 3, scenario.Steps[1].Repeat)
	assert.Equal(t, 4, scenario.StepCount())
	require.Len(t, scenario.Assertions, 1)
	assert.Equal(t, AssertStepCount, scenario.Assertions[0].Type)
}

func TestLoadScenario_AbsoluteCircuitKept(t *testing.T) {
	dir := t.TempDir()
	abs := filepath.Join(t.TempDir(), "c.cue")
	path := writeScenario(t, dir, `
name: s
description: d
circuit: `+abs+`
component: C
steps: [{}]
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, abs, scenario.Circuit)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseScenario_UnknownField(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: s
description: d
circuit: c.cue
component: C
steps:
  - inputs: {A: "1"}
    expects: {Out: "1"}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expects")
}

func TestParseScenario_Invalid(t *testing.T) {
	base := "name: s\ndescription: d\ncircuit: c.cue\ncomponent: C\n"
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing name", "description: d\ncircuit: c.cue\ncomponent: C\nsteps: [{}]\n", "name is required"},
		{"missing description", "name: s\ncircuit: c.cue\ncomponent: C\nsteps: [{}]\n", "description is required"},
		{"missing circuit", "name: s\ndescription: d\ncomponent: C\nsteps: [{}]\n", "circuit is required"},
		{"missing component", "name: s\ndescription: d\ncircuit: c.cue\nsteps: [{}]\n", "component is required"},
		{"no steps", base, "steps list is required"},
		{"negative repeat", base + "steps: [{repeat: -1}]\n", "repeat must be >= 0, got -1"},
		{"sequence without values", base + "steps: [{}]\nassertions: [{type: output_sequence, output: Q}]\n", "output_sequence needs output and values"},
		{"node pin without value", base + "steps: [{}]\nassertions: [{type: node_pin, pin: X/a.Out}]\n", "node_pin needs pin and value"},
		{"failure without code", base + "steps: [{}]\nassertions: [{type: failure}]\n", "failure needs code"},
		{"unknown assertion", base + "steps: [{}]\nassertions: [{type: eventually}]\n", `unknown assertion type "eventually"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestScenario_StepCountDefaultsRepeat(t *testing.T) {
	s := &Scenario{Steps: []Step{{}, {Repeat: 0}, {Repeat: 2}}}
	assert.Equal(t, 4, s.StepCount())
}
