package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTest_ScenariosPass(t *testing.T) {
	out, err := execute(t, "test", filepath.Join("testdata", "scenarios"))
	require.NoError(t, err, out)

	assert.Contains(t, out, "✓ half_adder")
	assert.Contains(t, out, "✓ toggle")
	assert.Contains(t, out, "Test Summary: 2 passed, 0 failed, 2 total")
}

func TestTest_Filter(t *testing.T) {
	out, err := execute(t, "--format", "json", "test", filepath.Join("testdata", "scenarios"), "--filter", "tog*")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "toggle", resp.Data.Scenarios[0].Name)
	assert.Equal(t, 3, resp.Data.Scenarios[0].Steps)
}

// copyScenarios copies the test scenarios and circuits into a temp tree
// with the same layout.
func copyScenarios(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, rel := range []string{
		"scenarios/half_adder.yaml",
		"scenarios/toggle.yaml",
		"scenarios/golden/half_adder.golden",
		"circuits/adders.cue",
		"circuits/seq.cue",
	} {
		data, err := os.ReadFile(filepath.Join("testdata", rel))
		require.NoError(t, err)
		dst := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0755))
		require.NoError(t, os.WriteFile(dst, data, 0644))
	}
	return filepath.Join(root, "scenarios")
}

func TestTest_GoldenMismatch(t *testing.T) {
	dir := copyScenarios(t)
	golden := filepath.Join(dir, "golden", "half_adder.golden")
	require.NoError(t, os.WriteFile(golden, []byte(`{"stale":true}`), 0644))

	out, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ half_adder")
	assert.Contains(t, out, "trace does not match golden file")

	// --update rewrites it, after which the run passes.
	_, err = execute(t, "test", dir, "--update")
	require.NoError(t, err)
	_, err = execute(t, "test", dir)
	require.NoError(t, err)

	want, err := os.ReadFile(filepath.Join("testdata", "scenarios", "golden", "half_adder.golden"))
	require.NoError(t, err)
	got, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))
	assert.FileExists(t, filepath.Join(dir, "golden", "toggle.golden"))
}

func TestTest_FailingScenario(t *testing.T) {
	dir := copyScenarios(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong.yaml"), []byte(`
name: wrong
description: expects the wrong carry
circuit: ../circuits/adders.cue
component: HalfAdder
steps:
  - inputs: {A: "1", B: "1"}
    expect: {Carry: "0"}
`), 0644))

	out, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong")
	assert.Contains(t, out, `step 0: output Carry = "1", want "0"`)
	assert.Contains(t, out, "Test Summary: 2 passed, 1 failed, 3 total")
}

func TestTest_Errors(t *testing.T) {
	_, err := execute(t, "test", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	out, err := execute(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}
