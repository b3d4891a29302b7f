package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/netsim/internal/netlist"
)

func TestCompile_DocumentToStdout(t *testing.T) {
	out, err := execute(t, "compile", circuit("adders.cue"))
	require.NoError(t, err)

	doc, err := netlist.ReadDocument(strings.NewReader(out))
	require.NoError(t, err)
	_, err = netlist.New(doc)
	require.NoError(t, err, "compiled document is valid")

	var names []string
	for _, c := range doc.Components {
		if !c.IsIntrinsic {
			names = append(names, c.Name)
		}
	}
	assert.Equal(t, []string{"HalfAdder", "FullAdder"}, names)
}

func TestCompile_OutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "adders.json")
	out, err := execute(t, "compile", circuit("adders.cue"), "-o", path)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Compiled 2 circuit(s)")
	assert.Contains(t, out, "Wrote netlist to "+path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	_, err = netlist.ReadDocument(f)
	require.NoError(t, err)
}

func TestCompile_JSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "compile", circuit("seq.cue"))
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   CompilationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []string{"Toggle", "Gate"}, resp.Data.Circuits)
	require.NotNil(t, resp.Data.Document)
	assert.Equal(t, len(resp.Data.Document.Nodes), resp.Data.Stats.Nodes)
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		exitCode int
		contains []string
	}{
		{"missing path", circuit("nope.cue"), ExitCommandError, []string{"Error [E005]"}},
		{"unknown node", circuit("broken.cue"), ExitCommandError, []string{"broken.cue:", "Error [E103]", `unknown node "h"`}},
		{"already compiled", writeCompiled(t), ExitCommandError, []string{"Error [E004]", "already a netlist document"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, "compile", tt.path)
			require.Error(t, err)
			assert.Equal(t, tt.exitCode, GetExitCode(err))
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
		})
	}
}

func TestMapFieldToErrorCode(t *testing.T) {
	tests := []struct {
		field string
		want  string
	}{
		{"", ErrCodeCircuitSyntax},
		{"cue", ErrCodeCircuitSyntax},
		{"circuits", ErrCodeNoCircuits},
		{"circuits.A.nodes.x.use", ErrCodeCircuitNode},
		{"circuits.A.wires[2].to", ErrCodeCircuitWire},
		{"circuits.A.inputs[0].name", ErrCodeCircuitPort},
		{"circuits.A.outputs[1].pin", ErrCodeCircuitPort},
		{"circuits.AND", ErrCodeCircuitName},
		{"something.else", ErrCodeGeneric},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MapFieldToErrorCode(tt.field), tt.field)
	}
}

// writeCompiled compiles adders.cue to a JSON document in a temp dir.
func writeCompiled(t *testing.T) string {
	t.Helper()
	loaded, err := LoadNetlist(circuit("adders.cue"))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "adders.json")
	require.NoError(t, writeDocument(loaded.Document, path))
	return path
}
