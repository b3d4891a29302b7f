package engine

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/netsim/internal/ir"
	"github.com/roach88/netsim/internal/testutil"
)

type callCounter struct{ n int }

func (c *callCounter) hook(ir.IntrinsicType) { c.n++ }

func TestCache_NotSynced(t *testing.T) {
	c := NewCache("HalfAdder")
	_, err := c.GetOrCompute(0)
	assert.ErrorIs(t, err, ErrNotSynced)
}

func TestCache_LogsThroughEvaluatorOptions(t *testing.T) {
	circ := testutil.HalfAdder(t)
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	calls := &callCounter{}

	c := NewCache(circ.Root, WithLogger(logger), WithPrimitiveHook(calls.hook))
	assert.Equal(t, 0, calls.n, "options run only on evaluators built by Sync")

	_, err := c.Sync(circ.Model, circ.Stimulus("A", "1", "B", "0"))
	require.NoError(t, err)
	_, err = c.GetOrCompute(0)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "step computed")
	assert.NotContains(t, buf.String(), "frame cache invalidated")

	_, err = c.Sync(circ.Model, circ.Stimulus("A", "1", "B", "1"))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "frame cache invalidated")
}

func TestCache_NegativeStep(t *testing.T) {
	circ := testutil.HalfAdder(t)
	c := NewCache(circ.Root)
	_, err := c.Sync(circ.Model, nil)
	require.NoError(t, err)

	_, err = c.GetOrCompute(-1)
	assert.Error(t, err)
}

func TestCache_ComputesForwardOnce(t *testing.T) {
	circ := testutil.HalfAdder(t)
	calls := &callCounter{}
	c := NewCache(circ.Root, WithPrimitiveHook(calls.hook))

	changed, err := c.Sync(circ.Model, circ.Stimulus("A", "1", "B", "0"))
	require.NoError(t, err)
	assert.True(t, changed)

	f2, err := c.GetOrCompute(2)
	require.NoError(t, err)
	assert.Equal(t, 2, f2.Step)
	assert.Equal(t, 3, c.Len(), "steps 0..2 cached")
	assert.Equal(t, 12, calls.n, "4 primitives per step")

	f1, err := c.GetOrCompute(1)
	require.NoError(t, err)
	assert.Equal(t, 1, f1.Step)
	again, err := c.GetOrCompute(2)
	require.NoError(t, err)
	assert.Same(t, f2, again)
	assert.Equal(t, 12, calls.n, "cached steps are not recomputed")

	_, err = c.GetOrCompute(3)
	require.NoError(t, err)
	assert.Equal(t, 16, calls.n, "only the missing step runs")
}

func TestCache_SyncWithoutChangeKeepsFrames(t *testing.T) {
	circ := testutil.Register(t, 2)
	c := NewCache(circ.Root)
	in := circ.Stimulus("D", "11")

	_, err := c.Sync(circ.Model, in)
	require.NoError(t, err)
	fp := c.Fingerprint()
	_, err = c.GetOrCompute(2)
	require.NoError(t, err)

	changed, err := c.Sync(circ.Model, circ.Stimulus("D", "11"))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, fp, c.Fingerprint())
	assert.Equal(t, 3, c.Len())
}

func TestCache_InvalidatesOnInputChange(t *testing.T) {
	circ := testutil.Register(t, 2)
	q := circ.Outputs["Q"]
	calls := &callCounter{}
	c := NewCache(circ.Root, WithPrimitiveHook(calls.hook))

	_, err := c.Sync(circ.Model, circ.Stimulus("D", "11"))
	require.NoError(t, err)
	_, err = c.GetOrCompute(2)
	require.NoError(t, err)
	original := canonicalFrames(t, c.Frames())
	origFP := c.Fingerprint()
	assert.Equal(t, 6, calls.n)

	changed, err := c.Sync(circ.Model, circ.Stimulus("D", "01"))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 0, c.Len(), "all frames dropped")
	assert.NotEqual(t, origFP, c.Fingerprint())

	f2, err := c.GetOrCompute(2)
	require.NoError(t, err)
	assert.Equal(t, "01", f2.Outputs[q].String())
	assert.Equal(t, 12, calls.n, "recomputed from step 0")
	f0, err := c.GetOrCompute(0)
	require.NoError(t, err)
	assert.Equal(t, "00", f0.Outputs[q].String(), "step 0 is reproduced identically")

	// Returning to the original stimulus reproduces the original trace.
	_, err = c.Sync(circ.Model, circ.Stimulus("D", "11"))
	require.NoError(t, err)
	assert.Equal(t, origFP, c.Fingerprint())
	_, err = c.GetOrCompute(2)
	require.NoError(t, err)
	assert.Equal(t, original, canonicalFrames(t, c.Frames()))
}

func TestCache_InvalidatesOnModelChange(t *testing.T) {
	c := NewCache("HalfAdder")
	_, err := c.Sync(testutil.HalfAdder(t).Model, nil)
	require.NoError(t, err)
	fp := c.Fingerprint()

	changed, err := c.Sync(testutil.FullAdder(t).Model, nil)
	require.NoError(t, err)
	assert.True(t, changed, "FullAdder adds nodes around the same HalfAdder")
	assert.NotEqual(t, fp, c.Fingerprint())
}

func TestCache_FailedStepIsNotCached(t *testing.T) {
	circ := testutil.AndGate(t)
	c := NewCache(circ.Root)
	_, err := c.Sync(circ.Model, circ.Stimulus("A", "01", "B", "011"))
	require.NoError(t, err)

	_, err = c.GetOrCompute(1)
	require.Error(t, err)
	step, ok := FailedStep(err)
	require.True(t, ok)
	assert.Equal(t, 0, step)
	assert.True(t, ir.IsWidthMismatch(err))
	assert.Equal(t, 0, c.Len())

	// Fixing the stimulus recovers.
	_, err = c.Sync(circ.Model, circ.Stimulus("A", "01", "B", "11"))
	require.NoError(t, err)
	f, err := c.GetOrCompute(0)
	require.NoError(t, err)
	assert.Equal(t, "01", f.Outputs[circ.Outputs["Out"]].String())
}

func TestFingerprint_Deterministic(t *testing.T) {
	circ := testutil.FullAdder(t)
	in := circ.Stimulus("A", "1", "B", "0", "Cin", "1")

	a, err := Fingerprint(circ.Model, circ.Root, in)
	require.NoError(t, err)
	b, err := Fingerprint(testutil.FullAdder(t).Model, circ.Root, Inputs(in).Clone())
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Regexp(t, `^[0-9a-f]{64}$`, a)

	other, err := Fingerprint(circ.Model, circ.Root, circ.Stimulus("A", "1"))
	require.NoError(t, err)
	assert.NotEqual(t, a, other)
}

func canonicalFrames(t *testing.T, frames []*Frame) []string {
	t.Helper()
	out := make([]string, len(frames))
	for i, f := range frames {
		data, err := f.MarshalCanonical()
		require.NoError(t, err)
		out[i] = string(data)
	}
	return out
}
