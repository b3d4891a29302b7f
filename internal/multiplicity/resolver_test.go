package multiplicity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/netsim/internal/ir"
	"github.com/roach88/netsim/internal/netlist"
	"github.com/roach88/netsim/internal/testutil"
)

func resolve(t *testing.T, r *Resolver, pin ir.NodePinID) ir.Multiplicity {
	t.Helper()
	m, err := r.Resolve(pin)
	require.NoError(t, err)
	return m
}

func TestResolve_UserWidthPropagatesThroughUniform(t *testing.T) {
	c := testutil.Broadcast(t, 3, 4)
	r := New(c.Model)

	assert.Equal(t, ir.Fixed(4), resolve(t, r, "Fanout3x4/In.In"))
	assert.Equal(t, ir.Fixed(4), resolve(t, r, "Fanout3x4/In.Out"))
	assert.Equal(t, ir.Fixed(4), resolve(t, r, "Fanout3x4/bc.Out2"))

	m, err := r.ResolveComponentPin(c.Outputs["Out1"])
	require.NoError(t, err)
	assert.Equal(t, ir.Fixed(4), m)
}

func TestResolve_GatherAndScatterShapes(t *testing.T) {
	c := testutil.AggregateDecompose(t, 3)
	r := New(c.Model)

	assert.Equal(t, ir.Fixed(3), resolve(t, r, "Roundtrip3/agg.Out"))
	assert.Equal(t, ir.Fixed(1), resolve(t, r, "Roundtrip3/agg.In2"))
	assert.Equal(t, ir.Fixed(3), resolve(t, r, "Roundtrip3/dec.In"))
	assert.Equal(t, ir.Fixed(1), resolve(t, r, "Roundtrip3/dec.Out0"))

	// The INPUT tap learns its width from the AGGREGATE member it feeds.
	m, err := r.ResolveComponentPin(c.Inputs["In0"])
	require.NoError(t, err)
	assert.Equal(t, ir.Fixed(1), m)
}

func TestResolve_ScatterSumsMemberWidths(t *testing.T) {
	b := netlist.NewBuilder(netlist.NewPathGenerator())
	top := b.Composite("Split")
	in := b.PlaceNamed(top, b.Intrinsic(ir.IntrinsicInput), "in", ir.Position{})
	dec := b.PlaceNamed(top, b.IntrinsicN(ir.IntrinsicDecompose, 2), "dec", ir.Position{})
	b.Connect(b.Pin(in, "Out"), b.Pin(dec, "In"))
	b.SetWidth(b.Pin(dec, "Out0"), 3)
	snap, err := b.Build()
	require.NoError(t, err)

	r := New(snap)
	assert.Equal(t, ir.Fixed(3), resolve(t, r, "Split/dec.Out0"))
	assert.Equal(t, ir.Fixed(1), resolve(t, r, "Split/dec.Out1"))
	assert.Equal(t, ir.Fixed(4), resolve(t, r, "Split/dec.In"))
	assert.Equal(t, ir.Fixed(4), resolve(t, r, "Split/in.In"))
}

func TestResolve_Multiplexable(t *testing.T) {
	c := testutil.HalfAdder(t)
	r := New(c.Model)

	m := resolve(t, r, "HalfAdder/sum.Out")
	assert.False(t, m.IsFixed())
	assert.Equal(t, 1, m.Width())

	w, err := r.Width("HalfAdder/sum.Out", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, w, "fallback applies to multiplexable pins")
}

func TestResolve_FeedbackLoopTerminates(t *testing.T) {
	c := testutil.Toggle(t)
	r := New(c.Model)

	assert.Equal(t, ir.Multiplexable(), resolve(t, r, "Toggle/ff.In"))
	assert.Equal(t, ir.Multiplexable(), resolve(t, r, "Toggle/inv.Out"))
}

func TestResolve_RecursesIntoImplementation(t *testing.T) {
	b := netlist.NewBuilder(netlist.NewPathGenerator())
	top := b.Composite("Top")
	inner := b.Composite("Inner")
	x := b.PlaceNamed(inner, b.Intrinsic(ir.IntrinsicInput), "x", ir.Position{})
	b.SetWidth(b.Pin(x, "In"), 4)
	b.Expose(inner, "X", ir.PinInput, b.Pin(x, "In"))
	node := b.PlaceNamed(top, inner, "i", ir.Position{})
	snap, err := b.Build()
	require.NoError(t, err)

	r := New(snap)
	assert.Equal(t, ir.Fixed(4), resolve(t, r, b.Pin(node, "X")))
}

func TestResolve_WidthConflict(t *testing.T) {
	b := netlist.NewBuilder(netlist.NewPathGenerator())
	top := b.Composite("Bad")
	in := b.Intrinsic(ir.IntrinsicInput)
	a := b.PlaceNamed(top, in, "a", ir.Position{})
	bb := b.PlaceNamed(top, in, "b", ir.Position{})
	g := b.PlaceNamed(top, b.Intrinsic(ir.IntrinsicAnd), "and", ir.Position{})
	b.SetWidth(b.Pin(a, "In"), 2)
	b.SetWidth(b.Pin(bb, "In"), 3)
	b.Connect(b.Pin(a, "Out"), b.Pin(g, "A"))
	b.Connect(b.Pin(bb, "Out"), b.Pin(g, "B"))
	snap, err := b.Build()
	require.NoError(t, err)

	r := New(snap)
	_, err = r.Resolve("Bad/and.Out")
	require.Error(t, err)
	assert.True(t, ir.IsWidthConflict(err))

	var me *ir.ModelError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "Bad/a.In", me.PinID)
	assert.Equal(t, "Bad/b.In", me.Details["peer"])

	errs := r.CheckConnections()
	require.Len(t, errs, 2)
	for _, e := range errs {
		assert.True(t, ir.IsWidthConflict(e))
	}
}

func TestCheckConnections_Clean(t *testing.T) {
	r := New(testutil.FullAdder(t).Model)
	assert.Empty(t, r.CheckConnections())
}

func TestResolve_MissingEntity(t *testing.T) {
	r := New(testutil.HalfAdder(t).Model)
	_, err := r.Resolve("ghost")
	assert.True(t, ir.IsMissingEntity(err))

	_, err = r.ResolveComponentPin("ghost")
	assert.True(t, ir.IsMissingEntity(err))
}
