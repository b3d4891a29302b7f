package testutil

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/netsim/internal/ir"
	"github.com/roach88/netsim/internal/netlist"
)

// Circuit is a built fixture plus name lookups for its interface.
type Circuit struct {
	Model   *netlist.Snapshot
	Root    ir.ComponentID
	Inputs  map[string]ir.ComponentPinID
	Outputs map[string]ir.ComponentPinID
	Nodes   map[string]ir.NodeID
}

// Stimulus builds an input map from name/bits pairs:
//
//	c.Stimulus("A", "1", "B", "0")
func (c *Circuit) Stimulus(pairs ...string) map[ir.ComponentPinID]ir.Bus {
	if len(pairs)%2 != 0 {
		panic("testutil: Stimulus needs name/bits pairs")
	}
	in := make(map[ir.ComponentPinID]ir.Bus, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		id, ok := c.Inputs[pairs[i]]
		if !ok {
			panic(fmt.Sprintf("testutil: circuit has no input %q", pairs[i]))
		}
		in[id] = ir.MustParseBus(pairs[i+1])
	}
	return in
}

// fixture wraps a Builder with name bookkeeping for one root component.
type fixture struct {
	b    *netlist.Builder
	root ir.ComponentID
	c    *Circuit
}

func newFixture(b *netlist.Builder, name string) *fixture {
	root := b.Composite(name)
	return &fixture{
		b:    b,
		root: root,
		c: &Circuit{
			Root:    root,
			Inputs:  make(map[string]ir.ComponentPinID),
			Outputs: make(map[string]ir.ComponentPinID),
			Nodes:   make(map[string]ir.NodeID),
		},
	}
}

func (f *fixture) place(component ir.ComponentID, name string) ir.NodeID {
	id := f.b.PlaceNamed(f.root, component, name, ir.Position{})
	f.c.Nodes[name] = id
	return id
}

// input places an INPUT tap named after the pin and returns its Out pin.
func (f *fixture) input(name string) ir.NodePinID {
	n := f.place(f.b.Intrinsic(ir.IntrinsicInput), name)
	f.c.Inputs[name] = f.b.Expose(f.root, name, ir.PinInput, f.b.Pin(n, "In"))
	return f.b.Pin(n, "Out")
}

func (f *fixture) output(name string, pin ir.NodePinID) {
	f.c.Outputs[name] = f.b.Expose(f.root, name, ir.PinOutput, pin)
}

func (f *fixture) build(tb testing.TB) *Circuit {
	tb.Helper()
	snap, err := f.b.Build()
	require.NoError(tb, err)
	f.c.Model = snap
	return f.c
}

// addHalfAdder registers HalfAdder (Sum = A xor B, Carry = A and B) on b.
func addHalfAdder(b *netlist.Builder) *fixture {
	f := newFixture(b, "HalfAdder")
	a, bb := f.input("A"), f.input("B")
	x := f.place(b.Intrinsic(ir.IntrinsicXor), "sum")
	n := f.place(b.Intrinsic(ir.IntrinsicAnd), "carry")
	b.Connect(a, b.Pin(x, "A"))
	b.Connect(bb, b.Pin(x, "B"))
	b.Connect(a, b.Pin(n, "A"))
	b.Connect(bb, b.Pin(n, "B"))
	f.output("Sum", b.Pin(x, "Out"))
	f.output("Carry", b.Pin(n, "Out"))
	return f
}

// HalfAdder builds XOR + AND with inputs A, B and outputs Sum, Carry.
func HalfAdder(tb testing.TB) *Circuit {
	tb.Helper()
	return addHalfAdder(netlist.NewBuilder(netlist.NewPathGenerator())).build(tb)
}

// FullAdder builds two nested HalfAdders and an OR.
// Inputs A, B, Cin; outputs Sum, Cout. Nodes "ha1", "ha2", "or".
func FullAdder(tb testing.TB) *Circuit {
	tb.Helper()
	b := netlist.NewBuilder(netlist.NewPathGenerator())
	ha := addHalfAdder(b).root

	f := newFixture(b, "FullAdder")
	a, bb, cin := f.input("A"), f.input("B"), f.input("Cin")
	h1 := f.place(ha, "ha1")
	h2 := f.place(ha, "ha2")
	or := f.place(b.Intrinsic(ir.IntrinsicOr), "or")

	b.Connect(a, b.Pin(h1, "A"))
	b.Connect(bb, b.Pin(h1, "B"))
	b.Connect(b.Pin(h1, "Sum"), b.Pin(h2, "A"))
	b.Connect(cin, b.Pin(h2, "B"))
	b.Connect(b.Pin(h1, "Carry"), b.Pin(or, "A"))
	b.Connect(b.Pin(h2, "Carry"), b.Pin(or, "B"))
	f.output("Sum", b.Pin(h2, "Sum"))
	f.output("Cout", b.Pin(or, "Out"))
	return f.build(tb)
}

// AggregateDecompose builds In0..In{n-1} → AGGREGATE(n) → DECOMPOSE(n) →
// Out0..Out{n-1}. The aggregated bus is also visible on node "agg".
func AggregateDecompose(tb testing.TB, n int) *Circuit {
	tb.Helper()
	b := netlist.NewBuilder(netlist.NewPathGenerator())
	f := newFixture(b, fmt.Sprintf("Roundtrip%d", n))
	agg := f.place(b.IntrinsicN(ir.IntrinsicAggregate, n), "agg")
	dec := f.place(b.IntrinsicN(ir.IntrinsicDecompose, n), "dec")
	for i := 0; i < n; i++ {
		b.Connect(f.input(fmt.Sprintf("In%d", i)), b.Pin(agg, fmt.Sprintf("In%d", i)))
	}
	b.Connect(b.Pin(agg, "Out"), b.Pin(dec, "In"))
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("Out%d", i)
		f.output(name, b.Pin(dec, name))
	}
	return f.build(tb)
}

// Broadcast builds In (width bits) → BROADCAST(n) → Out0..Out{n-1}.
func Broadcast(tb testing.TB, n, width int) *Circuit {
	tb.Helper()
	b := netlist.NewBuilder(netlist.NewPathGenerator())
	f := newFixture(b, fmt.Sprintf("Fanout%dx%d", n, width))
	in := f.input("In")
	b.SetWidth(b.Pin(f.c.Nodes["In"], "In"), width)
	bc := f.place(b.IntrinsicN(ir.IntrinsicBroadcast, n), "bc")
	b.Connect(in, b.Pin(bc, "In"))
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("Out%d", i)
		f.output(name, b.Pin(bc, name))
	}
	return f.build(tb)
}

// Register builds D (width bits) → FLIPFLOP → Q.
func Register(tb testing.TB, width int) *Circuit {
	tb.Helper()
	b := netlist.NewBuilder(netlist.NewPathGenerator())
	f := newFixture(b, fmt.Sprintf("Register%d", width))
	d := f.input("D")
	b.SetWidth(b.Pin(f.c.Nodes["D"], "In"), width)
	ff := f.place(b.Intrinsic(ir.IntrinsicFlipFlop), "ff")
	b.Connect(d, b.Pin(ff, "In"))
	f.output("Q", b.Pin(ff, "Out"))
	return f.build(tb)
}

// Toggle builds a FLIPFLOP fed by its own inverted output. Q alternates
// 0, 1, 0, ... with no inputs. The loop is broken only by the FLIPFLOP.
func Toggle(tb testing.TB) *Circuit {
	tb.Helper()
	b := netlist.NewBuilder(netlist.NewPathGenerator())
	f := newFixture(b, "Toggle")
	ff := f.place(b.Intrinsic(ir.IntrinsicFlipFlop), "ff")
	tap := f.place(b.IntrinsicN(ir.IntrinsicBroadcast, 2), "tap")
	inv := f.place(b.Intrinsic(ir.IntrinsicNot), "inv")
	b.Connect(b.Pin(ff, "Out"), b.Pin(tap, "In"))
	b.Connect(b.Pin(tap, "Out0"), b.Pin(inv, "In"))
	b.Connect(b.Pin(inv, "Out"), b.Pin(ff, "In"))
	f.output("Q", b.Pin(tap, "Out1"))
	return f.build(tb)
}

// Loop builds two NOT gates feeding each other: a combinational cycle.
func Loop(tb testing.TB) *Circuit {
	tb.Helper()
	b := netlist.NewBuilder(netlist.NewPathGenerator())
	f := newFixture(b, "Loop")
	n1 := f.place(b.Intrinsic(ir.IntrinsicNot), "n1")
	tap := f.place(b.IntrinsicN(ir.IntrinsicBroadcast, 2), "tap")
	n2 := f.place(b.Intrinsic(ir.IntrinsicNot), "n2")
	b.Connect(b.Pin(n1, "Out"), b.Pin(tap, "In"))
	b.Connect(b.Pin(tap, "Out0"), b.Pin(n2, "In"))
	b.Connect(b.Pin(n2, "Out"), b.Pin(n1, "In"))
	f.output("Q", b.Pin(tap, "Out1"))
	return f.build(tb)
}

// AndGate builds A, B → AND → Out with no declared widths.
func AndGate(tb testing.TB) *Circuit {
	tb.Helper()
	b := netlist.NewBuilder(netlist.NewPathGenerator())
	f := newFixture(b, "AndGate")
	a, bb := f.input("A"), f.input("B")
	g := f.place(b.Intrinsic(ir.IntrinsicAnd), "and")
	b.Connect(a, b.Pin(g, "A"))
	b.Connect(bb, b.Pin(g, "B"))
	f.output("Out", b.Pin(g, "Out"))
	return f.build(tb)
}

// TappedRegister builds D → BROADCAST(2); Out0 → FLIPFLOP; Q = ff AND Out1,
// with no declared widths. order lists the nodes "d", "tap", "ff", "and" in
// placement order; nodes it omits are placed last in that order.
func TappedRegister(tb testing.TB, order ...string) *Circuit {
	tb.Helper()
	b := netlist.NewBuilder(netlist.NewPathGenerator())
	f := newFixture(b, "TappedRegister")

	kinds := map[string]ir.ComponentID{
		"d":   b.Intrinsic(ir.IntrinsicInput),
		"tap": b.IntrinsicN(ir.IntrinsicBroadcast, 2),
		"ff":  b.Intrinsic(ir.IntrinsicFlipFlop),
		"and": b.Intrinsic(ir.IntrinsicAnd),
	}
	placed := make(map[string]ir.NodeID, len(kinds))
	for _, name := range append(append([]string(nil), order...), "d", "tap", "ff", "and") {
		if _, ok := placed[name]; ok {
			continue
		}
		kind, ok := kinds[name]
		if !ok {
			tb.Fatalf("testutil: TappedRegister has no node %q", name)
		}
		placed[name] = f.place(kind, name)
	}

	d, tap, ff, and := placed["d"], placed["tap"], placed["ff"], placed["and"]
	f.c.Inputs["D"] = b.Expose(f.root, "D", ir.PinInput, b.Pin(d, "In"))
	b.Connect(b.Pin(d, "Out"), b.Pin(tap, "In"))
	b.Connect(b.Pin(tap, "Out0"), b.Pin(ff, "In"))
	b.Connect(b.Pin(ff, "Out"), b.Pin(and, "A"))
	b.Connect(b.Pin(tap, "Out1"), b.Pin(and, "B"))
	f.output("Q", b.Pin(and, "Out"))
	return f.build(tb)
}
