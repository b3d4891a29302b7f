package netlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/netsim/internal/ir"
)

func TestSnapshot_Lookups(t *testing.T) {
	b, ha := halfAdder(t)
	snap, err := b.Build()
	require.NoError(t, err)

	children := snap.ChildNodesOf(ha)
	require.Len(t, children, 4)
	assert.Equal(t, ir.NodeID("HalfAdder/a"), children[0].ID)
	assert.Equal(t, ir.NodeID("HalfAdder/carry"), children[3].ID)

	pins := snap.NodePinsOf("HalfAdder/sum")
	require.Len(t, pins, 3)
	assert.Equal(t, ir.NodePinID("HalfAdder/sum.A"), pins[0].ID)
	assert.Equal(t, ir.NodePinID("HalfAdder/sum.Out"), pins[2].ID)

	np, ok := snap.NodePinFor("HalfAdder/sum", "intrinsic:XOR.B")
	require.True(t, ok)
	assert.Equal(t, ir.NodePinID("HalfAdder/sum.B"), np.ID)

	cp, ok := snap.ComponentPinByName(ha, "Carry")
	require.True(t, ok)
	require.NotNil(t, cp.Implementation)
	assert.Equal(t, ir.NodePinID("HalfAdder/carry.Out"), *cp.Implementation)

	_, ok = snap.Node("ghost")
	assert.False(t, ok)
	_, ok = snap.NodePinFor("HalfAdder/sum", "intrinsic:AND.A")
	assert.False(t, ok)
}

func TestSnapshot_Connections(t *testing.T) {
	b, _ := halfAdder(t)
	snap, err := b.Build()
	require.NoError(t, err)

	from := snap.ConnectionsFrom("HalfAdder/a.Out")
	require.Len(t, from, 2, "a fans out to XOR and AND")
	assert.Equal(t, ir.NodePinID("HalfAdder/sum.A"), from[0].To)
	assert.Equal(t, ir.NodePinID("HalfAdder/carry.A"), from[1].To)

	to := snap.ConnectionsTo("HalfAdder/carry.B")
	require.Len(t, to, 1)
	assert.Equal(t, ir.NodePinID("HalfAdder/b.Out"), to[0].From)

	assert.True(t, snap.IsOpen("HalfAdder/sum.Out"), "exposed output has no wires")
	assert.True(t, snap.IsOpen("HalfAdder/a.In"))
	assert.False(t, snap.IsOpen("HalfAdder/sum.A"))
}

func TestSnapshot_ListsAreCopies(t *testing.T) {
	b, _ := halfAdder(t)
	snap, err := b.Build()
	require.NoError(t, err)

	nodes := snap.Nodes()
	nodes[0].ID = "mutated"
	n, ok := snap.Node("HalfAdder/a")
	require.True(t, ok)
	assert.Equal(t, ir.NodeID("HalfAdder/a"), n.ID)
	assert.Equal(t, ir.NodeID("HalfAdder/a"), snap.Nodes()[0].ID)
}

func TestIntrinsicPins_Layouts(t *testing.T) {
	tests := []struct {
		kind  ir.IntrinsicType
		arity int
		names []string
	}{
		{ir.IntrinsicAnd, 0, []string{"A", "B", "Out"}},
		{ir.IntrinsicNot, 0, []string{"In", "Out"}},
		{ir.IntrinsicFlipFlop, 0, []string{"In", "Out"}},
		{ir.IntrinsicAggregate, 3, []string{"In0", "In1", "In2", "Out"}},
		{ir.IntrinsicDecompose, 2, []string{"In", "Out0", "Out1"}},
		{ir.IntrinsicBroadcast, 1, []string{"In", "Out0"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			pins, err := IntrinsicPins(tt.kind, tt.arity)
			require.NoError(t, err)
			names := make([]string, len(pins))
			for i, p := range pins {
				names[i] = p.Name
			}
			assert.Equal(t, tt.names, names)
		})
	}
}
