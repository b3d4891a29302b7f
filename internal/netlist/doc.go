// Package netlist provides the read-only Netlist Model consumed by the
// evaluation engine, plus the tooling that produces it.
//
// A netlist is five arena-style entity tables (components, component pins,
// nodes, node pins, connections) that reference each other by id. The
// engine only ever sees the Model interface; Snapshot is the immutable,
// hash-indexed implementation.
//
// # Building
//
// Builder constructs a Document programmatically. It registers each
// intrinsic component once (with deterministic ids) and creates one NodePin
// per (Node, ComponentPin) pair whenever a Node or a ComponentPin is added:
//
//	b := netlist.NewBuilder(netlist.NewPathGenerator())
//	ha := b.Composite("HalfAdder")
//	x := b.PlaceNamed(ha, b.Intrinsic(ir.IntrinsicXor), "sum", ir.Position{})
//	...
//	snap, err := b.Build()
//
// # Invariants
//
// New refuses documents that violate the structural invariants (dangling
// references, fan-in > 1, wires across component bodies, misdirected
// wires). These are corrupt preconditions, not modelling errors, so they
// fail fast with an *InvariantError. Combinational acyclicity is checked
// separately by AnalyzeCycles because a cyclic net is still a well-formed
// document.
package netlist
