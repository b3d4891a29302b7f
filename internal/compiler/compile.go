package compiler

import (
	"fmt"
	"log/slog"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"

	"github.com/roach88/netsim/internal/ir"
	"github.com/roach88/netsim/internal/netlist"
)

// Result is a compiled set of circuits.
type Result struct {
	Model      *netlist.Snapshot
	Circuits   []*Circuit // declaration order
	Components map[string]ir.ComponentID
}

// Component returns the component compiled from the named circuit.
func (r *Result) Component(name string) (ir.ComponentID, bool) {
	id, ok := r.Components[name]
	return id, ok
}

// Option configures Compile.
type Option func(*options)

type options struct {
	ids    netlist.IDGenerator
	logger *slog.Logger
}

// WithIDGenerator sets the id generator.
//
// Default: netlist.NewPathGenerator(), so ids read like "HalfAdder/sum.Out"
func WithIDGenerator(g netlist.IDGenerator) Option {
	return func(o *options) {
		o.ids = g
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Compile turns the circuits struct of v into a validated netlist.
//
//	circuits: HalfAdder: {
//		nodes: {
//			a:   {use: "INPUT"}
//			b:   {use: "INPUT"}
//			sum: {use: "XOR"}
//		}
//		wires: [{from: "a.Out", to: "sum.A"}, {from: "b.Out", to: "sum.B"}]
//		inputs: [{name: "A", pin: "a.In"}, {name: "B", pin: "b.In"}]
//		outputs: [{name: "Sum", pin: "sum.Out"}]
//	}
//
// Circuits may use each other in any declaration order. A circuit that
// instantiates itself, directly or through others, is rejected.
func Compile(v cue.Value, opts ...Option) (*Result, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.ids == nil {
		o.ids = netlist.NewPathGenerator()
	}

	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	cv := v.LookupPath(cue.ParsePath("circuits"))
	if !cv.Exists() {
		return nil, errorf("circuits", v.Pos(), "no circuits defined")
	}
	iter, err := cv.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var circuits []*Circuit
	byName := make(map[string]*Circuit)
	for iter.Next() {
		c, err := ParseCircuit(iter.Value())
		if err != nil {
			return nil, err
		}
		if ir.IntrinsicType(c.Name).Valid() {
			return nil, errorf("circuits."+c.Name, c.Pos, "circuit name %q is an intrinsic type", c.Name)
		}
		circuits = append(circuits, c)
		byName[c.Name] = c
	}
	if len(circuits) == 0 {
		return nil, errorf("circuits", cv.Pos(), "no circuits defined")
	}

	order, err := buildOrder(circuits, byName)
	if err != nil {
		return nil, err
	}

	b := netlist.NewBuilder(o.ids)
	comps := make(map[string]ir.ComponentID, len(circuits))
	for _, c := range circuits {
		comps[c.Name] = b.Composite(c.Name)
	}
	for _, c := range order {
		if err := compileBody(b, c, byName, comps); err != nil {
			return nil, err
		}
	}

	snap, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("compile circuits: %w", err)
	}
	stats := snap.Document().Stats()
	o.logger.Debug("circuits compiled",
		"circuits", len(circuits),
		"nodes", stats.Nodes,
		"connections", stats.Connections)
	return &Result{Model: snap, Circuits: circuits, Components: comps}, nil
}

// buildOrder sorts circuits so that every circuit follows the circuits it
// instantiates.
func buildOrder(circuits []*Circuit, byName map[string]*Circuit) ([]*Circuit, error) {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(circuits))
	order := make([]*Circuit, 0, len(circuits))

	var visit func(c *Circuit, path []string) error
	visit = func(c *Circuit, path []string) error {
		switch state[c.Name] {
		case done:
			return nil
		case visiting:
			return errorf("circuits."+c.Name, c.Pos, "recursive instantiation: %s",
				strings.Join(append(path, c.Name), " → "))
		}
		state[c.Name] = visiting
		next := append(path[:len(path):len(path)], c.Name)
		for _, n := range c.Nodes {
			if dep, ok := byName[n.Use]; ok {
				if err := visit(dep, next); err != nil {
					return err
				}
			}
		}
		state[c.Name] = done
		order = append(order, c)
		return nil
	}

	for _, c := range circuits {
		if state[c.Name] == unvisited {
			if err := visit(c, nil); err != nil {
				return nil, err
			}
		}
	}
	return order, nil
}

// body tracks the placed nodes of one circuit.
type body struct {
	b     *netlist.Builder
	field string
	nodes map[string]ir.NodeID
	iface map[string]map[string]ir.PinType
}

func compileBody(b *netlist.Builder, c *Circuit, byName map[string]*Circuit, comps map[string]ir.ComponentID) error {
	root := comps[c.Name]
	bd := &body{
		b:     b,
		field: "circuits." + c.Name,
		nodes: make(map[string]ir.NodeID, len(c.Nodes)),
		iface: make(map[string]map[string]ir.PinType, len(c.Nodes)),
	}

	for _, n := range c.Nodes {
		nf := bd.field + ".nodes." + n.Name
		comp, iface, err := resolveUse(b, n, nf, byName, comps)
		if err != nil {
			return err
		}
		id := b.PlaceNamed(root, comp, n.Name, n.At)
		bd.nodes[n.Name] = id
		bd.iface[n.Name] = iface

		for _, pin := range ir.SortedKeys(n.Widths) {
			if _, ok := iface[pin]; !ok {
				return errorf(nf+".widths."+pin, n.Pos, "%s has no pin %q", n.Use, pin)
			}
			b.SetWidth(b.Pin(id, pin), n.Widths[pin])
		}
	}

	for i, w := range c.Wires {
		wf := fmt.Sprintf("%s.wires[%d]", bd.field, i)
		from, err := bd.pin(w.From, ir.PinOutput, wf+".from", w.Pos)
		if err != nil {
			return err
		}
		to, err := bd.pin(w.To, ir.PinInput, wf+".to", w.Pos)
		if err != nil {
			return err
		}
		b.Connect(from, to)
	}

	seen := make(map[string]bool)
	for _, group := range []struct {
		key   string
		typ   ir.PinType
		ports []PortDef
	}{{"inputs", ir.PinInput, c.Inputs}, {"outputs", ir.PinOutput, c.Outputs}} {
		for i, p := range group.ports {
			pf := fmt.Sprintf("%s.%s[%d]", bd.field, group.key, i)
			if seen[p.Name] {
				return errorf(pf+".name", p.Pos, "duplicate port name %q", p.Name)
			}
			seen[p.Name] = true
			impl, err := bd.pin(p.Pin, group.typ, pf+".pin", p.Pos)
			if err != nil {
				return err
			}
			b.Expose(root, p.Name, group.typ, impl)
		}
	}

	if err := b.Err(); err != nil {
		return fmt.Errorf("%s: %w", bd.field, err)
	}
	return nil
}

// pin resolves ref to a NodePin of the wanted direction.
func (bd *body) pin(ref PinRef, want ir.PinType, field string, pos token.Pos) (ir.NodePinID, error) {
	node, ok := bd.nodes[ref.Node]
	if !ok {
		return "", errorf(field, pos, "unknown node %q", ref.Node)
	}
	typ, ok := bd.iface[ref.Node][ref.Pin]
	if !ok {
		return "", errorf(field, pos, "node %q has no pin %q", ref.Node, ref.Pin)
	}
	if typ != want {
		return "", errorf(field, pos, "%s is an %s pin, want %s", ref, typ, want)
	}
	return bd.b.Pin(node, ref.Pin), nil
}

// resolveUse registers the component a node instantiates and returns its
// pin directions by name.
func resolveUse(b *netlist.Builder, n NodeDef, field string, byName map[string]*Circuit, comps map[string]ir.ComponentID) (ir.ComponentID, map[string]ir.PinType, error) {
	if dep, ok := byName[n.Use]; ok {
		if n.Arity != 0 {
			return "", nil, errorf(field+".arity", n.Pos, "arity applies only to variadic intrinsics")
		}
		iface := make(map[string]ir.PinType, len(dep.Inputs)+len(dep.Outputs))
		for _, p := range dep.Inputs {
			iface[p.Name] = ir.PinInput
		}
		for _, p := range dep.Outputs {
			iface[p.Name] = ir.PinOutput
		}
		return comps[n.Use], iface, nil
	}

	kind := ir.IntrinsicType(n.Use)
	if !kind.Valid() {
		return "", nil, errorf(field+".use", n.Pos, "unknown circuit or intrinsic %q", n.Use)
	}
	arity := n.Arity
	switch {
	case !netlist.IsVariadic(kind) && arity != 0:
		return "", nil, errorf(field+".arity", n.Pos, "%s has a fixed interface", kind)
	case arity == 0:
		arity = netlist.DefaultArity
	}

	specs, err := netlist.IntrinsicPins(kind, arity)
	if err != nil {
		return "", nil, errorf(field, n.Pos, "%v", err)
	}
	iface := make(map[string]ir.PinType, len(specs))
	for _, p := range specs {
		iface[p.Name] = p.Type
	}
	return b.IntrinsicN(kind, arity), iface, nil
}
