package primitive

import (
	"fmt"

	"github.com/roach88/netsim/internal/ir"
	"github.com/roach88/netsim/internal/netlist"
)

// Groups maps a pin-group name to its ordered member buses.
type Groups map[string][]ir.Bus

// Shape maps an output group to the widths of its members.
type Shape map[string][]int

// Layout describes how a primitive relates the widths of its pins.
type Layout int

const (
	// LayoutUniform: every pin carries the same width.
	LayoutUniform Layout = iota
	// LayoutGather: one bit per input member, output width = member count.
	LayoutGather
	// LayoutScatter: output members have their own widths, input width is their sum.
	LayoutScatter
)

// String returns the layout name.
func (l Layout) String() string {
	switch l {
	case LayoutUniform:
		return "uniform"
	case LayoutGather:
		return "gather"
	case LayoutScatter:
		return "scatter"
	default:
		return fmt.Sprintf("Layout(%d)", int(l))
	}
}

// EvalFunc computes output groups from input groups.
// shape carries the resolved output widths; prev carries the inputs seen
// at the previous time step (nil at step 0). Errors are *ir.ModelError.
type EvalFunc func(in Groups, shape Shape, prev Groups) (Groups, error)

// Primitive is one intrinsic kind.
type Primitive struct {
	Kind     ir.IntrinsicType
	Layout   Layout
	Inputs   []string // input group names
	Outputs  []string // output group names
	Stateful bool     // reads prev; may run before its inputs are known
	Shaped   bool     // Eval reads shape
	Eval     EvalFunc
}

var builtins = map[ir.IntrinsicType]Primitive{
	ir.IntrinsicAnd:       binary(ir.IntrinsicAnd, func(a, b bool) bool { return a && b }),
	ir.IntrinsicOr:        binary(ir.IntrinsicOr, func(a, b bool) bool { return a || b }),
	ir.IntrinsicXor:       binary(ir.IntrinsicXor, func(a, b bool) bool { return a != b }),
	ir.IntrinsicNot:       unary(ir.IntrinsicNot, func(a bool) bool { return !a }),
	ir.IntrinsicInput:     unary(ir.IntrinsicInput, func(a bool) bool { return a }),
	ir.IntrinsicAggregate: {Kind: ir.IntrinsicAggregate, Layout: LayoutGather, Inputs: []string{"In"}, Outputs: []string{"Out"}, Eval: aggregate},
	ir.IntrinsicDecompose: {Kind: ir.IntrinsicDecompose, Layout: LayoutScatter, Inputs: []string{"In"}, Outputs: []string{"Out"}, Shaped: true, Eval: decompose},
	ir.IntrinsicBroadcast: {Kind: ir.IntrinsicBroadcast, Layout: LayoutUniform, Inputs: []string{"In"}, Outputs: []string{"Out"}, Shaped: true, Eval: broadcast},
	ir.IntrinsicFlipFlop:  {Kind: ir.IntrinsicFlipFlop, Layout: LayoutUniform, Inputs: []string{"In"}, Outputs: []string{"Out"}, Stateful: true, Shaped: true, Eval: flipFlop},
}

// Lookup returns the built-in primitive for kind.
func Lookup(kind ir.IntrinsicType) (Primitive, bool) {
	p, ok := builtins[kind]
	return p, ok
}

// Registry resolves intrinsic components of one model to their primitive.
type Registry struct {
	byComponent map[ir.ComponentID]Primitive
}

// NewRegistry indexes every intrinsic component of m.
func NewRegistry(m netlist.Model) *Registry {
	r := &Registry{byComponent: make(map[ir.ComponentID]Primitive)}
	for _, c := range m.Components() {
		if !c.IsIntrinsic {
			continue
		}
		if p, ok := builtins[c.IntrinsicType]; ok {
			r.byComponent[c.ID] = p
		}
	}
	return r
}

// Get returns the primitive behind component, if it is intrinsic.
func (r *Registry) Get(component ir.ComponentID) (Primitive, bool) {
	p, ok := r.byComponent[component]
	return p, ok
}

// single returns the sole bus of group, or a width mismatch if the group
// does not hold exactly one bus.
func single(kind ir.IntrinsicType, in Groups, group string) (ir.Bus, error) {
	buses := in[group]
	if len(buses) != 1 {
		return nil, ir.NewWidthMismatch(kind, "%s expects exactly one bus on %s, got %d", kind, group, len(buses))
	}
	return buses[0], nil
}

func binary(kind ir.IntrinsicType, op func(a, b bool) bool) Primitive {
	return Primitive{
		Kind:    kind,
		Layout:  LayoutUniform,
		Inputs:  []string{"A", "B"},
		Outputs: []string{"Out"},
		Eval: func(in Groups, _ Shape, _ Groups) (Groups, error) {
			a, err := single(kind, in, "A")
			if err != nil {
				return nil, err
			}
			b, err := single(kind, in, "B")
			if err != nil {
				return nil, err
			}
			if len(a) != len(b) {
				return nil, ir.NewWidthMismatch(kind, "A has %d bits, B has %d", len(a), len(b))
			}
			out := make(ir.Bus, len(a))
			for i := range a {
				out[i] = op(a[i], b[i])
			}
			return Groups{"Out": {out}}, nil
		},
	}
}

func unary(kind ir.IntrinsicType, op func(bool) bool) Primitive {
	return Primitive{
		Kind:    kind,
		Layout:  LayoutUniform,
		Inputs:  []string{"In"},
		Outputs: []string{"Out"},
		Eval: func(in Groups, _ Shape, _ Groups) (Groups, error) {
			a, err := single(kind, in, "In")
			if err != nil {
				return nil, err
			}
			out := make(ir.Bus, len(a))
			for i, bit := range a {
				out[i] = op(bit)
			}
			return Groups{"Out": {out}}, nil
		},
	}
}

// aggregate concatenates its 1-bit members in pin order. The output width is
// the declared arity, not the number of connected members: an unconnected
// member reads as a zero bit and still occupies its position.
func aggregate(in Groups, _ Shape, _ Groups) (Groups, error) {
	members := in["In"]
	out := make(ir.Bus, 0, len(members))
	for i, m := range members {
		if len(m) != 1 {
			return nil, ir.NewWidthMismatch(ir.IntrinsicAggregate, "In%d has %d bits, want 1", i, len(m))
		}
		out = append(out, m[0])
	}
	return Groups{"Out": {out}}, nil
}

func decompose(in Groups, shape Shape, _ Groups) (Groups, error) {
	src, err := single(ir.IntrinsicDecompose, in, "In")
	if err != nil {
		return nil, err
	}
	widths := shape["Out"]
	total := 0
	for _, w := range widths {
		total += w
	}
	if total != len(src) {
		return nil, ir.NewWidthMismatch(ir.IntrinsicDecompose, "In has %d bits, outputs take %d", len(src), total)
	}

	out := make([]ir.Bus, len(widths))
	offset := 0
	for i, w := range widths {
		out[i] = src[offset : offset+w].Clone()
		offset += w
	}
	return Groups{"Out": out}, nil
}

func broadcast(in Groups, shape Shape, _ Groups) (Groups, error) {
	src, err := single(ir.IntrinsicBroadcast, in, "In")
	if err != nil {
		return nil, err
	}
	out := make([]ir.Bus, len(shape["Out"]))
	for i := range out {
		out[i] = src.Clone()
	}
	return Groups{"Out": out}, nil
}

// flipFlop ignores its current input and emits the previous step's input,
// or all-zero of the resolved width at step 0.
func flipFlop(_ Groups, shape Shape, prev Groups) (Groups, error) {
	if last := prev["In"]; len(last) == 1 {
		return Groups{"Out": {last[0].Clone()}}, nil
	}
	width := 1
	if ws := shape["Out"]; len(ws) == 1 {
		width = ws[0]
	}
	return Groups{"Out": {ir.NewBus(width)}}, nil
}
