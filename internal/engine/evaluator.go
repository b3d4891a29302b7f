package engine

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/roach88/netsim/internal/ir"
	"github.com/roach88/netsim/internal/multiplicity"
	"github.com/roach88/netsim/internal/netlist"
	"github.com/roach88/netsim/internal/primitive"
)

// DefaultMaxDepth is the default component nesting limit.
// A component that instantiates itself hits it instead of recursing forever.
const DefaultMaxDepth = 64

// Evaluator computes frames for components of one immutable model.
//
// Thread-safety model:
//   - An Evaluator must be used from one goroutine at a time
//   - The model must not change while an Evaluator exists
type Evaluator struct {
	model    netlist.Model
	prims    *primitive.Registry
	widths   *multiplicity.Resolver
	logger   *slog.Logger
	maxDepth int
	hook     func(ir.IntrinsicType)
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) {
		e.logger = l
	}
}

// WithMaxDepth sets the component nesting limit.
//
// Default: 64 levels (DefaultMaxDepth)
func WithMaxDepth(depth int) Option {
	return func(e *Evaluator) {
		e.maxDepth = depth
	}
}

// WithPrimitiveHook registers fn to be called before every primitive
// evaluation. Tests use it as a call-count probe.
func WithPrimitiveHook(fn func(ir.IntrinsicType)) Option {
	return func(e *Evaluator) {
		e.hook = fn
	}
}

// NewEvaluator creates an Evaluator over m.
func NewEvaluator(m netlist.Model, opts ...Option) *Evaluator {
	e := &Evaluator{
		model:    m,
		logger:   slog.Default(),
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.prims = primitive.NewRegistry(m)
	e.widths = multiplicity.New(m)
	return e
}

// Model returns the model the evaluator runs over.
func (e *Evaluator) Model() netlist.Model { return e.model }

// EvaluateComponent computes one time step of component.
//
// inputs drives the component's input pins; unsupplied inputs read as
// all-zero at their resolved width. prev is the frame of the previous step
// of the same component, or nil at step 0; it feeds FLIPFLOP state.
//
// On error no frame is returned: the step is undefined.
func (e *Evaluator) EvaluateComponent(component ir.ComponentID, inputs Inputs, prev *Frame) (*Frame, error) {
	if prev != nil && prev.ComponentID != component {
		return nil, fmt.Errorf("previous frame belongs to %q, not %q", prev.ComponentID, component)
	}
	return e.evaluate(component, inputs, prev, 0)
}

func (e *Evaluator) evaluate(component ir.ComponentID, inputs Inputs, prev *Frame, depth int) (*Frame, error) {
	if depth > e.maxDepth {
		return nil, ir.NewRecursionLimit(component, e.maxDepth)
	}
	c, ok := e.model.Component(component)
	if !ok {
		return nil, ir.NewMissingEntity("component", string(component))
	}
	if c.IsIntrinsic {
		return e.evalPrimitive(c, inputs, prev)
	}
	return e.evalComposite(c, inputs, prev, depth)
}

// boundPin is a NodePin together with the interface pin it realises.
type boundPin struct {
	np ir.NodePin
	cp ir.ComponentPin
}

func (e *Evaluator) pinsOf(node ir.NodeID) ([]boundPin, error) {
	nps := e.model.NodePinsOf(node)
	out := make([]boundPin, 0, len(nps))
	for _, np := range nps {
		cp, ok := e.model.ComponentPin(np.ComponentPinID)
		if !ok {
			return nil, ir.NewMissingEntity("component pin", string(np.ComponentPinID))
		}
		out = append(out, boundPin{np: np, cp: cp})
	}
	return out, nil
}

// groupPins collects pins of typ into groups ordered by pin order.
func groupPins[T any](pins []T, cpOf func(T) ir.ComponentPin, typ ir.PinType) (map[string][]T, []string) {
	groups := make(map[string][]T)
	var names []string
	for _, p := range pins {
		cp := cpOf(p)
		if cp.Type != typ {
			continue
		}
		g := cp.GroupName()
		if _, seen := groups[g]; !seen {
			names = append(names, g)
		}
		groups[g] = append(groups[g], p)
	}
	for _, g := range names {
		members := groups[g]
		sort.SliceStable(members, func(i, j int) bool { return cpOf(members[i]).Order < cpOf(members[j]).Order })
	}
	return groups, names
}

// evalPrimitive runs an intrinsic component evaluated at the top level,
// with inputs keyed by its own interface pins.
func (e *Evaluator) evalPrimitive(c ir.Component, inputs Inputs, prev *Frame) (*Frame, error) {
	prim, ok := e.prims.Get(c.ID)
	if !ok {
		return nil, &ir.ModelError{
			Code:        ir.ErrCodeUnsupported,
			Message:     fmt.Sprintf("no primitive for intrinsic type %q", c.IntrinsicType),
			ComponentID: c.ID,
		}
	}

	frame := newFrame(c.ID, prev)
	cps := e.model.ComponentPinsOf(c.ID)
	cpSelf := func(cp ir.ComponentPin) ir.ComponentPin { return cp }

	inGroups, inNames := groupPins(cps, cpSelf, ir.PinInput)
	in := make(primitive.Groups, len(inNames))
	var prevIn primitive.Groups
	if prev != nil {
		prevIn = make(primitive.Groups, len(inNames))
	}
	for _, g := range inNames {
		for _, cp := range inGroups[g] {
			v, ok := inputs[cp.ID]
			if !ok {
				m, err := e.widths.ResolveComponentPin(cp.ID)
				if err != nil {
					return nil, err
				}
				v = ir.NewBus(m.Width())
			}
			frame.Inputs[cp.ID] = v
			in[g] = append(in[g], v)
			if prev != nil {
				if pv, ok := prev.Inputs[cp.ID]; ok {
					prevIn[g] = append(prevIn[g], pv)
				}
			}
		}
	}

	outGroups, outNames := groupPins(cps, cpSelf, ir.PinOutput)
	var shape primitive.Shape
	if prim.Shaped {
		shape = make(primitive.Shape, len(outNames))
		for _, g := range outNames {
			for _, cp := range outGroups[g] {
				m, err := e.widths.ResolveComponentPin(cp.ID)
				if err != nil {
					return nil, err
				}
				shape[g] = append(shape[g], memberWidth(m, in, prevIn))
			}
		}
	}

	out, err := e.call(prim, in, shape, prevIn)
	if err != nil {
		return nil, withComponent(err, c.ID, "")
	}
	for _, g := range outNames {
		members := outGroups[g]
		if len(out[g]) != len(members) {
			return nil, badArity(prim, g, len(out[g]), len(members))
		}
		for i, cp := range members {
			frame.Outputs[cp.ID] = out[g][i]
		}
	}
	return frame, nil
}

// memberWidth picks an output member width: the resolved width when fixed,
// otherwise the width of the single input bus, then of the previous step's
// input bus, otherwise 1.
func memberWidth(m ir.Multiplicity, in, prev primitive.Groups) int {
	if m.IsFixed() {
		return m.Width()
	}
	for _, g := range []primitive.Groups{in, prev} {
		if cur := g["In"]; len(cur) == 1 && len(cur[0]) > 0 {
			return len(cur[0])
		}
	}
	return 1
}

func (e *Evaluator) call(prim primitive.Primitive, in primitive.Groups, shape primitive.Shape, prev primitive.Groups) (primitive.Groups, error) {
	if e.hook != nil {
		e.hook(prim.Kind)
	}
	return prim.Eval(in, shape, prev)
}

func badArity(prim primitive.Primitive, group string, got, want int) error {
	return &ir.ModelError{
		Code:    ir.ErrCodeUnsupported,
		Message: fmt.Sprintf("%s produced %d buses on %s, node has %d pins", prim.Kind, got, group, want),
	}
}

// withComponent fills in location fields of a fresh ModelError that has
// none. Resolver errors are memoised and must not be passed here.
func withComponent(err error, component ir.ComponentID, node ir.NodeID) error {
	if me, ok := err.(*ir.ModelError); ok {
		if me.ComponentID == "" {
			me.ComponentID = component
		}
		if me.NodeID == "" {
			me.NodeID = node
		}
	}
	return err
}

// child tracks one pending node of a composite body.
type child struct {
	node    ir.Node
	def     ir.Component
	prim    primitive.Primitive // zero for composite children
	pins    []boundPin
	frame   *NodeFrame
	needed  int
	found   int
}

func (ch *child) stateful() bool { return ch.def.IsIntrinsic && ch.prim.Stateful }

func (e *Evaluator) evalComposite(c ir.Component, inputs Inputs, prev *Frame, depth int) (*Frame, error) {
	frame := newFrame(c.ID, prev)
	frame.Nodes = make(map[ir.NodeID]*NodeFrame)

	nodes := e.model.ChildNodesOf(c.ID)
	children := make(map[ir.NodeID]*child, len(nodes))
	pending := make([]*child, 0, len(nodes))
	for _, n := range nodes {
		ch, err := e.prepare(n)
		if err != nil {
			return nil, err
		}
		children[n.ID] = ch
		pending = append(pending, ch)
		frame.Nodes[n.ID] = ch.frame
	}

	// exposed maps an implementation NodePin to the output it realises.
	exposed := make(map[ir.NodePinID]ir.ComponentPinID)
	for _, cp := range e.model.ComponentPinsOf(c.ID) {
		if cp.Implementation == nil {
			continue
		}
		if cp.Type == ir.PinOutput {
			exposed[*cp.Implementation] = cp.ID
			continue
		}

		v, ok := inputs[cp.ID]
		if !ok {
			m, err := e.widths.ResolveComponentPin(cp.ID)
			if err != nil {
				return nil, err
			}
			v = ir.NewBus(m.Width())
		}
		frame.Inputs[cp.ID] = v

		np, ok := e.model.NodePin(*cp.Implementation)
		if !ok {
			return nil, ir.NewMissingEntity("node pin", string(*cp.Implementation))
		}
		ch, ok := children[np.NodeID]
		if !ok {
			return nil, ir.NewMissingEntity("node", string(np.NodeID))
		}
		ch.frame.Pins[np.ID] = v
	}

	// Unwired inputs read as false.
	for _, ch := range pending {
		for _, bp := range ch.pins {
			if bp.cp.Type != ir.PinInput {
				continue
			}
			if _, set := ch.frame.Pins[bp.np.ID]; set || len(e.model.ConnectionsTo(bp.np.ID)) > 0 {
				continue
			}
			w, err := e.widths.Width(bp.np.ID, 1)
			if err != nil {
				return nil, err
			}
			ch.frame.Pins[bp.np.ID] = ir.NewBus(w)
		}
	}

	run := func(ch *child) error {
		outs, err := e.evalChild(ch, prev, depth)
		if err != nil {
			return err
		}
		for _, o := range outs {
			ch.frame.Pins[o.pin] = o.value
			for _, conn := range e.model.ConnectionsFrom(o.pin) {
				target, ok := e.model.NodePin(conn.To)
				if !ok {
					return ir.NewMissingEntity("node pin", string(conn.To))
				}
				dst, ok := children[target.NodeID]
				if !ok {
					return ir.NewMissingEntity("node", string(target.NodeID))
				}
				dst.frame.Pins[target.ID] = o.value
				dst.found++
			}
			if cp, ok := exposed[o.pin]; ok {
				frame.Outputs[cp] = o.value
			}
		}
		return nil
	}

	for len(pending) > 0 {
		var next []*child
		progressed := false
		for _, ch := range pending {
			if ch.found < ch.needed {
				next = append(next, ch)
				continue
			}
			if err := run(ch); err != nil {
				return nil, err
			}
			progressed = true
		}
		if !progressed {
			// Stalled: FLIPFLOPs emit the previous step's input, so they
			// may run before theirs arrives. All of them run together so
			// the result does not depend on placement order.
			var waiting []*child
			for _, ch := range next {
				if !ch.stateful() {
					waiting = append(waiting, ch)
					continue
				}
				if err := run(ch); err != nil {
					return nil, err
				}
				progressed = true
			}
			if !progressed {
				stuck := make([]ir.NodeID, len(next))
				for i, ch := range next {
					stuck[i] = ch.node.ID
				}
				e.logger.Debug("evaluation stalled",
					"component", c.ID,
					"stuck", len(stuck))
				return nil, ir.NewCycleError(c.ID, stuck)
			}
			next = waiting
		}
		pending = next
	}

	// Outputs whose implementation was never driven read as false.
	for _, cp := range e.model.ComponentPinsOf(c.ID) {
		if cp.Type != ir.PinOutput {
			continue
		}
		if _, ok := frame.Outputs[cp.ID]; ok {
			continue
		}
		m, err := e.widths.ResolveComponentPin(cp.ID)
		if err != nil {
			return nil, err
		}
		frame.Outputs[cp.ID] = ir.NewBus(m.Width())
	}
	return frame, nil
}

func (e *Evaluator) prepare(n ir.Node) (*child, error) {
	def, ok := e.model.Component(n.ComponentID)
	if !ok {
		return nil, ir.NewMissingEntity("component", string(n.ComponentID))
	}
	pins, err := e.pinsOf(n.ID)
	if err != nil {
		return nil, err
	}
	ch := &child{
		node:  n,
		def:   def,
		pins:  pins,
		frame: &NodeFrame{Pins: make(map[ir.NodePinID]ir.Bus, len(pins))},
	}
	if def.IsIntrinsic {
		prim, ok := e.prims.Get(def.ID)
		if !ok {
			return nil, &ir.ModelError{
				Code:        ir.ErrCodeUnsupported,
				Message:     fmt.Sprintf("no primitive for intrinsic type %q", def.IntrinsicType),
				ComponentID: def.ID,
				NodeID:      n.ID,
			}
		}
		ch.prim = prim
	}
	for _, bp := range pins {
		if bp.cp.Type == ir.PinInput && len(e.model.ConnectionsTo(bp.np.ID)) > 0 {
			ch.needed++
		}
	}
	return ch, nil
}

type pinValue struct {
	pin   ir.NodePinID
	value ir.Bus
}

// evalChild evaluates one child node and returns its output pin values.
func (e *Evaluator) evalChild(ch *child, prev *Frame, depth int) ([]pinValue, error) {
	prevNode, _ := prev.Node(ch.node.ID)
	if !ch.def.IsIntrinsic {
		return e.evalCompositeChild(ch, prevNode, depth)
	}

	getCP := func(bp boundPin) ir.ComponentPin { return bp.cp }
	inGroups, inNames := groupPins(ch.pins, getCP, ir.PinInput)
	in := make(primitive.Groups, len(inNames))
	var prevIn primitive.Groups
	if prevNode != nil {
		prevIn = make(primitive.Groups, len(inNames))
	}
	for _, g := range inNames {
		for _, bp := range inGroups[g] {
			if v, ok := ch.frame.Pins[bp.np.ID]; ok {
				in[g] = append(in[g], v)
			}
			if prevNode != nil {
				if pv, ok := prevNode.Pins[bp.np.ID]; ok {
					prevIn[g] = append(prevIn[g], pv)
				}
			}
		}
	}

	outGroups, outNames := groupPins(ch.pins, getCP, ir.PinOutput)
	var shape primitive.Shape
	if ch.prim.Shaped {
		shape = make(primitive.Shape, len(outNames))
		for _, g := range outNames {
			for _, bp := range outGroups[g] {
				m, err := e.widths.Resolve(bp.np.ID)
				if err != nil {
					return nil, err
				}
				shape[g] = append(shape[g], memberWidth(m, in, prevIn))
			}
		}
	}

	out, err := e.call(ch.prim, in, shape, prevIn)
	if err != nil {
		return nil, withComponent(err, ch.node.ParentComponentID, ch.node.ID)
	}

	var values []pinValue
	for _, g := range outNames {
		members := outGroups[g]
		if len(out[g]) != len(members) {
			return nil, withComponent(badArity(ch.prim, g, len(out[g]), len(members)), ch.node.ParentComponentID, ch.node.ID)
		}
		for i, bp := range members {
			values = append(values, pinValue{pin: bp.np.ID, value: out[g][i]})
		}
	}
	return values, nil
}

func (e *Evaluator) evalCompositeChild(ch *child, prevNode *NodeFrame, depth int) ([]pinValue, error) {
	in := make(Inputs)
	for _, bp := range ch.pins {
		if bp.cp.Type != ir.PinInput {
			continue
		}
		if v, ok := ch.frame.Pins[bp.np.ID]; ok {
			in[bp.cp.ID] = v
		}
	}

	var prevChild *Frame
	if prevNode != nil {
		prevChild = prevNode.Child
	}
	sub, err := e.evaluate(ch.def.ID, in, prevChild, depth+1)
	if err != nil {
		return nil, err
	}
	ch.frame.Child = sub

	var values []pinValue
	for _, bp := range ch.pins {
		if bp.cp.Type != ir.PinOutput {
			continue
		}
		values = append(values, pinValue{pin: bp.np.ID, value: sub.Outputs[bp.cp.ID]})
	}
	return values, nil
}
