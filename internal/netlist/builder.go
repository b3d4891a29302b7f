package netlist

import (
	"fmt"

	"github.com/roach88/netsim/internal/ir"
)

// Builder assembles a netlist Document.
//
// Errors are sticky: after the first failure every method is a no-op that
// returns zero ids, and Build/Err report the original error. This keeps
// fixture code free of per-call error checks.
type Builder struct {
	ids IDGenerator
	doc Document
	err error

	components map[ir.ComponentID]int
	nodes      map[ir.NodeID]int
	nodePins   map[ir.NodePinID]int
	pinByName  map[ir.NodeID]map[string]ir.NodePinID
	cpNames    map[ir.ComponentID]map[string]bool
}

// NewBuilder creates an empty builder. A nil generator defaults to
// UUIDv7Generator.
func NewBuilder(ids IDGenerator) *Builder {
	if ids == nil {
		ids = UUIDv7Generator{}
	}
	return &Builder{
		ids:        ids,
		components: make(map[ir.ComponentID]int),
		nodes:      make(map[ir.NodeID]int),
		nodePins:   make(map[ir.NodePinID]int),
		pinByName:  make(map[ir.NodeID]map[string]ir.NodePinID),
		cpNames:    make(map[ir.ComponentID]map[string]bool),
	}
}

// Err returns the first error recorded by the builder.
func (b *Builder) Err() error { return b.err }

func (b *Builder) fail(format string, args ...any) {
	if b.err == nil {
		b.err = fmt.Errorf("netlist builder: "+format, args...)
	}
}

// Intrinsic registers (once) the primitive component of kind and returns
// its id. Variadic kinds get DefaultArity members.
func (b *Builder) Intrinsic(kind ir.IntrinsicType) ir.ComponentID {
	return b.IntrinsicN(kind, DefaultArity)
}

// IntrinsicN registers (once) a primitive with arity group members.
func (b *Builder) IntrinsicN(kind ir.IntrinsicType, arity int) ir.ComponentID {
	if b.err != nil {
		return ""
	}
	pins, err := IntrinsicPins(kind, arity)
	if err != nil {
		b.fail("%v", err)
		return ""
	}
	id := IntrinsicComponentID(kind, arity)
	if _, ok := b.components[id]; ok {
		return id
	}

	b.addComponent(ir.Component{ID: id, Name: string(kind), IsIntrinsic: true, IntrinsicType: kind})
	for _, p := range pins {
		b.addComponentPin(ir.ComponentPin{
			ID:          IntrinsicPinID(id, p.Name),
			ComponentID: id,
			Type:        p.Type,
			Group:       p.Group,
			Order:       p.Order,
			Name:        p.Name,
		})
	}
	return id
}

// Composite registers a user-composed component.
func (b *Builder) Composite(name string) ir.ComponentID {
	if b.err != nil {
		return ""
	}
	id := ir.ComponentID(b.ids.Generate(name))
	if _, ok := b.components[id]; ok {
		b.fail("duplicate component id %q", id)
		return ""
	}
	b.addComponent(ir.Component{ID: id, Name: name})
	return id
}

// Rename changes a component's name. Ids are unaffected.
func (b *Builder) Rename(component ir.ComponentID, name string) {
	if b.err != nil {
		return
	}
	i, ok := b.components[component]
	if !ok {
		b.fail("rename: unknown component %q", component)
		return
	}
	b.doc.Components[i].Name = name
}

// Place instantiates component inside parent, naming the node after the
// instantiated component.
func (b *Builder) Place(parent, component ir.ComponentID) ir.NodeID {
	if b.err != nil {
		return ""
	}
	i, ok := b.components[component]
	if !ok {
		b.fail("place: unknown component %q", component)
		return ""
	}
	return b.PlaceNamed(parent, component, b.doc.Components[i].Name, ir.Position{})
}

// PlaceNamed instantiates component inside parent. The name only feeds the
// id hint; the engine never sees it.
func (b *Builder) PlaceNamed(parent, component ir.ComponentID, name string, pos ir.Position) ir.NodeID {
	if b.err != nil {
		return ""
	}
	pi, ok := b.components[parent]
	if !ok {
		b.fail("place: unknown parent component %q", parent)
		return ""
	}
	if b.doc.Components[pi].IsIntrinsic {
		b.fail("place: intrinsic %q cannot contain nodes", parent)
		return ""
	}
	if _, ok := b.components[component]; !ok {
		b.fail("place: unknown component %q", component)
		return ""
	}

	id := ir.NodeID(b.ids.Generate(b.doc.Components[pi].Name + "/" + name))
	if _, dup := b.nodes[id]; dup {
		b.fail("duplicate node id %q", id)
		return ""
	}
	b.nodes[id] = len(b.doc.Nodes)
	b.doc.Nodes = append(b.doc.Nodes, ir.Node{
		ID:                id,
		ParentComponentID: parent,
		ComponentID:       component,
		Position:          pos,
	})
	for _, cp := range b.doc.ComponentPins {
		if cp.ComponentID == component {
			b.addNodePin(id, cp)
		}
	}
	return id
}

// Pin returns the NodePin of node realising the interface pin called name.
func (b *Builder) Pin(node ir.NodeID, name string) ir.NodePinID {
	if b.err != nil {
		return ""
	}
	id, ok := b.pinByName[node][name]
	if !ok {
		b.fail("node %q has no pin %q", node, name)
		return ""
	}
	return id
}

// Connect wires an output NodePin to an input NodePin. The connection
// lives in the body that contains the source node.
func (b *Builder) Connect(from, to ir.NodePinID) ir.ConnectionID {
	if b.err != nil {
		return ""
	}
	fi, ok := b.nodePins[from]
	if !ok {
		b.fail("connect: unknown pin %q", from)
		return ""
	}
	if _, ok := b.nodePins[to]; !ok {
		b.fail("connect: unknown pin %q", to)
		return ""
	}
	src := b.doc.Nodes[b.nodes[b.doc.NodePins[fi].NodeID]]

	id := ir.ConnectionID(b.ids.Generate(string(from) + "->" + string(to)))
	b.doc.Connections = append(b.doc.Connections, ir.Connection{
		ID:                id,
		From:              from,
		To:                to,
		ParentComponentID: src.ParentComponentID,
	})
	return id
}

// Expose adds an interface pin to a composite component, realised by the
// impl NodePin inside its body. Existing instances of the component gain a
// NodePin for it.
func (b *Builder) Expose(component ir.ComponentID, name string, typ ir.PinType, impl ir.NodePinID) ir.ComponentPinID {
	if b.err != nil {
		return ""
	}
	ci, ok := b.components[component]
	if !ok {
		b.fail("expose: unknown component %q", component)
		return ""
	}
	if b.doc.Components[ci].IsIntrinsic {
		b.fail("expose: intrinsic %q has a fixed interface", component)
		return ""
	}
	if _, ok := b.nodePins[impl]; !ok {
		b.fail("expose: unknown implementation pin %q", impl)
		return ""
	}
	if b.cpNames[component][name] {
		b.fail("expose: component %q already has a pin %q", component, name)
		return ""
	}

	order := 0
	for _, cp := range b.doc.ComponentPins {
		if cp.ComponentID == component && cp.Type == typ {
			order++
		}
	}
	cp := ir.ComponentPin{
		ID:             ir.ComponentPinID(b.ids.Generate(b.doc.Components[ci].Name + ":" + name)),
		ComponentID:    component,
		Type:           typ,
		Implementation: ir.PinIDRef(impl),
		Order:          order,
		Name:           name,
	}
	b.addComponentPin(cp)
	for _, n := range b.doc.Nodes {
		if n.ComponentID == component {
			b.addNodePin(n.ID, cp)
		}
	}
	return cp.ID
}

// SetWidth records a user-specified bus width on a NodePin.
func (b *Builder) SetWidth(pin ir.NodePinID, width int) {
	if b.err != nil {
		return
	}
	i, ok := b.nodePins[pin]
	if !ok {
		b.fail("set width: unknown pin %q", pin)
		return
	}
	if width < 1 {
		b.fail("set width: pin %q width must be >= 1, got %d", pin, width)
		return
	}
	b.doc.NodePins[i].Width = ir.WidthRef(width)
}

// Document returns a copy of the document built so far.
func (b *Builder) Document() Document {
	return b.doc.Clone()
}

// Build validates the document and returns a Snapshot.
func (b *Builder) Build() (*Snapshot, error) {
	if b.err != nil {
		return nil, b.err
	}
	return New(b.doc)
}

func (b *Builder) addComponent(c ir.Component) {
	b.components[c.ID] = len(b.doc.Components)
	b.doc.Components = append(b.doc.Components, c)
}

func (b *Builder) addComponentPin(cp ir.ComponentPin) {
	if b.cpNames[cp.ComponentID] == nil {
		b.cpNames[cp.ComponentID] = make(map[string]bool)
	}
	b.cpNames[cp.ComponentID][cp.Name] = true
	b.doc.ComponentPins = append(b.doc.ComponentPins, cp)
}

func (b *Builder) addNodePin(node ir.NodeID, cp ir.ComponentPin) {
	id := ir.NodePinID(b.ids.Generate(string(node) + "." + cp.Name))
	b.nodePins[id] = len(b.doc.NodePins)
	b.doc.NodePins = append(b.doc.NodePins, ir.NodePin{
		ID:             id,
		NodeID:         node,
		ComponentPinID: cp.ID,
	})
	if b.pinByName[node] == nil {
		b.pinByName[node] = make(map[string]ir.NodePinID)
	}
	b.pinByName[node][cp.Name] = id
}
