package netlist

import (
	"github.com/roach88/netsim/internal/ir"
)

// Model is the read-only view of a netlist consumed by the engine.
// Implementations must not change while a caller is evaluating.
type Model interface {
	Component(id ir.ComponentID) (ir.Component, bool)
	Node(id ir.NodeID) (ir.Node, bool)
	ComponentPin(id ir.ComponentPinID) (ir.ComponentPin, bool)
	NodePin(id ir.NodePinID) (ir.NodePin, bool)

	// NodePinsOf lists the pins of a node in component-pin registration order.
	NodePinsOf(node ir.NodeID) []ir.NodePin
	// ComponentPinsOf lists the interface pins of a component in registration order.
	ComponentPinsOf(component ir.ComponentID) []ir.ComponentPin
	// ChildNodesOf lists the nodes inside a component body in registration order.
	ChildNodesOf(component ir.ComponentID) []ir.Node
	// NodePinFor returns the NodePin realising componentPin on node.
	NodePinFor(node ir.NodeID, componentPin ir.ComponentPinID) (ir.NodePin, bool)

	ConnectionsFrom(pin ir.NodePinID) []ir.Connection
	ConnectionsTo(pin ir.NodePinID) []ir.Connection
	// IsOpen reports whether pin has no connections, which exposes its
	// ComponentPin to the parent scope.
	IsOpen(pin ir.NodePinID) bool

	Components() []ir.Component
	ComponentPins() []ir.ComponentPin
	Nodes() []ir.Node
	NodePins() []ir.NodePin
	Connections() []ir.Connection
}

type pinKey struct {
	node ir.NodeID
	pin  ir.ComponentPinID
}

// Snapshot is an immutable, hash-indexed Model.
// All lookups are O(1); list accessors return fresh slices.
type Snapshot struct {
	doc Document

	components    map[ir.ComponentID]int
	componentPins map[ir.ComponentPinID]int
	nodes         map[ir.NodeID]int
	nodePins      map[ir.NodePinID]int
	connections   map[ir.ConnectionID]int

	pinsOfComponent map[ir.ComponentID][]int
	pinsOfNode      map[ir.NodeID][]int
	childNodes      map[ir.ComponentID][]int
	pinFor          map[pinKey]int
	from            map[ir.NodePinID][]int
	to              map[ir.NodePinID][]int
}

var _ Model = (*Snapshot)(nil)

// New validates doc and indexes it into a Snapshot.
// Returns an *InvariantError if doc violates a structural invariant.
func New(doc Document) (*Snapshot, error) {
	if errs := Validate(doc); len(errs) > 0 {
		return nil, &InvariantError{Errors: errs}
	}
	return index(doc.Clone()), nil
}

// index builds the lookup tables. doc must already be valid.
func index(doc Document) *Snapshot {
	s := &Snapshot{
		doc:             doc,
		components:      make(map[ir.ComponentID]int, len(doc.Components)),
		componentPins:   make(map[ir.ComponentPinID]int, len(doc.ComponentPins)),
		nodes:           make(map[ir.NodeID]int, len(doc.Nodes)),
		nodePins:        make(map[ir.NodePinID]int, len(doc.NodePins)),
		connections:     make(map[ir.ConnectionID]int, len(doc.Connections)),
		pinsOfComponent: make(map[ir.ComponentID][]int),
		pinsOfNode:      make(map[ir.NodeID][]int),
		childNodes:      make(map[ir.ComponentID][]int),
		pinFor:          make(map[pinKey]int, len(doc.NodePins)),
		from:            make(map[ir.NodePinID][]int),
		to:              make(map[ir.NodePinID][]int),
	}
	for i, c := range doc.Components {
		s.components[c.ID] = i
	}
	for i, p := range doc.ComponentPins {
		s.componentPins[p.ID] = i
		s.pinsOfComponent[p.ComponentID] = append(s.pinsOfComponent[p.ComponentID], i)
	}
	for i, n := range doc.Nodes {
		s.nodes[n.ID] = i
		s.childNodes[n.ParentComponentID] = append(s.childNodes[n.ParentComponentID], i)
	}
	for i, p := range doc.NodePins {
		s.nodePins[p.ID] = i
		s.pinFor[pinKey{p.NodeID, p.ComponentPinID}] = i
	}
	// Node pins follow component-pin registration order, independent of
	// the order node pins were appended to the document.
	for _, n := range doc.Nodes {
		for _, cpi := range s.pinsOfComponent[n.ComponentID] {
			if npi, ok := s.pinFor[pinKey{n.ID, doc.ComponentPins[cpi].ID}]; ok {
				s.pinsOfNode[n.ID] = append(s.pinsOfNode[n.ID], npi)
			}
		}
	}
	for i, c := range doc.Connections {
		s.connections[c.ID] = i
		s.from[c.From] = append(s.from[c.From], i)
		s.to[c.To] = append(s.to[c.To], i)
	}
	return s
}

// Component implements Model.
func (s *Snapshot) Component(id ir.ComponentID) (ir.Component, bool) {
	i, ok := s.components[id]
	if !ok {
		return ir.Component{}, false
	}
	return s.doc.Components[i], true
}

// Node implements Model.
func (s *Snapshot) Node(id ir.NodeID) (ir.Node, bool) {
	i, ok := s.nodes[id]
	if !ok {
		return ir.Node{}, false
	}
	return s.doc.Nodes[i], true
}

// ComponentPin implements Model.
func (s *Snapshot) ComponentPin(id ir.ComponentPinID) (ir.ComponentPin, bool) {
	i, ok := s.componentPins[id]
	if !ok {
		return ir.ComponentPin{}, false
	}
	return s.doc.ComponentPins[i], true
}

// NodePin implements Model.
func (s *Snapshot) NodePin(id ir.NodePinID) (ir.NodePin, bool) {
	i, ok := s.nodePins[id]
	if !ok {
		return ir.NodePin{}, false
	}
	return s.doc.NodePins[i], true
}

// NodePinsOf implements Model.
func (s *Snapshot) NodePinsOf(node ir.NodeID) []ir.NodePin {
	return pick(s.doc.NodePins, s.pinsOfNode[node])
}

// ComponentPinsOf implements Model.
func (s *Snapshot) ComponentPinsOf(component ir.ComponentID) []ir.ComponentPin {
	return pick(s.doc.ComponentPins, s.pinsOfComponent[component])
}

// ChildNodesOf implements Model.
func (s *Snapshot) ChildNodesOf(component ir.ComponentID) []ir.Node {
	return pick(s.doc.Nodes, s.childNodes[component])
}

// NodePinFor implements Model.
func (s *Snapshot) NodePinFor(node ir.NodeID, componentPin ir.ComponentPinID) (ir.NodePin, bool) {
	i, ok := s.pinFor[pinKey{node, componentPin}]
	if !ok {
		return ir.NodePin{}, false
	}
	return s.doc.NodePins[i], true
}

// ConnectionsFrom implements Model.
func (s *Snapshot) ConnectionsFrom(pin ir.NodePinID) []ir.Connection {
	return pick(s.doc.Connections, s.from[pin])
}

// ConnectionsTo implements Model.
func (s *Snapshot) ConnectionsTo(pin ir.NodePinID) []ir.Connection {
	return pick(s.doc.Connections, s.to[pin])
}

// IsOpen implements Model.
func (s *Snapshot) IsOpen(pin ir.NodePinID) bool {
	return len(s.from[pin]) == 0 && len(s.to[pin]) == 0
}

// Components implements Model.
func (s *Snapshot) Components() []ir.Component { return append([]ir.Component(nil), s.doc.Components...) }

// ComponentPins implements Model.
func (s *Snapshot) ComponentPins() []ir.ComponentPin {
	return append([]ir.ComponentPin(nil), s.doc.ComponentPins...)
}

// Nodes implements Model.
func (s *Snapshot) Nodes() []ir.Node { return append([]ir.Node(nil), s.doc.Nodes...) }

// NodePins implements Model.
func (s *Snapshot) NodePins() []ir.NodePin { return append([]ir.NodePin(nil), s.doc.NodePins...) }

// Connections implements Model.
func (s *Snapshot) Connections() []ir.Connection {
	return append([]ir.Connection(nil), s.doc.Connections...)
}

// Document returns a copy of the indexed document.
func (s *Snapshot) Document() Document {
	return s.doc.Clone()
}

// ComponentByName returns the first component registered under name.
func (s *Snapshot) ComponentByName(name string) (ir.Component, bool) {
	for _, c := range s.doc.Components {
		if c.Name == name {
			return c, true
		}
	}
	return ir.Component{}, false
}

// ComponentPinByName returns the interface pin of component called name.
func (s *Snapshot) ComponentPinByName(component ir.ComponentID, name string) (ir.ComponentPin, bool) {
	for _, i := range s.pinsOfComponent[component] {
		if p := s.doc.ComponentPins[i]; p.Name == name {
			return p, true
		}
	}
	return ir.ComponentPin{}, false
}

func pick[T any](all []T, idx []int) []T {
	if len(idx) == 0 {
		return nil
	}
	out := make([]T, len(idx))
	for i, j := range idx {
		out[i] = all[j]
	}
	return out
}
