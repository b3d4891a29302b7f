package ir

// Typed entity ids. The engine treats them as opaque keys.
type (
	ComponentID    string
	NodeID         string
	ComponentPinID string
	NodePinID      string
	ConnectionID   string
)

// IntrinsicType names a primitive component kind.
type IntrinsicType string

const (
	IntrinsicAnd       IntrinsicType = "AND"
	IntrinsicOr        IntrinsicType = "OR"
	IntrinsicNot       IntrinsicType = "NOT"
	IntrinsicXor       IntrinsicType = "XOR"
	IntrinsicInput     IntrinsicType = "INPUT"
	IntrinsicAggregate IntrinsicType = "AGGREGATE"
	IntrinsicDecompose IntrinsicType = "DECOMPOSE"
	IntrinsicBroadcast IntrinsicType = "BROADCAST"
	IntrinsicFlipFlop  IntrinsicType = "FLIPFLOP"
)

// IntrinsicTypes lists every primitive kind in declaration order.
var IntrinsicTypes = []IntrinsicType{
	IntrinsicAnd,
	IntrinsicOr,
	IntrinsicNot,
	IntrinsicXor,
	IntrinsicInput,
	IntrinsicAggregate,
	IntrinsicDecompose,
	IntrinsicBroadcast,
	IntrinsicFlipFlop,
}

// Valid reports whether t is a known primitive kind.
func (t IntrinsicType) Valid() bool {
	for _, k := range IntrinsicTypes {
		if k == t {
			return true
		}
	}
	return false
}

// PinType is the direction of a pin.
type PinType string

const (
	PinInput  PinType = "input"
	PinOutput PinType = "output"
)

// Component is a named circuit definition, either a primitive registered at
// startup or a user-composed body of Nodes.
type Component struct {
	ID            ComponentID   `json:"id"`
	Name          string        `json:"name"`
	IsIntrinsic   bool          `json:"is_intrinsic"`
	IntrinsicType IntrinsicType `json:"intrinsic_type,omitempty"` // set only when IsIntrinsic
}

// ComponentPin is an interface pin of a component.
//
// Implementation designates the NodePin inside the component body that
// realises this pin. It is nil for primitive boundaries.
type ComponentPin struct {
	ID             ComponentPinID `json:"id"`
	ComponentID    ComponentID    `json:"component_id"`
	Type           PinType        `json:"type"`
	Implementation *NodePinID     `json:"implementation,omitempty"`
	Group          string         `json:"group,omitempty"` // pin group; empty means Name
	Order          int            `json:"order"`           // position inside the group
	Name           string         `json:"name"`
}

// GroupName returns the pin-group this pin belongs to.
func (p ComponentPin) GroupName() string {
	if p.Group == "" {
		return p.Name
	}
	return p.Group
}

// Position is presentation-only; the engine ignores it.
type Position struct {
	X int64 `json:"x"`
	Y int64 `json:"y"`
}

// Node is an instance of a Component placed inside a parent Component's body.
type Node struct {
	ID                NodeID      `json:"id"`
	ParentComponentID ComponentID `json:"parent_component_id"`
	ComponentID       ComponentID `json:"component_id"`
	Position          Position    `json:"position"`
}

// NodePin is the per-instance realisation of a ComponentPin.
// Width is the user-specified bit width, nil when inferred.
type NodePin struct {
	ID             NodePinID      `json:"id"`
	NodeID         NodeID         `json:"node_id"`
	ComponentPinID ComponentPinID `json:"component_pin_id"`
	Width          *int           `json:"width,omitempty"`
}

// Connection is a directed wire between an output NodePin and an input
// NodePin of Nodes sharing the same parent component.
type Connection struct {
	ID                ConnectionID `json:"id"`
	From              NodePinID    `json:"from"`
	To                NodePinID    `json:"to"`
	ParentComponentID ComponentID  `json:"parent_component_id"`
}

// PinIDRef returns a pointer to id, for ComponentPin.Implementation.
func PinIDRef(id NodePinID) *NodePinID {
	return &id
}

// WidthRef returns a pointer to w, for NodePin.Width.
func WidthRef(w int) *int {
	return &w
}
