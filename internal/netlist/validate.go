package netlist

import (
	"fmt"
	"strings"

	"github.com/roach88/netsim/internal/ir"
)

// Validation error codes (E200-E299)
const (
	ErrDuplicateID           = "E200" // id used twice within one table
	ErrUnknownComponent      = "E201" // reference to a missing component
	ErrInvalidIntrinsic      = "E202" // bad intrinsic declaration or usage
	ErrUnknownPinOwner       = "E203" // node pin references missing node or component pin
	ErrForeignComponentPin   = "E204" // node pin's component pin belongs to another component
	ErrDuplicateNodePin      = "E205" // two node pins for one (node, component pin)
	ErrMissingNodePin        = "E206" // node lacks a pin for one of its component pins
	ErrUnknownEndpoint       = "E207" // connection references a missing node pin
	ErrCrossBodyConnection   = "E208" // connection endpoints outside its parent body
	ErrConnectionDirection   = "E209" // from must be output, to must be input
	ErrFanIn                 = "E210" // more than one connection targets an input
	ErrInvalidImplementation = "E211" // component pin implementation is unusable
	ErrInvalidPin            = "E212" // bad pin type or width
)

// ValidationError is one structural invariant violation.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// InvariantError reports that a document violates structural invariants.
// Returned by New; the document cannot be evaluated.
type InvariantError struct {
	Errors []ValidationError
}

// Error implements the error interface.
func (e *InvariantError) Error() string {
	if len(e.Errors) == 1 {
		return "netlist invariant violated: " + e.Errors[0].Error()
	}
	msgs := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		msgs[i] = ve.Error()
	}
	return fmt.Sprintf("netlist invariants violated (%d):\n  %s", len(e.Errors), strings.Join(msgs, "\n  "))
}

// Validate checks every structural invariant of doc.
// Returns all errors found (does not fail-fast).
func Validate(doc Document) []ValidationError {
	v := &validator{
		doc:        doc,
		components: make(map[ir.ComponentID]ir.Component),
		compPins:   make(map[ir.ComponentPinID]ir.ComponentPin),
		nodes:      make(map[ir.NodeID]ir.Node),
		nodePins:   make(map[ir.NodePinID]ir.NodePin),
	}
	v.checkComponents()
	v.checkComponentPins()
	v.checkNodes()
	v.checkNodePins()
	v.checkConnections()
	v.checkImplementations()
	return v.errs
}

type validator struct {
	doc  Document
	errs []ValidationError

	components map[ir.ComponentID]ir.Component
	compPins   map[ir.ComponentPinID]ir.ComponentPin
	nodes      map[ir.NodeID]ir.Node
	nodePins   map[ir.NodePinID]ir.NodePin
}

func (v *validator) add(code, field, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Code: code})
}

func (v *validator) checkComponents() {
	for i, c := range v.doc.Components {
		field := fmt.Sprintf("components[%d]", i)
		if _, dup := v.components[c.ID]; dup {
			v.add(ErrDuplicateID, field+".id", "duplicate component id %q", c.ID)
			continue
		}
		v.components[c.ID] = c

		switch {
		case c.IsIntrinsic && !c.IntrinsicType.Valid():
			v.add(ErrInvalidIntrinsic, field+".intrinsic_type", "unknown intrinsic type %q", c.IntrinsicType)
		case !c.IsIntrinsic && c.IntrinsicType != "":
			v.add(ErrInvalidIntrinsic, field+".intrinsic_type", "composite component %q declares intrinsic type %q", c.ID, c.IntrinsicType)
		}
	}
}

func (v *validator) checkComponentPins() {
	for i, cp := range v.doc.ComponentPins {
		field := fmt.Sprintf("component_pins[%d]", i)
		if _, dup := v.compPins[cp.ID]; dup {
			v.add(ErrDuplicateID, field+".id", "duplicate component pin id %q", cp.ID)
			continue
		}
		v.compPins[cp.ID] = cp

		if cp.Type != ir.PinInput && cp.Type != ir.PinOutput {
			v.add(ErrInvalidPin, field+".type", "pin type must be %q or %q, got %q", ir.PinInput, ir.PinOutput, cp.Type)
		}
		c, ok := v.components[cp.ComponentID]
		if !ok {
			v.add(ErrUnknownComponent, field+".component_id", "unknown component %q", cp.ComponentID)
			continue
		}
		if c.IsIntrinsic && cp.Implementation != nil {
			v.add(ErrInvalidIntrinsic, field+".implementation", "intrinsic pin %q cannot have an implementation", cp.ID)
		}
	}
}

func (v *validator) checkNodes() {
	for i, n := range v.doc.Nodes {
		field := fmt.Sprintf("nodes[%d]", i)
		if _, dup := v.nodes[n.ID]; dup {
			v.add(ErrDuplicateID, field+".id", "duplicate node id %q", n.ID)
			continue
		}
		v.nodes[n.ID] = n

		if _, ok := v.components[n.ComponentID]; !ok {
			v.add(ErrUnknownComponent, field+".component_id", "unknown component %q", n.ComponentID)
		}
		parent, ok := v.components[n.ParentComponentID]
		switch {
		case !ok:
			v.add(ErrUnknownComponent, field+".parent_component_id", "unknown parent component %q", n.ParentComponentID)
		case parent.IsIntrinsic:
			v.add(ErrInvalidIntrinsic, field+".parent_component_id", "intrinsic %q cannot contain nodes", n.ParentComponentID)
		}
	}
}

func (v *validator) checkNodePins() {
	seen := make(map[pinKey]bool)
	for i, np := range v.doc.NodePins {
		field := fmt.Sprintf("node_pins[%d]", i)
		if _, dup := v.nodePins[np.ID]; dup {
			v.add(ErrDuplicateID, field+".id", "duplicate node pin id %q", np.ID)
			continue
		}
		v.nodePins[np.ID] = np

		if np.Width != nil && *np.Width < 1 {
			v.add(ErrInvalidPin, field+".width", "width must be >= 1, got %d", *np.Width)
		}
		n, nok := v.nodes[np.NodeID]
		if !nok {
			v.add(ErrUnknownPinOwner, field+".node_id", "unknown node %q", np.NodeID)
		}
		cp, cok := v.compPins[np.ComponentPinID]
		if !cok {
			v.add(ErrUnknownPinOwner, field+".component_pin_id", "unknown component pin %q", np.ComponentPinID)
		}
		if !nok || !cok {
			continue
		}
		if cp.ComponentID != n.ComponentID {
			v.add(ErrForeignComponentPin, field+".component_pin_id",
				"component pin %q belongs to %q, node %q instantiates %q", cp.ID, cp.ComponentID, n.ID, n.ComponentID)
			continue
		}
		key := pinKey{np.NodeID, np.ComponentPinID}
		if seen[key] {
			v.add(ErrDuplicateNodePin, field, "node %q already has a pin for %q", np.NodeID, np.ComponentPinID)
		}
		seen[key] = true
	}

	for i, n := range v.doc.Nodes {
		for _, cp := range v.doc.ComponentPins {
			if cp.ComponentID == n.ComponentID && !seen[pinKey{n.ID, cp.ID}] {
				v.add(ErrMissingNodePin, fmt.Sprintf("nodes[%d]", i), "node %q has no pin for %q", n.ID, cp.ID)
			}
		}
	}
}

// pinType returns the direction of a NodePin, taken from its ComponentPin.
func (v *validator) pinType(id ir.NodePinID) (ir.PinType, ir.Node, bool) {
	np, ok := v.nodePins[id]
	if !ok {
		return "", ir.Node{}, false
	}
	cp, ok := v.compPins[np.ComponentPinID]
	if !ok {
		return "", ir.Node{}, false
	}
	n, ok := v.nodes[np.NodeID]
	if !ok {
		return "", ir.Node{}, false
	}
	return cp.Type, n, true
}

func (v *validator) checkConnections() {
	ids := make(map[ir.ConnectionID]bool)
	targets := make(map[ir.NodePinID]ir.ConnectionID)
	for i, c := range v.doc.Connections {
		field := fmt.Sprintf("connections[%d]", i)
		if ids[c.ID] {
			v.add(ErrDuplicateID, field+".id", "duplicate connection id %q", c.ID)
			continue
		}
		ids[c.ID] = true

		if _, ok := v.components[c.ParentComponentID]; !ok {
			v.add(ErrUnknownComponent, field+".parent_component_id", "unknown parent component %q", c.ParentComponentID)
		}
		fromType, fromNode, fok := v.pinType(c.From)
		if !fok {
			v.add(ErrUnknownEndpoint, field+".from", "unknown node pin %q", c.From)
		}
		toType, toNode, tok := v.pinType(c.To)
		if !tok {
			v.add(ErrUnknownEndpoint, field+".to", "unknown node pin %q", c.To)
		}
		if !fok || !tok {
			continue
		}

		if fromNode.ParentComponentID != c.ParentComponentID || toNode.ParentComponentID != c.ParentComponentID {
			v.add(ErrCrossBodyConnection, field,
				"endpoints live in %q and %q, connection belongs to %q",
				fromNode.ParentComponentID, toNode.ParentComponentID, c.ParentComponentID)
		}
		if fromType != ir.PinOutput {
			v.add(ErrConnectionDirection, field+".from", "source pin %q is %s, want output", c.From, fromType)
		}
		if toType != ir.PinInput {
			v.add(ErrConnectionDirection, field+".to", "target pin %q is %s, want input", c.To, toType)
		}
		if prev, dup := targets[c.To]; dup {
			v.add(ErrFanIn, field+".to", "input pin %q already driven by connection %q", c.To, prev)
			continue
		}
		targets[c.To] = c.ID
	}
}

func (v *validator) checkImplementations() {
	driven := make(map[ir.NodePinID]bool, len(v.doc.Connections))
	for _, c := range v.doc.Connections {
		driven[c.To] = true
	}
	for i, cp := range v.doc.ComponentPins {
		if cp.Implementation == nil {
			continue
		}
		field := fmt.Sprintf("component_pins[%d].implementation", i)
		impl := *cp.Implementation
		typ, n, ok := v.pinType(impl)
		if !ok {
			v.add(ErrInvalidImplementation, field, "unknown node pin %q", impl)
			continue
		}
		if n.ParentComponentID != cp.ComponentID {
			v.add(ErrInvalidImplementation, field, "pin %q is not inside the body of %q", impl, cp.ComponentID)
		}
		if typ != cp.Type {
			v.add(ErrInvalidImplementation, field, "%s pin %q implemented by %s pin %q", cp.Type, cp.ID, typ, impl)
		}
		if cp.Type == ir.PinInput && driven[impl] {
			v.add(ErrInvalidImplementation, field, "input pin %q is implemented by connected pin %q", cp.ID, impl)
		}
	}
}
