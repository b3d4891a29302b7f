package engine

import (
	"github.com/roach88/netsim/internal/ir"
)

// Inputs maps a component's input pins to the values driven onto them.
type Inputs map[ir.ComponentPinID]ir.Bus

// Clone returns a copy of in with independent buses.
func (in Inputs) Clone() Inputs {
	if in == nil {
		return nil
	}
	out := make(Inputs, len(in))
	for k, v := range in {
		out[k] = v.Clone()
	}
	return out
}

// Frame is the complete set of simulated values of one component instance
// at one time step. Frames are read-only once returned.
type Frame struct {
	ComponentID ir.ComponentID               `json:"component_id"`
	Step        int                          `json:"step"`
	Inputs      map[ir.ComponentPinID]ir.Bus `json:"inputs"`
	Outputs     map[ir.ComponentPinID]ir.Bus `json:"outputs"`
	Nodes       map[ir.NodeID]*NodeFrame     `json:"nodes,omitempty"` // nil for primitives
}

// NodeFrame holds the values of one child node: every NodePin, plus the
// nested frame when the node instantiates a composite.
type NodeFrame struct {
	Pins  map[ir.NodePinID]ir.Bus `json:"pins"`
	Child *Frame                  `json:"child,omitempty"`
}

func newFrame(component ir.ComponentID, prev *Frame) *Frame {
	step := 0
	if prev != nil {
		step = prev.Step + 1
	}
	return &Frame{
		ComponentID: component,
		Step:        step,
		Inputs:      make(map[ir.ComponentPinID]ir.Bus),
		Outputs:     make(map[ir.ComponentPinID]ir.Bus),
	}
}

// Node returns the frame of a direct child node.
func (f *Frame) Node(id ir.NodeID) (*NodeFrame, bool) {
	if f == nil {
		return nil, false
	}
	nf, ok := f.Nodes[id]
	return nf, ok
}

// At descends through nested child frames along path.
// At() returns f itself; a missing or primitive step returns nil.
func (f *Frame) At(path ...ir.NodeID) *Frame {
	cur := f
	for _, id := range path {
		nf, ok := cur.Node(id)
		if !ok || nf.Child == nil {
			return nil
		}
		cur = nf.Child
	}
	return cur
}

// NodePinValue finds the value of a NodePin at any nesting depth.
// Direct children are searched first, then nested frames in node-id order.
func (f *Frame) NodePinValue(pin ir.NodePinID) (ir.Bus, bool) {
	if f == nil {
		return nil, false
	}
	ids := ir.SortedKeys(stringKeys(f.Nodes))
	for _, id := range ids {
		if v, ok := f.Nodes[ir.NodeID(id)].Pins[pin]; ok {
			return v, true
		}
	}
	for _, id := range ids {
		if child := f.Nodes[ir.NodeID(id)].Child; child != nil {
			if v, ok := child.NodePinValue(pin); ok {
				return v, true
			}
		}
	}
	return nil, false
}

// GetNodePinValue returns the value of pin anywhere inside frame.
func GetNodePinValue(frame *Frame, pin ir.NodePinID) (ir.Bus, bool) {
	return frame.NodePinValue(pin)
}

// GetComponentPinValue returns the value of one of the frame component's
// own interface pins, input or output.
func GetComponentPinValue(frame *Frame, pin ir.ComponentPinID) (ir.Bus, bool) {
	if frame == nil {
		return nil, false
	}
	if v, ok := frame.Outputs[pin]; ok {
		return v, true
	}
	v, ok := frame.Inputs[pin]
	return v, ok
}

// Canonical returns the frame as a tree of canonical-JSON values.
func (f *Frame) Canonical() map[string]any {
	out := map[string]any{
		"component_id": string(f.ComponentID),
		"step":         f.Step,
		"inputs":       busMap(f.Inputs),
		"outputs":      busMap(f.Outputs),
	}
	if f.Nodes != nil {
		nodes := make(map[string]any, len(f.Nodes))
		for id, nf := range f.Nodes {
			n := map[string]any{"pins": busMap(nf.Pins)}
			if nf.Child != nil {
				n["child"] = nf.Child.Canonical()
			}
			nodes[string(id)] = n
		}
		out["nodes"] = nodes
	}
	return out
}

// MarshalCanonical encodes the frame as RFC 8785 canonical JSON.
func (f *Frame) MarshalCanonical() ([]byte, error) {
	return ir.MarshalCanonical(f.Canonical())
}

// Hash returns the content hash of the frame.
func (f *Frame) Hash() (string, error) {
	return ir.Hash(ir.DomainFrame, f.Canonical())
}

func busMap[K ~string](m map[K]ir.Bus) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[string(k)] = v
	}
	return out
}

func stringKeys[K ~string, V any](m map[K]V) map[string]struct{} {
	out := make(map[string]struct{}, len(m))
	for k := range m {
		out[string(k)] = struct{}{}
	}
	return out
}
