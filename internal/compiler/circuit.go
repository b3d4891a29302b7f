package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"

	"github.com/roach88/netsim/internal/ir"
)

// Circuit is one parsed circuits.<Name> block.
type Circuit struct {
	Name    string
	Nodes   []NodeDef // declaration order
	Wires   []WireDef
	Inputs  []PortDef
	Outputs []PortDef
	Pos     token.Pos
}

// NodeDef declares one child node.
type NodeDef struct {
	Name   string
	Use    string // intrinsic type or circuit name
	Arity  int    // 0 unless given
	Widths map[string]int
	At     ir.Position
	Pos    token.Pos
}

// WireDef connects two "node.Pin" references.
type WireDef struct {
	From PinRef
	To   PinRef
	Pos  token.Pos
}

// PortDef exposes a child pin on the circuit's interface.
type PortDef struct {
	Name string
	Pin  PinRef
	Pos  token.Pos
}

// PinRef names a pin of a child node.
type PinRef struct {
	Node string
	Pin  string
}

func (r PinRef) String() string { return r.Node + "." + r.Pin }

// ParsePinRef splits "node.Pin".
func ParsePinRef(s string) (PinRef, error) {
	node, pin, ok := strings.Cut(s, ".")
	if !ok || node == "" || pin == "" {
		return PinRef{}, fmt.Errorf("pin reference %q must look like node.Pin", s)
	}
	return PinRef{Node: node, Pin: pin}, nil
}

// ParseCircuit parses a CUE value into a Circuit.
//
// The CUE value should be the circuit struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`circuits: HalfAdder: { ... }`)
//	c, err := ParseCircuit(v.LookupPath(cue.ParsePath("circuits.HalfAdder")))
func ParseCircuit(v cue.Value) (*Circuit, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	c := &Circuit{Pos: v.Pos()}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		c.Name = labels[len(labels)-1].String()
	}
	field := "circuits." + c.Name

	var err error
	c.Nodes, err = parseNodes(v, field)
	if err != nil {
		return nil, err
	}
	if len(c.Nodes) == 0 {
		return nil, errorf(field+".nodes", v.Pos(), "at least one node is required")
	}

	wires := v.LookupPath(cue.ParsePath("wires"))
	if wires.Exists() {
		iter, err := wires.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for i := 0; iter.Next(); i++ {
			w, err := parseWire(iter.Value(), fmt.Sprintf("%s.wires[%d]", field, i))
			if err != nil {
				return nil, err
			}
			c.Wires = append(c.Wires, w)
		}
	}

	if c.Inputs, err = parsePorts(v, "inputs", field); err != nil {
		return nil, err
	}
	if c.Outputs, err = parsePorts(v, "outputs", field); err != nil {
		return nil, err
	}
	return c, nil
}

func parseNodes(v cue.Value, field string) ([]NodeDef, error) {
	nodesVal := v.LookupPath(cue.ParsePath("nodes"))
	if !nodesVal.Exists() {
		return nil, nil
	}
	iter, err := nodesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var nodes []NodeDef
	for iter.Next() {
		nv := iter.Value()
		n := NodeDef{Name: iter.Label(), Pos: nv.Pos()}
		nf := field + ".nodes." + n.Name
		if strings.ContainsAny(n.Name, "./:") {
			return nil, errorf(nf, nv.Pos(), "node name must not contain '.', '/' or ':'")
		}

		useVal := nv.LookupPath(cue.ParsePath("use"))
		if !useVal.Exists() {
			return nil, errorf(nf+".use", nv.Pos(), "use is required")
		}
		if n.Use, err = useVal.String(); err != nil {
			return nil, formatCUEError(err)
		}

		if av := nv.LookupPath(cue.ParsePath("arity")); av.Exists() {
			a, err := av.Int64()
			if err != nil {
				return nil, formatCUEError(err)
			}
			if a < 1 {
				return nil, errorf(nf+".arity", av.Pos(), "arity must be >= 1, got %d", a)
			}
			n.Arity = int(a)
		}

		if wv := nv.LookupPath(cue.ParsePath("widths")); wv.Exists() {
			witer, err := wv.Fields()
			if err != nil {
				return nil, formatCUEError(err)
			}
			n.Widths = make(map[string]int)
			for witer.Next() {
				w, err := witer.Value().Int64()
				if err != nil {
					return nil, formatCUEError(err)
				}
				if w < 1 {
					return nil, errorf(nf+".widths."+witer.Label(), witer.Value().Pos(), "width must be >= 1, got %d", w)
				}
				n.Widths[witer.Label()] = int(w)
			}
		}

		if at := nv.LookupPath(cue.ParsePath("at")); at.Exists() {
			for _, axis := range []struct {
				name string
				dst  *int64
			}{{"x", &n.At.X}, {"y", &n.At.Y}} {
				av := at.LookupPath(cue.ParsePath(axis.name))
				if !av.Exists() {
					continue
				}
				if *axis.dst, err = av.Int64(); err != nil {
					return nil, formatCUEError(err)
				}
			}
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func parseWire(v cue.Value, field string) (WireDef, error) {
	w := WireDef{Pos: v.Pos()}
	var err error
	if w.From, err = pinField(v, "from", field); err != nil {
		return w, err
	}
	if w.To, err = pinField(v, "to", field); err != nil {
		return w, err
	}
	return w, nil
}

func parsePorts(v cue.Value, key, field string) ([]PortDef, error) {
	pv := v.LookupPath(cue.ParsePath(key))
	if !pv.Exists() {
		return nil, nil
	}
	iter, err := pv.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var ports []PortDef
	for i := 0; iter.Next(); i++ {
		item := iter.Value()
		pf := fmt.Sprintf("%s.%s[%d]", field, key, i)
		p := PortDef{Pos: item.Pos()}

		nameVal := item.LookupPath(cue.ParsePath("name"))
		if !nameVal.Exists() {
			return nil, errorf(pf+".name", item.Pos(), "name is required")
		}
		if p.Name, err = nameVal.String(); err != nil {
			return nil, formatCUEError(err)
		}
		if p.Pin, err = pinField(item, "pin", pf); err != nil {
			return nil, err
		}
		ports = append(ports, p)
	}
	return ports, nil
}

func pinField(v cue.Value, key, field string) (PinRef, error) {
	fv := v.LookupPath(cue.ParsePath(key))
	if !fv.Exists() {
		return PinRef{}, errorf(field+"."+key, v.Pos(), "%s is required", key)
	}
	s, err := fv.String()
	if err != nil {
		return PinRef{}, formatCUEError(err)
	}
	ref, err := ParsePinRef(s)
	if err != nil {
		return PinRef{}, errorf(field+"."+key, fv.Pos(), "%v", err)
	}
	return ref, nil
}
