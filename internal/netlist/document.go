package netlist

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/roach88/netsim/internal/ir"
)

// Document is the persisted form of a netlist: the five entity tables as
// JSON arrays, in registration order.
type Document struct {
	Components    []ir.Component    `json:"components"`
	ComponentPins []ir.ComponentPin `json:"component_pins"`
	Nodes         []ir.Node         `json:"nodes"`
	NodePins      []ir.NodePin      `json:"node_pins"`
	Connections   []ir.Connection   `json:"connections"`
}

// ReadDocument decodes a JSON document.
// Unknown fields are rejected to catch typos in hand-written netlists.
func ReadDocument(r io.Reader) (Document, error) {
	var doc Document
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("decode netlist document: %w", err)
	}
	return doc, nil
}

// Write encodes the document as indented JSON.
func (d Document) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d.normalized()); err != nil {
		return fmt.Errorf("encode netlist document: %w", err)
	}
	return nil
}

// normalized replaces nil tables with empty ones so they encode as [].
func (d Document) normalized() Document {
	if d.Components == nil {
		d.Components = []ir.Component{}
	}
	if d.ComponentPins == nil {
		d.ComponentPins = []ir.ComponentPin{}
	}
	if d.Nodes == nil {
		d.Nodes = []ir.Node{}
	}
	if d.NodePins == nil {
		d.NodePins = []ir.NodePin{}
	}
	if d.Connections == nil {
		d.Connections = []ir.Connection{}
	}
	return d
}

// Clone returns a deep copy of d. Pointer fields are copied so the clone
// never aliases the original.
func (d Document) Clone() Document {
	c := Document{
		Components:    append([]ir.Component(nil), d.Components...),
		ComponentPins: make([]ir.ComponentPin, len(d.ComponentPins)),
		Nodes:         append([]ir.Node(nil), d.Nodes...),
		NodePins:      make([]ir.NodePin, len(d.NodePins)),
		Connections:   append([]ir.Connection(nil), d.Connections...),
	}
	for i, p := range d.ComponentPins {
		if p.Implementation != nil {
			p.Implementation = ir.PinIDRef(*p.Implementation)
		}
		c.ComponentPins[i] = p
	}
	for i, p := range d.NodePins {
		if p.Width != nil {
			p.Width = ir.WidthRef(*p.Width)
		}
		c.NodePins[i] = p
	}
	return c
}

// Stats summarises a document for CLI output.
type Stats struct {
	Components  int `json:"components"`
	Intrinsics  int `json:"intrinsics"`
	Nodes       int `json:"nodes"`
	Pins        int `json:"pins"`
	Connections int `json:"connections"`
}

// Stats counts the entities in d.
func (d Document) Stats() Stats {
	st := Stats{
		Components:  len(d.Components),
		Nodes:       len(d.Nodes),
		Pins:        len(d.NodePins),
		Connections: len(d.Connections),
	}
	for _, c := range d.Components {
		if c.IsIntrinsic {
			st.Intrinsics++
		}
	}
	return st
}
