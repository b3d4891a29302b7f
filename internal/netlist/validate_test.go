package netlist

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/netsim/internal/ir"
)

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidate_ValidDocument(t *testing.T) {
	b, _ := halfAdder(t)
	assert.Empty(t, Validate(b.Document()))
}

func TestValidate_Violations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *Document)
		code   string
	}{
		{"duplicate node id", func(d *Document) {
			d.Nodes = append(d.Nodes, d.Nodes[0])
		}, ErrDuplicateID},
		{"unknown node component", func(d *Document) {
			d.Nodes[0].ComponentID = "ghost"
		}, ErrUnknownComponent},
		{"bad intrinsic type", func(d *Document) {
			d.Components[1].IntrinsicType = "MUX"
		}, ErrInvalidIntrinsic},
		{"node pin of missing node", func(d *Document) {
			d.NodePins[0].NodeID = "ghost"
		}, ErrUnknownPinOwner},
		{"foreign component pin", func(d *Document) {
			// HalfAdder/a is an INPUT; point one of its pins at an XOR pin.
			d.NodePins[0].ComponentPinID = "intrinsic:XOR.A"
		}, ErrForeignComponentPin},
		{"missing node pin", func(d *Document) {
			d.NodePins = d.NodePins[1:]
		}, ErrMissingNodePin},
		{"unknown endpoint", func(d *Document) {
			d.Connections[0].To = "ghost"
		}, ErrUnknownEndpoint},
		{"cross body connection", func(d *Document) {
			d.Connections[0].ParentComponentID = "intrinsic:XOR"
		}, ErrCrossBodyConnection},
		{"reversed connection", func(d *Document) {
			d.Connections[0].From, d.Connections[0].To = d.Connections[0].To, d.Connections[0].From
		}, ErrConnectionDirection},
		{"fan-in", func(d *Document) {
			extra := d.Connections[0]
			extra.ID = "dup-driver"
			extra.From = "HalfAdder/b.Out"
			d.Connections = append(d.Connections, extra)
		}, ErrFanIn},
		{"implementation outside body", func(d *Document) {
			for i := range d.ComponentPins {
				if d.ComponentPins[i].ID == "HalfAdder:A" {
					d.ComponentPins[i].Implementation = ir.PinIDRef("missing")
				}
			}
		}, ErrInvalidImplementation},
		{"implementation direction", func(d *Document) {
			for i := range d.ComponentPins {
				if d.ComponentPins[i].ID == "HalfAdder:Sum" {
					d.ComponentPins[i].Implementation = ir.PinIDRef("HalfAdder/sum.A")
				}
			}
		}, ErrInvalidImplementation},
		{"zero width", func(d *Document) {
			d.NodePins[0].Width = ir.WidthRef(0)
		}, ErrInvalidPin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _ := halfAdder(t)
			doc := b.Document()
			tt.mutate(&doc)

			errs := Validate(doc)
			require.NotEmpty(t, errs)
			assert.Contains(t, codes(errs), tt.code)
		})
	}
}

func TestValidate_ReportsAllErrors(t *testing.T) {
	b, _ := halfAdder(t)
	doc := b.Document()
	doc.Connections[0].To = "ghost"
	doc.NodePins[0].Width = ir.WidthRef(-1)

	errs := Validate(doc)
	assert.Len(t, errs, 2)
	assert.Equal(t, []string{ErrInvalidPin, ErrUnknownEndpoint}, codes(errs))
}

func TestNew_FailsFastOnInvariant(t *testing.T) {
	b, _ := halfAdder(t)
	doc := b.Document()
	doc.Connections[0].To = "ghost"

	snap, err := New(doc)
	assert.Nil(t, snap)

	var inv *InvariantError
	require.True(t, errors.As(err, &inv))
	require.Len(t, inv.Errors, 1)
	assert.Equal(t, ErrUnknownEndpoint, inv.Errors[0].Code)
	assert.Contains(t, err.Error(), "[E207] connections[0].to")
}
