// Package multiplicity infers the bus width carried by netlist pins.
//
// A pin is either Multiplexable (a single bit whose width comes from
// context) or Fixed(width). Widths come from user-specified NodePin widths
// and from primitive shapes; everything else is inferred by walking
// connections.
package multiplicity

import (
	"fmt"

	"github.com/roach88/netsim/internal/ir"
	"github.com/roach88/netsim/internal/netlist"
	"github.com/roach88/netsim/internal/primitive"
)

// Resolver resolves pin multiplicities over one immutable model.
// Results are memoised. Not safe for concurrent use.
type Resolver struct {
	m    netlist.Model
	memo map[ir.NodePinID]result
}

type result struct {
	mult ir.Multiplicity
	err  error
}

// New creates a resolver for m.
func New(m netlist.Model) *Resolver {
	return &Resolver{m: m, memo: make(map[ir.NodePinID]result)}
}

// Resolve returns the multiplicity of a NodePin.
//
// A pin whose own multiplicity is fixed (user width, AGGREGATE/DECOMPOSE
// shape) resolves to it directly. Otherwise the resolver walks the peer
// graph: connection endpoints, sibling pins of uniform primitives, and the
// implementation pin inside composite nodes. Pins already visited are
// skipped, so feedback loops terminate. Fixed pins end the walk on their
// branch. Two reachable fixed pins with different widths are a
// WIDTH_CONFLICT.
func (r *Resolver) Resolve(pin ir.NodePinID) (ir.Multiplicity, error) {
	if res, ok := r.memo[pin]; ok {
		return res.mult, res.err
	}
	mult, err := r.resolve(pin)
	r.memo[pin] = result{mult, err}
	return mult, err
}

func (r *Resolver) resolve(start ir.NodePinID) (ir.Multiplicity, error) {
	own, err := r.local(start)
	if err != nil {
		return ir.Multiplicity{}, err
	}
	if own.IsFixed() {
		return own, nil
	}

	var (
		found   ir.Multiplicity
		foundAt ir.NodePinID
		seen    = map[ir.NodePinID]bool{start: true}
		queue   = []ir.NodePinID{start}
	)
	for len(queue) > 0 {
		pin := queue[0]
		queue = queue[1:]

		peers, err := r.peers(pin)
		if err != nil {
			return ir.Multiplicity{}, err
		}
		for _, peer := range peers {
			if seen[peer] {
				continue
			}
			seen[peer] = true

			m, err := r.local(peer)
			if err != nil {
				return ir.Multiplicity{}, err
			}
			if !m.IsFixed() {
				queue = append(queue, peer)
				continue
			}
			switch {
			case !found.IsFixed():
				found, foundAt = m, peer
			case found.Width() != m.Width():
				return ir.Multiplicity{}, ir.NewWidthConflict(foundAt, peer, found.Width(), m.Width())
			}
		}
	}
	return found, nil
}

// ResolveComponentPin returns the multiplicity of an interface pin: its
// implementation's for composites, the declared shape for primitives.
func (r *Resolver) ResolveComponentPin(id ir.ComponentPinID) (ir.Multiplicity, error) {
	cp, ok := r.m.ComponentPin(id)
	if !ok {
		return ir.Multiplicity{}, ir.NewMissingEntity("component pin", string(id))
	}
	if cp.Implementation != nil {
		return r.Resolve(*cp.Implementation)
	}
	c, ok := r.m.Component(cp.ComponentID)
	if !ok {
		return ir.Multiplicity{}, ir.NewMissingEntity("component", string(cp.ComponentID))
	}
	if !c.IsIntrinsic {
		return ir.Multiplexable(), nil
	}
	return r.shape(c, cp, nil)
}

// CheckConnections resolves both ends of every connection and returns the
// modelling errors found, one per failing connection.
func (r *Resolver) CheckConnections() []error {
	var errs []error
	for _, c := range r.m.Connections() {
		for _, end := range []ir.NodePinID{c.From, c.To} {
			if _, err := r.Resolve(end); err != nil {
				errs = append(errs, fmt.Errorf("connection %s: %w", c.ID, err))
				break
			}
		}
	}
	return errs
}

// Width returns the resolved width of pin, or fallback when the pin is
// multiplexable.
func (r *Resolver) Width(pin ir.NodePinID, fallback int) (int, error) {
	m, err := r.Resolve(pin)
	if err != nil {
		return 0, err
	}
	if m.IsFixed() {
		return m.Width(), nil
	}
	return fallback, nil
}

// pinInfo gathers the entities behind a NodePin.
type pinInfo struct {
	pin  ir.NodePin
	node ir.Node
	cp   ir.ComponentPin
	comp ir.Component
}

func (r *Resolver) info(id ir.NodePinID) (pinInfo, error) {
	np, ok := r.m.NodePin(id)
	if !ok {
		return pinInfo{}, ir.NewMissingEntity("node pin", string(id))
	}
	n, ok := r.m.Node(np.NodeID)
	if !ok {
		return pinInfo{}, ir.NewMissingEntity("node", string(np.NodeID))
	}
	cp, ok := r.m.ComponentPin(np.ComponentPinID)
	if !ok {
		return pinInfo{}, ir.NewMissingEntity("component pin", string(np.ComponentPinID))
	}
	c, ok := r.m.Component(n.ComponentID)
	if !ok {
		return pinInfo{}, ir.NewMissingEntity("component", string(n.ComponentID))
	}
	return pinInfo{pin: np, node: n, cp: cp, comp: c}, nil
}

// local returns the multiplicity a pin has on its own, without walking.
func (r *Resolver) local(id ir.NodePinID) (ir.Multiplicity, error) {
	pi, err := r.info(id)
	if err != nil {
		return ir.Multiplicity{}, err
	}
	if pi.pin.Width != nil {
		return ir.Fixed(*pi.pin.Width), nil
	}
	if !pi.comp.IsIntrinsic {
		return ir.Multiplexable(), nil
	}
	return r.shape(pi.comp, pi.cp, &pi.node)
}

// shape applies the primitive layout. node is nil when resolving the bare
// interface pin; member widths then default to 1.
func (r *Resolver) shape(c ir.Component, cp ir.ComponentPin, node *ir.Node) (ir.Multiplicity, error) {
	p, ok := primitive.Lookup(c.IntrinsicType)
	if !ok {
		return ir.Multiplicity{}, &ir.ModelError{
			Code:        ir.ErrCodeUnsupported,
			Message:     fmt.Sprintf("no primitive for intrinsic type %q", c.IntrinsicType),
			ComponentID: c.ID,
		}
	}

	switch p.Layout {
	case primitive.LayoutGather:
		// Output width counts declared members, wired or not.
		if cp.Type == ir.PinInput {
			return ir.Fixed(1), nil
		}
		return ir.Fixed(r.members(c.ID, ir.PinInput)), nil
	case primitive.LayoutScatter:
		if cp.Type == ir.PinOutput {
			return ir.Fixed(1), nil
		}
		if node == nil {
			return ir.Fixed(r.members(c.ID, ir.PinOutput)), nil
		}
		total := 0
		for _, np := range r.m.NodePinsOf(node.ID) {
			member, ok := r.m.ComponentPin(np.ComponentPinID)
			if !ok || member.Type != ir.PinOutput {
				continue
			}
			if np.Width != nil {
				total += *np.Width
			} else {
				total++
			}
		}
		return ir.Fixed(total), nil
	default:
		return ir.Multiplexable(), nil
	}
}

func (r *Resolver) members(component ir.ComponentID, typ ir.PinType) int {
	n := 0
	for _, cp := range r.m.ComponentPinsOf(component) {
		if cp.Type == typ {
			n++
		}
	}
	return n
}

// peers lists the pins that must carry the same width as id.
func (r *Resolver) peers(id ir.NodePinID) ([]ir.NodePinID, error) {
	pi, err := r.info(id)
	if err != nil {
		return nil, err
	}

	var out []ir.NodePinID
	for _, c := range r.m.ConnectionsFrom(id) {
		out = append(out, c.To)
	}
	for _, c := range r.m.ConnectionsTo(id) {
		out = append(out, c.From)
	}

	switch {
	case pi.comp.IsIntrinsic:
		if p, ok := primitive.Lookup(pi.comp.IntrinsicType); ok && p.Layout == primitive.LayoutUniform {
			for _, sib := range r.m.NodePinsOf(pi.node.ID) {
				if sib.ID != id {
					out = append(out, sib.ID)
				}
			}
		}
	case pi.cp.Implementation != nil:
		out = append(out, *pi.cp.Implementation)
	}
	return out, nil
}
