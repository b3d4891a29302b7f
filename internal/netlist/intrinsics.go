package netlist

import (
	"fmt"

	"github.com/roach88/netsim/internal/ir"
)

// DefaultArity is the member count used when a variadic intrinsic is
// registered without an explicit arity.
const DefaultArity = 2

// PinSpec describes one interface pin of an intrinsic component.
type PinSpec struct {
	Name  string
	Group string
	Order int
	Type  ir.PinType
}

// IsVariadic reports whether kind has a configurable member count.
func IsVariadic(kind ir.IntrinsicType) bool {
	switch kind {
	case ir.IntrinsicAggregate, ir.IntrinsicDecompose, ir.IntrinsicBroadcast:
		return true
	}
	return false
}

// IntrinsicComponentID returns the deterministic id of an intrinsic.
// Variadic kinds are distinct components per arity.
func IntrinsicComponentID(kind ir.IntrinsicType, arity int) ir.ComponentID {
	if IsVariadic(kind) {
		return ir.ComponentID(fmt.Sprintf("intrinsic:%s/%d", kind, arity))
	}
	return ir.ComponentID("intrinsic:" + string(kind))
}

// IntrinsicPinID returns the deterministic id of an intrinsic interface pin.
func IntrinsicPinID(component ir.ComponentID, pin string) ir.ComponentPinID {
	return ir.ComponentPinID(string(component) + "." + pin)
}

// IntrinsicPins returns the pin layout of an intrinsic in registration
// order. arity is ignored for fixed-shape kinds.
func IntrinsicPins(kind ir.IntrinsicType, arity int) ([]PinSpec, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown intrinsic type %q", kind)
	}
	if IsVariadic(kind) && arity < 1 {
		return nil, fmt.Errorf("intrinsic %s requires arity >= 1, got %d", kind, arity)
	}

	in := func(name string) PinSpec { return PinSpec{Name: name, Type: ir.PinInput} }
	out := func(name string) PinSpec { return PinSpec{Name: name, Type: ir.PinOutput} }
	group := func(prefix string, typ ir.PinType) []PinSpec {
		pins := make([]PinSpec, arity)
		for i := range pins {
			pins[i] = PinSpec{Name: fmt.Sprintf("%s%d", prefix, i), Group: prefix, Order: i, Type: typ}
		}
		return pins
	}

	switch kind {
	case ir.IntrinsicAnd, ir.IntrinsicOr, ir.IntrinsicXor:
		return []PinSpec{in("A"), in("B"), out("Out")}, nil
	case ir.IntrinsicNot, ir.IntrinsicInput, ir.IntrinsicFlipFlop:
		return []PinSpec{in("In"), out("Out")}, nil
	case ir.IntrinsicAggregate:
		return append(group("In", ir.PinInput), out("Out")), nil
	default: // DECOMPOSE, BROADCAST
		return append([]PinSpec{in("In")}, group("Out", ir.PinOutput)...), nil
	}
}
