package ir

import "fmt"

// Multiplicity describes a pin's bus width: either Multiplexable (a single
// bit whose width is inferred from context) or Fixed to a known width.
type Multiplicity struct {
	fixed bool
	width int
}

// Multiplexable returns the contextual multiplicity.
func Multiplexable() Multiplicity {
	return Multiplicity{}
}

// Fixed returns a fixed-width multiplicity.
func Fixed(width int) Multiplicity {
	return Multiplicity{fixed: true, width: width}
}

// IsFixed reports whether the width is known.
func (m Multiplicity) IsFixed() bool { return m.fixed }

// Width returns the fixed width, or 1 for a multiplexable pin.
func (m Multiplicity) Width() int {
	if !m.fixed {
		return 1
	}
	return m.width
}

func (m Multiplicity) String() string {
	if !m.fixed {
		return "multiplexable"
	}
	return fmt.Sprintf("fixed(%d)", m.width)
}
