package ir

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Bus is an ordered vector of bits. bus[0] is the bit with order 0.
type Bus []bool

// NewBus returns an all-zero bus of the given width.
func NewBus(width int) Bus {
	if width < 0 {
		width = 0
	}
	return make(Bus, width)
}

// ParseBus parses the text form of a bus: one '0' or '1' per bit, bus[0]
// first. Underscores are accepted as visual separators.
func ParseBus(s string) (Bus, error) {
	b := make(Bus, 0, len(s))
	for i, r := range s {
		switch r {
		case '0':
			b = append(b, false)
		case '1':
			b = append(b, true)
		case '_':
		default:
			return nil, fmt.Errorf("invalid bit %q at offset %d in bus %q", r, i, s)
		}
	}
	return b, nil
}

// MustParseBus is like ParseBus but panics on error.
// Use only in tests or with literal values.
func MustParseBus(s string) Bus {
	b, err := ParseBus(s)
	if err != nil {
		panic(err)
	}
	return b
}

// Width returns the number of bits.
func (b Bus) Width() int { return len(b) }

// String renders the bus in index order.
func (b Bus) String() string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, bit := range b {
		if bit {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// Equal reports whether b and o carry the same bits.
func (b Bus) Equal(o Bus) bool {
	if len(b) != len(o) {
		return false
	}
	for i := range b {
		if b[i] != o[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of b.
func (b Bus) Clone() Bus {
	if b == nil {
		return nil
	}
	c := make(Bus, len(b))
	copy(c, b)
	return c
}

// MarshalJSON encodes the bus as its text form.
func (b Bus) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

// UnmarshalJSON decodes the text form produced by MarshalJSON.
func (b *Bus) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("bus must be a bit string: %w", err)
	}
	parsed, err := ParseBus(s)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}
