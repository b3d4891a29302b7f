package netlist

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// IDGenerator generates entity ids for the Builder.
// The hint is a readable path for the entity (e.g. "HalfAdder/sum.Out");
// generators may use or ignore it.
type IDGenerator interface {
	Generate(hint string) string
}

// UUIDv7Generator generates time-sortable UUIDv7 ids and ignores hints.
//
// Uses github.com/google/uuid package for RFC 4122 compliant UUIDs.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate(string) string {
	return uuid.Must(uuid.NewV7()).String()
}

// PathGenerator returns the hint itself as the id, appending "#n" when a
// hint repeats. The compiler uses it so compiled netlists have stable,
// readable ids.
//
// Thread-safety: PathGenerator is safe for concurrent use via internal mutex.
type PathGenerator struct {
	mu   sync.Mutex
	seen map[string]int
}

// NewPathGenerator creates an empty PathGenerator.
func NewPathGenerator() *PathGenerator {
	return &PathGenerator{seen: make(map[string]int)}
}

// Generate returns hint, or hint#n for the n-th repeat.
func (g *PathGenerator) Generate(hint string) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.seen[hint]++
	if n := g.seen[hint]; n > 1 {
		return fmt.Sprintf("%s#%d", hint, n)
	}
	return hint
}
