package testutil

import (
	"fmt"
	"sync"
)

// SequentialGenerator generates ids "<prefix>-1", "<prefix>-2", ... and
// ignores hints.
//
// Unlike netlist.UUIDv7Generator, two builders fed the same calls produce
// byte-identical documents, so fingerprints and golden files stay stable.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SequentialGenerator struct {
	mu     sync.Mutex
	prefix string
	seq    int
}

// NewSequentialGenerator creates a generator. An empty prefix means "id".
func NewSequentialGenerator(prefix string) *SequentialGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &SequentialGenerator{prefix: prefix}
}

// Generate returns the next id in sequence.
func (g *SequentialGenerator) Generate(string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("%s-%d", g.prefix, g.seq)
}

// Reset restarts the sequence at 1.
func (g *SequentialGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = 0
}
