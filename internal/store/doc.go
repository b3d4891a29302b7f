// Package store provides SQLite-backed storage for netlists and
// simulation traces.
//
// The store holds:
//   - One netlist: components, component pins, nodes, node pins and
//     connections, each row tagged with its registration seq
//   - Simulation runs: a root component plus the fingerprint of the netlist
//     and inputs it was simulated with
//   - Frames: one canonical-JSON frame per run and step, with its hash
//
// # Critical Patterns
//
// Registration order:
//   - Every entity query uses ORDER BY seq ASC
//   - A loaded netlist evaluates exactly like the one that was saved
//
// Fan-in:
//   - connections.to_pin is UNIQUE; an input pin has at most one driver
//     even if a document bypasses validation
//
// Content addressing:
//   - Frames are stored as RFC 8785 canonical JSON together with their
//     domain-separated SHA-256 hash, verified on read
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
