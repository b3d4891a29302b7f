// Package engine implements the netsim netlist evaluation engine.
//
// The engine computes the value of every signal of a hierarchical netlist
// for one time step, and memoises successive steps in a Cache.
//
// ARCHITECTURE:
//
// Data-driven topological evaluation:
// For a composite component, each child node counts the wired inputs it
// needs and the values that already arrived. Pending children are visited
// in registration order; a child runs once every wired input is present,
// and its outputs are pushed along connections to the children they feed.
// Composite children recurse with their own slice of the previous frame.
//
// Sequential state:
// FLIPFLOP is the only stateful primitive. It emits the input it saw at the
// previous step, so when a pass makes no progress every waiting FLIPFLOP
// runs before its input arrives. That is what lets a loop through a
// FLIPFLOP make progress. Ready children always run first, so results do
// not depend on the order nodes were placed.
//
// Evaluation Flow:
// 1. Cache.Sync compares the netlist+input fingerprint and drops stale frames
// 2. Cache.GetOrCompute(n) evaluates every missing step up to n
// 3. Step k is computed from step k-1's frame (nil at step 0)
// 4. The resulting Frame holds every NodePin value, nested per child
//
// CRITICAL PATTERNS:
//
// No partial results:
// Any modelling error (width mismatch, width conflict, missing entity,
// combinational cycle, recursion limit) aborts the whole step. Failed steps
// are never cached.
//
// Determinism:
// Children are visited in registration order and frames serialise through
// canonical JSON, so the same netlist and stimulus always produce
// byte-identical traces.
//
// The engine is single-threaded; the model must not change during a call.
package engine
