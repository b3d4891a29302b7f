// Package harness runs circuit scenarios against the evaluation engine.
//
// A scenario compiles a CUE circuit, drives a root component through a
// sequence of time steps and checks the outputs it produces. The resulting
// trace can be compared with a golden file.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: toggle
//	description: "A FLIPFLOP fed by its inverse alternates"
//	circuit: ../circuits/seq.cue   # relative to the scenario file
//	component: Toggle
//	steps:
//	  - inputs: {}
//	    expect: {Q: "0"}
//	  - repeat: 3
//	assertions:
//	  - type: output_sequence
//	    output: Q
//	    values: ["0", "1", "0", "1"]
//
// Each step is evaluated repeat times (default once) with the same inputs.
// expect is checked on the last repetition only. Unknown YAML fields are
// rejected.
//
// # Assertion Types
//
//   - output_sequence: an output takes the listed values, one per step
//   - node_pin: a NodePin holds value at step, at any nesting depth
//   - failure: evaluation fails at step with a model error code
//   - step_count: exactly count steps were evaluated successfully
//
// # Execution
//
// Each scenario runs against a fresh in-memory store: the compiled netlist
// is saved and loaded back, and every frame is written and read back before
// it reaches the trace. A scenario therefore also checks that the store
// reproduces the netlist and frames exactly.
package harness
