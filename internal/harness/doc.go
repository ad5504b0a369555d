// Package harness runs conformance scenarios against the counter
// application.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: increment_twice
//	description: "IncrementTwice runs a nested cycle"
//	policy: immediate        # or deferred
//	start: 0                 # initial count
//	init: [add:2]            # messages emitted by Init
//	max_steps: 100           # per-flow quota, omitted or 0 disables it
//	steps:
//	  - dispatch: twice
//	  - frames: 2            # deferred only: run two frames
//	assertions:
//	  - type: counter
//	    value: 2
//	  - type: cycle_order
//	    messages: [increment, increment_twice]
//
// Unknown fields are rejected.
//
// # Assertion Types
//
//   - cycle_count: number of completed cycles
//   - counter: final count
//   - reconcile_count: number of reconciles by the default reconciler
//   - style_count: number of style elements in the document head
//   - init_count: number of Init calls
//   - view_contains: the rendered document contains text
//   - cycle_order: messages completed in this order, gaps allowed
//   - runtime_error: the run stopped with the given error code
//
// # Deterministic Testing
//
// Every run uses a fresh document, a deterministic clock, numbered flow
// tokens ("flow-1", "flow-2", ...) and, under the deferred policy, a manual
// frame scheduler. The same scenario always produces the same trace, which
// RunWithGolden compares against testdata/golden/<name>.golden.
package harness
