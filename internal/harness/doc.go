// Package harness runs scripted scenarios against the composite value
// manager.
//
// A scenario declares host capabilities, named type descriptors and named
// values, then drives attach, detach and the four accessor micro-ops
// through the Manager of each value. Every step becomes one trace event;
// golden tests pin the trace.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	capabilities:
//	  debug: false
//	  runtime_type_information: true
//	types:
//	  point: {type: Object, properties: {x: {type: Integer}}}
//	values:
//	  p: {x: 1}
//	steps:
//	  - op: attach
//	    value: p
//	    type: point
//	    expect: {ok: true, count: 1}
//	  - op: set
//	    value: p
//	    key: x
//	    data: "one"
//	    expect: {error: INVALID_ASSIGNMENT_TYPE, tolerant: false}
//	assertions:
//	  - type: final_value
//	    value: p
//	    expect: {x: 1}
//
// Steps are attach, detach, get, set, delete and insert. A get step may
// bind its result under a new value name with "as", so that later steps
// reach nested values through their own managers. A set or insert step
// writes either plain "data" or the value named by "ref".
//
// # Expectations
//
// An expect clause may check:
//
//   - ok: whether the step succeeded
//   - error: the error code (attach, invocation or fatal)
//   - tolerant: the tolerance flag of an invocation error
//   - value: the plain result of a get
//   - count: the attach count of the step's type afterwards
//
// # Assertion Types
//
//   - final_value: the plain content of a value after the last step
//   - outcome_count: how many steps ended with a given outcome
//
// # Deterministic Testing
//
// Trace events are numbered by testutil.DeterministicClock and serialized
// as canonical JSON, so identical scenarios give byte-identical traces.
package harness
