// Package compiler turns CUE signature files into types and function
// signatures, and checks them without running any code.
//
// A signature directory declares three top-level fields:
//
//	types: Point: {type: "Object", properties: {x: {type: "Integer"}}}
//
//	functions: norm: {
//		argument: types.Point
//		break_types: value: [{out: {type: "Integer"}}]
//		observed: code: value: [{out: {type: "Integer"}}]
//	}
//
//	relations: [{target: "Point", candidate: "Point", expect: true}]
//
// Type values use the descriptor format of package descriptor. CUE
// references between them resolve before compilation, so a declared type
// can be reused anywhere a descriptor is expected.
//
// The observed break tables of a function stand in for what an evaluator
// would infer from its body; Validate checks them against the declared
// ones the same way function preparation does.
package compiler
