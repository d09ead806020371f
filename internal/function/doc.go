// Package function prepares function bodies against their declared
// contracts and runs the prepared result.
//
// Preparation is a one-way state machine:
//
//	Unprepared → StaticsBound → ArgumentOuterResolved → LocalResolved → CodeChecked → Open
//
// Each step either advances or fails with a PreparationError. Once Open,
// every way control may leave the body (the break types reported by the
// evaluator) is covered by a declared break type, so a ClosedFunction never
// produces an outcome its callers were not told about.
//
// The evaluator, the frame manager and the parser are collaborators owned
// by the embedding interpreter. This package only consumes their
// interfaces (Evaluator, FrameManager, Frame) and the AST shape of package
// ast.
package function
