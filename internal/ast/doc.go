// Package ast defines the untyped syntax tree shape handed to function
// preparation.
//
// The parser and the opcode evaluator live outside this module. Preparation
// only needs to recognise a handful of opcodes: the unbound references it
// resolves against the lexical chain, and the bound forms it rewrites them
// into. Every other opcode passes through untouched.
//
// Key design constraints:
//   - Nodes are immutable once built; rewrites return new trees
//   - Literal values use the runtime representation (int64, string, bool, nil)
package ast
