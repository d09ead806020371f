// Package composite implements the runtime side of the type layer: mutable
// composite values, the Manager that enforces the composite types attached
// to one value, and the Registry that hands Managers out.
//
// Every structural access goes through the accessor API (Registry.Get,
// Set, Delete, Insert) or directly through a Manager. Raw access (Lookup,
// Keys, Put) exists for construction and for privileged collaborators such
// as the evaluator; it bypasses every check.
//
// Managers are created lazily on first structural access and torn down once
// the Registry observes that their value became unreachable. Teardown runs
// on the caller's goroutine inside Registry.Collect.
package composite
