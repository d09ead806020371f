// Package types provides the type algebra of the lockdown runtime.
//
// This package is the foundational layer: every other internal package
// imports types; types imports nothing internal. It contains:
//   - the sealed Type interface and its variants (Any, NoValue, Unit,
//     Integer, String, Boolean, Const, OneOf, Inferred, CompositeType,
//     OpenFunctionType, ClosedFunctionType)
//   - micro-op types and composite types with their consistency and
//     structural subtyping rules
//   - unification (PrepareLHSType) and dangling-inference detection
//   - break-type tables
//   - canonical descriptors and content-addressed type IDs
//
// Key design constraints:
//   - Types are immutable once constructed and shared by reference
//   - Composite types are compared by capability, never by name
//   - No float values anywhere; integers are int64
//   - Runtime "no value" is the Go nil
package types
