// Package descriptor turns type descriptors into types.
//
// A descriptor is the plain-data form of a type: nested Go maps and slices
// as produced by composite.Plain, YAML decoding or CUE export. It is the
// one format shared by function statics, signature files and scenarios.
//
//	{type: Integer}
//	{type: Object, properties: {x: {type: Integer}}, wildcard: {type: Any}}
//	{type: Function, argument: {...}, break_types: {value: [{out: {...}}]}}
//
// The raw {type: Composite} form and {type: Recursive, depth} references
// are what types.Describe emits, so EnrichType(types.Describe(t)) rebuilds
// a structurally equivalent t.
package descriptor
