package types

import (
	"sort"
	"strings"
)

// BreakType is one way control may leave a function through a mode: the
// value sent out and, for resumable modes, the value expected back in.
type BreakType struct {
	Out Type
	In  Type // nil when the mode cannot be resumed
}

// String renders the break type as "Out" or "Out<-In".
func (b BreakType) String() string {
	if b.In == nil {
		return b.Out.String()
	}
	return b.Out.String() + "<-" + b.In.String()
}

// BreakTypes maps a break mode to the ordered break types it may carry.
type BreakTypes map[string][]BreakType

// Wildcard is the declared mode that matches any actual mode without an
// explicit declaration.
const Wildcard = "wildcard"

// Modes returns the modes in sorted order.
func (b BreakTypes) Modes() []string {
	modes := make([]string, 0, len(b))
	for mode := range b {
		modes = append(modes, mode)
	}
	sort.Strings(modes)
	return modes
}

// Add appends (out, in) to mode unless an equal entry is already present.
func (b BreakTypes) Add(mode string, out, in Type) {
	for _, existing := range b[mode] {
		if Equal(existing.Out, out) && Equal(existing.In, in) {
			return
		}
	}
	b[mode] = append(b[mode], BreakType{Out: out, In: in})
}

// Merge adds every entry of other into b.
func (b BreakTypes) Merge(other BreakTypes) {
	for _, mode := range other.Modes() {
		for _, bt := range other[mode] {
			b.Add(mode, bt.Out, bt.In)
		}
	}
}

// Clone returns an independent copy of b.
func (b BreakTypes) Clone() BreakTypes {
	c := make(BreakTypes, len(b))
	for mode, entries := range b {
		c[mode] = append([]BreakType(nil), entries...)
	}
	return c
}

// Equal reports whether b and other carry equal entries in the same order.
func (b BreakTypes) Equal(other BreakTypes) bool {
	if len(b) != len(other) {
		return false
	}
	for mode, entries := range b {
		theirs, ok := other[mode]
		if !ok || len(theirs) != len(entries) {
			return false
		}
		for i := range entries {
			if !Equal(entries[i].Out, theirs[i].Out) || !Equal(entries[i].In, theirs[i].In) {
				return false
			}
		}
	}
	return true
}

// Restartable reports whether any mode can be resumed with a value.
func (b BreakTypes) Restartable() bool {
	for _, entries := range b {
		for _, bt := range entries {
			if bt.In != nil {
				return true
			}
		}
	}
	return false
}

// String renders the table deterministically.
func (b BreakTypes) String() string {
	parts := make([]string, 0, len(b))
	for _, mode := range b.Modes() {
		entries := make([]string, len(b[mode]))
		for i, bt := range b[mode] {
			entries[i] = bt.String()
		}
		parts = append(parts, mode+": ["+strings.Join(entries, ", ")+"]")
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// coversBreaks reports whether every break the candidate may take is one
// the target's callers are prepared for.
func coversBreaks(target, candidate BreakTypes, r *relation) bool {
	for mode, theirs := range candidate {
		ours, ok := target[mode]
		if !ok {
			return false
		}
		for _, their := range theirs {
			covered := false
			for _, our := range ours {
				if our.In != nil && their.In == nil {
					continue
				}
				if !isCopyable(our.Out, their.Out, r) {
					continue
				}
				if our.In != nil && !isCopyable(their.In, our.In, r) {
					continue
				}
				covered = true
				break
			}
			if !covered {
				return false
			}
		}
	}
	return true
}

// OpenFunctionType is the type of a prepared function that still needs an
// outer context.
type OpenFunctionType struct {
	Argument Type
	Outer    Type
	Breaks   BreakTypes
}

// IsCopyableFrom is contravariant in argument and outer and requires the
// candidate's breaks to be covered by the target's.
func (f *OpenFunctionType) IsCopyableFrom(other Type) bool {
	return isCopyable(f, other, newRelation())
}

func (f *OpenFunctionType) copyableFrom(other Type, r *relation) bool {
	o, ok := other.(*OpenFunctionType)
	if !ok {
		return false
	}
	return isCopyable(o.Argument, f.Argument, r) &&
		isCopyable(o.Outer, f.Outer, r) &&
		coversBreaks(f.Breaks, o.Breaks, r)
}

func (f *OpenFunctionType) String() string {
	return "OpenFunction<" + f.Argument.String() + ", " + f.Outer.String() + " => " + f.Breaks.String() + ">"
}

// ClosedFunctionType is the type of an invokable function.
type ClosedFunctionType struct {
	Argument Type
	Breaks   BreakTypes
}

// IsCopyableFrom is contravariant in argument and requires the candidate's
// breaks to be covered by the target's.
func (f *ClosedFunctionType) IsCopyableFrom(other Type) bool {
	return isCopyable(f, other, newRelation())
}

func (f *ClosedFunctionType) copyableFrom(other Type, r *relation) bool {
	o, ok := other.(*ClosedFunctionType)
	if !ok {
		return false
	}
	return isCopyable(o.Argument, f.Argument, r) && coversBreaks(f.Breaks, o.Breaks, r)
}

func (f *ClosedFunctionType) String() string {
	return "Function<" + f.Argument.String() + " => " + f.Breaks.String() + ">"
}
