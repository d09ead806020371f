package types

import (
	"fmt"
	"strings"
)

// Type is the sealed interface for all lockdown types.
//
// IsCopyableFrom is the substitutability predicate: it reports whether a
// value typed other may stand in wherever t is expected.
type Type interface {
	IsCopyableFrom(other Type) bool
	String() string

	// copyableFrom is the single-dispatch half of the relation. The
	// candidate has already been unwrapped from Const and OneOf.
	copyableFrom(other Type, r *relation) bool
}

// AnyType is the top type: it accepts everything and grants nothing back.
type AnyType struct{}

// NoValueType is the void type. It is never valid as a field's value type.
type NoValueType struct{}

// IntegerType accepts int64 values.
type IntegerType struct{}

// StringType accepts string values.
type StringType struct{}

// BooleanType accepts bool values.
type BooleanType struct{}

// InferredType is an unresolved placeholder. It must never survive
// preparation.
type InferredType struct{}

// UnitType is the singleton type of one primitive literal.
type UnitType struct {
	Value any
}

// ConstType grants the read contract of Of without its write contract.
type ConstType struct {
	Of Type
}

// OneOfType is a union: it accepts a value if any member does, and is
// accepted only where every member is.
type OneOfType struct {
	Types []Type
}

// Singletons for the stateless variants.
var (
	Any      Type = AnyType{}
	NoValue  Type = NoValueType{}
	Integer  Type = IntegerType{}
	String   Type = StringType{}
	Boolean  Type = BooleanType{}
	Inferred Type = InferredType{}
)

// Unit returns the singleton type of a primitive value. Go integer kinds
// are normalised to int64. Non-primitive values are a host-fatal error.
func Unit(v any) UnitType {
	n, ok := NormalizePrimitive(v)
	if !ok {
		panic(Fatalf(FatalInvariant, "unit type of non-primitive value %T", v))
	}
	return UnitType{Value: n}
}

// Const wraps t so that only its read contract is granted.
func Const(t Type) ConstType {
	return ConstType{Of: t}
}

// OneOf builds a union of the given members in order.
func OneOf(ts ...Type) OneOfType {
	members := make([]Type, len(ts))
	copy(members, ts)
	return OneOfType{Types: members}
}

// NormalizePrimitive maps Go primitive kinds onto the runtime's primitive
// representation (int64, string, bool). It reports false for anything else.
func NormalizePrimitive(v any) (any, bool) {
	switch val := v.(type) {
	case int64, string, bool:
		return val, true
	case int:
		return int64(val), true
	case int32:
		return int64(val), true
	case int16:
		return int64(val), true
	case int8:
		return int64(val), true
	case uint8:
		return int64(val), true
	case uint16:
		return int64(val), true
	case uint32:
		return int64(val), true
	default:
		return nil, false
	}
}

// relation carries the coinductive assumptions made while comparing
// (possibly recursive) composite types.
type relation struct {
	assumed map[[2]*CompositeType]bool
}

func newRelation() *relation {
	return &relation{assumed: make(map[[2]*CompositeType]bool)}
}

// assume records the pair and reports whether it was already assumed.
func (r *relation) assume(target, candidate *CompositeType) bool {
	key := [2]*CompositeType{target, candidate}
	if r.assumed[key] {
		return true
	}
	r.assumed[key] = true
	return false
}

// isCopyable is the shared entry point of the relation. It unwraps the
// candidate before dispatching on the target.
func isCopyable(target, candidate Type, r *relation) bool {
	if target == nil || candidate == nil {
		return false
	}
	switch c := candidate.(type) {
	case InferredType:
		return false
	case ConstType:
		return isCopyable(target, c.Of, r)
	case OneOfType:
		for _, member := range c.Types {
			if !isCopyable(target, member, r) {
				return false
			}
		}
		return true
	}
	return target.copyableFrom(candidate, r)
}

func (t AnyType) IsCopyableFrom(other Type) bool { return isCopyable(t, other, newRelation()) }
func (t AnyType) String() string                 { return "Any" }
func (AnyType) copyableFrom(Type, *relation) bool {
	return true
}

func (t NoValueType) IsCopyableFrom(other Type) bool { return isCopyable(t, other, newRelation()) }
func (t NoValueType) String() string                 { return "NoValue" }
func (NoValueType) copyableFrom(other Type, _ *relation) bool {
	_, ok := other.(NoValueType)
	return ok
}

func (t IntegerType) IsCopyableFrom(other Type) bool { return isCopyable(t, other, newRelation()) }
func (t IntegerType) String() string                 { return "Integer" }
func (IntegerType) copyableFrom(other Type, _ *relation) bool {
	switch o := other.(type) {
	case IntegerType:
		return true
	case UnitType:
		_, ok := o.Value.(int64)
		return ok
	}
	return false
}

func (t StringType) IsCopyableFrom(other Type) bool { return isCopyable(t, other, newRelation()) }
func (t StringType) String() string                 { return "String" }
func (StringType) copyableFrom(other Type, _ *relation) bool {
	switch o := other.(type) {
	case StringType:
		return true
	case UnitType:
		_, ok := o.Value.(string)
		return ok
	}
	return false
}

func (t BooleanType) IsCopyableFrom(other Type) bool { return isCopyable(t, other, newRelation()) }
func (t BooleanType) String() string                 { return "Boolean" }
func (BooleanType) copyableFrom(other Type, _ *relation) bool {
	switch o := other.(type) {
	case BooleanType:
		return true
	case UnitType:
		_, ok := o.Value.(bool)
		return ok
	}
	return false
}

func (t InferredType) IsCopyableFrom(other Type) bool { return isCopyable(t, other, newRelation()) }
func (t InferredType) String() string                 { return "Inferred" }
func (InferredType) copyableFrom(Type, *relation) bool {
	return false
}

func (t UnitType) IsCopyableFrom(other Type) bool { return isCopyable(t, other, newRelation()) }
func (t UnitType) String() string {
	if s, ok := t.Value.(string); ok {
		return fmt.Sprintf("Unit<%q>", s)
	}
	return fmt.Sprintf("Unit<%v>", t.Value)
}
func (t UnitType) copyableFrom(other Type, _ *relation) bool {
	o, ok := other.(UnitType)
	return ok && o.Value == t.Value
}

func (t ConstType) IsCopyableFrom(other Type) bool { return isCopyable(t, other, newRelation()) }
func (t ConstType) String() string                 { return "Const<" + t.Of.String() + ">" }
func (t ConstType) copyableFrom(other Type, r *relation) bool {
	return isCopyable(t.Of, other, r)
}

func (t OneOfType) IsCopyableFrom(other Type) bool { return isCopyable(t, other, newRelation()) }
func (t OneOfType) String() string {
	parts := make([]string, len(t.Types))
	for i, member := range t.Types {
		parts[i] = member.String()
	}
	return "OneOf<" + strings.Join(parts, "|") + ">"
}
func (t OneOfType) copyableFrom(other Type, r *relation) bool {
	for _, member := range t.Types {
		if isCopyable(member, other, r) {
			return true
		}
	}
	return false
}

// Equal reports structural equality of two types. Composite types are
// compared by identity.
func Equal(a, b Type) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch x := a.(type) {
	case AnyType, NoValueType, IntegerType, StringType, BooleanType, InferredType:
		return a == b
	case UnitType:
		y, ok := b.(UnitType)
		return ok && x.Value == y.Value
	case ConstType:
		y, ok := b.(ConstType)
		return ok && Equal(x.Of, y.Of)
	case OneOfType:
		y, ok := b.(OneOfType)
		if !ok || len(x.Types) != len(y.Types) {
			return false
		}
		for i := range x.Types {
			if !Equal(x.Types[i], y.Types[i]) {
				return false
			}
		}
		return true
	case *CompositeType:
		y, ok := b.(*CompositeType)
		return ok && x == y
	case *OpenFunctionType:
		y, ok := b.(*OpenFunctionType)
		return ok && (x == y || (Equal(x.Argument, y.Argument) && Equal(x.Outer, y.Outer) && x.Breaks.Equal(y.Breaks)))
	case *ClosedFunctionType:
		y, ok := b.(*ClosedFunctionType)
		return ok && (x == y || (Equal(x.Argument, y.Argument) && x.Breaks.Equal(y.Breaks)))
	}
	return false
}

// IsAny reports whether t accepts every value, looking through Const and
// unions.
func IsAny(t Type) bool {
	switch x := t.(type) {
	case AnyType:
		return true
	case ConstType:
		return IsAny(x.Of)
	case OneOfType:
		for _, member := range x.Types {
			if IsAny(member) {
				return true
			}
		}
	}
	return false
}
