package types

import (
	"strings"
)

// Kind is the runtime-value predicate of a composite type: the shape of
// container it may be attached to.
type Kind string

const (
	KindAny    Kind = "any"
	KindObject Kind = "object"
	KindList   Kind = "list"
	KindDict   Kind = "dict"
)

// Accepts reports whether a type of kind k may be attached to a value of
// kind value.
func (k Kind) Accepts(value Kind) bool {
	return k == KindAny || k == "" || k == value
}

// CompositeType is an ordered set of micro-op types naming the full
// contract attachable to one composite value.
//
// CompositeTypes are immutable after construction and shared by reference;
// managers count attachments by pointer identity.
type CompositeType struct {
	// Name is informational only. Composite types are related purely by
	// the capabilities they expose.
	Name string

	// Kind restricts which runtime values the type may be attached to.
	Kind Kind

	ops   []*MicroOpType
	index map[OpKey]int
}

// NewCompositeType builds a composite type from ops in order. Two ops with
// the same OpKey are a host-fatal error.
func NewCompositeType(name string, kind Kind, ops ...*MicroOpType) *CompositeType {
	c := &CompositeType{Name: name, Kind: kind, index: make(map[OpKey]int, len(ops))}
	for _, op := range ops {
		c.add(op)
	}
	return c
}

// NewRecursiveCompositeType builds a type whose ops may refer to the type
// itself, e.g. a linked list node whose "next" getter returns the node
// type.
func NewRecursiveCompositeType(name string, kind Kind, build func(self *CompositeType) []*MicroOpType) *CompositeType {
	c := &CompositeType{Name: name, Kind: kind, index: make(map[OpKey]int)}
	for _, op := range build(c) {
		c.add(op)
	}
	return c
}

func (c *CompositeType) add(op *MicroOpType) {
	if c.index == nil {
		c.index = make(map[OpKey]int)
	}
	key := op.OpKey()
	if _, dup := c.index[key]; dup {
		panic(Fatalf(FatalInvariant, "duplicate micro-op %s in %s", key, c.label()))
	}
	c.index[key] = len(c.ops)
	c.ops = append(c.ops, op)
}

// Ops returns the micro-ops in declaration order. The returned slice must
// not be modified.
func (c *CompositeType) Ops() []*MicroOpType {
	return c.ops
}

// Len returns the number of micro-ops.
func (c *CompositeType) Len() int {
	return len(c.ops)
}

// Op returns the micro-op stored under key.
func (c *CompositeType) Op(key OpKey) (*MicroOpType, bool) {
	i, ok := c.index[key]
	if !ok {
		return nil, false
	}
	return c.ops[i], true
}

// Governing returns the op that handles verb on key: the exact op when one
// exists, otherwise a wildcard op whose key type admits key.
func (c *CompositeType) Governing(verb Verb, key any) (*MicroOpType, bool) {
	if normalized, ok := NormalizePrimitive(key); ok {
		key = normalized
		if op, ok := c.Op(OpKey{Verb: verb, Key: key}); ok {
			return op, true
		}
	}
	op, ok := c.Op(OpKey{Verb: verb, Wildcard: true})
	if !ok || !op.coversKey(key) {
		return nil, false
	}
	return op, true
}

// DefaultFactoryOp returns the default-factory op, if any.
func (c *CompositeType) DefaultFactoryOp() (*MicroOpType, bool) {
	return c.Op(OpKey{Verb: VerbDefaultFactory, Wildcard: true})
}

// HasTolerantTypes reports whether any op is TypeError tolerant.
func (c *CompositeType) HasTolerantTypes() bool {
	for _, op := range c.ops {
		if op.TypeError {
			return true
		}
	}
	return false
}

// IsCopyableFrom reports whether other offers every micro-op c requires.
func (c *CompositeType) IsCopyableFrom(other Type) bool {
	return isCopyable(c, other, newRelation())
}

func (c *CompositeType) copyableFrom(other Type, r *relation) bool {
	o, ok := other.(*CompositeType)
	if !ok {
		return false
	}
	if c == o || r.assume(c, o) {
		return true
	}
	for _, op := range c.ops {
		offered, ok := o.Op(op.OpKey())
		if !ok || !op.derivableFrom(offered, r) {
			return false
		}
	}
	return true
}

// String renders the type by name, or by its ops when unnamed.
func (c *CompositeType) String() string {
	return typeString(c, make(map[*CompositeType]bool))
}

func (c *CompositeType) label() string {
	if c.Name != "" {
		return c.Name
	}
	return "<anonymous>"
}

func typeString(t Type, seen map[*CompositeType]bool) string {
	switch x := t.(type) {
	case *CompositeType:
		if x.Name != "" {
			return x.Name
		}
		if seen[x] {
			return "<recursive>"
		}
		seen[x] = true
		defer delete(seen, x)
		parts := make([]string, len(x.ops))
		for i, op := range x.ops {
			s := op.OpKey().String()
			if op.ValueType != nil {
				s += ": " + typeString(op.ValueType, seen)
			}
			parts[i] = s
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case OneOfType:
		parts := make([]string, len(x.Types))
		for i, member := range x.Types {
			parts[i] = typeString(member, seen)
		}
		return "OneOf<" + strings.Join(parts, "|") + ">"
	case ConstType:
		return "Const<" + typeString(x.Of, seen) + ">"
	case nil:
		return "<none>"
	}
	return t.String()
}

// MergeComposite computes the pointwise merge of ts: every OpKey offered
// by any member appears once, combined with mergeOp. The result's kind is
// the first specific kind found.
func MergeComposite(name string, ts []*CompositeType) *CompositeType {
	merged := &CompositeType{Name: name, Kind: KindAny, index: make(map[OpKey]int)}
	for _, t := range ts {
		if merged.Kind == KindAny && t.Kind != "" && t.Kind != KindAny {
			merged.Kind = t.Kind
		}
		for _, op := range t.ops {
			key := op.OpKey()
			if i, ok := merged.index[key]; ok {
				merged.ops[i] = mergeOp(merged.ops[i], op)
				continue
			}
			merged.add(op)
		}
	}
	return merged
}
