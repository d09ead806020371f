package types

import (
	"sort"
)

// Property is one named field of an object type.
type Property struct {
	Name string
	Type Type
}

// CompositeOption configures the standard composite constructors.
type CompositeOption func(*compositeConfig)

type compositeConfig struct {
	name     string
	wildcard Type
}

// Named sets the informational name of the constructed type.
func Named(name string) CompositeOption {
	return func(c *compositeConfig) { c.name = name }
}

// WithWildcard adds wildcard access of type t for keys without a property.
func WithWildcard(t Type) CompositeOption {
	return func(c *compositeConfig) { c.wildcard = t }
}

func applyOptions(opts []CompositeOption) compositeConfig {
	var cfg compositeConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// ObjectType builds an object type from a property map. Properties are
// laid out in sorted name order.
func ObjectType(props map[string]Type, opts ...CompositeOption) *CompositeType {
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)
	ordered := make([]Property, len(names))
	for i, name := range names {
		ordered[i] = Property{Name: name, Type: props[name]}
	}
	return ObjectTypeOf(ordered, opts...)
}

// ObjectTypeOf builds an object type from ordered properties.
//
// Each property gets a getter and, unless it is Const, a setter.
// NoValue properties are skipped. WithWildcard adds a key-error tolerant
// wildcard getter and a wildcard setter over String keys.
func ObjectTypeOf(props []Property, opts ...CompositeOption) *CompositeType {
	cfg := applyOptions(opts)
	var ops []*MicroOpType
	for _, p := range props {
		if _, void := p.Type.(NoValueType); void {
			continue
		}
		if c, readOnly := p.Type.(ConstType); readOnly {
			ops = append(ops, Getter(p.Name, c.Of))
			continue
		}
		ops = append(ops, Getter(p.Name, p.Type), Setter(p.Name, p.Type))
	}
	if cfg.wildcard != nil {
		ops = append(ops,
			WildcardGetter(cfg.wildcard, WithKeyType(String), WithKeyError()),
			WildcardSetter(cfg.wildcard, WithKeyType(String)),
		)
	}
	return NewCompositeType(cfg.name, KindObject, ops...)
}

// ListType builds a list type with typed leading entries and an optional
// wildcard element type. A list with no fixed entries also grants
// inserting and deleting anywhere.
func ListType(entries []Type, wildcard Type, opts ...CompositeOption) *CompositeType {
	cfg := applyOptions(opts)
	var ops []*MicroOpType
	for i, t := range entries {
		idx := int64(i)
		if c, readOnly := t.(ConstType); readOnly {
			ops = append(ops, Getter(idx, c.Of))
			continue
		}
		ops = append(ops, Getter(idx, t), Setter(idx, t))
	}
	if wildcard != nil {
		ops = append(ops,
			WildcardGetter(wildcard, WithKeyType(Integer), WithKeyError()),
			WildcardSetter(wildcard, WithKeyType(Integer), WithKeyError()),
		)
		if len(entries) == 0 {
			ops = append(ops,
				WildcardInserter(wildcard, WithKeyType(Integer), WithKeyError()),
				WildcardDeleter(WithKeyType(Integer), WithKeyError()),
			)
		}
	}
	return NewCompositeType(cfg.name, KindList, ops...)
}

// DictType builds a dict type mapping keys of type key to values of type
// value.
func DictType(key, value Type, opts ...CompositeOption) *CompositeType {
	cfg := applyOptions(opts)
	return NewCompositeType(cfg.name, KindDict,
		WildcardGetter(value, WithKeyType(key), WithKeyError()),
		WildcardSetter(value, WithKeyType(key)),
		WildcardDeleter(WithKeyType(key), WithKeyError()),
	)
}

// DefaultDictType builds a dict type whose reads never miss: a missing key
// is filled from the value's default factory.
func DefaultDictType(key, value Type, opts ...CompositeOption) *CompositeType {
	cfg := applyOptions(opts)
	return NewCompositeType(cfg.name, KindDict,
		DefaultFactory(value, WithKeyType(key)),
		WildcardGetter(value, WithKeyType(key)),
		WildcardSetter(value, WithKeyType(key)),
		WildcardDeleter(WithKeyType(key)),
	)
}

// Readonly returns a copy of c keeping only the ops that hand values out.
func Readonly(c *CompositeType) *CompositeType {
	var ops []*MicroOpType
	for _, op := range c.ops {
		if op.IsReader() {
			ops = append(ops, op)
		}
	}
	name := ""
	if c.Name != "" {
		name = "readonly " + c.Name
	}
	return NewCompositeType(name, c.Kind, ops...)
}

// DefaultObjectType grants tolerant read, write and delete of any String
// key. It is the type given to otherwise untyped objects.
func DefaultObjectType() *CompositeType {
	return NewCompositeType("default-object", KindObject,
		WildcardGetter(Any, WithKeyType(String), WithKeyError()),
		WildcardSetter(Any, WithKeyType(String)),
		WildcardDeleter(WithKeyType(String), WithKeyError()),
	)
}

// ReadonlyDefaultObjectType grants tolerant reads of any String key.
func ReadonlyDefaultObjectType() *CompositeType {
	return NewCompositeType("readonly-default-object", KindObject,
		WildcardGetter(Any, WithKeyType(String), WithKeyError()),
	)
}
