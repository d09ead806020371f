package composite

import (
	"fmt"
	"strings"

	"github.com/roach88/lockdown/internal/types"
)

// Typed is implemented by runtime values that know their own type, such as
// prepared functions and continuations.
type Typed interface {
	Type() types.Type
}

// Composite is the single tagged representation of object, list and dict
// values. Objects and dicts keep insertion order.
type Composite struct {
	kind types.Kind

	// object and dict storage
	keys    []any
	entries map[any]any

	// list storage
	items []any

	defaultFactory func(key any) any

	mgr *Manager
}

// NewObject returns an empty object value.
func NewObject() *Composite {
	return &Composite{kind: types.KindObject, entries: make(map[any]any)}
}

// NewDict returns an empty dict value.
func NewDict() *Composite {
	return &Composite{kind: types.KindDict, entries: make(map[any]any)}
}

// NewList returns a list value holding items.
func NewList(items ...any) *Composite {
	c := &Composite{kind: types.KindList, items: make([]any, len(items))}
	for i, item := range items {
		c.items[i] = mustNormalize(item)
	}
	return c
}

// Put stores value under key without any checks and returns c. It is meant
// for building values before any type is attached; calling it on a value
// with attached types is a host-fatal error.
func (c *Composite) Put(key any, value any) *Composite {
	if c.mgr != nil && len(c.mgr.attached) > 0 {
		panic(types.Fatalf(types.FatalInvariant, "raw Put on a value with attached types"))
	}
	k, err := c.normalizeKey(key)
	if err != nil {
		panic(types.Fatalf(types.FatalInvariant, "%v", err))
	}
	if c.kind == types.KindList {
		idx := k.(int64)
		switch {
		case idx == int64(len(c.items)):
			c.items = append(c.items, mustNormalize(value))
		case idx >= 0 && idx < int64(len(c.items)):
			c.items[idx] = mustNormalize(value)
		default:
			panic(types.Fatalf(types.FatalInvariant, "raw Put at index %d of a list of length %d", idx, len(c.items)))
		}
		return c
	}
	c.store(k, mustNormalize(value))
	return c
}

// WithDefaultFactory installs the function that produces values for
// missing keys when a default-factory micro-op is attached.
func (c *Composite) WithDefaultFactory(fn func(key any) any) *Composite {
	c.defaultFactory = fn
	return c
}

// Kind reports which variant c is.
func (c *Composite) Kind() types.Kind {
	return c.kind
}

// Len returns the number of entries.
func (c *Composite) Len() int {
	if c.kind == types.KindList {
		return len(c.items)
	}
	return len(c.keys)
}

// Keys returns the present keys: insertion order for objects and dicts,
// 0..Len-1 for lists.
func (c *Composite) Keys() []any {
	if c.kind == types.KindList {
		keys := make([]any, len(c.items))
		for i := range c.items {
			keys[i] = int64(i)
		}
		return keys
	}
	return append([]any(nil), c.keys...)
}

// Lookup reads key without any checks.
func (c *Composite) Lookup(key any) (any, bool) {
	k, err := c.normalizeKey(key)
	if err != nil {
		return nil, false
	}
	if c.kind == types.KindList {
		idx := k.(int64)
		if idx < 0 || idx >= int64(len(c.items)) {
			return nil, false
		}
		return c.items[idx], true
	}
	v, ok := c.entries[k]
	return v, ok
}

func (c *Composite) normalizeKey(key any) (any, error) {
	k, ok := types.NormalizePrimitive(key)
	if !ok {
		return nil, fmt.Errorf("key %v (%T) is not a primitive", key, key)
	}
	switch c.kind {
	case types.KindObject:
		if _, ok := k.(string); !ok {
			return nil, fmt.Errorf("object keys are strings, got %T", key)
		}
	case types.KindList:
		if _, ok := k.(int64); !ok {
			return nil, fmt.Errorf("list indices are integers, got %T", key)
		}
	}
	return k, nil
}

func (c *Composite) store(key, value any) {
	if c.kind == types.KindList {
		c.items[key.(int64)] = value
		return
	}
	if _, exists := c.entries[key]; !exists {
		c.keys = append(c.keys, key)
	}
	c.entries[key] = value
}

func (c *Composite) remove(key any) {
	if c.kind == types.KindList {
		idx := key.(int64)
		c.items = append(c.items[:idx], c.items[idx+1:]...)
		return
	}
	delete(c.entries, key)
	for i, k := range c.keys {
		if k == key {
			c.keys = append(c.keys[:i], c.keys[i+1:]...)
			break
		}
	}
}

func (c *Composite) insert(idx int64, value any) {
	c.items = append(c.items, nil)
	copy(c.items[idx+1:], c.items[idx:])
	c.items[idx] = value
}

// String renders c for diagnostics.
func (c *Composite) String() string {
	var b strings.Builder
	c.write(&b, make(map[*Composite]bool))
	return b.String()
}

func (c *Composite) write(b *strings.Builder, seen map[*Composite]bool) {
	if seen[c] {
		b.WriteString("<cycle>")
		return
	}
	seen[c] = true
	defer delete(seen, c)

	opening, closing := "{", "}"
	if c.kind == types.KindList {
		opening, closing = "[", "]"
	}
	b.WriteString(opening)
	for i, key := range c.Keys() {
		if i > 0 {
			b.WriteString(", ")
		}
		if c.kind != types.KindList {
			fmt.Fprintf(b, "%v: ", key)
		}
		v, _ := c.Lookup(key)
		if child, ok := v.(*Composite); ok {
			child.write(b, seen)
			continue
		}
		writeScalar(b, v)
	}
	b.WriteString(closing)
}

func writeScalar(b *strings.Builder, v any) {
	switch x := v.(type) {
	case nil:
		b.WriteString("NoValue")
	case string:
		fmt.Fprintf(b, "%q", x)
	default:
		fmt.Fprintf(b, "%v", x)
	}
}

// Normalize maps a Go value onto the runtime value representation: Go
// integer kinds become int64, and composites, types, Typed values and nil
// pass through. Anything else is rejected.
func Normalize(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case *Composite, types.Type, Typed:
		return x, nil
	}
	if p, ok := types.NormalizePrimitive(v); ok {
		return p, nil
	}
	return nil, fmt.Errorf("unsupported runtime value %v (%T)", v, v)
}

func mustNormalize(v any) any {
	n, err := Normalize(v)
	if err != nil {
		panic(types.Fatalf(types.FatalInvariant, "%v", err))
	}
	return n
}
