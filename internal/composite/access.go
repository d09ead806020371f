package composite

import (
	"fmt"

	"github.com/roach88/lockdown/internal/types"
)

// Get reads key from v. Reading from anything but a composite value is a
// tolerant MISSING_MICRO_OP.
func (r *Registry) Get(v any, key any) (any, error) {
	c, err := asComposite(v, key)
	if err != nil {
		return nil, err
	}
	return r.ManagerFor(c).Get(key)
}

// Set writes value under key of v.
func (r *Registry) Set(v any, key, value any) error {
	c, err := asComposite(v, key)
	if err != nil {
		return err
	}
	return r.ManagerFor(c).Set(key, value)
}

// Delete removes key from v.
func (r *Registry) Delete(v any, key any) error {
	c, err := asComposite(v, key)
	if err != nil {
		return err
	}
	return r.ManagerFor(c).Delete(key)
}

// Insert places value at index of the list v.
func (r *Registry) Insert(v any, index, value any) error {
	c, err := asComposite(v, index)
	if err != nil {
		return err
	}
	return r.ManagerFor(c).Insert(index, value)
}

// CheckValue reports whether v may be handed out as t without attaching
// anything. Nothing is left attached either way.
func (r *Registry) CheckValue(t types.Type, v any) error {
	r.Collect()
	return r.conforms(t, v)
}

// TypeOf returns the runtime type of v: the effective type of a composite,
// the unit type of a primitive, the own type of a Typed value and NoValue
// for nil. Type values themselves are not first-class and also yield
// NoValue.
func (r *Registry) TypeOf(v any) types.Type {
	if c, ok := v.(*Composite); ok {
		return r.ManagerFor(c).EffectiveType()
	}
	return typeOfScalar(v)
}

// TypeOf is Registry.TypeOf for callers without a registry at hand. A
// composite that was never managed has the empty type of its kind.
func TypeOf(v any) types.Type {
	c, ok := v.(*Composite)
	if !ok {
		return typeOfScalar(v)
	}
	if c.mgr == nil {
		return types.NewCompositeType("", c.kind)
	}
	return c.mgr.EffectiveType()
}

func asComposite(v any, key any) (*Composite, error) {
	c, ok := v.(*Composite)
	if !ok {
		return nil, invocationErrorf(ErrCodeMissingMicroOp, key, true, "%s has no micro-ops", describeValue(v))
	}
	return c, nil
}

func typeOfScalar(v any) types.Type {
	switch x := v.(type) {
	case nil, types.Type:
		return types.NoValue
	case Typed:
		return x.Type()
	}
	if p, ok := types.NormalizePrimitive(v); ok {
		return types.Unit(p)
	}
	return types.NoValue
}

func describeValue(v any) string {
	switch x := v.(type) {
	case *Composite:
		if x.kind == types.KindObject {
			return "an object value"
		}
		return "a " + string(x.kind) + " value"
	case nil:
		return "NoValue"
	case Typed:
		return fmt.Sprintf("a value of type %s", x.Type())
	case types.Type:
		return "a type"
	}
	return fmt.Sprintf("%v", v)
}
