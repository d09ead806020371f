package types

// Describe renders t as a plain descriptor: nested map[string]any, []any,
// string, int64 and bool values only. The shape mirrors the descriptors the
// type factory accepts, extended with raw micro-op listings for composite
// types. A composite type reached again while it is being described is
// rendered as {"type": "Recursive", "depth": n}, n counting enclosing
// composites outward from 0.
func Describe(t Type) map[string]any {
	d := &describer{}
	return d.describe(t)
}

type describer struct {
	stack []*CompositeType
}

func (d *describer) describe(t Type) map[string]any {
	switch x := t.(type) {
	case AnyType:
		return map[string]any{"type": "Any"}
	case NoValueType:
		return map[string]any{"type": "NoValue"}
	case IntegerType:
		return map[string]any{"type": "Integer"}
	case StringType:
		return map[string]any{"type": "String"}
	case BooleanType:
		return map[string]any{"type": "Boolean"}
	case InferredType:
		return map[string]any{"type": "Inferred"}
	case UnitType:
		return map[string]any{"type": "Unit", "value": x.Value}
	case ConstType:
		return map[string]any{"type": "Const", "of": d.describe(x.Of)}
	case OneOfType:
		members := make([]any, len(x.Types))
		for i, member := range x.Types {
			members[i] = d.describe(member)
		}
		return map[string]any{"type": "OneOf", "types": members}
	case *CompositeType:
		return d.describeComposite(x)
	case *OpenFunctionType:
		return map[string]any{
			"type":        "OpenFunction",
			"argument":    d.describe(x.Argument),
			"outer":       d.describe(x.Outer),
			"break_types": d.describeBreaks(x.Breaks),
		}
	case *ClosedFunctionType:
		return map[string]any{
			"type":        "Function",
			"argument":    d.describe(x.Argument),
			"break_types": d.describeBreaks(x.Breaks),
		}
	}
	panic(Fatalf(FatalInvariant, "cannot describe %T", t))
}

func (d *describer) describeComposite(c *CompositeType) map[string]any {
	for i := len(d.stack) - 1; i >= 0; i-- {
		if d.stack[i] == c {
			return map[string]any{"type": "Recursive", "depth": int64(len(d.stack) - 1 - i)}
		}
	}
	d.stack = append(d.stack, c)
	defer func() { d.stack = d.stack[:len(d.stack)-1] }()

	ops := make([]any, len(c.ops))
	for i, op := range c.ops {
		entry := map[string]any{
			"verb":       string(op.Verb),
			"wildcard":   op.Wildcard,
			"key_error":  op.KeyError,
			"type_error": op.TypeError,
		}
		if !op.Wildcard {
			entry["key"] = op.Key
		}
		if op.Wildcard && op.KeyType != nil {
			entry["key_type"] = d.describe(op.KeyType)
		}
		if op.ValueType != nil {
			entry["value"] = d.describe(op.ValueType)
		}
		ops[i] = entry
	}
	kind := c.Kind
	if kind == "" {
		kind = KindAny
	}
	desc := map[string]any{"type": "Composite", "kind": string(kind), "ops": ops}
	if c.Name != "" {
		desc["name"] = c.Name
	}
	return desc
}

func (d *describer) describeBreaks(b BreakTypes) map[string]any {
	out := make(map[string]any, len(b))
	for _, mode := range b.Modes() {
		entries := make([]any, len(b[mode]))
		for i, bt := range b[mode] {
			entry := map[string]any{"out": d.describe(bt.Out)}
			if bt.In != nil {
				entry["in"] = d.describe(bt.In)
			}
			entries[i] = entry
		}
		out[mode] = entries
	}
	return out
}
