package descriptor

import (
	"errors"
	"fmt"
	"sort"

	"github.com/roach88/lockdown/internal/types"
)

// Error reports a malformed descriptor.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Path locates the offending descriptor, e.g. "properties.x.of".
	Path string

	// Message is a human-readable description.
	Message string
}

// ErrorCode categorizes descriptor errors.
type ErrorCode string

const (
	// ErrCodeUnknownType indicates an unrecognised "type" tag.
	ErrCodeUnknownType ErrorCode = "UNKNOWN_TYPE"

	// ErrCodeMissingField indicates a required field is absent.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"

	// ErrCodeInvalidField indicates a field has the wrong shape.
	ErrCodeInvalidField ErrorCode = "INVALID_FIELD"
)

// Error implements the error interface.
func (e *Error) Error() string {
	path := e.Path
	if path == "" {
		path = "(root)"
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, path, e.Message)
}

// IsDescriptorError returns true if err is (or wraps) a descriptor Error.
func IsDescriptorError(err error) bool {
	var de *Error
	return errors.As(err, &de)
}

// EnrichType builds the type d describes.
func EnrichType(d any) (types.Type, error) {
	return (&enricher{}).enrichType(d, "")
}

// EnrichBreakTypes builds a break-type table from {mode: [{out, in?}]}.
// A nil descriptor is the empty table.
func EnrichBreakTypes(d any) (types.BreakTypes, error) {
	return (&enricher{}).enrichBreakTypes(d, "")
}

// enricher tracks the composite types under construction so that
// {type: Recursive, depth: n} can refer back to the n-th enclosing one.
type enricher struct {
	stack []*types.CompositeType
}

func (e *enricher) enrichType(d any, path string) (types.Type, error) {
	m, err := asMap(d, path)
	if err != nil {
		return nil, err
	}
	tag, ok := m["type"].(string)
	if !ok {
		return nil, &Error{Code: ErrCodeMissingField, Path: join(path, "type"), Message: "descriptor needs a string type tag"}
	}

	switch tag {
	case "Any":
		return types.Any, nil
	case "NoValue":
		return types.NoValue, nil
	case "Integer":
		return types.Integer, nil
	case "String":
		return types.String, nil
	case "Boolean":
		return types.Boolean, nil
	case "Inferred":
		return types.Inferred, nil
	case "Unit":
		v, ok := types.NormalizePrimitive(m["value"])
		if !ok {
			return nil, &Error{Code: ErrCodeInvalidField, Path: join(path, "value"), Message: fmt.Sprintf("unit value %v is not a primitive", m["value"])}
		}
		return types.Unit(v), nil
	case "Const":
		of, err := e.required(m, "of", path)
		if err != nil {
			return nil, err
		}
		return types.Const(of), nil
	case "OneOf":
		members, err := e.typeList(m, "types", path)
		if err != nil {
			return nil, err
		}
		if len(members) == 0 {
			return nil, &Error{Code: ErrCodeInvalidField, Path: join(path, "types"), Message: "union needs at least one member"}
		}
		return types.OneOf(members...), nil
	case "Object":
		return e.enrichObject(m, path)
	case "List":
		return e.enrichList(m, path)
	case "Dict":
		return e.enrichDict(m, path)
	case "Function", "OpenFunction":
		return e.enrichFunction(tag, m, path)
	case "Composite":
		return e.enrichComposite(m, path)
	case "Recursive":
		return e.enrichRecursive(m, path)
	}
	return nil, &Error{Code: ErrCodeUnknownType, Path: join(path, "type"), Message: fmt.Sprintf("unknown type %q", tag)}
}

func (e *enricher) enrichObject(m map[string]any, path string) (types.Type, error) {
	props, err := optionalMap(m, "properties", path)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)
	ordered := make([]types.Property, 0, len(names))
	for _, name := range names {
		propPath := join(path, "properties", name)
		t, err := e.enrichType(props[name], propPath)
		if err != nil {
			return nil, err
		}
		if _, readOnly := t.(types.ConstType); readOnly && isNoValue(t) {
			return nil, noValueError(propPath)
		}
		ordered = append(ordered, types.Property{Name: name, Type: t})
	}
	opts, err := e.commonOptions(m, path)
	if err != nil {
		return nil, err
	}
	return types.ObjectTypeOf(ordered, opts...), nil
}

func (e *enricher) enrichList(m map[string]any, path string) (types.Type, error) {
	entries, err := e.typeList(m, "entries", path)
	if err != nil {
		return nil, err
	}
	for i, t := range entries {
		if isNoValue(t) {
			return nil, noValueError(join(path, "entries", fmt.Sprint(i)))
		}
	}
	var wildcard types.Type
	if raw, ok := m["wildcard"]; ok && raw != nil {
		if wildcard, err = e.storedType(raw, join(path, "wildcard")); err != nil {
			return nil, err
		}
	}
	opts, err := nameOption(m, path)
	if err != nil {
		return nil, err
	}
	return types.ListType(entries, wildcard, opts...), nil
}

func (e *enricher) enrichDict(m map[string]any, path string) (types.Type, error) {
	raw, ok := m["value"]
	if !ok || raw == nil {
		return nil, &Error{Code: ErrCodeMissingField, Path: join(path, "value"), Message: "field is required"}
	}
	value, err := e.storedType(raw, join(path, "value"))
	if err != nil {
		return nil, err
	}
	key := types.String
	if raw, ok := m["key"]; ok && raw != nil {
		if key, err = e.storedType(raw, join(path, "key")); err != nil {
			return nil, err
		}
	}
	opts, err := nameOption(m, path)
	if err != nil {
		return nil, err
	}
	withDefault, err := flag(m, "default", path)
	if err != nil {
		return nil, err
	}
	if withDefault {
		return types.DefaultDictType(key, value, opts...), nil
	}
	return types.DictType(key, value, opts...), nil
}

func (e *enricher) enrichFunction(tag string, m map[string]any, path string) (types.Type, error) {
	argument, err := e.optional(m, "argument", path)
	if err != nil {
		return nil, err
	}
	breaks, err := e.enrichBreakTypes(m["break_types"], join(path, "break_types"))
	if err != nil {
		return nil, err
	}
	if tag == "Function" {
		return &types.ClosedFunctionType{Argument: argument, Breaks: breaks}, nil
	}
	outer, err := e.optional(m, "outer", path)
	if err != nil {
		return nil, err
	}
	return &types.OpenFunctionType{Argument: argument, Outer: outer, Breaks: breaks}, nil
}

var verbs = map[string]types.Verb{
	"get":             types.VerbGet,
	"set":             types.VerbSet,
	"delete":          types.VerbDelete,
	"insert":          types.VerbInsert,
	"default-factory": types.VerbDefaultFactory,
}

var kinds = map[string]types.Kind{
	"any":    types.KindAny,
	"object": types.KindObject,
	"list":   types.KindList,
	"dict":   types.KindDict,
}

// enrichComposite builds a composite type from raw micro-op descriptors,
// the form types.Describe emits. An op without a key is a wildcard.
func (e *enricher) enrichComposite(m map[string]any, path string) (types.Type, error) {
	kindName := "any"
	if raw, ok := m["kind"]; ok {
		if kindName, ok = raw.(string); !ok {
			return nil, &Error{Code: ErrCodeInvalidField, Path: join(path, "kind"), Message: "kind must be a string"}
		}
	}
	kind, ok := kinds[kindName]
	if !ok {
		return nil, &Error{Code: ErrCodeInvalidField, Path: join(path, "kind"), Message: fmt.Sprintf("unknown kind %q", kindName)}
	}
	rawOps, err := optionalList(m, "ops", path)
	if err != nil {
		return nil, err
	}

	name, _ := m["name"].(string)
	var buildErr error
	c := types.NewRecursiveCompositeType(name, kind, func(self *types.CompositeType) []*types.MicroOpType {
		e.stack = append(e.stack, self)
		defer func() { e.stack = e.stack[:len(e.stack)-1] }()

		seen := make(map[types.OpKey]bool, len(rawOps))
		ops := make([]*types.MicroOpType, 0, len(rawOps))
		for i, raw := range rawOps {
			opPath := join(path, "ops", fmt.Sprint(i))
			op, err := e.enrichOp(raw, opPath)
			if err != nil {
				buildErr = err
				return nil
			}
			if seen[op.OpKey()] {
				buildErr = &Error{Code: ErrCodeInvalidField, Path: opPath, Message: fmt.Sprintf("duplicate micro-op %s", op.OpKey())}
				return nil
			}
			seen[op.OpKey()] = true
			ops = append(ops, op)
		}
		return ops
	})
	if buildErr != nil {
		return nil, buildErr
	}
	return c, nil
}

func (e *enricher) enrichRecursive(m map[string]any, path string) (types.Type, error) {
	depth, ok := types.NormalizePrimitive(m["depth"])
	n, isInt := depth.(int64)
	if !ok || !isInt || n < 0 || int(n) >= len(e.stack) {
		return nil, &Error{Code: ErrCodeInvalidField, Path: join(path, "depth"), Message: fmt.Sprintf("depth %v does not name an enclosing composite", m["depth"])}
	}
	return e.stack[len(e.stack)-1-int(n)], nil
}

func (e *enricher) enrichOp(d any, path string) (*types.MicroOpType, error) {
	m, err := asMap(d, path)
	if err != nil {
		return nil, err
	}
	verbName, _ := m["verb"].(string)
	verb, ok := verbs[verbName]
	if !ok {
		return nil, &Error{Code: ErrCodeInvalidField, Path: join(path, "verb"), Message: fmt.Sprintf("unknown verb %q", verbName)}
	}

	var opts []types.OpOption
	for _, f := range []struct {
		name string
		opt  types.OpOption
	}{{"key_error", types.WithKeyError()}, {"type_error", types.WithTypeError()}} {
		set, err := flag(m, f.name, path)
		if err != nil {
			return nil, err
		}
		if set {
			opts = append(opts, f.opt)
		}
	}
	if raw, ok := m["key_type"]; ok && raw != nil {
		kt, err := e.enrichType(raw, join(path, "key_type"))
		if err != nil {
			return nil, err
		}
		opts = append(opts, types.WithKeyType(kt))
	}

	var value types.Type
	if verb != types.VerbDelete {
		if value, err = e.required(m, "value", path); err != nil {
			return nil, err
		}
		if _, void := value.(types.NoValueType); void {
			return nil, &Error{Code: ErrCodeInvalidField, Path: join(path, "value"), Message: "micro-ops may not carry NoValue"}
		}
	}

	wildcard, err := flag(m, "wildcard", path)
	if err != nil {
		return nil, err
	}
	rawKey, hasKey := m["key"]
	if wildcard || !hasKey || verb == types.VerbDefaultFactory {
		switch verb {
		case types.VerbGet:
			return types.WildcardGetter(value, opts...), nil
		case types.VerbSet:
			return types.WildcardSetter(value, opts...), nil
		case types.VerbDelete:
			return types.WildcardDeleter(opts...), nil
		case types.VerbInsert:
			return types.WildcardInserter(value, opts...), nil
		default:
			return types.DefaultFactory(value, opts...), nil
		}
	}

	key, ok := types.NormalizePrimitive(rawKey)
	if !ok {
		return nil, &Error{Code: ErrCodeInvalidField, Path: join(path, "key"), Message: fmt.Sprintf("key %v is not a primitive", rawKey)}
	}
	switch verb {
	case types.VerbGet:
		return types.Getter(key, value, opts...), nil
	case types.VerbSet:
		return types.Setter(key, value, opts...), nil
	case types.VerbDelete:
		return types.Deleter(key, opts...), nil
	}
	idx, ok := key.(int64)
	if !ok {
		return nil, &Error{Code: ErrCodeInvalidField, Path: join(path, "key"), Message: "insert keys are list indices"}
	}
	return types.Inserter(idx, value, opts...), nil
}

func (e *enricher) enrichBreakTypes(d any, path string) (types.BreakTypes, error) {
	breaks := types.BreakTypes{}
	if d == nil {
		return breaks, nil
	}
	m, err := asMap(d, path)
	if err != nil {
		return nil, err
	}
	modes := make([]string, 0, len(m))
	for mode := range m {
		modes = append(modes, mode)
	}
	sort.Strings(modes)
	for _, mode := range modes {
		entries, ok := m[mode].([]any)
		if !ok {
			return nil, &Error{Code: ErrCodeInvalidField, Path: join(path, mode), Message: "break mode needs a list of entries"}
		}
		for i, raw := range entries {
			entryPath := join(path, mode, fmt.Sprint(i))
			entry, err := asMap(raw, entryPath)
			if err != nil {
				return nil, err
			}
			out, err := e.required(entry, "out", entryPath)
			if err != nil {
				return nil, err
			}
			var in types.Type
			if raw, ok := entry["in"]; ok && raw != nil {
				if in, err = e.enrichType(raw, join(entryPath, "in")); err != nil {
					return nil, err
				}
			}
			breaks.Add(mode, out, in)
		}
	}
	return breaks, nil
}

func (e *enricher) commonOptions(m map[string]any, path string) ([]types.CompositeOption, error) {
	opts, err := nameOption(m, path)
	if err != nil {
		return nil, err
	}
	if raw, ok := m["wildcard"]; ok && raw != nil {
		w, err := e.storedType(raw, join(path, "wildcard"))
		if err != nil {
			return nil, err
		}
		opts = append(opts, types.WithWildcard(w))
	}
	return opts, nil
}

func nameOption(m map[string]any, path string) ([]types.CompositeOption, error) {
	raw, ok := m["name"]
	if !ok || raw == nil {
		return nil, nil
	}
	name, ok := raw.(string)
	if !ok {
		return nil, &Error{Code: ErrCodeInvalidField, Path: join(path, "name"), Message: "name must be a string"}
	}
	return []types.CompositeOption{types.Named(name)}, nil
}

func (e *enricher) required(m map[string]any, field, path string) (types.Type, error) {
	raw, ok := m[field]
	if !ok || raw == nil {
		return nil, &Error{Code: ErrCodeMissingField, Path: join(path, field), Message: "field is required"}
	}
	return e.enrichType(raw, join(path, field))
}

// storedType enriches the type of values a composite holds under some key.
func (e *enricher) storedType(d any, path string) (types.Type, error) {
	t, err := e.enrichType(d, path)
	if err != nil {
		return nil, err
	}
	if isNoValue(t) {
		return nil, noValueError(path)
	}
	return t, nil
}

func isNoValue(t types.Type) bool {
	if c, ok := t.(types.ConstType); ok {
		t = c.Of
	}
	_, void := t.(types.NoValueType)
	return void
}

func noValueError(path string) *Error {
	return &Error{Code: ErrCodeInvalidField, Path: path, Message: "a stored value may not be NoValue"}
}

// optional enriches field, defaulting to NoValue when it is absent.
func (e *enricher) optional(m map[string]any, field, path string) (types.Type, error) {
	raw, ok := m[field]
	if !ok || raw == nil {
		return types.NoValue, nil
	}
	return e.enrichType(raw, join(path, field))
}

func (e *enricher) typeList(m map[string]any, field, path string) ([]types.Type, error) {
	raws, err := optionalList(m, field, path)
	if err != nil {
		return nil, err
	}
	out := make([]types.Type, len(raws))
	for i, raw := range raws {
		if out[i], err = e.enrichType(raw, join(path, field, fmt.Sprint(i))); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func optionalList(m map[string]any, field, path string) ([]any, error) {
	raw, ok := m[field]
	if !ok || raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, &Error{Code: ErrCodeInvalidField, Path: join(path, field), Message: "expected a list"}
	}
	return list, nil
}

func optionalMap(m map[string]any, field, path string) (map[string]any, error) {
	raw, ok := m[field]
	if !ok || raw == nil {
		return nil, nil
	}
	return asMap(raw, join(path, field))
}

func flag(m map[string]any, field, path string) (bool, error) {
	raw, ok := m[field]
	if !ok || raw == nil {
		return false, nil
	}
	b, ok := raw.(bool)
	if !ok {
		return false, &Error{Code: ErrCodeInvalidField, Path: join(path, field), Message: "expected a boolean"}
	}
	return b, nil
}

func asMap(d any, path string) (map[string]any, error) {
	switch m := d.(type) {
	case map[string]any:
		return m, nil
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, v := range m {
			s, ok := k.(string)
			if !ok {
				return nil, &Error{Code: ErrCodeInvalidField, Path: path, Message: fmt.Sprintf("non-string field name %v", k)}
			}
			out[s] = v
		}
		return out, nil
	}
	return nil, &Error{Code: ErrCodeInvalidField, Path: path, Message: fmt.Sprintf("expected a descriptor map, got %T", d)}
}

func join(path string, parts ...string) string {
	for _, p := range parts {
		if path == "" {
			path = p
			continue
		}
		path += "." + p
	}
	return path
}
