package descriptor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lockdown/internal/types"
)

func desc(tag string, fields ...any) map[string]any {
	m := map[string]any{"type": tag}
	for i := 0; i+1 < len(fields); i += 2 {
		m[fields[i].(string)] = fields[i+1]
	}
	return m
}

func composite(t *testing.T, d any) *types.CompositeType {
	t.Helper()
	got, err := EnrichType(d)
	require.NoError(t, err)
	c, ok := got.(*types.CompositeType)
	require.True(t, ok, "expected a composite type, got %T", got)
	return c
}

// ============================================================================
// Value types
// ============================================================================

func TestEnrichType_Singletons(t *testing.T) {
	tests := []struct {
		tag  string
		want types.Type
	}{
		{"Any", types.Any},
		{"NoValue", types.NoValue},
		{"Integer", types.Integer},
		{"String", types.String},
		{"Boolean", types.Boolean},
		{"Inferred", types.Inferred},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			got, err := EnrichType(desc(tt.tag))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEnrichType_UnitNormalisesIntegers(t *testing.T) {
	got, err := EnrichType(desc("Unit", "value", 5))
	require.NoError(t, err)
	assert.True(t, types.Equal(types.Unit(int64(5)), got))

	_, err = EnrichType(desc("Unit", "value", 1.5))
	var de *Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, ErrCodeInvalidField, de.Code)
	assert.Equal(t, "value", de.Path)
}

func TestEnrichType_ConstAndOneOf(t *testing.T) {
	got, err := EnrichType(desc("OneOf", "types", []any{
		desc("Integer"),
		desc("Const", "of", desc("String")),
	}))
	require.NoError(t, err)
	assert.True(t, types.Equal(types.OneOf(types.Integer, types.Const(types.String)), got))

	_, err = EnrichType(desc("OneOf", "types", []any{}))
	assert.True(t, IsDescriptorError(err))
}

// ============================================================================
// Composite types
// ============================================================================

func TestEnrichType_Object(t *testing.T) {
	c := composite(t, desc("Object",
		"name", "point",
		"properties", map[string]any{
			"y": desc("Const", "of", desc("Integer")),
			"x": desc("Integer"),
		},
		"wildcard", desc("Any"),
	))

	assert.Equal(t, "point", c.Name)
	assert.Equal(t, types.KindObject, c.Kind)

	getX, ok := c.Op(types.OpKey{Verb: types.VerbGet, Key: "x"})
	require.True(t, ok)
	assert.Equal(t, types.Integer, getX.ValueType)
	_, ok = c.Op(types.OpKey{Verb: types.VerbSet, Key: "x"})
	assert.True(t, ok)
	_, ok = c.Op(types.OpKey{Verb: types.VerbSet, Key: "y"})
	assert.False(t, ok, "const properties are read-only")

	wild, ok := c.Op(types.OpKey{Verb: types.VerbGet, Wildcard: true})
	require.True(t, ok)
	assert.True(t, wild.KeyError)
	assert.False(t, c.IsSelfConsistent(), "the wildcard setter reaches the read-only property")
}

func TestEnrichType_ListAndDict(t *testing.T) {
	list := composite(t, desc("List", "entries", []any{desc("Integer"), desc("String")}))
	assert.Equal(t, types.KindList, list.Kind)
	get1, ok := list.Op(types.OpKey{Verb: types.VerbGet, Key: int64(1)})
	require.True(t, ok)
	assert.Equal(t, types.String, get1.ValueType)

	dict := composite(t, desc("Dict", "value", desc("Integer"), "default", true))
	assert.Equal(t, types.KindDict, dict.Kind)
	_, ok = dict.DefaultFactoryOp()
	assert.True(t, ok)

	plain := composite(t, desc("Dict", "value", desc("Integer")))
	_, ok = plain.DefaultFactoryOp()
	assert.False(t, ok)
}

func TestEnrichType_RawComposite(t *testing.T) {
	c := composite(t, desc("Composite",
		"kind", "list",
		"ops", []any{
			map[string]any{"verb": "get", "value": desc("Integer"), "key_error": true},
			map[string]any{"verb": "insert", "value": desc("Integer")},
			map[string]any{"verb": "delete", "key": 0, "key_error": true},
		},
	))
	assert.Equal(t, types.KindList, c.Kind)
	assert.Equal(t, 3, c.Len())

	get, ok := c.Op(types.OpKey{Verb: types.VerbGet, Wildcard: true})
	require.True(t, ok)
	assert.True(t, get.KeyError)
	_, ok = c.Op(types.OpKey{Verb: types.VerbDelete, Key: int64(0)})
	assert.True(t, ok)
}

func TestEnrichType_DescribeRoundTrip(t *testing.T) {
	node := types.NewRecursiveCompositeType("node", types.KindObject, func(self *types.CompositeType) []*types.MicroOpType {
		return []*types.MicroOpType{
			types.Getter("value", types.Integer),
			types.Getter("next", types.OneOf(types.Unit(false), self)),
			types.WildcardGetter(types.String, types.WithKeyError(), types.WithKeyType(types.String)),
		}
	})

	got := composite(t, types.Describe(node))

	assert.Equal(t, "node", got.Name)
	next, ok := got.Op(types.OpKey{Verb: types.VerbGet, Key: "next"})
	require.True(t, ok)
	union, ok := next.ValueType.(types.OneOfType)
	require.True(t, ok)
	assert.Same(t, got, union.Types[1], "recursive reference points back at the rebuilt type")

	assert.True(t, node.IsCopyableFrom(got))
	assert.True(t, got.IsCopyableFrom(node))
}

func TestEnrichType_FunctionTypes(t *testing.T) {
	closed, err := EnrichType(desc("Function",
		"argument", desc("Integer"),
		"break_types", map[string]any{
			"value": []any{map[string]any{"out": desc("Integer")}},
			"yield": []any{map[string]any{"out": desc("String"), "in": desc("Integer")}},
		},
	))
	require.NoError(t, err)
	fn, ok := closed.(*types.ClosedFunctionType)
	require.True(t, ok)
	assert.Equal(t, types.Integer, fn.Argument)
	assert.Equal(t, []string{"value", "yield"}, fn.Breaks.Modes())
	assert.True(t, fn.Breaks.Restartable())

	open, err := EnrichType(types.Describe(&types.OpenFunctionType{
		Argument: types.String,
		Outer:    types.Integer,
		Breaks:   types.BreakTypes{"value": {{Out: types.Boolean}}},
	}))
	require.NoError(t, err)
	ofn, ok := open.(*types.OpenFunctionType)
	require.True(t, ok)
	assert.Equal(t, types.Integer, ofn.Outer)
	assert.Equal(t, "{value: [Boolean]}", ofn.Breaks.String())
}

func TestEnrichBreakTypes(t *testing.T) {
	empty, err := EnrichBreakTypes(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	got, err := EnrichBreakTypes(map[string]any{
		"exception": []any{
			map[string]any{"out": desc("String")},
			map[string]any{"out": desc("String")},
		},
	})
	require.NoError(t, err)
	assert.Len(t, got["exception"], 1, "equal entries collapse")
}

// ============================================================================
// Malformed descriptors
// ============================================================================

func TestEnrichType_Errors(t *testing.T) {
	tests := []struct {
		name string
		d    any
		code ErrorCode
		path string
	}{
		{"not a map", []any{}, ErrCodeInvalidField, ""},
		{"no tag", map[string]any{}, ErrCodeMissingField, "type"},
		{"unknown tag", desc("Float"), ErrCodeUnknownType, "type"},
		{
			"nested missing field",
			desc("Object", "properties", map[string]any{"x": desc("Const")}),
			ErrCodeMissingField, "properties.x.of",
		},
		{
			"no-value micro-op",
			desc("Composite", "ops", []any{map[string]any{"verb": "get", "key": "a", "value": desc("NoValue")}}),
			ErrCodeInvalidField, "ops.0.value",
		},
		{"no-value dict value", desc("Dict", "value", desc("NoValue")), ErrCodeInvalidField, "value"},
		{"no-value dict key", desc("Dict", "key", desc("NoValue"), "value", desc("Any")), ErrCodeInvalidField, "key"},
		{"no-value list wildcard", desc("List", "wildcard", desc("NoValue")), ErrCodeInvalidField, "wildcard"},
		{"no-value list entry", desc("List", "entries", []any{desc("Integer"), desc("NoValue")}), ErrCodeInvalidField, "entries.1"},
		{"no-value object wildcard", desc("Object", "wildcard", desc("NoValue")), ErrCodeInvalidField, "wildcard"},
		{
			"read-only no-value property",
			desc("Object", "properties", map[string]any{"x": desc("Const", "of", desc("NoValue"))}),
			ErrCodeInvalidField, "properties.x",
		},
		{
			"nested no-value wildcard",
			desc("Dict", "value", desc("List", "wildcard", desc("Const", "of", desc("NoValue")))),
			ErrCodeInvalidField, "value.wildcard",
		},
		{
			"duplicate micro-op",
			desc("Composite", "ops", []any{
				map[string]any{"verb": "delete", "key": "a"},
				map[string]any{"verb": "delete", "key": "a"},
			}),
			ErrCodeInvalidField, "ops.1",
		},
		{
			"string insert key",
			desc("Composite", "ops", []any{map[string]any{"verb": "insert", "key": "a", "value": desc("Any")}}),
			ErrCodeInvalidField, "ops.0.key",
		},
		{"unknown kind", desc("Composite", "kind", "set"), ErrCodeInvalidField, "kind"},
		{"dangling recursion", desc("Recursive", "depth", 0), ErrCodeInvalidField, "depth"},
		{
			"bad break table",
			desc("Function", "break_types", map[string]any{"value": "Integer"}),
			ErrCodeInvalidField, "break_types.value",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EnrichType(tt.d)
			var de *Error
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.code, de.Code)
			assert.Equal(t, tt.path, de.Path)
		})
	}
}

func TestEnrichType_NoValuePropertyIsAbsent(t *testing.T) {
	c := composite(t, desc("Object", "properties", map[string]any{
		"x": desc("NoValue"),
		"y": desc("Integer"),
	}))
	assert.Equal(t, types.ObjectType(map[string]types.Type{"y": types.Integer}).String(), c.String())
	assert.Equal(t, 2, c.Len())
}

func TestEnrichType_AcceptsInterfaceKeyedMaps(t *testing.T) {
	got, err := EnrichType(map[any]any{"type": "Integer"})
	require.NoError(t, err)
	assert.Equal(t, types.Integer, got)

	_, err = EnrichType(map[any]any{1: "Integer"})
	assert.True(t, IsDescriptorError(err))
}

func TestError_Format(t *testing.T) {
	err := &Error{Code: ErrCodeUnknownType, Message: "unknown type \"X\""}
	assert.Equal(t, `UNKNOWN_TYPE: (root): unknown type "X"`, err.Error())
}
