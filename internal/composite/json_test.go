package composite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lockdown/internal/types"
)

func TestDecode_PreservesDocumentOrder(t *testing.T) {
	v, err := Decode([]byte(`{"b": 1, "a": [true, "x", null, {}]}`))
	require.NoError(t, err)

	obj, ok := v.(*Composite)
	require.True(t, ok)
	assert.Equal(t, types.KindObject, obj.Kind())
	assert.Equal(t, []any{"b", "a"}, obj.Keys())
	assert.Equal(t, `{b: 1, a: [true, "x", NoValue, {}]}`, obj.String())
}

func TestDecode_Rejects(t *testing.T) {
	for name, input := range map[string]string{
		"float":    `{"a": 1.5}`,
		"trailing": `1 2`,
		"broken":   `{"a": `,
		"huge":     `123456789012345678901234567890`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(input))
			assert.Error(t, err)
		})
	}
}

func TestFromPlain_SortsMapKeys(t *testing.T) {
	v, err := FromPlain(map[string]any{"z": 1, "a": []any{"x", map[string]any{}}})
	require.NoError(t, err)

	obj := v.(*Composite)
	assert.Equal(t, []any{"a", "z"}, obj.Keys())

	back, err := Plain(obj)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"a": []any{"x", map[string]any{}},
		"z": int64(1),
	}, back)

	_, err = FromPlain(map[string]any{"f": 1.5})
	assert.Error(t, err)
}

func TestPlain_DictKeysAndCycles(t *testing.T) {
	dict := NewDict().Put(1, "one")
	back, err := Plain(dict)
	require.NoError(t, err)
	assert.Equal(t, map[any]any{int64(1): "one"}, back)

	obj := NewObject()
	obj.Put("self", obj)
	_, err = Plain(obj)
	assert.Error(t, err)
}
