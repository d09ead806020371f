package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allModes = []MergeMode{MergeSuper, MergeSub, MergeExact}

func TestMergeTypes_SingleInputIsIdentity(t *testing.T) {
	obj := ObjectType(map[string]Type{"foo": Integer})
	for _, mode := range allModes {
		assert.Equal(t, Integer, MergeTypes([]Type{Integer}, mode), "mode %s", mode)
		assert.Same(t, obj, MergeTypes([]Type{obj}, mode), "mode %s", mode)
	}
}

func TestMergeTypes_ExactOfDuplicatesIsSingleMemberUnion(t *testing.T) {
	merged := MergeTypes([]Type{Integer, Integer}, MergeExact)

	union, ok := merged.(OneOfType)
	require.True(t, ok, "exact merge of two inputs is always a union")
	require.Len(t, union.Types, 1)
	assert.Equal(t, Integer, union.Types[0])
}

func TestMergeTypes_DuplicatesCollapseInSuperAndSub(t *testing.T) {
	assert.Equal(t, Integer, MergeTypes([]Type{Integer, Integer}, MergeSuper))
	assert.Equal(t, Integer, MergeTypes([]Type{Integer, Integer}, MergeSub))
}

func TestMergeTypes_AnyAndInteger(t *testing.T) {
	assert.Equal(t, Any, MergeTypes([]Type{Any, Integer}, MergeSuper))
	assert.Equal(t, Integer, MergeTypes([]Type{Any, Integer}, MergeSub))

	exact, ok := MergeTypes([]Type{Any, Integer}, MergeExact).(OneOfType)
	require.True(t, ok)
	assert.Len(t, exact.Types, 2)
}

func TestMergeTypes_UnrelatedTypesFormUnion(t *testing.T) {
	for _, mode := range allModes {
		union, ok := MergeTypes([]Type{String, Integer}, mode).(OneOfType)
		require.True(t, ok, "mode %s", mode)
		assert.Len(t, union.Types, 2, "mode %s", mode)
	}
}

func TestMergeTypes_DedupesBeforeUnion(t *testing.T) {
	for _, mode := range allModes {
		union, ok := MergeTypes([]Type{String, String, Integer}, mode).(OneOfType)
		require.True(t, ok, "mode %s", mode)
		assert.Len(t, union.Types, 2, "mode %s", mode)
	}
}

func TestMergeTypes_UnitsAndPrimitive(t *testing.T) {
	assert.Equal(t, Integer, MergeTypes([]Type{Unit(1), Integer, Unit(2)}, MergeSuper))
	assert.Equal(t, OneOf(Unit(1), Unit(2)), MergeTypes([]Type{Unit(1), Integer, Unit(2)}, MergeSub))
}

func TestMergeTypes_EquivalentMembersKeepFirst(t *testing.T) {
	first := OneOf(Integer, String)
	second := OneOf(String, Integer)

	assert.Equal(t, first, MergeTypes([]Type{first, second}, MergeSuper))
	assert.Equal(t, first, MergeTypes([]Type{first, second}, MergeSub))
}

func TestMergeTypes_EmptyPanics(t *testing.T) {
	assert.Panics(t, func() { MergeTypes(nil, MergeSuper) })
}
