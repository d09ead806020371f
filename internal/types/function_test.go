package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClosedFunctionType_ArgumentContravariantBreaksCovariant(t *testing.T) {
	general := &ClosedFunctionType{Argument: Any, Breaks: BreakTypes{"value": {{Out: Integer}}}}
	specific := &ClosedFunctionType{Argument: Integer, Breaks: BreakTypes{"value": {{Out: Any}}}}

	assert.True(t, specific.IsCopyableFrom(general))
	assert.False(t, general.IsCopyableFrom(specific))
}

func TestClosedFunctionType_UndeclaredModeIsRejected(t *testing.T) {
	target := &ClosedFunctionType{Argument: Any, Breaks: BreakTypes{"value": {{Out: Any}}}}
	candidate := &ClosedFunctionType{Argument: Any, Breaks: BreakTypes{
		"value":  {{Out: Any}},
		"return": {{Out: Integer}},
	}}

	assert.False(t, target.IsCopyableFrom(candidate))
	assert.True(t, candidate.IsCopyableFrom(target), "a target may prepare for breaks that never happen")
}

func TestClosedFunctionType_ResumableBreaks(t *testing.T) {
	target := &ClosedFunctionType{Argument: Any, Breaks: BreakTypes{"yield": {{Out: Any, In: Integer}}}}

	accepting := &ClosedFunctionType{Argument: Any, Breaks: BreakTypes{"yield": {{Out: Integer, In: Any}}}}
	assert.True(t, target.IsCopyableFrom(accepting))

	picky := &ClosedFunctionType{Argument: Any, Breaks: BreakTypes{"yield": {{Out: Integer, In: Unit(1)}}}}
	assert.False(t, target.IsCopyableFrom(picky), "callers may resume with any Integer")

	final := &ClosedFunctionType{Argument: Any, Breaks: BreakTypes{"yield": {{Out: Integer}}}}
	assert.False(t, target.IsCopyableFrom(final), "a non-resumable break cannot stand in for a resumable one")
}

func TestOpenFunctionType_OuterIsContravariant(t *testing.T) {
	breaks := BreakTypes{"value": {{Out: Integer}}}
	needsLess := &OpenFunctionType{Argument: Any, Outer: Readonly(ObjectType(map[string]Type{"x": Integer})), Breaks: breaks}
	needsMore := &OpenFunctionType{Argument: Any, Outer: ObjectType(map[string]Type{"x": Integer, "y": String}), Breaks: breaks}

	assert.True(t, needsMore.IsCopyableFrom(needsLess))
	assert.False(t, needsLess.IsCopyableFrom(needsMore))
	assert.False(t, needsMore.IsCopyableFrom(&ClosedFunctionType{Argument: Any, Breaks: breaks}))
}

func TestBreakTypes_AddDedupes(t *testing.T) {
	b := BreakTypes{}
	b.Add("value", Integer, nil)
	b.Add("value", Integer, nil)
	b.Add("value", String, nil)
	b.Add("yield", Integer, Boolean)

	assert.Len(t, b["value"], 2)
	assert.Equal(t, []string{"value", "yield"}, b.Modes())
	assert.True(t, b.Restartable())
	assert.Equal(t, "{value: [Integer, String], yield: [Integer<-Boolean]}", b.String())
}

func TestBreakTypes_MergeAndClone(t *testing.T) {
	a := BreakTypes{"value": {{Out: Integer}}}
	b := BreakTypes{"value": {{Out: Integer}, {Out: String}}, "error": {{Out: String}}}

	merged := a.Clone()
	merged.Merge(b)

	assert.Len(t, a["value"], 1, "clone is independent")
	assert.Len(t, merged["value"], 2)
	assert.Len(t, merged["error"], 1)
	assert.False(t, merged.Restartable())
	assert.True(t, merged.Equal(merged.Clone()))
	assert.False(t, merged.Equal(a))
}
