package compiler

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lockdown/internal/host"
	"github.com/roach88/lockdown/internal/types"
)

const shapes = `
types: {
	Point: {
		type: "Object"
		name: "point"
		properties: {
			x: {type: "Integer"}
			y: {type: "Integer"}
		}
	}
	ReadonlyX: {
		type: "Composite"
		kind: "object"
		ops: [{verb: "get", key: "x", value: {type: "Integer"}}]
	}
	Names: {type: "List", wildcard: {type: "String"}}
}

functions: {
	norm: {
		argument: types.Point
		break_types: value: [{out: {type: "Integer"}}]
		observed: code: value: [{out: {type: "Integer"}}]
	}
	counter: {
		local: {type: "Inferred"}
		break_types: {
			value: [{out: {type: "Any"}}]
			yield: [{out: {type: "Integer"}, in: {type: "Inferred"}}]
		}
		observed: {
			local: value: [{out: {type: "Unit", value: 0}}]
			code: yield: [{out: {type: "Integer"}, in: {type: "String"}}]
		}
	}
}

relations: [
	{target: "ReadonlyX", candidate: "Point"},
	{target: "Point", candidate: "ReadonlyX", expect: false},
]
`

func compileShapes(t *testing.T) *Module {
	t.Helper()
	m, errs := CompileString(shapes, "shapes.cue")
	require.Empty(t, errs)
	require.NotNil(t, m)
	return m
}

// =============================================================================
// Compilation
// =============================================================================

func TestCompileModule_DeclarationOrder(t *testing.T) {
	m := compileShapes(t)

	names := make([]string, len(m.Types))
	for i, nt := range m.Types {
		names[i] = nt.Name
	}
	assert.Equal(t, []string{"Point", "ReadonlyX", "Names"}, names)
	require.Len(t, m.Functions, 2)
	assert.Equal(t, "norm", m.Functions[0].Name)
	require.Len(t, m.Relations, 2)
	assert.True(t, m.Relations[0].Expect, "expect defaults to true")
	assert.False(t, m.Relations[1].Expect)
}

func TestCompileModule_Types(t *testing.T) {
	m := compileShapes(t)

	point, ok := m.Type("Point")
	require.True(t, ok)
	pt, ok := point.(*types.CompositeType)
	require.True(t, ok)
	assert.Equal(t, "point", pt.Name)
	assert.True(t, pt.IsSelfConsistent())

	_, ok = m.Type("Missing")
	assert.False(t, ok)
}

func TestCompileSignature_Defaults(t *testing.T) {
	m := compileShapes(t)

	norm := m.Functions[0]
	assert.Equal(t, types.Inferred, norm.Outer)
	assert.Equal(t, types.Inferred, norm.Local)
	assert.Empty(t, norm.ObservedLocal)
	assert.Equal(t, "{value: [Integer]}", norm.Breaks.String())

	counter := m.Functions[1]
	assert.Equal(t, types.NoValue, counter.Argument)
	assert.Equal(t, "{yield: [Integer<-String]}", counter.ObservedCode.String())
}

func TestCompileModule_CollectsErrors(t *testing.T) {
	m, errs := CompileString(`
types: {
	Good: {type: "Integer"}
	Bad: {type: "Float"}
	Worse: {type: "Unit", value: 1.5}
}
`, "bad.cue")
	require.NotNil(t, m)
	require.Len(t, errs, 2)
	require.Len(t, m.Types, 1)
	assert.Equal(t, "Good", m.Types[0].Name)

	var ce *CompileError
	require.True(t, errors.As(errs[0], &ce))
	assert.Equal(t, "types.Bad.descriptor", ce.Field)
	assert.Contains(t, ce.Message, "UNKNOWN_TYPE")
	assert.True(t, ce.Pos.IsValid())

	require.True(t, errors.As(errs[1], &ce))
	assert.Contains(t, ce.Message, "floats")
}

func TestCompileModule_Empty(t *testing.T) {
	_, errs := CompileString(`other: 1`, "empty.cue")
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "no types or functions declared")
}

func TestCompileModule_IncompleteValue(t *testing.T) {
	_, errs := CompileString(`types: X: {type: string}`, "incomplete.cue")
	require.NotEmpty(t, errs)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shapes.cue"), []byte(shapes), 0o644))

	result, errs := LoadDir(dir)
	require.Empty(t, errs)
	assert.Equal(t, 1, result.FileCount)
	assert.Len(t, result.Module.Types, 3)

	_, errs = LoadDir(t.TempDir())
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "no CUE files")

	_, errs = LoadDir(filepath.Join(dir, "missing"))
	require.Len(t, errs, 1)
}

// =============================================================================
// Validation
// =============================================================================

func TestCheck_AllPass(t *testing.T) {
	m := compileShapes(t)

	findings := Check(m, host.Default())
	for _, f := range findings {
		assert.True(t, f.OK, "%s %s: %s", f.Kind, f.Subject, f.Detail)
	}
	assert.Empty(t, Validate(m, host.Default()))

	var breaks []string
	for _, f := range findings {
		if f.Kind == KindBreaks {
			breaks = append(breaks, f.Detail)
		}
	}
	assert.Equal(t, []string{"{value: [Integer]}", "{yield: [Integer<-String]}"}, breaks)
}

func TestValidate_Failures(t *testing.T) {
	m, errs := CompileString(`
types: {
	Loose: {type: "Object", properties: {a: {type: "Inferred"}}}
	Broken: {
		type: "Composite"
		kind: "object"
		ops: [{verb: "get", value: {type: "Integer"}}]
	}
	Tolerant: {
		type: "Composite"
		kind: "object"
		ops: [{verb: "get", key: "a", value: {type: "Integer"}, type_error: true}]
	}
}
functions: {
	leaky: {
		break_types: value: [{out: {type: "Integer"}}]
		observed: code: {
			value: [{out: {type: "Integer"}}]
			exception: [{out: {type: "String"}}]
		}
	}
	badLocal: {
		local: {type: "String"}
		observed: local: value: [{out: {type: "Integer"}}]
	}
}
relations: [
	{target: "Loose", candidate: "Nope"},
	{target: "Tolerant", candidate: "Tolerant", expect: false},
]
`, "failures.cue")
	require.Empty(t, errs)

	codes := make(map[string]string)
	for _, e := range Validate(m, host.Capabilities{}) {
		codes[e.Field] = e.Code
		assert.Positive(t, e.Line, "%s has no line", e.Field)
	}
	assert.Equal(t, map[string]string{
		"types.Loose":              ErrDanglingInference,
		"types.Broken":             ErrInconsistentType,
		"types.Tolerant":           ErrToleranceGate,
		"functions.leaky":          ErrBreakMismatch,
		"functions.badLocal.local": ErrInvalidLocalType,
		"relations[0]":             ErrUnknownType,
		"relations[1]":             ErrRelationMismatch,
	}, codes)
}

func TestValidationError_Format(t *testing.T) {
	e := ValidationError{Field: "types.X", Message: "boom", Code: ErrDanglingInference, Line: 3}
	assert.Equal(t, "[E202] line 3: types.X: boom", e.Error())
	e.Line = 0
	assert.Equal(t, "[E202] types.X: boom", e.Error())
}
