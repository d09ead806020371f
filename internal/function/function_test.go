package function_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lockdown/internal/ast"
	"github.com/roach88/lockdown/internal/composite"
	"github.com/roach88/lockdown/internal/function"
	"github.com/roach88/lockdown/internal/host"
	"github.com/roach88/lockdown/internal/testutil"
	"github.com/roach88/lockdown/internal/types"
)

type fixture struct {
	reg    *composite.Registry
	ev     *testutil.Evaluator
	frames *testutil.Frames
}

func newFixture(caps host.Capabilities) *fixture {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := composite.NewRegistry(caps, composite.WithLogger(logger))
	return &fixture{reg: reg, ev: testutil.NewEvaluator(reg), frames: testutil.NewFrames()}
}

func (f *fixture) prepare(t *testing.T, data function.Data, opts ...function.Option) (*function.OpenFunction, error) {
	t.Helper()
	opts = append([]function.Option{
		function.WithRegistry(f.reg),
		function.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)
	return function.Prepare(context.Background(), data, nil, f.ev, f.frames, opts...)
}

// statics builds a static sub-tree evaluating to the plain value.
func statics(t *testing.T, plain map[string]any) *ast.Node {
	t.Helper()
	v, err := composite.FromPlain(plain)
	require.NoError(t, err)
	return ast.Literal(v)
}

func ty(tag string) map[string]any {
	return map[string]any{"type": tag}
}

func object(props map[string]any) map[string]any {
	return map[string]any{"type": "Object", "properties": props}
}

func breaks(mode string, entries ...map[string]any) map[string]any {
	list := make([]any, len(entries))
	for i, e := range entries {
		list[i] = e
	}
	return map[string]any{mode: list}
}

func out(d map[string]any) map[string]any {
	return map[string]any{"out": d}
}

func requirePreparation(t *testing.T, err error, code function.PreparationErrorCode) *function.PreparationError {
	t.Helper()
	var pe *function.PreparationError
	require.True(t, errors.As(err, &pe), "expected PreparationError, got %v", err)
	assert.Equal(t, code, pe.Code)
	return pe
}

func requireFatal(t *testing.T, err error, code types.FatalCode) {
	t.Helper()
	var fe *types.FatalError
	require.True(t, errors.As(err, &fe), "expected FatalError, got %v", err)
	assert.Equal(t, code, fe.Code)
}

// ============================================================================
// Preparation
// ============================================================================

func TestPrepare_ReturnsArgument(t *testing.T) {
	f := newFixture(host.Default())
	open, err := f.prepare(t, function.Data{
		Static: statics(t, map[string]any{
			"argument":    ty("Integer"),
			"break_types": breaks("value", out(ty("Integer"))),
		}),
		Code: ast.UnboundDereference("argument"),
	})
	require.NoError(t, err)

	assert.Equal(t, `dereference(context, "argument")`, open.Code().String())
	assert.Equal(t, types.Integer, open.Type().Argument)
	assert.Equal(t, types.NoValue, open.Type().Outer)
	assert.Equal(t, "{value: [Integer]}", open.Type().Breaks.String())
	assert.True(t, open.Transpilable())

	closed, err := open.Close(nil)
	require.NoError(t, err)
	result, err := closed.Invoke(context.Background(), 5, f.frames)
	require.NoError(t, err)
	assert.Equal(t, function.ModeValue, result.Mode)
	assert.Equal(t, int64(5), result.Value)
}

func TestPrepare_MissingCode(t *testing.T) {
	f := newFixture(host.Default())
	_, err := f.prepare(t, function.Data{})
	requirePreparation(t, err, function.ErrCodeMissingCode)
	assert.True(t, function.IsPreparationError(err))
}

func TestPrepare_InvalidStatics(t *testing.T) {
	f := newFixture(host.Default())

	_, err := f.prepare(t, function.Data{Static: ast.Literal(int64(5)), Code: ast.Literal(int64(1))})
	requirePreparation(t, err, function.ErrCodeInvalidStatic)

	_, err = f.prepare(t, function.Data{Static: ast.Op("explode"), Code: ast.Literal(int64(1))})
	requirePreparation(t, err, function.ErrCodeEvaluationFailed)

	_, err = f.prepare(t, function.Data{
		Static: statics(t, map[string]any{"argument": ty("Float")}),
		Code:   ast.Literal(int64(1)),
	})
	pe := requirePreparation(t, err, function.ErrCodeInvalidStatic)
	assert.Contains(t, pe.Error(), "UNKNOWN_TYPE")
}

func TestPrepare_InfersArgumentFromSuggestion(t *testing.T) {
	f := newFixture(host.Default())
	data := function.Data{
		Static: statics(t, map[string]any{
			"argument":    ty("Inferred"),
			"break_types": breaks("value", out(ty("Any"))),
		}),
		Code: ast.Literal(true),
	}

	open, err := f.prepare(t, data, function.WithSuggestedArgument(types.String))
	require.NoError(t, err)
	assert.Equal(t, types.String, open.Type().Argument)

	_, err = f.prepare(t, data)
	pe := requirePreparation(t, err, function.ErrCodeUnresolvedArgument)
	assert.True(t, types.IsDanglingInference(pe))
}

func TestPrepare_InconsistentDeclaredType(t *testing.T) {
	f := newFixture(host.Default())
	_, err := f.prepare(t, function.Data{
		Static: statics(t, map[string]any{
			"argument": map[string]any{
				"type": "Composite",
				"kind": "object",
				"ops":  []any{map[string]any{"verb": "get", "value": ty("Integer")}},
			},
		}),
		Code: ast.Literal(true),
	})
	requirePreparation(t, err, function.ErrCodeInconsistentType)
}

func TestPrepare_LocalType(t *testing.T) {
	f := newFixture(host.Default())
	withLocal := func(local map[string]any, init *ast.Node) function.Data {
		return function.Data{
			Static: statics(t, map[string]any{
				"local":       local,
				"break_types": breaks("value", out(ty("Integer"))),
			}),
			LocalInitializer: init,
			Code:             ast.UnboundDereference("local"),
		}
	}

	open, err := f.prepare(t, withLocal(ty("Integer"), ast.Literal(int64(3))))
	require.NoError(t, err)
	assert.Equal(t, types.Integer, open.LocalType())

	closed, err := open.Close(nil)
	require.NoError(t, err)
	result, err := closed.Invoke(context.Background(), nil, f.frames)
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.Value)

	_, err = f.prepare(t, withLocal(ty("String"), ast.Literal(int64(3))))
	requirePreparation(t, err, function.ErrCodeInvalidLocalType)

	_, err = f.prepare(t, withLocal(ty("Integer"), testutil.Break("return", ast.Literal(int64(3)))))
	requirePreparation(t, err, function.ErrCodeMissingLocalType)

	_, err = f.prepare(t, withLocal(object(map[string]any{"bar": ty("Inferred")}), ast.Literal(int64(3))))
	requirePreparation(t, err, function.ErrCodeUnresolvedLocal)
}

// ============================================================================
// Binding
// ============================================================================

func TestPrepare_BindsThroughTypedAreas(t *testing.T) {
	f := newFixture(host.Default())
	open, err := f.prepare(t, function.Data{
		Static: statics(t, map[string]any{
			"argument":    object(map[string]any{"x": ty("Integer")}),
			"break_types": map[string]any{"value": []any{out(ty("Any"))}, "exception": []any{out(ty("Any"))}},
		}),
		Code: testutil.Sequence(
			ast.UnboundDereference("x"),
			ast.UnboundDereference("nowhere"),
		),
	})
	require.NoError(t, err)
	assert.Equal(t,
		`sequence(dereference(dereference(context, "argument"), "x"), dynamic_dereference(nowhere))`,
		open.Code().String())
}

func TestPrepare_BindsThroughOuterAndStatics(t *testing.T) {
	f := newFixture(host.Default())
	enclosing := composite.NewObject().Put("static", composite.NewObject().Put("limit", 10))

	open, err := function.Prepare(context.Background(), function.Data{
		Static: statics(t, map[string]any{
			"outer": object(map[string]any{
				"argument": object(map[string]any{"y": ty("String")}),
			}),
			"break_types": map[string]any{"value": []any{out(ty("Any"))}, "exception": []any{out(ty("Any"))}},
		}),
		Code: testutil.Sequence(
			ast.UnboundDereference("limit"),
			ast.UnboundDereference("y"),
		),
	}, enclosing, f.ev, f.frames, function.WithRegistry(f.reg))
	require.NoError(t, err)

	assert.Equal(t,
		`sequence(static(dereference(dereference(dereference(context, "prepare"), "static"), "limit")), `+
			`dereference(dereference(dereference(context, "outer"), "argument"), "y"))`,
		open.Code().String())
}

func TestPrepare_UnboundAssignment(t *testing.T) {
	f := newFixture(host.Default())
	_, err := f.prepare(t, function.Data{
		Code: ast.UnboundAssignment("nope", ast.Literal(int64(1))),
	})
	requirePreparation(t, err, function.ErrCodeUnboundAssignment)
}

// ============================================================================
// Break types
// ============================================================================

func TestPrepare_UndeclaredBreakNamesBothTables(t *testing.T) {
	f := newFixture(host.Default())
	init := ast.Literal(int64(1))
	f.ev.Breaks[init.String()] = types.BreakTypes{
		"value":     {{Out: types.Integer}},
		"exception": {{Out: types.String}},
	}

	_, err := f.prepare(t, function.Data{
		Static: statics(t, map[string]any{
			"break_types": map[string]any{
				"value":     []any{out(ty("Integer"))},
				"exception": []any{out(ty("String"))},
			},
		}),
		LocalInitializer: init,
		Code:             testutil.Break("return", ast.Literal("x")),
	})

	pe := requirePreparation(t, err, function.ErrCodeUndeclaredBreak)
	assert.Contains(t, pe.Message, `nothing declared for return, Unit<"x">`)
	assert.Contains(t, pe.Message, "Function declares break types {exception: [String], value: [Integer]}")
	assert.Contains(t, pe.Message, "local initialization breaks {exception: [String]}")
	assert.Contains(t, pe.Message, `code breaks {return: [Unit<"x">]}`)
}

func TestMatchBreakTypes_FirstMatchWins(t *testing.T) {
	declared := types.BreakTypes{"value": {{Out: types.Any}, {Out: types.Integer}}}
	code := types.BreakTypes{"value": {{Out: types.Integer}}}

	final, err := function.MatchBreakTypes(declared, types.BreakTypes{}, code)
	require.NoError(t, err)
	assert.Equal(t, "{value: [Any]}", final.String())
}

func TestMatchBreakTypes_WildcardOnlyForUndeclaredModes(t *testing.T) {
	declared := types.BreakTypes{
		"value":         {{Out: types.String}},
		types.Wildcard: {{Out: types.Any}},
	}

	final, err := function.MatchBreakTypes(declared, types.BreakTypes{}, types.BreakTypes{"yield": {{Out: types.Integer}}})
	require.NoError(t, err)
	assert.Equal(t, "{yield: [Any]}", final.String())

	_, err = function.MatchBreakTypes(declared, types.BreakTypes{}, types.BreakTypes{"value": {{Out: types.Integer}}})
	requirePreparation(t, err, function.ErrCodeUndeclaredBreak)
}

func TestMatchBreakTypes_InferredParts(t *testing.T) {
	declared := types.BreakTypes{"yield": {{Out: types.Inferred, In: types.Inferred}}}

	final, err := function.MatchBreakTypes(declared, types.BreakTypes{}, types.BreakTypes{"yield": {{Out: types.Integer}}})
	require.NoError(t, err)
	assert.Equal(t, "{yield: [Integer]}", final.String())
	assert.False(t, final.Restartable())

	final, err = function.MatchBreakTypes(declared, types.BreakTypes{}, types.BreakTypes{"yield": {{Out: types.Integer, In: types.String}}})
	require.NoError(t, err)
	assert.Equal(t, "Integer<-String", final["yield"][0].String())
	assert.True(t, final.Restartable())
}

func TestMatchBreakTypes_ResumableDeclarationNeedsResumableBreak(t *testing.T) {
	declared := types.BreakTypes{"yield": {{Out: types.Integer, In: types.String}}}
	_, err := function.MatchBreakTypes(declared, types.BreakTypes{}, types.BreakTypes{"yield": {{Out: types.Integer}}})
	requirePreparation(t, err, function.ErrCodeUndeclaredBreak)
}

func TestMatchBreakTypes_DanglingDeclaration(t *testing.T) {
	declared := types.BreakTypes{"value": {{Out: types.ObjectType(map[string]types.Type{"bar": types.Inferred})}}}
	code := types.BreakTypes{"value": {{Out: types.ObjectType(map[string]types.Type{"bam": types.String})}}}

	_, err := function.MatchBreakTypes(declared, types.BreakTypes{}, code)
	pe := requirePreparation(t, err, function.ErrCodeUnresolvedBreak)
	assert.True(t, types.IsDanglingInference(pe))
}

func TestOpenFunction_Restartable(t *testing.T) {
	f := newFixture(host.Default())
	code := ast.Literal(int64(1))
	f.ev.Breaks[code.String()] = types.BreakTypes{"yield": {{Out: types.Integer, In: types.String}}}

	open, err := f.prepare(t, function.Data{
		Static: statics(t, map[string]any{
			"break_types": breaks("yield", map[string]any{"out": ty("Integer"), "in": ty("String")}),
		}),
		Code: code,
	})
	require.NoError(t, err)
	assert.True(t, open.Restartable())
	assert.False(t, open.Transpilable())
}
