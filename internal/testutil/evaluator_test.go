package testutil

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lockdown/internal/ast"
	"github.com/roach88/lockdown/internal/composite"
	"github.com/roach88/lockdown/internal/function"
	"github.com/roach88/lockdown/internal/host"
	"github.com/roach88/lockdown/internal/types"
)

func newEvaluator() *Evaluator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEvaluator(composite.NewRegistry(host.Default(), composite.WithLogger(logger)))
}

func TestEvaluator_SequenceAndBreak(t *testing.T) {
	ev := newEvaluator()
	scope := composite.NewObject().Put("x", 4)

	out, err := ev.Evaluate(context.Background(), Sequence(
		ast.Literal(int64(1)),
		Break("return", ast.Literal("done")),
		ast.Literal(int64(2)),
	), scope, NewFrames())
	require.NoError(t, err)
	assert.Equal(t, "return", out.Mode)
	assert.Equal(t, "done", out.Value)

	_, err = ev.Evaluate(context.Background(), ast.Op("nope"), scope, NewFrames())
	assert.Error(t, err)
}

func TestEvaluator_InfersBreaks(t *testing.T) {
	ev := newEvaluator()
	scopeType := types.ObjectType(map[string]types.Type{"x": types.Integer})

	breaks, err := ev.BreakTypes(context.Background(), ast.ContextPath("x"), scopeType, NewFrames())
	require.NoError(t, err)
	assert.Equal(t, "{value: [Integer]}", breaks.String())

	breaks, err = ev.BreakTypes(context.Background(), ast.ContextPath("y"), scopeType, NewFrames())
	require.NoError(t, err)
	assert.Contains(t, breaks, function.ModeException)

	breaks, err = ev.BreakTypes(context.Background(), Break("yield", ast.Literal(true)), scopeType, NewFrames())
	require.NoError(t, err)
	assert.Equal(t, "{yield: [Unit<true>]}", breaks.String())

	node := ast.Literal(int64(1))
	ev.Breaks[node.String()] = types.BreakTypes{"value": {{Out: types.String}}}
	breaks, err = ev.BreakTypes(context.Background(), node, scopeType, NewFrames())
	require.NoError(t, err)
	assert.Equal(t, "{value: [String]}", breaks.String())
	assert.Len(t, ev.Inferred, 4)
}
