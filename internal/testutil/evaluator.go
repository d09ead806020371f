package testutil

import (
	"context"
	"fmt"

	"github.com/roach88/lockdown/internal/ast"
	"github.com/roach88/lockdown/internal/composite"
	"github.com/roach88/lockdown/internal/function"
	"github.com/roach88/lockdown/internal/types"
)

// Opcodes the scripted evaluator understands on top of the ones
// preparation produces.
const (
	OpSequence = "sequence"
	OpBreak    = "break"
)

// ExceptionType is the out type of every exception break the scripted
// evaluator infers.
var ExceptionType = types.Readonly(types.ObjectType(map[string]types.Type{
	"type":    types.String,
	"message": types.String,
}, types.Named("exception")))

// Sequence evaluates nodes in order and produces the last value.
func Sequence(nodes ...*ast.Node) *ast.Node {
	return ast.Op(OpSequence, nodes...)
}

// Break leaves with mode carrying the value of value.
func Break(mode string, value *ast.Node) *ast.Node {
	return &ast.Node{Opcode: OpBreak, Reference: mode, Args: []*ast.Node{value}}
}

// Evaluator is a small scripted function.Evaluator for tests.
//
// It interprets literals, the context, dereferences and assignments (both
// through the registry), statics, sequences and breaks. Break types are
// inferred from the context type with a few structural rules; Breaks
// replaces the inference for a node, keyed by the bound node's String().
//
// Thread-safety: none; tests drive it from one goroutine.
type Evaluator struct {
	Registry *composite.Registry

	// Breaks overrides inferred break types per node.
	Breaks map[string]types.BreakTypes

	// Evaluated records the String() of every root node evaluated.
	Evaluated []string

	// Inferred records the String() of every root node whose break types
	// were asked for.
	Inferred []string
}

// NewEvaluator returns an evaluator routing every access through reg.
func NewEvaluator(reg *composite.Registry) *Evaluator {
	return &Evaluator{Registry: reg, Breaks: make(map[string]types.BreakTypes)}
}

// Evaluate implements function.Evaluator.
func (e *Evaluator) Evaluate(ctx context.Context, node *ast.Node, scope *composite.Composite, frames function.FrameManager) (function.Outcome, error) {
	e.Evaluated = append(e.Evaluated, node.String())
	return e.eval(ctx, node, scope)
}

func (e *Evaluator) eval(ctx context.Context, n *ast.Node, scope *composite.Composite) (function.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return function.Outcome{}, err
	}
	value := func(v any) (function.Outcome, error) {
		return function.Outcome{Mode: function.ModeValue, Value: v, Opcode: n}, nil
	}

	switch n.Opcode {
	case ast.OpLiteral:
		return value(n.Value)

	case ast.OpContext:
		return value(scope)

	case ast.OpStatic:
		return e.eval(ctx, n.Args[0], scope)

	case ast.OpDereference:
		of, err := e.eval(ctx, n.Args[0], scope)
		if err != nil || !of.IsValue() {
			return of, err
		}
		v, err := e.get(of.Value, n.Args[1].Value)
		if err != nil {
			return function.Outcome{}, err
		}
		return value(v)

	case ast.OpAssignment:
		of, err := e.eval(ctx, n.Args[0], scope)
		if err != nil || !of.IsValue() {
			return of, err
		}
		rvalue, err := e.eval(ctx, n.Args[2], scope)
		if err != nil || !rvalue.IsValue() {
			return rvalue, err
		}
		if err := e.Registry.Set(of.Value, n.Args[1].Value, rvalue.Value); err != nil {
			return function.Outcome{}, err
		}
		return value(nil)

	case ast.OpDynamicDereference:
		for _, area := range []string{"local", "argument", "outer"} {
			holder, _ := scope.Lookup(area)
			if c, ok := holder.(*composite.Composite); ok {
				if v, ok := c.Lookup(n.Reference); ok {
					return value(v)
				}
			}
		}
		return function.Outcome{}, fmt.Errorf("dynamic reference %q is unbound", n.Reference)

	case OpSequence:
		out := function.Outcome{Mode: function.ModeValue, Opcode: n}
		for _, arg := range n.Args {
			var err error
			if out, err = e.eval(ctx, arg, scope); err != nil || !out.IsValue() {
				return out, err
			}
		}
		return out, nil

	case OpBreak:
		out, err := e.eval(ctx, n.Args[0], scope)
		if err != nil || !out.IsValue() {
			return out, err
		}
		return function.Outcome{Mode: n.Reference, Value: out.Value, Opcode: n}, nil
	}
	return function.Outcome{}, fmt.Errorf("scripted evaluator cannot run %s", n.Opcode)
}

// get reads through the registry. Without runtime type information no
// types are attached to contexts, so contexts are read raw.
func (e *Evaluator) get(of, key any) (any, error) {
	if c, ok := of.(*composite.Composite); ok && !e.Registry.Capabilities().RuntimeTypeInformation {
		if v, ok := c.Lookup(key); ok {
			return v, nil
		}
	}
	return e.Registry.Get(of, key)
}

// BreakTypes implements function.Evaluator.
func (e *Evaluator) BreakTypes(ctx context.Context, node *ast.Node, scopeType *types.CompositeType, frames function.FrameManager) (types.BreakTypes, error) {
	key := node.String()
	e.Inferred = append(e.Inferred, key)
	if breaks, ok := e.Breaks[key]; ok {
		return breaks.Clone(), nil
	}
	breaks := types.BreakTypes{}
	if v := e.infer(node, scopeType, breaks); v != nil {
		breaks.Add(function.ModeValue, v, nil)
	}
	return breaks, nil
}

// infer returns the value type of n, or nil when n never completes
// normally, adding every other way it may break to breaks.
func (e *Evaluator) infer(n *ast.Node, scopeType *types.CompositeType, breaks types.BreakTypes) types.Type {
	switch n.Opcode {
	case ast.OpLiteral:
		return composite.TypeOf(n.Value)

	case ast.OpContext:
		return scopeType

	case ast.OpStatic:
		return e.infer(n.Args[0], scopeType, breaks)

	case ast.OpDereference:
		of := e.infer(n.Args[0], scopeType, breaks)
		if of == nil {
			return nil
		}
		getter, ok := governing(of, types.VerbGet, n.Args[1].Value)
		if !ok {
			breaks.Add(function.ModeException, ExceptionType, nil)
			return types.Any
		}
		if getter.KeyError || getter.TypeError {
			breaks.Add(function.ModeException, ExceptionType, nil)
		}
		return getter.ValueType

	case ast.OpAssignment:
		of := e.infer(n.Args[0], scopeType, breaks)
		rvalue := e.infer(n.Args[2], scopeType, breaks)
		if of == nil || rvalue == nil {
			return nil
		}
		setter, ok := governing(of, types.VerbSet, n.Args[1].Value)
		if !ok || setter.TypeError || setter.KeyError || !setter.ValueType.IsCopyableFrom(rvalue) {
			breaks.Add(function.ModeException, ExceptionType, nil)
		}
		return types.NoValue

	case ast.OpDynamicDereference:
		breaks.Add(function.ModeException, ExceptionType, nil)
		return types.Any

	case OpSequence:
		var last types.Type = types.NoValue
		for _, arg := range n.Args {
			if last = e.infer(arg, scopeType, breaks); last == nil {
				return nil
			}
		}
		return last

	case OpBreak:
		if out := e.infer(n.Args[0], scopeType, breaks); out != nil {
			breaks.Add(n.Reference, out, nil)
		}
		return nil
	}
	return types.Any
}

func governing(t types.Type, verb types.Verb, key any) (*types.MicroOpType, bool) {
	if c, ok := t.(types.ConstType); ok {
		if verb != types.VerbGet {
			return nil, false
		}
		t = c.Of
	}
	ct, ok := t.(*types.CompositeType)
	if !ok {
		return nil, false
	}
	return ct.Governing(verb, key)
}
