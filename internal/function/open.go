package function

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/lockdown/internal/ast"
	"github.com/roach88/lockdown/internal/composite"
	"github.com/roach88/lockdown/internal/types"
)

// Function is a runtime value that can be invoked with one argument.
type Function interface {
	composite.Typed
	Invoke(ctx context.Context, argument any, frames FrameManager) (Outcome, error)
}

// OpenFunction is a prepared function still waiting for its outer context.
//
// It is immutable once prepared; closing it any number of times is safe.
type OpenFunction struct {
	reg    *composite.Registry
	logger *slog.Logger
	ev     Evaluator

	prepareContext any
	static         *composite.Composite
	typesContext   *composite.Composite

	argumentType types.Type
	outerType    types.Type
	localType    types.Type
	breaks       types.BreakTypes

	localInitializer *ast.Node
	code             *ast.Node

	initContextType *types.CompositeType
	execContextType *types.CompositeType
}

func newOpenFunction(p *preparer, static *composite.Composite, argumentType, outerType, localType types.Type, localInitializer, code *ast.Node, breaks types.BreakTypes) *OpenFunction {
	return &OpenFunction{
		reg:            p.reg,
		logger:         p.logger,
		ev:             p.ev,
		prepareContext: p.prepareContext(),
		static:         static,
		typesContext: composite.NewObject().
			Put(areaOuter, outerType).
			Put(areaArgument, argumentType),
		argumentType:     argumentType,
		outerType:        outerType,
		localType:        localType,
		breaks:           breaks,
		localInitializer: localInitializer,
		code:             code,
		initContextType: types.ObjectTypeOf([]types.Property{
			{Name: areaOuter, Type: outerType},
			{Name: areaArgument, Type: argumentType},
		}, types.Named("local-initialization-context"), types.WithWildcard(types.Any)),
		execContextType: types.ObjectTypeOf([]types.Property{
			{Name: areaOuter, Type: outerType},
			{Name: areaArgument, Type: argumentType},
			{Name: areaLocal, Type: localType},
		}, types.Named("code-execution-context"), types.WithWildcard(types.Any)),
	}
}

// Type returns the open function type.
func (f *OpenFunction) Type() *types.OpenFunctionType {
	return &types.OpenFunctionType{Argument: f.argumentType, Outer: f.outerType, Breaks: f.breaks}
}

// LocalType returns the prepared local type.
func (f *OpenFunction) LocalType() types.Type {
	return f.localType
}

// Code returns the bound body.
func (f *OpenFunction) Code() *ast.Node {
	return f.code
}

// Restartable reports whether the function may suspend and be resumed.
func (f *OpenFunction) Restartable() bool {
	return f.breaks.Restartable()
}

// Transpilable reports whether the function may be lowered to native code.
// Only functions that never suspend qualify.
func (f *OpenFunction) Transpilable() bool {
	return !f.Restartable()
}

// Close binds the function to outer. With the debug capability outer is
// checked against the outer type first; a mismatch is fatal.
func (f *OpenFunction) Close(outer any) (*ClosedFunction, error) {
	v, err := composite.Normalize(outer)
	if err != nil {
		return nil, types.Fatalf(types.FatalInvariant, "close over %v: %v", outer, err)
	}
	if f.reg.Capabilities().Debug {
		if err := f.reg.CheckValue(f.outerType, v); err != nil {
			return nil, types.Fatalf(types.FatalValueMismatch, "outer does not match %s: %v", f.outerType, err)
		}
	}
	return &ClosedFunction{open: f, outer: v}, nil
}

// ClosedFunction is a prepared function bound to its outer context.
type ClosedFunction struct {
	open  *OpenFunction
	outer any
}

// Type returns the closed function type.
func (f *ClosedFunction) Type() types.Type {
	return &types.ClosedFunctionType{Argument: f.open.argumentType, Breaks: f.open.breaks}
}

// Open returns the function f was closed from.
func (f *ClosedFunction) Open() *OpenFunction {
	return f.open
}

// Invoke runs the function with argument.
//
// The outcome is whatever the local initializer or the body broke out
// with. A tolerant invocation fault raised while evaluating becomes an
// exception outcome; an intolerable one is fatal.
func (f *ClosedFunction) Invoke(ctx context.Context, argument any, frames FrameManager) (Outcome, error) {
	o := f.open
	caps := o.reg.Capabilities()

	arg, err := composite.Normalize(argument)
	if err != nil {
		return Outcome{}, types.Fatalf(types.FatalInvariant, "argument %v: %v", argument, err)
	}
	if caps.Debug {
		if err := o.reg.CheckValue(o.argumentType, arg); err != nil {
			return Outcome{}, types.Fatalf(types.FatalValueMismatch, "argument does not match %s: %v", o.argumentType, err)
		}
	}

	frame, release := frames.Acquire(f)
	defer release()

	v, err := frame.Step("local_initialization_context", func() (any, error) {
		scope := composite.NewObject().
			Put(areaPrepare, o.prepareContext).
			Put(areaOuter, f.outer).
			Put(areaArgument, arg).
			Put(areaStatic, o.static).
			Put(areaTypes, o.typesContext)
		if caps.RuntimeTypeInformation {
			if err := o.attachContext(scope, o.initContextType); err != nil {
				return nil, err
			}
		}
		return scope, nil
	})
	if err != nil {
		return Outcome{}, err
	}
	initScope := v.(*composite.Composite)

	v, err = frame.Step("local", func() (any, error) {
		return o.evaluate(ctx, o.localInitializer, initScope, frames)
	})
	if derr := o.detachContext(frame, "remove_local_initialization_context_type", initScope, o.initContextType); derr != nil && err == nil {
		err = derr
	}
	if err != nil {
		return o.fault(err)
	}
	local := v.(Outcome)
	if !local.IsValue() {
		return local, nil
	}

	if caps.Debug {
		if err := o.reg.CheckValue(o.localType, local.Value); err != nil {
			return Outcome{}, types.Fatalf(types.FatalValueMismatch, "local does not match %s: %v", o.localType, err)
		}
	}

	v, err = frame.Step("code_execution_context", func() (any, error) {
		scope := composite.NewObject().
			Put(areaPrepare, o.prepareContext).
			Put(areaOuter, f.outer).
			Put(areaArgument, arg).
			Put(areaStatic, o.static).
			Put(areaLocal, local.Value).
			Put(areaTypes, o.typesContext)
		if caps.RuntimeTypeInformation {
			if err := o.attachContext(scope, o.execContextType); err != nil {
				return nil, err
			}
		}
		return scope, nil
	})
	if err != nil {
		return Outcome{}, err
	}
	execScope := v.(*composite.Composite)

	v, err = frame.Step("code", func() (any, error) {
		return o.evaluate(ctx, o.code, execScope, frames)
	})
	if derr := o.detachContext(frame, "remove_code_execution_context_type", execScope, o.execContextType); derr != nil && err == nil {
		err = derr
	}
	if err != nil {
		return o.fault(err)
	}
	return v.(Outcome), nil
}

// attachContext gives an invocation context its type. Preparation proved
// the context satisfies it, so any failure is fatal.
func (f *OpenFunction) attachContext(scope *composite.Composite, t *types.CompositeType) error {
	if err := f.reg.ManagerFor(scope).AddCompositeType(t, false); err != nil {
		if types.IsFatal(err) {
			return err
		}
		return types.Fatalf(types.FatalInvariant, "attach %s: %v", t.Name, err)
	}
	return nil
}

// detachContext removes the type attachContext gave scope. It runs on
// every exit of the step evaluated in scope, so the argument and outer
// values bound through the context are released before Invoke returns.
func (f *OpenFunction) detachContext(frame Frame, label string, scope *composite.Composite, t *types.CompositeType) error {
	if !f.reg.Capabilities().RuntimeTypeInformation {
		return nil
	}
	if _, err := frame.Step(label, func() (any, error) {
		return nil, f.reg.ManagerFor(scope).RemoveCompositeType(t)
	}); err != nil {
		return types.Fatalf(types.FatalInvariant, "detach %s: %v", t.Name, err)
	}
	return nil
}

func (f *OpenFunction) evaluate(ctx context.Context, node *ast.Node, scope *composite.Composite, frames FrameManager) (Outcome, error) {
	if node == nil {
		return Outcome{Mode: ModeValue}, nil
	}
	return f.ev.Evaluate(ctx, node, scope, frames)
}

// fault turns an error escaping the evaluator into the function's result.
func (f *OpenFunction) fault(err error) (Outcome, error) {
	if types.IsFatal(err) {
		return Outcome{}, err
	}
	var ie *composite.InvocationError
	if !errors.As(err, &ie) {
		return Outcome{}, fmt.Errorf("invoke: %w", err)
	}
	if !ie.Tolerant {
		return Outcome{}, types.Fatalf(types.FatalInvariant, "intolerable fault escaped a prepared function: %v", err)
	}
	f.logger.Warn("invocation fault became an exception",
		"code", ie.Code,
		"key", ie.Key,
	)
	return Outcome{
		Mode: ModeException,
		Value: composite.NewObject().
			Put("type", string(ie.Code)).
			Put("message", ie.Message),
		Cause: err,
	}, nil
}
