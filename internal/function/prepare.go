package function

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/lockdown/internal/ast"
	"github.com/roach88/lockdown/internal/composite"
	"github.com/roach88/lockdown/internal/descriptor"
	"github.com/roach88/lockdown/internal/host"
	"github.com/roach88/lockdown/internal/types"
)

// Data is a function as the parser hands it over.
type Data struct {
	// Static is evaluated once, at preparation, and yields the type
	// descriptors of the function: argument, outer, local and break_types.
	Static *ast.Node

	// LocalInitializer produces the local value on every invocation. A nil
	// initializer leaves local as NoValue.
	LocalInitializer *ast.Node

	// Code is the body.
	Code *ast.Node
}

// Option configures Prepare.
type Option func(*preparer)

// WithSuggestedArgument sets the type inferred arguments are filled in
// from, typically the type of the value the caller is about to pass.
func WithSuggestedArgument(t types.Type) Option {
	return func(p *preparer) { p.suggestedArgument = t }
}

// WithSuggestedOuter sets the type inferred outer types are filled in
// from. Default: NoValue.
func WithSuggestedOuter(t types.Type) Option {
	return func(p *preparer) { p.suggestedOuter = t }
}

// WithRegistry sets the registry the function's contexts are managed by.
// Default: a fresh registry with host.Default() capabilities.
func WithRegistry(reg *composite.Registry) Option {
	return func(p *preparer) { p.reg = reg }
}

// WithLogger sets the logger used for preparation and invocation events.
// Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *preparer) { p.logger = logger }
}

// readonlyContext is attached to every preparation context.
var readonlyContext = types.ReadonlyDefaultObjectType()

type preparer struct {
	reg               *composite.Registry
	logger            *slog.Logger
	suggestedArgument types.Type
	suggestedOuter    types.Type

	ev     Evaluator
	frames FrameManager
	outer  *composite.Composite
}

// prepareContext is the value stored under "prepare".
func (p *preparer) prepareContext() any {
	if p.outer == nil {
		return nil
	}
	return p.outer
}

// Prepare checks data against its declared contracts and returns the
// prepared function. outer is the preparation context of the enclosing
// function, or nil at top level.
//
// Every failure caused by the function's author is a PreparationError.
// Fatal errors and evaluator failures are returned as they are.
func Prepare(ctx context.Context, data Data, outer *composite.Composite, ev Evaluator, frames FrameManager, opts ...Option) (*OpenFunction, error) {
	p := &preparer{
		logger:         slog.Default(),
		suggestedOuter: types.NoValue,
		ev:             ev,
		frames:         frames,
		outer:          outer,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.reg == nil {
		p.reg = composite.NewRegistry(host.Default(), composite.WithLogger(p.logger))
	}

	if data.Code == nil {
		return nil, preparationErrorf(ErrCodeMissingCode, "function has no code")
	}

	static, err := p.bindStatics(ctx, data.Static)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("preparation step", "step", "statics_bound")

	sig, err := readSignature(static)
	if err != nil {
		return nil, err
	}

	argumentType, err := resolveType(sig.argument, p.suggestedArgument, ErrCodeUnresolvedArgument, "argument")
	if err != nil {
		return nil, err
	}
	outerType, err := resolveType(sig.outer, p.suggestedOuter, ErrCodeUnresolvedOuter, "outer")
	if err != nil {
		return nil, err
	}
	p.logger.Debug("preparation step", "step", "argument_outer_resolved",
		"argument", argumentType,
		"outer", outerType,
	)

	localScope := p.scope(static, outerType, argumentType, nil)
	localScopeType := types.ObjectTypeOf([]types.Property{
		{Name: areaOuter, Type: outerType},
		{Name: areaArgument, Type: argumentType},
	}, types.Named("local-prepare-context"), types.WithWildcard(types.Any))

	localInitializer, localType, localBreaks, err := p.resolveLocal(ctx, data.LocalInitializer, sig.local, localScope, localScopeType)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("preparation step", "step", "local_resolved", "local", localType)

	codeScope := p.scope(static, outerType, argumentType, localType)
	codeScopeType := types.ObjectTypeOf([]types.Property{
		{Name: areaOuter, Type: outerType},
		{Name: areaArgument, Type: argumentType},
		{Name: areaLocal, Type: localType},
	}, types.Named("code-prepare-context"), types.WithWildcard(types.Any))
	if conflicts := codeScopeType.Conflicts(); len(conflicts) > 0 {
		return nil, preparationErrorf(ErrCodeInconsistentType, "code context %s is not self-consistent: %s", codeScopeType, conflicts[0])
	}

	code, err := newBinder(codeScope, codeScopeType).bind(data.Code)
	if err != nil {
		return nil, err
	}
	codeBreaks, err := p.ev.BreakTypes(ctx, code, codeScopeType, p.frames)
	if err != nil {
		return nil, &PreparationError{Code: ErrCodeEvaluationFailed, Message: "cannot infer the break types of the code", Err: err}
	}

	breaks, err := MatchBreakTypes(sig.breaks, localBreaks, codeBreaks)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("preparation step", "step", "code_checked", "breaks", breaks)

	return newOpenFunction(p, static, argumentType, outerType, localType, localInitializer, code, breaks), nil
}

// bindStatics evaluates the static sub-tree in a context that only exposes
// the enclosing preparation context.
func (p *preparer) bindStatics(ctx context.Context, node *ast.Node) (*composite.Composite, error) {
	if node == nil {
		static := composite.NewObject()
		if err := p.attach(static, readonlyContext); err != nil {
			return nil, err
		}
		return static, nil
	}

	scope := composite.NewObject().Put(areaPrepare, p.prepareContext())
	if err := p.attach(scope, readonlyContext); err != nil {
		return nil, err
	}
	bound, err := newBinder(scope, p.reg.ManagerFor(scope).EffectiveType()).bind(node)
	if err != nil {
		return nil, err
	}

	out, err := p.ev.Evaluate(ctx, bound, scope, p.frames)
	if err != nil {
		if types.IsFatal(err) {
			return nil, err
		}
		return nil, &PreparationError{Code: ErrCodeEvaluationFailed, Message: "cannot evaluate statics", Err: err}
	}
	if !out.IsValue() {
		return nil, &PreparationError{Code: ErrCodeEvaluationFailed, Message: fmt.Sprintf("statics broke out with mode %q", out.Mode), Err: out.Cause}
	}
	static, ok := out.Value.(*composite.Composite)
	if !ok || static.Kind() != types.KindObject {
		return nil, preparationErrorf(ErrCodeInvalidStatic, "statics must evaluate to an object, got %v", out.Value)
	}
	if err := p.attach(static, readonlyContext); err != nil {
		return nil, err
	}
	return static, nil
}

func (p *preparer) attach(c *composite.Composite, t *types.CompositeType) error {
	if err := p.reg.ManagerFor(c).AddCompositeType(t, false); err != nil {
		if types.IsFatal(err) {
			return err
		}
		return types.Fatalf(types.FatalInvariant, "cannot attach %s to a preparation context: %v", t, err)
	}
	return nil
}

// scope builds a preparation context. A nil localType leaves local out of
// the types area.
func (p *preparer) scope(static *composite.Composite, outerType, argumentType, localType types.Type) *composite.Composite {
	declared := composite.NewObject().
		Put(areaOuter, outerType).
		Put(areaArgument, argumentType)
	if localType != nil {
		declared.Put(areaLocal, localType)
	}
	return composite.NewObject().
		Put(areaPrepare, p.prepareContext()).
		Put(areaStatic, static).
		Put(areaTypes, declared)
}

func (p *preparer) resolveLocal(ctx context.Context, node *ast.Node, declared types.Type, scope *composite.Composite, scopeType *types.CompositeType) (*ast.Node, types.Type, types.BreakTypes, error) {
	if node == nil {
		localType, err := resolveType(declared, types.NoValue, ErrCodeUnresolvedLocal, "local")
		if err != nil {
			return nil, nil, nil, err
		}
		if !localType.IsCopyableFrom(types.NoValue) {
			return nil, nil, nil, preparationErrorf(ErrCodeInvalidLocalType, "local type %s needs an initializer", localType)
		}
		return nil, localType, types.BreakTypes{}, nil
	}

	bound, err := newBinder(scope, scopeType).bind(node)
	if err != nil {
		return nil, nil, nil, err
	}
	breaks, err := p.ev.BreakTypes(ctx, bound, scopeType, p.frames)
	if err != nil {
		return nil, nil, nil, &PreparationError{Code: ErrCodeEvaluationFailed, Message: "cannot infer the break types of the local initializer", Err: err}
	}

	localType, others, err := ResolveLocalType(declared, breaks)
	if err != nil {
		return nil, nil, nil, err
	}
	return bound, localType, others, nil
}

// ResolveLocalType derives the local type from its declaration and the
// break types of the local initializer. The initializer's value types,
// merged, fill the inferred parts of declared and must be accepted by the
// result. The initializer's other breaks are returned for matching against
// the declared break types.
func ResolveLocalType(declared types.Type, observed types.BreakTypes) (types.Type, types.BreakTypes, error) {
	var outs []types.Type
	for _, bt := range observed[ModeValue] {
		outs = append(outs, bt.Out)
	}
	if len(outs) == 0 {
		return nil, nil, preparationErrorf(ErrCodeMissingLocalType, "local initializer never produces a value")
	}
	actual := types.MergeTypes(outs, types.MergeSuper)

	localType, err := resolveType(declared, actual, ErrCodeUnresolvedLocal, "local")
	if err != nil {
		return nil, nil, err
	}
	if !localType.IsCopyableFrom(actual) {
		return nil, nil, preparationErrorf(ErrCodeInvalidLocalType, "local type %s does not accept %s", localType, actual)
	}

	others := observed.Clone()
	delete(others, ModeValue)
	return localType, others, nil
}

// resolveType fills the inferred parts of declared in from suggested.
func resolveType(declared, suggested types.Type, code PreparationErrorCode, area string) (types.Type, error) {
	t, err := types.PrepareLHSType(declared, suggested)
	if err != nil {
		if types.IsDanglingInference(err) {
			return nil, &PreparationError{
				Code:    code,
				Message: fmt.Sprintf("cannot infer %s type %s from %s", area, declared, describeSuggestion(suggested)),
				Err:     err,
			}
		}
		return nil, err
	}
	if c, ok := t.(*types.CompositeType); ok {
		if conflicts := c.Conflicts(); len(conflicts) > 0 {
			return nil, preparationErrorf(ErrCodeInconsistentType, "%s type %s is not self-consistent: %s", area, c, conflicts[0])
		}
	}
	return t, nil
}

func describeSuggestion(t types.Type) string {
	if t == nil {
		return "nothing"
	}
	return t.String()
}

// signature holds the declared types read off the statics.
type signature struct {
	argument types.Type
	outer    types.Type
	local    types.Type
	breaks   types.BreakTypes
}

// readSignature turns the static descriptors into types. An absent
// argument is NoValue; an absent outer or local is inferred.
func readSignature(static *composite.Composite) (signature, error) {
	var sig signature
	var err error
	if sig.argument, err = staticType(static, areaArgument, types.NoValue); err != nil {
		return sig, err
	}
	if sig.outer, err = staticType(static, areaOuter, types.Inferred); err != nil {
		return sig, err
	}
	if sig.local, err = staticType(static, areaLocal, types.Inferred); err != nil {
		return sig, err
	}

	raw, ok := static.Lookup("break_types")
	if !ok {
		sig.breaks = types.BreakTypes{}
		return sig, nil
	}
	d, err := composite.Plain(raw)
	if err != nil {
		return sig, &PreparationError{Code: ErrCodeInvalidStatic, Message: "break_types", Err: err}
	}
	if sig.breaks, err = descriptor.EnrichBreakTypes(d); err != nil {
		return sig, &PreparationError{Code: ErrCodeInvalidStatic, Message: "break_types", Err: err}
	}
	return sig, nil
}

func staticType(static *composite.Composite, key string, absent types.Type) (types.Type, error) {
	raw, ok := static.Lookup(key)
	if !ok || raw == nil {
		return absent, nil
	}
	if t, ok := raw.(types.Type); ok {
		return t, nil
	}
	d, err := composite.Plain(raw)
	if err != nil {
		return nil, &PreparationError{Code: ErrCodeInvalidStatic, Message: key, Err: err}
	}
	t, err := descriptor.EnrichType(d)
	if err != nil {
		return nil, &PreparationError{Code: ErrCodeInvalidStatic, Message: key, Err: err}
	}
	return t, nil
}
