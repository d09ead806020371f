package function

import (
	"github.com/roach88/lockdown/internal/ast"
	"github.com/roach88/lockdown/internal/composite"
	"github.com/roach88/lockdown/internal/types"
)

// Context areas every function context exposes under fixed names.
const (
	areaPrepare  = "prepare"
	areaStatic   = "static"
	areaTypes    = "types"
	areaOuter    = "outer"
	areaArgument = "argument"
	areaLocal    = "local"
)

// reserved names are always read straight off the current context.
var reserved = map[string]bool{
	areaPrepare:  true,
	areaLocal:    true,
	areaArgument: true,
	areaOuter:    true,
	areaStatic:   true,
}

// binder resolves unbound references against a preparation context.
//
// Names are looked up in the typed areas first (argument, then local, then
// the same search through outer), then in the statics of this and every
// enclosing preparation context. A name found among the statics is read
// once at preparation.
type binder struct {
	scope     *composite.Composite
	scopeType *types.CompositeType
}

func newBinder(scope *composite.Composite, scopeType *types.CompositeType) *binder {
	return &binder{scope: scope, scopeType: scopeType}
}

// bind rewrites every unbound reference in n.
func (b *binder) bind(n *ast.Node) (*ast.Node, error) {
	return ast.Rewrite(n, b.rewrite)
}

func (b *binder) rewrite(n *ast.Node) (*ast.Node, error) {
	switch n.Opcode {
	case ast.OpUnboundDereference:
		of, static := b.resolve(n.Reference)
		if of == nil {
			return ast.DynamicDereference(n.Reference).At(n.Line, n.Column), nil
		}
		bound := ast.Dereference(of, n.Reference).At(n.Line, n.Column)
		if static {
			bound = ast.Static(bound)
		}
		return bound, nil

	case ast.OpUnboundAssignment:
		of, _ := b.resolve(n.Reference)
		if of == nil {
			return nil, preparationErrorf(ErrCodeUnboundAssignment, "nothing in scope provides %q (line %d, column %d)", n.Reference, n.Line, n.Column)
		}
		var rvalue *ast.Node
		if len(n.Args) > 0 {
			rvalue = n.Args[0]
		}
		return ast.Assignment(of, n.Reference, rvalue).At(n.Line, n.Column), nil
	}
	return n, nil
}

// resolve returns the node producing the value that holds reference, and
// whether that value is a static.
func (b *binder) resolve(reference string) (*ast.Node, bool) {
	if reserved[reference] {
		return ast.Context(), false
	}
	if of := searchTypes(reference, b.scopeType, nil); of != nil {
		return of, false
	}
	if of := searchStatics(reference, b.scope, nil); of != nil {
		return of, true
	}
	return nil, false
}

func searchTypes(reference string, scopeType *types.CompositeType, prefix []string) *ast.Node {
	if scopeType == nil {
		return nil
	}
	for _, area := range []string{areaArgument, areaLocal} {
		if areaHas(scopeType, area, reference) {
			return ast.ContextPath(append(prefix, area)...)
		}
	}
	outer, ok := exactGetter(scopeType, areaOuter)
	if !ok {
		return nil
	}
	outerType, ok := outer.ValueType.(*types.CompositeType)
	if !ok {
		return nil
	}
	return searchTypes(reference, outerType, append(prefix, areaOuter))
}

func areaHas(scopeType *types.CompositeType, area, reference string) bool {
	getter, ok := exactGetter(scopeType, area)
	if !ok {
		return false
	}
	areaType, ok := getter.ValueType.(*types.CompositeType)
	if !ok {
		return false
	}
	_, ok = exactGetter(areaType, reference)
	return ok
}

func exactGetter(t *types.CompositeType, key string) (*types.MicroOpType, bool) {
	return t.Op(types.OpKey{Verb: types.VerbGet, Key: key})
}

// searchStatics walks the prepare chain with raw lookups; the statics are
// read-only and were produced by preparation itself.
func searchStatics(reference string, scope *composite.Composite, prefix []string) *ast.Node {
	if scope == nil {
		return nil
	}
	if static, ok := lookupComposite(scope, areaStatic); ok {
		if _, ok := static.Lookup(reference); ok {
			return ast.ContextPath(append(prefix, areaStatic)...)
		}
	}
	prepare, ok := lookupComposite(scope, areaPrepare)
	if !ok {
		return nil
	}
	return searchStatics(reference, prepare, append(prefix, areaPrepare))
}

func lookupComposite(c *composite.Composite, key string) (*composite.Composite, bool) {
	if c.Kind() != types.KindObject {
		return nil, false
	}
	v, ok := c.Lookup(key)
	if !ok {
		return nil, false
	}
	child, ok := v.(*composite.Composite)
	return child, ok
}
