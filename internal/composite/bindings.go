package composite

import (
	"weak"

	"github.com/roach88/lockdown/internal/types"
)

// bindingKey names one nested contribution: the attached type and getter
// through which a child value was reached, and the key it sits under.
type bindingKey struct {
	source *types.CompositeType
	op     types.OpKey
	key    any
}

// binding records the type attached to a child on behalf of its parent.
// The child is held weakly; the parent's storage keeps it alive.
type binding struct {
	child  weak.Pointer[Composite]
	target *types.CompositeType
}

// bindings is the set of nested contributions one manager made. It
// outlives its manager until the registry releases it.
type bindings struct {
	entries map[bindingKey]binding
}

func newBindings() *bindings {
	return &bindings{entries: make(map[bindingKey]binding)}
}

func (b *bindings) add(k bindingKey, child *Composite, target *types.CompositeType) {
	if _, dup := b.entries[k]; dup {
		panic(types.Fatalf(types.FatalInvariant, "duplicate binding %s under %v", k.op, k.key))
	}
	b.entries[k] = binding{child: weak.Make(child), target: target}
}

// take removes and returns the bindings whose key matches.
func (b *bindings) take(match func(bindingKey) bool) []binding {
	var out []binding
	for k, bd := range b.entries {
		if match(k) {
			out = append(out, bd)
			delete(b.entries, k)
		}
	}
	return out
}

// releaseAll drops every binding and returns how many there were.
func (b *bindings) releaseAll() int {
	all := b.take(func(bindingKey) bool { return true })
	release(all)
	return len(all)
}

func (b *bindings) len() int {
	return len(b.entries)
}

// release decrements the children's counts for each binding whose child is
// still alive.
func release(bs []binding) {
	for _, bd := range bs {
		if child := bd.child.Value(); child != nil && child.mgr != nil {
			child.mgr.decrement(bd.target)
		}
	}
}

func keyIn(keys []any) func(bindingKey) bool {
	return func(k bindingKey) bool {
		for _, key := range keys {
			if k.key == key {
				return true
			}
		}
		return false
	}
}
