package composite

import (
	"slices"

	"github.com/roach88/lockdown/internal/types"
)

// attachment is one type attached to one value: a node of the binding
// graph. Its count is held by external AddCompositeType calls and by the
// nested bindings of other attachments.
type attachment struct {
	value *Composite
	t     *types.CompositeType
}

func (a attachment) count() int {
	if a.value.mgr == nil {
		return 0
	}
	return a.value.mgr.counts[a.t]
}

// edges returns the live attachments a holds through its nested bindings.
func (a attachment) edges() []attachment {
	var out []attachment
	for k, bd := range a.value.mgr.bound.entries {
		if k.source != a.t {
			continue
		}
		child := bd.child.Value()
		if child == nil {
			continue
		}
		if e := (attachment{value: child, t: bd.target}); e.count() > 0 {
			out = append(out, e)
		}
	}
	return out
}

// collectCycle detaches the attachments reachable from root that are only
// held by each other. A value reaching itself through the getters of the
// attached type (directly or through other values) holds a count on its
// own attachment, so dropping the last outside attachment leaves a count
// that no detach will ever release.
//
// Every attachment reachable from root is counted for how many of its
// holders lie inside the reachable set. One held more often than that is
// held from outside, as is everything it reaches; the rest is a garbage
// cycle.
func (r *Registry) collectCycle(root attachment) {
	reach := map[attachment]bool{root: true}
	internal := make(map[attachment]int)
	queue := []attachment{root}
	for len(queue) > 0 {
		a := queue[0]
		queue = queue[1:]
		for _, e := range a.edges() {
			internal[e]++
			if !reach[e] {
				reach[e] = true
				queue = append(queue, e)
			}
		}
	}

	live := make(map[attachment]bool)
	for a := range reach {
		if a.count() > internal[a] {
			live[a] = true
			queue = append(queue, a)
		}
	}
	for len(queue) > 0 {
		a := queue[0]
		queue = queue[1:]
		for _, e := range a.edges() {
			if !live[e] {
				live[e] = true
				queue = append(queue, e)
			}
		}
	}
	if live[root] {
		return
	}

	var released []binding
	for a := range reach {
		if live[a] {
			continue
		}
		m := a.value.mgr
		delete(m.counts, a.t)
		m.attached = slices.DeleteFunc(m.attached, func(t *types.CompositeType) bool { return t == a.t })
		m.effective = nil
		r.logger.Debug("type detached",
			"handle", m.handle,
			"type", a.t.String(),
			"cycle", true,
		)
		released = append(released, m.bound.take(func(k bindingKey) bool { return k.source == a.t })...)
	}

	for _, bd := range released {
		child := bd.child.Value()
		if child == nil || child.mgr == nil {
			continue
		}
		if e := (attachment{value: child, t: bd.target}); reach[e] && !live[e] {
			continue
		}
		child.mgr.decrement(bd.target)
	}
}
