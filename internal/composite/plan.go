package composite

import (
	"errors"
	"fmt"

	"github.com/roach88/lockdown/internal/types"
)

// site is one place a nested value is reached: owner's key, through a
// getter of an attached type.
type site struct {
	owner  *Composite
	source *types.CompositeType
	op     types.OpKey
	key    any
}

// plan collects every attachment and nested binding one operation would
// perform, checking them all before any manager changes. A value reached
// along several paths is checked against every type headed its way.
type plan struct {
	reg     *Registry
	pending map[*Composite][]*types.CompositeType
	targets map[site]*types.CompositeType
	log     []planEntry
}

// planEntry undoes one plan step: a pending attachment when site is nil,
// a recorded bind target otherwise.
type planEntry struct {
	owner *Composite
	site  *site
}

func (r *Registry) newPlan() *plan {
	return &plan{
		reg:     r,
		pending: make(map[*Composite][]*types.CompositeType),
		targets: make(map[site]*types.CompositeType),
	}
}

func (p *plan) isPending(c *Composite, t *types.CompositeType) bool {
	for _, pt := range p.pending[c] {
		if pt == t {
			return true
		}
	}
	return false
}

func (p *plan) markPending(c *Composite, t *types.CompositeType) {
	p.pending[c] = append(p.pending[c], t)
	p.log = append(p.log, planEntry{owner: c})
}

func (p *plan) setTarget(s site, target *types.CompositeType) {
	p.targets[s] = target
	p.log = append(p.log, planEntry{site: &s})
}

func (p *plan) rollback(mark int) {
	for i := len(p.log) - 1; i >= mark; i-- {
		e := p.log[i]
		if e.site != nil {
			delete(p.targets, *e.site)
			continue
		}
		ps := p.pending[e.owner]
		p.pending[e.owner] = ps[:len(ps)-1]
	}
	p.log = p.log[:mark]
}

// attach plans attaching t to c. With verified set, the presence and
// scalar type checks of c's own getters are skipped; nested values are
// always checked since their bind targets depend on them.
func (p *plan) attach(c *Composite, t *types.CompositeType, verified bool) error {
	m := p.reg.manager(c)
	if m.counts[t] > 0 || p.isPending(c, t) {
		return nil
	}
	if err := p.reg.caps.CheckTolerance(t); err != nil {
		return err
	}
	if conflicts := t.Conflicts(); len(conflicts) > 0 {
		return &AttachError{
			Code:      ErrCodeInconsistentType,
			Message:   fmt.Sprintf("%s is not self-consistent", t),
			Conflicts: conflicts,
		}
	}
	if !t.Kind.Accepts(c.kind) {
		return attachErrorf(ErrCodeWrongKind, "%s cannot be attached to a %s value", t, c.kind)
	}
	for _, others := range [][]*types.CompositeType{m.attached, p.pending[c]} {
		for _, other := range others {
			if conflicts := t.ConflictsWith(other); len(conflicts) > 0 {
				return &AttachError{
					Code:      ErrCodeIncompatibleType,
					Message:   fmt.Sprintf("%s conflicts with attached %s", t, other),
					Conflicts: conflicts,
				}
			}
		}
	}

	mark := len(p.log)
	p.markPending(c, t)
	if err := p.satisfy(c, t, verified); err != nil {
		p.rollback(mark)
		return err
	}
	return nil
}

func (p *plan) satisfy(c *Composite, t *types.CompositeType, verified bool) error {
	hasDefault := c.mgr.hasDefault(t)
	if !verified {
		for _, op := range t.Ops() {
			if op.Verb != types.VerbGet || op.Wildcard || op.KeyError {
				continue
			}
			if _, ok := c.Lookup(op.Key); !ok && !hasDefault {
				return attachErrorf(ErrCodeUnsatisfiedType, "%s requires key %v", t, op.Key)
			}
		}
	}

	for _, key := range c.Keys() {
		g, ok := t.Governing(types.VerbGet, key)
		if !ok {
			continue
		}
		v, _ := c.Lookup(key)
		target, err := p.bindTarget(g.ValueType, v)
		if err != nil {
			if types.IsFatal(err) {
				return err
			}
			if g.TypeError || verified {
				continue
			}
			return &AttachError{
				Code:    ErrCodeUnsatisfiedType,
				Message: fmt.Sprintf("value under %v does not satisfy %s", key, g),
				Err:     err,
			}
		}
		if target != nil {
			p.setTarget(site{owner: c, source: t, op: g.OpKey(), key: key}, target)
		}
	}
	return nil
}

// bindTarget decides which composite type a value reached through a getter
// of type t gets attached. Scalars are checked and bind nothing; a union
// containing Any binds nothing; otherwise the first composite member the
// value can carry wins.
func (p *plan) bindTarget(t types.Type, v any) (*types.CompositeType, error) {
	t = unwrapConst(t)
	child, ok := v.(*Composite)
	if !ok {
		if actual := typeOfScalar(v); !t.IsCopyableFrom(actual) {
			return nil, fmt.Errorf("%s does not accept %s", t, actual)
		}
		return nil, nil
	}
	if types.IsAny(t) {
		return nil, nil
	}

	switch x := t.(type) {
	case *types.CompositeType:
		if err := p.attach(child, x, false); err != nil {
			return nil, err
		}
		return x, nil
	case types.OneOfType:
		var errs []error
		for _, member := range x.Types {
			ct, ok := compositeMember(member)
			if !ok {
				continue
			}
			mark := len(p.log)
			err := p.attach(child, ct, false)
			if err == nil {
				return ct, nil
			}
			if types.IsFatal(err) {
				return nil, err
			}
			p.rollback(mark)
			errs = append(errs, err)
		}
		return nil, fmt.Errorf("no member of %s can be attached: %w", t, errors.Join(errs...))
	}
	return nil, fmt.Errorf("%s does not accept a composite value", t)
}

// check reports whether v could be carried under t without recording
// anything in the plan.
func (p *plan) check(t types.Type, v any) error {
	mark := len(p.log)
	_, err := p.bindTarget(t, v)
	p.rollback(mark)
	return err
}

// relayout plans the bindings of owner's keys after a mutation. after
// reports the value each key will hold.
func (p *plan) relayout(m *Manager, keys []any, after func(key any) (any, bool)) error {
	for _, t := range m.attached {
		hasDefault := m.hasDefault(t)
		for _, key := range keys {
			g, ok := t.Governing(types.VerbGet, key)
			if !ok {
				continue
			}
			v, present := after(key)
			if !present {
				if !g.KeyError && !hasDefault {
					return fmt.Errorf("%s of %s would find key %v missing", g, t, key)
				}
				continue
			}
			target, err := p.bindTarget(g.ValueType, v)
			if err != nil {
				if types.IsFatal(err) || !g.TypeError {
					return fmt.Errorf("%s of %s under %v: %w", g, t, key, err)
				}
				continue
			}
			if target != nil {
				p.setTarget(site{owner: m.value, source: t, op: g.OpKey(), key: key}, target)
			}
		}
	}
	return nil
}

func compositeMember(t types.Type) (*types.CompositeType, bool) {
	ct, ok := unwrapConst(t).(*types.CompositeType)
	return ct, ok
}
