package composite

import (
	"fmt"
	"slices"

	"github.com/roach88/lockdown/internal/types"
)

// Manager owns the attached composite types of one value and mediates
// every typed access to it.
//
// Each attached type carries a count: it stays attached until every
// attachment of it has been removed. Attaching a type also attaches the
// types its getters promise to the nested composite values they reach,
// and those nested attachments are released when the type is detached or
// the value under the key changes.
type Manager struct {
	reg    *Registry
	value  *Composite
	handle uint64

	attached  []*types.CompositeType
	counts    map[*types.CompositeType]int
	effective *types.CompositeType

	bound *bindings
}

func newManager(r *Registry, c *Composite, handle uint64) *Manager {
	return &Manager{
		reg:    r,
		value:  c,
		handle: handle,
		counts: make(map[*types.CompositeType]int),
		bound:  newBindings(),
	}
}

// Value returns the managed value.
func (m *Manager) Value() *Composite {
	return m.value
}

// Handle returns the registry handle of the managed value.
func (m *Manager) Handle() uint64 {
	return m.handle
}

// Attached returns the attached types in attachment order.
func (m *Manager) Attached() []*types.CompositeType {
	return slices.Clone(m.attached)
}

// AttachedCount returns how many times t is currently attached.
func (m *Manager) AttachedCount(t *types.CompositeType) int {
	return m.counts[t]
}

// EffectiveType returns the merge of every attached type. A value with no
// attached type has the empty type of its kind.
func (m *Manager) EffectiveType() *types.CompositeType {
	if m.effective != nil {
		return m.effective
	}
	switch len(m.attached) {
	case 0:
		m.effective = types.NewCompositeType("", m.value.kind)
	case 1:
		m.effective = m.attached[0]
	default:
		merged := types.MergeComposite("", m.attached)
		if m.reg.caps.Debug {
			if conflicts := merged.Conflicts(); len(conflicts) > 0 {
				panic(types.Fatalf(types.FatalInconsistentEffective,
					"effective type of handle %d is inconsistent: %s", m.handle, conflicts[0]))
			}
		}
		m.effective = merged
	}
	return m.effective
}

// AddCompositeType attaches t, or bumps its count when it is already
// attached. The type must be self-consistent, fit the value's kind, agree
// with every attached type and, unless verified is set, be satisfied by
// the current data. On error no manager is changed.
func (m *Manager) AddCompositeType(t *types.CompositeType, verified bool) error {
	p := m.reg.newPlan()
	if err := p.attach(m.value, t, verified); err != nil {
		return err
	}
	m.increment(t, p)
	return nil
}

// RemoveCompositeType drops one attachment of t.
func (m *Manager) RemoveCompositeType(t *types.CompositeType) error {
	if m.counts[t] == 0 {
		return attachErrorf(ErrCodeNotAttached, "%s is not attached", t)
	}
	m.decrement(t)
	return nil
}

func (m *Manager) hasDefault(t *types.CompositeType) bool {
	_, ok := t.DefaultFactoryOp()
	return ok && m.value.defaultFactory != nil
}

func (m *Manager) increment(t *types.CompositeType, p *plan) {
	m.counts[t]++
	if m.counts[t] > 1 {
		return
	}
	m.attached = append(m.attached, t)
	m.effective = nil
	m.reg.logger.Debug("type attached",
		"handle", m.handle,
		"type", t.String(),
	)
	for _, key := range m.value.Keys() {
		m.bindSite(t, key, p)
	}
}

func (m *Manager) decrement(t *types.CompositeType) {
	n := m.counts[t]
	switch {
	case n == 0:
		m.reg.logger.Warn("detach of unattached type ignored",
			"handle", m.handle,
			"type", t.String(),
		)
		return
	case n > 1:
		m.counts[t] = n - 1
		m.reg.collectCycle(attachment{value: m.value, t: t})
		return
	}
	delete(m.counts, t)
	m.attached = slices.DeleteFunc(m.attached, func(a *types.CompositeType) bool { return a == t })
	m.effective = nil
	m.reg.logger.Debug("type detached",
		"handle", m.handle,
		"type", t.String(),
	)
	release(m.bound.take(func(k bindingKey) bool { return k.source == t }))
}

// bindSite performs the nested attachment p planned for key under t.
func (m *Manager) bindSite(t *types.CompositeType, key any, p *plan) {
	g, ok := t.Governing(types.VerbGet, key)
	if !ok {
		return
	}
	target, ok := p.targets[site{owner: m.value, source: t, op: g.OpKey(), key: key}]
	if !ok {
		return
	}
	v, _ := m.value.Lookup(key)
	child, ok := v.(*Composite)
	if !ok {
		panic(types.Fatalf(types.FatalInvariant, "planned binding under %v reaches a non-composite value", key))
	}
	m.bound.add(bindingKey{source: t, op: g.OpKey(), key: key}, child, target)
	m.reg.manager(child).increment(target, p)
}

// Get reads key through the governing getter of the effective type.
func (m *Manager) Get(key any) (any, error) {
	k, err := m.value.normalizeKey(key)
	if err != nil {
		return nil, invocationErrorf(ErrCodeMissingMicroOp, key, true, "%v", err)
	}
	eff := m.EffectiveType()
	g, ok := eff.Governing(types.VerbGet, k)
	if !ok {
		return nil, invocationErrorf(ErrCodeMissingMicroOp, k, true, "%s grants no getter for %v", eff, k)
	}

	v, present := m.value.Lookup(k)
	if !present {
		_, hasFactory := eff.DefaultFactoryOp()
		if !hasFactory || m.value.defaultFactory == nil {
			return nil, invocationErrorf(ErrCodeInvalidDereferenceKey, k, g.KeyError, "key %v is not present", k)
		}
		if v, err = Normalize(m.value.defaultFactory(k)); err != nil {
			return nil, types.Fatalf(types.FatalInvariant, "default factory: %v", err)
		}
	}

	if m.reg.caps.Debug || g.TypeError {
		if err := m.reg.conforms(g.ValueType, v); err != nil {
			if types.IsFatal(err) {
				return nil, err
			}
			if g.TypeError {
				return nil, invocationErrorf(ErrCodeInvalidDereferenceType, k, true, "%v", err)
			}
			return nil, types.Fatalf(types.FatalValueMismatch, "value under %v does not match %s: %v", k, g, err)
		}
	}
	return v, nil
}

// Set writes value under key. The value must satisfy the governing setter
// and every attached getter that will read it back.
func (m *Manager) Set(key, value any) error {
	k, err := m.value.normalizeKey(key)
	if err != nil {
		return invocationErrorf(ErrCodeMissingMicroOp, key, true, "%v", err)
	}
	v, err := Normalize(value)
	if err != nil {
		return types.Fatalf(types.FatalInvariant, "%v", err)
	}
	eff := m.EffectiveType()
	s, ok := eff.Governing(types.VerbSet, k)
	if !ok {
		return invocationErrorf(ErrCodeMissingMicroOp, k, true, "%s grants no setter for %v", eff, k)
	}
	if m.value.kind == types.KindList {
		if idx := k.(int64); idx < 0 || idx >= int64(m.value.Len()) {
			return invocationErrorf(ErrCodeInvalidDereferenceKey, k, s.KeyError,
				"index %d out of range for length %d", idx, m.value.Len())
		}
	}

	p := m.reg.newPlan()
	if err := p.check(s.ValueType, v); err != nil {
		return assignmentError(err, k, s.TypeError)
	}
	keys := []any{k}
	if err := p.relayout(m, keys, func(any) (any, bool) { return v, true }); err != nil {
		return assignmentError(err, k, s.TypeError)
	}

	old := m.bound.take(keyIn(keys))
	m.value.store(k, v)
	m.rebind(keys, p)
	release(old)
	return nil
}

// Delete removes key. On lists the following elements shift down, and
// every getter that will see a shifted element must accept it.
func (m *Manager) Delete(key any) error {
	k, err := m.value.normalizeKey(key)
	if err != nil {
		return invocationErrorf(ErrCodeMissingMicroOp, key, true, "%v", err)
	}
	eff := m.EffectiveType()
	d, ok := eff.Governing(types.VerbDelete, k)
	if !ok {
		return invocationErrorf(ErrCodeMissingMicroOp, k, true, "%s grants no deleter for %v", eff, k)
	}
	if _, present := m.value.Lookup(k); !present {
		return invocationErrorf(ErrCodeInvalidDereferenceKey, k, d.KeyError, "key %v is not present", k)
	}

	keys := []any{k}
	after := func(any) (any, bool) { return nil, false }
	if m.value.kind == types.KindList {
		keys = indexRange(k.(int64), int64(m.value.Len()))
		after = func(key any) (any, bool) { return m.value.Lookup(key.(int64) + 1) }
	}

	p := m.reg.newPlan()
	if err := p.relayout(m, keys, after); err != nil {
		if types.IsFatal(err) {
			return err
		}
		return invocationErrorf(ErrCodeInvalidDelete, k, d.KeyError, "%v", err)
	}

	old := m.bound.take(keyIn(keys))
	m.value.remove(k)
	m.rebind(keys, p)
	release(old)
	return nil
}

// Insert places value at index of a list, shifting the following elements
// up.
func (m *Manager) Insert(index, value any) error {
	if m.value.kind != types.KindList {
		return invocationErrorf(ErrCodeMissingMicroOp, index, true, "insert on a %s value", m.value.kind)
	}
	k, err := m.value.normalizeKey(index)
	if err != nil {
		return invocationErrorf(ErrCodeMissingMicroOp, index, true, "%v", err)
	}
	v, err := Normalize(value)
	if err != nil {
		return types.Fatalf(types.FatalInvariant, "%v", err)
	}
	eff := m.EffectiveType()
	ins, ok := eff.Governing(types.VerbInsert, k)
	if !ok {
		return invocationErrorf(ErrCodeMissingMicroOp, k, true, "%s grants no inserter for %v", eff, k)
	}
	idx, n := k.(int64), int64(m.value.Len())
	if idx < 0 || idx > n {
		return invocationErrorf(ErrCodeInvalidDereferenceKey, k, ins.KeyError,
			"index %d out of range for insertion into length %d", idx, n)
	}

	p := m.reg.newPlan()
	if err := p.check(ins.ValueType, v); err != nil {
		return assignmentError(err, k, ins.TypeError)
	}
	keys := indexRange(idx, n+1)
	after := func(key any) (any, bool) {
		j := key.(int64)
		if j == idx {
			return v, true
		}
		return m.value.Lookup(j - 1)
	}
	if err := p.relayout(m, keys, after); err != nil {
		return assignmentError(err, k, ins.TypeError)
	}

	old := m.bound.take(keyIn(keys))
	m.value.insert(idx, v)
	m.rebind(keys, p)
	release(old)
	return nil
}

func (m *Manager) rebind(keys []any, p *plan) {
	for _, t := range m.attached {
		for _, key := range keys {
			m.bindSite(t, key, p)
		}
	}
}

func assignmentError(err error, key any, tolerant bool) error {
	if types.IsFatal(err) {
		return err
	}
	return invocationErrorf(ErrCodeInvalidAssignmentType, key, tolerant, "%v", err)
}

// indexRange returns the list indices from..to-1.
func indexRange(from, to int64) []any {
	keys := make([]any, 0, max(to-from, 0))
	for i := from; i < to; i++ {
		keys = append(keys, i)
	}
	return keys
}

// conforms reports whether v may be handed out as t. A composite already
// carrying a matching member type conforms without a fresh check.
func (r *Registry) conforms(t types.Type, v any) error {
	if child, ok := v.(*Composite); ok && child.mgr != nil {
		members := []types.Type{t}
		if u, ok := unwrapConst(t).(types.OneOfType); ok {
			members = u.Types
		}
		for _, member := range members {
			if ct, ok := compositeMember(member); ok && child.mgr.counts[ct] > 0 {
				return nil
			}
		}
	}
	if err := r.newPlan().check(t, v); err != nil {
		return fmt.Errorf("%s rejects %s: %w", t, describeValue(v), err)
	}
	return nil
}

func unwrapConst(t types.Type) types.Type {
	if c, ok := t.(types.ConstType); ok {
		return c.Of
	}
	return t
}
