package types

import (
	"fmt"
	"sort"
)

// Conflict describes micro-ops whose joint promise the data cannot keep.
type Conflict struct {
	Op     *MicroOpType
	Other  *MicroOpType // nil for single-op conflicts
	Reason string
}

// String renders the conflict for diagnostics.
func (c Conflict) String() string {
	if c.Other == nil {
		return fmt.Sprintf("%s: %s", c.Op, c.Reason)
	}
	return fmt.Sprintf("%s vs %s: %s", c.Op, c.Other, c.Reason)
}

// Conflicts returns every consistency violation inside c.
func (c *CompositeType) Conflicts() []Conflict {
	return newView(c).conflicts()
}

// IsSelfConsistent reports whether no two micro-ops of c jointly promise
// something the data cannot guarantee.
func (c *CompositeType) IsSelfConsistent() bool {
	return len(c.Conflicts()) == 0
}

// ConflictsWith returns the violations that appear when c and other are
// attached to the same value. Both are assumed self-consistent.
func (c *CompositeType) ConflictsWith(other *CompositeType) []Conflict {
	return newView(c, other).conflicts()
}

// view is the union of the micro-ops of one or more composite types that
// will govern one value.
//
// An exact op shadows a wildcard op of the same verb only inside the type
// that declares both: each attached type binds through its own governing
// ops.
type view struct {
	kind       Kind
	ops        []*MicroOpType
	owner      map[*MicroOpType]*CompositeType
	hasDefault bool
}

func newView(ts ...*CompositeType) *view {
	v := &view{kind: KindAny, owner: make(map[*MicroOpType]*CompositeType)}
	for _, t := range ts {
		if t.Kind == KindList {
			v.kind = KindList
		} else if v.kind == KindAny && t.Kind != "" {
			v.kind = t.Kind
		}
		for _, op := range t.ops {
			v.ops = append(v.ops, op)
			v.owner[op] = t
			if op.Verb == VerbDefaultFactory {
				v.hasDefault = true
			}
		}
	}
	return v
}

// governs reports whether op handles key, given that an exact op of its
// own type shadows it.
func (v *view) governs(op *MicroOpType, key any) bool {
	if !op.Wildcard {
		return op.Key == key
	}
	if t := v.owner[op]; t != nil {
		if _, shadowed := t.Op(OpKey{Verb: op.Verb, Key: key}); shadowed {
			return false
		}
	}
	return op.coversKey(key)
}

func (v *view) interact(m, n *MicroOpType) bool {
	switch {
	case !m.Wildcard && !n.Wildcard:
		return m.Key == n.Key
	case m.Wildcard && n.Wildcard:
		return true
	case m.Wildcard:
		return v.governs(m, n.Key)
	default:
		return v.governs(n, m.Key)
	}
}

func (v *view) conflicts() []Conflict {
	var out []Conflict
	for _, m := range v.ops {
		if m.Verb == VerbGet && m.Wildcard && !m.KeyError && !v.hasDefault {
			out = append(out, Conflict{Op: m, Reason: "wildcard getter promises every key without a default factory"})
		}
		for _, n := range v.ops {
			if m == n {
				continue
			}
			if reason, bad := v.pair(m, n); bad {
				out = append(out, Conflict{Op: m, Other: n, Reason: reason})
			}
		}
	}
	if v.kind == KindList {
		out = append(out, v.shiftConflicts()...)
	}
	return out
}

// pair checks getter m against n.
func (v *view) pair(m, n *MicroOpType) (string, bool) {
	if m.Verb != VerbGet {
		return "", false
	}
	switch n.Verb {
	case VerbSet, VerbInsert:
		if m.TypeError || n.TypeError || !v.interact(m, n) {
			return "", false
		}
		if !m.ValueType.IsCopyableFrom(n.ValueType) {
			return fmt.Sprintf("getter type %s cannot read %s written by %s", m.ValueType, n.ValueType, n.OpKey()), true
		}
	case VerbDefaultFactory:
		if m.TypeError {
			return "", false
		}
		if !m.ValueType.IsCopyableFrom(n.ValueType) {
			return fmt.Sprintf("getter type %s cannot read default %s", m.ValueType, n.ValueType), true
		}
	case VerbDelete:
		// List deletion shifts elements; see shiftConflicts.
		if v.kind == KindList {
			return "", false
		}
		if m.KeyError || n.KeyError || v.hasDefault || !v.interact(m, n) {
			return "", false
		}
		return "deleter removes a key the getter promises is present", true
	}
	return "", false
}

// listGetters indexes the exact getters of a list view by position.
type listGetters struct {
	at       map[int64][]*MicroOpType
	indices  []int64
	wildcard []*MicroOpType
}

func (v *view) listGetters() listGetters {
	lg := listGetters{at: make(map[int64][]*MicroOpType)}
	for _, op := range v.ops {
		if op.Verb != VerbGet {
			continue
		}
		if op.Wildcard {
			lg.wildcard = append(lg.wildcard, op)
			continue
		}
		idx, ok := op.Key.(int64)
		if !ok {
			continue
		}
		if _, seen := lg.at[idx]; !seen {
			lg.indices = append(lg.indices, idx)
		}
		lg.at[idx] = append(lg.at[idx], op)
	}
	sort.Slice(lg.indices, func(i, j int) bool { return lg.indices[i] < lg.indices[j] })
	return lg
}

// incoming returns the types that may arrive at a position from its
// neighbour: the neighbour's exact getters, or the wildcard getters.
func (lg listGetters) incoming(neighbour int64) []*MicroOpType {
	if ops := lg.at[neighbour]; len(ops) > 0 {
		return ops
	}
	return lg.wildcard
}

func startIndex(op *MicroOpType) int64 {
	if op.Wildcard {
		return 0
	}
	idx, _ := op.Key.(int64)
	return idx
}

// shiftConflicts applies the list rules: inserting at i moves every
// element at j >= i to j+1, deleting at i moves j+1 down to j.
func (v *view) shiftConflicts() []Conflict {
	lg := v.listGetters()
	var out []Conflict
	for _, op := range v.ops {
		switch op.Verb {
		case VerbInsert:
			if op.TypeError {
				continue
			}
			from := startIndex(op)
			for _, j := range lg.indices {
				if j <= from {
					continue
				}
				incoming := lg.incoming(j - 1)
				for _, g := range lg.at[j] {
					out = append(out, shiftedInto(g, op, incoming, j)...)
				}
			}
			for _, w := range lg.wildcard {
				if w.TypeError {
					continue
				}
				for _, j := range lg.indices {
					if j < from || len(lg.at[j+1]) > 0 {
						continue
					}
					for _, g := range lg.at[j] {
						if !w.ValueType.IsCopyableFrom(g.ValueType) {
							out = append(out, Conflict{Op: w, Other: op, Reason: fmt.Sprintf("element of type %s may shift past index %d", g.ValueType, j)})
						}
					}
				}
			}
		case VerbDelete:
			if op.KeyError {
				continue
			}
			from := startIndex(op)
			for _, j := range lg.indices {
				if j < from {
					continue
				}
				next := lg.at[j+1]
				for _, g := range lg.at[j] {
					if !g.KeyError && (len(next) == 0 || anyKeyError(next)) {
						out = append(out, Conflict{Op: g, Other: op, Reason: fmt.Sprintf("element at index %d may disappear", j)})
					}
					out = append(out, shiftedInto(g, op, lg.incoming(j+1), j)...)
				}
			}
		}
	}
	return out
}

func shiftedInto(g, op *MicroOpType, incoming []*MicroOpType, j int64) []Conflict {
	if g.TypeError {
		return nil
	}
	if len(incoming) == 0 {
		if IsAny(g.ValueType) {
			return nil
		}
		return []Conflict{{Op: g, Other: op, Reason: fmt.Sprintf("an unconstrained element may shift into index %d", j)}}
	}
	var out []Conflict
	for _, p := range incoming {
		if !g.ValueType.IsCopyableFrom(p.ValueType) {
			out = append(out, Conflict{Op: g, Other: op, Reason: fmt.Sprintf("element of type %s may shift into index %d", p.ValueType, j)})
		}
	}
	return out
}

func anyKeyError(ops []*MicroOpType) bool {
	for _, op := range ops {
		if op.KeyError {
			return true
		}
	}
	return false
}
