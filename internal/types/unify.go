package types

import (
	"fmt"
)

// PrepareLHSType unifies declared against suggested.
//
// Every Inferred leaf of declared is replaced by the structurally
// corresponding leaf of suggested (nil suggests nothing), setters are
// reified from their sibling getters, and the result must contain no
// Inferred leaf or a DanglingInferenceError is returned. The computation
// is pure; a declared type needing no rewrite is returned as is.
func PrepareLHSType(declared, suggested Type) (Type, error) {
	t := ReplaceInferred(declared, suggested)
	t = ReifyRevConst(t)
	if err := CheckDangling(t); err != nil {
		return nil, err
	}
	return t, nil
}

// ReplaceInferred substitutes the Inferred leaves of declared with the
// corresponding leaves of suggested. Leaves without a correspondent stay
// Inferred.
func ReplaceInferred(declared, suggested Type) Type {
	if declared == nil || !containsInferred(declared, make(map[*CompositeType]bool)) {
		return declared
	}
	w := &rewriter{memo: make(map[*CompositeType]*CompositeType)}
	return w.replace(declared, suggested)
}

// ReifyRevConst narrows each setter that its sibling getter cannot read
// back (or that is still Inferred) to the getter's type. List getters are
// first widened across the shifts their inserts and deletes cause.
func ReifyRevConst(t Type) Type {
	if t == nil || !needsReify(t, make(map[*CompositeType]bool)) {
		return t
	}
	w := &rewriter{memo: make(map[*CompositeType]*CompositeType)}
	return w.reify(t)
}

// CheckDangling returns a DanglingInferenceError naming the first Inferred
// leaf left in t.
func CheckDangling(t Type) error {
	if path, found := findInferred(t, "", make(map[*CompositeType]bool)); found {
		if path == "" {
			path = "(root)"
		}
		return &DanglingInferenceError{Path: path}
	}
	return nil
}

func unwrapConst(t Type) Type {
	if c, ok := t.(ConstType); ok {
		return c.Of
	}
	return t
}

func joinPath(prefix, part string) string {
	if prefix == "" {
		return part
	}
	return prefix + "." + part
}

func findInferred(t Type, path string, seen map[*CompositeType]bool) (string, bool) {
	switch x := t.(type) {
	case InferredType:
		return path, true
	case ConstType:
		return findInferred(x.Of, path, seen)
	case OneOfType:
		for i, member := range x.Types {
			if p, ok := findInferred(member, fmt.Sprintf("%s[%d]", path, i), seen); ok {
				return p, true
			}
		}
	case *CompositeType:
		if seen[x] {
			return "", false
		}
		seen[x] = true
		for _, op := range x.ops {
			p := joinPath(path, op.OpKey().String())
			if op.KeyType != nil {
				if found, ok := findInferred(op.KeyType, p+".key", seen); ok {
					return found, true
				}
			}
			if op.ValueType != nil {
				if found, ok := findInferred(op.ValueType, p, seen); ok {
					return found, true
				}
			}
		}
	case *OpenFunctionType:
		if p, ok := findInferred(x.Argument, joinPath(path, "argument"), seen); ok {
			return p, true
		}
		if p, ok := findInferred(x.Outer, joinPath(path, "outer"), seen); ok {
			return p, true
		}
		return findInferredBreaks(x.Breaks, path, seen)
	case *ClosedFunctionType:
		if p, ok := findInferred(x.Argument, joinPath(path, "argument"), seen); ok {
			return p, true
		}
		return findInferredBreaks(x.Breaks, path, seen)
	}
	return "", false
}

func findInferredBreaks(b BreakTypes, path string, seen map[*CompositeType]bool) (string, bool) {
	for _, mode := range b.Modes() {
		for i, bt := range b[mode] {
			p := joinPath(path, fmt.Sprintf("break_types.%s[%d]", mode, i))
			if found, ok := findInferred(bt.Out, p+".out", seen); ok {
				return found, true
			}
			if bt.In != nil {
				if found, ok := findInferred(bt.In, p+".in", seen); ok {
					return found, true
				}
			}
		}
	}
	return "", false
}

func containsInferred(t Type, seen map[*CompositeType]bool) bool {
	_, found := findInferred(t, "", seen)
	return found
}

func needsReify(t Type, seen map[*CompositeType]bool) bool {
	switch x := t.(type) {
	case ConstType:
		return needsReify(x.Of, seen)
	case OneOfType:
		for _, member := range x.Types {
			if needsReify(member, seen) {
				return true
			}
		}
	case *CompositeType:
		if seen[x] {
			return false
		}
		seen[x] = true
		if x.Kind == KindList && hasShifts(x) {
			return true
		}
		for _, op := range x.ops {
			if op.Verb == VerbSet && narrowedSetter(op, siblingGetter(x, op)) != nil {
				return true
			}
			if op.ValueType != nil && needsReify(op.ValueType, seen) {
				return true
			}
		}
	case *OpenFunctionType:
		return needsReify(x.Argument, seen) || needsReify(x.Outer, seen) || breaksNeedReify(x.Breaks, seen)
	case *ClosedFunctionType:
		return needsReify(x.Argument, seen) || breaksNeedReify(x.Breaks, seen)
	}
	return false
}

func breaksNeedReify(b BreakTypes, seen map[*CompositeType]bool) bool {
	for _, entries := range b {
		for _, bt := range entries {
			if needsReify(bt.Out, seen) || (bt.In != nil && needsReify(bt.In, seen)) {
				return true
			}
		}
	}
	return false
}

func hasShifts(c *CompositeType) bool {
	shifting, getters := false, false
	for _, op := range c.ops {
		switch {
		case op.Verb == VerbInsert && !op.TypeError, op.Verb == VerbDelete && !op.KeyError:
			shifting = true
		case op.Verb == VerbGet && !op.Wildcard:
			getters = true
		}
	}
	return shifting && getters
}

func siblingGetter(c *CompositeType, setter *MicroOpType) *MicroOpType {
	key := setter.OpKey()
	key.Verb = VerbGet
	getter, _ := c.Op(key)
	return getter
}

// narrowedSetter returns the replacement for setter, or nil when the
// sibling getter already reads back everything setter writes.
func narrowedSetter(setter, getter *MicroOpType) *MicroOpType {
	if getter == nil || getter.ValueType == nil {
		return nil
	}
	_, inferred := setter.ValueType.(InferredType)
	if !inferred && getter.ValueType.IsCopyableFrom(setter.ValueType) {
		return nil
	}
	if Equal(getter.ValueType, setter.ValueType) {
		return nil
	}
	return setter.withValueType(getter.ValueType)
}

type rewriter struct {
	memo map[*CompositeType]*CompositeType
}

func (w *rewriter) replace(d, s Type) Type {
	switch dt := d.(type) {
	case InferredType:
		if s == nil {
			return d
		}
		return s
	case ConstType:
		return ConstType{Of: w.replace(dt.Of, unwrapConst(s))}
	case OneOfType:
		so, positional := unwrapConst(s).(OneOfType)
		positional = positional && len(so.Types) == len(dt.Types)
		members := make([]Type, len(dt.Types))
		for i, member := range dt.Types {
			if positional {
				members[i] = w.replace(member, so.Types[i])
			} else {
				members[i] = w.replace(member, s)
			}
		}
		return OneOfType{Types: members}
	case *CompositeType:
		if nc, ok := w.memo[dt]; ok {
			return nc
		}
		nc := &CompositeType{Name: dt.Name, Kind: dt.Kind, index: make(map[OpKey]int, len(dt.ops))}
		w.memo[dt] = nc
		sc, _ := unwrapConst(s).(*CompositeType)
		for _, op := range dt.ops {
			if op.ValueType == nil {
				nc.add(op)
				continue
			}
			var sv Type
			if sc != nil {
				if offered, ok := sc.Op(op.OpKey()); ok {
					sv = offered.ValueType
				}
			}
			nc.add(op.withValueType(w.replace(op.ValueType, sv)))
		}
		return nc
	case *OpenFunctionType:
		var sa, so Type
		var sb BreakTypes
		if sf, ok := s.(*OpenFunctionType); ok {
			sa, so, sb = sf.Argument, sf.Outer, sf.Breaks
		}
		return &OpenFunctionType{
			Argument: w.replace(dt.Argument, sa),
			Outer:    w.replace(dt.Outer, so),
			Breaks:   w.replaceBreaks(dt.Breaks, sb),
		}
	case *ClosedFunctionType:
		var sa Type
		var sb BreakTypes
		if sf, ok := s.(*ClosedFunctionType); ok {
			sa, sb = sf.Argument, sf.Breaks
		}
		return &ClosedFunctionType{
			Argument: w.replace(dt.Argument, sa),
			Breaks:   w.replaceBreaks(dt.Breaks, sb),
		}
	}
	return d
}

func (w *rewriter) replaceBreaks(declared, suggested BreakTypes) BreakTypes {
	out := make(BreakTypes, len(declared))
	for _, mode := range declared.Modes() {
		for i, bt := range declared[mode] {
			var so, si Type
			if i < len(suggested[mode]) {
				so, si = suggested[mode][i].Out, suggested[mode][i].In
			}
			entry := BreakType{Out: w.replace(bt.Out, so)}
			if bt.In != nil {
				entry.In = w.replace(bt.In, si)
			}
			out[mode] = append(out[mode], entry)
		}
	}
	return out
}

func (w *rewriter) reify(t Type) Type {
	switch x := t.(type) {
	case ConstType:
		return ConstType{Of: w.reify(x.Of)}
	case OneOfType:
		members := make([]Type, len(x.Types))
		for i, member := range x.Types {
			members[i] = w.reify(member)
		}
		return OneOfType{Types: members}
	case *CompositeType:
		return w.reifyComposite(x)
	case *OpenFunctionType:
		return &OpenFunctionType{Argument: w.reify(x.Argument), Outer: w.reify(x.Outer), Breaks: w.reifyBreaks(x.Breaks)}
	case *ClosedFunctionType:
		return &ClosedFunctionType{Argument: w.reify(x.Argument), Breaks: w.reifyBreaks(x.Breaks)}
	}
	return t
}

func (w *rewriter) reifyBreaks(b BreakTypes) BreakTypes {
	out := make(BreakTypes, len(b))
	for _, mode := range b.Modes() {
		for _, bt := range b[mode] {
			entry := BreakType{Out: w.reify(bt.Out)}
			if bt.In != nil {
				entry.In = w.reify(bt.In)
			}
			out[mode] = append(out[mode], entry)
		}
	}
	return out
}

func (w *rewriter) reifyComposite(c *CompositeType) *CompositeType {
	if nc, ok := w.memo[c]; ok {
		return nc
	}
	nc := &CompositeType{Name: c.Name, Kind: c.Kind, index: make(map[OpKey]int, len(c.ops))}
	w.memo[c] = nc

	ops := make([]*MicroOpType, len(c.ops))
	for i, op := range c.ops {
		ops[i] = op
		if op.ValueType != nil {
			if reified := w.reify(op.ValueType); reified != op.ValueType {
				ops[i] = op.withValueType(reified)
			}
		}
	}
	if c.Kind == KindList && hasShifts(c) {
		ops = flattenList(ops)
	}

	getters := make(map[OpKey]*MicroOpType)
	for _, op := range ops {
		if op.Verb == VerbGet {
			getters[op.OpKey()] = op
		}
	}
	for _, op := range ops {
		if op.Verb == VerbSet {
			key := op.OpKey()
			key.Verb = VerbGet
			if narrowed := narrowedSetter(op, getters[key]); narrowed != nil {
				op = narrowed
			}
		}
		nc.add(op)
	}
	return nc
}

// flattenList widens exact list getters so they can read every element an
// insert or delete may shift into their position.
func flattenList(ops []*MicroOpType) []*MicroOpType {
	lg := (&view{kind: KindList, ops: ops}).listGetters()
	cur := make(map[int64]*MicroOpType, len(lg.indices))
	for _, j := range lg.indices {
		cur[j] = lg.at[j][0]
	}
	unconstrained := Any
	if len(lg.wildcard) > 0 {
		unconstrained = lg.wildcard[0].ValueType
	}

	insertFrom, deleteFrom := int64(-1), int64(-1)
	exactInserts := make(map[int64][]Type)
	var wildcardInserts []Type
	for _, op := range ops {
		switch {
		case op.Verb == VerbInsert && !op.TypeError:
			from := startIndex(op)
			if insertFrom < 0 || from < insertFrom {
				insertFrom = from
			}
			if op.Wildcard {
				wildcardInserts = append(wildcardInserts, op.ValueType)
			} else {
				exactInserts[from] = append(exactInserts[from], op.ValueType)
			}
		case op.Verb == VerbDelete && !op.KeyError:
			from := startIndex(op)
			if deleteFrom < 0 || from < deleteFrom {
				deleteFrom = from
			}
		}
	}

	if insertFrom >= 0 {
		for _, j := range lg.indices {
			if j < insertFrom {
				continue
			}
			g := cur[j]
			candidates := []Type{g.ValueType}
			candidates = append(candidates, exactInserts[j]...)
			candidates = append(candidates, wildcardInserts...)
			if j > insertFrom {
				if prev, ok := cur[j-1]; ok {
					candidates = append(candidates, prev.ValueType)
				} else {
					candidates = append(candidates, unconstrained)
				}
			}
			cur[j] = g.withValueType(MergeTypes(candidates, MergeSuper))
		}
	}

	if deleteFrom >= 0 {
		for i := len(lg.indices) - 1; i >= 0; i-- {
			j := lg.indices[i]
			if j < deleteFrom {
				continue
			}
			g := cur[j]
			candidates := []Type{g.ValueType}
			keyError := g.KeyError
			if next, ok := cur[j+1]; ok {
				candidates = append(candidates, next.ValueType)
				keyError = keyError || next.KeyError
			} else {
				candidates = append(candidates, unconstrained)
				keyError = true
			}
			widened := g.withValueType(MergeTypes(candidates, MergeSuper))
			widened.KeyError = keyError
			cur[j] = widened
		}
	}

	out := make([]*MicroOpType, len(ops))
	for i, op := range ops {
		out[i] = op
		if op.Verb == VerbGet && !op.Wildcard {
			if idx, ok := op.Key.(int64); ok {
				out[i] = cur[idx]
			}
		}
	}
	return out
}
