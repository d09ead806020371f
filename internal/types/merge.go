package types

// MergeMode selects how MergeTypes combines several observed types for one
// slot.
type MergeMode string

const (
	// MergeSuper keeps the loosest types, dropping members another member
	// already accepts.
	MergeSuper MergeMode = "super"

	// MergeSub keeps the tightest types, dropping members that accept
	// another member.
	MergeSub MergeMode = "sub"

	// MergeExact keeps every distinct input as a union member.
	MergeExact MergeMode = "exact"
)

// MergeTypes combines ts according to mode.
//
// Identical inputs are collapsed first, and a single input is returned
// unchanged in every mode. With more than one input, "exact" always returns
// a union of the distinct inputs (so [X, X] yields a single-member union),
// while "super" and "sub" return the lone survivor itself or a union of the
// survivors. An empty input is a host-fatal error.
func MergeTypes(ts []Type, mode MergeMode) Type {
	if len(ts) == 0 {
		panic(Fatalf(FatalInvariant, "merge of zero types"))
	}
	if len(ts) == 1 {
		return ts[0]
	}

	distinct := dedupe(ts)

	switch mode {
	case MergeExact:
		return OneOf(distinct...)
	case MergeSuper:
		return collapse(prune(distinct, func(keep, drop Type) bool {
			return keep.IsCopyableFrom(drop)
		}))
	case MergeSub:
		return collapse(prune(distinct, func(keep, drop Type) bool {
			return drop.IsCopyableFrom(keep)
		}))
	default:
		panic(Fatalf(FatalInvariant, "unknown merge mode %q", mode))
	}
}

func dedupe(ts []Type) []Type {
	out := make([]Type, 0, len(ts))
	for _, t := range ts {
		seen := false
		for _, kept := range out {
			if Equal(kept, t) {
				seen = true
				break
			}
		}
		if !seen {
			out = append(out, t)
		}
	}
	return out
}

// prune drops ts[i] when some other member subsumes it. Of two mutually
// subsuming members the earlier one survives.
func prune(ts []Type, subsumes func(keep, drop Type) bool) []Type {
	out := make([]Type, 0, len(ts))
	for i, t := range ts {
		dropped := false
		for j, other := range ts {
			if i == j || !subsumes(other, t) {
				continue
			}
			if j < i || !subsumes(t, other) {
				dropped = true
				break
			}
		}
		if !dropped {
			out = append(out, t)
		}
	}
	return out
}

func collapse(ts []Type) Type {
	if len(ts) == 1 {
		return ts[0]
	}
	return OneOf(ts...)
}
