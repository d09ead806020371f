package function

import (
	"fmt"

	"github.com/roach88/lockdown/internal/types"
)

// MatchBreakTypes checks every break the local initializer and the body
// may take against the declared table and returns the function's final
// break types.
//
// For each mode the declared entries of that mode are searched, or the
// "wildcard" entries when the mode is not declared at all. The first
// declared entry that, once its inferred parts are filled in from the
// actual entry, accepts the actual entry wins. An Inferred declared "in"
// against an actual entry that cannot be resumed requires nothing.
func MatchBreakTypes(declared, local, code types.BreakTypes) (types.BreakTypes, error) {
	actual := local.Clone()
	actual.Merge(code)

	final := types.BreakTypes{}
	for _, mode := range actual.Modes() {
		candidates, ok := declared[mode]
		if !ok {
			candidates = declared[types.Wildcard]
		}
		for _, a := range actual[mode] {
			out, in, err := firstMatch(mode, candidates, a)
			if err != nil {
				return nil, err
			}
			if out == nil {
				return nil, preparationErrorf(ErrCodeUndeclaredBreak,
					"nothing declared for %s, %s. Function declares break types %s. But local initialization breaks %s, code breaks %s",
					mode, a, declared, local, code)
			}
			final.Add(mode, out, in)
		}
	}
	return final, nil
}

func firstMatch(mode string, candidates []types.BreakType, a types.BreakType) (types.Type, types.Type, error) {
	for _, d := range candidates {
		out, err := types.PrepareLHSType(d.Out, a.Out)
		if err != nil {
			return nil, nil, unresolvedBreak(mode, d, a, err)
		}

		var in types.Type
		switch {
		case d.In == nil:
		case isInferred(d.In) && a.In == nil:
		default:
			if in, err = types.PrepareLHSType(d.In, a.In); err != nil {
				return nil, nil, unresolvedBreak(mode, d, a, err)
			}
		}

		if !out.IsCopyableFrom(a.Out) {
			continue
		}
		if in != nil && (a.In == nil || !a.In.IsCopyableFrom(in)) {
			continue
		}
		return out, in, nil
	}
	return nil, nil, nil
}

func isInferred(t types.Type) bool {
	_, ok := t.(types.InferredType)
	return ok
}

func unresolvedBreak(mode string, d, a types.BreakType, err error) error {
	return &PreparationError{
		Code:    ErrCodeUnresolvedBreak,
		Message: fmt.Sprintf("cannot infer declared %s break %s from %s", mode, d, a),
		Err:     err,
	}
}
