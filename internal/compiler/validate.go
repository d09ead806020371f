package compiler

import (
	"errors"
	"fmt"

	"cuelang.org/go/cue/token"

	"github.com/roach88/lockdown/internal/function"
	"github.com/roach88/lockdown/internal/host"
	"github.com/roach88/lockdown/internal/types"
)

// Validation error codes (E200-E299)
const (
	ErrInconsistentType  = "E201" // composite type is not self-consistent
	ErrDanglingInference = "E202" // Inferred left where nothing can fill it
	ErrToleranceGate     = "E203" // type_error tolerance without runtime type information
	ErrInvalidLocalType  = "E204" // observed local values do not fit the local type
	ErrBreakMismatch     = "E205" // observed breaks not covered by declared break types
	ErrUnknownType       = "E206" // relation names an undeclared type
	ErrRelationMismatch  = "E207" // relation answer differs from its expectation
)

// Kinds of findings; they match the verdict kinds of the store.
const (
	KindConsistency = "consistency"
	KindInference   = "inference"
	KindBreaks      = "breaks"
	KindRelation    = "relation"
)

// Finding is the outcome of one static check.
type Finding struct {
	Kind    string
	Subject string
	OK      bool
	Code    string // set when !OK
	Detail  string

	// Target is the type the finding is about; Candidate is set for
	// relations only.
	Target    types.Type
	Candidate types.Type

	Pos token.Pos
}

// ValidationError represents a failed static check.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks m and returns every failure (does not fail-fast).
func Validate(m *Module, caps host.Capabilities) []ValidationError {
	var errs []ValidationError
	for _, f := range Check(m, caps) {
		if f.OK {
			continue
		}
		errs = append(errs, ValidationError{
			Field:   f.Subject,
			Message: f.Detail,
			Code:    f.Code,
			Line:    f.Pos.Line(),
		})
	}
	return errs
}

// Check runs every static check over m and returns one finding per check,
// passing or not, in declaration order.
func Check(m *Module, caps host.Capabilities) []Finding {
	c := &checker{caps: caps}
	for _, nt := range m.Types {
		c.checkType("types."+nt.Name, nt.Type, nt.Pos)
	}
	for i := range m.Functions {
		c.checkFunction(&m.Functions[i])
	}
	for i, rel := range m.Relations {
		c.checkRelation(m, i, rel)
	}
	return c.findings
}

type checker struct {
	caps     host.Capabilities
	findings []Finding
}

func (c *checker) pass(kind, subject string, t types.Type, pos token.Pos, detail string) {
	c.findings = append(c.findings, Finding{Kind: kind, Subject: subject, OK: true, Detail: detail, Target: t, Pos: pos})
}

func (c *checker) fail(kind, subject, code string, t types.Type, pos token.Pos, format string, args ...any) {
	c.findings = append(c.findings, Finding{
		Kind:    kind,
		Subject: subject,
		Code:    code,
		Detail:  fmt.Sprintf(format, args...),
		Target:  t,
		Pos:     pos,
	})
}

// checkType records consistency and inference findings for a declared
// type. Declared types stand alone, so any Inferred leaf dangles.
func (c *checker) checkType(subject string, t types.Type, pos token.Pos) {
	c.checkConsistency(subject, t, pos)
	if err := types.CheckDangling(t); err != nil {
		c.fail(KindInference, subject, ErrDanglingInference, t, pos, "%v", err)
	} else {
		c.pass(KindInference, subject, t, pos, "no inferred parts")
	}
}

func (c *checker) checkConsistency(subject string, t types.Type, pos token.Pos) {
	for _, ct := range composites(t) {
		if conflicts := ct.Conflicts(); len(conflicts) > 0 {
			c.fail(KindConsistency, subject, ErrInconsistentType, t, pos, "%s is not self-consistent: %s", ct, conflicts[0])
			return
		}
		if err := c.caps.CheckTolerance(ct); err != nil {
			c.fail(KindConsistency, subject, ErrToleranceGate, t, pos, "%v", err)
			return
		}
	}
	c.pass(KindConsistency, subject, t, pos, "self-consistent")
}

// checkFunction resolves a signature the way preparation does, using the
// observed break tables in place of an evaluator. The outer context is
// unknown statically, so outer resolves against NoValue.
func (c *checker) checkFunction(sig *Signature) {
	subject := "functions." + sig.Name

	argument, err := types.PrepareLHSType(sig.Argument, nil)
	if err != nil {
		c.fail(KindInference, subject+".argument", ErrDanglingInference, sig.Argument, sig.Pos, "argument %s: %v", sig.Argument, err)
		return
	}
	outer, err := types.PrepareLHSType(sig.Outer, types.NoValue)
	if err != nil {
		c.fail(KindInference, subject+".outer", ErrDanglingInference, sig.Outer, sig.Pos, "outer %s: %v", sig.Outer, err)
		return
	}
	c.checkConsistency(subject+".argument", argument, sig.Pos)
	c.checkConsistency(subject+".outer", outer, sig.Pos)

	observedLocal := sig.ObservedLocal
	if len(observedLocal) == 0 {
		observedLocal = types.BreakTypes{function.ModeValue: {{Out: types.NoValue}}}
	}
	local, localBreaks, err := function.ResolveLocalType(sig.Local, observedLocal)
	if err != nil {
		code := ErrInvalidLocalType
		if types.IsDanglingInference(err) {
			code = ErrDanglingInference
		}
		c.fail(KindInference, subject+".local", code, sig.Local, sig.Pos, "%v", err)
		return
	}
	c.pass(KindInference, subject, &types.OpenFunctionType{Argument: argument, Outer: outer, Breaks: sig.Breaks}, sig.Pos,
		fmt.Sprintf("local %s", local))

	final, err := function.MatchBreakTypes(sig.Breaks, localBreaks, sig.ObservedCode)
	if err != nil {
		var pe *function.PreparationError
		detail := err.Error()
		if errors.As(err, &pe) {
			detail = pe.Message
		}
		c.fail(KindBreaks, subject, ErrBreakMismatch, nil, sig.Pos, "%s", detail)
		return
	}
	c.pass(KindBreaks, subject, &types.ClosedFunctionType{Argument: argument, Breaks: final}, sig.Pos, final.String())
}

func (c *checker) checkRelation(m *Module, i int, rel Relation) {
	subject := fmt.Sprintf("relations[%d]", i)
	target, ok := m.Type(rel.Target)
	if !ok {
		c.fail(KindRelation, subject, ErrUnknownType, nil, rel.Pos, "unknown target type %q", rel.Target)
		return
	}
	candidate, ok := m.Type(rel.Candidate)
	if !ok {
		c.fail(KindRelation, subject, ErrUnknownType, nil, rel.Pos, "unknown candidate type %q", rel.Candidate)
		return
	}

	got := target.IsCopyableFrom(candidate)
	f := Finding{
		Kind:      KindRelation,
		Subject:   subject,
		OK:        got == rel.Expect,
		Target:    target,
		Candidate: candidate,
		Pos:       rel.Pos,
		Detail:    fmt.Sprintf("%s copyable from %s: %v", rel.Target, rel.Candidate, got),
	}
	if !f.OK {
		f.Code = ErrRelationMismatch
		f.Detail = fmt.Sprintf("%s copyable from %s: got %v, expected %v", rel.Target, rel.Candidate, got, rel.Expect)
	}
	c.findings = append(c.findings, f)
}

// composites returns every composite type reachable from t, each once.
func composites(t types.Type) []*types.CompositeType {
	var out []*types.CompositeType
	seen := make(map[*types.CompositeType]bool)
	var walk func(types.Type)
	walk = func(t types.Type) {
		switch x := t.(type) {
		case types.ConstType:
			walk(x.Of)
		case types.OneOfType:
			for _, member := range x.Types {
				walk(member)
			}
		case *types.CompositeType:
			if seen[x] {
				return
			}
			seen[x] = true
			out = append(out, x)
			for _, op := range x.Ops() {
				if op.KeyType != nil {
					walk(op.KeyType)
				}
				if op.ValueType != nil {
					walk(op.ValueType)
				}
			}
		case *types.OpenFunctionType:
			walk(x.Argument)
			walk(x.Outer)
		case *types.ClosedFunctionType:
			walk(x.Argument)
		}
	}
	walk(t)
	return out
}
