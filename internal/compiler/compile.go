package compiler

import (
	"errors"
	"fmt"

	"cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/lockdown/internal/descriptor"
	"github.com/roach88/lockdown/internal/types"
)

// NamedType is a declared type with its CUE position.
type NamedType struct {
	Name string
	Type types.Type
	Pos  token.Pos
}

// Signature is a declared function signature.
type Signature struct {
	Name string

	// Argument defaults to NoValue; Outer and Local default to Inferred.
	Argument types.Type
	Outer    types.Type
	Local    types.Type

	Breaks types.BreakTypes

	// ObservedLocal and ObservedCode are the break tables an evaluator
	// would infer for the local initializer and the body.
	ObservedLocal types.BreakTypes
	ObservedCode  types.BreakTypes

	Pos token.Pos
}

// Relation is an expected answer to "is Candidate copyable into Target".
type Relation struct {
	Target    string
	Candidate string
	Expect    bool
	Pos       token.Pos
}

// Module is everything declared by a signature directory, in declaration
// order.
type Module struct {
	Types     []NamedType
	Functions []Signature
	Relations []Relation
}

// Type returns the declared type called name.
func (m *Module) Type(name string) (types.Type, bool) {
	for _, nt := range m.Types {
		if nt.Name == name {
			return nt.Type, true
		}
	}
	return nil, false
}

// CompileError reports a CUE value that is not a valid declaration.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CompileModule compiles every declaration under v. Errors are collected
// rather than returned on the first failure; declarations that fail are
// left out of the module.
func CompileModule(v cue.Value) (*Module, []error) {
	if err := v.Err(); err != nil {
		return nil, []error{formatCUEError(err)}
	}

	m := &Module{}
	var errs []error

	eachField(v, "types", &errs, func(label string, fv cue.Value) {
		t, err := CompileType(fv)
		if err != nil {
			errs = append(errs, prefix("types."+label, err))
			return
		}
		m.Types = append(m.Types, NamedType{Name: label, Type: t, Pos: fv.Pos()})
	})

	eachField(v, "functions", &errs, func(label string, fv cue.Value) {
		sig, err := CompileSignature(label, fv)
		if err != nil {
			errs = append(errs, prefix("functions."+label, err))
			return
		}
		m.Functions = append(m.Functions, *sig)
	})

	if rv := v.LookupPath(cue.ParsePath("relations")); rv.Exists() {
		relations, err := compileRelations(rv)
		if err != nil {
			errs = append(errs, prefix("relations", err))
		}
		m.Relations = relations
	}

	if len(m.Types) == 0 && len(m.Functions) == 0 && len(errs) == 0 {
		errs = append(errs, &CompileError{Field: "(root)", Message: "no types or functions declared", Pos: v.Pos()})
	}
	return m, errs
}

func eachField(v cue.Value, name string, errs *[]error, fn func(label string, fv cue.Value)) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return
	}
	iter, err := fv.Fields()
	if err != nil {
		*errs = append(*errs, prefix(name, formatCUEError(err)))
		return
	}
	for iter.Next() {
		fn(iter.Label(), iter.Value())
	}
}

// CompileType compiles a descriptor value into a type.
func CompileType(v cue.Value) (types.Type, error) {
	plain, err := Plain(v)
	if err != nil {
		return nil, err
	}
	t, err := descriptor.EnrichType(plain)
	if err != nil {
		return nil, descriptorError(v, err)
	}
	return t, nil
}

// CompileSignature compiles a function declaration.
func CompileSignature(name string, v cue.Value) (*Signature, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	sig := &Signature{Name: name, Pos: v.Pos()}

	var err error
	if sig.Argument, err = optionalType(v, "argument", types.NoValue); err != nil {
		return nil, err
	}
	if sig.Outer, err = optionalType(v, "outer", types.Inferred); err != nil {
		return nil, err
	}
	if sig.Local, err = optionalType(v, "local", types.Inferred); err != nil {
		return nil, err
	}
	if sig.Breaks, err = breakTable(v, "break_types"); err != nil {
		return nil, err
	}
	if sig.ObservedLocal, err = breakTable(v, "observed.local"); err != nil {
		return nil, err
	}
	if sig.ObservedCode, err = breakTable(v, "observed.code"); err != nil {
		return nil, err
	}
	return sig, nil
}

func optionalType(v cue.Value, field string, fallback types.Type) (types.Type, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return fallback, nil
	}
	t, err := CompileType(fv)
	if err != nil {
		return nil, prefix(field, err)
	}
	return t, nil
}

func breakTable(v cue.Value, field string) (types.BreakTypes, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return types.BreakTypes{}, nil
	}
	plain, err := Plain(fv)
	if err != nil {
		return nil, prefix(field, err)
	}
	b, err := descriptor.EnrichBreakTypes(plain)
	if err != nil {
		return nil, prefix(field, descriptorError(fv, err))
	}
	return b, nil
}

func compileRelations(v cue.Value) ([]Relation, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var relations []Relation
	for i := 0; iter.Next(); i++ {
		item := iter.Value()
		rel := Relation{Expect: true, Pos: item.Pos()}
		if rel.Target, err = requiredString(item, "target"); err != nil {
			return relations, prefix(fmt.Sprint(i), err)
		}
		if rel.Candidate, err = requiredString(item, "candidate"); err != nil {
			return relations, prefix(fmt.Sprint(i), err)
		}
		if ev := item.LookupPath(cue.ParsePath("expect")); ev.Exists() {
			if rel.Expect, err = ev.Bool(); err != nil {
				return relations, prefix(fmt.Sprint(i), formatCUEError(err))
			}
		}
		relations = append(relations, rel)
	}
	return relations, nil
}

func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{Field: field, Message: field + " is required", Pos: v.Pos()}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// Plain converts a concrete CUE value into the plain Go data descriptors
// are made of: map[string]any, []any, string, int64, bool and nil.
// Floats are rejected.
func Plain(v cue.Value) (any, error) {
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}
	switch v.Kind() {
	case cue.StructKind:
		out := make(map[string]any)
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			item, err := Plain(iter.Value())
			if err != nil {
				return nil, err
			}
			out[iter.Label()] = item
		}
		return out, nil
	case cue.ListKind:
		out := []any{}
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			item, err := Plain(iter.Value())
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return n, nil
	case cue.StringKind:
		return v.String()
	case cue.BoolKind:
		return v.Bool()
	case cue.NullKind:
		return nil, nil
	case cue.FloatKind:
		return nil, &CompileError{Field: "value", Message: "floats have no type in this language", Pos: v.Pos()}
	}
	return nil, &CompileError{Field: "value", Message: fmt.Sprintf("unsupported CUE kind %s", v.Kind()), Pos: v.Pos()}
}

// descriptorError locates a descriptor failure at the CUE value it came
// from.
func descriptorError(v cue.Value, err error) error {
	var de *descriptor.Error
	if !errors.As(err, &de) {
		return err
	}
	field := "descriptor"
	if de.Path != "" {
		field = de.Path
		if fv := v.LookupPath(cue.ParsePath(de.Path)); fv.Exists() {
			v = fv
		}
	}
	return &CompileError{Field: field, Message: de.Error(), Pos: v.Pos()}
}

func prefix(field string, err error) error {
	var ce *CompileError
	if errors.As(err, &ce) {
		return &CompileError{Field: field + "." + ce.Field, Message: ce.Message, Pos: ce.Pos}
	}
	return fmt.Errorf("%s: %w", field, err)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
