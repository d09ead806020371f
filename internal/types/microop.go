package types

import (
	"fmt"
	"strings"
)

// Verb names the operation a micro-op grants.
type Verb string

const (
	VerbGet            Verb = "get"
	VerbSet            Verb = "set"
	VerbDelete         Verb = "delete"
	VerbInsert         Verb = "insert"
	VerbDefaultFactory Verb = "default-factory"
)

// OpKey identifies a micro-op inside a composite type. Key is nil for
// wildcard and default-factory ops, otherwise a normalised primitive.
type OpKey struct {
	Verb     Verb
	Wildcard bool
	Key      any
}

// String renders the key as "verb.key" or "verb.*".
func (k OpKey) String() string {
	if k.Verb == VerbDefaultFactory {
		return string(k.Verb)
	}
	if k.Wildcard {
		return string(k.Verb) + ".*"
	}
	return fmt.Sprintf("%s.%v", k.Verb, k.Key)
}

// MicroOpType is one atomic capability contract.
//
// ValueType is nil for deleters. KeyType is only meaningful for wildcard
// and default-factory ops. KeyError and TypeError mark the op tolerant:
// a missing key (or a type mismatch) becomes a recoverable invocation
// fault instead of something the type must rule out statically.
type MicroOpType struct {
	Verb      Verb
	Wildcard  bool
	Key       any
	KeyType   Type
	ValueType Type
	KeyError  bool
	TypeError bool
}

// OpOption configures a micro-op at construction.
type OpOption func(*MicroOpType)

// WithKeyError marks the op tolerant of missing keys.
func WithKeyError() OpOption {
	return func(m *MicroOpType) { m.KeyError = true }
}

// WithTypeError marks the op tolerant of type mismatches.
func WithTypeError() OpOption {
	return func(m *MicroOpType) { m.TypeError = true }
}

// WithKeyType sets the key type of a wildcard op.
func WithKeyType(t Type) OpOption {
	return func(m *MicroOpType) { m.KeyType = t }
}

func newOp(verb Verb, wildcard bool, key any, valueType Type, opts []OpOption) *MicroOpType {
	m := &MicroOpType{Verb: verb, Wildcard: wildcard, ValueType: valueType}
	if !wildcard {
		normalized, ok := NormalizePrimitive(key)
		if !ok {
			panic(Fatalf(FatalInvariant, "micro-op key %v (%T) is not a primitive", key, key))
		}
		m.Key = normalized
	}
	for _, opt := range opts {
		opt(m)
	}
	if wildcard && m.KeyType == nil {
		m.KeyType = Any
	}
	if valueType != nil {
		if _, void := valueType.(NoValueType); void {
			panic(Fatalf(FatalInvariant, "%s may not carry NoValue", m.OpKey()))
		}
	}
	return m
}

// Getter grants reading key as t.
func Getter(key any, t Type, opts ...OpOption) *MicroOpType {
	return newOp(VerbGet, false, key, t, opts)
}

// Setter grants writing values of type t to key.
func Setter(key any, t Type, opts ...OpOption) *MicroOpType {
	return newOp(VerbSet, false, key, t, opts)
}

// Deleter grants removing key.
func Deleter(key any, opts ...OpOption) *MicroOpType {
	return newOp(VerbDelete, false, key, nil, opts)
}

// Inserter grants inserting a value of type t at list index.
func Inserter(index int64, t Type, opts ...OpOption) *MicroOpType {
	return newOp(VerbInsert, false, index, t, opts)
}

// WildcardGetter grants reading any key not covered by an exact getter.
func WildcardGetter(t Type, opts ...OpOption) *MicroOpType {
	return newOp(VerbGet, true, nil, t, opts)
}

// WildcardSetter grants writing any key not covered by an exact setter.
func WildcardSetter(t Type, opts ...OpOption) *MicroOpType {
	return newOp(VerbSet, true, nil, t, opts)
}

// WildcardDeleter grants removing any key not covered by an exact deleter.
func WildcardDeleter(opts ...OpOption) *MicroOpType {
	return newOp(VerbDelete, true, nil, nil, opts)
}

// WildcardInserter grants inserting a value of type t at any index.
func WildcardInserter(t Type, opts ...OpOption) *MicroOpType {
	return newOp(VerbInsert, true, nil, t, opts)
}

// DefaultFactory promises that reading a missing key produces a value of
// type t instead of failing.
func DefaultFactory(t Type, opts ...OpOption) *MicroOpType {
	return newOp(VerbDefaultFactory, true, nil, t, opts)
}

// OpKey returns the key identifying m inside a composite type.
func (m *MicroOpType) OpKey() OpKey {
	if m.Wildcard {
		return OpKey{Verb: m.Verb, Wildcard: true}
	}
	return OpKey{Verb: m.Verb, Key: m.Key}
}

// coversKey reports whether m applies to key, ignoring exact ops that may
// shadow a wildcard.
func (m *MicroOpType) coversKey(key any) bool {
	if !m.Wildcard {
		return m.Key == key
	}
	if m.KeyType == nil {
		return true
	}
	if _, ok := NormalizePrimitive(key); !ok {
		return false
	}
	return m.KeyType.IsCopyableFrom(Unit(key))
}

// IsReader reports whether m hands values out (getters and
// default-factories).
func (m *MicroOpType) IsReader() bool {
	return m.Verb == VerbGet || m.Verb == VerbDefaultFactory
}

// IsWriter reports whether m accepts values in (setters and inserters).
func (m *MicroOpType) IsWriter() bool {
	return m.Verb == VerbSet || m.Verb == VerbInsert
}

// String renders m for diagnostics.
func (m *MicroOpType) String() string {
	var b strings.Builder
	b.WriteString(m.OpKey().String())
	if m.ValueType != nil {
		b.WriteString(": ")
		b.WriteString(m.ValueType.String())
	}
	var flags []string
	if m.KeyError {
		flags = append(flags, "key_error")
	}
	if m.TypeError {
		flags = append(flags, "type_error")
	}
	if len(flags) > 0 {
		b.WriteString(" [" + strings.Join(flags, ",") + "]")
	}
	return b.String()
}

// withValueType returns a copy of m carrying t.
func (m *MicroOpType) withValueType(t Type) *MicroOpType {
	c := *m
	c.ValueType = t
	return &c
}

// derivableFrom reports whether candidate offers at least what m requires.
// Readers are covariant in value type, writers contravariant, wildcard key
// types contravariant. The candidate may only be tolerant where m is.
func (m *MicroOpType) derivableFrom(candidate *MicroOpType, r *relation) bool {
	if candidate.KeyError && !m.KeyError {
		return false
	}
	if candidate.TypeError && !m.TypeError {
		return false
	}
	if m.Wildcard && !isCopyable(candidate.KeyType, m.KeyType, r) {
		return false
	}
	switch {
	case m.IsReader():
		return isCopyable(m.ValueType, candidate.ValueType, r)
	case m.IsWriter():
		return isCopyable(candidate.ValueType, m.ValueType, r)
	default:
		return true
	}
}

// mergeOp combines two ops with the same OpKey: readers merge "sub",
// writers merge "super", wildcard key types merge "super", flags OR.
func mergeOp(a, b *MicroOpType) *MicroOpType {
	merged := *a
	merged.KeyError = a.KeyError || b.KeyError
	merged.TypeError = a.TypeError || b.TypeError
	if a.Wildcard && a.KeyType != nil && b.KeyType != nil {
		merged.KeyType = MergeTypes([]Type{a.KeyType, b.KeyType}, MergeSuper)
	}
	switch {
	case a.IsReader():
		merged.ValueType = MergeTypes([]Type{a.ValueType, b.ValueType}, MergeSub)
	case a.IsWriter():
		merged.ValueType = MergeTypes([]Type{a.ValueType, b.ValueType}, MergeSuper)
	}
	return &merged
}
