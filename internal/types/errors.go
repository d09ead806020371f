package types

import (
	"errors"
	"fmt"
)

// FatalError signals a broken interpreter invariant. It is never caused by
// an author mistake and is never converted into a catchable outcome.
type FatalError struct {
	// Code identifies the invariant that was broken.
	Code FatalCode

	// Message is a human-readable description.
	Message string
}

// FatalCode categorizes host-fatal errors.
type FatalCode string

const (
	// FatalInvariant is a generic broken internal invariant.
	FatalInvariant FatalCode = "INVARIANT"

	// FatalToleranceGate indicates a tolerant micro-op was used while the
	// runtime-type-information capability is disabled.
	FatalToleranceGate FatalCode = "TOLERANCE_GATE"

	// FatalInconsistentEffective indicates a manager's merged type stopped
	// being self-consistent.
	FatalInconsistentEffective FatalCode = "INCONSISTENT_EFFECTIVE_TYPE"

	// FatalValueMismatch indicates a runtime value failed a re-verification
	// that preparation should have made impossible.
	FatalValueMismatch FatalCode = "VALUE_MISMATCH"

	// FatalContinuation indicates a continuation was misused.
	FatalContinuation FatalCode = "CONTINUATION"
)

// Error implements the error interface.
func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal [%s]: %s", e.Code, e.Message)
}

// Fatalf creates a FatalError with a formatted message.
func Fatalf(code FatalCode, format string, args ...any) *FatalError {
	return &FatalError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// IsFatal returns true if err is (or wraps) a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// DanglingInferenceError reports an Inferred placeholder that survived
// unification.
type DanglingInferenceError struct {
	// Path is the dotted location of the placeholder, e.g. "get.bar".
	Path string
}

// Error implements the error interface.
func (e *DanglingInferenceError) Error() string {
	if e.Path == "" {
		return "dangling inferred type"
	}
	return fmt.Sprintf("dangling inferred type at %s", e.Path)
}

// IsDanglingInference returns true if err is (or wraps) a
// DanglingInferenceError.
func IsDanglingInference(err error) bool {
	var de *DanglingInferenceError
	return errors.As(err, &de)
}
