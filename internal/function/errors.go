package function

import (
	"errors"
	"fmt"
)

// PreparationError reports why a function could not be prepared. It is an
// author mistake, raised before the function ever runs.
type PreparationError struct {
	// Code identifies the error category.
	Code PreparationErrorCode

	// Message is a human-readable description.
	Message string

	// Err is the underlying failure, when there is one.
	Err error
}

// PreparationErrorCode categorizes preparation errors.
type PreparationErrorCode string

const (
	// ErrCodeMissingCode indicates the function has no body.
	ErrCodeMissingCode PreparationErrorCode = "MISSING_CODE"

	// ErrCodeEvaluationFailed indicates the static sub-tree or the type
	// inference of a sub-tree failed in the evaluator.
	ErrCodeEvaluationFailed PreparationErrorCode = "EVALUATION_FAILED"

	// ErrCodeInvalidStatic indicates the static value is not an object of
	// type descriptors.
	ErrCodeInvalidStatic PreparationErrorCode = "INVALID_STATIC"

	// ErrCodeUnresolvedArgument indicates inference left the argument type
	// incomplete.
	ErrCodeUnresolvedArgument PreparationErrorCode = "UNRESOLVED_ARGUMENT"

	// ErrCodeUnresolvedOuter indicates inference left the outer type
	// incomplete.
	ErrCodeUnresolvedOuter PreparationErrorCode = "UNRESOLVED_OUTER"

	// ErrCodeUnresolvedLocal indicates inference left the local type
	// incomplete.
	ErrCodeUnresolvedLocal PreparationErrorCode = "UNRESOLVED_LOCAL"

	// ErrCodeUnresolvedBreak indicates inference left a declared break type
	// incomplete.
	ErrCodeUnresolvedBreak PreparationErrorCode = "UNRESOLVED_BREAK"

	// ErrCodeInconsistentType indicates a declared composite type is not
	// self-consistent.
	ErrCodeInconsistentType PreparationErrorCode = "INCONSISTENT_TYPE"

	// ErrCodeMissingLocalType indicates the local initializer produces no
	// value.
	ErrCodeMissingLocalType PreparationErrorCode = "MISSING_LOCAL_TYPE"

	// ErrCodeInvalidLocalType indicates the local initializer produces a
	// value the declared local type does not accept.
	ErrCodeInvalidLocalType PreparationErrorCode = "INVALID_LOCAL_TYPE"

	// ErrCodeUndeclaredBreak indicates the body may break in a way the
	// function does not declare.
	ErrCodeUndeclaredBreak PreparationErrorCode = "UNDECLARED_BREAK"

	// ErrCodeUnboundAssignment indicates an assignment to a name nothing
	// in scope provides.
	ErrCodeUnboundAssignment PreparationErrorCode = "UNBOUND_ASSIGNMENT"
)

// Error implements the error interface.
func (e *PreparationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying failure.
func (e *PreparationError) Unwrap() error {
	return e.Err
}

// IsPreparationError returns true if err is (or wraps) a PreparationError.
func IsPreparationError(err error) bool {
	var pe *PreparationError
	return errors.As(err, &pe)
}

func preparationErrorf(code PreparationErrorCode, format string, args ...any) *PreparationError {
	return &PreparationError{Code: code, Message: fmt.Sprintf(format, args...)}
}
