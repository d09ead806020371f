package composite

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/lockdown/internal/types"
)

// AttachError reports why a composite type could not be attached to (or
// detached from) a value. A failed attach never changes any manager.
type AttachError struct {
	// Code identifies the error category.
	Code AttachErrorCode

	// Message is a human-readable description.
	Message string

	// Conflicts lists the offending micro-op pairs, when there are any.
	Conflicts []types.Conflict

	// Err is the nested failure for UNSATISFIED_TYPE raised by a child
	// value.
	Err error
}

// AttachErrorCode categorizes attach errors.
type AttachErrorCode string

const (
	// ErrCodeInconsistentType indicates the type is not self-consistent.
	ErrCodeInconsistentType AttachErrorCode = "INCONSISTENT_TYPE"

	// ErrCodeWrongKind indicates the type's kind does not accept the value.
	ErrCodeWrongKind AttachErrorCode = "WRONG_KIND"

	// ErrCodeIncompatibleType indicates a conflict with an attached type.
	ErrCodeIncompatibleType AttachErrorCode = "INCOMPATIBLE_TYPE"

	// ErrCodeUnsatisfiedType indicates the current data does not satisfy
	// the type.
	ErrCodeUnsatisfiedType AttachErrorCode = "UNSATISFIED_TYPE"

	// ErrCodeNotAttached indicates a detach of a type that is not attached.
	ErrCodeNotAttached AttachErrorCode = "NOT_ATTACHED"
)

// Error implements the error interface.
func (e *AttachError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	for _, c := range e.Conflicts {
		b.WriteString("\n  ")
		b.WriteString(c.String())
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the nested failure.
func (e *AttachError) Unwrap() error {
	return e.Err
}

// IsAttachError returns true if err is (or wraps) an AttachError.
func IsAttachError(err error) bool {
	var ae *AttachError
	return errors.As(err, &ae)
}

// InvocationError reports one micro-op violation at runtime.
//
// A tolerant invocation error is recoverable: the function layer turns it
// into an exception outcome. A non-tolerant one means preparation failed
// to rule the situation out.
type InvocationError struct {
	// Code identifies the error category.
	Code InvocationErrorCode

	// Key is the key or index the operation addressed.
	Key any

	// Message is a human-readable description.
	Message string

	// Tolerant is taken from the flag of the governing micro-op.
	Tolerant bool
}

// InvocationErrorCode categorizes invocation errors.
type InvocationErrorCode string

const (
	// ErrCodeMissingMicroOp indicates no attached micro-op grants the
	// operation.
	ErrCodeMissingMicroOp InvocationErrorCode = "MISSING_MICRO_OP"

	// ErrCodeInvalidDereferenceKey indicates a missing key or an index out
	// of range.
	ErrCodeInvalidDereferenceKey InvocationErrorCode = "INVALID_DEREFERENCE_KEY"

	// ErrCodeInvalidDereferenceType indicates a read value failed its
	// getter's type.
	ErrCodeInvalidDereferenceType InvocationErrorCode = "INVALID_DEREFERENCE_TYPE"

	// ErrCodeInvalidAssignmentType indicates a written value would violate
	// a getter or setter.
	ErrCodeInvalidAssignmentType InvocationErrorCode = "INVALID_ASSIGNMENT_TYPE"

	// ErrCodeInvalidDelete indicates a deletion would remove or shift a key
	// a getter promises.
	ErrCodeInvalidDelete InvocationErrorCode = "INVALID_DELETE"
)

// Error implements the error interface.
func (e *InvocationError) Error() string {
	tolerance := ""
	if e.Tolerant {
		tolerance = " (tolerant)"
	}
	return fmt.Sprintf("%s: %s (key=%v)%s", e.Code, e.Message, e.Key, tolerance)
}

// IsInvocationError returns true if err is (or wraps) an InvocationError.
func IsInvocationError(err error) bool {
	var ie *InvocationError
	return errors.As(err, &ie)
}

// IsTolerant returns true if err is (or wraps) a tolerant InvocationError.
func IsTolerant(err error) bool {
	var ie *InvocationError
	if errors.As(err, &ie) {
		return ie.Tolerant
	}
	return false
}

func attachErrorf(code AttachErrorCode, format string, args ...any) *AttachError {
	return &AttachError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func invocationErrorf(code InvocationErrorCode, key any, tolerant bool, format string, args ...any) *InvocationError {
	return &InvocationError{Code: code, Key: key, Tolerant: tolerant, Message: fmt.Sprintf(format, args...)}
}
