package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/classweave/internal/hooks"
)

// TransformError represents an error detected while instrumenting a class.
type TransformError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Class is the internal name of the class being transformed.
	Class string

	// Member identifies the affected field or method, if any.
	Member string

	// Err is the underlying cause.
	Err error
}

// ErrorCode categorizes transform errors.
type ErrorCode string

const (
	// ErrCodeLinkError indicates a hook symbol could not be resolved.
	ErrCodeLinkError ErrorCode = "LINK_ERROR"

	// ErrCodeUnsupportedArity indicates a method has too many parameters
	// to build its argument array.
	ErrCodeUnsupportedArity ErrorCode = "UNSUPPORTED_ARITY"

	// ErrCodeAlreadyInstrumented indicates the class was transformed before.
	ErrCodeAlreadyInstrumented ErrorCode = "ALREADY_INSTRUMENTED"

	// ErrCodeIllegalTransition indicates the orchestrator tried to move a
	// member between states the lifecycle does not allow.
	ErrCodeIllegalTransition ErrorCode = "ILLEGAL_TRANSITION"

	// ErrCodeFilter indicates the exclude expression failed to evaluate.
	ErrCodeFilter ErrorCode = "FILTER_ERROR"
)

// Error implements the error interface.
func (e *TransformError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Member != "" {
		return fmt.Sprintf("%s: %s (class=%s, member=%s)", e.Code, msg, e.Class, e.Member)
	}
	if e.Class != "" {
		return fmt.Sprintf("%s: %s (class=%s)", e.Code, msg, e.Class)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the underlying cause.
func (e *TransformError) Unwrap() error { return e.Err }

func hasCode(err error, code ErrorCode) bool {
	var te *TransformError
	if errors.As(err, &te) {
		return te.Code == code
	}
	return false
}

// IsLinkError returns true if the error is an unresolved hook, whether
// reported by the engine or directly by the hooks package.
func IsLinkError(err error) bool {
	return hasCode(err, ErrCodeLinkError) || hooks.IsLinkError(err)
}

// IsUnsupportedArity returns true if the error is a per-method arity failure.
func IsUnsupportedArity(err error) bool {
	return hasCode(err, ErrCodeUnsupportedArity)
}

// IsAlreadyInstrumented returns true if the class was rejected because it
// carries the instrumentation marker.
func IsAlreadyInstrumented(err error) bool {
	return hasCode(err, ErrCodeAlreadyInstrumented)
}

func linkError(class string, m *Member, err error) *TransformError {
	return &TransformError{
		Code:    ErrCodeLinkError,
		Message: "hook not resolvable",
		Class:   class,
		Member:  m.ID(),
		Err:     err,
	}
}
