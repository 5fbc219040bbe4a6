package classfile

import (
	"errors"
	"fmt"
)

// ParseError reports class bytes that do not form a well-formed class file.
// Offset is the byte position where decoding failed, or -1 when the failure
// is not tied to a position.
type ParseError struct {
	Offset  int
	Message string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("parse error at offset %d: %s", e.Offset, e.Message)
	}
	return "parse error: " + e.Message
}

// ComputeError reports a method body whose frame sizes or encoding cannot be
// derived after rewriting.
type ComputeError struct {
	// Method is "name+descriptor" of the failing method.
	Method string

	// Index is the instruction index where the failure was detected, or -1.
	Index int

	Message string
}

// Error implements the error interface.
func (e *ComputeError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("compute error in %s at instruction %d: %s", e.Method, e.Index, e.Message)
	}
	return fmt.Sprintf("compute error in %s: %s", e.Method, e.Message)
}

// IsParseError returns true if err wraps a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// IsComputeError returns true if err wraps a ComputeError.
func IsComputeError(err error) bool {
	var ce *ComputeError
	return errors.As(err, &ce)
}

func parseErrorf(offset int, format string, args ...any) *ParseError {
	return &ParseError{Offset: offset, Message: fmt.Sprintf(format, args...)}
}
