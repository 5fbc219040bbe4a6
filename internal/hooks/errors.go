package hooks

import (
	"errors"
	"fmt"

	"github.com/roach88/classweave/internal/classfile"
)

// LinkError reports a hook symbol that the symbol table cannot resolve.
type LinkError struct {
	Symbol classfile.MemberRef
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *LinkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unresolved hook %s: %s: %v", e.Symbol, e.Reason, e.Err)
	}
	return fmt.Sprintf("unresolved hook %s: %s", e.Symbol, e.Reason)
}

// Unwrap returns the underlying cause, if any.
func (e *LinkError) Unwrap() error { return e.Err }

// IsLinkError returns true if err wraps a LinkError.
func IsLinkError(err error) bool {
	var le *LinkError
	return errors.As(err, &le)
}
