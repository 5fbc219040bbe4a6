package vm

import (
	"errors"
	"fmt"

	"github.com/roach88/classweave/internal/classfile"
)

// ErrStepLimit is returned when execution exceeds the machine's step budget.
var ErrStepLimit = errors.New("step limit exceeded")

// UnsupportedInstructionError reports an opcode the machine does not execute.
type UnsupportedInstructionError struct {
	Op     classfile.Opcode
	Method string
}

func (e *UnsupportedInstructionError) Error() string {
	return fmt.Sprintf("unsupported instruction %s in %s", e.Op, e.Method)
}

// LinkageError reports a member that resolves to neither a defined class
// nor a native.
type LinkageError struct {
	Ref    classfile.MemberRef
	Reason string
}

func (e *LinkageError) Error() string {
	return fmt.Sprintf("cannot link %s: %s", e.Ref, e.Reason)
}

// Thrown is a Java exception that propagated out of an invocation.
type Thrown struct {
	Exception *Object

	// Trace lists the methods unwound, innermost first.
	Trace []string
}

func (t *Thrown) Error() string {
	return "uncaught " + t.Exception.String()
}

// ClassName returns the internal name of the thrown exception's class.
func (t *Thrown) ClassName() string { return t.Exception.ClassName }

// IsThrown reports whether err is an uncaught Java exception of class name
// or, when name is empty, of any class.
func IsThrown(err error, name string) bool {
	var t *Thrown
	if !errors.As(err, &t) {
		return false
	}
	return name == "" || t.Exception.ClassName == name
}

// IsUnsupported reports whether err is an UnsupportedInstructionError.
func IsUnsupported(err error) bool {
	var u *UnsupportedInstructionError
	return errors.As(err, &u)
}
