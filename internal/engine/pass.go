package engine

import (
	"github.com/roach88/classweave/internal/classfile"
)

// PassKind names a transformation pass.
type PassKind string

const (
	PassFieldWrap      PassKind = "FieldWrap"
	PassMethodEntryLog PassKind = "MethodEntryLog"
)

// Pass is one transformation. Matches is a pure predicate; Synthesize
// returns the injections for a matched member without applying them.
type Pass interface {
	Kind() PassKind
	Matches(m *Member) bool
	Synthesize(m *Member) ([]Injection, error)
}

// InsertMode selects how an injection treats labels at its anchor.
type InsertMode int

const (
	// Before inserts ahead of the anchor; jumps to the anchor skip the block.
	Before InsertMode = iota

	// At inserts ahead of the anchor and moves its labels onto the block, so
	// every path reaching the anchor runs the block.
	At
)

func (m InsertMode) String() string {
	if m == At {
		return "at"
	}
	return "before"
}

// Injection is an instruction block to insert into one method.
type Injection struct {
	Method *classfile.Method
	Anchor *classfile.Instruction
	Mode   InsertMode
	Block  []*classfile.Instruction
}

func (inj Injection) apply() error {
	if inj.Mode == At {
		return inj.Method.Code.InsertAt(inj.Anchor, inj.Block...)
	}
	return inj.Method.Code.InsertBefore(inj.Anchor, inj.Block...)
}
