package engine

import (
	"fmt"

	"github.com/roach88/classweave/internal/classfile"
	"github.com/roach88/classweave/internal/hooks"
)

// MaxArity is the largest parameter count whose array length and indexes
// fit a bipush operand.
const MaxArity = 127

// boxes maps primitive descriptors to their wrapper class.
var boxes = map[byte]string{
	'Z': "java/lang/Boolean",
	'B': "java/lang/Byte",
	'C': "java/lang/Character",
	'S': "java/lang/Short",
	'I': "java/lang/Integer",
	'J': "java/lang/Long",
	'F': "java/lang/Float",
	'D': "java/lang/Double",
}

// MethodEntryLog prepends a call to the log sink carrying the method name
// and its arguments.
type MethodEntryLog struct {
	resolver *hooks.Resolver
	maxArity int
}

// NewMethodEntryLog returns the pass. maxArity is clamped to MaxArity.
func NewMethodEntryLog(r *hooks.Resolver, maxArity int) *MethodEntryLog {
	if maxArity <= 0 || maxArity > MaxArity {
		maxArity = MaxArity
	}
	return &MethodEntryLog{resolver: r, maxArity: maxArity}
}

// Kind implements Pass.
func (p *MethodEntryLog) Kind() PassKind { return PassMethodEntryLog }

// Matches implements Pass.
func (p *MethodEntryLog) Matches(m *Member) bool { return matchMethodEntry(m) }

// Synthesize implements Pass. The block leaves the operand stack as it
// found it and only reads argument slots; the array reference lives on the
// stack until the log call consumes it.
//
//	ldc name
//	push n
//	anewarray java/lang/Object
//	for each argument i:
//	    dup; push i; load slot(i); [box]; aastore
//	invokestatic log
func (p *MethodEntryLog) Synthesize(m *Member) ([]Injection, error) {
	c := m.Class
	n := m.ArgCount()
	if n > p.maxArity {
		return nil, &TransformError{
			Code:    ErrCodeUnsupportedArity,
			Message: fmt.Sprintf("%d parameters exceed the limit of %d", n, p.maxArity),
			Class:   c.Name(),
			Member:  m.ID(),
		}
	}
	logRef, err := p.resolver.ResolveLog()
	if err != nil {
		return nil, linkError(c.Name(), m, err)
	}

	pool := c.Pool
	block := make([]*classfile.Instruction, 0, 4+5*n+n)
	block = append(block,
		classfile.PoolInsn(classfile.LDC, pool.StringConst(m.Name)),
		classfile.PushInt(pool, int32(n)),
		classfile.PoolInsn(classfile.ANEWARRAY, pool.Class("java/lang/Object")),
	)
	for i, param := range m.Params {
		block = append(block,
			classfile.Insn(classfile.DUP),
			classfile.PushInt(pool, int32(i)),
			classfile.LoadInsn(param.Type, param.Slot),
		)
		if box, ok := boxes[param.Type[0]]; ok {
			desc := "(" + param.Type + ")L" + box + ";"
			block = append(block, classfile.PoolInsn(classfile.INVOKESTATIC, pool.Ref(classfile.MethodRefOf(box, "valueOf", desc))))
		}
		block = append(block, classfile.Insn(classfile.AASTORE))
	}
	block = append(block, classfile.PoolInsn(classfile.INVOKESTATIC, pool.Ref(logRef)))

	return []Injection{{
		Method: m.Method,
		Anchor: m.Method.Code.Insts[0],
		Mode:   Before,
		Block:  block,
	}}, nil
}
