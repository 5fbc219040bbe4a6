package classfile

import "math"

// Insn returns an instruction without operands.
func Insn(op Opcode) *Instruction {
	return &Instruction{Op: op, Var: op.ImplicitVar()}
}

// VarInsn returns a load, store, or ret on slot.
func VarInsn(op Opcode, slot int) *Instruction {
	if op.ImplicitVar() >= 0 {
		return &Instruction{Op: op, Var: op.ImplicitVar()}
	}
	return &Instruction{Op: op, Var: slot}
}

// LoadInsn returns the shortest load of a value of type desc from slot.
func LoadInsn(desc string, slot int) *Instruction {
	op := LoadOp(desc[0], slot)
	return VarInsn(op, slot)
}

// IincInsn increments slot by delta.
func IincInsn(slot int, delta int32) *Instruction {
	return &Instruction{Op: IINC, Var: slot, Int: delta}
}

// PoolInsn returns an instruction whose operand is a constant pool index:
// field access, invocation, new, anewarray, checkcast, instanceof, ldc.
func PoolInsn(op Opcode, index uint16) *Instruction {
	return &Instruction{Op: op, Var: -1, Index: index}
}

// InterfaceInsn returns an invokeinterface with its argument word count.
func InterfaceInsn(index uint16, count int) *Instruction {
	return &Instruction{Op: INVOKEINTERFACE, Var: -1, Index: index, Int: int32(count)}
}

// JumpInsn returns a branch to target.
func JumpInsn(op Opcode, target *Label) *Instruction {
	return &Instruction{Op: op, Var: -1, Target: target}
}

// NewArrayInsn allocates a primitive array of the given newarray type.
func NewArrayInsn(atype int) *Instruction {
	return &Instruction{Op: NEWARRAY, Var: -1, Int: int32(atype)}
}

// PushInt returns the shortest instruction that pushes v, using the pool
// only when v does not fit a sipush.
func PushInt(pool *Pool, v int32) *Instruction {
	switch {
	case v >= -1 && v <= 5:
		return Insn(Opcode(int32(ICONST_0) + v))
	case v >= math.MinInt8 && v <= math.MaxInt8:
		return &Instruction{Op: BIPUSH, Var: -1, Int: v}
	case v >= math.MinInt16 && v <= math.MaxInt16:
		return &Instruction{Op: SIPUSH, Var: -1, Int: v}
	}
	return PoolInsn(LDC, pool.Integer(v))
}
