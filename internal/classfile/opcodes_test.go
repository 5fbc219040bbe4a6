package classfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShortVarOp(t *testing.T) {
	tests := []struct {
		op   Opcode
		slot int
		want Opcode
	}{
		{ILOAD, 0, ILOAD_0},
		{ILOAD, 3, ILOAD_3},
		{LLOAD, 1, LLOAD_1},
		{FLOAD, 2, FLOAD_2},
		{DLOAD, 3, DLOAD_3},
		{ALOAD, 0, ALOAD_0},
		{ISTORE, 1, ISTORE_1},
		{LSTORE, 0, LSTORE_0},
		{FSTORE, 3, FSTORE_3},
		{DSTORE, 2, DSTORE_2},
		{ASTORE, 2, ASTORE_2},
		{ALOAD, 4, ALOAD},
		{ISTORE, 200, ISTORE},
		{RET, 0, RET},
		{IINC, 1, IINC},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ShortVarOp(tt.op, tt.slot), "%s %d", tt.op, tt.slot)
	}
}

func TestStoreOp(t *testing.T) {
	assert.Equal(t, ISTORE_1, StoreOp('Z', 1))
	assert.Equal(t, LSTORE_2, StoreOp('J', 2))
	assert.Equal(t, FSTORE, StoreOp('F', 7))
	assert.Equal(t, DSTORE_0, StoreOp('D', 0))
	assert.Equal(t, ASTORE_3, StoreOp('[', 3))
	assert.Equal(t, ASTORE, StoreOp('L', 4))
}

func TestAsmVarEmitsShortForms(t *testing.T) {
	b := NewBuilder("demo/Locals", "java/lang/Object")
	b.Method(AccStatic, "mix", "(ILjava/lang/String;)I").
		Var(ALOAD, 1).
		Var(ASTORE, 2).
		Var(ILOAD, 0).
		Var(ISTORE, 5).
		Var(ILOAD, 5).
		Op(IRETURN)
	data, err := b.Bytes()
	require.NoError(t, err)

	cls, err := Parse(data)
	require.NoError(t, err)
	code := cls.Method("mix", "(ILjava/lang/String;)I").Code
	require.Len(t, code.Insts, 6)

	ops := make([]Opcode, 0, len(code.Insts))
	for _, in := range code.Insts {
		ops = append(ops, in.Op)
	}
	assert.Equal(t, []Opcode{ALOAD_1, ASTORE_2, ILOAD_0, ISTORE, ILOAD, IRETURN}, ops)
	assert.Equal(t, 5, code.Insts[3].Var)
	assert.Equal(t, uint16(6), code.MaxLocals)
}
