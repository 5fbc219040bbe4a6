package classfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopClass builds a static method whose first instruction is a branch
// target:
//
//	0: nop
//	1: iconst_1
//	2: ifeq 0
//	5: return
func loopClass(t *testing.T) *Class {
	t.Helper()
	b := NewBuilder("demo/Loop", "java/lang/Object")
	m := b.Method(AccStatic, "spin", "()V")
	top := m.NewLabel()
	m.Bind(top).Op(NOP).Int(1).Jump(IFEQ, top).Op(RETURN)
	cls, err := b.Build()
	require.NoError(t, err)
	return cls
}

func rewrite(t *testing.T, cls *Class) *Class {
	t.Helper()
	data, err := Write(cls)
	require.NoError(t, err)
	out, err := Parse(data)
	require.NoError(t, err)
	return out
}

func TestInsertBeforeKeepsLabelsOnAnchor(t *testing.T) {
	cls := loopClass(t)
	code := cls.Method("spin", "()V").Code
	require.NoError(t, code.InsertBefore(code.Insts[0], Insn(ICONST_0), Insn(POP)))
	assert.True(t, code.Dirty())

	out := rewrite(t, cls).Method("spin", "()V").Code
	require.Len(t, out.Insts, 6)
	branch := out.Insts[4]
	require.Equal(t, IFEQ, branch.Op)
	assert.Equal(t, 2, branch.Target.Instruction().Offset, "branch still lands on the original nop")
	assert.Equal(t, uint16(1), out.MaxStack)
}

func TestInsertAtMovesLabelsToBlock(t *testing.T) {
	cls := loopClass(t)
	code := cls.Method("spin", "()V").Code
	require.NoError(t, code.InsertAt(code.Insts[0], Insn(ICONST_0), Insn(POP)))

	out := rewrite(t, cls).Method("spin", "()V").Code
	branch := out.Insts[4]
	assert.Equal(t, 0, branch.Target.Instruction().Offset, "branch now runs the inserted block")
	assert.Equal(t, ICONST_0, branch.Target.Instruction().Op)
}

func TestInsertAtLeavesPinnedLabels(t *testing.T) {
	cls := loopClass(t)
	code := cls.Method("spin", "()V").Code
	anchor := code.Insts[0]
	site := code.NewLabel(anchor)
	site.pinned = true
	moved := code.NewLabel(anchor)

	require.NoError(t, code.InsertAt(anchor, Insn(NOP)))
	assert.Same(t, anchor, site.Instruction())
	assert.Same(t, code.Insts[0], moved.Instruction())
}

func TestInsertRejectsForeignAnchor(t *testing.T) {
	cls := loopClass(t)
	code := cls.Method("spin", "()V").Code
	err := code.InsertBefore(Insn(NOP), Insn(NOP))
	require.Error(t, err)
	assert.True(t, IsComputeError(err))
}

func TestUnmodifiedMethodsKeepOriginalBytes(t *testing.T) {
	b := NewBuilder("demo/Two", "java/lang/Object")
	b.Method(AccStatic, "a", "()V").Op(RETURN)
	b.Method(AccStatic, "b", "()V").Op(RETURN)
	cls, err := b.Build()
	require.NoError(t, err)
	before := append([]byte{}, cls.Method("b", "()V").Attributes[0].Data...)

	code := cls.Method("a", "()V").Code
	require.NoError(t, code.InsertBefore(code.Insts[0], Insn(NOP)))
	out := rewrite(t, cls)

	assert.Equal(t, before, out.Method("b", "()V").Attributes[0].Data)
	assert.Len(t, out.Method("a", "()V").Code.Insts, 2)
}

func TestGotoWidenedWhenTargetIsFar(t *testing.T) {
	b := NewBuilder("demo/Far", "java/lang/Object")
	m := b.Method(AccStatic, "jump", "()V")
	end := m.NewLabel()
	m.Jump(GOTO, end)
	for i := 0; i < 40000; i++ {
		m.Op(NOP)
	}
	m.Bind(end).Op(RETURN)
	cls, err := b.Build()
	require.NoError(t, err)

	code := cls.Method("jump", "()V").Code
	assert.Equal(t, GOTO_W, code.Insts[0].Op)
	assert.Equal(t, 40005, code.Insts[0].Target.Instruction().Offset)
}

func TestConditionalBranchOutOfRange(t *testing.T) {
	b := NewBuilder("demo/Far", "java/lang/Object")
	m := b.Method(AccStatic, "jump", "()V")
	end := m.NewLabel()
	m.Int(0).Jump(IFEQ, end)
	for i := 0; i < 40000; i++ {
		m.Op(NOP)
	}
	m.Bind(end).Op(RETURN)
	_, err := b.Bytes()
	require.Error(t, err)
	assert.True(t, IsComputeError(err))
}

func TestComputeMaxs(t *testing.T) {
	t.Run("handler entry holds the exception", func(t *testing.T) {
		b := NewBuilder("demo/Try", "java/lang/Object")
		m := b.Method(AccStatic, "guarded", "()V")
		start, end, handler := m.NewLabel(), m.NewLabel(), m.NewLabel()
		m.Bind(start).Op(NOP).Bind(end).Op(RETURN)
		m.Bind(handler).Op(ATHROW)
		m.Catch(start, end, handler, "java/lang/Exception")
		cls, err := b.Build()
		require.NoError(t, err)
		assert.Equal(t, uint16(1), cls.Method("guarded", "()V").Code.MaxStack)
	})

	t.Run("long arguments widen locals", func(t *testing.T) {
		b := NewBuilder("demo/Wide", "java/lang/Object")
		b.Method(0, "sum", "(JI)J").
			Var(LLOAD, 1).
			Var(ILOAD, 3).
			Op(I2L, LADD, LRETURN)
		cls, err := b.Build()
		require.NoError(t, err)
		code := cls.Method("sum", "(JI)J").Code
		assert.Equal(t, uint16(4), code.MaxStack)
		assert.Equal(t, uint16(4), code.MaxLocals)
	})

	t.Run("underflow", func(t *testing.T) {
		b := NewBuilder("demo/Bad", "java/lang/Object")
		b.Method(AccStatic, "pop", "()V").Op(POP, RETURN)
		_, err := b.Bytes()
		require.Error(t, err)
		assert.True(t, IsComputeError(err))
		assert.Contains(t, err.Error(), "underflow")
	})

	t.Run("inconsistent merge", func(t *testing.T) {
		b := NewBuilder("demo/Bad", "java/lang/Object")
		m := b.Method(AccStatic, "merge", "()V")
		join := m.NewLabel()
		m.Int(0).Jump(IFEQ, join).Int(1).Bind(join).Op(RETURN)
		_, err := b.Bytes()
		require.Error(t, err)
		assert.True(t, IsComputeError(err))
	})
}

func TestStackMapFramesFollowInsertion(t *testing.T) {
	// 0: iconst_0  1: istore_0  2: iload_0  3: bipush 10  5: if_icmpge 14
	// 8: iinc 0 1  11: goto 2  14: return
	b := NewBuilder("demo/Count", "java/lang/Object")
	m := b.Method(AccStatic, "count", "()V")
	head, exit := m.NewLabel(), m.NewLabel()
	m.Op(ICONST_0, ISTORE_0)
	m.Bind(head).Op(ILOAD_0).Int(10).Jump(IF_ICMPGE, exit)
	m.Iinc(0, 1).Jump(GOTO, head)
	m.Bind(exit).Op(RETURN)
	cls, err := b.Build()
	require.NoError(t, err)

	code := cls.Method("count", "()V").Code
	require.Equal(t, 14, code.Insts[7].Offset)
	code.attrs = append(code.attrs, codeAttr{
		Attribute: Attribute{NameIndex: cls.Pool.Utf8(AttrStackMapTable), Name: AttrStackMapTable},
		kind:      attrFrames,
		frames: []frame{
			{kind: frameAppendFirst, at: code.NewLabel(code.Insts[2]), locals: []vtype{{tag: vtInteger}}},
			{kind: frameSame, at: code.NewLabel(code.Insts[7])},
		},
	})
	code.markDirty()
	cls = rewrite(t, cls)
	assert.Equal(t, []byte{0, 2, 252, 0, 2, vtInteger, 11}, stackMap(t, cls, "count"))

	code = cls.Method("count", "()V").Code
	require.NoError(t, code.InsertBefore(code.Insts[0], Insn(NOP), Insn(NOP), Insn(NOP)))
	cls = rewrite(t, cls)
	assert.Equal(t, []byte{0, 2, 252, 0, 5, vtInteger, 11}, stackMap(t, cls, "count"))

	code = cls.Method("count", "()V").Code
	pad := make([]*Instruction, 60)
	for i := range pad {
		pad[i] = Insn(NOP)
	}
	require.NoError(t, code.InsertBefore(code.Insts[8], pad...))
	cls = rewrite(t, cls)
	assert.Equal(t, []byte{0, 2, 252, 0, 5, vtInteger, frameSameExtended, 0, 71}, stackMap(t, cls, "count"))
}

func TestTypeAnnotationsDroppedOnRewrite(t *testing.T) {
	cls := loopClass(t)
	code := cls.Method("spin", "()V").Code
	code.attrs = append(code.attrs, codeAttr{
		Attribute: Attribute{NameIndex: cls.Pool.Utf8(AttrVisibleTypeAnnotations), Name: AttrVisibleTypeAnnotations, Data: []byte{0, 0}},
		kind:      attrOpaqueOffsets,
	})
	require.NoError(t, code.InsertBefore(code.Insts[0], Insn(NOP)))
	assert.Equal(t, []string{AttrVisibleTypeAnnotations}, code.Dropped)
	assert.Empty(t, code.attrs)
}

func stackMap(t *testing.T, cls *Class, method string) []byte {
	t.Helper()
	for _, a := range cls.Method(method, "()V").Code.attrs {
		if a.Name == AttrStackMapTable {
			return a.Data
		}
	}
	t.Fatalf("method %s has no StackMapTable", method)
	return nil
}
