package vm

import (
	"github.com/roach88/classweave/internal/classfile"
)

// frame is one activation: its locals, operand stack, and next instruction.
type frame struct {
	class  *classfile.Class
	method *classfile.Method
	code   *classfile.Code
	locals []Value
	stack  []Value
	pc     int
}

func newFrame(c *classfile.Class, meth *classfile.Method, args []Value) *frame {
	words := 0
	for _, a := range args {
		words++
		if wide(a) {
			words++
		}
	}
	n := int(meth.Code.MaxLocals)
	if words > n {
		n = words
	}
	f := &frame{
		class:  c,
		method: meth,
		code:   meth.Code,
		locals: make([]Value, n),
		stack:  make([]Value, 0, meth.Code.MaxStack),
	}
	slot := 0
	for _, a := range args {
		f.locals[slot] = a
		slot++
		if wide(a) {
			slot++
		}
	}
	return f
}

func (f *frame) name() string { return f.class.Name() + "." + f.method.ID() }

func (f *frame) push(v Value) { f.stack = append(f.stack, v) }

func (f *frame) pop() Value {
	v := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return v
}

func (f *frame) peek() Value { return f.stack[len(f.stack)-1] }

func (f *frame) popInt() int32     { return f.pop().(int32) }
func (f *frame) popLong() int64    { return f.pop().(int64) }
func (f *frame) popFloat() float32 { return f.pop().(float32) }
func (f *frame) popDouble() float64 { return f.pop().(float64) }

// popN pops n values and returns them in push order.
func (f *frame) popN(n int) []Value {
	out := make([]Value, n)
	copy(out, f.stack[len(f.stack)-n:])
	f.stack = f.stack[:len(f.stack)-n]
	return out
}

// jump moves to the instruction l is bound to.
func (f *frame) jump(l *classfile.Label) { f.pc = f.code.IndexOf(l) }

func (f *frame) store(slot int, v Value) {
	f.locals[slot] = v
	if wide(v) {
		f.locals[slot+1] = nil
	}
}
