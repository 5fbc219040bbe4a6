package vm

import (
	"errors"
	"fmt"
	"math"

	"github.com/roach88/classweave/internal/classfile"
)

// execute runs meth to completion. Exceptions are matched against the
// method's handlers before propagating to the caller.
func (m *Machine) execute(c *classfile.Class, meth *classfile.Method, args []Value) (ret Value, err error) {
	f := newFrame(c, meth, args)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s at %d: %v", f.name(), f.pc, r)
		}
	}()
	for f.pc < len(f.code.Insts) {
		m.steps++
		if m.stepLimit > 0 && m.steps > m.stepLimit {
			return nil, ErrStepLimit
		}
		at := f.pc
		in := f.code.Insts[at]
		f.pc++
		v, done, err := m.step(f, in)
		if err != nil {
			var t *Thrown
			if !errors.As(err, &t) {
				return nil, err
			}
			if h := m.handler(f, at, t); h >= 0 {
				f.stack = f.stack[:0]
				f.push(t.Exception)
				f.pc = h
				continue
			}
			t.Trace = append(t.Trace, f.name())
			return nil, t
		}
		if done {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%s: execution ran past the last instruction", f.name())
}

// handler returns the index of the first handler covering at that catches
// t, or -1.
func (m *Machine) handler(f *frame, at int, t *Thrown) int {
	for _, h := range f.code.Handlers {
		start, end := f.code.IndexOf(h.Start), f.code.IndexOf(h.End)
		if at < start || at >= end {
			continue
		}
		if h.CatchType != 0 {
			name, err := f.class.Pool.ClassName(h.CatchType)
			if err != nil || !m.instanceOf(t.Exception, name) {
				continue
			}
		}
		return f.code.IndexOf(h.Handler)
	}
	return -1
}

func (m *Machine) step(f *frame, in *classfile.Instruction) (Value, bool, error) {
	pool := f.class.Pool
	switch op := in.Op; op {
	case classfile.NOP:
	case classfile.ACONST_NULL:
		f.push(nil)
	case classfile.ICONST_M1, classfile.ICONST_0, classfile.ICONST_1, classfile.ICONST_2,
		classfile.ICONST_3, classfile.ICONST_4, classfile.ICONST_5:
		f.push(int32(op) - int32(classfile.ICONST_0))
	case classfile.LCONST_0, classfile.LCONST_1:
		f.push(int64(op - classfile.LCONST_0))
	case classfile.FCONST_0, classfile.FCONST_1, classfile.FCONST_2:
		f.push(float32(op - classfile.FCONST_0))
	case classfile.DCONST_0, classfile.DCONST_1:
		f.push(float64(op - classfile.DCONST_0))
	case classfile.BIPUSH, classfile.SIPUSH:
		f.push(in.Int)
	case classfile.LDC, classfile.LDC_W, classfile.LDC2_W:
		v, err := loadConstant(pool, in.Index)
		if err != nil {
			return nil, false, err
		}
		f.push(v)

	case classfile.ILOAD, classfile.LLOAD, classfile.FLOAD, classfile.DLOAD, classfile.ALOAD,
		classfile.ILOAD_0, classfile.ILOAD_1, classfile.ILOAD_2, classfile.ILOAD_3,
		classfile.LLOAD_0, classfile.LLOAD_1, classfile.LLOAD_2, classfile.LLOAD_3,
		classfile.FLOAD_0, classfile.FLOAD_1, classfile.FLOAD_2, classfile.FLOAD_3,
		classfile.DLOAD_0, classfile.DLOAD_1, classfile.DLOAD_2, classfile.DLOAD_3,
		classfile.ALOAD_0, classfile.ALOAD_1, classfile.ALOAD_2, classfile.ALOAD_3:
		f.push(f.locals[in.Var])
	case classfile.ISTORE, classfile.LSTORE, classfile.FSTORE, classfile.DSTORE, classfile.ASTORE,
		classfile.ISTORE_0, classfile.ISTORE_1, classfile.ISTORE_2, classfile.ISTORE_3,
		classfile.LSTORE_0, classfile.LSTORE_1, classfile.LSTORE_2, classfile.LSTORE_3,
		classfile.FSTORE_0, classfile.FSTORE_1, classfile.FSTORE_2, classfile.FSTORE_3,
		classfile.DSTORE_0, classfile.DSTORE_1, classfile.DSTORE_2, classfile.DSTORE_3,
		classfile.ASTORE_0, classfile.ASTORE_1, classfile.ASTORE_2, classfile.ASTORE_3:
		f.store(in.Var, f.pop())
	case classfile.IINC:
		f.locals[in.Var] = f.locals[in.Var].(int32) + in.Int

	case classfile.IALOAD, classfile.LALOAD, classfile.FALOAD, classfile.DALOAD,
		classfile.AALOAD, classfile.BALOAD, classfile.CALOAD, classfile.SALOAD:
		i := f.popInt()
		arr, err := m.array(f.pop(), i)
		if err != nil {
			return nil, false, err
		}
		f.push(arr.Values[i])
	case classfile.IASTORE, classfile.LASTORE, classfile.FASTORE, classfile.DASTORE,
		classfile.AASTORE, classfile.BASTORE, classfile.CASTORE, classfile.SASTORE:
		v := f.pop()
		i := f.popInt()
		arr, err := m.array(f.pop(), i)
		if err != nil {
			return nil, false, err
		}
		arr.Values[i] = narrow(arr.Elem, v)

	case classfile.POP:
		f.pop()
	case classfile.POP2:
		if !wide(f.pop()) {
			f.pop()
		}
	case classfile.DUP:
		f.push(f.peek())
	case classfile.DUP_X1:
		v1, v2 := f.pop(), f.pop()
		f.push(v1)
		f.push(v2)
		f.push(v1)
	case classfile.DUP_X2:
		v1, v2 := f.pop(), f.pop()
		if wide(v2) {
			f.push(v1)
			f.push(v2)
			f.push(v1)
			break
		}
		v3 := f.pop()
		f.push(v1)
		f.push(v3)
		f.push(v2)
		f.push(v1)
	case classfile.DUP2:
		v1 := f.pop()
		if wide(v1) {
			f.push(v1)
			f.push(v1)
			break
		}
		v2 := f.pop()
		f.push(v2)
		f.push(v1)
		f.push(v2)
		f.push(v1)
	case classfile.DUP2_X1:
		v1, v2 := f.pop(), f.pop()
		if wide(v1) {
			f.push(v1)
			f.push(v2)
			f.push(v1)
			break
		}
		v3 := f.pop()
		f.push(v2)
		f.push(v1)
		f.push(v3)
		f.push(v2)
		f.push(v1)
	case classfile.SWAP:
		v1, v2 := f.pop(), f.pop()
		f.push(v1)
		f.push(v2)

	case classfile.IADD, classfile.ISUB, classfile.IMUL, classfile.IDIV, classfile.IREM,
		classfile.ISHL, classfile.ISHR, classfile.IUSHR, classfile.IAND, classfile.IOR, classfile.IXOR:
		b, a := f.popInt(), f.popInt()
		v, err := m.intOp(op, a, b)
		if err != nil {
			return nil, false, err
		}
		f.push(v)
	case classfile.LADD, classfile.LSUB, classfile.LMUL, classfile.LDIV, classfile.LREM,
		classfile.LAND, classfile.LOR, classfile.LXOR:
		b, a := f.popLong(), f.popLong()
		v, err := m.longOp(op, a, b)
		if err != nil {
			return nil, false, err
		}
		f.push(v)
	case classfile.LSHL, classfile.LSHR, classfile.LUSHR:
		s, a := uint(f.popInt()&63), f.popLong()
		switch op {
		case classfile.LSHL:
			f.push(a << s)
		case classfile.LSHR:
			f.push(a >> s)
		default:
			f.push(int64(uint64(a) >> s))
		}
	case classfile.FADD, classfile.FSUB, classfile.FMUL, classfile.FDIV, classfile.FREM:
		b, a := f.popFloat(), f.popFloat()
		f.push(float32(floatOp(op-classfile.FADD, float64(a), float64(b))))
	case classfile.DADD, classfile.DSUB, classfile.DMUL, classfile.DDIV, classfile.DREM:
		b, a := f.popDouble(), f.popDouble()
		f.push(floatOp(op-classfile.DADD, a, b))
	case classfile.INEG:
		f.push(-f.popInt())
	case classfile.LNEG:
		f.push(-f.popLong())
	case classfile.FNEG:
		f.push(-f.popFloat())
	case classfile.DNEG:
		f.push(-f.popDouble())

	case classfile.I2L:
		f.push(int64(f.popInt()))
	case classfile.I2F:
		f.push(float32(f.popInt()))
	case classfile.I2D:
		f.push(float64(f.popInt()))
	case classfile.L2I:
		f.push(int32(f.popLong()))
	case classfile.L2F:
		f.push(float32(f.popLong()))
	case classfile.L2D:
		f.push(float64(f.popLong()))
	case classfile.F2I:
		f.push(toInt32(float64(f.popFloat())))
	case classfile.F2L:
		f.push(toInt64(float64(f.popFloat())))
	case classfile.F2D:
		f.push(float64(f.popFloat()))
	case classfile.D2I:
		f.push(toInt32(f.popDouble()))
	case classfile.D2L:
		f.push(toInt64(f.popDouble()))
	case classfile.D2F:
		f.push(float32(f.popDouble()))
	case classfile.I2B:
		f.push(int32(int8(f.popInt())))
	case classfile.I2C:
		f.push(int32(uint16(f.popInt())))
	case classfile.I2S:
		f.push(int32(int16(f.popInt())))

	case classfile.LCMP:
		b, a := f.popLong(), f.popLong()
		f.push(compare(a < b, a > b, 0))
	case classfile.FCMPL, classfile.FCMPG:
		b, a := f.popFloat(), f.popFloat()
		f.push(compare(a < b, a > b, nanResult(op == classfile.FCMPG, math.IsNaN(float64(a)) || math.IsNaN(float64(b)))))
	case classfile.DCMPL, classfile.DCMPG:
		b, a := f.popDouble(), f.popDouble()
		f.push(compare(a < b, a > b, nanResult(op == classfile.DCMPG, math.IsNaN(a) || math.IsNaN(b))))

	case classfile.IFEQ, classfile.IFNE, classfile.IFLT, classfile.IFGE, classfile.IFGT, classfile.IFLE:
		if intCond(op-classfile.IFEQ, f.popInt(), 0) {
			f.jump(in.Target)
		}
	case classfile.IF_ICMPEQ, classfile.IF_ICMPNE, classfile.IF_ICMPLT,
		classfile.IF_ICMPGE, classfile.IF_ICMPGT, classfile.IF_ICMPLE:
		b, a := f.popInt(), f.popInt()
		if intCond(op-classfile.IF_ICMPEQ, a, b) {
			f.jump(in.Target)
		}
	case classfile.IF_ACMPEQ, classfile.IF_ACMPNE:
		b, a := f.pop(), f.pop()
		if (a == b) == (op == classfile.IF_ACMPEQ) {
			f.jump(in.Target)
		}
	case classfile.IFNULL, classfile.IFNONNULL:
		if (f.pop() == nil) == (op == classfile.IFNULL) {
			f.jump(in.Target)
		}
	case classfile.GOTO, classfile.GOTO_W:
		f.jump(in.Target)
	case classfile.TABLESWITCH:
		key := f.popInt()
		sw := in.Switch
		if key < sw.Low || key > sw.High {
			f.jump(sw.Default)
		} else {
			f.jump(sw.Targets[key-sw.Low])
		}
	case classfile.LOOKUPSWITCH:
		key := f.popInt()
		target := in.Switch.Default
		for i, k := range in.Switch.Keys {
			if k == key {
				target = in.Switch.Targets[i]
				break
			}
		}
		f.jump(target)

	case classfile.IRETURN, classfile.LRETURN, classfile.FRETURN, classfile.DRETURN, classfile.ARETURN:
		return f.pop(), true, nil
	case classfile.RETURN:
		return nil, true, nil

	case classfile.GETSTATIC, classfile.PUTSTATIC, classfile.GETFIELD, classfile.PUTFIELD:
		ref, err := pool.Member(in.Index)
		if err != nil {
			return nil, false, err
		}
		return nil, false, m.field(f, op, ref)

	case classfile.INVOKEVIRTUAL, classfile.INVOKESPECIAL, classfile.INVOKESTATIC, classfile.INVOKEINTERFACE:
		ref, err := pool.Member(in.Index)
		if err != nil {
			return nil, false, err
		}
		mt, err := classfile.ParseMethodDescriptor(ref.Desc)
		if err != nil {
			return nil, false, err
		}
		args := f.popN(len(mt.Params))
		var v Value
		switch op {
		case classfile.INVOKESTATIC:
			v, err = m.invokeStatic(ref, args)
		case classfile.INVOKESPECIAL:
			v, err = m.invokeSpecial(ref, f.pop(), args)
		default:
			v, err = m.invokeVirtual(ref, f.pop(), args)
		}
		if err != nil {
			return nil, false, err
		}
		if mt.Return != "V" {
			f.push(v)
		}

	case classfile.NEW:
		name, err := pool.ClassName(in.Index)
		if err != nil {
			return nil, false, err
		}
		obj, err := m.allocate(name)
		if err != nil {
			return nil, false, err
		}
		f.push(obj)
	case classfile.NEWARRAY:
		n := f.popInt()
		if n < 0 {
			return nil, false, m.throw(negativeSize, javaString(n))
		}
		f.push(newArray(primitiveElem[in.Int], int(n)))
	case classfile.ANEWARRAY:
		name, err := pool.ClassName(in.Index)
		if err != nil {
			return nil, false, err
		}
		n := f.popInt()
		if n < 0 {
			return nil, false, m.throw(negativeSize, javaString(n))
		}
		f.push(newArray(elemDescriptor(name), int(n)))
	case classfile.MULTIANEWARRAY:
		name, err := pool.ClassName(in.Index)
		if err != nil {
			return nil, false, err
		}
		dims := f.popN(int(in.Int))
		arr, err := m.multiArray(name, dims)
		if err != nil {
			return nil, false, err
		}
		f.push(arr)
	case classfile.ARRAYLENGTH:
		arr, ok := f.pop().(*Array)
		if !ok {
			return nil, false, m.throw(nullPointer, "")
		}
		f.push(int32(len(arr.Values)))
	case classfile.ATHROW:
		ex, ok := f.pop().(*Object)
		if !ok {
			return nil, false, m.throw(nullPointer, "")
		}
		return nil, false, &Thrown{Exception: ex}
	case classfile.CHECKCAST:
		name, err := pool.ClassName(in.Index)
		if err != nil {
			return nil, false, err
		}
		if v := f.peek(); v != nil && !m.instanceOf(v, name) {
			return nil, false, m.throw(classCast, fmt.Sprintf("%T cannot be cast to %s", v, dotted(name)))
		}
	case classfile.INSTANCEOF:
		name, err := pool.ClassName(in.Index)
		if err != nil {
			return nil, false, err
		}
		f.push(boolValue(m.instanceOf(f.pop(), name)))
	case classfile.MONITORENTER, classfile.MONITOREXIT:
		if f.pop() == nil {
			return nil, false, m.throw(nullPointer, "")
		}

	default:
		return nil, false, &UnsupportedInstructionError{Op: op, Method: f.name()}
	}
	return nil, false, nil
}

// field executes the four field instructions.
func (m *Machine) field(f *frame, op classfile.Opcode, ref classfile.MemberRef) error {
	switch op {
	case classfile.GETSTATIC, classfile.PUTSTATIC:
		if ref.Owner == "java/lang/System" && op == classfile.GETSTATIC {
			switch ref.Name {
			case "out":
				f.push(m.stdout)
				return nil
			case "err":
				f.push(m.stderr)
				return nil
			}
		}
		s, err := m.initialize(ref.Owner)
		if err != nil {
			return err
		}
		owner := m.staticOwner(s, ref.Name)
		if owner == nil {
			return &LinkageError{Ref: ref, Reason: "no such static field"}
		}
		if op == classfile.GETSTATIC {
			f.push(owner.statics[ref.Name])
		} else {
			owner.statics[ref.Name] = narrow(ref.Desc, f.pop())
		}
		return nil
	}
	if op == classfile.PUTFIELD {
		v := f.pop()
		obj, ok := f.pop().(*Object)
		if !ok {
			return m.throw(nullPointer, "")
		}
		obj.Fields[ref.Name] = narrow(ref.Desc, v)
		return nil
	}
	obj, ok := f.pop().(*Object)
	if !ok {
		return m.throw(nullPointer, "")
	}
	f.push(obj.Fields[ref.Name])
	return nil
}

// staticOwner finds the class declaring a static field, walking up from s.
func (m *Machine) staticOwner(s *classState, name string) *classState {
	for s != nil {
		if _, ok := s.statics[name]; ok {
			return s
		}
		next, ok := m.classes[s.class.SuperName()]
		if !ok {
			return nil
		}
		s = next
	}
	return nil
}

func (m *Machine) array(v Value, i int32) (*Array, error) {
	arr, ok := v.(*Array)
	if !ok {
		return nil, m.throw(nullPointer, "")
	}
	if i < 0 || int(i) >= len(arr.Values) {
		return nil, m.throw(outOfBounds, fmt.Sprintf("Index %d out of bounds for length %d", i, len(arr.Values)))
	}
	return arr, nil
}

func (m *Machine) multiArray(name string, dims []Value) (*Array, error) {
	n := dims[0].(int32)
	if n < 0 {
		return nil, m.throw(negativeSize, javaString(n))
	}
	arr := newArray(name[1:], int(n))
	if len(dims) == 1 {
		return arr, nil
	}
	for i := range arr.Values {
		sub, err := m.multiArray(name[1:], dims[1:])
		if err != nil {
			return nil, err
		}
		arr.Values[i] = sub
	}
	return arr, nil
}

var primitiveElem = map[int32]string{
	classfile.ArrayBoolean: "Z", classfile.ArrayChar: "C", classfile.ArrayFloat: "F", classfile.ArrayDouble: "D",
	classfile.ArrayByte: "B", classfile.ArrayShort: "S", classfile.ArrayInt: "I", classfile.ArrayLong: "J",
}

// elemDescriptor turns an anewarray class operand into a field descriptor.
func elemDescriptor(name string) string {
	if name[0] == '[' {
		return name
	}
	return "L" + name + ";"
}

func newArray(elem string, n int) *Array {
	arr := &Array{Elem: elem, Values: make([]Value, n)}
	z := zero(elem)
	for i := range arr.Values {
		arr.Values[i] = z
	}
	return arr
}

// narrow truncates an int stored into a sub-int location.
func narrow(desc string, v Value) Value {
	i, ok := v.(int32)
	if !ok {
		return v
	}
	switch desc {
	case "Z":
		return i & 1
	case "B":
		return int32(int8(i))
	case "C":
		return int32(uint16(i))
	case "S":
		return int32(int16(i))
	}
	return v
}

func loadConstant(pool *classfile.Pool, index uint16) (Value, error) {
	c, err := pool.Get(index)
	if err != nil {
		return nil, err
	}
	switch c.Tag {
	case classfile.TagInteger:
		return int32(uint32(c.Value)), nil
	case classfile.TagFloat:
		return math.Float32frombits(uint32(c.Value)), nil
	case classfile.TagLong:
		return int64(c.Value), nil
	case classfile.TagDouble:
		return math.Float64frombits(c.Value), nil
	case classfile.TagString:
		return pool.UTF8(c.A)
	case classfile.TagClass:
		name, err := pool.ClassName(index)
		if err != nil {
			return nil, err
		}
		return &ClassValue{Name: name}, nil
	}
	return nil, fmt.Errorf("constant #%d (%s) is not supported", index, c.Tag)
}

func (m *Machine) intOp(op classfile.Opcode, a, b int32) (int32, error) {
	switch op {
	case classfile.IADD:
		return a + b, nil
	case classfile.ISUB:
		return a - b, nil
	case classfile.IMUL:
		return a * b, nil
	case classfile.IDIV, classfile.IREM:
		if b == 0 {
			return 0, m.throw(arithmetic, "/ by zero")
		}
		if op == classfile.IDIV {
			return a / b, nil
		}
		return a % b, nil
	case classfile.ISHL:
		return a << uint(b&31), nil
	case classfile.ISHR:
		return a >> uint(b&31), nil
	case classfile.IUSHR:
		return int32(uint32(a) >> uint(b&31)), nil
	case classfile.IAND:
		return a & b, nil
	case classfile.IOR:
		return a | b, nil
	}
	return a ^ b, nil
}

func (m *Machine) longOp(op classfile.Opcode, a, b int64) (int64, error) {
	switch op {
	case classfile.LADD:
		return a + b, nil
	case classfile.LSUB:
		return a - b, nil
	case classfile.LMUL:
		return a * b, nil
	case classfile.LDIV, classfile.LREM:
		if b == 0 {
			return 0, m.throw(arithmetic, "/ by zero")
		}
		if op == classfile.LDIV {
			return a / b, nil
		}
		return a % b, nil
	case classfile.LAND:
		return a & b, nil
	case classfile.LOR:
		return a | b, nil
	}
	return a ^ b, nil
}

// floatOp applies the n-th arithmetic operation: add, sub, mul, div, rem.
// The float and double opcodes each step by 4 between operations.
func floatOp(delta classfile.Opcode, a, b float64) float64 {
	switch delta / 4 {
	case 0:
		return a + b
	case 1:
		return a - b
	case 2:
		return a * b
	case 3:
		return a / b
	}
	return math.Mod(a, b)
}

// intCond evaluates eq, ne, lt, ge, gt, le by offset from the first opcode.
func intCond(cond classfile.Opcode, a, b int32) bool {
	switch cond {
	case 0:
		return a == b
	case 1:
		return a != b
	case 2:
		return a < b
	case 3:
		return a >= b
	case 4:
		return a > b
	}
	return a <= b
}

func compare(less, greater bool, unordered int32) int32 {
	switch {
	case less:
		return -1
	case greater:
		return 1
	case unordered != 0:
		return unordered
	}
	return 0
}

// nanResult is the comparison result for unordered operands: 1 for the
// *g forms, -1 for the *l forms.
func nanResult(g, unordered bool) int32 {
	if !unordered {
		return 0
	}
	if g {
		return 1
	}
	return -1
}

func toInt32(f float64) int32 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt32:
		return math.MaxInt32
	case f <= math.MinInt32:
		return math.MinInt32
	}
	return int32(f)
}

func toInt64(f float64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	}
	return int64(f)
}
