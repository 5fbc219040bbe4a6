package classfile

import "fmt"

// Builder assembles a class from scratch. It is used to produce fixtures
// and hook classes without a Java compiler.
type Builder struct {
	class   *Class
	methods []*Asm
}

// NewBuilder starts a public class with the given internal names.
func NewBuilder(name, super string) *Builder {
	pool := NewPool()
	c := &Class{
		Major:  DefaultMajorVersion,
		Pool:   pool,
		Access: AccPublic | AccSuper,
		name:   name,
	}
	c.ThisClass = pool.Class(name)
	if super != "" {
		c.SuperClass = pool.Class(super)
	}
	return &Builder{class: c}
}

// Pool returns the constant pool under construction.
func (b *Builder) Pool() *Pool { return b.class.Pool }

// Version overrides the class file version.
func (b *Builder) Version(major, minor uint16) *Builder {
	b.class.Major, b.class.Minor = major, minor
	return b
}

// Field declares a field.
func (b *Builder) Field(access AccessFlags, name, desc string) *Builder {
	p := b.class.Pool
	b.class.Fields = append(b.class.Fields, &Field{
		Access: access, NameIndex: p.Utf8(name), DescIndex: p.Utf8(desc), Name: name, Desc: desc,
	})
	return b
}

// Abstract declares a method without a body.
func (b *Builder) Abstract(access AccessFlags, name, desc string) *Builder {
	b.class.Methods = append(b.class.Methods, b.method(access, name, desc))
	return b
}

// Method declares a method and returns an assembler for its body.
func (b *Builder) Method(access AccessFlags, name, desc string) *Asm {
	m := b.method(access, name, desc)
	m.Code = &Code{method: m.ID()}
	b.class.Methods = append(b.class.Methods, m)
	a := &Asm{b: b, m: m}
	b.methods = append(b.methods, a)
	return a
}

func (b *Builder) method(access AccessFlags, name, desc string) *Method {
	p := b.class.Pool
	return &Method{Access: access, NameIndex: p.Utf8(name), DescIndex: p.Utf8(desc), Name: name, Desc: desc, codeAttr: -1}
}

// Build finishes every method body and returns the parsed form of the
// encoded class.
func (b *Builder) Build() (*Class, error) {
	data, err := b.Bytes()
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Bytes finishes every method body and encodes the class.
func (b *Builder) Bytes() ([]byte, error) {
	for _, a := range b.methods {
		if a.err != nil {
			return nil, fmt.Errorf("method %s: %w", a.m.ID(), a.err)
		}
		if len(a.pending) > 0 {
			for _, l := range a.pending {
				l.inst = nil
			}
			a.pending = nil
		}
		a.m.Code.dirty = true
	}
	return Write(b.class)
}

// Asm appends instructions to a method body.
type Asm struct {
	b       *Builder
	m       *Method
	pending []*Label
	err     error
}

func (a *Asm) emit(in *Instruction) *Asm {
	code := a.m.Code
	for _, l := range a.pending {
		l.inst = in
	}
	a.pending = a.pending[:0]
	code.Insts = append(code.Insts, in)
	code.index = nil
	return a
}

// NewLabel returns an unbound label.
func (a *Asm) NewLabel() *Label {
	return a.m.Code.NewLabel(nil)
}

// Bind attaches l to the next emitted instruction.
func (a *Asm) Bind(l *Label) *Asm {
	a.pending = append(a.pending, l)
	return a
}

// Op emits an instruction without operands.
func (a *Asm) Op(ops ...Opcode) *Asm {
	for _, op := range ops {
		a.emit(Insn(op))
	}
	return a
}

// Var emits a load or store on slot, in the one-byte form for slots 0-3.
func (a *Asm) Var(op Opcode, slot int) *Asm { return a.emit(VarInsn(ShortVarOp(op, slot), slot)) }

// Iinc increments a local.
func (a *Asm) Iinc(slot int, delta int32) *Asm { return a.emit(IincInsn(slot, delta)) }

// Int pushes an int constant.
func (a *Asm) Int(v int32) *Asm { return a.emit(PushInt(a.b.class.Pool, v)) }

// ClassLiteral is an ldc operand naming a class, as in Foo.class.
type ClassLiteral string

// Ldc pushes a string, int32, int64, or ClassLiteral constant.
func (a *Asm) Ldc(v any) *Asm {
	p := a.b.class.Pool
	switch v := v.(type) {
	case ClassLiteral:
		return a.emit(PoolInsn(LDC, p.Class(string(v))))
	case string:
		return a.emit(PoolInsn(LDC, p.StringConst(v)))
	case int32:
		return a.emit(PoolInsn(LDC, p.Integer(v)))
	case int64:
		return a.emit(PoolInsn(LDC2_W, p.Long(v)))
	}
	if a.err == nil {
		a.err = fmt.Errorf("unsupported ldc constant %T", v)
	}
	return a
}

// Invoke emits a method invocation.
func (a *Asm) Invoke(op Opcode, owner, name, desc string) *Asm {
	p := a.b.class.Pool
	if op == INVOKEINTERFACE {
		mt, err := ParseMethodDescriptor(desc)
		if err != nil && a.err == nil {
			a.err = err
		}
		ref := MemberRef{Kind: TagInterfaceMethodref, Owner: owner, Name: name, Desc: desc}
		return a.emit(InterfaceInsn(p.Ref(ref), mt.ArgWords()+1))
	}
	return a.emit(PoolInsn(op, p.Ref(MethodRefOf(owner, name, desc))))
}

// Field emits a field access.
func (a *Asm) Field(op Opcode, owner, name, desc string) *Asm {
	return a.emit(PoolInsn(op, a.b.class.Pool.Ref(FieldRefOf(owner, name, desc))))
}

// Type emits new, anewarray, checkcast, or instanceof.
func (a *Asm) Type(op Opcode, class string) *Asm {
	return a.emit(PoolInsn(op, a.b.class.Pool.Class(class)))
}

// Jump emits a branch.
func (a *Asm) Jump(op Opcode, target *Label) *Asm { return a.emit(JumpInsn(op, target)) }

// Switch emits a tableswitch over low..low+len(targets)-1.
func (a *Asm) Switch(dflt *Label, low int32, targets ...*Label) *Asm {
	return a.emit(&Instruction{Op: TABLESWITCH, Var: -1, Switch: &Switch{
		Default: dflt,
		Low:     low,
		High:    low + int32(len(targets)) - 1,
		Targets: targets,
	}})
}

// Lookup emits a lookupswitch; keys must be sorted.
func (a *Asm) Lookup(dflt *Label, keys []int32, targets ...*Label) *Asm {
	return a.emit(&Instruction{Op: LOOKUPSWITCH, Var: -1, Switch: &Switch{
		Default: dflt,
		Keys:    keys,
		Targets: targets,
	}})
}

// Catch registers an exception handler. An empty catchType catches everything.
func (a *Asm) Catch(start, end, handler *Label, catchType string) *Asm {
	h := Handler{Start: start, End: end, Handler: handler}
	if catchType != "" {
		h.CatchType = a.b.class.Pool.Class(catchType)
	}
	a.m.Code.Handlers = append(a.m.Code.Handlers, h)
	return a
}
