package vm

import (
	"github.com/roach88/classweave/internal/classfile"
)

// sameMember compares references ignoring the constant kind.
func sameMember(a, b classfile.MemberRef) bool {
	return a.Owner == b.Owner && a.Name == b.Name && a.Desc == b.Desc
}

// hook dispatches ref to the installed runtime. ok is false when ref is
// not a hook.
func (m *Machine) hook(ref classfile.MemberRef, args []Value) (v Value, ok bool, err error) {
	if m.runtime == nil {
		return nil, false, nil
	}
	switch {
	case sameMember(ref, m.spec.WrapRef()):
		m.log.Debug().Str("hook", ref.String()).Msg("wrap loggable")
		return m.runtime.WrapLoggable(args[0]), true, nil
	case sameMember(ref, m.spec.LogRef()):
		name, _ := args[0].(string)
		var list []any
		if arr, isArr := args[1].(*Array); isArr {
			list = hostValue(arr, map[*Array][]any{}).([]any)
		}
		m.log.Debug().Str("hook", ref.String()).Str("method", name).Int("args", len(list)).Msg("log call")
		m.runtime.LogCall(name, list)
		return nil, true, nil
	}
	return nil, false, nil
}

// findMethod looks up name+desc in class and its defined ancestors.
func (m *Machine) findMethod(class, name, desc string) (*classfile.Class, *classfile.Method) {
	s, ok := m.classes[class]
	if !ok {
		return nil, nil
	}
	for c := s.class; c != nil; c = m.super(c) {
		if meth := c.Method(name, desc); meth != nil {
			return c, meth
		}
	}
	return nil, nil
}

// findNative looks up name+desc on class and its ancestors' natives.
func (m *Machine) findNative(class, name, desc string) native {
	for _, c := range m.supers(class) {
		if fn, ok := natives[c+"."+name+desc]; ok {
			return fn
		}
	}
	return nil
}

func (m *Machine) invokeStatic(ref classfile.MemberRef, args []Value) (Value, error) {
	if v, ok, err := m.hook(ref, args); ok || err != nil {
		return v, err
	}
	if _, err := m.initialize(ref.Owner); err != nil {
		return nil, err
	}
	if c, meth := m.findMethod(ref.Owner, ref.Name, ref.Desc); meth != nil {
		if !meth.Access.IsStatic() {
			return nil, &LinkageError{Ref: ref, Reason: "method is not static"}
		}
		return m.call(c, meth, args)
	}
	if fn := m.findNative(ref.Owner, ref.Name, ref.Desc); fn != nil {
		return fn(m, nil, args)
	}
	return nil, &LinkageError{Ref: ref, Reason: "no such method"}
}

// invokeSpecial calls the exact implementation found from ref.Owner
// upwards: constructors, private methods, and super calls.
func (m *Machine) invokeSpecial(ref classfile.MemberRef, recv Value, args []Value) (Value, error) {
	if recv == nil {
		return nil, m.throw(nullPointer, "")
	}
	if c, meth := m.findMethod(ref.Owner, ref.Name, ref.Desc); meth != nil {
		return m.call(c, meth, append([]Value{recv}, args...))
	}
	if fn := m.findNative(ref.Owner, ref.Name, ref.Desc); fn != nil {
		return fn(m, recv, args)
	}
	return nil, &LinkageError{Ref: ref, Reason: "no such method"}
}

// invokeVirtual dispatches on the receiver's runtime class.
func (m *Machine) invokeVirtual(ref classfile.MemberRef, recv Value, args []Value) (Value, error) {
	if recv == nil {
		return nil, m.throw(nullPointer, "")
	}
	class := ref.Owner
	if obj, ok := recv.(*Object); ok {
		class = obj.ClassName
	}
	if c, meth := m.findMethod(class, ref.Name, ref.Desc); meth != nil && !meth.Access.IsAbstract() {
		return m.call(c, meth, append([]Value{recv}, args...))
	}
	if fn := m.findNative(class, ref.Name, ref.Desc); fn != nil {
		return fn(m, recv, args)
	}
	if class != ref.Owner {
		if fn := m.findNative(ref.Owner, ref.Name, ref.Desc); fn != nil {
			return fn(m, recv, args)
		}
	}
	return nil, &LinkageError{Ref: ref, Reason: "no implementation for " + class}
}

// call runs meth with args in declaration order, receiver first for
// instance methods.
func (m *Machine) call(c *classfile.Class, meth *classfile.Method, args []Value) (Value, error) {
	if meth.Code == nil {
		return nil, &LinkageError{
			Ref:    classfile.MethodRefOf(c.Name(), meth.Name, meth.Desc),
			Reason: "method has no code",
		}
	}
	if m.depth >= m.maxDepth {
		return nil, m.throw("java/lang/StackOverflowError", "")
	}
	m.depth++
	defer func() { m.depth-- }()
	return m.execute(c, meth, args)
}
