package engine

import (
	"github.com/roach88/classweave/internal/classfile"
)

// MemberKind distinguishes fields from methods.
type MemberKind string

const (
	KindField  MemberKind = "field"
	KindMethod MemberKind = "method"
)

// Param is one declared method parameter.
type Param struct {
	// Type is the parameter's field descriptor.
	Type string

	// Slot is the local variable slot holding the value at method entry.
	Slot int

	// Width is 2 for long and double, 1 otherwise.
	Width int
}

// Member describes a field or method of the class being transformed. It is
// built once per member and not modified afterwards.
type Member struct {
	Kind   MemberKind
	Name   string
	Desc   string
	Access classfile.AccessFlags
	Static bool

	// Params and Return are set for methods.
	Params []Param
	Return string

	// HasBody is true for methods with a Code attribute.
	HasBody bool

	Class  *classfile.Class
	Field  *classfile.Field
	Method *classfile.Method
}

// ID returns "name:desc" for fields and "name+desc" for methods.
func (m *Member) ID() string {
	if m.Kind == KindField {
		return m.Name + ":" + m.Desc
	}
	return m.Name + m.Desc
}

// ArgCount returns the number of declared parameters.
func (m *Member) ArgCount() int { return len(m.Params) }

func fieldMember(c *classfile.Class, f *classfile.Field) *Member {
	return &Member{
		Kind:   KindField,
		Name:   f.Name,
		Desc:   f.Desc,
		Access: f.Access,
		Static: f.Access.IsStatic(),
		Class:  c,
		Field:  f,
	}
}

func methodMember(c *classfile.Class, m *classfile.Method) (*Member, error) {
	mt, err := classfile.ParseMethodDescriptor(m.Desc)
	if err != nil {
		return nil, err
	}
	static := m.Access.IsStatic()
	params := make([]Param, len(mt.Params))
	for i, p := range mt.Params {
		params[i] = Param{Type: p, Slot: mt.ParamSlot(i, static), Width: classfile.TypeWidth(p)}
	}
	return &Member{
		Kind:    KindMethod,
		Name:    m.Name,
		Desc:    m.Desc,
		Access:  m.Access,
		Static:  static,
		Params:  params,
		Return:  mt.Return,
		HasBody: m.Code != nil && !m.Access.IsAbstract() && !m.Access.IsNative(),
		Class:   c,
		Method:  m,
	}, nil
}

// members lists the class's fields and then its methods, in declaration order.
func members(c *classfile.Class) ([]*Member, error) {
	out := make([]*Member, 0, len(c.Fields)+len(c.Methods))
	for _, f := range c.Fields {
		out = append(out, fieldMember(c, f))
	}
	for _, m := range c.Methods {
		mm, err := methodMember(c, m)
		if err != nil {
			return nil, err
		}
		out = append(out, mm)
	}
	return out, nil
}
