package classfile

import "fmt"

// Attribute is an undecoded attribute. Data excludes the six-byte header.
type Attribute struct {
	NameIndex uint16
	Name      string
	Data      []byte
}

// Field is a field_info entry.
type Field struct {
	Access     AccessFlags
	NameIndex  uint16
	DescIndex  uint16
	Name       string
	Desc       string
	Attributes []Attribute
}

// Method is a method_info entry. Code is nil for abstract and native methods.
type Method struct {
	Access     AccessFlags
	NameIndex  uint16
	DescIndex  uint16
	Name       string
	Desc       string
	Attributes []Attribute
	Code       *Code

	codeAttr int // index of the Code attribute in Attributes
}

// ID returns "name+descriptor", unique within a class.
func (m *Method) ID() string { return m.Name + m.Desc }

// Class is a parsed class file.
type Class struct {
	Minor, Major uint16
	Pool         *Pool
	Access       AccessFlags
	ThisClass    uint16
	SuperClass   uint16
	Interfaces   []uint16
	Fields       []*Field
	Methods      []*Method
	Attributes   []Attribute

	name string
}

// Name returns the internal name of this class.
func (c *Class) Name() string { return c.name }

// SuperName returns the internal name of the superclass, or "" for
// java/lang/Object itself.
func (c *Class) SuperName() string {
	if c.SuperClass == 0 {
		return ""
	}
	n, _ := c.Pool.ClassName(c.SuperClass)
	return n
}

// Method looks up a method by name and descriptor.
func (c *Class) Method(name, desc string) *Method {
	for _, m := range c.Methods {
		if m.Name == name && m.Desc == desc {
			return m
		}
	}
	return nil
}

// Field looks up a field by name and descriptor.
func (c *Class) Field(name, desc string) *Field {
	for _, f := range c.Fields {
		if f.Name == name && f.Desc == desc {
			return f
		}
	}
	return nil
}

// HasAttribute reports whether a class-level attribute with name exists.
func (c *Class) HasAttribute(name string) bool {
	for _, a := range c.Attributes {
		if a.Name == name {
			return true
		}
	}
	return false
}

// AddAttribute appends a class-level attribute.
func (c *Class) AddAttribute(name string, data []byte) {
	c.Attributes = append(c.Attributes, Attribute{NameIndex: c.Pool.Utf8(name), Name: name, Data: data})
}

// Parse decodes class file bytes. Every method body is decoded into
// instructions; the original bytes are retained so that Write reproduces
// them exactly for anything left unmodified.
func Parse(data []byte) (*Class, error) {
	r := newReader(data)
	if magic := r.u4(); r.err == nil && magic != Magic {
		return nil, parseErrorf(0, "bad magic 0x%08X", magic)
	}
	c := &Class{Pool: NewPool()}
	c.Minor = r.u2()
	c.Major = r.u2()
	if r.err != nil {
		return nil, r.err
	}
	if err := c.Pool.read(r); err != nil {
		return nil, err
	}
	c.Access = AccessFlags(r.u2())
	c.ThisClass = r.u2()
	c.SuperClass = r.u2()
	n := int(r.u2())
	if r.err != nil {
		return nil, r.err
	}
	name, err := c.Pool.ClassName(c.ThisClass)
	if err != nil {
		return nil, &ParseError{Offset: -1, Message: "this_class: " + err.Error()}
	}
	c.name = name
	if c.SuperClass != 0 {
		if _, err := c.Pool.ClassName(c.SuperClass); err != nil {
			return nil, &ParseError{Offset: -1, Message: "super_class: " + err.Error()}
		}
	}
	for i := 0; i < n; i++ {
		c.Interfaces = append(c.Interfaces, r.u2())
	}

	n = int(r.u2())
	for i := 0; i < n && r.err == nil; i++ {
		f := &Field{Access: AccessFlags(r.u2()), NameIndex: r.u2(), DescIndex: r.u2()}
		if f.Name, f.Desc, err = c.memberNames(r, f.NameIndex, f.DescIndex); err != nil {
			return nil, err
		}
		if f.Attributes, err = c.readAttributes(r); err != nil {
			return nil, err
		}
		c.Fields = append(c.Fields, f)
	}

	n = int(r.u2())
	for i := 0; i < n && r.err == nil; i++ {
		m := &Method{Access: AccessFlags(r.u2()), NameIndex: r.u2(), DescIndex: r.u2(), codeAttr: -1}
		if m.Name, m.Desc, err = c.memberNames(r, m.NameIndex, m.DescIndex); err != nil {
			return nil, err
		}
		if _, err := ParseMethodDescriptor(m.Desc); err != nil {
			return nil, &ParseError{Offset: r.pos, Message: err.Error()}
		}
		if m.Attributes, err = c.readAttributes(r); err != nil {
			return nil, err
		}
		for j, a := range m.Attributes {
			if a.Name != AttrCode {
				continue
			}
			if m.codeAttr >= 0 {
				return nil, &ParseError{Offset: -1, Message: fmt.Sprintf("method %s has more than one Code attribute", m.ID())}
			}
			code, err := decodeCode(c.Pool, a.Data)
			if err != nil {
				return nil, fmt.Errorf("method %s: %w", m.ID(), err)
			}
			code.method = m.ID()
			m.Code = code
			m.codeAttr = j
		}
		c.Methods = append(c.Methods, m)
	}

	if c.Attributes, err = c.readAttributes(r); err != nil {
		return nil, err
	}
	if r.err != nil {
		return nil, r.err
	}
	if r.remaining() != 0 {
		return nil, parseErrorf(r.pos, "%d trailing bytes after class", r.remaining())
	}
	return c, nil
}

func (c *Class) memberNames(r *reader, nameIdx, descIdx uint16) (string, string, error) {
	if r.err != nil {
		return "", "", r.err
	}
	name, err := c.Pool.UTF8(nameIdx)
	if err != nil {
		return "", "", parseErrorf(r.pos, "member name: %v", err)
	}
	desc, err := c.Pool.UTF8(descIdx)
	if err != nil {
		return "", "", parseErrorf(r.pos, "member descriptor: %v", err)
	}
	return name, desc, nil
}

func (c *Class) readAttributes(r *reader) ([]Attribute, error) {
	n := int(r.u2())
	var attrs []Attribute
	for i := 0; i < n && r.err == nil; i++ {
		start := r.pos
		idx := r.u2()
		size := int(r.u4())
		data := r.bytes(size)
		if r.err != nil {
			break
		}
		name, err := c.Pool.UTF8(idx)
		if err != nil {
			return nil, parseErrorf(start, "attribute name: %v", err)
		}
		attrs = append(attrs, Attribute{NameIndex: idx, Name: name, Data: data})
	}
	return attrs, r.err
}

// Write serializes the class. Method bodies that were not modified since
// Parse are emitted from their original bytes; modified bodies are
// re-encoded with a recomputed max_stack.
func Write(c *Class) ([]byte, error) {
	for _, m := range c.Methods {
		if m.Code == nil || !m.Code.dirty {
			continue
		}
		if err := m.Code.computeMaxs(c.Pool, m); err != nil {
			return nil, err
		}
		data, err := m.Code.encode()
		if err != nil {
			return nil, err
		}
		a := Attribute{NameIndex: c.Pool.Utf8(AttrCode), Name: AttrCode, Data: data}
		if m.codeAttr >= 0 {
			m.Attributes[m.codeAttr] = a
		} else {
			m.codeAttr = len(m.Attributes)
			m.Attributes = append(m.Attributes, a)
		}
		m.Code.dirty = false
	}

	var w writer
	w.u4(Magic)
	w.u2(c.Minor)
	w.u2(c.Major)
	if err := c.Pool.write(&w); err != nil {
		return nil, err
	}
	w.u2(uint16(c.Access))
	w.u2(c.ThisClass)
	w.u2(c.SuperClass)
	w.u2(uint16(len(c.Interfaces)))
	for _, i := range c.Interfaces {
		w.u2(i)
	}
	w.u2(uint16(len(c.Fields)))
	for _, f := range c.Fields {
		w.u2(uint16(f.Access))
		w.u2(f.NameIndex)
		w.u2(f.DescIndex)
		writeAttributes(&w, f.Attributes)
	}
	w.u2(uint16(len(c.Methods)))
	for _, m := range c.Methods {
		w.u2(uint16(m.Access))
		w.u2(m.NameIndex)
		w.u2(m.DescIndex)
		writeAttributes(&w, m.Attributes)
	}
	writeAttributes(&w, c.Attributes)
	return w.buf, nil
}

func writeAttributes(w *writer, attrs []Attribute) {
	w.u2(uint16(len(attrs)))
	for _, a := range attrs {
		w.u2(a.NameIndex)
		w.u4(uint32(len(a.Data)))
		w.raw(a.Data)
	}
}
