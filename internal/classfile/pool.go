package classfile

import (
	"fmt"
	"math"
	"strconv"
)

// Constant is one constant pool entry. Which fields are meaningful depends
// on Tag:
//
//	Utf8                      Text (Raw keeps the exact encoded bytes)
//	Integer, Float            Value holds the 32-bit pattern
//	Long, Double              Value holds the 64-bit pattern
//	Class, String, MethodType,
//	Module, Package           A is the Utf8 index
//	Fieldref, Methodref,
//	InterfaceMethodref        A is the Class index, B the NameAndType index
//	NameAndType               A is the name index, B the descriptor index
//	MethodHandle              A is the reference kind, B the member index
//	Dynamic, InvokeDynamic    A is the bootstrap index, B the NameAndType index
//
// The second slot occupied by a Long or Double has Tag 0.
type Constant struct {
	Tag   ConstantTag
	Text  string
	Raw   []byte
	Value uint64
	A, B  uint16
}

func (c Constant) key() string {
	if c.Tag == TagUtf8 {
		return "1:" + string(c.Raw)
	}
	return fmt.Sprintf("%d:%d:%d:%d", c.Tag, c.Value, c.A, c.B)
}

// Pool is a class's constant pool. Index 0 is never valid.
type Pool struct {
	entries []Constant
	keys    map[string]uint16
}

// NewPool returns an empty pool.
func NewPool() *Pool {
	return &Pool{entries: make([]Constant, 1)}
}

// Count returns the constant_pool_count value: one more than the highest index.
func (p *Pool) Count() int { return len(p.entries) }

// Get returns the entry at index.
func (p *Pool) Get(index uint16) (Constant, error) {
	if index == 0 || int(index) >= len(p.entries) || p.entries[index].Tag == 0 {
		return Constant{}, fmt.Errorf("invalid constant pool index %d", index)
	}
	return p.entries[index], nil
}

func (p *Pool) expect(index uint16, tag ConstantTag) (Constant, error) {
	c, err := p.Get(index)
	if err != nil {
		return c, err
	}
	if c.Tag != tag {
		return c, fmt.Errorf("constant pool index %d is %s, want %s", index, c.Tag, tag)
	}
	return c, nil
}

// UTF8 returns the string at a Utf8 index.
func (p *Pool) UTF8(index uint16) (string, error) {
	c, err := p.expect(index, TagUtf8)
	return c.Text, err
}

// ClassName returns the internal name referenced by a Class index.
func (p *Pool) ClassName(index uint16) (string, error) {
	c, err := p.expect(index, TagClass)
	if err != nil {
		return "", err
	}
	return p.UTF8(c.A)
}

// NameAndType returns the name and descriptor at a NameAndType index.
func (p *Pool) NameAndType(index uint16) (name, desc string, err error) {
	c, err := p.expect(index, TagNameAndType)
	if err != nil {
		return "", "", err
	}
	if name, err = p.UTF8(c.A); err != nil {
		return "", "", err
	}
	desc, err = p.UTF8(c.B)
	return name, desc, err
}

// Member resolves a Fieldref, Methodref, or InterfaceMethodref.
func (p *Pool) Member(index uint16) (MemberRef, error) {
	c, err := p.Get(index)
	if err != nil {
		return MemberRef{}, err
	}
	switch c.Tag {
	case TagFieldref, TagMethodref, TagInterfaceMethodref:
	default:
		return MemberRef{}, fmt.Errorf("constant pool index %d is %s, want a member reference", index, c.Tag)
	}
	owner, err := p.ClassName(c.A)
	if err != nil {
		return MemberRef{}, err
	}
	name, desc, err := p.NameAndType(c.B)
	if err != nil {
		return MemberRef{}, err
	}
	return MemberRef{Kind: c.Tag, Owner: owner, Name: name, Desc: desc}, nil
}

// Dynamic resolves the NameAndType of an InvokeDynamic or Dynamic entry.
func (p *Pool) Dynamic(index uint16) (name, desc string, err error) {
	c, err := p.Get(index)
	if err != nil {
		return "", "", err
	}
	if c.Tag != TagInvokeDynamic && c.Tag != TagDynamic {
		return "", "", fmt.Errorf("constant pool index %d is %s, want a dynamic constant", index, c.Tag)
	}
	return p.NameAndType(c.B)
}

// Loadable returns a printable form of an ldc operand and its size in words.
func (p *Pool) Loadable(index uint16) (string, int, error) {
	c, err := p.Get(index)
	if err != nil {
		return "", 0, err
	}
	switch c.Tag {
	case TagInteger:
		return strconv.Itoa(int(int32(uint32(c.Value)))), 1, nil
	case TagFloat:
		return strconv.FormatFloat(float64(math.Float32frombits(uint32(c.Value))), 'g', -1, 32) + "f", 1, nil
	case TagLong:
		return strconv.FormatInt(int64(c.Value), 10) + "L", 2, nil
	case TagDouble:
		return strconv.FormatFloat(math.Float64frombits(c.Value), 'g', -1, 64) + "d", 2, nil
	case TagString:
		s, err := p.UTF8(c.A)
		return strconv.Quote(s), 1, err
	case TagClass:
		s, err := p.UTF8(c.A)
		return s + ".class", 1, err
	case TagMethodType, TagMethodHandle:
		return c.Tag.String(), 1, nil
	case TagDynamic:
		_, desc, err := p.NameAndType(c.B)
		if err != nil {
			return "", 0, err
		}
		return "dynamic " + desc, TypeWidth(desc), nil
	}
	return "", 0, fmt.Errorf("constant pool index %d (%s) is not loadable", index, c.Tag)
}

// add appends c and returns its index. Long and Double take two slots.
func (p *Pool) add(c Constant) uint16 {
	idx := uint16(len(p.entries))
	p.entries = append(p.entries, c)
	if c.Tag == TagLong || c.Tag == TagDouble {
		p.entries = append(p.entries, Constant{})
	}
	if p.keys != nil {
		if _, ok := p.keys[c.key()]; !ok {
			p.keys[c.key()] = idx
		}
	}
	return idx
}

// intern returns the lowest existing index equal to c, adding c if absent.
func (p *Pool) intern(c Constant) uint16 {
	if p.keys == nil {
		p.keys = make(map[string]uint16, len(p.entries))
		for i := 1; i < len(p.entries); i++ {
			e := p.entries[i]
			if e.Tag == 0 {
				continue
			}
			if _, ok := p.keys[e.key()]; !ok {
				p.keys[e.key()] = uint16(i)
			}
		}
	}
	if idx, ok := p.keys[c.key()]; ok {
		return idx
	}
	return p.add(c)
}

// Utf8 interns a Utf8 constant.
func (p *Pool) Utf8(s string) uint16 {
	return p.intern(Constant{Tag: TagUtf8, Text: s, Raw: encodeMUTF8(s)})
}

// Class interns a Class constant for an internal name.
func (p *Pool) Class(name string) uint16 {
	return p.intern(Constant{Tag: TagClass, A: p.Utf8(name)})
}

// StringConst interns a String constant.
func (p *Pool) StringConst(s string) uint16 {
	return p.intern(Constant{Tag: TagString, A: p.Utf8(s)})
}

// Integer interns an Integer constant.
func (p *Pool) Integer(v int32) uint16 {
	return p.intern(Constant{Tag: TagInteger, Value: uint64(uint32(v))})
}

// Long interns a Long constant.
func (p *Pool) Long(v int64) uint16 {
	return p.intern(Constant{Tag: TagLong, Value: uint64(v)})
}

// NameAndTypeOf interns a NameAndType constant.
func (p *Pool) NameAndTypeOf(name, desc string) uint16 {
	return p.intern(Constant{Tag: TagNameAndType, A: p.Utf8(name), B: p.Utf8(desc)})
}

// Ref interns a Fieldref, Methodref, or InterfaceMethodref for m.
func (p *Pool) Ref(m MemberRef) uint16 {
	tag := m.Kind
	if tag == 0 {
		tag = TagMethodref
	}
	return p.intern(Constant{Tag: tag, A: p.Class(m.Owner), B: p.NameAndTypeOf(m.Name, m.Desc)})
}

func (p *Pool) read(r *reader) error {
	count := int(r.u2())
	if r.err != nil {
		return r.err
	}
	if count == 0 {
		return parseErrorf(r.pos-2, "constant_pool_count is zero")
	}
	p.entries = make([]Constant, 1, count)
	for i := 1; i < count; i++ {
		start := r.pos
		tag := ConstantTag(r.u1())
		var c Constant
		c.Tag = tag
		switch tag {
		case TagUtf8:
			n := int(r.u2())
			c.Raw = r.bytes(n)
			if r.err == nil {
				text, ok := decodeMUTF8(c.Raw)
				if !ok {
					return parseErrorf(start, "malformed modified UTF-8 in constant %d", i)
				}
				c.Text = text
			}
		case TagInteger, TagFloat:
			c.Value = uint64(r.u4())
		case TagLong, TagDouble:
			c.Value = r.u8()
		case TagClass, TagString, TagMethodType, TagModule, TagPackage:
			c.A = r.u2()
		case TagFieldref, TagMethodref, TagInterfaceMethodref, TagNameAndType, TagDynamic, TagInvokeDynamic:
			c.A = r.u2()
			c.B = r.u2()
		case TagMethodHandle:
			c.A = uint16(r.u1())
			c.B = r.u2()
		default:
			if r.err != nil {
				return r.err
			}
			return parseErrorf(start, "unknown constant pool tag %d at index %d", tag, i)
		}
		if r.err != nil {
			return r.err
		}
		p.entries = append(p.entries, c)
		if tag == TagLong || tag == TagDouble {
			if i+1 >= count {
				return parseErrorf(start, "%s constant at index %d overruns the pool", tag, i)
			}
			p.entries = append(p.entries, Constant{})
			i++
		}
	}
	return p.validate()
}

// validate checks that every reference inside the pool points at an entry
// of the right kind.
func (p *Pool) validate() error {
	check := func(i int, idx uint16, tags ...ConstantTag) error {
		c, err := p.Get(idx)
		if err != nil {
			return &ParseError{Offset: -1, Message: fmt.Sprintf("constant %d: %v", i, err)}
		}
		for _, t := range tags {
			if c.Tag == t {
				return nil
			}
		}
		return &ParseError{Offset: -1, Message: fmt.Sprintf("constant %d references %s at index %d", i, c.Tag, idx)}
	}
	for i := 1; i < len(p.entries); i++ {
		c := p.entries[i]
		var err error
		switch c.Tag {
		case TagClass, TagString, TagMethodType, TagModule, TagPackage:
			err = check(i, c.A, TagUtf8)
		case TagFieldref, TagMethodref, TagInterfaceMethodref:
			if err = check(i, c.A, TagClass); err == nil {
				err = check(i, c.B, TagNameAndType)
			}
		case TagNameAndType:
			if err = check(i, c.A, TagUtf8); err == nil {
				err = check(i, c.B, TagUtf8)
			}
		case TagDynamic, TagInvokeDynamic:
			err = check(i, c.B, TagNameAndType)
		case TagMethodHandle:
			if c.A < 1 || c.A > 9 {
				err = &ParseError{Offset: -1, Message: fmt.Sprintf("constant %d has invalid reference kind %d", i, c.A)}
			} else {
				err = check(i, c.B, TagFieldref, TagMethodref, TagInterfaceMethodref)
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Pool) write(w *writer) error {
	if len(p.entries) > math.MaxUint16 {
		return fmt.Errorf("constant pool has %d entries, limit is %d", len(p.entries)-1, math.MaxUint16-1)
	}
	w.u2(uint16(len(p.entries)))
	for i := 1; i < len(p.entries); i++ {
		c := p.entries[i]
		if c.Tag == 0 {
			continue
		}
		w.u1(uint8(c.Tag))
		switch c.Tag {
		case TagUtf8:
			w.u2(uint16(len(c.Raw)))
			w.raw(c.Raw)
		case TagInteger, TagFloat:
			w.u4(uint32(c.Value))
		case TagLong, TagDouble:
			w.u8(c.Value)
		case TagClass, TagString, TagMethodType, TagModule, TagPackage:
			w.u2(c.A)
		case TagMethodHandle:
			w.u1(uint8(c.A))
			w.u2(c.B)
		default:
			w.u2(c.A)
			w.u2(c.B)
		}
	}
	return nil
}
