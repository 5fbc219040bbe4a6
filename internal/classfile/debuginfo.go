package classfile

import "fmt"

type codeAttrKind uint8

const (
	attrRaw codeAttrKind = iota
	attrLines
	attrLocals
	attrFrames
	// attrOpaqueOffsets marks attributes that embed bytecode offsets in a
	// layout this package does not remap.
	attrOpaqueOffsets
)

// codeAttr is a Code sub-attribute. Offset-bearing kinds are decoded so
// they can be re-encoded against a new layout.
type codeAttr struct {
	Attribute
	kind   codeAttrKind
	lines  []lineEntry
	locals []localEntry
	frames []frame
}

type lineEntry struct {
	start *Label
	line  uint16
}

type localEntry struct {
	start, end *Label
	name, desc uint16
	slot       uint16
}

// Verification type tags.
const (
	vtTop               = 0
	vtInteger           = 1
	vtFloat             = 2
	vtDouble            = 3
	vtLong              = 4
	vtNull              = 5
	vtUninitializedThis = 6
	vtObject            = 7
	vtUninitialized     = 8
)

type vtype struct {
	tag   uint8
	index uint16 // Object class index
	site  *Label // Uninitialized allocation site
}

// Normalized frame kinds. Chop and append keep their raw frame_type, which
// carries the count.
const (
	frameSame         = 0
	frameSameLocals1  = 64
	frameChopFirst    = 248
	frameChopLast     = 250
	frameSameExtended = 251
	frameAppendFirst  = 252
	frameAppendLast   = 254
	frameFull         = 255
)

type frame struct {
	kind   uint8
	at     *Label
	locals []vtype
	stack  []vtype
}

func (d *decoder) attribute(a Attribute) (codeAttr, error) {
	ca := codeAttr{Attribute: a}
	var err error
	switch a.Name {
	case AttrLineNumberTable:
		ca.kind = attrLines
		err = d.lines(&ca)
	case AttrLocalVariableTable, AttrLocalVariableTypeTable:
		ca.kind = attrLocals
		err = d.locals(&ca)
	case AttrStackMapTable:
		ca.kind = attrFrames
		err = d.frames(&ca)
	case AttrVisibleTypeAnnotations, AttrHiddenTypeAnnotations:
		ca.kind = attrOpaqueOffsets
	}
	if err != nil {
		return ca, fmt.Errorf("%s: %w", a.Name, err)
	}
	return ca, nil
}

func (d *decoder) lines(ca *codeAttr) error {
	r := newReader(ca.Data)
	n := int(r.u2())
	for i := 0; i < n && r.err == nil; i++ {
		pc, line := int(r.u2()), r.u2()
		if r.err != nil {
			break
		}
		l, err := d.label(pc)
		if err != nil {
			return err
		}
		ca.lines = append(ca.lines, lineEntry{start: l, line: line})
	}
	return finish(r)
}

func (d *decoder) locals(ca *codeAttr) error {
	r := newReader(ca.Data)
	n := int(r.u2())
	for i := 0; i < n && r.err == nil; i++ {
		pc, length := int(r.u2()), int(r.u2())
		e := localEntry{name: r.u2(), desc: r.u2(), slot: r.u2()}
		if r.err != nil {
			break
		}
		var err error
		if e.start, err = d.label(pc); err != nil {
			return err
		}
		if e.end, err = d.label(pc + length); err != nil {
			return err
		}
		ca.locals = append(ca.locals, e)
	}
	return finish(r)
}

func (d *decoder) frames(ca *codeAttr) error {
	r := newReader(ca.Data)
	n := int(r.u2())
	offset := -1
	for i := 0; i < n && r.err == nil; i++ {
		start := r.pos
		t := r.u1()
		f := frame{kind: t}
		var delta int
		switch {
		case t <= 63:
			f.kind, delta = frameSame, int(t)
		case t <= 127:
			f.kind, delta = frameSameLocals1, int(t-64)
			f.stack = d.vtypes(r, 1)
		case t < 247:
			return parseErrorf(start, "reserved stack map frame type %d", t)
		case t == 247:
			f.kind, delta = frameSameLocals1, int(r.u2())
			f.stack = d.vtypes(r, 1)
		case t <= frameChopLast:
			delta = int(r.u2())
		case t == frameSameExtended:
			f.kind, delta = frameSame, int(r.u2())
		case t <= frameAppendLast:
			delta = int(r.u2())
			f.locals = d.vtypes(r, int(t)-frameSameExtended)
		default:
			delta = int(r.u2())
			f.locals = d.vtypes(r, int(r.u2()))
			f.stack = d.vtypes(r, int(r.u2()))
		}
		if r.err != nil {
			break
		}
		offset += delta + 1
		l, err := d.label(offset)
		if err != nil {
			return err
		}
		f.at = l
		ca.frames = append(ca.frames, f)
	}
	if err := finish(r); err != nil {
		return err
	}
	// Allocation-site labels are resolved after the table so a bad site
	// reports the frame, not a truncated read.
	for _, f := range ca.frames {
		for _, list := range [][]vtype{f.locals, f.stack} {
			for i := range list {
				if list[i].tag != vtUninitialized {
					continue
				}
				site, err := d.pinned(int(list[i].index))
				if err != nil {
					return err
				}
				list[i].site = site
				list[i].index = 0
			}
		}
	}
	return nil
}

func (d *decoder) vtypes(r *reader, n int) []vtype {
	var out []vtype
	for i := 0; i < n && r.err == nil; i++ {
		v := vtype{tag: r.u1()}
		switch {
		case v.tag == vtObject || v.tag == vtUninitialized:
			v.index = r.u2()
		case v.tag > vtUninitialized:
			if r.err == nil {
				r.err = parseErrorf(r.pos-1, "unknown verification type %d", v.tag)
			}
		}
		out = append(out, v)
	}
	return out
}

func finish(r *reader) error {
	if r.err != nil {
		return r.err
	}
	if r.remaining() != 0 {
		return parseErrorf(r.pos, "%d trailing bytes", r.remaining())
	}
	return nil
}

func (ca *codeAttr) encode(c *Code, length int) ([]byte, error) {
	var w writer
	switch ca.kind {
	case attrLines:
		w.u2(uint16(len(ca.lines)))
		for _, e := range ca.lines {
			w.u2(uint16(c.offsetOf(e.start, length)))
			w.u2(e.line)
		}
	case attrLocals:
		w.u2(uint16(len(ca.locals)))
		for _, e := range ca.locals {
			start := c.offsetOf(e.start, length)
			w.u2(uint16(start))
			w.u2(uint16(c.offsetOf(e.end, length) - start))
			w.u2(e.name)
			w.u2(e.desc)
			w.u2(e.slot)
		}
	case attrFrames:
		w.u2(uint16(len(ca.frames)))
		prev := -1
		for i, f := range ca.frames {
			at := c.offsetOf(f.at, length)
			delta := at - prev - 1
			if delta < 0 {
				return nil, c.computeError(-1, "stack map frame %d is out of order after insertion", i)
			}
			prev = at
			f.write(&w, c, length, delta)
		}
	default:
		return ca.Data, nil
	}
	return w.buf, nil
}

func (f frame) write(w *writer, c *Code, length, delta int) {
	switch {
	case f.kind == frameSame:
		if delta <= 63 {
			w.u1(uint8(delta))
		} else {
			w.u1(frameSameExtended)
			w.u2(uint16(delta))
		}
	case f.kind == frameSameLocals1:
		if delta <= 63 {
			w.u1(uint8(frameSameLocals1 + delta))
		} else {
			w.u1(247)
			w.u2(uint16(delta))
		}
		writeVtypes(w, c, length, f.stack)
	case f.kind <= frameChopLast:
		w.u1(f.kind)
		w.u2(uint16(delta))
	case f.kind <= frameAppendLast:
		w.u1(f.kind)
		w.u2(uint16(delta))
		writeVtypes(w, c, length, f.locals)
	default:
		w.u1(frameFull)
		w.u2(uint16(delta))
		w.u2(uint16(len(f.locals)))
		writeVtypes(w, c, length, f.locals)
		w.u2(uint16(len(f.stack)))
		writeVtypes(w, c, length, f.stack)
	}
}

func writeVtypes(w *writer, c *Code, length int, list []vtype) {
	for _, v := range list {
		w.u1(v.tag)
		switch v.tag {
		case vtObject:
			w.u2(v.index)
		case vtUninitialized:
			w.u2(uint16(c.offsetOf(v.site, length)))
		}
	}
}

// LineNumber maps an instruction to a source line.
type LineNumber struct {
	Inst *Instruction
	Line int
}

// Lines returns the LineNumberTable entries in table order.
func (c *Code) Lines() []LineNumber {
	var out []LineNumber
	for _, a := range c.attrs {
		for _, e := range a.lines {
			out = append(out, LineNumber{Inst: e.start.inst, Line: int(e.line)})
		}
	}
	return out
}
