package classfile

import (
	"fmt"
	"math"
	"slices"
)

// Label marks a position in a method body. It is bound to the instruction
// that starts at that position, or to nil for the end of the code.
//
// Pinned labels stay on their instruction when code is inserted at it;
// they mark allocation sites that verification types refer to.
type Label struct {
	inst   *Instruction
	pinned bool
}

// Instruction returns the instruction the label is bound to, or nil for
// the end of the code.
func (l *Label) Instruction() *Instruction { return l.inst }

// Instruction is one decoded bytecode instruction. Which operand fields are
// meaningful depends on Op.
type Instruction struct {
	Op Opcode

	// Var is the local slot for loads, stores, iinc, and ret.
	Var int

	// Int is the immediate for bipush, sipush, and newarray, the delta for
	// iinc, the dimension count for multianewarray, and the argument count
	// for invokeinterface.
	Int int32

	// Index is the constant pool operand.
	Index uint16

	// Target is the destination of a branch.
	Target *Label

	// Switch holds tableswitch and lookupswitch operands.
	Switch *Switch

	// Wide records that the instruction is encoded under a wide prefix.
	Wide bool

	// Offset is the bytecode offset from the most recent decode or encode.
	Offset int
}

// Switch holds the operands of a tableswitch or lookupswitch.
type Switch struct {
	Default *Label

	// Low and High bound a tableswitch.
	Low, High int32

	// Keys are the lookupswitch match values, parallel to Targets.
	Keys []int32

	Targets []*Label
}

// Handler is an exception table entry covering [Start, End).
type Handler struct {
	Start, End, Handler *Label
	CatchType           uint16
}

// Code is a decoded Code attribute.
type Code struct {
	MaxStack  uint16
	MaxLocals uint16
	Insts     []*Instruction
	Handlers  []Handler

	// Dropped lists Code sub-attributes removed because they carry
	// bytecode offsets that cannot be remapped after insertion.
	Dropped []string

	attrs  []codeAttr
	labels []*Label
	index  map[*Instruction]int
	dirty  bool
	method string
}

// Dirty reports whether the body has been modified since decoding.
func (c *Code) Dirty() bool { return c.dirty }

// NewLabel returns a label bound to inst. A nil inst marks the end of the code.
func (c *Code) NewLabel(inst *Instruction) *Label {
	l := &Label{inst: inst}
	c.labels = append(c.labels, l)
	return l
}

// IndexOf returns the position of the instruction l is bound to, or
// len(c.Insts) for the end of the code.
func (c *Code) IndexOf(l *Label) int {
	if l.inst == nil {
		return len(c.Insts)
	}
	i, ok := c.indexes()[l.inst]
	if !ok {
		return -1
	}
	return i
}

func (c *Code) indexes() map[*Instruction]int {
	if c.index == nil {
		c.index = make(map[*Instruction]int, len(c.Insts))
		for i, in := range c.Insts {
			c.index[in] = i
		}
	}
	return c.index
}

// InsertBefore inserts block immediately before anchor. Labels bound to
// anchor stay on anchor, so control transferring to anchor skips the block.
func (c *Code) InsertBefore(anchor *Instruction, block ...*Instruction) error {
	return c.insert(anchor, block, false)
}

// InsertAt inserts block immediately before anchor and moves every unpinned
// label bound to anchor onto the first inserted instruction, so every path
// that reached anchor now runs the block first.
func (c *Code) InsertAt(anchor *Instruction, block ...*Instruction) error {
	return c.insert(anchor, block, true)
}

func (c *Code) insert(anchor *Instruction, block []*Instruction, retarget bool) error {
	if len(block) == 0 {
		return nil
	}
	at, ok := c.indexes()[anchor]
	if !ok {
		return &ComputeError{Method: c.method, Index: -1, Message: "insertion anchor is not in this method"}
	}
	c.Insts = slices.Insert(c.Insts, at, block...)
	c.index = nil
	if retarget {
		for _, l := range c.labels {
			if l.inst == anchor && !l.pinned {
				l.inst = block[0]
			}
		}
	}
	c.markDirty()
	return nil
}

func (c *Code) markDirty() {
	c.dirty = true
	kept := c.attrs[:0]
	for _, a := range c.attrs {
		if a.kind == attrOpaqueOffsets {
			c.Dropped = append(c.Dropped, a.Name)
			continue
		}
		kept = append(kept, a)
	}
	c.attrs = kept
}

// decoder resolves bytecode offsets to labels while a body is decoded.
type decoder struct {
	code    *Code
	pool    *Pool
	at      map[int]*Instruction
	labels  map[int]*Label
	length  int
	pending []func() error
}

func (d *decoder) label(offset int) (*Label, error) {
	if l, ok := d.labels[offset]; ok {
		return l, nil
	}
	var inst *Instruction
	if offset != d.length {
		var ok bool
		if inst, ok = d.at[offset]; !ok {
			return nil, parseErrorf(offset, "offset %d is not an instruction boundary", offset)
		}
	}
	l := d.code.NewLabel(inst)
	d.labels[offset] = l
	return l, nil
}

// pinned returns a fresh pinned label; allocation sites must not be shared
// with branch targets that move.
func (d *decoder) pinned(offset int) (*Label, error) {
	inst, ok := d.at[offset]
	if !ok {
		return nil, parseErrorf(offset, "uninitialized type refers to offset %d which is not an instruction", offset)
	}
	if inst.Op != NEW {
		return nil, parseErrorf(offset, "uninitialized type refers to %s, not new", inst.Op)
	}
	l := d.code.NewLabel(inst)
	l.pinned = true
	return l, nil
}

func decodeCode(pool *Pool, data []byte) (*Code, error) {
	r := newReader(data)
	c := &Code{MaxStack: r.u2(), MaxLocals: r.u2()}
	length := int(r.u4())
	if r.err == nil && (length == 0 || length > math.MaxUint16) {
		return nil, parseErrorf(4, "invalid code length %d", length)
	}
	body := r.bytes(length)
	if r.err != nil {
		return nil, r.err
	}
	d := &decoder{code: c, pool: pool, at: make(map[int]*Instruction), labels: make(map[int]*Label), length: length}
	if err := d.instructions(body); err != nil {
		return nil, err
	}

	n := int(r.u2())
	for i := 0; i < n && r.err == nil; i++ {
		start, end, handler, catch := int(r.u2()), int(r.u2()), int(r.u2()), r.u2()
		if r.err != nil {
			break
		}
		if start >= end {
			return nil, parseErrorf(-1, "exception range [%d, %d) is empty", start, end)
		}
		var h Handler
		var err error
		if h.Start, err = d.label(start); err != nil {
			return nil, err
		}
		if h.End, err = d.label(end); err != nil {
			return nil, err
		}
		if h.Handler, err = d.label(handler); err != nil {
			return nil, err
		}
		if h.Handler.inst == nil {
			return nil, parseErrorf(handler, "exception handler at end of code")
		}
		if catch != 0 {
			if _, err := pool.ClassName(catch); err != nil {
				return nil, parseErrorf(-1, "catch type: %v", err)
			}
		}
		h.CatchType = catch
		c.Handlers = append(c.Handlers, h)
	}

	n = int(r.u2())
	for i := 0; i < n && r.err == nil; i++ {
		idx := r.u2()
		data := r.bytes(int(r.u4()))
		if r.err != nil {
			break
		}
		name, err := pool.UTF8(idx)
		if err != nil {
			return nil, parseErrorf(-1, "code attribute name: %v", err)
		}
		a, err := d.attribute(Attribute{NameIndex: idx, Name: name, Data: data})
		if err != nil {
			return nil, err
		}
		c.attrs = append(c.attrs, a)
	}
	if r.err != nil {
		return nil, r.err
	}
	if r.remaining() != 0 {
		return nil, parseErrorf(r.pos, "%d trailing bytes in Code attribute", r.remaining())
	}
	for _, fn := range d.pending {
		if err := fn(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (d *decoder) instructions(body []byte) error {
	r := newReader(body)
	for r.pos < len(body) {
		pos := r.pos
		op := Opcode(r.u1())
		info := opTable[op]
		if info == nil {
			return parseErrorf(pos, "unknown opcode 0x%02X", byte(op))
		}
		in := &Instruction{Op: op, Offset: pos, Var: info.implicit}
		switch info.kind {
		case kindWide:
			in.Op = Opcode(r.u1())
			in.Wide = true
			switch opTable[in.Op].kindOrNone() {
			case kindIinc:
				in.Var = int(r.u2())
				in.Int = int32(int16(r.u2()))
			case kindLocal:
				in.Var = int(r.u2())
			default:
				if r.err == nil {
					return parseErrorf(pos, "wide cannot modify %s", in.Op)
				}
			}
		case kindByte:
			in.Int = int32(int8(r.u1()))
		case kindShort:
			in.Int = int32(int16(r.u2()))
		case kindLocal:
			in.Var = int(r.u1())
		case kindLdc:
			in.Index = uint16(r.u1())
		case kindPool:
			in.Index = r.u2()
		case kindIinc:
			in.Var = int(r.u1())
			in.Int = int32(int8(r.u1()))
		case kindBranch:
			d.branch(in, pos+int(int16(r.u2())))
		case kindBranchWide:
			d.branch(in, pos+int(int32(r.u4())))
		case kindInterface:
			in.Index = r.u2()
			in.Int = int32(r.u1())
			r.u1()
		case kindDynamic:
			in.Index = r.u2()
			r.u2()
		case kindNewArray:
			in.Int = int32(r.u1())
			if r.err == nil && (in.Int < ArrayBoolean || in.Int > ArrayLong) {
				return parseErrorf(pos, "invalid newarray type %d", in.Int)
			}
		case kindMultiArray:
			in.Index = r.u2()
			in.Int = int32(r.u1())
		case kindTableSwitch, kindLookupSwitch:
			r.bytes((4 - (pos+1)%4) % 4)
			sw := &Switch{}
			def := pos + int(int32(r.u4()))
			var offsets []int
			if info.kind == kindTableSwitch {
				sw.Low, sw.High = int32(r.u4()), int32(r.u4())
				if r.err == nil && sw.High < sw.Low {
					return parseErrorf(pos, "tableswitch high %d < low %d", sw.High, sw.Low)
				}
				count := int64(sw.High) - int64(sw.Low) + 1
				if r.err == nil && count*4 > int64(r.remaining()) {
					return parseErrorf(pos, "tableswitch with %d entries overruns code", count)
				}
				for i := int64(0); i < count && r.err == nil; i++ {
					offsets = append(offsets, pos+int(int32(r.u4())))
				}
			} else {
				npairs := int64(int32(r.u4()))
				if r.err == nil && (npairs < 0 || npairs*8 > int64(r.remaining())) {
					return parseErrorf(pos, "lookupswitch with %d pairs overruns code", npairs)
				}
				for i := int64(0); i < npairs && r.err == nil; i++ {
					sw.Keys = append(sw.Keys, int32(r.u4()))
					offsets = append(offsets, pos+int(int32(r.u4())))
				}
			}
			in.Switch = sw
			d.pending = append(d.pending, func() error {
				var err error
				if sw.Default, err = d.branchLabel(pos, def); err != nil {
					return err
				}
				for _, off := range offsets {
					l, err := d.branchLabel(pos, off)
					if err != nil {
						return err
					}
					sw.Targets = append(sw.Targets, l)
				}
				return nil
			})
		}
		if r.err != nil {
			return parseErrorf(pos, "truncated %s instruction", in.Op)
		}
		if info.kind == kindLdc || info.kind == kindPool || info.kind == kindInterface ||
			info.kind == kindDynamic || info.kind == kindMultiArray {
			if _, err := d.pool.Get(in.Index); err != nil {
				return parseErrorf(pos, "%s: %v", in.Op, err)
			}
		}
		d.at[pos] = in
		d.code.Insts = append(d.code.Insts, in)
	}
	return nil
}

func (info *opInfo) kindOrNone() operandKind {
	if info == nil {
		return kindNone
	}
	return info.kind
}

func (d *decoder) branch(in *Instruction, target int) {
	pos := in.Offset
	d.pending = append(d.pending, func() error {
		l, err := d.branchLabel(pos, target)
		in.Target = l
		return err
	})
}

func (d *decoder) branchLabel(from, target int) (*Label, error) {
	if target == d.length {
		return nil, parseErrorf(from, "branch to end of code")
	}
	l, err := d.label(target)
	if err != nil {
		return nil, parseErrorf(from, "branch target %d is not an instruction", target)
	}
	return l, nil
}

// size returns the encoded length of in at offset, given whether a short
// branch has been promoted.
func (in *Instruction) size(offset int) int {
	info := opTable[in.Op]
	if in.needsWide() {
		if info.kind == kindIinc {
			return 6
		}
		return 4
	}
	switch info.kind {
	case kindNone:
		return 1
	case kindByte, kindLocal, kindNewArray:
		return 2
	case kindLdc:
		if in.Index > math.MaxUint8 {
			return 3
		}
		return 2
	case kindShort, kindPool, kindIinc, kindBranch:
		return 3
	case kindMultiArray:
		return 4
	case kindBranchWide, kindInterface, kindDynamic:
		return 5
	case kindTableSwitch:
		return 1 + (4-(offset+1)%4)%4 + 12 + 4*len(in.Switch.Targets)
	case kindLookupSwitch:
		return 1 + (4-(offset+1)%4)%4 + 8 + 8*len(in.Switch.Targets)
	}
	return 1
}

func (in *Instruction) needsWide() bool {
	if in.Op.ImplicitVar() >= 0 {
		return false
	}
	switch opTable[in.Op].kind {
	case kindLocal:
		return in.Wide || in.Var > math.MaxUint8
	case kindIinc:
		return in.Wide || in.Var > math.MaxUint8 || in.Int < math.MinInt8 || in.Int > math.MaxInt8
	}
	return false
}

func (c *Code) computeError(index int, format string, args ...any) *ComputeError {
	return &ComputeError{Method: c.method, Index: index, Message: fmt.Sprintf(format, args...)}
}

// layout assigns offsets, promoting goto and jsr to their wide forms when a
// target is out of 16-bit range. It returns the code length.
func (c *Code) layout() (int, error) {
	for {
		offset := 0
		for _, in := range c.Insts {
			in.Offset = offset
			offset += in.size(offset)
		}
		if offset > math.MaxUint16 {
			return 0, c.computeError(-1, "code length %d exceeds %d bytes", offset, math.MaxUint16)
		}
		changed := false
		for i, in := range c.Insts {
			if opTable[in.Op].kind != kindBranch {
				continue
			}
			delta := c.offsetOf(in.Target, offset) - in.Offset
			if delta >= math.MinInt16 && delta <= math.MaxInt16 {
				continue
			}
			switch in.Op {
			case GOTO:
				in.Op = GOTO_W
			case JSR:
				in.Op = JSR_W
			default:
				return 0, c.computeError(i, "%s branch offset %d exceeds 16 bits", in.Op, delta)
			}
			changed = true
		}
		if !changed {
			return offset, nil
		}
	}
}

func (c *Code) offsetOf(l *Label, length int) int {
	if l.inst == nil {
		return length
	}
	return l.inst.Offset
}

// codeHeader is the size of max_stack, max_locals, and code_length.
const codeHeader = 8

func (c *Code) encode() ([]byte, error) {
	length, err := c.layout()
	if err != nil {
		return nil, err
	}
	var w writer
	w.u2(c.MaxStack)
	w.u2(c.MaxLocals)
	w.u4(uint32(length))
	for _, in := range c.Insts {
		c.encodeInstruction(&w, in, length)
	}
	w.u2(uint16(len(c.Handlers)))
	for _, h := range c.Handlers {
		w.u2(uint16(c.offsetOf(h.Start, length)))
		w.u2(uint16(c.offsetOf(h.End, length)))
		w.u2(uint16(c.offsetOf(h.Handler, length)))
		w.u2(h.CatchType)
	}
	w.u2(uint16(len(c.attrs)))
	for i := range c.attrs {
		data, err := c.attrs[i].encode(c, length)
		if err != nil {
			return nil, err
		}
		w.u2(c.attrs[i].NameIndex)
		w.u4(uint32(len(data)))
		w.raw(data)
	}
	return w.buf, nil
}

func (c *Code) encodeInstruction(w *writer, in *Instruction, length int) {
	info := opTable[in.Op]
	if in.needsWide() {
		in.Wide = true
		w.u1(uint8(WIDE))
		w.u1(uint8(in.Op))
		w.u2(uint16(in.Var))
		if info.kind == kindIinc {
			w.u2(uint16(int16(in.Int)))
		}
		return
	}
	if info.kind == kindLdc && in.Index > math.MaxUint8 {
		in.Op = LDC_W
		info = opTable[LDC_W]
	}
	w.u1(uint8(in.Op))
	switch info.kind {
	case kindByte:
		w.u1(uint8(int8(in.Int)))
	case kindShort:
		w.u2(uint16(int16(in.Int)))
	case kindLocal:
		w.u1(uint8(in.Var))
	case kindLdc:
		w.u1(uint8(in.Index))
	case kindPool:
		w.u2(in.Index)
	case kindIinc:
		w.u1(uint8(in.Var))
		w.u1(uint8(int8(in.Int)))
	case kindBranch:
		w.u2(uint16(int16(c.offsetOf(in.Target, length) - in.Offset)))
	case kindBranchWide:
		w.u4(uint32(int32(c.offsetOf(in.Target, length) - in.Offset)))
	case kindInterface:
		w.u2(in.Index)
		w.u1(uint8(in.Int))
		w.u1(0)
	case kindDynamic:
		w.u2(in.Index)
		w.u2(0)
	case kindNewArray:
		w.u1(uint8(in.Int))
	case kindMultiArray:
		w.u2(in.Index)
		w.u1(uint8(in.Int))
	case kindTableSwitch, kindLookupSwitch:
		for (w.len()-codeHeader)%4 != 0 {
			w.u1(0)
		}
		sw := in.Switch
		w.u4(uint32(int32(c.offsetOf(sw.Default, length) - in.Offset)))
		if info.kind == kindTableSwitch {
			w.u4(uint32(sw.Low))
			w.u4(uint32(sw.High))
			for _, t := range sw.Targets {
				w.u4(uint32(int32(c.offsetOf(t, length) - in.Offset)))
			}
		} else {
			w.u4(uint32(len(sw.Keys)))
			for i, t := range sw.Targets {
				w.u4(uint32(sw.Keys[i]))
				w.u4(uint32(int32(c.offsetOf(t, length) - in.Offset)))
			}
		}
	}
}
