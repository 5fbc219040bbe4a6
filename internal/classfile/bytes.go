package classfile

import "encoding/binary"

// reader is a big-endian cursor over class bytes. The first out-of-bounds
// read records a ParseError and every later read returns zero.
type reader struct {
	buf []byte
	pos int
	err error
}

func newReader(buf []byte) *reader {
	return &reader{buf: buf}
}

func (r *reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if n < 0 || len(r.buf)-r.pos < n {
		r.err = parseErrorf(r.pos, "unexpected end of data (need %d bytes, have %d)", n, len(r.buf)-r.pos)
		return false
	}
	return true
}

func (r *reader) u1() uint8 {
	if !r.need(1) {
		return 0
	}
	v := r.buf[r.pos]
	r.pos++
	return v
}

func (r *reader) u2() uint16 {
	if !r.need(2) {
		return 0
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v
}

func (r *reader) u4() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v
}

func (r *reader) u8() uint64 {
	if !r.need(8) {
		return 0
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v
}

func (r *reader) bytes(n int) []byte {
	if !r.need(n) {
		return nil
	}
	v := r.buf[r.pos : r.pos+n : r.pos+n]
	r.pos += n
	return v
}

func (r *reader) remaining() int { return len(r.buf) - r.pos }

// writer accumulates big-endian class bytes.
type writer struct {
	buf []byte
}

func (w *writer) u1(v uint8)  { w.buf = append(w.buf, v) }
func (w *writer) u2(v uint16) { w.buf = binary.BigEndian.AppendUint16(w.buf, v) }
func (w *writer) u4(v uint32) { w.buf = binary.BigEndian.AppendUint32(w.buf, v) }
func (w *writer) u8(v uint64) { w.buf = binary.BigEndian.AppendUint64(w.buf, v) }
func (w *writer) raw(b []byte) { w.buf = append(w.buf, b...) }
func (w *writer) len() int     { return len(w.buf) }

// putU2 overwrites two bytes at pos.
func (w *writer) putU2(pos int, v uint16) { binary.BigEndian.PutUint16(w.buf[pos:], v) }

// putU4 overwrites four bytes at pos.
func (w *writer) putU4(pos int, v uint32) { binary.BigEndian.PutUint32(w.buf[pos:], v) }
