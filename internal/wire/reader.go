package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

// Reader consumes little-endian values from a fixed buffer.
//
// Byte slices returned by Reader are copies; decoded values never alias the
// receive buffer they were parsed from.
type Reader struct {
	buf []byte
	off int
	err error
}

// NewReader returns a Reader positioned at the start of buf.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// BytesLeft returns the number of unread bytes.
func (r *Reader) BytesLeft() int { return len(r.buf) - r.off }

// BytesRead returns the number of bytes consumed so far.
func (r *Reader) BytesRead() int { return r.off }

// Err returns the first error encountered, if any.
func (r *Reader) Err() error { return r.err }

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || n > r.BytesLeft() {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncated, n, r.off, r.BytesLeft())
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

// Uint8 reads a single byte.
func (r *Reader) Uint8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// Uint16 reads a little-endian uint16.
func (r *Reader) Uint16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

// Uint32 reads a little-endian uint32.
func (r *Reader) Uint32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// Int32 reads a little-endian two's complement int32.
func (r *Reader) Int32() int32 {
	return int32(r.Uint32())
}

// Bytes reads exactly n bytes.
func (r *Reader) Bytes(n int) []byte {
	b := r.take(n)
	if b == nil {
		return nil
	}
	return bytes.Clone(b)
}

// Fixed fills dst completely from the buffer.
func (r *Reader) Fixed(dst []byte) {
	if b := r.take(len(dst)); b != nil {
		copy(dst, b)
	}
}

// Rest reads every remaining byte. It never fails; an exhausted reader
// yields an empty slice.
func (r *Reader) Rest() []byte {
	if r.err != nil {
		return nil
	}
	b := bytes.Clone(r.buf[r.off:])
	r.off = len(r.buf)
	if b == nil {
		b = []byte{}
	}
	return b
}

// Skip discards n bytes.
func (r *Reader) Skip(n int) {
	r.take(n)
}

// CString reads a null-terminated UTF-8 string and consumes the terminator.
// Invalid UTF-8 sequences are replaced with U+FFFD.
func (r *Reader) CString() string {
	if r.err != nil {
		return ""
	}
	i := bytes.IndexByte(r.buf[r.off:], 0)
	if i < 0 {
		r.err = fmt.Errorf("%w: at offset %d", ErrUnterminated, r.off)
		return ""
	}
	s := string(r.buf[r.off : r.off+i])
	r.off += i + 1
	return strings.ToValidUTF8(s, "�")
}
