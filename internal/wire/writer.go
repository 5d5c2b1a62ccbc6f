// Package wire implements little-endian cursors over fixed byte regions.
//
// Writer and Reader never grow or shrink the underlying buffer. Both keep
// a sticky error: the first overrun is recorded, every later call becomes
// a no-op, and the caller checks Err once after a sequence of operations.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrShortBuffer is recorded when a write would run past the end of
	// the destination buffer.
	ErrShortBuffer = errors.New("wire: write past end of buffer")

	// ErrTruncated is recorded when a read would run past the end of the
	// source buffer.
	ErrTruncated = errors.New("wire: read past end of buffer")

	// ErrUnterminated is recorded when a null-terminated string has no
	// terminator before the end of the buffer.
	ErrUnterminated = errors.New("wire: unterminated string")
)

// Writer appends little-endian values to a fixed buffer.
type Writer struct {
	buf []byte
	n   int
	err error
}

// NewWriter returns a Writer positioned at the start of buf.
func NewWriter(buf []byte) *Writer {
	return &Writer{buf: buf}
}

// BytesWritten returns the number of bytes written so far.
func (w *Writer) BytesWritten() int { return w.n }

// Err returns the first error encountered, if any.
func (w *Writer) Err() error { return w.err }

// reserve returns the next n bytes of the buffer, or nil after recording
// ErrShortBuffer.
func (w *Writer) reserve(n int) []byte {
	if w.err != nil {
		return nil
	}
	if n < 0 || w.n+n > len(w.buf) {
		w.err = fmt.Errorf("%w: need %d bytes at offset %d, capacity %d", ErrShortBuffer, n, w.n, len(w.buf))
		return nil
	}
	b := w.buf[w.n : w.n+n]
	w.n += n
	return b
}

// Uint8 writes a single byte.
func (w *Writer) Uint8(v uint8) {
	if b := w.reserve(1); b != nil {
		b[0] = v
	}
}

// Uint16 writes a little-endian uint16.
func (w *Writer) Uint16(v uint16) {
	if b := w.reserve(2); b != nil {
		binary.LittleEndian.PutUint16(b, v)
	}
}

// Uint32 writes a little-endian uint32.
func (w *Writer) Uint32(v uint32) {
	if b := w.reserve(4); b != nil {
		binary.LittleEndian.PutUint32(b, v)
	}
}

// Int32 writes a little-endian two's complement int32.
func (w *Writer) Int32(v int32) {
	w.Uint32(uint32(v))
}

// Bytes writes p verbatim.
func (w *Writer) Bytes(p []byte) {
	if b := w.reserve(len(p)); b != nil {
		copy(b, p)
	}
}

// Zeros writes n zero bytes.
func (w *Writer) Zeros(n int) {
	if b := w.reserve(n); b != nil {
		clear(b)
	}
}

// CString writes s followed by a single 0 byte.
func (w *Writer) CString(s string) {
	if b := w.reserve(len(s) + 1); b != nil {
		copy(b, s)
		b[len(s)] = 0
	}
}
