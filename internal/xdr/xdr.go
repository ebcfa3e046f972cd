// Package xdr reads and writes the little-endian primitives OpenEXR files are
// built from.
package xdr

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
)

// ErrShortBuffer is returned when a read runs past the end of the data.
var ErrShortBuffer = errors.New("xdr: buffer too short")

var le = binary.LittleEndian

// Reader decodes values from a byte slice, tracking the read position.
type Reader struct {
	data []byte
	pos  int
}

// NewReader returns a Reader positioned at the start of data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int { return len(r.data) - r.pos }

// Pos returns the number of bytes consumed so far.
func (r *Reader) Pos() int { return r.pos }

// Skip advances past n bytes.
func (r *Reader) Skip(n int) error {
	if n < 0 || n > r.Len() {
		return ErrShortBuffer
	}
	r.pos += n
	return nil
}

// Next returns the next n bytes without copying them.
func (r *Reader) Next(n int) ([]byte, error) {
	if n < 0 || n > r.Len() {
		return nil, ErrShortBuffer
	}
	b := r.data[r.pos : r.pos+n : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadBytes returns a copy of the next n bytes.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	b, err := r.Next(n)
	if err != nil {
		return nil, err
	}
	return bytes.Clone(b), nil
}

func (r *Reader) ReadByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, ErrShortBuffer
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.Next(2)
	if err != nil {
		return 0, err
	}
	return le.Uint16(b), nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.Next(4)
	if err != nil {
		return 0, err
	}
	return le.Uint32(b), nil
}

func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

func (r *Reader) ReadUint64() (uint64, error) {
	b, err := r.Next(8)
	if err != nil {
		return 0, err
	}
	return le.Uint64(b), nil
}

func (r *Reader) ReadInt64() (int64, error) {
	v, err := r.ReadUint64()
	return int64(v), err
}

func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	return math.Float32frombits(v), err
}

func (r *Reader) ReadFloat64() (float64, error) {
	v, err := r.ReadUint64()
	return math.Float64frombits(v), err
}

// ReadString reads a null-terminated string and consumes the terminator.
// On failure the position is left unchanged.
func (r *Reader) ReadString() (string, error) {
	i := bytes.IndexByte(r.data[r.pos:], 0)
	if i < 0 {
		return "", ErrShortBuffer
	}
	s := string(r.data[r.pos : r.pos+i])
	r.pos += i + 1
	return s, nil
}

// BufferWriter appends little-endian values to a growing buffer.
type BufferWriter struct {
	buf []byte
}

// NewBufferWriter returns a BufferWriter with room for capacity bytes.
func NewBufferWriter(capacity int) *BufferWriter {
	return &BufferWriter{buf: make([]byte, 0, capacity)}
}

// Len returns the number of bytes written.
func (w *BufferWriter) Len() int { return len(w.buf) }

// Bytes returns the written bytes. The slice aliases the writer's buffer.
func (w *BufferWriter) Bytes() []byte { return w.buf }

// Reset discards the contents and keeps the allocation.
func (w *BufferWriter) Reset() { w.buf = w.buf[:0] }

func (w *BufferWriter) WriteByte(b byte) error {
	w.buf = append(w.buf, b)
	return nil
}

func (w *BufferWriter) WriteBytes(b []byte) { w.buf = append(w.buf, b...) }

func (w *BufferWriter) WriteUint16(v uint16) { w.buf = le.AppendUint16(w.buf, v) }

func (w *BufferWriter) WriteUint32(v uint32) { w.buf = le.AppendUint32(w.buf, v) }

func (w *BufferWriter) WriteInt32(v int32) { w.buf = le.AppendUint32(w.buf, uint32(v)) }

func (w *BufferWriter) WriteUint64(v uint64) { w.buf = le.AppendUint64(w.buf, v) }

func (w *BufferWriter) WriteInt64(v int64) { w.buf = le.AppendUint64(w.buf, uint64(v)) }

func (w *BufferWriter) WriteFloat32(v float32) { w.WriteUint32(math.Float32bits(v)) }

func (w *BufferWriter) WriteFloat64(v float64) { w.WriteUint64(math.Float64bits(v)) }

// WriteString writes s followed by a null terminator.
func (w *BufferWriter) WriteString(s string) {
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
}

// PutUint32 overwrites four bytes at offset off, which must already be written.
func (w *BufferWriter) PutUint32(off int, v uint32) { le.PutUint32(w.buf[off:], v) }
