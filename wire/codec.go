// Package wire implements the relay's binary frame format: length-delimited
// little-endian encoding, the top-level TRANSPARENT/OPAQUE envelope
// discrimination, and the session/meeting message taxonomy carried inside a
// TRANSPARENT envelope.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Version is the wire protocol version prefixed to every frame.
const Version uint16 = 1

// ErrShortBuffer indicates a frame ended before an expected field could be
// read.
var ErrShortBuffer = errors.New("wire: buffer too short")

// MaxPayload is the largest SealedEnvelope payload accepted after
// compression, per §4.1.
const MaxPayload = 32 * 1024

// Writer accumulates a frame's bytes field by field.
type Writer struct {
	buf bytes.Buffer
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer { return &Writer{} }

// Bytes returns the accumulated frame.
func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

// Byte appends a single byte (used for tags).
func (w *Writer) Byte(b byte) { w.buf.WriteByte(b) }

// Uint16 appends a little-endian u16.
func (w *Writer) Uint16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

// Uint32 appends a little-endian u32.
func (w *Writer) Uint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

// Bool appends a single byte, 1 for true.
func (w *Writer) Bool(v bool) {
	if v {
		w.buf.WriteByte(1)
	} else {
		w.buf.WriteByte(0)
	}
}

// BytesField appends a u32-length-prefixed byte slice.
func (w *Writer) BytesField(b []byte) {
	w.Uint32(uint32(len(b)))
	w.buf.Write(b)
}

// String appends a u32-length-prefixed UTF-8 string.
func (w *Writer) String(s string) { w.BytesField([]byte(s)) }

// UUID appends the 16 raw bytes of a UUID.
func (w *Writer) UUID(id uuid.UUID) { w.buf.Write(id[:]) }

// Reader consumes a frame's bytes field by field.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps a frame for sequential decoding.
func NewReader(data []byte) *Reader { return &Reader{buf: data} }

// Remaining reports how many bytes are left unread.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

func (r *Reader) need(n int) error {
	if r.Remaining() < n {
		return ErrShortBuffer
	}
	return nil
}

// Byte reads one byte.
func (r *Reader) Byte() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

// Uint16 reads a little-endian u16.
func (r *Reader) Uint16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

// Uint32 reads a little-endian u32.
func (r *Reader) Uint32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

// Bool reads one byte as a boolean.
func (r *Reader) Bool() (bool, error) {
	b, err := r.Byte()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

// BytesField reads a u32-length-prefixed byte slice.
func (r *Reader) BytesField() ([]byte, error) {
	n, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	if err := r.need(int(n)); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, r.buf[r.pos:r.pos+int(n)])
	r.pos += int(n)
	return out, nil
}

// String reads a u32-length-prefixed UTF-8 string.
func (r *Reader) String() (string, error) {
	b, err := r.BytesField()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// UUID reads 16 raw bytes as a UUID.
func (r *Reader) UUID() (uuid.UUID, error) {
	if err := r.need(16); err != nil {
		return uuid.Nil, err
	}
	var id uuid.UUID
	copy(id[:], r.buf[r.pos:r.pos+16])
	r.pos += 16
	return id, nil
}

// ReadVersion reads and validates the leading VERSION field common to every
// frame.
func ReadVersion(r *Reader) error {
	v, err := r.Uint16()
	if err != nil {
		return err
	}
	if v != Version {
		return fmt.Errorf("wire: unsupported version %d", v)
	}
	return nil
}
