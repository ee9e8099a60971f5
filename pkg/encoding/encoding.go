// Package encoding implements the fixed binary transaction-description format
// consumed by key servers, plus the framing used to hand requests and
// response batches between the enclave and the operator as hex strings.
//
// The format is deterministic: lengths are ULEB128, integers little-endian,
// variants tagged with a single byte, and struct fields written in protocol
// order. Identical input always yields byte-identical output.
package encoding

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Encoder accumulates the deterministic binary form of a value.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an empty encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Bytes returns the accumulated encoding.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Byte appends a single raw byte.
func (e *Encoder) Byte(b byte) *Encoder {
	e.buf = append(e.buf, b)
	return e
}

// Bool appends 0x01 or 0x00.
func (e *Encoder) Bool(v bool) *Encoder {
	if v {
		return e.Byte(1)
	}
	return e.Byte(0)
}

// U16 appends a little-endian uint16.
func (e *Encoder) U16(v uint16) *Encoder {
	e.buf = binary.LittleEndian.AppendUint16(e.buf, v)
	return e
}

// U64 appends a little-endian uint64.
func (e *Encoder) U64(v uint64) *Encoder {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, v)
	return e
}

// Uleb appends a ULEB128-encoded length or count.
func (e *Encoder) Uleb(v uint64) *Encoder {
	e.buf = binary.AppendUvarint(e.buf, v)
	return e
}

// WriteBytes appends a ULEB128 length prefix followed by the raw bytes.
func (e *Encoder) WriteBytes(b []byte) *Encoder {
	e.Uleb(uint64(len(b)))
	e.buf = append(e.buf, b...)
	return e
}

// Raw appends bytes without a length prefix. Only for fixed-width fields.
func (e *Encoder) Raw(b []byte) *Encoder {
	e.buf = append(e.buf, b...)
	return e
}

// String appends a length-prefixed UTF-8 string.
func (e *Encoder) String(s string) *Encoder {
	return e.WriteBytes([]byte(s))
}

// Decoder consumes a deterministic binary encoding. The first error sticks;
// callers check Err once after reading every field.
type Decoder struct {
	buf []byte
	off int
	err error
}

// NewDecoder wraps data for reading.
func NewDecoder(data []byte) *Decoder {
	return &Decoder{buf: data}
}

// Err returns the first decode error, if any.
func (d *Decoder) Err() error {
	return d.err
}

// Remaining reports how many undecoded bytes are left.
func (d *Decoder) Remaining() int {
	return len(d.buf) - d.off
}

// Finish fails unless the input was consumed exactly.
func (d *Decoder) Finish() error {
	if d.err != nil {
		return d.err
	}
	if d.off != len(d.buf) {
		return fmt.Errorf("trailing garbage: %d bytes left after decode", len(d.buf)-d.off)
	}
	return nil
}

func (d *Decoder) fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

func (d *Decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || d.off+n > len(d.buf) {
		d.fail(io.ErrUnexpectedEOF)
		return nil
	}
	out := d.buf[d.off : d.off+n]
	d.off += n
	return out
}

// Byte reads one raw byte.
func (d *Decoder) Byte() byte {
	b := d.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// Bool reads a strict boolean byte.
func (d *Decoder) Bool() bool {
	switch d.Byte() {
	case 0:
		return false
	case 1:
		return true
	default:
		d.fail(errors.New("invalid boolean byte"))
		return false
	}
}

// U16 reads a little-endian uint16.
func (d *Decoder) U16() uint16 {
	b := d.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

// U64 reads a little-endian uint64.
func (d *Decoder) U64() uint64 {
	b := d.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

// Uleb reads a ULEB128 length or count, bounded to keep a corrupt length
// prefix from producing a giant allocation.
func (d *Decoder) Uleb() uint64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Uvarint(d.buf[d.off:])
	if n <= 0 {
		d.fail(errors.New("invalid ULEB128 value"))
		return 0
	}
	d.off += n
	if v > uint64(len(d.buf)) {
		d.fail(fmt.Errorf("length prefix %d exceeds input size", v))
		return 0
	}
	return v
}

// ReadBytes reads a length-prefixed byte slice (copied out).
func (d *Decoder) ReadBytes() []byte {
	n := d.Uleb()
	b := d.take(int(n))
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// ReadRaw reads n bytes without a length prefix (copied out).
func (d *Decoder) ReadRaw(n int) []byte {
	b := d.take(n)
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// ReadString reads a length-prefixed UTF-8 string.
func (d *Decoder) ReadString() string {
	return string(d.ReadBytes())
}
