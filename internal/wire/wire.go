// Package wire reads and writes the little-endian primitives used by the
// session snapshot format: fixed-width integers and floats, strings with a
// 7-bit varint length prefix and int32 length-prefixed blobs.
//
// Writer and Reader keep the first error they hit and turn every later call
// into a no-op, so a codec can emit a whole record and check Err once.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	// MaxStringLen bounds string prefixes accepted by Reader.
	MaxStringLen = 1 << 20
	// MaxBlobLen bounds blob prefixes accepted by Reader.
	MaxBlobLen = math.MaxInt32
)

var ErrLength = errors.New("invalid length prefix")

type Writer struct {
	w   io.Writer
	n   int64
	err error
	buf [binary.MaxVarintLen64]byte
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) Err() error {
	return w.err
}

// Written reports the number of bytes accepted by the underlying writer.
func (w *Writer) Written() int64 {
	return w.n
}

func (w *Writer) write(p []byte) {
	if w.err != nil {
		return
	}
	n, err := w.w.Write(p)
	w.n += int64(n)
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	w.err = err
}

func (w *Writer) Uint8(v uint8) {
	w.buf[0] = v
	w.write(w.buf[:1])
}

func (w *Writer) Int32(v int32) {
	binary.LittleEndian.PutUint32(w.buf[:4], uint32(v))
	w.write(w.buf[:4])
}

func (w *Writer) Int64(v int64) {
	binary.LittleEndian.PutUint64(w.buf[:8], uint64(v))
	w.write(w.buf[:8])
}

func (w *Writer) Float32(v float32) {
	binary.LittleEndian.PutUint32(w.buf[:4], math.Float32bits(v))
	w.write(w.buf[:4])
}

func (w *Writer) Float64(v float64) {
	binary.LittleEndian.PutUint64(w.buf[:8], math.Float64bits(v))
	w.write(w.buf[:8])
}

// String writes len(s) as a 7-bit varint followed by the UTF-8 bytes.
func (w *Writer) String(s string) {
	n := binary.PutUvarint(w.buf[:], uint64(len(s)))
	w.write(w.buf[:n])
	w.write([]byte(s))
}

// Blob writes len(p) as an int32 followed by p.
func (w *Writer) Blob(p []byte) {
	if w.err == nil && len(p) > MaxBlobLen {
		w.err = fmt.Errorf("%w: blob of %d bytes", ErrLength, len(p))
		return
	}
	w.Int32(int32(len(p)))
	w.write(p)
}

type Reader struct {
	r   io.Reader
	err error
	buf [8]byte
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Err returns the first read error. A stream that ends inside a value is
// reported as io.ErrUnexpectedEOF.
func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *Reader) read(p []byte) bool {
	if r.err != nil {
		return false
	}
	if _, err := io.ReadFull(r.r, p); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		r.err = err
		return false
	}
	return true
}

func (r *Reader) Uint8() uint8 {
	if !r.read(r.buf[:1]) {
		return 0
	}
	return r.buf[0]
}

func (r *Reader) Int32() int32 {
	if !r.read(r.buf[:4]) {
		return 0
	}
	return int32(binary.LittleEndian.Uint32(r.buf[:4]))
}

func (r *Reader) Int64() int64 {
	if !r.read(r.buf[:8]) {
		return 0
	}
	return int64(binary.LittleEndian.Uint64(r.buf[:8]))
}

func (r *Reader) Float32() float32 {
	if !r.read(r.buf[:4]) {
		return 0
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(r.buf[:4]))
}

func (r *Reader) Float64() float64 {
	if !r.read(r.buf[:8]) {
		return 0
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(r.buf[:8]))
}

func (r *Reader) uvarint() uint64 {
	var x uint64
	var s uint
	for i := 0; i < binary.MaxVarintLen32; i++ {
		b := r.Uint8()
		if r.err != nil {
			return 0
		}
		if b < 0x80 {
			return x | uint64(b)<<s
		}
		x |= uint64(b&0x7f) << s
		s += 7
	}
	r.fail(fmt.Errorf("%w: varint overflows 32 bits", ErrLength))
	return 0
}

func (r *Reader) String() string {
	n := r.uvarint()
	if r.err != nil {
		return ""
	}
	if n > MaxStringLen {
		r.fail(fmt.Errorf("%w: string of %d bytes", ErrLength, n))
		return ""
	}
	p := make([]byte, n)
	if !r.read(p) {
		return ""
	}
	return string(p)
}

// Blob reads an int32 length prefix and that many bytes. The buffer grows
// with the data actually read, not with the prefix.
func (r *Reader) Blob() []byte {
	n := r.Int32()
	if r.err != nil {
		return nil
	}
	if n < 0 {
		r.fail(fmt.Errorf("%w: negative blob length %d", ErrLength, n))
		return nil
	}
	var buf bytes.Buffer
	copied, err := io.CopyN(&buf, r.r, int64(n))
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		r.fail(fmt.Errorf("blob truncated after %d of %d bytes: %w", copied, n, err))
		return nil
	}
	return buf.Bytes()
}
