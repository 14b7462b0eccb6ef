// Package codec provides the small length-prefixed binary encoding helpers
// used throughout this module's node and commit serialisation, plus the
// Assert/Concat conventions the teacher's own packages use pervasively.
package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/prollytree-go/prollytree/errs"
)

// Assert panics with a formatted message if cond is false. Used for internal
// invariants that indicate a bug in this package, never for user input.
func Assert(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}

// Concat concatenates byte-like arguments into a single slice.
func Concat(parts ...interface{}) []byte {
	var buf bytes.Buffer
	for _, p := range parts {
		switch v := p.(type) {
		case []byte:
			buf.Write(v)
		case byte:
			buf.WriteByte(v)
		case string:
			buf.WriteString(v)
		case interface{ Bytes() []byte }:
			buf.Write(v.Bytes())
		default:
			Assert(false, "codec.Concat: unsupported type %T", p)
		}
	}
	return buf.Bytes()
}

// WriteUint32 writes a big-endian uint32.
func WriteUint32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

// ReadUint32 reads a big-endian uint32.
func ReadUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

// WriteUint64 writes a big-endian uint64.
func WriteUint64(w io.Writer, v uint64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	_, err := w.Write(b[:])
	return err
}

// ReadUint64 reads a big-endian uint64.
func ReadUint64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

// WriteByte writes a single byte.
func WriteByte(w io.Writer, b byte) error {
	_, err := w.Write([]byte{b})
	return err
}

// ReadByte reads a single byte.
func ReadByte(r io.Reader) (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// WriteBytes writes a uint32 length prefix followed by data.
func WriteBytes(w io.Writer, data []byte) error {
	if err := WriteUint32(w, uint32(len(data))); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

// ReadBytes reads a uint32-length-prefixed byte slice.
func ReadBytes(r io.Reader) ([]byte, error) {
	n, err := ReadUint32(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// MustBytes serialises w's Write method to a byte slice, panicking on error.
// Used for the common case of "serialise to get the digest preimage," where
// an in-memory buffer write cannot fail.
func MustBytes(o interface{ Write(w io.Writer) error }) []byte {
	var buf bytes.Buffer
	if err := o.Write(&buf); err != nil {
		panic(errs.Storagef(err, "codec: unexpected write failure"))
	}
	return buf.Bytes()
}
