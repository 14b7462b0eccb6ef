// Package digest implements the fixed-width content address used to name
// every prolly tree node: a SHA-256 hash truncated
// to N bytes. Equality and ordering are byte-wise; a Digest is immutable
// once constructed.
package digest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/xerrors"
)

// Size is the default digest width in bytes.
const Size = 32

// ErrBadWidth is returned by FromBytes when given the wrong number of bytes.
var ErrBadWidth = xerrors.New("digest: raw bytes have wrong width")

// Digest is a content address of width Size.
type Digest [Size]byte

// Empty is the zero digest, used as a sentinel for "no root yet."
var Empty Digest

// New hashes data with SHA-256 and truncates the result to Size bytes.
func New(data []byte) Digest {
	sum := sha256.Sum256(data)
	var d Digest
	copy(d[:], sum[:Size])
	return d
}

// FromBytes builds a Digest from raw, already-hashed bytes, as used when
// deserialising a node that stores its children's digests verbatim.
func FromBytes(raw []byte) (Digest, error) {
	var d Digest
	if len(raw) != Size {
		return d, ErrBadWidth
	}
	copy(d[:], raw)
	return d, nil
}

// Bytes returns the byte view of the digest.
func (d Digest) Bytes() []byte {
	return d[:]
}

// IsZero reports whether d is the empty digest.
func (d Digest) IsZero() bool {
	return d == Empty
}

// Equal reports byte-wise equality.
func (d Digest) Equal(other Digest) bool {
	return d == other
}

// Less orders digests byte-wise.
func (d Digest) Less(other Digest) bool {
	return bytes.Compare(d[:], other[:]) < 0
}

// String renders the digest as lowercase hex, per the printable-form contract.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}
