// Package objectdb is the git-style content-addressable object store
// that backs the versioned key-value store (spec.md C6): blobs for prolly
// nodes, commit objects with parent links, and mutable refs. It performs no
// merge logic — callers (package versioned) own that.
package objectdb

import (
	"crypto/sha1"
	"encoding/hex"

	"github.com/prollytree-go/prollytree/errs"
)

// ObjectID is the object-DB's own address space, distinct from the tree's
// content digests (spec.md §4.6: "the two address spaces may differ").
// Computed as the SHA-1 of an object's serialised bytes. Unlike git, no
// "<type> <size>\0" object header is hashed, so ids differ from git's.
type ObjectID [20]byte

// HashObject computes the ObjectID of raw bytes.
func HashObject(data []byte) ObjectID {
	return ObjectID(sha1.Sum(data))
}

// String renders the object id as lowercase hex.
func (id ObjectID) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether id is the unset value.
func (id ObjectID) IsZero() bool {
	return id == ObjectID{}
}

// ParseObjectID decodes a hex string produced by String.
func ParseObjectID(s string) (ObjectID, error) {
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != 20 {
		return ObjectID{}, errs.InvalidInputf("objectdb: malformed object id %q", s)
	}
	var id ObjectID
	copy(id[:], raw)
	return id, nil
}
