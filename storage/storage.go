// Package storage implements the NodeStore capability set (spec.md C2): a
// content-addressed store of prolly tree nodes plus an auxiliary mapping
// from short string keys to opaque config blobs. Concrete variants
// (in-memory, badger-backed) implement the same interface; the tree depends
// only on this capability set, never on a concrete type.
package storage

import (
	"github.com/prollytree-go/prollytree/digest"
	"github.com/prollytree-go/prollytree/prolly"
)

// NodeStore is the capability set prolly.Tree depends on. put is idempotent
// for a digest already present (content addressing); delete is advisory,
// retention/garbage-collection is an external concern; get returns a node
// with transient flags reset.
type NodeStore interface {
	Get(d digest.Digest) (*prolly.Node, bool, error)
	Put(d digest.Digest, n *prolly.Node) error
	Delete(d digest.Digest) error

	GetConfig(key string) ([]byte, bool, error)
	PutConfig(key string, value []byte) error
}

// PutNode serialises n and stores it under its own digest, returning that
// digest. A small convenience for callers holding a node but not its digest.
func PutNode(s NodeStore, n *prolly.Node) (digest.Digest, error) {
	d := n.Digest()
	if err := s.Put(d, n); err != nil {
		return digest.Empty, err
	}
	return d, nil
}
