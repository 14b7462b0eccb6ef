// Package prolly implements the content-addressed, history-independent
// search tree (the "prolly tree"): deterministic chunk-boundary splitting,
// recursive insert/update/delete/find, and formatted traversal over a
// pluggable node storage abstraction.
package prolly

import (
	"bytes"
	"io"

	"github.com/prollytree-go/prollytree/codec"
	"github.com/prollytree-go/prollytree/digest"
	"github.com/prollytree-go/prollytree/errs"
)

// nodeFormatVersion guards the canonical encoding so future changes to the
// on-disk layout can be detected instead of silently misparsed.
const nodeFormatVersion = 1

// ChunkConfig holds the content-defined-chunking parameters. Every node in a
// tree carries its own copy so a node is self-describing: re-chunking a
// subtree never needs to consult an out-of-band tree object.
type ChunkConfig struct {
	// Base and Modulus parameterise the rolling hash.
	Base    uint64
	Modulus uint64
	// MaxChunkSize bounds the number of entries per node. MinChunkSize is the
	// fewest entries a chunk holds before a hash boundary may cut it; the last
	// chunk of a re-chunked node is not held to it and may be smaller.
	MinChunkSize int
	MaxChunkSize int
	// Pattern is the boundary mask: a rolling-hash value h marks a boundary
	// when h&Pattern == 0. Roughly 2^popcount(Pattern) entries per chunk.
	Pattern uint64
}

// DefaultChunkConfig targets roughly 64-entry chunks (2^6) with hard bounds
// of [8, 256] entries, matching the sizes exercised by this module's tests
// and the scenarios in the originating specification.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		Base:         67,
		Modulus:      1 << 31,
		MinChunkSize: 8,
		MaxChunkSize: 256,
		Pattern:      0x3f, // expect ~64 entries/chunk
	}
}

// RowType names an alternative, structured per-column encoding of a leaf
// node's values (spec.md's "encode_types/encode_values"), used by callers
// that know their schema (e.g. a SQL facade) without changing the digest,
// which is always computed over the canonical byte form.
type RowType byte

const (
	RowTypeBytes RowType = iota
	RowTypeInt64
	RowTypeString
)

// Node is a tuple of sorted keys/values, self-describing chunk parameters,
// and the transient flags used only during a single mutation pass.
type Node struct {
	Keys   [][]byte
	Values [][]byte
	IsLeaf bool
	// Level is 0 for leaves, 1+max(child levels) for internal nodes.
	Level  uint64
	Config ChunkConfig

	// EncodeTypes/EncodeValues optionally mirror Values into a structured
	// row form for schema-aware callers. Never participates in the digest.
	EncodeTypes  []RowType
	EncodeValues [][]byte

	// split/merged are set during a single insert/delete pass and never
	// persisted or considered by Digest.
	split  bool
	merged bool
}

// NewLeaf returns an empty leaf node with the given chunk config.
func NewLeaf(cfg ChunkConfig) *Node {
	return &Node{IsLeaf: true, Level: 0, Config: cfg}
}

// Len returns the number of entries in the node.
func (n *Node) Len() int {
	return len(n.Keys)
}

// Clone returns a deep copy suitable for in-place mutation without aliasing
// the original's backing arrays.
func (n *Node) Clone() *Node {
	c := &Node{
		IsLeaf: n.IsLeaf,
		Level:  n.Level,
		Config: n.Config,
		Keys:   make([][]byte, len(n.Keys)),
		Values: make([][]byte, len(n.Values)),
	}
	for i := range n.Keys {
		c.Keys[i] = append([]byte(nil), n.Keys[i]...)
		c.Values[i] = append([]byte(nil), n.Values[i]...)
	}
	if n.EncodeTypes != nil {
		c.EncodeTypes = append([]RowType(nil), n.EncodeTypes...)
		c.EncodeValues = make([][]byte, len(n.EncodeValues))
		for i := range n.EncodeValues {
			c.EncodeValues[i] = append([]byte(nil), n.EncodeValues[i]...)
		}
	}
	return c
}

// firstKey is the separator a parent records for this subtree.
func (n *Node) firstKey() []byte {
	if len(n.Keys) == 0 {
		return nil
	}
	return n.Keys[0]
}

// childDigest decodes the digest stored as the value at position i of an
// internal node.
func (n *Node) childDigest(i int) (digest.Digest, error) {
	return digest.FromBytes(n.Values[i])
}

// search returns the index of key in n.Keys, or the insertion point and
// false if absent. Internal nodes use this to pick the child subtree whose
// separator is the largest key <= the search key.
func (n *Node) search(key []byte) (idx int, found bool) {
	lo, hi := 0, len(n.Keys)
	for lo < hi {
		mid := (lo + hi) / 2
		switch bytes.Compare(n.Keys[mid], key) {
		case 0:
			return mid, true
		case -1:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return lo, false
}

// childIndex returns the index of the child subtree responsible for key in
// an internal node: the last separator <= key, or 0 if key precedes every
// separator.
func (n *Node) childIndex(key []byte) int {
	idx, found := n.search(key)
	if found {
		return idx
	}
	if idx == 0 {
		return 0
	}
	return idx - 1
}

// Write serialises the node canonically: two equal-by-value nodes always
// produce byte-equal output, which is the precondition for content
// addressing to be meaningful.
func (n *Node) Write(w io.Writer) error {
	if err := codec.WriteByte(w, nodeFormatVersion); err != nil {
		return err
	}
	var isLeaf byte
	if n.IsLeaf {
		isLeaf = 1
	}
	if err := codec.WriteByte(w, isLeaf); err != nil {
		return err
	}
	if err := codec.WriteUint64(w, n.Level); err != nil {
		return err
	}
	if err := codec.WriteUint64(w, n.Config.Base); err != nil {
		return err
	}
	if err := codec.WriteUint64(w, n.Config.Modulus); err != nil {
		return err
	}
	if err := codec.WriteUint64(w, uint64(n.Config.MinChunkSize)); err != nil {
		return err
	}
	if err := codec.WriteUint64(w, uint64(n.Config.MaxChunkSize)); err != nil {
		return err
	}
	if err := codec.WriteUint64(w, n.Config.Pattern); err != nil {
		return err
	}
	if err := codec.WriteUint32(w, uint32(len(n.Keys))); err != nil {
		return err
	}
	for i := range n.Keys {
		if err := codec.WriteBytes(w, n.Keys[i]); err != nil {
			return err
		}
		if err := codec.WriteBytes(w, n.Values[i]); err != nil {
			return err
		}
	}
	return nil
}

// Read deserialises a node written by Write. Transient flags are reset, per
// the NodeStore.Get contract.
func (n *Node) Read(r io.Reader) error {
	version, err := codec.ReadByte(r)
	if err != nil {
		return err
	}
	if version != nodeFormatVersion {
		return errs.Corruptionf("prolly: unsupported node format version %d", version)
	}
	isLeaf, err := codec.ReadByte(r)
	if err != nil {
		return err
	}
	n.IsLeaf = isLeaf != 0
	if n.Level, err = codec.ReadUint64(r); err != nil {
		return err
	}
	if n.Config.Base, err = codec.ReadUint64(r); err != nil {
		return err
	}
	if n.Config.Modulus, err = codec.ReadUint64(r); err != nil {
		return err
	}
	minSize, err := codec.ReadUint64(r)
	if err != nil {
		return err
	}
	n.Config.MinChunkSize = int(minSize)
	maxSize, err := codec.ReadUint64(r)
	if err != nil {
		return err
	}
	n.Config.MaxChunkSize = int(maxSize)
	if n.Config.Pattern, err = codec.ReadUint64(r); err != nil {
		return err
	}
	count, err := codec.ReadUint32(r)
	if err != nil {
		return err
	}
	n.Keys = make([][]byte, count)
	n.Values = make([][]byte, count)
	for i := range n.Keys {
		if n.Keys[i], err = codec.ReadBytes(r); err != nil {
			return err
		}
		if n.Values[i], err = codec.ReadBytes(r); err != nil {
			return err
		}
	}
	n.split, n.merged = false, false
	n.EncodeTypes, n.EncodeValues = nil, nil
	return nil
}

// Bytes returns the canonical serialisation.
func (n *Node) Bytes() []byte {
	return codec.MustBytes(n)
}

// Digest computes the content address of the node's canonical serialisation.
func (n *Node) Digest() digest.Digest {
	return digest.New(n.Bytes())
}

// DecodeNode deserialises bytes produced by Node.Bytes.
func DecodeNode(data []byte) (*Node, error) {
	n := &Node{}
	if err := n.Read(bytes.NewReader(data)); err != nil {
		return nil, errs.Corruptionf("prolly: decode node: %v", err)
	}
	return n, nil
}
