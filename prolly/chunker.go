package prolly

import (
	"github.com/cespare/xxhash/v2"

	"github.com/prollytree-go/prollytree/codec"
	"github.com/prollytree-go/prollytree/digest"
)

// chunkRanges scans keys/values left to right and returns the [start, end)
// ranges each resulting chunk should cover. The boundary test is the one
// described in spec.md §4.3: a rolling hash accumulated over each entry's
// bytes, reset at every cut, marks a boundary once the accumulator matches
// the pattern mask and the current chunk already holds at least
// MinChunkSize entries, or once MaxChunkSize entries have accumulated
// regardless of the hash. This makes the boundary a pure function of the
// entries' content (not of insertion order or prior tree shape), which is
// what gives the tree its history-independence: re-chunking any node is
// always derived fresh from that node's current, complete sorted content.
func chunkRanges(cfg ChunkConfig, keys, values [][]byte) [][2]int {
	n := len(keys)
	if n == 0 {
		return [][2]int{{0, 0}}
	}

	var ranges [][2]int
	start := 0
	var acc uint64
	modulus := cfg.Modulus
	if modulus == 0 {
		modulus = 1 << 31
	}
	for i := 0; i < n; i++ {
		h := entryHash(keys[i], values[i])
		acc = acc*cfg.Base + h
		if modulus != 0 {
			acc %= modulus
		}
		count := i - start + 1
		atPattern := acc&cfg.Pattern == 0
		boundary := (count >= cfg.MinChunkSize && atPattern) || count >= cfg.MaxChunkSize
		if boundary && i < n-1 {
			ranges = append(ranges, [2]int{start, i + 1})
			start = i + 1
			acc = 0
		}
	}
	ranges = append(ranges, [2]int{start, n})
	return ranges
}

// entryHash hashes one (key, value) pair's bytes for the rolling accumulator.
func entryHash(key, value []byte) uint64 {
	h := xxhash.New()
	_, _ = h.Write(codec.Concat(key))
	_, _ = h.Write([]byte{0}) // separator so "ab","c" and "a","bc" hash differently
	_, _ = h.Write(codec.Concat(value))
	return h.Sum64()
}

// chunkNode re-chunks node's current Keys/Values into one or more sibling
// nodes at the same level, writing each to store and returning them left to
// right. The original node's Config is preserved on every resulting node.
func chunkNode(store nodeWriter, node *Node) ([]*Node, error) {
	ranges := chunkRanges(node.Config, node.Keys, node.Values)
	out := make([]*Node, 0, len(ranges))
	for _, r := range ranges {
		part := &Node{
			IsLeaf: node.IsLeaf,
			Level:  node.Level,
			Config: node.Config,
			Keys:   node.Keys[r[0]:r[1]],
			Values: node.Values[r[0]:r[1]],
		}
		if err := store.Put(part.Digest(), part); err != nil {
			return nil, err
		}
		out = append(out, part)
	}
	return out, nil
}

// nodeWriter is the minimal capability chunkNode needs; storage.NodeStore
// satisfies it.
type nodeWriter interface {
	Put(d digest.Digest, n *Node) error
}
