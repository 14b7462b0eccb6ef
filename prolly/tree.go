package prolly

import (
	"fmt"
	"math"

	"github.com/prollytree-go/prollytree/digest"
	"github.com/prollytree-go/prollytree/errs"
)

// Store is the capability Tree depends on: a content-addressed node store
// plus the auxiliary config-blob mapping (spec.md C2). storage.NodeStore
// satisfies this structurally; prolly never imports the storage package, to
// avoid a cycle (storage imports prolly for *Node).
type Store interface {
	Get(d digest.Digest) (*Node, bool, error)
	Put(d digest.Digest, n *Node) error
	Delete(d digest.Digest) error
	GetConfig(key string) ([]byte, bool, error)
	PutConfig(key string, value []byte) error
}

// Tree owns the current root node and a handle to a Store (spec.md C4).
type Tree struct {
	s    Store
	root *Node
}

// New creates an empty tree: a single empty leaf at level 0.
func New(s Store, cfg ChunkConfig) (*Tree, error) {
	leaf := NewLeaf(cfg)
	if err := s.Put(leaf.Digest(), leaf); err != nil {
		return nil, err
	}
	return &Tree{s: s, root: leaf}, nil
}

// Open reconstructs a tree from an existing root digest.
func Open(s Store, root digest.Digest) (*Tree, error) {
	n, ok, err := s.Get(root)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.NotFoundf("prolly: root digest %s not found", root)
	}
	return &Tree{s: s, root: n}, nil
}

// RootDigest returns the content address of the current root node.
func (t *Tree) RootDigest() digest.Digest {
	return t.root.Digest()
}

// Root returns the current in-memory root node.
func (t *Tree) Root() *Node {
	return t.root
}

// Store returns the tree's backing node store.
func (t *Tree) Store() Store {
	return t.s
}

// Insert adds or updates key/value, idempotent up to the resulting root
// digest: inserting the same pair twice yields the same final root.
func (t *Tree) Insert(key, value []byte) error {
	replacement, err := insertInto(t.s, t.root, key, value)
	if err != nil {
		return err
	}
	root, err := wrapRoot(t.s, replacement)
	if err != nil {
		return err
	}
	t.root = root
	return nil
}

// Delete removes key, reporting whether it was present. On a miss, the
// tree is left unmodified.
func (t *Tree) Delete(key []byte) (bool, error) {
	replacement, existed, err := deleteFrom(t.s, t.root, key)
	if err != nil || !existed {
		return existed, err
	}
	root, err := wrapRoot(t.s, replacement)
	if err != nil {
		return false, err
	}
	root, err = collapseSingleChild(t.s, root)
	if err != nil {
		return false, err
	}
	t.root = root
	return true, nil
}

// Find descends by binary search on separators to the leaf that would
// contain key, returning it only if the key is actually present there.
func (t *Tree) Find(key []byte) (*Node, bool, error) {
	leaf, err := findLeaf(t.s, t.root, key)
	if err != nil {
		return nil, false, err
	}
	if _, found := leaf.search(key); !found {
		return nil, false, nil
	}
	return leaf, true, nil
}

// Get is a convenience wrapper over Find returning the value directly.
func (t *Tree) Get(key []byte) ([]byte, bool, error) {
	leaf, found, err := t.Find(key)
	if err != nil || !found {
		return nil, found, err
	}
	idx, _ := leaf.search(key)
	return leaf.Values[idx], true, nil
}

// wrapRoot combines one or more top-level node fragments into a single
// root, growing the tree's height by one level at a time until a single
// node remains (mirrors how a split cascades upward in §4.3).
func wrapRoot(s Store, children []*Node) (*Node, error) {
	for len(children) > 1 {
		level := children[0].Level + 1
		parent := &Node{IsLeaf: false, Level: level, Config: children[0].Config}
		for _, c := range children {
			parent.Keys = append(parent.Keys, append([]byte(nil), c.firstKey()...))
			parent.Values = append(parent.Values, append([]byte(nil), c.Digest().Bytes()...))
		}
		next, err := chunkNode(s, parent)
		if err != nil {
			return nil, err
		}
		children = next
	}
	return children[0], nil
}

// collapseSingleChild implements "if the root is internal with a single
// child, the child becomes the new root," cascading through any number of
// now-redundant levels.
func collapseSingleChild(s Store, root *Node) (*Node, error) {
	for !root.IsLeaf && len(root.Keys) == 1 {
		d, err := root.childDigest(0)
		if err != nil {
			return nil, errs.Corruptionf("prolly: malformed single-child digest: %v", err)
		}
		child, ok, err := s.Get(d)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errs.Corruptionf("prolly: child digest %s has no blob", d)
		}
		root = child
	}
	return root, nil
}

// Stats summarises node count, leaf/internal counts, max depth, and
// canonical-serialisation byte-size distribution.
type Stats struct {
	NumNodes         int
	NumLeaves        int
	NumInternalNodes int
	MaxDepth         int
	AvgNodeSize      float64
	StdNodeSize      float64
	MinNodeSize      float64
	MaxNodeSize      float64
}

// Stats walks the whole tree to compute summary statistics. This is O(N) by
// design: it is a diagnostic, not a hot-path operation.
func (t *Tree) Stats() (Stats, error) {
	var sizes []float64
	var leaves, internals, maxDepth int

	var walk func(n *Node, depth int) error
	walk = func(n *Node, depth int) error {
		if depth > maxDepth {
			maxDepth = depth
		}
		sizes = append(sizes, float64(len(n.Bytes())))
		if n.IsLeaf {
			leaves++
			return nil
		}
		internals++
		for i := range n.Keys {
			d, err := n.childDigest(i)
			if err != nil {
				return errs.Corruptionf("prolly: malformed child digest at %d: %v", i, err)
			}
			child, ok, err := t.s.Get(d)
			if err != nil {
				return err
			}
			if !ok {
				return errs.Corruptionf("prolly: child digest %s has no blob", d)
			}
			if err := walk(child, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(t.root, 0); err != nil {
		return Stats{}, err
	}

	stats := Stats{
		NumNodes:         leaves + internals,
		NumLeaves:        leaves,
		NumInternalNodes: internals,
		MaxDepth:         maxDepth,
	}
	if len(sizes) == 0 {
		return stats, nil
	}
	var sum float64
	stats.MinNodeSize = math.MaxFloat64
	for _, s := range sizes {
		sum += s
		if s < stats.MinNodeSize {
			stats.MinNodeSize = s
		}
		if s > stats.MaxNodeSize {
			stats.MaxNodeSize = s
		}
	}
	stats.AvgNodeSize = sum / float64(len(sizes))
	var variance float64
	for _, s := range sizes {
		diff := s - stats.AvgNodeSize
		variance += diff * diff
	}
	variance /= float64(len(sizes))
	stats.StdNodeSize = math.Sqrt(variance)
	return stats, nil
}

// Traverse renders the tree with the default formatter (fmt.Sprintf of each
// leaf's keys), used for debugging.
func (t *Tree) Traverse() (string, error) {
	return t.FormattedTraverse(func(n *Node) string {
		return fmt.Sprintf("%v", n.Keys)
	})
}

// FormattedTraverse performs an in-order walk, applying formatter to every
// leaf node visited and concatenating the results.
func (t *Tree) FormattedTraverse(formatter func(*Node) string) (string, error) {
	var out string
	var walk func(n *Node) error
	walk = func(n *Node) error {
		if n.IsLeaf {
			out += formatter(n)
			return nil
		}
		for i := range n.Keys {
			d, err := n.childDigest(i)
			if err != nil {
				return errs.Corruptionf("prolly: malformed child digest at %d: %v", i, err)
			}
			child, ok, err := t.s.Get(d)
			if err != nil {
				return err
			}
			if !ok {
				return errs.Corruptionf("prolly: child digest %s has no blob", d)
			}
			if err := walk(child); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(t.root); err != nil {
		return "", err
	}
	return out, nil
}

// Iterate performs an in-order walk over every key/value pair in the tree,
// stopping early if fn returns false.
func (t *Tree) Iterate(fn func(key, value []byte) bool) error {
	var walk func(n *Node) (bool, error)
	walk = func(n *Node) (bool, error) {
		if n.IsLeaf {
			for i := range n.Keys {
				if !fn(n.Keys[i], n.Values[i]) {
					return false, nil
				}
			}
			return true, nil
		}
		for i := range n.Keys {
			d, err := n.childDigest(i)
			if err != nil {
				return false, errs.Corruptionf("prolly: malformed child digest at %d: %v", i, err)
			}
			child, ok, err := t.s.Get(d)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, errs.Corruptionf("prolly: child digest %s has no blob", d)
			}
			cont, err := walk(child)
			if err != nil || !cont {
				return cont, err
			}
		}
		return true, nil
	}
	_, err := walk(t.root)
	return err
}
