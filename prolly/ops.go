package prolly

import (
	"github.com/prollytree-go/prollytree/digest"
	"github.com/prollytree-go/prollytree/errs"
)

// store is the capability ops.go needs from a NodeStore. Declared locally
// (rather than importing the storage package) to avoid a storage <-> prolly
// import cycle; storage.NodeStore satisfies it structurally.
type store interface {
	Get(d digest.Digest) (*Node, bool, error)
	Put(d digest.Digest, n *Node) error
}

// insertInto descends from node, inserting or updating key/value, and
// returns the one or more nodes that replace node at its level (more than
// one only when node split). Each returned node has already been persisted.
func insertInto(s store, node *Node, key, value []byte) ([]*Node, error) {
	if node.IsLeaf {
		return insertLeaf(s, node, key, value)
	}
	return insertInternal(s, node, key, value)
}

func insertLeaf(s store, node *Node, key, value []byte) ([]*Node, error) {
	next := node.Clone()
	idx, found := next.search(key)
	if found {
		next.Values[idx] = value
	} else {
		next.Keys = append(next.Keys, nil)
		next.Values = append(next.Values, nil)
		copy(next.Keys[idx+1:], next.Keys[idx:])
		copy(next.Values[idx+1:], next.Values[idx:])
		next.Keys[idx] = append([]byte(nil), key...)
		next.Values[idx] = append([]byte(nil), value...)
	}
	return chunkNode(s, next)
}

func insertInternal(s store, node *Node, key, value []byte) ([]*Node, error) {
	idx := node.childIndex(key)
	childDigest, err := node.childDigest(idx)
	if err != nil {
		return nil, errs.Corruptionf("prolly: internal node has malformed child digest at %d: %v", idx, err)
	}
	child, ok, err := s.Get(childDigest)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.Corruptionf("prolly: child digest %s has no blob", childDigest)
	}
	replacement, err := insertInto(s, child, key, value)
	if err != nil {
		return nil, err
	}
	spliced := spliceChildren(node, idx, idx+1, replacement)
	return chunkNode(s, spliced)
}

// spliceChildren replaces the entries in [lo, hi) of an internal node with
// the separator/digest pairs derived from replacement, returning a new
// unchunked node (the caller re-evaluates chunk boundaries).
func spliceChildren(node *Node, lo, hi int, replacement []*Node) *Node {
	next := &Node{
		IsLeaf: false,
		Level:  node.Level,
		Config: node.Config,
	}
	next.Keys = append(next.Keys, node.Keys[:lo]...)
	next.Values = append(next.Values, node.Values[:lo]...)
	for _, child := range replacement {
		next.Keys = append(next.Keys, append([]byte(nil), child.firstKey()...))
		next.Values = append(next.Values, append([]byte(nil), child.Digest().Bytes()...))
	}
	next.Keys = append(next.Keys, node.Keys[hi:]...)
	next.Values = append(next.Values, node.Values[hi:]...)
	return next
}

// deleteFrom descends from node, removing key if present. existed reports
// whether the key was found anywhere in the subtree; the returned nodes
// replace node at its level (possibly merged with what used to be a
// sibling, if this call merged node's underflowing child with a neighbor).
func deleteFrom(s store, node *Node, key []byte) (replacement []*Node, existed bool, err error) {
	if node.IsLeaf {
		return deleteLeaf(s, node, key)
	}
	return deleteInternal(s, node, key)
}

func deleteLeaf(s store, node *Node, key []byte) ([]*Node, bool, error) {
	idx, found := node.search(key)
	if !found {
		return []*Node{node}, false, nil
	}
	next := node.Clone()
	next.Keys = append(next.Keys[:idx], next.Keys[idx+1:]...)
	next.Values = append(next.Values[:idx], next.Values[idx+1:]...)
	out, err := chunkNode(s, next)
	return out, true, err
}

func deleteInternal(s store, node *Node, key []byte) ([]*Node, bool, error) {
	idx := node.childIndex(key)
	childDigest, err := node.childDigest(idx)
	if err != nil {
		return nil, false, errs.Corruptionf("prolly: internal node has malformed child digest at %d: %v", idx, err)
	}
	child, ok, err := s.Get(childDigest)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, errs.Corruptionf("prolly: child digest %s has no blob", childDigest)
	}
	newChildren, existed, err := deleteFrom(s, child, key)
	if err != nil || !existed {
		return []*Node{node}, existed, err
	}

	lo, hi := idx, idx+1
	if underflows(node, newChildren) {
		newChildren, lo, hi, err = rebalance(s, node, idx, newChildren)
		if err != nil {
			return nil, false, err
		}
	}

	spliced := spliceChildren(node, lo, hi, newChildren)
	out, err := chunkNode(s, spliced)
	return out, true, err
}

// underflows reports whether deletion left exactly one replacement child
// below the min chunk size — the case that needs sibling rebalancing.
func underflows(node *Node, children []*Node) bool {
	return len(children) == 1 && children[0].Len() < node.Config.MinChunkSize
}

// rebalance merges an underflowing child at idx with a sibling (preferring
// the right sibling, falling back to the left), re-chunking the combined
// entries with the same deterministic algorithm used everywhere else. This
// subsumes "move a single entry" as the degenerate case where the combined
// range re-splits into two chunks instead of collapsing into one.
func rebalance(s store, node *Node, idx int, children []*Node) (merged []*Node, lo, hi int, err error) {
	underflowed := children[0]
	if idx+1 < len(node.Keys) {
		rightDigest, derr := node.childDigest(idx + 1)
		if derr != nil {
			return nil, 0, 0, errs.Corruptionf("prolly: malformed sibling digest: %v", derr)
		}
		right, ok, gerr := s.Get(rightDigest)
		if gerr != nil {
			return nil, 0, 0, gerr
		}
		if !ok {
			return nil, 0, 0, errs.Corruptionf("prolly: sibling digest %s has no blob", rightDigest)
		}
		combined := concatNodes(underflowed, right)
		merged, err = chunkNode(s, combined)
		return merged, idx, idx + 2, err
	}
	if idx > 0 {
		leftDigest, derr := node.childDigest(idx - 1)
		if derr != nil {
			return nil, 0, 0, errs.Corruptionf("prolly: malformed sibling digest: %v", derr)
		}
		left, ok, gerr := s.Get(leftDigest)
		if gerr != nil {
			return nil, 0, 0, gerr
		}
		if !ok {
			return nil, 0, 0, errs.Corruptionf("prolly: sibling digest %s has no blob", leftDigest)
		}
		combined := concatNodes(left, underflowed)
		merged, err = chunkNode(s, combined)
		return merged, idx - 1, idx + 1, err
	}
	// no sibling at all (node has a single child) — leave the underflow as is;
	// the root-collapse case is handled by Tree.Delete.
	return children, idx, idx + 1, nil
}

func concatNodes(a, b *Node) *Node {
	next := &Node{
		IsLeaf: a.IsLeaf,
		Level:  a.Level,
		Config: a.Config,
	}
	next.Keys = append(append(next.Keys, a.Keys...), b.Keys...)
	next.Values = append(append(next.Values, a.Values...), b.Values...)
	return next
}

// findLeaf descends by separator to the leaf that would contain key,
// returning it regardless of whether key is actually present there.
func findLeaf(s store, node *Node, key []byte) (*Node, error) {
	if node.IsLeaf {
		return node, nil
	}
	idx := node.childIndex(key)
	childDigest, err := node.childDigest(idx)
	if err != nil {
		return nil, errs.Corruptionf("prolly: internal node has malformed child digest at %d: %v", idx, err)
	}
	child, ok, err := s.Get(childDigest)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.Corruptionf("prolly: child digest %s has no blob", childDigest)
	}
	return findLeaf(s, child, key)
}
