// Package diff computes differences between two prolly trees and drives
// three-way merges between them, with pluggable conflict resolution for
// multi-writer scenarios (spec.md C5).
package diff

import (
	"bytes"

	"github.com/prollytree-go/prollytree/digest"
	"github.com/prollytree-go/prollytree/errs"
	"github.com/prollytree-go/prollytree/prolly"
)

// Kind distinguishes the three shapes a per-key difference can take.
type Kind int

const (
	Added Kind = iota
	Removed
	Modified
)

// Result is one key-level difference between a source and destination tree.
type Result struct {
	Kind        Kind
	Key         []byte
	SourceValue []byte // nil for Added
	DestValue   []byte // nil for Removed
}

// entry is one item in the frontier being merged at the current level of a
// subtree comparison. A non-minimal entry is an internal node's (separator,
// child digest) pair, a whole subtree not yet opened. A minimal entry is a
// leaf's literal (key, value) pair, the finest granularity the tree has;
// it cannot be refined any further.
type entry struct {
	key     []byte
	digest  digest.Digest
	value   []byte
	minimal bool
}

func nodeEntries(n *prolly.Node) ([]entry, error) {
	entries := make([]entry, len(n.Keys))
	if n.IsLeaf {
		for i := range n.Keys {
			entries[i] = entry{key: n.Keys[i], value: n.Values[i], minimal: true}
		}
		return entries, nil
	}
	for i := range n.Keys {
		d, err := digest.FromBytes(n.Values[i])
		if err != nil {
			return nil, errs.Corruptionf("diff: malformed child digest at %d: %v", i, err)
		}
		entries[i] = entry{key: n.Keys[i], digest: d}
	}
	return entries, nil
}

// rangeEnd is the key one past entries[i]'s span: the next entry's key, or
// nil (+infinity) for the last entry in the slice. Because every frontier
// slice in this package is built by successively splitting a node's own
// entries into its children's, it is always a complete, gapless partition
// of whatever range its parent covered, so rangeEnd reliably tells us when
// one side's span ends before the other side's current span begins.
func rangeEnd(entries []entry, i int) []byte {
	if i+1 < len(entries) {
		return entries[i+1].key
	}
	return nil
}

// keyLess treats a nil key as +infinity.
func keyLess(a, b []byte) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	return bytes.Compare(a, b) < 0
}

func keyEqual(a, b []byte) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return bytes.Equal(a, b)
}

func keyLessOrEqual(a, b []byte) bool {
	return keyLess(a, b) || keyEqual(a, b)
}

func splice(entries []entry, i int, expansion []entry) []entry {
	out := make([]entry, 0, len(entries)-1+len(expansion))
	out = append(out, entries[:i]...)
	out = append(out, expansion...)
	out = append(out, entries[i+1:]...)
	return out
}

func fetch(s prolly.Store, d digest.Digest) (*prolly.Node, error) {
	n, ok, err := s.Get(d)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.Corruptionf("diff: node digest %s not found", d)
	}
	return n, nil
}

// collectEntry walks e (and, if e is a subtree reference, everything beneath
// it) and reports every key it contains as kind. Used only for the part of
// a frontier that has no counterpart at all on the other side.
func collectEntry(s prolly.Store, e entry, kind Kind) ([]Result, error) {
	if e.minimal {
		r := Result{Kind: kind, Key: e.key}
		if kind == Added {
			r.DestValue = e.value
		} else {
			r.SourceValue = e.value
		}
		return []Result{r}, nil
	}
	n, err := fetch(s, e.digest)
	if err != nil {
		return nil, err
	}
	children, err := nodeEntries(n)
	if err != nil {
		return nil, err
	}
	var out []Result
	for _, child := range children {
		res, err := collectEntry(s, child, kind)
		if err != nil {
			return nil, err
		}
		out = append(out, res...)
	}
	return out, nil
}

// mergeEntries is the heart of Diff: a merge-join over two frontier slices
// that recurses into matching, digest-unequal subtrees and skips matching,
// digest-equal ones outright; subtrees that are bytewise identical on both
// sides are never fetched at all. When the two sides' chunk boundaries
// don't line up, whichever side has the narrower (non-minimal) span is
// opened and replaced by its own children so the comparison can continue at
// a finer granularity; this only touches nodes near an actual structural
// disagreement, not the whole tree.
func mergeEntries(ss, ds prolly.Store, sc, dc []entry) ([]Result, error) {
	var out []Result
	i, j := 0, 0
	for i < len(sc) && j < len(dc) {
		s, d := sc[i], dc[j]

		switch {
		case s.minimal && d.minimal:
			switch {
			case keyEqual(s.key, d.key):
				if !bytes.Equal(s.value, d.value) {
					out = append(out, Result{Kind: Modified, Key: s.key, SourceValue: s.value, DestValue: d.value})
				}
				i++
				j++
			case keyLess(s.key, d.key):
				out = append(out, Result{Kind: Removed, Key: s.key, SourceValue: s.value})
				i++
			default:
				out = append(out, Result{Kind: Added, Key: d.key, DestValue: d.value})
				j++
			}

		case s.minimal: // d is a wider subtree; open it to match s's granularity.
			dNode, err := fetch(ds, d.digest)
			if err != nil {
				return nil, err
			}
			expansion, err := nodeEntries(dNode)
			if err != nil {
				return nil, err
			}
			dc = splice(dc, j, expansion)

		case d.minimal: // symmetric: open s.
			sNode, err := fetch(ss, s.digest)
			if err != nil {
				return nil, err
			}
			expansion, err := nodeEntries(sNode)
			if err != nil {
				return nil, err
			}
			sc = splice(sc, i, expansion)

		default: // both sides are subtree references.
			sEnd, dEnd := rangeEnd(sc, i), rangeEnd(dc, j)
			switch {
			case keyEqual(s.key, d.key) && keyEqual(sEnd, dEnd):
				// Identical key range on both sides: compare digests without
				// opening either node. Equal digests mean identical content —
				// the whole subtree is skipped, never read.
				if !s.digest.Equal(d.digest) {
					sNode, err := fetch(ss, s.digest)
					if err != nil {
						return nil, err
					}
					dNode, err := fetch(ds, d.digest)
					if err != nil {
						return nil, err
					}
					sChildren, err := nodeEntries(sNode)
					if err != nil {
						return nil, err
					}
					dChildren, err := nodeEntries(dNode)
					if err != nil {
						return nil, err
					}
					res, err := mergeEntries(ss, ds, sChildren, dChildren)
					if err != nil {
						return nil, err
					}
					out = append(out, res...)
				}
				i++
				j++
			case keyLessOrEqual(sEnd, d.key):
				// s's whole span ends at or before d's span begins: nothing
				// on the destination side can correspond to it.
				res, err := collectEntry(ss, s, Removed)
				if err != nil {
					return nil, err
				}
				out = append(out, res...)
				i++
			case keyLessOrEqual(dEnd, s.key):
				res, err := collectEntry(ds, d, Added)
				if err != nil {
					return nil, err
				}
				out = append(out, res...)
				j++
			case keyLess(sEnd, dEnd):
				sNode, err := fetch(ss, s.digest)
				if err != nil {
					return nil, err
				}
				expansion, err := nodeEntries(sNode)
				if err != nil {
					return nil, err
				}
				sc = splice(sc, i, expansion)
			default:
				dNode, err := fetch(ds, d.digest)
				if err != nil {
					return nil, err
				}
				expansion, err := nodeEntries(dNode)
				if err != nil {
					return nil, err
				}
				dc = splice(dc, j, expansion)
			}
		}
	}
	for ; i < len(sc); i++ {
		res, err := collectEntry(ss, sc[i], Removed)
		if err != nil {
			return nil, err
		}
		out = append(out, res...)
	}
	for ; j < len(dc); j++ {
		res, err := collectEntry(ds, dc[j], Added)
		if err != nil {
			return nil, err
		}
		out = append(out, res...)
	}
	return out, nil
}

// Diff performs a recursive descent of source and dest, pairing subtrees by
// key range and comparing content digests before ever reading either side:
// two corresponding subtrees with equal digests are skipped outright, and
// only subtrees whose digests disagree are opened and recursed into. Cost
// is proportional to the number of changed pairs times the tree's depth,
// not to the size of either tree, which is the whole point of content
// addressed subtree sharing (grounded on original_source/src/diff.rs's DiffResult
// enum, generalised here from a single in-memory map to a two-tree walk).
func Diff(source, dest *prolly.Tree) ([]Result, error) {
	sRoot, dRoot := source.Root(), dest.Root()
	if sRoot.Digest().Equal(dRoot.Digest()) {
		return nil, nil
	}
	sc, err := nodeEntries(sRoot)
	if err != nil {
		return nil, err
	}
	dc, err := nodeEntries(dRoot)
	if err != nil {
		return nil, err
	}
	return mergeEntries(source.Store(), dest.Store(), sc, dc)
}

// RootsEqual is a convenience short-circuit for callers that only need to
// know whether two trees have any differences at all.
func RootsEqual(a, b digest.Digest) bool {
	return a.Equal(b)
}
