package diff

import (
	"bytes"

	"github.com/prollytree-go/prollytree/digest"
	"github.com/prollytree-go/prollytree/errs"
	"github.com/prollytree-go/prollytree/prolly"
)

// MergeOutcomeKind classifies how a three-way merge concluded.
type MergeOutcomeKind int

const (
	// FastForward: destination is an ancestor of source, result is source's root.
	FastForward MergeOutcomeKind = iota
	// ThreeWay: base/source/destination diverged and were merged cleanly.
	ThreeWay
	// Conflicted: one or more keys could not be resolved; no side effects.
	Conflicted
)

// MergeOutcome is the result of ThreeWayMerge.
type MergeOutcome struct {
	Kind      MergeOutcomeKind
	Root      digest.Digest // valid for FastForward and ThreeWay
	Conflicts []MergeConflict
}

// ThreeWayMerge merges source into destination against their common base,
// using resolver to settle any keys both sides changed incompatibly
// (spec.md §4.5). On success it materialises the merged content into a
// fresh tree rooted in store and returns its digest; on conflict it returns
// every unresolved conflict and leaves store untouched beyond whatever
// scratch nodes were already shared with existing trees.
func ThreeWayMerge(store prolly.Store, base, source, destination *prolly.Tree, resolver ConflictResolver) (MergeOutcome, error) {
	if base.RootDigest().Equal(destination.RootDigest()) {
		return MergeOutcome{Kind: FastForward, Root: source.RootDigest()}, nil
	}
	if source.RootDigest().Equal(destination.RootDigest()) {
		return MergeOutcome{Kind: ThreeWay, Root: destination.RootDigest()}, nil
	}

	baseDiff, err := Diff(base, source)
	if err != nil {
		return MergeOutcome{}, err
	}
	destDiff, err := Diff(base, destination)
	if err != nil {
		return MergeOutcome{}, err
	}

	sourceChanges := indexByKey(baseDiff)
	destChanges := indexByKey(destDiff)

	baseValues, err := collectMap(base)
	if err != nil {
		return MergeOutcome{}, err
	}

	var ops []MergeResult
	var conflicts []MergeConflict
	seen := map[string]bool{}

	apply := func(key string) error {
		if seen[key] {
			return nil
		}
		seen[key] = true
		sChange, sOK := sourceChanges[key]
		dChange, dOK := destChanges[key]

		switch {
		case sOK && !dOK:
			ops = append(ops, resultFromDiff(sChange))
		case !sOK && dOK:
			// destination alone changed this key: already reflects in destination, nothing to do.
		case sOK && dOK:
			if resultsAgree(sChange, dChange) {
				ops = append(ops, resultFromDiff(sChange))
				return nil
			}
			conflict := MergeConflict{
				Key:              []byte(key),
				BaseValue:        baseValues[key],
				SourceValue:      sChange.DestValue,
				DestinationValue: dChange.DestValue,
			}
			result, ok := resolver.Resolve(conflict)
			if !ok {
				conflicts = append(conflicts, conflict)
				return nil
			}
			ops = append(ops, result)
		}
		return nil
	}

	for k := range sourceChanges {
		if err := apply(k); err != nil {
			return MergeOutcome{}, err
		}
	}
	for k := range destChanges {
		if err := apply(k); err != nil {
			return MergeOutcome{}, err
		}
	}

	if len(conflicts) > 0 {
		return MergeOutcome{Kind: Conflicted, Conflicts: conflicts}, nil
	}

	merged, err := prolly.Open(store, destination.RootDigest())
	if err != nil {
		return MergeOutcome{}, err
	}
	for _, op := range ops {
		switch op.Kind {
		case MergeRemoved:
			if _, err := merged.Delete(op.Key); err != nil {
				return MergeOutcome{}, err
			}
		case MergeAdded, MergeModified:
			if err := merged.Insert(op.Key, op.Value); err != nil {
				return MergeOutcome{}, err
			}
		default:
			return MergeOutcome{}, errs.InvalidInputf("diff: unexpected merge op kind %v for key %q", op.Kind, op.Key)
		}
	}

	return MergeOutcome{Kind: ThreeWay, Root: merged.RootDigest()}, nil
}

func indexByKey(results []Result) map[string]Result {
	out := make(map[string]Result, len(results))
	for _, r := range results {
		out[string(r.Key)] = r
	}
	return out
}

func collectMap(t *prolly.Tree) (map[string][]byte, error) {
	out := map[string][]byte{}
	err := t.Iterate(func(key, value []byte) bool {
		out[string(key)] = append([]byte(nil), value...)
		return true
	})
	return out, err
}

func resultFromDiff(r Result) MergeResult {
	switch r.Kind {
	case Removed:
		return MergeResult{Kind: MergeRemoved, Key: r.Key}
	case Added:
		return MergeResult{Kind: MergeAdded, Key: r.Key, Value: r.DestValue}
	default:
		return MergeResult{Kind: MergeModified, Key: r.Key, Value: r.DestValue}
	}
}

// resultsAgree reports whether source and destination changed a key to the
// same final state, in which case no conflict arises even though both
// sides touched it.
func resultsAgree(a, b Result) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == Removed {
		return true
	}
	return bytes.Equal(a.DestValue, b.DestValue)
}
