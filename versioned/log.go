package versioned

import (
	"github.com/prollytree-go/prollytree/errs"
	"github.com/prollytree-go/prollytree/objectdb"
)

// CommitInfo is one entry of a Log() walk (spec.md §4.7's fuller `log()`
// contract, grounded on original_source/src/git/types.rs's CommitInfo).
type CommitInfo struct {
	ID        string
	Parents   []string
	Author    string
	Committer string
	Message   string
	Timestamp int64
}

// Log walks parent edges from HEAD, newest first, following every parent of
// a merge commit; each commit is visited exactly once even if reachable
// through more than one path.
func (s *Store) Log() ([]CommitInfo, error) {
	head, err := s.odb.ResolveHead()
	if err != nil {
		return nil, err
	}

	var out []CommitInfo
	visited := map[objectdb.ObjectID]bool{}
	frontier := []objectdb.ObjectID{head}
	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]
		if visited[id] {
			continue
		}
		visited[id] = true

		commit, ok, err := s.odb.GetCommit(id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errs.Corruptionf("versioned: commit %s referenced but missing", id)
		}
		parents := make([]string, len(commit.Parents))
		for i, p := range commit.Parents {
			parents[i] = p.String()
		}
		out = append(out, CommitInfo{
			ID:        id.String(),
			Parents:   parents,
			Author:    commit.Author,
			Committer: commit.Committer,
			Message:   commit.Message,
			Timestamp: commit.Timestamp,
		})
		frontier = append(frontier, commit.Parents...)
	}
	return out, nil
}

// mergeBase finds a common ancestor of a and b by collecting a's full
// ancestor set and then walking b's ancestry breadth-first until the first
// hit, which is adequate for the simple linear/fork-merge histories this
// store produces (no octopus merges).
func mergeBase(odb *objectdb.Store, a, b objectdb.ObjectID) (objectdb.ObjectID, error) {
	ancestorsOfA := map[objectdb.ObjectID]bool{}
	frontier := []objectdb.ObjectID{a}
	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]
		if ancestorsOfA[id] {
			continue
		}
		ancestorsOfA[id] = true
		commit, ok, err := odb.GetCommit(id)
		if err != nil {
			return objectdb.ObjectID{}, err
		}
		if !ok {
			return objectdb.ObjectID{}, errs.Corruptionf("versioned: commit %s referenced but missing", id)
		}
		frontier = append(frontier, commit.Parents...)
	}

	visited := map[objectdb.ObjectID]bool{}
	frontier = []objectdb.ObjectID{b}
	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]
		if visited[id] {
			continue
		}
		visited[id] = true
		if ancestorsOfA[id] {
			return id, nil
		}
		commit, ok, err := odb.GetCommit(id)
		if err != nil {
			return objectdb.ObjectID{}, err
		}
		if !ok {
			return objectdb.ObjectID{}, errs.Corruptionf("versioned: commit %s referenced but missing", id)
		}
		frontier = append(frontier, commit.Parents...)
	}
	return objectdb.ObjectID{}, errs.InvalidInputf("versioned: no common ancestor found")
}
