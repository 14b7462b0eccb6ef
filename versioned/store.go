// Package versioned implements the staged, git-backed key-value store built
// on top of a prolly tree (spec.md C7): inserts/updates/deletes land in an
// in-memory staging overlay until committed, at which point they become a
// new tree root referenced by a new commit object.
package versioned

import (
	"time"

	"github.com/prollytree-go/prollytree/diff"
	"github.com/prollytree-go/prollytree/errs"
	"github.com/prollytree-go/prollytree/objectdb"
	"github.com/prollytree-go/prollytree/prolly"
	"github.com/prollytree-go/prollytree/storage"
)

const mainBranch = "main"

// stagedValue is one pending write: Deleted distinguishes a staged removal
// from a staged upsert, since a nil Value alone cannot (an empty value is
// valid).
type stagedValue struct {
	Deleted bool
	Value   []byte
}

// Store is the versioned key-value store: a tree plus an object-db adapter
// plus an uncommitted staging overlay (spec.md §4.7's state tuple).
type Store struct {
	db            *storage.Badger
	odb           *objectdb.Store
	tree          *prolly.Tree
	staging       map[string]stagedValue
	currentBranch string

	author string
}

// Init creates a fresh object-db and tree at dir, commits an empty initial
// commit "Initial commit" on branch main, and checks it out.
func Init(dir string) (*Store, error) {
	db, err := storage.OpenBadger(dir)
	if err != nil {
		return nil, err
	}
	odb := objectdb.Open(db.DB())

	tree, err := prolly.New(db, prolly.DefaultChunkConfig())
	if err != nil {
		return nil, err
	}

	s := &Store{db: db, odb: odb, tree: tree, staging: map[string]stagedValue{}, author: "prollytree", currentBranch: mainBranch}

	rootID, err := s.linkRoot()
	if err != nil {
		return nil, err
	}
	commit := &objectdb.Commit{
		Root:      rootID,
		Author:    s.author,
		Committer: s.author,
		Message:   "Initial commit",
		Timestamp: time.Now().Unix(),
	}
	commitID, err := odb.PutCommit(commit)
	if err != nil {
		return nil, err
	}
	if err := odb.SetRef(mainBranch, commitID); err != nil {
		return nil, err
	}
	if err := odb.SetHeadToRef("refs/heads/" + mainBranch); err != nil {
		return nil, err
	}
	return s, nil
}

// Open reopens an existing store at dir, resolving HEAD to the current
// branch's commit and reloading its tree.
func Open(dir string) (*Store, error) {
	db, err := storage.OpenBadger(dir)
	if err != nil {
		return nil, err
	}
	odb := objectdb.Open(db.DB())

	s := &Store{db: db, odb: odb, staging: map[string]stagedValue{}, author: "prollytree"}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close releases the underlying badger database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SetAuthor overrides the author/committer recorded by future commits.
func (s *Store) SetAuthor(author string) {
	s.author = author
}

func (s *Store) linkRoot() (objectdb.ObjectID, error) {
	root := s.tree.Root()
	rootDigest := root.Digest()
	if id, ok, err := s.odb.ObjectIDFor(rootDigest); err != nil {
		return objectdb.ObjectID{}, err
	} else if ok {
		return id, nil
	}
	id, err := s.odb.PutBlob(root.Bytes())
	if err != nil {
		return objectdb.ObjectID{}, err
	}
	if err := s.odb.LinkDigest(rootDigest, id); err != nil {
		return objectdb.ObjectID{}, err
	}
	return id, nil
}

// reload points the in-memory tree at HEAD's commit and clears staging.
func (s *Store) reload() error {
	commitID, err := s.odb.ResolveHead()
	if err != nil {
		return err
	}
	commit, ok, err := s.odb.GetCommit(commitID)
	if err != nil {
		return err
	}
	if !ok {
		return errs.Corruptionf("versioned: HEAD commit %s missing", commitID)
	}
	rootDigest, ok, err := s.odb.DigestFor(commit.Root)
	if err != nil {
		return err
	}
	if !ok {
		return errs.Corruptionf("versioned: commit %s root has no digest link", commitID)
	}
	tree, err := prolly.Open(s.db, rootDigest)
	if err != nil {
		return err
	}
	s.tree = tree
	branch, isBranch, err := s.odb.CurrentBranch()
	if err != nil {
		return err
	}
	if isBranch {
		s.currentBranch = branch
	} else {
		s.currentBranch = ""
	}
	s.staging = map[string]stagedValue{}
	return nil
}

// Insert stages an upsert; effective on the next Get/Commit.
func (s *Store) Insert(key, value []byte) {
	s.staging[string(key)] = stagedValue{Value: append([]byte(nil), value...)}
}

// Update stages an upsert only if the key currently exists (staged or
// committed), reporting whether it did.
func (s *Store) Update(key, value []byte) (bool, error) {
	_, ok, err := s.Get(key)
	if err != nil || !ok {
		return false, err
	}
	s.Insert(key, value)
	return true, nil
}

// Delete stages a removal only if the key currently exists, reporting
// whether it did.
func (s *Store) Delete(key []byte) (bool, error) {
	_, ok, err := s.Get(key)
	if err != nil || !ok {
		return false, err
	}
	s.staging[string(key)] = stagedValue{Deleted: true}
	return true, nil
}

// Get reads staging first, falling back to the committed tree.
func (s *Store) Get(key []byte) ([]byte, bool, error) {
	if staged, ok := s.staging[string(key)]; ok {
		if staged.Deleted {
			return nil, false, nil
		}
		return staged.Value, true, nil
	}
	return s.tree.Get(key)
}

// ListKeys returns the union of staged-present keys and tree keys, minus
// staged-deleted keys, in sorted order.
func (s *Store) ListKeys() ([][]byte, error) {
	var out [][]byte
	seen := map[string]bool{}
	err := s.tree.Iterate(func(key, _ []byte) bool {
		k := string(key)
		if staged, ok := s.staging[k]; ok {
			if staged.Deleted {
				seen[k] = true
				return true
			}
		}
		out = append(out, append([]byte(nil), key...))
		seen[k] = true
		return true
	})
	if err != nil {
		return nil, err
	}
	for k, staged := range s.staging {
		if seen[k] || staged.Deleted {
			continue
		}
		out = append(out, []byte(k))
	}
	sortKeys(out)
	return out, nil
}

func sortKeys(keys [][]byte) {
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && string(keys[j-1]) > string(keys[j]); j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
}

// StatusKind classifies a staged key relative to the committed tree.
type StatusKind int

const (
	StatusAdded StatusKind = iota
	StatusModified
	StatusDeleted
)

// StatusEntry is one staged key's classification.
type StatusEntry struct {
	Key    []byte
	Status StatusKind
}

// Status reports, for every staged key, whether it is a new key (Added), an
// existing key changed (Modified), or removed (Deleted).
func (s *Store) Status() ([]StatusEntry, error) {
	var out []StatusEntry
	for k, staged := range s.staging {
		_, existedInTree, err := s.tree.Get([]byte(k))
		if err != nil {
			return nil, err
		}
		switch {
		case staged.Deleted:
			out = append(out, StatusEntry{Key: []byte(k), Status: StatusDeleted})
		case existedInTree:
			out = append(out, StatusEntry{Key: []byte(k), Status: StatusModified})
		default:
			out = append(out, StatusEntry{Key: []byte(k), Status: StatusAdded})
		}
	}
	return out, nil
}

// Commit applies every staged write to the tree, writes a new commit object
// with the current HEAD as its sole parent, advances the current branch,
// and clears staging. Returns the new commit's id in hex.
func (s *Store) Commit(message string) (string, error) {
	if s.currentBranch == "" {
		return "", errs.InvalidInputf("versioned: cannot commit with a detached HEAD")
	}
	parent, err := s.odb.ResolveHead()
	if err != nil {
		return "", err
	}
	return s.commitWithParents(message, []objectdb.ObjectID{parent})
}

func (s *Store) commitWithParents(message string, parents []objectdb.ObjectID) (string, error) {
	for k, staged := range s.staging {
		if staged.Deleted {
			if _, err := s.tree.Delete([]byte(k)); err != nil {
				return "", err
			}
			continue
		}
		if err := s.tree.Insert([]byte(k), staged.Value); err != nil {
			return "", err
		}
	}

	rootID, err := s.linkRoot()
	if err != nil {
		return "", err
	}
	commit := &objectdb.Commit{
		Root:      rootID,
		Parents:   parents,
		Author:    s.author,
		Committer: s.author,
		Message:   message,
		Timestamp: time.Now().Unix(),
	}
	commitID, err := s.odb.PutCommit(commit)
	if err != nil {
		return "", err
	}
	if err := s.odb.SetRef(s.currentBranch, commitID); err != nil {
		return "", err
	}
	s.staging = map[string]stagedValue{}
	return commitID.String(), nil
}

// Branch creates refs/heads/<name> pointing at the current HEAD commit.
func (s *Store) Branch(name string) error {
	if name == "" {
		return errs.InvalidInputf("versioned: branch name must not be empty")
	}
	if _, ok, err := s.odb.GetRef(name); err != nil {
		return err
	} else if ok {
		return errs.InvalidInputf("versioned: branch %q already exists", name)
	}
	head, err := s.odb.ResolveHead()
	if err != nil {
		return err
	}
	return s.odb.SetRef(name, head)
}

// Checkout points HEAD at a branch name or, failing that, a literal commit
// id, reloads the tree, and clears staging.
func (s *Store) Checkout(nameOrCommit string) error {
	if _, ok, err := s.odb.GetRef(nameOrCommit); err != nil {
		return err
	} else if ok {
		if err := s.odb.SetHeadToRef("refs/heads/" + nameOrCommit); err != nil {
			return err
		}
		return s.reload()
	}
	id, err := objectdb.ParseObjectID(nameOrCommit)
	if err != nil {
		return errs.InvalidInputf("versioned: unknown ref or commit %q", nameOrCommit)
	}
	if _, ok, err := s.odb.GetCommit(id); err != nil {
		return err
	} else if !ok {
		return errs.InvalidInputf("versioned: unknown ref or commit %q", nameOrCommit)
	}
	if err := s.odb.SetHeadToCommit(id); err != nil {
		return err
	}
	return s.reload()
}

// Diff streams the key-level differences between two refs or commit ids.
func (s *Store) Diff(a, b string) ([]diff.Result, error) {
	treeA, err := s.treeAt(a)
	if err != nil {
		return nil, err
	}
	treeB, err := s.treeAt(b)
	if err != nil {
		return nil, err
	}
	return diff.Diff(treeA, treeB)
}

func (s *Store) treeAt(nameOrCommit string) (*prolly.Tree, error) {
	var commitID objectdb.ObjectID
	if id, ok, err := s.odb.GetRef(nameOrCommit); err != nil {
		return nil, err
	} else if ok {
		commitID = id
	} else {
		id, err := objectdb.ParseObjectID(nameOrCommit)
		if err != nil {
			return nil, errs.InvalidInputf("versioned: unknown ref or commit %q", nameOrCommit)
		}
		commitID = id
	}
	commit, ok, err := s.odb.GetCommit(commitID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.InvalidInputf("versioned: unknown ref or commit %q", nameOrCommit)
	}
	rootDigest, ok, err := s.odb.DigestFor(commit.Root)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.Corruptionf("versioned: commit %s root has no digest link", commitID)
	}
	return prolly.Open(s.db, rootDigest)
}

// Merge merges branch into the current branch using resolver, committing a
// two-parent merge commit on success (spec.md §4.5/§4.7).
func (s *Store) Merge(branch string, resolver diff.ConflictResolver) (diff.MergeOutcome, error) {
	if branch == s.currentBranch {
		return diff.MergeOutcome{}, errs.InvalidInputf("versioned: cannot merge branch %q into itself", branch)
	}
	headCommitID, err := s.odb.ResolveHead()
	if err != nil {
		return diff.MergeOutcome{}, err
	}
	branchCommitID, ok, err := s.odb.GetRef(branch)
	if err != nil {
		return diff.MergeOutcome{}, err
	}
	if !ok {
		return diff.MergeOutcome{}, errs.InvalidInputf("versioned: unknown branch %q", branch)
	}

	baseCommitID, err := mergeBase(s.odb, headCommitID, branchCommitID)
	if err != nil {
		return diff.MergeOutcome{}, err
	}

	baseTree, err := s.treeAt(baseCommitID.String())
	if err != nil {
		return diff.MergeOutcome{}, err
	}
	sourceTree, err := s.treeAt(branch)
	if err != nil {
		return diff.MergeOutcome{}, err
	}
	destTree := s.tree

	outcome, err := diff.ThreeWayMerge(s.db, baseTree, sourceTree, destTree, resolver)
	if err != nil {
		return diff.MergeOutcome{}, err
	}
	if outcome.Kind == diff.Conflicted {
		return outcome, nil
	}

	merged, err := prolly.Open(s.db, outcome.Root)
	if err != nil {
		return diff.MergeOutcome{}, err
	}
	s.tree = merged

	rootID, err := s.linkRoot()
	if err != nil {
		return diff.MergeOutcome{}, err
	}
	commit := &objectdb.Commit{
		Root:      rootID,
		Parents:   []objectdb.ObjectID{headCommitID, branchCommitID},
		Author:    s.author,
		Committer: s.author,
		Message:   "Merge branch '" + branch + "'",
		Timestamp: time.Now().Unix(),
	}
	commitID, err := s.odb.PutCommit(commit)
	if err != nil {
		return diff.MergeOutcome{}, err
	}
	if err := s.odb.SetRef(s.currentBranch, commitID); err != nil {
		return diff.MergeOutcome{}, err
	}
	s.staging = map[string]stagedValue{}
	return outcome, nil
}

// Revert computes the inverse of commitID's diff against its parent, stages
// it, and commits as `Revert "<message>"`.
func (s *Store) Revert(commitID string) (string, error) {
	id, err := objectdb.ParseObjectID(commitID)
	if err != nil {
		return "", errs.InvalidInputf("versioned: malformed commit id %q", commitID)
	}
	commit, ok, err := s.odb.GetCommit(id)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errs.InvalidInputf("versioned: unknown commit %q", commitID)
	}
	if len(commit.Parents) == 0 {
		return "", errs.InvalidInputf("versioned: cannot revert the initial commit")
	}

	childTree, err := s.treeAt(commitID)
	if err != nil {
		return "", err
	}
	parentTree, err := s.treeAt(commit.Parents[0].String())
	if err != nil {
		return "", err
	}

	results, err := diff.Diff(parentTree, childTree)
	if err != nil {
		return "", err
	}
	for _, r := range results {
		switch r.Kind {
		case diff.Added:
			s.staging[string(r.Key)] = stagedValue{Deleted: true}
		case diff.Removed:
			s.staging[string(r.Key)] = stagedValue{Value: r.SourceValue}
		case diff.Modified:
			s.staging[string(r.Key)] = stagedValue{Value: r.SourceValue}
		}
	}

	return s.Commit("Revert \"" + commit.Message + "\"")
}
