package objectdb_test

import (
	"testing"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/require"

	"github.com/prollytree-go/prollytree/digest"
	"github.com/prollytree-go/prollytree/objectdb"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	opts := badger.DefaultOptions(t.TempDir())
	opts.Logger = nil
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestBlobRoundTrip(t *testing.T) {
	s := objectdb.Open(openTestDB(t))
	id, err := s.PutBlob([]byte("hello"))
	require.NoError(t, err)

	got, ok, err := s.GetBlob(id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("hello"), got)
}

func TestDigestObjectIDIndex(t *testing.T) {
	s := objectdb.Open(openTestDB(t))
	d := digest.New([]byte("subject"))
	id := objectdb.HashObject([]byte("blob-bytes"))

	require.NoError(t, s.LinkDigest(d, id))

	gotID, ok, err := s.ObjectIDFor(d)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, id, gotID)

	gotDigest, ok, err := s.DigestFor(id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, d, gotDigest)
}

func TestCommitRoundTrip(t *testing.T) {
	s := objectdb.Open(openTestDB(t))
	c := &objectdb.Commit{
		Root:      objectdb.HashObject([]byte("root")),
		Author:    "tester",
		Committer: "tester",
		Message:   "Initial commit",
		Timestamp: 1700000000,
	}
	id, err := s.PutCommit(c)
	require.NoError(t, err)

	got, ok, err := s.GetCommit(id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, c.Root, got.Root)
	require.Equal(t, c.Message, got.Message)
	require.Empty(t, got.Parents)
}

func TestCommitWithParents(t *testing.T) {
	s := objectdb.Open(openTestDB(t))
	parent := objectdb.HashObject([]byte("parent-commit"))
	c := &objectdb.Commit{
		Root:    objectdb.HashObject([]byte("root2")),
		Parents: []objectdb.ObjectID{parent},
		Message: "second commit",
	}
	id, err := s.PutCommit(c)
	require.NoError(t, err)

	got, ok, err := s.GetCommit(id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []objectdb.ObjectID{parent}, got.Parents)
}

func TestRefsAndHead(t *testing.T) {
	s := objectdb.Open(openTestDB(t))
	commit := objectdb.HashObject([]byte("c1"))

	require.NoError(t, s.SetRef("main", commit))
	got, ok, err := s.GetRef("main")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, commit, got)

	require.NoError(t, s.SetHeadToRef("refs/heads/main"))
	resolved, err := s.ResolveHead()
	require.NoError(t, err)
	require.Equal(t, commit, resolved)

	branch, isBranch, err := s.CurrentBranch()
	require.NoError(t, err)
	require.True(t, isBranch)
	require.Equal(t, "main", branch)

	branches, err := s.ListBranches()
	require.NoError(t, err)
	require.Contains(t, branches, "main")
}

func TestDetachedHead(t *testing.T) {
	s := objectdb.Open(openTestDB(t))
	commit := objectdb.HashObject([]byte("detached"))
	require.NoError(t, s.SetHeadToCommit(commit))

	resolved, err := s.ResolveHead()
	require.NoError(t, err)
	require.Equal(t, commit, resolved)

	_, isBranch, err := s.CurrentBranch()
	require.NoError(t, err)
	require.False(t, isBranch)
}
