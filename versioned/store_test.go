package versioned_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prollytree-go/prollytree/diff"
	"github.com/prollytree-go/prollytree/versioned"
)

func newStore(t *testing.T) *versioned.Store {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "repo")
	s, err := versioned.Init(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestInsertGetCommit(t *testing.T) {
	s := newStore(t)

	s.Insert([]byte("k1"), []byte("v1"))
	v, ok, err := s.Get([]byte("k1"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v1"), v)

	commitID, err := s.Commit("add k1")
	require.NoError(t, err)
	require.NotEmpty(t, commitID)

	v, ok, err = s.Get([]byte("k1"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v1"), v)
}

func TestUpdateRequiresExistingKey(t *testing.T) {
	s := newStore(t)

	ok, err := s.Update([]byte("missing"), []byte("x"))
	require.NoError(t, err)
	require.False(t, ok)

	s.Insert([]byte("present"), []byte("1"))
	_, err = s.Commit("init")
	require.NoError(t, err)

	ok, err = s.Update([]byte("present"), []byte("2"))
	require.NoError(t, err)
	require.True(t, ok)
	v, _, err := s.Get([]byte("present"))
	require.NoError(t, err)
	require.Equal(t, []byte("2"), v)
}

func TestDeleteRequiresExistingKey(t *testing.T) {
	s := newStore(t)
	s.Insert([]byte("k"), []byte("v"))
	_, err := s.Commit("add k")
	require.NoError(t, err)

	ok, err := s.Delete([]byte("missing"))
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = s.Delete([]byte("k"))
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = s.Get([]byte("k"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestListKeysAndStatus(t *testing.T) {
	s := newStore(t)
	s.Insert([]byte("a"), []byte("1"))
	s.Insert([]byte("b"), []byte("2"))
	_, err := s.Commit("seed")
	require.NoError(t, err)

	s.Insert([]byte("c"), []byte("3"))
	ok, err := s.Update([]byte("a"), []byte("1-new"))
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = s.Delete([]byte("b"))
	require.NoError(t, err)
	require.True(t, ok)

	keys, err := s.ListKeys()
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("a"), []byte("c")}, keys)

	status, err := s.Status()
	require.NoError(t, err)
	byKey := map[string]versioned.StatusKind{}
	for _, e := range status {
		byKey[string(e.Key)] = e.Status
	}
	require.Equal(t, versioned.StatusModified, byKey["a"])
	require.Equal(t, versioned.StatusAdded, byKey["c"])
	require.Equal(t, versioned.StatusDeleted, byKey["b"])
}

func TestBranchAndMergeNoConflict(t *testing.T) {
	s := newStore(t)

	require.NoError(t, s.Branch("feature"))

	s.Insert([]byte("x"), []byte("1"))
	_, err := s.Commit("add x on main")
	require.NoError(t, err)

	require.NoError(t, s.Checkout("feature"))
	s.Insert([]byte("y"), []byte("2"))
	_, err = s.Commit("add y on feature")
	require.NoError(t, err)

	require.NoError(t, s.Checkout("main"))
	outcome, err := s.Merge("feature", diff.TakeSourceResolver{})
	require.NoError(t, err)
	require.Equal(t, diff.ThreeWay, outcome.Kind)

	v, ok, err := s.Get([]byte("x"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("1"), v)
	v, ok, err = s.Get([]byte("y"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("2"), v)
}

func TestMergeConflictDetection(t *testing.T) {
	s := newStore(t)
	s.Insert([]byte("k"), []byte("v"))
	_, err := s.Commit("seed")
	require.NoError(t, err)

	require.NoError(t, s.Branch("other"))

	s.Insert([]byte("k"), []byte("v1"))
	_, err = s.Commit("main changes k")
	require.NoError(t, err)

	require.NoError(t, s.Checkout("other"))
	s.Insert([]byte("k"), []byte("v2"))
	_, err = s.Commit("other changes k")
	require.NoError(t, err)

	require.NoError(t, s.Checkout("main"))
	outcome, err := s.Merge("other", diff.IgnoreResolver{})
	require.NoError(t, err)
	require.Equal(t, diff.Conflicted, outcome.Kind)
	require.Len(t, outcome.Conflicts, 1)

	v, ok, err := s.Get([]byte("k"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v1"), v)
}

func TestLogWalksParents(t *testing.T) {
	s := newStore(t)
	s.Insert([]byte("a"), []byte("1"))
	_, err := s.Commit("first")
	require.NoError(t, err)
	s.Insert([]byte("b"), []byte("2"))
	_, err = s.Commit("second")
	require.NoError(t, err)

	entries, err := s.Log()
	require.NoError(t, err)
	require.Len(t, entries, 3) // init + first + second
	require.Equal(t, "second", entries[0].Message)
}

func TestRevertUndoesCommit(t *testing.T) {
	s := newStore(t)
	s.Insert([]byte("a"), []byte("1"))
	_, err := s.Commit("add a")
	require.NoError(t, err)

	s.Insert([]byte("a"), []byte("2"))
	commitID, err := s.Commit("change a")
	require.NoError(t, err)

	_, err = s.Revert(commitID)
	require.NoError(t, err)

	v, ok, err := s.Get([]byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("1"), v)
}

func TestOpenReopensStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "repo")
	s, err := versioned.Init(dir)
	require.NoError(t, err)
	s.Insert([]byte("k"), []byte("v"))
	_, err = s.Commit("seed")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := versioned.Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	v, ok, err := reopened.Get([]byte("k"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), v)
}
