package diff_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prollytree-go/prollytree/diff"
	"github.com/prollytree-go/prollytree/prolly"
	"github.com/prollytree-go/prollytree/storage"
)

func mustTree(t *testing.T) (*prolly.Tree, *storage.Memory) {
	t.Helper()
	s := storage.NewMemory()
	tr, err := prolly.New(s, prolly.DefaultChunkConfig())
	require.NoError(t, err)
	return tr, s
}

func TestDiffAddedRemovedModified(t *testing.T) {
	a, s := mustTree(t)
	require.NoError(t, a.Insert([]byte("k1"), []byte("v1")))
	require.NoError(t, a.Insert([]byte("k2"), []byte("v2")))

	b, err := prolly.Open(s, a.RootDigest())
	require.NoError(t, err)
	require.NoError(t, b.Insert([]byte("k2"), []byte("v2-new")))
	_, err = b.Delete([]byte("k1"))
	require.NoError(t, err)
	require.NoError(t, b.Insert([]byte("k3"), []byte("v3")))

	results, err := diff.Diff(a, b)
	require.NoError(t, err)

	byKey := map[string]diff.Result{}
	for _, r := range results {
		byKey[string(r.Key)] = r
	}
	require.Equal(t, diff.Removed, byKey["k1"].Kind)
	require.Equal(t, diff.Modified, byKey["k2"].Kind)
	require.Equal(t, diff.Added, byKey["k3"].Kind)
}

func TestDiffIdenticalRootsShortCircuits(t *testing.T) {
	a, _ := mustTree(t)
	require.NoError(t, a.Insert([]byte("k"), []byte("v")))

	results, err := diff.Diff(a, a)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestThreeWayMergeNoConflict(t *testing.T) {
	base, s := mustTree(t)
	require.NoError(t, base.Insert([]byte("base"), []byte("1")))

	main, err := prolly.Open(s, base.RootDigest())
	require.NoError(t, err)
	require.NoError(t, main.Insert([]byte("x"), []byte("1")))

	feature, err := prolly.Open(s, base.RootDigest())
	require.NoError(t, err)
	require.NoError(t, feature.Insert([]byte("y"), []byte("2")))

	outcome, err := diff.ThreeWayMerge(s, base, feature, main, diff.TakeSourceResolver{})
	require.NoError(t, err)
	require.Equal(t, diff.ThreeWay, outcome.Kind)

	merged, err := prolly.Open(s, outcome.Root)
	require.NoError(t, err)
	v, ok, err := merged.Get([]byte("x"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("1"), v)
	v, ok, err = merged.Get([]byte("y"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("2"), v)
}

func TestThreeWayMergeConflictWithIgnore(t *testing.T) {
	base, s := mustTree(t)
	require.NoError(t, base.Insert([]byte("k"), []byte("v")))

	main, err := prolly.Open(s, base.RootDigest())
	require.NoError(t, err)
	require.NoError(t, main.Insert([]byte("k"), []byte("v1")))

	other, err := prolly.Open(s, base.RootDigest())
	require.NoError(t, err)
	require.NoError(t, other.Insert([]byte("k"), []byte("v2")))

	outcome, err := diff.ThreeWayMerge(s, base, other, main, diff.IgnoreResolver{})
	require.NoError(t, err)
	require.Equal(t, diff.Conflicted, outcome.Kind)
	require.Len(t, outcome.Conflicts, 1)
	require.Equal(t, []byte("v"), outcome.Conflicts[0].BaseValue)
	require.Equal(t, []byte("v2"), outcome.Conflicts[0].SourceValue)
	require.Equal(t, []byte("v1"), outcome.Conflicts[0].DestinationValue)

	v, ok, err := main.Get([]byte("k"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v1"), v)
}

func TestThreeWayMergeSemanticMerge(t *testing.T) {
	base, s := mustTree(t)
	require.NoError(t, base.Insert([]byte("cfg"), []byte(`{"v":1}`)))

	source, err := prolly.Open(s, base.RootDigest())
	require.NoError(t, err)
	require.NoError(t, source.Insert([]byte("cfg"), []byte(`{"v":1,"feature":true}`)))

	dest, err := prolly.Open(s, base.RootDigest())
	require.NoError(t, err)
	require.NoError(t, dest.Insert([]byte("cfg"), []byte(`{"v":1,"debug":true}`)))

	outcome, err := diff.ThreeWayMerge(s, base, source, dest, diff.SemanticMergeResolver{})
	require.NoError(t, err)
	require.Equal(t, diff.ThreeWay, outcome.Kind)

	merged, err := prolly.Open(s, outcome.Root)
	require.NoError(t, err)
	v, ok, err := merged.Get([]byte("cfg"))
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `{"v":1,"feature":true,"debug":true}`, string(v))
}

func TestThreeWayMergeFastForward(t *testing.T) {
	base, s := mustTree(t)
	require.NoError(t, base.Insert([]byte("a"), []byte("1")))

	source, err := prolly.Open(s, base.RootDigest())
	require.NoError(t, err)
	require.NoError(t, source.Insert([]byte("b"), []byte("2")))

	dest, err := prolly.Open(s, base.RootDigest())
	require.NoError(t, err)

	outcome, err := diff.ThreeWayMerge(s, base, source, dest, diff.TakeSourceResolver{})
	require.NoError(t, err)
	require.Equal(t, diff.FastForward, outcome.Kind)
	require.Equal(t, source.RootDigest(), outcome.Root)
}
