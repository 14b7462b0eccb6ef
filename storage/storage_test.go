package storage_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prollytree-go/prollytree/prolly"
	"github.com/prollytree-go/prollytree/storage"
)

func TestMemoryPutGetRoundTrip(t *testing.T) {
	s := storage.NewMemory()
	n := prolly.NewLeaf(prolly.DefaultChunkConfig())
	n.Keys = [][]byte{[]byte("a")}
	n.Values = [][]byte{[]byte("1")}

	d, err := storage.PutNode(s, n)
	require.NoError(t, err)

	got, ok, err := s.Get(d)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, n.Keys, got.Keys)
	require.Equal(t, n.Values, got.Values)
}

func TestMemoryGetMissing(t *testing.T) {
	s := storage.NewMemory()
	_, ok, err := s.Get(prolly.NewLeaf(prolly.DefaultChunkConfig()).Digest())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryPutIsIdempotent(t *testing.T) {
	s := storage.NewMemory()
	n := prolly.NewLeaf(prolly.DefaultChunkConfig())
	d1, err := storage.PutNode(s, n)
	require.NoError(t, err)
	d2, err := storage.PutNode(s, n)
	require.NoError(t, err)
	require.Equal(t, d1, d2)
	require.Equal(t, 1, s.Len())
}

func TestMemoryConfigBlob(t *testing.T) {
	s := storage.NewMemory()
	_, ok, err := s.GetConfig("tree_config")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.PutConfig("tree_config", []byte("payload")))
	v, ok, err := s.GetConfig("tree_config")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("payload"), v)
}

func TestMemoryDelete(t *testing.T) {
	s := storage.NewMemory()
	n := prolly.NewLeaf(prolly.DefaultChunkConfig())
	d, err := storage.PutNode(s, n)
	require.NoError(t, err)

	require.NoError(t, s.Delete(d))
	_, ok, err := s.Get(d)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCacheReadThrough(t *testing.T) {
	backing := storage.NewMemory()
	cache, err := storage.NewCache(backing, 1<<20)
	require.NoError(t, err)

	n := prolly.NewLeaf(prolly.DefaultChunkConfig())
	n.Keys = [][]byte{[]byte("k")}
	n.Values = [][]byte{[]byte("v")}
	d, err := storage.PutNode(cache, n)
	require.NoError(t, err)

	got, ok, err := cache.Get(d)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, n.Keys, got.Keys)

	// still retrievable straight from the backing store
	got2, ok, err := backing.Get(d)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, n.Keys, got2.Keys)
}

func TestBadgerPutGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	b, err := storage.OpenBadger(dir)
	require.NoError(t, err)
	defer b.Close()

	n := prolly.NewLeaf(prolly.DefaultChunkConfig())
	n.Keys = [][]byte{[]byte("a")}
	n.Values = [][]byte{[]byte("1")}
	d, err := storage.PutNode(b, n)
	require.NoError(t, err)

	got, ok, err := b.Get(d)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, n.Keys, got.Keys)

	require.NoError(t, b.PutConfig("tree_config", []byte("cfg")))
	v, ok, err := b.GetConfig("tree_config")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("cfg"), v)
}
