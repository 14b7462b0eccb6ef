package prolly

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prollytree-go/prollytree/digest"
)

type memStore struct {
	nodes  map[string][]byte
	config map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{nodes: map[string][]byte{}, config: map[string][]byte{}}
}

func (m *memStore) Get(d digest.Digest) (*Node, bool, error) {
	raw, ok := m.nodes[d.String()]
	if !ok {
		return nil, false, nil
	}
	n, err := DecodeNode(raw)
	if err != nil {
		return nil, false, err
	}
	return n, true, nil
}

func (m *memStore) Put(d digest.Digest, n *Node) error {
	m.nodes[d.String()] = n.Bytes()
	return nil
}

func (m *memStore) Delete(d digest.Digest) error {
	delete(m.nodes, d.String())
	return nil
}

func (m *memStore) GetConfig(key string) ([]byte, bool, error) {
	v, ok := m.config[key]
	return v, ok, nil
}

func (m *memStore) PutConfig(key string, value []byte) error {
	m.config[key] = value
	return nil
}

func seqKV(n int) ([][]byte, [][]byte) {
	keys := make([][]byte, n)
	values := make([][]byte, n)
	for i := 0; i < n; i++ {
		keys[i] = []byte(fmt.Sprintf("key-%05d", i))
		values[i] = []byte(fmt.Sprintf("value-%05d", i))
	}
	return keys, values
}

func buildTree(t *testing.T, keys, values [][]byte) *Tree {
	t.Helper()
	tr, err := New(newMemStore(), DefaultChunkConfig())
	require.NoError(t, err)
	for i := range keys {
		require.NoError(t, tr.Insert(keys[i], values[i]))
	}
	return tr
}

func TestHistoryIndependence(t *testing.T) {
	keys, values := seqKV(200)

	order1 := rand.New(rand.NewSource(1)).Perm(len(keys))
	order2 := rand.New(rand.NewSource(2)).Perm(len(keys))

	t1, err := New(newMemStore(), DefaultChunkConfig())
	require.NoError(t, err)
	for _, i := range order1 {
		require.NoError(t, t1.Insert(keys[i], values[i]))
	}

	t2, err := New(newMemStore(), DefaultChunkConfig())
	require.NoError(t, err)
	for _, i := range order2 {
		require.NoError(t, t2.Insert(keys[i], values[i]))
	}

	require.Equal(t, t1.RootDigest(), t2.RootDigest())
}

func TestReadAfterWrite(t *testing.T) {
	keys, values := seqKV(300)
	tr := buildTree(t, keys, values)

	for i := range keys {
		v, ok, err := tr.Get(keys[i])
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, values[i], v)
	}

	_, ok, err := tr.Get([]byte("missing-key"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestInsertIsIdempotent(t *testing.T) {
	keys, values := seqKV(50)
	t1 := buildTree(t, keys, values)

	t2 := buildTree(t, keys, values)
	require.NoError(t, t2.Insert(keys[10], values[10]))

	require.Equal(t, t1.RootDigest(), t2.RootDigest())
}

func TestUpdateOverwritesValue(t *testing.T) {
	keys, values := seqKV(20)
	tr := buildTree(t, keys, values)

	require.NoError(t, tr.Insert(keys[5], []byte("new-value")))
	v, ok, err := tr.Get(keys[5])
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("new-value"), v)
}

func TestDeleteRemovesKey(t *testing.T) {
	keys, values := seqKV(200)
	tr := buildTree(t, keys, values)

	existed, err := tr.Delete(keys[100])
	require.NoError(t, err)
	require.True(t, existed)

	_, ok, err := tr.Get(keys[100])
	require.NoError(t, err)
	require.False(t, ok)

	existed, err = tr.Delete(keys[100])
	require.NoError(t, err)
	require.False(t, existed)
}

func TestDeleteAllLeavesEmptyTree(t *testing.T) {
	keys, values := seqKV(64)
	tr := buildTree(t, keys, values)

	for _, k := range keys {
		_, err := tr.Delete(k)
		require.NoError(t, err)
	}

	require.True(t, tr.Root().IsLeaf)
	require.Equal(t, 0, tr.Root().Len())
}

func TestStructuralSoundness(t *testing.T) {
	keys, values := seqKV(500)
	tr := buildTree(t, keys, values)

	stats, err := tr.Stats()
	require.NoError(t, err)
	require.Equal(t, stats.NumLeaves+stats.NumInternalNodes, stats.NumNodes)
	require.Greater(t, stats.NumLeaves, 0)
	require.GreaterOrEqual(t, stats.MaxNodeSize, stats.MinNodeSize)

	var collected [][]byte
	require.NoError(t, tr.Iterate(func(key, value []byte) bool {
		collected = append(collected, key)
		return true
	}))
	require.Equal(t, len(keys), len(collected))
	for i := 1; i < len(collected); i++ {
		require.Less(t, string(collected[i-1]), string(collected[i]))
	}
}

func TestFindReturnsNilOnMiss(t *testing.T) {
	keys, values := seqKV(10)
	tr := buildTree(t, keys, values)

	_, found, err := tr.Find([]byte("zzz-not-present"))
	require.NoError(t, err)
	require.False(t, found)
}

func TestOpenReloadsFromDigest(t *testing.T) {
	keys, values := seqKV(100)
	s := newMemStore()
	tr, err := New(s, DefaultChunkConfig())
	require.NoError(t, err)
	for i := range keys {
		require.NoError(t, tr.Insert(keys[i], values[i]))
	}

	reopened, err := Open(s, tr.RootDigest())
	require.NoError(t, err)
	v, ok, err := reopened.Get(keys[42])
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, values[42], v)
}
