package storage

import (
	"github.com/dgraph-io/ristretto"

	"github.com/prollytree-go/prollytree/digest"
	"github.com/prollytree-go/prollytree/errs"
	"github.com/prollytree-go/prollytree/prolly"
)

// Cache wraps another NodeStore with a read-through ristretto cache of
// deserialised nodes. Hot nodes encountered repeatedly during diff/merge
// descent (spec.md C5's short-circuit on equal subtree digests still has to
// fetch nodes that *do* differ, often the same ones on both sides) avoid
// re-deserialising on every Get.
type Cache struct {
	backing NodeStore
	cache   *ristretto.Cache
}

var _ NodeStore = (*Cache)(nil)

// NewCache wraps backing with a cache sized for maxCost bytes of estimated
// node storage (ristretto.Config.MaxCost), a reasonable default being a few
// hundred megabytes for a long-lived server process.
func NewCache(backing NodeStore, maxCost int64) (*Cache, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxCost / 100, // ~100 bytes/node estimate, per ristretto's own sizing guidance
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, errs.Storagef(err, "storage: create ristretto cache")
	}
	return &Cache{backing: backing, cache: c}, nil
}

func (c *Cache) Get(d digest.Digest) (*prolly.Node, bool, error) {
	key := d.String()
	if v, ok := c.cache.Get(key); ok {
		return v.(*prolly.Node), true, nil
	}
	n, ok, err := c.backing.Get(d)
	if err != nil || !ok {
		return n, ok, err
	}
	c.cache.Set(key, n, int64(len(n.Bytes())))
	return n, true, nil
}

func (c *Cache) Put(d digest.Digest, n *prolly.Node) error {
	if err := c.backing.Put(d, n); err != nil {
		return err
	}
	c.cache.Set(d.String(), n, int64(len(n.Bytes())))
	return nil
}

func (c *Cache) Delete(d digest.Digest) error {
	c.cache.Del(d.String())
	return c.backing.Delete(d)
}

func (c *Cache) GetConfig(key string) ([]byte, bool, error) {
	return c.backing.GetConfig(key)
}

func (c *Cache) PutConfig(key string, value []byte) error {
	return c.backing.PutConfig(key, value)
}
