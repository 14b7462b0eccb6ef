package storage

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/prollytree-go/prollytree/digest"
	"github.com/prollytree-go/prollytree/errs"
	"github.com/prollytree-go/prollytree/prolly"
)

// node and config blobs live under separate key prefixes in the same
// badger database, so a single on-disk store can serve both capabilities.
const (
	badgerNodePrefix   = "n:"
	badgerConfigPrefix = "c:"
)

// Badger is a NodeStore backed by github.com/dgraph-io/badger/v2, giving
// the tree durable, crash-safe node storage without depending on any
// particular object-db. It is also reused as the blob backend for the
// objectdb adapter (spec.md C6).
type Badger struct {
	db *badger.DB
}

var _ NodeStore = (*Badger)(nil)

// OpenBadger opens (creating if necessary) a badger database at dir.
func OpenBadger(dir string) (*Badger, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil // the teacher's packages never wire a logger into a storage library either
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errs.Storagef(err, "storage: open badger at %q", dir)
	}
	return &Badger{db: db}, nil
}

// Close releases the underlying badger database.
func (b *Badger) Close() error {
	return b.db.Close()
}

// DB exposes the underlying badger handle for the objectdb adapter, which
// needs its own key prefixes within the same database.
func (b *Badger) DB() *badger.DB {
	return b.db
}

func (b *Badger) Get(d digest.Digest) (*prolly.Node, bool, error) {
	var raw []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerNodePrefix + string(d.Bytes())))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, false, errs.Storagef(err, "storage: badger get")
	}
	if raw == nil {
		return nil, false, nil
	}
	n, err := prolly.DecodeNode(raw)
	if err != nil {
		return nil, false, err
	}
	return n, true, nil
}

func (b *Badger) Put(d digest.Digest, n *prolly.Node) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(badgerNodePrefix+string(d.Bytes())), n.Bytes())
	})
	if err != nil {
		return errs.Storagef(err, "storage: badger put")
	}
	return nil
}

func (b *Badger) Delete(d digest.Digest) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(badgerNodePrefix + string(d.Bytes())))
	})
	if err != nil {
		return errs.Storagef(err, "storage: badger delete")
	}
	return nil
}

func (b *Badger) GetConfig(key string) ([]byte, bool, error) {
	var raw []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerConfigPrefix + key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, false, errs.Storagef(err, "storage: badger get config")
	}
	if raw == nil {
		return nil, false, nil
	}
	return raw, true, nil
}

func (b *Badger) PutConfig(key string, value []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(badgerConfigPrefix+key), value)
	})
	if err != nil {
		return errs.Storagef(err, "storage: badger put config")
	}
	return nil
}
