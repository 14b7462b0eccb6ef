package objectdb

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/prollytree-go/prollytree/digest"
	"github.com/prollytree-go/prollytree/errs"
)

// key prefixes partition the object-db's keyspace within the same badger
// database the node store itself uses (storage.Badger's "n:"/"c:" prefixes
// are reserved by that package; objectdb uses its own "o:"/"x:"/"r:").
const (
	blobPrefix  = "o:"       // ObjectID -> raw blob bytes
	indexPrefix = "x:"       // digest.Digest -> ObjectID, bidirectional
	refPrefix   = "r:refs/heads/"
	headKey     = "r:HEAD"
)

// Store is the object-DB adapter: blob storage for serialised prolly nodes,
// commit objects, and refs, all multiplexed onto one badger.DB (spec.md C6).
type Store struct {
	db *badger.DB
}

// Open wraps an already-open badger handle (typically the same one backing
// the node store, via storage.Badger.DB()) with the object-db's own prefixes.
func Open(db *badger.DB) *Store {
	return &Store{db: db}
}

// PutBlob stores data under the SHA-1 of its bytes, idempotently, and
// returns that id.
func (s *Store) PutBlob(data []byte) (ObjectID, error) {
	id := HashObject(data)
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(blobPrefix+id.String()), data)
	})
	if err != nil {
		return ObjectID{}, errs.Storagef(err, "objectdb: put blob")
	}
	return id, nil
}

// GetBlob retrieves a previously stored blob by id.
func (s *Store) GetBlob(id ObjectID) ([]byte, bool, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(blobPrefix + id.String()))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, false, errs.Storagef(err, "objectdb: get blob")
	}
	return out, out != nil, nil
}

// LinkDigest records the bidirectional mapping between a tree-native digest
// and the object id of the blob it was stored as (spec.md §4.6's "the two
// address spaces may differ").
func (s *Store) LinkDigest(d digest.Digest, id ObjectID) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(indexPrefix+"d:"+d.String()), id[:]); err != nil {
			return err
		}
		return txn.Set([]byte(indexPrefix+"o:"+id.String()), d.Bytes())
	})
	if err != nil {
		return errs.Storagef(err, "objectdb: link digest")
	}
	return nil
}

// ObjectIDFor looks up the object id a digest was last stored as, if any.
// Missing entries are tolerated by callers, which recompute by re-hashing.
func (s *Store) ObjectIDFor(d digest.Digest) (ObjectID, bool, error) {
	var out ObjectID
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(indexPrefix + "d:" + d.String()))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			copy(out[:], val)
			found = true
			return nil
		})
	})
	if err != nil {
		return ObjectID{}, false, errs.Storagef(err, "objectdb: object id for digest")
	}
	return out, found, nil
}

// DigestFor looks up the tree-native digest an object id was linked from.
func (s *Store) DigestFor(id ObjectID) (digest.Digest, bool, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(indexPrefix + "o:" + id.String()))
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
		return digest.Empty, false, errs.Storagef(err, "objectdb: digest for object id")
	}
	if raw == nil {
		return digest.Empty, false, nil
	}
	d, err := digest.FromBytes(raw)
	if err != nil {
		return digest.Empty, false, errs.Corruptionf("objectdb: malformed digest index entry: %v", err)
	}
	return d, true, nil
}

// PutCommit serialises and stores a commit object, returning its id.
func (s *Store) PutCommit(c *Commit) (ObjectID, error) {
	return s.PutBlob(c.Bytes())
}

// GetCommit retrieves and decodes a commit object by id.
func (s *Store) GetCommit(id ObjectID) (*Commit, bool, error) {
	raw, ok, err := s.GetBlob(id)
	if err != nil || !ok {
		return nil, ok, err
	}
	c, err := DecodeCommit(raw)
	return c, true, err
}

// SetRef points refs/heads/<name> at commit, creating or moving it.
func (s *Store) SetRef(name string, commit ObjectID) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(refPrefix+name), commit[:])
	})
	if err != nil {
		return errs.Storagef(err, "objectdb: set ref %q", name)
	}
	return nil
}

// GetRef resolves refs/heads/<name> to a commit id.
func (s *Store) GetRef(name string) (ObjectID, bool, error) {
	var out ObjectID
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(refPrefix + name))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			copy(out[:], val)
			found = true
			return nil
		})
	})
	if err != nil {
		return ObjectID{}, false, errs.Storagef(err, "objectdb: get ref %q", name)
	}
	return out, found, nil
}

// DeleteRef removes refs/heads/<name>.
func (s *Store) DeleteRef(name string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(refPrefix + name))
	})
	if err != nil {
		return errs.Storagef(err, "objectdb: delete ref %q", name)
	}
	return nil
}

// ListBranches returns every refs/heads/<name>, sorted by the underlying
// badger iterator's key order.
func (s *Store) ListBranches() ([]string, error) {
	var names []string
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(refPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			names = append(names, key[len(refPrefix):])
		}
		return nil
	})
	if err != nil {
		return nil, errs.Storagef(err, "objectdb: list branches")
	}
	return names, nil
}

// SetHeadToRef points HEAD at a branch (symbolic ref), e.g. "refs/heads/main".
func (s *Store) SetHeadToRef(ref string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(headKey), []byte("ref: "+ref))
	})
	if err != nil {
		return errs.Storagef(err, "objectdb: set HEAD to ref %q", ref)
	}
	return nil
}

// SetHeadToCommit detaches HEAD, pointing it directly at a commit id.
func (s *Store) SetHeadToCommit(id ObjectID) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(headKey), []byte(id.String()))
	})
	if err != nil {
		return errs.Storagef(err, "objectdb: set HEAD to commit %s", id)
	}
	return nil
}

// Head reports HEAD's raw target: either a symbolic ref name
// ("refs/heads/main") or a detached commit id, alongside which case applies.
func (s *Store) Head() (target string, isRef bool, err error) {
	var raw []byte
	gerr := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(headKey))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if gerr != nil {
		return "", false, errs.Storagef(gerr, "objectdb: read HEAD")
	}
	if raw == nil {
		return "", false, errs.NotFoundf("objectdb: HEAD is unset")
	}
	s2 := string(raw)
	const symPrefix = "ref: "
	if len(s2) > len(symPrefix) && s2[:len(symPrefix)] == symPrefix {
		return s2[len(symPrefix):], true, nil
	}
	return s2, false, nil
}

// ResolveHead resolves HEAD all the way down to a commit id.
func (s *Store) ResolveHead() (ObjectID, error) {
	target, isRef, err := s.Head()
	if err != nil {
		return ObjectID{}, err
	}
	if !isRef {
		return ParseObjectID(target)
	}
	const branchPrefix = "refs/heads/"
	if len(target) <= len(branchPrefix) || target[:len(branchPrefix)] != branchPrefix {
		return ObjectID{}, errs.InvalidInputf("objectdb: unsupported ref target %q", target)
	}
	id, ok, err := s.GetRef(target[len(branchPrefix):])
	if err != nil {
		return ObjectID{}, err
	}
	if !ok {
		return ObjectID{}, errs.NotFoundf("objectdb: ref %q has no commit", target)
	}
	return id, nil
}

// CurrentBranch returns the branch name HEAD symbolically points to, and
// false if HEAD is detached.
func (s *Store) CurrentBranch() (string, bool, error) {
	target, isRef, err := s.Head()
	if err != nil {
		return "", false, err
	}
	if !isRef {
		return "", false, nil
	}
	const branchPrefix = "refs/heads/"
	if len(target) <= len(branchPrefix) || target[:len(branchPrefix)] != branchPrefix {
		return "", false, errs.InvalidInputf("objectdb: unsupported ref target %q", target)
	}
	return target[len(branchPrefix):], true, nil
}
