// Package threadsafe provides a coarse-locking façade over versioned.Store
// for callers that share one store across goroutines (spec.md C8). Every
// operation holds the lock for its duration; there is no fine-grained
// locking, by design (spec.md §4.8: "a coarse lock is the correct minimum").
package threadsafe

import (
	"github.com/sasha-s/go-deadlock"

	"github.com/prollytree-go/prollytree/diff"
	"github.com/prollytree-go/prollytree/versioned"
)

// Store wraps a *versioned.Store behind a deadlock-detecting mutex. In
// production builds go-deadlock behaves exactly like sync.Mutex; in
// development builds it additionally detects lock-ordering cycles, which is
// the one upgrade spec.md's "coarse lock" rationale invites without
// introducing fine-grained locking (a named Non-goal).
type Store struct {
	mu    deadlock.Mutex
	inner *versioned.Store
}

// Init creates a new store at dir and wraps it.
func Init(dir string) (*Store, error) {
	inner, err := versioned.Init(dir)
	if err != nil {
		return nil, err
	}
	return &Store{inner: inner}, nil
}

// Open reopens an existing store at dir and wraps it.
func Open(dir string) (*Store, error) {
	inner, err := versioned.Open(dir)
	if err != nil {
		return nil, err
	}
	return &Store{inner: inner}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Close()
}

func (s *Store) SetAuthor(author string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inner.SetAuthor(author)
}

func (s *Store) Insert(key, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inner.Insert(key, value)
}

func (s *Store) Update(key, value []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Update(key, value)
}

func (s *Store) Delete(key []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Delete(key)
}

func (s *Store) Get(key []byte) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Get(key)
}

func (s *Store) ListKeys() ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.ListKeys()
}

func (s *Store) Status() ([]versioned.StatusEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Status()
}

func (s *Store) Commit(message string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Commit(message)
}

func (s *Store) Branch(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Branch(name)
}

func (s *Store) Checkout(nameOrCommit string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Checkout(nameOrCommit)
}

func (s *Store) Log() ([]versioned.CommitInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Log()
}

func (s *Store) Merge(branch string, resolver diff.ConflictResolver) (diff.MergeOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Merge(branch, resolver)
}

func (s *Store) Diff(a, b string) ([]diff.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Diff(a, b)
}

func (s *Store) Revert(commitID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Revert(commitID)
}
