package storage

import (
	"sync"

	"github.com/prollytree-go/prollytree/digest"
	"github.com/prollytree-go/prollytree/prolly"
)

// Memory is a NodeStore backed by a mutex-guarded Go map. It is the default
// store used for tests and for trees that never need to survive a process
// restart.
type Memory struct {
	mu      sync.RWMutex
	nodes   map[digest.Digest][]byte
	configs map[string][]byte
}

var _ NodeStore = (*Memory)(nil)

// NewMemory returns an empty in-memory NodeStore.
func NewMemory() *Memory {
	return &Memory{
		nodes:   make(map[digest.Digest][]byte),
		configs: make(map[string][]byte),
	}
}

func (m *Memory) Get(d digest.Digest) (*prolly.Node, bool, error) {
	m.mu.RLock()
	raw, ok := m.nodes[d]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	n, err := prolly.DecodeNode(raw)
	if err != nil {
		return nil, false, err
	}
	return n, true, nil
}

func (m *Memory) Put(d digest.Digest, n *prolly.Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.nodes[d]; exists {
		// put is idempotent for content-addressed data.
		return nil
	}
	m.nodes[d] = n.Bytes()
	return nil
}

func (m *Memory) Delete(d digest.Digest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.nodes, d)
	return nil
}

func (m *Memory) GetConfig(key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.configs[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *Memory) PutConfig(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[key] = append([]byte(nil), value...)
	return nil
}

// Len reports the number of distinct node blobs currently retained. Useful
// in tests asserting that garbage collection is left to the caller (spec.md
// notes GC policy is unspecified at the core level).
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.nodes)
}
