package testkit

import (
	"sync"

	"github.com/ipfs/go-cid"

	"ckbecs.dev/ecs/cidutil"
	"ckbecs.dev/ecs/storage"
)

// Memory is an in-memory CAS for tests.
type Memory struct {
	mu   sync.RWMutex
	objs map[cid.Cid][]byte
}

var _ storage.CAS = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{objs: make(map[cid.Cid][]byte)}
}

func (m *Memory) Put(b []byte) (cid.Cid, error) {
	id, err := cidutil.CIDv1RawSHA256CID(b)
	if err != nil {
		return cid.Undef, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objs[id]; !ok {
		m.objs[id] = append([]byte(nil), b...)
	}
	return id, nil
}

func (m *Memory) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.objs[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (m *Memory) Has(id cid.Cid) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objs[id]
	return ok
}

// Len returns the number of stored objects.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objs)
}
