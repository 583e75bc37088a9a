package keystore

import (
	"sync"

	"github.com/awnumar/memguard"
)

// Memory keeps keys in process memory.
type Memory struct {
	mu   sync.RWMutex
	keys map[string][]byte
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory key store.
func NewMemory() *Memory {
	return &Memory{keys: make(map[string][]byte)}
}

func (m *Memory) Load(identity string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	k, ok := m.keys[identity]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), k...), nil
}

func (m *Memory) Store(identity string, key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.keys[identity]; ok {
		return ErrExists
	}
	m.keys[identity] = append([]byte(nil), key...)
	return nil
}

// Delete wipes and removes the key.
func (m *Memory) Delete(identity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k, ok := m.keys[identity]
	if !ok {
		return ErrNotFound
	}
	memguard.WipeBytes(k)
	delete(m.keys, identity)
	return nil
}
