// Package credentials stores the API key used for completion requests and asks the
// user for one when none is available.
package credentials

import (
	"errors"
	"sync"
)

// ErrNotFound indicates no credential is stored
var ErrNotFound = errors.New("credential not found")

// Store holds a single API key
type Store interface {
	Get() (string, bool)
	Set(secret string) error
	Clear() error
}

// MemoryStore keeps the key for the lifetime of the process
type MemoryStore struct {
	mu     sync.RWMutex
	secret string
}

// NewMemoryStore returns a store seeded with secret, which may be empty
func NewMemoryStore(secret string) *MemoryStore {
	return &MemoryStore{secret: secret}
}

func (m *MemoryStore) Get() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.secret, m.secret != ""
}

func (m *MemoryStore) Set(secret string) error {
	m.mu.Lock()
	m.secret = secret
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear() error {
	return m.Set("")
}

// NoneStore is used for providers that accept requests without a key
type NoneStore struct{}

func (NoneStore) Get() (string, bool) { return "", true }
func (NoneStore) Set(string) error    { return nil }
func (NoneStore) Clear() error        { return nil }
