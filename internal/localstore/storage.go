// Package localstore persists the research journal on the local machine.
//
// A Storage is a small byte-oriented key/value store shaped after browser
// local storage. Three backends exist:
//
//   - FSStorage keeps one file per key on a hackpadfs filesystem (an OS
//     directory in production, memory in tests, IndexedDB under wasm)
//   - SQLiteStorage keeps a kv table in an embedded SQLite database
//   - MemStorage keeps a map and announces writes on a notify.Bus
//
// The Adapter layers the document contract on top: versioned keys, legacy
// key migration, drafts, preferences and fall back to a seeded document on
// any read failure.
package localstore

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/researchjournal/rj/internal/notify"
)

// ErrNotFound is returned by GetItem for a missing key.
var ErrNotFound = errors.New("key not found")

// Storage is a synchronous key/value store.
type Storage interface {
	GetItem(key string) ([]byte, error)
	SetItem(key string, value []byte) error
	RemoveItem(key string) error
	Keys() ([]string, error)
	Close() error
}

// KeysWithPrefix lists the keys of s starting with prefix, sorted.
func KeysWithPrefix(s Storage, prefix string) ([]string, error) {
	keys, err := s.Keys()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, k := range keys {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

// MemStorage is an in-memory Storage. Several adapters sharing one
// MemStorage behave like browser tabs sharing local storage.
type MemStorage struct {
	mu   sync.RWMutex
	data map[string][]byte
	bus  *notify.Bus
}

// NewMemStorage creates an empty store. Writes are published on bus when it
// is non-nil.
func NewMemStorage(bus *notify.Bus) *MemStorage {
	return &MemStorage{data: make(map[string][]byte), bus: bus}
}

// GetItem implements Storage.
func (m *MemStorage) GetItem(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// SetItem implements Storage.
func (m *MemStorage) SetItem(key string, value []byte) error {
	v := append([]byte(nil), value...)
	m.mu.Lock()
	m.data[key] = v
	m.mu.Unlock()
	if m.bus != nil {
		m.bus.Publish(notify.Change{Key: key, Value: v, Origin: notify.OriginLocal}, nil)
	}
	return nil
}

// RemoveItem implements Storage.
func (m *MemStorage) RemoveItem(key string) error {
	m.mu.Lock()
	_, existed := m.data[key]
	delete(m.data, key)
	m.mu.Unlock()
	if existed && m.bus != nil {
		m.bus.Publish(notify.Change{Key: key, Origin: notify.OriginLocal}, nil)
	}
	return nil
}

// Keys implements Storage.
func (m *MemStorage) Keys() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys, nil
}

// Close implements Storage.
func (m *MemStorage) Close() error {
	return nil
}
