package session

import (
	"context"
	"log/slog"
	"net/http/cookiejar"
	"sync"
)

// MemoryKeyStore is an in-process KeyStore.
type MemoryKeyStore struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{data: make(map[string]string)}
}

func (s *MemoryKeyStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *MemoryKeyStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *MemoryKeyStore) Remove(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

func (s *MemoryKeyStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.data)
	return nil
}

// Len returns the number of stored keys.
func (s *MemoryKeyStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// MemoryDatabases tracks named databases in memory.
type MemoryDatabases struct {
	mu    sync.Mutex
	names map[string]struct{}
}

func NewMemoryDatabases(names ...string) *MemoryDatabases {
	m := &MemoryDatabases{names: make(map[string]struct{})}
	for _, n := range names {
		m.names[n] = struct{}{}
	}
	return m
}

func (m *MemoryDatabases) DeleteDatabase(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.names, name)
	return nil
}

// Exists reports whether name has not been deleted.
func (m *MemoryDatabases) Exists(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.names[name]
	return ok
}

type unsupportedDatabases struct{}

// NoDatabases is used where embedded databases are unavailable.
var NoDatabases DatabaseStore = unsupportedDatabases{}

func (unsupportedDatabases) DeleteDatabase(context.Context, string) error {
	return ErrUnsupported
}

// NewMemoryStore returns a Store for non-interactive and test contexts.
func NewMemoryStore(databases ...string) *Store {
	jar, _ := cookiejar.New(nil)
	return &Store{
		Persistent: NewMemoryKeyStore(),
		Transient:  NewMemoryKeyStore(),
		Cookies:    jar,
		Databases:  NewMemoryDatabases(databases...),
		Navigator:  NewLocationNavigator("/", nil),
		Notifier:   NewLogNotifier(slog.Default()),
	}
}
