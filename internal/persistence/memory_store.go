package persistence

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemorySessionStore is a process-local SessionStore. It is meant for tests and
// single-instance development runs; state is not shared across processes.
type MemorySessionStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

var _ SessionStore = (*MemorySessionStore)(nil)

// NewMemorySessionStore returns an empty store using the wall clock.
func NewMemorySessionStore() *MemorySessionStore {
	return NewMemorySessionStoreWithClock(time.Now)
}

// NewMemorySessionStoreWithClock returns an empty store that reads time from now.
func NewMemorySessionStoreWithClock(now func() time.Time) *MemorySessionStore {
	return &MemorySessionStore{entries: make(map[string]memoryEntry), now: now}
}

// lookup returns a live entry, evicting it when expired. Callers hold mu.
func (s *MemorySessionStore) lookup(key string) (memoryEntry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.entries, key)
		return memoryEntry{}, false
	}
	return e, true
}

func (s *MemorySessionStore) put(key, value string, ttl time.Duration) {
	s.entries[key] = memoryEntry{value: value, expiresAt: s.now().Add(ttl)}
}

func (s *MemorySessionStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(key)
	return e.value, ok, nil
}

func (s *MemorySessionStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(key, value, ttl)
	return nil
}

func (s *MemorySessionStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.entries, k)
	}
	return nil
}

func (s *MemorySessionStore) GetDelete(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(key)
	if ok {
		delete(s.entries, key)
	}
	return e.value, ok, nil
}

func (s *MemorySessionStore) Swap(_ context.Context, key, value string, ttl time.Duration) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.lookup(key)
	s.put(key, value, ttl)
	return old.value, ok, nil
}

func (s *MemorySessionStore) CompareAndSwap(_ context.Context, key, expected, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(key)
	if !ok || e.value != expected {
		return false, nil
	}
	s.put(key, value, ttl)
	return true, nil
}

func (s *MemorySessionStore) Ping(context.Context) error {
	return nil
}

// Len reports the number of live keys.
func (s *MemorySessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.entries {
		if _, ok := s.lookup(k); ok {
			n++
		}
	}
	return n
}
