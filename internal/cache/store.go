// Package cache holds response payloads keyed by request identity.
package cache

import (
	"strings"
	"sync"
	"time"
)

// Store is the storage behind the response cache stage.
type Store interface {
	Get(key string) (any, bool)
	Set(key string, value any, ttl time.Duration)
	Delete(key string)
	// Invalidate removes every key containing pattern; an empty pattern
	// clears the store. It returns the number of removed keys.
	Invalidate(pattern string) int
	Len() int
}

type entry struct {
	value   any
	expires time.Time
}

// MemoryStore is a process-local Store. Expired entries are swept on every
// Set and skipped on Get.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string]entry{}, now: time.Now}
}

// WithClock replaces the time source.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
	return s
}

func (s *MemoryStore) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if !s.now().Before(e.expires) {
		delete(s.entries, key)
		return nil, false
	}
	return e.value, true
}

func (s *MemoryStore) Set(key string, value any, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, e := range s.entries {
		if !now.Before(e.expires) {
			delete(s.entries, k)
		}
	}
	s.entries[key] = entry{value: value, expires: now.Add(ttl)}
}

func (s *MemoryStore) Delete(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

func (s *MemoryStore) Invalidate(pattern string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pattern == "" {
		n := len(s.entries)
		clear(s.entries)
		return n
	}
	n := 0
	for k := range s.entries {
		if strings.Contains(k, pattern) {
			delete(s.entries, k)
			n++
		}
	}
	return n
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
