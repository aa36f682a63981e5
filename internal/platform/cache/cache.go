// Package cache provides the short-TTL in-process read cache that absorbs
// dashboard polling load. The backing store remains the source of truth: the
// cache is always disposable, and correctness never depends on its contents.
package cache

import (
	"strings"
	"sync"
	"time"
)

// TTL tiers. SHORT covers date/professional queries and dashboard stats,
// MEDIUM paginated professional listings, LONG and VERY_LONG rarely-changing
// data such as the company directory.
const (
	TTLShort    = 60 * time.Second
	TTLMedium   = 5 * time.Minute
	TTLLong     = time.Hour
	TTLVeryLong = 24 * time.Hour

	// SweepInterval is how often the background sweep evicts expired entries.
	SweepInterval = 5 * time.Minute
)

// Store is the cache backend used by the query and scheduling services.
// Implementations must tolerate concurrent Get/Set/Clear without corruption;
// staleness within the TTL window is accepted and resolved by TTL, not locking.
type Store interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{}, ttl time.Duration)
	Delete(key string)
	Clear()
}

type entry struct {
	value     interface{}
	expiresAt time.Time
}

// InMemoryStore is a thread-safe in-memory Store with lazy expiration.
type InMemoryStore struct {
	entries map[string]*entry
	mu      sync.RWMutex
}

// NewInMemoryStore creates an empty InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		entries: make(map[string]*entry),
	}
}

// Get retrieves a value from the cache. Performs lazy expiration: deletes the
// entry and returns a miss if it has expired.
func (s *InMemoryStore) Get(key string) (interface{}, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Set stores a value with the given TTL, overwriting unconditionally.
func (s *InMemoryStore) Set(key string, value interface{}, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = &entry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
}

// Delete removes a single entry.
func (s *InMemoryStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// Clear removes all entries. Mutating operations call this on every
// successful appointment or professional write: invalidation is deliberately
// coarse, correctness over granularity.
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*entry)
}

// Len returns the number of entries currently held, expired or not.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Sweep evicts all expired entries. The job scheduler drives it on the
// SweepInterval cadence.
func (s *InMemoryStore) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for k, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, k)
		}
	}
}

// Key joins the given parts into a cache key.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}
