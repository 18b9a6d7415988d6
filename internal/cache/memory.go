package cache

import (
	"context"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// MemoryStore is an in-process Store backed by a map. Expiry is lazy: an
// expired entry is evicted on the Get that observes it.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry

	// now is the clock, swappable in tests.
	now func() time.Time
}

// NewMemoryStore creates an empty in-memory cache store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]Entry),
		now:     time.Now,
	}
}

// Get returns the entry for key, or None if absent or expired.
func (m *MemoryStore) Get(_ context.Context, key string) fn.Option[Entry] {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return fn.None[Entry]()
	}

	if entry.Expired(m.now()) {
		m.mu.Lock()
		// Re-check under the write lock: a concurrent Put may have
		// replaced the entry with a fresh one.
		if cur, ok := m.entries[key]; ok && cur.Expired(m.now()) {
			delete(m.entries, key)
		}
		m.mu.Unlock()

		return fn.None[Entry]()
	}

	return fn.Some(entry)
}

// Put stores value under key, overwriting any existing entry.
func (m *MemoryStore) Put(_ context.Context, key string, value []byte,
	ttl time.Duration) error {

	if ttl <= 0 {
		ttl = DefaultTTL
	}

	m.mu.Lock()
	m.entries[key] = Entry{
		Value:     value,
		ExpiresAt: m.now().Add(ttl),
	}
	m.mu.Unlock()

	return nil
}

// Invalidate removes the entry for key.
func (m *MemoryStore) Invalidate(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()

	return nil
}

// Len returns the number of entries currently held, including entries
// that have expired but not yet been evicted.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entries)
}
