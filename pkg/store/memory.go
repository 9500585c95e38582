package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store with an in-process map. Health and quota
// state kept here survives nothing beyond the process, which is the
// default single-instance deployment.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry

	// now is replaceable in tests.
	now func() time.Time
}

type memoryEntry struct {
	value []byte
	// expiresAt is zero for entries without expiry.
	expiresAt time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get returns the value for key, or nil when absent or expired. Expired
// entries are left for Cleanup to sweep.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	if !entry.expiresAt.IsZero() && !entry.expiresAt.After(s.now()) {
		return nil, nil
	}

	// Copy so callers cannot mutate stored bytes.
	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, nil
}

// Put upserts key with a time-to-live.
func (s *MemoryStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memoryEntry{value: make([]byte, len(value))}
	copy(entry.value, value)
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}

	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()
	return nil
}

// Delete removes key.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Cleanup removes expired entries.
func (s *MemoryStore) Cleanup(ctx context.Context) (int, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, entry := range s.entries {
		if !entry.expiresAt.IsZero() && !entry.expiresAt.After(now) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}

// Len returns the number of live and expired-but-unswept entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
