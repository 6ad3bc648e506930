package cache

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store. A positive MaxEntries caps the number of
// distinct keys; writes of new keys beyond the cap return ErrStoreFull.
// Overwriting an existing key is always allowed.
type MemoryStore struct {
	mu         sync.RWMutex
	entries    map[string]Entry
	maxEntries int
}

// NewMemoryStore creates an empty store. maxEntries <= 0 means unbounded.
func NewMemoryStore(maxEntries int) *MemoryStore {
	return &MemoryStore{
		entries:    make(map[string]Entry),
		maxEntries: maxEntries,
	}
}

// Get returns a copy of the entry for key, or ErrCacheMiss.
func (s *MemoryStore) Get(_ context.Context, key Key) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key.String()]
	if !ok {
		return nil, ErrCacheMiss
	}
	return &entry, nil
}

// Set stores a copy of entry under key.
func (s *MemoryStore) Set(_ context.Context, key Key, entry *Entry) error {
	if entry == nil {
		return ErrInvalidEntry
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := key.String()
	if _, exists := s.entries[k]; !exists && s.maxEntries > 0 && len(s.entries) >= s.maxEntries {
		return ErrStoreFull
	}
	s.entries[k] = *entry
	return nil
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear removes all entries.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]Entry)
}
