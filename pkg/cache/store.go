package cache

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrCacheMiss indicates the requested key was not found.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates a stored entry is corrupted.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Store is the injected persistence abstraction behind the cache manager.
// Implementations must be safe for concurrent use. Set is an idempotent
// last-write-wins upsert; there is no delete.
type Store interface {
	// Get returns the entry for key, or ErrCacheMiss.
	Get(ctx context.Context, key string) (*Entry, error)

	// Set upserts the entry under key.
	Set(ctx context.Context, key string, entry *Entry) error

	// Has reports existence without transferring the payload.
	Has(ctx context.Context, key string) (bool, error)

	// Count returns the number of stored entries.
	Count(ctx context.Context) (int64, error)

	// TotalBytes returns the sum of stored payload sizes.
	TotalBytes(ctx context.Context) (int64, error)

	// Backend names the backend for logs and metric labels.
	Backend() string
}

// MemoryStore is an in-process Store for single-instance deployments and
// tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	bytes   int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*Entry),
	}
}

// Get returns the entry for key, or ErrCacheMiss.
func (s *MemoryStore) Get(_ context.Context, key string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	// Shallow copy so callers cannot mutate stored state.
	copied := *entry
	return &copied, nil
}

// Set upserts the entry under key.
func (s *MemoryStore) Set(_ context.Context, key string, entry *Entry) error {
	if entry == nil {
		return errors.New("cache entry cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.entries[key]; ok {
		s.bytes -= old.PayloadBytes()
	}
	copied := *entry
	s.entries[key] = &copied
	s.bytes += copied.PayloadBytes()
	return nil
}

// Has reports existence without payload transfer.
func (s *MemoryStore) Has(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[key]
	return ok, nil
}

// Count returns the number of stored entries.
func (s *MemoryStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.entries)), nil
}

// TotalBytes returns the sum of stored payload sizes.
func (s *MemoryStore) TotalBytes(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bytes, nil
}

// Backend names the backend.
func (s *MemoryStore) Backend() string {
	return "memory"
}
