package memory

import (
	"context"
	"sync"

	apperrors "github.com/utafrali/EcommerceGo/pkg/errors"
	"github.com/utafrali/EcommerceGo/services/storefront/internal/storage"
)

// Storage implements storage.Storage using an in-memory map. Entries do not
// survive a process restart; it backs tests and single-node development.
type Storage struct {
	mu      sync.RWMutex
	entries map[string]string
}

// New creates a new in-memory storage instance.
func New() *Storage {
	return &Storage{entries: make(map[string]string)}
}

// Get returns the value stored under key.
func (s *Storage) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.entries[key]
	if !ok {
		return "", apperrors.NotFound("storage key", key)
	}
	return v, nil
}

// Set stores value under key, overwriting any previous value.
func (s *Storage) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = value
	return nil
}

// Update runs fn and stores its result under the write lock.
func (s *Storage) Update(_ context.Context, key string, fn storage.UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, found := s.entries[key]
	next, write, err := fn(current, found)
	if err != nil || !write {
		return err
	}
	s.entries[key] = next
	return nil
}

// Remove deletes key.
func (s *Storage) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// Ping always succeeds.
func (s *Storage) Ping(context.Context) error {
	return nil
}

// Len returns the number of stored entries.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
