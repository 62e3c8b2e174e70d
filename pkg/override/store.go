package override

import (
	"context"
	"sync"
)

// Store persists the premium-override flag. A user with no recorded flag
// reads as false.
type Store interface {
	// Enabled reports whether the override is set for the user.
	Enabled(ctx context.Context, userID string) (bool, error)
	// SetEnabled records the override for the user.
	SetEnabled(ctx context.Context, userID string, enabled bool) error
}

// MemoryStore is an in-process Store for tests and local development.
type MemoryStore struct {
	mu    sync.RWMutex
	flags map[string]bool
}

// NewMemoryStore creates an empty in-memory override store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{flags: make(map[string]bool)}
}

// Enabled reports the recorded flag, defaulting to false.
func (s *MemoryStore) Enabled(ctx context.Context, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flags[userID], nil
}

// SetEnabled records the flag.
func (s *MemoryStore) SetEnabled(ctx context.Context, userID string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags[userID] = enabled
	return nil
}
