package prefs

import (
	"context"
	"maps"
	"sync"
)

// MemoryStore is an in-memory implementation of Store for development and
// testing.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]UserPreferences
}

// NewMemoryStore creates a new in-memory preference store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]UserPreferences)}
}

func (s *MemoryStore) Get(ctx context.Context, userID string) (*UserPreferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.users[userID]
	if !ok {
		return nil, ErrNotFound
	}

	// Copy the category map so callers cannot mutate stored state.
	cp := p
	cp.Categories = maps.Clone(p.Categories)
	return &cp, nil
}

func (s *MemoryStore) Put(ctx context.Context, userID string, p UserPreferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.Categories = maps.Clone(p.Categories)
	s.users[userID] = p
	return nil
}

func (s *MemoryStore) ListByDigest(ctx context.Context, freq DigestFrequency) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, p := range s.users {
		if p.Digest == freq {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
