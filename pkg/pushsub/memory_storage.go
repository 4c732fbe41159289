package pushsub

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of Store.
//
// Mutations on one user's endpoint set serialize on that user's own mutex;
// the top-level lock only guards the user map itself, so concurrent writers
// for different users never contend.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]*userEndpoints
	index map[string]string // endpointID -> userID
}

type userEndpoints struct {
	mu   sync.Mutex
	byID map[string]Endpoint
}

// NewMemoryStore creates a new in-memory endpoint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]*userEndpoints),
		index: make(map[string]string),
	}
}

func (s *MemoryStore) userSet(userID string, create bool) *userEndpoints {
	s.mu.RLock()
	set, ok := s.users[userID]
	s.mu.RUnlock()
	if ok || !create {
		return set
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if set, ok = s.users[userID]; ok {
		return set
	}
	set = &userEndpoints{byID: make(map[string]Endpoint)}
	s.users[userID] = set
	return set
}

func (s *MemoryStore) ListActive(ctx context.Context, userID string) ([]Endpoint, error) {
	set := s.userSet(userID, false)
	if set == nil {
		return []Endpoint{}, nil
	}

	set.mu.Lock()
	defer set.mu.Unlock()

	out := make([]Endpoint, 0, len(set.byID))
	for _, ep := range set.byID {
		if ep.IsActive {
			out = append(out, ep)
		}
	}
	slices.SortFunc(out, func(a, b Endpoint) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) Upsert(ctx context.Context, ep Endpoint) error {
	if ep.ID == "" {
		return ErrMissingEndpointID
	}
	if ep.UserID == "" {
		return ErrMissingUserID
	}

	set := s.userSet(ep.UserID, true)

	set.mu.Lock()
	if existing, ok := set.byID[ep.ID]; ok && !existing.CreatedAt.IsZero() {
		ep.CreatedAt = existing.CreatedAt
	}
	set.byID[ep.ID] = ep
	set.mu.Unlock()

	s.mu.Lock()
	s.index[ep.ID] = ep.UserID
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Deactivate(ctx context.Context, userID, endpointID string) error {
	set := s.userSet(userID, false)
	if set == nil {
		return ErrEndpointNotFound
	}

	set.mu.Lock()
	defer set.mu.Unlock()

	ep, ok := set.byID[endpointID]
	if !ok {
		return ErrEndpointNotFound
	}
	ep.IsActive = false
	ep.LastUpdated = time.Now()
	set.byID[endpointID] = ep
	return nil
}

func (s *MemoryStore) DeactivateByEndpoint(ctx context.Context, endpointID string) error {
	s.mu.RLock()
	userID, ok := s.index[endpointID]
	s.mu.RUnlock()
	if !ok {
		return ErrEndpointNotFound
	}
	return s.Deactivate(ctx, userID, endpointID)
}

func (s *MemoryStore) PurgeInactive(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	for userID, set := range s.users {
		set.mu.Lock()
		for id, ep := range set.byID {
			if !ep.IsActive && ep.LastUpdated.Before(cutoff) {
				delete(set.byID, id)
				delete(s.index, id)
				purged++
			}
		}
		if len(set.byID) == 0 {
			delete(s.users, userID)
		}
		set.mu.Unlock()
	}
	return purged, nil
}
