package notify

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryRecordStore is an in-memory implementation of RecordStore.
// Suitable for development and testing.
type MemoryRecordStore struct {
	mu      sync.RWMutex
	records map[string]*Record  // recordID -> record
	byUser  map[string][]string // userID -> recordIDs in insertion order
}

// NewMemoryRecordStore creates a new in-memory record store.
func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{
		records: make(map[string]*Record),
		byUser:  make(map[string][]string),
	}
}

func (s *MemoryRecordStore) Create(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		return ErrRecordNotFound
	}
	if rec.UserID == "" {
		return ErrMissingUserID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	cp := rec
	s.records[rec.ID] = &cp
	s.byUser[rec.UserID] = append(s.byUser[rec.UserID], rec.ID)
	return nil
}

func (s *MemoryRecordStore) Get(ctx context.Context, userID, recordID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[recordID]
	if !ok || rec.UserID != userID {
		return nil, ErrRecordNotFound
	}

	// Return a copy to prevent external mutation of stored data.
	cp := *rec
	return &cp, nil
}

func (s *MemoryRecordStore) List(ctx context.Context, userID string, opts ListOptions) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	var filtered []Record
	for _, id := range s.byUser[userID] {
		rec := s.records[id]

		if rec.IsExpired(now) {
			continue
		}
		if opts.OnlyUnread && rec.Read {
			continue
		}
		if len(opts.Categories) > 0 && !slices.Contains(opts.Categories, rec.Category) {
			continue
		}
		if opts.Since != nil && rec.CreatedAt.Before(*opts.Since) {
			continue
		}

		filtered = append(filtered, *rec)
	}

	// Newest first.
	slices.SortStableFunc(filtered, func(a, b Record) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	start := opts.Offset
	if start > len(filtered) {
		return []Record{}, nil
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(filtered) {
		end = len(filtered)
	}
	return filtered[start:end], nil
}

func (s *MemoryRecordStore) MarkRead(ctx context.Context, userID string, recordIDs ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, id := range recordIDs {
		rec, ok := s.records[id]
		if !ok || rec.UserID != userID {
			continue
		}
		rec.MarkAsRead(now)
	}
	return nil
}

func (s *MemoryRecordStore) CountUnread(ctx context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	count := 0
	for _, id := range s.byUser[userID] {
		rec := s.records[id]
		if !rec.Read && !rec.IsExpired(now) {
			count++
		}
	}
	return count, nil
}

func (s *MemoryRecordStore) FinishDispatch(ctx context.Context, recordID string, resolved []Channel, status Status, deliveryErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[recordID]
	if !ok {
		return ErrRecordNotFound
	}
	if rec.Status != StatusScheduled {
		return ErrAlreadyDispatched
	}

	rec.Resolved = slices.Clone(resolved)
	rec.Status = status
	rec.DeliveryErr = deliveryErr
	rec.LockedUntil = nil
	return nil
}

func (s *MemoryRecordStore) ClaimDue(ctx context.Context, now time.Time, lockFor time.Duration, limit int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*Record
	for _, rec := range s.records {
		if rec.Status != StatusScheduled {
			continue
		}
		if rec.ScheduledFor != nil && rec.ScheduledFor.After(now) {
			continue
		}
		if rec.LockedUntil != nil && rec.LockedUntil.After(now) {
			continue
		}
		due = append(due, rec)
	}

	// Oldest scheduled time first, creation time breaks ties.
	slices.SortFunc(due, func(a, b *Record) int {
		at, bt := a.CreatedAt, b.CreatedAt
		if a.ScheduledFor != nil {
			at = *a.ScheduledFor
		}
		if b.ScheduledFor != nil {
			bt = *b.ScheduledFor
		}
		if c := at.Compare(bt); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]Record, 0, len(due))
	until := now.Add(lockFor)
	for _, rec := range due {
		rec.LockedUntil = &until
		claimed = append(claimed, *rec)
	}
	return claimed, nil
}
