package digest

import (
	"context"
	"sync"
	"time"
)

// EventKind classifies an activity event.
type EventKind string

const (
	EventDeposit     EventKind = "deposit"
	EventAchievement EventKind = "achievement"
	EventChallenge   EventKind = "challenge"
	EventYield       EventKind = "yield"
)

// Event is one activity record in the in-memory store.
type Event struct {
	Kind       EventKind
	Amount     float64
	OccurredAt time.Time
}

// MemoryActivityStore is an in-memory ActivityStore for development and
// testing.
type MemoryActivityStore struct {
	mu     sync.RWMutex
	events map[string][]Event
}

// NewMemoryActivityStore creates a new in-memory activity store.
func NewMemoryActivityStore() *MemoryActivityStore {
	return &MemoryActivityStore{events: make(map[string][]Event)}
}

// Record appends an activity event for a user.
func (s *MemoryActivityStore) Record(userID string, ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[userID] = append(s.events[userID], ev)
}

func (s *MemoryActivityStore) Summarize(ctx context.Context, userID string, from, to time.Time) (Aggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var agg Aggregate
	depositDays := make(map[string]bool)

	for _, ev := range s.events[userID] {
		if ev.OccurredAt.Before(from) || !ev.OccurredAt.Before(to) {
			continue
		}
		switch ev.Kind {
		case EventDeposit:
			agg.AmountSaved += ev.Amount
			depositDays[ev.OccurredAt.UTC().Format(time.DateOnly)] = true
		case EventAchievement:
			agg.AchievementsUnlocked++
		case EventChallenge:
			agg.ChallengesCompleted++
		case EventYield:
			agg.YieldEarned += ev.Amount
		}
	}

	// Streak: consecutive calendar days with at least one deposit, counting
	// back from the last day of the window.
	day := to.UTC().AddDate(0, 0, -1)
	for depositDays[day.Format(time.DateOnly)] {
		agg.StreakDays++
		day = day.AddDate(0, 0, -1)
	}

	return agg, nil
}
