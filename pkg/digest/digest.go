// Package digest computes window-bounded activity roll-ups used by the
// periodic summary notifications.
package digest

import (
	"context"
	"time"
)

// Aggregate is a per-user roll-up of savings activity over a window.
type Aggregate struct {
	AmountSaved          float64 `json:"amount_saved"`
	AchievementsUnlocked int     `json:"achievements_unlocked"`
	ChallengesCompleted  int     `json:"challenges_completed"`
	YieldEarned          float64 `json:"yield_earned"`
	StreakDays           int     `json:"streak_days"`
}

// IsZero reports whether the window contained no qualifying activity.
// A standing streak alone does not qualify: nothing happened in the window,
// so no digest is emitted for it.
func (a Aggregate) IsZero() bool {
	return a.AmountSaved == 0 &&
		a.AchievementsUnlocked == 0 &&
		a.ChallengesCompleted == 0 &&
		a.YieldEarned == 0
}

// ActivityStore summarizes a user's savings activity. It is implemented over
// the product's event tables; the engine only consumes the roll-up.
type ActivityStore interface {
	// Summarize computes the aggregate over [from, to).
	Summarize(ctx context.Context, userID string, from, to time.Time) (Aggregate, error)
}
