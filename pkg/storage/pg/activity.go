package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/acornstash/notifier/pkg/digest"
)

// ActivityStore computes digest aggregates from the product's activity
// events table. Events are written by the savings, achievements and
// challenges services; this store only reads.
type ActivityStore struct {
	db *pgxpool.Pool
}

// NewActivityStore creates an activity store over the given pool.
func NewActivityStore(db *pgxpool.Pool) *ActivityStore {
	return &ActivityStore{db: db}
}

func (s *ActivityStore) Summarize(ctx context.Context, userID string, from, to time.Time) (digest.Aggregate, error) {
	var agg digest.Aggregate
	err := s.db.QueryRow(ctx, `
		SELECT
			COALESCE(sum(amount) FILTER (WHERE kind = 'deposit'), 0),
			count(*) FILTER (WHERE kind = 'achievement'),
			count(*) FILTER (WHERE kind = 'challenge'),
			COALESCE(sum(amount) FILTER (WHERE kind = 'yield'), 0)
		FROM activity_events
		WHERE user_id = $1 AND occurred_at >= $2 AND occurred_at < $3`,
		userID, from, to,
	).Scan(&agg.AmountSaved, &agg.AchievementsUnlocked, &agg.ChallengesCompleted, &agg.YieldEarned)
	if err != nil {
		return digest.Aggregate{}, fmt.Errorf("summarize activity: %w", err)
	}

	// Streak: consecutive UTC days with a deposit, counting back from the
	// last full day of the window.
	err = s.db.QueryRow(ctx, `
		WITH deposit_days AS (
			SELECT DISTINCT (occurred_at AT TIME ZONE 'UTC')::date AS day
			FROM activity_events
			WHERE user_id = $1 AND kind = 'deposit'
		),
		numbered AS (
			SELECT day, row_number() OVER (ORDER BY day DESC) AS rn
			FROM deposit_days
			WHERE day <= ($2 AT TIME ZONE 'UTC')::date - 1
		)
		SELECT count(*)
		FROM numbered
		WHERE day = ($2 AT TIME ZONE 'UTC')::date - rn::int`,
		userID, to,
	).Scan(&agg.StreakDays)
	if err != nil {
		return digest.Aggregate{}, fmt.Errorf("compute streak: %w", err)
	}
	return agg, nil
}
