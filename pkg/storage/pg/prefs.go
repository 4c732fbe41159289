package pg

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/acornstash/notifier/pkg/prefs"
	"github.com/acornstash/notifier/pkg/quiethours"
)

// PrefsStore is the PostgreSQL implementation of prefs.Store. Category
// toggles and the quiet-hours window are stored as JSONB documents; the
// digest cadence is a plain column so cohort queries stay indexable.
type PrefsStore struct {
	db *pgxpool.Pool
}

// NewPrefsStore creates a preference store over the given pool.
func NewPrefsStore(db *pgxpool.Pool) *PrefsStore {
	return &PrefsStore{db: db}
}

func (s *PrefsStore) Get(ctx context.Context, userID string) (*prefs.UserPreferences, error) {
	var (
		p          prefs.UserPreferences
		categories []byte
		quiet      []byte
		digest     string
	)
	err := s.db.QueryRow(ctx, `
		SELECT categories, quiet_hours, digest
		FROM user_notification_prefs
		WHERE user_id = $1`,
		userID,
	).Scan(&categories, &quiet, &digest)
	if err != nil {
		if isNotFound(err) {
			return nil, prefs.ErrNotFound
		}
		return nil, fmt.Errorf("get preferences: %w", err)
	}

	if len(categories) > 0 {
		if err := json.Unmarshal(categories, &p.Categories); err != nil {
			return nil, fmt.Errorf("unmarshal category preferences: %w", err)
		}
	}
	if len(quiet) > 0 {
		if err := json.Unmarshal(quiet, &p.QuietHours); err != nil {
			return nil, fmt.Errorf("unmarshal quiet hours: %w", err)
		}
	} else {
		p.QuietHours = quiethours.Disabled()
	}
	p.Digest = prefs.DigestFrequency(digest)
	return &p, nil
}

func (s *PrefsStore) Put(ctx context.Context, userID string, p prefs.UserPreferences) error {
	categories, err := json.Marshal(p.Categories)
	if err != nil {
		return fmt.Errorf("marshal category preferences: %w", err)
	}
	quiet, err := json.Marshal(p.QuietHours)
	if err != nil {
		return fmt.Errorf("marshal quiet hours: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO user_notification_prefs (user_id, categories, quiet_hours, digest, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (user_id) DO UPDATE
		SET categories = EXCLUDED.categories,
		    quiet_hours = EXCLUDED.quiet_hours,
		    digest = EXCLUDED.digest,
		    updated_at = now()`,
		userID, categories, quiet, string(p.Digest),
	)
	if err != nil {
		return fmt.Errorf("put preferences: %w", err)
	}
	return nil
}

func (s *PrefsStore) ListByDigest(ctx context.Context, freq prefs.DigestFrequency) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT user_id
		FROM user_notification_prefs
		WHERE digest = $1
		ORDER BY user_id`,
		string(freq),
	)
	if err != nil {
		return nil, fmt.Errorf("list digest subscribers: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan digest subscriber: %w", err)
		}
		users = append(users, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate digest subscribers: %w", err)
	}
	return users, nil
}
