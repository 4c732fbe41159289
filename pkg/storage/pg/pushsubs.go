package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/acornstash/notifier/pkg/pushsub"
)

// PushEndpointStore is the PostgreSQL implementation of pushsub.Store.
type PushEndpointStore struct {
	db *pgxpool.Pool
}

// NewPushEndpointStore creates a push endpoint store over the given pool.
func NewPushEndpointStore(db *pgxpool.Pool) *PushEndpointStore {
	return &PushEndpointStore{db: db}
}

func (s *PushEndpointStore) ListActive(ctx context.Context, userID string) ([]pushsub.Endpoint, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, token, device_name, is_active, created_at, last_updated
		FROM push_endpoints
		WHERE user_id = $1 AND is_active
		ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list active endpoints: %w", err)
	}
	defer rows.Close()

	eps := []pushsub.Endpoint{}
	for rows.Next() {
		var ep pushsub.Endpoint
		if err := rows.Scan(&ep.ID, &ep.UserID, &ep.Token, &ep.DeviceName,
			&ep.IsActive, &ep.CreatedAt, &ep.LastUpdated); err != nil {
			return nil, fmt.Errorf("scan endpoint: %w", err)
		}
		eps = append(eps, ep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate endpoints: %w", err)
	}
	return eps, nil
}

func (s *PushEndpointStore) Upsert(ctx context.Context, ep pushsub.Endpoint) error {
	if ep.ID == "" {
		return pushsub.ErrMissingEndpointID
	}
	if ep.UserID == "" {
		return pushsub.ErrMissingUserID
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO push_endpoints (id, user_id, token, device_name, is_active, created_at, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET token = EXCLUDED.token,
		    device_name = EXCLUDED.device_name,
		    is_active = EXCLUDED.is_active,
		    last_updated = EXCLUDED.last_updated`,
		ep.ID, ep.UserID, ep.Token, ep.DeviceName, ep.IsActive, ep.CreatedAt, ep.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("upsert endpoint: %w", err)
	}
	return nil
}

func (s *PushEndpointStore) Deactivate(ctx context.Context, userID, endpointID string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE push_endpoints
		SET is_active = false, last_updated = now()
		WHERE id = $1 AND user_id = $2`,
		endpointID, userID,
	)
	if err != nil {
		return fmt.Errorf("deactivate endpoint: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pushsub.ErrEndpointNotFound
	}
	return nil
}

func (s *PushEndpointStore) DeactivateByEndpoint(ctx context.Context, endpointID string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE push_endpoints
		SET is_active = false, last_updated = now()
		WHERE id = $1`,
		endpointID,
	)
	if err != nil {
		return fmt.Errorf("deactivate endpoint: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pushsub.ErrEndpointNotFound
	}
	return nil
}

func (s *PushEndpointStore) PurgeInactive(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM push_endpoints
		WHERE NOT is_active AND last_updated < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("purge inactive endpoints: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
