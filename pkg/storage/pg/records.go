package pg

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/acornstash/notifier/pkg/notify"
)

// RecordStore is the PostgreSQL implementation of notify.RecordStore.
type RecordStore struct {
	db *pgxpool.Pool
}

// NewRecordStore creates a record store over the given pool.
func NewRecordStore(db *pgxpool.Pool) *RecordStore {
	return &RecordStore{db: db}
}

const recordColumns = `id, user_id, category, title, body, data, priority, channels,
	resolved_channels, status, read, read_at, delivery_error, scheduled_for,
	expires_at, locked_until, created_at`

func (s *RecordStore) Create(ctx context.Context, rec notify.Record) error {
	if rec.ID == "" {
		return notify.ErrRecordNotFound
	}
	if rec.UserID == "" {
		return notify.ErrMissingUserID
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	data, err := marshalData(rec.Data)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO notification_records (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		rec.ID, rec.UserID, rec.Category, rec.Title, rec.Body, data,
		rec.Priority, channelStrings(rec.Channels), channelStrings(rec.Resolved),
		rec.Status, rec.Read, rec.ReadAt, rec.DeliveryErr, rec.ScheduledFor,
		rec.ExpiresAt, rec.LockedUntil, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func (s *RecordStore) Get(ctx context.Context, userID, recordID string) (*notify.Record, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+recordColumns+`
		FROM notification_records
		WHERE id = $1 AND user_id = $2`,
		recordID, userID,
	)

	rec, err := scanRecord(row)
	if err != nil {
		if isNotFound(err) {
			return nil, notify.ErrRecordNotFound
		}
		return nil, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

func (s *RecordStore) List(ctx context.Context, userID string, opts notify.ListOptions) ([]notify.Record, error) {
	var (
		where = []string{
			"user_id = $1",
			"(expires_at IS NULL OR expires_at > now())",
		}
		args = []any{userID}
	)

	if opts.OnlyUnread {
		where = append(where, "NOT read")
	}
	if len(opts.Categories) > 0 {
		args = append(args, categoryStrings(opts.Categories))
		where = append(where, fmt.Sprintf("category = ANY($%d)", len(args)))
	}
	if opts.Since != nil {
		args = append(args, *opts.Since)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}

	query := `
		SELECT ` + recordColumns + `
		FROM notification_records
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_at DESC`
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

func (s *RecordStore) MarkRead(ctx context.Context, userID string, recordIDs ...string) error {
	if len(recordIDs) == 0 {
		return nil
	}
	_, err := s.db.Exec(ctx, `
		UPDATE notification_records
		SET read = true, read_at = now()
		WHERE user_id = $1 AND id = ANY($2) AND NOT read`,
		userID, recordIDs,
	)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

func (s *RecordStore) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `
		SELECT count(*)
		FROM notification_records
		WHERE user_id = $1 AND NOT read
		  AND (expires_at IS NULL OR expires_at > now())`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

func (s *RecordStore) FinishDispatch(ctx context.Context, recordID string, resolved []notify.Channel, status notify.Status, deliveryErr string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE notification_records
		SET resolved_channels = $2, status = $3, delivery_error = $4, locked_until = NULL
		WHERE id = $1 AND status = $5`,
		recordID, channelStrings(resolved), status, deliveryErr, notify.StatusScheduled,
	)
	if err != nil {
		return fmt.Errorf("finish dispatch: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Distinguish "gone" from "already finished by another pass".
	var exists bool
	err = s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM notification_records WHERE id = $1)`,
		recordID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("finish dispatch: %w", err)
	}
	if !exists {
		return notify.ErrRecordNotFound
	}
	return notify.ErrAlreadyDispatched
}

func (s *RecordStore) ClaimDue(ctx context.Context, now time.Time, lockFor time.Duration, limit int) ([]notify.Record, error) {
	rows, err := s.db.Query(ctx, `
		UPDATE notification_records
		SET locked_until = $1
		WHERE id IN (
			SELECT id
			FROM notification_records
			WHERE status = $2
			  AND (scheduled_for IS NULL OR scheduled_for <= $3)
			  AND (locked_until IS NULL OR locked_until <= $3)
			ORDER BY COALESCE(scheduled_for, created_at), created_at
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+recordColumns,
		now.Add(lockFor), notify.StatusScheduled, now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("claim due records: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

func collectRecords(rows pgx.Rows) ([]notify.Record, error) {
	recs := []notify.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		recs = append(recs, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return recs, nil
}

func scanRecord(row pgx.Row) (*notify.Record, error) {
	var (
		rec      notify.Record
		data     []byte
		channels []string
		resolved []string
	)
	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.Category, &rec.Title, &rec.Body, &data,
		&rec.Priority, &channels, &resolved, &rec.Status, &rec.Read,
		&rec.ReadAt, &rec.DeliveryErr, &rec.ScheduledFor, &rec.ExpiresAt,
		&rec.LockedUntil, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &rec.Data); err != nil {
			return nil, fmt.Errorf("unmarshal record data: %w", err)
		}
	}
	rec.Channels = toChannels(channels)
	rec.Resolved = toChannels(resolved)
	return &rec, nil
}

func marshalData(data map[string]any) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal record data: %w", err)
	}
	return b, nil
}

func channelStrings(chs []notify.Channel) []string {
	if chs == nil {
		return nil
	}
	out := make([]string, len(chs))
	for i, ch := range chs {
		out[i] = string(ch)
	}
	return out
}

func toChannels(ss []string) []notify.Channel {
	if ss == nil {
		return nil
	}
	out := make([]notify.Channel, len(ss))
	for i, s := range ss {
		out[i] = notify.Channel(s)
	}
	return out
}

func categoryStrings(cats []notify.Category) []string {
	out := make([]string, len(cats))
	for i, c := range cats {
		out[i] = string(c)
	}
	return out
}
