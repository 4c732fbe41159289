package pg

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/acornstash/notifier/pkg/dispatch"
)

// UserDirectory resolves user email addresses from the product's users
// table. Satisfies dispatch.Directory.
type UserDirectory struct {
	db *pgxpool.Pool
}

// NewUserDirectory creates a directory over the given pool.
func NewUserDirectory(db *pgxpool.Pool) *UserDirectory {
	return &UserDirectory{db: db}
}

func (d *UserDirectory) EmailAddress(ctx context.Context, userID string) (string, error) {
	var email string
	err := d.db.QueryRow(ctx,
		`SELECT email FROM users WHERE id = $1`,
		userID,
	).Scan(&email)
	if err != nil {
		if isNotFound(err) {
			return "", dispatch.ErrNoEmailAddress
		}
		return "", fmt.Errorf("lookup email address: %w", err)
	}
	if email == "" {
		return "", dispatch.ErrNoEmailAddress
	}
	return email, nil
}
