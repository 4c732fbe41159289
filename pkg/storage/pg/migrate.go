package pg

import (
	"context"
	"errors"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

var (
	ErrMigrationsFailed      = errors.New("failed to apply migrations")
	ErrMigrationsDirNotFound = errors.New("migrations directory not found")
)

// Migrate applies pending schema migrations from cfg.MigrationsPath.
// Goose speaks database/sql, so the pgx pool is bridged through stdlib;
// the bridge shares the pool's connections and is closed afterwards.
func Migrate(ctx context.Context, pool *pgxpool.Pool, cfg Config) error {
	if _, err := os.Stat(cfg.MigrationsPath); err != nil {
		if os.IsNotExist(err) {
			return errors.Join(ErrMigrationsDirNotFound, err)
		}
		return errors.Join(ErrMigrationsFailed, err)
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Join(ErrMigrationsFailed, err)
	}
	if err := goose.UpContext(ctx, db, cfg.MigrationsPath); err != nil {
		return errors.Join(ErrMigrationsFailed, err)
	}
	return nil
}
