package db

import (
	"context"
	"errors"
	"fmt"

	"news_search/internal/models"
	"news_search/internal/settings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Database wraps a PostgreSQL pool and stores the single row of search
// preferences.
type Database struct {
	Pool *pgxpool.Pool
}

var _ settings.Store = (*Database)(nil)

const schema = `
	CREATE TABLE IF NOT EXISTS preferences (
		id SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
		subject TEXT NOT NULL,
		order_by TEXT NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);
`

// NewDB creates a pool for connString and makes sure the schema exists.
func NewDB(ctx context.Context, connString string) (*Database, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	db := &Database{Pool: pool}
	if err := db.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates the preferences table if it does not exist.
func (db *Database) Migrate(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create preferences table: %w", err)
	}
	return nil
}

// Ping checks the pool can reach the server.
func (db *Database) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

func (db *Database) Close() {
	db.Pool.Close()
}

// Load returns settings.ErrNotFound until something has been saved.
func (db *Database) Load(ctx context.Context) (models.Preferences, error) {
	var p models.Preferences
	err := db.Pool.QueryRow(ctx, `
		SELECT subject, order_by FROM preferences WHERE id = 1
	`).Scan(&p.Subject, &p.OrderBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Preferences{}, settings.ErrNotFound
	}
	if err != nil {
		return models.Preferences{}, fmt.Errorf("load preferences: %w", err)
	}
	return p, nil
}

// Save upserts the preferences row.
func (db *Database) Save(ctx context.Context, p models.Preferences) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO preferences (id, subject, order_by)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE
		SET subject = EXCLUDED.subject, order_by = EXCLUDED.order_by, updated_at = NOW()
	`, p.Subject, p.OrderBy)
	if err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}
