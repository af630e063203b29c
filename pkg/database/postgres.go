package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/noah-isme/delivery-ops-api/pkg/config"
)

// NewPostgres returns a configured PostgreSQL client.
func NewPostgres(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// schema is applied statement by statement; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS deliveries (
	id TEXT PRIMARY KEY,
	client_name TEXT NOT NULL DEFAULT '',
	driver_name TEXT NOT NULL DEFAULT '',
	owner_email TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'in_progress' CHECK (status IN ('in_progress', 'finalized', 'returned')),
	problem_type TEXT,
	problem_note TEXT,
	being_monitored BOOLEAN NOT NULL DEFAULT FALSE,
	checkin_time TIMESTAMPTZ,
	checkout_time TIMESTAMPTZ,
	duration_minutes INTEGER,
	attachments TEXT[] NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT deliveries_checkout_terminal CHECK (checkout_time IS NULL OR status <> 'in_progress'),
	CONSTRAINT deliveries_monitor_needs_problem CHECK (NOT being_monitored OR COALESCE(problem_type, '') <> '')
)`,
	`CREATE INDEX IF NOT EXISTS idx_deliveries_status ON deliveries (status)`,
	`CREATE INDEX IF NOT EXISTS idx_deliveries_owner ON deliveries (LOWER(owner_email))`,
	`CREATE TABLE IF NOT EXISTS delivery_comments (
	id TEXT PRIMARY KEY,
	delivery_id TEXT NOT NULL REFERENCES deliveries(id) ON DELETE CASCADE,
	author_email TEXT NOT NULL,
	author_name TEXT NOT NULL DEFAULT '',
	body TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	`CREATE INDEX IF NOT EXISTS idx_delivery_comments_delivery ON delivery_comments (delivery_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS driver_locations (
	user_email TEXT PRIMARY KEY,
	user_name TEXT NOT NULL DEFAULT '',
	latitude DOUBLE PRECISION NOT NULL,
	longitude DOUBLE PRECISION NOT NULL,
	is_online BOOLEAN NOT NULL DEFAULT TRUE,
	last_update TIMESTAMPTZ NOT NULL
)`,
}

// EnsureSchema creates the tables backing the delivery and presence stores.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
