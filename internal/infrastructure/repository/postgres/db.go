package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsurePrimarySchema creates the primary-store tables. The advisory
// lock serializes bootstrap DDL across sync/calibrate/api startups.
func EnsurePrimarySchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026031701)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS mail_sources (
	id BIGSERIAL PRIMARY KEY,
	subject TEXT NOT NULL DEFAULT '',
	sender TEXT NOT NULL DEFAULT '',
	message_date TEXT NOT NULL DEFAULT '',
	attachment TEXT NOT NULL DEFAULT '',
	sheet_name TEXT NOT NULL DEFAULT '',
	ingested_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS nav_records (
	id BIGSERIAL PRIMARY KEY,
	product_name TEXT,
	product_code TEXT NOT NULL,
	nav_date INTEGER NOT NULL,
	unit_nav DOUBLE PRECISION NOT NULL,
	cumulative_nav DOUBLE PRECISION,
	source_id BIGINT REFERENCES mail_sources(id),
	ingested_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (product_code, nav_date)
);

CREATE INDEX IF NOT EXISTS idx_nav_records_code ON nav_records(product_code);
CREATE INDEX IF NOT EXISTS idx_nav_records_date ON nav_records(nav_date);

CREATE TABLE IF NOT EXISTS sync_state (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS extraction_failures (
	id BIGSERIAL PRIMARY KEY,
	subject TEXT NOT NULL DEFAULT '',
	sender TEXT NOT NULL DEFAULT '',
	message_date TEXT NOT NULL DEFAULT '',
	attachment TEXT NOT NULL DEFAULT '',
	sheet_name TEXT NOT NULL DEFAULT '',
	reason TEXT NOT NULL,
	failed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
