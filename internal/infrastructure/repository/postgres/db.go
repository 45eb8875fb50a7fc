package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	schemaLockID int64 = 2026051701

	maxOpenConns    = 10
	connMaxLifetime = 30 * time.Minute
	pingTimeout     = 5 * time.Second
)

// OpenDB opens a pgx-backed pool and fails fast when the server is unreachable.
func OpenDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxOpenConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS analyses (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	crop_type TEXT NOT NULL,
	primary_disease TEXT NOT NULL,
	average_confidence DOUBLE PRECISION NOT NULL,
	average_severity TEXT NOT NULL,
	location TEXT NOT NULL DEFAULT '',
	classifier TEXT NOT NULL,
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analyses_owner_created ON analyses(owner_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_analyses_crop_type ON analyses(crop_type);

CREATE TABLE IF NOT EXISTS image_results (
	id TEXT PRIMARY KEY,
	analysis_id TEXT NOT NULL REFERENCES analyses(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	image_ref TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	crop_type TEXT NOT NULL,
	disease TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	severity TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	UNIQUE (analysis_id, position)
);

CREATE TABLE IF NOT EXISTS recommendations (
	id TEXT PRIMARY KEY,
	analysis_id TEXT NOT NULL REFERENCES analyses(id) ON DELETE CASCADE,
	generated_by TEXT NOT NULL,
	content TEXT NOT NULL,
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_recommendations_analysis ON recommendations(analysis_id, created_at);
CREATE INDEX IF NOT EXISTS idx_recommendations_status ON recommendations(status, created_at DESC);
`

// EnsureSchema creates the tables used by the api and the worker. Both
// binaries call it on startup; the advisory lock serializes them.
func EnsureSchema(ctx context.Context, db *sql.DB) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	steps := []struct {
		name  string
		query string
		args  []any
	}{
		{"lock", `SELECT pg_advisory_xact_lock($1)`, []any{schemaLockID}},
		{"ddl", schemaDDL, nil},
	}
	for _, step := range steps {
		if _, err = tx.ExecContext(ctx, step.query, step.args...); err != nil {
			return fmt.Errorf("schema %s: %w", step.name, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}
