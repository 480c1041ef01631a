package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const schemaLockKey int64 = 2026101601

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the pgvector extension, the resumes and jobs tables and
// an HNSW cosine index. The vector column width is fixed to dim.
func EnsureSchema(ctx context.Context, db *sql.DB, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("ensure schema: invalid embedding dimension %d", dim)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	query := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS resumes (
	id TEXT PRIMARY KEY,
	raw_text_hash TEXT NOT NULL,
	filename TEXT NOT NULL DEFAULT '',
	format TEXT NOT NULL,
	extracted_text TEXT NOT NULL DEFAULT '',
	features JSONB NOT NULL DEFAULT '{}'::jsonb,
	embedding vector(%[1]d),
	status TEXT NOT NULL,
	last_error TEXT NOT NULL DEFAULT '',
	failed_stage TEXT NOT NULL DEFAULT '',
	attempts INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_resumes_status ON resumes(status);
CREATE INDEX IF NOT EXISTS idx_resumes_embedding ON resumes USING hnsw (embedding vector_cosine_ops);

CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	raw_text TEXT NOT NULL,
	features JSONB NOT NULL DEFAULT '{}'::jsonb,
	embedding vector(%[1]d) NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
`, dim)
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Pinger reports database reachability for readiness checks.
type Pinger struct {
	db *sql.DB
}

func NewPinger(db *sql.DB) *Pinger {
	return &Pinger{db: db}
}

func (p *Pinger) Name() string { return "postgres" }

func (p *Pinger) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}
