package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/zoning-feasibility/internal/core/domain"
)

// BuildRepository is the Postgres build journal: one row per index build.
type BuildRepository struct {
	db *sql.DB
}

func NewBuildRepository(db *sql.DB) *BuildRepository {
	return &BuildRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *BuildRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101801)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS index_builds (
	id TEXT PRIMARY KEY,
	collection TEXT NOT NULL,
	status TEXT NOT NULL,
	documents INTEGER NOT NULL DEFAULT 0,
	chunks INTEGER NOT NULL DEFAULT 0,
	skipped INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_index_builds_collection_started ON index_builds(collection, started_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *BuildRepository) Start(ctx context.Context, build *domain.IndexBuild) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO index_builds (id, collection, status, started_at)
VALUES ($1,$2,$3,$4)
`, build.ID, build.Collection, string(build.Status), build.StartedAt)
	if err != nil {
		return fmt.Errorf("insert index build: %w", err)
	}
	return nil
}

func (r *BuildRepository) Finish(ctx context.Context, build *domain.IndexBuild) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE index_builds
SET status = $2, documents = $3, chunks = $4, skipped = $5, error_message = $6, finished_at = $7
WHERE id = $1
`, build.ID, string(build.Status), build.Documents, build.Chunks, build.Skipped, build.Error, build.FinishedAt)
	if err != nil {
		return fmt.Errorf("update index build: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("index build rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrNotFound, "finish index build", fmt.Errorf("build %s", build.ID))
	}
	return nil
}

func (r *BuildRepository) Latest(ctx context.Context, collection string) (*domain.IndexBuild, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, collection, status, documents, chunks, skipped, error_message, started_at, finished_at
FROM index_builds
WHERE collection = $1
ORDER BY started_at DESC
LIMIT 1
`, collection)

	var (
		build      domain.IndexBuild
		status     string
		finishedAt sql.NullTime
	)
	err := row.Scan(
		&build.ID, &build.Collection, &status, &build.Documents, &build.Chunks,
		&build.Skipped, &build.Error, &build.StartedAt, &finishedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "latest index build", err)
		}
		return nil, fmt.Errorf("scan index build: %w", err)
	}

	build.Status = domain.BuildStatus(status)
	if finishedAt.Valid {
		t := finishedAt.Time
		build.FinishedAt = &t
	}
	return &build, nil
}
