package postgres

import (
	"context"
	"fmt"
)

// schemaStatements is executed in order at process startup. The pack contains
// no migration tool in any example repo (no golang-migrate, goose, or atlas
// import anywhere), so schema bootstrap is hand-rolled idempotent DDL instead
// of a generated migration.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		provider_job_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		request JSONB NOT NULL,
		video_url TEXT NOT NULL DEFAULT '',
		thumbnail_url TEXT NOT NULL DEFAULT '',
		credits_used INTEGER NOT NULL DEFAULT 0,
		error_message TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		completed_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_user_created ON jobs (user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_pending ON jobs (created_at) WHERE status = 'pending'`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_active ON jobs (updated_at) WHERE status IN ('submitted','queued','rendering','created')`,
	`CREATE TABLE IF NOT EXISTS rate_limits (
		api TEXT NOT NULL,
		caller TEXT NOT NULL,
		window_start TIMESTAMPTZ NOT NULL,
		window_secs INTEGER NOT NULL,
		max_calls INTEGER NOT NULL,
		used INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (api, caller)
	)`,
}

// EnsureSchema runs the idempotent DDL bootstrap. Safe to call on every
// process start; CREATE TABLE/INDEX IF NOT EXISTS never errors on a schema
// that already matches.
func EnsureSchema(ctx context.Context, pool PgxPool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("op=schema.ensure: %w", err)
		}
	}
	return nil
}
