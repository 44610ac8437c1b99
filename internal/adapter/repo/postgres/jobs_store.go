package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tabdullah1215/videogen-control-plane/internal/domain"
)

// JobStore persists and loads video-generation jobs from PostgreSQL using a
// minimal pgx pool.
type JobStore struct{ Pool PgxPool }

// NewJobStore constructs a JobStore with the given pool.
func NewJobStore(p PgxPool) *JobStore { return &JobStore{Pool: p} }

const jobColumns = `id, user_id, provider_job_id, status, request, video_url, thumbnail_url, credits_used, error_message, created_at, updated_at, completed_at`

func scanJob(row pgx.Row) (domain.Job, error) {
	var j domain.Job
	var reqBytes []byte
	var completedAt *time.Time
	if err := row.Scan(&j.ID, &j.UserID, &j.ProviderJobID, &j.Status, &reqBytes, &j.VideoURL, &j.ThumbnailURL, &j.CreditsUsed, &j.ErrorMessage, &j.CreatedAt, &j.UpdatedAt, &completedAt); err != nil {
		return domain.Job{}, err
	}
	if len(reqBytes) > 0 {
		if err := json.Unmarshal(reqBytes, &j.Request); err != nil {
			return domain.Job{}, fmt.Errorf("op=job.scan.unmarshal_request: %w", err)
		}
	}
	j.CompletedAt = completedAt
	return j, nil
}

// Insert inserts a job in the pending state and returns its id.
func (r *JobStore) Insert(ctx domain.Context, j domain.Job) (string, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.Insert")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "jobs"),
	)

	id := j.ID
	if id == "" {
		id = uuid.New().String()
	}
	reqBytes, err := json.Marshal(j.Request)
	if err != nil {
		return "", fmt.Errorf("op=job.insert.marshal_request: %w", err)
	}
	now := time.Now().UTC()
	status := j.Status
	if status == "" {
		status = domain.JobPending
	}
	q := `INSERT INTO jobs (id, user_id, provider_job_id, status, request, video_url, thumbnail_url, credits_used, error_message, created_at, updated_at, completed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	_, err = r.Pool.Exec(ctx, q, id, j.UserID, j.ProviderJobID, status, reqBytes, j.VideoURL, j.ThumbnailURL, j.CreditsUsed, j.ErrorMessage, now, now, j.CompletedAt)
	if err != nil {
		return "", fmt.Errorf("op=job.insert: %w", err)
	}
	return id, nil
}

// SelectPending returns up to limit rows in status=pending, oldest createdAt first.
func (r *JobStore) SelectPending(ctx domain.Context, limit int) ([]domain.Job, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.SelectPending")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "jobs"),
	)

	q := `SELECT ` + jobColumns + ` FROM jobs WHERE status = $1 ORDER BY created_at ASC LIMIT $2`
	rows, err := r.Pool.Query(ctx, q, domain.JobPending, limit)
	if err != nil {
		return nil, fmt.Errorf("op=job.select_pending: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows, "op=job.select_pending")
}

// SelectActive returns up to limit rows in a non-terminal, provider-known
// state, oldest updatedAt first. The legacy "created" status is folded into
// this set alongside submitted/queued/rendering.
func (r *JobStore) SelectActive(ctx domain.Context, limit int) ([]domain.Job, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.SelectActive")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "jobs"),
	)

	q := `SELECT ` + jobColumns + ` FROM jobs WHERE status IN ($1,$2,$3,$4) ORDER BY updated_at ASC LIMIT $5`
	rows, err := r.Pool.Query(ctx, q, domain.JobSubmitted, domain.JobQueued, domain.JobRendering, domain.JobCreated, limit)
	if err != nil {
		return nil, fmt.Errorf("op=job.select_active: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows, "op=job.select_active")
}

func collectJobs(rows pgx.Rows, op string) ([]domain.Job, error) {
	var jobs []domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("%s.scan: %w", op, err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s.rows: %w", op, err)
	}
	return jobs, nil
}

// Update patches fields on a job using an explicit transaction, following the
// same begin/deferred-rollback-unless-committed idiom as the rate limiter's
// AcquireSlots.
func (r *JobStore) Update(ctx domain.Context, id string, patch domain.JobPatch) error {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.Update")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "jobs"),
	)

	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("op=job.update.begin_tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	now := time.Now().UTC()
	q := `UPDATE jobs SET
		provider_job_id = COALESCE($2, provider_job_id),
		status = COALESCE($3, status),
		video_url = COALESCE($4, video_url),
		thumbnail_url = COALESCE($5, thumbnail_url),
		credits_used = COALESCE($6, credits_used),
		error_message = COALESCE($7, error_message),
		updated_at = $8,
		completed_at = CASE WHEN $9 THEN $8 ELSE completed_at END
		WHERE id = $1`
	var statusArg *string
	if patch.Status != nil {
		s := string(*patch.Status)
		statusArg = &s
	}
	result, err := tx.Exec(ctx, q, id, patch.ProviderJobID, statusArg, patch.VideoURL, patch.ThumbnailURL, patch.CreditsUsed, patch.ErrorMessage, now, patch.SetCompletedNow)
	if err != nil {
		return fmt.Errorf("op=job.update.exec: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("op=job.update: %w", domain.ErrNotFound)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("op=job.update.commit: %w", err)
	}
	committed = true
	return nil
}

// GetByID loads a single job.
func (r *JobStore) GetByID(ctx domain.Context, id string) (domain.Job, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.GetByID")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "jobs"),
	)

	q := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`
	row := r.Pool.QueryRow(ctx, q, id)
	j, err := scanJob(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Job{}, fmt.Errorf("op=job.get: %w", domain.ErrNotFound)
		}
		return domain.Job{}, fmt.Errorf("op=job.get: %w", err)
	}
	return j, nil
}

// ListByUser returns a user's jobs, newest first.
func (r *JobStore) ListByUser(ctx domain.Context, userID string) ([]domain.Job, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.ListByUser")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "jobs"),
	)

	q := `SELECT ` + jobColumns + ` FROM jobs WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("op=job.list_by_user: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows, "op=job.list_by_user")
}
