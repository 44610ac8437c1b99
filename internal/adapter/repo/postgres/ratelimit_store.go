package postgres

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tabdullah1215/videogen-control-plane/internal/domain"
)

// RateLimitStore grants provider-call slots atomically under concurrent
// access using a single SELECT ... FOR UPDATE transaction per caller. This
// is the only place in the system where a multi-statement read-then-write
// would be a bug, so the transaction boundary here is the single most
// load-bearing piece of code in the repo.
type RateLimitStore struct{ Pool PgxPool }

// NewRateLimitStore constructs a RateLimitStore with the given pool.
func NewRateLimitStore(p PgxPool) *RateLimitStore { return &RateLimitStore{Pool: p} }

// Seed ensures a counter row exists for (api, caller) with the given
// ceiling/window, without resetting an existing row's usage.
func (r *RateLimitStore) Seed(ctx domain.Context, api, caller string, maxCalls int, windowSecs int) error {
	q := `INSERT INTO rate_limits (api, caller, window_start, window_secs, max_calls, used)
		VALUES ($1, $2, $3, $4, $5, 0)
		ON CONFLICT (api, caller) DO NOTHING`
	_, err := r.Pool.Exec(ctx, q, api, caller, time.Now().UTC(), windowSecs, maxCalls)
	if err != nil {
		return fmt.Errorf("op=ratelimit.seed: %w", err)
	}
	return nil
}

// AcquireSlots reserves up to `requested` call slots for (api, caller) in the
// current window, returning the number actually granted (0..requested). The
// window resets and the used counter is zeroed when the elapsed time since
// window_start exceeds window_secs.
func (r *RateLimitStore) AcquireSlots(ctx domain.Context, api, caller string, requested int) (int, error) {
	tracer := otel.Tracer("repo.ratelimit")
	ctx, span := tracer.Start(ctx, "ratelimit.AcquireSlots")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT FOR UPDATE"),
		attribute.String("db.sql.table", "rate_limits"),
		attribute.String("ratelimit.api", api),
		attribute.String("ratelimit.caller", caller),
	)

	if requested <= 0 {
		return 0, nil
	}

	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return 0, fmt.Errorf("op=ratelimit.acquire.begin_tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				slog.Error("failed to rollback rate limit transaction",
					slog.String("api", api), slog.String("caller", caller), slog.Any("error", rbErr))
			}
		}
	}()

	selectQ := `SELECT window_start, window_secs, max_calls, used FROM rate_limits WHERE api = $1 AND caller = $2 FOR UPDATE`
	row := tx.QueryRow(ctx, selectQ, api, caller)

	var windowStart time.Time
	var windowSecs, maxCalls, used int
	if err := row.Scan(&windowStart, &windowSecs, &maxCalls, &used); err != nil {
		if err == pgx.ErrNoRows {
			return 0, fmt.Errorf("op=ratelimit.acquire: %w", domain.ErrNotFound)
		}
		return 0, fmt.Errorf("op=ratelimit.acquire.select: %w", err)
	}

	now := time.Now().UTC()
	if now.Sub(windowStart) > time.Duration(windowSecs)*time.Second {
		windowStart = now
		used = 0
	}

	available := maxCalls - used
	if available < 0 {
		available = 0
	}
	granted := requested
	if granted > available {
		granted = available
	}

	updateQ := `UPDATE rate_limits SET window_start = $3, used = $4 WHERE api = $1 AND caller = $2`
	if _, err := tx.Exec(ctx, updateQ, api, caller, windowStart, used+granted); err != nil {
		return 0, fmt.Errorf("op=ratelimit.acquire.update: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("op=ratelimit.acquire.commit: %w", err)
	}
	committed = true

	slog.Info("rate limit slots acquired",
		slog.String("api", api), slog.String("caller", caller),
		slog.Int("requested", requested), slog.Int("granted", granted))
	return granted, nil
}
