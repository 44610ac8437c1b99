package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock"
	"github.com/stretchr/testify/require"

	"github.com/tabdullah1215/videogen-control-plane/internal/adapter/repo/postgres"
)

func TestRateLimitStore_AcquireSlots_PartialGrant(t *testing.T) {
	t.Parallel()
	m, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer m.Close()
	store := postgres.NewRateLimitStore(m)
	ctx := context.Background()

	now := time.Now().UTC()
	m.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	rows := pgxmock.NewRows([]string{"window_start", "window_secs", "max_calls", "used"}).
		AddRow(now, 60, 5, 3)
	m.ExpectQuery("SELECT window_start").WithArgs("submit", "worker-1").WillReturnRows(rows)
	m.ExpectExec("UPDATE rate_limits SET").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	m.ExpectCommit()

	granted, err := store.AcquireSlots(ctx, "submit", "worker-1", 5)
	require.NoError(t, err)
	require.Equal(t, 2, granted)

	require.NoError(t, m.ExpectationsWereMet())
}

func TestRateLimitStore_AcquireSlots_WindowReset(t *testing.T) {
	t.Parallel()
	m, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer m.Close()
	store := postgres.NewRateLimitStore(m)
	ctx := context.Background()

	stale := time.Now().UTC().Add(-2 * time.Minute)
	m.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	rows := pgxmock.NewRows([]string{"window_start", "window_secs", "max_calls", "used"}).
		AddRow(stale, 60, 5, 5)
	m.ExpectQuery("SELECT window_start").WithArgs("poll", "worker-1").WillReturnRows(rows)
	m.ExpectExec("UPDATE rate_limits SET").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	m.ExpectCommit()

	granted, err := store.AcquireSlots(ctx, "poll", "worker-1", 3)
	require.NoError(t, err)
	require.Equal(t, 3, granted)

	require.NoError(t, m.ExpectationsWereMet())
}

func TestRateLimitStore_AcquireSlots_ZeroRequested(t *testing.T) {
	t.Parallel()
	m, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer m.Close()
	store := postgres.NewRateLimitStore(m)

	granted, err := store.AcquireSlots(context.Background(), "submit", "worker-1", 0)
	require.NoError(t, err)
	require.Equal(t, 0, granted)
}
