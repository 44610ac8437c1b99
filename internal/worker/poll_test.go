package worker_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabdullah1215/videogen-control-plane/internal/adapter/provider/providerstub"
	"github.com/tabdullah1215/videogen-control-plane/internal/domain"
	"github.com/tabdullah1215/videogen-control-plane/internal/worker"
)

// S1 — happy path poll leg: queued -> rendering -> completed across ticks.
func TestPollWorker_HappyPath_ReachesTerminal(t *testing.T) {
	store := newFakeJobStore(domain.Job{ID: "job-1", Status: domain.JobSubmitted, ProviderJobID: "p-1"})
	stub := providerstub.New()
	w := worker.NewPollWorker(store, &fakeLimiter{grant: -1}, stub, "worker-1", 10)

	for i := 0; i < 3; i++ {
		_, err := w.RunOnce(context.Background())
		require.NoError(t, err)
	}

	j, err := store.GetByID(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobCompleted, j.Status)
	assert.NotEmpty(t, j.VideoURL)
	assert.NotNil(t, j.CompletedAt)
	assert.Equal(t, 10, j.CreditsUsed)
}

// S3 — transient poll failure leaves the row unchanged; next tick recovers.
func TestPollWorker_TransientFailure_LeavesRowUnchanged(t *testing.T) {
	store := newFakeJobStore(domain.Job{ID: "job-1", Status: domain.JobRendering, ProviderJobID: "p-1"})
	stub := providerstub.New()
	stub.FailNextCheck = domain.ErrUpstreamTimeout
	w := worker.NewPollWorker(store, &fakeLimiter{grant: -1}, stub, "worker-1", 10)

	report, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)

	j, err := store.GetByID(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobRendering, j.Status)

	report2, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report2.Skipped)
}

// Poll-to-failed must not set completedAt; that field is reserved for the
// completed transition only.
func TestPollWorker_ProviderReportsFailed_LeavesCompletedAtUnset(t *testing.T) {
	store := newFakeJobStore(domain.Job{ID: "job-1", Status: domain.JobRendering, ProviderJobID: "p-1"})
	stub := providerstub.New()
	stub.NextCheckResult = &domain.JobStatusResult{
		Status:       domain.ProviderStatusFailed,
		ErrorMessage: "provider render failed",
	}
	w := worker.NewPollWorker(store, &fakeLimiter{grant: -1}, stub, "worker-1", 10)

	report, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)

	j, err := store.GetByID(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobFailed, j.Status)
	assert.Nil(t, j.CompletedAt)
}

func TestPollWorker_RateLimited_NoSlots(t *testing.T) {
	store := newFakeJobStore(domain.Job{ID: "job-1", Status: domain.JobSubmitted, ProviderJobID: "p-1"})
	w := worker.NewPollWorker(store, &fakeLimiter{grant: 0}, providerstub.New(), "worker-1", 10)

	report, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "rate_limited", report.Reason)
}

// S6 — fairness under backlog: batch never exceeds the configured size.
func TestPollWorker_BatchSizeRespected(t *testing.T) {
	jobs := make([]domain.Job, 0, 100)
	for i := 0; i < 100; i++ {
		jobs = append(jobs, domain.Job{ID: "job-" + string(rune(i)), Status: domain.JobRendering, ProviderJobID: "p"})
	}
	store := newFakeJobStore(jobs...)
	w := worker.NewPollWorker(store, &fakeLimiter{grant: -1}, providerstub.New(), "worker-1", 10)

	report, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, report.Considered)
}
