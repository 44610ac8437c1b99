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

// S1 — happy path submit leg.
func TestSubmitWorker_HappyPath(t *testing.T) {
	store := newFakeJobStore(domain.Job{
		ID: "job-1", Status: domain.JobPending,
		Request: domain.VideoRequest{AvatarID: "a1", VoiceMode: domain.VoiceModeTTS, ScriptText: "hi"},
	})
	w := worker.NewSubmitWorker(store, &fakeLimiter{grant: -1}, providerstub.New(), "worker-1", 5)

	report, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Submitted)
	assert.Equal(t, 0, report.Failed)

	j, err := store.GetByID(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobQueued, j.Status)
	assert.NotEmpty(t, j.ProviderJobID)
}

// S2 — rate-limit split: submit worker moves exactly the granted slot count.
func TestSubmitWorker_RateLimitSplit(t *testing.T) {
	jobs := make([]domain.Job, 0, 20)
	for i := 0; i < 20; i++ {
		jobs = append(jobs, domain.Job{ID: "job-" + string(rune('a'+i)), Status: domain.JobPending, Request: domain.VideoRequest{AvatarID: "a1"}})
	}
	store := newFakeJobStore(jobs...)
	w := worker.NewSubmitWorker(store, &fakeLimiter{grant: 5}, providerstub.New(), "worker-1", 20)

	report, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, report.Submitted)
	assert.Equal(t, 5, report.SlotsGranted)
}

func TestSubmitWorker_RateLimited_NoSlots(t *testing.T) {
	store := newFakeJobStore(domain.Job{ID: "job-1", Status: domain.JobPending, Request: domain.VideoRequest{AvatarID: "a1"}})
	w := worker.NewSubmitWorker(store, &fakeLimiter{grant: 0}, providerstub.New(), "worker-1", 5)

	report, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Submitted)
	assert.Equal(t, "rate_limited", report.Reason)
}

// S4 — submit fatal: provider 400 marks the job failed and it leaves the pending set.
func TestSubmitWorker_FatalProviderError_MarksFailed(t *testing.T) {
	store := newFakeJobStore(domain.Job{ID: "job-1", Status: domain.JobPending, Request: domain.VideoRequest{AvatarID: "bad-avatar"}})
	stub := providerstub.New()
	stub.FailNextCreate = domain.ErrInvalidArgument
	w := worker.NewSubmitWorker(store, &fakeLimiter{grant: -1}, stub, "worker-1", 5)

	report, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)

	j, err := store.GetByID(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobFailed, j.Status)

	pending, err := store.SelectPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSubmitWorker_ProviderRateLimited_StopsBatch(t *testing.T) {
	store := newFakeJobStore(
		domain.Job{ID: "job-1", Status: domain.JobPending, Request: domain.VideoRequest{AvatarID: "a1"}},
		domain.Job{ID: "job-2", Status: domain.JobPending, Request: domain.VideoRequest{AvatarID: "a2"}},
	)
	stub := providerstub.New()
	stub.FailNextCreate = &domain.RateLimitedError{}
	w := worker.NewSubmitWorker(store, &fakeLimiter{grant: -1}, stub, "worker-1", 5)

	report, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "provider_rate_limited", report.Reason)
	assert.Equal(t, 0, report.Failed)
}
