package worker

import (
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tabdullah1215/videogen-control-plane/internal/domain"
	"github.com/tabdullah1215/videogen-control-plane/internal/observability"
)

// PollReport summarizes a single PollWorker.RunOnce invocation.
type PollReport struct {
	Considered   int
	Completed    int
	Failed       int
	StillRendering int
	Skipped      int
	SlotsGranted int
	Reason       string
}

// PollWorker advances in-flight jobs toward a terminal state by checking
// their status with the provider under the shared rate-limit budget.
type PollWorker struct {
	Jobs      domain.JobRepository
	Limiter   domain.RateLimitStore
	Provider  domain.Provider
	Caller    string
	BatchSize int
}

// NewPollWorker constructs a PollWorker.
func NewPollWorker(jobs domain.JobRepository, limiter domain.RateLimitStore, p domain.Provider, caller string, batchSize int) *PollWorker {
	return &PollWorker{Jobs: jobs, Limiter: limiter, Provider: p, Caller: caller, BatchSize: batchSize}
}

// RunOnce selects up to BatchSize active jobs and checks each with the
// provider. A transient error for one job is skipped (retried next tick);
// a job is only ever marked failed on a provider-reported terminal failure,
// never on a transient polling error. A RateLimited provider error stops the
// batch immediately.
func (w *PollWorker) RunOnce(ctx domain.Context) (PollReport, error) {
	tracer := otel.Tracer("worker.poll")
	ctx, span := tracer.Start(ctx, "PollWorker.RunOnce")
	defer span.End()

	report := PollReport{}

	jobs, err := w.Jobs.SelectActive(ctx, w.BatchSize)
	if err != nil {
		return report, fmt.Errorf("op=worker.poll.select_active: %w", err)
	}
	report.Considered = len(jobs)
	if len(jobs) == 0 {
		observability.RecordWorkerBatch("poll", "empty", 0)
		return report, nil
	}
	span.SetAttributes(attribute.Int("worker.considered", len(jobs)))

	granted, err := w.Limiter.AcquireSlots(ctx, rateLimitAPIPoll, w.Caller, len(jobs))
	if err != nil {
		return report, fmt.Errorf("op=worker.poll.acquire_slots: %w", err)
	}
	report.SlotsGranted = granted
	if granted == 0 {
		report.Reason = "rate_limited"
		observability.RecordWorkerBatch("poll", "rate_limited", 0)
		return report, nil
	}

	for i := 0; i < granted && i < len(jobs); i++ {
		j := jobs[i]
		if j.ProviderJobID == "" {
			// Still awaiting submission (legacy "created" status); nothing to poll yet.
			report.Skipped++
			continue
		}

		res, err := w.Provider.CheckJobStatus(ctx, j.ProviderJobID)
		if err != nil {
			if domain.IsRateLimited(err) {
				slog.Info("poll worker stopping batch: provider rate limited",
					slog.String("job_id", j.ID), slog.Int("completed", report.Completed))
				report.Reason = "provider_rate_limited"
				break
			}
			slog.Warn("poll worker transient status-check error, will retry next tick",
				slog.String("job_id", j.ID), slog.Any("error", err))
			report.Skipped++
			observability.RecordWorkerJob("poll", "skipped")
			continue
		}

		status := domain.JobStatus(res.Status)
		patch := domain.JobPatch{
			Status:       &status,
			VideoURL:     &res.VideoURL,
			ThumbnailURL: &res.ThumbnailURL,
			CreditsUsed:  &res.CreditsUsed,
		}
		if res.ErrorMessage != "" {
			patch.ErrorMessage = &res.ErrorMessage
		}
		if status == domain.JobCompleted {
			patch.SetCompletedNow = true
		}
		if upErr := w.Jobs.Update(ctx, j.ID, patch); upErr != nil {
			slog.Error("poll worker failed to persist status update", slog.String("job_id", j.ID), slog.Any("error", upErr))
			report.Skipped++
			continue
		}

		switch status {
		case domain.JobCompleted:
			report.Completed++
			observability.RecordWorkerJob("poll", "completed")
		case domain.JobFailed:
			report.Failed++
			observability.RecordWorkerJob("poll", "failed")
		default:
			report.StillRendering++
			observability.RecordWorkerJob("poll", "in_progress")
		}
	}

	outcome := "ok"
	if report.Reason != "" {
		outcome = report.Reason
	}
	observability.RecordWorkerBatch("poll", outcome, granted)
	slog.Info("poll worker batch complete",
		slog.Int("considered", report.Considered),
		slog.Int("completed", report.Completed),
		slog.Int("failed", report.Failed),
		slog.Int("still_rendering", report.StillRendering),
		slog.Int("skipped", report.Skipped),
		slog.Int("slots_granted", granted))
	return report, nil
}
