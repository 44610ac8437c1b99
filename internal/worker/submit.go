// Package worker implements the submit and poll batch workers that advance
// jobs through the provider pipeline, each exposed as a RunOnce method for
// HTTP cron-trigger invocation and also usable from a long-running ticker
// loop, grounded on the teacher's StuckJobSweeper batch-loop idiom.
package worker

import (
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tabdullah1215/videogen-control-plane/internal/domain"
	"github.com/tabdullah1215/videogen-control-plane/internal/observability"
)

const rateLimitAPISubmit = "submit"
const rateLimitAPIPoll = "poll"

// SubmitReport summarizes a single SubmitWorker.RunOnce invocation.
type SubmitReport struct {
	Considered int
	Submitted  int
	Failed     int
	SlotsGranted int
	Reason     string
}

// SubmitWorker promotes pending jobs to submitted by handing them to the
// provider under the shared rate-limit budget.
type SubmitWorker struct {
	Jobs     domain.JobRepository
	Limiter  domain.RateLimitStore
	Provider domain.Provider
	Caller   string
	BatchSize int
}

// NewSubmitWorker constructs a SubmitWorker.
func NewSubmitWorker(jobs domain.JobRepository, limiter domain.RateLimitStore, p domain.Provider, caller string, batchSize int) *SubmitWorker {
	return &SubmitWorker{Jobs: jobs, Limiter: limiter, Provider: p, Caller: caller, BatchSize: batchSize}
}

// RunOnce selects up to BatchSize pending jobs, acquires a matching number of
// rate-limit slots, and dispatches them to the provider one at a time. A
// RateLimited provider error stops the batch immediately rather than marking
// the remaining jobs failed, since they are still eligible next tick.
func (w *SubmitWorker) RunOnce(ctx domain.Context) (SubmitReport, error) {
	tracer := otel.Tracer("worker.submit")
	ctx, span := tracer.Start(ctx, "SubmitWorker.RunOnce")
	defer span.End()

	report := SubmitReport{}

	jobs, err := w.Jobs.SelectPending(ctx, w.BatchSize)
	if err != nil {
		return report, fmt.Errorf("op=worker.submit.select_pending: %w", err)
	}
	report.Considered = len(jobs)
	if len(jobs) == 0 {
		observability.RecordWorkerBatch("submit", "empty", 0)
		return report, nil
	}
	span.SetAttributes(attribute.Int("worker.considered", len(jobs)))

	granted, err := w.Limiter.AcquireSlots(ctx, rateLimitAPISubmit, w.Caller, len(jobs))
	if err != nil {
		return report, fmt.Errorf("op=worker.submit.acquire_slots: %w", err)
	}
	report.SlotsGranted = granted
	if granted == 0 {
		report.Reason = "rate_limited"
		observability.RecordWorkerBatch("submit", "rate_limited", 0)
		return report, nil
	}

	for i := 0; i < granted && i < len(jobs); i++ {
		j := jobs[i]
		result, err := w.Provider.CreateJob(ctx, j.Request)
		if err != nil {
			if domain.IsRateLimited(err) {
				slog.Info("submit worker stopping batch: provider rate limited",
					slog.String("job_id", j.ID), slog.Int("submitted", report.Submitted))
				report.Reason = "provider_rate_limited"
				break
			}
			msg := err.Error()
			status := domain.JobFailed
			if upErr := w.Jobs.Update(ctx, j.ID, domain.JobPatch{Status: &status, ErrorMessage: &msg}); upErr != nil {
				slog.Error("submit worker failed to mark job failed", slog.String("job_id", j.ID), slog.Any("error", upErr))
			}
			report.Failed++
			observability.RecordWorkerJob("submit", "failed")
			continue
		}

		status := domain.JobStatus(result.Status)
		if status == "" {
			status = domain.JobSubmitted
		}
		pid := result.ProviderJobID
		if upErr := w.Jobs.Update(ctx, j.ID, domain.JobPatch{Status: &status, ProviderJobID: &pid}); upErr != nil {
			slog.Error("submit worker failed to record submission", slog.String("job_id", j.ID), slog.Any("error", upErr))
			report.Failed++
			observability.RecordWorkerJob("submit", "failed")
			continue
		}
		report.Submitted++
		observability.RecordWorkerJob("submit", "submitted")
	}

	outcome := "ok"
	if report.Reason != "" {
		outcome = report.Reason
	}
	observability.RecordWorkerBatch("submit", outcome, granted)
	slog.Info("submit worker batch complete",
		slog.Int("considered", report.Considered),
		slog.Int("submitted", report.Submitted),
		slog.Int("failed", report.Failed),
		slog.Int("slots_granted", granted))
	return report, nil
}
