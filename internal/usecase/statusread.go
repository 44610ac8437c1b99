package usecase

import (
	"go.opentelemetry.io/otel"

	"github.com/tabdullah1215/videogen-control-plane/internal/domain"
)

// StatusReadService answers job status and listing queries purely from the
// job store, never consulting the provider, so user-visible latency stays
// decoupled from the provider rate budget.
type StatusReadService struct {
	Jobs domain.JobRepository
}

// NewStatusReadService constructs a StatusReadService.
func NewStatusReadService(jobs domain.JobRepository) StatusReadService {
	return StatusReadService{Jobs: jobs}
}

// CacheHint tells the HTTP layer which Cache-Control header to attach to a
// status response.
type CacheHint struct {
	// SMaxAge is the s-maxage value to send for a terminal (cacheable) status.
	SMaxAge int
	// Terminal reports whether the job has reached completed/failed.
	Terminal bool
}

// Get loads a job by id along with the cache hint the HTTP layer should use.
func (s StatusReadService) Get(ctx domain.Context, id string) (domain.Job, CacheHint, error) {
	tr := otel.Tracer("usecase.statusread")
	ctx, span := tr.Start(ctx, "StatusReadService.Get")
	defer span.End()

	j, err := s.Jobs.GetByID(ctx, id)
	if err != nil {
		return domain.Job{}, CacheHint{}, err
	}
	hint := CacheHint{Terminal: j.Status.IsTerminal()}
	if hint.Terminal {
		hint.SMaxAge = 60
	}
	return j, hint, nil
}

// ListByUser loads a user's jobs, newest first.
func (s StatusReadService) ListByUser(ctx domain.Context, userID string) ([]domain.Job, error) {
	tr := otel.Tracer("usecase.statusread")
	ctx, span := tr.Start(ctx, "StatusReadService.ListByUser")
	defer span.End()
	return s.Jobs.ListByUser(ctx, userID)
}
