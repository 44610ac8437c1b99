package usecase

import (
	"fmt"

	"github.com/tabdullah1215/videogen-control-plane/internal/config"
	"github.com/tabdullah1215/videogen-control-plane/internal/domain"
)

// ReadinessCheck represents a single readiness probe result used by handlers.
type ReadinessCheck struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Details string `json:"details"`
}

// ReadinessService aggregates dependency health for GET /health.
type ReadinessService struct {
	Jobs   domain.JobRepository
	Config config.Config
}

// NewReadinessService constructs a ReadinessService.
func NewReadinessService(jobs domain.JobRepository, cfg config.Config) ReadinessService {
	return ReadinessService{Jobs: jobs, Config: cfg}
}

// Check runs all readiness probes: a live DB ping via a cheap store read, and
// a static check of whether provider credentials are configured.
func (s ReadinessService) Check(ctx domain.Context) []ReadinessCheck {
	checks := make([]ReadinessCheck, 0, 2)

	dbCheck := ReadinessCheck{Name: "database", Details: "store not configured"}
	if s.Jobs != nil {
		if _, err := s.Jobs.SelectPending(ctx, 1); err != nil {
			dbCheck.Details = fmt.Sprintf("store error: %v", err)
		} else {
			dbCheck.OK = true
			dbCheck.Details = "store connection successful"
		}
	}
	checks = append(checks, dbCheck)

	providerCheck := ReadinessCheck{Name: "provider", Details: "provider credentials not configured"}
	if s.Config.ProviderConfigured() {
		providerCheck.OK = true
		providerCheck.Details = "provider credentials present"
	}
	checks = append(checks, providerCheck)

	return checks
}
