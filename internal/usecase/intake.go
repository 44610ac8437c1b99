// Package usecase contains application business logic services.
package usecase

import (
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/tabdullah1215/videogen-control-plane/internal/config"
	"github.com/tabdullah1215/videogen-control-plane/internal/domain"
	obsctx "github.com/tabdullah1215/videogen-control-plane/internal/observability"
)

// IntakeService validates, defaults, and persists new video generation
// requests. It never calls the provider directly; that is the submit
// worker's job.
type IntakeService struct {
	Jobs     domain.JobRepository
	Defaults config.Config
}

// NewIntakeService constructs an IntakeService with its dependencies.
func NewIntakeService(jobs domain.JobRepository, defaults config.Config) IntakeService {
	return IntakeService{Jobs: jobs, Defaults: defaults}
}

// Submit validates a video request, fills in any missing fields from
// configured defaults, and inserts a pending job. Returns (jobId, "pending").
func (s IntakeService) Submit(ctx domain.Context, userID string, req domain.VideoRequest) (string, domain.JobStatus, error) {
	tr := otel.Tracer("usecase.intake")
	ctx, span := tr.Start(ctx, "IntakeService.Submit")
	defer span.End()

	lg := obsctx.LoggerFromContext(ctx)
	lg.Info("intake submit request",
		slog.String("user_id", userID),
		slog.String("voice_mode", string(req.VoiceMode)),
		slog.String("request_id", obsctx.RequestIDFromContext(ctx)))

	if userID == "" {
		return "", "", fmt.Errorf("%w: userId required", domain.ErrInvalidArgument)
	}

	req = s.applyDefaults(req)

	if err := validateVideoRequest(req); err != nil {
		lg.Warn("intake submit validation failed", slog.Any("error", err))
		return "", "", err
	}

	j := domain.Job{
		UserID:    userID,
		Status:    domain.JobPending,
		Request:   req,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	jobID, err := s.Jobs.Insert(ctx, j)
	if err != nil {
		lg.Error("intake submit failed to insert job", slog.Any("error", err))
		return "", "", err
	}
	lg.Info("intake submit job created", slog.String("job_id", jobID))
	return jobID, domain.JobPending, nil
}

func (s IntakeService) applyDefaults(req domain.VideoRequest) domain.VideoRequest {
	if req.AvatarID == "" {
		req.AvatarID = s.Defaults.DefaultAvatarID
	}
	if req.VoiceID == "" {
		req.VoiceID = s.Defaults.DefaultVoiceID
	}
	if req.VoiceMode == "" {
		req.VoiceMode = domain.VoiceModeTTS
	}
	if req.VoiceMode == domain.VoiceModeTTS && req.ScriptText == "" {
		req.ScriptText = s.Defaults.DefaultScriptText
	}
	if req.ProductImageURL == "" {
		req.ProductImageURL = s.Defaults.DefaultProductImageURL
	}
	if req.AspectRatio == "" {
		req.AspectRatio = domain.AspectRatio(s.Defaults.DefaultAspectRatio)
	}
	if !req.Captions.Enabled && req.Captions.Style == "" {
		req.Captions.Enabled = s.Defaults.DefaultCaptionsEnabled
		req.Captions.Style = s.Defaults.DefaultCaptionStyle
	}
	return req
}

func validateVideoRequest(req domain.VideoRequest) error {
	switch req.VoiceMode {
	case domain.VoiceModeTTS:
		if req.ScriptText == "" {
			return fmt.Errorf("%w: scriptText required for voiceMode=tts", domain.ErrInvalidArgument)
		}
	case domain.VoiceModeUserAudio:
		if req.AudioURL == "" {
			return fmt.Errorf("%w: audioUrl required for voiceMode=user_audio", domain.ErrInvalidArgument)
		}
	default:
		return fmt.Errorf("%w: unknown voiceMode %q", domain.ErrInvalidArgument, req.VoiceMode)
	}
	if req.AvatarID == "" {
		return fmt.Errorf("%w: avatarId required", domain.ErrInvalidArgument)
	}
	return nil
}
