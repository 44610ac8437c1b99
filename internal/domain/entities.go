// Package domain defines core entities, ports, and domain-specific errors.
package domain

import (
	"context"
	"errors"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrRateLimited       = errors.New("rate limited")
	ErrUpstreamTimeout   = errors.New("upstream timeout")
	ErrUpstreamRateLimit = errors.New("upstream rate limit")
	ErrInternal          = errors.New("internal error")
)

// Context is a type alias to stdlib context.Context for convenience across layers.
type Context = context.Context

// JobStatus captures the lifecycle state of a video generation job.
type JobStatus string

// Job status values. The DAG is:
// pending -> submitted -> queued -> rendering -> completed
// any non-terminal state may transition to failed; completed/failed are terminal.
const (
	// JobPending is the state a job is created in, before the submit worker picks it up.
	JobPending JobStatus = "pending"
	// JobCreated is a legacy synonym for JobPending observed in the active-job set.
	JobCreated JobStatus = "created"
	// JobSubmitted means the submit worker handed the job to the provider.
	JobSubmitted JobStatus = "submitted"
	// JobQueued is the provider's own queued state.
	JobQueued JobStatus = "queued"
	// JobRendering means the provider is actively rendering.
	JobRendering JobStatus = "rendering"
	// JobCompleted is a terminal success state.
	JobCompleted JobStatus = "completed"
	// JobFailed is a terminal failure state.
	JobFailed JobStatus = "failed"
)

// IsTerminal reports whether a status never transitions further.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// IsActive reports whether the poll worker should still be tracking this
// job with the provider (submitted/queued/rendering, plus the legacy
// "created" synonym for awaiting-submission).
func (s JobStatus) IsActive() bool {
	switch s {
	case JobSubmitted, JobQueued, JobRendering, JobCreated:
		return true
	default:
		return false
	}
}

// VoiceMode selects whether a job is driven by text-to-speech or an uploaded audio track.
type VoiceMode string

const (
	// VoiceModeTTS renders speech from scriptText.
	VoiceModeTTS VoiceMode = "tts"
	// VoiceModeUserAudio uses the caller-provided audioUrl.
	VoiceModeUserAudio VoiceMode = "user_audio"
)

// AspectRatio enumerates the supported output frame shapes.
type AspectRatio string

const (
	AspectPortrait  AspectRatio = "9:16"
	AspectSquare    AspectRatio = "1:1"
	AspectLandscape AspectRatio = "16:9"
)

// CaptionStyle describes how burned-in captions should be rendered.
type CaptionStyle struct {
	Enabled bool   `json:"enabled"`
	Style   string `json:"style,omitempty"`
}

// VideoRequest is the opaque structured snapshot of a render specification.
type VideoRequest struct {
	ScriptText      string       `json:"scriptText,omitempty"`
	AudioURL        string       `json:"audioUrl,omitempty"`
	VoiceMode       VoiceMode    `json:"voiceMode"`
	AvatarID        string       `json:"avatarId"`
	VoiceID         string       `json:"voiceId"`
	AccentID        string       `json:"accentId,omitempty"`
	ProductImageURL string       `json:"productImageUrl,omitempty"`
	ProductName     string       `json:"productName,omitempty"`
	AspectRatio     AspectRatio  `json:"aspectRatio"`
	Captions        CaptionStyle `json:"captions"`
	VisualStyle     string       `json:"visualStyle,omitempty"`
}

// Job is the domain model for a video-generation job.
type Job struct {
	ID            string
	UserID        string
	ProviderJobID string
	Status        JobStatus
	Request       VideoRequest
	VideoURL      string
	ThumbnailURL  string
	CreditsUsed   int
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

// JobPatch carries the subset of fields a worker updates in a single call.
// Nil fields are left untouched.
type JobPatch struct {
	ProviderJobID   *string
	Status          *JobStatus
	VideoURL        *string
	ThumbnailURL    *string
	CreditsUsed     *int
	ErrorMessage    *string
	SetCompletedNow bool
}

// JobRepository is the durable store of job records.
type JobRepository interface {
	// Insert inserts a job in the pending state and returns its id.
	Insert(ctx Context, j Job) (string, error)
	// SelectPending returns up to limit rows in status=pending, oldest createdAt first.
	SelectPending(ctx Context, limit int) ([]Job, error)
	// SelectActive returns up to limit rows in a non-terminal, provider-known
	// state, oldest updatedAt first.
	SelectActive(ctx Context, limit int) ([]Job, error)
	// Update patches fields on a job; always bumps updatedAt.
	Update(ctx Context, id string, patch JobPatch) error
	// GetByID loads a single job.
	GetByID(ctx Context, id string) (Job, error)
	// ListByUser returns a user's jobs, newest first.
	ListByUser(ctx Context, userID string) ([]Job, error)
}

// RateLimitStore grants provider-call slots atomically under concurrent access.
type RateLimitStore interface {
	// AcquireSlots attempts to reserve `requested` call slots for (api, caller)
	// in the current window, returning the number actually granted (0..requested).
	AcquireSlots(ctx Context, api, caller string, requested int) (granted int, err error)
	// Seed ensures a counter row exists for (api, caller) with the given ceiling/window.
	Seed(ctx Context, api, caller string, maxCalls int, windowSecs int) error
}

// ProviderStatus is the normalized status returned by CheckJobStatus.
type ProviderStatus string

const (
	ProviderStatusSubmitted ProviderStatus = "submitted"
	ProviderStatusQueued    ProviderStatus = "queued"
	ProviderStatusRendering ProviderStatus = "rendering"
	ProviderStatusCompleted ProviderStatus = "completed"
	ProviderStatusFailed    ProviderStatus = "failed"
)

// CreateJobResult is returned by Provider.CreateJob on success.
type CreateJobResult struct {
	ProviderJobID string
	Status        ProviderStatus
}

// JobStatusResult is returned by Provider.CheckJobStatus.
type JobStatusResult struct {
	Status       ProviderStatus
	VideoURL     string
	ThumbnailURL string
	CreditsUsed  int
	ErrorMessage string
	Progress     int
}

// Avatar is a selectable presenter.
type Avatar struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Gender     string `json:"gender,omitempty"`
	PreviewURL string `json:"previewUrl,omitempty"`
}

// Voice is a single (voice, accent) pair flattened to one selectable item.
type Voice struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Gender     string `json:"gender,omitempty"`
	AccentName string `json:"accentName,omitempty"`
	PreviewURL string `json:"previewUrl,omitempty"`
}

// CreditBalance reports the caller's remaining provider credits.
type CreditBalance struct {
	Credits int `json:"credits"`
}

// Provider abstracts the upstream AI video generation service.
//
//go:generate mockery --name=Provider --with-expecter --filename=provider_mock.go
//go:generate mockery --name=JobRepository --with-expecter --filename=job_repository_mock.go
//go:generate mockery --name=RateLimitStore --with-expecter --filename=ratelimit_store_mock.go
type Provider interface {
	CreateJob(ctx Context, req VideoRequest) (CreateJobResult, error)
	CheckJobStatus(ctx Context, providerJobID string) (JobStatusResult, error)
	ListAvatars(ctx Context) ([]Avatar, error)
	ListVoices(ctx Context) ([]Voice, error)
	GetCreditBalance(ctx Context) (CreditBalance, error)
}

// RateLimitedError signals a 429 from the provider: transient, non-poison.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string { return "provider: rate limited" }

// Unwrap lets errors.Is(err, domain.ErrRateLimited) succeed.
func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }

// IsRateLimited reports whether err is (or wraps) a provider rate-limit error.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}
