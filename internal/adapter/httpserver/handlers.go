// Package httpserver contains HTTP handlers and middleware for the video
// generation control plane's external interface: request intake, status
// reads, avatar/voice/credit-balance pass-throughs, product image upload,
// health, and the cron-trigger endpoints.
package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tabdullah1215/videogen-control-plane/internal/adapter/ratelimitcache"
	"github.com/tabdullah1215/videogen-control-plane/internal/config"
	"github.com/tabdullah1215/videogen-control-plane/internal/domain"
	"github.com/tabdullah1215/videogen-control-plane/internal/usecase"
	"github.com/tabdullah1215/videogen-control-plane/internal/worker"
)

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

// Server aggregates handler dependencies.
type Server struct {
	Cfg        config.Config
	Intake     usecase.IntakeService
	StatusRead usecase.StatusReadService
	Readiness  usecase.ReadinessService
	Provider   domain.Provider
	Cache      *ratelimitcache.Cache
	Images     domain.ImageStore
	Submit     *worker.SubmitWorker
	Poll       *worker.PollWorker
}

// NewServer constructs an HTTP server with all handlers wired.
func NewServer(cfg config.Config, intake usecase.IntakeService, statusRead usecase.StatusReadService, readiness usecase.ReadinessService, provider domain.Provider, cache *ratelimitcache.Cache, images domain.ImageStore, submit *worker.SubmitWorker, poll *worker.PollWorker) *Server {
	return &Server{
		Cfg:        cfg,
		Intake:     intake,
		StatusRead: statusRead,
		Readiness:  readiness,
		Provider:   provider,
		Cache:      cache,
		Images:     images,
		Submit:     submit,
		Poll:       poll,
	}
}

// generateVideoRequest is the wire shape for POST /generate-video, carrying
// validator tags for structural checks ahead of the usecase layer's
// business-rule validation (missing scriptText/audioUrl given voiceMode).
type generateVideoRequest struct {
	ScriptText      string `json:"scriptText,omitempty" validate:"omitempty,max=10000"`
	AudioURL        string `json:"audioUrl,omitempty" validate:"omitempty,url"`
	VoiceMode       string `json:"voiceMode,omitempty" validate:"omitempty,oneof=tts user_audio"`
	AvatarID        string `json:"avatarId,omitempty"`
	VoiceID         string `json:"voiceId,omitempty"`
	AccentID        string `json:"accentId,omitempty"`
	ProductImageURL string `json:"productImageUrl,omitempty" validate:"omitempty,url"`
	ProductName     string `json:"productName,omitempty"`
	AspectRatio     string `json:"aspectRatio,omitempty" validate:"omitempty,oneof=9:16 1:1 16:9"`
	CaptionsEnabled bool   `json:"captionsEnabled,omitempty"`
	CaptionStyle    string `json:"captionStyle,omitempty"`
	VisualStyle     string `json:"visualStyle,omitempty"`
}

func (req generateVideoRequest) toDomain() domain.VideoRequest {
	return domain.VideoRequest{
		ScriptText:      req.ScriptText,
		AudioURL:        req.AudioURL,
		VoiceMode:       domain.VoiceMode(req.VoiceMode),
		AvatarID:        req.AvatarID,
		VoiceID:         req.VoiceID,
		AccentID:        req.AccentID,
		ProductImageURL: req.ProductImageURL,
		ProductName:     req.ProductName,
		AspectRatio:     domain.AspectRatio(req.AspectRatio),
		Captions:        domain.CaptionStyle{Enabled: req.CaptionsEnabled, Style: req.CaptionStyle},
		VisualStyle:     req.VisualStyle,
	}
}

// GenerateVideoHandler handles POST /generate-video.
func (s *Server) GenerateVideoHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get("x-user-id"))
		r.Body = http.MaxBytesReader(w, r.Body, 64*1024)
		var req generateVideoRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument), nil)
			return
		}
		if err := getValidator().Struct(req); err != nil {
			writeError(w, r, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err), nil)
			return
		}
		jobID, status, err := s.Intake.Submit(r.Context(), userID, req.toDomain())
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"jobId": jobID, "status": string(status)})
	}
}

// JobStatusHandler handles POST /job-status and GET /jobs/{id}.
func (s *Server) JobStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			var body struct {
				JobID string `json:"jobId"`
			}
			if r.Body != nil {
				_ = json.NewDecoder(r.Body).Decode(&body)
			}
			id = body.JobID
		}
		if id == "" {
			writeError(w, r, fmt.Errorf("%w: jobId required", domain.ErrInvalidArgument), nil)
			return
		}
		id = SanitizeJobID(id)
		if res := ValidateJobID(id); !res.Valid {
			writeError(w, r, fmt.Errorf("%w: %s", domain.ErrInvalidArgument, res.Errors[0].Message), nil)
			return
		}
		j, hint, err := s.StatusRead.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		if hint.Terminal {
			w.Header().Set("Cache-Control", fmt.Sprintf("s-maxage=%d", hint.SMaxAge))
		} else {
			w.Header().Set("Cache-Control", "no-cache")
		}
		writeJSON(w, http.StatusOK, jobStatusResponse(j))
	}
}

// ListJobsHandler handles POST /list-jobs.
func (s *Server) ListJobsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get("x-user-id"))
		if userID == "" {
			writeError(w, r, fmt.Errorf("%w: x-user-id header required", domain.ErrInvalidArgument), nil)
			return
		}
		jobs, err := s.StatusRead.ListByUser(r.Context(), userID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		out := make([]map[string]any, 0, len(jobs))
		for _, j := range jobs {
			out = append(out, jobStatusResponse(j))
		}
		writeJSON(w, http.StatusOK, map[string]any{"jobs": out})
	}
}

func jobStatusResponse(j domain.Job) map[string]any {
	m := map[string]any{
		"jobId":     j.ID,
		"status":    string(j.Status),
		"createdAt": j.CreatedAt,
		"updatedAt": j.UpdatedAt,
	}
	if j.VideoURL != "" {
		m["videoUrl"] = j.VideoURL
	}
	if j.ThumbnailURL != "" {
		m["thumbnailUrl"] = j.ThumbnailURL
	}
	if j.CreditsUsed > 0 {
		m["creditsUsed"] = j.CreditsUsed
	}
	if j.ErrorMessage != "" {
		m["errorMessage"] = j.ErrorMessage
	}
	if j.CompletedAt != nil {
		m["completedAt"] = j.CompletedAt
	}
	return m
}

// ListAvatarsHandler handles GET /list-avatars, cached ~3600s.
func (s *Server) ListAvatarsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		avatars, err := cacheFetch(r.Context(), s.Cache, "provider:avatars", s.Provider.ListAvatars)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"avatars": avatars})
	}
}

// ListVoicesHandler handles GET /list-voices, cached ~3600s.
func (s *Server) ListVoicesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		voices, err := cacheFetch(r.Context(), s.Cache, "provider:voices", s.Provider.ListVoices)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"voices": voices})
	}
}

// CreditBalanceHandler handles GET /credit-balance, cached ~3600s.
func (s *Server) CreditBalanceHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		balance, err := cacheFetch(r.Context(), s.Cache, "provider:credit-balance", s.Provider.GetCreditBalance)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, balance)
	}
}

// cacheFetch serves key from cache on a hit, otherwise uses the Redis fill
// lock so only one concurrent miss calls fetch while the rest wait and
// retry, avoiding a stampede on the provider.
func cacheFetch[T any](ctx domain.Context, cache *ratelimitcache.Cache, key string, fetch func(domain.Context) (T, error)) (T, error) {
	var dest T
	if ok, err := cache.Get(ctx, key, &dest); err == nil && ok {
		return dest, nil
	}

	for i := 0; i < 3; i++ {
		state, err := cache.TryLockFill(ctx, key)
		if err != nil {
			break
		}
		switch state {
		case ratelimitcache.FillHit:
			if ok, err := cache.Get(ctx, key, &dest); err == nil && ok {
				return dest, nil
			}
		case ratelimitcache.FillWait:
			time.Sleep(50 * time.Millisecond)
			continue
		case ratelimitcache.FillAcquired:
			val, err := fetch(ctx)
			if err != nil {
				cache.ReleaseFill(ctx, key)
				return dest, err
			}
			_ = cache.Set(ctx, key, val)
			cache.ReleaseFill(ctx, key)
			return val, nil
		}
	}
	return fetch(ctx)
}

// HealthHandler handles GET /health.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := s.Readiness.Check(r.Context())
		ok := true
		var dbOK, providerOK bool
		for _, c := range checks {
			if !c.OK {
				ok = false
			}
			switch c.Name {
			case "database":
				dbOK = c.OK
			case "provider":
				providerOK = c.OK
			}
		}
		status := "ok"
		httpStatus := http.StatusOK
		if !ok {
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
		}
		writeJSON(w, httpStatus, map[string]any{
			"status": status,
			"env": map[string]any{
				"providerConfigured": providerOK,
				"storeConfigured":    dbOK,
			},
		})
	}
}

// SubmitWorkerHandler handles POST /submit-worker, the cron trigger for the
// pending -> submitted batch.
func (s *Server) SubmitWorkerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := s.Submit.RunOnce(r.Context())
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		resp := map[string]any{"submitted": report.Submitted, "failed": report.Failed, "slots": report.SlotsGranted}
		if report.Reason != "" {
			resp["reason"] = report.Reason
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// PollWorkerHandler handles POST /poll-worker, the cron trigger for the
// in-flight advancement batch.
func (s *Server) PollWorkerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := s.Poll.RunOnce(r.Context())
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		resp := map[string]any{"polled": report.Considered, "completed": report.Completed, "failed": report.Failed, "slots": report.SlotsGranted}
		if report.Reason != "" {
			resp["reason"] = report.Reason
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
