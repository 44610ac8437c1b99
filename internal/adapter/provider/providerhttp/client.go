// Package providerhttp implements domain.Provider against the upstream AI
// video generation service's real HTTP API.
package providerhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/tabdullah1215/videogen-control-plane/internal/adapter/provider"
	"github.com/tabdullah1215/videogen-control-plane/internal/domain"
	"github.com/tabdullah1215/videogen-control-plane/internal/observability"
)

// Client implements domain.Provider over net/http, tracing every call with
// otelhttp and retrying transient transport failures with bounded backoff.
// A client-side token bucket throttles outgoing calls as defense in depth
// in front of the shared store-backed rate limiter; it never replaces it.
type Client struct {
	baseURL string
	apiID   string
	apiKey  string
	hc      *http.Client
	limiter *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithThrottle sets the client-side leaky-bucket rate (calls/sec, burst).
func WithThrottle(rps float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// New constructs a real HTTP provider client.
func New(baseURL, apiID, apiKey string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiID:   apiID,
		apiKey:  apiKey,
		hc: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter: rate.NewLimiter(rate.Limit(5), 5),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type createJobRequest struct {
	ScriptText      string `json:"scriptText,omitempty"`
	AudioURL        string `json:"audioUrl,omitempty"`
	AvatarID        string `json:"avatarId"`
	VoiceID         string `json:"voiceId,omitempty"`
	AccentID        string `json:"accentId,omitempty"`
	ProductImageURL string `json:"productImageUrl,omitempty"`
	ProductName     string `json:"productName,omitempty"`
	AspectRatio     string `json:"aspectRatio"`
	Captions        bool   `json:"captions"`
	CaptionStyle    string `json:"captionStyle,omitempty"`
	VisualStyle     string `json:"visualStyle,omitempty"`
}

type createJobResponse struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

// CreateJob submits a video generation request to the provider.
func (c *Client) CreateJob(ctx domain.Context, req domain.VideoRequest) (domain.CreateJobResult, error) {
	body := createJobRequest{
		AvatarID:        req.AvatarID,
		AccentID:        req.AccentID,
		ProductImageURL: req.ProductImageURL,
		ProductName:     req.ProductName,
		AspectRatio:     provider.FormatAspectRatio(req.AspectRatio),
		Captions:        req.Captions.Enabled,
		CaptionStyle:    req.Captions.Style,
		VisualStyle:     req.VisualStyle,
	}
	if req.VoiceMode == domain.VoiceModeUserAudio && req.AudioURL != "" {
		body.AudioURL = req.AudioURL
	} else {
		body.ScriptText = req.ScriptText
		body.VoiceID = req.VoiceID
	}

	var out createJobResponse
	if err := c.doJSON(ctx, "create_job", http.MethodPost, "/v1/videos", body, &out); err != nil {
		return domain.CreateJobResult{}, err
	}
	return domain.CreateJobResult{
		ProviderJobID: out.JobID,
		Status:        provider.NormalizeStatus(out.Status),
	}, nil
}

type jobStatusResponse struct {
	Status       string `json:"status"`
	VideoURL     string `json:"videoUrl"`
	ThumbnailURL string `json:"thumbnailUrl"`
	CreditsUsed  int    `json:"creditsUsed"`
	Error        string `json:"error"`
	Progress     int    `json:"progress"`
}

// CheckJobStatus polls the provider for a job's current render state.
func (c *Client) CheckJobStatus(ctx domain.Context, providerJobID string) (domain.JobStatusResult, error) {
	var out jobStatusResponse
	path := fmt.Sprintf("/v1/videos/%s", providerJobID)
	if err := c.doJSON(ctx, "check_job_status", http.MethodGet, path, nil, &out); err != nil {
		return domain.JobStatusResult{}, err
	}
	return domain.JobStatusResult{
		Status:       provider.NormalizeStatus(out.Status),
		VideoURL:     out.VideoURL,
		ThumbnailURL: out.ThumbnailURL,
		CreditsUsed:  out.CreditsUsed,
		ErrorMessage: out.Error,
		Progress:     out.Progress,
	}, nil
}

type avatarsResponse struct {
	Avatars []domain.Avatar `json:"avatars"`
}

// ListAvatars returns the provider's catalog of selectable presenters.
func (c *Client) ListAvatars(ctx domain.Context) ([]domain.Avatar, error) {
	var out avatarsResponse
	if err := c.doJSON(ctx, "list_avatars", http.MethodGet, "/v1/avatars", nil, &out); err != nil {
		return nil, err
	}
	return out.Avatars, nil
}

type voicesResponse struct {
	Voices []domain.Voice `json:"voices"`
}

// ListVoices returns the provider's catalog of selectable voices.
func (c *Client) ListVoices(ctx domain.Context) ([]domain.Voice, error) {
	var out voicesResponse
	if err := c.doJSON(ctx, "list_voices", http.MethodGet, "/v1/voices", nil, &out); err != nil {
		return nil, err
	}
	return out.Voices, nil
}

// GetCreditBalance returns the caller's remaining provider credits.
func (c *Client) GetCreditBalance(ctx domain.Context) (domain.CreditBalance, error) {
	var out domain.CreditBalance
	if err := c.doJSON(ctx, "credit_balance", http.MethodGet, "/v1/credits", nil, &out); err != nil {
		return domain.CreditBalance{}, err
	}
	return out, nil
}

// doJSON performs a single provider HTTP call, retrying transient transport
// errors with bounded exponential backoff. A 4xx is never retried, and a 429
// is surfaced immediately as a domain.RateLimitedError so the caller can stop
// its batch rather than burn the retry budget against a budget it cannot win.
func (c *Client) doJSON(ctx domain.Context, op, method, path string, reqBody, respBody any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("op=provider.%s.throttle: %w", op, err)
	}

	var bodyBytes []byte
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("op=provider.%s.marshal: %w", op, err)
		}
		bodyBytes = b
	}

	expo := backoff.NewExponentialBackOff()
	expo.MaxElapsedTime = 15 * time.Second
	expo.InitialInterval = 200 * time.Millisecond
	expo.MaxInterval = 2 * time.Second

	start := time.Now()
	var status int
	var respData []byte
	retryErr := backoff.Retry(func() error {
		httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(bodyBytes))
		if err != nil {
			return backoff.Permanent(err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("X-API-ID", c.apiID)
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.hc.Do(httpReq)
		if err != nil {
			return err // transient transport error, retry
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		status = resp.StatusCode
		respData = data

		if status == http.StatusTooManyRequests {
			return backoff.Permanent(&domain.RateLimitedError{RetryAfter: retryAfterFromHeader(resp)})
		}
		if status >= 400 && status < 500 {
			return backoff.Permanent(fmt.Errorf("op=provider.%s: %w: status %d", op, domain.ErrInvalidArgument, status))
		}
		if status >= 500 {
			return fmt.Errorf("op=provider.%s: upstream status %d", op, status)
		}
		return nil
	}, backoff.WithContext(expo, ctx))

	dur := time.Since(start)
	if retryErr != nil {
		observability.RecordProviderCall(op, "error", dur)
		slog.Warn("provider call failed", slog.String("op", op), slog.Any("error", retryErr), slog.Duration("duration", dur))
		return retryErr
	}
	observability.RecordProviderCall(op, "ok", dur)

	if respBody != nil && len(respData) > 0 {
		if err := json.Unmarshal(respData, respBody); err != nil {
			return fmt.Errorf("op=provider.%s.unmarshal: %w", op, err)
		}
	}
	return nil
}

func retryAfterFromHeader(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := time.ParseDuration(v + "s")
	if err != nil {
		return 0
	}
	return secs
}

var _ domain.Provider = (*Client)(nil)
