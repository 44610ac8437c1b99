// Package providerstub is a fast, deterministic Provider implementation for
// tests, grounded in the teacher's ai/stub client and ai/mock canned-failure
// injection pattern.
package providerstub

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/tabdullah1215/videogen-control-plane/internal/domain"
)

// Client is a deterministic, in-memory stand-in for the upstream provider.
// Jobs are hash-keyed by their provider job id, derived deterministically
// from the request, so repeated tests with the same inputs see the same
// sequence of statuses.
type Client struct {
	mu sync.Mutex

	// FailNextCreate, when non-nil, is returned (and cleared) on the next
	// CreateJob call.
	FailNextCreate error
	// FailNextCheck, when non-nil, is returned (and cleared) on the next
	// CheckJobStatus call.
	FailNextCheck error
	// NextCheckResult, when non-nil, is returned verbatim (and cleared) on
	// the next CheckJobStatus call instead of the default progression,
	// letting tests script a terminal failure from the provider.
	NextCheckResult *domain.JobStatusResult

	// Jobs maps providerJobID to the number of times CheckJobStatus has been
	// called for it, so callers can script a queued->rendering->completed
	// progression deterministically.
	Jobs map[string]int

	Avatars       []domain.Avatar
	Voices        []domain.Voice
	CreditBalance domain.CreditBalance
}

// New constructs a stub provider with a small default avatar/voice catalog.
func New() *Client {
	return &Client{
		Jobs: map[string]int{},
		Avatars: []domain.Avatar{
			{ID: "avatar-default", Name: "Default Avatar", Gender: "neutral"},
		},
		Voices: []domain.Voice{
			{ID: "voice-default", Name: "Default Voice", Gender: "neutral", AccentName: "neutral"},
		},
		CreditBalance: domain.CreditBalance{Credits: 1000},
	}
}

func (c *Client) CreateJob(_ domain.Context, req domain.VideoRequest) (domain.CreateJobResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailNextCreate != nil {
		err := c.FailNextCreate
		c.FailNextCreate = nil
		return domain.CreateJobResult{}, err
	}
	id := deterministicID(req)
	c.Jobs[id] = 0
	return domain.CreateJobResult{ProviderJobID: id, Status: domain.ProviderStatusQueued}, nil
}

func (c *Client) CheckJobStatus(_ domain.Context, providerJobID string) (domain.JobStatusResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailNextCheck != nil {
		err := c.FailNextCheck
		c.FailNextCheck = nil
		return domain.JobStatusResult{}, err
	}
	if c.NextCheckResult != nil {
		res := *c.NextCheckResult
		c.NextCheckResult = nil
		return res, nil
	}

	n := c.Jobs[providerJobID]
	c.Jobs[providerJobID] = n + 1

	switch {
	case n < 1:
		return domain.JobStatusResult{Status: domain.ProviderStatusQueued, Progress: 10}, nil
	case n < 2:
		return domain.JobStatusResult{Status: domain.ProviderStatusRendering, Progress: 50}, nil
	default:
		return domain.JobStatusResult{
			Status:       domain.ProviderStatusCompleted,
			VideoURL:     "https://cdn.example.com/stub/" + providerJobID + ".mp4",
			ThumbnailURL: "https://cdn.example.com/stub/" + providerJobID + ".jpg",
			CreditsUsed:  10,
			Progress:     100,
		}, nil
	}
}

func (c *Client) ListAvatars(_ domain.Context) ([]domain.Avatar, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Avatars, nil
}

func (c *Client) ListVoices(_ domain.Context) ([]domain.Voice, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Voices, nil
}

func (c *Client) GetCreditBalance(_ domain.Context) (domain.CreditBalance, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.CreditBalance, nil
}

func deterministicID(req domain.VideoRequest) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%s", req.AvatarID, req.VoiceID, req.ScriptText, req.AspectRatio)))
	return "stub-" + hex.EncodeToString(h[:])[:16]
}

var _ domain.Provider = (*Client)(nil)
