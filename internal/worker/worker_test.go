package worker_test

import (
	"errors"
	"sync"
	"time"

	"github.com/tabdullah1215/videogen-control-plane/internal/domain"
)

// fakeJobStore is an in-memory domain.JobRepository for worker tests.
type fakeJobStore struct {
	mu   sync.Mutex
	jobs map[string]domain.Job
}

func newFakeJobStore(jobs ...domain.Job) *fakeJobStore {
	s := &fakeJobStore{jobs: map[string]domain.Job{}}
	for _, j := range jobs {
		s.jobs[j.ID] = j
	}
	return s
}

func (s *fakeJobStore) Insert(_ domain.Context, j domain.Job) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j.ID == "" {
		j.ID = "generated"
	}
	s.jobs[j.ID] = j
	return j.ID, nil
}

func (s *fakeJobStore) SelectPending(_ domain.Context, limit int) ([]domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Job
	for _, j := range s.jobs {
		if j.Status == domain.JobPending {
			out = append(out, j)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeJobStore) SelectActive(_ domain.Context, limit int) ([]domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Job
	for _, j := range s.jobs {
		if j.Status.IsActive() {
			out = append(out, j)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeJobStore) Update(_ domain.Context, id string, patch domain.JobPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if patch.ProviderJobID != nil {
		j.ProviderJobID = *patch.ProviderJobID
	}
	if patch.Status != nil {
		j.Status = *patch.Status
	}
	if patch.VideoURL != nil {
		j.VideoURL = *patch.VideoURL
	}
	if patch.ThumbnailURL != nil {
		j.ThumbnailURL = *patch.ThumbnailURL
	}
	if patch.CreditsUsed != nil {
		j.CreditsUsed = *patch.CreditsUsed
	}
	if patch.ErrorMessage != nil {
		j.ErrorMessage = *patch.ErrorMessage
	}
	if patch.SetCompletedNow {
		now := time.Now()
		j.CompletedAt = &now
	}
	j.UpdatedAt = time.Now()
	s.jobs[id] = j
	return nil
}

func (s *fakeJobStore) GetByID(_ domain.Context, id string) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return domain.Job{}, domain.ErrNotFound
	}
	return j, nil
}

func (s *fakeJobStore) ListByUser(_ domain.Context, userID string) ([]domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Job
	for _, j := range s.jobs {
		if j.UserID == userID {
			out = append(out, j)
		}
	}
	return out, nil
}

// fakeLimiter is a domain.RateLimitStore that grants a fixed number of slots.
type fakeLimiter struct {
	grant int
	err   error
}

func (f *fakeLimiter) AcquireSlots(_ domain.Context, _, _ string, requested int) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	if f.grant < 0 {
		return requested, nil
	}
	if f.grant < requested {
		return f.grant, nil
	}
	return requested, nil
}

func (f *fakeLimiter) Seed(_ domain.Context, _, _ string, _ int, _ int) error { return nil }

var errBoom = errors.New("boom")
