package providerhttp_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tabdullah1215/videogen-control-plane/internal/adapter/provider/providerhttp"
	"github.com/tabdullah1215/videogen-control-plane/internal/domain"
)

func TestClient_CreateJob_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/videos", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"jobId": "p-1", "status": "pending"})
	}))
	defer srv.Close()

	c := providerhttp.New(srv.URL, "id", "key", 5*time.Second)
	res, err := c.CreateJob(context.Background(), domain.VideoRequest{AvatarID: "a1", VoiceMode: domain.VoiceModeTTS, AspectRatio: domain.AspectPortrait})
	require.NoError(t, err)
	require.Equal(t, "p-1", res.ProviderJobID)
	require.Equal(t, domain.ProviderStatusQueued, res.Status)
}

func TestClient_CreateJob_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := providerhttp.New(srv.URL, "id", "key", 5*time.Second)
	_, err := c.CreateJob(context.Background(), domain.VideoRequest{AvatarID: "a1"})
	require.Error(t, err)
	require.True(t, domain.IsRateLimited(err))
}

func TestClient_CheckJobStatus_NotRetriedOn4xx(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := providerhttp.New(srv.URL, "id", "key", 5*time.Second)
	_, err := c.CheckJobStatus(context.Background(), "missing")
	require.Error(t, err)
	require.Equal(t, 1, calls)
}
