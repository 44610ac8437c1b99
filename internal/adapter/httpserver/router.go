package httpserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tabdullah1215/videogen-control-plane/internal/observability"
)

// NewRouter wires the full middleware stack and request surface.
func NewRouter(s *Server) http.Handler {
	r := chi.NewRouter()

	r.Use(Recoverer())
	r.Use(RequestID())
	r.Use(TraceMiddleware)
	r.Use(AccessLog())
	r.Use(SecurityHeaders)
	r.Use(observability.HTTPMetricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   splitAndTrim(s.Cfg.CORSAllowOrigins),
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "x-user-id", "If-None-Match"},
		ExposedHeaders:   []string{"ETag", "Cache-Control"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(httprate.LimitByIP(s.Cfg.RateLimitPerMin, time.Minute))
	r.Use(TimeoutMiddleware(s.Cfg.HTTPWriteTimeout))

	r.Get("/health", s.HealthHandler())
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/generate-video", s.GenerateVideoHandler())
	r.Post("/job-status", s.JobStatusHandler())
	r.Get("/jobs/{id}", s.JobStatusHandler())
	r.Post("/list-jobs", s.ListJobsHandler())
	r.Get("/list-avatars", s.ListAvatarsHandler())
	r.Get("/list-voices", s.ListVoicesHandler())
	r.Get("/credit-balance", s.CreditBalanceHandler())
	r.Post("/upload-product-image", s.UploadProductImageHandler())

	r.Post("/submit-worker", s.SubmitWorkerHandler())
	r.Post("/poll-worker", s.PollWorkerHandler())

	return r
}

func splitAndTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
