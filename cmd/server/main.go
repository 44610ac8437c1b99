// Command server starts the video generation control plane HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tabdullah1215/videogen-control-plane/internal/adapter/httpserver"
	"github.com/tabdullah1215/videogen-control-plane/internal/adapter/imagestore"
	"github.com/tabdullah1215/videogen-control-plane/internal/adapter/provider/providerhttp"
	"github.com/tabdullah1215/videogen-control-plane/internal/adapter/provider/providerstub"
	"github.com/tabdullah1215/videogen-control-plane/internal/adapter/ratelimitcache"
	"github.com/tabdullah1215/videogen-control-plane/internal/adapter/repo/postgres"
	"github.com/tabdullah1215/videogen-control-plane/internal/config"
	"github.com/tabdullah1215/videogen-control-plane/internal/domain"
	"github.com/tabdullah1215/videogen-control-plane/internal/observability"
	"github.com/tabdullah1215/videogen-control-plane/internal/usecase"
	"github.com/tabdullah1215/videogen-control-plane/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		slog.Error("schema bootstrap failed", slog.Any("error", err))
		os.Exit(1)
	}

	jobStore := postgres.NewJobStore(pool)
	rlStore := postgres.NewRateLimitStore(pool)
	if err := rlStore.Seed(ctx, "submit", "submit-worker", cfg.SubmitMaxPerWindow, cfg.SubmitWindowSecs); err != nil {
		slog.Error("seed submit rate limit failed", slog.Any("error", err))
		os.Exit(1)
	}
	if err := rlStore.Seed(ctx, "poll", "poll-worker", cfg.PollMaxPerWindow, cfg.PollWindowSecs); err != nil {
		slog.Error("seed poll rate limit failed", slog.Any("error", err))
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr(cfg.RedisURL)})
	cache := ratelimitcache.New(rdb, cfg.ProviderCacheTTL)

	if !cfg.ProviderConfigured() && !cfg.UseProviderStub {
		slog.Error("provider credentials missing: set PROVIDER_BASE_URL and PROVIDER_API_KEY, or USE_PROVIDER_STUB=true for local development")
		os.Exit(1)
	}
	provider := newProvider(cfg)

	images := imagestore.NewLocalStore("./data/uploads", "https://cdn.example.com/uploads")

	intake := usecase.NewIntakeService(jobStore, cfg)
	statusRead := usecase.NewStatusReadService(jobStore)
	readiness := usecase.NewReadinessService(jobStore, cfg)
	submitWorker := worker.NewSubmitWorker(jobStore, rlStore, provider, "submit-worker", cfg.SubmitBatchSize)
	pollWorker := worker.NewPollWorker(jobStore, rlStore, provider, "poll-worker", cfg.PollBatchSize)

	srv := httpserver.NewServer(cfg, intake, statusRead, readiness, provider, cache, images, submitWorker, pollWorker)
	handler := httpserver.NewRouter(srv)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}

// newProvider wires a real provider client when credentials are configured,
// falling back to the deterministic stub only when cfg.UseProviderStub opts
// in explicitly. Callers must check cfg.ProviderConfigured() || cfg.UseProviderStub
// and fail fast beforehand; this just picks which implementation to build.
func newProvider(cfg config.Config) domain.Provider {
	if cfg.ProviderConfigured() {
		return providerhttp.New(cfg.ProviderBaseURL, cfg.ProviderAPIID, cfg.ProviderAPIKey, cfg.ProviderTimeout)
	}
	return providerstub.New()
}

// redisAddr strips a redis:// scheme down to a host:port address, since
// go-redis's basic Options.Addr expects a bare address rather than a URL.
func redisAddr(raw string) string {
	const scheme = "redis://"
	s := raw
	if len(s) > len(scheme) && s[:len(scheme)] == scheme {
		s = s[len(scheme):]
	}
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			return s[:i]
		}
	}
	return s
}
