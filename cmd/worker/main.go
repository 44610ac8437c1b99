// Command worker runs the submit/poll job pipeline as a long-running
// ticker loop, the alternative to triggering /submit-worker and
// /poll-worker from an external cron.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tabdullah1215/videogen-control-plane/internal/adapter/provider/providerhttp"
	"github.com/tabdullah1215/videogen-control-plane/internal/adapter/provider/providerstub"
	"github.com/tabdullah1215/videogen-control-plane/internal/adapter/repo/postgres"
	"github.com/tabdullah1215/videogen-control-plane/internal/config"
	"github.com/tabdullah1215/videogen-control-plane/internal/domain"
	"github.com/tabdullah1215/videogen-control-plane/internal/observability"
	"github.com/tabdullah1215/videogen-control-plane/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(":9090", mux); err != nil {
			slog.Error("worker metrics server error", slog.Any("error", err))
		}
	}()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	slog.Info("starting worker", slog.String("env", cfg.AppEnv))

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("database connection failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

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

	if !cfg.ProviderConfigured() && !cfg.UseProviderStub {
		slog.Error("provider credentials missing: set PROVIDER_BASE_URL and PROVIDER_API_KEY, or USE_PROVIDER_STUB=true for local development")
		os.Exit(1)
	}
	provider := newProvider(cfg)
	submitWorker := worker.NewSubmitWorker(jobStore, rlStore, provider, "submit-worker", cfg.SubmitBatchSize)
	pollWorker := worker.NewPollWorker(jobStore, rlStore, provider, "poll-worker", cfg.PollBatchSize)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go runTicker(runCtx, "submit", cfg.WorkerTickInterval, func(ctx context.Context) {
		if _, err := submitWorker.RunOnce(ctx); err != nil {
			slog.Error("submit worker tick failed", slog.Any("error", err))
		}
	})
	go runTicker(runCtx, "poll", cfg.WorkerTickInterval, func(ctx context.Context) {
		if _, err := pollWorker.RunOnce(ctx); err != nil {
			slog.Error("poll worker tick failed", slog.Any("error", err))
		}
	})

	slog.Info("worker started successfully, waiting for shutdown signal")
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigCh
	slog.Info("signal received, shutting down", slog.String("signal", sig.String()))
	cancel()
	slog.Info("worker stopped")
}

// runTicker invokes fn every interval until ctx is cancelled, logging which
// leg (submit/poll) is running so the two loops are distinguishable in logs.
func runTicker(ctx context.Context, leg string, interval time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("ticker loop stopped", slog.String("leg", leg))
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
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
