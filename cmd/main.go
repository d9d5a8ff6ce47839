package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/campuspulse/engage/internal/adapters/alert"
	"github.com/campuspulse/engage/internal/adapters/discourse"
	"github.com/campuspulse/engage/internal/adapters/http/api"
	"github.com/campuspulse/engage/internal/app"
	"github.com/campuspulse/engage/internal/config"
	"github.com/campuspulse/engage/internal/domain/term"
	"github.com/campuspulse/engage/internal/jobs"
	"github.com/campuspulse/engage/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 60 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
	bootstrapTimeout  = 15 * time.Minute
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Initialize logging
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	runner := discourse.NewClient(cfg.BaseURL,
		discourse.WithCredentials(cfg.APIKey, cfg.APIUsername),
		discourse.WithGroup(cfg.ReportGroup),
		discourse.WithPageDelay(time.Duration(cfg.PageDelayMS)*time.Millisecond),
		discourse.WithRetryPolicy(cfg.RateLimitRetries, time.Duration(cfg.RetryIntervalMS)*time.Millisecond),
		discourse.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.RequestTimeoutMS) * time.Millisecond}),
		discourse.WithLogger(logger.Named("discourse")),
	)

	notifier := alert.NewWebhook(cfg.AlertWebhookURL, alert.WithLogger(logger.Named("alert")))

	svc := app.New(
		app.WithRunner(runner),
		app.WithNotifier(notifier),
		app.WithTermsToKeep(cfg.TermsToKeep),
		app.WithOrgDomain(cfg.OrgDomain),
		app.WithBaseURL(cfg.BaseURL),
		app.WithIrrelevantCategoryIDs(cfg.IrrelevantCategoryIDs),
		app.WithCourseWeights(cfg.CourseWeights),
		app.WithOverallWeights(cfg.OverallWeights),
		app.WithLogger(logger.Named("app")),
	)

	// The course and user catalogues must exist before anything else runs.
	bootCtx, cancelBoot := context.WithTimeout(ctx, bootstrapTimeout)
	if err := svc.Bootstrap(bootCtx); err != nil {
		cancelBoot()
		log.Fatal(ctx, "bootstrap failed", logger.Error(err))
		return
	}
	cancelBoot()

	// The historical load runs in the background; the API serves a
	// loading placeholder until it finishes.
	go func() {
		if err := svc.LoadAll(ctx); err != nil {
			log.Warn(ctx, "full load finished with errors", logger.Error(err))
		}
	}()

	scheduler := jobs.New(cfg.RefreshSchedule, []jobs.Job{
		{
			Name: "incremental-refresh",
			When: func(now time.Time) bool { return !term.IsBoundary(now) },
			Run:  svc.Refresh,
		},
		{
			Name: "full-reset",
			When: term.IsBoundary,
			Run:  svc.FullReset,
		},
	}, jobs.WithLogger(logger.Named("jobs")))
	if err := scheduler.Start(ctx); err != nil {
		log.Fatal(ctx, "scheduler failed to start", logger.Error(err))
		return
	}
	defer scheduler.Stop()

	// HTTP mux and routes.
	mux := http.NewServeMux()
	apiServer := api.NewServer(svc)
	apiServer.Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
			return
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
}
