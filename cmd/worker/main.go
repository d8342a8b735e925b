package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/vetclinic-platform/cmd/mainconfig"
	"github.com/wolfman30/vetclinic-platform/internal/app/bootstrap"
	"github.com/wolfman30/vetclinic-platform/internal/config"
	"github.com/wolfman30/vetclinic-platform/internal/database"
	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		logger.Error("worker requires DATABASE_URL")
		os.Exit(1)
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}
	email := bootstrap.BuildEmailSender(cfg, mainconfig.BuildSESClient(ctx, cfg, logger), logger)

	app, err := bootstrap.Build(cfg, pool, redisClient, email, logger)
	if err != nil {
		logger.Error("failed to wire worker", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	// Health and metrics for the orchestrator.
	mux := chi.NewRouter()
	mux.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		app.ReminderWorker.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		app.RecurrenceWorker.Start(ctx)
	}()

	<-ctx.Done()
	logger.Info("worker shutting down")
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
