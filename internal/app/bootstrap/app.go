// Package bootstrap wires configuration, storage and services into the
// runnable API and worker processes.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/vetclinic-platform/internal/api/router"
	"github.com/wolfman30/vetclinic-platform/internal/appointments"
	"github.com/wolfman30/vetclinic-platform/internal/calendar"
	appconfig "github.com/wolfman30/vetclinic-platform/internal/config"
	"github.com/wolfman30/vetclinic-platform/internal/database"
	httpmiddleware "github.com/wolfman30/vetclinic-platform/internal/http/middleware"
	"github.com/wolfman30/vetclinic-platform/internal/live"
	"github.com/wolfman30/vetclinic-platform/internal/notify"
	"github.com/wolfman30/vetclinic-platform/internal/observability/metrics"
	"github.com/wolfman30/vetclinic-platform/internal/patients"
	"github.com/wolfman30/vetclinic-platform/internal/recurring"
	"github.com/wolfman30/vetclinic-platform/internal/reminders"
	"github.com/wolfman30/vetclinic-platform/internal/stats"
	"github.com/wolfman30/vetclinic-platform/internal/tenants"
	"github.com/wolfman30/vetclinic-platform/internal/treatments"
	"github.com/wolfman30/vetclinic-platform/internal/users"
	"github.com/wolfman30/vetclinic-platform/internal/vaccines"
	"github.com/wolfman30/vetclinic-platform/internal/waitlist"
	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

// App holds the wired services shared by the API and worker binaries.
type App struct {
	Config   *appconfig.Config
	Logger   *logging.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.SchedulingMetrics

	Tenants      *tenants.Store
	Notify       *notify.Service
	Appointments *appointments.Service
	Recurring    *recurring.Service
	Waitlist     *waitlist.Service
	Stats        *stats.Service
	Users        *users.Service
	Calendar     *calendar.Service
	Hub          *live.Hub

	RecurrenceWorker *recurring.Worker
	ReminderWorker   *reminders.Worker

	router  http.Handler
	pool    *pgxpool.Pool
	redis   *redis.Client
	limiter *httpmiddleware.RateLimiter
}

// Build wires every service against the Postgres pool. redisClient and
// email may be nil; the stats cache and rate limiter then stay in process
// and emails are dropped.
func Build(cfg *appconfig.Config, pool *pgxpool.Pool, redisClient *redis.Client, email notify.EmailSender, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: config required")
	}
	if pool == nil {
		return nil, errors.New("bootstrap: database pool required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	schedMetrics := metrics.NewSchedulingMetrics(registry)

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: registry,
		Metrics:  schedMetrics,
		pool:     pool,
		redis:    redisClient,
	}

	a.Tenants = tenants.NewStore(database.OpenSQL(pool))
	patientRepo := patients.NewPostgresRepository(pool)
	apptRepo := appointments.NewPostgresRepository(pool)

	a.Notify = notify.NewService(email, logger.WithComponent("notify"), notify.WithMetrics(schedMetrics))
	a.Appointments = appointments.NewService(apptRepo, patientRepo, a.Tenants, logger,
		appointments.WithNotifier(a.Notify),
		appointments.WithClinicNames(a.Tenants),
		appointments.WithMetrics(schedMetrics),
	)

	a.Recurring = recurring.NewService(recurring.NewPostgresRepository(pool), apptRepo, patientRepo, a.Tenants, logger,
		recurring.WithMetrics(schedMetrics),
		recurring.WithPublisher(a.Appointments),
		recurring.WithHorizonDays(cfg.RecurrenceHorizonDays),
	)
	a.RecurrenceWorker = recurring.NewWorker(a.Recurring, logger.WithComponent("recurrence-worker")).WithInterval(cfg.RecurrenceInterval)
	a.ReminderWorker = reminders.NewWorker(apptRepo, a.Appointments, logger.WithComponent("reminder-worker")).
		WithInterval(cfg.ReminderInterval).
		WithLead(cfg.ReminderLead).
		WithMetrics(schedMetrics)

	a.Waitlist = waitlist.NewService(waitlist.NewPostgresRepository(pool), patientRepo, a.Tenants, logger,
		waitlist.WithNotifier(a.Notify),
		waitlist.WithClinicNames(a.Tenants),
	)
	a.Appointments.AddListener(a.Waitlist)

	statsOpts := []stats.Option{stats.WithFlatFee(cfg.FlatFee)}
	if redisClient != nil {
		cache := stats.NewRedisCache(redisClient, cfg.StatsCacheTTL, logger)
		statsOpts = append(statsOpts, stats.WithCache(cache))
		a.Appointments.AddListener(cache)
	}
	a.Stats = stats.NewService(stats.NewPostgresSource(pool), a.Tenants, logger, statsOpts...)

	a.Users = users.NewService(users.NewPostgresRepository(pool), logger)

	a.Calendar = calendar.NewService(calendar.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		StateSecret:  []byte(cfg.JWTSecret),
	}, calendar.NewPostgresTokenStore(pool), a.Appointments, patientRepo, logger.WithComponent("calendar"),
		calendar.WithTenants(a.Tenants),
	)
	if a.Calendar.Configured() {
		a.Appointments.AddListener(a.Calendar)
	} else {
		logger.Info("google calendar integration disabled")
	}

	a.Hub = live.NewHub(logger.WithComponent("live"))
	a.Appointments.AddListener(a.Hub)

	var limiter httpmiddleware.Limiter
	if cfg.RateLimitRPS > 0 {
		if redisClient != nil {
			limiter = httpmiddleware.NewRedisRateLimiter(redisClient, cfg.RateLimitRPS, cfg.RateLimitBurst)
		} else {
			a.limiter = httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
			limiter = a.limiter
		}
	}

	a.router = router.New(&router.Config{
		Logger:             logger,
		JWTSecret:          cfg.JWTSecret,
		JWTIssuer:          cfg.JWTIssuer,
		Tenants:            a.Tenants,
		Patients:           patients.NewHandler(patientRepo, logger),
		Vaccines:           vaccines.NewHandler(vaccines.NewPostgresRepository(pool), patientRepo, logger),
		Treatments:         treatments.NewHandler(treatments.NewPostgresRepository(pool), patientRepo, logger),
		Appointments:       appointments.NewHandler(a.Appointments, logger),
		Recurring:          recurring.NewHandler(a.Recurring, logger),
		Waitlist:           waitlist.NewHandler(a.Waitlist, logger),
		Stats:              stats.NewHandler(a.Stats, logger),
		Users:              users.NewHandler(a.Users, logger),
		Calendar:           calendar.NewHandler(a.Calendar, logger),
		Live:               live.NewHandler(a.Hub, cfg.CORSAllowedOrigins, logger),
		Ready:              a.Ready,
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        limiter,
	})

	return a, nil
}

// Router returns the HTTP handler for the API.
func (a *App) Router() http.Handler {
	return a.router
}

// Ready pings Postgres and, when configured, Redis.
func (a *App) Ready(ctx context.Context) error {
	if err := a.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	if a.redis != nil {
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// Close drains background sends. The pool and Redis client belong to the
// caller.
func (a *App) Close() {
	if a.limiter != nil {
		a.limiter.Close()
	}
	a.Waitlist.Wait()
	a.Calendar.Wait()
	a.Notify.Wait()
}
