package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/vetclinic-platform/internal/appointments"
	"github.com/wolfman30/vetclinic-platform/internal/calendar"
	"github.com/wolfman30/vetclinic-platform/internal/http/httpjson"
	httpmiddleware "github.com/wolfman30/vetclinic-platform/internal/http/middleware"
	"github.com/wolfman30/vetclinic-platform/internal/patients"
	"github.com/wolfman30/vetclinic-platform/internal/recurring"
	"github.com/wolfman30/vetclinic-platform/internal/stats"
	"github.com/wolfman30/vetclinic-platform/internal/treatments"
	"github.com/wolfman30/vetclinic-platform/internal/users"
	"github.com/wolfman30/vetclinic-platform/internal/vaccines"
	"github.com/wolfman30/vetclinic-platform/internal/waitlist"
	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

// Config holds router configuration. Nil handlers are not mounted.
type Config struct {
	Logger *logging.Logger

	JWTSecret string
	JWTIssuer string
	Tenants   httpmiddleware.TenantLookup

	Patients     *patients.Handler
	Vaccines     *vaccines.Handler
	Treatments   *treatments.Handler
	Appointments *appointments.Handler
	Recurring    *recurring.Handler
	Waitlist     *waitlist.Handler
	Stats        *stats.Handler
	Users        *users.Handler
	Calendar     *calendar.Handler
	Live         http.Handler

	// Ready reports whether backing stores are reachable.
	Ready              func(ctx context.Context) error
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	RateLimiter        httpmiddleware.Limiter
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpmiddleware.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			httpjson.Write(w, http.StatusOK, map[string]string{"status": "ok"})
		})
		public.Get("/ready", readyHandler(cfg.Ready, logger))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		// OAuth callback: the tenant comes from the signed state.
		if cfg.Calendar != nil {
			public.Get("/api/v1/calendar/callback", cfg.Calendar.Callback)
		}
	})

	// Tenant-scoped API
	r.Route("/api/v1", func(api chi.Router) {
		if cfg.RateLimiter != nil {
			api.Use(httpmiddleware.RateLimit(cfg.RateLimiter, logger))
		}
		api.Use(httpmiddleware.RequireUser(cfg.JWTSecret, cfg.JWTIssuer, logger))
		api.Use(httpmiddleware.ResolveTenant(cfg.Tenants, logger))

		if cfg.Patients != nil {
			api.Route("/patients", func(r chi.Router) {
				cfg.Patients.Routes(r)
				if cfg.Vaccines != nil {
					r.Route("/{patientID}/vaccines", cfg.Vaccines.PatientRoutes)
				}
				if cfg.Treatments != nil {
					r.Route("/{patientID}/treatments", cfg.Treatments.PatientRoutes)
				}
			})
		}
		if cfg.Vaccines != nil {
			api.Route("/vaccines", cfg.Vaccines.Routes)
		}
		if cfg.Treatments != nil {
			api.Route("/treatments", cfg.Treatments.Routes)
		}
		if cfg.Appointments != nil {
			api.Route("/appointments", cfg.Appointments.Routes)
		}
		if cfg.Recurring != nil {
			api.Route("/recurring-appointments", cfg.Recurring.Routes)
		}
		if cfg.Waitlist != nil {
			api.Route("/waitlist", cfg.Waitlist.Routes)
		}
		if cfg.Stats != nil {
			api.Route("/stats", cfg.Stats.Routes)
		}
		if cfg.Users != nil {
			api.Route("/users", cfg.Users.Routes)
		}
		if cfg.Calendar != nil {
			api.Route("/calendar", cfg.Calendar.Routes)
		}
		if cfg.Live != nil {
			api.Handle("/ws/appointments", cfg.Live)
		}
	})

	return r
}

func readyHandler(ready func(ctx context.Context) error, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ready(ctx); err != nil {
				logger.Warn("readiness check failed", "error", err)
				httpjson.Write(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		httpjson.Write(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
