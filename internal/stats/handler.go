package stats

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/vetclinic-platform/internal/http/httpjson"
	"github.com/wolfman30/vetclinic-platform/internal/tenancy"
	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

// Handler serves the stats endpoints.
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the handler on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/dashboard", h.Dashboard)
	r.Get("/appointments", h.Appointments)
}

// Dashboard handles GET /stats/dashboard.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenancy.RequireTenantID(r.Context())
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	out, err := h.svc.DashboardStats(r.Context(), tenantID)
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	httpjson.Write(w, http.StatusOK, out)
}

// Appointments handles GET /stats/appointments.
func (h *Handler) Appointments(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenancy.RequireTenantID(r.Context())
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	out, err := h.svc.AppointmentStats(r.Context(), tenantID)
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	httpjson.Write(w, http.StatusOK, out)
}
