package vaccines

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/vetclinic-platform/internal/apperr"
	"github.com/wolfman30/vetclinic-platform/internal/http/httpjson"
	"github.com/wolfman30/vetclinic-platform/internal/patients"
	"github.com/wolfman30/vetclinic-platform/internal/tenancy"
	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

// PatientFinder checks that a patient belongs to the tenant.
type PatientFinder interface {
	Get(ctx context.Context, tenantID, id string) (*patients.Patient, error)
}

// Handler serves vaccine records.
type Handler struct {
	repo     Repository
	patients PatientFinder
	logger   *logging.Logger
	now      func() time.Time
}

func NewHandler(repo Repository, pats PatientFinder, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, patients: pats, logger: logger, now: time.Now}
}

// PatientRoutes mounts under /patients/{patientID}/vaccines.
func (h *Handler) PatientRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.ListByPatient)
}

// Routes mounts under /vaccines.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/due", h.Due)
	r.Get("/{vaccineID}", h.Get)
	r.Patch("/{vaccineID}", h.Update)
	r.Delete("/{vaccineID}", h.Delete)
}

// Response adds the booster status to a record.
type Response struct {
	*Record
	DueStatus
}

func (h *Handler) present(ctx context.Context, list ...*Record) []Response {
	today := Today(h.now(), tenancy.LocationFromContext(ctx))
	out := make([]Response, 0, len(list))
	for _, rec := range list {
		out = append(out, Response{Record: rec, DueStatus: rec.Due(today)})
	}
	return out
}

// Create handles POST /patients/{patientID}/vaccines.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenancy.RequireTenantID(r.Context())
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	patientID := chi.URLParam(r, "patientID")
	if _, err := h.patients.Get(r.Context(), tenantID, patientID); err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	var in Input
	if err := httpjson.Decode(r, &in); err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	rec, err := NewRecord(tenantID, patientID, in)
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	if err := h.repo.Create(r.Context(), rec); err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	h.logger.Info("vaccine recorded", "tenant_id", tenantID, "patient_id", patientID, "vaccine_id", rec.ID)
	httpjson.Write(w, http.StatusCreated, h.present(r.Context(), rec)[0])
}

// ListByPatient handles GET /patients/{patientID}/vaccines.
func (h *Handler) ListByPatient(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenancy.RequireTenantID(r.Context())
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	patientID := chi.URLParam(r, "patientID")
	if _, err := h.patients.Get(r.Context(), tenantID, patientID); err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	list, err := h.repo.ListByPatient(r.Context(), tenantID, patientID)
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	httpjson.Write(w, http.StatusOK, h.present(r.Context(), list...))
}

// Due handles GET /vaccines/due?days=30.
func (h *Handler) Due(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenancy.RequireTenantID(r.Context())
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	days, err := httpjson.QueryInt(r, "days", DueSoonDays)
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	if days < 0 || days > 365 {
		httpjson.Error(w, h.logger, apperr.Validation("days must be between 0 and 365"))
		return
	}
	today := Today(h.now(), tenancy.LocationFromContext(r.Context()))
	list, err := h.repo.DueBetween(r.Context(), tenantID, today, today.AddDate(0, 0, days))
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	httpjson.Write(w, http.StatusOK, h.present(r.Context(), list...))
}

// Get handles GET /vaccines/{vaccineID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenancy.RequireTenantID(r.Context())
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	rec, err := h.repo.Get(r.Context(), tenantID, chi.URLParam(r, "vaccineID"))
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	httpjson.Write(w, http.StatusOK, h.present(r.Context(), rec)[0])
}

// Update handles PATCH /vaccines/{vaccineID}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenancy.RequireTenantID(r.Context())
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	var in Input
	if err := httpjson.Decode(r, &in); err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	rec, err := h.repo.Get(r.Context(), tenantID, chi.URLParam(r, "vaccineID"))
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	if err := in.ApplyTo(rec); err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	if err := h.repo.Update(r.Context(), rec); err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	httpjson.Write(w, http.StatusOK, h.present(r.Context(), rec)[0])
}

// Delete handles DELETE /vaccines/{vaccineID}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenancy.RequireTenantID(r.Context())
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	if err := h.repo.Delete(r.Context(), tenantID, chi.URLParam(r, "vaccineID")); err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
