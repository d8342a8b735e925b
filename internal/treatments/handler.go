package treatments

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/vetclinic-platform/internal/http/httpjson"
	"github.com/wolfman30/vetclinic-platform/internal/patients"
	"github.com/wolfman30/vetclinic-platform/internal/tenancy"
	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

// PatientFinder checks that a patient belongs to the tenant.
type PatientFinder interface {
	Get(ctx context.Context, tenantID, id string) (*patients.Patient, error)
}

// Handler serves treatment records.
type Handler struct {
	repo     Repository
	patients PatientFinder
	logger   *logging.Logger
}

func NewHandler(repo Repository, pats PatientFinder, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, patients: pats, logger: logger}
}

// PatientRoutes mounts under /patients/{patientID}/treatments.
func (h *Handler) PatientRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.ListByPatient)
}

// Routes mounts under /treatments.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/{treatmentID}", h.Get)
	r.Patch("/{treatmentID}", h.Update)
	r.Delete("/{treatmentID}", h.Delete)
}

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
	h.logger.Info("treatment recorded", "tenant_id", tenantID, "patient_id", patientID, "treatment_id", rec.ID)
	httpjson.Write(w, http.StatusCreated, rec)
}

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
	httpjson.Write(w, http.StatusOK, list)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenancy.RequireTenantID(r.Context())
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	rec, err := h.repo.Get(r.Context(), tenantID, chi.URLParam(r, "treatmentID"))
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	httpjson.Write(w, http.StatusOK, rec)
}

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
	rec, err := h.repo.Get(r.Context(), tenantID, chi.URLParam(r, "treatmentID"))
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
	httpjson.Write(w, http.StatusOK, rec)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenancy.RequireTenantID(r.Context())
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	if err := h.repo.Delete(r.Context(), tenantID, chi.URLParam(r, "treatmentID")); err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
