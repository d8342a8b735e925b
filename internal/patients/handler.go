package patients

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/vetclinic-platform/internal/http/httpjson"
	"github.com/wolfman30/vetclinic-platform/internal/tenancy"
	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

// Handler serves the patient endpoints.
type Handler struct {
	repo   Repository
	logger *logging.Logger
	now    func() time.Time
}

// NewHandler creates a patients handler.
func NewHandler(repo Repository, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, logger: logger, now: time.Now}
}

// Routes mounts the handler on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{patientID}", h.Get)
	r.Patch("/{patientID}", h.Update)
	r.Delete("/{patientID}", h.Delete)
}

// Response adds the computed fields to a patient.
type Response struct {
	*Patient
	AgeYears      *int   `json:"age_years"`
	OwnerFullName string `json:"owner_full_name"`
	DisplayName   string `json:"display_name"`
}

func (h *Handler) present(p *Patient) Response {
	return Response{Patient: p, AgeYears: p.AgeYears(h.now()), OwnerFullName: p.OwnerFullName(), DisplayName: p.DisplayName()}
}

// Create handles POST /patients.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
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
	p, err := NewPatient(tenantID, in)
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	if err := h.repo.Create(r.Context(), p); err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	h.logger.Info("patient created", "tenant_id", tenantID, "patient_id", p.ID)
	httpjson.Write(w, http.StatusCreated, h.present(p))
}

// List handles GET /patients?skip=&limit=&search=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenancy.RequireTenantID(r.Context())
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	skip, limit, err := httpjson.Pagination(r, 100, 500)
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	list, err := h.repo.List(r.Context(), tenantID, ListFilter{Skip: skip, Limit: limit, Search: r.URL.Query().Get("search")})
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	out := make([]Response, 0, len(list))
	for _, p := range list {
		out = append(out, h.present(p))
	}
	httpjson.Write(w, http.StatusOK, out)
}

// Get handles GET /patients/{patientID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenancy.RequireTenantID(r.Context())
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	p, err := h.repo.Get(r.Context(), tenantID, chi.URLParam(r, "patientID"))
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	httpjson.Write(w, http.StatusOK, h.present(p))
}

// Update handles PATCH /patients/{patientID}.
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
	p, err := h.repo.Get(r.Context(), tenantID, chi.URLParam(r, "patientID"))
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	if err := in.ApplyTo(p); err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	if err := h.repo.Update(r.Context(), p); err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	httpjson.Write(w, http.StatusOK, h.present(p))
}

// Delete handles DELETE /patients/{patientID}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenancy.RequireTenantID(r.Context())
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	if err := h.repo.Delete(r.Context(), tenantID, chi.URLParam(r, "patientID")); err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	h.logger.Info("patient deleted", "tenant_id", tenantID, "patient_id", chi.URLParam(r, "patientID"))
	w.WriteHeader(http.StatusNoContent)
}
