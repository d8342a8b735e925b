package waitlist

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/vetclinic-platform/internal/apperr"
	"github.com/wolfman30/vetclinic-platform/internal/http/httpjson"
	"github.com/wolfman30/vetclinic-platform/internal/scheduling"
	"github.com/wolfman30/vetclinic-platform/internal/tenancy"
	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

// Handler serves the waitlist endpoints.
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
	r.Post("/", h.Add)
	r.Get("/", h.List)
	r.Get("/{entryID}", h.Get)
	r.Patch("/{entryID}", h.Update)
	r.Delete("/{entryID}", h.Remove)
	r.Post("/{entryID}/fulfill", h.Fulfill)
}

type addRequest struct {
	PatientID          string  `json:"patient_id"`
	DesiredDate        string  `json:"desired_date"`
	PreferredTimeStart *string `json:"preferred_time_start"`
	PreferredTimeEnd   *string `json:"preferred_time_end"`
	Notes              string  `json:"notes"`
	ContactPreference  string  `json:"contact_preference"`
	Priority           int     `json:"priority"`
}

type updateRequest struct {
	DesiredDate        *string `json:"desired_date"`
	PreferredTimeStart *string `json:"preferred_time_start"`
	PreferredTimeEnd   *string `json:"preferred_time_end"`
	Notes              *string `json:"notes"`
	ContactPreference  *string `json:"contact_preference"`
	Priority           *int    `json:"priority"`
	IsActive           *bool   `json:"is_active"`
}

func parseOptional(name string, raw *string, loc *time.Location) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	t, err := scheduling.ParseTimestamp(*raw, loc)
	if err != nil {
		return nil, apperr.Validation("%s: %v", name, err)
	}
	return &t, nil
}

// Add handles POST /waitlist.
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenancy.RequireTenantID(r.Context())
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	var req addRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	loc := tenancy.LocationFromContext(r.Context())
	in := AddInput{
		PatientID:         req.PatientID,
		Notes:             req.Notes,
		ContactPreference: req.ContactPreference,
		Priority:          req.Priority,
	}
	if req.DesiredDate != "" {
		if in.DesiredDate, err = scheduling.ParseDate(req.DesiredDate, loc); err != nil {
			httpjson.Error(w, h.logger, apperr.Validation("desired_date: %v", err))
			return
		}
	}
	if in.PreferredTimeStart, err = parseOptional("preferred_time_start", req.PreferredTimeStart, loc); err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	if in.PreferredTimeEnd, err = parseOptional("preferred_time_end", req.PreferredTimeEnd, loc); err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	e, err := h.svc.Add(r.Context(), tenantID, in)
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	httpjson.Write(w, http.StatusCreated, e)
}

// List handles GET /waitlist?active_only=true&patient_id=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenancy.RequireTenantID(r.Context())
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	activeOnly, err := httpjson.QueryBool(r, "active_only", true)
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	list, err := h.svc.List(r.Context(), tenantID, ListFilter{ActiveOnly: activeOnly, PatientID: r.URL.Query().Get("patient_id")})
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	httpjson.Write(w, http.StatusOK, list)
}

// Get handles GET /waitlist/{entryID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenancy.RequireTenantID(r.Context())
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	e, err := h.svc.Get(r.Context(), tenantID, chi.URLParam(r, "entryID"))
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	httpjson.Write(w, http.StatusOK, e)
}

// Update handles PATCH /waitlist/{entryID}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenancy.RequireTenantID(r.Context())
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	var req updateRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	loc := tenancy.LocationFromContext(r.Context())
	in := UpdateInput{
		Notes:             req.Notes,
		ContactPreference: req.ContactPreference,
		Priority:          req.Priority,
		IsActive:          req.IsActive,
	}
	if req.DesiredDate != nil {
		d, err := scheduling.ParseDate(*req.DesiredDate, loc)
		if err != nil {
			httpjson.Error(w, h.logger, apperr.Validation("desired_date: %v", err))
			return
		}
		in.DesiredDate = &d
	}
	if in.PreferredTimeStart, err = parseOptional("preferred_time_start", req.PreferredTimeStart, loc); err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	if in.PreferredTimeEnd, err = parseOptional("preferred_time_end", req.PreferredTimeEnd, loc); err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	e, err := h.svc.Update(r.Context(), tenantID, chi.URLParam(r, "entryID"), in)
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	httpjson.Write(w, http.StatusOK, e)
}

// Fulfill handles POST /waitlist/{entryID}/fulfill.
func (h *Handler) Fulfill(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenancy.RequireTenantID(r.Context())
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	e, err := h.svc.Fulfill(r.Context(), tenantID, chi.URLParam(r, "entryID"))
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	httpjson.Write(w, http.StatusOK, e)
}

// Remove handles DELETE /waitlist/{entryID}.
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenancy.RequireTenantID(r.Context())
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	if err := h.svc.Remove(r.Context(), tenantID, chi.URLParam(r, "entryID")); err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
