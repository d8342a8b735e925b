package recurring

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

// Handler serves the recurring appointment endpoints.
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
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{recurringID}", h.Get)
	r.Patch("/{recurringID}", h.Update)
	r.Delete("/{recurringID}", h.Delete)
	r.Post("/{recurringID}/generate", h.Generate)
}

type createRequest struct {
	PatientID       string  `json:"patient_id"`
	Pattern         string  `json:"pattern"`
	Interval        int     `json:"interval"`
	StartDate       string  `json:"start_date"`
	EndDate         *string `json:"end_date"`
	TimeOfDay       string  `json:"time_of_day"`
	DurationMinutes int     `json:"duration_minutes"`
	Notes           string  `json:"notes"`
}

type updateRequest struct {
	Pattern         *string `json:"pattern"`
	Interval        *int    `json:"interval"`
	StartDate       *string `json:"start_date"`
	EndDate         *string `json:"end_date"`
	TimeOfDay       *string `json:"time_of_day"`
	DurationMinutes *int    `json:"duration_minutes"`
	Notes           *string `json:"notes"`
	IsActive        *bool   `json:"is_active"`
}

type createResponse struct {
	Template   *Template `json:"recurring_appointment"`
	Generation Result    `json:"generation"`
}

func parseDateField(name, raw string, loc *time.Location) (time.Time, error) {
	t, err := scheduling.ParseDate(raw, loc)
	if err != nil {
		return time.Time{}, apperr.Validation("%s: %v", name, err)
	}
	return t, nil
}

// Create handles POST /recurring-appointments.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenancy.RequireTenantID(r.Context())
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	var req createRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	loc := tenancy.LocationFromContext(r.Context())
	in := CreateInput{
		PatientID:       req.PatientID,
		Pattern:         req.Pattern,
		Interval:        req.Interval,
		TimeOfDay:       req.TimeOfDay,
		DurationMinutes: req.DurationMinutes,
		Notes:           req.Notes,
	}
	if req.StartDate != "" {
		if in.StartDate, err = parseDateField("start_date", req.StartDate, loc); err != nil {
			httpjson.Error(w, h.logger, err)
			return
		}
	}
	if req.EndDate != nil {
		end, err := parseDateField("end_date", *req.EndDate, loc)
		if err != nil {
			httpjson.Error(w, h.logger, err)
			return
		}
		in.EndDate = &end
	}
	t, res, err := h.svc.Create(r.Context(), tenantID, in)
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	httpjson.Write(w, http.StatusCreated, createResponse{Template: t, Generation: res})
}

// List handles GET /recurring-appointments?active_only=true&patient_id=.
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

// Get handles GET /recurring-appointments/{recurringID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenancy.RequireTenantID(r.Context())
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	t, err := h.svc.Get(r.Context(), tenantID, chi.URLParam(r, "recurringID"))
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	httpjson.Write(w, http.StatusOK, t)
}

// Update handles PATCH /recurring-appointments/{recurringID}.
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
		Pattern:         req.Pattern,
		Interval:        req.Interval,
		TimeOfDay:       req.TimeOfDay,
		DurationMinutes: req.DurationMinutes,
		Notes:           req.Notes,
		IsActive:        req.IsActive,
	}
	if req.StartDate != nil {
		start, err := parseDateField("start_date", *req.StartDate, loc)
		if err != nil {
			httpjson.Error(w, h.logger, err)
			return
		}
		in.StartDate = &start
	}
	if req.EndDate != nil {
		end, err := parseDateField("end_date", *req.EndDate, loc)
		if err != nil {
			httpjson.Error(w, h.logger, err)
			return
		}
		in.EndDate = &end
	}
	t, err := h.svc.Update(r.Context(), tenantID, chi.URLParam(r, "recurringID"), in)
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	httpjson.Write(w, http.StatusOK, t)
}

// Delete handles DELETE /recurring-appointments/{recurringID}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenancy.RequireTenantID(r.Context())
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	if err := h.svc.Delete(r.Context(), tenantID, chi.URLParam(r, "recurringID")); err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Generate handles POST /recurring-appointments/{recurringID}/generate?horizon_days=90.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenancy.RequireTenantID(r.Context())
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	horizon, err := httpjson.QueryInt(r, "horizon_days", 0)
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	if horizon < 0 {
		httpjson.Error(w, h.logger, apperr.Validation("horizon_days must be positive"))
		return
	}
	res, err := h.svc.Expand(r.Context(), tenantID, chi.URLParam(r, "recurringID"), horizon)
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	httpjson.Write(w, http.StatusOK, res)
}
