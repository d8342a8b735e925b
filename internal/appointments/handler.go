package appointments

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

// Handler serves the appointment endpoints.
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

// NewHandler creates an appointments handler.
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
	r.Get("/{appointmentID}", h.Get)
	r.Patch("/{appointmentID}", h.Update)
	r.Post("/{appointmentID}/cancel", h.Cancel)
	r.Post("/{appointmentID}/no-show", h.MarkNoShow)
	r.Post("/{appointmentID}/remind", h.SendReminder)
}

type createRequest struct {
	PatientID       string `json:"patient_id"`
	AppointmentTime string `json:"appointment_time"`
	DurationMinutes int    `json:"duration_minutes"`
	Notes           string `json:"notes"`
	Diagnosis       string `json:"diagnosis"`
	MedicineGiven   string `json:"medicine_given"`
}

type updateRequest struct {
	AppointmentTime *string `json:"appointment_time"`
	DurationMinutes *int    `json:"duration_minutes"`
	Status          *string `json:"status"`
	Notes           *string `json:"notes"`
	Diagnosis       *string `json:"diagnosis"`
	MedicineGiven   *string `json:"medicine_given"`
}

// Create handles POST /appointments.
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
	in := CreateInput{
		PatientID:       req.PatientID,
		DurationMinutes: req.DurationMinutes,
		Notes:           req.Notes,
		Diagnosis:       req.Diagnosis,
		MedicineGiven:   req.MedicineGiven,
	}
	if req.AppointmentTime != "" {
		t, err := scheduling.ParseTimestamp(req.AppointmentTime, tenancy.LocationFromContext(r.Context()))
		if err != nil {
			httpjson.Error(w, h.logger, apperr.Validation("appointment_time: %v", err))
			return
		}
		in.AppointmentTime = t
	}
	appt, err := h.svc.Create(r.Context(), tenantID, in)
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	httpjson.Write(w, http.StatusCreated, appt)
}

// List handles GET /appointments?skip=&limit=&patient_id=&status=&date_from=&date_to=.
// A date-only date_to includes that whole day.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenancy.RequireTenantID(r.Context())
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	filter, err := parseListFilter(r)
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	list, err := h.svc.List(r.Context(), tenantID, filter)
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	httpjson.Write(w, http.StatusOK, list)
}

func parseListFilter(r *http.Request) (ListFilter, error) {
	skip, limit, err := httpjson.Pagination(r, 100, 500)
	if err != nil {
		return ListFilter{}, err
	}
	q := r.URL.Query()
	filter := ListFilter{Skip: skip, Limit: limit, PatientID: q.Get("patient_id")}
	if raw := q.Get("status"); raw != "" {
		if filter.Status, err = ParseStatus(raw); err != nil {
			return ListFilter{}, err
		}
	}
	loc := tenancy.LocationFromContext(r.Context())
	if raw := q.Get("date_from"); raw != "" {
		from, err := scheduling.ParseDate(raw, loc)
		if err != nil {
			return ListFilter{}, apperr.Validation("date_from: %v", err)
		}
		filter.From = &from
	}
	if raw := q.Get("date_to"); raw != "" {
		to, err := scheduling.ParseDate(raw, loc)
		if err != nil {
			return ListFilter{}, apperr.Validation("date_to: %v", err)
		}
		if scheduling.IsDateOnly(raw) {
			to = to.AddDate(0, 0, 1)
		} else {
			to = to.Add(time.Nanosecond)
		}
		filter.To = &to
	}
	return filter, nil
}

// Get handles GET /appointments/{appointmentID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenancy.RequireTenantID(r.Context())
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	appt, err := h.svc.Get(r.Context(), tenantID, chi.URLParam(r, "appointmentID"))
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	httpjson.Write(w, http.StatusOK, appt)
}

// Update handles PATCH /appointments/{appointmentID}.
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
	in := UpdateInput{
		DurationMinutes: req.DurationMinutes,
		Notes:           req.Notes,
		Diagnosis:       req.Diagnosis,
		MedicineGiven:   req.MedicineGiven,
	}
	if req.AppointmentTime != nil {
		t, err := scheduling.ParseTimestamp(*req.AppointmentTime, tenancy.LocationFromContext(r.Context()))
		if err != nil {
			httpjson.Error(w, h.logger, apperr.Validation("appointment_time: %v", err))
			return
		}
		in.AppointmentTime = &t
	}
	if req.Status != nil {
		status, err := ParseStatus(*req.Status)
		if err != nil {
			httpjson.Error(w, h.logger, err)
			return
		}
		in.Status = &status
	}
	appt, err := h.svc.Update(r.Context(), tenantID, chi.URLParam(r, "appointmentID"), in)
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	httpjson.Write(w, http.StatusOK, appt)
}

// Cancel handles POST /appointments/{appointmentID}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenancy.RequireTenantID(r.Context())
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	appt, err := h.svc.Cancel(r.Context(), tenantID, chi.URLParam(r, "appointmentID"))
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	httpjson.Write(w, http.StatusOK, appt)
}

// MarkNoShow handles POST /appointments/{appointmentID}/no-show.
func (h *Handler) MarkNoShow(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenancy.RequireTenantID(r.Context())
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	appt, err := h.svc.MarkNoShow(r.Context(), tenantID, chi.URLParam(r, "appointmentID"))
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	httpjson.Write(w, http.StatusOK, appt)
}

// SendReminder handles POST /appointments/{appointmentID}/remind?hours=24.
func (h *Handler) SendReminder(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenancy.RequireTenantID(r.Context())
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	hours, err := httpjson.QueryInt(r, "hours", DefaultReminderHours)
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	if hours < 1 || hours > 168 {
		httpjson.Error(w, h.logger, apperr.Validation("hours must be between 1 and 168"))
		return
	}
	res, err := h.svc.SendReminder(r.Context(), tenantID, chi.URLParam(r, "appointmentID"), hours)
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	httpjson.Write(w, http.StatusOK, res)
}
