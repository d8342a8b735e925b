package calendar

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/vetclinic-platform/internal/apperr"
	"github.com/wolfman30/vetclinic-platform/internal/http/httpjson"
	"github.com/wolfman30/vetclinic-platform/internal/tenancy"
	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

// Handler serves the calendar endpoints.
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

// Routes mounts the authenticated endpoints. The OAuth callback is public
// and mounted separately via Callback.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/authorize", h.Authorize)
	r.Post("/appointments/{appointmentID}/sync", h.Sync)
	r.Delete("/disconnect", h.Disconnect)
}

type messageResponse struct {
	Message string `json:"message"`
}

// Authorize handles GET /calendar/authorize.
func (h *Handler) Authorize(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenancy.RequireTenantID(r.Context())
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	url, err := h.svc.AuthorizeURL(r.Context(), tenantID)
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]string{"authorization_url": url})
}

// Callback handles GET /calendar/callback?code=&state=. The tenant comes
// from the signed state, not from request headers.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if reason := q.Get("error"); reason != "" {
		httpjson.Error(w, h.logger, apperr.Validation("authorization denied: %s", reason))
		return
	}
	if _, err := h.svc.Callback(r.Context(), q.Get("code"), q.Get("state")); err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	httpjson.Write(w, http.StatusOK, messageResponse{Message: "Calendar connected successfully"})
}

type syncResponse struct {
	Message string `json:"message"`
	SyncResult
}

// Sync handles POST /calendar/appointments/{appointmentID}/sync.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenancy.RequireTenantID(r.Context())
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	res, err := h.svc.Sync(r.Context(), tenantID, chi.URLParam(r, "appointmentID"))
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	httpjson.Write(w, http.StatusOK, syncResponse{Message: "Appointment synced to calendar", SyncResult: *res})
}

// Disconnect handles DELETE /calendar/disconnect.
func (h *Handler) Disconnect(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenancy.RequireTenantID(r.Context())
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	if err := h.svc.Disconnect(r.Context(), tenantID); err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	httpjson.Write(w, http.StatusOK, messageResponse{Message: "Calendar disconnected successfully"})
}
