package users

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/vetclinic-platform/internal/http/httpjson"
	"github.com/wolfman30/vetclinic-platform/internal/tenancy"
	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

// Handler serves the user endpoints.
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
	r.Get("/me", h.Me)
	r.Get("/{userID}", h.Get)
	r.Patch("/{userID}", h.Update)
	r.Post("/{userID}/deactivate", h.Deactivate)
}

func identity(r *http.Request) (tenantID, userID string, err error) {
	tenantID, err = tenancy.RequireTenantID(r.Context())
	if err != nil {
		return "", "", err
	}
	userID, _ = tenancy.UserIDFromContext(r.Context())
	return tenantID, userID, nil
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, actorID, err := identity(r)
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	var in CreateInput
	if err := httpjson.Decode(r, &in); err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	u, err := h.svc.Create(r.Context(), tenantID, actorID, in)
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	httpjson.Write(w, http.StatusCreated, u)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, actorID, err := identity(r)
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	skip, limit, err := httpjson.Pagination(r, 100, 500)
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	list, err := h.svc.List(r.Context(), tenantID, actorID, skip, limit)
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	httpjson.Write(w, http.StatusOK, list)
}

// Me handles GET /users/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	tenantID, actorID, err := identity(r)
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	u, err := h.svc.Me(r.Context(), tenantID, actorID)
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	httpjson.Write(w, http.StatusOK, u)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, actorID, err := identity(r)
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	u, err := h.svc.Get(r.Context(), tenantID, actorID, chi.URLParam(r, "userID"))
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	httpjson.Write(w, http.StatusOK, u)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	tenantID, actorID, err := identity(r)
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	var in UpdateInput
	if err := httpjson.Decode(r, &in); err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	u, err := h.svc.Update(r.Context(), tenantID, actorID, chi.URLParam(r, "userID"), in)
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	httpjson.Write(w, http.StatusOK, u)
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	tenantID, actorID, err := identity(r)
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	u, err := h.svc.Deactivate(r.Context(), tenantID, actorID, chi.URLParam(r, "userID"))
	if err != nil {
		httpjson.Error(w, h.logger, err)
		return
	}
	httpjson.Write(w, http.StatusOK, u)
}
