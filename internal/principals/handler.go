package principals

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/formwork-pm/formwork/internal/authz"
	"github.com/formwork-pm/formwork/internal/platform/httpx"
	"github.com/formwork-pm/formwork/internal/shared"
)

// Handler manages the administrative principal endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	authz    authz.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, az authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New(), authz: az}
}

// MountRoutes registers principal administration routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.FlagManageUsers))
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{principalID}", h.get)
		r.Put("/{principalID}/active", h.setActive)
		r.Put("/{principalID}/cost-overrides", h.setCostOverrides)
		r.Put("/{principalID}/access", h.replaceAccess)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.FlagManageRoles))
		r.Put("/{principalID}/role", h.changeRole)
	})
}

type principalView struct {
	ID               string   `json:"id"`
	Email            string   `json:"email"`
	Name             string   `json:"name"`
	Role             string   `json:"role"`
	IsActive         bool     `json:"is_active"`
	AssignedProjects []string `json:"assigned_projects"`
	Permissions      []string `json:"permissions"`
	CanViewCosts     *bool    `json:"can_view_costs,omitempty"`
	CanEditCosts     *bool    `json:"can_edit_costs,omitempty"`
}

func toView(p Principal) principalView {
	return principalView{
		ID:               p.ID,
		Email:            p.Email,
		Name:             p.Name,
		Role:             p.RoleKey,
		IsActive:         p.IsActive,
		AssignedProjects: p.AssignedProjects,
		Permissions:      p.Permissions,
		CanViewCosts:     p.CanViewCosts,
		CanEditCosts:     p.CanEditCosts,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	principals, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list principals", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]principalView, len(principals))
	for i, p := range principals {
		out[i] = toView(p)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"principals": out})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "principalID"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toView(p))
}

type createPayload struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,min=2"`
	Role     string `json:"role" validate:"required"`
	Password string `json:"password" validate:"required,min=10"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var payload createPayload
	if !h.decode(w, r, &payload) {
		return
	}
	created, err := h.service.Create(r.Context(), h.actor(r), Principal{
		Email:   payload.Email,
		Name:    payload.Name,
		RoleKey: payload.Role,
	}, payload.Password)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toView(created))
}

type rolePayload struct {
	Role string `json:"role" validate:"required"`
}

func (h *Handler) changeRole(w http.ResponseWriter, r *http.Request) {
	var payload rolePayload
	if !h.decode(w, r, &payload) {
		return
	}
	if err := h.service.ChangeRole(r.Context(), h.actor(r), chi.URLParam(r, "principalID"), payload.Role); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type activePayload struct {
	Active *bool `json:"active" validate:"required"`
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request) {
	var payload activePayload
	if !h.decode(w, r, &payload) {
		return
	}
	if err := h.service.SetActive(r.Context(), h.actor(r), chi.URLParam(r, "principalID"), *payload.Active); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type overridesPayload struct {
	CanViewCosts *bool `json:"can_view_costs"`
	CanEditCosts *bool `json:"can_edit_costs"`
}

func (h *Handler) setCostOverrides(w http.ResponseWriter, r *http.Request) {
	var payload overridesPayload
	if !h.decode(w, r, &payload) {
		return
	}
	if err := h.service.SetCostOverrides(r.Context(), h.actor(r), chi.URLParam(r, "principalID"), payload.CanViewCosts, payload.CanEditCosts); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type accessPayload struct {
	AssignedProjects []string `json:"assigned_projects" validate:"dive,uuid4"`
	Permissions      []string `json:"permissions"`
}

func (h *Handler) replaceAccess(w http.ResponseWriter, r *http.Request) {
	var payload accessPayload
	if !h.decode(w, r, &payload) {
		return
	}
	if err := h.service.ReplaceAccess(r.Context(), h.actor(r), chi.URLParam(r, "principalID"), payload.AssignedProjects, payload.Permissions); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) actor(r *http.Request) string {
	return shared.PrincipalIDFromContext(r.Context())
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	if errors.Is(err, shared.ErrNotFound) {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	h.logger.Error("principal admin", slog.Any("error", err))
	httpx.RespondError(w, err)
}
