package projects

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/formwork-pm/formwork/internal/authz"
	"github.com/formwork-pm/formwork/internal/platform/httpx"
	"github.com/formwork-pm/formwork/internal/shared"
)

// Handler manages project endpoints. Every response row passes through the
// cost filter before serialization.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	guard    *authz.Guard
	validate *validator.Validate
	authz    authz.Middleware
	printer  *message.Printer
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard *authz.Guard, az authz.Middleware) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		guard:    guard,
		validate: validator.New(),
		authz:    az,
		printer:  message.NewPrinter(language.English),
	}
}

// MountRoutes registers the project collection routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.FlagCreateProjects))
		r.Post("/", h.create)
	})
}

// MountProjectRoutes registers routes under /{projectID}. The caller
// applies RequireProject before mounting.
func (h *Handler) MountProjectRoutes(r chi.Router) {
	r.Get("/", h.get)
	r.Post("/members", h.addMember)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	set, ok := h.resolve(w, r)
	if !ok {
		return
	}
	list, err := h.service.ListVisible(r.Context(), set)
	if err != nil {
		h.logger.Error("list projects", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	rows := make([]map[string]any, len(list))
	for i, p := range list {
		rows[i] = h.projectRow(p)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"projects": authz.FilterCostFields(rows, set)})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	set, ok := h.resolve(w, r)
	if !ok {
		return
	}
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("get project", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	filtered := authz.FilterCostFields([]map[string]any{h.projectRow(p)}, set)
	httpx.JSON(w, http.StatusOK, filtered[0])
}

type createPayload struct {
	Code      string  `json:"code" validate:"required,min=2,max=16"`
	Name      string  `json:"name" validate:"required,min=2"`
	Budget    float64 `json:"budget" validate:"gte=0"`
	ManagerID string  `json:"manager_id" validate:"omitempty,uuid4"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	set, ok := h.resolve(w, r)
	if !ok {
		return
	}
	var payload createPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	// Setting a budget is a cost edit.
	if payload.Budget > 0 && !set.CanEditCosts {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	created, err := h.service.Create(r.Context(), set.PrincipalID, Project{
		Code:      payload.Code,
		Name:      payload.Name,
		Budget:    payload.Budget,
		ManagerID: payload.ManagerID,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filtered := authz.FilterCostFields([]map[string]any{h.projectRow(created)}, set)
	httpx.JSON(w, http.StatusCreated, filtered[0])
}

type memberPayload struct {
	PrincipalID string `json:"principal_id" validate:"required,uuid4"`
	Role        string `json:"role" validate:"omitempty,oneof=member manager viewer"`
}

func (h *Handler) addMember(w http.ResponseWriter, r *http.Request) {
	var payload memberPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.AddMember(r.Context(), chi.URLParam(r, "projectID"), payload.PrincipalID, payload.Role); err != nil {
		h.logger.Error("add project member", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) projectRow(p Project) map[string]any {
	return map[string]any{
		"id":             p.ID,
		"code":           p.Code,
		"name":           p.Name,
		"status":         p.Status,
		"budget":         p.Budget,
		"actual_cost":    p.ActualCost,
		"budget_display": h.printer.Sprintf("%.2f", p.Budget),
		"created_by":     p.CreatedBy,
		"manager_id":     p.ManagerID,
		"created_at":     p.CreatedAt.Format(time.RFC3339),
	}
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) (authz.PermissionSet, bool) {
	principalID := shared.PrincipalIDFromContext(r.Context())
	if principalID == "" {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return authz.PermissionSet{}, false
	}
	set, err := h.guard.Resolve(r.Context(), principalID)
	if err != nil {
		h.logger.Error("resolve principal", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Authorization Unavailable", "authorization store unreachable, retry")
		return authz.PermissionSet{}, false
	}
	return set, true
}
