package changeorders

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/formwork-pm/formwork/internal/authz"
	"github.com/formwork-pm/formwork/internal/platform/httpx"
	"github.com/formwork-pm/formwork/internal/shared"
)

// Handler manages change order endpoints, mounted under a project route
// that is already gated by project access.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	guard    *authz.Guard
	validate *validator.Validate
	authz    authz.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard *authz.Guard, az authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, guard: guard, validate: validator.New(), authz: az}
}

// MountRoutes registers change order routes. The parent router applies
// RequireProject, so only capability flags are checked here.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.FlagEditChangeOrders))
		r.Post("/", h.raise)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.FlagApproveChangeOrders))
		r.Post("/{changeOrderID}/decision", h.decide)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	set, ok := h.resolve(w, r)
	if !ok {
		return
	}
	orders, err := h.service.ListByProject(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		h.logger.Error("list change orders", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	rows := make([]map[string]any, len(orders))
	for i, co := range orders {
		rows[i] = changeOrderRow(co)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"change_orders": authz.FilterCostFields(rows, set, "amount")})
}

type raisePayload struct {
	Description string  `json:"description" validate:"required,min=5"`
	Amount      float64 `json:"amount"`
}

func (h *Handler) raise(w http.ResponseWriter, r *http.Request) {
	set, ok := h.resolve(w, r)
	if !ok {
		return
	}
	var payload raisePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if payload.Amount != 0 && !set.CanEditCosts {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	co, err := h.service.Raise(r.Context(), set.PrincipalID, chi.URLParam(r, "projectID"), payload.Description, payload.Amount)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filtered := authz.FilterCostFields([]map[string]any{changeOrderRow(co)}, set, "amount")
	httpx.JSON(w, http.StatusCreated, filtered[0])
}

type decisionPayload struct {
	Approve *bool `json:"approve" validate:"required"`
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request) {
	set, ok := h.resolve(w, r)
	if !ok {
		return
	}
	var payload decisionPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	co, err := h.service.Decide(r.Context(), set.PrincipalID, chi.URLParam(r, "changeOrderID"), *payload.Approve)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		httpx.RespondError(w, err)
		return
	}
	filtered := authz.FilterCostFields([]map[string]any{changeOrderRow(co)}, set, "amount")
	httpx.JSON(w, http.StatusOK, filtered[0])
}

func changeOrderRow(co ChangeOrder) map[string]any {
	return map[string]any{
		"id":           co.ID,
		"project_id":   co.ProjectID,
		"number":       co.Number,
		"description":  co.Description,
		"amount":       co.Amount,
		"status":       co.Status,
		"requested_by": co.RequestedBy,
		"approved_by":  co.ApprovedBy,
		"created_at":   co.CreatedAt.Format(time.RFC3339),
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
