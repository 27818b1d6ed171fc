package drawings

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/formwork-pm/formwork/internal/authz"
	"github.com/formwork-pm/formwork/internal/platform/httpx"
	"github.com/formwork-pm/formwork/internal/shared"
)

// RepositoryPort defines data access methods for shop drawings.
type RepositoryPort interface {
	ListByProject(ctx context.Context, projectID string) ([]ShopDrawing, error)
	Submit(ctx context.Context, d ShopDrawing) (ShopDrawing, error)
}

// Handler manages shop drawing endpoints, mounted under a project route
// already gated by project access.
type Handler struct {
	logger   *slog.Logger
	repo     RepositoryPort
	validate *validator.Validate
	authz    authz.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, repo RepositoryPort, az authz.Middleware) *Handler {
	return &Handler{logger: logger, repo: repo, validate: validator.New(), authz: az}
}

// MountRoutes registers drawing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.FlagViewShopDrawings))
		r.Get("/", h.list)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require(authz.FlagEditShopDrawings))
		r.Post("/", h.submit)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.ListByProject(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		h.logger.Error("list drawings", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]map[string]any, len(list))
	for i, d := range list {
		out[i] = drawingRow(d)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"drawings": out})
}

type submitPayload struct {
	Title      string `json:"title" validate:"required,min=2"`
	Discipline string `json:"discipline" validate:"required,oneof=architectural structural mechanical electrical plumbing"`
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var payload submitPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	created, err := h.repo.Submit(r.Context(), ShopDrawing{
		ID:          uuid.NewString(),
		ProjectID:   chi.URLParam(r, "projectID"),
		Title:       payload.Title,
		Discipline:  payload.Discipline,
		Status:      "submitted",
		SubmittedBy: shared.PrincipalIDFromContext(r.Context()),
	})
	if err != nil {
		h.logger.Error("submit drawing", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, drawingRow(created))
}

func drawingRow(d ShopDrawing) map[string]any {
	return map[string]any{
		"id":           d.ID,
		"project_id":   d.ProjectID,
		"title":        d.Title,
		"discipline":   d.Discipline,
		"revision":     d.Revision,
		"status":       d.Status,
		"submitted_by": d.SubmittedBy,
		"created_at":   d.CreatedAt.Format(time.RFC3339),
	}
}
