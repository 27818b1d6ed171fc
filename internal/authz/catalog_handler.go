package authz

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/formwork-pm/formwork/internal/platform/httpx"
	"github.com/formwork-pm/formwork/internal/shared"
)

// CatalogHandler serves the role catalog, the flag registry and the
// caller's own effective permission set. The UI gates its conditionals on
// /me/permissions, which runs the exact resolver the guard uses, so the
// two contexts cannot disagree.
type CatalogHandler struct {
	logger *slog.Logger
	guard  *Guard
}

// NewCatalogHandler builds a CatalogHandler instance.
func NewCatalogHandler(logger *slog.Logger, guard *Guard) *CatalogHandler {
	return &CatalogHandler{logger: logger, guard: guard}
}

// MountRoutes registers catalog routes. Callers mount this behind the
// authenticated session group; no flag gating is needed because the
// endpoints only describe the caller's own privileges and static reference
// data.
func (h *CatalogHandler) MountRoutes(r chi.Router) {
	r.Get("/roles", h.listRoles)
	r.Get("/flags", h.listFlags)
	r.Get("/me/permissions", h.myPermissions)
}

type roleView struct {
	Key                 string     `json:"key"`
	Name                string     `json:"name"`
	Level               int        `json:"level"`
	DefaultCanViewCosts bool       `json:"default_can_view_costs"`
	DefaultCanEditCosts bool       `json:"default_can_edit_costs"`
	ProjectAccess       AccessType `json:"project_access"`
}

func (h *CatalogHandler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles := h.guard.Catalog().List()
	out := make([]roleView, len(roles))
	for i, role := range roles {
		out[i] = roleView{
			Key:                 role.Key,
			Name:                role.Name,
			Level:               role.Level,
			DefaultCanViewCosts: role.DefaultCanViewCosts,
			DefaultCanEditCosts: role.DefaultCanEditCosts,
			ProjectAccess:       role.ProjectAccess,
		}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": out})
}

func (h *CatalogHandler) listFlags(w http.ResponseWriter, r *http.Request) {
	flags := Flags()
	out := make([]map[string]any, len(flags))
	for i, f := range flags {
		minLevel, _ := MinLevel(f)
		out[i] = map[string]any{"key": f, "min_level": minLevel}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"flags": out})
}

func (h *CatalogHandler) myPermissions(w http.ResponseWriter, r *http.Request) {
	principalID := shared.PrincipalIDFromContext(r.Context())
	if principalID == "" {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	set, err := h.guard.Resolve(r.Context(), principalID)
	if err != nil {
		if h.logger != nil {
			h.logger.Error("resolve own permissions", slog.Any("error", err))
		}
		httpx.Problem(w, http.StatusServiceUnavailable, "Authorization Unavailable", "authorization store unreachable, retry")
		return
	}
	flags := make(map[Flag]bool, len(flagMinLevels))
	for _, f := range Flags() {
		flags[f] = set.Has(f)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"role":           set.RoleKey,
		"level":          set.Level,
		"can_view_costs": set.CanViewCosts,
		"can_edit_costs": set.CanEditCosts,
		"project_access": set.ProjectAccess,
		"flags":          flags,
	})
}
