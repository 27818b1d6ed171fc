package authz

import "sort"

// Flag is one atomic capability. Flags are granted either by role level
// (every role at or above the flag's minimum level carries it) or
// individually through a principal's additive permission list.
type Flag string

const (
	FlagAdminAccess         Flag = "admin_access"
	FlagViewAllProjects     Flag = "view_all_projects"
	FlagCreateProjects      Flag = "create_projects"
	FlagManageUsers         Flag = "manage_users"
	FlagManageRoles         Flag = "manage_roles"
	FlagViewCostsDashboard  Flag = "view_costs_dashboard"
	FlagApproveChangeOrders Flag = "approve_change_orders"
	FlagEditChangeOrders    Flag = "edit_change_orders"
	FlagViewShopDrawings    Flag = "view_shop_drawings"
	FlagEditShopDrawings    Flag = "edit_shop_drawings"
	FlagExportReports       Flag = "export_reports"
)

// flagMinLevels maps each flag to the minimum role level that implies it.
// Implication is monotonic: a role at level L carries every flag whose
// minimum is <= L. The additive permission list is the orthogonal axis and
// can grant any flag to any role.
var flagMinLevels = map[Flag]int{
	FlagAdminAccess:         LevelAdmin,
	FlagManageRoles:         LevelAdmin,
	FlagManageUsers:         LevelTechnicalManager,
	FlagApproveChangeOrders: LevelTechnicalManager,
	FlagViewAllProjects:     LevelProjectManager,
	FlagCreateProjects:      LevelProjectManager,
	FlagViewCostsDashboard:  LevelProjectManager,
	FlagEditChangeOrders:    LevelProjectManager,
	FlagEditShopDrawings:    LevelProjectManager,
	FlagExportReports:       LevelProjectManager,
	FlagViewShopDrawings:    LevelTeamMember,
}

// Flags returns every registered capability flag, sorted by key.
func Flags() []Flag {
	out := make([]Flag, 0, len(flagMinLevels))
	for f := range flagMinLevels {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MinLevel returns the minimum role level implying f. Unregistered flags
// report ok=false and are never role-implied.
func MinLevel(f Flag) (int, bool) {
	lvl, ok := flagMinLevels[f]
	return lvl, ok
}
