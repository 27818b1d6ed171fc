package authz

// ProjectFacts are the membership facts for one project, passed in as data
// so the decision itself stays pure and testable.
type ProjectFacts struct {
	CreatorID string
	ManagerID string
	Members   []string
}

// Involves reports whether the principal created, manages or belongs to
// the project.
func (f ProjectFacts) Involves(principalID string) bool {
	if principalID == "" {
		return false
	}
	if f.CreatorID == principalID || f.ManagerID == principalID {
		return true
	}
	for _, m := range f.Members {
		if m == principalID {
			return true
		}
	}
	return false
}

// CanAccessProject decides whether the resolved principal may reach the
// given project. Rules apply in order, first match wins:
//
//  1. admin_access allows unconditionally.
//  2. AccessAll allows.
//  3. AccessAssignedOnly allows iff the project is explicitly assigned.
//  4. Otherwise the principal must appear in the project's own
//     creator/manager/member facts.
func CanAccessProject(set PermissionSet, projectID string, facts ProjectFacts) bool {
	if projectID == "" {
		return false
	}
	if set.Has(FlagAdminAccess) {
		return true
	}
	switch set.ProjectAccess {
	case AccessAll:
		return true
	case AccessAssignedOnly:
		return set.AssignedProject(projectID)
	default:
		return facts.Involves(set.PrincipalID)
	}
}
