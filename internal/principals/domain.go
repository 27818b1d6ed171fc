package principals

import (
	"time"

	"github.com/formwork-pm/formwork/internal/authz"
)

// Principal represents a stored user record. Role, overrides, project
// assignments and the additive permission list are mutated by
// administrative action only.
type Principal struct {
	ID               string
	Email            string
	Name             string
	RoleKey          string
	IsActive         bool
	AssignedProjects []string
	Permissions      []string
	CanViewCosts     *bool
	CanEditCosts     *bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// AuthzRecord maps the stored row to the resolver input.
func (p Principal) AuthzRecord() authz.Principal {
	return authz.Principal{
		ID:               p.ID,
		RoleKey:          p.RoleKey,
		AssignedProjects: p.AssignedProjects,
		Permissions:      p.Permissions,
		CanViewCosts:     p.CanViewCosts,
		CanEditCosts:     p.CanEditCosts,
	}
}
