package authz

import (
	"sort"
	"strings"
)

// Principal is the stored user record evaluated for access. For server-side
// decisions it must come from the trusted store, never from client claims.
type Principal struct {
	ID               string
	RoleKey          string
	AssignedProjects []string
	// Permissions is the additive grant list: flag keys granted
	// independently of role.
	Permissions []string
	// Cost overrides take precedence over the role default when non-nil.
	CanViewCosts *bool
	CanEditCosts *bool
}

// PermissionSet is the fully resolved bundle of capabilities for one
// principal at decision time. It is derived, never stored, and must not be
// reused across requests.
type PermissionSet struct {
	PrincipalID      string
	RoleKey          string
	Level            int
	CanViewCosts     bool
	CanEditCosts     bool
	ProjectAccess    AccessType
	assignedProjects map[string]struct{}
	flags            map[Flag]bool
}

// Has reports whether the set carries the given capability flag.
func (s PermissionSet) Has(f Flag) bool {
	return s.flags[f]
}

// AssignedProject reports whether projectID is in the principal's assigned
// list. Only meaningful for AccessAssignedOnly sets.
func (s PermissionSet) AssignedProject(projectID string) bool {
	_, ok := s.assignedProjects[projectID]
	return ok
}

// AssignedProjectIDs returns the assigned project ids in sorted order.
// Empty except for AccessAssignedOnly sets.
func (s PermissionSet) AssignedProjectIDs() []string {
	out := make([]string, 0, len(s.assignedProjects))
	for id := range s.assignedProjects {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// AtLeast reports whether the resolved role level meets the given level.
func (s PermissionSet) AtLeast(level int) bool {
	return s.Level >= level
}

// Resolve computes the effective permission set for p. It is a pure
// function of the principal record and the catalog: an unknown or empty
// role resolves to zero privilege rather than failing.
func (c *Catalog) Resolve(p Principal) PermissionSet {
	set := PermissionSet{
		PrincipalID:   p.ID,
		ProjectAccess: AccessNone,
		flags:         make(map[Flag]bool, len(flagMinLevels)),
	}

	role, ok := c.Lookup(p.RoleKey)
	if !ok {
		return set
	}

	set.RoleKey = role.Key
	set.Level = role.Level
	set.ProjectAccess = role.ProjectAccess

	set.CanViewCosts = role.DefaultCanViewCosts
	if p.CanViewCosts != nil {
		set.CanViewCosts = *p.CanViewCosts
	}
	set.CanEditCosts = role.DefaultCanEditCosts
	if p.CanEditCosts != nil {
		set.CanEditCosts = *p.CanEditCosts
	}
	// Editing a value one cannot see is an unreachable state.
	if set.CanEditCosts {
		set.CanViewCosts = true
	}

	if role.ProjectAccess == AccessAssignedOnly {
		set.assignedProjects = make(map[string]struct{}, len(p.AssignedProjects))
		for _, id := range p.AssignedProjects {
			if id = strings.TrimSpace(id); id != "" {
				set.assignedProjects[id] = struct{}{}
			}
		}
	}

	granted := make(map[Flag]struct{}, len(p.Permissions))
	for _, raw := range p.Permissions {
		key := strings.ToLower(strings.TrimSpace(raw))
		if key != "" {
			granted[Flag(key)] = struct{}{}
		}
	}
	for flag, minLevel := range flagMinLevels {
		_, extra := granted[flag]
		set.flags[flag] = role.Level >= minLevel || extra
	}

	return set
}
