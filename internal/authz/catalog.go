// Package authz implements capability based authorization for Formwork:
// a static role catalog, an effective-permission resolver, the project
// access evaluator, cost field redaction and the trusted request guard.
//
// Every decision is a pure function of a principal record and the role
// catalog. Nothing in this package performs I/O except Guard, which reads
// the principal and membership facts through narrowly scoped trusted
// interfaces.
package authz

import (
	"sort"
	"strings"
)

// AccessType is the project scoping policy attached to a role.
type AccessType string

const (
	// AccessAll grants visibility of every project.
	AccessAll AccessType = "all"
	// AccessAssignedOnly limits visibility to explicitly assigned projects.
	AccessAssignedOnly AccessType = "assigned_only"
	// AccessNone grants no project visibility through role scope. Principals
	// with this type can still reach projects they create, manage or belong
	// to via membership.
	AccessNone AccessType = "none"
)

// Role levels, higher is more privileged.
const (
	LevelAdmin            = 100
	LevelTechnicalManager = 80
	LevelProjectManager   = 60
	LevelTeamMember       = 40
	LevelClient           = 20
)

// Role keys.
const (
	RoleAdmin            = "admin"
	RoleTechnicalManager = "technical_manager"
	RoleProjectManager   = "project_manager"
	RoleTeamMember       = "team_member"
	RoleClient           = "client"
)

// Role is immutable reference data describing one named role.
type Role struct {
	Key                 string
	Name                string
	Level               int
	DefaultCanViewCosts bool
	DefaultCanEditCosts bool
	ProjectAccess       AccessType
}

// Catalog holds the seeded role set. It is read-only after construction.
type Catalog struct {
	byKey map[string]Role
}

// NewCatalog builds a catalog from the given roles. Keys are normalized to
// lower case.
func NewCatalog(roles []Role) *Catalog {
	byKey := make(map[string]Role, len(roles))
	for _, r := range roles {
		byKey[strings.ToLower(strings.TrimSpace(r.Key))] = r
	}
	return &Catalog{byKey: byKey}
}

// DefaultCatalog returns the built-in Formwork role set.
func DefaultCatalog() *Catalog {
	return NewCatalog([]Role{
		{Key: RoleAdmin, Name: "Administrator", Level: LevelAdmin, DefaultCanViewCosts: true, DefaultCanEditCosts: true, ProjectAccess: AccessAll},
		{Key: RoleTechnicalManager, Name: "Technical Manager", Level: LevelTechnicalManager, DefaultCanViewCosts: true, DefaultCanEditCosts: true, ProjectAccess: AccessAll},
		{Key: RoleProjectManager, Name: "Project Manager", Level: LevelProjectManager, DefaultCanViewCosts: true, ProjectAccess: AccessAll},
		{Key: RoleTeamMember, Name: "Team Member", Level: LevelTeamMember, ProjectAccess: AccessNone},
		{Key: RoleClient, Name: "Client", Level: LevelClient, ProjectAccess: AccessAssignedOnly},
	})
}

// Lookup returns the role for key. Unknown keys report ok=false; callers
// must treat that as zero privilege, never as a hard failure.
func (c *Catalog) Lookup(key string) (Role, bool) {
	r, ok := c.byKey[strings.ToLower(strings.TrimSpace(key))]
	return r, ok
}

// List returns all roles ordered by level descending.
func (c *Catalog) List() []Role {
	out := make([]Role, 0, len(c.byKey))
	for _, r := range c.byKey {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level > out[j].Level
		}
		return out[i].Key < out[j].Key
	})
	return out
}
