package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"
)

var (
	// ErrPrincipalNotFound indicates the trusted store has no record for the
	// verified identity. Callers treat it as zero privilege.
	ErrPrincipalNotFound = errors.New("authz: principal not found")
	// ErrStoreUnavailable indicates a transient trusted-store failure. It is
	// retryable infrastructure trouble, never an authorization denial.
	ErrStoreUnavailable = errors.New("authz: trusted store unavailable")
)

// TrustedStore reads principal records with its own scoped queries,
// bypassing policy-gated code paths. It must never consult values asserted
// by the client.
type TrustedStore interface {
	PrincipalByID(ctx context.Context, id string) (Principal, error)
}

// MembershipSource reads the membership facts for a single project. It is
// the narrowly scoped escape hatch used by the guard's fallback rule.
type MembershipSource interface {
	ProjectFacts(ctx context.Context, projectID string) (ProjectFacts, error)
}

// Guard is the server-side mirror of the client's permission logic. It
// recomputes every decision from the stored principal record so the two
// contexts can never disagree.
type Guard struct {
	catalog *Catalog
	store   TrustedStore
	members MembershipSource
	logger  *slog.Logger
	group   singleflight.Group
}

// NewGuard constructs a Guard over the trusted store.
func NewGuard(catalog *Catalog, store TrustedStore, members MembershipSource, logger *slog.Logger) *Guard {
	return &Guard{catalog: catalog, store: store, members: members, logger: logger}
}

// Catalog exposes the role catalog backing this guard.
func (g *Guard) Catalog() *Catalog {
	return g.catalog
}

// Resolve fetches the principal from the trusted store and computes its
// effective permission set. Missing principals resolve to zero privilege;
// store failures surface as ErrStoreUnavailable. Concurrent lookups for the
// same principal are coalesced, but nothing is cached beyond the in-flight
// call.
func (g *Guard) Resolve(ctx context.Context, principalID string) (PermissionSet, error) {
	if principalID == "" {
		return g.catalog.Resolve(Principal{}), nil
	}
	v, err, _ := g.group.Do(principalID, func() (any, error) {
		// The fetch is shared by coalesced callers, so it must not die with
		// the first caller's context.
		p, err := g.store.PrincipalByID(context.WithoutCancel(ctx), principalID)
		if err != nil {
			return Principal{}, err
		}
		return p, nil
	})
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			if g.logger != nil {
				g.logger.Warn("authz principal missing", slog.String("principal_id", principalID))
			}
			return g.catalog.Resolve(Principal{ID: principalID}), nil
		}
		return PermissionSet{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	p := v.(Principal)
	set := g.catalog.Resolve(p)
	if set.Level == 0 && p.RoleKey != "" && g.logger != nil {
		g.logger.Warn("authz unknown role", slog.String("principal_id", principalID), slog.String("role", p.RoleKey))
	}
	return set, nil
}

// CanAccessProject resolves the principal and evaluates project access.
// The membership lookup runs only when the scope rules do not already
// decide, and only for the single project in question.
func (g *Guard) CanAccessProject(ctx context.Context, principalID, projectID string) (bool, error) {
	if projectID == "" {
		return false, nil
	}
	set, err := g.Resolve(ctx, principalID)
	if err != nil {
		return false, err
	}
	if set.Has(FlagAdminAccess) || set.ProjectAccess == AccessAll {
		return true, nil
	}
	if set.ProjectAccess == AccessAssignedOnly {
		return set.AssignedProject(projectID), nil
	}
	// Implementations return empty facts for unknown projects, which the
	// membership rule denies.
	facts, err := g.members.ProjectFacts(ctx, projectID)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return CanAccessProject(set, projectID, facts), nil
}
