package rbac

import (
	"context"
	"errors"
	"fmt"

	"erpcore.org/internal/audit"
	"erpcore.org/internal/auth"
)

// Scope is the set of companies a principal may read or modify.
type Scope struct {
	Unrestricted bool
	CompanyID    string
}

// Empty reports whether the scope matches no company at all.
func (s Scope) Empty() bool {
	return !s.Unrestricted && s.CompanyID == ""
}

// Allows reports whether a row owned by companyID is visible in this scope.
func (s Scope) Allows(companyID string) bool {
	if s.Unrestricted {
		return true
	}
	return s.CompanyID != "" && s.CompanyID == companyID
}

// Filter converts the scope into the explicit filter handed to list queries.
func (s Scope) Filter() Filter {
	switch {
	case s.Unrestricted:
		return Filter{}
	case s.CompanyID == "":
		return Filter{None: true}
	default:
		return Filter{CompanyID: s.CompanyID}
	}
}

type primaryMembershipFinder interface {
	PrimaryMembership(ctx context.Context, userID string) (Membership, error)
}

// ScopeResolver derives the active company of a principal.
type ScopeResolver struct {
	finder primaryMembershipFinder
}

func NewScopeResolver(finder primaryMembershipFinder) *ScopeResolver {
	return &ScopeResolver{finder: finder}
}

// Resolve returns the principal's scope. Superusers are unrestricted; other
// principals are confined to the company of their primary membership, and a
// principal without memberships gets an empty scope.
func (r *ScopeResolver) Resolve(ctx context.Context, p auth.Principal) (Scope, error) {
	if !p.IsAuthenticated() {
		return Scope{}, ErrUnauthenticated
	}
	if p.IsSuperuser {
		return Scope{Unrestricted: true}, nil
	}
	companyID, err := r.PrimaryCompanyID(ctx, p.UserID)
	if err != nil {
		return Scope{}, err
	}
	return Scope{CompanyID: companyID}, nil
}

// RequireTenant is Resolve for writes: an empty scope yields ErrNoActiveTenant.
func (r *ScopeResolver) RequireTenant(ctx context.Context, p auth.Principal) (Scope, error) {
	scope, err := r.Resolve(ctx, p)
	if err != nil {
		return Scope{}, err
	}
	if scope.Empty() {
		return Scope{}, fmt.Errorf("%w: user %s has no company membership", ErrNoActiveTenant, p.UserID)
	}
	return scope, nil
}

// PrimaryCompanyID returns the company of the user's primary membership, or
// "" when the user has none.
func (r *ScopeResolver) PrimaryCompanyID(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", nil
	}
	m, err := r.finder.PrimaryMembership(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve primary membership: %w", err)
	}
	return m.CompanyID, nil
}

// AllowsEntry reports whether an audit entry is visible in this scope.
func (s Scope) AllowsEntry(e audit.Entry) bool {
	if s.Unrestricted {
		return true
	}
	return e.CompanyID != nil && s.Allows(*e.CompanyID)
}
