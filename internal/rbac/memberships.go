package rbac

import (
	"context"
	"errors"
	"slices"
	"strings"

	"erpcore.org/internal/audit"
	"erpcore.org/internal/auth"
)

// MembershipInput carries the fields of a new membership. CompanyID is
// honoured for superusers only.
type MembershipInput struct {
	UserID    string
	CompanyID string
	RoleIDs   []string
}

// checkRoles rejects any role that does not belong to companyID. Roles are
// never silently dropped.
func (s *Service) checkRoles(ctx context.Context, companyID string, roleIDs []string) ([]string, error) {
	out := make([]string, 0, len(roleIDs))
	for _, id := range roleIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, NewValidationError("roles", "role id may not be blank")
		}
		if slices.Contains(out, id) {
			continue
		}
		role, err := s.store.GetRole(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return nil, NewValidationError("roles", "role "+id+" does not exist")
		}
		if err != nil {
			return nil, err
		}
		if role.CompanyID != companyID {
			return nil, NewValidationError("roles", CrossTenantRolesMessage)
		}
		out = append(out, id)
	}
	slices.Sort(out)
	return out, nil
}

func (s *Service) ListMemberships(ctx context.Context, p auth.Principal) ([]Membership, error) {
	scope, err := s.listScope(ctx, OpMembershipList, p)
	if err != nil {
		return nil, err
	}
	if scope.Empty() {
		return []Membership{}, nil
	}
	return s.store.ListMemberships(ctx, scope.Filter())
}

func (s *Service) GetMembership(ctx context.Context, p auth.Principal, id string) (Membership, error) {
	scope, err := s.authorizeScoped(ctx, OpMembershipGet, p, Target{})
	if err != nil {
		return Membership{}, err
	}
	return s.scopedMembership(ctx, scope, id)
}

func (s *Service) scopedMembership(ctx context.Context, scope Scope, id string) (Membership, error) {
	id, err := requireID("id", id)
	if err != nil {
		return Membership{}, err
	}
	m, err := s.store.GetMembership(ctx, id)
	if err != nil {
		return Membership{}, err
	}
	if !scope.Allows(m.CompanyID) {
		return Membership{}, ErrNotFound
	}
	return m, nil
}

// CreateMembership attaches a user to the caller's company.
func (s *Service) CreateMembership(ctx context.Context, p auth.Principal, in MembershipInput) (Membership, error) {
	companyID, err := s.authorizeCreate(ctx, OpMembershipCreate, p, in.CompanyID)
	if err != nil {
		return Membership{}, err
	}
	userID, err := requireID("user", in.UserID)
	if err != nil {
		return Membership{}, err
	}
	user, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return Membership{}, NewValidationError("user", "user does not exist")
	}
	if err != nil {
		return Membership{}, err
	}
	roleIDs, err := s.checkRoles(ctx, companyID, in.RoleIDs)
	if err != nil {
		return Membership{}, err
	}
	m, err := s.store.CreateMembership(ctx, Membership{UserID: user.ID, CompanyID: companyID, RoleIDs: roleIDs})
	if err != nil {
		return Membership{}, err
	}
	s.invalidate(ctx)
	s.record(ctx, p, audit.ActionCreate, "Created membership for %s", user.Username)
	return m, nil
}

func (s *Service) UpdateMembership(ctx context.Context, p auth.Principal, id string, upd MembershipUpdate) (Membership, error) {
	scope, err := s.authorizeScoped(ctx, OpMembershipUpdate, p, Target{})
	if err != nil {
		return Membership{}, err
	}
	current, err := s.scopedMembership(ctx, scope, id)
	if err != nil {
		return Membership{}, err
	}
	if upd.RoleIDs != nil {
		roleIDs, err := s.checkRoles(ctx, current.CompanyID, *upd.RoleIDs)
		if err != nil {
			return Membership{}, err
		}
		upd.RoleIDs = &roleIDs
	}
	m, err := s.store.UpdateMembership(ctx, current.ID, upd)
	if err != nil {
		return Membership{}, err
	}
	s.invalidate(ctx)
	s.record(ctx, p, audit.ActionUpdate, "Updated membership %s", m.ID)
	return m, nil
}

func (s *Service) DeleteMembership(ctx context.Context, p auth.Principal, id string) error {
	scope, err := s.authorizeScoped(ctx, OpMembershipDelete, p, Target{})
	if err != nil {
		return err
	}
	m, err := s.scopedMembership(ctx, scope, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteMembership(ctx, m.ID); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.record(ctx, p, audit.ActionDelete, "Deleted membership %s", m.ID)
	return nil
}
