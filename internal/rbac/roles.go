package rbac

import (
	"context"
	"slices"
	"strings"

	"erpcore.org/internal/audit"
	"erpcore.org/internal/auth"
)

// RoleInput carries the fields of a new role. CompanyID is honoured for
// superusers only; everyone else creates roles in their active company.
type RoleInput struct {
	Name        string
	Description string
	Permissions []string
	CompanyID   string
}

func normalizeCodenames(codenames []string) ([]string, error) {
	out := make([]string, 0, len(codenames))
	for _, c := range codenames {
		c = strings.TrimSpace(c)
		if c == "" {
			return nil, NewValidationError("permissions", "permission codename may not be blank")
		}
		if !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (s *Service) ListRoles(ctx context.Context, p auth.Principal) ([]Role, error) {
	scope, err := s.listScope(ctx, OpRoleList, p)
	if err != nil {
		return nil, err
	}
	if scope.Empty() {
		return []Role{}, nil
	}
	return s.store.ListRoles(ctx, scope.Filter())
}

func (s *Service) GetRole(ctx context.Context, p auth.Principal, id string) (Role, error) {
	scope, err := s.authorizeScoped(ctx, OpRoleGet, p, Target{})
	if err != nil {
		return Role{}, err
	}
	return s.scopedRole(ctx, scope, id)
}

func (s *Service) scopedRole(ctx context.Context, scope Scope, id string) (Role, error) {
	id, err := requireID("id", id)
	if err != nil {
		return Role{}, err
	}
	role, err := s.store.GetRole(ctx, id)
	if err != nil {
		return Role{}, err
	}
	if !scope.Allows(role.CompanyID) {
		return Role{}, ErrNotFound
	}
	return role, nil
}

// CreateRole creates a role in the caller's company.
func (s *Service) CreateRole(ctx context.Context, p auth.Principal, in RoleInput) (Role, error) {
	companyID, err := s.authorizeCreate(ctx, OpRoleCreate, p, in.CompanyID)
	if err != nil {
		return Role{}, err
	}
	name, err := requireText("name", in.Name)
	if err != nil {
		return Role{}, err
	}
	perms, err := normalizeCodenames(in.Permissions)
	if err != nil {
		return Role{}, err
	}
	role, err := s.store.CreateRole(ctx, Role{
		CompanyID:   companyID,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Permissions: perms,
	})
	if err != nil {
		return Role{}, err
	}
	s.record(ctx, p, audit.ActionCreate, "Created role: %s", role.Name)
	return role, nil
}

func (s *Service) UpdateRole(ctx context.Context, p auth.Principal, id string, upd RoleUpdate) (Role, error) {
	scope, err := s.authorizeScoped(ctx, OpRoleUpdate, p, Target{})
	if err != nil {
		return Role{}, err
	}
	current, err := s.scopedRole(ctx, scope, id)
	if err != nil {
		return Role{}, err
	}
	if upd.Name != nil {
		name, err := requireText("name", *upd.Name)
		if err != nil {
			return Role{}, err
		}
		upd.Name = &name
	}
	if upd.Description != nil {
		desc := strings.TrimSpace(*upd.Description)
		upd.Description = &desc
	}
	if upd.Permissions != nil {
		perms, err := normalizeCodenames(*upd.Permissions)
		if err != nil {
			return Role{}, err
		}
		upd.Permissions = &perms
	}
	role, err := s.store.UpdateRole(ctx, current.ID, upd)
	if err != nil {
		return Role{}, err
	}
	s.invalidate(ctx)
	s.record(ctx, p, audit.ActionUpdate, "Updated role: %s", role.Name)
	return role, nil
}

func (s *Service) DeleteRole(ctx context.Context, p auth.Principal, id string) error {
	scope, err := s.authorizeScoped(ctx, OpRoleDelete, p, Target{})
	if err != nil {
		return err
	}
	role, err := s.scopedRole(ctx, scope, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteRole(ctx, role.ID); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.record(ctx, p, audit.ActionDelete, "Deleted role: %s", role.Name)
	return nil
}
