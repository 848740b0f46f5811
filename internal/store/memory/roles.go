package memory

import (
	"context"
	"slices"

	"erpcore.org/internal/rbac"
)

func (s *Store) EnsurePermission(_ context.Context, perm rbac.Permission) (rbac.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.st.permissions {
		if p.Codename == perm.Codename {
			return p, nil
		}
	}
	perm.ID = newID()
	s.st.permissions[perm.ID] = perm
	return perm, nil
}

func (s *Store) ListPermissions(_ context.Context) ([]rbac.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := sortedValues(s.st.permissions, func(p rbac.Permission) string { return p.Codename })
	return out, nil
}

func (s *Store) GetPermission(_ context.Context, id string) (rbac.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.st.permissions[id]
	if !ok {
		return rbac.Permission{}, rbac.ErrNotFound
	}
	return p, nil
}

func (s *Store) checkCodenames(codenames []string) error {
	for _, c := range codenames {
		found := false
		for _, p := range s.st.permissions {
			if p.Codename == c {
				found = true
				break
			}
		}
		if !found {
			return rbac.NewValidationError("permissions", "unknown permission: "+c)
		}
	}
	return nil
}

func (s *Store) roleNameTaken(companyID, name, exceptID string) bool {
	for _, r := range s.st.roles {
		if r.CompanyID == companyID && r.Name == name && r.ID != exceptID {
			return true
		}
	}
	return false
}

func (s *Store) CreateRole(_ context.Context, role rbac.Role) (rbac.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.companies[role.CompanyID]; !ok {
		return rbac.Role{}, rbac.NewValidationError("company", "company does not exist")
	}
	if s.roleNameTaken(role.CompanyID, role.Name, "") {
		return rbac.Role{}, rbac.NewConflictError("name", "role with this name already exists in the company")
	}
	if err := s.checkCodenames(role.Permissions); err != nil {
		return rbac.Role{}, err
	}
	now := s.timestamp()
	role.ID = newID()
	role.CreatedAt = now
	role.UpdatedAt = now
	role = copyRole(role)
	slices.Sort(role.Permissions)
	s.st.roles[role.ID] = role
	return copyRole(role), nil
}

func (s *Store) ListRoles(_ context.Context, filter rbac.Filter) ([]rbac.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []rbac.Role{}
	for _, r := range sortedValues(s.st.roles, func(r rbac.Role) string { return r.ID }) {
		if filter.Matches(r.CompanyID, "") {
			out = append(out, copyRole(r))
		}
	}
	return out, nil
}

func (s *Store) GetRole(_ context.Context, id string) (rbac.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.st.roles[id]
	if !ok {
		return rbac.Role{}, rbac.ErrNotFound
	}
	return copyRole(r), nil
}

func (s *Store) UpdateRole(_ context.Context, id string, upd rbac.RoleUpdate) (rbac.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.st.roles[id]
	if !ok {
		return rbac.Role{}, rbac.ErrNotFound
	}
	r = copyRole(r)
	if upd.Name != nil {
		if s.roleNameTaken(r.CompanyID, *upd.Name, r.ID) {
			return rbac.Role{}, rbac.NewConflictError("name", "role with this name already exists in the company")
		}
		r.Name = *upd.Name
	}
	if upd.Description != nil {
		r.Description = *upd.Description
	}
	if upd.Permissions != nil {
		if err := s.checkCodenames(*upd.Permissions); err != nil {
			return rbac.Role{}, err
		}
		r.Permissions = slices.Clone(*upd.Permissions)
		slices.Sort(r.Permissions)
	}
	r.UpdatedAt = s.timestamp()
	s.st.roles[id] = r
	return copyRole(r), nil
}

// DeleteRole also detaches the role from every membership.
func (s *Store) DeleteRole(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.roles[id]; !ok {
		return rbac.ErrNotFound
	}
	delete(s.st.roles, id)
	for mid, m := range s.st.memberships {
		if slices.Contains(m.RoleIDs, id) {
			m = copyMembership(m)
			m.RoleIDs = slices.DeleteFunc(m.RoleIDs, func(r string) bool { return r == id })
			s.st.memberships[mid] = m
		}
	}
	return nil
}
