package memory

import (
	"cmp"
	"context"
	"slices"

	"erpcore.org/internal/rbac"
)

// checkRoles enforces that every role exists and belongs to companyID.
func (s *Store) checkRoles(companyID string, roleIDs []string) error {
	for _, id := range roleIDs {
		r, ok := s.st.roles[id]
		if !ok {
			return rbac.NewValidationError("roles", "role "+id+" does not exist")
		}
		if r.CompanyID != companyID {
			return rbac.NewValidationError("roles", rbac.CrossTenantRolesMessage)
		}
	}
	return nil
}

func (s *Store) CreateMembership(_ context.Context, m rbac.Membership) (rbac.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.users[m.UserID]; !ok {
		return rbac.Membership{}, rbac.NewValidationError("user", "user does not exist")
	}
	if _, ok := s.st.companies[m.CompanyID]; !ok {
		return rbac.Membership{}, rbac.NewValidationError("company", "company does not exist")
	}
	if s.isMember(m.UserID, m.CompanyID) {
		return rbac.Membership{}, rbac.NewConflictError("user", "user already has a membership in this company")
	}
	if err := s.checkRoles(m.CompanyID, m.RoleIDs); err != nil {
		return rbac.Membership{}, err
	}
	m = copyMembership(m)
	m.ID = newID()
	m.CreatedAt = s.timestamp()
	slices.Sort(m.RoleIDs)
	s.st.memberships[m.ID] = m
	return copyMembership(m), nil
}

func (s *Store) ListMemberships(_ context.Context, filter rbac.Filter) ([]rbac.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []rbac.Membership{}
	for _, m := range sortedValues(s.st.memberships, func(m rbac.Membership) string { return m.ID }) {
		if filter.Matches(m.CompanyID, m.UserID) {
			out = append(out, copyMembership(m))
		}
	}
	return out, nil
}

func (s *Store) GetMembership(_ context.Context, id string) (rbac.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.st.memberships[id]
	if !ok {
		return rbac.Membership{}, rbac.ErrNotFound
	}
	return copyMembership(m), nil
}

func (s *Store) UpdateMembership(_ context.Context, id string, upd rbac.MembershipUpdate) (rbac.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.st.memberships[id]
	if !ok {
		return rbac.Membership{}, rbac.ErrNotFound
	}
	m = copyMembership(m)
	if upd.RoleIDs != nil {
		if err := s.checkRoles(m.CompanyID, *upd.RoleIDs); err != nil {
			return rbac.Membership{}, err
		}
		m.RoleIDs = slices.Clone(*upd.RoleIDs)
		slices.Sort(m.RoleIDs)
	}
	s.st.memberships[id] = m
	return copyMembership(m), nil
}

func (s *Store) DeleteMembership(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.memberships[id]; !ok {
		return rbac.ErrNotFound
	}
	delete(s.st.memberships, id)
	return nil
}

// PrimaryMembership picks the earliest-created membership, ties broken by id.
func (s *Store) PrimaryMembership(_ context.Context, userID string) (rbac.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		best  rbac.Membership
		found bool
	)
	for _, m := range s.st.memberships {
		if m.UserID != userID {
			continue
		}
		if !found || comparePrimary(m, best) < 0 {
			best, found = m, true
		}
	}
	if !found {
		return rbac.Membership{}, rbac.ErrNotFound
	}
	return copyMembership(best), nil
}

func comparePrimary(a, b rbac.Membership) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// UserPermissions unions permission codenames over every membership of the
// user, in any company.
func (s *Store) UserPermissions(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []string{}
	for _, m := range s.st.memberships {
		if m.UserID != userID {
			continue
		}
		for _, rid := range m.RoleIDs {
			r, ok := s.st.roles[rid]
			if !ok {
				continue
			}
			for _, c := range r.Permissions {
				if !slices.Contains(out, c) {
					out = append(out, c)
				}
			}
		}
	}
	slices.Sort(out)
	return out, nil
}

func (s *Store) UserHasPermission(ctx context.Context, userID, codename string) (bool, error) {
	perms, err := s.UserPermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	_, found := slices.BinarySearch(perms, codename)
	return found, nil
}
