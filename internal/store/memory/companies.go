package memory

import (
	"context"

	"erpcore.org/internal/rbac"
)

func (s *Store) companyByName(name string) (rbac.Company, bool) {
	for _, c := range s.st.companies {
		if c.Name == name {
			return c, true
		}
	}
	return rbac.Company{}, false
}

func (s *Store) insertCompany(name string, active bool) (rbac.Company, error) {
	if _, exists := s.companyByName(name); exists {
		return rbac.Company{}, rbac.NewConflictError("name", "company with this name already exists")
	}
	c := rbac.Company{ID: newID(), Name: name, IsActive: active, CreatedAt: s.timestamp()}
	s.st.companies[c.ID] = c
	return c, nil
}

func (s *Store) CreateCompany(_ context.Context, name string, active bool) (rbac.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertCompany(name, active)
}

func (s *Store) GetOrCreateCompany(_ context.Context, name string) (rbac.Company, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.companyByName(name); ok {
		return c, false, nil
	}
	c, err := s.insertCompany(name, true)
	if err != nil {
		return rbac.Company{}, false, err
	}
	return c, true, nil
}

func (s *Store) ListCompanies(_ context.Context) ([]rbac.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.st.companies, func(c rbac.Company) string { return c.ID }), nil
}

func (s *Store) GetCompany(_ context.Context, id string) (rbac.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.st.companies[id]
	if !ok {
		return rbac.Company{}, rbac.ErrNotFound
	}
	return c, nil
}

func (s *Store) UpdateCompany(_ context.Context, id string, upd rbac.CompanyUpdate) (rbac.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.st.companies[id]
	if !ok {
		return rbac.Company{}, rbac.ErrNotFound
	}
	if upd.Name != nil && *upd.Name != c.Name {
		if _, exists := s.companyByName(*upd.Name); exists {
			return rbac.Company{}, rbac.NewConflictError("name", "company with this name already exists")
		}
		c.Name = *upd.Name
	}
	if upd.IsActive != nil {
		c.IsActive = *upd.IsActive
	}
	s.st.companies[id] = c
	return c, nil
}

// DeleteCompany cascades to roles and memberships and nulls audit references.
func (s *Store) DeleteCompany(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.companies[id]; !ok {
		return rbac.ErrNotFound
	}
	delete(s.st.companies, id)
	for rid, r := range s.st.roles {
		if r.CompanyID == id {
			delete(s.st.roles, rid)
		}
	}
	for mid, m := range s.st.memberships {
		if m.CompanyID == id {
			delete(s.st.memberships, mid)
		}
	}
	for i, e := range s.st.auditLogs {
		if e.CompanyID != nil && *e.CompanyID == id {
			s.st.auditLogs[i].CompanyID = nil
		}
	}
	return nil
}
