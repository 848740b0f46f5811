package rbac

import (
	"context"

	"erpcore.org/internal/audit"
	"erpcore.org/internal/auth"
)

// CompanyInput carries the fields of a new company.
type CompanyInput struct {
	Name     string
	IsActive *bool
}

func (s *Service) ListCompanies(ctx context.Context, p auth.Principal) ([]Company, error) {
	if err := s.eval.Authorize(ctx, OpCompanyList, p, Target{}); err != nil {
		return nil, err
	}
	return s.store.ListCompanies(ctx)
}

func (s *Service) GetCompany(ctx context.Context, p auth.Principal, id string) (Company, error) {
	if err := s.eval.Authorize(ctx, OpCompanyGet, p, Target{}); err != nil {
		return Company{}, err
	}
	id, err := requireID("id", id)
	if err != nil {
		return Company{}, err
	}
	return s.store.GetCompany(ctx, id)
}

func (s *Service) CreateCompany(ctx context.Context, p auth.Principal, in CompanyInput) (Company, error) {
	if err := s.eval.Authorize(ctx, OpCompanyCreate, p, Target{}); err != nil {
		return Company{}, err
	}
	name, err := requireText("name", in.Name)
	if err != nil {
		return Company{}, err
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	company, err := s.store.CreateCompany(ctx, name, active)
	if err != nil {
		return Company{}, err
	}
	s.record(ctx, p, audit.ActionCreate, "Created company: %s", company.Name)
	return company, nil
}

func (s *Service) UpdateCompany(ctx context.Context, p auth.Principal, id string, upd CompanyUpdate) (Company, error) {
	if err := s.eval.Authorize(ctx, OpCompanyUpdate, p, Target{}); err != nil {
		return Company{}, err
	}
	id, err := requireID("id", id)
	if err != nil {
		return Company{}, err
	}
	if upd.Name != nil {
		name, err := requireText("name", *upd.Name)
		if err != nil {
			return Company{}, err
		}
		upd.Name = &name
	}
	company, err := s.store.UpdateCompany(ctx, id, upd)
	if err != nil {
		return Company{}, err
	}
	s.record(ctx, p, audit.ActionUpdate, "Updated company: %s", company.Name)
	return company, nil
}

// DeleteCompany removes a company together with its roles and memberships.
// Audit entries referencing it survive with a null company.
func (s *Service) DeleteCompany(ctx context.Context, p auth.Principal, id string) error {
	if err := s.eval.Authorize(ctx, OpCompanyDelete, p, Target{}); err != nil {
		return err
	}
	id, err := requireID("id", id)
	if err != nil {
		return err
	}
	company, err := s.store.GetCompany(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteCompany(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.record(ctx, p, audit.ActionDelete, "Deleted company: %s", company.Name)
	return nil
}
