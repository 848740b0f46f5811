package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"erpcore.org/internal/rbac"
)

type companyRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	IsActive *bool  `json:"is_active"`
}

type companyPatch struct {
	Name     *string `json:"name" validate:"omitempty,max=255"`
	IsActive *bool   `json:"is_active"`
}

func (a *API) listCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := a.svc.ListCompanies(r.Context(), principal(r))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, companies)
}

func (a *API) getCompany(w http.ResponseWriter, r *http.Request) {
	company, err := a.svc.GetCompany(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, company)
}

func (a *API) createCompany(w http.ResponseWriter, r *http.Request) {
	var req companyRequest
	if !a.bind(w, r, &req) {
		return
	}
	company, err := a.svc.CreateCompany(r.Context(), principal(r), rbac.CompanyInput{
		Name:     req.Name,
		IsActive: req.IsActive,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/companies/"+company.ID)
	writeJSON(w, http.StatusCreated, company)
}

func (a *API) updateCompany(w http.ResponseWriter, r *http.Request) {
	var req companyPatch
	if !a.bind(w, r, &req) {
		return
	}
	company, err := a.svc.UpdateCompany(r.Context(), principal(r), chi.URLParam(r, "id"), rbac.CompanyUpdate{
		Name:     req.Name,
		IsActive: req.IsActive,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, company)
}

func (a *API) deleteCompany(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.DeleteCompany(r.Context(), principal(r), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
