package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"erpcore.org/internal/rbac"
)

type roleRequest struct {
	Name        string   `json:"name" validate:"required,max=100"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions" validate:"dive,required"`
	Company     string   `json:"company"`
}

type rolePatch struct {
	Name        *string   `json:"name" validate:"omitempty,max=100"`
	Description *string   `json:"description"`
	Permissions *[]string `json:"permissions"`
}

func (a *API) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := a.svc.ListRoles(r.Context(), principal(r))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, roles)
}

func (a *API) getRole(w http.ResponseWriter, r *http.Request) {
	role, err := a.svc.GetRole(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

func (a *API) createRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if !a.bind(w, r, &req) {
		return
	}
	role, err := a.svc.CreateRole(r.Context(), principal(r), rbac.RoleInput{
		Name:        req.Name,
		Description: req.Description,
		Permissions: req.Permissions,
		CompanyID:   req.Company,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/roles/"+role.ID)
	writeJSON(w, http.StatusCreated, role)
}

func (a *API) updateRole(w http.ResponseWriter, r *http.Request) {
	var req rolePatch
	if !a.bind(w, r, &req) {
		return
	}
	role, err := a.svc.UpdateRole(r.Context(), principal(r), chi.URLParam(r, "id"), rbac.RoleUpdate{
		Name:        req.Name,
		Description: req.Description,
		Permissions: req.Permissions,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

func (a *API) deleteRole(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.DeleteRole(r.Context(), principal(r), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := a.svc.ListPermissions(r.Context(), principal(r))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, perms)
}

func (a *API) getPermission(w http.ResponseWriter, r *http.Request) {
	perm, err := a.svc.GetPermission(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, perm)
}
