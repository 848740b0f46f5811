package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"erpcore.org/internal/rbac"
)

type membershipRequest struct {
	User    string   `json:"user" validate:"required"`
	Company string   `json:"company"`
	Roles   []string `json:"roles" validate:"dive,required"`
}

type membershipPatch struct {
	Roles *[]string `json:"roles"`
}

func (a *API) listMemberships(w http.ResponseWriter, r *http.Request) {
	memberships, err := a.svc.ListMemberships(r.Context(), principal(r))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, memberships)
}

func (a *API) getMembership(w http.ResponseWriter, r *http.Request) {
	m, err := a.svc.GetMembership(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (a *API) createMembership(w http.ResponseWriter, r *http.Request) {
	var req membershipRequest
	if !a.bind(w, r, &req) {
		return
	}
	m, err := a.svc.CreateMembership(r.Context(), principal(r), rbac.MembershipInput{
		UserID:    req.User,
		CompanyID: req.Company,
		RoleIDs:   req.Roles,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/memberships/"+m.ID)
	writeJSON(w, http.StatusCreated, m)
}

func (a *API) updateMembership(w http.ResponseWriter, r *http.Request) {
	var req membershipPatch
	if !a.bind(w, r, &req) {
		return
	}
	m, err := a.svc.UpdateMembership(r.Context(), principal(r), chi.URLParam(r, "id"), rbac.MembershipUpdate{
		RoleIDs: req.Roles,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (a *API) deleteMembership(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.DeleteMembership(r.Context(), principal(r), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
