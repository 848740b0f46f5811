package httpapi

import (
	"net/http"
	"time"

	"erpcore.org/internal/rbac"
)

type loginRequest struct {
	Username string `json:"username" validate:"required,max=150"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      rbac.User `json:"user"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if a.tokens == nil {
		writeError(w, r, http.StatusServiceUnavailable, "token issuance unavailable")
		return
	}
	var req loginRequest
	if !a.bind(w, r, &req) {
		return
	}
	user, err := a.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	p, err := a.svc.PrincipalFor(r.Context(), user.ID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	token, expiresAt, err := a.tokens.Issue(p)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user,
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.Logout(r.Context(), principal(r)); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if !p.IsAuthenticated() {
		handleServiceError(w, r, rbac.ErrUnauthenticated)
		return
	}
	user, err := a.svc.GetUser(r.Context(), p, p.UserID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
