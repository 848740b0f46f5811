package auth

import "strings"

// Principal is the authenticated actor handed to the authorization core.
type Principal struct {
	UserID        string
	Username      string
	IsSuperuser   bool
	Authenticated bool
}

// NewPrincipal builds an authenticated principal for userID.
func NewPrincipal(userID, username string, superuser bool) Principal {
	userID = strings.TrimSpace(userID)
	return Principal{
		UserID:        userID,
		Username:      username,
		IsSuperuser:   superuser,
		Authenticated: userID != "",
	}
}

// Anonymous returns the unauthenticated principal.
func Anonymous() Principal {
	return Principal{}
}

// IsAuthenticated reports whether the principal was verified by the identity provider.
func (p Principal) IsAuthenticated() bool {
	return p.Authenticated && p.UserID != ""
}
