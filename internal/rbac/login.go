package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"erpcore.org/internal/audit"
	"erpcore.org/internal/auth"
	"erpcore.org/internal/obs"
)

// Login verifies credentials and applies the lockout policy. The user row is
// re-read on every attempt so the lockout predicate always sees fresh state.
func (s *Service) Login(ctx context.Context, username, password string) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		obs.ObserveLogin("invalid")
		return User{}, ErrInvalidCredentials
	}
	user, err := s.store.GetUserByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		obs.ObserveLogin("invalid")
		s.audit.Record(ctx, nil, audit.ActionFailedLogin, "Failed login for unknown user: "+username)
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	actor := auth.NewPrincipal(user.ID, user.Username, user.IsSuperuser)

	now := s.now()
	if user.IsLockedOut(now) {
		obs.ObserveLogin("locked")
		s.record(ctx, actor, audit.ActionFailedLogin, "Login attempt for locked account: %s", user.Username)
		return User{}, fmt.Errorf("%w until %s", ErrLockedOut, user.LockoutUntil.UTC().Format("2006-01-02T15:04:05Z"))
	}
	if user.LockoutUntil != nil {
		// Lockout expired: start counting afresh.
		if err := s.store.ResetLoginFailures(ctx, user.ID); err != nil {
			return User{}, err
		}
		user.FailedLoginAttempts = 0
		user.LockoutUntil = nil
	}

	if !user.IsActive || s.hasher.Verify(user.PasswordHash, password) != nil {
		updated, err := s.store.RecordLoginFailure(ctx, user.ID, s.lockout.MaxAttempts, now.Add(s.lockout.Duration))
		if err != nil {
			return User{}, err
		}
		s.record(ctx, actor, audit.ActionFailedLogin, "Failed login for %s (%d consecutive)", user.Username, updated.FailedLoginAttempts)
		if updated.IsLockedOut(now) {
			obs.ObserveLogin("locked")
			return User{}, fmt.Errorf("%w after %d failed attempts", ErrLockedOut, updated.FailedLoginAttempts)
		}
		obs.ObserveLogin("invalid")
		return User{}, ErrInvalidCredentials
	}

	if user.FailedLoginAttempts > 0 {
		if err := s.store.ResetLoginFailures(ctx, user.ID); err != nil {
			return User{}, err
		}
		user.FailedLoginAttempts = 0
	}
	obs.ObserveLogin("success")
	s.record(ctx, actor, audit.ActionLogin, "User logged in: %s", user.Username)
	return user, nil
}

// Logout records the end of a session. Token revocation is out of scope.
func (s *Service) Logout(ctx context.Context, p auth.Principal) error {
	if !p.IsAuthenticated() {
		return ErrUnauthenticated
	}
	s.record(ctx, p, audit.ActionLogout, "User logged out: %s", p.Username)
	return nil
}

// PrincipalFor rebuilds a principal from storage so superuser and active
// flags are current. Unknown or inactive users are unauthenticated.
func (s *Service) PrincipalFor(ctx context.Context, userID string) (auth.Principal, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return auth.Anonymous(), ErrUnauthenticated
	}
	user, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return auth.Anonymous(), ErrUnauthenticated
	}
	if err != nil {
		return auth.Anonymous(), err
	}
	if !user.IsActive {
		return auth.Anonymous(), ErrUnauthenticated
	}
	return auth.NewPrincipal(user.ID, user.Username, user.IsSuperuser), nil
}
