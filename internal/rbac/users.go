package rbac

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"erpcore.org/internal/audit"
	"erpcore.org/internal/auth"
)

var validate = validator.New()

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", NewValidationError("email", "this field may not be blank")
	}
	if err := validate.Var(email, "required,email"); err != nil {
		return "", NewValidationError("email", "enter a valid email address")
	}
	return strings.ToLower(email), nil
}

// ListUsers returns the members of the caller's company; superusers see all users.
func (s *Service) ListUsers(ctx context.Context, p auth.Principal) ([]User, error) {
	scope, err := s.listScope(ctx, OpUserList, p)
	if err != nil {
		return nil, err
	}
	if scope.Empty() {
		return []User{}, nil
	}
	return s.store.ListUsers(ctx, scope.Filter())
}

func (s *Service) GetUser(ctx context.Context, p auth.Principal, id string) (User, error) {
	id, err := requireID("id", id)
	if err != nil {
		return User{}, err
	}
	scope, err := s.authorizeScoped(ctx, OpUserGet, p, Target{UserID: id})
	if err != nil {
		return User{}, err
	}
	return s.scopedUser(ctx, scope, p, id)
}

// scopedUser loads id if it is the caller or a member of the caller's company.
func (s *Service) scopedUser(ctx context.Context, scope Scope, p auth.Principal, id string) (User, error) {
	if !scope.Unrestricted && id != p.UserID {
		if scope.Empty() {
			return User{}, ErrNotFound
		}
		shared, err := s.store.ListMemberships(ctx, Filter{CompanyID: scope.CompanyID, UserID: id})
		if err != nil {
			return User{}, err
		}
		if len(shared) == 0 {
			return User{}, ErrNotFound
		}
	}
	return s.store.GetUser(ctx, id)
}

func (s *Service) UpdateUser(ctx context.Context, p auth.Principal, id string, upd UserUpdate) (User, error) {
	id, err := requireID("id", id)
	if err != nil {
		return User{}, err
	}
	scope, err := s.authorizeScoped(ctx, OpUserUpdate, p, Target{UserID: id})
	if err != nil {
		return User{}, err
	}
	current, err := s.scopedUser(ctx, scope, p, id)
	if err != nil {
		return User{}, err
	}
	if upd.IsActive != nil {
		if err := s.eval.Require(ctx, p, PermUserManage); err != nil {
			return User{}, err
		}
	}
	rec := UserRecordUpdate{IsActive: upd.IsActive}
	if upd.Username != nil {
		username, err := requireText("username", *upd.Username)
		if err != nil {
			return User{}, err
		}
		rec.Username = &username
	}
	if upd.Email != nil {
		email, err := normalizeEmail(*upd.Email)
		if err != nil {
			return User{}, err
		}
		rec.Email = &email
	}
	if upd.Password != nil {
		if *upd.Password == "" {
			return User{}, NewValidationError("password", "this field may not be blank")
		}
		hash, err := s.hasher.Hash(*upd.Password)
		if err != nil {
			return User{}, fmt.Errorf("hash password: %w", err)
		}
		rec.PasswordHash = &hash
	}
	user, err := s.store.UpdateUser(ctx, current.ID, rec)
	if err != nil {
		return User{}, err
	}
	s.record(ctx, p, audit.ActionUpdate, "Updated user profile for %s", current.Username)
	return user, nil
}

// DeleteUser removes a user. The audit entry is written once the row is gone;
// a user deleting itself is recorded without an actor since the row it would
// reference no longer exists.
func (s *Service) DeleteUser(ctx context.Context, p auth.Principal, id string) error {
	id, err := requireID("id", id)
	if err != nil {
		return err
	}
	scope, err := s.authorizeScoped(ctx, OpUserDelete, p, Target{UserID: id})
	if err != nil {
		return err
	}
	user, err := s.scopedUser(ctx, scope, p, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteUser(ctx, user.ID); err != nil {
		return err
	}
	s.invalidate(ctx)
	if user.ID == p.UserID {
		s.audit.Record(ctx, nil, audit.ActionDelete, "Deleted user: "+user.Username)
		return nil
	}
	s.record(ctx, p, audit.ActionDelete, "Deleted user: %s", user.Username)
	return nil
}

// ListAuditLogs returns the caller's company audit trail, newest first.
func (s *Service) ListAuditLogs(ctx context.Context, p auth.Principal, limit int) ([]audit.Entry, error) {
	scope, err := s.listScope(ctx, OpAuditList, p)
	if err != nil {
		return nil, err
	}
	if scope.Empty() {
		return []audit.Entry{}, nil
	}
	return s.audit.List(ctx, audit.Query{CompanyID: scope.CompanyID, None: scope.Empty(), Limit: limit})
}

// AuditScope authorizes reading the audit trail and returns the scope entries
// must fall in. Live subscribers filter with it.
func (s *Service) AuditScope(ctx context.Context, p auth.Principal) (Scope, error) {
	return s.authorizeScoped(ctx, OpAuditList, p, Target{})
}
