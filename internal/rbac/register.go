package rbac

import (
	"context"
	"fmt"
	"strings"

	"erpcore.org/internal/audit"
	"erpcore.org/internal/auth"
)

// RegisterInput is the self-service sign-up payload.
type RegisterInput struct {
	Username    string
	Email       string
	Password    string
	CompanyName string
}

// Register provisions a user in one transaction: get-or-create the company by
// name, create the user, and bind a membership with no roles. Nothing is
// written unless every step succeeds.
func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	username, err := requireText("username", in.Username)
	if err != nil {
		return User{}, err
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return User{}, err
	}
	if in.Password == "" {
		return User{}, NewValidationError("password", "this field may not be blank")
	}
	companyName, err := requireText("company_name", in.CompanyName)
	if err != nil {
		return User{}, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	var user User
	err = s.store.WithinTx(ctx, func(tx Store) error {
		company, _, err := tx.GetOrCreateCompany(ctx, companyName)
		if err != nil {
			return err
		}
		if !company.IsActive {
			return NewValidationError("company_name", "company is not active")
		}
		user, err = tx.CreateUser(ctx, User{
			Username:     username,
			Email:        email,
			PasswordHash: hash,
			IsActive:     true,
			DateJoined:   s.now().UTC(),
		})
		if err != nil {
			return err
		}
		_, err = tx.CreateMembership(ctx, Membership{UserID: user.ID, CompanyID: company.ID, RoleIDs: []string{}})
		return err
	})
	if err != nil {
		return User{}, err
	}

	actor := auth.NewPrincipal(user.ID, user.Username, user.IsSuperuser)
	s.record(ctx, actor, audit.ActionCreate, "New user account created: %s", user.Username)
	return user, nil
}

// CreateSuperuser provisions an account that bypasses every tenant and
// permission check. It is meant for operator tooling, not the public API.
func (s *Service) CreateSuperuser(ctx context.Context, username, email, password string) (User, error) {
	username, err := requireText("username", username)
	if err != nil {
		return User{}, err
	}
	email, err = normalizeEmail(email)
	if err != nil {
		return User{}, err
	}
	if strings.TrimSpace(password) == "" {
		return User{}, NewValidationError("password", "this field may not be blank")
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	user, err := s.store.CreateUser(ctx, User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
		IsSuperuser:  true,
		DateJoined:   s.now().UTC(),
	})
	if err != nil {
		return User{}, err
	}
	s.record(ctx, auth.NewPrincipal(user.ID, user.Username, true), audit.ActionCreate, "Superuser account created: %s", user.Username)
	return user, nil
}
