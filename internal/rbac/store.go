package rbac

import (
	"context"
	"time"
)

// Store is the persistence contract of the authorization core. Implementations
// enforce uniqueness (company name, username, role name per company, one
// membership per user and company) and report violations as *ValidationError.
// Missing rows are reported as ErrNotFound.
type Store interface {
	CompanyStore
	PermissionStore
	RoleStore
	UserStore
	MembershipStore

	// WithinTx runs fn against a transactional view of the store. A non-nil
	// error from fn rolls back every write made through that view.
	WithinTx(ctx context.Context, fn func(Store) error) error
}

type CompanyStore interface {
	CreateCompany(ctx context.Context, name string, active bool) (Company, error)
	// GetOrCreateCompany returns the company named name, creating it when
	// absent. Concurrent callers observe the same row.
	GetOrCreateCompany(ctx context.Context, name string) (Company, bool, error)
	ListCompanies(ctx context.Context) ([]Company, error)
	GetCompany(ctx context.Context, id string) (Company, error)
	UpdateCompany(ctx context.Context, id string, upd CompanyUpdate) (Company, error)
	// DeleteCompany removes the company with its roles and memberships.
	DeleteCompany(ctx context.Context, id string) error
}

type PermissionStore interface {
	EnsurePermission(ctx context.Context, perm Permission) (Permission, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	GetPermission(ctx context.Context, id string) (Permission, error)
}

type RoleStore interface {
	CreateRole(ctx context.Context, role Role) (Role, error)
	ListRoles(ctx context.Context, filter Filter) ([]Role, error)
	GetRole(ctx context.Context, id string) (Role, error)
	UpdateRole(ctx context.Context, id string, upd RoleUpdate) (Role, error)
	DeleteRole(ctx context.Context, id string) error
}

type UserStore interface {
	CreateUser(ctx context.Context, user User) (User, error)
	// ListUsers returns users; a CompanyID filter selects members of that company.
	ListUsers(ctx context.Context, filter Filter) ([]User, error)
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	UpdateUser(ctx context.Context, id string, upd UserRecordUpdate) (User, error)
	DeleteUser(ctx context.Context, id string) error
	// RecordLoginFailure atomically increments the failure counter and sets
	// lockout_until once the counter reaches threshold.
	RecordLoginFailure(ctx context.Context, id string, threshold int, lockoutUntil time.Time) (User, error)
	ResetLoginFailures(ctx context.Context, id string) error
}

type MembershipStore interface {
	CreateMembership(ctx context.Context, m Membership) (Membership, error)
	ListMemberships(ctx context.Context, filter Filter) ([]Membership, error)
	GetMembership(ctx context.Context, id string) (Membership, error)
	UpdateMembership(ctx context.Context, id string, upd MembershipUpdate) (Membership, error)
	DeleteMembership(ctx context.Context, id string) error
	// PrimaryMembership returns the user's earliest-created membership, ties
	// broken by id, or ErrNotFound.
	PrimaryMembership(ctx context.Context, userID string) (Membership, error)
	PermissionLookup
}

// PermissionLookup answers permission questions across all of a user's
// memberships.
type PermissionLookup interface {
	UserHasPermission(ctx context.Context, userID, codename string) (bool, error)
	UserPermissions(ctx context.Context, userID string) ([]string, error)
}
