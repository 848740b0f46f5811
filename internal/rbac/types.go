package rbac

import "time"

// Company is the tenant boundary.
type Company struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Permission is an entry of the global capability catalog.
type Permission struct {
	ID          string `json:"id"`
	Codename    string `json:"codename"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Role is a company-owned, named set of permission codenames.
type Role struct {
	ID          string    `json:"id"`
	CompanyID   string    `json:"company"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// User is an account. The password hash is opaque to this package.
type User struct {
	ID                  string     `json:"id"`
	Username            string     `json:"username"`
	Email               string     `json:"email"`
	PasswordHash        string     `json:"-"`
	FailedLoginAttempts int        `json:"-"`
	LockoutUntil        *time.Time `json:"-"`
	IsActive            bool       `json:"is_active"`
	IsSuperuser         bool       `json:"is_superuser"`
	DateJoined          time.Time  `json:"date_joined"`
}

// IsLockedOut reports whether lockout_until is set and still in the future.
func (u User) IsLockedOut(now time.Time) bool {
	return u.LockoutUntil != nil && now.Before(*u.LockoutUntil)
}

// Membership binds a user to a company with a set of that company's roles.
type Membership struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user"`
	CompanyID string    `json:"company"`
	RoleIDs   []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
}

type CompanyUpdate struct {
	Name     *string
	IsActive *bool
}

type RoleUpdate struct {
	Name        *string
	Description *string
	Permissions *[]string
}

// UserUpdate carries caller-supplied changes; Password is plaintext.
type UserUpdate struct {
	Username *string
	Email    *string
	Password *string
	IsActive *bool
}

// UserRecordUpdate is the storage-level form of UserUpdate.
type UserRecordUpdate struct {
	Username     *string
	Email        *string
	PasswordHash *string
	IsActive     *bool
}

type MembershipUpdate struct {
	RoleIDs *[]string
}

// Filter narrows a collection read. The zero value matches every row;
// None matches nothing.
type Filter struct {
	CompanyID string
	UserID    string
	None      bool
}

// Matches applies the filter to a single row's owning company and user.
func (f Filter) Matches(companyID, userID string) bool {
	if f.None {
		return false
	}
	if f.CompanyID != "" && f.CompanyID != companyID {
		return false
	}
	if f.UserID != "" && f.UserID != userID {
		return false
	}
	return true
}
