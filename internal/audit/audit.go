package audit

import (
	"context"
	"time"
)

// Action enumerates the lifecycle events recorded in the audit log.
type Action string

const (
	ActionCreate      Action = "create"
	ActionUpdate      Action = "update"
	ActionDelete      Action = "delete"
	ActionLogin       Action = "login"
	ActionLogout      Action = "logout"
	ActionFailedLogin Action = "failed_login"
)

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete, ActionLogin, ActionLogout, ActionFailedLogin:
		return true
	}
	return false
}

// Entry is one append-only audit record. UserID and CompanyID become nil when
// the referenced rows are deleted.
type Entry struct {
	ID          string    `json:"id"`
	UserID      *string   `json:"user"`
	CompanyID   *string   `json:"company"`
	Action      Action    `json:"action"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Query selects audit entries. The zero value returns every entry.
type Query struct {
	CompanyID string
	None      bool
	Limit     int
}

// Store persists audit entries. ListAuditLogs returns newest first.
type Store interface {
	AppendAuditLog(ctx context.Context, entry Entry) (Entry, error)
	ListAuditLogs(ctx context.Context, q Query) ([]Entry, error)
}

// CompanyResolver attributes an actor to the company of its primary membership.
type CompanyResolver interface {
	PrimaryCompanyID(ctx context.Context, userID string) (string, error)
}
