// Package memory provides an in-process implementation of the rbac and audit
// stores. It enforces the same uniqueness, cascade and set-null rules as the
// PostgreSQL schema and is used for tests and single-node development.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"erpcore.org/internal/audit"
	"erpcore.org/internal/ids"
	"erpcore.org/internal/rbac"
)

var (
	_ rbac.Store  = (*Store)(nil)
	_ audit.Store = (*Store)(nil)
)

type state struct {
	companies   map[string]rbac.Company
	permissions map[string]rbac.Permission
	roles       map[string]rbac.Role
	users       map[string]rbac.User
	memberships map[string]rbac.Membership
	auditLogs   []audit.Entry
}

func newState() *state {
	return &state{
		companies:   map[string]rbac.Company{},
		permissions: map[string]rbac.Permission{},
		roles:       map[string]rbac.Role{},
		users:       map[string]rbac.User{},
		memberships: map[string]rbac.Membership{},
	}
}

func (st *state) clone() *state {
	out := newState()
	for k, v := range st.companies {
		out.companies[k] = v
	}
	for k, v := range st.permissions {
		out.permissions[k] = v
	}
	for k, v := range st.roles {
		out.roles[k] = copyRole(v)
	}
	for k, v := range st.users {
		out.users[k] = copyUser(v)
	}
	for k, v := range st.memberships {
		out.memberships[k] = copyMembership(v)
	}
	out.auditLogs = make([]audit.Entry, len(st.auditLogs))
	for i, e := range st.auditLogs {
		out.auditLogs[i] = copyEntry(e)
	}
	return out
}

// Store is safe for concurrent use.
type Store struct {
	mu  sync.RWMutex
	st  *state
	now func() time.Time
}

// Option configures Store.
type Option func(*Store)

// WithClock overrides the time source used for created_at columns.
func WithClock(fn func() time.Time) Option {
	return func(s *Store) {
		if fn != nil {
			s.now = fn
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{st: newState(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC()
}

// WithinTx runs fn against a private copy of the data and publishes the copy
// only when fn succeeds. Other writers wait for the transaction to finish.
func (s *Store) WithinTx(ctx context.Context, fn func(rbac.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &Store{st: s.st.clone(), now: s.now}
	if err := fn(tx); err != nil {
		return err
	}
	s.st = tx.st
	return nil
}

func copyRole(r rbac.Role) rbac.Role {
	r.Permissions = slices.Clone(r.Permissions)
	if r.Permissions == nil {
		r.Permissions = []string{}
	}
	return r
}

func copyMembership(m rbac.Membership) rbac.Membership {
	m.RoleIDs = slices.Clone(m.RoleIDs)
	if m.RoleIDs == nil {
		m.RoleIDs = []string{}
	}
	return m
}

func copyUser(u rbac.User) rbac.User {
	if u.LockoutUntil != nil {
		t := *u.LockoutUntil
		u.LockoutUntil = &t
	}
	return u
}

func copyEntry(e audit.Entry) audit.Entry {
	if e.UserID != nil {
		v := *e.UserID
		e.UserID = &v
	}
	if e.CompanyID != nil {
		v := *e.CompanyID
		e.CompanyID = &v
	}
	return e
}

// sortedValues returns map values ordered by key. Ids are ULIDs, so ordering
// by id is creation order.
func sortedValues[T any](m map[string]T, key func(T) string) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b T) int { return cmp.Compare(key(a), key(b)) })
	return out
}

func newID() string {
	return ids.New()
}
