package memory

import (
	"context"
	"time"

	"erpcore.org/internal/rbac"
)

func (s *Store) usernameTaken(username, exceptID string) bool {
	for _, u := range s.st.users {
		if u.Username == username && u.ID != exceptID {
			return true
		}
	}
	return false
}

func (s *Store) CreateUser(_ context.Context, user rbac.User) (rbac.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.usernameTaken(user.Username, "") {
		return rbac.User{}, rbac.NewConflictError("username", "a user with that username already exists")
	}
	user.ID = newID()
	if user.DateJoined.IsZero() {
		user.DateJoined = s.timestamp()
	}
	user = copyUser(user)
	s.st.users[user.ID] = user
	return copyUser(user), nil
}

// ListUsers honours filter.CompanyID by selecting members of that company.
func (s *Store) ListUsers(_ context.Context, filter rbac.Filter) ([]rbac.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []rbac.User{}
	if filter.None {
		return out, nil
	}
	for _, u := range sortedValues(s.st.users, func(u rbac.User) string { return u.ID }) {
		if filter.UserID != "" && filter.UserID != u.ID {
			continue
		}
		if filter.CompanyID != "" && !s.isMember(u.ID, filter.CompanyID) {
			continue
		}
		out = append(out, copyUser(u))
	}
	return out, nil
}

func (s *Store) isMember(userID, companyID string) bool {
	for _, m := range s.st.memberships {
		if m.UserID == userID && m.CompanyID == companyID {
			return true
		}
	}
	return false
}

func (s *Store) GetUser(_ context.Context, id string) (rbac.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.st.users[id]
	if !ok {
		return rbac.User{}, rbac.ErrNotFound
	}
	return copyUser(u), nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (rbac.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.st.users {
		if u.Username == username {
			return copyUser(u), nil
		}
	}
	return rbac.User{}, rbac.ErrNotFound
}

func (s *Store) UpdateUser(_ context.Context, id string, upd rbac.UserRecordUpdate) (rbac.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.st.users[id]
	if !ok {
		return rbac.User{}, rbac.ErrNotFound
	}
	u = copyUser(u)
	if upd.Username != nil {
		if s.usernameTaken(*upd.Username, id) {
			return rbac.User{}, rbac.NewConflictError("username", "a user with that username already exists")
		}
		u.Username = *upd.Username
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.PasswordHash != nil {
		u.PasswordHash = *upd.PasswordHash
	}
	if upd.IsActive != nil {
		u.IsActive = *upd.IsActive
	}
	s.st.users[id] = u
	return copyUser(u), nil
}

// DeleteUser cascades to memberships and nulls audit references.
func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.users[id]; !ok {
		return rbac.ErrNotFound
	}
	delete(s.st.users, id)
	for mid, m := range s.st.memberships {
		if m.UserID == id {
			delete(s.st.memberships, mid)
		}
	}
	for i, e := range s.st.auditLogs {
		if e.UserID != nil && *e.UserID == id {
			s.st.auditLogs[i].UserID = nil
		}
	}
	return nil
}

func (s *Store) RecordLoginFailure(_ context.Context, id string, threshold int, lockoutUntil time.Time) (rbac.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.st.users[id]
	if !ok {
		return rbac.User{}, rbac.ErrNotFound
	}
	u = copyUser(u)
	u.FailedLoginAttempts++
	if threshold > 0 && u.FailedLoginAttempts >= threshold {
		until := lockoutUntil.UTC()
		u.LockoutUntil = &until
	}
	s.st.users[id] = u
	return copyUser(u), nil
}

func (s *Store) ResetLoginFailures(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.st.users[id]
	if !ok {
		return rbac.ErrNotFound
	}
	u.FailedLoginAttempts = 0
	u.LockoutUntil = nil
	s.st.users[id] = u
	return nil
}
