package memory

import (
	"context"
	"errors"

	"erpcore.org/internal/audit"
)

// AppendAuditLog stores an entry. References to missing users or companies
// are rejected, as the foreign keys would in PostgreSQL.
func (s *Store) AppendAuditLog(_ context.Context, e audit.Entry) (audit.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.UserID != nil {
		if _, ok := s.st.users[*e.UserID]; !ok {
			return audit.Entry{}, errors.New("audit: user does not exist")
		}
	}
	if e.CompanyID != nil {
		if _, ok := s.st.companies[*e.CompanyID]; !ok {
			return audit.Entry{}, errors.New("audit: company does not exist")
		}
	}
	e = copyEntry(e)
	e.ID = newID()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.timestamp()
	}
	s.st.auditLogs = append(s.st.auditLogs, e)
	return copyEntry(e), nil
}

// ListAuditLogs returns matching entries newest first.
func (s *Store) ListAuditLogs(_ context.Context, q audit.Query) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []audit.Entry{}
	if q.None {
		return out, nil
	}
	for i := len(s.st.auditLogs) - 1; i >= 0; i-- {
		e := s.st.auditLogs[i]
		if q.CompanyID != "" && (e.CompanyID == nil || *e.CompanyID != q.CompanyID) {
			continue
		}
		out = append(out, copyEntry(e))
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}
