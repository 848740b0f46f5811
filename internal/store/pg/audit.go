package pg

import (
	"context"
	"database/sql"
	"fmt"

	"erpcore.org/internal/audit"
	"erpcore.org/internal/ids"
)

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func (s *Store) AppendAuditLog(ctx context.Context, e audit.Entry) (audit.Entry, error) {
	if s.db == nil {
		return audit.Entry{}, errNoDB
	}
	e.ID = ids.New()
	err := s.q.QueryRowContext(ctx, `
		insert into audit_logs (id, user_id, company_id, action, description, created_at)
		values ($1, $2, $3, $4, $5, coalesce($6, now()))
		returning created_at
	`, e.ID, nullString(e.UserID), nullString(e.CompanyID), string(e.Action), e.Description, nullTime(e)).Scan(&e.CreatedAt)
	if err != nil {
		return audit.Entry{}, fmt.Errorf("insert audit log: %w", err)
	}
	return e, nil
}

func nullTime(e audit.Entry) sql.NullTime {
	if e.CreatedAt.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: e.CreatedAt, Valid: true}
}

// ListAuditLogs returns entries newest first.
func (s *Store) ListAuditLogs(ctx context.Context, q audit.Query) ([]audit.Entry, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	out := []audit.Entry{}
	if q.None {
		return out, nil
	}
	var w where
	if q.CompanyID != "" {
		w.eq("company_id", q.CompanyID)
	}
	query := `select id, user_id, company_id, action, description, created_at from audit_logs ` +
		w.sql() + ` order by created_at desc, id desc`
	args := w.args
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(` limit $%d`, len(args))
	}
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e                 audit.Entry
			userID, companyID sql.NullString
			action            string
		)
		if err := rows.Scan(&e.ID, &userID, &companyID, &action, &e.Description, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Action = audit.Action(action)
		if userID.Valid {
			e.UserID = &userID.String
		}
		if companyID.Valid {
			e.CompanyID = &companyID.String
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
