package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"erpcore.org/internal/ids"
	"erpcore.org/internal/rbac"
)

const companyColumns = `id, name, is_active, created_at`

func scanCompany(row interface{ Scan(...any) error }) (rbac.Company, error) {
	var c rbac.Company
	err := row.Scan(&c.ID, &c.Name, &c.IsActive, &c.CreatedAt)
	return c, err
}

func (s *Store) CreateCompany(ctx context.Context, name string, active bool) (rbac.Company, error) {
	if s.db == nil {
		return rbac.Company{}, errNoDB
	}
	c, err := scanCompany(s.q.QueryRowContext(ctx, `
		insert into companies (id, name, is_active)
		values ($1, $2, $3)
		returning `+companyColumns, ids.New(), name, active))
	if err != nil {
		return rbac.Company{}, classify(err)
	}
	return c, nil
}

// GetOrCreateCompany relies on the unique name constraint: a losing
// concurrent insert does nothing and the winner's row is read back.
func (s *Store) GetOrCreateCompany(ctx context.Context, name string) (rbac.Company, bool, error) {
	if s.db == nil {
		return rbac.Company{}, false, errNoDB
	}
	for attempt := 0; attempt < 3; attempt++ {
		c, err := scanCompany(s.q.QueryRowContext(ctx, `
			insert into companies (id, name, is_active)
			values ($1, $2, true)
			on conflict (name) do nothing
			returning `+companyColumns, ids.New(), name))
		if err == nil {
			return c, true, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return rbac.Company{}, false, classify(err)
		}
		c, err = scanCompany(s.q.QueryRowContext(ctx, `select `+companyColumns+` from companies where name = $1`, name))
		if err == nil {
			return c, false, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return rbac.Company{}, false, err
		}
	}
	return rbac.Company{}, false, fmt.Errorf("%w: company %q changed concurrently", rbac.ErrConflict, name)
}

func (s *Store) ListCompanies(ctx context.Context) ([]rbac.Company, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.q.QueryContext(ctx, `select `+companyColumns+` from companies order by id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []rbac.Company{}
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) GetCompany(ctx context.Context, id string) (rbac.Company, error) {
	if s.db == nil {
		return rbac.Company{}, errNoDB
	}
	c, err := scanCompany(s.q.QueryRowContext(ctx, `select `+companyColumns+` from companies where id = $1`, id))
	if err != nil {
		return rbac.Company{}, notFound(err)
	}
	return c, nil
}

func (s *Store) UpdateCompany(ctx context.Context, id string, upd rbac.CompanyUpdate) (rbac.Company, error) {
	if s.db == nil {
		return rbac.Company{}, errNoDB
	}
	var (
		sets []string
		args []any
		idx  = 1
	)
	if upd.Name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", idx))
		args = append(args, *upd.Name)
		idx++
	}
	if upd.IsActive != nil {
		sets = append(sets, fmt.Sprintf("is_active = $%d", idx))
		args = append(args, *upd.IsActive)
		idx++
	}
	if len(sets) == 0 {
		return s.GetCompany(ctx, id)
	}
	query := fmt.Sprintf(`update companies set %s where id = $%d returning %s`, strings.Join(sets, ", "), idx, companyColumns)
	args = append(args, id)
	c, err := scanCompany(s.q.QueryRowContext(ctx, query, args...))
	if err != nil {
		return rbac.Company{}, classify(notFound(err))
	}
	return c, nil
}

// DeleteCompany relies on the schema: roles and memberships cascade, audit
// references are set to null.
func (s *Store) DeleteCompany(ctx context.Context, id string) error {
	if s.db == nil {
		return errNoDB
	}
	res, err := s.q.ExecContext(ctx, `delete from companies where id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}
