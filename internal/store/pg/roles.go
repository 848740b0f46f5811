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

func (s *Store) EnsurePermission(ctx context.Context, perm rbac.Permission) (rbac.Permission, error) {
	if s.db == nil {
		return rbac.Permission{}, errNoDB
	}
	if _, err := s.q.ExecContext(ctx, `
		insert into permissions (id, codename, name, description)
		values ($1, $2, $3, $4)
		on conflict (codename) do nothing
	`, ids.New(), perm.Codename, perm.Name, perm.Description); err != nil {
		return rbac.Permission{}, classify(err)
	}
	var out rbac.Permission
	err := s.q.QueryRowContext(ctx, `
		select id, codename, name, description from permissions where codename = $1
	`, perm.Codename).Scan(&out.ID, &out.Codename, &out.Name, &out.Description)
	if err != nil {
		return rbac.Permission{}, err
	}
	return out, nil
}

func (s *Store) ListPermissions(ctx context.Context) ([]rbac.Permission, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.q.QueryContext(ctx, `select id, codename, name, description from permissions order by codename`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []rbac.Permission{}
	for rows.Next() {
		var p rbac.Permission
		if err := rows.Scan(&p.ID, &p.Codename, &p.Name, &p.Description); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) GetPermission(ctx context.Context, id string) (rbac.Permission, error) {
	if s.db == nil {
		return rbac.Permission{}, errNoDB
	}
	var p rbac.Permission
	err := s.q.QueryRowContext(ctx, `
		select id, codename, name, description from permissions where id = $1
	`, id).Scan(&p.ID, &p.Codename, &p.Name, &p.Description)
	if err != nil {
		return rbac.Permission{}, notFound(err)
	}
	return p, nil
}

const roleSelect = `
	select r.id, r.company_id, r.name, r.description, r.created_at, r.updated_at,
	       coalesce(string_agg(p.codename, ',' order by p.codename), '')
	from roles r
	left join role_permissions rp on rp.role_id = r.id
	left join permissions p on p.id = rp.permission_id
`

func scanRole(row interface{ Scan(...any) error }) (rbac.Role, error) {
	var (
		r     rbac.Role
		perms string
	)
	if err := row.Scan(&r.ID, &r.CompanyID, &r.Name, &r.Description, &r.CreatedAt, &r.UpdatedAt, &perms); err != nil {
		return rbac.Role{}, err
	}
	r.Permissions = splitList(perms)
	return r, nil
}

// setRolePermissions replaces the permission set of roleID.
func setRolePermissions(ctx context.Context, q querier, roleID string, codenames []string) error {
	if _, err := q.ExecContext(ctx, `delete from role_permissions where role_id = $1`, roleID); err != nil {
		return err
	}
	for _, codename := range codenames {
		var permID string
		err := q.QueryRowContext(ctx, `select id from permissions where codename = $1`, codename).Scan(&permID)
		if errors.Is(err, sql.ErrNoRows) {
			return rbac.NewValidationError("permissions", "unknown permission: "+codename)
		}
		if err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx, `
			insert into role_permissions (role_id, permission_id)
			values ($1, $2)
		`, roleID, permID); err != nil {
			return classify(err)
		}
	}
	return nil
}

func (s *Store) CreateRole(ctx context.Context, role rbac.Role) (rbac.Role, error) {
	id := ids.New()
	err := s.atomic(ctx, func(q querier) error {
		if _, err := q.ExecContext(ctx, `
			insert into roles (id, company_id, name, description)
			values ($1, $2, $3, $4)
		`, id, role.CompanyID, role.Name, role.Description); err != nil {
			return classify(err)
		}
		return setRolePermissions(ctx, q, id, role.Permissions)
	})
	if err != nil {
		return rbac.Role{}, err
	}
	return s.GetRole(ctx, id)
}

func (s *Store) ListRoles(ctx context.Context, filter rbac.Filter) ([]rbac.Role, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	out := []rbac.Role{}
	if filter.None {
		return out, nil
	}
	var w where
	if filter.CompanyID != "" {
		w.eq("r.company_id", filter.CompanyID)
	}
	rows, err := s.q.QueryContext(ctx, roleSelect+w.sql()+` group by r.id order by r.id`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) GetRole(ctx context.Context, id string) (rbac.Role, error) {
	if s.db == nil {
		return rbac.Role{}, errNoDB
	}
	r, err := scanRole(s.q.QueryRowContext(ctx, roleSelect+`where r.id = $1 group by r.id`, id))
	if err != nil {
		return rbac.Role{}, notFound(err)
	}
	return r, nil
}

func (s *Store) UpdateRole(ctx context.Context, id string, upd rbac.RoleUpdate) (rbac.Role, error) {
	err := s.atomic(ctx, func(q querier) error {
		sets := []string{"updated_at = now()"}
		args := []any{}
		idx := 1
		if upd.Name != nil {
			sets = append(sets, fmt.Sprintf("name = $%d", idx))
			args = append(args, *upd.Name)
			idx++
		}
		if upd.Description != nil {
			sets = append(sets, fmt.Sprintf("description = $%d", idx))
			args = append(args, *upd.Description)
			idx++
		}
		query := fmt.Sprintf(`update roles set %s where id = $%d`, strings.Join(sets, ", "), idx)
		args = append(args, id)
		res, err := q.ExecContext(ctx, query, args...)
		if err != nil {
			return classify(err)
		}
		if err := expectAffected(res); err != nil {
			return err
		}
		if upd.Permissions != nil {
			return setRolePermissions(ctx, q, id, *upd.Permissions)
		}
		return nil
	})
	if err != nil {
		return rbac.Role{}, err
	}
	return s.GetRole(ctx, id)
}

// DeleteRole cascades to role_permissions and membership_roles.
func (s *Store) DeleteRole(ctx context.Context, id string) error {
	if s.db == nil {
		return errNoDB
	}
	res, err := s.q.ExecContext(ctx, `delete from roles where id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}
