package pg

import (
	"context"

	"erpcore.org/internal/ids"
	"erpcore.org/internal/rbac"
)

const membershipSelect = `
	select m.id, m.user_id, m.company_id, m.created_at,
	       coalesce(string_agg(mr.role_id, ',' order by mr.role_id), '')
	from memberships m
	left join membership_roles mr on mr.membership_id = m.id
`

func scanMembership(row interface{ Scan(...any) error }) (rbac.Membership, error) {
	var (
		m     rbac.Membership
		roles string
	)
	if err := row.Scan(&m.ID, &m.UserID, &m.CompanyID, &m.CreatedAt, &roles); err != nil {
		return rbac.Membership{}, err
	}
	m.RoleIDs = splitList(roles)
	return m, nil
}

// setMembershipRoles replaces the role set. The composite foreign key on
// (role_id, company_id) rejects roles of another company.
func setMembershipRoles(ctx context.Context, q querier, membershipID, companyID string, roleIDs []string) error {
	if _, err := q.ExecContext(ctx, `delete from membership_roles where membership_id = $1`, membershipID); err != nil {
		return err
	}
	for _, roleID := range roleIDs {
		if _, err := q.ExecContext(ctx, `
			insert into membership_roles (membership_id, role_id, company_id)
			values ($1, $2, $3)
		`, membershipID, roleID, companyID); err != nil {
			return classify(err)
		}
	}
	return nil
}

func (s *Store) CreateMembership(ctx context.Context, m rbac.Membership) (rbac.Membership, error) {
	id := ids.New()
	err := s.atomic(ctx, func(q querier) error {
		if _, err := q.ExecContext(ctx, `
			insert into memberships (id, user_id, company_id)
			values ($1, $2, $3)
		`, id, m.UserID, m.CompanyID); err != nil {
			return classify(err)
		}
		return setMembershipRoles(ctx, q, id, m.CompanyID, m.RoleIDs)
	})
	if err != nil {
		return rbac.Membership{}, err
	}
	return s.GetMembership(ctx, id)
}

func (s *Store) ListMemberships(ctx context.Context, filter rbac.Filter) ([]rbac.Membership, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	out := []rbac.Membership{}
	if filter.None {
		return out, nil
	}
	var w where
	if filter.CompanyID != "" {
		w.eq("m.company_id", filter.CompanyID)
	}
	if filter.UserID != "" {
		w.eq("m.user_id", filter.UserID)
	}
	rows, err := s.q.QueryContext(ctx, membershipSelect+w.sql()+` group by m.id order by m.id`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) GetMembership(ctx context.Context, id string) (rbac.Membership, error) {
	if s.db == nil {
		return rbac.Membership{}, errNoDB
	}
	m, err := scanMembership(s.q.QueryRowContext(ctx, membershipSelect+`where m.id = $1 group by m.id`, id))
	if err != nil {
		return rbac.Membership{}, notFound(err)
	}
	return m, nil
}

func (s *Store) UpdateMembership(ctx context.Context, id string, upd rbac.MembershipUpdate) (rbac.Membership, error) {
	current, err := s.GetMembership(ctx, id)
	if err != nil {
		return rbac.Membership{}, err
	}
	if upd.RoleIDs != nil {
		err := s.atomic(ctx, func(q querier) error {
			return setMembershipRoles(ctx, q, current.ID, current.CompanyID, *upd.RoleIDs)
		})
		if err != nil {
			return rbac.Membership{}, err
		}
	}
	return s.GetMembership(ctx, id)
}

func (s *Store) DeleteMembership(ctx context.Context, id string) error {
	if s.db == nil {
		return errNoDB
	}
	res, err := s.q.ExecContext(ctx, `delete from memberships where id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// PrimaryMembership orders by creation time with the id as tie-breaker.
func (s *Store) PrimaryMembership(ctx context.Context, userID string) (rbac.Membership, error) {
	if s.db == nil {
		return rbac.Membership{}, errNoDB
	}
	m, err := scanMembership(s.q.QueryRowContext(ctx, membershipSelect+`
		where m.user_id = $1
		group by m.id
		order by m.created_at, m.id
		limit 1
	`, userID))
	if err != nil {
		return rbac.Membership{}, notFound(err)
	}
	return m, nil
}

func (s *Store) UserHasPermission(ctx context.Context, userID, codename string) (bool, error) {
	if s.db == nil {
		return false, errNoDB
	}
	var ok bool
	err := s.q.QueryRowContext(ctx, `
		select exists (
			select 1
			from memberships m
			join membership_roles mr on mr.membership_id = m.id
			join role_permissions rp on rp.role_id = mr.role_id
			join permissions p on p.id = rp.permission_id
			where m.user_id = $1 and p.codename = $2
		)
	`, userID, codename).Scan(&ok)
	return ok, err
}

func (s *Store) UserPermissions(ctx context.Context, userID string) ([]string, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.q.QueryContext(ctx, `
		select distinct p.codename
		from memberships m
		join membership_roles mr on mr.membership_id = m.id
		join role_permissions rp on rp.role_id = mr.role_id
		join permissions p on p.id = rp.permission_id
		where m.user_id = $1
		order by p.codename
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	perms := []string{}
	for rows.Next() {
		var codename string
		if err := rows.Scan(&codename); err != nil {
			return nil, err
		}
		perms = append(perms, codename)
	}
	return perms, rows.Err()
}
