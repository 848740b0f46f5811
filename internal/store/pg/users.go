package pg

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"erpcore.org/internal/ids"
	"erpcore.org/internal/rbac"
)

const userColumns = `id, username, email, password_hash, failed_login_attempts, lockout_until, is_active, is_superuser, date_joined`

func scanUser(row interface{ Scan(...any) error }) (rbac.User, error) {
	var (
		u       rbac.User
		lockout sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FailedLoginAttempts,
		&lockout, &u.IsActive, &u.IsSuperuser, &u.DateJoined)
	if err != nil {
		return rbac.User{}, err
	}
	if lockout.Valid {
		t := lockout.Time.UTC()
		u.LockoutUntil = &t
	}
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, user rbac.User) (rbac.User, error) {
	if s.db == nil {
		return rbac.User{}, errNoDB
	}
	joined := user.DateJoined
	if joined.IsZero() {
		joined = time.Now().UTC()
	}
	u, err := scanUser(s.q.QueryRowContext(ctx, `
		insert into users (id, username, email, password_hash, is_active, is_superuser, date_joined)
		values ($1, $2, $3, $4, $5, $6, $7)
		returning `+userColumns,
		ids.New(), user.Username, user.Email, user.PasswordHash, user.IsActive, user.IsSuperuser, joined))
	if err != nil {
		return rbac.User{}, classify(err)
	}
	return u, nil
}

// ListUsers treats filter.CompanyID as "members of that company".
func (s *Store) ListUsers(ctx context.Context, filter rbac.Filter) ([]rbac.User, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	out := []rbac.User{}
	if filter.None {
		return out, nil
	}
	var (
		clauses []string
		args    []any
	)
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		clauses = append(clauses, fmt.Sprintf("id = $%d", len(args)))
	}
	if filter.CompanyID != "" {
		args = append(args, filter.CompanyID)
		clauses = append(clauses, fmt.Sprintf(
			"exists (select 1 from memberships m where m.user_id = users.id and m.company_id = $%d)", len(args)))
	}
	query := `select ` + userColumns + ` from users`
	if len(clauses) > 0 {
		query += ` where ` + strings.Join(clauses, " and ")
	}
	rows, err := s.q.QueryContext(ctx, query+` order by id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) GetUser(ctx context.Context, id string) (rbac.User, error) {
	if s.db == nil {
		return rbac.User{}, errNoDB
	}
	u, err := scanUser(s.q.QueryRowContext(ctx, `select `+userColumns+` from users where id = $1`, id))
	if err != nil {
		return rbac.User{}, notFound(err)
	}
	return u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (rbac.User, error) {
	if s.db == nil {
		return rbac.User{}, errNoDB
	}
	u, err := scanUser(s.q.QueryRowContext(ctx, `select `+userColumns+` from users where username = $1`, username))
	if err != nil {
		return rbac.User{}, notFound(err)
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, id string, upd rbac.UserRecordUpdate) (rbac.User, error) {
	if s.db == nil {
		return rbac.User{}, errNoDB
	}
	var (
		sets []string
		args []any
		idx  = 1
	)
	add := func(column string, value any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, idx))
		args = append(args, value)
		idx++
	}
	if upd.Username != nil {
		add("username", *upd.Username)
	}
	if upd.Email != nil {
		add("email", *upd.Email)
	}
	if upd.PasswordHash != nil {
		add("password_hash", *upd.PasswordHash)
	}
	if upd.IsActive != nil {
		add("is_active", *upd.IsActive)
	}
	if len(sets) == 0 {
		return s.GetUser(ctx, id)
	}
	query := fmt.Sprintf(`update users set %s where id = $%d returning %s`, strings.Join(sets, ", "), idx, userColumns)
	args = append(args, id)
	u, err := scanUser(s.q.QueryRowContext(ctx, query, args...))
	if err != nil {
		return rbac.User{}, classify(notFound(err))
	}
	return u, nil
}

// DeleteUser cascades to memberships; audit references become null.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	if s.db == nil {
		return errNoDB
	}
	res, err := s.q.ExecContext(ctx, `delete from users where id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// RecordLoginFailure increments the counter in a single statement so
// concurrent failures are never lost.
func (s *Store) RecordLoginFailure(ctx context.Context, id string, threshold int, lockoutUntil time.Time) (rbac.User, error) {
	if s.db == nil {
		return rbac.User{}, errNoDB
	}
	u, err := scanUser(s.q.QueryRowContext(ctx, `
		update users set
			failed_login_attempts = failed_login_attempts + 1,
			lockout_until = case
				when $2::int > 0 and failed_login_attempts + 1 >= $2::int then $3
				else lockout_until
			end
		where id = $1
		returning `+userColumns, id, threshold, lockoutUntil.UTC()))
	if err != nil {
		return rbac.User{}, notFound(err)
	}
	return u, nil
}

func (s *Store) ResetLoginFailures(ctx context.Context, id string) error {
	if s.db == nil {
		return errNoDB
	}
	res, err := s.q.ExecContext(ctx, `
		update users set failed_login_attempts = 0, lockout_until = null where id = $1
	`, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}
