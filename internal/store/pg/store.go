package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"erpcore.org/internal/audit"
	"erpcore.org/internal/rbac"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

var (
	_ rbac.Store  = (*Store)(nil)
	_ audit.Store = (*Store)(nil)
)

var errNoDB = errors.New("database connection unavailable")

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements rbac.Store and audit.Store on PostgreSQL.
type Store struct {
	db   *sql.DB
	q    querier
	inTx bool
}

// Open connects through the pgx stdlib driver.
func Open(dsn string, maxOpenConns int) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if maxOpenConns <= 0 {
		maxOpenConns = 50
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxOpenConns / 2)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return New(db), nil
}

// New wraps an existing handle.
func New(db *sql.DB) *Store {
	return &Store{db: db, q: db}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Ping reports whether the database answers.
func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return errNoDB
	}
	return s.db.PingContext(ctx)
}

// WithinTx runs fn inside a single database transaction. Nested calls join
// the outer transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(rbac.Store) error) error {
	if s.db == nil {
		return errNoDB
	}
	if s.inTx {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&Store{db: s.db, q: tx, inTx: true}); err != nil {
		return err
	}
	return tx.Commit()
}

// atomic runs a multi-statement write in a transaction unless one is
// already open.
func (s *Store) atomic(ctx context.Context, fn func(q querier) error) error {
	if s.db == nil {
		return errNoDB
	}
	if s.inTx {
		return fn(s.q)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

type fieldError struct {
	field   string
	message string
}

var uniqueConstraints = map[string]fieldError{
	"companies_name_key":           {"name", "company with this name already exists"},
	"roles_company_name_key":       {"name", "role with this name already exists in the company"},
	"users_username_key":           {"username", "a user with that username already exists"},
	"memberships_user_company_key": {"user", "user already has a membership in this company"},
	"permissions_codename_key":     {"codename", "permission with this codename already exists"},
}

var foreignKeyConstraints = map[string]fieldError{
	"roles_company_id_fkey":            {"company", "company does not exist"},
	"memberships_user_id_fkey":         {"user", "user does not exist"},
	"memberships_company_id_fkey":      {"company", "company does not exist"},
	"membership_roles_role_fkey":       {"roles", rbac.CrossTenantRolesMessage},
	"role_permissions_permission_fkey": {"permissions", "unknown permission"},
}

// classify maps constraint violations onto rbac validation errors naming the
// offending field.
func classify(err error) error {
	pgErr, ok := maybePgError(err)
	if !ok {
		return err
	}
	switch pgErr.Code {
	case pgErrUniqueViolation:
		if fe, ok := uniqueConstraints[pgErr.ConstraintName]; ok {
			return rbac.NewConflictError(fe.field, fe.message)
		}
		return fmt.Errorf("%w: %s", rbac.ErrConflict, pgErr.ConstraintName)
	case pgErrForeignKeyViolation:
		if fe, ok := foreignKeyConstraints[pgErr.ConstraintName]; ok {
			return rbac.NewValidationError(fe.field, fe.message)
		}
		return fmt.Errorf("%w: %s", rbac.ErrInvalidInput, pgErr.ConstraintName)
	}
	return err
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return rbac.ErrNotFound
	}
	return err
}

func expectAffected(res sql.Result) error {
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return rbac.ErrNotFound
	}
	return nil
}

func splitList(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}

// where builds a conjunction of column = $n clauses.
type where struct {
	clauses []string
	args    []any
}

func (w *where) eq(column string, value any) {
	w.args = append(w.args, value)
	w.clauses = append(w.clauses, fmt.Sprintf("%s = $%d", column, len(w.args)))
}

func (w *where) sql() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return "where " + strings.Join(w.clauses, " and ")
}
