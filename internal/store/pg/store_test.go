package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"erpcore.org/internal/audit"
	"erpcore.org/internal/rbac"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(db), mock
}

func expectMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

var (
	companyCols    = []string{"id", "name", "is_active", "created_at"}
	userCols       = []string{"id", "username", "email", "password_hash", "failed_login_attempts", "lockout_until", "is_active", "is_superuser", "date_joined"}
	membershipCols = []string{"id", "user_id", "company_id", "created_at", "roles"}
	roleCols       = []string{"id", "company_id", "name", "description", "created_at", "updated_at", "permissions"}
)

func TestCreateCompanyDuplicateNameIsConflict(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery("insert into companies").
		WithArgs(sqlmock.AnyArg(), "Acme", true).
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation, ConstraintName: "companies_name_key"})

	_, err := s.CreateCompany(context.Background(), "Acme", true)
	if !errors.Is(err, rbac.ErrConflict) || !errors.Is(err, rbac.ErrInvalidInput) {
		t.Fatalf("expected conflict validation error, got %v", err)
	}
	var ve *rbac.ValidationError
	if !errors.As(err, &ve) || ve.Field != "name" {
		t.Fatalf("expected name field error, got %v", err)
	}
	expectMet(t, mock)
}

func TestGetOrCreateCompanyReadsExistingRow(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery("insert into companies").
		WithArgs(sqlmock.AnyArg(), "Acme").
		WillReturnRows(sqlmock.NewRows(companyCols))
	mock.ExpectQuery("select id, name, is_active, created_at from companies where name").
		WithArgs("Acme").
		WillReturnRows(sqlmock.NewRows(companyCols).AddRow("c1", "Acme", true, now))

	c, created, err := s.GetOrCreateCompany(context.Background(), "Acme")
	if err != nil {
		t.Fatalf("GetOrCreateCompany: %v", err)
	}
	if created {
		t.Fatalf("expected existing company to be reused")
	}
	if c.ID != "c1" || c.Name != "Acme" {
		t.Fatalf("unexpected company: %+v", c)
	}
	expectMet(t, mock)
}

func TestGetCompanyMissingIsNotFound(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery("from companies where id").
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(companyCols))

	if _, err := s.GetCompany(context.Background(), "nope"); !errors.Is(err, rbac.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	expectMet(t, mock)
}

func TestListRolesScopedByCompany(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery("from roles r").
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows(roleCols).
			AddRow("r1", "c1", "Admin", "", now, now, "role.create,role.manage").
			AddRow("r2", "c1", "Viewer", "", now, now, ""))

	roles, err := s.ListRoles(context.Background(), rbac.Filter{CompanyID: "c1"})
	if err != nil {
		t.Fatalf("ListRoles: %v", err)
	}
	if len(roles) != 2 {
		t.Fatalf("expected 2 roles, got %d", len(roles))
	}
	if got := roles[0].Permissions; len(got) != 2 || got[0] != "role.create" || got[1] != "role.manage" {
		t.Fatalf("unexpected permissions: %v", got)
	}
	if roles[1].Permissions == nil || len(roles[1].Permissions) != 0 {
		t.Fatalf("expected empty permission list, got %v", roles[1].Permissions)
	}
	expectMet(t, mock)
}

func TestListRolesNoneSkipsQuery(t *testing.T) {
	s, mock := newMock(t)
	roles, err := s.ListRoles(context.Background(), rbac.Filter{None: true})
	if err != nil {
		t.Fatalf("ListRoles: %v", err)
	}
	if len(roles) != 0 {
		t.Fatalf("expected no roles, got %d", len(roles))
	}
	expectMet(t, mock)
}

func TestCreateMembershipCrossTenantRoleRollsBack(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("insert into memberships").
		WithArgs(sqlmock.AnyArg(), "u1", "c1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("delete from membership_roles").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("insert into membership_roles").
		WithArgs(sqlmock.AnyArg(), "r-other", "c1").
		WillReturnError(&pgconn.PgError{Code: pgErrForeignKeyViolation, ConstraintName: "membership_roles_role_fkey"})
	mock.ExpectRollback()

	_, err := s.CreateMembership(context.Background(), rbac.Membership{UserID: "u1", CompanyID: "c1", RoleIDs: []string{"r-other"}})
	var ve *rbac.ValidationError
	if !errors.As(err, &ve) || ve.Field != "roles" || ve.Message != rbac.CrossTenantRolesMessage {
		t.Fatalf("expected cross-tenant roles error, got %v", err)
	}
	expectMet(t, mock)
}

func TestPrimaryMembershipOrdersByCreation(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery("order by m.created_at, m.id").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(membershipCols).AddRow("m1", "u1", "c1", now, "r1,r2"))

	m, err := s.PrimaryMembership(context.Background(), "u1")
	if err != nil {
		t.Fatalf("PrimaryMembership: %v", err)
	}
	if m.CompanyID != "c1" || len(m.RoleIDs) != 2 {
		t.Fatalf("unexpected membership: %+v", m)
	}

	mock.ExpectQuery("order by m.created_at, m.id").
		WithArgs("u2").
		WillReturnRows(sqlmock.NewRows(membershipCols))
	if _, err := s.PrimaryMembership(context.Background(), "u2"); !errors.Is(err, rbac.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	expectMet(t, mock)
}

func TestUserPermissionQueries(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery("select exists").
		WithArgs("u1", rbac.PermRoleCreate).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("select distinct p.codename").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"codename"}).AddRow("role.create").AddRow("role.manage"))

	ok, err := s.UserHasPermission(context.Background(), "u1", rbac.PermRoleCreate)
	if err != nil || !ok {
		t.Fatalf("UserHasPermission = %v, %v", ok, err)
	}
	perms, err := s.UserPermissions(context.Background(), "u1")
	if err != nil {
		t.Fatalf("UserPermissions: %v", err)
	}
	if len(perms) != 2 || perms[0] != "role.create" {
		t.Fatalf("unexpected permissions: %v", perms)
	}
	expectMet(t, mock)
}

func TestRecordLoginFailureReturnsLockout(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now().UTC()
	until := now.Add(15 * time.Minute)
	mock.ExpectQuery("update users set").
		WithArgs("u1", 5, until).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow("u1", "alice", "a@example.com", "hash", 5, until, true, false, now))

	u, err := s.RecordLoginFailure(context.Background(), "u1", 5, until)
	if err != nil {
		t.Fatalf("RecordLoginFailure: %v", err)
	}
	if u.FailedLoginAttempts != 5 {
		t.Fatalf("expected 5 attempts, got %d", u.FailedLoginAttempts)
	}
	if u.LockoutUntil == nil || !u.LockoutUntil.Equal(until) {
		t.Fatalf("expected lockout until %v, got %v", until, u.LockoutUntil)
	}
	expectMet(t, mock)
}

func TestDeleteUserMissingIsNotFound(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec("delete from users").
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := s.DeleteUser(context.Background(), "ghost"); !errors.Is(err, rbac.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	expectMet(t, mock)
}

func TestListAuditLogsHandlesNullReferences(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery("from audit_logs").
		WithArgs("c1", 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "company_id", "action", "description", "created_at"}).
			AddRow("a2", nil, "c1", "delete", "Deleted user bob", now).
			AddRow("a1", "u1", "c1", "create", "Created role: Admin", now.Add(-time.Minute)))

	entries, err := s.ListAuditLogs(context.Background(), audit.Query{CompanyID: "c1", Limit: 10})
	if err != nil {
		t.Fatalf("ListAuditLogs: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].UserID != nil {
		t.Fatalf("expected null user reference, got %v", *entries[0].UserID)
	}
	if entries[1].UserID == nil || *entries[1].UserID != "u1" || entries[1].Action != audit.ActionCreate {
		t.Fatalf("unexpected entry: %+v", entries[1])
	}
	expectMet(t, mock)
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	s, mock := newMock(t)
	boom := errors.New("boom")
	mock.ExpectBegin()
	mock.ExpectQuery("insert into companies").
		WillReturnRows(sqlmock.NewRows(companyCols).AddRow("c1", "Acme", true, time.Now().UTC()))
	mock.ExpectRollback()

	err := s.WithinTx(context.Background(), func(tx rbac.Store) error {
		if _, err := tx.CreateCompany(context.Background(), "Acme", true); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	expectMet(t, mock)
}

func TestWithinTxCommits(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("delete from companies").
		WithArgs("c1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.WithinTx(context.Background(), func(tx rbac.Store) error {
		return tx.DeleteCompany(context.Background(), "c1")
	})
	if err != nil {
		t.Fatalf("WithinTx: %v", err)
	}
	expectMet(t, mock)
}
