package rbac_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"erpcore.org/internal/audit"
	"erpcore.org/internal/auth"
	"erpcore.org/internal/rbac"
	"erpcore.org/internal/store/memory"
)

type fixture struct {
	ctx   context.Context
	store *memory.Store
	svc   *rbac.Service
	root  auth.Principal
	now   time.Time
}

func newFixture(t *testing.T, opts ...rbac.Option) *fixture {
	t.Helper()
	f := &fixture{
		ctx:   context.Background(),
		store: memory.New(),
		now:   time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	logger, err := audit.NewLogger(f.store, rbac.NewScopeResolver(f.store))
	require.NoError(t, err)
	opts = append([]rbac.Option{rbac.WithClock(func() time.Time { return f.now })}, opts...)
	f.svc, err = rbac.NewService(f.store, logger, auth.NewBcryptHasher(bcrypt.MinCost), opts...)
	require.NoError(t, err)
	require.NoError(t, f.svc.EnsureBuiltins(f.ctx))

	root, err := f.svc.CreateSuperuser(f.ctx, "root", "root@example.com", "root-pass")
	require.NoError(t, err)
	f.root = principalOf(root)
	return f
}

func principalOf(u rbac.User) auth.Principal {
	return auth.NewPrincipal(u.ID, u.Username, u.IsSuperuser)
}

func (f *fixture) register(t *testing.T, username, company string) (rbac.User, auth.Principal) {
	t.Helper()
	u, err := f.svc.Register(f.ctx, rbac.RegisterInput{
		Username:    username,
		Email:       username + "@example.com",
		Password:    "pw-" + username,
		CompanyName: company,
	})
	require.NoError(t, err)
	return u, principalOf(u)
}

func (f *fixture) companyID(t *testing.T, name string) string {
	t.Helper()
	companies, err := f.store.ListCompanies(f.ctx)
	require.NoError(t, err)
	for _, c := range companies {
		if c.Name == name {
			return c.ID
		}
	}
	t.Fatalf("company %q not found", name)
	return ""
}

func (f *fixture) membership(t *testing.T, userID, companyID string) rbac.Membership {
	t.Helper()
	ms, err := f.store.ListMemberships(f.ctx, rbac.Filter{UserID: userID, CompanyID: companyID})
	require.NoError(t, err)
	require.Len(t, ms, 1)
	return ms[0]
}

// grant gives userID a fresh role in companyID carrying codenames.
func (f *fixture) grant(t *testing.T, userID, companyID string, codenames ...string) rbac.Role {
	t.Helper()
	role, err := f.svc.CreateRole(f.ctx, f.root, rbac.RoleInput{
		Name:        "grant-" + strings.Join(codenames, "+") + "-" + userID,
		Permissions: codenames,
		CompanyID:   companyID,
	})
	require.NoError(t, err)
	m := f.membership(t, userID, companyID)
	roles := append(m.RoleIDs, role.ID)
	_, err = f.svc.UpdateMembership(f.ctx, f.root, m.ID, rbac.MembershipUpdate{RoleIDs: &roles})
	require.NoError(t, err)
	return role
}

func (f *fixture) auditEntries(t *testing.T) []audit.Entry {
	t.Helper()
	entries, err := f.store.ListAuditLogs(f.ctx, audit.Query{})
	require.NoError(t, err)
	return entries
}
