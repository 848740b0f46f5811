package rbac_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"erpcore.org/internal/audit"
	"erpcore.org/internal/auth"
	"erpcore.org/internal/rbac"
	"erpcore.org/internal/store/memory"
)

func TestRegisterTwiceSameCompany(t *testing.T) {
	f := newFixture(t)
	alice, _ := f.register(t, "alice", "co-a")
	bob, _ := f.register(t, "bob", "co-a")

	companies, err := f.store.ListCompanies(f.ctx)
	require.NoError(t, err)
	require.Len(t, companies, 1)
	require.Equal(t, "co-a", companies[0].Name)

	for _, u := range []rbac.User{alice, bob} {
		m := f.membership(t, u.ID, companies[0].ID)
		require.Empty(t, m.RoleIDs)
	}
	all, _ := f.store.ListMemberships(f.ctx, rbac.Filter{})
	require.Len(t, all, 2)
}

func TestRegisterConcurrentSameCompany(t *testing.T) {
	f := newFixture(t)
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Register(f.ctx, rbac.RegisterInput{
				Username:    "user" + string(rune('a'+i)),
				Email:       "u@example.com",
				Password:    "pw",
				CompanyName: "shared",
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	companies, _ := f.store.ListCompanies(f.ctx)
	require.Len(t, companies, 1)
	users, _ := f.store.ListUsers(f.ctx, rbac.Filter{CompanyID: companies[0].ID})
	require.Len(t, users, 8)
}

func TestRegisterIsAtomic(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "co-a")

	_, err := f.svc.Register(f.ctx, rbac.RegisterInput{
		Username: "alice", Email: "other@example.com", Password: "pw", CompanyName: "co-new",
	})
	var verr *rbac.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "username", verr.Field)
	require.ErrorIs(t, err, rbac.ErrConflict)

	companies, _ := f.store.ListCompanies(f.ctx)
	require.Len(t, companies, 1, "failed registration must not leave a company behind")
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		in    rbac.RegisterInput
		field string
	}{
		{rbac.RegisterInput{Email: "a@example.com", Password: "pw", CompanyName: "c"}, "username"},
		{rbac.RegisterInput{Username: "a", Email: "not-an-email", Password: "pw", CompanyName: "c"}, "email"},
		{rbac.RegisterInput{Username: "a", Email: "a@example.com", CompanyName: "c"}, "password"},
		{rbac.RegisterInput{Username: "a", Email: "a@example.com", Password: "pw", CompanyName: "  "}, "company_name"},
	}
	for _, tc := range cases {
		_, err := f.svc.Register(f.ctx, tc.in)
		var verr *rbac.ValidationError
		require.ErrorAs(t, err, &verr)
		require.Equal(t, tc.field, verr.Field)
	}
	users, _ := f.store.ListUsers(f.ctx, rbac.Filter{})
	require.Len(t, users, 1, "only the superuser exists")
}

func TestRegisterRejectsInactiveCompany(t *testing.T) {
	f := newFixture(t)
	inactive := false
	_, err := f.svc.CreateCompany(f.ctx, f.root, rbac.CompanyInput{Name: "closed", IsActive: &inactive})
	require.NoError(t, err)

	_, err = f.svc.Register(f.ctx, rbac.RegisterInput{Username: "a", Email: "a@example.com", Password: "pw", CompanyName: "closed"})
	require.ErrorIs(t, err, rbac.ErrInvalidInput)
	_, err = f.store.GetUserByUsername(f.ctx, "a")
	require.ErrorIs(t, err, rbac.ErrNotFound)
}

func TestRegisterAuditsCreate(t *testing.T) {
	f := newFixture(t)
	alice, _ := f.register(t, "alice", "co-a")

	entries := f.auditEntries(t)
	require.NotEmpty(t, entries)
	latest := entries[0]
	require.Equal(t, audit.ActionCreate, latest.Action)
	require.Equal(t, "New user account created: alice", latest.Description)
	require.NotNil(t, latest.UserID)
	require.Equal(t, alice.ID, *latest.UserID)
	require.NotNil(t, latest.CompanyID)
	require.Equal(t, f.companyID(t, "co-a"), *latest.CompanyID)
}

func TestRoleCreateDeniedWithoutPermission(t *testing.T) {
	f := newFixture(t)
	_, alice := f.register(t, "alice", "co-a")
	before := len(f.auditEntries(t))

	_, err := f.svc.CreateRole(f.ctx, alice, rbac.RoleInput{Name: "Manager"})
	require.ErrorIs(t, err, rbac.ErrAuthorizationDenied)

	roles, _ := f.store.ListRoles(f.ctx, rbac.Filter{})
	require.Empty(t, roles)
	require.Len(t, f.auditEntries(t), before, "denied attempts are not audited")
}

func TestRoleCreateAssignsCallerCompany(t *testing.T) {
	f := newFixture(t)
	aliceUser, alice := f.register(t, "alice", "co-a")
	f.register(t, "bob", "co-b")
	coA, coB := f.companyID(t, "co-a"), f.companyID(t, "co-b")
	f.grant(t, aliceUser.ID, coA, rbac.PermRoleManage)

	role, err := f.svc.CreateRole(f.ctx, alice, rbac.RoleInput{
		Name:        "Manager",
		Permissions: []string{rbac.PermPermissionView, rbac.PermPermissionView},
		CompanyID:   coB,
	})
	require.NoError(t, err)
	require.Equal(t, coA, role.CompanyID, "company comes from the caller, not the payload")
	require.Equal(t, []string{rbac.PermPermissionView}, role.Permissions)

	entries := f.auditEntries(t)
	require.Equal(t, "Created role: Manager", entries[0].Description)

	_, err = f.svc.CreateRole(f.ctx, alice, rbac.RoleInput{Name: "Manager"})
	var verr *rbac.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "name", verr.Field)
}

func TestSuperuserScopeIsUnscoped(t *testing.T) {
	f := newFixture(t)
	aUser, _ := f.register(t, "alice", "co-a")
	bUser, _ := f.register(t, "bob", "co-b")
	f.grant(t, aUser.ID, f.companyID(t, "co-a"), rbac.PermRoleManage)
	f.grant(t, bUser.ID, f.companyID(t, "co-b"), rbac.PermRoleManage)

	scoped, err := f.svc.ListRoles(f.ctx, f.root)
	require.NoError(t, err)
	all, _ := f.store.ListRoles(f.ctx, rbac.Filter{})
	require.Equal(t, all, scoped)

	scopedM, err := f.svc.ListMemberships(f.ctx, f.root)
	require.NoError(t, err)
	allM, _ := f.store.ListMemberships(f.ctx, rbac.Filter{})
	require.Equal(t, allM, scopedM)

	users, err := f.svc.ListUsers(f.ctx, f.root)
	require.NoError(t, err)
	require.Len(t, users, 3)
}

func TestNonSuperuserSeesOnlyOwnCompany(t *testing.T) {
	f := newFixture(t)
	aUser, alice := f.register(t, "alice", "co-a")
	f.register(t, "bob", "co-b")
	f.register(t, "carol", "co-c")
	coA := f.companyID(t, "co-a")
	f.grant(t, aUser.ID, coA, rbac.PermRoleManage, rbac.PermUserManageMemberships)
	foreign, err := f.svc.CreateRole(f.ctx, f.root, rbac.RoleInput{Name: "Foreign", CompanyID: f.companyID(t, "co-b")})
	require.NoError(t, err)

	roles, err := f.svc.ListRoles(f.ctx, alice)
	require.NoError(t, err)
	require.NotEmpty(t, roles)
	for _, r := range roles {
		require.Equal(t, coA, r.CompanyID)
	}
	members, err := f.svc.ListMemberships(f.ctx, alice)
	require.NoError(t, err)
	require.Len(t, members, 1)
	require.Equal(t, coA, members[0].CompanyID)

	_, err = f.svc.GetRole(f.ctx, alice, foreign.ID)
	require.ErrorIs(t, err, rbac.ErrNotFound)
	_, err = f.svc.GetRole(f.ctx, alice, "01J0000000000000000000000")
	require.ErrorIs(t, err, rbac.ErrNotFound)

	name := "Hijacked"
	_, err = f.svc.UpdateRole(f.ctx, alice, foreign.ID, rbac.RoleUpdate{Name: &name})
	require.ErrorIs(t, err, rbac.ErrNotFound)
	require.ErrorIs(t, f.svc.DeleteRole(f.ctx, alice, foreign.ID), rbac.ErrNotFound)
	still, err := f.store.GetRole(f.ctx, foreign.ID)
	require.NoError(t, err)
	require.Equal(t, "Foreign", still.Name)

	bobMembership := f.membership(t, f.userID(t, "bob"), f.companyID(t, "co-b"))
	_, err = f.svc.GetMembership(f.ctx, alice, bobMembership.ID)
	require.ErrorIs(t, err, rbac.ErrNotFound)
	require.ErrorIs(t, f.svc.DeleteMembership(f.ctx, alice, bobMembership.ID), rbac.ErrNotFound)

	users, err := f.svc.ListUsers(f.ctx, alice)
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, aUser.ID, users[0].ID)
	_, err = f.svc.GetUser(f.ctx, alice, f.userID(t, "bob"))
	require.ErrorIs(t, err, rbac.ErrNotFound)
}

func (f *fixture) userID(t *testing.T, username string) string {
	t.Helper()
	u, err := f.store.GetUserByUsername(f.ctx, username)
	require.NoError(t, err)
	return u.ID
}

func TestZeroMembershipPrincipal(t *testing.T) {
	f := newFixture(t)
	lonerUser, loner := f.register(t, "loner", "co-a")
	m := f.membership(t, lonerUser.ID, f.companyID(t, "co-a"))
	require.NoError(t, f.svc.DeleteMembership(f.ctx, f.root, m.ID))

	roles, err := f.svc.ListRoles(f.ctx, loner)
	require.NoError(t, err)
	require.Empty(t, roles)
	users, err := f.svc.ListUsers(f.ctx, loner)
	require.NoError(t, err)
	require.Empty(t, users)

	memberships, err := f.svc.ListMemberships(f.ctx, loner)
	require.NoError(t, err)
	require.Empty(t, memberships)
	logs, err := f.svc.ListAuditLogs(f.ctx, loner, 0)
	require.NoError(t, err)
	require.Empty(t, logs)

	before := len(f.auditEntries(t))
	_, err = f.svc.CreateRole(f.ctx, loner, rbac.RoleInput{Name: "X"})
	require.ErrorIs(t, err, rbac.ErrNoActiveTenant)
	_, err = f.svc.CreateMembership(f.ctx, loner, rbac.MembershipInput{UserID: lonerUser.ID})
	require.ErrorIs(t, err, rbac.ErrNoActiveTenant)
	require.Len(t, f.auditEntries(t), before, "rejected creates are not audited")

	_, err = f.svc.CreateRole(f.ctx, f.root, rbac.RoleInput{Name: "Orphan"})
	require.ErrorIs(t, err, rbac.ErrNoActiveTenant, "a superuser without membership must name a company")

	self, err := f.svc.GetUser(f.ctx, loner, lonerUser.ID)
	require.NoError(t, err)
	require.Equal(t, "loner", self.Username)
}

func TestMembershipRolesMustShareCompany(t *testing.T) {
	f := newFixture(t)
	aUser, alice := f.register(t, "alice", "co-a")
	bob, _ := f.register(t, "bob", "co-b")
	coA, coB := f.companyID(t, "co-a"), f.companyID(t, "co-b")
	f.grant(t, aUser.ID, coA, rbac.PermUserManageMemberships)
	foreign, err := f.svc.CreateRole(f.ctx, f.root, rbac.RoleInput{Name: "Foreign", CompanyID: coB})
	require.NoError(t, err)
	before, _ := f.store.ListMemberships(f.ctx, rbac.Filter{})

	_, err = f.svc.CreateMembership(f.ctx, alice, rbac.MembershipInput{UserID: bob.ID, RoleIDs: []string{foreign.ID}})
	var verr *rbac.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "roles", verr.Field)
	require.Equal(t, rbac.CrossTenantRolesMessage, verr.Message)

	after, _ := f.store.ListMemberships(f.ctx, rbac.Filter{})
	require.Equal(t, len(before), len(after))

	m, err := f.svc.CreateMembership(f.ctx, alice, rbac.MembershipInput{UserID: bob.ID})
	require.NoError(t, err)
	require.Equal(t, coA, m.CompanyID)

	roles := []string{foreign.ID}
	_, err = f.svc.UpdateMembership(f.ctx, alice, m.ID, rbac.MembershipUpdate{RoleIDs: &roles})
	require.ErrorAs(t, err, &verr)
	require.Equal(t, rbac.CrossTenantRolesMessage, verr.Message)

	_, err = f.svc.CreateMembership(f.ctx, alice, rbac.MembershipInput{UserID: bob.ID})
	require.ErrorIs(t, err, rbac.ErrConflict)

	for _, mm := range after {
		for _, rid := range mm.RoleIDs {
			r, err := f.store.GetRole(f.ctx, rid)
			require.NoError(t, err)
			require.Equal(t, mm.CompanyID, r.CompanyID)
		}
	}
}

func TestHasPermissionIsCrossTenant(t *testing.T) {
	f := newFixture(t)
	aUser, alice := f.register(t, "alice", "co-a")
	f.register(t, "bob", "co-b")
	coA, coB := f.companyID(t, "co-a"), f.companyID(t, "co-b")
	_, err := f.svc.CreateMembership(f.ctx, f.root, rbac.MembershipInput{UserID: aUser.ID, CompanyID: coB})
	require.NoError(t, err)
	f.grant(t, aUser.ID, coB, rbac.PermRoleManage)

	ok, err := f.svc.Evaluator().HasPermission(f.ctx, alice, rbac.PermRoleManage)
	require.NoError(t, err)
	require.True(t, ok, "permission held in co-b counts")
	ok, err = f.svc.Evaluator().HasPermission(f.ctx, alice, rbac.PermAuditView)
	require.NoError(t, err)
	require.False(t, ok)

	role, err := f.svc.CreateRole(f.ctx, alice, rbac.RoleInput{Name: "Scoped"})
	require.NoError(t, err)
	require.Equal(t, coA, role.CompanyID, "the noun stays in the primary company")
}

func TestEvaluatorBasics(t *testing.T) {
	f := newFixture(t)
	ev := f.svc.Evaluator()

	ok, err := ev.HasPermission(f.ctx, auth.Anonymous(), rbac.PermRoleManage)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = ev.HasPermission(f.ctx, f.root, "anything.at.all")
	require.NoError(t, err)
	require.True(t, ok)

	_, alice := f.register(t, "alice", "co-a")
	require.ErrorIs(t, ev.Require(f.ctx, alice, rbac.PermRoleManage), rbac.ErrAuthorizationDenied)
	require.ErrorIs(t, ev.Authorize(f.ctx, rbac.OpRoleList, auth.Anonymous(), rbac.Target{}), rbac.ErrUnauthenticated)
	require.ErrorIs(t, ev.Authorize(f.ctx, rbac.Operation("bogus"), alice, rbac.Target{}), rbac.ErrAuthorizationDenied)
}

func TestDeleteUserKeepsAuditRows(t *testing.T) {
	f := newFixture(t)
	alice, _ := f.register(t, "alice", "co-a")

	require.NoError(t, f.svc.DeleteUser(f.ctx, f.root, alice.ID))

	var found bool
	for _, e := range f.auditEntries(t) {
		if e.Description == "New user account created: alice" {
			found = true
			require.Nil(t, e.UserID)
		}
	}
	require.True(t, found, "audit row must survive user deletion")
	_, err := f.store.GetUser(f.ctx, alice.ID)
	require.ErrorIs(t, err, rbac.ErrNotFound)
}

type failingDeleteStore struct {
	*memory.Store
}

func (failingDeleteStore) DeleteUser(context.Context, string) error {
	return errors.New("disk full")
}

func TestDeleteUserAuditsOnlyAfterDelete(t *testing.T) {
	f := newFixture(t)
	alice, _ := f.register(t, "alice", "co-a")
	logger, err := audit.NewLogger(f.store, rbac.NewScopeResolver(f.store))
	require.NoError(t, err)
	svc, err := rbac.NewService(failingDeleteStore{f.store}, logger, auth.NewBcryptHasher(bcrypt.MinCost))
	require.NoError(t, err)

	before := len(f.auditEntries(t))
	require.Error(t, svc.DeleteUser(f.ctx, f.root, alice.ID))
	require.Len(t, f.auditEntries(t), before, "a failed delete leaves no audit entry")

	require.NoError(t, f.svc.DeleteUser(f.ctx, f.root, alice.ID))
	latest := f.auditEntries(t)[0]
	require.Equal(t, audit.ActionDelete, latest.Action)
	require.Equal(t, "Deleted user: alice", latest.Description)
	require.NotNil(t, latest.UserID)
	require.Equal(t, f.root.UserID, *latest.UserID)
}

func TestSelfDeleteIsAuditedWithoutActor(t *testing.T) {
	f := newFixture(t)
	bobUser, bob := f.register(t, "bob", "co-a")

	require.NoError(t, f.svc.DeleteUser(f.ctx, bob, bobUser.ID))
	latest := f.auditEntries(t)[0]
	require.Equal(t, audit.ActionDelete, latest.Action)
	require.Equal(t, "Deleted user: bob", latest.Description)
	require.Nil(t, latest.UserID)
	require.Nil(t, latest.CompanyID)
}

func TestRoleCreatePermissionAllowsCreateOnly(t *testing.T) {
	f := newFixture(t)
	aUser, alice := f.register(t, "alice", "co-a")
	f.grant(t, aUser.ID, f.companyID(t, "co-a"), rbac.PermRoleCreate)

	role, err := f.svc.CreateRole(f.ctx, alice, rbac.RoleInput{Name: "Clerk"})
	require.NoError(t, err)
	desc := "front desk"
	_, err = f.svc.UpdateRole(f.ctx, alice, role.ID, rbac.RoleUpdate{Description: &desc})
	require.ErrorIs(t, err, rbac.ErrAuthorizationDenied)
	require.ErrorIs(t, f.svc.DeleteRole(f.ctx, alice, role.ID), rbac.ErrAuthorizationDenied)
}

func TestDeleteCompanyCascades(t *testing.T) {
	f := newFixture(t)
	aUser, _ := f.register(t, "alice", "co-a")
	coA := f.companyID(t, "co-a")
	f.grant(t, aUser.ID, coA, rbac.PermRoleManage)

	require.NoError(t, f.svc.DeleteCompany(f.ctx, f.root, coA))

	roles, _ := f.store.ListRoles(f.ctx, rbac.Filter{})
	require.Empty(t, roles)
	members, _ := f.store.ListMemberships(f.ctx, rbac.Filter{})
	require.Empty(t, members)
	var sawRegistration bool
	for _, e := range f.auditEntries(t) {
		if e.Description == "New user account created: alice" {
			sawRegistration = true
			require.Nil(t, e.CompanyID)
			require.NotNil(t, e.UserID)
		}
	}
	require.True(t, sawRegistration)
}

func TestCompanyOperationsAreSuperuserOnly(t *testing.T) {
	f := newFixture(t)
	_, alice := f.register(t, "alice", "co-a")

	_, err := f.svc.ListCompanies(f.ctx, alice)
	require.ErrorIs(t, err, rbac.ErrAuthorizationDenied)
	_, err = f.svc.CreateCompany(f.ctx, alice, rbac.CompanyInput{Name: "x"})
	require.ErrorIs(t, err, rbac.ErrAuthorizationDenied)

	co, err := f.svc.CreateCompany(f.ctx, f.root, rbac.CompanyInput{Name: "x"})
	require.NoError(t, err)
	require.True(t, co.IsActive)
	inactive := false
	co, err = f.svc.UpdateCompany(f.ctx, f.root, co.ID, rbac.CompanyUpdate{IsActive: &inactive})
	require.NoError(t, err)
	require.False(t, co.IsActive)
	got, err := f.svc.GetCompany(f.ctx, f.root, co.ID)
	require.NoError(t, err)
	require.Equal(t, co, got)
}

func TestUserUpdatePolicy(t *testing.T) {
	f := newFixture(t)
	aUser, alice := f.register(t, "alice", "co-a")
	bob, _ := f.register(t, "bob", "co-a")
	coA := f.companyID(t, "co-a")

	email := "alice@corp.example.com"
	updated, err := f.svc.UpdateUser(f.ctx, alice, aUser.ID, rbac.UserUpdate{Email: &email})
	require.NoError(t, err)
	require.Equal(t, email, updated.Email)

	inactive := false
	_, err = f.svc.UpdateUser(f.ctx, alice, aUser.ID, rbac.UserUpdate{IsActive: &inactive})
	require.ErrorIs(t, err, rbac.ErrAuthorizationDenied)

	_, err = f.svc.UpdateUser(f.ctx, alice, bob.ID, rbac.UserUpdate{Email: &email})
	require.ErrorIs(t, err, rbac.ErrAuthorizationDenied)

	f.grant(t, aUser.ID, coA, rbac.PermUserManage)
	taken := "alice"
	_, err = f.svc.UpdateUser(f.ctx, alice, bob.ID, rbac.UserUpdate{Username: &taken})
	require.ErrorIs(t, err, rbac.ErrConflict)
	got, err := f.svc.UpdateUser(f.ctx, alice, bob.ID, rbac.UserUpdate{IsActive: &inactive})
	require.NoError(t, err)
	require.False(t, got.IsActive)

	entries := f.auditEntries(t)
	require.Equal(t, audit.ActionUpdate, entries[0].Action)
	require.Equal(t, "Updated user profile for bob", entries[0].Description)
}

func TestUniformAuditCoverage(t *testing.T) {
	f := newFixture(t)
	aUser, alice := f.register(t, "alice", "co-a")
	bob, _ := f.register(t, "bob", "co-b")
	coA := f.companyID(t, "co-a")
	f.grant(t, aUser.ID, coA, rbac.PermRoleManage, rbac.PermUserManageMemberships)

	role, err := f.svc.CreateRole(f.ctx, alice, rbac.RoleInput{Name: "Clerk"})
	require.NoError(t, err)
	desc := "front desk"
	_, err = f.svc.UpdateRole(f.ctx, alice, role.ID, rbac.RoleUpdate{Description: &desc})
	require.NoError(t, err)
	m, err := f.svc.CreateMembership(f.ctx, alice, rbac.MembershipInput{UserID: bob.ID, RoleIDs: []string{role.ID}})
	require.NoError(t, err)
	none := []string{}
	_, err = f.svc.UpdateMembership(f.ctx, alice, m.ID, rbac.MembershipUpdate{RoleIDs: &none})
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteMembership(f.ctx, alice, m.ID))
	require.NoError(t, f.svc.DeleteRole(f.ctx, alice, role.ID))

	var got []audit.Action
	for _, e := range f.auditEntries(t)[:6] {
		require.NotNil(t, e.UserID)
		require.Equal(t, aUser.ID, *e.UserID)
		require.Equal(t, coA, *e.CompanyID)
		got = append(got, e.Action)
	}
	require.Equal(t, []audit.Action{
		audit.ActionDelete, audit.ActionDelete, audit.ActionUpdate,
		audit.ActionCreate, audit.ActionUpdate, audit.ActionCreate,
	}, got)
}

func TestAuditListIsScoped(t *testing.T) {
	f := newFixture(t)
	aUser, alice := f.register(t, "alice", "co-a")
	f.register(t, "bob", "co-b")
	coA := f.companyID(t, "co-a")

	_, err := f.svc.ListAuditLogs(f.ctx, alice, 0)
	require.ErrorIs(t, err, rbac.ErrAuthorizationDenied)

	f.grant(t, aUser.ID, coA, rbac.PermAuditView)
	entries, err := f.svc.ListAuditLogs(f.ctx, alice, 0)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	for _, e := range entries {
		require.NotNil(t, e.CompanyID)
		require.Equal(t, coA, *e.CompanyID)
	}

	all, err := f.svc.ListAuditLogs(f.ctx, f.root, 2)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

type failingAudit struct{}

func (failingAudit) AppendAuditLog(context.Context, audit.Entry) (audit.Entry, error) {
	return audit.Entry{}, errors.New("audit storage unavailable")
}

func (failingAudit) ListAuditLogs(context.Context, audit.Query) ([]audit.Entry, error) {
	return nil, errors.New("audit storage unavailable")
}

func TestAuditFailureDoesNotAbortOperation(t *testing.T) {
	store := memory.New()
	logger, err := audit.NewLogger(failingAudit{}, rbac.NewScopeResolver(store))
	require.NoError(t, err)
	svc, err := rbac.NewService(store, logger, auth.NewBcryptHasher(bcrypt.MinCost))
	require.NoError(t, err)

	u, err := svc.Register(context.Background(), rbac.RegisterInput{
		Username: "alice", Email: "alice@example.com", Password: "pw", CompanyName: "co-a",
	})
	require.NoError(t, err)
	require.NotEmpty(t, u.ID)
}
