package rbac

import (
	"context"
	"fmt"

	"erpcore.org/internal/auth"
	"erpcore.org/internal/obs"
)

// Operation identifies a (resource, verb) pair of the public surface.
type Operation string

const (
	OpCompanyList   Operation = "company.list"
	OpCompanyGet    Operation = "company.get"
	OpCompanyCreate Operation = "company.create"
	OpCompanyUpdate Operation = "company.update"
	OpCompanyDelete Operation = "company.delete"

	OpRoleList   Operation = "role.list"
	OpRoleGet    Operation = "role.get"
	OpRoleCreate Operation = "role.create"
	OpRoleUpdate Operation = "role.update"
	OpRoleDelete Operation = "role.delete"

	OpPermissionList Operation = "permission.list"
	OpPermissionGet  Operation = "permission.get"

	OpMembershipList   Operation = "membership.list"
	OpMembershipGet    Operation = "membership.get"
	OpMembershipCreate Operation = "membership.create"
	OpMembershipUpdate Operation = "membership.update"
	OpMembershipDelete Operation = "membership.delete"

	OpUserList   Operation = "user.list"
	OpUserGet    Operation = "user.get"
	OpUserUpdate Operation = "user.update"
	OpUserDelete Operation = "user.delete"

	OpAuditList Operation = "audit.list"
)

// Target carries the object a policy is evaluated against, when it matters.
type Target struct {
	UserID string
}

// Policy decides whether p may perform an operation.
type Policy func(ctx context.Context, ev *Evaluator, p auth.Principal, target Target) (bool, error)

func superuserOnly(_ context.Context, _ *Evaluator, p auth.Principal, _ Target) (bool, error) {
	return p.IsSuperuser, nil
}

func authenticated(_ context.Context, _ *Evaluator, p auth.Principal, _ Target) (bool, error) {
	return p.IsAuthenticated(), nil
}

func requirePermission(codename string) Policy {
	return func(ctx context.Context, ev *Evaluator, p auth.Principal, _ Target) (bool, error) {
		return ev.HasPermission(ctx, p, codename)
	}
}

func anyPermission(codenames ...string) Policy {
	return func(ctx context.Context, ev *Evaluator, p auth.Principal, _ Target) (bool, error) {
		for _, codename := range codenames {
			ok, err := ev.HasPermission(ctx, p, codename)
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil
	}
}

func selfOrPermission(codename string) Policy {
	return func(ctx context.Context, ev *Evaluator, p auth.Principal, target Target) (bool, error) {
		if target.UserID != "" && target.UserID == p.UserID {
			return true, nil
		}
		return ev.HasPermission(ctx, p, codename)
	}
}

var policies = map[Operation]Policy{
	OpCompanyList:   superuserOnly,
	OpCompanyGet:    superuserOnly,
	OpCompanyCreate: superuserOnly,
	OpCompanyUpdate: superuserOnly,
	OpCompanyDelete: superuserOnly,

	OpRoleList:   authenticated,
	OpRoleGet:    authenticated,
	OpRoleCreate: anyPermission(PermRoleManage, PermRoleCreate),
	OpRoleUpdate: requirePermission(PermRoleManage),
	OpRoleDelete: requirePermission(PermRoleManage),

	OpPermissionList: requirePermission(PermPermissionView),
	OpPermissionGet:  requirePermission(PermPermissionView),

	OpMembershipList:   requirePermission(PermUserManageMemberships),
	OpMembershipGet:    requirePermission(PermUserManageMemberships),
	OpMembershipCreate: requirePermission(PermUserManageMemberships),
	OpMembershipUpdate: requirePermission(PermUserManageMemberships),
	OpMembershipDelete: requirePermission(PermUserManageMemberships),

	OpUserList:   authenticated,
	OpUserGet:    authenticated,
	OpUserUpdate: selfOrPermission(PermUserManage),
	OpUserDelete: selfOrPermission(PermUserManage),

	OpAuditList: requirePermission(PermAuditView),
}

// PolicyFor returns the policy registered for op.
func PolicyFor(op Operation) (Policy, bool) {
	p, ok := policies[op]
	return p, ok
}

// Authorize evaluates the policy of op. Unknown operations are denied.
func (e *Evaluator) Authorize(ctx context.Context, op Operation, p auth.Principal, target Target) error {
	if !p.IsAuthenticated() {
		return ErrUnauthenticated
	}
	policy, ok := policies[op]
	if !ok {
		obs.ObserveAuthz(string(op), false)
		return fmt.Errorf("%w: no policy for %s", ErrAuthorizationDenied, op)
	}
	allowed, err := policy(ctx, e, p, target)
	if err != nil {
		return err
	}
	obs.ObserveAuthz(string(op), allowed)
	if !allowed {
		return fmt.Errorf("%w: %s", ErrAuthorizationDenied, op)
	}
	return nil
}
