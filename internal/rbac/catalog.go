package rbac

import (
	"context"
	"fmt"

	"erpcore.org/internal/auth"
)

// EnsureBuiltins seeds the built-in permission catalog. Existing codenames
// keep their ids.
func (s *Service) EnsureBuiltins(ctx context.Context) error {
	for _, perm := range BuiltinPermissions {
		if _, err := s.store.EnsurePermission(ctx, perm); err != nil {
			return fmt.Errorf("ensure permission %s: %w", perm.Codename, err)
		}
	}
	return nil
}

func (s *Service) ListPermissions(ctx context.Context, p auth.Principal) ([]Permission, error) {
	if err := s.eval.Authorize(ctx, OpPermissionList, p, Target{}); err != nil {
		return nil, err
	}
	return s.store.ListPermissions(ctx)
}

func (s *Service) GetPermission(ctx context.Context, p auth.Principal, id string) (Permission, error) {
	if err := s.eval.Authorize(ctx, OpPermissionGet, p, Target{}); err != nil {
		return Permission{}, err
	}
	id, err := requireID("id", id)
	if err != nil {
		return Permission{}, err
	}
	return s.store.GetPermission(ctx, id)
}
