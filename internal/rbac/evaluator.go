package rbac

import (
	"context"
	"fmt"
	"strings"

	"erpcore.org/internal/auth"
)

// Evaluator answers whether a principal holds a permission codename in any of
// its companies.
type Evaluator struct {
	lookup PermissionLookup
}

func NewEvaluator(lookup PermissionLookup) *Evaluator {
	return &Evaluator{lookup: lookup}
}

// HasPermission is true for superusers, and otherwise iff some membership of
// the principal, in any company, carries a role granting codename.
func (e *Evaluator) HasPermission(ctx context.Context, p auth.Principal, codename string) (bool, error) {
	if !p.IsAuthenticated() {
		return false, nil
	}
	if p.IsSuperuser {
		return true, nil
	}
	codename = strings.TrimSpace(codename)
	if codename == "" {
		return false, nil
	}
	ok, err := e.lookup.UserHasPermission(ctx, p.UserID, codename)
	if err != nil {
		return false, fmt.Errorf("check permission %s: %w", codename, err)
	}
	return ok, nil
}

// Require returns ErrAuthorizationDenied unless HasPermission holds.
func (e *Evaluator) Require(ctx context.Context, p auth.Principal, codename string) error {
	ok, err := e.HasPermission(ctx, p, codename)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: missing permission %s", ErrAuthorizationDenied, codename)
	}
	return nil
}
