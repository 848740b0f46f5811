package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"erpcore.org/internal/audit"
	"erpcore.org/internal/auth"
	"erpcore.org/internal/obs"
)

// AuditRecorder is the audit sink used by Service.
type AuditRecorder interface {
	Record(ctx context.Context, actor *auth.Principal, action audit.Action, description string)
	List(ctx context.Context, q audit.Query) ([]audit.Entry, error)
}

type permissionInvalidator interface {
	Invalidate(ctx context.Context) error
}

// LockoutPolicy locks an account for Duration after MaxAttempts consecutive
// failed logins.
type LockoutPolicy struct {
	MaxAttempts int
	Duration    time.Duration
}

// DefaultLockoutPolicy matches the configuration defaults.
var DefaultLockoutPolicy = LockoutPolicy{MaxAttempts: 5, Duration: 15 * time.Minute}

// Service implements the tenant-scoped operation surface. Every operation is
// authorized and scoped before it touches storage.
type Service struct {
	store   Store
	scopes  *ScopeResolver
	eval    *Evaluator
	audit   AuditRecorder
	hasher  auth.PasswordHasher
	cache   permissionInvalidator
	lockout LockoutPolicy
	now     func() time.Time
}

// Option configures Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithLockoutPolicy overrides DefaultLockoutPolicy.
func WithLockoutPolicy(p LockoutPolicy) Option {
	return func(s *Service) {
		if p.MaxAttempts > 0 && p.Duration > 0 {
			s.lockout = p
		}
	}
}

// WithPermissionCache routes permission checks through cache and invalidates
// it after every mutation that can change a user's permissions.
func WithPermissionCache(cache *PermissionCache) Option {
	return func(s *Service) {
		if cache != nil {
			s.eval = NewEvaluator(cache)
			s.cache = cache
		}
	}
}

func NewService(store Store, recorder AuditRecorder, hasher auth.PasswordHasher, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("rbac store is required")
	}
	if recorder == nil {
		return nil, errors.New("audit recorder is required")
	}
	if hasher == nil {
		return nil, errors.New("password hasher is required")
	}
	s := &Service{
		store:   store,
		scopes:  NewScopeResolver(store),
		eval:    NewEvaluator(store),
		audit:   recorder,
		hasher:  hasher,
		lockout: DefaultLockoutPolicy,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Evaluator exposes the permission evaluator used by the service.
func (s *Service) Evaluator() *Evaluator {
	return s.eval
}

// Scopes exposes the scope resolver used by the service.
func (s *Service) Scopes() *ScopeResolver {
	return s.scopes
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		obs.Log(obs.LevelWarn, "permission cache invalidation failed", map[string]any{"error": err})
	}
}

func (s *Service) record(ctx context.Context, p auth.Principal, action audit.Action, format string, args ...any) {
	s.audit.Record(ctx, &p, action, fmt.Sprintf(format, args...))
}

// authorizeScoped runs the operation policy and resolves the caller's scope.
func (s *Service) authorizeScoped(ctx context.Context, op Operation, p auth.Principal, target Target) (Scope, error) {
	if err := s.eval.Authorize(ctx, op, p, target); err != nil {
		return Scope{}, err
	}
	return s.scopes.Resolve(ctx, p)
}

// listScope resolves the caller's scope for a tenant-scoped list. A principal
// without memberships reads an empty set, so the policy only runs once there
// is a company to read from.
func (s *Service) listScope(ctx context.Context, op Operation, p auth.Principal) (Scope, error) {
	scope, err := s.scopes.Resolve(ctx, p)
	if err != nil {
		return Scope{}, err
	}
	if scope.Empty() {
		return scope, nil
	}
	if err := s.eval.Authorize(ctx, op, p, Target{}); err != nil {
		return Scope{}, err
	}
	return scope, nil
}

// authorizeCreate gates a create operation and returns the company it writes
// into. A non-superuser without a company gets ErrNoActiveTenant before the
// policy is consulted.
func (s *Service) authorizeCreate(ctx context.Context, op Operation, p auth.Principal, requested string) (string, error) {
	if !p.IsSuperuser {
		if _, err := s.scopes.RequireTenant(ctx, p); err != nil {
			return "", err
		}
	}
	if err := s.eval.Authorize(ctx, op, p, Target{}); err != nil {
		return "", err
	}
	return s.tenantFor(ctx, p, requested)
}

// tenantFor picks the company a create operation writes into. Non-superusers
// always write into their primary company; superusers may name one.
func (s *Service) tenantFor(ctx context.Context, p auth.Principal, requested string) (string, error) {
	scope, err := s.scopes.Resolve(ctx, p)
	if err != nil {
		return "", err
	}
	if scope.Unrestricted {
		requested = strings.TrimSpace(requested)
		if requested != "" {
			if _, err := s.store.GetCompany(ctx, requested); err != nil {
				if errors.Is(err, ErrNotFound) {
					return "", NewValidationError("company", "company does not exist")
				}
				return "", err
			}
			return requested, nil
		}
		companyID, err := s.scopes.PrimaryCompanyID(ctx, p.UserID)
		if err != nil {
			return "", err
		}
		scope = Scope{CompanyID: companyID}
	}
	if scope.Empty() {
		return "", fmt.Errorf("%w: user %s has no company membership", ErrNoActiveTenant, p.UserID)
	}
	return scope.CompanyID, nil
}

func requireID(field, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", NewValidationError(field, "this field is required")
	}
	return id, nil
}

func requireText(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", NewValidationError(field, "this field may not be blank")
	}
	return value, nil
}
