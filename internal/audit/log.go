package audit

import (
	"context"
	"errors"
	"strings"
	"time"

	"erpcore.org/internal/auth"
	"erpcore.org/internal/obs"
)

const defaultListLimit = 100

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the audit request id from context if present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// Logger records audit entries on a best-effort basis.
type Logger struct {
	store     Store
	companies CompanyResolver
	publisher Publisher
	now       func() time.Time
}

// Publisher receives every entry that was stored successfully.
type Publisher interface {
	Publish(Entry)
}

// Option configures Logger.
type Option func(*Logger)

// WithClock overrides the time source.
func WithClock(fn func() time.Time) Option {
	return func(l *Logger) {
		if fn != nil {
			l.now = fn
		}
	}
}

// WithPublisher forwards stored entries to p, e.g. a live stream.
func WithPublisher(p Publisher) Option {
	return func(l *Logger) {
		l.publisher = p
	}
}

// NewLogger builds a Logger. companies may be nil, in which case entries carry
// no company.
func NewLogger(store Store, companies CompanyResolver, opts ...Option) (*Logger, error) {
	if store == nil {
		return nil, errors.New("audit store is required")
	}
	l := &Logger{store: store, companies: companies, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Record appends an entry attributed to actor, which may be nil. It never
// fails: storage errors are logged and counted, and the caller proceeds.
func (l *Logger) Record(ctx context.Context, actor *auth.Principal, action Action, description string) {
	entry := Entry{
		Action:      action,
		Description: description,
		CreatedAt:   l.now().UTC(),
	}
	fields := map[string]any{
		"type":        "audit",
		"action":      string(action),
		"description": description,
	}
	if rid := RequestIDFromContext(ctx); rid != "" {
		fields["request_id"] = rid
	}
	if actor != nil && actor.IsAuthenticated() {
		userID := actor.UserID
		entry.UserID = &userID
		fields["user_id"] = userID
		if companyID := l.companyOf(ctx, userID); companyID != "" {
			entry.CompanyID = &companyID
			fields["company_id"] = companyID
		}
	}

	if !action.Valid() {
		l.fail(fields, errors.New("unknown audit action"))
		return
	}
	stored, err := l.store.AppendAuditLog(ctx, entry)
	if err != nil {
		l.fail(fields, err)
		return
	}
	fields["audit_id"] = stored.ID
	obs.Log(obs.LevelInfo, "audit", fields)
	if l.publisher != nil {
		l.publisher.Publish(stored)
	}
}

func (l *Logger) companyOf(ctx context.Context, userID string) string {
	if l.companies == nil {
		return ""
	}
	companyID, err := l.companies.PrimaryCompanyID(ctx, userID)
	if err != nil {
		obs.Log(obs.LevelWarn, "audit company attribution failed", map[string]any{"user_id": userID, "error": err})
		return ""
	}
	return companyID
}

func (l *Logger) fail(fields map[string]any, err error) {
	obs.ObserveAuditFailure()
	fields["error"] = err
	obs.Log(obs.LevelError, "audit record failed", fields)
}

// List returns entries newest first. A non-positive limit uses the default.
func (l *Logger) List(ctx context.Context, q Query) ([]Entry, error) {
	if q.None {
		return []Entry{}, nil
	}
	if q.Limit <= 0 {
		q.Limit = defaultListLimit
	}
	return l.store.ListAuditLogs(ctx, q)
}
