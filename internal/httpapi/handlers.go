package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"erpcore.org/internal/audit"
	"erpcore.org/internal/auth"
	"erpcore.org/internal/obs"
	"erpcore.org/internal/rbac"
	"erpcore.org/internal/stream"
)

const serviceName = "erpcore-api"

type readinessChecker interface {
	Check(ctx context.Context) error
}

// ReadyProbe reports readiness by pinging the backing store, if any.
type ReadyProbe struct {
	Pinger interface{ Ping(context.Context) error }
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.Pinger == nil {
		return nil
	}
	return rp.Pinger.Ping(ctx)
}

// API is the HTTP layer over rbac.Service.
type API struct {
	router    chi.Router
	svc       *rbac.Service
	tokens    *auth.TokenIssuer
	readiness readinessChecker
	validate  *validator.Validate
	events    *stream.Hub[audit.Entry]
	version   string

	rateBurst  int
	ratePerSec int
}

// Option configures API.
type Option func(*API)

// WithRateLimit sets the per-client token bucket.
func WithRateLimit(burst, perSecond int) Option {
	return func(a *API) {
		if burst > 0 && perSecond > 0 {
			a.rateBurst = burst
			a.ratePerSec = perSecond
		}
	}
}

// New wires the routes.
func New(svc *rbac.Service, tokens *auth.TokenIssuer, rp readinessChecker, version string, opts ...Option) *API {
	if rp == nil {
		rp = ReadyProbe{}
	}
	a := &API{
		svc:        svc,
		tokens:     tokens,
		readiness:  rp,
		validate:   newValidator(),
		version:    version,
		rateBurst:  50,
		ratePerSec: 25,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.router = a.routes()
	return a
}

func (a *API) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(RequestID, LoggingJSON, SecurityHeaders)
	r.Use(func(next http.Handler) http.Handler { return RateLimit(next, a.rateBurst, a.ratePerSec) })
	r.Use(func(next http.Handler) http.Handler { return MaxBodyBytes(next, 1<<20) })

	r.Get("/healthz", a.Healthz)
	r.Get("/readyz", a.Ready)
	r.Get("/v1/info", a.Info)
	r.Handle("/metrics", obs.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(a.withAuth)

		r.Post("/auth/login", a.handleLogin)
		r.Post("/auth/logout", a.handleLogout)
		r.Get("/auth/me", a.handleMe)

		r.Route("/companies", func(r chi.Router) {
			r.Get("/", a.listCompanies)
			r.Post("/", a.createCompany)
			r.Get("/{id}", a.getCompany)
			r.Patch("/{id}", a.updateCompany)
			r.Delete("/{id}", a.deleteCompany)
		})
		r.Route("/roles", func(r chi.Router) {
			r.Get("/", a.listRoles)
			r.Post("/", a.createRole)
			r.Get("/{id}", a.getRole)
			r.Patch("/{id}", a.updateRole)
			r.Delete("/{id}", a.deleteRole)
		})
		r.Route("/permissions", func(r chi.Router) {
			r.Get("/", a.listPermissions)
			r.Get("/{id}", a.getPermission)
		})
		r.Route("/memberships", func(r chi.Router) {
			r.Get("/", a.listMemberships)
			r.Post("/", a.createMembership)
			r.Get("/{id}", a.getMembership)
			r.Patch("/{id}", a.updateMembership)
			r.Delete("/{id}", a.deleteMembership)
		})
		r.Route("/users", func(r chi.Router) {
			r.Post("/register", a.register)
			r.Get("/", a.listUsers)
			r.Get("/{id}", a.getUser)
			r.Patch("/{id}", a.updateUser)
			r.Delete("/{id}", a.deleteUser)
		})
		r.Get("/audit-logs", a.listAuditLogs)
		r.Get("/audit-logs/stream", a.streamAuditLogs)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// Handler returns the instrumented router.
func (a *API) Handler() http.Handler {
	return obs.Instrument(a.router)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readiness.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
