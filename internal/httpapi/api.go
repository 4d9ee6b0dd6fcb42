package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"crewhub.dev/internal/audit"
	"crewhub.dev/internal/auth"
	"crewhub.dev/internal/deploy"
	"crewhub.dev/internal/employee"
	"crewhub.dev/internal/lifecycle"
	"crewhub.dev/internal/obs"
	"crewhub.dev/internal/stream"
)

const serviceName = "crewhub-api"

type readinessChecker interface {
	Check(ctx context.Context) error
}

// ReadyProbe pings the database when one is configured.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Lifecycle is the employee state machine behind the employee routes.
type Lifecycle interface {
	Register(ctx context.Context, req lifecycle.RegisterRequest) (string, error)
	Get(ctx context.Context, id, actorID string) (employee.Record, error)
	UpdateProfile(ctx context.Context, id, actorID string, patch employee.ProfilePatch) (employee.Record, error)
	Approve(ctx context.Context, id, actorID string) (employee.Record, error)
	Reject(ctx context.Context, id, actorID string) (employee.Record, error)
	Disable(ctx context.Context, id, actorID string) (employee.Record, error)
	Resync(ctx context.Context, id, actorID string) (deploy.Result, error)
}

// Authenticator checks email and password of an enabled account.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*auth.Account, error)
}

// Auditor records security relevant events.
type Auditor interface {
	LogEvent(ctx context.Context, event string, fields map[string]any) error
}

type defaultAuditor struct{}

func (defaultAuditor) LogEvent(ctx context.Context, event string, fields map[string]any) error {
	return audit.LogEvent(ctx, event, fields)
}

// Deps collects the collaborators of the HTTP layer.
type Deps struct {
	Lifecycle Lifecycle
	Accounts  Authenticator
	Tokens    *auth.Tokens
	Audit     Auditor
	Events    *stream.Stream
	Ready     readinessChecker
	Version   string
	TokenTTL  time.Duration

	RateBurst  int
	RatePerSec float64
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	lifecycle  Lifecycle
	accounts   Authenticator
	tokens     *auth.Tokens
	audit      Auditor
	events     *stream.Stream
	ready      readinessChecker
	version    string
	tokenTTL   time.Duration
	rateBurst  int
	ratePerSec float64
}

func New(d Deps) *API {
	a := &API{
		mux:        http.NewServeMux(),
		lifecycle:  d.Lifecycle,
		accounts:   d.Accounts,
		tokens:     d.Tokens,
		audit:      d.Audit,
		events:     d.Events,
		ready:      d.Ready,
		version:    d.Version,
		tokenTTL:   d.TokenTTL,
		rateBurst:  d.RateBurst,
		ratePerSec: d.RatePerSec,
	}
	if a.audit == nil {
		a.audit = defaultAuditor{}
	}
	if a.ready == nil {
		a.ready = ReadyProbe{}
	}
	if a.tokenTTL <= 0 {
		a.tokenTTL = 12 * time.Hour
	}
	if a.rateBurst <= 0 {
		a.rateBurst = 40
	}
	if a.ratePerSec <= 0 {
		a.ratePerSec = 20
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/auth/token", a.handleAuthToken)
	a.mux.HandleFunc("/v1/employees", a.handleEmployees)
	a.mux.HandleFunc("/v1/employees/", a.handleEmployeeScoped)
	a.mux.HandleFunc("/v1/events", a.handleEvents)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "resource not found")
	})
	return a
}

// Handler returns the fully wrapped handler.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.ready.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}
