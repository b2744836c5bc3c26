package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/dmitrymomot/subcycle/pkg/httpserver"
	"github.com/dmitrymomot/subcycle/pkg/logger"
	"github.com/dmitrymomot/subcycle/pkg/metrics"
	"github.com/dmitrymomot/subcycle/pkg/requestid"
	"github.com/dmitrymomot/subcycle/svc/billing"
	"github.com/dmitrymomot/subcycle/svc/limits"
	"github.com/dmitrymomot/subcycle/svc/plan"
	"github.com/dmitrymomot/subcycle/svc/subscription"
	"github.com/dmitrymomot/subcycle/svc/usage"
)

// Subscriptions is the lifecycle surface used by the handlers.
type Subscriptions interface {
	Get(ctx context.Context, orgID uuid.UUID) (*subscription.Subscription, error)
	StartTrial(ctx context.Context, p subscription.StartTrialParams) (*subscription.Subscription, error)
	Activate(ctx context.Context, p subscription.ActivateParams) (*subscription.Subscription, error)
	UpgradePlan(ctx context.Context, p subscription.UpgradeParams) (*subscription.Subscription, error)
	Cancel(ctx context.Context, p subscription.CancelParams) (*subscription.Subscription, error)
	CountByStatus(ctx context.Context) (map[subscription.Status]int64, error)
}

type Limits interface {
	Validate(ctx context.Context, req limits.ValidateRequest) (limits.Decision, error)
	Enforce(ctx context.Context, req limits.ValidateRequest) (limits.Decision, error)
	Overview(ctx context.Context, orgID uuid.UUID) (limits.Overview, error)
}

type Usage interface {
	RecordUsage(ctx context.Context, orgID uuid.UUID, feature plan.Feature, count int64) (usage.Record, error)
	History(ctx context.Context, subscriptionID uuid.UUID, limit int) ([]usage.Record, error)
	ExceededSince(ctx context.Context, since time.Time) ([]usage.Record, error)
}

type Plans interface {
	List() []plan.Plan
}

type Payments interface {
	Handle(ctx context.Context, ev billing.PaymentEvent) (billing.Result, error)
	History(ctx context.Context, subscriptionID uuid.UUID, limit int) ([]billing.Invoice, error)
}

// Deps are the services behind the router. All service fields are required.
type Deps struct {
	Subscriptions Subscriptions
	Limits        Limits
	Usage         Usage
	Plans         Plans
	Payments      Payments

	// APIKey protects /v1. Empty disables the check.
	APIKey string
	// Checks back the readiness probe on /health.
	Checks []httpserver.Check
	Logger *slog.Logger
	// Now is used for admin time windows; defaults to time.Now.
	Now func() time.Time
}

type handlers struct {
	subs     Subscriptions
	limits   Limits
	usage    Usage
	plans    Plans
	payments Payments
	log      *slog.Logger
	now      func() time.Time
}

// NewRouter builds the HTTP handler. Panics if a service is missing.
func NewRouter(d Deps) http.Handler {
	if d.Subscriptions == nil || d.Limits == nil || d.Usage == nil || d.Plans == nil || d.Payments == nil {
		panic("api: all services are required")
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	log := d.Logger.With(logger.Component("api"))
	h := &handlers{
		subs:     d.Subscriptions,
		limits:   d.Limits,
		usage:    d.Usage,
		plans:    d.Plans,
		payments: d.Payments,
		log:      log,
		now:      d.Now,
	}

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		fail(w, r, log, HTTPError{Status: http.StatusNotFound, Code: "route_not_found", Message: "route not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		fail(w, r, log, HTTPError{Status: http.StatusMethodNotAllowed, Code: "method_not_allowed", Message: "method not allowed"})
	})

	r.Get("/health", httpserver.HealthHandler(log, 2*time.Second, d.Checks...))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(requireAPIKey(d.APIKey, log))
		r.Use(negotiateLanguage)

		r.Get("/plans", h.listPlans)

		r.Post("/subscriptions", h.startTrial)
		r.Route("/subscriptions/{orgID}", func(r chi.Router) {
			r.Get("/", h.getSubscription)
			r.Post("/activate", h.activate)
			r.Post("/upgrade", h.upgrade)
			r.Post("/cancel", h.cancel)
			r.Get("/invoices", h.invoices)
			r.Get("/usage", h.usageHistory)
		})

		r.Post("/limits/validate", h.validateLimit)
		r.Post("/limits/enforce", h.enforceLimit)
		r.Get("/limits/{orgID}", h.limitsOverview)

		r.Post("/usage", h.recordUsage)

		r.Post("/payments/events", h.paymentEvent)

		r.Get("/admin/stats", h.stats)
		r.Get("/admin/usage/exceeded", h.exceeded)
	})

	return r
}
