package orgsync

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/subcycle/pkg/logger"
	"github.com/dmitrymomot/subcycle/pkg/webhook"
	"github.com/dmitrymomot/subcycle/svc/subscription"
)

// StatusPath is the organization-service endpoint receiving status pushes.
const StatusPath = "/api/organizations/subscription-status"

var ErrNotConfigured = errors.New("organization service URL is not configured")

// Syncer pushes an organization's subscription status to the service that
// owns organizations.
type Syncer interface {
	PushStatus(ctx context.Context, orgID uuid.UUID, status subscription.Status, trialEndsAt *time.Time) error
}

// StatusUpdate is the body of a status push.
type StatusUpdate struct {
	OrganizationID     uuid.UUID  `json:"organizationId"`
	SubscriptionStatus string     `json:"subscriptionStatus"`
	TrialEndsAt        *time.Time `json:"trialEndsAt,omitempty"`
}

// Config of the HTTP syncer. An empty BaseURL disables pushes.
type Config struct {
	BaseURL          string        `env:"ORG_SERVICE_URL"`
	Secret           string        `env:"ORG_SERVICE_SECRET"`
	Timeout          time.Duration `env:"ORG_SERVICE_TIMEOUT" envDefault:"5s"`
	MaxRetries       int           `env:"ORG_SERVICE_MAX_RETRIES" envDefault:"2"`
	FailureThreshold int           `env:"ORG_SERVICE_BREAKER_FAILURES" envDefault:"5"`
	RecoveryTimeout  time.Duration `env:"ORG_SERVICE_BREAKER_RECOVERY" envDefault:"30s"`
}

func (c Config) Enabled() bool { return strings.TrimSpace(c.BaseURL) != "" }

// HTTPSyncer sends signed PUT requests through webhook.Sender. A single
// circuit breaker guards the endpoint.
type HTTPSyncer struct {
	sender   *webhook.Sender
	endpoint string
	cfg      Config
	breaker  *webhook.CircuitBreaker
	backoff  webhook.BackoffStrategy
	log      *slog.Logger
}

type Option func(*HTTPSyncer)

func WithLogger(l *slog.Logger) Option {
	return func(s *HTTPSyncer) {
		if l != nil {
			s.log = l
		}
	}
}

func WithBackoff(b webhook.BackoffStrategy) Option {
	return func(s *HTTPSyncer) {
		if b != nil {
			s.backoff = b
		}
	}
}

func NewHTTPSyncer(sender *webhook.Sender, cfg Config, opts ...Option) (*HTTPSyncer, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}
	if sender == nil {
		sender = webhook.NewSender(nil)
	}
	s := &HTTPSyncer{
		sender:   sender,
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + StatusPath,
		cfg:      cfg,
		breaker:  webhook.NewCircuitBreaker(max(cfg.FailureThreshold, 1), 1, cfg.RecoveryTimeout),
		backoff:  webhook.DefaultBackoffStrategy(),
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.Component("orgsync"))
	return s, nil
}

func (s *HTTPSyncer) PushStatus(ctx context.Context, orgID uuid.UUID, status subscription.Status, trialEndsAt *time.Time) error {
	body := StatusUpdate{
		OrganizationID:     orgID,
		SubscriptionStatus: string(status),
		TrialEndsAt:        trialEndsAt,
	}
	opts := []webhook.SendOption{
		webhook.WithMethod(http.MethodPut),
		webhook.WithTimeout(s.cfg.Timeout),
		webhook.WithMaxRetries(s.cfg.MaxRetries),
		webhook.WithBackoff(s.backoff),
		webhook.WithCircuitBreaker(s.breaker),
	}
	if s.cfg.Secret != "" {
		opts = append(opts, webhook.WithSignature(s.cfg.Secret))
	}

	start := time.Now()
	if err := s.sender.Send(ctx, s.endpoint, body, opts...); err != nil {
		return err
	}
	s.log.DebugContext(ctx, "organization status pushed",
		logger.OrganizationID(orgID),
		logger.Status(status),
		logger.Duration(time.Since(start)),
	)
	return nil
}

// Nop accepts every push without doing anything.
type Nop struct{}

func (Nop) PushStatus(context.Context, uuid.UUID, subscription.Status, *time.Time) error {
	return nil
}

// SyncerFunc adapts a function to Syncer.
type SyncerFunc func(ctx context.Context, orgID uuid.UUID, status subscription.Status, trialEndsAt *time.Time) error

func (f SyncerFunc) PushStatus(ctx context.Context, orgID uuid.UUID, status subscription.Status, trialEndsAt *time.Time) error {
	return f(ctx, orgID, status, trialEndsAt)
}
