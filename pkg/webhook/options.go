package webhook

import (
	"net/http"
	"time"
)

// DeliveryResult describes one delivery attempt.
type DeliveryResult struct {
	StatusCode int
	Attempt    int
	Duration   time.Duration
	Err        error
}

// DeliveryHook observes every attempt, e.g. for metrics.
type DeliveryHook func(DeliveryResult)

type sendOptions struct {
	method     string
	timeout    time.Duration
	headers    map[string]string
	maxRetries int
	backoff    BackoffStrategy
	secret     string
	breaker    *CircuitBreaker
	onDelivery DeliveryHook
}

func defaultSendOptions() *sendOptions {
	return &sendOptions{
		method:     http.MethodPost,
		timeout:    10 * time.Second,
		headers:    make(map[string]string),
		maxRetries: 3,
		backoff:    DefaultBackoffStrategy(),
	}
}

// SendOption configures a single Send call.
type SendOption func(*sendOptions)

// WithMethod overrides the HTTP method (POST by default).
func WithMethod(method string) SendOption {
	return func(o *sendOptions) {
		if method != "" {
			o.method = method
		}
	}
}

// WithTimeout bounds each attempt. Default 10s.
func WithTimeout(d time.Duration) SendOption {
	return func(o *sendOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func WithHeader(key, value string) SendOption {
	return func(o *sendOptions) {
		if key != "" && value != "" {
			o.headers[key] = value
		}
	}
}

// WithMaxRetries sets the number of retries after the first attempt.
// Zero disables retries.
func WithMaxRetries(n int) SendOption {
	return func(o *sendOptions) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

func WithBackoff(b BackoffStrategy) SendOption {
	return func(o *sendOptions) {
		if b != nil {
			o.backoff = b
		}
	}
}

// WithSignature signs the body with HMAC-SHA256 (see SignPayload).
func WithSignature(secret string) SendOption {
	return func(o *sendOptions) { o.secret = secret }
}

// WithCircuitBreaker guards the endpoint with cb. Share one breaker per
// endpoint.
func WithCircuitBreaker(cb *CircuitBreaker) SendOption {
	return func(o *sendOptions) { o.breaker = cb }
}

func WithOnDelivery(hook DeliveryHook) SendOption {
	return func(o *sendOptions) { o.onDelivery = hook }
}
