package webhook

import "errors"

var (
	ErrDeliveryFailed       = errors.New("webhook delivery failed")
	ErrInvalidConfiguration = errors.New("invalid webhook configuration")
	ErrPermanentFailure     = errors.New("permanent webhook failure")
	ErrTemporaryFailure     = errors.New("temporary webhook failure")
	ErrCircuitOpen          = errors.New("webhook circuit breaker is open")
	ErrInvalidPayload       = errors.New("invalid webhook payload")
	ErrInvalidURL           = errors.New("invalid webhook URL")
	ErrTimeout              = errors.New("webhook request timeout")
	ErrInvalidSignature     = errors.New("invalid webhook signature")
)
