package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/subcycle/pkg/logger"
	"github.com/dmitrymomot/subcycle/svc/billing"
	"github.com/dmitrymomot/subcycle/svc/limits"
	"github.com/dmitrymomot/subcycle/svc/plan"
	"github.com/dmitrymomot/subcycle/svc/subscription"
	"github.com/dmitrymomot/subcycle/svc/usage"
)

// Envelope is the body of every response.
type Envelope struct {
	Data  any            `json:"data,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`
	Error *ErrorDetail   `json:"error,omitempty"`
}

type ErrorDetail struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Details map[string][]string `json:"details,omitempty"`
}

// HTTPError is an error with a fixed status and code.
type HTTPError struct {
	Status  int
	Code    string
	Message string
}

func (e HTTPError) Error() string { return e.Message }

var (
	ErrUnauthorized = HTTPError{Status: http.StatusUnauthorized, Code: "unauthorized", Message: "missing or invalid API key"}
	ErrBadOrgID     = HTTPError{Status: http.StatusBadRequest, Code: "invalid_organization_id", Message: "organization id must be a UUID"}
)

func writeJSON(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respond(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Envelope{Data: data})
}

// fail writes err with the status from errorStatus. Server errors are
// logged with the request context and their message is not exposed.
func fail(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	status, detail := errorStatus(err)
	body := Envelope{Error: detail}

	var exceeded *limits.LimitExceededError
	if errors.As(err, &exceeded) {
		body.Data = exceeded.Decision
	}

	if status >= http.StatusInternalServerError {
		log.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			logger.Error(err),
		)
		detail.Message = http.StatusText(status)
	}
	writeJSON(w, status, body)
}

func errorStatus(err error) (int, *ErrorDetail) {
	detail := &ErrorDetail{Code: "internal_error", Message: err.Error()}

	var (
		httpErr  HTTPError
		valErr   ValidationError
		exceeded *limits.LimitExceededError
	)
	switch {
	case errors.As(err, &httpErr):
		detail.Code = httpErr.Code
		return httpErr.Status, detail

	case errors.As(err, &valErr):
		detail.Code = "validation_error"
		detail.Details = valErr
		return http.StatusUnprocessableEntity, detail

	case errors.As(err, &exceeded):
		detail.Code = "limit_exceeded"
		if exceeded.Decision.Message != "" {
			detail.Message = exceeded.Decision.Message
		}
		return http.StatusPaymentRequired, detail

	case errors.Is(err, subscription.ErrSubscriptionNotFound),
		errors.Is(err, plan.ErrPlanNotFound),
		errors.Is(err, billing.ErrInvoiceNotFound):
		detail.Code = "not_found"
		return http.StatusNotFound, detail

	case errors.Is(err, subscription.ErrSubscriptionAlreadyExists),
		errors.Is(err, subscription.ErrTrialAlreadyUsed),
		errors.Is(err, subscription.ErrInvalidTransition),
		errors.Is(err, subscription.ErrDowngradeNotAllowed),
		errors.Is(err, subscription.ErrConcurrentUpdate),
		errors.Is(err, subscription.ErrNoChange):
		detail.Code = "conflict"
		return http.StatusConflict, detail

	case errors.Is(err, limits.ErrSubscriptionInactive):
		detail.Code = "subscription_inactive"
		return http.StatusPaymentRequired, detail

	case errors.Is(err, subscription.ErrInvalidBillingPeriod),
		errors.Is(err, subscription.ErrInvalidOrganization),
		errors.Is(err, limits.ErrInvalidCount),
		errors.Is(err, limits.ErrInvalidFeature),
		errors.Is(err, usage.ErrInvalidCount),
		errors.Is(err, usage.ErrInvalidFeature),
		errors.Is(err, billing.ErrInvalidEvent):
		detail.Code = "invalid_request"
		return http.StatusUnprocessableEntity, detail
	}
	return http.StatusInternalServerError, detail
}
