package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/subcycle/api"
	"github.com/dmitrymomot/subcycle/pkg/httpserver"
	"github.com/dmitrymomot/subcycle/pkg/logger"
	"github.com/dmitrymomot/subcycle/pkg/requestid"
	"github.com/dmitrymomot/subcycle/svc/billing"
	"github.com/dmitrymomot/subcycle/svc/limits"
	"github.com/dmitrymomot/subcycle/svc/plan"
	"github.com/dmitrymomot/subcycle/svc/subscription"
	"github.com/dmitrymomot/subcycle/svc/usage"
)

const apiKey = "test-key"

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string              `json:"code"`
		Message string              `json:"message"`
		Details map[string][]string `json:"details"`
	} `json:"error"`
}

type server struct {
	handler http.Handler
	manager *subscription.Manager
}

func newServer(t *testing.T, checks ...httpserver.Check) *server {
	t.Helper()
	catalog, err := plan.NewCatalog(context.Background(), plan.DefaultPlans())
	require.NoError(t, err)

	log := logger.New(logger.WithOutput(&bytes.Buffer{}))
	manager := subscription.NewManager(subscription.NewMemoryStore(), catalog, subscription.WithLogger(log))
	recorder := usage.NewRecorder(usage.NewMemoryLedger(), manager, catalog, usage.WithLogger(log))

	return &server{
		manager: manager,
		handler: api.NewRouter(api.Deps{
			Subscriptions: manager,
			Limits:        limits.NewService(manager, catalog, recorder, limits.WithLogger(log)),
			Usage:         recorder,
			Plans:         catalog,
			Payments:      billing.NewProcessor(manager, billing.NewMemoryInvoiceStore(), billing.WithLogger(log)),
			APIKey:        apiKey,
			Checks:        checks,
			Logger:        log,
		}),
	}
}

func (s *server) do(t *testing.T, method, path string, body any, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(api.APIKeyHeader, apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func (s *server) trial(t *testing.T) uuid.UUID {
	t.Helper()
	orgID := uuid.New()
	rec, _ := s.do(t, http.MethodPost, "/v1/subscriptions", map[string]any{
		"organization_id": orgID,
		"owner_email":     "owner@example.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return orgID
}

type subscriptionView struct {
	subscription.Subscription
	DaysLeftInTrial int  `json:"days_left_in_trial"`
	CanAccess       bool `json:"can_access"`
	IsReadOnly      bool `json:"is_read_only"`
	IsActive        bool `json:"is_active"`
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func TestSubscriptionLifecycle(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	orgID := s.trial(t)
	base := "/v1/subscriptions/" + orgID.String()

	rec, env := s.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sub := decodeData[subscriptionView](t, env)
	assert.Equal(t, subscription.StatusTrialing, sub.Status)
	assert.Equal(t, "STARTER", sub.PlanCode)
	assert.Equal(t, 21, sub.DaysLeftInTrial)
	assert.True(t, sub.CanAccess)
	assert.False(t, sub.IsReadOnly)
	assert.False(t, sub.IsActive)
	assert.NotEmpty(t, rec.Header().Get(requestid.Header))

	t.Run("second trial conflicts", func(t *testing.T) {
		rec, env := s.do(t, http.MethodPost, "/v1/subscriptions", map[string]any{"organization_id": orgID})
		assert.Equal(t, http.StatusConflict, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "conflict", env.Error.Code)
	})

	rec, env = s.do(t, http.MethodPost, base+"/activate", map[string]any{
		"plan_code":                "PROFESSIONAL",
		"billing_period":           "MONTHLY",
		"provider_subscription_id": "I-API-1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	active := decodeData[subscriptionView](t, env)
	assert.Equal(t, subscription.StatusActive, active.Status)
	assert.Zero(t, active.DaysLeftInTrial)
	assert.True(t, active.CanAccess)
	assert.True(t, active.IsActive)

	rec, env = s.do(t, http.MethodPost, base+"/upgrade", map[string]any{"plan_code": "STARTER", "billing_period": "MONTHLY"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, subscription.ErrDowngradeNotAllowed.Error(), env.Error.Message)

	rec, env = s.do(t, http.MethodPost, base+"/upgrade", map[string]any{"plan_code": "ENTERPRISE", "billing_period": "ANNUAL"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	upgraded := decodeData[subscription.Subscription](t, env)
	assert.Equal(t, "ENTERPRISE", upgraded.PlanCode)
	assert.Equal(t, subscription.BillingAnnual, upgraded.BillingPeriod)

	rec, env = s.do(t, http.MethodPost, "/v1/payments/events", map[string]any{
		"type":                     "PAYMENT_COMPLETED",
		"provider_subscription_id": "I-API-1",
		"provider_payment_id":      "SALE-API-1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, billing.OutcomeProcessed, decodeData[billing.Result](t, env).Outcome)

	rec, env = s.do(t, http.MethodGet, base+"/invoices", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	invoices := decodeData[[]billing.Invoice](t, env)
	require.Len(t, invoices, 1)
	assert.Equal(t, billing.InvoicePaid, invoices[0].Status)

	rec, env = s.do(t, http.MethodPost, base+"/cancel", map[string]any{"immediate": true, "reason": "closing"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	canceled := decodeData[subscriptionView](t, env)
	assert.Equal(t, subscription.StatusCanceled, canceled.Status)
	assert.NotNil(t, canceled.EndedAt)
	assert.False(t, canceled.CanAccess)
	assert.False(t, canceled.IsActive)

	rec, _ = s.do(t, http.MethodGet, "/v1/admin/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"CANCELED":1`)
	assert.Contains(t, rec.Body.String(), `"total":1`)
}

func TestLimits(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	orgID := s.trial(t)

	t.Run("validate answers with the decision", func(t *testing.T) {
		rec, env := s.do(t, http.MethodPost, "/v1/limits/validate", map[string]any{
			"organization_id": orgID,
			"feature":         "contacts",
			"current_count":   500,
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		d := decodeData[limits.Decision](t, env)
		assert.True(t, d.Allowed)
		assert.True(t, d.Warning)
		assert.Equal(t, plan.FeatureContacts, d.Feature)
	})

	t.Run("enforce denies with 402 in the requested language", func(t *testing.T) {
		rec, env := s.do(t, http.MethodPost, "/v1/limits/enforce", map[string]any{
			"organization_id": orgID,
			"feature":         "USERS",
			"current_count":   2,
		}, "Accept-Language", "en-US,en;q=0.9")
		require.Equal(t, http.StatusPaymentRequired, rec.Code, rec.Body.String())
		require.NotNil(t, env.Error)
		assert.Equal(t, "limit_exceeded", env.Error.Code)
		assert.Contains(t, env.Error.Message, "users limit")
		assert.Equal(t, "en", rec.Header().Get("Content-Language"))

		d := decodeData[limits.Decision](t, env)
		assert.False(t, d.Allowed)
		assert.Equal(t, "PROFESSIONAL", d.RecommendedPlan)
	})

	t.Run("usage feeds the overview", func(t *testing.T) {
		rec, _ := s.do(t, http.MethodPost, "/v1/usage", map[string]any{
			"organization_id": orgID,
			"feature":         "DEALS",
			"count":           40,
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		rec, env := s.do(t, http.MethodGet, "/v1/limits/"+orgID.String(), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		o := decodeData[limits.Overview](t, env)
		assert.Equal(t, "STARTER", o.PlanCode)
		for _, f := range o.Features {
			if f.Feature == plan.FeatureDeals {
				assert.EqualValues(t, 40, f.Current)
			}
		}

		rec, env = s.do(t, http.MethodGet, "/v1/subscriptions/"+orgID.String()+"/usage?limit=5", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decodeData[[]usage.Record](t, env), 1)
	})

	t.Run("negative usage is rejected", func(t *testing.T) {
		rec, env := s.do(t, http.MethodPost, "/v1/usage", map[string]any{
			"organization_id": orgID,
			"feature":         "DEALS",
			"count":           -1,
		})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, []string{"min=0"}, env.Error.Details["count"])
	})
}

func TestRequestErrors(t *testing.T) {
	t.Parallel()
	s := newServer(t)

	t.Run("missing api key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/plans", nil)
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed org id", func(t *testing.T) {
		rec, env := s.do(t, http.MethodGet, "/v1/subscriptions/not-a-uuid", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "invalid_organization_id", env.Error.Code)
	})

	t.Run("unknown organization", func(t *testing.T) {
		rec, _ := s.do(t, http.MethodGet, "/v1/subscriptions/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unknown fields are rejected", func(t *testing.T) {
		rec, env := s.do(t, http.MethodPost, "/v1/subscriptions", map[string]any{
			"organization_id": uuid.New(),
			"plan":            "ENTERPRISE",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "invalid_json", env.Error.Code)
	})

	t.Run("validation details use json names", func(t *testing.T) {
		rec, env := s.do(t, http.MethodPost, "/v1/subscriptions/"+uuid.NewString()+"/activate", map[string]any{
			"billing_period": "WEEKLY",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, []string{"required"}, env.Error.Details["plan_code"])
		assert.Equal(t, []string{"oneof=MONTHLY ANNUAL"}, env.Error.Details["billing_period"])
	})

	t.Run("wrong content type", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/usage", strings.NewReader("count=1"))
		req.Header.Set(api.APIKeyHeader, apiKey)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})

	t.Run("unknown payment subscription is accepted", func(t *testing.T) {
		rec, _ := s.do(t, http.MethodPost, "/v1/payments/events", map[string]any{
			"type":                     "PAYMENT_DENIED",
			"provider_subscription_id": "I-UNKNOWN",
		})
		assert.Equal(t, http.StatusAccepted, rec.Code)
	})

	t.Run("completed payment needs a payment id", func(t *testing.T) {
		rec, env := s.do(t, http.MethodPost, "/v1/payments/events", map[string]any{
			"type":                     "payment_completed",
			"provider_subscription_id": "I-UNKNOWN",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, []string{"required"}, env.Error.Details["provider_payment_id"])
	})

	t.Run("unknown route", func(t *testing.T) {
		rec, env := s.do(t, http.MethodGet, "/v1/nope", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "route_not_found", env.Error.Code)
	})
}

func TestPlansAndOps(t *testing.T) {
	t.Parallel()

	t.Run("plans list active plans with prices", func(t *testing.T) {
		t.Parallel()
		s := newServer(t)
		rec, env := s.do(t, http.MethodGet, "/v1/plans", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var plans []map[string]any
		require.NoError(t, json.Unmarshal(env.Data, &plans))
		require.Len(t, plans, 3)
		assert.Equal(t, "STARTER", plans[0]["code"])
		assert.Contains(t, plans[1]["monthly_price_display"], "COP")
	})

	t.Run("health reports failing checks", func(t *testing.T) {
		t.Parallel()
		s := newServer(t, httpserver.Check{Name: "postgres", Probe: func(context.Context) error { return errors.New("down") }})
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), `"postgres":"fail"`)
	})

	t.Run("metrics are public", func(t *testing.T) {
		t.Parallel()
		s := newServer(t)
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "go_goroutines")
	})

	t.Run("exceeded usage window", func(t *testing.T) {
		t.Parallel()
		s := newServer(t)
		rec, _ := s.do(t, http.MethodGet, "/v1/admin/usage/exceeded?since=1h", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		rec, _ = s.do(t, http.MethodGet, "/v1/admin/usage/exceeded?since=yesterday", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

}
