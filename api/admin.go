package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/subcycle/svc/billing"
	"github.com/dmitrymomot/subcycle/svc/plan"
	"github.com/dmitrymomot/subcycle/svc/subscription"
)

type planView struct {
	plan.Plan
	MonthlyPriceDisplay string `json:"monthly_price_display"`
	AnnualPriceDisplay  string `json:"annual_price_display"`
}

func (h *handlers) listPlans(w http.ResponseWriter, _ *http.Request) {
	plans := h.plans.List()
	out := make([]planView, 0, len(plans))
	for _, p := range plans {
		if !p.Active {
			continue
		}
		out = append(out, planView{
			Plan:                p,
			MonthlyPriceDisplay: billing.FormatAmount(p.MonthlyPrice, p.Currency),
			AnnualPriceDisplay:  billing.FormatAmount(p.AnnualPrice, p.Currency),
		})
	}
	respond(w, http.StatusOK, out)
}

type paymentEventRequest struct {
	Type                   string          `json:"type" validate:"required"`
	ProviderSubscriptionID string          `json:"provider_subscription_id" validate:"required"`
	ProviderPaymentID      string          `json:"provider_payment_id"`
	Amount                 decimal.Decimal `json:"amount"`
	Currency               string          `json:"currency" validate:"omitempty,len=3"`
	Reason                 string          `json:"reason"`
}

func (h *handlers) paymentEvent(w http.ResponseWriter, r *http.Request) {
	var req paymentEventRequest
	if err := decode(w, r, &req); err != nil {
		fail(w, r, h.log, err)
		return
	}
	ev := billing.PaymentEvent{
		Type:                   billing.EventType(req.Type),
		ProviderSubscriptionID: req.ProviderSubscriptionID,
		ProviderPaymentID:      req.ProviderPaymentID,
		Amount:                 req.Amount,
		Currency:               req.Currency,
		Reason:                 req.Reason,
	}
	if req.Amount.IsNegative() {
		fail(w, r, h.log, ValidationError{"amount": {"min=0"}})
		return
	}
	if strings.EqualFold(strings.TrimSpace(req.Type), string(billing.EventPaymentCompleted)) &&
		strings.TrimSpace(req.ProviderPaymentID) == "" {
		fail(w, r, h.log, ValidationError{"provider_payment_id": {"required"}})
		return
	}

	res, err := h.payments.Handle(r.Context(), ev)
	if err != nil {
		fail(w, r, h.log, err)
		return
	}
	status := http.StatusOK
	if res.Outcome == billing.OutcomeIgnored {
		status = http.StatusAccepted
	}
	respond(w, status, res)
}

type statsResponse struct {
	ByStatus map[subscription.Status]int64 `json:"by_status"`
	Total    int64                         `json:"total"`
}

func (h *handlers) stats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.subs.CountByStatus(r.Context())
	if err != nil {
		fail(w, r, h.log, err)
		return
	}
	out := statsResponse{ByStatus: make(map[subscription.Status]int64, len(subscription.Statuses))}
	for _, s := range subscription.Statuses {
		out.ByStatus[s] = counts[s]
		out.Total += counts[s]
	}
	respond(w, http.StatusOK, out)
}

// exceeded lists usage records over their limit within ?since= (a Go
// duration, default 24h).
func (h *handlers) exceeded(w http.ResponseWriter, r *http.Request) {
	window := 24 * time.Hour
	if v := r.URL.Query().Get("since"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			fail(w, r, h.log, ValidationError{"since": {"duration"}})
			return
		}
		window = d
	}
	list, err := h.usage.ExceededSince(r.Context(), h.now().Add(-window))
	if err != nil {
		fail(w, r, h.log, err)
		return
	}
	respond(w, http.StatusOK, list)
}
