package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/subcycle/svc/subscription"
)

// subscriptionView is a subscription with its access predicates evaluated
// at response time.
type subscriptionView struct {
	*subscription.Subscription
	DaysLeftInTrial int  `json:"days_left_in_trial"`
	CanAccess       bool `json:"can_access"`
	IsReadOnly      bool `json:"is_read_only"`
	IsActive        bool `json:"is_active"`
}

func newSubscriptionView(sub *subscription.Subscription, now time.Time) subscriptionView {
	return subscriptionView{
		Subscription:    sub,
		DaysLeftInTrial: sub.DaysLeftInTrial(now),
		CanAccess:       sub.CanAccess(),
		IsReadOnly:      sub.IsReadOnly(),
		IsActive:        sub.IsActive(),
	}
}

type startTrialRequest struct {
	OrganizationID uuid.UUID `json:"organization_id" validate:"required"`
	OwnerEmail     string    `json:"owner_email" validate:"omitempty,email"`
}

func (h *handlers) startTrial(w http.ResponseWriter, r *http.Request) {
	var req startTrialRequest
	if err := decode(w, r, &req); err != nil {
		fail(w, r, h.log, err)
		return
	}
	sub, err := h.subs.StartTrial(r.Context(), subscription.StartTrialParams{
		OrganizationID: req.OrganizationID,
		OwnerEmail:     req.OwnerEmail,
	})
	if err != nil {
		fail(w, r, h.log, err)
		return
	}
	respond(w, http.StatusCreated, newSubscriptionView(sub, h.now()))
}

func (h *handlers) getSubscription(w http.ResponseWriter, r *http.Request) {
	orgID, err := orgIDParam(r)
	if err != nil {
		fail(w, r, h.log, err)
		return
	}
	sub, err := h.subs.Get(r.Context(), orgID)
	if err != nil {
		fail(w, r, h.log, err)
		return
	}
	respond(w, http.StatusOK, newSubscriptionView(sub, h.now()))
}

type activateRequest struct {
	PlanCode               string `json:"plan_code" validate:"required"`
	BillingPeriod          string `json:"billing_period" validate:"required,oneof=MONTHLY ANNUAL"`
	ProviderSubscriptionID string `json:"provider_subscription_id"`
	ProviderPayerID        string `json:"provider_payer_id"`
	ProviderAgreementID    string `json:"provider_agreement_id"`
}

func (h *handlers) activate(w http.ResponseWriter, r *http.Request) {
	orgID, err := orgIDParam(r)
	if err != nil {
		fail(w, r, h.log, err)
		return
	}
	var req activateRequest
	if err := decode(w, r, &req); err != nil {
		fail(w, r, h.log, err)
		return
	}
	sub, err := h.subs.Activate(r.Context(), subscription.ActivateParams{
		OrganizationID:         orgID,
		PlanCode:               req.PlanCode,
		BillingPeriod:          subscription.BillingPeriod(req.BillingPeriod),
		ProviderSubscriptionID: req.ProviderSubscriptionID,
		ProviderPayerID:        req.ProviderPayerID,
		ProviderAgreementID:    req.ProviderAgreementID,
	})
	if err != nil {
		fail(w, r, h.log, err)
		return
	}
	respond(w, http.StatusOK, newSubscriptionView(sub, h.now()))
}

type upgradeRequest struct {
	PlanCode      string `json:"plan_code" validate:"required"`
	BillingPeriod string `json:"billing_period" validate:"required,oneof=MONTHLY ANNUAL"`
}

func (h *handlers) upgrade(w http.ResponseWriter, r *http.Request) {
	orgID, err := orgIDParam(r)
	if err != nil {
		fail(w, r, h.log, err)
		return
	}
	var req upgradeRequest
	if err := decode(w, r, &req); err != nil {
		fail(w, r, h.log, err)
		return
	}
	sub, err := h.subs.UpgradePlan(r.Context(), subscription.UpgradeParams{
		OrganizationID: orgID,
		PlanCode:       req.PlanCode,
		BillingPeriod:  subscription.BillingPeriod(req.BillingPeriod),
	})
	if err != nil {
		fail(w, r, h.log, err)
		return
	}
	respond(w, http.StatusOK, newSubscriptionView(sub, h.now()))
}

type cancelRequest struct {
	Immediate bool   `json:"immediate"`
	Reason    string `json:"reason" validate:"max=500"`
}

func (h *handlers) cancel(w http.ResponseWriter, r *http.Request) {
	orgID, err := orgIDParam(r)
	if err != nil {
		fail(w, r, h.log, err)
		return
	}
	var req cancelRequest
	if err := decode(w, r, &req); err != nil {
		fail(w, r, h.log, err)
		return
	}
	sub, err := h.subs.Cancel(r.Context(), subscription.CancelParams{
		OrganizationID: orgID,
		Immediate:      req.Immediate,
		Reason:         req.Reason,
	})
	if err != nil {
		fail(w, r, h.log, err)
		return
	}
	respond(w, http.StatusOK, newSubscriptionView(sub, h.now()))
}

func (h *handlers) invoices(w http.ResponseWriter, r *http.Request) {
	sub, found := h.subscriptionFor(w, r)
	if !found {
		return
	}
	list, err := h.payments.History(r.Context(), sub.ID, limitParam(r))
	if err != nil {
		fail(w, r, h.log, err)
		return
	}
	respond(w, http.StatusOK, list)
}

// subscriptionFor resolves the {orgID} path parameter and writes the error
// response itself when that fails.
func (h *handlers) subscriptionFor(w http.ResponseWriter, r *http.Request) (*subscription.Subscription, bool) {
	orgID, err := orgIDParam(r)
	if err != nil {
		fail(w, r, h.log, err)
		return nil, false
	}
	sub, err := h.subs.Get(r.Context(), orgID)
	if err != nil {
		fail(w, r, h.log, err)
		return nil, false
	}
	return sub, true
}
