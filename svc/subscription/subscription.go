package subscription

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a subscription.
type Status string

const (
	// StatusNone is the state before a record exists. It is never stored.
	StatusNone        Status = ""
	StatusTrialing    Status = "TRIALING"
	StatusActive      Status = "ACTIVE"
	StatusGracePeriod Status = "GRACE_PERIOD"
	StatusSuspended   Status = "SUSPENDED"
	StatusPastDue     Status = "PAST_DUE"
	StatusCanceled    Status = "CANCELED"
	StatusEnded       Status = "ENDED"
)

// Statuses lists every storable status.
var Statuses = []Status{
	StatusTrialing, StatusActive, StatusGracePeriod, StatusSuspended,
	StatusPastDue, StatusCanceled, StatusEnded,
}

func (s Status) Valid() bool {
	switch s {
	case StatusTrialing, StatusActive, StatusGracePeriod, StatusSuspended,
		StatusPastDue, StatusCanceled, StatusEnded:
		return true
	}
	return false
}

// Terminal reports whether no further cancellation can apply.
func (s Status) Terminal() bool {
	return s == StatusCanceled || s == StatusEnded
}

// BillingPeriod is the length of a paid period.
type BillingPeriod string

const (
	BillingMonthly BillingPeriod = "MONTHLY"
	BillingAnnual  BillingPeriod = "ANNUAL"
)

func (p BillingPeriod) Valid() bool {
	return p == BillingMonthly || p == BillingAnnual
}

// Advance returns the end of a period that starts at t.
func (p BillingPeriod) Advance(t time.Time) time.Time {
	if p == BillingAnnual {
		return t.AddDate(1, 0, 0)
	}
	return t.AddDate(0, 1, 0)
}

// Subscription is the single lifecycle record of an organization.
type Subscription struct {
	ID             uuid.UUID     `json:"id"`
	OrganizationID uuid.UUID     `json:"organization_id"`
	PlanCode       string        `json:"plan_code"`
	Status         Status        `json:"status"`
	BillingPeriod  BillingPeriod `json:"billing_period"`

	TrialStartedAt *time.Time `json:"trial_started_at,omitempty"`
	TrialEndsAt    *time.Time `json:"trial_ends_at,omitempty"`
	TrialUsed      bool       `json:"trial_used"`

	ProviderSubscriptionID string `json:"provider_subscription_id,omitempty"`
	ProviderPayerID        string `json:"provider_payer_id,omitempty"`
	ProviderAgreementID    string `json:"provider_agreement_id,omitempty"`

	CurrentPeriodStart *time.Time `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end,omitempty"`
	NextBillingAt      *time.Time `json:"next_billing_at,omitempty"`
	CanceledAt         *time.Time `json:"canceled_at,omitempty"`
	EndedAt            *time.Time `json:"ended_at,omitempty"`
	CancelReason       string     `json:"cancel_reason,omitempty"`

	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	OwnerEmail string          `json:"owner_email,omitempty"`

	StatusChangedAt time.Time `json:"status_changed_at"`
	Version         int64     `json:"version"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CanAccess reports whether the organization may use the product at all.
func (s *Subscription) CanAccess() bool {
	switch s.Status {
	case StatusActive, StatusTrialing, StatusGracePeriod:
		return true
	}
	return false
}

// IsActive reports whether a paid period is running.
func (s *Subscription) IsActive() bool {
	return s.Status == StatusActive
}

// IsReadOnly reports whether the organization may read but not create.
func (s *Subscription) IsReadOnly() bool {
	return s.Status == StatusGracePeriod
}

// DaysLeftInTrial returns the whole days remaining in the trial at now,
// rounded up. It is 0 when not trialing or when the trial is over.
func (s *Subscription) DaysLeftInTrial(now time.Time) int {
	if s.Status != StatusTrialing || s.TrialEndsAt == nil {
		return 0
	}
	remaining := s.TrialEndsAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	days := int(remaining / (24 * time.Hour))
	if remaining%(24*time.Hour) != 0 {
		days++
	}
	return days
}

// EndDue returns when a canceled subscription stops: its recorded end, the
// end of the paid period, or the cancellation time, in that order.
func (s *Subscription) EndDue() (time.Time, bool) {
	for _, t := range []*time.Time{s.EndedAt, s.CurrentPeriodEnd, s.CanceledAt} {
		if t != nil {
			return *t, true
		}
	}
	return time.Time{}, false
}

// Clone returns a deep copy.
func (s *Subscription) Clone() *Subscription {
	if s == nil {
		return nil
	}
	c := *s
	for _, p := range []**time.Time{
		&c.TrialStartedAt, &c.TrialEndsAt, &c.CurrentPeriodStart, &c.CurrentPeriodEnd,
		&c.NextBillingAt, &c.CanceledAt, &c.EndedAt,
	} {
		if *p != nil {
			v := **p
			*p = &v
		}
	}
	return &c
}

func timePtr(t time.Time) *time.Time { return &t }
