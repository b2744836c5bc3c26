package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind names a lifecycle event on the wire.
type Kind string

const (
	KindTrialStarted          Kind = "subscription.trial_started"
	KindTrialExpiring         Kind = "subscription.trial_expiring"
	KindTrialExpired          Kind = "subscription.trial_expired"
	KindSubscriptionActivated Kind = "subscription.activated"
	KindSubscriptionCanceled  Kind = "subscription.canceled"
	KindSubscriptionSuspended Kind = "subscription.suspended"
	KindSubscriptionEnded     Kind = "subscription.ended"
	KindPlanChanged           Kind = "subscription.plan_changed"
	KindPaymentFailed         Kind = "payment.failed"
	KindPaymentSucceeded      Kind = "payment.succeeded"
)

// Payload is the kind-specific part of an Envelope. The set of
// implementations is closed to this package.
type Payload interface {
	Kind() Kind
	isPayload()
}

type TrialStarted struct {
	PlanCode    string    `json:"plan_code"`
	TrialEndsAt time.Time `json:"trial_ends_at"`
	OwnerEmail  string    `json:"owner_email,omitempty"`
}

type TrialExpiring struct {
	DaysLeft    int       `json:"days_left"`
	TrialEndsAt time.Time `json:"trial_ends_at"`
}

type TrialExpired struct {
	TrialEndsAt time.Time `json:"trial_ends_at"`
}

type SubscriptionActivated struct {
	PlanCode      string          `json:"plan_code"`
	BillingPeriod string          `json:"billing_period"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	PeriodEnd     time.Time       `json:"period_end"`
}

type SubscriptionCanceled struct {
	Reason     string `json:"reason,omitempty"`
	Immediate  bool   `json:"immediate"`
	ByProvider bool   `json:"by_provider,omitempty"`
}

type SubscriptionSuspended struct {
	PreviousStatus string `json:"previous_status"`
}

type SubscriptionEnded struct {
	EndedAt time.Time `json:"ended_at"`
}

type PlanChanged struct {
	FromPlan      string `json:"from_plan"`
	ToPlan        string `json:"to_plan"`
	BillingPeriod string `json:"billing_period"`
}

type PaymentFailed struct {
	ProviderSubscriptionID string `json:"provider_subscription_id,omitempty"`
	Reason                 string `json:"reason,omitempty"`
}

type PaymentSucceeded struct {
	ProviderPaymentID string          `json:"provider_payment_id,omitempty"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	PeriodEnd         time.Time       `json:"period_end"`
}

func (TrialStarted) Kind() Kind          { return KindTrialStarted }
func (TrialExpiring) Kind() Kind         { return KindTrialExpiring }
func (TrialExpired) Kind() Kind          { return KindTrialExpired }
func (SubscriptionActivated) Kind() Kind { return KindSubscriptionActivated }
func (SubscriptionCanceled) Kind() Kind  { return KindSubscriptionCanceled }
func (SubscriptionSuspended) Kind() Kind { return KindSubscriptionSuspended }
func (SubscriptionEnded) Kind() Kind     { return KindSubscriptionEnded }
func (PlanChanged) Kind() Kind           { return KindPlanChanged }
func (PaymentFailed) Kind() Kind         { return KindPaymentFailed }
func (PaymentSucceeded) Kind() Kind      { return KindPaymentSucceeded }

func (TrialStarted) isPayload()          {}
func (TrialExpiring) isPayload()         {}
func (TrialExpired) isPayload()          {}
func (SubscriptionActivated) isPayload() {}
func (SubscriptionCanceled) isPayload()  {}
func (SubscriptionSuspended) isPayload() {}
func (SubscriptionEnded) isPayload()     {}
func (PlanChanged) isPayload()           {}
func (PaymentFailed) isPayload()         {}
func (PaymentSucceeded) isPayload()      {}

// Envelope carries the fields shared by every lifecycle event.
type Envelope struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	SubscriptionID uuid.UUID
	OccurredAt     time.Time
	Payload        Payload
}

// New wraps payload in an Envelope with a fresh id.
func New(orgID, subID uuid.UUID, at time.Time, payload Payload) Envelope {
	return Envelope{
		ID:             uuid.New(),
		OrganizationID: orgID,
		SubscriptionID: subID,
		OccurredAt:     at.UTC(),
		Payload:        payload,
	}
}

// Kind returns the payload kind, or "" for an empty envelope.
func (e Envelope) Kind() Kind {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.Kind()
}

type wireEnvelope struct {
	ID             uuid.UUID       `json:"id"`
	Kind           Kind            `json:"kind"`
	OrganizationID uuid.UUID       `json:"organization_id"`
	SubscriptionID uuid.UUID       `json:"subscription_id"`
	OccurredAt     time.Time       `json:"occurred_at"`
	Payload        json.RawMessage `json:"payload"`
}

func (e Envelope) MarshalJSON() ([]byte, error) {
	if e.Payload == nil {
		return nil, ErrEmptyPayload
	}
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireEnvelope{
		ID:             e.ID,
		Kind:           e.Payload.Kind(),
		OrganizationID: e.OrganizationID,
		SubscriptionID: e.SubscriptionID,
		OccurredAt:     e.OccurredAt,
		Payload:        payload,
	})
}

func (e *Envelope) UnmarshalJSON(data []byte) error {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	p, err := decodePayload(w.Kind, w.Payload)
	if err != nil {
		return err
	}
	*e = Envelope{
		ID:             w.ID,
		OrganizationID: w.OrganizationID,
		SubscriptionID: w.SubscriptionID,
		OccurredAt:     w.OccurredAt,
		Payload:        p,
	}
	return nil
}

func decodePayload(kind Kind, raw json.RawMessage) (Payload, error) {
	switch kind {
	case KindTrialStarted:
		return decodeAs[TrialStarted](raw)
	case KindTrialExpiring:
		return decodeAs[TrialExpiring](raw)
	case KindTrialExpired:
		return decodeAs[TrialExpired](raw)
	case KindSubscriptionActivated:
		return decodeAs[SubscriptionActivated](raw)
	case KindSubscriptionCanceled:
		return decodeAs[SubscriptionCanceled](raw)
	case KindSubscriptionSuspended:
		return decodeAs[SubscriptionSuspended](raw)
	case KindSubscriptionEnded:
		return decodeAs[SubscriptionEnded](raw)
	case KindPlanChanged:
		return decodeAs[PlanChanged](raw)
	case KindPaymentFailed:
		return decodeAs[PaymentFailed](raw)
	case KindPaymentSucceeded:
		return decodeAs[PaymentSucceeded](raw)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

func decodeAs[T Payload](raw json.RawMessage) (Payload, error) {
	var p T
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return p, nil
}
