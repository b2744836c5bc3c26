package subscription

import (
	"context"
	"time"

	"github.com/dmitrymomot/subcycle/pkg/statemachine"
	"github.com/dmitrymomot/subcycle/svc/plan"
)

// Operation names a lifecycle transition.
type Operation string

const (
	OpStartTrial       Operation = "start_trial"
	OpActivate         Operation = "activate"
	OpUpgradePlan      Operation = "upgrade_plan"
	OpCancel           Operation = "cancel"
	OpCancelByProvider Operation = "cancel_by_provider"
	OpExpireTrial      Operation = "expire_trial"
	OpSuspend          Operation = "suspend"
	OpMarkPastDue      Operation = "mark_past_due"
	OpRecordPayment    Operation = "record_payment"
	OpEnd              Operation = "end"

	// OpRemindTrial is not a transition. It tags reminder changes that carry
	// an event without touching the record.
	OpRemindTrial Operation = "remind_trial"
)

// guardInput is the data passed to guards on Fire.
type guardInput struct {
	sub    *Subscription
	target plan.Plan
	plans  Plans
	now    time.Time
}

var cancelable = []Status{StatusTrialing, StatusActive, StatusGracePeriod, StatusSuspended, StatusPastDue}

func newMachine() *statemachine.Machine[Status, Operation] {
	return statemachine.MustNew(
		statemachine.WithTransition(StatusNone, StatusTrialing, OpStartTrial),
		statemachine.WithTransitions([]Status{StatusTrialing, StatusGracePeriod, StatusSuspended}, StatusActive, OpActivate),
		statemachine.WithTransition(StatusTrialing, StatusGracePeriod, OpExpireTrial),
		statemachine.WithTransitions([]Status{StatusGracePeriod, StatusPastDue}, StatusSuspended, OpSuspend),
		statemachine.WithTransition(StatusActive, StatusActive, OpUpgradePlan, notDowngrade),
		statemachine.WithTransitions(cancelable, StatusCanceled, OpCancel),
		statemachine.WithTransitions(cancelable, StatusCanceled, OpCancelByProvider),
		statemachine.WithTransition(StatusActive, StatusPastDue, OpMarkPastDue),
		statemachine.WithTransitions([]Status{StatusActive, StatusPastDue}, StatusActive, OpRecordPayment),
		statemachine.WithTransition(StatusCanceled, StatusEnded, OpEnd, endIsDue),
	)
}

func notDowngrade(_ context.Context, _ Status, _ Operation, data any) bool {
	in, ok := data.(guardInput)
	if !ok {
		return false
	}
	current, err := in.plans.GetByCode(in.sub.PlanCode)
	if err != nil {
		// a retired plan cannot be compared; allow moving off it
		return true
	}
	return in.target.Tier >= current.Tier
}

func endIsDue(_ context.Context, _ Status, _ Operation, data any) bool {
	in, ok := data.(guardInput)
	if !ok {
		return false
	}
	due, ok := in.sub.EndDue()
	return ok && !due.After(in.now)
}
