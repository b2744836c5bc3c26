package subscription

import (
	"context"

	"github.com/dmitrymomot/subcycle/svc/events"
)

// Change describes a committed transition. Sync tells the dispatcher to
// push the new status to the organization service.
type Change struct {
	Subscription Subscription
	From         Status
	Operation    Operation
	Event        events.Envelope
	Sync         bool
}

// Dispatcher receives changes after they commit. It must not block the
// caller on slow integrations and its failures never affect the transition.
type Dispatcher interface {
	Dispatch(ctx context.Context, c Change)
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, c Change)

func (f DispatcherFunc) Dispatch(ctx context.Context, c Change) { f(ctx, c) }

type nopDispatcher struct{}

func (nopDispatcher) Dispatch(context.Context, Change) {}
