// Package outbox runs the side effects of committed subscription changes.
//
// The subscription manager hands every committed Change to a Dispatcher.
// The dispatcher pushes the new status to the organization service (when
// the change asks for it), publishes the event and notifies the owner.
// Side effects never influence the outcome of the transition: failures and
// panics are logged and counted in subcycle_dispatch_failures_total.
package outbox
