// Package billing turns normalized payment provider events into lifecycle
// transitions and keeps the invoice history of each subscription.
//
// Provider webhooks are verified upstream; Processor.Handle receives an
// already validated PaymentEvent:
//
//	SUBSCRIPTION_ACTIVATED  logged only, activation happens at checkout
//	SUBSCRIPTION_CANCELLED  Manager.CancelByProvider
//	PAYMENT_COMPLETED       Manager.RecordPayment and a PAID invoice
//	PAYMENT_DENIED          Manager.MarkPastDue and a FAILED invoice
//
// Completed payments are idempotent on ProviderPaymentID: a replayed event
// returns the stored invoice without touching the subscription.
package billing
