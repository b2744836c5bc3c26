// Package webhook pushes JSON payloads to HTTP endpoints.
//
// Sender.Send marshals the payload, signs it when WithSignature is given and
// retries temporary failures with a BackoffStrategy. A shared CircuitBreaker
// can short-circuit calls to an endpoint that keeps failing. VerifyRequest is
// the receiving side of the signature scheme.
//
//	sender := webhook.NewSender(nil)
//	err := sender.Send(ctx, endpoint, payload,
//	    webhook.WithMethod(http.MethodPut),
//	    webhook.WithTimeout(3*time.Second),
//	    webhook.WithSignature(secret),
//	    webhook.WithCircuitBreaker(cb),
//	)
package webhook
