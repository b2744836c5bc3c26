package subscription

import "errors"

var (
	ErrSubscriptionNotFound      = errors.New("subscription not found")
	ErrSubscriptionAlreadyExists = errors.New("organization already has a subscription")
	ErrTrialAlreadyUsed          = errors.New("trial already used by organization")
	ErrDowngradeNotAllowed       = errors.New("plan downgrade is not allowed")
	ErrInvalidTransition         = errors.New("transition not allowed from current status")
	ErrInvalidBillingPeriod      = errors.New("invalid billing period")
	ErrInvalidOrganization       = errors.New("organization id is required")
	ErrConcurrentUpdate          = errors.New("subscription was modified concurrently")

	// ErrNoChange is returned by an update function to leave the record
	// untouched. Stores roll back and return it together with the current
	// record.
	ErrNoChange = errors.New("no change")
)
