package limits

import (
	"errors"
	"fmt"

	"github.com/dmitrymomot/subcycle/svc/plan"
)

var (
	ErrSubscriptionInactive = errors.New("subscription is not active")
	ErrInvalidCount         = errors.New("usage counts must not be negative")
	ErrInvalidFeature       = errors.New("feature code is required")
)

// LimitExceededError reports a denial caused by the feature limit.
type LimitExceededError struct {
	Feature  plan.Feature
	Current  int64
	Max      int64
	Decision Decision
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("feature %s limit exceeded: %d of %d used", e.Feature, e.Current, e.Max)
}

// IsLimitExceeded reports whether err carries a *LimitExceededError.
func IsLimitExceeded(err error) bool {
	var target *LimitExceededError
	return errors.As(err, &target)
}
