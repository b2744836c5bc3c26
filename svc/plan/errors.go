package plan

import "errors"

var (
	ErrPlanNotFound      = errors.New("plan not found")
	ErrInvalidPlan       = errors.New("invalid plan configuration")
	ErrFailedToLoadPlans = errors.New("failed to load plans")
	ErrNoPlans           = errors.New("plan catalog is empty")
	ErrDuplicatePlanCode = errors.New("duplicate plan code")
	ErrDuplicatePlanTier = errors.New("duplicate plan tier")
)
