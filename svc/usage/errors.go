package usage

import "errors"

var (
	ErrInvalidCount   = errors.New("usage count must not be negative")
	ErrInvalidFeature = errors.New("feature code is required")
)
