package scheduler

import "errors"

var (
	ErrJobAlreadyRegistered = errors.New("job already registered")
	ErrJobNotFound          = errors.New("job not found")
	ErrNoJobs               = errors.New("scheduler has no jobs")
	ErrInvalidSchedule      = errors.New("invalid schedule")
	ErrInvalidJob           = errors.New("job name, schedule and func are required")
	ErrAlreadyRunning       = errors.New("scheduler already running")
)
