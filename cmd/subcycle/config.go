package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrymomot/subcycle/pkg/scheduler"
)

const (
	storageMemory   = "memory"
	storagePostgres = "postgres"
)

// AppConfig holds the service-level settings. Infrastructure settings live
// in the config structs of their packages.
type AppConfig struct {
	AppName  string `env:"APP_NAME" envDefault:"subcycle"`
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL"`

	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"memory"`
	PlansFile     string `env:"PLANS_FILE"`

	TrialDays       int `env:"TRIAL_DAYS" envDefault:"21"`
	GracePeriodDays int `env:"GRACE_PERIOD_DAYS" envDefault:"7"`
	PastDueDays     int `env:"PAST_DUE_DAYS" envDefault:"7"`

	Timezone               string        `env:"TIMEZONE" envDefault:"UTC"`
	ExpirationAt           string        `env:"EXPIRATION_AT" envDefault:"02:00"`
	ReminderAt             string        `env:"REMINDER_AT" envDefault:"08:00"`
	SchedulerCheckInterval time.Duration `env:"SCHEDULER_CHECK_INTERVAL" envDefault:"30s"`
	ScanWorkers            int           `env:"SCAN_WORKERS" envDefault:"4"`

	EventsStream    string        `env:"EVENTS_STREAM" envDefault:"subcycle:events"`
	EventsMaxLen    int64         `env:"EVENTS_MAX_LEN" envDefault:"100000"`
	DispatchWorkers int           `env:"DISPATCH_WORKERS" envDefault:"8"`
	DispatchTimeout time.Duration `env:"DISPATCH_TIMEOUT" envDefault:"30s"`

	InternalAPIKey string `env:"INTERNAL_API_KEY"`
}

// Validate rejects settings that would only fail later at startup.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.StorageDriver != storageMemory && c.StorageDriver != storagePostgres {
		errs = append(errs, fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", storageMemory, storagePostgres, c.StorageDriver))
	}
	if c.TrialDays <= 0 {
		errs = append(errs, errors.New("TRIAL_DAYS must be positive"))
	}
	if c.GracePeriodDays < 0 || c.PastDueDays < 0 {
		errs = append(errs, errors.New("GRACE_PERIOD_DAYS and PAST_DUE_DAYS must not be negative"))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("TIMEZONE: %w", err))
	}
	if _, err := scheduler.ParseDaily(c.ExpirationAt); err != nil {
		errs = append(errs, fmt.Errorf("EXPIRATION_AT: %w", err))
	}
	if _, err := scheduler.ParseDaily(c.ReminderAt); err != nil {
		errs = append(errs, fmt.Errorf("REMINDER_AT: %w", err))
	}
	if c.AppEnv == "production" && c.InternalAPIKey == "" {
		errs = append(errs, errors.New("INTERNAL_API_KEY is required in production"))
	}
	return errors.Join(errs...)
}

func (c *AppConfig) location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *AppConfig) schedules() (expiration, reminders scheduler.Schedule) {
	expiration, _ = scheduler.ParseDaily(c.ExpirationAt)
	reminders, _ = scheduler.ParseDaily(c.ReminderAt)
	return expiration, reminders
}
