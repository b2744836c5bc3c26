package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() AppConfig {
	return AppConfig{
		AppEnv:        "development",
		StorageDriver: storageMemory,
		TrialDays:     21,
		Timezone:      "UTC",
		ExpirationAt:  "02:00",
		ReminderAt:    "08:00",
	}
}

func TestAppConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr string
	}{
		{name: "defaults", mutate: func(*AppConfig) {}},
		{name: "postgres", mutate: func(c *AppConfig) { c.StorageDriver = storagePostgres }},
		{name: "unknown driver", mutate: func(c *AppConfig) { c.StorageDriver = "sqlite" }, wantErr: "STORAGE_DRIVER"},
		{name: "zero trial", mutate: func(c *AppConfig) { c.TrialDays = 0 }, wantErr: "TRIAL_DAYS"},
		{name: "negative grace", mutate: func(c *AppConfig) { c.GracePeriodDays = -1 }, wantErr: "GRACE_PERIOD_DAYS"},
		{name: "bad timezone", mutate: func(c *AppConfig) { c.Timezone = "Mars/Olympus" }, wantErr: "TIMEZONE"},
		{name: "bad expiration time", mutate: func(c *AppConfig) { c.ExpirationAt = "25:00" }, wantErr: "EXPIRATION_AT"},
		{name: "bad reminder time", mutate: func(c *AppConfig) { c.ReminderAt = "8am" }, wantErr: "REMINDER_AT"},
		{
			name:    "production without api key",
			mutate:  func(c *AppConfig) { c.AppEnv = "production" },
			wantErr: "INTERNAL_API_KEY",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAppConfig_Schedules(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Timezone = "America/Bogota"
	loc := cfg.location()
	assert.Equal(t, "America/Bogota", loc.String())

	expiration, reminders := cfg.schedules()
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 3, 1, 2, 0, 0, 0, loc), expiration.Next(from))
	assert.Equal(t, time.Date(2026, 3, 1, 8, 0, 0, 0, loc), reminders.Next(from))
}
