package config_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/subcycle/pkg/config"
)

type defaultsConfig struct {
	Name     string        `env:"CFG_TEST_DEFAULT_NAME" envDefault:"subcycle"`
	Workers  int           `env:"CFG_TEST_DEFAULT_WORKERS" envDefault:"4"`
	Interval time.Duration `env:"CFG_TEST_DEFAULT_INTERVAL" envDefault:"30s"`
}

type envConfig struct {
	TrialDays int  `env:"CFG_TEST_TRIAL_DAYS" envDefault:"21"`
	Enabled   bool `env:"CFG_TEST_ENABLED"`
}

type requiredConfig struct {
	URL string `env:"CFG_TEST_REQUIRED_URL,required"`
}

type validatedConfig struct {
	Min int `env:"CFG_TEST_MIN" envDefault:"10"`
	Max int `env:"CFG_TEST_MAX" envDefault:"5"`
}

func (c *validatedConfig) Validate() error {
	if c.Min > c.Max {
		return errors.New("min must not exceed max")
	}
	return nil
}

type concurrentConfig struct {
	Value string `env:"CFG_TEST_CONCURRENT" envDefault:"same"`
}

func TestLoad_Defaults(t *testing.T) {
	var cfg defaultsConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, "subcycle", cfg.Name)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 30*time.Second, cfg.Interval)
}

func TestLoad_FromEnvironmentAndCached(t *testing.T) {
	t.Setenv("CFG_TEST_TRIAL_DAYS", "14")
	t.Setenv("CFG_TEST_ENABLED", "true")

	var first envConfig
	require.NoError(t, config.Load(&first))
	assert.Equal(t, 14, first.TrialDays)
	assert.True(t, first.Enabled)

	t.Setenv("CFG_TEST_TRIAL_DAYS", "30")
	var second envConfig
	require.NoError(t, config.Load(&second))
	assert.Equal(t, 14, second.TrialDays, "second load must come from cache")

	config.Reset()
	var third envConfig
	require.NoError(t, config.Load(&third))
	assert.Equal(t, 30, third.TrialDays)
}

func TestLoad_Required(t *testing.T) {
	var cfg requiredConfig
	err := config.Load(&cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrParsingConfig)

	assert.Panics(t, func() {
		var again requiredConfig
		config.MustLoad(&again)
	})
}

func TestLoad_Validator(t *testing.T) {
	var cfg validatedConfig
	err := config.Load(&cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "min must not exceed max")
}

func TestLoad_NilPointer(t *testing.T) {
	var cfg *defaultsConfig
	assert.ErrorIs(t, config.Load(cfg), config.ErrNilPointer)
}

func TestLoad_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	results := make([]string, 20)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var cfg concurrentConfig
			if err := config.Load(&cfg); err == nil {
				results[i] = cfg.Value
			}
		}(i)
	}
	wg.Wait()
	for _, v := range results {
		assert.Equal(t, "same", v)
	}
}
