package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Validator is implemented by config structs that check cross-field rules
// after environment parsing.
type Validator interface {
	Validate() error
}

type entry struct {
	once  sync.Once
	value any
	err   error
}

var (
	cache sync.Map // reflect.Type -> *entry

	dotenvOnce sync.Once
)

// Load parses environment variables into v according to its `env` tags.
// Each config type is parsed once per process; later calls receive a copy of
// the cached value. A .env file in the working directory is loaded on first
// use when present.
//
// When *T implements Validator, Validate runs after parsing and its error is
// returned joined with ErrInvalidConfig. Failed loads are cached as well so a
// broken environment fails consistently.
//
//	type SyncConfig struct {
//		URL     string        `env:"SYNC_URL"`
//		Timeout time.Duration `env:"SYNC_TIMEOUT" envDefault:"5s"`
//	}
//
//	var cfg SyncConfig
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}

	dotenvOnce.Do(func() {
		// a missing .env file is fine
		_ = godotenv.Load()
	})

	e, _ := cache.LoadOrStore(typeKey[T](), &entry{})
	ent := e.(*entry)
	ent.once.Do(func() {
		var parsed T
		if err := env.Parse(&parsed); err != nil {
			ent.err = errors.Join(ErrParsingConfig, err)
			return
		}
		if val, ok := any(&parsed).(Validator); ok {
			if err := val.Validate(); err != nil {
				ent.err = errors.Join(ErrInvalidConfig, err)
				return
			}
		}
		ent.value = parsed
	})

	if ent.err != nil {
		return ent.err
	}
	cached, ok := ent.value.(T)
	if !ok {
		return ErrConfigNotLoaded
	}
	*v = cached
	return nil
}

// MustLoad works like Load but panics on failure.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}

// Reset drops every cached configuration. Intended for tests that change the
// environment between loads.
func Reset() {
	cache.Range(func(k, _ any) bool {
		cache.Delete(k)
		return true
	})
}

func typeKey[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
