package redis

import "time"

type Config struct {
	ConnectionURL  string        `env:"REDIS_URL"`                               // ConnectionURL, e.g. "redis://:password@localhost:6379/0". Empty disables Redis-backed features.
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`     // RetryAttempts is the number of connection attempts.
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s"`    // RetryInterval is the delay between attempts.
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`  // ConnectTimeout bounds the whole connect sequence.
	KeyPrefix      string        `env:"REDIS_KEY_PREFIX" envDefault:"subcycle:"` // KeyPrefix namespaces every key written by the service.
}

// Enabled reports whether a Redis URL is configured.
func (c Config) Enabled() bool {
	return c.ConnectionURL != ""
}
