// Package redis wraps github.com/redis/go-redis/v9 with the pieces the
// service needs: Connect with retries, a readiness probe and Locker, which
// provides SET NX based leases (one scheduler replica per job run) and
// once-per-window marks (reminder dedupe).
//
// Redis is optional. When REDIS_URL is empty Config.Enabled reports false and
// callers fall back to in-process implementations.
package redis
