package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// Check is a named readiness probe, e.g. pg.Healthcheck(pool).
type Check struct {
	Name  string
	Probe func(context.Context) error
}

// HealthHandler answers liveness when no checks are given and readiness
// otherwise. Every check runs with timeout; the response lists each result
// and is 503 when any check failed.
func HealthHandler(log *slog.Logger, timeout time.Duration, checks ...Check) http.HandlerFunc {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for _, c := range checks {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			err := c.Probe(ctx)
			cancel()
			if err != nil {
				status = http.StatusServiceUnavailable
				results[c.Name] = "fail"
				if log != nil {
					log.ErrorContext(r.Context(), "readiness check failed",
						slog.String("check", c.Name),
						slog.String("error", err.Error()))
				}
				continue
			}
			results[c.Name] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": http.StatusText(status),
			"checks": results,
		})
	}
}
