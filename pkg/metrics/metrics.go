// Package metrics holds the Prometheus collectors of the service. Collectors
// are registered on the default registry at init and served by Handler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "subcycle"

var (
	// TransitionsTotal counts committed lifecycle transitions by operation and resulting status.
	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Committed subscription transitions by operation and resulting status.",
		},
		[]string{"operation", "status"},
	)

	// TransitionErrorsTotal counts rejected or failed transition attempts.
	TransitionErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transition_errors_total",
			Help:      "Failed subscription transition attempts by operation.",
		},
		[]string{"operation"},
	)

	// LimitDecisionsTotal counts limit evaluations by feature and outcome (allowed, warning, denied, inactive).
	LimitDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "limit_decisions_total",
			Help:      "Feature limit decisions by feature and outcome.",
		},
		[]string{"feature", "outcome"},
	)

	// UsageRecordsTotal counts appended usage records.
	UsageRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "usage_records_total",
			Help:      "Appended usage records by feature and whether the limit was exceeded.",
		},
		[]string{"feature", "exceeded"},
	)

	// ScanItemsTotal counts subscriptions handled by lifecycle scans.
	ScanItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_items_total",
			Help:      "Subscriptions handled by lifecycle scans by scan, step and outcome.",
		},
		[]string{"scan", "step", "outcome"},
	)

	// JobRunsTotal counts scheduled job executions.
	JobRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Scheduled job executions by job and outcome.",
		},
		[]string{"job", "outcome"},
	)

	// DispatchFailuresTotal counts post-commit side effects that failed.
	DispatchFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_failures_total",
			Help:      "Failed post-commit side effects by target (sync, event, notify).",
		},
		[]string{"target"},
	)

	// PaymentEventsTotal counts processed payment provider events.
	PaymentEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_events_total",
			Help:      "Processed payment events by type and outcome.",
		},
		[]string{"type", "outcome"},
	)
)

// Outcome returns "ok" for a nil error and "error" otherwise.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
