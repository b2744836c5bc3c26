package logger

import (
	"fmt"
	"log/slog"
	"time"
)

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// OrganizationID records the organization identifier under "organization_id".
// A nil id yields an empty Attr.
func OrganizationID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.String("organization_id", fmt.Sprint(id))
}

// SubscriptionID records the subscription identifier under "subscription_id".
// A nil id yields an empty Attr.
func SubscriptionID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.String("subscription_id", fmt.Sprint(id))
}

// Status records a lifecycle status under the key "status".
func Status[T ~string](s T) slog.Attr {
	return slog.String("status", string(s))
}

// Transition groups the from/to statuses of a lifecycle change.
func Transition[T ~string](from, to T) slog.Attr {
	return slog.Group("transition",
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)
}

// Feature records a feature code under the key "feature".
func Feature[T ~string](code T) slog.Attr {
	return slog.String("feature", string(code))
}

// Plan records a plan code under the key "plan".
func Plan(code string) slog.Attr {
	return slog.String("plan", code)
}

// Event records the event name under the key "event".
func Event[T ~string](name T) slog.Attr {
	return slog.String("event", string(name))
}

// Job records a scheduled job name under the key "job".
func Job(name string) slog.Attr {
	return slog.String("job", name)
}

func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// RequestID records the request identifier under the key "request_id".
func RequestID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("request_id", id)
}
