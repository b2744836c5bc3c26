package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"

	"github.com/dmitrymomot/subcycle/pkg/logger"
	"github.com/dmitrymomot/subcycle/pkg/metrics"
	"github.com/dmitrymomot/subcycle/svc/subscription"
)

const (
	DefaultGraceDays   = 7
	DefaultPastDueDays = 7
	DefaultWorkers     = 8
)

// DefaultReminderOffsets are the days before trial end when owners are
// reminded.
var DefaultReminderOffsets = []int{7, 3, 1}

// Finder selects subscriptions for a scan step.
type Finder interface {
	Find(ctx context.Context, q subscription.Query) ([]*subscription.Subscription, error)
}

// Transitions are the manager operations driven by the expiration scan.
type Transitions interface {
	ExpireTrial(ctx context.Context, id uuid.UUID) (*subscription.Subscription, error)
	Suspend(ctx context.Context, id uuid.UUID, changedBefore time.Time) (*subscription.Subscription, error)
	End(ctx context.Context, id uuid.UUID) (*subscription.Subscription, error)
}

// Report counts the outcome of one scan run.
type Report struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

func (r *Report) add(o Report) {
	r.Processed += o.Processed
	r.Failed += o.Failed
	r.Skipped += o.Skipped
}

// Scanner runs the periodic lifecycle scans. Items are handled by a bounded
// worker pool; one failing item never stops the rest.
type Scanner struct {
	finder      Finder
	transitions Transitions
	dispatcher  subscription.Dispatcher
	deduper     Deduper
	now         func() time.Time
	log         *slog.Logger
	graceDays   int
	pastDueDays int
	offsets     []int
	workers     int
}

// NewScanner panics if finder or transitions is nil.
func NewScanner(finder Finder, transitions Transitions, opts ...Option) *Scanner {
	if finder == nil || transitions == nil {
		panic("lifecycle: finder and transitions are required")
	}
	s := &Scanner{
		finder:      finder,
		transitions: transitions,
		dispatcher:  subscription.DispatcherFunc(func(context.Context, subscription.Change) {}),
		now:         time.Now,
		log:         slog.Default(),
		graceDays:   DefaultGraceDays,
		pastDueDays: DefaultPastDueDays,
		offsets:     DefaultReminderOffsets,
		workers:     DefaultWorkers,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.Component("lifecycle"))
	return s
}

func (s *Scanner) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// RunExpiration expires overdue trials, suspends lapsed grace periods and
// past-due subscriptions, and ends canceled subscriptions whose access
// window is over. Query failures are joined into the returned error after
// all steps have run.
func (s *Scanner) RunExpiration(ctx context.Context) (Report, error) {
	now := s.clock()
	var (
		report Report
		errs   []error
	)
	graceCutoff := now.AddDate(0, 0, -s.graceDays)
	pastDueCutoff := now.AddDate(0, 0, -s.pastDueDays)

	steps := []struct {
		name  string
		query subscription.Query
		apply func(context.Context, uuid.UUID) (*subscription.Subscription, error)
	}{
		{
			name: "expire_trial",
			query: subscription.Query{
				Statuses:        []subscription.Status{subscription.StatusTrialing},
				TrialEndsBefore: now,
			},
			apply: s.transitions.ExpireTrial,
		},
		{
			name: "suspend_grace",
			query: subscription.Query{
				Statuses:            []subscription.Status{subscription.StatusGracePeriod},
				StatusChangedBefore: graceCutoff,
			},
			apply: s.suspendBefore(graceCutoff),
		},
		{
			name: "suspend_past_due",
			query: subscription.Query{
				Statuses:            []subscription.Status{subscription.StatusPastDue},
				StatusChangedBefore: pastDueCutoff,
			},
			apply: s.suspendBefore(pastDueCutoff),
		},
		{
			name: "end_canceled",
			query: subscription.Query{
				Statuses:     []subscription.Status{subscription.StatusCanceled},
				EndDueBefore: now,
			},
			apply: s.transitions.End,
		},
	}

	for _, step := range steps {
		subs, err := s.finder.Find(ctx, step.query)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", step.name, err))
			s.log.ErrorContext(ctx, "scan query failed", slog.String("step", step.name), logger.Error(err))
			continue
		}
		report.add(s.each(ctx, "expiration", step.name, subs, func(ctx context.Context, sub *subscription.Subscription) (bool, error) {
			updated, err := step.apply(ctx, sub.ID)
			if err != nil {
				return false, err
			}
			return updated != nil && updated.Status != sub.Status, nil
		}))
	}

	s.log.InfoContext(ctx, "expiration scan finished",
		slog.Int("processed", report.Processed),
		slog.Int("failed", report.Failed),
		slog.Int("skipped", report.Skipped),
	)
	return report, errors.Join(errs...)
}

// suspendBefore binds the cutoff so that a record whose status changed
// after the query ran is not suspended early.
func (s *Scanner) suspendBefore(cutoff time.Time) func(context.Context, uuid.UUID) (*subscription.Subscription, error) {
	return func(ctx context.Context, id uuid.UUID) (*subscription.Subscription, error) {
		return s.transitions.Suspend(ctx, id, cutoff)
	}
}

// RunReminders emits a trial-expiring event for every trial ending within
// one of the reminder windows [now+offset, now+offset+1d). Nothing is
// written to the subscription.
func (s *Scanner) RunReminders(ctx context.Context) (Report, error) {
	now := s.clock()
	var (
		report Report
		errs   []error
	)

	for _, offset := range s.offsets {
		from := now.AddDate(0, 0, offset)
		subs, err := s.finder.Find(ctx, subscription.Query{
			Statuses:        []subscription.Status{subscription.StatusTrialing},
			TrialEndsFrom:   from,
			TrialEndsBefore: from.AddDate(0, 0, 1),
		})
		step := fmt.Sprintf("remind_%dd", offset)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", step, err))
			s.log.ErrorContext(ctx, "scan query failed", slog.String("step", step), logger.Error(err))
			continue
		}
		report.add(s.each(ctx, "reminder", step, subs, func(ctx context.Context, sub *subscription.Subscription) (bool, error) {
			return s.remind(ctx, sub, offset, now)
		}))
	}

	s.log.InfoContext(ctx, "reminder scan finished",
		slog.Int("processed", report.Processed),
		slog.Int("failed", report.Failed),
		slog.Int("skipped", report.Skipped),
	)
	return report, errors.Join(errs...)
}

// each applies fn to every subscription on the worker pool. fn reports
// whether it changed anything; false counts as skipped.
func (s *Scanner) each(
	ctx context.Context,
	scan, step string,
	subs []*subscription.Subscription,
	fn func(context.Context, *subscription.Subscription) (bool, error),
) Report {
	var processed, failed, skipped atomic.Int64

	p := pool.New().WithMaxGoroutines(max(s.workers, 1))
	for _, sub := range subs {
		p.Go(func() {
			var (
				changed bool
				err     error
			)
			if r := panics.Try(func() { changed, err = fn(ctx, sub) }); r != nil {
				err = fmt.Errorf("panic: %v", r.Value)
			}

			outcome := "processed"
			switch {
			case err != nil:
				outcome = "failed"
				failed.Add(1)
				s.log.ErrorContext(ctx, "scan item failed",
					slog.String("scan", scan),
					slog.String("step", step),
					logger.OrganizationID(sub.OrganizationID),
					logger.SubscriptionID(sub.ID),
					logger.Error(err),
				)
			case !changed:
				outcome = "skipped"
				skipped.Add(1)
			default:
				processed.Add(1)
			}
			metrics.ScanItemsTotal.WithLabelValues(scan, step, outcome).Inc()
		})
	}
	p.Wait()

	return Report{
		Processed: int(processed.Load()),
		Failed:    int(failed.Load()),
		Skipped:   int(skipped.Load()),
	}
}
