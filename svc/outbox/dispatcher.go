package outbox

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	"github.com/dmitrymomot/subcycle/pkg/logger"
	"github.com/dmitrymomot/subcycle/pkg/metrics"
	"github.com/dmitrymomot/subcycle/svc/events"
	"github.com/dmitrymomot/subcycle/svc/notify"
	"github.com/dmitrymomot/subcycle/svc/orgsync"
	"github.com/dmitrymomot/subcycle/svc/subscription"
)

// Side-effect targets, used as metric labels.
const (
	TargetSync    = "sync"
	TargetEvent   = "event"
	TargetNotify  = "notify"
	defaultShards = 4
)

// Dispatcher runs the side effects of committed lifecycle changes: the
// status push, event publication and the owner notification. Changes of
// one organization are handled in commit order by the same worker; a
// failing or panicking side effect is logged and does not affect the
// others. Dispatcher implements subscription.Dispatcher.
type Dispatcher struct {
	syncer    orgsync.Syncer
	publisher events.Publisher
	notifier  notify.Notifier
	log       *slog.Logger
	timeout   time.Duration
	shards    int
	buffer    int

	queues []*queue
	wg     conc.WaitGroup
}

type job struct {
	ctx    context.Context
	change subscription.Change
}

type Option func(*Dispatcher)

func WithSyncer(s orgsync.Syncer) Option {
	return func(d *Dispatcher) {
		if s != nil {
			d.syncer = s
		}
	}
}

func WithPublisher(p events.Publisher) Option {
	return func(d *Dispatcher) {
		if p != nil {
			d.publisher = p
		}
	}
}

func WithNotifier(n notify.Notifier) Option {
	return func(d *Dispatcher) {
		if n != nil {
			d.notifier = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}

// WithTimeout bounds all side effects of one change. Default 30s.
func WithTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t > 0 {
			d.timeout = t
		}
	}
}

// WithWorkers sets the number of workers and the expected backlog of each.
// Queues grow past the backlog instead of blocking Dispatch; a warning is
// logged every time a queue grows by another backlog's worth of changes.
// Zero workers runs side effects inline in Dispatch.
func WithWorkers(workers, buffer int) Option {
	return func(d *Dispatcher) {
		if workers >= 0 {
			d.shards = workers
		}
		if buffer >= 0 {
			d.buffer = buffer
		}
	}
}

func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		syncer:    orgsync.Nop{},
		publisher: events.Discard,
		notifier:  notify.Nop{},
		log:       slog.Default(),
		timeout:   30 * time.Second,
		shards:    defaultShards,
		buffer:    64,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.With(logger.Component("outbox"))

	d.queues = make([]*queue, d.shards)
	for i := range d.queues {
		q := newQueue(d.buffer)
		d.queues[i] = q
		d.wg.Go(func() {
			for {
				j, ok := q.pop()
				if !ok {
					return
				}
				d.handle(j.ctx, j.change)
			}
		})
	}
	return d
}

// Dispatch queues c and returns without waiting for a worker, so a slow
// side effect never holds back the caller's transition. The request context
// is detached so that side effects outlive the caller. After Close, changes
// are handled inline.
func (d *Dispatcher) Dispatch(ctx context.Context, c subscription.Change) {
	ctx = context.WithoutCancel(ctx)

	if len(d.queues) == 0 {
		d.handle(ctx, c)
		return
	}
	n, ok := d.queues[d.shard(c)].push(job{ctx: ctx, change: c})
	if !ok {
		d.handle(ctx, c)
		return
	}
	if d.buffer > 0 && n%d.buffer == 0 {
		d.log.WarnContext(ctx, "post-commit queue is backing up",
			slog.Int("pending", n),
			logger.OrganizationID(c.Subscription.OrganizationID))
	}
}

// Pending reports the number of queued changes not yet picked up by a worker.
func (d *Dispatcher) Pending() int {
	n := 0
	for _, q := range d.queues {
		n += q.len()
	}
	return n
}

// Close stops accepting queued work and waits for pending changes.
func (d *Dispatcher) Close() {
	for _, q := range d.queues {
		q.close()
	}
	d.wg.Wait()
}

func (d *Dispatcher) shard(c subscription.Change) int {
	h := fnv.New32a()
	_, _ = h.Write(c.Subscription.OrganizationID[:])
	return int(h.Sum32() % uint32(len(d.queues)))
}

func (d *Dispatcher) handle(ctx context.Context, c subscription.Change) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	sub := &c.Subscription
	if c.Sync {
		d.run(ctx, TargetSync, c, func() error {
			return d.syncer.PushStatus(ctx, sub.OrganizationID, sub.Status, sub.TrialEndsAt)
		})
	}
	if c.Event.Payload != nil {
		d.run(ctx, TargetEvent, c, func() error {
			return d.publisher.Publish(ctx, c.Event)
		})
	}
	if fn := d.notification(c); fn != nil {
		d.run(ctx, TargetNotify, c, func() error { return fn(ctx) })
	}
}

func (d *Dispatcher) notification(c subscription.Change) func(context.Context) error {
	sub := &c.Subscription
	switch p := c.Event.Payload.(type) {
	case events.TrialStarted:
		return func(ctx context.Context) error { return d.notifier.NotifyTrialStarted(ctx, sub) }
	case events.TrialExpiring:
		return func(ctx context.Context) error { return d.notifier.NotifyTrialExpiring(ctx, sub, p.DaysLeft) }
	case events.TrialExpired:
		return func(ctx context.Context) error { return d.notifier.NotifyTrialExpired(ctx, sub) }
	case events.SubscriptionActivated:
		return func(ctx context.Context) error { return d.notifier.NotifySubscriptionActivated(ctx, sub) }
	case events.SubscriptionCanceled:
		return func(ctx context.Context) error { return d.notifier.NotifySubscriptionCanceled(ctx, sub) }
	case events.SubscriptionSuspended:
		return func(ctx context.Context) error { return d.notifier.NotifySubscriptionSuspended(ctx, sub) }
	case events.PaymentFailed:
		return func(ctx context.Context) error { return d.notifier.NotifyPaymentFailed(ctx, sub, p.Reason) }
	default:
		return nil
	}
}

func (d *Dispatcher) run(ctx context.Context, target string, c subscription.Change, fn func() error) {
	var err error
	if r := panics.Try(func() { err = fn() }); r != nil {
		err = fmt.Errorf("panic: %v", r.Value)
	}
	if err == nil {
		return
	}
	metrics.DispatchFailuresTotal.WithLabelValues(target).Inc()
	d.log.ErrorContext(ctx, "post-commit side effect failed",
		slog.String("target", target),
		logger.Event(c.Event.Kind()),
		logger.OrganizationID(c.Subscription.OrganizationID),
		logger.SubscriptionID(c.Subscription.ID),
		logger.Status(c.Subscription.Status),
		logger.Error(err),
	)
}
