// Command subcycle runs the subscription lifecycle service: the HTTP API,
// the lifecycle scheduler and the post-commit side effects.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sourcegraph/conc/pool"

	"github.com/dmitrymomot/subcycle/api"
	"github.com/dmitrymomot/subcycle/migrations"
	"github.com/dmitrymomot/subcycle/pkg/config"
	"github.com/dmitrymomot/subcycle/pkg/email"
	"github.com/dmitrymomot/subcycle/pkg/httpserver"
	"github.com/dmitrymomot/subcycle/pkg/logger"
	"github.com/dmitrymomot/subcycle/pkg/metrics"
	"github.com/dmitrymomot/subcycle/pkg/pg"
	"github.com/dmitrymomot/subcycle/pkg/redis"
	"github.com/dmitrymomot/subcycle/pkg/requestid"
	"github.com/dmitrymomot/subcycle/pkg/scheduler"
	"github.com/dmitrymomot/subcycle/svc/billing"
	"github.com/dmitrymomot/subcycle/svc/events"
	"github.com/dmitrymomot/subcycle/svc/lifecycle"
	"github.com/dmitrymomot/subcycle/svc/limits"
	"github.com/dmitrymomot/subcycle/svc/notify"
	"github.com/dmitrymomot/subcycle/svc/orgsync"
	"github.com/dmitrymomot/subcycle/svc/outbox"
	"github.com/dmitrymomot/subcycle/svc/plan"
	"github.com/dmitrymomot/subcycle/svc/subscription"
	"github.com/dmitrymomot/subcycle/svc/usage"
)

func main() {
	var app AppConfig
	if err := config.Load(&app); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(
		logger.WithLevelName(app.LogLevel),
		logger.WithEnvironment(app.AppEnv, app.AppName),
		logger.WithContextValue("request_id", requestid.ContextKey),
	)
	logger.SetAsDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, app, log); err != nil {
		log.Error("service stopped with error", logger.Error(err))
		os.Exit(1)
	}
	log.Info("service stopped")
}

// storage groups the persistence backends selected by STORAGE_DRIVER.
type storage struct {
	subscriptions subscription.Store
	ledger        usage.Ledger
	invoices      billing.InvoiceStore
	plans         plan.Source
	checks        []httpserver.Check
}

func run(ctx context.Context, app AppConfig, log *slog.Logger) error {
	seed, err := planSource(app)
	if err != nil {
		return err
	}

	store, closeStore, err := openStorage(ctx, app, seed, log)
	if err != nil {
		return err
	}
	defer closeStore()

	catalog, err := plan.NewCatalog(ctx, store.plans)
	if err != nil {
		return fmt.Errorf("load plan catalog: %w", err)
	}

	rdb, keyPrefix, err := openRedis(ctx, log)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
		store.checks = append(store.checks, httpserver.Check{Name: "redis", Probe: redis.Healthcheck(rdb)})
	}

	notifier, err := newNotifier(app, catalog, log)
	if err != nil {
		return err
	}

	dispatcherOpts := []outbox.Option{
		outbox.WithLogger(log),
		outbox.WithNotifier(notifier),
		outbox.WithWorkers(app.DispatchWorkers, 64),
		outbox.WithTimeout(app.DispatchTimeout),
	}
	var syncCfg orgsync.Config
	if err := config.Load(&syncCfg); err != nil {
		return fmt.Errorf("load org sync config: %w", err)
	}
	if syncCfg.Enabled() {
		syncer, err := orgsync.NewHTTPSyncer(nil, syncCfg, orgsync.WithLogger(log))
		if err != nil {
			return fmt.Errorf("org sync: %w", err)
		}
		dispatcherOpts = append(dispatcherOpts, outbox.WithSyncer(syncer))
	} else {
		log.Warn("organization service sync disabled, ORG_SERVICE_URL is empty")
	}
	if rdb != nil {
		dispatcherOpts = append(dispatcherOpts,
			outbox.WithPublisher(events.NewRedisStreamPublisher(rdb, app.EventsStream, app.EventsMaxLen)))
	}
	dispatcher := outbox.New(dispatcherOpts...)
	defer dispatcher.Close()

	manager := subscription.NewManager(store.subscriptions, catalog,
		subscription.WithLogger(log),
		subscription.WithTrialDays(app.TrialDays),
		subscription.WithDispatcher(dispatcher),
	)
	recorder := usage.NewRecorder(store.ledger, manager, catalog, usage.WithLogger(log))
	limitsSvc := limits.NewService(manager, catalog, recorder, limits.WithLogger(log))
	payments := billing.NewProcessor(manager, store.invoices, billing.WithLogger(log))

	sched, err := newScheduler(app, store.subscriptions, manager, dispatcher, rdb, keyPrefix, log)
	if err != nil {
		return err
	}

	httpCfg := httpserver.Config{}
	if err := config.Load(&httpCfg); err != nil {
		return fmt.Errorf("load http config: %w", err)
	}
	router := api.NewRouter(api.Deps{
		Subscriptions: manager,
		Limits:        limitsSvc,
		Usage:         recorder,
		Plans:         catalog,
		Payments:      payments,
		APIKey:        app.InternalAPIKey,
		Checks:        store.checks,
		Logger:        log,
	})
	if app.InternalAPIKey == "" {
		log.Warn("INTERNAL_API_KEY is empty, /v1 is not protected")
	}

	p := pool.New().WithErrors().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) error {
		return httpserver.New(httpCfg, log).Run(ctx, router)
	})
	p.Go(func(ctx context.Context) error {
		if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("scheduler: %w", err)
		}
		return nil
	})
	return p.Wait()
}

func planSource(app AppConfig) (plan.Source, error) {
	if app.PlansFile == "" {
		return plan.DefaultPlans(), nil
	}
	if _, err := os.Stat(app.PlansFile); err != nil {
		return nil, fmt.Errorf("plans file: %w", err)
	}
	return plan.YAMLSource{Path: app.PlansFile}, nil
}

func openStorage(ctx context.Context, app AppConfig, seed plan.Source, log *slog.Logger) (storage, func(), error) {
	if app.StorageDriver == storageMemory {
		log.Warn("using in-memory storage, data is lost on restart")
		return storage{
			subscriptions: subscription.NewMemoryStore(),
			ledger:        usage.NewMemoryLedger(),
			invoices:      billing.NewMemoryInvoiceStore(),
			plans:         seed,
		}, func() {}, nil
	}

	var cfg pg.Config
	if err := config.Load(&cfg); err != nil {
		return storage{}, nil, fmt.Errorf("load postgres config: %w", err)
	}
	db, err := pg.Connect(ctx, cfg)
	if err != nil {
		return storage{}, nil, err
	}
	if cfg.AutoMigrate {
		if err := pg.Migrate(ctx, db, migrations.FS, cfg, log); err != nil {
			db.Close()
			return storage{}, nil, err
		}
	}
	if err := seedPlans(ctx, db, seed); err != nil {
		db.Close()
		return storage{}, nil, err
	}
	if err := metrics.RegisterPgxPool(prometheus.DefaultRegisterer, db); err != nil {
		log.Warn("pgxpool metrics not registered", logger.Error(err))
	}

	return storage{
		subscriptions: subscription.NewPGStore(db),
		ledger:        usage.NewPGLedger(db),
		invoices:      billing.NewPGInvoiceStore(db),
		plans:         plan.NewPGSource(db),
		checks:        []httpserver.Check{{Name: "postgres", Probe: pg.Healthcheck(db)}},
	}, db.Close, nil
}

// seedPlans mirrors the configured catalog into the plans table so that the
// database stays the source of truth for foreign keys.
func seedPlans(ctx context.Context, db *pgxpool.Pool, seed plan.Source) error {
	plans, err := seed.Load(ctx)
	if err != nil {
		return fmt.Errorf("load seed plans: %w", err)
	}
	if err := plan.NewPGSource(db).Seed(ctx, plans); err != nil {
		return fmt.Errorf("seed plans: %w", err)
	}
	return nil
}

// openRedis returns a nil client when REDIS_URL is empty.
func openRedis(ctx context.Context, log *slog.Logger) (*goredis.Client, string, error) {
	var cfg redis.Config
	if err := config.Load(&cfg); err != nil {
		return nil, "", fmt.Errorf("load redis config: %w", err)
	}
	if !cfg.Enabled() {
		log.Info("redis disabled, events are not published and scheduler runs without leases")
		return nil, "", nil
	}
	client, err := redis.Connect(ctx, cfg)
	if err != nil {
		return nil, "", err
	}
	return client, cfg.KeyPrefix, nil
}

func newNotifier(app AppConfig, catalog *plan.Catalog, log *slog.Logger) (notify.Notifier, error) {
	var mailCfg email.Config
	if err := config.Load(&mailCfg); err != nil {
		return nil, fmt.Errorf("load email config: %w", err)
	}
	var sender email.EmailSender
	if mailCfg.PostmarkEnabled() {
		s, err := email.NewPostmarkClient(mailCfg)
		if err != nil {
			return nil, fmt.Errorf("postmark: %w", err)
		}
		sender = s
	} else {
		log.Info("postmark not configured, emails are written to disk", slog.String("dir", mailCfg.DevDir))
		sender = email.NewDevSender(mailCfg.DevDir)
	}

	var notifyCfg notify.EmailConfig
	if err := config.Load(&notifyCfg); err != nil {
		return nil, fmt.Errorf("load notification config: %w", err)
	}
	notifyCfg.TrialDays = app.TrialDays
	notifyCfg.GraceDays = app.GracePeriodDays

	return notify.NewMulti(log,
		notify.NewLogNotifier(log),
		notify.NewEmailNotifier(sender, notifyCfg,
			notify.WithEmailLogger(log),
			notify.WithLocation(app.location()),
			notify.WithPlans(catalog),
		),
	), nil
}

func newScheduler(
	app AppConfig,
	finder lifecycle.Finder,
	transitions lifecycle.Transitions,
	dispatcher subscription.Dispatcher,
	rdb *goredis.Client,
	keyPrefix string,
	log *slog.Logger,
) (*scheduler.Scheduler, error) {
	schedOpts := []scheduler.Option{
		scheduler.WithLogger(log),
		scheduler.WithCheckInterval(app.SchedulerCheckInterval),
		scheduler.WithLocation(app.location()),
	}
	scanOpts := []lifecycle.Option{
		lifecycle.WithLogger(log),
		lifecycle.WithDispatcher(dispatcher),
		lifecycle.WithGraceDays(app.GracePeriodDays),
		lifecycle.WithPastDueDays(app.PastDueDays),
		lifecycle.WithWorkers(app.ScanWorkers),
	}
	if rdb != nil {
		schedOpts = append(schedOpts, scheduler.WithLocker(redis.NewLocker(rdb, keyPrefix+"lock:"), 0))
		scanOpts = append(scanOpts, lifecycle.WithDeduper(lifecycle.NewRedisDeduper(rdb, keyPrefix+"reminder:")))
	}

	sched := scheduler.New(schedOpts...)
	expiration, reminders := app.schedules()
	scanner := lifecycle.NewScanner(finder, transitions, scanOpts...)
	if err := scanner.Register(sched, lifecycle.Schedules{Expiration: expiration, Reminders: reminders}); err != nil {
		return nil, fmt.Errorf("register lifecycle jobs: %w", err)
	}
	return sched, nil
}
