package background

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"lunchdesk/internal/repositories"
)

const (
	BudgetResetJob  = "daily-budget-reset"
	ExpireStaleJob  = "expire-stale-orders"
	defaultJobLimit = 5 * time.Minute
)

type Config struct {
	// BudgetResetCron is a five-field crontab evaluated in Location.
	BudgetResetCron  string
	ExpireStaleEvery time.Duration
	// RetentionDays is how many days a PENDING_APPROVAL order may outlive
	// its delivery date.
	RetentionDays int
	Location      *time.Location
}

// JobScheduler runs the daily-ordering housekeeping jobs.
type JobScheduler struct {
	scheduler gocron.Scheduler
	store     repositories.Store
	cfg       Config
	now       func() time.Time
	log       *zap.Logger
	jobs      map[string]gocron.Job
	mu        sync.RWMutex
}

// NewJobScheduler creates a new job scheduler
func NewJobScheduler(store repositories.Store, cfg Config, log *zap.Logger) (*JobScheduler, error) {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	js := &JobScheduler{
		store: store,
		cfg:   cfg,
		now:   time.Now,
		log:   log.Named("jobs"),
		jobs:  make(map[string]gocron.Job),
	}

	scheduler, err := gocron.NewScheduler(
		gocron.WithLocation(cfg.Location),
		gocron.WithStopTimeout(30*time.Second),
		gocron.WithGlobalJobOptions(
			gocron.WithEventListeners(
				gocron.AfterJobRunsWithError(func(_ uuid.UUID, name string, err error) {
					js.log.Error("job failed", zap.String("job", name), zap.Error(err))
				}),
			),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	js.scheduler = scheduler

	if err := js.registerJobs(); err != nil {
		_ = scheduler.Shutdown()
		return nil, err
	}
	return js, nil
}

// Start starts the job scheduler
func (js *JobScheduler) Start() {
	js.log.Info("starting background job scheduler", zap.Int("jobs", len(js.jobs)))
	js.scheduler.Start()
}

// Stop stops the job scheduler
func (js *JobScheduler) Stop() error {
	js.log.Info("stopping background job scheduler")
	return js.scheduler.Shutdown()
}

// NextRun reports when the named job fires next.
func (js *JobScheduler) NextRun(name string) (time.Time, error) {
	js.mu.RLock()
	job, ok := js.jobs[name]
	js.mu.RUnlock()
	if !ok {
		return time.Time{}, fmt.Errorf("unknown job %q", name)
	}
	return job.NextRun()
}

func (js *JobScheduler) registerJobs() error {
	resetJob, err := js.scheduler.NewJob(
		gocron.CronJob(js.cfg.BudgetResetCron, false),
		gocron.NewTask(js.withTimeout(js.ResetBudgets)),
		gocron.WithName(BudgetResetJob),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("register %s: %w", BudgetResetJob, err)
	}

	expireJob, err := js.scheduler.NewJob(
		gocron.DurationJob(js.cfg.ExpireStaleEvery),
		gocron.NewTask(js.withTimeout(js.ExpireStaleOrders)),
		gocron.WithName(ExpireStaleJob),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("register %s: %w", ExpireStaleJob, err)
	}

	js.mu.Lock()
	js.jobs[BudgetResetJob] = resetJob
	js.jobs[ExpireStaleJob] = expireJob
	js.mu.Unlock()
	return nil
}

func (js *JobScheduler) withTimeout(fn func(context.Context) error) func() error {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), defaultJobLimit)
		defer cancel()
		return fn(ctx)
	}
}

// ResetBudgets restores every active employee's remaining daily budget to
// the daily limit.
func (js *JobScheduler) ResetBudgets(ctx context.Context) error {
	n, err := js.store.Employees().ResetDailyBudgets(ctx)
	if err != nil {
		return fmt.Errorf("reset daily budgets: %w", err)
	}
	js.log.Info("daily budgets reset", zap.Int64("employees", n))
	return nil
}

// ExpireStaleOrders cancels PENDING_APPROVAL orders whose delivery date is
// older than the retention window, together with their pending sub-orders.
func (js *JobScheduler) ExpireStaleOrders(ctx context.Context) error {
	now := js.now().In(js.cfg.Location)
	y, m, d := now.Date()
	before := time.Date(y, m, d-js.cfg.RetentionDays, 0, 0, 0, 0, js.cfg.Location)

	var (
		orders    []uuid.UUID
		cancelled int64
	)
	err := js.store.InTx(ctx, func(tx repositories.Store) error {
		var err error
		orders, err = tx.CorporateOrders().ExpireStale(ctx, before)
		if err != nil {
			return fmt.Errorf("expire corporate orders: %w", err)
		}
		cancelled, err = tx.SubOrders().CancelPendingByOrders(ctx, orders)
		if err != nil {
			return fmt.Errorf("cancel sub-orders: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if len(orders) > 0 {
		js.log.Info("stale orders expired",
			zap.Int("orders", len(orders)),
			zap.Int64("sub_orders", cancelled),
			zap.Time("before", before))
	}
	return nil
}
