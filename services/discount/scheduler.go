package discount

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"pk55-api/database"
	"pk55-api/logger"
	"pk55-api/metrics"
	"pk55-api/models"
)

// Schedule fires at minute 0 of every hour.
const Schedule = "0 * * * *"

type Result int

const (
	Unchanged Result = iota
	Updated
	Created
)

func (r Result) String() string {
	switch r {
	case Updated:
		return metrics.TickUpdated
	case Created:
		return metrics.TickCreated
	default:
		return metrics.TickUnchanged
	}
}

var ErrAlreadyStarted = errors.New("discount scheduler already started")

// Scheduler recomputes the discount of the latest banner every hour and
// writes it only when it changed. The stored banner is the only state
// carried between ticks.
type Scheduler struct {
	store   database.BannerStore
	now     func() time.Time
	metrics *metrics.Metrics

	// tickMu serializes Initialize, cron ticks and manual Tick calls.
	tickMu sync.Mutex

	mu      sync.Mutex
	cron    *cron.Cron
	entryID cron.EntryID
}

type Option func(*Scheduler)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

func NewScheduler(store database.BannerStore, opts ...Option) *Scheduler {
	s := &Scheduler{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize runs a single tick at process start. Failures are logged and
// never returned.
func (s *Scheduler) Initialize(ctx context.Context) {
	logger.Info("Initializing discount based on Pakistan time")
	s.run(ctx)
}

// Start registers the hourly tick and starts the cron runner.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return ErrAlreadyStarted
	}

	c := cron.New(
		cron.WithLocation(Location),
		cron.WithLogger(logger.Cron()),
		cron.WithChain(cron.Recover(logger.Cron()), cron.SkipIfStillRunning(logger.Cron())),
	)

	id, err := c.AddFunc(Schedule, func() {
		logger.Info("Running scheduled discount update")
		s.run(context.Background())
	})
	if err != nil {
		return fmt.Errorf("failed to register discount schedule: %w", err)
	}

	s.cron = c
	s.entryID = id
	c.Start()

	logger.Info("Discount scheduler started",
		zap.String("schedule", Schedule),
		zap.String("timezone", Location.String()),
		zap.Time("next_run", c.Entry(id).Next))
	return nil
}

// Stop removes the schedule. The returned context is done once a tick that
// is already running has finished.
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}

	s.cron.Remove(s.entryID)
	ctx := s.cron.Stop()
	s.cron = nil
	logger.Info("Discount scheduler stopped")
	return ctx
}

func (s *Scheduler) run(ctx context.Context) {
	if _, err := s.Tick(ctx); err != nil {
		logger.Error("Error updating discount", zap.Error(err))
	}
}

// Tick fetches the latest banner (creating the default one when the
// collection is empty), computes the current discount and persists it if it
// differs from the stored value.
func (s *Scheduler) Tick(ctx context.Context) (Result, error) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	now := s.now()
	discount := PercentageAt(now)

	// a missing banner always counts as a change
	banner, created, err := database.LatestOrCreateBanner(ctx, s.store, func() *models.Banner {
		return models.NewDefaultBanner(LocalDate(now), discount)
	})
	if err != nil {
		s.metrics.RecordTick(metrics.TickFailed, discount)
		return Unchanged, fmt.Errorf("failed to load banner: %w", err)
	}

	if created {
		logger.Info("Default banner created",
			zap.String("banner_id", banner.ID),
			zap.Int("discount", discount),
			zap.String("period", string(PeriodAt(now))))
		s.metrics.RecordTick(metrics.TickCreated, discount)
		return Created, nil
	}

	if banner.DiscountPercentage == discount {
		logger.Debug("Discount already up to date",
			zap.String("banner_id", banner.ID),
			zap.Int("discount", discount))
		s.metrics.RecordTick(metrics.TickUnchanged, discount)
		return Unchanged, nil
	}

	if _, err := s.store.UpdateBanner(ctx, banner.ID, models.BannerUpdate{DiscountPercentage: &discount}); err != nil {
		s.metrics.RecordTick(metrics.TickFailed, discount)
		return Unchanged, fmt.Errorf("failed to update banner %s: %w", banner.ID, err)
	}

	logger.Info("Discount updated",
		zap.String("banner_id", banner.ID),
		zap.Int("from", banner.DiscountPercentage),
		zap.Int("to", discount),
		zap.String("period", string(PeriodAt(now))),
		zap.String("local_time", now.In(Location).Format("2006-01-02 15:04:05")))
	s.metrics.RecordTick(metrics.TickUpdated, discount)
	return Updated, nil
}
