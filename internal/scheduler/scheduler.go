package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/i474232898/air-quality-aggregation/internal/airquality"
	"github.com/i474232898/air-quality-aggregation/internal/store"
)

// BatchFetcher is the part of airquality.Service the scheduler needs.
type BatchFetcher interface {
	GetBatch(ctx context.Context, qs []airquality.Query) map[string]airquality.Record
}

// Scheduler periodically warms the cache for the registry locations.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   BatchFetcher
	cache     store.Cache
	queries   []airquality.Query
	interval  time.Duration
	timeout   time.Duration
	logger    *zap.Logger
}

// New creates a new Scheduler. timeout bounds one warm-up run.
func New(queries []airquality.Query, interval, timeout time.Duration, service BatchFetcher, cache store.Cache, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		service:   service,
		cache:     cache,
		queries:   queries,
		interval:  interval,
		timeout:   timeout,
		logger:    logger.Named("scheduler"),
	}
}

// Start schedules the warm-up job and starts the underlying scheduler. The
// first run happens immediately.
func (s *Scheduler) Start() error {
	if len(s.queries) == 0 || s.cache == nil {
		s.logger.Info("no locations or cache configured; nothing to schedule")
		return nil
	}

	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 15
	}

	_, err := s.scheduler.Every(minutes).Minutes().SingletonMode().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		s.Run(ctx)
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Run fetches every location once and stores the results. It returns the
// number of records stored.
func (s *Scheduler) Run(ctx context.Context) int {
	s.logger.Info("running air quality warm-up job", zap.Int("locations", len(s.queries)))

	results := s.service.GetBatch(ctx, s.queries)

	stored := 0
	for _, q := range s.queries {
		rec, ok := results[q.City]
		if !ok || !rec.For(q) {
			continue
		}
		if err := s.cache.Set(ctx, q.Key(), rec); err != nil {
			s.logger.Warn("failed to cache record", zap.String("city", q.City), zap.Error(err))
			continue
		}
		stored++
	}

	s.logger.Info("completed air quality warm-up job",
		zap.Int("stored", stored),
		zap.Int("missing", len(s.queries)-stored))
	return stored
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
