package airquality

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/i474232898/air-quality-aggregation/internal/metrics"
)

// ErrAllProvidersExhausted is returned when no provider produced a record.
var ErrAllProvidersExhausted = errors.New("no air quality data available from any provider")

// errNoData is reported in debug mode for providers that missed without an error.
var errNoData = errors.New("provider returned no data")

const (
	defaultProviderTimeout  = 15 * time.Second
	defaultBatchConcurrency = 3
)

// Service tries providers in priority order and exposes a diagnostic fan-out.
type Service struct {
	providers        []Provider
	logger           *zap.Logger
	providerTimeout  time.Duration
	batchConcurrency int
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the base logger. Per-query loggers are derived from it.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithProviderTimeout bounds every individual provider call.
func WithProviderTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.providerTimeout = d
		}
	}
}

// WithBatchConcurrency caps the number of locations fetched at once by GetBatch.
func WithBatchConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchConcurrency = n
		}
	}
}

// NewService creates a new Service. Providers are tried in the given order.
func NewService(providers []Provider, opts ...Option) *Service {
	s := &Service{
		providers:        providers,
		logger:           zap.NewNop(),
		providerTimeout:  defaultProviderTimeout,
		batchConcurrency: defaultBatchConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Providers returns the provider names in priority order.
func (s *Service) Providers() []string {
	names := make([]string, 0, len(s.providers))
	for _, p := range s.providers {
		names = append(names, p.Name())
	}
	return names
}

// GetAirQuality returns the first record produced by a provider, in priority
// order. Provider errors and misses are logged and skipped.
func (s *Service) GetAirQuality(ctx context.Context, q Query) (*Record, error) {
	log := s.queryLogger(q)
	log.Debug("fetching air quality", zap.Int("providers", len(s.providers)))

	for _, p := range s.providers {
		if err := ctx.Err(); err != nil {
			metrics.RecordQuery("default", "canceled")
			return nil, err
		}

		rec, err := s.fetch(ctx, p, q, false, log)
		if err != nil {
			log.Warn("provider failed", zap.String("provider", p.Name()), zap.Error(err))
			continue
		}
		if rec == nil {
			log.Debug("provider returned no data", zap.String("provider", p.Name()))
			continue
		}

		log.Info("got air quality data", zap.String("provider", p.Name()), zap.Int("aqi", rec.AQI))
		metrics.RecordQuery("default", "success")
		return rec, nil
	}

	if err := ctx.Err(); err != nil {
		log.Warn("query deadline reached before any provider answered", zap.Error(err))
		metrics.RecordQuery("default", "canceled")
		return nil, err
	}

	log.Error("all providers failed")
	metrics.RecordQuery("default", "exhausted")
	return nil, ErrAllProvidersExhausted
}

// DebugAirQuality queries every provider concurrently with raw payloads
// attached and reports one outcome per provider.
func (s *Service) DebugAirQuality(ctx context.Context, q Query) map[string]ProviderOutcome {
	log := s.queryLogger(q)
	log.Info("debug: fetching raw provider responses", zap.Int("providers", len(s.providers)))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make(map[string]ProviderOutcome, len(s.providers))
	)

	for _, p := range s.providers {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()

			rec, err := s.fetch(ctx, p, q, true, log)
			if err == nil && rec == nil {
				err = errNoData
			}

			outcome := ProviderOutcome{OK: err == nil, Data: rec}
			if err != nil {
				outcome.Error = err.Error()
			}

			mu.Lock()
			results[p.Name()] = outcome
			mu.Unlock()
		}()
	}

	wg.Wait()
	metrics.RecordQuery("debug", "complete")
	return results
}

// GetBatch fetches several locations with bounded concurrency and returns the
// successful records keyed by city. Locations with no data are omitted.
func (s *Service) GetBatch(ctx context.Context, queries []Query) map[string]Record {
	found := make([]*Record, len(queries))

	var g errgroup.Group
	g.SetLimit(s.batchConcurrency)

	for i, q := range queries {
		i, q := i, q
		q.Debug = false
		g.Go(func() error {
			rec, err := s.GetAirQuality(ctx, q)
			if err != nil {
				return nil
			}
			found[i] = rec
			return nil
		})
	}
	_ = g.Wait()

	results := make(map[string]Record, len(queries))
	for i, rec := range found {
		if rec != nil {
			results[queries[i].City] = *rec
		}
	}
	s.logger.Info("batch complete", zap.Int("requested", len(queries)), zap.Int("found", len(results)))
	metrics.RecordQuery("batch", "complete")
	return results
}

// fetch runs a single provider call under its own deadline. Panics are
// converted to errors so one provider cannot take the query down.
func (s *Service) fetch(ctx context.Context, p Provider, q Query, debug bool, log *zap.Logger) (rec *Record, err error) {
	ctx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			rec, err = nil, fmt.Errorf("provider %s panicked: %v", p.Name(), r)
		}

		outcome := metrics.OutcomeSuccess
		switch {
		case err != nil:
			outcome = metrics.OutcomeError
		case rec == nil:
			outcome = metrics.OutcomeMiss
		}
		metrics.RecordProviderFetch(p.Name(), outcome, time.Since(start))
	}()

	q.Debug = debug
	return p.Fetch(ctx, q, FetchOptions{
		Debug:  debug,
		Logger: log.With(zap.String("provider", p.Name())),
	})
}

func (s *Service) queryLogger(q Query) *zap.Logger {
	return s.logger.With(
		zap.String("query_id", uuid.NewString()),
		zap.String("city", q.City),
		zap.Float64("lat", q.Lat),
		zap.Float64("lng", q.Lng),
	)
}
