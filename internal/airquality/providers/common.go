package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/i474232898/air-quality-aggregation/internal/airquality"
)

// BackoffConfig controls exponential backoff behaviour.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultBackoff is used by every provider unless overridden with WithBackoff.
var DefaultBackoff = BackoffConfig{
	MaxRetries:      2,
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     5 * time.Second,
}

var (
	errRateLimited   = errors.New("rate limited")
	errServerError   = errors.New("server error")
	errUnexpected    = errors.New("unexpected status code")
	errCircuitOpen   = errors.New("circuit breaker open")
	errNoTransport   = errors.New("transport not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
	errMalformed     = errors.New("malformed upstream payload")
)

// Option customizes a provider or weather source.
type Option func(*base)

// WithBaseURL overrides the upstream endpoint.
func WithBaseURL(u string) Option {
	return func(b *base) { b.baseURL = u }
}

// WithBackoff overrides the retry policy.
func WithBackoff(cfg BackoffConfig) Option {
	return func(b *base) { b.backoff = cfg }
}

// WithWeather sets the secondary weather source. Passing nil disables enrichment.
func WithWeather(ws WeatherSource) Option {
	return func(b *base) {
		b.weather = ws
		b.weatherSet = true
	}
}

// base carries what every upstream integration shares: endpoint, transport,
// retry policy, circuit breaker and the optional weather source.
type base struct {
	name       string
	baseURL    string
	transport  Transport
	backoff    BackoffConfig
	circuit    *gobreaker.CircuitBreaker
	weather    WeatherSource
	weatherSet bool
}

func newBase(name, baseURL string, transport Transport, opts []Option) base {
	b := base{
		name:      name,
		baseURL:   baseURL,
		transport: transport,
		backoff:   DefaultBackoff,
	}
	for _, opt := range opts {
		opt(&b)
	}
	b.circuit = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
	return b
}

// Name returns the provider name used in logs, metrics and debug output.
func (b *base) Name() string {
	return b.name
}

// get executes the request with retries, exponential backoff and a circuit breaker.
func (b *base) get(ctx context.Context, rawURL string, header map[string]string) ([]byte, error) {
	if b.transport == nil {
		return nil, errNoTransport
	}
	if b.backoff.MaxRetries < 0 || b.backoff.InitialInterval <= 0 {
		return nil, errInvalidConfig
	}

	var attempt int
	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		result, err := b.circuit.Execute(func() (interface{}, error) {
			return b.transport.Get(ctx, rawURL, header)
		})
		if err == nil {
			body, ok := result.([]byte)
			if !ok {
				return nil, fmt.Errorf("unexpected result type from circuit breaker")
			}
			return body, nil
		}

		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}
		// Client errors (bad key, bad request) will not improve on retry.
		if errors.Is(err, errUnexpected) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}

		if attempt >= b.backoff.MaxRetries {
			return nil, err
		}

		delay := b.backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if delay > b.backoff.MaxInterval && b.backoff.MaxInterval > 0 {
			delay = b.backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		attempt++
	}
}

// getJSON fetches rawURL and decodes it into out. The undecoded body is
// returned for debug payloads.
func (b *base) getJSON(ctx context.Context, rawURL string, header map[string]string, out any) (json.RawMessage, error) {
	body, err := b.get(ctx, rawURL, header)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return body, fmt.Errorf("%w: %v", errMalformed, err)
	}
	return body, nil
}

// enrich fills weather fields the primary source did not report. Failures are
// logged and leave the fields nil.
func (b *base) enrich(ctx context.Context, q airquality.Query, rec *airquality.Record, opts airquality.FetchOptions) {
	if b.weather == nil {
		return
	}
	w, err := b.weather.CurrentWeather(ctx, q.Lat, q.Lng)
	if err != nil {
		opts.Log().Warn("could not fetch weather data", zap.Error(err))
		return
	}
	if rec.Temperature == nil {
		rec.Temperature = w.Temperature
	}
	if rec.Humidity == nil {
		rec.Humidity = w.Humidity
	}
	if rec.WindSpeed == nil {
		rec.WindSpeed = w.WindSpeed
	}
	if opts.Debug && w.Raw != nil {
		attachRaw(rec, "weather", w.Raw)
	}
}

// miss logs an expected failure and turns it into a nil record. Anything
// else is returned to the caller.
func miss(opts airquality.FetchOptions, err error) (*airquality.Record, error) {
	if errors.Is(err, errMalformed) {
		opts.Log().Warn("discarding malformed upstream payload", zap.Error(err))
		return nil, nil
	}
	return nil, err
}

func attachRaw(rec *airquality.Record, key string, raw json.RawMessage) {
	if rec.Raw == nil {
		rec.Raw = make(map[string]json.RawMessage)
	}
	rec.Raw[key] = raw
}

func ptr(v float64) *float64 {
	return &v
}

// rounded returns a rounded copy of p, preserving nil.
func rounded(p *float64) *float64 {
	if p == nil {
		return nil
	}
	return ptr(math.Round(*p))
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}
