package airquality

import (
	"context"

	"go.uber.org/zap"
)

// FetchOptions is passed to every provider call.
type FetchOptions struct {
	// Debug attaches raw upstream payloads to the returned record.
	Debug bool
	// Logger is already scoped to the query and provider.
	Logger *zap.Logger
}

// Log returns the injected logger or a no-op logger.
func (o FetchOptions) Log() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// Provider abstracts an air quality data source (OpenWeather, WAQI, Open-Meteo, OpenAQ).
//
// Fetch returns (nil, nil) for expected misses: missing credentials, empty
// upstream results, malformed payloads. Transport failures are returned as errors.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, q Query, opts FetchOptions) (*Record, error)
}
