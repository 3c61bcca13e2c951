package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Provider call outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeMiss    = "miss"
	OutcomeError   = "error"
)

// Provider metrics
var (
	// ProviderFetchTotal counts provider calls by outcome.
	ProviderFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aq_provider_fetch_total",
			Help: "Total number of air quality provider calls",
		},
		[]string{"provider", "outcome"},
	)

	// ProviderFetchDuration tracks how long provider calls take, including retries.
	ProviderFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aq_provider_fetch_duration_seconds",
			Help:    "Duration of air quality provider calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)
)

// Query metrics
var (
	// QueriesTotal counts engine queries by mode (default, debug, batch) and result.
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aq_queries_total",
			Help: "Total number of air quality queries",
		},
		[]string{"mode", "result"},
	)

	// CacheLookupsTotal counts latest-record cache lookups.
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aq_cache_lookups_total",
			Help: "Total number of latest-record cache lookups",
		},
		[]string{"result"},
	)

	// AppStartTime records when the application started
	AppStartTime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aq_app_start_time_seconds",
			Help: "Unix timestamp of when the application started",
		},
	)
)

func init() {
	AppStartTime.SetToCurrentTime()
}

// RecordProviderFetch records a single provider call.
func RecordProviderFetch(provider, outcome string, duration time.Duration) {
	ProviderFetchTotal.WithLabelValues(provider, outcome).Inc()
	ProviderFetchDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordQuery records the result of an engine query.
func RecordQuery(mode, result string) {
	QueriesTotal.WithLabelValues(mode, result).Inc()
}

// RecordCacheLookup records a cache hit or miss.
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookupsTotal.WithLabelValues(result).Inc()
}
