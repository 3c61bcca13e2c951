package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	OpenWeatherAPIKey string
	WAQIAPIKey        string
	OpenAQAPIKey      string // optional

	// ProviderTimeout bounds a single provider call, QueryTimeout a whole request.
	ProviderTimeout  time.Duration
	QueryTimeout     time.Duration
	BatchConcurrency int

	// CORSProxies routes outbound calls through the listed proxy prefixes when set.
	CORSProxies []string

	// Calibration multipliers for OpenWeather concentrations.
	PM25Calibration float64
	PM10Calibration float64

	// Latest-record cache. CacheTTL of 0 disables caching.
	CacheTTL      time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// FetchInterval controls how often the cache is warmed for registry cities.
	FetchInterval time.Duration
	LocationsFile string

	RateLimitMax    int
	RateLimitWindow time.Duration

	Port     string
	LogLevel string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	return FromEnv()
}

// FromEnv reads configuration from the process environment only.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{
		OpenWeatherAPIKey: os.Getenv("OPENWEATHER_API_KEY"),
		WAQIAPIKey:        os.Getenv("WAQI_API_KEY"),
		OpenAQAPIKey:      os.Getenv("OPENAQ_API_KEY"),
		BatchConcurrency:  getenvInt("BATCH_CONCURRENCY", 3),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           getenvInt("REDIS_DB", 0),
		LocationsFile:     os.Getenv("LOCATIONS_FILE"),
		RateLimitMax:      getenvInt("RATE_LIMIT_MAX", 100),
		Port:              getenvDefault("PORT", "8080"),
		LogLevel:          getenvDefault("LOG_LEVEL", "info"),
		CORSProxies:       getenvList("CORS_PROXIES"),
		PM25Calibration:   getenvFloat("PM25_CALIBRATION", 0.75),
		PM10Calibration:   getenvFloat("PM10_CALIBRATION", 0.8),
	}

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"PROVIDER_TIMEOUT", "15s", &cfg.ProviderTimeout},
		{"QUERY_TIMEOUT", "60s", &cfg.QueryTimeout},
		{"CACHE_TTL", "10m", &cfg.CacheTTL},
		{"FETCH_INTERVAL", "15m", &cfg.FetchInterval},
		{"RATE_LIMIT_WINDOW", "15m", &cfg.RateLimitWindow},
	}
	for _, d := range durations {
		v, err := getenvDuration(d.key, d.def)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT must be positive")
	}
	if c.QueryTimeout <= 0 {
		return fmt.Errorf("QUERY_TIMEOUT must be positive")
	}
	if c.BatchConcurrency <= 0 {
		return fmt.Errorf("BATCH_CONCURRENCY must be positive")
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("CACHE_TTL cannot be negative")
	}
	if c.RateLimitMax <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_MAX and RATE_LIMIT_WINDOW must be positive")
	}
	return nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// getenvList splits a comma separated value, dropping empty items.
func getenvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
