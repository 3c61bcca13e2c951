package airquality

import (
	"encoding/json"
	"fmt"
)

// Coordinates is a WGS84 point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Record is the normalized air quality view returned to callers.
// Optional pollutant and weather fields are nil when the source did not
// report them.
type Record struct {
	AQI  int      `json:"aqi"` // always within [0,500]
	PM25 float64  `json:"pm25"`
	PM10 *float64 `json:"pm10,omitempty"`
	NO2  *float64 `json:"no2,omitempty"`
	O3   *float64 `json:"o3,omitempty"`
	CO   *float64 `json:"co,omitempty"`
	SO2  *float64 `json:"so2,omitempty"`

	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
	WindSpeed   *float64 `json:"windSpeed,omitempty"`

	Provider    string      `json:"provider"`
	Timestamp   string      `json:"timestamp"`
	City        string      `json:"city"`
	Coordinates Coordinates `json:"coordinates"`

	// Raw holds the unmodified upstream payloads, keyed by call. Debug only.
	Raw map[string]json.RawMessage `json:"rawResponse,omitempty"`
}

// Query identifies the location being asked about.
type Query struct {
	Lat   float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng   float64 `json:"lng" validate:"gte=-180,lte=180"`
	City  string  `json:"city" validate:"required"`
	Debug bool    `json:"debug,omitempty"`
}

// Key returns a canonical cache key for the query location.
func (q Query) Key() string {
	return fmt.Sprintf("%s:%.4f:%.4f", q.City, q.Lat, q.Lng)
}

// Coordinates returns the query point.
func (q Query) Coordinates() Coordinates {
	return Coordinates{Lat: q.Lat, Lng: q.Lng}
}

// For reports whether r was produced for q's location. Batch results are keyed
// by city only, so two queries for one city can share a map entry.
func (r Record) For(q Query) bool {
	return r.City == q.City && r.Coordinates == q.Coordinates()
}

// ProviderOutcome is the per-provider result reported in debug mode.
type ProviderOutcome struct {
	OK    bool    `json:"ok"`
	Data  *Record `json:"data,omitempty"`
	Error string  `json:"error,omitempty"`
}
