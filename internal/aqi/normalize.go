// Package aqi converts pollutant concentrations and coarse severity
// categories into the US EPA 0-500 Air Quality Index.
package aqi

import "math"

const (
	// MinAQI and MaxAQI bound every index produced by this package.
	MinAQI = 0
	MaxAQI = 500

	// Calibration multipliers applied to OpenWeather concentrations before
	// lookup so its readings line up with WAQI/IQAir for the same station.
	// Empirical values; adapters accept overrides.
	DefaultPM25Calibration = 0.75
	DefaultPM10Calibration = 0.8
)

// ConcentrationToAQI interpolates value within table. Negative and non-numeric
// input yields 0, anything above the table's last bound yields 500.
func ConcentrationToAQI(value float64, table Table) int {
	if math.IsNaN(value) || value < 0 {
		return MinAQI
	}
	if value > table.Max() {
		return MaxAQI
	}

	bp, ok := table.lookup(value)
	if !ok {
		return MinAQI
	}
	if bp.High == bp.Low {
		return Clamp(bp.AQILow)
	}

	idx := (float64(bp.AQIHigh-bp.AQILow)/(bp.High-bp.Low))*(value-bp.Low) + float64(bp.AQILow)
	return Clamp(int(math.Round(idx)))
}

// Calibrate scales a raw concentration by factor. A non-positive factor leaves
// the value untouched.
func Calibrate(value, factor float64) float64 {
	if factor <= 0 {
		return value
	}
	return value * factor
}

// PreferPM25 picks the PM2.5-derived index unless it is non-positive or NaN,
// in which case the PM10-derived index is returned (which may itself be NaN).
func PreferPM25(pm25AQI, pm10AQI float64) float64 {
	if !math.IsNaN(pm25AQI) && pm25AQI > 0 {
		return pm25AQI
	}
	return pm10AQI
}

// Valid reports whether v can be used as an index as-is.
func Valid(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= MinAQI && v <= MaxAQI
}

// Clamp bounds v to [0, 500].
func Clamp(v int) int {
	if v < MinAQI {
		return MinAQI
	}
	if v > MaxAQI {
		return MaxAQI
	}
	return v
}

// Round rounds a floating index and clamps it.
func Round(v float64) int {
	if math.IsNaN(v) {
		return MinAQI
	}
	if math.IsInf(v, 1) {
		return MaxAQI
	}
	return Clamp(int(math.Round(v)))
}
