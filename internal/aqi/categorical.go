package aqi

// Pollutants carries the concentrations (µg/m³) used to decide whether a
// coarse category should be escalated. Zero means "not reported".
type Pollutants struct {
	PM25 float64
	PM10 float64
	NO2  float64
	O3   float64
}

// Escalation thresholds (µg/m³).
const (
	SeverePM25 = 150
	SeverePM10 = 350
	SevereNO2  = 200
	SevereO3   = 180
)

// fallbackAQI is returned for categories outside 1..5.
const fallbackAQI = 50

var categoryAQI = map[int]int{1: 30, 2: 70, 3: 120, 4: 150, 5: 200}

var severeCategoryAQI = map[int]int{4: 180, 5: 300}

// Severe reports whether any monitored pollutant exceeds its escalation threshold.
func (p Pollutants) Severe() bool {
	return p.PM25 > SeverePM25 ||
		p.PM10 > SeverePM10 ||
		p.NO2 > SevereNO2 ||
		p.O3 > SevereO3
}

// CategoricalToAQI maps a 1-5 severity category (OpenWeather style) to an
// index. Only used when concentration interpolation is unavailable.
func CategoricalToAQI(category int, p Pollutants) int {
	if p.Severe() {
		if v, ok := severeCategoryAQI[category]; ok {
			return v
		}
	}
	if v, ok := categoryAQI[category]; ok {
		return v
	}
	return fallbackAQI
}
