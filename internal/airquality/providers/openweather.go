package providers

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/air-quality-aggregation/internal/airquality"
	"github.com/i474232898/air-quality-aggregation/internal/aqi"
)

// Calibration holds per-pollutant multipliers applied before breakpoint lookup.
type Calibration struct {
	PM25 float64
	PM10 float64
}

// DefaultCalibration returns the multipliers tuned against WAQI/IQAir readings.
func DefaultCalibration() Calibration {
	return Calibration{PM25: aqi.DefaultPM25Calibration, PM10: aqi.DefaultPM10Calibration}
}

// OpenWeatherProvider implements airquality.Provider for the OpenWeatherMap
// air pollution API. It reports raw concentrations and a 1-5 category, so the
// index is computed locally.
type OpenWeatherProvider struct {
	base
	apiKey      string
	calibration Calibration
}

func NewOpenWeatherProvider(transport Transport, apiKey string, cal Calibration, opts ...Option) *OpenWeatherProvider {
	p := &OpenWeatherProvider{
		base:        newBase("openweather", "https://api.openweathermap.org/data/2.5", transport, opts),
		apiKey:      apiKey,
		calibration: cal,
	}
	if !p.weatherSet {
		p.weather = NewOpenWeatherWeather(transport, apiKey, WithBaseURL(p.baseURL), WithBackoff(p.backoff))
	}
	return p
}

type openWeatherComponents struct {
	CO   *float64 `json:"co"`
	NO2  *float64 `json:"no2"`
	O3   *float64 `json:"o3"`
	SO2  *float64 `json:"so2"`
	PM25 *float64 `json:"pm2_5"`
	PM10 *float64 `json:"pm10"`
}

func (p *OpenWeatherProvider) Fetch(ctx context.Context, q airquality.Query, opts airquality.FetchOptions) (*airquality.Record, error) {
	log := opts.Log()
	if p.apiKey == "" {
		log.Debug("openweather api key is not configured")
		return nil, nil
	}

	values := url.Values{}
	values.Set("lat", formatCoord(q.Lat))
	values.Set("lon", formatCoord(q.Lng))
	values.Set("appid", p.apiKey)

	var payload struct {
		List []struct {
			Dt   int64 `json:"dt"`
			Main struct {
				AQI int `json:"aqi"`
			} `json:"main"`
			Components *openWeatherComponents `json:"components"`
		} `json:"list"`
	}

	raw, err := p.getJSON(ctx, fmt.Sprintf("%s/air_pollution?%s", p.baseURL, values.Encode()), nil, &payload)
	if err != nil {
		return miss(opts, err)
	}
	if len(payload.List) == 0 || payload.List[0].Components == nil {
		log.Debug("openweather returned no pollution data")
		return nil, nil
	}

	item := payload.List[0]
	c := item.Components
	if c.PM25 == nil {
		log.Debug("openweather returned no pm2.5 reading")
		return nil, nil
	}

	ts := nowISO()
	if item.Dt > 0 {
		ts = time.Unix(item.Dt, 0).UTC().Format(time.RFC3339)
	}

	rec := &airquality.Record{
		AQI:         p.index(item.Main.AQI, c, log),
		PM25:        math.Round(*c.PM25),
		PM10:        rounded(c.PM10),
		NO2:         rounded(c.NO2),
		O3:          rounded(c.O3),
		CO:          c.CO,
		SO2:         rounded(c.SO2),
		Provider:    "OpenWeather",
		Timestamp:   ts,
		City:        q.City,
		Coordinates: q.Coordinates(),
	}
	if opts.Debug {
		attachRaw(rec, "pollution", raw)
	}

	p.enrich(ctx, q, rec, opts)
	return rec, nil
}

// index prefers the calibrated PM2.5 index, then PM10, then the upstream
// 1-5 category. A zero PM2.5 reading yields no usable index.
func (p *OpenWeatherProvider) index(category int, c *openWeatherComponents, log *zap.Logger) int {
	pm25AQI, pm10AQI := math.NaN(), math.NaN()
	if c.PM25 != nil {
		pm25AQI = float64(aqi.ConcentrationToAQI(aqi.Calibrate(*c.PM25, p.calibration.PM25), aqi.PM25))
	}
	if c.PM10 != nil {
		pm10AQI = float64(aqi.ConcentrationToAQI(aqi.Calibrate(*c.PM10, p.calibration.PM10), aqi.PM10))
	}

	v := aqi.PreferPM25(pm25AQI, pm10AQI)
	if aqi.Valid(v) {
		log.Debug("calculated aqi from concentrations",
			zap.Float64("pm25_aqi", pm25AQI),
			zap.Float64("pm10_aqi", pm10AQI),
			zap.Float64("aqi", v))
		return int(v)
	}

	fallback := aqi.CategoricalToAQI(category, aqi.Pollutants{
		PM25: deref(c.PM25),
		PM10: deref(c.PM10),
		NO2:  deref(c.NO2),
		O3:   deref(c.O3),
	})
	log.Info("using categorical aqi fallback", zap.Int("category", category), zap.Int("aqi", fallback))
	return fallback
}
