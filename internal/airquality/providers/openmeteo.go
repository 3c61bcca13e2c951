package providers

import (
	"context"
	"fmt"
	"math"

	"github.com/i474232898/air-quality-aggregation/internal/airquality"
	"github.com/i474232898/air-quality-aggregation/internal/aqi"
)

// OpenMeteoProvider implements airquality.Provider for the Open-Meteo
// air quality API. No API key is required.
type OpenMeteoProvider struct {
	base
}

func NewOpenMeteoProvider(transport Transport, opts ...Option) *OpenMeteoProvider {
	p := &OpenMeteoProvider{
		base: newBase("openmeteo", "https://air-quality-api.open-meteo.com/v1/air-quality", transport, opts),
	}
	if !p.weatherSet {
		p.weather = NewOpenMeteoWeather(transport, WithBackoff(p.backoff))
	}
	return p
}

func (p *OpenMeteoProvider) Fetch(ctx context.Context, q airquality.Query, opts airquality.FetchOptions) (*airquality.Record, error) {
	log := opts.Log()

	u := fmt.Sprintf("%s?latitude=%s&longitude=%s&current=us_aqi,pm10,pm2_5,carbon_monoxide,nitrogen_dioxide,sulphur_dioxide,ozone",
		p.baseURL, formatCoord(q.Lat), formatCoord(q.Lng))

	var payload struct {
		Current *struct {
			Time  string   `json:"time"`
			USAQI *float64 `json:"us_aqi"`
			PM10  *float64 `json:"pm10"`
			PM25  *float64 `json:"pm2_5"`
			CO    *float64 `json:"carbon_monoxide"`
			NO2   *float64 `json:"nitrogen_dioxide"`
			SO2   *float64 `json:"sulphur_dioxide"`
			Ozone *float64 `json:"ozone"`
		} `json:"current"`
	}

	raw, err := p.getJSON(ctx, u, nil, &payload)
	if err != nil {
		return miss(opts, err)
	}
	cur := payload.Current
	if cur == nil || cur.PM25 == nil {
		log.Debug("openmeteo returned no pm2.5 reading")
		return nil, nil
	}

	index := aqi.ConcentrationToAQI(*cur.PM25, aqi.PM25)
	if cur.USAQI != nil {
		index = aqi.Clamp(aqi.Round(*cur.USAQI))
	}

	ts := cur.Time
	if ts == "" {
		ts = nowISO()
	}

	rec := &airquality.Record{
		AQI:         index,
		PM25:        math.Round(*cur.PM25),
		PM10:        rounded(cur.PM10),
		CO:          cur.CO,
		NO2:         cur.NO2,
		SO2:         cur.SO2,
		O3:          cur.Ozone,
		Provider:    "Open-Meteo",
		Timestamp:   ts,
		City:        q.City,
		Coordinates: q.Coordinates(),
	}
	if opts.Debug {
		attachRaw(rec, "airQuality", raw)
	}

	p.enrich(ctx, q, rec, opts)
	return rec, nil
}
