package providers

import (
	"context"
	"fmt"
	"math"
	"net/url"

	"go.uber.org/zap"

	"github.com/i474232898/air-quality-aggregation/internal/airquality"
	"github.com/i474232898/air-quality-aggregation/internal/aqi"
)

const (
	openAQSearchRadius     = 50000 // metres
	openAQMeasurementLimit = 100
)

// OpenAQProvider implements airquality.Provider for OpenAQ. It resolves the
// nearest monitoring station first, then reads that station's measurements.
type OpenAQProvider struct {
	base
	apiKey string
}

// NewOpenAQProvider creates the provider. The API key is optional.
func NewOpenAQProvider(transport Transport, apiKey string, opts ...Option) *OpenAQProvider {
	p := &OpenAQProvider{
		base:   newBase("openaq", "https://api.openaq.org/v2", transport, opts),
		apiKey: apiKey,
	}
	if !p.weatherSet {
		p.weather = NewOpenMeteoWeather(transport, WithBackoff(p.backoff))
	}
	return p
}

type openAQMeasurement struct {
	Parameter   string  `json:"parameter"`
	Value       float64 `json:"value"`
	LastUpdated string  `json:"lastUpdated"`
	Date        struct {
		UTC string `json:"utc"`
	} `json:"date"`
}

func (p *OpenAQProvider) header() map[string]string {
	if p.apiKey == "" {
		return nil
	}
	return map[string]string{"X-API-Key": p.apiKey}
}

func (p *OpenAQProvider) Fetch(ctx context.Context, q airquality.Query, opts airquality.FetchOptions) (*airquality.Record, error) {
	log := opts.Log()

	var locations struct {
		Results []struct {
			ID int64 `json:"id"`
		} `json:"results"`
	}
	locURL := fmt.Sprintf("%s/locations?coordinates=%s,%s&radius=%d&limit=1",
		p.baseURL, formatCoord(q.Lat), formatCoord(q.Lng), openAQSearchRadius)
	rawLocations, err := p.getJSON(ctx, locURL, p.header(), &locations)
	if err != nil {
		return miss(opts, err)
	}
	if len(locations.Results) == 0 {
		log.Debug("openaq has no station nearby")
		return nil, nil
	}
	stationID := locations.Results[0].ID

	values := url.Values{}
	values.Set("location_id", fmt.Sprint(stationID))
	values.Set("limit", fmt.Sprint(openAQMeasurementLimit))

	var measurements struct {
		Results []openAQMeasurement `json:"results"`
	}
	rawMeasurements, err := p.getJSON(ctx, fmt.Sprintf("%s/measurements?%s", p.baseURL, values.Encode()), p.header(), &measurements)
	if err != nil {
		return miss(opts, err)
	}

	// The first reading per parameter wins.
	byParam := make(map[string]openAQMeasurement, 6)
	for _, m := range measurements.Results {
		if _, seen := byParam[m.Parameter]; !seen {
			byParam[m.Parameter] = m
		}
	}
	value := func(param string) *float64 {
		m, ok := byParam[param]
		if !ok {
			return nil
		}
		return ptr(math.Round(m.Value))
	}

	pm25, ok := byParam["pm25"]
	if !ok {
		log.Debug("openaq station has no pm25 reading", zap.Int64("station_id", stationID))
		return nil, nil
	}

	ts := pm25.LastUpdated
	if ts == "" {
		ts = pm25.Date.UTC
	}
	if ts == "" {
		ts = nowISO()
	}

	rec := &airquality.Record{
		AQI:         aqi.ConcentrationToAQI(pm25.Value, aqi.PM25),
		PM25:        math.Round(pm25.Value),
		PM10:        value("pm10"),
		NO2:         value("no2"),
		O3:          value("o3"),
		CO:          value("co"),
		SO2:         value("so2"),
		Provider:    "OpenAQ",
		Timestamp:   ts,
		City:        q.City,
		Coordinates: q.Coordinates(),
	}
	if opts.Debug {
		attachRaw(rec, "locations", rawLocations)
		attachRaw(rec, "measurements", rawMeasurements)
	}

	p.enrich(ctx, q, rec, opts)
	return rec, nil
}
