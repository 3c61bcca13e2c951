package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/i474232898/air-quality-aggregation/internal/airquality"
	"github.com/i474232898/air-quality-aggregation/internal/aqi"
)

// WAQIProvider implements airquality.Provider for the World Air Quality Index
// geolocated feed. The feed already reports a US AQI.
type WAQIProvider struct {
	base
	token string
}

func NewWAQIProvider(transport Transport, token string, opts ...Option) *WAQIProvider {
	return &WAQIProvider{
		base:  newBase("waqi", "https://api.waqi.info", transport, opts),
		token: token,
	}
}

type waqiValue struct {
	V *float64 `json:"v"`
}

func (p *WAQIProvider) Fetch(ctx context.Context, q airquality.Query, opts airquality.FetchOptions) (*airquality.Record, error) {
	log := opts.Log()
	if p.token == "" {
		log.Debug("waqi api token is not configured")
		return nil, nil
	}

	u := fmt.Sprintf("%s/feed/geo:%s;%s/?token=%s", p.baseURL, formatCoord(q.Lat), formatCoord(q.Lng), url.QueryEscape(p.token))

	// On errors "data" is a plain message string, so decode it separately.
	var feed struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	raw, err := p.getJSON(ctx, u, nil, &feed)
	if err != nil {
		return miss(opts, err)
	}
	if feed.Status != "ok" || len(feed.Data) == 0 {
		log.Debug("waqi feed not available", zap.String("status", feed.Status))
		return nil, nil
	}

	var data struct {
		AQI  json.RawMessage      `json:"aqi"`
		IAQI map[string]waqiValue `json:"iaqi"`
		Time struct {
			S   string `json:"s"`
			ISO string `json:"iso"`
		} `json:"time"`
	}
	if err := json.Unmarshal(feed.Data, &data); err != nil {
		return miss(opts, fmt.Errorf("%w: %v", errMalformed, err))
	}

	// Stations without a current reading report "-".
	index, err := strconv.ParseFloat(strings.Trim(string(data.AQI), `"`), 64)
	if err != nil {
		log.Debug("waqi station has no current index", zap.ByteString("aqi", data.AQI))
		return nil, nil
	}

	iaqi := func(key string) *float64 { return data.IAQI[key].V }

	pm25 := iaqi("pm25")
	if pm25 == nil {
		log.Debug("waqi feed has no pm25 reading")
		return nil, nil
	}

	ts := data.Time.ISO
	if ts == "" {
		ts = data.Time.S
	}
	if ts == "" {
		ts = nowISO()
	}

	rec := &airquality.Record{
		AQI:         aqi.Round(index),
		PM25:        math.Round(*pm25),
		PM10:        rounded(iaqi("pm10")),
		NO2:         rounded(iaqi("no2")),
		O3:          rounded(iaqi("o3")),
		CO:          iaqi("co"),
		SO2:         rounded(iaqi("so2")),
		Temperature: rounded(iaqi("t")),
		Humidity:    iaqi("h"),
		WindSpeed:   rounded(iaqi("w")),
		Provider:    "WAQI",
		Timestamp:   ts,
		City:        q.City,
		Coordinates: q.Coordinates(),
	}
	if opts.Debug {
		attachRaw(rec, "feed", raw)
	}

	p.enrich(ctx, q, rec, opts)
	return rec, nil
}
