package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
)

// Weather holds the optional enrichment fields of a record.
type Weather struct {
	Temperature *float64 // °C
	Humidity    *float64 // %
	WindSpeed   *float64 // km/h
	Raw         json.RawMessage
}

// WeatherSource supplies current weather for a point. It is always a
// secondary call: callers treat its errors as "no weather".
type WeatherSource interface {
	CurrentWeather(ctx context.Context, lat, lng float64) (Weather, error)
}

// OpenMeteoWeather reads current conditions from the Open-Meteo forecast API.
// No API key is required.
type OpenMeteoWeather struct {
	base
}

func NewOpenMeteoWeather(transport Transport, opts ...Option) *OpenMeteoWeather {
	return &OpenMeteoWeather{
		base: newBase("openmeteo-weather", "https://api.open-meteo.com/v1/forecast", transport, opts),
	}
}

func (w *OpenMeteoWeather) CurrentWeather(ctx context.Context, lat, lng float64) (Weather, error) {
	u := fmt.Sprintf("%s?latitude=%s&longitude=%s&current=temperature_2m,relative_humidity_2m,wind_speed_10m&timezone=auto",
		w.baseURL, formatCoord(lat), formatCoord(lng))

	var payload struct {
		Current *struct {
			Temperature *float64 `json:"temperature_2m"`
			Humidity    *float64 `json:"relative_humidity_2m"`
			WindSpeed   *float64 `json:"wind_speed_10m"`
		} `json:"current"`
	}

	raw, err := w.getJSON(ctx, u, nil, &payload)
	if err != nil {
		return Weather{}, err
	}
	if payload.Current == nil {
		return Weather{Raw: raw}, nil
	}

	return Weather{
		Temperature: rounded(payload.Current.Temperature),
		Humidity:    payload.Current.Humidity,
		WindSpeed:   rounded(payload.Current.WindSpeed),
		Raw:         raw,
	}, nil
}

// OpenWeatherWeather reads current conditions from OpenWeatherMap.
type OpenWeatherWeather struct {
	base
	apiKey string
}

func NewOpenWeatherWeather(transport Transport, apiKey string, opts ...Option) *OpenWeatherWeather {
	return &OpenWeatherWeather{
		base:   newBase("openweather-weather", "https://api.openweathermap.org/data/2.5", transport, opts),
		apiKey: apiKey,
	}
}

func (w *OpenWeatherWeather) CurrentWeather(ctx context.Context, lat, lng float64) (Weather, error) {
	if w.apiKey == "" {
		return Weather{}, fmt.Errorf("openweather api key is not configured")
	}

	values := url.Values{}
	values.Set("lat", formatCoord(lat))
	values.Set("lon", formatCoord(lng))
	values.Set("appid", w.apiKey)
	values.Set("units", "metric")

	var payload struct {
		Main struct {
			Temp     *float64 `json:"temp"`
			Humidity *float64 `json:"humidity"`
		} `json:"main"`
		Wind struct {
			Speed *float64 `json:"speed"`
		} `json:"wind"`
	}

	raw, err := w.getJSON(ctx, fmt.Sprintf("%s/weather?%s", w.baseURL, values.Encode()), nil, &payload)
	if err != nil {
		return Weather{}, err
	}

	out := Weather{
		Temperature: rounded(payload.Main.Temp),
		Humidity:    payload.Main.Humidity,
		Raw:         raw,
	}
	// m/s to km/h.
	if payload.Wind.Speed != nil {
		out.WindSpeed = ptr(math.Round(*payload.Wind.Speed * 3.6))
	}
	return out, nil
}
