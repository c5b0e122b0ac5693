package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/i474232898/pinweather/internal/geo"
	"github.com/i474232898/pinweather/internal/upstream"
	"github.com/i474232898/pinweather/internal/weather"
)

var errMissingAPIKey = errors.New("api key is not configured")

// OpenWeatherProvider implements the weather.Provider interface for OpenWeatherMap.
// The current-weather endpoint does not report UV.
type OpenWeatherProvider struct {
	name    string
	apiKey  string
	baseURL string
	client  *upstream.Client
}

func NewOpenWeatherProvider(client *http.Client, apiKey string) *OpenWeatherProvider {
	return &OpenWeatherProvider{
		name:    "openweathermap",
		apiKey:  apiKey,
		baseURL: "https://api.openweathermap.org/data/2.5/weather",
		client:  upstream.NewClient("openweather", client),
	}
}

// WithBaseURL points the provider at another endpoint.
func (p *OpenWeatherProvider) WithBaseURL(u string) *OpenWeatherProvider {
	p.baseURL = u
	return p
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

func (p *OpenWeatherProvider) Fetch(ctx context.Context, c geo.Coordinate) (weather.ProviderReading, error) {
	if p.apiKey == "" {
		return weather.ProviderReading{}, upstream.NewProviderError(p.name, "current weather", errMissingAPIKey)
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("appid", p.apiKey)
		values.Set("units", "metric")
		values.Set("lat", fmt.Sprintf("%f", c.Lat))
		values.Set("lon", fmt.Sprintf("%f", c.Lon))

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	body, err := p.client.Do(ctx, buildRequest)
	if err != nil {
		return weather.ProviderReading{}, upstream.NewProviderError(p.name, "current weather", err)
	}

	var payload struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
		Weather []openWeatherItem `json:"weather"`
	}

	if err := json.Unmarshal(body, &payload); err != nil {
		return weather.ProviderReading{}, upstream.NewProviderError(p.name, "decode current weather", err)
	}

	ts := time.Now().UTC()
	if payload.Dt > 0 {
		ts = time.Unix(payload.Dt, 0).UTC()
	}

	cond := mapOpenWeatherCondition(payload.Weather)
	icon := ""
	if len(payload.Weather) > 0 {
		icon = payload.Weather[0].Icon
	}

	return weather.ProviderReading{
		ProviderName: p.name,
		Timestamp:    ts,
		TemperatureC: payload.Main.Temp,
		Condition:    cond,
		IconID:       icon,
	}, nil
}

type openWeatherItem struct {
	Main string `json:"main"`
	Icon string `json:"icon"`
}

func mapOpenWeatherCondition(items []openWeatherItem) weather.Condition {
	if len(items) == 0 {
		return weather.ConditionUnknown
	}
	switch items[0].Main {
	case "Clear":
		return weather.ConditionClear
	case "Clouds":
		return weather.ConditionCloudy
	case "Rain", "Drizzle":
		return weather.ConditionRain
	case "Snow":
		return weather.ConditionSnow
	case "Thunderstorm":
		return weather.ConditionStorm
	case "Mist", "Fog", "Haze", "Smoke":
		return weather.ConditionMist
	default:
		return weather.ConditionUnknown
	}
}
