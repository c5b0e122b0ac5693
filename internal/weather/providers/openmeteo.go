package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/i474232898/pinweather/internal/geo"
	"github.com/i474232898/pinweather/internal/upstream"
	"github.com/i474232898/pinweather/internal/weather"
)

// OpenMeteoProvider implements the weather.Provider interface for Open-Meteo.
// It needs no API key.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	client  *upstream.Client
}

func NewOpenMeteoProvider(client *http.Client) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: "https://api.open-meteo.com/v1/forecast",
		client:  upstream.NewClient("openmeteo", client),
	}
}

// WithBaseURL points the provider at another endpoint.
func (p *OpenMeteoProvider) WithBaseURL(u string) *OpenMeteoProvider {
	p.baseURL = u
	return p
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

func (p *OpenMeteoProvider) Fetch(ctx context.Context, c geo.Coordinate) (weather.ProviderReading, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", fmt.Sprintf("%f", c.Lat))
		values.Set("longitude", fmt.Sprintf("%f", c.Lon))
		values.Set("current", "temperature_2m,weather_code,uv_index,is_day")
		values.Set("timezone", "GMT")
		values.Set("timeformat", "unixtime")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	body, err := p.client.Do(ctx, buildRequest)
	if err != nil {
		return weather.ProviderReading{}, upstream.NewProviderError(p.name, "current weather", err)
	}

	var payload struct {
		Current struct {
			Time          int64    `json:"time"`
			Temperature2m *float64 `json:"temperature_2m"`
			WeatherCode   int      `json:"weather_code"`
			UVIndex       *float64 `json:"uv_index"`
			IsDay         int      `json:"is_day"`
		} `json:"current"`
	}

	if err := json.Unmarshal(body, &payload); err != nil {
		return weather.ProviderReading{}, upstream.NewProviderError(p.name, "decode current weather", err)
	}
	if payload.Current.Temperature2m == nil {
		return weather.ProviderReading{}, upstream.NewProviderError(p.name, "current weather", fmt.Errorf("response has no temperature"))
	}

	ts := time.Now().UTC()
	if payload.Current.Time > 0 {
		ts = time.Unix(payload.Current.Time, 0).UTC()
	}

	cond := mapOpenMeteoCondition(payload.Current.WeatherCode)

	return weather.ProviderReading{
		ProviderName: p.name,
		Timestamp:    ts,
		TemperatureC: *payload.Current.Temperature2m,
		Condition:    cond,
		IconID:       openMeteoIcon(cond, payload.Current.IsDay == 1),
		UVIndex:      payload.Current.UVIndex,
	}, nil
}

func mapOpenMeteoCondition(code int) weather.Condition {
	// Mapping based on Open-Meteo WMO weather codes (simplified).
	switch {
	case code == 0:
		return weather.ConditionClear
	case code >= 1 && code <= 3:
		return weather.ConditionCloudy
	case code == 45 || code == 48:
		return weather.ConditionMist
	case (code >= 51 && code <= 67) || (code >= 80 && code <= 82):
		return weather.ConditionRain
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return weather.ConditionSnow
	case code >= 95:
		return weather.ConditionStorm
	default:
		return weather.ConditionUnknown
	}
}

func openMeteoIcon(cond weather.Condition, isDay bool) string {
	if cond == weather.ConditionClear && !isDay {
		return "moon.stars"
	}
	return cond.Icon()
}
