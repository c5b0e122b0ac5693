package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/i474232898/pinweather/internal/common"
	"github.com/i474232898/pinweather/internal/geo"
	"github.com/i474232898/pinweather/internal/upstream"
	"github.com/i474232898/pinweather/internal/weather"
)

// WeatherAPIProvider implements the weather.Provider interface for WeatherAPI.com.
type WeatherAPIProvider struct {
	name    string
	apiKey  string
	baseURL string
	client  *upstream.Client
}

func NewWeatherAPIProvider(client *http.Client, apiKey string) *WeatherAPIProvider {
	return &WeatherAPIProvider{
		name:    "weatherapi",
		apiKey:  apiKey,
		baseURL: "https://api.weatherapi.com/v1/current.json",
		client:  upstream.NewClient("weatherapi", client),
	}
}

// WithBaseURL points the provider at another endpoint.
func (p *WeatherAPIProvider) WithBaseURL(u string) *WeatherAPIProvider {
	p.baseURL = u
	return p
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

func (p *WeatherAPIProvider) Fetch(ctx context.Context, c geo.Coordinate) (weather.ProviderReading, error) {
	if p.apiKey == "" {
		return weather.ProviderReading{}, upstream.NewProviderError(p.name, "current weather", errMissingAPIKey)
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("key", p.apiKey)
		// WeatherAPI uses "q" for location and accepts "lat,lon".
		values.Set("q", fmt.Sprintf("%f,%f", c.Lat, c.Lon))

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	body, err := p.client.Do(ctx, buildRequest)
	if err != nil {
		return weather.ProviderReading{}, upstream.NewProviderError(p.name, "current weather", err)
	}

	var payload struct {
		Current struct {
			LastUpdatedEpoch int64   `json:"last_updated_epoch"`
			TempC            float64 `json:"temp_c"`
			UV               float64 `json:"uv"`
			Condition        struct {
				Text string `json:"text"`
				Icon string `json:"icon"`
			} `json:"condition"`
		} `json:"current"`
	}

	if err := json.Unmarshal(body, &payload); err != nil {
		return weather.ProviderReading{}, upstream.NewProviderError(p.name, "decode current weather", err)
	}

	ts := time.Now().UTC()
	if payload.Current.LastUpdatedEpoch > 0 {
		ts = time.Unix(payload.Current.LastUpdatedEpoch, 0).UTC()
	}

	uv := payload.Current.UV

	return weather.ProviderReading{
		ProviderName: p.name,
		Timestamp:    ts,
		TemperatureC: payload.Current.TempC,
		Condition:    mapWeatherAPICondition(payload.Current.Condition.Text),
		IconID:       weatherAPIIcon(payload.Current.Condition.Icon),
		UVIndex:      &uv,
	}, nil
}

// weatherAPIIcon reduces "//cdn.weatherapi.com/weather/64x64/day/113.png" to "day/113".
func weatherAPIIcon(u string) string {
	if u == "" {
		return ""
	}
	u = strings.TrimSuffix(u, ".png")
	parts := strings.Split(u, "/")
	if len(parts) < 2 {
		return u
	}
	return parts[len(parts)-2] + "/" + parts[len(parts)-1]
}

func mapWeatherAPICondition(text string) weather.Condition {
	t := strings.ToLower(text)
	switch {
	case t == "":
		return weather.ConditionUnknown
	case common.HasAny(t, "thunder", "storm"):
		return weather.ConditionStorm
	case common.HasAny(t, "snow", "sleet", "blizzard", "ice pellets"):
		return weather.ConditionSnow
	case common.HasAny(t, "rain", "shower", "drizzle"):
		return weather.ConditionRain
	case common.HasAny(t, "mist", "fog"):
		return weather.ConditionMist
	case common.HasAny(t, "cloud", "overcast"):
		return weather.ConditionCloudy
	case common.HasAny(t, "sunny", "clear"):
		return weather.ConditionClear
	default:
		return weather.ConditionUnknown
	}
}
