package weather

import (
	"context"
	"time"

	"github.com/i474232898/pinweather/internal/geo"
)

// ProviderReading represents a single provider's normalized reading
// that can be aggregated into a Snapshot.
type ProviderReading struct {
	ProviderName string
	Timestamp    time.Time

	TemperatureC float64
	Condition    Condition
	IconID       string

	// UVIndex is nil when the provider does not report it.
	UVIndex *float64
}

// Provider abstracts a weather data source (e.g. OpenWeatherMap, WeatherAPI, Open-Meteo).
type Provider interface {
	Name() string
	Fetch(ctx context.Context, c geo.Coordinate) (ProviderReading, error)
}
