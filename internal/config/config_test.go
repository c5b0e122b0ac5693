package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, []string{ProviderOpenMeteo}, cfg.WeatherProviders)
	assert.Equal(t, GeocoderNominatim, cfg.Geocoder)
	assert.Equal(t, 10.0, cfg.ProximityRadiusMiles)
	assert.Equal(t, time.Hour, cfg.RefreshInterval)
	assert.Equal(t, 5*time.Minute, cfg.RefreshCheckInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.SearchDebounce)
	assert.Equal(t, 10, cfg.SearchLimit)
	assert.Equal(t, 10*time.Minute, cfg.WeatherCacheTTL)
	assert.Equal(t, 256, cfg.CacheSize)
	assert.True(t, cfg.TimezoneLookup)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("PORT", "9090")
	t.Setenv("WEATHER_PROVIDERS", "OpenMeteo, weatherapi")
	t.Setenv("WEATHERAPI_API_KEY", "secret")
	t.Setenv("GEOCODER", "google")
	t.Setenv("GOOGLE_API_KEY", "gkey")
	t.Setenv("PROXIMITY_RADIUS_MILES", "2.5")
	t.Setenv("REFRESH_INTERVAL", "30m")
	t.Setenv("TIMEZONE_LOOKUP", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel)
	assert.Equal(t, ":9090", cfg.Addr())
	assert.Equal(t, []string{ProviderOpenMeteo, ProviderWeatherAPI}, cfg.WeatherProviders)
	assert.Equal(t, "secret", cfg.WeatherAPIKey)
	assert.Equal(t, GeocoderGoogle, cfg.Geocoder)
	assert.Equal(t, "gkey", cfg.GoogleAPIKey)
	assert.Equal(t, 2.5, cfg.ProximityRadiusMiles)
	assert.Equal(t, 30*time.Minute, cfg.RefreshInterval)
	assert.False(t, cfg.TimezoneLookup)
}

func TestLoad_UnknownLogLevelFallsBackToInfo(t *testing.T) {
	t.Setenv("LOG_LEVEL", "chatty")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "bad duration", key: "REFRESH_INTERVAL", value: "hourly"},
		{name: "bad radius", key: "PROXIMITY_RADIUS_MILES", value: "ten"},
		{name: "negative radius", key: "PROXIMITY_RADIUS_MILES", value: "-1"},
		{name: "bad cache size", key: "CACHE_SIZE", value: "0"},
		{name: "bad search limit", key: "SEARCH_LIMIT", value: "many"},
		{name: "bad bool", key: "TIMEZONE_LOOKUP", value: "perhaps"},
		{name: "unknown provider", key: "WEATHER_PROVIDERS", value: "openmeteo,darksky"},
		{name: "no providers", key: "WEATHER_PROVIDERS", value: " , "},
		{name: "unknown geocoder", key: "GEOCODER", value: "mapbox"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
