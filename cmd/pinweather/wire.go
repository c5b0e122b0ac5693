package main

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/i474232898/pinweather/internal/config"
	"github.com/i474232898/pinweather/internal/enrich"
	"github.com/i474232898/pinweather/internal/geocode"
	"github.com/i474232898/pinweather/internal/weather"
	"github.com/i474232898/pinweather/internal/weather/providers"
)

type components struct {
	places  *geocode.NominatimClient
	fetcher *enrich.Fetcher
}

func build(cfg *config.AppConfig) (*components, error) {
	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Providers with resilience (backoff + circuit breaker).
	var provs []weather.Provider
	for _, name := range cfg.WeatherProviders {
		switch name {
		case config.ProviderOpenMeteo:
			provs = append(provs, providers.NewOpenMeteoProvider(httpClient))
		case config.ProviderOpenWeather:
			provs = append(provs, providers.NewOpenWeatherProvider(httpClient, cfg.OpenWeatherAPIKey))
		case config.ProviderWeatherAPI:
			provs = append(provs, providers.NewWeatherAPIProvider(httpClient, cfg.WeatherAPIKey))
		}
	}
	service := weather.NewService(provs)

	// Place search always goes through Nominatim; reverse geocoding may use Google.
	places := geocode.NewNominatimClient(httpClient, cfg.NominatimURL, cfg.SearchLimit)
	var geocoder geocode.Geocoder = places
	if cfg.Geocoder == config.GeocoderGoogle {
		geocoder = geocode.NewGoogleGeocoder(cfg.GoogleAPIKey)
	}

	opts := []enrich.Option{
		enrich.WithCacheSize(cfg.CacheSize),
		enrich.WithWeatherTTL(cfg.WeatherCacheTTL),
	}
	if cfg.TimezoneLookup {
		tz, err := enrich.NewTimezoneLookup()
		if err != nil {
			// Timezones are cosmetic; carry on without them.
			log.Warn().Err(err).Msg("timezone lookup disabled")
		} else {
			opts = append(opts, enrich.WithTimezone(tz))
		}
	}

	fetcher, err := enrich.NewFetcher(service, geocoder, opts...)
	if err != nil {
		return nil, err
	}

	log.Info().
		Strs("weather_providers", service.Names()).
		Str("geocoder", geocoder.Name()).
		Msg("upstream providers configured")

	return &components{
		places:  places,
		fetcher: fetcher,
	}, nil
}
