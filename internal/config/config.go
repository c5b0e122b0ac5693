package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/i474232898/pinweather/internal/common"
)

const (
	GeocoderNominatim = "nominatim"
	GeocoderGoogle    = "google"

	ProviderOpenMeteo   = "openmeteo"
	ProviderOpenWeather = "openweather"
	ProviderWeatherAPI  = "weatherapi"
)

type AppConfig struct {
	Environment string
	LogLevel    zerolog.Level
	Port        string
	HTTPTimeout time.Duration

	// WeatherProviders are queried together and aggregated.
	WeatherProviders  []string
	OpenWeatherAPIKey string
	WeatherAPIKey     string

	Geocoder     string
	GoogleAPIKey string
	NominatimURL string

	ProximityRadiusMiles float64
	RefreshInterval      time.Duration
	// RefreshCheckInterval is how often the background job asks for a refresh.
	RefreshCheckInterval time.Duration
	SearchDebounce       time.Duration
	SearchLimit          int

	WeatherCacheTTL time.Duration
	CacheSize       int
	TimezoneLookup  bool
}

var defaults = map[string]any{
	"env":                    "production",
	"log_level":              "info",
	"port":                   "8080",
	"http_timeout":           "10s",
	"weather_providers":      ProviderOpenMeteo,
	"openweather_api_key":    "",
	"weatherapi_api_key":     "",
	"geocoder":               GeocoderNominatim,
	"google_api_key":         "",
	"nominatim_url":          "",
	"proximity_radius_miles": "10",
	"refresh_interval":       "1h",
	"refresh_check_interval": "5m",
	"search_debounce":        "500ms",
	"search_limit":           "10",
	"weather_cache_ttl":      "10m",
	"cache_size":             "256",
	"timezone_lookup":        "true",
}

// Load reads configuration from an optional .env file, an optional
// config.yaml and the environment, in increasing order of precedence.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("failed to load .env file")
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*AppConfig, error) {
	cfg := &AppConfig{
		Environment:       v.GetString("env"),
		LogLevel:          parseLevel(v.GetString("log_level")),
		Port:              v.GetString("port"),
		WeatherProviders:  common.SplitList(strings.ToLower(v.GetString("weather_providers"))),
		OpenWeatherAPIKey: v.GetString("openweather_api_key"),
		WeatherAPIKey:     v.GetString("weatherapi_api_key"),
		Geocoder:          strings.ToLower(strings.TrimSpace(v.GetString("geocoder"))),
		GoogleAPIKey:      v.GetString("google_api_key"),
		NominatimURL:      v.GetString("nominatim_url"),
	}

	var err error
	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"http_timeout", &cfg.HTTPTimeout},
		{"refresh_interval", &cfg.RefreshInterval},
		{"refresh_check_interval", &cfg.RefreshCheckInterval},
		{"search_debounce", &cfg.SearchDebounce},
		{"weather_cache_ttl", &cfg.WeatherCacheTTL},
	}
	for _, d := range durations {
		if *d.dst, err = time.ParseDuration(v.GetString(d.key)); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", envName(d.key), err)
		}
	}

	if cfg.ProximityRadiusMiles, err = strconv.ParseFloat(v.GetString("proximity_radius_miles"), 64); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", envName("proximity_radius_miles"), err)
	}
	if cfg.SearchLimit, err = strconv.Atoi(v.GetString("search_limit")); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", envName("search_limit"), err)
	}
	if cfg.CacheSize, err = strconv.Atoi(v.GetString("cache_size")); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", envName("cache_size"), err)
	}
	if cfg.TimezoneLookup, err = strconv.ParseBool(v.GetString("timezone_lookup")); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", envName("timezone_lookup"), err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	if len(c.WeatherProviders) == 0 {
		return errors.New("WEATHER_PROVIDERS must name at least one provider")
	}
	for _, p := range c.WeatherProviders {
		switch p {
		case ProviderOpenMeteo, ProviderOpenWeather, ProviderWeatherAPI:
		default:
			return fmt.Errorf("unknown weather provider %q", p)
		}
	}

	switch c.Geocoder {
	case GeocoderNominatim, GeocoderGoogle:
	default:
		return fmt.Errorf("unknown geocoder %q", c.Geocoder)
	}

	if c.ProximityRadiusMiles <= 0 {
		return errors.New("PROXIMITY_RADIUS_MILES must be positive")
	}
	if c.SearchLimit <= 0 {
		return errors.New("SEARCH_LIMIT must be positive")
	}
	if c.CacheSize <= 0 {
		return errors.New("CACHE_SIZE must be positive")
	}
	return nil
}

// Addr returns the listen address in the format ":port".
func (c *AppConfig) Addr() string {
	return ":" + c.Port
}

// InitializeLogging sets up logging based on the configuration
func (c *AppConfig) InitializeLogging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(c.LogLevel)

	// Setup console logger for development environments
	if c.Environment == "local" || c.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}
}

func parseLevel(level string) zerolog.Level {
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return parsed
}

func envName(key string) string {
	return strings.ToUpper(key)
}
