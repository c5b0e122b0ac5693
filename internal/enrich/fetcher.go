package enrich

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"

	"github.com/i474232898/pinweather/internal/geo"
	"github.com/i474232898/pinweather/internal/weather"
)

const (
	DefaultCacheSize  = 256
	DefaultWeatherTTL = 10 * time.Minute

	// cacheKeyDecimals groups coordinates roughly 100m apart.
	cacheKeyDecimals = 3
)

// WeatherProvider returns the current weather at a coordinate.
type WeatherProvider interface {
	CurrentWeather(ctx context.Context, c geo.Coordinate) (weather.Snapshot, error)
}

// GeocodingProvider returns a display address for a coordinate; "" means no result.
type GeocodingProvider interface {
	ReverseGeocode(ctx context.Context, c geo.Coordinate) (string, error)
}

// TimezoneLookup resolves the IANA timezone of a coordinate; "" means unknown.
type TimezoneLookup interface {
	TimezoneName(c geo.Coordinate) string
}

// Result is the enrichment attached to a reserved location.
type Result struct {
	Weather  weather.Snapshot `json:"weather"`
	Address  string           `json:"address,omitempty"`
	Timezone string           `json:"timezone,omitempty"`
}

type cachedSnapshot struct {
	Snapshot  weather.Snapshot
	ExpiresAt time.Time
}

// Fetcher resolves weather and address for a coordinate. Weather is mandatory,
// the address is best effort.
type Fetcher struct {
	weather  WeatherProvider
	geocoder GeocodingProvider
	timezone TimezoneLookup

	cacheSize  int
	weatherTTL time.Duration
	now        func() time.Time

	addresses *lru.Cache[string, string]
	snapshots *lru.Cache[string, cachedSnapshot]

	weatherHits   atomic.Uint64
	weatherMisses atomic.Uint64
	addressHits   atomic.Uint64
	addressMisses atomic.Uint64
}

type Option func(*Fetcher)

// WithTimezone enables timezone lookup for resolved locations.
func WithTimezone(tz TimezoneLookup) Option {
	return func(f *Fetcher) {
		f.timezone = tz
	}
}

// WithCacheSize sets the capacity of the address and weather caches.
func WithCacheSize(n int) Option {
	return func(f *Fetcher) {
		f.cacheSize = n
	}
}

// WithWeatherTTL sets how long a cached weather snapshot may be reused.
// Zero disables weather caching.
func WithWeatherTTL(ttl time.Duration) Option {
	return func(f *Fetcher) {
		f.weatherTTL = ttl
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) {
		f.now = now
	}
}

func NewFetcher(wp WeatherProvider, gp GeocodingProvider, opts ...Option) (*Fetcher, error) {
	f := &Fetcher{
		weather:    wp,
		geocoder:   gp,
		cacheSize:  DefaultCacheSize,
		weatherTTL: DefaultWeatherTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}

	var err error
	f.addresses, err = lru.New[string, string](f.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating address cache: %w", err)
	}
	f.snapshots, err = lru.New[string, cachedSnapshot](f.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating weather cache: %w", err)
	}
	return f, nil
}

// Resolve issues the weather and address lookups in parallel. A weather
// failure fails the whole enrichment; an address failure leaves Address empty.
func (f *Fetcher) Resolve(ctx context.Context, c geo.Coordinate) (Result, error) {
	var (
		wg         sync.WaitGroup
		snapshot   weather.Snapshot
		address    string
		weatherErr error
		addressErr error
	)

	wg.Add(2)

	go func() {
		defer wg.Done()
		snapshot, weatherErr = f.cachedWeather(ctx, c)
	}()

	go func() {
		defer wg.Done()
		address, addressErr = f.address(ctx, c)
	}()

	wg.Wait()

	if weatherErr != nil {
		return Result{}, fmt.Errorf("failed to get weather: %w", weatherErr)
	}

	if addressErr != nil {
		log.Warn().
			Float64("lat", c.Lat).
			Float64("lon", c.Lon).
			Err(addressErr).
			Msg("address lookup failed, continuing without address")
		address = ""
	}

	res := Result{
		Weather: snapshot,
		Address: address,
	}
	if f.timezone != nil {
		res.Timezone = f.timezone.TimezoneName(c)
	}
	return res, nil
}

// RefreshWeather always asks the provider and updates the cache.
func (f *Fetcher) RefreshWeather(ctx context.Context, c geo.Coordinate) (weather.Snapshot, error) {
	s, err := f.weather.CurrentWeather(ctx, c)
	if err != nil {
		return weather.Snapshot{}, err
	}
	f.storeWeather(c, s)
	return s, nil
}

func (f *Fetcher) cachedWeather(ctx context.Context, c geo.Coordinate) (weather.Snapshot, error) {
	key := c.Key(cacheKeyDecimals)
	if entry, ok := f.snapshots.Get(key); ok {
		if f.now().Before(entry.ExpiresAt) {
			f.weatherHits.Add(1)
			return entry.Snapshot, nil
		}
		f.snapshots.Remove(key)
	}
	f.weatherMisses.Add(1)

	return f.RefreshWeather(ctx, c)
}

func (f *Fetcher) storeWeather(c geo.Coordinate, s weather.Snapshot) {
	if f.weatherTTL <= 0 {
		return
	}
	f.snapshots.Add(c.Key(cacheKeyDecimals), cachedSnapshot{
		Snapshot:  s,
		ExpiresAt: f.now().Add(f.weatherTTL),
	})
}

func (f *Fetcher) address(ctx context.Context, c geo.Coordinate) (string, error) {
	if f.geocoder == nil {
		return "", nil
	}

	key := c.Key(cacheKeyDecimals)
	if addr, ok := f.addresses.Get(key); ok {
		f.addressHits.Add(1)
		return addr, nil
	}
	f.addressMisses.Add(1)

	addr, err := f.geocoder.ReverseGeocode(ctx, c)
	if err != nil {
		return "", err
	}
	f.addresses.Add(key, addr)
	return addr, nil
}

// CacheStats returns cache hit and miss counters.
func (f *Fetcher) CacheStats() map[string]uint64 {
	return map[string]uint64{
		"weather_hits":   f.weatherHits.Load(),
		"weather_misses": f.weatherMisses.Load(),
		"address_hits":   f.addressHits.Load(),
		"address_misses": f.addressMisses.Load(),
	}
}

// Clear drops every cached entry.
func (f *Fetcher) Clear() {
	f.addresses.Purge()
	f.snapshots.Purge()
}
