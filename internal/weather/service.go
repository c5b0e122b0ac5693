package weather

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/i474232898/pinweather/internal/geo"
	"github.com/i474232898/pinweather/internal/upstream"
)

// ErrNoProviders is returned when the service has nothing to query.
var ErrNoProviders = errors.New("no weather providers configured")

// Service fans a current-weather request out to every configured provider and
// aggregates the successful readings.
type Service struct {
	providers []Provider
}

// NewService creates a new Service.
func NewService(providers []Provider) *Service {
	return &Service{
		providers: providers,
	}
}

// CurrentWeather fetches from all providers concurrently for the given
// coordinate. It fails only when no provider succeeds.
func (s *Service) CurrentWeather(ctx context.Context, c geo.Coordinate) (Snapshot, error) {
	if len(s.providers) == 0 {
		return Snapshot{}, upstream.NewProviderError("weather", "current weather", ErrNoProviders)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		readings = make([]*ProviderReading, len(s.providers))
		errs     []error
	)

	for i, p := range s.providers {
		wg.Add(1)
		go func(i int, p Provider) {
			defer wg.Done()

			r, err := p.Fetch(ctx, c)
			if err != nil {
				log.Warn().
					Str("provider", p.Name()).
					Float64("lat", c.Lat).
					Float64("lon", c.Lon).
					Err(err).
					Msg("weather provider fetch failed")
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
				mu.Unlock()
				return
			}
			readings[i] = &r
		}(i, p)
	}

	wg.Wait()

	// Keep provider order so aggregation tie-breaks are deterministic.
	ok := make([]ProviderReading, 0, len(readings))
	for _, r := range readings {
		if r != nil {
			ok = append(ok, *r)
		}
	}

	if len(ok) == 0 {
		return Snapshot{}, &upstream.ProviderError{Provider: "weather", Op: "current weather", Err: errors.Join(errs...)}
	}

	return AggregateReadings(ok), nil
}

// Names returns the configured provider names.
func (s *Service) Names() []string {
	names := make([]string, 0, len(s.providers))
	for _, p := range s.providers {
		names = append(names, p.Name())
	}
	return names
}
