package geocode

import (
	"context"
	"errors"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/pinweather/internal/geo"
	"github.com/i474232898/pinweather/internal/upstream"
)

var errNoGoogleKey = errors.New("google api key is not configured")

// GoogleGeocoder reverse geocodes with the Google Geocoding API.
type GoogleGeocoder struct {
	reverse func(geocoder.Location) ([]geocoder.Address, error)
	hasKey  bool
}

// NewGoogleGeocoder sets the package-level key of kelvins/geocoder, so only one
// Google key can be in use per process.
func NewGoogleGeocoder(apiKey string) *GoogleGeocoder {
	if apiKey != "" {
		geocoder.ApiKey = apiKey
	}
	return &GoogleGeocoder{
		reverse: geocoder.GeocodingReverse,
		hasKey:  apiKey != "",
	}
}

func (g *GoogleGeocoder) Name() string {
	return "google"
}

func (g *GoogleGeocoder) ReverseGeocode(ctx context.Context, c geo.Coordinate) (string, error) {
	if !g.hasKey {
		return "", upstream.NewProviderError(g.Name(), "reverse geocode", errNoGoogleKey)
	}

	type result struct {
		addresses []geocoder.Address
		err       error
	}
	done := make(chan result, 1)

	// The library call takes no context; abandon it if ctx ends first.
	go func() {
		addresses, err := g.reverse(geocoder.Location{
			Latitude:  c.Lat,
			Longitude: c.Lon,
		})
		done <- result{addresses: addresses, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", upstream.NewProviderError(g.Name(), "reverse geocode", ctx.Err())
	case r := <-done:
		if r.err != nil {
			return "", upstream.NewProviderError(g.Name(), "reverse geocode", r.err)
		}
		if len(r.addresses) == 0 {
			return "", nil
		}
		first := r.addresses[0]
		return FormatAddress(first.City, first.State), nil
	}
}
