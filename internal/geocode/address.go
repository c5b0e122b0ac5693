package geocode

import (
	"context"
	"strings"

	"github.com/i474232898/pinweather/internal/common"
	"github.com/i474232898/pinweather/internal/geo"
)

// Geocoder resolves a coordinate to a short display address. An empty address
// with a nil error means the provider had no result.
type Geocoder interface {
	Name() string
	ReverseGeocode(ctx context.Context, c geo.Coordinate) (string, error)
}

// FormatAddress builds the "City, ST" label shown on the quick card. region is
// reduced to its first two letters, uppercased.
func FormatAddress(city, region string) string {
	city = strings.TrimSpace(city)
	region = strings.ToUpper(common.TruncateRunes(strings.TrimSpace(region), 2))

	switch {
	case city != "" && region != "":
		return city + ", " + region
	case city != "":
		return city
	default:
		return region
	}
}
