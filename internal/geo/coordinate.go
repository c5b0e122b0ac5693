package geo

import (
	"errors"
	"fmt"
	"math"
)

// MetersPerMile is the statute mile used when converting geodesic distances.
const MetersPerMile = 1609.34

// earthRadiusMeters is the mean radius used for great-circle distances.
const earthRadiusMeters = 6371009.0

var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Coordinate is a WGS84 latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func NewCoordinate(lat, lon float64) Coordinate {
	return Coordinate{Lat: lat, Lon: lon}
}

// Validate reports whether the coordinate lies within the valid lat/lon ranges.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) {
		return fmt.Errorf("%w: NaN component", ErrInvalidCoordinate)
	}
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("%w: latitude %f out of range", ErrInvalidCoordinate, c.Lat)
	}
	if c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("%w: longitude %f out of range", ErrInvalidCoordinate, c.Lon)
	}
	return nil
}

// Key returns a canonical string key with the given number of decimals,
// used for indexing caches.
func (c Coordinate) Key(decimals int) string {
	return fmt.Sprintf("%.*f,%.*f", decimals, c.Lat, decimals, c.Lon)
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", c.Lat, c.Lon)
}

// DistanceMeters returns the great-circle distance between a and b.
func DistanceMeters(a, b Coordinate) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLon := toRadians(b.Lon - a.Lon)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(a.Lat))*math.Cos(toRadians(b.Lat))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusMeters * c
}

// DistanceMiles returns the great-circle distance between a and b in statute miles.
func DistanceMiles(a, b Coordinate) float64 {
	return DistanceMeters(a, b) / MetersPerMile
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
