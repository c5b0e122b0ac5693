package geo

// DefaultRadiusMiles is the exclusion zone around every tracked location.
const DefaultRadiusMiles = 10.0

// ProximityFilter gates new markers against existing ones. Checks are a linear
// scan; marker counts stay in the tens.
type ProximityFilter struct {
	RadiusMiles float64
}

func NewProximityFilter(radiusMiles float64) ProximityFilter {
	if radiusMiles <= 0 {
		radiusMiles = DefaultRadiusMiles
	}
	return ProximityFilter{RadiusMiles: radiusMiles}
}

// ShouldAccept returns false if candidate lies within the radius (inclusive)
// of any existing coordinate.
func (f ProximityFilter) ShouldAccept(candidate Coordinate, existing []Coordinate) bool {
	_, ok := f.Nearest(candidate, existing)
	return !ok
}

// Nearest returns the index of the first existing coordinate that blocks the
// candidate, if any.
func (f ProximityFilter) Nearest(candidate Coordinate, existing []Coordinate) (int, bool) {
	for i, c := range existing {
		if DistanceMiles(c, candidate) <= f.RadiusMiles {
			return i, true
		}
	}
	return -1, false
}
