package enrich

import (
	"fmt"

	"github.com/ringsaturn/tzf"

	"github.com/i474232898/pinweather/internal/geo"
)

// tzfLookup resolves timezones offline from the bundled tzf dataset.
type tzfLookup struct {
	finder tzf.F
}

// NewTimezoneLookup loads the tzf dataset. It holds tens of megabytes, so
// callers should build one and share it.
func NewTimezoneLookup() (TimezoneLookup, error) {
	finder, err := tzf.NewDefaultFinder()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize timezone finder: %w", err)
	}
	return &tzfLookup{finder: finder}, nil
}

// TimezoneName returns names like "America/Denver"; "" when no zone matches.
func (l *tzfLookup) TimezoneName(c geo.Coordinate) string {
	return l.finder.GetTimezoneName(c.Lon, c.Lat)
}
