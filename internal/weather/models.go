package weather

import (
	"math"
	"time"
)

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	ConditionUnknown Condition = "unknown"
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionRain    Condition = "rain"
	ConditionSnow    Condition = "snow"
	ConditionStorm   Condition = "storm"
	ConditionMist    Condition = "mist"
)

// Icon returns a symbol name for the condition, used when a provider does not
// supply its own icon.
func (c Condition) Icon() string {
	switch c {
	case ConditionClear:
		return "sun.max"
	case ConditionCloudy:
		return "cloud"
	case ConditionRain:
		return "cloud.rain"
	case ConditionSnow:
		return "cloud.snow"
	case ConditionStorm:
		return "cloud.bolt.rain"
	case ConditionMist:
		return "cloud.fog"
	default:
		return "questionmark"
	}
}

// TemperatureUnit names the unit of a Temperature value.
type TemperatureUnit string

const (
	Celsius    TemperatureUnit = "C"
	Fahrenheit TemperatureUnit = "F"
)

// Temperature is a scalar with unit.
type Temperature struct {
	Value float64         `json:"value"`
	Unit  TemperatureUnit `json:"unit"`
}

func NewCelsius(v float64) Temperature {
	return Temperature{Value: v, Unit: Celsius}
}

// Fahrenheit returns the whole-degree Fahrenheit value shown on a marker.
func (t Temperature) Fahrenheit() int {
	if t.Unit == Fahrenheit {
		return int(math.Round(t.Value))
	}
	return int(math.Round(t.Value*9/5 + 32))
}

// Snapshot is the normalized current-weather view at a point in time.
// It is treated as immutable and replaced wholesale on refresh.
type Snapshot struct {
	Temperature Temperature `json:"temperature"`
	Condition   Condition   `json:"condition"`
	UVIndex     float64     `json:"uvIndex"`
	IconID      string      `json:"iconId"`
	ObservedAt  time.Time   `json:"observedAt"` // always UTC

	// Providers contributing to this snapshot.
	Providers []ProviderContribution `json:"providers,omitempty"`
}

// ProviderContribution describes data coming from a single provider used in aggregation.
type ProviderContribution struct {
	ProviderName string    `json:"provider"`
	Timestamp    time.Time `json:"timestamp"`
}
