package weather

import "time"

// AggregateReadings combines multiple provider readings into a single Snapshot.
// Numeric fields are averaged; the condition is selected by majority, ties going
// to the condition seen first. UV is averaged over readings that report it.
func AggregateReadings(readings []ProviderReading) Snapshot {
	if len(readings) == 0 {
		return Snapshot{
			ObservedAt: time.Now().UTC(),
			Condition:  ConditionUnknown,
			IconID:     ConditionUnknown.Icon(),
		}
	}

	var (
		sumTemp float64
		sumUV   float64
		uvCount int
	)

	conditionCounts := make(map[Condition]int)
	var order []Condition
	providers := make([]ProviderContribution, 0, len(readings))
	var newestTS time.Time

	for _, r := range readings {
		sumTemp += r.TemperatureC
		if r.UVIndex != nil {
			sumUV += *r.UVIndex
			uvCount++
		}

		if _, seen := conditionCounts[r.Condition]; !seen {
			order = append(order, r.Condition)
		}
		conditionCounts[r.Condition]++

		if r.Timestamp.After(newestTS) {
			newestTS = r.Timestamp
		}

		providers = append(providers, ProviderContribution{
			ProviderName: r.ProviderName,
			Timestamp:    r.Timestamp,
		})
	}

	bestCond := ConditionUnknown
	bestCount := 0
	for _, cond := range order {
		if conditionCounts[cond] > bestCount {
			bestCount = conditionCounts[cond]
			bestCond = cond
		}
	}

	icon := bestCond.Icon()
	for _, r := range readings {
		if r.Condition == bestCond && r.IconID != "" {
			icon = r.IconID
			break
		}
	}

	if newestTS.IsZero() {
		newestTS = time.Now().UTC()
	}

	var uv float64
	if uvCount > 0 {
		uv = sumUV / float64(uvCount)
	}

	return Snapshot{
		Temperature: NewCelsius(sumTemp / float64(len(readings))),
		Condition:   bestCond,
		UVIndex:     uv,
		IconID:      icon,
		ObservedAt:  newestTS.UTC(),
		Providers:   providers,
	}
}
