package store

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/i474232898/pinweather/internal/geo"
	"github.com/i474232898/pinweather/internal/weather"
)

// WeatherFetcher returns fresh weather for a coordinate.
type WeatherFetcher func(ctx context.Context, c geo.Coordinate) (weather.Snapshot, error)

// RefreshTarget is a location captured for a refresh batch.
type RefreshTarget struct {
	ID         ID
	Coordinate geo.Coordinate
}

// RefreshResult is the outcome of refreshing one location.
type RefreshResult struct {
	ID       ID
	Snapshot weather.Snapshot
	Err      error
}

// RefreshFailure pairs a location with the error that prevented its refresh.
type RefreshFailure struct {
	ID      ID     `json:"id"`
	Err     error  `json:"-"`
	Message string `json:"error"`
}

func (f RefreshFailure) Error() string {
	return string(f.ID) + ": " + f.Err.Error()
}

// RefreshReport summarises a refresh batch. Failures never abort the batch.
type RefreshReport struct {
	Updated  []ID             `json:"updated"`
	Failures []RefreshFailure `json:"failures,omitempty"`
}

// RefreshTargets captures every committed location. Reservations are skipped
// since their weather is still being resolved.
func (s *MarkerStore) RefreshTargets() []RefreshTarget {
	s.mu.RLock()
	defer s.mu.RUnlock()

	targets := make([]RefreshTarget, 0, len(s.order))
	for _, id := range s.order {
		loc := s.entries[id]
		if loc.Pending() {
			continue
		}
		targets = append(targets, RefreshTarget{ID: id, Coordinate: loc.Coordinate})
	}
	return targets
}

// FetchRefreshes fetches weather for each target concurrently. Results keep
// the order of targets. It does not touch any store.
func FetchRefreshes(ctx context.Context, targets []RefreshTarget, fetch WeatherFetcher) []RefreshResult {
	results := make([]RefreshResult, len(targets))

	var wg sync.WaitGroup
	for i, t := range targets {
		i, t := i, t
		wg.Add(1)
		go func() {
			defer wg.Done()

			snapshot, err := fetch(ctx, t.Coordinate)
			results[i] = RefreshResult{ID: t.ID, Snapshot: snapshot, Err: err}
		}()
	}
	wg.Wait()

	return results
}

// ApplyRefresh replaces weather in place for every successful result and
// collects failures per location.
func (s *MarkerStore) ApplyRefresh(results []RefreshResult) RefreshReport {
	var report RefreshReport

	s.mu.Lock()
	for _, r := range results {
		if r.Err != nil {
			report.Failures = append(report.Failures, RefreshFailure{ID: r.ID, Err: r.Err, Message: r.Err.Error()})
			continue
		}
		loc, ok := s.entries[r.ID]
		if !ok {
			continue
		}
		w := r.Snapshot
		loc.Weather = &w
		loc.UpdatedAt = s.now()
		report.Updated = append(report.Updated, r.ID)
	}
	s.mu.Unlock()

	for _, f := range report.Failures {
		log.Warn().
			Str("location_id", string(f.ID)).
			Err(f.Err).
			Msg("weather refresh failed")
	}

	if len(report.Updated) > 0 {
		s.notify(Change{Kind: CollectionChanged})
	}
	return report
}

// RefreshAll re-fetches weather for every committed location and applies the
// results. Each location succeeds or fails on its own.
func (s *MarkerStore) RefreshAll(ctx context.Context, fetch WeatherFetcher) RefreshReport {
	return s.ApplyRefresh(FetchRefreshes(ctx, s.RefreshTargets(), fetch))
}
