package explorer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/pinweather/internal/enrich"
	"github.com/i474232898/pinweather/internal/geo"
	"github.com/i474232898/pinweather/internal/scheduler"
	"github.com/i474232898/pinweather/internal/search"
	"github.com/i474232898/pinweather/internal/store"
	"github.com/i474232898/pinweather/internal/upstream"
	"github.com/i474232898/pinweather/internal/weather"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

var (
	denver     = geo.NewCoordinate(39.7392, -104.9903)
	nearDenver = geo.NewCoordinate(39.7500, -104.9900)
	boulder    = geo.NewCoordinate(40.0150, -105.2705)
	aspen      = geo.NewCoordinate(39.1911, -106.8175)

	sunny = weather.Snapshot{Temperature: weather.NewCelsius(20), Condition: weather.ConditionClear, IconID: "sun.max", UVIndex: 5}
	snowy = weather.Snapshot{Temperature: weather.NewCelsius(-4), Condition: weather.ConditionSnow, IconID: "snow", UVIndex: 1}

	errDown = &upstream.ProviderError{Provider: "fake", Op: "test", Err: errors.New("service unavailable")}
)

type fakeEnricher struct {
	mu         sync.Mutex
	gates      map[geo.Coordinate]chan struct{}
	failing    map[geo.Coordinate]bool
	refreshErr map[geo.Coordinate]bool
	refreshed  []geo.Coordinate
}

func newFakeEnricher() *fakeEnricher {
	return &fakeEnricher{
		gates:      map[geo.Coordinate]chan struct{}{},
		failing:    map[geo.Coordinate]bool{},
		refreshErr: map[geo.Coordinate]bool{},
	}
}

// hold makes Resolve for c block until the returned func is called.
func (f *fakeEnricher) hold(c geo.Coordinate) (release func()) {
	gate := make(chan struct{})
	f.mu.Lock()
	f.gates[c] = gate
	f.mu.Unlock()
	return func() { close(gate) }
}

func (f *fakeEnricher) fail(c geo.Coordinate, v bool) {
	f.mu.Lock()
	f.failing[c] = v
	f.mu.Unlock()
}

func (f *fakeEnricher) Resolve(ctx context.Context, c geo.Coordinate) (enrich.Result, error) {
	f.mu.Lock()
	gate := f.gates[c]
	failing := f.failing[c]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return enrich.Result{}, ctx.Err()
		}
	}
	if failing {
		return enrich.Result{}, errDown
	}
	return enrich.Result{Weather: sunny, Address: "Somewhere, CO", Timezone: "America/Denver"}, nil
}

func (f *fakeEnricher) RefreshWeather(_ context.Context, c geo.Coordinate) (weather.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed = append(f.refreshed, c)
	if f.refreshErr[c] {
		return weather.Snapshot{}, errDown
	}
	return snowy, nil
}

type fakePlaces struct {
	mu       sync.Mutex
	results  map[string][]search.Result
	failing  map[string]bool
	gates    map[string]chan struct{}
	queries  []string
	finished int
}

func newFakePlaces() *fakePlaces {
	return &fakePlaces{
		results: map[string][]search.Result{
			"boulder": {{Name: "Boulder, Colorado", Coordinate: boulder}},
			"den":     {{Name: "Denver, Colorado", Coordinate: denver}},
		},
		failing: map[string]bool{},
		gates:   map[string]chan struct{}{},
	}
}

func (f *fakePlaces) Search(ctx context.Context, query string) ([]search.Result, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	gate := f.gates[query]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished++
	if f.failing[query] {
		return nil, errDown
	}
	return f.results[query], nil
}

func (f *fakePlaces) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) record(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) last(kind EventKind) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Kind == kind {
			return r.events[i], true
		}
	}
	return Event{}, false
}

type manualNow struct {
	mu  sync.Mutex
	now time.Time
}

func (m *manualNow) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *manualNow) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

type harness struct {
	ex       *Explorer
	store    *store.MarkerStore
	enricher *fakeEnricher
	places   *fakePlaces
	events   *recorder
}

func start(t *testing.T, opts ...Option) *harness {
	t.Helper()

	h := &harness{
		store:    store.NewMarkerStore(),
		enricher: newFakeEnricher(),
		places:   newFakePlaces(),
		events:   &recorder{},
	}
	h.ex = New(Config{SearchDebounce: 50 * time.Millisecond, FetchTimeout: time.Second}, h.store, h.enricher, h.places, opts...)
	h.ex.Subscribe(h.events.record)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = h.ex.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})
	return h
}

func (h *harness) waitForLocations(t *testing.T, n int) []store.TrackedLocation {
	t.Helper()
	require.Eventually(t, func() bool { return len(h.ex.Locations()) == n }, waitFor, tick)
	// A round trip through the loop lets the committing handler finish.
	h.searchState(t)
	return h.ex.Locations()
}

func (h *harness) searchState(t *testing.T) SearchState {
	t.Helper()
	st, err := h.ex.SearchState(context.Background())
	require.NoError(t, err)
	return st
}

func TestReserveAt_CommitsAndSelects(t *testing.T) {
	h := start(t)
	ctx := context.Background()

	id, err := h.ex.ReserveAt(ctx, denver, "")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	locs := h.waitForLocations(t, 1)
	assert.Equal(t, id, locs[0].ID)
	assert.Equal(t, denver, locs[0].Coordinate)
	assert.Equal(t, "Somewhere, CO", locs[0].Address)
	assert.Equal(t, sunny, *locs[0].Weather)

	sel, ok := h.ex.Selection()
	require.True(t, ok)
	assert.Equal(t, id, sel.ID)

	ev, ok := h.events.last(EventLocationsChanged)
	require.True(t, ok)
	assert.Equal(t, id, ev.LocationID)
}

func TestReserveAt_ProximityGate(t *testing.T) {
	h := start(t)
	ctx := context.Background()

	release := h.enricher.hold(denver)
	defer release()

	_, err := h.ex.ReserveAt(ctx, denver, "")
	require.NoError(t, err)

	// The pending reservation already blocks its radius.
	_, err = h.ex.ReserveAt(ctx, nearDenver, "")
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.ErrorIs(t, err, ErrTooClose)

	_, err = h.ex.ReserveAt(ctx, aspen, "")
	require.NoError(t, err)
	h.waitForLocations(t, 1)
}

func TestReserveAt_InvalidCoordinate(t *testing.T) {
	h := start(t)

	_, err := h.ex.ReserveAt(context.Background(), geo.NewCoordinate(91, 0), "")
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinate)
}

func TestReserveAt_WeatherFailureNeverSurfaces(t *testing.T) {
	h := start(t)
	ctx := context.Background()

	h.enricher.fail(denver, true)
	id, err := h.ex.ReserveAt(ctx, denver, "pin-1")
	require.NoError(t, err)

	var ev Event
	require.Eventually(t, func() bool {
		var ok bool
		ev, ok = h.events.last(EventNotice)
		return ok
	}, waitFor, tick)
	assert.Equal(t, id, ev.LocationID)

	assert.Zero(t, h.store.Len())
	assert.Empty(t, h.ex.Locations())
	_, ok := h.ex.Selection()
	assert.False(t, ok)
	_, ok = h.events.last(EventLocationsChanged)
	assert.False(t, ok)

	// The radius is free again.
	h.enricher.fail(denver, false)
	_, err = h.ex.ReserveAt(ctx, nearDenver, "")
	require.NoError(t, err)
	h.waitForLocations(t, 1)
}

func TestReserveAt_AddressFailureKeepsMarker(t *testing.T) {
	st := store.NewMarkerStore()
	fetcher, err := enrich.NewFetcher(
		weatherFunc(func(context.Context, geo.Coordinate) (weather.Snapshot, error) { return sunny, nil }),
		geocoderFunc(func(context.Context, geo.Coordinate) (string, error) { return "", errDown }),
	)
	require.NoError(t, err)

	ex := New(Config{}, st, fetcher, newFakePlaces())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = ex.Run(ctx) }()

	_, err = ex.ReserveAt(ctx, aspen, "")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(ex.Locations()) == 1 }, waitFor, tick)
	assert.Empty(t, ex.Locations()[0].Address)
	assert.Equal(t, sunny, *ex.Locations()[0].Weather)
}

type weatherFunc func(context.Context, geo.Coordinate) (weather.Snapshot, error)

func (f weatherFunc) CurrentWeather(ctx context.Context, c geo.Coordinate) (weather.Snapshot, error) {
	return f(ctx, c)
}

type geocoderFunc func(context.Context, geo.Coordinate) (string, error)

func (f geocoderFunc) ReverseGeocode(ctx context.Context, c geo.Coordinate) (string, error) {
	return f(ctx, c)
}

func TestSelectionSurvivesUnrelatedCommit(t *testing.T) {
	h := start(t)
	ctx := context.Background()

	a, err := h.ex.ReserveAt(ctx, denver, "")
	require.NoError(t, err)
	h.waitForLocations(t, 1)

	release := h.enricher.hold(aspen)
	_, err = h.ex.ReserveAt(ctx, aspen, "")
	require.NoError(t, err)

	require.NoError(t, h.ex.Select(ctx, a))
	release()

	h.waitForLocations(t, 2)
	sel, ok := h.ex.Selection()
	require.True(t, ok)
	assert.Equal(t, a, sel.ID)
}

func TestNewestCommitIsSelectedWithoutUserSelection(t *testing.T) {
	h := start(t)
	ctx := context.Background()

	_, err := h.ex.ReserveAt(ctx, denver, "")
	require.NoError(t, err)
	h.waitForLocations(t, 1)

	b, err := h.ex.ReserveAt(ctx, aspen, "")
	require.NoError(t, err)
	h.waitForLocations(t, 2)

	sel, ok := h.ex.Selection()
	require.True(t, ok)
	assert.Equal(t, b, sel.ID)
}

func TestSelectByHandle(t *testing.T) {
	h := start(t)
	ctx := context.Background()

	a, err := h.ex.ReserveAt(ctx, denver, "pin-a")
	require.NoError(t, err)
	b, err := h.ex.ReserveAt(ctx, aspen, "")
	require.NoError(t, err)
	h.waitForLocations(t, 2)

	require.NoError(t, h.ex.SelectByHandle(ctx, "pin-a"))
	sel, _ := h.ex.Selection()
	assert.Equal(t, a, sel.ID)

	require.NoError(t, h.ex.BindHandle(ctx, b, "pin-b"))
	require.NoError(t, h.ex.SelectByHandle(ctx, "pin-b"))
	sel, _ = h.ex.Selection()
	assert.Equal(t, b, sel.ID)

	assert.ErrorIs(t, h.ex.SelectByHandle(ctx, "unknown"), store.ErrNotFound)
	assert.ErrorIs(t, h.ex.Select(ctx, "unknown"), store.ErrNotFound)
	assert.ErrorIs(t, h.ex.BindHandle(ctx, "unknown", "pin-c"), store.ErrNotFound)

	require.NoError(t, h.ex.ClearSelection(ctx))
	_, ok := h.ex.Selection()
	assert.False(t, ok)
}

func TestTriggerRefresh(t *testing.T) {
	clock := &manualNow{now: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
	h := start(t, WithClock(clock.Now))
	ctx := context.Background()

	for _, c := range []geo.Coordinate{denver, boulder, aspen} {
		_, err := h.ex.ReserveAt(ctx, c, "")
		require.NoError(t, err)
	}
	locs := h.waitForLocations(t, 3)

	res, err := h.ex.TriggerRefresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, scheduler.StatusNotDue, res.Status)
	assert.Equal(t, clock.Now().Add(time.Hour), res.NextDue)

	h.enricher.mu.Lock()
	h.enricher.refreshErr[boulder] = true
	h.enricher.mu.Unlock()

	clock.Advance(time.Hour + time.Second)
	res, err = h.ex.TriggerRefresh(ctx)
	require.NoError(t, err)
	assert.True(t, res.Due())

	var report *store.RefreshReport
	require.Eventually(t, func() bool {
		ev, ok := h.events.last(EventRefreshed)
		report = ev.Report
		return ok
	}, waitFor, tick)

	require.NotNil(t, report)
	assert.ElementsMatch(t, []store.ID{locs[0].ID, locs[2].ID}, report.Updated)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, locs[1].ID, report.Failures[0].ID)

	after := h.ex.Locations()
	assert.Equal(t, snowy, *after[0].Weather)
	assert.Equal(t, sunny, *after[1].Weather)
	assert.Equal(t, snowy, *after[2].Weather)

	res, err = h.ex.TriggerRefresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, scheduler.StatusNotDue, res.Status)
}

func TestSearch_DebouncesBurst(t *testing.T) {
	h := start(t)
	ctx := context.Background()

	for _, text := range []string{"b", "bou", "boulder"} {
		require.NoError(t, h.ex.TextChanged(ctx, text))
	}

	require.Eventually(t, func() bool { return len(h.searchState(t).Candidates) == 1 }, waitFor, tick)
	st := h.searchState(t)
	assert.Equal(t, "boulder", st.Text)
	assert.Equal(t, "Boulder, Colorado", st.Candidates[0].Name)
	assert.Equal(t, []string{"boulder"}, h.places.calls())
}

func TestSearch_LastInvocationWins(t *testing.T) {
	h := start(t)
	ctx := context.Background()

	gate := make(chan struct{})
	h.places.mu.Lock()
	h.places.gates["den"] = gate
	h.places.mu.Unlock()

	require.NoError(t, h.ex.TextChanged(ctx, "den"))
	require.Eventually(t, func() bool { return len(h.places.calls()) == 1 }, waitFor, tick)

	require.NoError(t, h.ex.TextChanged(ctx, "boulder"))
	require.Eventually(t, func() bool { return len(h.searchState(t).Candidates) == 1 }, waitFor, tick)

	close(gate)
	require.Eventually(t, func() bool {
		h.places.mu.Lock()
		defer h.places.mu.Unlock()
		return h.places.finished == 2
	}, waitFor, tick)
	time.Sleep(50 * time.Millisecond)

	st := h.searchState(t)
	require.Len(t, st.Candidates, 1)
	assert.Equal(t, boulder, st.Candidates[0].Coordinate)
}

func TestSearch_FailureClearsCandidates(t *testing.T) {
	h := start(t)
	ctx := context.Background()

	require.NoError(t, h.ex.TextChanged(ctx, "boulder"))
	require.Eventually(t, func() bool { return len(h.searchState(t).Candidates) == 1 }, waitFor, tick)

	h.places.mu.Lock()
	h.places.failing["broken"] = true
	h.places.mu.Unlock()

	require.NoError(t, h.ex.TextChanged(ctx, "broken"))
	require.Eventually(t, func() bool {
		_, ok := h.events.last(EventNotice)
		return ok
	}, waitFor, tick)
	assert.Empty(t, h.searchState(t).Candidates)
}

func TestSearch_BlankQueryClearsWithoutSearching(t *testing.T) {
	h := start(t)
	ctx := context.Background()

	require.NoError(t, h.ex.TextChanged(ctx, "boulder"))
	require.Eventually(t, func() bool { return len(h.searchState(t).Candidates) == 1 }, waitFor, tick)

	require.NoError(t, h.ex.TextChanged(ctx, "   "))
	require.Eventually(t, func() bool { return len(h.searchState(t).Candidates) == 0 }, waitFor, tick)
	assert.Equal(t, []string{"boulder"}, h.places.calls())
}

func TestSelectSearchResult(t *testing.T) {
	h := start(t)
	ctx := context.Background()

	_, err := h.ex.SelectSearchResult(ctx, 0)
	assert.True(t, IsValidationError(err))

	require.NoError(t, h.ex.TextChanged(ctx, "boulder"))
	require.Eventually(t, func() bool { return len(h.searchState(t).Candidates) == 1 }, waitFor, tick)

	id, err := h.ex.SelectSearchResult(ctx, 0)
	require.NoError(t, err)

	st := h.searchState(t)
	assert.Empty(t, st.Text)
	assert.Empty(t, st.Candidates)

	locs := h.waitForLocations(t, 1)
	assert.Equal(t, id, locs[0].ID)
	assert.Equal(t, boulder, locs[0].Coordinate)
}

func TestEntryPointsAfterStop(t *testing.T) {
	ex := New(Config{}, store.NewMarkerStore(), newFakeEnricher(), newFakePlaces())

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = ex.Run(ctx)
	}()
	cancel()
	<-stopped

	_, err := ex.ReserveAt(context.Background(), denver, "")
	assert.ErrorIs(t, err, ErrStopped)
	_, err = ex.TriggerRefresh(context.Background())
	assert.ErrorIs(t, err, ErrStopped)
	assert.Error(t, ex.Run(context.Background()), "an explorer runs once")
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	h := start(t)
	ctx := context.Background()

	var mu sync.Mutex
	count := 0
	unsubscribe := h.ex.Subscribe(func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	unsubscribe()

	_, err := h.ex.ReserveAt(ctx, denver, "")
	require.NoError(t, err)
	h.waitForLocations(t, 1)

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, count)
}
