// Package explorer owns the tracked locations and search state of one map
// session. All mutation happens on the goroutine running Run; lookups run as
// background tasks whose results are posted back to that goroutine.
package explorer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/i474232898/pinweather/internal/enrich"
	"github.com/i474232898/pinweather/internal/geo"
	"github.com/i474232898/pinweather/internal/scheduler"
	"github.com/i474232898/pinweather/internal/search"
	"github.com/i474232898/pinweather/internal/store"
	"github.com/i474232898/pinweather/internal/weather"
)

const DefaultFetchTimeout = 30 * time.Second

// Enricher resolves the data attached to a pin.
type Enricher interface {
	Resolve(ctx context.Context, c geo.Coordinate) (enrich.Result, error)
	RefreshWeather(ctx context.Context, c geo.Coordinate) (weather.Snapshot, error)
}

type Config struct {
	RadiusMiles     float64
	RefreshInterval time.Duration
	SearchDebounce  time.Duration
	// FetchTimeout bounds every background task.
	FetchTimeout time.Duration
}

// SearchState is the search box text and the current candidate list.
type SearchState struct {
	Text       string          `json:"text"`
	Candidates []search.Result `json:"candidates"`
}

type Option func(*Explorer)

// WithClock replaces time.Now for refresh scheduling.
func WithClock(now func() time.Time) Option {
	return func(e *Explorer) {
		e.now = now
	}
}

// WithDebounceClock replaces the clock driving search debouncing.
func WithDebounceClock(c search.Clock) Option {
	return func(e *Explorer) {
		e.debounceClock = c
	}
}

type Explorer struct {
	cfg      Config
	store    *store.MarkerStore
	filter   geo.ProximityFilter
	enricher Enricher
	places   search.Provider

	now           func() time.Time
	debounceClock search.Clock
	refresh       *scheduler.RefreshScheduler
	debouncer     *search.Debouncer

	inbox   chan message
	done    chan struct{}
	running atomic.Bool
	tasks   sync.WaitGroup

	listenersMu  sync.Mutex
	listeners    map[int]func(Event)
	nextListener int

	// Owned by the loop goroutine.
	ctx          context.Context
	selectionGen uint64
	pending      map[store.ID]uint64
	searchText   string
	candidates   []search.Result
	searchSeq    uint64
}

func New(cfg Config, s *store.MarkerStore, enricher Enricher, places search.Provider, opts ...Option) *Explorer {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}

	e := &Explorer{
		cfg:       cfg,
		store:     s,
		filter:    geo.NewProximityFilter(cfg.RadiusMiles),
		enricher:  enricher,
		places:    places,
		now:       time.Now,
		inbox:     make(chan message),
		done:      make(chan struct{}),
		listeners: make(map[int]func(Event)),
		pending:   make(map[store.ID]uint64),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.refresh = scheduler.NewRefreshScheduler(cfg.RefreshInterval, e.now())

	var debounceOpts []search.DebouncerOption
	if e.debounceClock != nil {
		debounceOpts = append(debounceOpts, search.WithClock(e.debounceClock))
	}
	e.debouncer = search.NewDebouncer(cfg.SearchDebounce, func(text string) {
		e.post(searchDue{text: text})
	}, debounceOpts...)

	s.Subscribe(e.onStoreChange)
	return e
}

// Run processes entry points and task results until ctx is cancelled.
func (e *Explorer) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return errors.New("explorer already running")
	}
	e.ctx = ctx

	log.Info().Float64("radius_miles", e.filter.RadiusMiles).Msg("explorer started")
	for {
		select {
		case <-ctx.Done():
			e.debouncer.Stop()
			close(e.done)
			e.tasks.Wait()
			log.Info().Msg("explorer stopped")
			return nil
		case m := <-e.inbox:
			m.handle(e)
		}
	}
}

// call runs fn on the loop goroutine and waits for it.
func (e *Explorer) call(ctx context.Context, fn func()) error {
	cmd := command{fn: fn, done: make(chan struct{})}
	select {
	case e.inbox <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return ErrStopped
	}
	<-cmd.done
	return nil
}

// post delivers a task result to the loop. It gives up once Run has returned.
func (e *Explorer) post(m message) bool {
	select {
	case e.inbox <- m:
		return true
	case <-e.done:
		return false
	}
}

// spawn runs task off the loop and posts its result back.
func (e *Explorer) spawn(task func(ctx context.Context) message) {
	ctx := e.ctx
	e.tasks.Add(1)
	go func() {
		defer e.tasks.Done()

		tctx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
		m := task(tctx)
		cancel()

		e.post(m)
	}()
}

// ReserveAt places a pin at c (a map tap). It returns once the reservation
// exists; weather and address arrive asynchronously.
func (e *Explorer) ReserveAt(ctx context.Context, c geo.Coordinate, h store.Handle) (store.ID, error) {
	if err := c.Validate(); err != nil {
		return "", invalid(err)
	}

	var (
		id  store.ID
		err error
	)
	if cerr := e.call(ctx, func() { id, err = e.reserve(c, h) }); cerr != nil {
		return "", cerr
	}
	return id, err
}

func (e *Explorer) reserve(c geo.Coordinate, h store.Handle) (store.ID, error) {
	existing := e.store.Coordinates()
	if i, blocked := e.filter.Nearest(c, existing); blocked {
		log.Info().
			Float64("lat", c.Lat).
			Float64("lon", c.Lon).
			Str("blocked_by", existing[i].String()).
			Msg("marker rejected: too close to an existing marker")
		return "", invalid(ErrTooClose)
	}

	id := e.store.Reserve(c, h)
	e.pending[id] = e.selectionGen

	log.Debug().
		Str("location_id", string(id)).
		Float64("lat", c.Lat).
		Float64("lon", c.Lon).
		Msg("location reserved")

	e.spawn(func(ctx context.Context) message {
		res, err := e.enricher.Resolve(ctx, c)
		return enrichmentDone{id: id, coordinate: c, result: res, err: err}
	})
	return id, nil
}

func (e *Explorer) commitEnrichment(m enrichmentDone) {
	gen, tracked := e.pending[m.id]
	delete(e.pending, m.id)

	if m.err != nil {
		e.store.Discard(m.id)
		log.Warn().
			Str("location_id", string(m.id)).
			Float64("lat", m.coordinate.Lat).
			Float64("lon", m.coordinate.Lon).
			Err(m.err).
			Msg("weather unavailable, marker dropped")
		e.emit(Event{
			Kind:       EventNotice,
			LocationID: m.id,
			Message:    fmt.Sprintf("Weather is unavailable for %s", m.coordinate),
		})
		return
	}

	if !e.store.Commit(m.id, m.result.Weather, m.result.Address, m.result.Timezone) {
		return
	}

	// The new pin becomes current unless the user picked something else meanwhile.
	if tracked && gen == e.selectionGen {
		if err := e.store.Select(m.id); err != nil {
			log.Error().Str("location_id", string(m.id)).Err(err).Msg("auto-select failed")
		}
	}
}

// Select makes id the current selection.
func (e *Explorer) Select(ctx context.Context, id store.ID) error {
	var err error
	if cerr := e.call(ctx, func() {
		if err = e.store.Select(id); err == nil {
			e.selectionGen++
		}
	}); cerr != nil {
		return cerr
	}
	return err
}

// SelectByHandle selects the location behind a rendered marker.
func (e *Explorer) SelectByHandle(ctx context.Context, h store.Handle) error {
	var err error
	if cerr := e.call(ctx, func() {
		if err = e.store.SelectByHandle(h); err == nil {
			e.selectionGen++
		}
	}); cerr != nil {
		return cerr
	}
	return err
}

// ClearSelection deselects the current location.
func (e *Explorer) ClearSelection(ctx context.Context) error {
	return e.call(ctx, func() {
		e.store.ClearSelection()
		e.selectionGen++
	})
}

// BindHandle attaches a rendered marker to a location.
func (e *Explorer) BindHandle(ctx context.Context, id store.ID, h store.Handle) error {
	var err error
	if cerr := e.call(ctx, func() { err = e.store.BindHandle(id, h) }); cerr != nil {
		return cerr
	}
	return err
}

// TriggerRefresh starts a weather refresh of every committed location if one
// is due. The refresh itself completes asynchronously.
func (e *Explorer) TriggerRefresh(ctx context.Context) (scheduler.TriggerResult, error) {
	var res scheduler.TriggerResult
	if err := e.call(ctx, func() { res = e.triggerRefresh() }); err != nil {
		return scheduler.TriggerResult{}, err
	}
	return res, nil
}

func (e *Explorer) triggerRefresh() scheduler.TriggerResult {
	res := e.refresh.Trigger(e.now())
	if !res.Due() {
		log.Debug().Time("next_due", res.NextDue).Msg("weather refresh not due")
		return res
	}

	targets := e.store.RefreshTargets()
	log.Info().Int("locations", len(targets)).Msg("refreshing weather")

	e.spawn(func(ctx context.Context) message {
		return refreshDone{results: store.FetchRefreshes(ctx, targets, e.enricher.RefreshWeather)}
	})
	return res
}

func (e *Explorer) applyRefresh(m refreshDone) {
	report := e.store.ApplyRefresh(m.results)
	log.Info().
		Int("updated", len(report.Updated)).
		Int("failed", len(report.Failures)).
		Msg("weather refresh finished")
	e.emit(Event{Kind: EventRefreshed, Report: &report})
}

// TextChanged feeds the search box. Searches run after the debounce delay.
func (e *Explorer) TextChanged(ctx context.Context, text string) error {
	return e.call(ctx, func() { e.setSearchText(text) })
}

func (e *Explorer) setSearchText(text string) {
	if text != e.searchText {
		e.searchText = text
		e.emit(Event{Kind: EventSearchTextChanged})
	}
	e.debouncer.Push(text)
}

func (e *Explorer) startSearch(text string) {
	e.searchSeq++
	seq := e.searchSeq

	query := strings.TrimSpace(text)
	if query == "" {
		e.setCandidates(nil)
		return
	}

	e.spawn(func(ctx context.Context) message {
		results, err := e.places.Search(ctx, query)
		return searchDone{seq: seq, query: query, results: results, err: err}
	})
}

func (e *Explorer) finishSearch(m searchDone) {
	if m.seq != e.searchSeq {
		log.Debug().Str("query", m.query).Msg("dropping stale search results")
		return
	}

	if m.err != nil {
		log.Warn().Str("query", m.query).Err(m.err).Msg("place search failed")
		e.setCandidates(nil)
		e.emit(Event{Kind: EventNotice, Message: "Search is unavailable right now"})
		return
	}
	e.setCandidates(m.results)
}

func (e *Explorer) setCandidates(results []search.Result) {
	if len(results) == 0 && len(e.candidates) == 0 {
		return
	}
	e.candidates = results
	e.emit(Event{Kind: EventCandidatesChanged})
}

// SelectSearchResult consumes the candidate at index: the search box is
// cleared and a pin is placed at the candidate.
func (e *Explorer) SelectSearchResult(ctx context.Context, index int) (store.ID, error) {
	var (
		id  store.ID
		err error
	)
	if cerr := e.call(ctx, func() {
		if index < 0 || index >= len(e.candidates) {
			err = invalid(fmt.Errorf("no search result at index %d", index))
			return
		}
		picked := e.candidates[index]

		// Results still in flight are for the old text.
		e.searchSeq++
		e.setSearchText("")
		e.setCandidates(nil)

		id, err = e.reserve(picked.Coordinate, "")
	}); cerr != nil {
		return "", cerr
	}
	return id, err
}

// SearchState returns the search box text and candidates.
func (e *Explorer) SearchState(ctx context.Context) (SearchState, error) {
	var st SearchState
	err := e.call(ctx, func() {
		st = SearchState{
			Text:       e.searchText,
			Candidates: append([]search.Result(nil), e.candidates...),
		}
	})
	return st, err
}

// Locations returns the visible locations in insertion order.
func (e *Explorer) Locations() []store.TrackedLocation {
	return e.store.Locations()
}

// Selection returns the current selection, if any.
func (e *Explorer) Selection() (store.TrackedLocation, bool) {
	return e.store.Selection()
}

// LastRefresh returns when the last refresh batch was started.
func (e *Explorer) LastRefresh() time.Time {
	return e.refresh.LastRefresh()
}
