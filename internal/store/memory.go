package store

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/pinweather/internal/geo"
	"github.com/i474232898/pinweather/internal/weather"
)

var (
	// ErrNotFound is returned when an id or marker handle does not refer to a
	// visible tracked location.
	ErrNotFound = errors.New("tracked location not found")
)

// ID identifies a tracked location.
type ID string

// Handle is an opaque reference to a rendered marker.
type Handle string

// TrackedLocation is a pin on the map. Coordinate never changes after
// creation; Weather, Address and Timezone are set when enrichment commits.
type TrackedLocation struct {
	ID         ID                `json:"id"`
	Coordinate geo.Coordinate    `json:"coordinate"`
	Weather    *weather.Snapshot `json:"weather,omitempty"`
	Address    string            `json:"address,omitempty"`
	Timezone   string            `json:"timezone,omitempty"`
	Handle     Handle            `json:"handle,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt,omitempty"`
}

// Pending reports whether the location is a reservation still waiting for weather.
func (l TrackedLocation) Pending() bool {
	return l.Weather == nil
}

type ChangeKind int

const (
	CollectionChanged ChangeKind = iota + 1
	SelectionChanged
)

func (k ChangeKind) String() string {
	switch k {
	case CollectionChanged:
		return "collection"
	case SelectionChanged:
		return "selection"
	default:
		return "unknown"
	}
}

// Change describes a mutation observers are told about.
type Change struct {
	Kind ChangeKind
	ID   ID
}

// MarkerStore owns the ordered collection of tracked locations, the current
// selection and the handle to id mapping.
//
// Reservations are kept in the collection so the proximity check sees them,
// but they are not returned by Locations and cannot be selected until Commit.
type MarkerStore struct {
	mu sync.RWMutex

	order    []ID
	entries  map[ID]*TrackedLocation
	handles  map[Handle]ID
	selected ID

	listeners    map[int]func(Change)
	nextListener int

	newID func() ID
	now   func() time.Time
}

// NewMarkerStore creates an empty store.
func NewMarkerStore() *MarkerStore {
	return &MarkerStore{
		entries:   make(map[ID]*TrackedLocation),
		handles:   make(map[Handle]ID),
		listeners: make(map[int]func(Change)),
		newID:     func() ID { return ID(uuid.NewString()) },
		now:       time.Now,
	}
}

// Subscribe registers fn to be called after every mutation. Listeners run on
// the mutating goroutine once the store lock is released.
func (s *MarkerStore) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.mu.Lock()
	key := s.nextListener
	s.nextListener++
	s.listeners[key] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, key)
		s.mu.Unlock()
	}
}

func (s *MarkerStore) notify(changes ...Change) {
	if len(changes) == 0 {
		return
	}

	s.mu.RLock()
	keys := make([]int, 0, len(s.listeners))
	for k := range s.listeners {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	fns := make([]func(Change), 0, len(keys))
	for _, k := range keys {
		fns = append(fns, s.listeners[k])
	}
	s.mu.RUnlock()

	for _, c := range changes {
		for _, fn := range fns {
			fn(c)
		}
	}
}

// Reserve appends a pending location and returns its id. The caller is
// responsible for running the proximity check first.
func (s *MarkerStore) Reserve(c geo.Coordinate, h Handle) ID {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	loc := &TrackedLocation{
		ID:         id,
		Coordinate: c,
		CreatedAt:  s.now(),
	}
	s.entries[id] = loc
	s.order = append(s.order, id)
	if h != "" {
		s.bindLocked(loc, h)
	}
	return id
}

// Commit attaches enrichment to a location and makes it visible. It returns
// false, doing nothing, when the id is unknown. Selection is left untouched.
func (s *MarkerStore) Commit(id ID, snapshot weather.Snapshot, address, timezone string) bool {
	s.mu.Lock()
	loc, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	w := snapshot
	loc.Weather = &w
	loc.Address = address
	loc.Timezone = timezone
	loc.UpdatedAt = s.now()
	s.mu.Unlock()

	s.notify(Change{Kind: CollectionChanged, ID: id})
	return true
}

// Discard drops a reservation whose enrichment failed. Committed locations
// are never removed; Discard returns false for them and for unknown ids.
func (s *MarkerStore) Discard(id ID) bool {
	s.mu.Lock()
	loc, ok := s.entries[id]
	if !ok || !loc.Pending() {
		s.mu.Unlock()
		return false
	}

	var changes []Change
	if s.selected == id {
		s.selected = ""
		changes = append(changes, Change{Kind: SelectionChanged})
	}
	if loc.Handle != "" {
		delete(s.handles, loc.Handle)
	}
	delete(s.entries, id)
	s.order = slices.DeleteFunc(s.order, func(x ID) bool { return x == id })
	s.mu.Unlock()

	s.notify(changes...)
	return true
}

// Select points the current selection at a visible location.
func (s *MarkerStore) Select(id ID) error {
	s.mu.Lock()
	loc, ok := s.entries[id]
	if !ok || loc.Pending() {
		s.mu.Unlock()
		return ErrNotFound
	}
	changed := s.selected != id
	s.selected = id
	s.mu.Unlock()

	if changed {
		s.notify(Change{Kind: SelectionChanged, ID: id})
	}
	return nil
}

// SelectByHandle resolves a rendered marker back to its location and selects it.
func (s *MarkerStore) SelectByHandle(h Handle) error {
	s.mu.RLock()
	id, ok := s.handles[h]
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	return s.Select(id)
}

// ClearSelection leaves the store with no current selection.
func (s *MarkerStore) ClearSelection() {
	s.mu.Lock()
	changed := s.selected != ""
	s.selected = ""
	s.mu.Unlock()

	if changed {
		s.notify(Change{Kind: SelectionChanged})
	}
}

// Selection returns the currently selected location, if any.
func (s *MarkerStore) Selection() (TrackedLocation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.selected == "" {
		return TrackedLocation{}, false
	}
	loc, ok := s.entries[s.selected]
	if !ok {
		return TrackedLocation{}, false
	}
	return *loc, true
}

// BindHandle associates a rendered marker with a location. A handle maps to
// at most one location and a location to at most one handle.
func (s *MarkerStore) BindHandle(id ID, h Handle) error {
	if h == "" {
		return errors.New("empty marker handle")
	}

	s.mu.Lock()
	loc, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	s.bindLocked(loc, h)
	s.mu.Unlock()
	return nil
}

func (s *MarkerStore) bindLocked(loc *TrackedLocation, h Handle) {
	if prev, ok := s.handles[h]; ok && prev != loc.ID {
		if other, ok := s.entries[prev]; ok {
			other.Handle = ""
		}
	}
	if loc.Handle != "" {
		delete(s.handles, loc.Handle)
	}
	loc.Handle = h
	s.handles[h] = loc.ID
}

// IDForHandle returns the location bound to h.
func (s *MarkerStore) IDForHandle(h Handle) (ID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.handles[h]
	return id, ok
}

// Get returns a location by id, pending or not.
func (s *MarkerStore) Get(id ID) (TrackedLocation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	loc, ok := s.entries[id]
	if !ok {
		return TrackedLocation{}, false
	}
	return *loc, true
}

// Locations returns committed locations in insertion order.
func (s *MarkerStore) Locations() []TrackedLocation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]TrackedLocation, 0, len(s.order))
	for _, id := range s.order {
		loc := s.entries[id]
		if loc.Pending() {
			continue
		}
		out = append(out, *loc)
	}
	return out
}

// Coordinates returns the coordinate of every entry, reservations included,
// for the proximity check.
func (s *MarkerStore) Coordinates() []geo.Coordinate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]geo.Coordinate, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.entries[id].Coordinate)
	}
	return out
}

// Len counts every entry, reservations included.
func (s *MarkerStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
