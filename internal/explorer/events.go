package explorer

import (
	"slices"

	"github.com/i474232898/pinweather/internal/store"
)

type EventKind string

const (
	EventLocationsChanged  EventKind = "locations_changed"
	EventSelectionChanged  EventKind = "selection_changed"
	EventSearchTextChanged EventKind = "search_text_changed"
	EventCandidatesChanged EventKind = "candidates_changed"
	EventNotice            EventKind = "notice"
	EventRefreshed         EventKind = "refreshed"
)

// Event is delivered to every subscriber after a state change.
type Event struct {
	Kind       EventKind
	LocationID store.ID
	// Message carries the text of a transient notice.
	Message string
	Report  *store.RefreshReport
}

// Subscribe registers fn for state change events. Listeners run on the loop
// goroutine and must not block or call back into the Explorer.
func (e *Explorer) Subscribe(fn func(Event)) (unsubscribe func()) {
	e.listenersMu.Lock()
	key := e.nextListener
	e.nextListener++
	e.listeners[key] = fn
	e.listenersMu.Unlock()

	return func() {
		e.listenersMu.Lock()
		delete(e.listeners, key)
		e.listenersMu.Unlock()
	}
}

func (e *Explorer) emit(ev Event) {
	e.listenersMu.Lock()
	keys := make([]int, 0, len(e.listeners))
	for k := range e.listeners {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	fns := make([]func(Event), 0, len(keys))
	for _, k := range keys {
		fns = append(fns, e.listeners[k])
	}
	e.listenersMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (e *Explorer) onStoreChange(c store.Change) {
	switch c.Kind {
	case store.CollectionChanged:
		e.emit(Event{Kind: EventLocationsChanged, LocationID: c.ID})
	case store.SelectionChanged:
		e.emit(Event{Kind: EventSelectionChanged, LocationID: c.ID})
	}
}
