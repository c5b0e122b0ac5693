package explorer

import (
	"github.com/i474232898/pinweather/internal/enrich"
	"github.com/i474232898/pinweather/internal/geo"
	"github.com/i474232898/pinweather/internal/search"
	"github.com/i474232898/pinweather/internal/store"
)

// message is anything handled on the loop goroutine.
type message interface {
	handle(e *Explorer)
}

type command struct {
	fn   func()
	done chan struct{}
}

func (m command) handle(*Explorer) {
	m.fn()
	close(m.done)
}

type enrichmentDone struct {
	id         store.ID
	coordinate geo.Coordinate
	result     enrich.Result
	err        error
}

func (m enrichmentDone) handle(e *Explorer) {
	e.commitEnrichment(m)
}

type refreshDone struct {
	results []store.RefreshResult
}

func (m refreshDone) handle(e *Explorer) {
	e.applyRefresh(m)
}

type searchDue struct {
	text string
}

func (m searchDue) handle(e *Explorer) {
	e.startSearch(m.text)
}

type searchDone struct {
	seq     uint64
	query   string
	results []search.Result
	err     error
}

func (m searchDone) handle(e *Explorer) {
	e.finishSearch(m)
}
