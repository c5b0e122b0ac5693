package search

import (
	"sync"
	"time"
)

// DefaultDebounce is the quiet period after the last edit before a search fires.
const DefaultDebounce = 500 * time.Millisecond

// Timer is the subset of *time.Timer the debouncer needs.
type Timer interface {
	Stop() bool
}

// Clock schedules delayed callbacks. Tests substitute a manual clock.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Debouncer turns a stream of raw text values into "search now" events.
// Consecutive identical values are dropped, and a burst of edits collapses
// into one event fired delay after the last edit of the burst.
type Debouncer struct {
	delay time.Duration
	clock Clock
	emit  func(text string)

	mu      sync.Mutex
	last    string
	seen    bool
	gen     uint64
	timer   Timer
	stopped bool
}

// DebouncerOption configures a Debouncer.
type DebouncerOption func(*Debouncer)

// WithClock replaces the wall clock.
func WithClock(c Clock) DebouncerOption {
	return func(d *Debouncer) {
		d.clock = c
	}
}

// NewDebouncer creates a Debouncer calling emit with the settled value.
// emit runs on a timer goroutine.
func NewDebouncer(delay time.Duration, emit func(text string), opts ...DebouncerOption) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	d := &Debouncer{
		delay: delay,
		clock: realClock{},
		emit:  emit,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Push feeds a raw text value. It returns false when the value was dropped as
// a duplicate of the previous one or the debouncer is stopped.
func (d *Debouncer) Push(text string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return false
	}
	if d.seen && text == d.last {
		return false
	}
	d.last, d.seen = text, true

	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = d.clock.AfterFunc(d.delay, func() {
		d.fire(gen, text)
	})
	return true
}

func (d *Debouncer) fire(gen uint64, text string) {
	d.mu.Lock()
	// A newer Push or Stop supersedes a timer that already started firing.
	if d.stopped || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	d.emit(text)
}

// Stop cancels any pending event; later pushes are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
