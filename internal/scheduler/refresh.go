package scheduler

import (
	"sync"
	"time"
)

const DefaultRefreshInterval = time.Hour

type Status string

const (
	StatusDue    Status = "due"
	StatusNotDue Status = "not_due"
)

// TriggerResult reports what a trigger did.
type TriggerResult struct {
	Status      Status    `json:"status"`
	LastRefresh time.Time `json:"lastRefresh"`
	NextDue     time.Time `json:"nextDue"`
}

// Due reports whether the trigger started a refresh.
func (r TriggerResult) Due() bool {
	return r.Status == StatusDue
}

// ShouldRefresh is true iff strictly more than interval has passed since last.
func ShouldRefresh(now, last time.Time, interval time.Duration) bool {
	return now.Sub(last) > interval
}

// RefreshScheduler enforces a minimum interval between bulk weather refreshes.
type RefreshScheduler struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

// NewRefreshScheduler starts counting from start, so nothing is due during the
// first interval.
func NewRefreshScheduler(interval time.Duration, start time.Time) *RefreshScheduler {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &RefreshScheduler{interval: interval, last: start}
}

// Trigger stamps now as the last refresh time when a refresh is due, before
// the caller starts any work, so a second trigger during the fetch is not due.
func (s *RefreshScheduler) Trigger(now time.Time) TriggerResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !ShouldRefresh(now, s.last, s.interval) {
		return TriggerResult{
			Status:      StatusNotDue,
			LastRefresh: s.last,
			NextDue:     s.last.Add(s.interval),
		}
	}

	s.last = now
	return TriggerResult{
		Status:      StatusDue,
		LastRefresh: now,
		NextDue:     now.Add(s.interval),
	}
}

func (s *RefreshScheduler) LastRefresh() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *RefreshScheduler) Interval() time.Duration {
	return s.interval
}
