package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldRefresh(t *testing.T) {
	last := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		elapsed time.Duration
		want    bool
	}{
		{name: "just refreshed", elapsed: 0, want: false},
		{name: "under an hour", elapsed: 59 * time.Minute, want: false},
		{name: "exactly 3600s", elapsed: 3600 * time.Second, want: false},
		{name: "one nanosecond over", elapsed: time.Hour + time.Nanosecond, want: true},
		{name: "hours later", elapsed: 5 * time.Hour, want: true},
		{name: "clock moved backwards", elapsed: -time.Hour, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldRefresh(last.Add(tt.elapsed), last, time.Hour))
		})
	}
}

func TestRefreshScheduler_Trigger(t *testing.T) {
	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	s := NewRefreshScheduler(time.Hour, start)

	res := s.Trigger(start.Add(30 * time.Minute))
	assert.Equal(t, StatusNotDue, res.Status)
	assert.Equal(t, start, res.LastRefresh)
	assert.Equal(t, start.Add(time.Hour), res.NextDue)

	res = s.Trigger(start.Add(time.Hour))
	assert.False(t, res.Due(), "exactly one interval is not due")

	due := start.Add(61 * time.Minute)
	res = s.Trigger(due)
	assert.True(t, res.Due())
	assert.Equal(t, due, res.LastRefresh)
	assert.Equal(t, due.Add(time.Hour), res.NextDue)
	assert.Equal(t, due, s.LastRefresh(), "stamped before any refresh work")

	// A second trigger racing in right after is rejected.
	res = s.Trigger(due.Add(time.Second))
	assert.Equal(t, StatusNotDue, res.Status)
}

func TestNewRefreshScheduler_DefaultInterval(t *testing.T) {
	s := NewRefreshScheduler(0, time.Now())
	assert.Equal(t, DefaultRefreshInterval, s.Interval())
}

type countingTrigger struct {
	calls atomic.Int32
	err   error
}

func (c *countingTrigger) TriggerRefresh(context.Context) (TriggerResult, error) {
	c.calls.Add(1)
	return TriggerResult{Status: StatusNotDue}, c.err
}

func TestJob_RunsPeriodically(t *testing.T) {
	trigger := &countingTrigger{}
	job := NewJob(trigger, 20*time.Millisecond)
	require.NoError(t, job.Start())
	t.Cleanup(job.Stop)

	require.Eventually(t, func() bool {
		return trigger.calls.Load() >= 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestJob_SurvivesTriggerErrors(t *testing.T) {
	trigger := &countingTrigger{err: errors.New("explorer stopped")}
	job := NewJob(trigger, 20*time.Millisecond)
	require.NoError(t, job.Start())
	t.Cleanup(job.Stop)

	require.Eventually(t, func() bool {
		return trigger.calls.Load() >= 2
	}, 2*time.Second, 10*time.Millisecond)
}
