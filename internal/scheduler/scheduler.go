package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog/log"
)

const DefaultCheckInterval = 5 * time.Minute

// Trigger is whatever owns the tracked locations and can start a refresh.
type Trigger interface {
	TriggerRefresh(ctx context.Context) (TriggerResult, error)
}

// Job periodically asks the trigger to refresh. Whether a refresh actually
// runs is decided by the trigger's RefreshScheduler.
type Job struct {
	scheduler *gocron.Scheduler
	trigger   Trigger
	interval  time.Duration
	timeout   time.Duration
}

// NewJob creates a Job that checks every interval.
func NewJob(trigger Trigger, interval time.Duration) *Job {
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	return &Job{
		scheduler: gocron.NewScheduler(time.UTC),
		trigger:   trigger,
		interval:  interval,
		timeout:   30 * time.Second,
	}
}

// Start schedules the periodic check and starts the underlying scheduler.
func (j *Job) Start() error {
	_, err := j.scheduler.Every(j.interval).SingletonMode().Do(j.run)
	if err != nil {
		return err
	}

	j.scheduler.StartAsync()
	return nil
}

func (j *Job) run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	res, err := j.trigger.TriggerRefresh(ctx)
	if err != nil {
		log.Error().Err(err).Msg("scheduler: refresh trigger failed")
		return
	}
	if res.Due() {
		log.Info().Time("next_due", res.NextDue).Msg("scheduler: weather refresh started")
		return
	}
	log.Debug().Time("next_due", res.NextDue).Msg("scheduler: weather refresh not due")
}

// Stop stops the scheduler and cancels any future jobs.
func (j *Job) Stop() {
	if j.scheduler != nil {
		j.scheduler.Stop()
	}
}
