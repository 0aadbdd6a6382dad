package cron

import (
	"context"
	"time"
)

// Dispatcher is the part of the bot an EventJob needs.
type Dispatcher interface {
	Dispatch(event string, args ...any)
}

// EventJob dispatches Event with the tick time as its only argument, so
// listeners registered with Bot.On can react to a schedule.
type EventJob struct {
	JobName string
	Spec    string
	Event   string
	Target  Dispatcher
	Now     func() time.Time
}

var _ Job = (*EventJob)(nil)

func (j *EventJob) Name() string     { return j.JobName }
func (j *EventJob) Schedule() string { return j.Spec }

// Run dispatches the event. Dispatching only schedules listeners, so Run
// returns without waiting for them.
func (j *EventJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	j.Target.Dispatch(j.Event, now())
	return nil
}
