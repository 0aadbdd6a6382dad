// Package cron runs periodic jobs on cron schedules. The bot host uses it to
// dispatch custom events on a timer.
package cron

import (
	"context"

	"github.com/robfig/cron/v3"
)

// Job is a periodic task.
type Job interface {
	// Name identifies the job in logs and must be unique per Scheduler.
	Name() string

	// Schedule is a cron expression: five fields, an optional leading
	// seconds field, or a descriptor such as "@hourly" or "@every 30s".
	Schedule() string

	// Run executes one tick and should return promptly once ctx is done.
	Run(ctx context.Context) error
}

var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule checks a schedule expression the way the Scheduler will
// interpret it.
func ParseSchedule(spec string) (cron.Schedule, error) {
	return parser.Parse(spec)
}
