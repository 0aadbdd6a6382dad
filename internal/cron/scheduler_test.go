package cron_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/flemzord/tgram/internal/cron"
	"github.com/flemzord/tgram/internal/cron/crontest"
)

func TestScheduler_RegisterJob_DuplicateName(t *testing.T) {
	t.Parallel()

	s := cron.NewScheduler(nil)
	if err := s.RegisterJob(&crontest.MockJob{NameVal: "tick", ScheduleVal: "* * * * *"}); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if err := s.RegisterJob(&crontest.MockJob{NameVal: "tick", ScheduleVal: "* * * * *"}); err == nil {
		t.Fatal("duplicate registration should fail")
	}
}

func TestScheduler_Start_InvalidSchedule(t *testing.T) {
	t.Parallel()

	s := cron.NewScheduler(nil)
	_ = s.RegisterJob(&crontest.MockJob{NameVal: "bad", ScheduleVal: "invalid"})

	if err := s.Start(); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
	if got := s.Entries(); len(got) != 0 {
		t.Errorf("Entries() after failed start = %v", got)
	}
}

func TestScheduler_RunsJobs(t *testing.T) {
	t.Parallel()

	ran := make(chan struct{}, 1)
	job := &crontest.MockJob{
		NameVal:     "fast",
		ScheduleVal: "@every 1s",
		RunFunc: func(context.Context) error {
			select {
			case ran <- struct{}{}:
			default:
			}
			return errors.New("failures are logged, not fatal")
		},
	}

	s := cron.NewScheduler(nil)
	if err := s.RegisterJob(job); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	entries := s.Entries()
	if len(entries) != 1 || entries[0].Name != "fast" || entries[0].Next.IsZero() {
		t.Fatalf("Entries() = %+v", entries)
	}

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run")
	}
	if job.CallCount() < 1 {
		t.Errorf("CallCount() = %d", job.CallCount())
	}
}

func TestScheduler_StopCancelsRunningJobs(t *testing.T) {
	t.Parallel()

	started := make(chan struct{}, 1)
	job := &crontest.MockJob{
		NameVal:     "slow",
		ScheduleVal: "@every 1s",
		RunFunc: func(ctx context.Context) error {
			select {
			case started <- struct{}{}:
			default:
			}
			<-ctx.Done()
			return ctx.Err()
		},
	}

	s := cron.NewScheduler(nil)
	_ = s.RegisterJob(job)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not start")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	t.Parallel()

	s := cron.NewScheduler(nil)
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
}
