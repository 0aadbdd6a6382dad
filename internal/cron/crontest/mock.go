// Package crontest provides test doubles for the cron package.
package crontest

import (
	"context"
	"sync"
	"time"

	"github.com/flemzord/tgram/internal/cron"
)

// MockJob is a configurable cron.Job that counts its runs.
type MockJob struct {
	NameVal     string
	ScheduleVal string
	RunFunc     func(ctx context.Context) error

	mu       sync.Mutex
	calls    int
	lastCall time.Time
}

var _ cron.Job = (*MockJob)(nil)

func (m *MockJob) Name() string     { return m.NameVal }
func (m *MockJob) Schedule() string { return m.ScheduleVal }

func (m *MockJob) Run(ctx context.Context) error {
	m.mu.Lock()
	m.calls++
	m.lastCall = time.Now()
	m.mu.Unlock()

	if m.RunFunc != nil {
		return m.RunFunc(ctx)
	}
	return nil
}

// CallCount returns how many times Run was called.
func (m *MockJob) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastCall returns when Run was last called.
func (m *MockJob) LastCall() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastCall
}

// Recorder is a cron.Dispatcher that records dispatched events.
type Recorder struct {
	mu     sync.Mutex
	events []Dispatched
}

// Dispatched is one recorded Dispatch call.
type Dispatched struct {
	Event string
	Args  []any
}

var _ cron.Dispatcher = (*Recorder)(nil)

func (r *Recorder) Dispatch(event string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Dispatched{Event: event, Args: args})
}

// Events returns a copy of what was dispatched so far.
func (r *Recorder) Events() []Dispatched {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Dispatched(nil), r.events...)
}
