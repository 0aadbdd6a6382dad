// Package scheduler provides the scheduler module: cron jobs that dispatch
// custom events on the bot, so listeners react to time as they react to
// updates.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/tgram/internal/core"
	"github.com/flemzord/tgram/internal/cron"
	"github.com/flemzord/tgram/pkg/bot"
)

func init() {
	core.RegisterModule(&Module{})
}

var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Starter      = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
	_ cron.Dispatcher   = (*Module)(nil)
)

// reserved are the events the bot dispatches itself. Jobs cannot reuse
// them since listeners expect a different payload.
var reserved = map[string]bool{
	bot.EventRawUpdate:         true,
	bot.EventMessage:           true,
	bot.EventMessageEdit:       true,
	bot.EventPost:              true,
	bot.EventPostEdit:          true,
	bot.EventCallbackQuery:     true,
	bot.EventPoll:              true,
	bot.EventPollAnswer:        true,
	bot.EventMyChatMember:      true,
	bot.EventChatMember:        true,
	bot.EventCommand:           true,
	bot.EventCommandCompletion: true,
	bot.EventCommandError:      true,
	bot.EventError:             true,
}

// JobConfig declares one scheduled event.
type JobConfig struct {
	Name     string `yaml:"name"`
	Schedule string `yaml:"schedule"`
	Event    string `yaml:"event"`
}

// Config holds the scheduler configuration.
type Config struct {
	Jobs []JobConfig `yaml:"jobs"`
}

// Module is the scheduler module.
type Module struct {
	config    Config
	appCtx    *core.AppContext
	logger    *slog.Logger
	scheduler *cron.Scheduler

	mu     sync.RWMutex
	target cron.Dispatcher
}

func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "scheduler",
		New: func() core.Module { return &Module{} },
	}
}

func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("scheduler: decode config: %w", err)
	}
	return nil
}

// Provision exposes the scheduler as the "scheduler" service. Jobs are
// registered and the bot is resolved at Start.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.appCtx = ctx
	m.logger = ctx.Logger
	m.scheduler = cron.NewScheduler(ctx.Logger)
	ctx.RegisterService("scheduler", m.scheduler)
	return nil
}

func (m *Module) Validate() error {
	var errs []error
	seen := make(map[string]bool, len(m.config.Jobs))
	for i, jc := range m.config.Jobs {
		switch {
		case jc.Name == "":
			errs = append(errs, fmt.Errorf("jobs[%d]: name is required", i))
		case seen[jc.Name]:
			errs = append(errs, fmt.Errorf("jobs[%d]: duplicate job name %q", i, jc.Name))
		}
		seen[jc.Name] = true
		if jc.Event == "" {
			errs = append(errs, fmt.Errorf("jobs[%d]: event is required", i))
		} else if reserved[jc.Event] {
			errs = append(errs, fmt.Errorf("jobs[%d]: event %q is reserved by the bot", i, jc.Event))
		}
		if _, err := cron.ParseSchedule(jc.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("jobs[%d]: invalid schedule %q: %w", i, jc.Schedule, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("scheduler: invalid config: %w", err)
	}
	return nil
}

// Start resolves the "bot" service, registers the jobs and starts the clock.
func (m *Module) Start() error {
	svc, ok := m.appCtx.Service("bot")
	if !ok {
		return errors.New("scheduler: bot service not found (is a bot module loaded?)")
	}
	target, ok := svc.(cron.Dispatcher)
	if !ok {
		return fmt.Errorf("scheduler: bot service has unexpected type %T", svc)
	}

	for _, jc := range m.config.Jobs {
		err := m.scheduler.RegisterJob(&cron.EventJob{
			JobName: jc.Name,
			Spec:    jc.Schedule,
			Event:   jc.Event,
			Target:  m,
		})
		if err != nil {
			return fmt.Errorf("scheduler: %w", err)
		}
	}

	m.mu.Lock()
	m.target = target
	m.mu.Unlock()
	return m.scheduler.Start()
}

func (m *Module) Stop(ctx context.Context) error {
	return m.scheduler.Stop(ctx)
}

// Dispatch forwards a job's event to the bot.
func (m *Module) Dispatch(event string, args ...any) {
	m.mu.RLock()
	target := m.target
	m.mu.RUnlock()
	if target == nil {
		m.logger.Warn("event dropped, bot not resolved", "event", event)
		return
	}
	target.Dispatch(event, args...)
}

// Scheduler returns the underlying scheduler.
func (m *Module) Scheduler() *cron.Scheduler { return m.scheduler }
