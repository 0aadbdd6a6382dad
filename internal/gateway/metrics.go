package gateway

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flemzord/tgram/pkg/bot"
	"github.com/flemzord/tgram/pkg/commands"
	"github.com/flemzord/tgram/pkg/events"
)

// updateEvents are the classified update events counted per type.
var updateEvents = []string{
	bot.EventMessage,
	bot.EventMessageEdit,
	bot.EventPost,
	bot.EventPostEdit,
	bot.EventCallbackQuery,
	bot.EventPoll,
	bot.EventPollAnswer,
	bot.EventMyChatMember,
	bot.EventChatMember,
}

// Metrics holds the gateway's Prometheus collectors on a private registry.
// Bot-derived series are fed by listeners installed with Attach.
type Metrics struct {
	registry    *prometheus.Registry
	updates     *prometheus.CounterVec
	commands    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	listenerErr prometheus.Counter
	webhooks    *prometheus.CounterVec
	streamDrops prometheus.Counter

	mu  sync.Mutex
	bot Bot
	// inflight maps invocation IDs to start times. Listeners run
	// concurrently, so an outcome may be seen first; it then leaves a zero
	// time for onCommand to clear.
	inflight map[string]time.Time
}

// NewMetrics creates the collectors, including Go runtime and process
// collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tgram_updates_total",
			Help: "Updates dispatched, by event.",
		}, []string{"event"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tgram_commands_total",
			Help: "Command invocations, by command and outcome.",
		}, []string{"command", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tgram_command_duration_seconds",
			Help:    "Time from the command event to completion or failure.",
			Buckets: prometheus.DefBuckets,
		}, []string{"command"}),
		listenerErr: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tgram_listener_errors_total",
			Help: "Errors raised by event listeners and tasks.",
		}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tgram_webhook_requests_total",
			Help: "Webhook requests, by source and HTTP status.",
		}, []string{"source", "code"}),
		streamDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tgram_event_stream_dropped_total",
			Help: "Updates not delivered to a slow /events subscriber.",
		}),
		inflight: make(map[string]time.Time),
	}

	m.registry.MustRegister(
		m.updates, m.commands, m.duration, m.listenerErr, m.webhooks, m.streamDrops,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "tgram_poll_cursor",
			Help: "Next update offset requested by the poll loop.",
		}, func() float64 { return m.withBot(func(b Bot) float64 { return float64(b.Cursor()) }) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "tgram_poll_state",
			Help: "Poll loop state: 0 idle, 1 polling, 2 stopped, 3 fatally stopped.",
		}, func() float64 { return m.withBot(func(b Bot) float64 { return float64(b.State()) }) }),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) withBot(fn func(Bot) float64) float64 {
	m.mu.Lock()
	b := m.bot
	m.mu.Unlock()
	if b == nil {
		return 0
	}
	return fn(b)
}

// Attach installs the listeners feeding the bot series and returns their
// IDs. Registering a command_error listener replaces the bot's default
// stderr report for failed commands.
func (m *Metrics) Attach(b Bot) []events.ListenerID {
	m.mu.Lock()
	m.bot = b
	m.mu.Unlock()

	ids := make([]events.ListenerID, 0, len(updateEvents)+4)
	for _, event := range updateEvents {
		counter := m.updates.WithLabelValues(event)
		ids = append(ids, b.On(event, func(context.Context, ...any) error {
			counter.Inc()
			return nil
		}))
	}
	ids = append(ids,
		b.On(bot.EventCommand, m.onCommand),
		b.On(bot.EventCommandCompletion, m.onOutcome("completed")),
		b.On(bot.EventCommandError, m.onOutcome("failed")),
		b.On(bot.EventError, func(context.Context, ...any) error {
			m.listenerErr.Inc()
			return nil
		}),
	)
	return ids
}

// Detach forgets the bot. The listeners are removed by the caller.
func (m *Metrics) Detach() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bot = nil
	clear(m.inflight)
}

func (m *Metrics) onCommand(_ context.Context, args ...any) error {
	c := commandContext(args)
	if c == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, finished := m.inflight[c.ID]; finished {
		delete(m.inflight, c.ID)
		return nil
	}
	m.inflight[c.ID] = time.Now()
	return nil
}

// onOutcome counts a finished invocation. Unknown commands have no Command
// and are counted under the name they were invoked with.
func (m *Metrics) onOutcome(outcome string) events.Handler {
	return func(_ context.Context, args ...any) error {
		c := commandContext(args)
		if c == nil {
			return nil
		}
		name := c.InvokedWith
		if c.Command != nil {
			name = c.Command.Name()
		}
		m.commands.WithLabelValues(name, outcome).Inc()

		if c.Command == nil {
			// Unknown commands never get a command event.
			return nil
		}
		m.mu.Lock()
		start, ok := m.inflight[c.ID]
		if ok {
			delete(m.inflight, c.ID)
		} else {
			m.inflight[c.ID] = time.Time{}
		}
		m.mu.Unlock()
		if ok {
			m.duration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		}
		return nil
	}
}

func commandContext(args []any) *commands.Context {
	if len(args) == 0 {
		return nil
	}
	c, _ := args[0].(*commands.Context)
	return c
}
