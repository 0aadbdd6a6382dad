// Package gateway is the HTTP side of the tgram host: health and status
// endpoints, Prometheus metrics fed by bot events, webhook intake and a
// websocket stream of raw updates. It binds to loopback by default.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/tgram/internal/core"
	"github.com/flemzord/tgram/internal/cron"
	"github.com/flemzord/tgram/internal/security"
	"github.com/flemzord/tgram/pkg/bot"
	"github.com/flemzord/tgram/pkg/commands"
	"github.com/flemzord/tgram/pkg/events"
)

func init() {
	core.RegisterModule(&Gateway{})
}

var (
	_ core.Configurable = (*Gateway)(nil)
	_ core.Provisioner  = (*Gateway)(nil)
	_ core.Validator    = (*Gateway)(nil)
	_ core.Starter      = (*Gateway)(nil)
	_ core.Stopper      = (*Gateway)(nil)
)

// Bot is what the gateway observes. *bot.Bot satisfies it.
type Bot interface {
	On(event string, h events.Handler) events.ListenerID
	RemoveListener(id events.ListenerID) bool
	State() bot.State
	Cursor() int
	Commands() []*commands.Command
}

// JobLister reports scheduled jobs. The scheduler module satisfies it.
type JobLister interface {
	Entries() []cron.Entry
}

// Gateway is the gateway.http module.
type Gateway struct {
	config     Config
	appCtx     *core.AppContext
	logger     *slog.Logger
	server     *http.Server
	metrics    *Metrics
	stream     *Stream
	dispatcher *WebhookDispatcher
	limiter    *security.RateLimiter
	startedAt  time.Time

	// Resolved at Start from the service registry.
	bot       Bot
	jobs      JobLister
	listeners []events.ListenerID
}

func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.http",
		New: func() core.Module { return &Gateway{} },
	}
}

func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return fmt.Errorf("gateway: decode config: %w", err)
	}
	return nil
}

// Provision registers the webhook dispatcher so other modules can mount
// their receivers on /webhooks/{source}.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.config.defaults()
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.metrics = NewMetrics()
	g.stream = NewStream(g.config.EventBuffer, g.metrics.streamDrops, g.logger)
	g.dispatcher = NewWebhookDispatcher(g.logger, g.metrics)
	g.limiter = security.NewRateLimiter(g.config.Auth.AttemptsPerMinute, time.Minute)

	for source, cfg := range g.config.Webhooks {
		g.dispatcher.SetSecret(source, cfg.Secret)
	}

	ctx.RegisterService("gateway.metrics", g.metrics)
	ctx.RegisterService("gateway.webhook_dispatcher", g.dispatcher)
	return nil
}

func (g *Gateway) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return fmt.Errorf("gateway: invalid bind address %q: %w", g.config.Bind, err)
	}
	if g.config.Auth.BasicUser != "" && g.config.Auth.BasicPass == "" {
		return errors.New("gateway: auth.basic_pass is required with auth.basic_user")
	}
	return nil
}

// Start resolves the bot and scheduler services, attaches metrics and the
// update stream to the bot, and starts serving.
func (g *Gateway) Start() error {
	if svc, ok := g.appCtx.Service("bot"); ok {
		if b, ok := svc.(Bot); ok {
			g.attach(b)
		}
	}
	if svc, ok := g.appCtx.Service("scheduler"); ok {
		if jl, ok := svc.(JobLister); ok {
			g.jobs = jl
		}
	}
	if g.bot == nil {
		g.logger.Warn("no bot service registered, serving without bot metrics")
	}

	g.startedAt = time.Now()
	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		g.detach()
		return fmt.Errorf("gateway: listen: %w", err)
	}

	go func() {
		g.logger.Info("gateway listening", "addr", ln.Addr().String())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
			g.appCtx.ReportFatal(fmt.Errorf("gateway: serve: %w", err))
		}
	}()
	return nil
}

func (g *Gateway) attach(b Bot) {
	g.bot = b
	g.listeners = append(g.metrics.Attach(b), b.On(bot.EventRawUpdate, g.stream.Listener()))
}

func (g *Gateway) detach() {
	if g.bot == nil {
		return
	}
	for _, id := range g.listeners {
		g.bot.RemoveListener(id)
	}
	g.listeners = nil
	g.metrics.Detach()
}

// Stop closes the event stream, then shuts the server down within the
// configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	g.detach()
	g.stream.Close()
	if g.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(ctx)
}
