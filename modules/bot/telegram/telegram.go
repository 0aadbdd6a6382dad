package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/tgram/internal/core"
	"github.com/flemzord/tgram/internal/gateway"
	"github.com/flemzord/tgram/internal/security"
	"github.com/flemzord/tgram/pkg/bot"
	"github.com/flemzord/tgram/pkg/commands"
	tgapi "github.com/flemzord/tgram/pkg/telegram"
)

func init() {
	core.RegisterModule(&Telegram{})
}

var (
	_ core.Configurable = (*Telegram)(nil)
	_ core.Provisioner  = (*Telegram)(nil)
	_ core.Validator    = (*Telegram)(nil)
	_ core.Starter      = (*Telegram)(nil)
	_ core.Stopper      = (*Telegram)(nil)
)

// webhookSource is the gateway route the receiver is mounted on.
const webhookSource = "telegram"

// startTimeout bounds the Bot API calls made while starting in webhook mode.
const startTimeout = 30 * time.Second

// WebhookRegistry mounts webhook receivers. *gateway.WebhookDispatcher
// satisfies it.
type WebhookRegistry interface {
	Register(source string, h gateway.WebhookHandler)
	Unregister(source string)
}

// Telegram is the bot.telegram module.
type Telegram struct {
	config Config
	appCtx *core.AppContext
	logger *slog.Logger
	client *tgapi.Client
	bot    *bot.Bot

	// Polling mode.
	cancel context.CancelFunc
	done   chan struct{}

	// Webhook mode.
	webhooks WebhookRegistry
}

func (t *Telegram) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "bot.telegram",
		New: func() core.Module { return &Telegram{} },
	}
}

func (t *Telegram) Configure(node *yaml.Node) error {
	if err := node.Decode(&t.config); err != nil {
		return fmt.Errorf("telegram: decode config: %w", err)
	}
	t.config.defaults()
	return nil
}

// Provision builds the bot and registers it as the "bot" service. The token
// and webhook secret are added to the credential store for log redaction.
func (t *Telegram) Provision(ctx *core.AppContext) error {
	t.config.defaults()
	t.appCtx = ctx
	t.logger = ctx.Logger
	t.client = tgapi.NewClient(t.config.Token, t.config.APIURL)

	t.bot = bot.New(t.client, bot.Options{
		Logger:         ctx.Logger,
		OwnerIDs:       t.config.OwnerIDs,
		PollTimeout:    t.config.PollTimeout,
		Limit:          t.config.Limit,
		AllowedUpdates: t.config.AllowedUpdates,
		KeepPending:    !*t.config.SkipPending,
		Help: commands.HelpOptions{
			Description: t.config.Help.Description,
			NoCategory:  t.config.Help.NoCategory,
		},
		DisableHelp: t.config.Help.Disable,
	})
	if err := t.bot.AddCog(General()); err != nil {
		return fmt.Errorf("telegram: install general cog: %w", err)
	}
	t.bot.On(bot.EventCommandError, t.logCommandError)
	t.bot.On(bot.EventError, t.logError)

	if svc, ok := ctx.Service("security.credentials"); ok {
		if store, ok := svc.(*security.CredentialStore); ok {
			store.Set("telegram.token", t.config.Token)
			store.Set("telegram.webhook_secret", t.config.WebhookSecret)
		}
	}

	ctx.RegisterService("bot", t.bot)
	return nil
}

func (t *Telegram) Validate() error {
	return t.config.validate()
}

// Bot returns the managed bot.
func (t *Telegram) Bot() *bot.Bot { return t.bot }

// Start launches the poll loop, or registers the webhook with the gateway
// and the Bot API.
func (t *Telegram) Start() error {
	if t.config.Mode == ModeWebhook {
		return t.startWebhook()
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.done = make(chan struct{})
	go func() {
		defer close(t.done)
		if err := t.bot.Start(ctx); err != nil {
			t.appCtx.ReportFatal(fmt.Errorf("telegram: polling: %w", err))
		}
	}()
	return nil
}

func (t *Telegram) startWebhook() error {
	svc, ok := t.appCtx.Service("gateway.webhook_dispatcher")
	if !ok {
		return errors.New("telegram: gateway.webhook_dispatcher service not found (is the gateway module loaded?)")
	}
	registry, ok := svc.(WebhookRegistry)
	if !ok {
		return fmt.Errorf("telegram: gateway.webhook_dispatcher has unexpected type %T", svc)
	}

	ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
	defer cancel()

	// Commands addressed as /cmd@name need the username before any update.
	me, err := t.bot.Me(ctx)
	if err != nil {
		return fmt.Errorf("telegram: getMe failed (check token): %w", err)
	}
	t.logger.Info("bot authenticated", "id", me.ID, "username", me.Username)

	if t.config.WebhookSecret == "" {
		t.logger.Warn("telegram webhook running without webhook_secret")
	}
	registry.Register(webhookSource, NewWebhookReceiver(t.bot, t.config.WebhookSecret, t.logger))
	t.webhooks = registry

	err = t.client.SetWebhook(ctx, tgapi.SetWebhookRequest{
		URL:                t.config.WebhookURL,
		SecretToken:        t.config.WebhookSecret,
		AllowedUpdates:     t.config.AllowedUpdates,
		DropPendingUpdates: *t.config.SkipPending,
	})
	if err != nil {
		registry.Unregister(webhookSource)
		t.webhooks = nil
		return fmt.Errorf("telegram: setWebhook failed: %w", err)
	}
	t.logger.Info("telegram webhook configured", "url", t.config.WebhookURL)
	return nil
}

// Stop ends polling or removes the webhook, then waits for running
// handlers.
func (t *Telegram) Stop(ctx context.Context) error {
	if t.cancel != nil {
		t.cancel()
		select {
		case <-t.done:
		case <-ctx.Done():
			return fmt.Errorf("telegram: stop: %w", ctx.Err())
		}
	}
	if t.webhooks != nil {
		t.webhooks.Unregister(webhookSource)
		if err := t.client.DeleteWebhook(ctx); err != nil {
			t.logger.Warn("failed to delete webhook on shutdown", "error", err)
		}
	}
	if t.bot == nil {
		return nil
	}
	return t.bot.Close(ctx)
}

func (t *Telegram) logCommandError(_ context.Context, args ...any) error {
	attrs := []any{}
	if len(args) > 0 {
		if c, ok := args[0].(*commands.Context); ok {
			attrs = append(attrs, "command", c.InvokedWith, "invocation_id", c.ID, "chat", c.Chat.ID)
		}
	}
	if len(args) > 1 {
		attrs = append(attrs, "error", args[1])
	}
	t.logger.Warn("command failed", attrs...)
	return nil
}

func (t *Telegram) logError(_ context.Context, args ...any) error {
	var err any
	if len(args) > 0 {
		err = args[0]
	}
	t.logger.Error("event handler failed", "error", err)
	return nil
}
