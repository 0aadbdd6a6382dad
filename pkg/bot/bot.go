// Package bot ties the Bot API client, the event dispatcher and the command
// registry together and runs the long-poll loop.
//
// Every update is dispatched twice: first as raw_update with the
// *telegram.Update, then under its classified event name with the typed
// payload. New messages are also matched against the command registry.
package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/tgram/pkg/commands"
	"github.com/flemzord/tgram/pkg/events"
	"github.com/flemzord/tgram/pkg/telegram"
)

const defaultPollTimeout = 30

// API is the Bot API surface used by the bot. *telegram.Client satisfies it.
type API interface {
	commands.API
	GetMe(ctx context.Context) (*telegram.User, error)
	GetUpdates(ctx context.Context, req telegram.GetUpdatesRequest) ([]telegram.Update, error)
}

// Options configures a Bot. The zero value is usable.
type Options struct {
	Logger *slog.Logger

	// OwnerIDs are the users accepted by commands.IsOwner.
	OwnerIDs []int64

	// PollTimeout is the getUpdates long-poll timeout in seconds.
	// Defaults to 30.
	PollTimeout int
	// Limit caps the batch size; 0 leaves it to the server.
	Limit          int
	AllowedUpdates []string
	// KeepPending dispatches updates that queued up while the bot was
	// offline. By default they are acknowledged and dropped on Start.
	KeepPending bool
	// BackOff paces retries after transient failures. Defaults to NewBackOff.
	BackOff backoff.BackOff

	// Help configures the built-in help command.
	Help        commands.HelpOptions
	DisableHelp bool

	// Stderr receives the default error reports. Defaults to os.Stderr.
	Stderr io.Writer

	TracerProvider trace.TracerProvider
}

// Bot is a Telegram bot with a command framework.
type Bot struct {
	api      API
	opts     Options
	logger   *slog.Logger
	events   *events.Dispatcher
	registry *commands.Registry
	poller   *poller

	mu           sync.Mutex
	me           *telegram.User
	state        State
	cancel       context.CancelFunc
	done         chan struct{}
	cogListeners map[string][]events.ListenerID
}

// New creates a bot. It does not contact the Bot API.
func New(api API, opts Options) *Bot {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.PollTimeout == 0 {
		opts.PollTimeout = defaultPollTimeout
	}
	if opts.BackOff == nil {
		opts.BackOff = NewBackOff()
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	var regOpts []commands.RegistryOption
	if opts.TracerProvider != nil {
		regOpts = append(regOpts, commands.WithTracerProvider(opts.TracerProvider))
	}

	logger := opts.Logger.With("component", "bot")
	b := &Bot{
		api:          api,
		opts:         opts,
		logger:       logger,
		events:       events.NewDispatcher(opts.Logger),
		registry:     commands.NewRegistry(regOpts...),
		cogListeners: make(map[string][]events.ListenerID),
	}
	b.poller = &poller{
		api:            api,
		handle:         b.ProcessUpdate,
		logger:         logger,
		backoff:        opts.BackOff,
		timeout:        opts.PollTimeout,
		limit:          opts.Limit,
		allowedUpdates: opts.AllowedUpdates,
	}

	b.events.SetFallback(EventError, b.reportError)
	b.events.SetFallback(EventCommandError, b.reportCommandError)

	if !opts.DisableHelp {
		// The registry is empty, so the help command cannot collide.
		_ = b.registry.Add(commands.NewHelpCommand(opts.Help))
	}
	return b
}

// Events returns the bot's dispatcher.
func (b *Bot) Events() *events.Dispatcher { return b.events }

// Registry returns the bot's command registry.
func (b *Bot) Registry() *commands.Registry { return b.registry }

// AddCommand registers a command.
func (b *Bot) AddCommand(cmd *commands.Command) error {
	return b.registry.Add(cmd)
}

// RemoveCommand unregisters a command by name or alias.
func (b *Bot) RemoveCommand(name string) *commands.Command {
	return b.registry.Remove(name)
}

// Command looks a command up by name or alias.
func (b *Bot) Command(name string) *commands.Command {
	return b.registry.Get(name)
}

// Commands returns the registered commands sorted by name.
func (b *Bot) Commands() []*commands.Command {
	return b.registry.Commands()
}

// AddCog registers a cog's commands, then its listeners.
func (b *Bot) AddCog(g *commands.Cog) error {
	if err := b.registry.AddCog(g); err != nil {
		return err
	}

	var ids []events.ListenerID
	for _, l := range g.Listeners() {
		ids = append(ids, b.events.On(l.Event, l.Handler))
	}

	b.mu.Lock()
	b.cogListeners[g.Name()] = ids
	b.mu.Unlock()

	b.logger.Debug("cog added", "cog", g.Name(), "commands", len(g.Commands()), "listeners", len(ids))
	return nil
}

// RemoveCog unregisters a cog's commands and listeners.
func (b *Bot) RemoveCog(name string) error {
	if _, err := b.registry.RemoveCog(name); err != nil {
		return err
	}

	b.mu.Lock()
	ids := b.cogListeners[name]
	delete(b.cogListeners, name)
	b.mu.Unlock()

	for _, id := range ids {
		b.events.RemoveListener(id)
	}
	return nil
}

// On registers a listener for event.
func (b *Bot) On(event string, h events.Handler) events.ListenerID {
	return b.events.On(event, h)
}

// RemoveListener unregisters a listener.
func (b *Bot) RemoveListener(id events.ListenerID) bool {
	return b.events.RemoveListener(id)
}

// WaitFor blocks until event fires with arguments accepted by pred. See
// events.Dispatcher.WaitFor.
func (b *Bot) WaitFor(ctx context.Context, event string, pred events.Predicate, timeout time.Duration) (any, error) {
	return b.events.WaitFor(ctx, event, pred, timeout)
}

// Dispatch fires a custom event.
func (b *Bot) Dispatch(event string, args ...any) {
	b.events.Dispatch(event, args...)
}

// Me returns the bot's own user, fetching it once.
func (b *Bot) Me(ctx context.Context) (*telegram.User, error) {
	b.mu.Lock()
	me := b.me
	b.mu.Unlock()
	if me != nil {
		return me, nil
	}

	me, err := b.api.GetMe(ctx)
	if err != nil {
		return nil, fmt.Errorf("bot: getMe: %w", err)
	}

	b.mu.Lock()
	b.me = me
	b.mu.Unlock()
	return me, nil
}

func (b *Bot) username() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.me == nil {
		return ""
	}
	return b.me.Username
}

// State reports the poll loop state.
func (b *Bot) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Cursor returns the offset of the next getUpdates request.
func (b *Bot) Cursor() int {
	return int(b.poller.cursor.Load())
}

// Start runs the poll loop and blocks. It returns nil once Stop is called or
// ctx is done, ErrAlreadyRunning if the loop is already running, and the
// error itself when the Bot API reports a fatal condition such as an invalid
// token or a conflicting instance.
func (b *Bot) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.state == StatePolling {
		b.mu.Unlock()
		return ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	b.state, b.cancel, b.done = StatePolling, cancel, done
	b.mu.Unlock()

	err := b.run(runCtx)
	stopped := runCtx.Err() != nil
	cancel()

	final := StateStopped
	if err != nil && !stopped {
		final = StateFatallyStopped
	}

	b.mu.Lock()
	b.state, b.cancel = final, nil
	b.mu.Unlock()
	close(done)

	if final == StateFatallyStopped {
		b.logger.Error("polling stopped on fatal error", "error", err)
		return err
	}
	b.logger.Info("polling stopped", "cursor", b.Cursor())
	return nil
}

func (b *Bot) run(ctx context.Context) error {
	b.opts.BackOff.Reset()

	var me *telegram.User
	err := b.poller.retry(ctx, "getMe", func(ctx context.Context) error {
		var err error
		me, err = b.Me(ctx)
		return err
	})
	if err != nil {
		return err
	}
	b.logger.Info("bot authenticated", "id", me.ID, "username", me.Username)

	if !b.opts.KeepPending {
		if err := b.poller.skipPending(ctx); err != nil {
			return err
		}
	}

	b.logger.Info("polling started", "timeout", b.opts.PollTimeout, "cursor", b.Cursor())
	return b.poller.run(ctx)
}

// Stop cancels the in-flight long poll, waits for the loop to exit, then
// cancels outstanding handlers and waits for them. It returns ErrNotRunning
// when the loop is not running.
func (b *Bot) Stop(ctx context.Context) error {
	b.mu.Lock()
	if b.state != StatePolling {
		b.mu.Unlock()
		return ErrNotRunning
	}
	cancel, done := b.cancel, b.done
	b.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("bot: stop: %w", ctx.Err())
	}
	return b.events.Shutdown(ctx)
}

// Close stops the loop if it runs and cancels outstanding handlers. Unlike
// Stop it is valid in every state, which suits webhook mode.
func (b *Bot) Close(ctx context.Context) error {
	if err := b.Stop(ctx); err != nil && !errors.Is(err, ErrNotRunning) {
		return err
	}
	return b.events.Shutdown(ctx)
}

// ProcessUpdate dispatches one update. The poll loop calls it for every
// update in arrival order; webhook receivers call it directly.
func (b *Bot) ProcessUpdate(ctx context.Context, u *telegram.Update) {
	b.events.Dispatch(EventRawUpdate, u)

	event, payload, ok := classify(u)
	if !ok {
		b.logger.Warn("dropping unknown update", "update_id", u.UpdateID)
		return
	}
	b.events.Dispatch(event, payload)

	if event == EventMessage {
		b.processCommands(u.Message)
	}
}

// processCommands resolves msg against the registry and invokes the command
// in a tracked task. Unknown commands are reported as command_error with a
// context whose Command is nil.
func (b *Bot) processCommands(msg *telegram.Message) {
	match, err := b.registry.Resolve(msg.Content(), b.username())
	if match == nil && err == nil {
		return
	}

	c := b.newContext(msg)
	if err != nil {
		var notFound *commands.CommandNotFoundError
		if errors.As(err, &notFound) {
			c.InvokedWith = notFound.Name
		}
		c.Failed = true
		b.events.Dispatch(EventCommandError, c, err)
		return
	}
	c.Command, c.InvokedWith, c.Tail = match.Command, match.InvokedWith, match.Tail

	// Command listeners get a clone: Invoke mutates c.
	b.events.Dispatch(EventCommand, c.Clone())
	b.events.Go(func(ctx context.Context) error {
		if err := b.registry.Invoke(ctx, c); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			b.logger.Debug("command failed", "command", c.Command.Name(), "invocation_id", c.ID, "error", err)
			b.events.Dispatch(EventCommandError, c, err)
			return nil
		}
		b.events.Dispatch(EventCommandCompletion, c)
		return nil
	})
}

func (b *Bot) newContext(msg *telegram.Message) *commands.Context {
	return &commands.Context{
		ID:       uuid.NewString(),
		Message:  msg,
		Chat:     &msg.Chat,
		Author:   msg.From,
		API:      b.api,
		OwnerIDs: b.opts.OwnerIDs,
		Registry: b.registry,
	}
}

// reportError is the fallback for error events without listeners.
func (b *Bot) reportError(_ context.Context, args ...any) error {
	err := argError(args, 0)
	fmt.Fprintf(b.opts.Stderr, "Ignoring exception in event handler:\n%v\n", err)
	var pe *events.PanicError
	if errors.As(err, &pe) {
		fmt.Fprintf(b.opts.Stderr, "%s\n", pe.Stack)
	}
	return nil
}

// reportCommandError is the fallback for command_error events without
// listeners.
func (b *Bot) reportCommandError(_ context.Context, args ...any) error {
	name := ""
	if len(args) > 0 {
		if c, ok := args[0].(*commands.Context); ok {
			name = c.InvokedWith
			if c.Command != nil {
				name = c.Command.Name()
			}
		}
	}
	fmt.Fprintf(b.opts.Stderr, "Ignoring exception in command %s:\n%v\n", name, argError(args, 1))
	return nil
}

func argError(args []any, i int) error {
	if i < len(args) {
		if err, ok := args[i].(error); ok {
			return err
		}
	}
	return fmt.Errorf("unknown error %v", args)
}
