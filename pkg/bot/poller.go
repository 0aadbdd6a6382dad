package bot

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/flemzord/tgram/pkg/telegram"
)

// State is the lifecycle state of the poll loop.
type State int32

const (
	StateIdle State = iota
	StatePolling
	StateStopped
	StateFatallyStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateStopped:
		return "stopped"
	case StateFatallyStopped:
		return "fatally_stopped"
	default:
		return "unknown"
	}
}

// Lifecycle errors.
var (
	ErrAlreadyRunning = errors.New("bot: already running")
	ErrNotRunning     = errors.New("bot: not running")
)

// Backoff defaults for transient Bot API failures.
const (
	defaultInitialBackoff = time.Second
	defaultMaxBackoff     = 30 * time.Second
	defaultBackoffFactor  = 2
)

// NewBackOff returns the default retry policy: exponential from 1s, doubling,
// capped at 30s, never giving up.
func NewBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = defaultInitialBackoff
	b.Multiplier = defaultBackoffFactor
	b.MaxInterval = defaultMaxBackoff
	b.Reset()
	return b
}

// poller drives getUpdates. Only the loop goroutine writes the cursor.
type poller struct {
	api     API
	handle  func(ctx context.Context, u *telegram.Update)
	logger  *slog.Logger
	backoff backoff.BackOff

	timeout        int
	limit          int
	allowedUpdates []string

	cursor atomic.Int64
}

// run fetches and dispatches batches until ctx is done or a fatal error
// occurs. The cursor moves past a batch only once every update in it has
// been handled.
func (p *poller) run(ctx context.Context) error {
	for {
		var updates []telegram.Update
		err := p.retry(ctx, "getUpdates", func(ctx context.Context) error {
			var err error
			updates, err = p.api.GetUpdates(ctx, telegram.GetUpdatesRequest{
				Offset:         int(p.cursor.Load()),
				Limit:          p.limit,
				Timeout:        p.timeout,
				AllowedUpdates: p.allowedUpdates,
			})
			return err
		})
		if err != nil {
			return err
		}

		next := p.cursor.Load()
		for i := range updates {
			u := &updates[i]
			p.handle(ctx, u)
			next = max(next, int64(u.UpdateID)+1)
		}
		if len(updates) > 0 {
			p.logger.Debug("batch dispatched", "updates", len(updates), "cursor", next)
		}
		p.cursor.Store(next)
	}
}

// skipPending acknowledges the backlog without dispatching it. An offset of
// -1 asks for the newest update only, and confirming it drops the rest.
func (p *poller) skipPending(ctx context.Context) error {
	var updates []telegram.Update
	err := p.retry(ctx, "getUpdates", func(ctx context.Context) error {
		var err error
		updates, err = p.api.GetUpdates(ctx, telegram.GetUpdatesRequest{
			Offset:         -1,
			AllowedUpdates: p.allowedUpdates,
		})
		return err
	})
	if err != nil {
		return err
	}

	next := p.cursor.Load()
	for _, u := range updates {
		next = max(next, int64(u.UpdateID)+1)
	}
	if next != p.cursor.Load() {
		p.logger.Info("skipped pending updates", "cursor", next)
	}
	p.cursor.Store(next)
	return nil
}

// retry runs op until it succeeds, fails fatally or ctx is done. Transient
// failures wait for the next backoff interval. A success resets the backoff.
func (p *poller) retry(ctx context.Context, what string, op func(ctx context.Context) error) error {
	for {
		err := op(ctx)
		if err == nil {
			p.backoff.Reset()
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if telegram.IsFatal(err) {
			return err
		}

		wait := p.backoff.NextBackOff()
		if wait == backoff.Stop {
			return err
		}
		p.logger.Warn("telegram request failed, retrying",
			"method", what,
			"error", err,
			"retry_in", wait,
			"cursor", p.cursor.Load(),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
