// Package events routes named events to long-lived listeners and one-shot
// waiters.
//
// Listeners and waiters live in two separate namespaces: a listener for the
// "message" event is stored under "on_message", a waiter under "message".
// Dispatch never blocks on listeners. Each listener runs in its own tracked
// goroutine, and a failing listener is reported as an Error event instead of
// affecting its siblings.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Error is the event dispatched when a listener or task fails. Its single
// argument is the error.
const Error = "error"

// ErrWaitTimeout is returned by WaitFor when no matching event arrived in time.
var ErrWaitTimeout = errors.New("events: wait timed out")

// Handler processes one occurrence of an event. The context is cancelled when
// the dispatcher shuts down.
type Handler func(ctx context.Context, args ...any) error

// Predicate decides whether an event occurrence satisfies a waiter.
type Predicate func(args ...any) (bool, error)

// ListenerID identifies a registered listener for later removal.
type ListenerID uint64

// PanicError carries a value recovered from a panicking handler.
type PanicError struct {
	Value any
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("events: handler panicked: %v", e.Value)
}

type listener struct {
	id      ListenerID
	handler Handler
}

// group tracks the tasks scheduled between two shutdowns.
type group struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newGroup() *group {
	ctx, cancel := context.WithCancel(context.Background())
	return &group{ctx: ctx, cancel: cancel}
}

// Dispatcher fans events out to listeners and resolves pending waiters.
// All methods are safe for concurrent use.
type Dispatcher struct {
	mu        sync.Mutex
	listeners map[string][]listener
	waiters   map[string][]*waiter
	fallbacks map[string]Handler
	nextID    ListenerID
	tasks     *group
	logger    *slog.Logger
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		listeners: make(map[string][]listener),
		waiters:   make(map[string][]*waiter),
		fallbacks: make(map[string]Handler),
		tasks:     newGroup(),
		logger:    logger.With("component", "events"),
	}
}

// listenerKey returns the listener-namespace key for an event.
func listenerKey(event string) string {
	return "on_" + event
}

// waiterKey returns the waiter-namespace key for an event. Waiters register
// under the lowercased name; dispatches look them up by the exact name, so
// "Message" never resolves a waiter for "message".
func waiterKey(event string) string {
	return strings.ToLower(event)
}

// On registers h for every future occurrence of event. Registering the same
// handler twice makes it run twice.
func (d *Dispatcher) On(event string, h Handler) ListenerID {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	key := listenerKey(event)
	d.listeners[key] = append(d.listeners[key], listener{id: d.nextID, handler: h})
	return d.nextID
}

// RemoveListener unregisters the listener with the given id. It reports
// whether a listener was removed.
func (d *Dispatcher) RemoveListener(id ListenerID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	for key, ls := range d.listeners {
		idx := slices.IndexFunc(ls, func(l listener) bool { return l.id == id })
		if idx < 0 {
			continue
		}
		ls = slices.Delete(ls, idx, idx+1)
		if len(ls) == 0 {
			delete(d.listeners, key)
		} else {
			d.listeners[key] = ls
		}
		return true
	}
	return false
}

// HasListeners reports whether at least one listener is registered for event.
func (d *Dispatcher) HasListeners(event string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.listeners[listenerKey(event)]) > 0
}

// SetFallback installs a last-resort handler for event. It runs only for
// occurrences that have no registered listener. A nil handler removes it.
func (d *Dispatcher) SetFallback(event string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := listenerKey(event)
	if h == nil {
		delete(d.fallbacks, key)
		return
	}
	d.fallbacks[key] = h
}

// Dispatch delivers an event occurrence. Waiter predicates are evaluated
// before Dispatch returns; listeners are only scheduled.
func (d *Dispatcher) Dispatch(event string, args ...any) {
	d.dispatch(nil, event, args)
}

// Go runs fn as a tracked task. fn's context is cancelled by Shutdown, and a
// returned error or panic is dispatched as an Error event.
func (d *Dispatcher) Go(fn func(ctx context.Context) error) {
	d.mu.Lock()
	g := d.tasks
	g.wg.Add(1)
	d.mu.Unlock()

	go d.run(g, "", func(ctx context.Context, _ ...any) error { return fn(ctx) }, nil)
}

// dispatch schedules listeners into g, or into the current task group when
// g is nil. Tasks calling it pass their own group so that Shutdown waits for
// the work they spawn.
func (d *Dispatcher) dispatch(g *group, event string, args []any) {
	d.logger.Debug("dispatching event", "event", event, "args", len(args))

	d.resolveWaiters(event, args)

	d.mu.Lock()
	key := listenerKey(event)
	handlers := make([]Handler, 0, len(d.listeners[key]))
	for _, l := range d.listeners[key] {
		handlers = append(handlers, l.handler)
	}
	if len(handlers) == 0 {
		if fb, ok := d.fallbacks[key]; ok {
			handlers = append(handlers, fb)
		}
	}
	if g == nil {
		g = d.tasks
	}
	g.wg.Add(len(handlers))
	d.mu.Unlock()

	for _, h := range handlers {
		go d.run(g, event, h, args)
	}
}

func (d *Dispatcher) run(g *group, event string, h Handler, args []any) {
	defer g.wg.Done()

	err := call(g.ctx, h, args)
	if err == nil {
		return
	}
	if g.ctx.Err() != nil {
		// Errors raised while being cancelled are discarded.
		return
	}
	if event == Error {
		d.logger.Error("error handler failed", "error", err)
		return
	}
	d.dispatch(g, Error, []any{err})
}

func call(ctx context.Context, h Handler, args []any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return h(ctx, args...)
}

// Shutdown cancels every task scheduled so far and waits for them to return.
// Tasks scheduled after Shutdown starts belong to a fresh group, so the
// dispatcher stays usable.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	g := d.tasks
	d.tasks = newGroup()
	d.mu.Unlock()

	g.cancel()

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("events: shutdown: %w", ctx.Err())
	}
}

// WaitFor blocks until an occurrence of event satisfies pred, the timeout
// elapses, or ctx is done. A nil predicate accepts the first occurrence and a
// non-positive timeout waits indefinitely.
//
// The result is nil for an event without arguments, the argument itself for
// a single-argument event, and a []any of all arguments otherwise.
func (d *Dispatcher) WaitFor(ctx context.Context, event string, pred Predicate, timeout time.Duration) (any, error) {
	if pred == nil {
		pred = func(...any) (bool, error) { return true, nil }
	}
	w := &waiter{
		predicate: pred,
		result:    make(chan waitResult, 1),
	}

	key := waiterKey(event)
	d.mu.Lock()
	d.waiters[key] = append(d.waiters[key], w)
	d.mu.Unlock()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case r := <-w.result:
		return r.value, r.err
	case <-expired:
		if w.cancel() {
			return nil, ErrWaitTimeout
		}
	case <-ctx.Done():
		if w.cancel() {
			return nil, ctx.Err()
		}
	}

	// Resolved concurrently with the timeout: the result is already buffered.
	r := <-w.result
	return r.value, r.err
}

// PendingWaiters returns the number of waiters still registered for event,
// including cancelled ones that have not been pruned yet.
func (d *Dispatcher) PendingWaiters(event string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.waiters[waiterKey(event)])
}

func (d *Dispatcher) resolveWaiters(event string, args []any) {
	key := event

	d.mu.Lock()
	snapshot := slices.Clone(d.waiters[key])
	d.mu.Unlock()

	if len(snapshot) == 0 {
		return
	}

	for _, w := range snapshot {
		if !w.pending() {
			continue
		}
		ok, err := w.check(args)
		switch {
		case err != nil:
			w.resolve(nil, err)
		case ok:
			w.resolve(waitValue(args), nil)
		}
	}

	d.mu.Lock()
	kept := slices.DeleteFunc(d.waiters[key], func(w *waiter) bool { return !w.pending() })
	if len(kept) == 0 {
		delete(d.waiters, key)
	} else {
		d.waiters[key] = kept
	}
	d.mu.Unlock()
}

func waitValue(args []any) any {
	switch len(args) {
	case 0:
		return nil
	case 1:
		return args[0]
	default:
		return slices.Clone(args)
	}
}

const (
	waiterPending int32 = iota
	waiterResolved
	waiterCancelled
)

type waitResult struct {
	value any
	err   error
}

type waiter struct {
	predicate Predicate
	result    chan waitResult
	state     atomic.Int32
}

func (w *waiter) pending() bool {
	return w.state.Load() == waiterPending
}

// resolve delivers a result once; later calls are no-ops.
func (w *waiter) resolve(value any, err error) {
	if w.state.CompareAndSwap(waiterPending, waiterResolved) {
		w.result <- waitResult{value: value, err: err}
	}
}

// cancel withdraws a pending waiter. It reports false if the waiter was
// resolved first.
func (w *waiter) cancel() bool {
	return w.state.CompareAndSwap(waiterPending, waiterCancelled)
}

func (w *waiter) check(args []any) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return w.predicate(args...)
}
