package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/flemzord/tgram/pkg/events"
	"github.com/flemzord/tgram/pkg/telegram"
)

const streamWriteTimeout = 5 * time.Second

// Stream fans raw updates out to websocket subscribers as JSON text
// messages. A subscriber whose buffer is full misses updates; the bot never
// waits for a reader.
type Stream struct {
	mu      sync.Mutex
	subs    map[uint64]chan []byte
	nextID  uint64
	closed  bool
	buffer  int
	dropped prometheus.Counter
	logger  *slog.Logger
}

// NewStream creates a stream giving each subscriber buffer pending
// messages. dropped may be nil.
func NewStream(buffer int, dropped prometheus.Counter, logger *slog.Logger) *Stream {
	return &Stream{
		subs:    make(map[uint64]chan []byte),
		buffer:  buffer,
		dropped: dropped,
		logger:  logger.With("component", "event_stream"),
	}
}

// Listener returns a raw_update handler publishing each update.
func (s *Stream) Listener() events.Handler {
	return func(_ context.Context, args ...any) error {
		if len(args) == 0 {
			return nil
		}
		u, ok := args[0].(*telegram.Update)
		if !ok {
			return nil
		}
		return s.Publish(u)
	}
}

// Publish encodes v once and offers it to every subscriber.
func (s *Stream) Publish(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- data:
		default:
			if s.dropped != nil {
				s.dropped.Inc()
			}
		}
	}
	return nil
}

func (s *Stream) subscribe() (uint64, <-chan []byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, nil, false
	}
	s.nextID++
	ch := make(chan []byte, s.buffer)
	s.subs[s.nextID] = ch
	return s.nextID, ch, true
}

func (s *Stream) unsubscribe(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
}

// Subscribers returns the number of connected subscribers.
func (s *Stream) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Close disconnects every subscriber and refuses new ones.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

// ServeHTTP upgrades the request and streams updates until the client goes
// away or the stream is closed. Client messages are ignored.
func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	id, ch, ok := s.subscribe()
	if !ok {
		_ = conn.Close(websocket.StatusGoingAway, "gateway shutting down")
		return
	}
	defer s.unsubscribe(id)

	ctx := conn.CloseRead(r.Context())
	s.logger.Debug("subscriber connected", "subscriber", id)

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("subscriber disconnected", "subscriber", id)
			return
		case data, ok := <-ch:
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "gateway shutting down")
				return
			}
			if err := s.write(ctx, conn, data); err != nil {
				if !errors.Is(err, context.Canceled) {
					s.logger.Debug("subscriber write failed", "subscriber", id, "error", err)
				}
				return
			}
		}
	}
}

func (s *Stream) write(ctx context.Context, conn *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
