package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/flemzord/tgram/pkg/bot"
	"github.com/flemzord/tgram/pkg/telegram"
)

func TestStreamPublishDropsWhenFull(t *testing.T) {
	t.Parallel()

	dropped := prometheus.NewCounter(prometheus.CounterOpts{Name: "dropped_total"})
	s := NewStream(1, dropped, testLogger())
	_, ch, ok := s.subscribe()
	if !ok {
		t.Fatal("subscribe refused")
	}

	if err := s.Publish(map[string]int{"n": 1}); err != nil {
		t.Fatal(err)
	}
	if err := s.Publish(map[string]int{"n": 2}); err != nil {
		t.Fatal(err)
	}

	if got := string(<-ch); got != `{"n":1}` {
		t.Errorf("first message = %s", got)
	}
	if got := testutil.ToFloat64(dropped); got != 1 {
		t.Errorf("dropped = %v, want 1", got)
	}
}

func TestStreamClose(t *testing.T) {
	t.Parallel()

	s := NewStream(4, nil, testLogger())
	_, ch, _ := s.subscribe()
	if s.Subscribers() != 1 {
		t.Fatalf("Subscribers = %d, want 1", s.Subscribers())
	}

	s.Close()
	if _, open := <-ch; open {
		t.Error("subscriber channel still open after Close")
	}
	if _, _, ok := s.subscribe(); ok {
		t.Error("subscribe accepted after Close")
	}
	if err := s.Publish("late"); err != nil {
		t.Errorf("Publish after Close = %v", err)
	}
}

func TestStreamListenerIgnoresOtherPayloads(t *testing.T) {
	t.Parallel()

	s := NewStream(1, nil, testLogger())
	_, ch, _ := s.subscribe()
	h := s.Listener()

	if err := h(context.Background(), "not an update"); err != nil {
		t.Fatal(err)
	}
	if err := h(context.Background()); err != nil {
		t.Fatal(err)
	}
	select {
	case msg := <-ch:
		t.Fatalf("unexpected message %s", msg)
	default:
	}
}

func TestEventsWebsocket(t *testing.T) {
	t.Parallel()

	b := newFakeBot(t)
	g, base := startGateway(t, "auth:\n  bearer_token: tok\n", map[string]any{"bot": b})

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(base, "http") + "/events"
	if _, _, err := websocket.Dial(ctx, url, nil); err == nil {
		t.Fatal("dial without token succeeded")
	}

	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": {"Bearer tok"}},
	})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.CloseNow()

	eventually(t, func() bool { return g.stream.Subscribers() == 1 })
	b.Dispatch(bot.EventRawUpdate, &telegram.Update{UpdateID: 42})

	typ, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if typ != websocket.MessageText {
		t.Errorf("message type = %v, want text", typ)
	}
	var u telegram.Update
	if err := json.Unmarshal(data, &u); err != nil {
		t.Fatal(err)
	}
	if u.UpdateID != 42 {
		t.Errorf("update_id = %d, want 42", u.UpdateID)
	}

	_ = conn.Close(websocket.StatusNormalClosure, "")
	eventually(t, func() bool { return g.stream.Subscribers() == 0 })
}
