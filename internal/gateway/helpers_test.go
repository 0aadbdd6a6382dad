package gateway

import (
	"bytes"
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/tgram/internal/core"
	"github.com/flemzord/tgram/pkg/bot"
	"github.com/flemzord/tgram/pkg/commands"
	"github.com/flemzord/tgram/pkg/events"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

// fakeBot satisfies Bot on top of a real dispatcher.
type fakeBot struct {
	*events.Dispatcher
	state    atomic.Int32
	cursor   atomic.Int64
	commands []*commands.Command
}

func newFakeBot(t *testing.T) *fakeBot {
	t.Helper()
	b := &fakeBot{Dispatcher: events.NewDispatcher(testLogger())}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = b.Shutdown(ctx)
	})
	return b
}

func (b *fakeBot) State() bot.State              { return bot.State(b.state.Load()) }
func (b *fakeBot) Cursor() int                   { return int(b.cursor.Load()) }
func (b *fakeBot) Commands() []*commands.Command { return b.commands }

func mustYAMLNode(t *testing.T, s string) *yaml.Node {
	t.Helper()
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(s), &doc); err != nil {
		t.Fatal(err)
	}
	return doc.Content[0]
}

// freeAddr returns a free TCP address on localhost.
func freeAddr(t *testing.T) string {
	t.Helper()
	var lc net.ListenConfig
	ln, err := lc.Listen(t.Context(), "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	if err := ln.Close(); err != nil {
		t.Fatal(err)
	}
	return addr
}

// startGateway provisions and starts a gateway on a free port. The services
// are registered before Start resolves them.
func startGateway(t *testing.T, cfg string, services map[string]any) (*Gateway, string) {
	t.Helper()

	addr := freeAddr(t)
	appCtx := core.NewAppContext(testLogger())
	for name, svc := range services {
		appCtx.RegisterService(name, svc)
	}

	g := &Gateway{}
	if err := g.Configure(mustYAMLNode(t, "bind: "+addr+"\n"+cfg)); err != nil {
		t.Fatal(err)
	}
	if err := g.Provision(appCtx.ForModule("gateway.http")); err != nil {
		t.Fatal(err)
	}
	if err := g.Validate(); err != nil {
		t.Fatal(err)
	}
	if err := g.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = g.Stop(context.Background()) })
	return g, "http://" + addr
}

func doRequest(t *testing.T, method, url string, header http.Header) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), method, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
