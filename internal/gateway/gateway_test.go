package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/tgram/internal/cron"
	"github.com/flemzord/tgram/pkg/bot"
	"github.com/flemzord/tgram/pkg/commands"
	"github.com/flemzord/tgram/pkg/telegram"
)

func TestGateway_ModuleInfo(t *testing.T) {
	t.Parallel()

	info := (&Gateway{}).ModuleInfo()
	if info.ID != "gateway.http" {
		t.Errorf("ID = %q, want %q", info.ID, "gateway.http")
	}
	if _, ok := info.New().(*Gateway); !ok {
		t.Error("New() should return *Gateway")
	}
}

func TestConfig_Defaults(t *testing.T) {
	t.Parallel()

	var c Config
	c.defaults()
	if c.Bind != "127.0.0.1:8080" {
		t.Errorf("Bind = %q", c.Bind)
	}
	if c.EventBuffer != 64 || c.Auth.AttemptsPerMinute != 30 {
		t.Errorf("EventBuffer = %d, AttemptsPerMinute = %d", c.EventBuffer, c.Auth.AttemptsPerMinute)
	}
	if c.ReadTimeout != 10*time.Second || c.WriteTimeout != 30*time.Second || c.ShutdownTimeout != 5*time.Second {
		t.Errorf("timeouts = %v/%v/%v", c.ReadTimeout, c.WriteTimeout, c.ShutdownTimeout)
	}
}

func TestGateway_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"loopback", Config{Bind: "127.0.0.1:0"}, false},
		{"bad address", Config{Bind: "not an address"}, true},
		{"basic without password", Config{Bind: "127.0.0.1:0", Auth: AuthConfig{BasicUser: "admin"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := &Gateway{config: tt.cfg}
			if err := g.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGateway_HealthWithoutBot(t *testing.T) {
	t.Parallel()

	_, base := startGateway(t, "", nil)
	resp := doRequest(t, http.MethodGet, base+"/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "ok" || health.BotState != "" {
		t.Errorf("health = %+v", health)
	}
}

func TestGateway_HealthDegradedOnFatalStop(t *testing.T) {
	t.Parallel()

	b := newFakeBot(t)
	b.state.Store(int32(bot.StateFatallyStopped))
	_, base := startGateway(t, "", map[string]any{"bot": b})

	resp := doRequest(t, http.MethodGet, base+"/health", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "degraded" || health.BotState != "fatally_stopped" {
		t.Errorf("health = %+v", health)
	}
}

type staticJobs []cron.Entry

func (s staticJobs) Entries() []cron.Entry { return s }

func TestGateway_Status(t *testing.T) {
	t.Parallel()

	b := newFakeBot(t)
	b.state.Store(int32(bot.StatePolling))
	b.cursor.Store(42)
	b.commands = []*commands.Command{commands.New("ping", func(context.Context, *commands.Context) error { return nil })}
	jobs := staticJobs{{Name: "morning", Schedule: "0 9 * * *"}}

	_, base := startGateway(t, "auth:\n  bearer_token: s3cret\n", map[string]any{"bot": b, "scheduler": jobs})

	if resp := doRequest(t, http.MethodGet, base+"/status", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", resp.StatusCode)
	}

	resp := doRequest(t, http.MethodGet, base+"/status", http.Header{"Authorization": {"Bearer s3cret"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var st StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if st.Bot == nil || st.Bot.State != "polling" || st.Bot.Cursor != 42 {
		t.Fatalf("bot = %+v", st.Bot)
	}
	if len(st.Bot.Commands) != 1 || st.Bot.Commands[0] != "ping" {
		t.Errorf("commands = %v", st.Bot.Commands)
	}
	if len(st.Jobs) != 1 || st.Jobs[0].Name != "morning" {
		t.Errorf("jobs = %+v", st.Jobs)
	}
}

func TestGateway_ProtectedRoutesNotMountedWithoutAuth(t *testing.T) {
	t.Parallel()

	_, base := startGateway(t, "", nil)
	for _, path := range []string{"/status", "/events"} {
		resp := doRequest(t, http.MethodGet, base+path, nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", path, resp.StatusCode)
		}
	}
}

func TestGateway_MetricsFedByBotEvents(t *testing.T) {
	t.Parallel()

	b := newFakeBot(t)
	b.cursor.Store(7)
	_, base := startGateway(t, "", map[string]any{"bot": b})

	b.Dispatch(bot.EventMessage, &telegram.Message{Text: "hi"})
	eventually(t, func() bool {
		return strings.Contains(scrape(t, base), `tgram_updates_total{event="message"} 1`)
	})

	body := scrape(t, base)
	for _, want := range []string{"tgram_poll_cursor 7", "tgram_poll_state 0", "go_goroutines"} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func scrape(t *testing.T, base string) string {
	t.Helper()
	resp := doRequest(t, http.MethodGet, base+"/metrics", nil)
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestGateway_StopDetachesListeners(t *testing.T) {
	t.Parallel()

	b := newFakeBot(t)
	g, _ := startGateway(t, "", map[string]any{"bot": b})
	if !b.HasListeners(bot.EventRawUpdate) || !b.HasListeners(bot.EventCommandError) {
		t.Fatal("gateway did not attach its listeners")
	}

	if err := g.Stop(t.Context()); err != nil {
		t.Fatal(err)
	}
	if b.HasListeners(bot.EventRawUpdate) || b.HasListeners(bot.EventMessage) {
		t.Error("listeners left attached after Stop")
	}
}
