package telegram

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path"
	"sync"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/tgram/internal/core"
	tgapi "github.com/flemzord/tgram/pkg/telegram"
)

const testToken = "123456789:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw4"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeAPI is a minimal Bot API server. Queued updates are served once;
// an empty queue answers getUpdates after a short delay.
type fakeAPI struct {
	t   *testing.T
	srv *httptest.Server

	mu           sync.Mutex
	calls        map[string][]json.RawMessage
	updates      []tgapi.Update
	unauthorized bool
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{t: t, calls: make(map[string][]json.RawMessage)}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	method := path.Base(r.URL.Path)
	body, _ := io.ReadAll(r.Body)
	if len(body) == 0 {
		body = []byte("{}")
	}

	f.mu.Lock()
	f.calls[method] = append(f.calls[method], body)
	var result any = true
	switch method {
	case "getMe":
		if f.unauthorized {
			f.mu.Unlock()
			w.WriteHeader(http.StatusUnauthorized)
			f.writeJSON(w, map[string]any{"ok": false, "error_code": 401, "description": "Unauthorized"})
			return
		}
		result = tgapi.User{ID: 1, IsBot: true, FirstName: "Test", Username: "test_bot"}
	case "getUpdates":
		var req tgapi.GetUpdatesRequest
		_ = json.Unmarshal(body, &req)
		updates := []tgapi.Update{}
		if req.Offset != -1 {
			updates = append(updates, f.updates...)
			f.updates = nil
		}
		if len(updates) == 0 && req.Offset != -1 {
			f.mu.Unlock()
			select {
			case <-r.Context().Done():
				return
			case <-time.After(20 * time.Millisecond):
			}
			f.writeJSON(w, map[string]any{"ok": true, "result": updates})
			return
		}
		result = updates
	case "sendMessage", "sendPoll":
		result = tgapi.Message{MessageID: 100, Chat: tgapi.Chat{ID: -5, Type: tgapi.ChatGroup}}
	}
	f.mu.Unlock()
	f.writeJSON(w, map[string]any{"ok": true, "result": result})
}

func (f *fakeAPI) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		f.t.Errorf("encode response: %v", err)
	}
}

func (f *fakeAPI) queue(updates ...tgapi.Update) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, updates...)
}

// requests decodes every recorded call to method.
func (f *fakeAPI) requests(method string) []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]any, 0, len(f.calls[method]))
	for _, raw := range f.calls[method] {
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			f.t.Errorf("decode %s request: %v", method, err)
		}
		out = append(out, m)
	}
	return out
}

func (f *fakeAPI) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls[method])
}

func mustYAMLNode(t *testing.T, s string) *yaml.Node {
	t.Helper()
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(s), &doc); err != nil {
		t.Fatal(err)
	}
	return doc.Content[0]
}

// newModule configures, provisions and validates a module pointed at api.
func newModule(t *testing.T, api *fakeAPI, extra string, appCtx *core.AppContext) *Telegram {
	t.Helper()
	if appCtx == nil {
		appCtx = core.NewAppContext(discardLogger())
	}
	cfg := "token: " + testToken + "\napi_url: " + api.srv.URL + "\n" + extra
	m := &Telegram{}
	if err := m.Configure(mustYAMLNode(t, cfg)); err != nil {
		t.Fatal(err)
	}
	if err := m.Provision(appCtx); err != nil {
		t.Fatal(err)
	}
	if err := m.Validate(); err != nil {
		t.Fatal(err)
	}
	return m
}

func textUpdate(id int, chat tgapi.Chat, text string) tgapi.Update {
	return tgapi.Update{
		UpdateID: id,
		Message: &tgapi.Message{
			MessageID: id * 10,
			From:      &tgapi.User{ID: 42, FirstName: "Ann"},
			Chat:      chat,
			Text:      text,
		},
	}
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
