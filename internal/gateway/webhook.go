package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
)

// maxWebhookBody bounds the size of a webhook payload.
const maxWebhookBody = 1 << 20

// ErrUnauthorized is returned by a WebhookHandler that rejects the caller's
// credentials. The dispatcher answers 401.
var ErrUnauthorized = errors.New("gateway: webhook unauthorized")

// WebhookHandler processes the body of one webhook request.
type WebhookHandler interface {
	HandleWebhook(ctx context.Context, source string, body []byte, headers http.Header) error
}

// WebhookHandlerFunc adapts a function to WebhookHandler.
type WebhookHandlerFunc func(ctx context.Context, source string, body []byte, headers http.Header) error

func (f WebhookHandlerFunc) HandleWebhook(ctx context.Context, source string, body []byte, headers http.Header) error {
	return f(ctx, source, body, headers)
}

// WebhookDispatcher routes POST /webhooks/{source} to the handler registered
// for source. A source with a configured secret must carry a valid
// X-Signature-256 HMAC-SHA256 header.
type WebhookDispatcher struct {
	mu       sync.RWMutex
	handlers map[string]WebhookHandler
	secrets  map[string]string
	logger   *slog.Logger
	metrics  *Metrics
}

// NewWebhookDispatcher creates an empty dispatcher. metrics may be nil.
func NewWebhookDispatcher(logger *slog.Logger, metrics *Metrics) *WebhookDispatcher {
	return &WebhookDispatcher{
		handlers: make(map[string]WebhookHandler),
		secrets:  make(map[string]string),
		logger:   logger,
		metrics:  metrics,
	}
}

// Register mounts h for source, replacing any previous handler.
func (d *WebhookDispatcher) Register(source string, h WebhookHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[source] = h
}

// Unregister removes the handler for source.
func (d *WebhookDispatcher) Unregister(source string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.handlers, source)
}

// SetSecret requires an HMAC signature for source. An empty secret removes
// the requirement.
func (d *WebhookDispatcher) SetSecret(source, secret string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if secret == "" {
		delete(d.secrets, source)
		return
	}
	d.secrets[source] = secret
}

func (d *WebhookDispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")
	code := d.serve(w, r, source)
	if d.metrics != nil {
		d.metrics.webhooks.WithLabelValues(source, strconv.Itoa(code)).Inc()
	}
}

func (d *WebhookDispatcher) serve(w http.ResponseWriter, r *http.Request, source string) int {
	d.mu.RLock()
	h, ok := d.handlers[source]
	secret := d.secrets[source]
	d.mu.RUnlock()

	if !ok {
		d.logger.Warn("webhook for unregistered source", "source", source)
		return reply(w, http.StatusNotFound, "unknown source")
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		return reply(w, http.StatusRequestEntityTooLarge, "body too large")
	}

	if secret != "" && !validHMAC(body, r.Header.Get("X-Signature-256"), secret) {
		return reply(w, http.StatusUnauthorized, "invalid signature")
	}

	switch err := h.HandleWebhook(r.Context(), source, body, r.Header); {
	case errors.Is(err, ErrUnauthorized):
		return reply(w, http.StatusUnauthorized, "unauthorized")
	case err != nil:
		d.logger.Error("webhook handler failed", "source", source, "error", err)
		return reply(w, http.StatusBadRequest, "rejected")
	}
	return reply(w, http.StatusOK, "")
}

func reply(w http.ResponseWriter, code int, msg string) int {
	if code == http.StatusOK {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_, _ = w.Write([]byte(`{"ok":true}`))
		return code
	}
	http.Error(w, msg, code)
	return code
}

func validHMAC(body []byte, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
