package telegram

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/flemzord/tgram/internal/gateway"
	"github.com/flemzord/tgram/internal/security"
	tgapi "github.com/flemzord/tgram/pkg/telegram"
)

const (
	secretHeader = "X-Telegram-Bot-Api-Secret-Token"

	// maxUpdateDepth is well above the nesting of any real update.
	maxUpdateDepth = 24
)

// UpdateProcessor consumes pushed updates. *bot.Bot satisfies it.
type UpdateProcessor interface {
	ProcessUpdate(ctx context.Context, u *tgapi.Update)
}

// WebhookReceiver feeds updates pushed by the Bot API into a bot. It
// implements gateway.WebhookHandler.
type WebhookReceiver struct {
	bot    UpdateProcessor
	secret string
	logger *slog.Logger
}

var _ gateway.WebhookHandler = (*WebhookReceiver)(nil)

// NewWebhookReceiver creates a receiver. A non-empty secret must match the
// X-Telegram-Bot-Api-Secret-Token header of every request.
func NewWebhookReceiver(bot UpdateProcessor, secret string, logger *slog.Logger) *WebhookReceiver {
	return &WebhookReceiver{bot: bot, secret: secret, logger: logger}
}

func (w *WebhookReceiver) HandleWebhook(ctx context.Context, _ string, body []byte, headers http.Header) error {
	if w.secret != "" {
		token := headers.Get(secretHeader)
		if subtle.ConstantTimeCompare([]byte(w.secret), []byte(token)) != 1 {
			w.logger.Warn("webhook rejected: secret token mismatch")
			return gateway.ErrUnauthorized
		}
	}

	if err := security.CheckJSONDepth(body, maxUpdateDepth); err != nil {
		return fmt.Errorf("telegram: rejected update: %w", err)
	}
	var u tgapi.Update
	if err := json.Unmarshal(body, &u); err != nil {
		return fmt.Errorf("telegram: invalid update JSON: %w", err)
	}
	w.logger.Debug("webhook update received", "update_id", u.UpdateID)
	w.bot.ProcessUpdate(ctx, &u)
	return nil
}
