package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/flemzord/tgram/pkg/bot"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status   string `json:"status"` // "ok" or "degraded"
	BotState string `json:"bot_state,omitempty"`
}

// handleHealth answers 503 once the poll loop has stopped on a fatal error.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{Status: "ok"}
		if g.bot != nil {
			state := g.bot.State()
			resp.BotState = state.String()
			if state == bot.StateFatallyStopped {
				resp.Status = "degraded"
			}
		}

		code := http.StatusOK
		if resp.Status != "ok" {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
