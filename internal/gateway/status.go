package gateway

import (
	"net/http"
	"time"

	"github.com/flemzord/tgram/internal/cron"
)

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Uptime      int64        `json:"uptime_seconds"`
	Bot         *BotStatus   `json:"bot,omitempty"`
	Jobs        []cron.Entry `json:"jobs,omitempty"`
	Subscribers int          `json:"event_subscribers"`
}

// BotStatus describes the poll loop and the registered commands.
type BotStatus struct {
	State    string   `json:"state"`
	Cursor   int      `json:"cursor"`
	Commands []string `json:"commands"`
}

func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			Uptime:      int64(time.Since(g.startedAt).Seconds()),
			Subscribers: g.stream.Subscribers(),
		}
		if g.bot != nil {
			st := &BotStatus{
				State:    g.bot.State().String(),
				Cursor:   g.bot.Cursor(),
				Commands: []string{},
			}
			for _, cmd := range g.bot.Commands() {
				st.Commands = append(st.Commands, cmd.Name())
			}
			resp.Bot = st
		}
		if g.jobs != nil {
			resp.Jobs = g.jobs.Entries()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
