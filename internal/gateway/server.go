package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", g.handleHealth())
	r.Handle("/metrics", g.metrics.Handler())
	r.Post("/webhooks/{source}", g.dispatcher.ServeHTTP)

	if g.config.Auth.IsConfigured() {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(g.config.Auth, g.limiter, g.logger))
			r.Get("/status", g.handleStatus())
			r.Get("/events", g.stream.ServeHTTP)
		})
	}
	return r
}
