package gateway

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/flemzord/tgram/internal/security"
)

// authMiddleware accepts a Bearer token or Basic credentials, compared in
// constant time. Requests are rate limited per client address before any
// credential check.
func authMiddleware(cfg AuthConfig, limiter *security.RateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := clientAddr(r)
			if err := limiter.Allow(client); errors.Is(err, security.ErrRateLimited) {
				logger.Warn("auth rate limited", "client", client, "path", r.URL.Path)
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}

			if authorized(cfg, r) {
				next.ServeHTTP(w, r)
				return
			}
			logger.Warn("auth failure", "client", client, "path", r.URL.Path)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		})
	}
}

func authorized(cfg AuthConfig, r *http.Request) bool {
	if cfg.BearerToken != "" {
		if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
			if constantTimeEqual(token, cfg.BearerToken) {
				return true
			}
		}
	}
	if cfg.BasicUser != "" && cfg.BasicPass != "" {
		user, pass, ok := r.BasicAuth()
		// Evaluate both comparisons so timing does not reveal which one failed.
		userOK := constantTimeEqual(user, cfg.BasicUser)
		passOK := constantTimeEqual(pass, cfg.BasicPass)
		if ok && userOK && passOK {
			return true
		}
	}
	return false
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
