package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/flemzord/tgram/internal/security"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func TestAuthMiddleware(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cfg      AuthConfig
		setup    func(r *http.Request)
		wantCode int
	}{
		{
			name:     "valid bearer",
			cfg:      AuthConfig{BearerToken: "secret-token"},
			setup:    func(r *http.Request) { r.Header.Set("Authorization", "Bearer secret-token") },
			wantCode: http.StatusOK,
		},
		{
			name:     "wrong bearer",
			cfg:      AuthConfig{BearerToken: "secret-token"},
			setup:    func(r *http.Request) { r.Header.Set("Authorization", "Bearer wrong-token") },
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "bearer without scheme",
			cfg:      AuthConfig{BearerToken: "secret-token"},
			setup:    func(r *http.Request) { r.Header.Set("Authorization", "secret-token") },
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "valid basic",
			cfg:      AuthConfig{BasicUser: "admin", BasicPass: "pass123"},
			setup:    func(r *http.Request) { r.SetBasicAuth("admin", "pass123") },
			wantCode: http.StatusOK,
		},
		{
			name:     "wrong basic password",
			cfg:      AuthConfig{BasicUser: "admin", BasicPass: "pass123"},
			setup:    func(r *http.Request) { r.SetBasicAuth("admin", "nope") },
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "basic accepted alongside bearer",
			cfg:      AuthConfig{BearerToken: "t", BasicUser: "admin", BasicPass: "pass123"},
			setup:    func(r *http.Request) { r.SetBasicAuth("admin", "pass123") },
			wantCode: http.StatusOK,
		},
		{
			name:     "no credentials",
			cfg:      AuthConfig{BearerToken: "secret-token"},
			setup:    func(*http.Request) {},
			wantCode: http.StatusUnauthorized,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			limiter := security.NewRateLimiter(100, time.Minute)
			handler := authMiddleware(tt.cfg, limiter, testLogger())(okHandler())

			req := httptest.NewRequest(http.MethodGet, "/status", nil)
			tt.setup(req)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantCode)
			}
		})
	}
}

func TestAuthMiddlewareRateLimit(t *testing.T) {
	t.Parallel()

	cfg := AuthConfig{BearerToken: "secret-token"}
	handler := authMiddleware(cfg, security.NewRateLimiter(1, time.Minute), testLogger())(okHandler())

	send := func(remote string) int {
		req := httptest.NewRequest(http.MethodGet, "/status", nil)
		req.RemoteAddr = remote
		req.Header.Set("Authorization", "Bearer wrong")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := send("10.0.0.1:1234"); code != http.StatusUnauthorized {
		t.Fatalf("first attempt = %d, want 401", code)
	}
	if code := send("10.0.0.1:5678"); code != http.StatusTooManyRequests {
		t.Errorf("second attempt = %d, want 429", code)
	}
	if code := send("10.0.0.2:1234"); code != http.StatusUnauthorized {
		t.Errorf("other client = %d, want 401", code)
	}
}

func TestClientAddr(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:4000"
	if got := clientAddr(req); got != "192.0.2.1" {
		t.Errorf("clientAddr = %q, want 192.0.2.1", got)
	}
	req.RemoteAddr = "pipe"
	if got := clientAddr(req); got != "pipe" {
		t.Errorf("clientAddr = %q, want pipe", got)
	}
}
