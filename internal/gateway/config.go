package gateway

import "time"

// Config holds the HTTP gateway configuration.
type Config struct {
	Bind            string                      `yaml:"bind"`
	Auth            AuthConfig                  `yaml:"auth"`
	Webhooks        map[string]WebhookSourceCfg `yaml:"webhooks"`
	EventBuffer     int                         `yaml:"event_buffer"`
	ReadTimeout     time.Duration               `yaml:"read_timeout"`
	WriteTimeout    time.Duration               `yaml:"write_timeout"`
	ShutdownTimeout time.Duration               `yaml:"shutdown_timeout"`
}

func (c *Config) defaults() {
	if c.Bind == "" {
		c.Bind = "127.0.0.1:8080"
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = 64
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
	if c.Auth.AttemptsPerMinute == 0 {
		c.Auth.AttemptsPerMinute = 30
	}
}

// AuthConfig protects /status and /events. Without credentials those routes
// are not mounted.
type AuthConfig struct {
	BearerToken string `yaml:"bearer_token"`
	BasicUser   string `yaml:"basic_user"`
	BasicPass   string `yaml:"basic_pass"`

	// AttemptsPerMinute limits requests to protected routes per client
	// address. Negative disables the limit.
	AttemptsPerMinute int `yaml:"attempts_per_minute"`
}

// IsConfigured reports whether any credential is set.
func (a AuthConfig) IsConfigured() bool {
	return a.BearerToken != "" || (a.BasicUser != "" && a.BasicPass != "")
}

// WebhookSourceCfg configures one /webhooks/{source} endpoint. Sources with
// a secret require an X-Signature-256 HMAC header.
type WebhookSourceCfg struct {
	Secret string `yaml:"secret"`
}
