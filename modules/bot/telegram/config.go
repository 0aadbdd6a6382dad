package telegram

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
)

// Delivery modes.
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

var (
	// tokenPattern matches the Bot API token format: <digits>:<alphanum+dash>.
	tokenPattern = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)
	// secretPattern matches what setWebhook accepts as secret_token.
	secretPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,256}$`)
)

// Config holds the bot.telegram configuration.
type Config struct {
	Token          string   `yaml:"token"`
	Mode           string   `yaml:"mode"`
	APIURL         string   `yaml:"api_url"`
	PollTimeout    int      `yaml:"poll_timeout"`
	Limit          int      `yaml:"limit"`
	AllowedUpdates []string `yaml:"allowed_updates"`
	// SkipPending drops updates queued while the bot was offline.
	// Defaults to true.
	SkipPending   *bool      `yaml:"skip_pending"`
	OwnerIDs      []int64    `yaml:"owner_ids"`
	WebhookURL    string     `yaml:"webhook_url"`
	WebhookSecret string     `yaml:"webhook_secret"`
	Help          HelpConfig `yaml:"help"`
}

// HelpConfig configures the built-in help command.
type HelpConfig struct {
	Description string `yaml:"description"`
	NoCategory  string `yaml:"no_category"`
	Disable     bool   `yaml:"disable"`
}

func (c *Config) defaults() {
	if c.Mode == "" {
		c.Mode = ModePolling
	}
	if c.PollTimeout == 0 {
		c.PollTimeout = 30
	}
	if c.SkipPending == nil {
		skip := true
		c.SkipPending = &skip
	}
}

func (c *Config) validate() error {
	var errs []error
	switch {
	case c.Token == "":
		errs = append(errs, errors.New("token is required"))
	case !tokenPattern.MatchString(c.Token):
		errs = append(errs, errors.New("token format invalid (expected <bot_id>:<hash>)"))
	}

	switch c.Mode {
	case ModePolling:
	case ModeWebhook:
		if c.WebhookURL == "" {
			errs = append(errs, errors.New(`webhook_url is required when mode is "webhook"`))
		} else if u, err := url.Parse(c.WebhookURL); err != nil || u.Scheme != "https" || u.Host == "" {
			errs = append(errs, fmt.Errorf("webhook_url must be an https URL, got %q", c.WebhookURL))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid mode %q (must be %q or %q)", c.Mode, ModePolling, ModeWebhook))
	}

	if c.WebhookSecret != "" && !secretPattern.MatchString(c.WebhookSecret) {
		errs = append(errs, errors.New("webhook_secret must be 1-256 characters of A-Z, a-z, 0-9, _ and -"))
	}
	if c.APIURL != "" {
		u, err := url.Parse(c.APIURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, fmt.Errorf("api_url must be a valid http/https URL, got %q", c.APIURL))
		}
	}
	if c.PollTimeout < 0 || c.PollTimeout > 50 {
		errs = append(errs, fmt.Errorf("poll_timeout must be 0-50, got %d", c.PollTimeout))
	}
	if c.Limit < 0 || c.Limit > 100 {
		errs = append(errs, fmt.Errorf("limit must be 0-100, got %d", c.Limit))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("telegram: invalid config: %w", err)
	}
	return nil
}
