// Package logging builds the process-wide slog.Logger from the logging
// section of the configuration, with TGRAM_LOG_* environment overrides.
// Every logger it returns redacts secrets before they reach the output.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
	charmlog "github.com/charmbracelet/log"

	"github.com/flemzord/tgram/internal/security"
)

// EnvPrefix prefixes the environment variables that override Config.
const EnvPrefix = "TGRAM_LOG_"

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config is the logging section of the configuration file.
type Config struct {
	Level     string `yaml:"level" env:"LEVEL"`
	Format    string `yaml:"format" env:"FORMAT"`
	AddSource bool   `yaml:"add_source" env:"ADD_SOURCE"`
}

// ApplyEnv overlays TGRAM_LOG_LEVEL, TGRAM_LOG_FORMAT and
// TGRAM_LOG_ADD_SOURCE onto c. Unset variables leave c unchanged.
func (c *Config) ApplyEnv() error {
	return c.applyEnv(nil)
}

// applyEnv reads from environ instead of the process environment when it
// is non-nil.
func (c *Config) applyEnv(environ map[string]string) error {
	opts := env.Options{Prefix: EnvPrefix, Environment: environ}
	if err := env.ParseWithOptions(c, opts); err != nil {
		return fmt.Errorf("logging: environment: %w", err)
	}
	return nil
}

// Validate reports an unknown level or format. Empty values are allowed and
// mean info and text.
func (c Config) Validate() error {
	var errs []error
	if _, err := parseLevel(c.Level); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(strings.TrimSpace(c.Format)) {
	case "", FormatText, FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("logging: unsupported format %q", c.Format))
	}
	return errors.Join(errs...)
}

// New returns a logger writing to w. The text format renders through
// charmbracelet/log; json uses slog's JSON handler. Output is filtered by
// redactor when it is non-nil.
func New(cfg Config, w io.Writer, redactor *security.Redactor) (*slog.Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	level, _ := parseLevel(cfg.Level)

	var h slog.Handler
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case FormatJSON:
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level, AddSource: cfg.AddSource})
	default:
		h = charmlog.NewWithOptions(w, charmlog.Options{
			Level:           charmLevel(level),
			ReportTimestamp: true,
			ReportCaller:    cfg.AddSource,
			Formatter:       charmlog.TextFormatter,
		})
	}

	if redactor != nil {
		h = security.NewRedactingHandler(h, redactor)
	}
	return slog.New(h), nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("logging: unsupported level %q", s)
	}
}

func charmLevel(level slog.Level) charmlog.Level {
	switch {
	case level <= slog.LevelDebug:
		return charmlog.DebugLevel
	case level <= slog.LevelInfo:
		return charmlog.InfoLevel
	case level <= slog.LevelWarn:
		return charmlog.WarnLevel
	default:
		return charmlog.ErrorLevel
	}
}
