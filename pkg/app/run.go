// Package app provides the entry point shared by the tgram commands: load the
// configuration, build the logger, then run the configured modules.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/flemzord/tgram/internal/config"
	"github.com/flemzord/tgram/internal/core"
	"github.com/flemzord/tgram/internal/logging"
	"github.com/flemzord/tgram/internal/security"
)

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// LogLevel overrides logging.level from the file when non-empty.
	LogLevel string

	// Version is injected at build time via ldflags.
	Version string

	// Stderr receives the logs. Defaults to os.Stderr.
	Stderr io.Writer
}

// Run loads configuration, starts all modules, and blocks until ctx is
// done, a shutdown signal arrives or a module reports a fatal error.
func Run(ctx context.Context, params RunParams) error {
	application, logger, err := load(params)
	if err != nil {
		return err
	}
	logger.Info("tgram starting", "version", params.Version, "modules", len(application.Modules()))
	return application.Run(ctx)
}

// Check loads and validates the configuration and provisions every module
// without starting any. It returns the IDs of the modules that would run.
func Check(params RunParams) ([]core.ModuleID, error) {
	if params.Stderr == nil {
		params.Stderr = io.Discard
	}
	application, _, err := load(params)
	if err != nil {
		return nil, err
	}
	return application.Modules(), nil
}

func load(params RunParams) (*core.App, *slog.Logger, error) {
	cfgPath := params.ConfigPath
	if cfgPath == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return nil, nil, err
		}
		cfgPath = resolved
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	if params.LogLevel != "" {
		cfg.Logging.Level = params.LogLevel
	}
	if err := config.Validate(cfg); err != nil {
		return nil, nil, err
	}

	stderr := params.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	redactor := security.NewRedactor()
	logger, err := logging.New(cfg.Logging, stderr, redactor)
	if err != nil {
		return nil, nil, err
	}

	// Modules add their secrets to the store while provisioning.
	credStore := security.NewCredentialStore()
	appCtx := core.NewAppContext(logger).WithModuleConfigs(cfg.Modules)
	appCtx.RegisterService("security.credentials", credStore)

	application := core.NewApp(appCtx)
	if err := application.LoadModules(config.Resolve(cfg)); err != nil {
		return nil, nil, err
	}
	redactor.SyncCredentials(credStore)
	return application, logger, nil
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/tgram/config.yaml → ~/.config/tgram/config.yaml → ./tgram.yaml
func ResolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "tgram", "config.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "tgram", "config.yaml"))
	}

	candidates = append(candidates, "tgram.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}
