package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/flemzord/tgram/internal/core"
)

// Validate checks the version, the logging section and that every module
// named under modules is registered. All problems are reported together.
func Validate(cfg *Config) error {
	var errs []error

	switch cfg.Version {
	case "1":
	case "":
		errs = append(errs, errors.New("config: version field is required"))
	default:
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if err := cfg.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("config: %w", err))
	}

	if len(cfg.Modules) == 0 {
		errs = append(errs, errors.New("config: at least one module must be configured"))
	}
	for _, id := range Resolve(cfg) {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
		}
	}

	return errors.Join(errs...)
}

// Resolve returns the configured module IDs in load order: sorted, so the
// order does not depend on map iteration.
func Resolve(cfg *Config) []string {
	ids := make([]string, 0, len(cfg.Modules))
	for id := range cfg.Modules {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
