// Package config loads the tgram YAML configuration, expands ${VAR}
// references from the environment and checks its structure.
package config

import (
	"gopkg.in/yaml.v3"

	"github.com/flemzord/tgram/internal/logging"
)

// Config is the top-level configuration file.
type Config struct {
	// Version is the file format version. Only "1" exists.
	Version string `yaml:"version"`

	// Logging configures the root logger.
	Logging logging.Config `yaml:"logging"`

	// Modules maps module IDs (e.g. "bot.telegram") to their raw config.
	Modules map[string]yaml.Node `yaml:"modules"`
}
