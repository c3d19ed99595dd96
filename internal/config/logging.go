package config

import "superlists/internal/logging"

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level" toml:"level"`           // debug, info, warn, error
	Format     string          `yaml:"format" toml:"format"`         // json, text
	Categories map[string]bool `yaml:"categories" toml:"categories"` // Per-category toggles
}

// Options converts the config into logging.Initialize options.
func (c *LoggingConfig) Options(verbose bool) logging.Options {
	level := c.Level
	if verbose {
		level = "debug"
	}
	return logging.Options{
		Level:      level,
		Format:     c.Format,
		Categories: c.Categories,
	}
}
