package smoke

import (
	"github.com/hazyhaar/sitesmoke/smoke/internal/config"
)

// DefaultURL is the page smoke-tested when nothing else is configured.
const DefaultURL = config.DefaultURL

// Config is the top-level sitesmoke configuration. Re-exported from internal.
type Config = config.Config

// BrowserConfig controls the browser process.
type BrowserConfig = config.BrowserConfig

// ChecksConfig holds selectors and patterns.
type ChecksConfig = config.ChecksConfig

// TimeoutConfig bounds navigation and assertions.
type TimeoutConfig = config.TimeoutConfig

// SinkConfig defines an output backend.
type SinkConfig = config.SinkConfig

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	return config.Default()
}

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}
