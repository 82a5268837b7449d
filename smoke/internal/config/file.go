// Package config handles sitesmoke configuration from YAML files.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultURL is the page smoke-tested when nothing else is configured.
const DefaultURL = "https://www.cloudbees.io/"

// Config is the top-level sitesmoke configuration.
type Config struct {
	URL           string         `yaml:"url"`
	Engine        string         `yaml:"engine"` // rod | playwright
	Extended      bool           `yaml:"extended"`
	SkipPreflight bool           `yaml:"skip_preflight"`
	Browser       BrowserConfig  `yaml:"browser"`
	Checks        ChecksConfig   `yaml:"checks"`
	Timeouts      TimeoutConfig  `yaml:"timeouts"`
	Artifacts     ArtifactConfig `yaml:"artifacts"`
	History       HistoryConfig  `yaml:"history"`
	Sinks         []SinkConfig   `yaml:"sinks"`
	Serve         ServeConfig    `yaml:"serve"`
}

// BrowserConfig controls the browser process.
type BrowserConfig struct {
	Remote            string        `yaml:"remote"` // CDP websocket URL (rod only)
	Mode              string        `yaml:"mode"`   // headless | headful
	Stealth           bool          `yaml:"stealth"`
	XvfbDisplay       string        `yaml:"xvfb_display"`
	ResourceBlocking  []string      `yaml:"resource_blocking"`
	UserAgent         string        `yaml:"user_agent"` // browser and preflight; empty keeps each default
	ViewportWidth     int           `yaml:"viewport_width"`
	ViewportHeight    int           `yaml:"viewport_height"`
	RecycleInterval   time.Duration `yaml:"recycle_interval"`
	InstallPlaywright bool          `yaml:"install_playwright"`
}

// ChecksConfig holds the selectors and patterns the checks use.
type ChecksConfig struct {
	TitlePattern string   `yaml:"title_pattern"`
	Navigation   []string `yaml:"navigation"` // ordered candidates
	Logo         string   `yaml:"logo"`
	Hero         string   `yaml:"hero"`
	Heading      string   `yaml:"heading"`
	MaxImages    int      `yaml:"max_images"`
}

// TimeoutConfig bounds the blocking operations of a run.
type TimeoutConfig struct {
	Navigation time.Duration `yaml:"navigation"`
	IdleWindow time.Duration `yaml:"idle_window"` // quiet period that counts as network idle
	Assert     time.Duration `yaml:"assert"`
	Poll       time.Duration `yaml:"poll"`
}

// ArtifactConfig places the screenshot.
type ArtifactConfig struct {
	Dir        string `yaml:"dir"`
	Screenshot string `yaml:"screenshot"`
}

// HistoryConfig enables the SQLite run history when Path is set.
type HistoryConfig struct {
	Path string `yaml:"path"`
	// Retention deletes runs older than this after each save. Zero keeps
	// everything.
	Retention time.Duration `yaml:"retention"`
}

// SinkConfig defines an output backend.
type SinkConfig struct {
	Type    string        `yaml:"type"`    // console | json | webhook
	URL     string        `yaml:"url"`     // for webhook
	Retries int           `yaml:"retries"` // webhook; default 3
	Backoff time.Duration `yaml:"backoff"` // webhook first retry delay; default 1s
}

// ServeConfig configures the HTTP API and MCP server.
type ServeConfig struct {
	Addr string `yaml:"addr"`
	// AllowPrivateTargets lets remote callers point runs at loopback and
	// private addresses.
	AllowPrivateTargets bool `yaml:"allow_private_targets"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.URL == "" {
		c.URL = DefaultURL
	}
	if c.Engine == "" {
		c.Engine = "rod"
	}
	if c.Browser.Mode == "" {
		c.Browser.Mode = "headless"
	}
	if c.Browser.XvfbDisplay == "" {
		c.Browser.XvfbDisplay = ":99"
	}
	if c.Browser.ViewportWidth <= 0 {
		c.Browser.ViewportWidth = 1280
	}
	if c.Browser.ViewportHeight <= 0 {
		c.Browser.ViewportHeight = 720
	}
	if c.Browser.RecycleInterval <= 0 {
		c.Browser.RecycleInterval = 4 * time.Hour
	}
	if c.Checks.TitlePattern == "" {
		c.Checks.TitlePattern = "(?i)CloudBees"
	}
	if len(c.Checks.Navigation) == 0 {
		c.Checks.Navigation = []string{
			"#navbar",
			".navbar",
			`nav[role="navigation"]`,
			"nav",
			`[role="navigation"]`,
		}
	}
	if c.Checks.Logo == "" {
		c.Checks.Logo = `img[alt*="CloudBees"], [aria-label*="CloudBees"], .logo`
	}
	if c.Checks.Hero == "" {
		c.Checks.Hero = `h1, .hero, [class*="hero"], [data-testid*="hero"]`
	}
	if c.Checks.Heading == "" {
		c.Checks.Heading = "h1"
	}
	if c.Checks.MaxImages <= 0 {
		c.Checks.MaxImages = 3
	}
	if c.Timeouts.Navigation <= 0 {
		c.Timeouts.Navigation = 30 * time.Second
	}
	if c.Timeouts.IdleWindow <= 0 {
		c.Timeouts.IdleWindow = 500 * time.Millisecond
	}
	if c.Timeouts.Assert <= 0 {
		c.Timeouts.Assert = 5 * time.Second
	}
	if c.Timeouts.Poll <= 0 {
		c.Timeouts.Poll = 100 * time.Millisecond
	}
	if c.Artifacts.Dir == "" {
		c.Artifacts.Dir = "test-results"
	}
	if c.Artifacts.Screenshot == "" {
		c.Artifacts.Screenshot = "cloudbees-homepage-smoke.png"
	}
	if c.Serve.Addr == "" {
		c.Serve.Addr = ":8086"
	}
}

// Validate rejects configurations a run cannot start with.
func (c *Config) Validate() error {
	u, err := url.Parse(c.URL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("config: invalid url %q", c.URL)
	}
	switch c.Engine {
	case "rod", "playwright":
	default:
		return fmt.Errorf("config: unknown engine %q", c.Engine)
	}
	switch c.Browser.Mode {
	case "headless", "headful":
	default:
		return fmt.Errorf("config: unknown browser mode %q", c.Browser.Mode)
	}
	if _, err := regexp.Compile(c.Checks.TitlePattern); err != nil {
		return fmt.Errorf("config: title_pattern: %w", err)
	}
	if c.History.Retention < 0 {
		return fmt.Errorf("config: negative history retention %s", c.History.Retention)
	}
	for _, s := range c.Sinks {
		switch s.Type {
		case "console", "json":
		case "webhook":
			if s.URL == "" {
				return fmt.Errorf("config: webhook sink without url")
			}
		default:
			return fmt.Errorf("config: unknown sink type %q", s.Type)
		}
	}
	return nil
}

// ScreenshotPath is where the run writes its screenshot.
func (c *Config) ScreenshotPath() string {
	return filepath.Join(c.Artifacts.Dir, c.Artifacts.Screenshot)
}

// TitleRegexp compiles the title pattern. Call Validate first.
func (c *Config) TitleRegexp() *regexp.Regexp {
	return regexp.MustCompile(c.Checks.TitlePattern)
}
