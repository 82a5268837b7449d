package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hazyhaar/sitesmoke/smoke"
)

// bindGlobalFlags declares the flags every command shares and binds them
// to viper with the SMOKE_ env prefix.
func bindGlobalFlags(root *cobra.Command) {
	f := root.PersistentFlags()
	f.String("config", "", "path to sitesmoke.yaml")
	f.String("url", "", "page to test (default "+smoke.DefaultURL+")")
	f.String("engine", "", "browser engine: rod | playwright")
	f.Bool("extended", false, "add the accessibility spot-checks")
	f.Bool("skip-preflight", false, "skip the plain HTTP GET before the browser")
	f.Bool("headful", false, "run Chrome with a window (Xvfb)")
	f.String("remote", "", "CDP websocket URL of an existing Chrome")
	f.String("results-dir", "", "directory for the screenshot (default test-results)")
	f.String("history", "", "SQLite history path; empty disables history")
	f.String("log-level", "info", "log level: debug, info, warn, error")
}

// loadConfig resolves the configuration: YAML file (or defaults), then
// SMOKE_* environment variables, then explicit flags.
func loadConfig(cmd *cobra.Command) (*smoke.Config, *viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("SMOKE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, nil, err
	}

	var cfg *smoke.Config
	if path := v.GetString("config"); path != "" {
		c, err := smoke.LoadConfigFile(path)
		if err != nil {
			return nil, nil, err
		}
		cfg = c
	} else {
		cfg = smoke.DefaultConfig()
	}

	if s := v.GetString("url"); s != "" {
		cfg.URL = s
	}
	if s := v.GetString("engine"); s != "" {
		cfg.Engine = s
	}
	if v.GetBool("extended") {
		cfg.Extended = true
	}
	if v.GetBool("skip-preflight") {
		cfg.SkipPreflight = true
	}
	if v.GetBool("headful") {
		cfg.Browser.Mode = "headful"
	}
	if s := v.GetString("remote"); s != "" {
		cfg.Browser.Remote = s
	}
	if s := v.GetString("results-dir"); s != "" {
		cfg.Artifacts.Dir = s
	}
	if s := v.GetString("history"); s != "" {
		cfg.History.Path = s
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, v, nil
}
