// Package fetch provides fetcher configuration management.
package fetch

import (
	"errors"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	DefaultRequestTimeout       = 45 * time.Second
	DefaultSessionBreakEvery    = 50
	DefaultContextRotationEvery = 20
	DefaultMaxBodySize          = 10 * 1024 * 1024
)

// Config represents fetcher settings shared by both fetch modes.
type Config struct {
	// UseBrowser prefers the headless browser mode over plain HTTP.
	UseBrowser bool `yaml:"use_browser" mapstructure:"use_browser"`
	// RequestTimeout caps one page fetch end to end.
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
	// SessionBreakEvery is the nominal request count between long pauses.
	// The effective count is re-randomized to 45-60 per session.
	SessionBreakEvery int `yaml:"session_break_every" mapstructure:"session_break_every"`
	// ContextRotationEvery is the nominal target count between browser
	// context rebuilds. The effective count is randomized to 15-25.
	ContextRotationEvery int `yaml:"context_rotation_every" mapstructure:"context_rotation_every"`
	// MaxBodySize caps response bodies read into memory.
	MaxBodySize int `yaml:"max_body_size" mapstructure:"max_body_size"`
	// HumanizeSeed seeds the pacing PRNG. Zero picks a random seed.
	HumanizeSeed int64 `yaml:"humanize_seed" mapstructure:"humanize_seed"`
	// BrowserExecPath overrides the Chrome/Chromium binary location.
	BrowserExecPath string `yaml:"browser_exec_path" mapstructure:"browser_exec_path"`
}

// LoadFromViper loads fetcher configuration from Viper and environment.
func LoadFromViper(v *viper.Viper) *Config {
	cfg := &Config{
		UseBrowser:           v.GetBool("fetch.use_browser"),
		RequestTimeout:       DefaultRequestTimeout,
		SessionBreakEvery:    DefaultSessionBreakEvery,
		ContextRotationEvery: DefaultContextRotationEvery,
		MaxBodySize:          DefaultMaxBodySize,
		HumanizeSeed:         v.GetInt64("fetch.humanize_seed"),
		BrowserExecPath:      v.GetString("fetch.browser_exec_path"),
	}
	if v.IsSet("fetch.request_timeout") {
		cfg.RequestTimeout = v.GetDuration("fetch.request_timeout")
	}
	if v.IsSet("fetch.session_break_every") {
		cfg.SessionBreakEvery = v.GetInt("fetch.session_break_every")
	}
	if v.IsSet("fetch.context_rotation_every") {
		cfg.ContextRotationEvery = v.GetInt("fetch.context_rotation_every")
	}
	if v.IsSet("fetch.max_body_size") {
		cfg.MaxBodySize = v.GetInt("fetch.max_body_size")
	}
	if val := os.Getenv("PROSPECT_USE_BROWSER"); val == "true" || val == "1" {
		cfg.UseBrowser = true
	}
	if path := os.Getenv("PROSPECT_BROWSER_EXEC_PATH"); path != "" {
		cfg.BrowserExecPath = path
	}
	return cfg
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.RequestTimeout <= 0 {
		return errors.New("request_timeout must be positive")
	}
	if c.SessionBreakEvery < 1 {
		return errors.New("session_break_every must be at least 1")
	}
	if c.ContextRotationEvery < 1 {
		return errors.New("context_rotation_every must be at least 1")
	}
	if c.MaxBodySize < 1024 {
		return errors.New("max_body_size too small")
	}
	return nil
}
