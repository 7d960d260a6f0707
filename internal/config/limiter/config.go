// Package limiter provides adaptive rate limiter configuration.
package limiter

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	DefaultBaseDelay        = 5 * time.Second
	DefaultMinDelay         = 2 * time.Second
	DefaultMaxDelay         = 30 * time.Second
	DefaultErrorThreshold   = 0.20
	DefaultCaptchaThreshold = 0.05
	DefaultWindowSize       = 100
)

// Config represents adaptive delay settings for the health monitor.
type Config struct {
	// BaseDelay is the delay a healthy run converges to.
	BaseDelay time.Duration `yaml:"base_delay" mapstructure:"base_delay"`
	// MinDelay bounds decay from below.
	MinDelay time.Duration `yaml:"min_delay" mapstructure:"min_delay"`
	// MaxDelay bounds growth from above.
	MaxDelay time.Duration `yaml:"max_delay" mapstructure:"max_delay"`
	// ErrorThreshold is the recent failure rate that triggers growth.
	ErrorThreshold float64 `yaml:"error_threshold" mapstructure:"error_threshold"`
	// CaptchaThreshold is the recent captcha rate that triggers growth.
	CaptchaThreshold float64 `yaml:"captcha_threshold" mapstructure:"captcha_threshold"`
	// WindowSize is the ring buffer length for recent outcomes.
	WindowSize int `yaml:"window_size" mapstructure:"window_size"`
}

// LoadFromViper loads limiter configuration from Viper.
func LoadFromViper(v *viper.Viper) *Config {
	cfg := &Config{
		BaseDelay:        DefaultBaseDelay,
		MinDelay:         DefaultMinDelay,
		MaxDelay:         DefaultMaxDelay,
		ErrorThreshold:   DefaultErrorThreshold,
		CaptchaThreshold: DefaultCaptchaThreshold,
		WindowSize:       DefaultWindowSize,
	}
	if v.IsSet("limiter.base_delay") {
		cfg.BaseDelay = v.GetDuration("limiter.base_delay")
	}
	if v.IsSet("limiter.min_delay") {
		cfg.MinDelay = v.GetDuration("limiter.min_delay")
	}
	if v.IsSet("limiter.max_delay") {
		cfg.MaxDelay = v.GetDuration("limiter.max_delay")
	}
	if v.IsSet("limiter.error_threshold") {
		cfg.ErrorThreshold = v.GetFloat64("limiter.error_threshold")
	}
	if v.IsSet("limiter.captcha_threshold") {
		cfg.CaptchaThreshold = v.GetFloat64("limiter.captcha_threshold")
	}
	if v.IsSet("limiter.window_size") {
		cfg.WindowSize = v.GetInt("limiter.window_size")
	}
	return cfg
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.MinDelay <= 0 || c.BaseDelay <= 0 || c.MaxDelay <= 0 {
		return errors.New("delays must be positive")
	}
	if c.MinDelay > c.BaseDelay || c.BaseDelay > c.MaxDelay {
		return errors.New("delays must satisfy min <= base <= max")
	}
	if c.ErrorThreshold <= 0 || c.ErrorThreshold >= 1 {
		return errors.New("error_threshold must be in (0, 1)")
	}
	if c.CaptchaThreshold <= 0 || c.CaptchaThreshold >= 1 {
		return errors.New("captcha_threshold must be in (0, 1)")
	}
	if c.WindowSize < 10 {
		return errors.New("window_size must be at least 10")
	}
	return nil
}
