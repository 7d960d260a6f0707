// Package proxy provides proxy pool configuration.
package proxy

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Selection strategies.
const (
	StrategyRoundRobin    = "round_robin"
	StrategyLeastUsed     = "least_used"
	StrategyRandom        = "random"
	StrategyStickySession = "sticky_session"
)

// Default configuration values.
const (
	DefaultStrategy          = StrategyRoundRobin
	DefaultBlacklistAfter    = 10
	DefaultBlacklistDuration = 60 * time.Minute
)

// Config represents proxy pool settings.
type Config struct {
	// File is the proxy list path, one endpoint per line. Empty disables
	// proxying; every acquire returns the direct sentinel.
	File string `yaml:"file" mapstructure:"file"`
	// Strategy selects among eligible proxies.
	Strategy string `yaml:"strategy" mapstructure:"strategy"`
	// BlacklistAfter is the consecutive-failure count that blacklists.
	BlacklistAfter int `yaml:"blacklist_after" mapstructure:"blacklist_after"`
	// BlacklistDuration is how long a blacklisted proxy stays out.
	BlacklistDuration time.Duration `yaml:"blacklist_duration" mapstructure:"blacklist_duration"`
}

// LoadFromViper loads proxy configuration from Viper and environment.
func LoadFromViper(v *viper.Viper) *Config {
	cfg := &Config{
		File:              v.GetString("proxy.file"),
		Strategy:          DefaultStrategy,
		BlacklistAfter:    DefaultBlacklistAfter,
		BlacklistDuration: DefaultBlacklistDuration,
	}
	if val := os.Getenv("PROSPECT_PROXY_FILE"); val != "" {
		cfg.File = val
	}
	if v.IsSet("proxy.strategy") {
		cfg.Strategy = v.GetString("proxy.strategy")
	}
	if val := os.Getenv("PROSPECT_PROXY_STRATEGY"); val != "" {
		cfg.Strategy = val
	}
	if v.IsSet("proxy.blacklist_after") {
		cfg.BlacklistAfter = v.GetInt("proxy.blacklist_after")
	}
	if v.IsSet("proxy.blacklist_duration") {
		cfg.BlacklistDuration = v.GetDuration("proxy.blacklist_duration")
	}
	return cfg
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Strategy {
	case StrategyRoundRobin, StrategyLeastUsed, StrategyRandom, StrategyStickySession:
	default:
		return fmt.Errorf("unknown proxy strategy %q", c.Strategy)
	}
	if c.BlacklistAfter < 1 {
		return fmt.Errorf("blacklist_after must be at least 1, got %d", c.BlacklistAfter)
	}
	if c.BlacklistDuration <= 0 {
		return fmt.Errorf("blacklist_duration must be positive, got %s", c.BlacklistDuration)
	}
	return nil
}
