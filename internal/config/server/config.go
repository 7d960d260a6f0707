// Package server provides ops HTTP server configuration.
package server

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	DefaultAddress      = ":8060"
	DefaultReadTimeout  = 15 * time.Second
	DefaultWriteTimeout = 15 * time.Second
	DefaultIdleTimeout  = 60 * time.Second
)

// Config represents the supervisor HTTP surface settings.
type Config struct {
	// Enabled turns the ops server on. Off by default; the pool runs
	// headless without it.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Address is the listen address.
	Address string `yaml:"address" mapstructure:"address"`
	// ReadTimeout bounds request reads.
	ReadTimeout time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	// WriteTimeout bounds response writes.
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	// IdleTimeout bounds keep-alive connections.
	IdleTimeout time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

// LoadFromViper loads server configuration from Viper.
func LoadFromViper(v *viper.Viper) *Config {
	cfg := &Config{
		Enabled:      v.GetBool("server.enabled"),
		Address:      DefaultAddress,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
		IdleTimeout:  DefaultIdleTimeout,
	}
	if v.IsSet("server.address") {
		cfg.Address = v.GetString("server.address")
	}
	if v.IsSet("server.read_timeout") {
		cfg.ReadTimeout = v.GetDuration("server.read_timeout")
	}
	if v.IsSet("server.write_timeout") {
		cfg.WriteTimeout = v.GetDuration("server.write_timeout")
	}
	if v.IsSet("server.idle_timeout") {
		cfg.IdleTimeout = v.GetDuration("server.idle_timeout")
	}
	return cfg
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Address == "" {
		return errors.New("server address must be specified when enabled")
	}
	if c.ReadTimeout <= 0 || c.WriteTimeout <= 0 {
		return errors.New("server timeouts must be positive")
	}
	return nil
}
