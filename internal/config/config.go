// Package config aggregates the per-area configuration packages behind a
// single interface. Values come from the YAML config file, PROSPECT_*
// environment variables, and defaults, in that order of precedence.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	dbconfig "github.com/jonesrussell/goprospect/internal/config/database"
	esconfig "github.com/jonesrussell/goprospect/internal/config/elasticsearch"
	fetchconfig "github.com/jonesrussell/goprospect/internal/config/fetch"
	filterconfig "github.com/jonesrussell/goprospect/internal/config/filter"
	limiterconfig "github.com/jonesrussell/goprospect/internal/config/limiter"
	poolconfig "github.com/jonesrussell/goprospect/internal/config/pool"
	proxyconfig "github.com/jonesrussell/goprospect/internal/config/proxy"
	serverconfig "github.com/jonesrussell/goprospect/internal/config/server"
)

// Interface defines the configuration surface used across the application.
type Interface interface {
	// GetDatabaseConfig returns the database configuration.
	GetDatabaseConfig() *dbconfig.Config
	// GetPoolConfig returns the worker pool configuration.
	GetPoolConfig() *poolconfig.Config
	// GetFetchConfig returns the fetcher configuration.
	GetFetchConfig() *fetchconfig.Config
	// GetLimiterConfig returns the adaptive limiter configuration.
	GetLimiterConfig() *limiterconfig.Config
	// GetFilterConfig returns the filter configuration.
	GetFilterConfig() *filterconfig.Config
	// GetProxyConfig returns the proxy pool configuration.
	GetProxyConfig() *proxyconfig.Config
	// GetServerConfig returns the ops server configuration.
	GetServerConfig() *serverconfig.Config
	// GetElasticsearchConfig returns the mirror index configuration.
	GetElasticsearchConfig() *esconfig.Config
	// Validate validates every area.
	Validate() error
}

// Ensure Config implements Interface.
var _ Interface = (*Config)(nil)

// Config bundles all area configurations.
type Config struct {
	Database      *dbconfig.Config      `yaml:"database"`
	Pool          *poolconfig.Config    `yaml:"pool"`
	Fetch         *fetchconfig.Config   `yaml:"fetch"`
	Limiter       *limiterconfig.Config `yaml:"limiter"`
	Filter        *filterconfig.Config  `yaml:"filter"`
	Proxy         *proxyconfig.Config   `yaml:"proxy"`
	Server        *serverconfig.Config  `yaml:"server"`
	Elasticsearch *esconfig.Config      `yaml:"elasticsearch"`
}

// Load assembles the configuration from the global viper instance.
func Load() *Config {
	return LoadFrom(viper.GetViper())
}

// LoadFrom assembles the configuration from a specific viper instance.
func LoadFrom(v *viper.Viper) *Config {
	return &Config{
		Database:      dbconfig.LoadFromViper(v),
		Pool:          poolconfig.LoadFromViper(v),
		Fetch:         fetchconfig.LoadFromViper(v),
		Limiter:       limiterconfig.LoadFromViper(v),
		Filter:        filterconfig.LoadFromViper(v),
		Proxy:         proxyconfig.LoadFromViper(v),
		Server:        serverconfig.LoadFromViper(v),
		Elasticsearch: esconfig.LoadFromViper(v),
	}
}

// GetDatabaseConfig returns the database configuration.
func (c *Config) GetDatabaseConfig() *dbconfig.Config { return c.Database }

// GetPoolConfig returns the worker pool configuration.
func (c *Config) GetPoolConfig() *poolconfig.Config { return c.Pool }

// GetFetchConfig returns the fetcher configuration.
func (c *Config) GetFetchConfig() *fetchconfig.Config { return c.Fetch }

// GetLimiterConfig returns the adaptive limiter configuration.
func (c *Config) GetLimiterConfig() *limiterconfig.Config { return c.Limiter }

// GetFilterConfig returns the filter configuration.
func (c *Config) GetFilterConfig() *filterconfig.Config { return c.Filter }

// GetProxyConfig returns the proxy pool configuration.
func (c *Config) GetProxyConfig() *proxyconfig.Config { return c.Proxy }

// GetServerConfig returns the ops server configuration.
func (c *Config) GetServerConfig() *serverconfig.Config { return c.Server }

// GetElasticsearchConfig returns the mirror index configuration.
func (c *Config) GetElasticsearchConfig() *esconfig.Config { return c.Elasticsearch }

// Validate validates every configuration area. Invalid configuration is
// fatal at startup; workers never run with a partially valid config.
func (c *Config) Validate() error {
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Pool.Validate(); err != nil {
		return fmt.Errorf("pool: %w", err)
	}
	if err := c.Fetch.Validate(); err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	if err := c.Limiter.Validate(); err != nil {
		return fmt.Errorf("limiter: %w", err)
	}
	if err := c.Filter.Validate(); err != nil {
		return fmt.Errorf("filter: %w", err)
	}
	if err := c.Proxy.Validate(); err != nil {
		return fmt.Errorf("proxy: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Elasticsearch.Validate(); err != nil {
		return fmt.Errorf("elasticsearch: %w", err)
	}
	return nil
}
