// Package elasticsearch provides configuration for the optional
// accepted-company mirror index.
package elasticsearch

import (
	"errors"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	DefaultAddress   = "http://127.0.0.1:9200"
	DefaultIndexName = "goprospect-companies"
)

// Config represents Elasticsearch mirror settings. The mirror is best
// effort; indexing failures never fail a page.
type Config struct {
	// Enabled turns the mirror on.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Addresses lists cluster endpoints.
	Addresses []string `yaml:"addresses" mapstructure:"addresses"`
	// Username and Password authenticate basic auth clusters.
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	// APIKey authenticates API-key clusters; wins over basic auth.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
	// IndexName receives accepted company documents.
	IndexName string `yaml:"index_name" mapstructure:"index_name"`
	// InsecureSkipVerify disables TLS verification (development only).
	InsecureSkipVerify bool `yaml:"insecure_skip_verify" mapstructure:"insecure_skip_verify"`
}

// LoadFromViper loads Elasticsearch configuration from Viper and environment.
func LoadFromViper(v *viper.Viper) *Config {
	cfg := &Config{
		Enabled:            v.GetBool("elasticsearch.enabled"),
		Addresses:          []string{DefaultAddress},
		Username:           v.GetString("elasticsearch.username"),
		Password:           v.GetString("elasticsearch.password"),
		APIKey:             v.GetString("elasticsearch.api_key"),
		IndexName:          DefaultIndexName,
		InsecureSkipVerify: v.GetBool("elasticsearch.insecure_skip_verify"),
	}
	if v.IsSet("elasticsearch.addresses") {
		if addrs := v.GetStringSlice("elasticsearch.addresses"); len(addrs) > 0 {
			cfg.Addresses = addrs
		}
	}
	if val := os.Getenv("ELASTICSEARCH_HOSTS"); val != "" {
		cfg.Addresses = splitAddresses(val)
	}
	if val := os.Getenv("ELASTICSEARCH_API_KEY"); val != "" {
		cfg.APIKey = val
	}
	if val := os.Getenv("ELASTIC_PASSWORD"); val != "" {
		cfg.Password = val
	}
	if v.IsSet("elasticsearch.index_name") {
		cfg.IndexName = v.GetString("elasticsearch.index_name")
	}
	return cfg
}

func splitAddresses(raw string) []string {
	parts := strings.Split(raw, ",")
	addrs := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			addrs = append(addrs, p)
		}
	}
	return addrs
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if len(c.Addresses) == 0 {
		return errors.New("elasticsearch addresses must be specified when enabled")
	}
	if c.IndexName == "" {
		return errors.New("elasticsearch index_name must be specified when enabled")
	}
	return nil
}
