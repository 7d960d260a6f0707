// Package filter provides listing filter configuration.
package filter

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	DefaultMinScore           = 50
	DefaultAllowlistPath      = "configs/category_allowlist.txt"
	DefaultBlocklistPath      = "configs/category_blocklist.txt"
	DefaultAntiKeywordsPath   = "configs/anti_keywords.txt"
	DefaultPositiveHintsPath  = "configs/positive_hints.txt"
	DefaultDenyDomainsPath    = "configs/deny_domains.txt"
	DefaultEquipmentOnlyLabel = "Equipment & Services"
)

// Config represents filter rule settings. The five list files are data,
// never code; they are loaded once at startup.
type Config struct {
	// MinScore is the acceptance threshold after scoring.
	MinScore int `yaml:"min_score" mapstructure:"min_score"`
	// IncludeSponsored admits sponsored cards.
	IncludeSponsored bool `yaml:"include_sponsored" mapstructure:"include_sponsored"`
	// AllowlistPath points at the category allowlist file.
	AllowlistPath string `yaml:"allowlist_path" mapstructure:"allowlist_path"`
	// BlocklistPath points at the category blocklist file.
	BlocklistPath string `yaml:"blocklist_path" mapstructure:"blocklist_path"`
	// AntiKeywordsPath points at the business-name anti-keyword file.
	AntiKeywordsPath string `yaml:"anti_keywords_path" mapstructure:"anti_keywords_path"`
	// PositiveHintsPath points at the description/name hint file.
	PositiveHintsPath string `yaml:"positive_hints_path" mapstructure:"positive_hints_path"`
	// DenyDomainsPath points at the website deny-domain file.
	DenyDomainsPath string `yaml:"deny_domains_path" mapstructure:"deny_domains_path"`
	// EquipmentOnlyLabel is the distinguished retail-leaning category tag.
	EquipmentOnlyLabel string `yaml:"equipment_only_label" mapstructure:"equipment_only_label"`
}

// LoadFromViper loads filter configuration from Viper and environment.
func LoadFromViper(v *viper.Viper) *Config {
	cfg := &Config{
		MinScore:           DefaultMinScore,
		IncludeSponsored:   v.GetBool("filter.include_sponsored"),
		AllowlistPath:      getPath("PROSPECT_ALLOWLIST_PATH", "filter.allowlist_path", DefaultAllowlistPath, v),
		BlocklistPath:      getPath("PROSPECT_BLOCKLIST_PATH", "filter.blocklist_path", DefaultBlocklistPath, v),
		AntiKeywordsPath:   getPath("PROSPECT_ANTI_KEYWORDS_PATH", "filter.anti_keywords_path", DefaultAntiKeywordsPath, v),
		PositiveHintsPath:  getPath("PROSPECT_POSITIVE_HINTS_PATH", "filter.positive_hints_path", DefaultPositiveHintsPath, v),
		DenyDomainsPath:    getPath("PROSPECT_DENY_DOMAINS_PATH", "filter.deny_domains_path", DefaultDenyDomainsPath, v),
		EquipmentOnlyLabel: DefaultEquipmentOnlyLabel,
	}
	if v.IsSet("filter.min_score") {
		cfg.MinScore = v.GetInt("filter.min_score")
	}
	if v.IsSet("filter.equipment_only_label") {
		cfg.EquipmentOnlyLabel = v.GetString("filter.equipment_only_label")
	}
	return cfg
}

func getPath(envKey, viperKey, defaultValue string, v *viper.Viper) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if val := v.GetString(viperKey); val != "" {
		return val
	}
	return defaultValue
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.MinScore < 0 || c.MinScore > 100 {
		return fmt.Errorf("min_score must be in [0, 100], got %d", c.MinScore)
	}
	if c.AllowlistPath == "" {
		return errors.New("allowlist_path must be specified")
	}
	if c.BlocklistPath == "" {
		return errors.New("blocklist_path must be specified")
	}
	if c.AntiKeywordsPath == "" {
		return errors.New("anti_keywords_path must be specified")
	}
	if c.PositiveHintsPath == "" {
		return errors.New("positive_hints_path must be specified")
	}
	if c.DenyDomainsPath == "" {
		return errors.New("deny_domains_path must be specified")
	}
	return nil
}
