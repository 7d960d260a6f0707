// Package pool provides worker pool configuration management.
package pool

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	DefaultWorkers             = 5
	DefaultMaxPerState         = 5
	DefaultMaxAttempts         = 3
	DefaultOrphanTimeout       = 60 * time.Minute
	DefaultOrphanCheckInterval = 10 * time.Minute
	DefaultIdleBackoff         = 15 * time.Second
	DefaultStaggerDelay        = 2 * time.Second
	DefaultStopTimeout         = 45 * time.Second
	DefaultWALDir              = "wal"

	MinWorkers = 1
	MaxWorkers = 50
)

// Config represents worker pool and scheduling settings.
type Config struct {
	// Workers is the number of concurrent workers.
	Workers int `yaml:"workers" mapstructure:"workers"`
	// States lists the state codes sharded across workers.
	States []string `yaml:"states" mapstructure:"states"`
	// MaxPerState caps concurrent IN_PROGRESS targets per state.
	MaxPerState int `yaml:"max_per_state" mapstructure:"max_per_state"`
	// MaxAttempts is the retry budget per target.
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts"`
	// MaxPagesOverride, when > 0, overrides each target's page budget.
	MaxPagesOverride int `yaml:"max_pages_override" mapstructure:"max_pages_override"`
	// OrphanTimeout is the heartbeat staleness cutoff for recovery.
	OrphanTimeout time.Duration `yaml:"orphan_timeout" mapstructure:"orphan_timeout"`
	// OrphanCheckInterval schedules periodic recovery sweeps.
	OrphanCheckInterval time.Duration `yaml:"orphan_check_interval" mapstructure:"orphan_check_interval"`
	// IdleBackoff is how long a worker sleeps when no target is claimable.
	IdleBackoff time.Duration `yaml:"idle_backoff" mapstructure:"idle_backoff"`
	// StaggerDelay spaces out worker starts.
	StaggerDelay time.Duration `yaml:"stagger_delay" mapstructure:"stagger_delay"`
	// StopTimeout bounds the graceful join before force-terminating.
	StopTimeout time.Duration `yaml:"stop_timeout" mapstructure:"stop_timeout"`
	// WALDir is where per-worker write-ahead logs are written.
	WALDir string `yaml:"wal_dir" mapstructure:"wal_dir"`
	// SummaryPath, when set, receives the run summary JSON on shutdown.
	SummaryPath string `yaml:"summary_path" mapstructure:"summary_path"`
}

// LoadFromViper loads pool configuration from Viper and environment.
func LoadFromViper(v *viper.Viper) *Config {
	return &Config{
		Workers:             getInt("PROSPECT_WORKERS", "pool.workers", DefaultWorkers, v),
		States:              getStates("PROSPECT_STATES", "pool.states", v),
		MaxPerState:         getInt("PROSPECT_MAX_PER_STATE", "pool.max_per_state", DefaultMaxPerState, v),
		MaxAttempts:         getInt("PROSPECT_MAX_ATTEMPTS", "pool.max_attempts", DefaultMaxAttempts, v),
		MaxPagesOverride:    getInt("PROSPECT_MAX_PAGES_OVERRIDE", "pool.max_pages_override", 0, v),
		OrphanTimeout:       getOrphanTimeout(v),
		OrphanCheckInterval: getDuration("pool.orphan_check_interval", DefaultOrphanCheckInterval, v),
		IdleBackoff:         getDuration("pool.idle_backoff", DefaultIdleBackoff, v),
		StaggerDelay:        getDuration("pool.stagger_delay", DefaultStaggerDelay, v),
		StopTimeout:         getDuration("pool.stop_timeout", DefaultStopTimeout, v),
		WALDir:              getString("PROSPECT_WAL_DIR", "pool.wal_dir", DefaultWALDir, v),
		SummaryPath:         getString("PROSPECT_SUMMARY_PATH", "pool.summary_path", "", v),
	}
}

// getOrphanTimeout honors the documented orphan_timeout_minutes key as
// well as a plain duration under pool.orphan_timeout.
func getOrphanTimeout(v *viper.Viper) time.Duration {
	if minutes := v.GetInt("pool.orphan_timeout_minutes"); minutes > 0 {
		return time.Duration(minutes) * time.Minute
	}
	return getDuration("pool.orphan_timeout", DefaultOrphanTimeout, v)
}

func getString(envKey, viperKey, defaultValue string, v *viper.Viper) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if val := v.GetString(viperKey); val != "" {
		return val
	}
	return defaultValue
}

func getInt(envKey, viperKey string, defaultValue int, v *viper.Viper) int {
	if val := os.Getenv(envKey); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	if v.IsSet(viperKey) {
		return v.GetInt(viperKey)
	}
	return defaultValue
}

func getDuration(viperKey string, defaultValue time.Duration, v *viper.Viper) time.Duration {
	if v.IsSet(viperKey) {
		if d := v.GetDuration(viperKey); d > 0 {
			return d
		}
	}
	return defaultValue
}

// getStates reads state codes from env (comma separated) or Viper,
// normalizing to upper case.
func getStates(envKey, viperKey string, v *viper.Viper) []string {
	var raw []string
	if val := os.Getenv(envKey); val != "" {
		raw = strings.Split(val, ",")
	} else {
		raw = v.GetStringSlice(viperKey)
	}

	states := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			states = append(states, s)
		}
	}
	return states
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Workers < MinWorkers {
		return errors.New("workers must be at least 1")
	}
	if c.Workers > MaxWorkers {
		return fmt.Errorf("workers cannot exceed %d", MaxWorkers)
	}
	if len(c.States) == 0 {
		return errors.New("at least one state code must be configured")
	}
	if c.MaxPerState < 1 {
		return errors.New("max_per_state must be at least 1")
	}
	if c.MaxAttempts < 1 {
		return errors.New("max_attempts must be at least 1")
	}
	if c.OrphanTimeout <= 0 {
		return errors.New("orphan timeout must be positive")
	}
	if c.WALDir == "" {
		return errors.New("wal_dir must be specified")
	}
	return nil
}
