package common

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/jonesrussell/goprospect/internal/config"
	"github.com/jonesrussell/goprospect/internal/logger"
)

// NewCommandDeps creates CommandDeps by loading config and creating the
// logger. This consolidates the common initialization code every
// subcommand runs first.
func NewCommandDeps() (CommandDeps, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return CommandDeps{}, fmt.Errorf("load config: %w", err)
	}

	log, err := newLogger()
	if err != nil {
		return CommandDeps{}, fmt.Errorf("create logger: %w", err)
	}

	deps := CommandDeps{
		Logger: log,
		Config: cfg,
	}

	if validateErr := deps.Validate(); validateErr != nil {
		return CommandDeps{}, fmt.Errorf("validate deps: %w", validateErr)
	}

	return deps, nil
}

// newLogger creates a logger instance from Viper configuration.
func newLogger() (logger.Interface, error) {
	logLevel := viper.GetString("logger.level")
	if logLevel == "" {
		logLevel = "info"
	}

	return logger.New(&logger.Config{
		Level:       logger.Level(strings.ToLower(logLevel)),
		Development: viper.GetBool("logger.development"),
		Encoding:    viper.GetString("logger.encoding"),
	})
}
