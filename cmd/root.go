// Package cmd implements the command-line interface for GoProspect.
// It provides the root command and subcommands for seeding, crawling,
// and operating the discovery pipeline.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joho/godotenv"
	crawlcmd "github.com/jonesrussell/goprospect/cmd/crawl"
	migratecmd "github.com/jonesrussell/goprospect/cmd/migrate"
	recovercmd "github.com/jonesrussell/goprospect/cmd/recover"
	seedcmd "github.com/jonesrussell/goprospect/cmd/seed"
	statuscmd "github.com/jonesrussell/goprospect/cmd/status"
)

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// Debug enables debug logging for all commands.
	Debug bool

	// rootCmd represents the root command for the GoProspect CLI.
	rootCmd = &cobra.Command{
		Use:   "goprospect",
		Short: "A business-listing discovery pipeline",
		Long: `GoProspect discovers business listings from public directories,
filters them down to qualified service providers, and maintains a
deduplicated canonical store keyed by website.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command
func Execute() error {
	// Load .env file early so environment variables are available
	_ = godotenv.Load()

	// Parse flags early to get debug flag before creating logger
	_ = rootCmd.ParseFlags(os.Args[1:])

	if err := initConfig(); err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}

	return rootCmd.ExecuteContext(context.Background())
}

// init initializes the root command and its subcommands.
func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"config file (default is ./config.yaml or ./configs/config.yaml)",
	)
	rootCmd.PersistentFlags().BoolVar(&Debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("goprospect version %s\n", "1.0.0")
		},
	})

	rootCmd.AddCommand(crawlcmd.Command())
	rootCmd.AddCommand(seedcmd.Command())
	rootCmd.AddCommand(statuscmd.Command())
	rootCmd.AddCommand(recovercmd.Command())
	rootCmd.AddCommand(migratecmd.Command())
}

// initConfig reads in config file and ENV variables if set.
func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./configs")
	}

	// Environment variables win over the config file. Keys map as
	// pool.workers -> PROSPECT_POOL_WORKERS.
	viper.SetEnvPrefix("PROSPECT")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	// The config file is optional; defaults plus environment cover a
	// bare deployment.
	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: config file not found: %v (using defaults and environment variables)\n", err)
	}

	if err := viper.BindPFlag("app.debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		return fmt.Errorf("failed to bind debug flag: %w", err)
	}

	if Debug || viper.GetBool("app.debug") {
		viper.Set("logger.level", "debug")
		viper.Set("logger.development", true)
		Debug = true
	}

	return nil
}

// setDefaults sets default configuration values. Pool, limiter, fetch,
// proxy, server, and elasticsearch defaults live in their config
// packages; only keys without a package home are defaulted here.
func setDefaults() {
	viper.SetDefault("app", map[string]any{
		"name":        "goprospect",
		"environment": "production",
		"debug":       false,
	})

	viper.SetDefault("logger", map[string]any{
		"level":       "info",
		"development": false,
		"encoding":    "console",
	})

	viper.SetDefault("seed", map[string]any{
		"registry_path": "configs/registry.yaml",
	})
}
