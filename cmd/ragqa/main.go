package main

import (
	"fmt"
	"os"

	"github.com/phuslu/log"
	"github.com/spf13/cobra"

	"ragqa/internal/config"
	"ragqa/internal/logging"
)

var (
	cfgPath  string
	logLevel string

	cfg    *config.AppConfig
	logger *log.Logger
)

var rootCmd = &cobra.Command{
	Use:           "ragqa",
	Short:         "Grounded question answering over a markdown corpus",
	Long:          `ragqa indexes a markdown corpus into an embedding store and answers questions with cited sources.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		path := cfgPath
		if path == "" {
			cfg, path, err = config.LoadDefault()
		} else {
			cfg, err = config.Load(path)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		logger = logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
		logger.Debug().Str("config", path).Msg("configuration loaded")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to YAML or TOML config file (default ./config.yaml, then ~/.config/ragqa/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	rootCmd.AddCommand(indexCmd, serveCmd, askCmd, queryCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
