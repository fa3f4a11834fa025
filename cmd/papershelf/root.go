package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/papershelf/internal/config"
	logpkg "github.com/kailas-cloud/papershelf/internal/logger"
	"github.com/kailas-cloud/papershelf/internal/metrics"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "papershelf",
	Short: "Ask questions about your research papers",
	Long: `papershelf ingests PDF research papers into a vector store and answers
questions grounded in their text using retrieval-augmented generation.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"path to config file (default: config/$ENV.yaml)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute() //nolint:wrapcheck // cobra prints the error
}

// bootstrap loads configuration and creates the logger for a command.
func bootstrap() (config.Config, *zap.Logger, error) {
	env := config.GetEnv()

	var (
		cfg config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load(env)
	}
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("create logger: %w", err)
	}

	// Register domain metrics explicitly (no init())
	metrics.Register()

	return cfg, logger, nil
}
