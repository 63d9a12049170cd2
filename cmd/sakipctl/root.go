package main

import (
	"fmt"
	"os"

	"github.com/kwanter/sakip-sub003/internal/config"
	"github.com/kwanter/sakip-sub003/internal/models"
	"github.com/kwanter/sakip-sub003/pkg/logger"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "sakipctl",
	Short: "Maintenance tool for the SAKIP performance service",
	Long: `sakipctl runs one-off maintenance against the SAKIP database:
schema migration, yearly score recalculation and audit log cleanup.
It also grades scores offline without touching the database.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init(logLevel)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("CONFIG_PATH"), "Path to config.yaml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug|info|warn|error)")
}

// openDB loads the configuration and connects to its database.
func openDB() (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	db, err := models.InitDB(&cfg.Database, logLevel == "debug")
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}
