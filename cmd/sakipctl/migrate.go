package main

import (
	"fmt"

	"github.com/kwanter/sakip-sub003/internal/models"
	"github.com/kwanter/sakip-sub003/internal/services"
	"github.com/spf13/cobra"
)

var skipAdmin bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the schema and seed defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, db, err := openDB()
		if err != nil {
			return err
		}
		if err := models.AutoMigrate(db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		if err := models.SeedDefaultData(db); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		if !skipAdmin {
			auth := services.NewAuthService(db, &cfg.JWT, services.NewSystemLogService(db))
			if err := auth.EnsureAdmin(cfg.Admin.Username, cfg.Admin.Password); err != nil {
				return fmt.Errorf("seed admin: %w", err)
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", cfg.Database.Driver)
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&skipAdmin, "skip-admin", false, "Do not create the initial admin account")
	rootCmd.AddCommand(migrateCmd)
}
