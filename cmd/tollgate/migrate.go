package main

import (
	"fmt"

	"github.com/artpar/tollgate/adapters/sqlite"
	"github.com/artpar/tollgate/config"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadWithFallback(cfgFile)
		if err != nil {
			return err
		}

		db, err := sqlite.Open(cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		if err := db.Migrate(); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}

		fmt.Printf("Migrations applied to %s\n", cfg.Database.DSN)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
