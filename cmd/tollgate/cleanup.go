package main

import (
	"context"
	"fmt"
	"time"

	"github.com/artpar/tollgate/adapters/sqlite"
	"github.com/artpar/tollgate/config"
	"github.com/spf13/cobra"
)

var cleanupOlderThan time.Duration

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete stale usage counters from past periods",
	Long: `Delete usage counter rows that have not been touched within the
retention window. Counters from closed periods are never read by the
entitlement paths, so this only reclaims space.`,
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

		ledger := sqlite.NewUsageStore(db)
		cutoff := time.Now().UTC().Add(-cleanupOlderThan)
		n, err := ledger.Cleanup(context.Background(), cutoff)
		if err != nil {
			return fmt.Errorf("cleanup: %w", err)
		}

		fmt.Printf("Deleted %d counter rows older than %s\n", n, cutoff.Format(time.RFC3339))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanupCmd)

	cleanupCmd.Flags().DurationVar(&cleanupOlderThan, "older-than", 90*24*time.Hour, "retention window for counter rows")
}
