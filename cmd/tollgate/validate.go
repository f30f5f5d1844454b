package main

import (
	"fmt"

	"github.com/artpar/tollgate/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("configuration invalid: %w", err)
		}

		catalog, err := cfg.Catalog()
		if err != nil {
			return fmt.Errorf("tier catalog invalid: %w", err)
		}

		fmt.Println("Configuration valid")
		fmt.Printf("  Server:  %s:%d\n", cfg.Server.Host, cfg.Server.Port)
		fmt.Printf("  Billing: %s\n", cfg.Billing.Mode)
		fmt.Printf("  Tiers:   %d\n", len(catalog.IDs()))
		fmt.Printf("  Grace:   %s\n", cfg.Entitlements.Grace)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
