package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tollgate",
	Short: "Entitlement and usage metering service for subscription-gated products",
	Long: `Tollgate answers "may this user consume resource R right now" for
subscription-gated web products.

It resolves each user's effective tier from billing state, enforces
per-period usage quotas with atomic counters, and brokers hosted
billing portal and checkout sessions.

Quick start:
  tollgate serve     # Start the API server

Management:
  tollgate migrate   # Apply database migrations
  tollgate tiers     # Show the tier catalog
  tollgate validate  # Validate configuration`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "tollgate.yaml", "config file path")
}
