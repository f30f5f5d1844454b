package main

import (
	"fmt"
	"os"

	"github.com/artpar/tollgate/bootstrap"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the entitlement API server",
	Long: `Start the Tollgate API server.

The server will:
  - Load configuration from tollgate.yaml (or --config)
  - Or load configuration from TOLLGATE_* environment variables
  - Connect to the database and apply migrations
  - Serve the usage, entitlement, and billing session endpoints
  - Receive billing provider webhooks

Environment variables (for Docker deployments):
  TOLLGATE_AUTH_JWT_SECRET  - Bearer token secret (required)
  TOLLGATE_DATABASE_DSN     - Database path (default: tollgate.db)
  TOLLGATE_SERVER_PORT      - Server port (default: 8080)
  TOLLGATE_BILLING_MODE     - Billing mode: none or stripe
  TOLLGATE_LOG_LEVEL        - Log level: debug, info, warn, error

Examples:
  tollgate serve
  tollgate serve --config /etc/tollgate/config.yaml

  # Docker (env vars only):
  TOLLGATE_AUTH_JWT_SECRET=secret tollgate serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if _, err := os.Stat(path); err != nil {
		// No file: bootstrap falls back to environment variables.
		path = ""
		if os.Getenv("TOLLGATE_AUTH_JWT_SECRET") == "" {
			fmt.Println("No configuration found.")
			fmt.Println()
			fmt.Printf("Option 1: Create %s\n", cfgFile)
			fmt.Println("Option 2: Set TOLLGATE_AUTH_JWT_SECRET environment variable")
			return nil
		}
		fmt.Println("Running with environment variables (no config file)")
	}

	app, err := bootstrap.New(path)
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	// Run (blocks until shutdown)
	return app.Run()
}
