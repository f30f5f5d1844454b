// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/artpar/tollgate/domain/tier"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Auth         AuthConfig         `yaml:"auth"`
	Entitlements EntitlementsConfig `yaml:"entitlements"`
	Billing      BillingConfig      `yaml:"billing"`
	Database     DatabaseConfig     `yaml:"database"`
	Tiers        []TierConfig       `yaml:"tiers"`
	Logging      LoggingConfig      `yaml:"logging"`
	Metrics      MetricsConfig      `yaml:"metrics"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// AuthConfig configures bearer token validation.
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// EntitlementsConfig configures tier resolution behavior.
type EntitlementsConfig struct {
	// Grace extends a subscription's period end before the user is
	// degraded to the free tier. Zero means degrade immediately.
	Grace time.Duration `yaml:"grace"`
}

// BillingConfig configures the billing provider.
// Use "none" or "stripe".
type BillingConfig struct {
	Mode          string `yaml:"mode"` // "none" or "stripe"
	StripeKey     string `yaml:"stripe_key,omitempty"`
	WebhookSecret string `yaml:"webhook_secret,omitempty"`
	// PriceIDs maps tier ids to the provider's price identifiers.
	PriceIDs map[string]string `yaml:"price_ids,omitempty"`
	// AllowedOrigins is the redirect allow-list for portal and checkout
	// sessions. The first entry is the default redirect target.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatabaseConfig configures the database.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite"
	DSN    string `yaml:"dsn"`
}

// TierConfig configures one catalog tier.
type TierConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	// Limits maps resource kinds to per-period caps. -1 means unlimited;
	// resources not listed are unlimited.
	Limits map[string]int64 `yaml:"limits"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // Enable /metrics endpoint
	Path    string `yaml:"path"`    // Custom path (default: /metrics)
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(&cfg)

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
// This is useful for Docker deployments where no config file is needed.
//
// Environment variables:
//
//	TOLLGATE_SERVER_HOST         - Server host (default: 0.0.0.0)
//	TOLLGATE_SERVER_PORT         - Server port (default: 8080)
//	TOLLGATE_AUTH_JWT_SECRET     - Secret for bearer token validation (required)
//	TOLLGATE_DATABASE_DSN        - Database path (default: tollgate.db)
//	TOLLGATE_BILLING_MODE        - Billing mode: none or stripe (default: none)
//	TOLLGATE_BILLING_STRIPE_KEY  - Stripe secret key
//	TOLLGATE_BILLING_WEBHOOK_SECRET - Stripe webhook signing secret
//	TOLLGATE_BILLING_ORIGINS     - Comma-separated redirect origin allow-list
//	TOLLGATE_GRACE               - Entitlement grace period (e.g. 72h)
//	TOLLGATE_LOG_LEVEL           - Log level: debug, info, warn, error (default: info)
//	TOLLGATE_LOG_FORMAT          - Log format: json or console (default: json)
//	TOLLGATE_METRICS_ENABLED     - Enable /metrics endpoint (default: true)
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback tries to load from file, falls back to environment variables.
// This is the recommended method for Docker deployments.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	if os.Getenv("TOLLGATE_AUTH_JWT_SECRET") != "" {
		return LoadFromEnv()
	}

	return nil, fmt.Errorf("no configuration found: provide config file or set TOLLGATE_AUTH_JWT_SECRET")
}

// Catalog builds the tier catalog from configuration. With no tiers
// configured the built-in default catalog applies.
func (c *Config) Catalog() (*tier.Catalog, error) {
	if len(c.Tiers) == 0 {
		return tier.DefaultCatalog(), nil
	}

	tiers := make([]tier.Tier, 0, len(c.Tiers))
	for _, tc := range c.Tiers {
		limits := make(tier.Limits, len(tc.Limits))
		for r, n := range tc.Limits {
			limits[tier.Resource(r)] = n
		}
		tiers = append(tiers, tier.Tier{
			ID:     tier.ID(tc.ID),
			Name:   tc.Name,
			Limits: limits,
		})
	}
	return tier.NewCatalog(tiers)
}

// PriceMap converts configured price ids to typed tier keys.
func (c *Config) PriceMap() map[tier.ID]string {
	out := make(map[tier.ID]string, len(c.Billing.PriceIDs))
	for id, price := range c.Billing.PriceIDs {
		out[tier.ID(id)] = price
	}
	return out
}

// applyEnvOverrides applies TOLLGATE_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	// Server configuration
	if v := os.Getenv("TOLLGATE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("TOLLGATE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("TOLLGATE_SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("TOLLGATE_SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}

	// Auth configuration
	if v := os.Getenv("TOLLGATE_AUTH_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("TOLLGATE_AUTH_TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Auth.TokenTTL = d
		}
	}

	// Entitlements configuration
	if v := os.Getenv("TOLLGATE_GRACE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Entitlements.Grace = d
		}
	}

	// Billing configuration
	if v := os.Getenv("TOLLGATE_BILLING_MODE"); v != "" {
		cfg.Billing.Mode = v
	}
	if v := os.Getenv("TOLLGATE_BILLING_STRIPE_KEY"); v != "" {
		cfg.Billing.StripeKey = v
	}
	if v := os.Getenv("TOLLGATE_BILLING_WEBHOOK_SECRET"); v != "" {
		cfg.Billing.WebhookSecret = v
	}
	if v := os.Getenv("TOLLGATE_BILLING_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.Billing.AllowedOrigins = origins
	}

	// Database configuration
	if v := os.Getenv("TOLLGATE_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("TOLLGATE_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}

	// Logging configuration
	if v := os.Getenv("TOLLGATE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TOLLGATE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Metrics configuration
	if v := os.Getenv("TOLLGATE_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("TOLLGATE_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}

	if cfg.Auth.TokenTTL == 0 {
		cfg.Auth.TokenTTL = 24 * time.Hour
	}

	if cfg.Billing.Mode == "" {
		cfg.Billing.Mode = "none"
	}
	if len(cfg.Billing.AllowedOrigins) == 0 {
		cfg.Billing.AllowedOrigins = []string{"http://localhost:3000"}
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "tollgate.db"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validate(cfg *Config) error {
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	validBillingModes := map[string]bool{"none": true, "stripe": true}
	if !validBillingModes[cfg.Billing.Mode] {
		return fmt.Errorf("billing.mode must be 'none' or 'stripe', got %q", cfg.Billing.Mode)
	}
	if cfg.Billing.Mode == "stripe" && cfg.Billing.StripeKey == "" {
		return fmt.Errorf("billing.stripe_key is required when billing.mode is 'stripe'")
	}

	if cfg.Database.Driver != "sqlite" {
		return fmt.Errorf("database.driver must be 'sqlite', got %q", cfg.Database.Driver)
	}

	for i, tc := range cfg.Tiers {
		if tc.ID == "" {
			return fmt.Errorf("tiers[%d].id is required", i)
		}
		for r, n := range tc.Limits {
			if n < tier.Unlimited {
				return fmt.Errorf("tiers[%d].limits[%s] must be >= -1, got %d", i, r, n)
			}
		}
	}
	if len(cfg.Tiers) > 0 {
		hasFree := false
		for _, tc := range cfg.Tiers {
			if tier.ID(tc.ID) == tier.Free {
				hasFree = true
			}
		}
		if !hasFree {
			return fmt.Errorf("tiers must include the %q fallback tier", tier.Free)
		}
	}

	return nil
}
