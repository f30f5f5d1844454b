package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/artpar/tollgate/config"
	"github.com/artpar/tollgate/domain/tier"
)

func TestLoad_FullConfig(t *testing.T) {
	content := `
server:
  host: "127.0.0.1"
  port: 9090
  read_timeout: 10s
  write_timeout: 20s

auth:
  jwt_secret: "super-secret"
  token_ttl: 12h

entitlements:
  grace: 48h

billing:
  mode: "stripe"
  stripe_key: "sk_test_abc"
  webhook_secret: "whsec_abc"
  price_ids:
    pro: "price_pro_monthly"
    premium: "price_premium_monthly"
  allowed_origins:
    - "https://grid64.example"
    - "https://staging.grid64.example"

database:
  driver: "sqlite"
  dsn: "/var/lib/tollgate/tollgate.db"

tiers:
  - id: "free"
    name: "Free"
    limits:
      ai_move: 30
      game_import: 5
  - id: "pro"
    name: "Pro"
    limits:
      ai_move: 1000
      game_import: 100
  - id: "premium"
    name: "Premium"
    limits:
      ai_move: -1
      game_import: -1

logging:
  level: "debug"
  format: "console"

metrics:
  enabled: true
`
	path := writeConfig(t, content)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9090 {
		t.Errorf("server = %s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 10*time.Second {
		t.Errorf("read timeout = %v", cfg.Server.ReadTimeout)
	}
	if cfg.Auth.TokenTTL != 12*time.Hour {
		t.Errorf("token ttl = %v", cfg.Auth.TokenTTL)
	}
	if cfg.Entitlements.Grace != 48*time.Hour {
		t.Errorf("grace = %v", cfg.Entitlements.Grace)
	}
	if cfg.Billing.Mode != "stripe" || cfg.Billing.StripeKey != "sk_test_abc" {
		t.Errorf("billing = %+v", cfg.Billing)
	}
	if len(cfg.Billing.AllowedOrigins) != 2 {
		t.Errorf("origins = %v", cfg.Billing.AllowedOrigins)
	}
	if cfg.Billing.PriceIDs["pro"] != "price_pro_monthly" {
		t.Errorf("price ids = %v", cfg.Billing.PriceIDs)
	}
	if len(cfg.Tiers) != 3 {
		t.Fatalf("tiers = %d, want 3", len(cfg.Tiers))
	}
	if cfg.Tiers[2].Limits["ai_move"] != -1 {
		t.Errorf("premium ai_move = %d, want -1", cfg.Tiers[2].Limits["ai_move"])
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "console" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, validConfig())
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("default host = %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port = %d", cfg.Server.Port)
	}
	if cfg.Auth.TokenTTL != 24*time.Hour {
		t.Errorf("default token ttl = %v", cfg.Auth.TokenTTL)
	}
	if cfg.Billing.Mode != "none" {
		t.Errorf("default billing mode = %s", cfg.Billing.Mode)
	}
	if len(cfg.Billing.AllowedOrigins) == 0 {
		t.Error("default allowed origins should not be empty")
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.DSN != "tollgate.db" {
		t.Errorf("default database = %+v", cfg.Database)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("default logging = %+v", cfg.Logging)
	}
	if cfg.Entitlements.Grace != 0 {
		t.Errorf("default grace = %v, want 0", cfg.Entitlements.Grace)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := config.Load("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, ":\n  - not valid\n yaml {{")
	if _, err := config.Load(path); err == nil {
		t.Error("expected error for invalid yaml")
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_TOLLGATE_SECRET", "expanded-secret")
	path := writeConfig(t, `
auth:
  jwt_secret: "${TEST_TOLLGATE_SECRET}"
`)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Auth.JWTSecret != "expanded-secret" {
		t.Errorf("secret = %s, want expanded-secret", cfg.Auth.JWTSecret)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TOLLGATE_SERVER_PORT", "9999")
	t.Setenv("TOLLGATE_LOG_LEVEL", "warn")
	t.Setenv("TOLLGATE_GRACE", "96h")
	t.Setenv("TOLLGATE_BILLING_ORIGINS", "https://a.example, https://b.example")

	path := writeConfig(t, validConfig())
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("port = %d, env override should win", cfg.Server.Port)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("level = %s", cfg.Logging.Level)
	}
	if cfg.Entitlements.Grace != 96*time.Hour {
		t.Errorf("grace = %v", cfg.Entitlements.Grace)
	}
	if len(cfg.Billing.AllowedOrigins) != 2 || cfg.Billing.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("origins = %v", cfg.Billing.AllowedOrigins)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TOLLGATE_AUTH_JWT_SECRET", "env-secret")
	t.Setenv("TOLLGATE_BILLING_MODE", "stripe")
	t.Setenv("TOLLGATE_BILLING_STRIPE_KEY", "sk_test_env")

	cfg, err := config.LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv error: %v", err)
	}
	if cfg.Auth.JWTSecret != "env-secret" {
		t.Errorf("secret = %s", cfg.Auth.JWTSecret)
	}
	if cfg.Billing.Mode != "stripe" {
		t.Errorf("billing mode = %s", cfg.Billing.Mode)
	}
}

func TestLoadWithFallback(t *testing.T) {
	// File exists: file wins.
	path := writeConfig(t, validConfig())
	cfg, err := config.LoadWithFallback(path)
	if err != nil {
		t.Fatalf("LoadWithFallback error: %v", err)
	}
	if cfg.Auth.JWTSecret != "test-secret" {
		t.Errorf("secret = %s", cfg.Auth.JWTSecret)
	}

	// No file, env present: env wins.
	t.Setenv("TOLLGATE_AUTH_JWT_SECRET", "fallback-secret")
	cfg, err = config.LoadWithFallback(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadWithFallback env error: %v", err)
	}
	if cfg.Auth.JWTSecret != "fallback-secret" {
		t.Errorf("secret = %s", cfg.Auth.JWTSecret)
	}
}

func TestLoadWithFallback_NothingConfigured(t *testing.T) {
	os.Unsetenv("TOLLGATE_AUTH_JWT_SECRET")
	if _, err := config.LoadWithFallback(""); err == nil {
		t.Error("expected error with no file and no env")
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing jwt secret",
			content: `server: {port: 8080}`,
			wantErr: "jwt_secret",
		},
		{
			name: "bad billing mode",
			content: `
auth: {jwt_secret: "s"}
billing: {mode: "paypal"}
`,
			wantErr: "billing.mode",
		},
		{
			name: "stripe without key",
			content: `
auth: {jwt_secret: "s"}
billing: {mode: "stripe"}
`,
			wantErr: "stripe_key",
		},
		{
			name: "unsupported driver",
			content: `
auth: {jwt_secret: "s"}
database: {driver: "postgres"}
`,
			wantErr: "database.driver",
		},
		{
			name: "tier without id",
			content: `
auth: {jwt_secret: "s"}
tiers:
  - name: "Anonymous"
`,
			wantErr: "tiers[0].id",
		},
		{
			name: "tiers without free",
			content: `
auth: {jwt_secret: "s"}
tiers:
  - id: "pro"
    limits: {ai_move: 100}
`,
			wantErr: "free",
		},
		{
			name: "limit below sentinel",
			content: `
auth: {jwt_secret: "s"}
tiers:
  - id: "free"
    limits: {ai_move: -2}
`,
			wantErr: ">= -1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := config.Load(path)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestCatalog_FromConfig(t *testing.T) {
	path := writeConfig(t, `
auth: {jwt_secret: "s"}
tiers:
  - id: "free"
    name: "Free"
    limits: {ai_move: 10}
  - id: "club"
    name: "Club"
    limits: {ai_move: -1}
`)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	catalog, err := cfg.Catalog()
	if err != nil {
		t.Fatalf("Catalog error: %v", err)
	}
	free := catalog.FreeTier()
	if free.Limits.LimitFor("ai_move") != 10 {
		t.Errorf("free ai_move = %d, want 10", free.Limits.LimitFor("ai_move"))
	}
	club, err := catalog.Get("club")
	if err != nil {
		t.Fatalf("Get club: %v", err)
	}
	if club.Limits.LimitFor("ai_move") != tier.Unlimited {
		t.Errorf("club ai_move = %d, want unlimited", club.Limits.LimitFor("ai_move"))
	}
}

func TestCatalog_DefaultWhenUnconfigured(t *testing.T) {
	path := writeConfig(t, `
auth:
  jwt_secret: "test-secret"
`)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	catalog, err := cfg.Catalog()
	if err != nil {
		t.Fatalf("Catalog error: %v", err)
	}
	if _, err := catalog.Get(tier.Premium); err != nil {
		t.Errorf("default catalog should include premium: %v", err)
	}
}

func TestPriceMap(t *testing.T) {
	path := writeConfig(t, `
auth: {jwt_secret: "s"}
billing:
  mode: "none"
  price_ids:
    pro: "price_1"
    premium: "price_2"
`)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	prices := cfg.PriceMap()
	if prices[tier.Pro] != "price_1" || prices[tier.Premium] != "price_2" {
		t.Errorf("prices = %v", prices)
	}
}
