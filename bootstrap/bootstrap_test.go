package bootstrap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 0

auth:
  jwt_secret: "test-secret"

database:
  dsn: "` + filepath.Join(dir, "tollgate.db") + `"

metrics:
  enabled: true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestNew_WiresEverything(t *testing.T) {
	a, err := New(writeTestConfig(t))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer a.Shutdown()

	if a.DB == nil {
		t.Error("DB not initialized")
	}
	if a.Entitlements == nil || a.Billing == nil || a.Webhooks == nil {
		t.Error("services not initialized")
	}
	if a.HTTPServer == nil {
		t.Error("http server not initialized")
	}
	if a.Metrics == nil || a.Registry == nil {
		t.Error("metrics should be enabled by config")
	}
}

func TestNew_MissingConfig(t *testing.T) {
	os.Unsetenv("TOLLGATE_AUTH_JWT_SECRET")
	if _, err := New(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing config and env")
	}
}

func TestReload_PropagatesToServices(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	tpl := `
server:
  host: "127.0.0.1"
  port: 0

auth:
  jwt_secret: "test-secret"

database:
  dsn: "` + filepath.Join(dir, "tollgate.db") + `"

tiers:
  - id: free
    name: Free
    limits:
      ai_move: %d
`
	if err := os.WriteFile(path, []byte(fmt.Sprintf(tpl, 1)), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	a, err := New(path)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer a.Shutdown()

	ctx := context.Background()
	if d, err := a.Entitlements.Check(ctx, "u1", "ai_move"); err != nil || !d.Allowed {
		t.Fatalf("first check: decision = %+v, err = %v", d, err)
	}
	if d, _ := a.Entitlements.Check(ctx, "u1", "ai_move"); d.Allowed {
		t.Fatal("second check should be denied at limit 1")
	}

	if err := os.WriteFile(path, []byte(fmt.Sprintf(tpl, 5)), 0644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	if err := a.Config.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}

	d, err := a.Entitlements.Check(ctx, "u1", "ai_move")
	if err != nil {
		t.Fatalf("check after reload: %v", err)
	}
	if !d.Allowed || d.Limit != 5 {
		t.Errorf("reloaded limit should govern the next check, decision = %+v", d)
	}
}

func TestNew_FromEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TOLLGATE_AUTH_JWT_SECRET", "env-secret")
	t.Setenv("TOLLGATE_DATABASE_DSN", filepath.Join(dir, "env.db"))

	a, err := New("")
	if err != nil {
		t.Fatalf("New from env error: %v", err)
	}
	defer a.Shutdown()

	if a.Config != nil {
		t.Error("env-only startup should not have a file holder")
	}
	if a.Entitlements == nil {
		t.Error("services not initialized")
	}
}
