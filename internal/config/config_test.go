package config

import (
	"os"
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	os.Setenv("DATABASE_URL", "postgres://localhost:5432/portal_test")
	t.Cleanup(func() { os.Unsetenv("DATABASE_URL") })
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Port != "8000" {
		t.Errorf("Port = %q, want 8000", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Errorf("Env = %q, want development", cfg.Env)
	}
	if cfg.DBMaxConns != 20 || cfg.DBMinConns != 5 {
		t.Errorf("pool sizes = %d/%d, want 20/5", cfg.DBMaxConns, cfg.DBMinConns)
	}
	if cfg.MigrationsDir != "./migrations" {
		t.Errorf("MigrationsDir = %q, want ./migrations", cfg.MigrationsDir)
	}
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	os.Unsetenv("DATABASE_URL")
	if _, err := Load(); err == nil {
		t.Fatal("Load() without DATABASE_URL should fail")
	}
}

func TestLoad_CORSOriginsSplit(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("CORS_ORIGINS", "https://a.example.com,https://b.example.com")
	defer os.Unsetenv("CORS_ORIGINS")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Fatalf("CORSOrigins = %v, want 2 entries", cfg.CORSOrigins)
	}
}

func TestValidate_DevAllowsNoAuth(t *testing.T) {
	cfg := &Config{Env: "development"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() in development should pass, got %v", err)
	}
}

func TestValidate_ProductionRequiresAuthSource(t *testing.T) {
	cfg := &Config{Env: "production"}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() in production without auth config should fail")
	}

	cfg.AuthSecret = "supersecret"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with AUTH_SECRET should pass, got %v", err)
	}

	cfg.AuthSecret = ""
	cfg.AuthIssuer = "https://id.example.com/realms/portal"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with AUTH_ISSUER should pass, got %v", err)
	}
}
