package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		App: AppConfig{Env: "local"},
		Services: ServicesConfig{
			AuthURL:     "http://localhost:8081",
			TenantsURL:  "http://localhost:8082",
			MembersURL:  "http://localhost:8083",
			ProjectsURL: "http://localhost:8084",
		},
		Store:    StoreConfig{Kind: StoreMemory},
		Callback: CallbackConfig{Port: 8085},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"app.env", "services.auth_url", "store.kind", "callback.port"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in aggregated error, got %v", want, err)
		}
	}
}

func TestValidate_FillsDefaults(t *testing.T) {
	c := validConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.HTTP.Timeout != 15*time.Second {
		t.Fatalf("expected default timeout, got %v", c.HTTP.Timeout)
	}
	if c.Store.Namespace != "console" {
		t.Fatalf("expected default namespace, got %q", c.Store.Namespace)
	}
}

func TestValidate_ProductionRequiresHTTPS(t *testing.T) {
	c := validConfig()
	c.App.Env = "production"
	err := c.Validate()
	if err == nil || !strings.Contains(err.Error(), "https") {
		t.Fatalf("expected https error, got %v", err)
	}
}

func TestValidate_PostgresStore(t *testing.T) {
	c := validConfig()
	c.Store.Kind = StorePostgres
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for missing db settings")
	}

	c.DB = DBConfig{Host: "localhost", Port: 5432, User: "console", Name: "console"}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
}

func TestValidate_RedisStoreNeedsHost(t *testing.T) {
	c := validConfig()
	c.Store.Kind = StoreRedis
	c.Redis.Port = 6379
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for missing redis host")
	}
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "console.yaml")
	body := `
app:
  env: dev
services:
  tenants_url: http://tenants.internal:9000
store:
  kind: memory
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("CONSOLE_SERVICES_AUTH_URL", "http://auth.internal:9001")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.App.Env != "dev" {
		t.Fatalf("expected env from file, got %q", c.App.Env)
	}
	if c.Services.TenantsURL != "http://tenants.internal:9000" {
		t.Fatalf("expected tenants url from file, got %q", c.Services.TenantsURL)
	}
	if c.Services.AuthURL != "http://auth.internal:9001" {
		t.Fatalf("expected auth url from env, got %q", c.Services.AuthURL)
	}
	if c.Services.ProjectsURL != "http://localhost:8084" {
		t.Fatalf("expected default projects url, got %q", c.Services.ProjectsURL)
	}
	if c.Store.Kind != StoreMemory {
		t.Fatalf("expected memory store, got %q", c.Store.Kind)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
