package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSubstitutesEnvVars(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bmc.json")
	content := `{
		"server": {"port": ${BMC_TEST_PORT:8080}, "log_level": "${BMC_TEST_LEVEL:info}"},
		"database": {"postgres": {"dsn": "${BMC_TEST_DSN}"}}
	}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("BMC_TEST_DSN", "postgres://localhost/bmc")
	os.Unsetenv("BMC_TEST_PORT")
	os.Unsetenv("BMC_TEST_LEVEL")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want default 8080", cfg.Server.Port)
	}
	if cfg.Server.LogLevel != "info" {
		t.Errorf("log level = %q", cfg.Server.LogLevel)
	}
	if cfg.Database.Postgres.DSN != "postgres://localhost/bmc" {
		t.Errorf("dsn = %q", cfg.Database.Postgres.DSN)
	}
}

func TestLoadEnvOverridesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bmc.json")
	content := `{"server": {"log_level": "${BMC_TEST_LEVEL:info}"}}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BMC_TEST_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.LogLevel != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Server.LogLevel)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/bmc.json"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
