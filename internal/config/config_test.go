package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.HTTPAddr != ":8000" {
		t.Fatalf("HTTPAddr = %s, want :8000", cfg.Server.HTTPAddr)
	}
	if cfg.Engine.Path != "" {
		t.Fatalf("Engine.Path should default to empty (auto-locate)")
	}
	if cfg.Audit.DatabasePath != "" {
		t.Fatalf("auditing should be disabled by default")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "netmeta-mcp.yaml")
	content := `
engine:
  path: /opt/R/bin/R
  state_path: /var/tmp/netmeta_state.rds
  timeout: 90s
server:
  http_addr: ":9090"
audit:
  database_path: /var/lib/netmeta/audit.db
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Engine.Path != "/opt/R/bin/R" {
		t.Fatalf("Engine.Path = %s", cfg.Engine.Path)
	}
	if cfg.Server.HTTPAddr != ":9090" {
		t.Fatalf("HTTPAddr = %s", cfg.Server.HTTPAddr)
	}
	if cfg.Audit.DatabasePath != "/var/lib/netmeta/audit.db" {
		t.Fatalf("Audit.DatabasePath = %s", cfg.Audit.DatabasePath)
	}

	timeout, err := cfg.EngineTimeout()
	if err != nil {
		t.Fatalf("EngineTimeout() error: %v", err)
	}
	if timeout != 90*time.Second {
		t.Fatalf("timeout = %s, want 90s", timeout)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("engine: [not a map"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load() should fail on malformed YAML")
	}
}

func TestEngineTimeoutDefaults(t *testing.T) {
	cfg := Default()
	timeout, err := cfg.EngineTimeout()
	if err != nil {
		t.Fatalf("EngineTimeout() error: %v", err)
	}
	if timeout != 0 {
		t.Fatalf("default timeout = %s, want 0 (unbounded)", timeout)
	}

	cfg.Engine.Timeout = "banana"
	if _, err := cfg.EngineTimeout(); err == nil {
		t.Fatal("EngineTimeout() should reject unparseable durations")
	}
}
