package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	t.Setenv("AGENTGATE_HOME", t.TempDir())
	cfg := Default()
	if cfg.Transport.Kind != "kafka" || cfg.Transport.Brokers != "localhost:9092" {
		t.Fatalf("transport defaults wrong: %+v", cfg.Transport)
	}
	if cfg.Approval.TimeoutSeconds != 300 {
		t.Fatalf("approval timeout default = %d", cfg.Approval.TimeoutSeconds)
	}
	if cfg.Approval.MaxAutoRisk != "" || cfg.Approval.PreflightEnabled {
		t.Fatal("approval must default to the conservative posture")
	}
	if !cfg.Audit.Enabled {
		t.Fatal("audit journal should default on")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("AGENTGATE_HOME", t.TempDir())
	t.Setenv("AGENTGATE_CONFIG", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backend.BaseURL != "http://localhost:8787" {
		t.Fatalf("backend default wrong: %q", cfg.Backend.BaseURL)
	}
}

func TestLoadFileThenEnvOverride(t *testing.T) {
	home := t.TempDir()
	t.Setenv("AGENTGATE_HOME", home)
	t.Setenv("AGENTGATE_CONFIG", "")

	file := `{
  "transport": {"kind": "bus"},
  "backend": {"baseUrl": "http://file:1111"},
  "approval": {"timeoutSeconds": 60}
}`
	if err := os.WriteFile(filepath.Join(home, ConfigFile), []byte(file), 0o600); err != nil {
		t.Fatal(err)
	}
	// Env beats file.
	t.Setenv("BACKEND_URL", "http://env:2222")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Transport.Kind != "bus" {
		t.Fatalf("file override lost: %q", cfg.Transport.Kind)
	}
	if cfg.Approval.TimeoutSeconds != 60 {
		t.Fatalf("file timeout lost: %d", cfg.Approval.TimeoutSeconds)
	}
	if cfg.Backend.BaseURL != "http://env:2222" {
		t.Fatalf("env override lost: %q", cfg.Backend.BaseURL)
	}
}

func TestExplicitConfigPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.json")
	t.Setenv("AGENTGATE_CONFIG", path)

	got, err := ConfigPath()
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	if got != path {
		t.Fatalf("ConfigPath() = %q, want %q", got, path)
	}
}

func TestBackendTimeout(t *testing.T) {
	if (BackendConfig{}).Timeout() != 10*time.Second {
		t.Fatal("zero timeout should fall back to 10s")
	}
	if (BackendConfig{TimeoutSeconds: 3}).Timeout() != 3*time.Second {
		t.Fatal("explicit timeout ignored")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	home := t.TempDir()
	t.Setenv("AGENTGATE_HOME", filepath.Join(home, "nested"))
	t.Setenv("AGENTGATE_CONFIG", "")

	cfg := Default()
	cfg.Gateway.Token = "tok"
	if err := Save(cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Gateway.Token != "tok" {
		t.Fatalf("round trip lost token: %+v", loaded.Gateway)
	}
}
