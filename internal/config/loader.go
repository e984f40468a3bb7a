package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".agentgate"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
	// EnvPrefix is the prefix for environment overrides.
	EnvPrefix = "AGENTGATE"
)

// ConfigPath returns the path to the config file, honoring
// AGENTGATE_CONFIG and AGENTGATE_HOME.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("AGENTGATE_CONFIG")); explicit != "" {
		return expandHome(explicit)
	}
	home, err := homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigFile), nil
}

func homeDir() (string, error) {
	if h := strings.TrimSpace(os.Getenv("AGENTGATE_HOME")); h != "" {
		return expandHome(h)
	}
	base, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(base, ConfigDir), nil
}

func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	base, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(base, path[1:]), nil
}

// Default returns the built-in configuration.
func Default() Config {
	home, _ := homeDir()
	return Config{
		Paths: PathsConfig{
			Home:        home,
			Preferences: filepath.Join(home, "preferences.json"),
		},
		Transport: TransportConfig{
			Kind:        "kafka",
			Brokers:     "localhost:9092",
			TopicPrefix: "agent.events",
			GroupID:     "agentgate",
		},
		Backend: BackendConfig{
			BaseURL:        "http://localhost:8787",
			TimeoutSeconds: 10,
		},
		Approval: ApprovalConfig{
			TimeoutSeconds: 300,
		},
		Gateway: GatewayConfig{
			Enabled:    true,
			ListenAddr: "127.0.0.1:8790",
		},
		Audit: AuditConfig{
			Enabled: true,
			DBPath:  filepath.Join(home, "audit.db"),
		},
	}
}

// Load reads the config file (if present) and applies environment
// overrides. A missing file is not an error; defaults apply.
func Load() (Config, error) {
	cfg := Default()

	path, err := ConfigPath()
	if err != nil {
		return cfg, err
	}
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// First run; defaults plus env.
	case err != nil:
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("apply env overrides: %w", err)
	}
	return cfg, nil
}

// Save writes the config file, creating the config directory.
func Save(cfg Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
