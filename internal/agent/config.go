// Package agent implements the device-side half of Couchpilot: registration,
// the polling loop, payload decryption and the executor modules that perform
// the actual OS-level side effects.
package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPollInterval matches the server-side expectation of a few polls per
// minute per device.
const DefaultPollInterval = 5 * time.Second

// Modules holds the per-capability enable flags. The server has no visibility
// into these; a disabled module rejects commands locally.
type Modules struct {
	Media      bool `yaml:"media"`
	Volume     bool `yaml:"volume"`
	Brightness bool `yaml:"brightness"`
}

// Config is the durable agent configuration written at registration time.
// The private key is stored beside it as a PEM file, never inside the YAML.
type Config struct {
	DeviceID       int64         `yaml:"device_id"`
	APIKey         string        `yaml:"api_key"`
	ServerURL      string        `yaml:"server_url"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	PrivateKeyFile string        `yaml:"private_key_file"`
	Modules        Modules       `yaml:"modules"`
}

// DefaultConfigDir returns the agent's config directory, honoring
// COUCHPILOT_CONFIG_DIR for tests and non-standard setups.
func DefaultConfigDir() (string, error) {
	if dir := os.Getenv("COUCHPILOT_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "couchpilot"), nil
}

// ConfigPath returns the path of the agent config file inside dir.
func ConfigPath(dir string) string {
	return filepath.Join(dir, "agent.yaml")
}

// LoadConfig reads and validates the agent configuration from dir.
func LoadConfig(dir string) (*Config, error) {
	data, err := os.ReadFile(ConfigPath(dir))
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("malformed agent config: %w", err)
	}

	if cfg.DeviceID == 0 || cfg.APIKey == "" || cfg.ServerURL == "" {
		return nil, fmt.Errorf("agent config incomplete, re-run registration")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	return &cfg, nil
}

// SaveConfig writes the agent configuration to dir, creating it if needed.
// The file is owner-readable only since it holds the device API key.
func SaveConfig(dir string, cfg *Config) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(ConfigPath(dir), data, 0600)
}
