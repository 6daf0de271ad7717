package agent

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfigSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	cfg := &Config{
		DeviceID:       42,
		APIKey:         "abc123",
		ServerURL:      "http://localhost:8000",
		PollInterval:   7 * time.Second,
		PrivateKeyFile: filepath.Join(dir, "device_key.pem"),
		Modules:        Modules{Media: true, Volume: true, Brightness: false},
	}

	if err := SaveConfig(dir, cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	info, err := os.Stat(ConfigPath(dir))
	if err != nil {
		t.Fatalf("stat config: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("config file mode = %o, want 0600", info.Mode().Perm())
	}

	loaded, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if *loaded != *cfg {
		t.Errorf("round-trip mismatch:\n got %+v\nwant %+v", loaded, cfg)
	}
}

func TestLoadConfigDefaultsPollInterval(t *testing.T) {
	dir := t.TempDir()

	cfg := &Config{DeviceID: 1, APIKey: "k", ServerURL: "http://s"}
	if err := SaveConfig(dir, cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	loaded, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.PollInterval != DefaultPollInterval {
		t.Errorf("poll interval = %v, want default %v", loaded.PollInterval, DefaultPollInterval)
	}
}

func TestLoadConfigIncomplete(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing device id", Config{APIKey: "k", ServerURL: "http://s"}},
		{"missing api key", Config{DeviceID: 1, ServerURL: "http://s"}},
		{"missing server url", Config{DeviceID: 1, APIKey: "k"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if err := SaveConfig(dir, &tt.cfg); err != nil {
				t.Fatalf("SaveConfig: %v", err)
			}
			if _, err := LoadConfig(dir); err == nil {
				t.Error("expected error for incomplete config")
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(t.TempDir()); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoadConfigMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(ConfigPath(dir), []byte("device_id: [not an int"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := LoadConfig(dir)
	if err == nil || !strings.Contains(err.Error(), "malformed") {
		t.Errorf("err = %v, want malformed config error", err)
	}
}

func TestDefaultConfigDirOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("COUCHPILOT_CONFIG_DIR", dir)

	got, err := DefaultConfigDir()
	if err != nil {
		t.Fatalf("DefaultConfigDir: %v", err)
	}
	if got != dir {
		t.Errorf("DefaultConfigDir = %q, want %q", got, dir)
	}
}
