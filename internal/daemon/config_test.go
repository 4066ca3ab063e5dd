package daemon

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("RELOOP_HOME", t.TempDir())

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.API.Port != 8090 {
		t.Errorf("Port = %d, want 8090", cfg.API.Port)
	}
	if cfg.Rewards.ConfidenceThreshold != 0.5 {
		t.Errorf("ConfidenceThreshold = %v, want 0.5", cfg.Rewards.ConfidenceThreshold)
	}
	if cfg.Sweep.Schedule != "@hourly" {
		t.Errorf("Schedule = %q, want @hourly", cfg.Sweep.Schedule)
	}
	if cfg.Notifications.MaxPerDay != 5 {
		t.Errorf("MaxPerDay = %d, want 5", cfg.Notifications.MaxPerDay)
	}
}

func TestLoadConfig_FileOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("RELOOP_HOME", dir)

	content := `
[api]
port = 9999

[rewards]
confidence_threshold = 0.7

[notifications]
max_per_day = 2
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.API.Port != 9999 {
		t.Errorf("Port = %d, want 9999", cfg.API.Port)
	}
	if cfg.Rewards.ConfidenceThreshold != 0.7 {
		t.Errorf("ConfidenceThreshold = %v, want 0.7", cfg.Rewards.ConfidenceThreshold)
	}
	if cfg.Notifications.MaxPerDay != 2 {
		t.Errorf("MaxPerDay = %d, want 2", cfg.Notifications.MaxPerDay)
	}
	// Untouched sections keep defaults.
	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("Host = %q, want default", cfg.API.Host)
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	t.Setenv("RELOOP_HOME", t.TempDir())

	cfg := DefaultConfig()
	cfg.API.Port = 7777
	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig() error: %v", err)
	}

	got, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if got.API.Port != 7777 {
		t.Errorf("Port = %d, want 7777", got.API.Port)
	}
}
