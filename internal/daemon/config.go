// Package daemon manages the reloop daemon lifecycle and configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/reloop-eco/reloop/internal/domain"
)

// Config holds all daemon configuration.
type Config struct {
	API           APIConfig           `toml:"api"`
	Storage       StorageConfig       `toml:"storage"`
	Rewards       RewardsConfig       `toml:"rewards"`
	Sweep         SweepConfig         `toml:"sweep"`
	Notifications NotificationsConfig `toml:"notifications"`
	Telemetry     TelemetryConfig     `toml:"telemetry"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig controls where the ledger database lives.
type StorageConfig struct {
	Dir string `toml:"dir"`
}

// RewardsConfig tunes the reward calculation and the catalog source.
type RewardsConfig struct {
	CatalogFile         string  `toml:"catalog_file"`
	ConfidenceThreshold float64 `toml:"confidence_threshold"`
	ConfidencePenalty   float64 `toml:"confidence_penalty"`
}

// SweepConfig controls the mission expiry sweep.
type SweepConfig struct {
	Schedule string `toml:"schedule"`
}

// NotificationsConfig controls the delivery policy.
type NotificationsConfig struct {
	MaxPerDay  int    `toml:"max_per_day"`
	QuietStart string `toml:"quiet_start"`
	QuietEnd   string `toml:"quiet_end"`
}

// TelemetryConfig controls observability endpoints.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	policy := domain.DefaultNotificationPolicy()
	return Config{
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8090,
		},
		Storage: StorageConfig{
			Dir: reloopHome(),
		},
		Rewards: RewardsConfig{
			ConfidenceThreshold: 0.5,
			ConfidencePenalty:   0.5,
		},
		Sweep: SweepConfig{
			Schedule: "@hourly",
		},
		Notifications: NotificationsConfig{
			MaxPerDay:  policy.MaxPerDay,
			QuietStart: policy.QuietStart,
			QuietEnd:   policy.QuietEnd,
		},
		Telemetry: TelemetryConfig{
			Prometheus: true,
		},
	}
}

// LoadConfig reads config from ~/.reloop/config.toml, falling back to
// defaults when the file does not exist.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	path := filepath.Join(reloopHome(), "config.toml")

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes the config to ~/.reloop/config.toml.
func SaveConfig(cfg Config) error {
	path := filepath.Join(reloopHome(), "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// reloopHome returns the reloop data directory.
func reloopHome() string {
	if env := os.Getenv("RELOOP_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".reloop")
}
