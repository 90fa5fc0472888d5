// Package scanner implements the operator side of the check-in flow: the
// persisted scan configuration, the input accumulator that auto-fires
// completed identifiers, the API client, and the result view the terminal
// renders from.
package scanner

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config is the operator's current scan selection. The scan flow only
// reads it; only the setup flow writes it.
type Config struct {
	EventID           *int64 `json:"event_id"`
	EventLocationID   *int64 `json:"event_location_id"`
	EventEntryPointID *int64 `json:"event_entry_point_id"`
	RosterID          *int64 `json:"roster_id,omitempty"`
	DeviceID          string `json:"device_id,omitempty"`
}

// IsComplete reports whether scanning is permitted: event, event location
// and entry point must all be selected. A missing roster means "admit any
// identifier", not an incomplete config.
func (c Config) IsComplete() bool {
	return c.EventID != nil && c.EventLocationID != nil && c.EventEntryPointID != nil
}

// ConfigStore persists one Config as a JSON file so the selection survives
// restarts of the scanner device.
type ConfigStore struct {
	path string
}

func NewConfigStore(path string) *ConfigStore {
	return &ConfigStore{path: path}
}

// DefaultConfigPath returns the per-user location of the scan config file.
func DefaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "gatescan", "scan-config.json"), nil
}

// Load reads the persisted config. A missing or unparseable file yields
// the all-null default rather than an error: a corrupt file must never
// block the operator from reaching the setup flow.
func (s *ConfigStore) Load() Config {
	var cfg Config
	data, err := os.ReadFile(s.path)
	if err != nil {
		return Config{}
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}
	}
	return cfg
}

// Save writes the config, creating the parent directory if needed.
func (s *ConfigStore) Save(cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

// Clear resets the selection to the all-null default, keeping the device
// id so the device keeps a stable identity across reconfigurations.
func (s *ConfigStore) Clear() error {
	cfg := s.Load()
	return s.Save(Config{DeviceID: cfg.DeviceID})
}
