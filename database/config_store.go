package database

import (
	"encoding/json"
	"fmt"

	"fpshield/logger"
	"fpshield/models"
)

// ConfigStore persists the protection configuration as a single versioned
// JSON blob in the app_settings table. It satisfies core.ConfigSource.
type ConfigStore struct{}

// LoadConfig reads and migrates the stored blob. A missing blob seeds the
// defaults; a corrupt blob falls back to defaults without failing, so a
// working configuration is always available. Blobs persisted under an
// older or structurally incomplete schema are rewritten in migrated form
// under the current version tag.
func (ConfigStore) LoadConfig() (models.Config, error) {
	blob, err := GetSetting(models.ProtectionConfigKey)
	if err != nil {
		return models.Config{}, fmt.Errorf("reading protection config: %w", err)
	}

	if blob == "" {
		cfg := models.DefaultConfig()
		if _, err := (ConfigStore{}).SaveConfig(cfg); err != nil {
			return models.Config{}, fmt.Errorf("seeding default protection config: %w", err)
		}
		logger.Info("ConfigStore: no stored config, seeded defaults (schema v%d)", models.SchemaVersion)
		return cfg, nil
	}

	cfg, parseErr := models.ParseConfig([]byte(blob))
	if parseErr != nil {
		logger.Error("ConfigStore: stored config unreadable (%v), falling back to defaults", parseErr)
		cfg = models.DefaultConfig()
	}

	if parseErr != nil || !models.BlobCurrent([]byte(blob)) {
		if _, err := (ConfigStore{}).SaveConfig(cfg); err != nil {
			logger.Error("ConfigStore: failed to rewrite migrated config: %v", err)
		} else {
			logger.Info("ConfigStore: rewrote stored config at schema v%d", models.SchemaVersion)
		}
	}
	return cfg, nil
}

// SaveConfig persists cfg. The write is skipped when the serialized form
// is byte-identical to the stored one, which bounds write amplification
// from settings autosave.
func (ConfigStore) SaveConfig(cfg models.Config) (bool, error) {
	cfg.SchemaVersion = models.SchemaVersion
	blob, err := json.Marshal(cfg)
	if err != nil {
		return false, fmt.Errorf("serializing protection config: %w", err)
	}

	stored, err := GetSetting(models.ProtectionConfigKey)
	if err == nil && stored == string(blob) {
		return false, nil
	}

	if err := SetSetting(models.ProtectionConfigKey, string(blob)); err != nil {
		return false, fmt.Errorf("writing protection config: %w", err)
	}
	return true, nil
}

// ResetConfig drops the stored blob and reseeds the defaults.
func ResetConfig() (models.Config, error) {
	if err := DeleteSetting(models.ProtectionConfigKey); err != nil {
		return models.Config{}, err
	}
	return ConfigStore{}.LoadConfig()
}
