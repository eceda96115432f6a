package models

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"
)

// SettingDefinition describes a runtime-tunable application setting.
type SettingDefinition struct {
	Key         string // DB key, e.g. "maintenance.interval_hours"
	EnvVar      string // Override env var, e.g. "WMEC_MAINTENANCE_INTERVAL_HOURS"
	Default     string // Built-in default value
	Description string
}

// SettingsRegistry defines all known application settings.
var SettingsRegistry = []SettingDefinition{
	{
		Key: "maintenance.interval_hours", EnvVar: "WMEC_MAINTENANCE_INTERVAL_HOURS", Default: "6",
		Description: "How often background maintenance runs (1-168 hours)",
	},
	{
		Key: "maintenance.stale_job_hours", EnvVar: "", Default: "24",
		Description: "Running bulk import jobs idle longer than this are failed as abandoned (1-168 hours)",
	},
	{
		Key: "pairing.max_tokens_per_hour", EnvVar: "", Default: "5",
		Description: "Pairing tokens one profile may generate per hour",
	},
}

// GetSetting returns a configuration value using the resolution chain:
// env var, then app_settings row, then built-in default.
func GetSetting(db *sql.DB, key string) string {
	def := findDefinition(key)
	if def == nil {
		return ""
	}

	if def.EnvVar != "" {
		if v := os.Getenv(def.EnvVar); v != "" {
			return v
		}
	}

	var raw string
	err := db.QueryRow(`SELECT value FROM app_settings WHERE key = ?`, key).Scan(&raw)
	if err == nil {
		return raw
	}

	return def.Default
}

// SetSetting stores a configuration value in the database.
func SetSetting(db *sql.DB, key, value string) error {
	if findDefinition(key) == nil {
		return fmt.Errorf("models: unknown setting key %q", key)
	}

	_, err := db.Exec(
		`INSERT INTO app_settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("models: set setting %q: %w", key, err)
	}
	return nil
}

// DeleteSetting removes a setting from the database, reverting it to the env
// var or built-in default.
func DeleteSetting(db *sql.DB, key string) error {
	_, err := db.Exec(`DELETE FROM app_settings WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("models: delete setting %q: %w", key, err)
	}
	return nil
}

// GetMaintenanceIntervalHours returns the scheduler interval from app settings.
func GetMaintenanceIntervalHours(db *sql.DB) int {
	if v := GetSetting(db, "maintenance.interval_hours"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 && n <= 168 {
			return n
		}
	}
	return 6
}

// GetStaleJobHours returns how long a running bulk import job may go without
// progress before maintenance fails it.
func GetStaleJobHours(db *sql.DB) int {
	if v := GetSetting(db, "maintenance.stale_job_hours"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 && n <= 168 {
			return n
		}
	}
	return 24
}

// GetPairingTokensPerHour returns how many pairing tokens a profile may
// generate per hour.
func GetPairingTokensPerHour(db *sql.DB) int {
	if v := GetSetting(db, "pairing.max_tokens_per_hour"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			return n
		}
	}
	return 5
}

func findDefinition(key string) *SettingDefinition {
	for i := range SettingsRegistry {
		if SettingsRegistry[i].Key == key {
			return &SettingsRegistry[i]
		}
	}
	return nil
}
