package models

import "testing"

func TestGetSetting_EnvOverride(t *testing.T) {
	db := testDB(t)

	// Set a DB value.
	if err := SetSetting(db, "maintenance.interval_hours", "12"); err != nil {
		t.Fatalf("set setting: %v", err)
	}

	// Without env var, should return DB value.
	if got := GetSetting(db, "maintenance.interval_hours"); got != "12" {
		t.Errorf("expected '12' from DB, got %q", got)
	}

	// With env var, env should win.
	t.Setenv("WMEC_MAINTENANCE_INTERVAL_HOURS", "3")
	if got := GetSetting(db, "maintenance.interval_hours"); got != "3" {
		t.Errorf("expected '3' from env, got %q", got)
	}
}

func TestGetSetting_Default(t *testing.T) {
	db := testDB(t)

	if got := GetSetting(db, "maintenance.stale_job_hours"); got != "24" {
		t.Errorf("expected default '24', got %q", got)
	}
}

func TestGetSetting_UnknownKey(t *testing.T) {
	db := testDB(t)

	if got := GetSetting(db, "nonexistent.key"); got != "" {
		t.Errorf("expected empty string for unknown key, got %q", got)
	}
}

func TestSetSetting_CreateAndUpdate(t *testing.T) {
	db := testDB(t)

	// Create.
	if err := SetSetting(db, "pairing.max_tokens_per_hour", "10"); err != nil {
		t.Fatalf("set setting: %v", err)
	}
	if got := GetSetting(db, "pairing.max_tokens_per_hour"); got != "10" {
		t.Errorf("expected '10', got %q", got)
	}

	// Update (upsert).
	if err := SetSetting(db, "pairing.max_tokens_per_hour", "2"); err != nil {
		t.Fatalf("update setting: %v", err)
	}
	if got := GetSetting(db, "pairing.max_tokens_per_hour"); got != "2" {
		t.Errorf("expected '2', got %q", got)
	}
}

func TestSetSetting_UnknownKey(t *testing.T) {
	db := testDB(t)
	if err := SetSetting(db, "fake.key", "value"); err == nil {
		t.Fatal("expected error for unknown key, got nil")
	}
}

func TestDeleteSetting(t *testing.T) {
	db := testDB(t)

	if err := SetSetting(db, "maintenance.stale_job_hours", "48"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := DeleteSetting(db, "maintenance.stale_job_hours"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	// Should fall back to the built-in default.
	if got := GetSetting(db, "maintenance.stale_job_hours"); got != "24" {
		t.Errorf("expected default '24' after delete, got %q", got)
	}
}

func TestGetMaintenanceIntervalHours(t *testing.T) {
	db := testDB(t)

	if got := GetMaintenanceIntervalHours(db); got != 6 {
		t.Errorf("expected default 6, got %d", got)
	}

	if err := SetSetting(db, "maintenance.interval_hours", "12"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := GetMaintenanceIntervalHours(db); got != 12 {
		t.Errorf("expected 12, got %d", got)
	}

	// Out-of-range and junk values fall back to the default.
	_ = SetSetting(db, "maintenance.interval_hours", "500")
	if got := GetMaintenanceIntervalHours(db); got != 6 {
		t.Errorf("expected 6 for out-of-range value, got %d", got)
	}
	_ = SetSetting(db, "maintenance.interval_hours", "soon")
	if got := GetMaintenanceIntervalHours(db); got != 6 {
		t.Errorf("expected 6 for junk value, got %d", got)
	}
}

func TestGetStaleJobHours(t *testing.T) {
	db := testDB(t)

	if got := GetStaleJobHours(db); got != 24 {
		t.Errorf("expected default 24, got %d", got)
	}

	if err := SetSetting(db, "maintenance.stale_job_hours", "48"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := GetStaleJobHours(db); got != 48 {
		t.Errorf("expected 48, got %d", got)
	}
}

func TestGetPairingTokensPerHour(t *testing.T) {
	db := testDB(t)

	if got := GetPairingTokensPerHour(db); got != 5 {
		t.Errorf("expected default 5, got %d", got)
	}

	if err := SetSetting(db, "pairing.max_tokens_per_hour", "2"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := GetPairingTokensPerHour(db); got != 2 {
		t.Errorf("expected 2, got %d", got)
	}

	_ = SetSetting(db, "pairing.max_tokens_per_hour", "0")
	if got := GetPairingTokensPerHour(db); got != 5 {
		t.Errorf("expected 5 for invalid value, got %d", got)
	}
}
