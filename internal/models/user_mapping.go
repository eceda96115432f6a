package models

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UserMapping is a per-profile override from a normalized exercise name to a
// Garmin catalog exercise. Callers normalize names before storing or looking
// them up.
type UserMapping struct {
	ID             int64
	ProfileID      string
	NormalizedName string
	GarminName     string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AddUserMapping stores a mapping override, replacing any existing mapping
// for the same normalized name.
func AddUserMapping(db *sql.DB, profileID, normalizedName, garminName string) (*UserMapping, error) {
	_, err := db.Exec(
		`INSERT INTO user_mappings (profile_id, normalized_name, garmin_name)
		 VALUES (?, ?, ?)
		 ON CONFLICT(profile_id, normalized_name) DO UPDATE SET
		   garmin_name = excluded.garmin_name,
		   updated_at = CURRENT_TIMESTAMP`,
		profileID, normalizedName, garminName,
	)
	if err != nil {
		return nil, fmt.Errorf("models: add user mapping %q for profile %q: %w", normalizedName, profileID, err)
	}
	return GetUserMapping(db, profileID, normalizedName)
}

// GetUserMapping retrieves a profile's mapping for a normalized name.
func GetUserMapping(db *sql.DB, profileID, normalizedName string) (*UserMapping, error) {
	m := &UserMapping{}
	err := db.QueryRow(
		`SELECT id, profile_id, normalized_name, garmin_name, created_at, updated_at
		 FROM user_mappings
		 WHERE profile_id = ? AND normalized_name = ?`, profileID, normalizedName,
	).Scan(&m.ID, &m.ProfileID, &m.NormalizedName, &m.GarminName, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("models: get user mapping %q for profile %q: %w", normalizedName, profileID, err)
	}
	return m, nil
}

// ListUserMappings returns all of a profile's mappings ordered by
// normalized name.
func ListUserMappings(db *sql.DB, profileID string) ([]*UserMapping, error) {
	rows, err := db.Query(
		`SELECT id, profile_id, normalized_name, garmin_name, created_at, updated_at
		 FROM user_mappings
		 WHERE profile_id = ?
		 ORDER BY normalized_name`, profileID)
	if err != nil {
		return nil, fmt.Errorf("models: list user mappings for profile %q: %w", profileID, err)
	}
	defer rows.Close()

	var mappings []*UserMapping
	for rows.Next() {
		m := &UserMapping{}
		if err := rows.Scan(&m.ID, &m.ProfileID, &m.NormalizedName, &m.GarminName, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("models: scan user mapping: %w", err)
		}
		mappings = append(mappings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return mappings, nil
}

// RemoveUserMapping deletes a profile's mapping for a normalized name.
func RemoveUserMapping(db *sql.DB, profileID, normalizedName string) error {
	result, err := db.Exec(
		`DELETE FROM user_mappings WHERE profile_id = ? AND normalized_name = ?`,
		profileID, normalizedName,
	)
	if err != nil {
		return fmt.Errorf("models: remove user mapping %q for profile %q: %w", normalizedName, profileID, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearUserMappings deletes all of a profile's mappings and reports how many
// were removed.
func ClearUserMappings(db *sql.DB, profileID string) (int64, error) {
	result, err := db.Exec(`DELETE FROM user_mappings WHERE profile_id = ?`, profileID)
	if err != nil {
		return 0, fmt.Errorf("models: clear user mappings for profile %q: %w", profileID, err)
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}
