package models

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ProfileDefaults holds per-profile export preferences applied when a
// workout does not specify its own.
type ProfileDefaults struct {
	ProfileID            string
	DistanceHandling     string
	DefaultExerciseValue string
	IgnoreDistance       bool
	UpdatedAt            time.Time
}

// Built-in defaults used when a profile never saved preferences.
const (
	DefaultDistanceHandling     = "lap"
	DefaultDefaultExerciseValue = "lap"
)

// GetProfileDefaults retrieves a profile's preferences, falling back to the
// built-in defaults when none were saved.
func GetProfileDefaults(db *sql.DB, profileID string) (*ProfileDefaults, error) {
	d := &ProfileDefaults{}
	err := db.QueryRow(
		`SELECT profile_id, distance_handling, default_exercise_value, ignore_distance, updated_at
		 FROM profile_defaults
		 WHERE profile_id = ?`, profileID,
	).Scan(&d.ProfileID, &d.DistanceHandling, &d.DefaultExerciseValue, &d.IgnoreDistance, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &ProfileDefaults{
			ProfileID:            profileID,
			DistanceHandling:     DefaultDistanceHandling,
			DefaultExerciseValue: DefaultDefaultExerciseValue,
			IgnoreDistance:       true,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("models: get profile defaults for %q: %w", profileID, err)
	}
	return d, nil
}

// SetProfileDefaults saves a profile's preferences, replacing any existing
// row.
func SetProfileDefaults(db *sql.DB, profileID, distanceHandling, defaultExerciseValue string, ignoreDistance bool) (*ProfileDefaults, error) {
	_, err := db.Exec(
		`INSERT INTO profile_defaults (profile_id, distance_handling, default_exercise_value, ignore_distance)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(profile_id) DO UPDATE SET
		   distance_handling = excluded.distance_handling,
		   default_exercise_value = excluded.default_exercise_value,
		   ignore_distance = excluded.ignore_distance,
		   updated_at = CURRENT_TIMESTAMP`,
		profileID, distanceHandling, defaultExerciseValue, ignoreDistance,
	)
	if err != nil {
		return nil, fmt.Errorf("models: set profile defaults for %q: %w", profileID, err)
	}
	return GetProfileDefaults(db, profileID)
}
