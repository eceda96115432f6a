package models

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrWorkoutExists is returned when a profile already saved a workout with
// the same title for the same device.
var ErrWorkoutExists = errors.New("workout already exists for this title and device")

// Workout is a saved canonical workout together with its rendered exports.
type Workout struct {
	ID               string
	ProfileID        string
	Title            string
	Description      sql.NullString
	WorkoutData      string // canonical workout JSON
	Sources          string // JSON array of source descriptors
	Device           string
	Exports          sql.NullString // JSON object keyed by format
	Validation       sql.NullString // JSON validation report
	IsExported       bool
	ExportedAt       sql.NullTime
	ExportedToDevice sql.NullString
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// SaveWorkout stores a workout for a profile. The title+device pair is
// unique per profile; a duplicate returns ErrWorkoutExists.
func SaveWorkout(db *sql.DB, profileID, title, description, workoutData, sources, device, exports, validation string) (*Workout, error) {
	var descVal, exportsVal, validationVal sql.NullString
	if description != "" {
		descVal = sql.NullString{String: description, Valid: true}
	}
	if exports != "" {
		exportsVal = sql.NullString{String: exports, Valid: true}
	}
	if validation != "" {
		validationVal = sql.NullString{String: validation, Valid: true}
	}
	if sources == "" {
		sources = "[]"
	}

	id := uuid.NewString()
	_, err := db.Exec(
		`INSERT INTO workouts (id, profile_id, title, description, workout_data, sources, device, exports, validation)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, profileID, title, descVal, workoutData, sources, device, exportsVal, validationVal,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrWorkoutExists
		}
		return nil, fmt.Errorf("models: save workout %q for profile %q: %w", title, profileID, err)
	}

	return GetWorkout(db, id, profileID)
}

// GetWorkout retrieves a workout by id, scoped to a profile.
func GetWorkout(db *sql.DB, id, profileID string) (*Workout, error) {
	w := &Workout{}
	err := db.QueryRow(
		`SELECT id, profile_id, title, description, workout_data, sources, device, exports, validation,
		        is_exported, exported_at, exported_to_device, created_at, updated_at
		 FROM workouts
		 WHERE id = ? AND profile_id = ?`, id, profileID,
	).Scan(&w.ID, &w.ProfileID, &w.Title, &w.Description, &w.WorkoutData, &w.Sources, &w.Device,
		&w.Exports, &w.Validation, &w.IsExported, &w.ExportedAt, &w.ExportedToDevice, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("models: get workout %q: %w", id, err)
	}
	return w, nil
}

// DefaultWorkoutLimit caps list queries when the caller does not specify one.
const DefaultWorkoutLimit = 50

// ListWorkouts returns a profile's workouts ordered by creation time
// descending. device and exported are optional filters; pass "" and nil to
// skip them. limit <= 0 applies DefaultWorkoutLimit.
func ListWorkouts(db *sql.DB, profileID, device string, exported *bool, limit int) ([]*Workout, error) {
	if limit <= 0 {
		limit = DefaultWorkoutLimit
	}

	query := `SELECT id, profile_id, title, description, workout_data, sources, device, exports, validation,
	                 is_exported, exported_at, exported_to_device, created_at, updated_at
	          FROM workouts
	          WHERE profile_id = ?`
	args := []any{profileID}
	if device != "" {
		query += ` AND device = ?`
		args = append(args, device)
	}
	if exported != nil {
		query += ` AND is_exported = ?`
		args = append(args, *exported)
	}
	query += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("models: list workouts for profile %q: %w", profileID, err)
	}
	defer rows.Close()

	var workouts []*Workout
	for rows.Next() {
		w := &Workout{}
		if err := rows.Scan(&w.ID, &w.ProfileID, &w.Title, &w.Description, &w.WorkoutData, &w.Sources, &w.Device,
			&w.Exports, &w.Validation, &w.IsExported, &w.ExportedAt, &w.ExportedToDevice, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("models: scan workout: %w", err)
		}
		workouts = append(workouts, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return workouts, nil
}

// MarkWorkoutExported records that a workout was delivered to a device.
func MarkWorkoutExported(db *sql.DB, id, profileID, device string) error {
	result, err := db.Exec(
		`UPDATE workouts
		 SET is_exported = 1, exported_at = CURRENT_TIMESTAMP, exported_to_device = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND profile_id = ?`,
		device, id, profileID,
	)
	if err != nil {
		return fmt.Errorf("models: mark workout %q exported: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteWorkout removes a workout.
func DeleteWorkout(db *sql.DB, id, profileID string) error {
	result, err := db.Exec(`DELETE FROM workouts WHERE id = ? AND profile_id = ?`, id, profileID)
	if err != nil {
		return fmt.Errorf("models: delete workout %q: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
