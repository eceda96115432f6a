package models

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DetectedItem is one workout candidate found during bulk import detection,
// with its parse outcome.
type DetectedItem struct {
	ID                  string
	JobID               string
	ProfileID           string
	SourceIndex         int
	SourceType          string
	SourceRef           string
	RawData             string // JSON of the raw source fragment
	ParsedWorkout       sql.NullString
	ParsedTitle         sql.NullString
	ParsedExerciseCount int
	ParsedBlockCount    int
	Confidence          float64
	Errors              sql.NullString // JSON array
	Warnings            sql.NullString // JSON array
	Selected            bool
	IsDuplicate         bool
	DuplicateOf         sql.NullString
	CreatedAt           time.Time
}

// InsertDetectedItems stores a detection batch atomically. Items without an
// id are assigned one.
func InsertDetectedItems(db *sql.DB, items []*DetectedItem) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("models: insert detected items: %w", err)
	}
	defer tx.Rollback()

	for _, item := range items {
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		_, err := tx.Exec(
			`INSERT INTO bulk_detected_items (id, job_id, profile_id, source_index, source_type, source_ref,
			   raw_data, parsed_workout, parsed_title, parsed_exercise_count, parsed_block_count,
			   confidence, errors, warnings, selected, is_duplicate, duplicate_of)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID, item.JobID, item.ProfileID, item.SourceIndex, item.SourceType, item.SourceRef,
			item.RawData, item.ParsedWorkout, item.ParsedTitle, item.ParsedExerciseCount, item.ParsedBlockCount,
			item.Confidence, item.Errors, item.Warnings, item.Selected, item.IsDuplicate, item.DuplicateOf,
		)
		if err != nil {
			return fmt.Errorf("models: insert detected item %d for job %q: %w", item.SourceIndex, item.JobID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("models: insert detected items: %w", err)
	}
	return nil
}

// ListDetectedItems returns a job's items in source order. selectedOnly
// restricts the list to items still marked for import.
func ListDetectedItems(db *sql.DB, jobID, profileID string, selectedOnly bool) ([]*DetectedItem, error) {
	query := `SELECT id, job_id, profile_id, source_index, source_type, source_ref,
	                 raw_data, parsed_workout, parsed_title, parsed_exercise_count, parsed_block_count,
	                 confidence, errors, warnings, selected, is_duplicate, duplicate_of, created_at
	          FROM bulk_detected_items
	          WHERE job_id = ? AND profile_id = ?`
	if selectedOnly {
		query += ` AND selected = 1`
	}
	query += ` ORDER BY source_index`

	rows, err := db.Query(query, jobID, profileID)
	if err != nil {
		return nil, fmt.Errorf("models: list detected items for job %q: %w", jobID, err)
	}
	defer rows.Close()

	var items []*DetectedItem
	for rows.Next() {
		item := &DetectedItem{}
		if err := rows.Scan(&item.ID, &item.JobID, &item.ProfileID, &item.SourceIndex, &item.SourceType, &item.SourceRef,
			&item.RawData, &item.ParsedWorkout, &item.ParsedTitle, &item.ParsedExerciseCount, &item.ParsedBlockCount,
			&item.Confidence, &item.Errors, &item.Warnings, &item.Selected, &item.IsDuplicate, &item.DuplicateOf, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("models: scan detected item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// GetDetectedItem retrieves one item by id, scoped to a profile.
func GetDetectedItem(db *sql.DB, id, profileID string) (*DetectedItem, error) {
	item := &DetectedItem{}
	err := db.QueryRow(
		`SELECT id, job_id, profile_id, source_index, source_type, source_ref,
		        raw_data, parsed_workout, parsed_title, parsed_exercise_count, parsed_block_count,
		        confidence, errors, warnings, selected, is_duplicate, duplicate_of, created_at
		 FROM bulk_detected_items
		 WHERE id = ? AND profile_id = ?`, id, profileID,
	).Scan(&item.ID, &item.JobID, &item.ProfileID, &item.SourceIndex, &item.SourceType, &item.SourceRef,
		&item.RawData, &item.ParsedWorkout, &item.ParsedTitle, &item.ParsedExerciseCount, &item.ParsedBlockCount,
		&item.Confidence, &item.Errors, &item.Warnings, &item.Selected, &item.IsDuplicate, &item.DuplicateOf, &item.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("models: get detected item %q: %w", id, err)
	}
	return item, nil
}

// SetDetectedItemSelected toggles whether an item is included in execution.
func SetDetectedItemSelected(db *sql.DB, id, profileID string, selected bool) error {
	result, err := db.Exec(
		`UPDATE bulk_detected_items SET selected = ? WHERE id = ? AND profile_id = ?`,
		selected, id, profileID,
	)
	if err != nil {
		return fmt.Errorf("models: set detected item %q selected: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkDetectedItemDuplicate flags an item as a duplicate of an existing
// workout or earlier item and drops it from the default selection.
func MarkDetectedItemDuplicate(db *sql.DB, id, duplicateOf string) error {
	result, err := db.Exec(
		`UPDATE bulk_detected_items SET is_duplicate = 1, duplicate_of = ?, selected = 0 WHERE id = ?`,
		duplicateOf, id,
	)
	if err != nil {
		return fmt.Errorf("models: mark detected item %q duplicate: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearDetectedItemDuplicates resets duplicate marks for a job so a preview
// pass can recompute them from scratch.
func ClearDetectedItemDuplicates(db *sql.DB, jobID string) error {
	_, err := db.Exec(
		`UPDATE bulk_detected_items SET is_duplicate = 0, duplicate_of = NULL WHERE job_id = ?`,
		jobID,
	)
	if err != nil {
		return fmt.Errorf("models: clear duplicates for job %q: %w", jobID, err)
	}
	return nil
}

// DeleteDetectedItems removes all items for a job, used when a later phase
// re-runs detection with new settings.
func DeleteDetectedItems(db *sql.DB, jobID string) (int64, error) {
	result, err := db.Exec(`DELETE FROM bulk_detected_items WHERE job_id = ?`, jobID)
	if err != nil {
		return 0, fmt.Errorf("models: delete detected items for job %q: %w", jobID, err)
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}
