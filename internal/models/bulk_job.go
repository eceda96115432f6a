package models

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrJobFinished is returned on writes to a bulk import job that already
// reached a terminal status.
var ErrJobFinished = errors.New("bulk import job already finished")

// Bulk import job statuses. Complete, failed, and cancelled are terminal.
const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobComplete  = "complete"
	JobFailed    = "failed"
	JobCancelled = "cancelled"
)

// BulkImportJob tracks one bulk import through detection, mapping, matching,
// preview, and execution.
type BulkImportJob struct {
	ID              string
	ProfileID       string
	InputType       string
	Status          string
	TotalItems      int
	ProcessedItems  int
	CurrentItem     sql.NullString
	TargetDevice    sql.NullString
	ColumnMappings  sql.NullString // JSON object, CSV column -> field
	ExerciseMatches sql.NullString // JSON match report
	Results         sql.NullString // JSON per-item outcomes
	Error           sql.NullString
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     sql.NullTime
}

// Terminal reports whether the job reached a final status.
func (j *BulkImportJob) Terminal() bool {
	return j.Status == JobComplete || j.Status == JobFailed || j.Status == JobCancelled
}

// CreateBulkJob opens a new pending job for a profile.
func CreateBulkJob(db *sql.DB, profileID, inputType string) (*BulkImportJob, error) {
	id := uuid.NewString()
	now := time.Now().UTC()
	_, err := db.Exec(
		`INSERT INTO bulk_import_jobs (id, profile_id, input_type, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, profileID, inputType, JobPending, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("models: create bulk job for profile %q: %w", profileID, err)
	}
	return GetBulkJob(db, id, profileID)
}

// GetBulkJob retrieves a job by id, scoped to a profile.
func GetBulkJob(db *sql.DB, id, profileID string) (*BulkImportJob, error) {
	j := &BulkImportJob{}
	err := db.QueryRow(
		`SELECT id, profile_id, input_type, status, total_items, processed_items, current_item,
		        target_device, column_mappings, exercise_matches, results, error,
		        created_at, updated_at, completed_at
		 FROM bulk_import_jobs
		 WHERE id = ? AND profile_id = ?`, id, profileID,
	).Scan(&j.ID, &j.ProfileID, &j.InputType, &j.Status, &j.TotalItems, &j.ProcessedItems, &j.CurrentItem,
		&j.TargetDevice, &j.ColumnMappings, &j.ExerciseMatches, &j.Results, &j.Error,
		&j.CreatedAt, &j.UpdatedAt, &j.CompletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("models: get bulk job %q: %w", id, err)
	}
	return j, nil
}

// DefaultJobLimit caps job list queries when the caller does not specify one.
const DefaultJobLimit = 20

// ListBulkJobs returns a profile's jobs ordered by creation time descending.
func ListBulkJobs(db *sql.DB, profileID string, limit int) ([]*BulkImportJob, error) {
	if limit <= 0 {
		limit = DefaultJobLimit
	}

	rows, err := db.Query(
		`SELECT id, profile_id, input_type, status, total_items, processed_items, current_item,
		        target_device, column_mappings, exercise_matches, results, error,
		        created_at, updated_at, completed_at
		 FROM bulk_import_jobs
		 WHERE profile_id = ?
		 ORDER BY created_at DESC, id
		 LIMIT ?`, profileID, limit)
	if err != nil {
		return nil, fmt.Errorf("models: list bulk jobs for profile %q: %w", profileID, err)
	}
	defer rows.Close()

	var jobs []*BulkImportJob
	for rows.Next() {
		j := &BulkImportJob{}
		if err := rows.Scan(&j.ID, &j.ProfileID, &j.InputType, &j.Status, &j.TotalItems, &j.ProcessedItems, &j.CurrentItem,
			&j.TargetDevice, &j.ColumnMappings, &j.ExerciseMatches, &j.Results, &j.Error,
			&j.CreatedAt, &j.UpdatedAt, &j.CompletedAt); err != nil {
			return nil, fmt.Errorf("models: scan bulk job: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return jobs, nil
}

// jobUpdateBlocked reports why a status-guarded update matched no rows:
// either the job does not exist or it already reached a terminal status.
func jobUpdateBlocked(db *sql.DB, id string) error {
	var status string
	err := db.QueryRow(`SELECT status FROM bulk_import_jobs WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("models: check bulk job %q: %w", id, err)
	}
	return ErrJobFinished
}

// SetBulkJobTotal records how many items detection produced. Execution later
// overwrites the total with the selected item count.
func SetBulkJobTotal(db *sql.DB, id string, totalItems int) error {
	result, err := db.Exec(
		`UPDATE bulk_import_jobs
		 SET total_items = ?, updated_at = ?
		 WHERE id = ? AND status NOT IN (?, ?, ?)`,
		totalItems, time.Now().UTC(), id, JobComplete, JobFailed, JobCancelled,
	)
	if err != nil {
		return fmt.Errorf("models: set bulk job %q total: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return jobUpdateBlocked(db, id)
	}
	return nil
}

// StartBulkJob moves a job to running with the item count and target device
// for execution.
func StartBulkJob(db *sql.DB, id, targetDevice string, totalItems int) error {
	result, err := db.Exec(
		`UPDATE bulk_import_jobs
		 SET status = ?, target_device = ?, total_items = ?, processed_items = 0, current_item = NULL, updated_at = ?
		 WHERE id = ? AND status NOT IN (?, ?, ?)`,
		JobRunning, targetDevice, totalItems, time.Now().UTC(), id, JobComplete, JobFailed, JobCancelled,
	)
	if err != nil {
		return fmt.Errorf("models: start bulk job %q: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return jobUpdateBlocked(db, id)
	}
	return nil
}

// UpdateBulkJobProgress records how many items finished and which item is in
// flight. Returns ErrJobFinished once the job is terminal, which running
// workers treat as a stop signal.
func UpdateBulkJobProgress(db *sql.DB, id string, processedItems int, currentItem string) error {
	var currentVal sql.NullString
	if currentItem != "" {
		currentVal = sql.NullString{String: currentItem, Valid: true}
	}

	result, err := db.Exec(
		`UPDATE bulk_import_jobs
		 SET processed_items = ?, current_item = ?, updated_at = ?
		 WHERE id = ? AND status NOT IN (?, ?, ?)`,
		processedItems, currentVal, time.Now().UTC(), id, JobComplete, JobFailed, JobCancelled,
	)
	if err != nil {
		return fmt.Errorf("models: update bulk job %q progress: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return jobUpdateBlocked(db, id)
	}
	return nil
}

// SetBulkJobColumnMappings stores the CSV column mapping chosen for a job.
func SetBulkJobColumnMappings(db *sql.DB, id, profileID, mappingsJSON string) error {
	result, err := db.Exec(
		`UPDATE bulk_import_jobs
		 SET column_mappings = ?, updated_at = ?
		 WHERE id = ? AND profile_id = ? AND status NOT IN (?, ?, ?)`,
		mappingsJSON, time.Now().UTC(), id, profileID, JobComplete, JobFailed, JobCancelled,
	)
	if err != nil {
		return fmt.Errorf("models: set bulk job %q column mappings: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		if _, err := GetBulkJob(db, id, profileID); err != nil {
			return err
		}
		return ErrJobFinished
	}
	return nil
}

// SetBulkJobMatches stores the exercise match report produced for a job.
func SetBulkJobMatches(db *sql.DB, id, matchesJSON string) error {
	result, err := db.Exec(
		`UPDATE bulk_import_jobs
		 SET exercise_matches = ?, updated_at = ?
		 WHERE id = ? AND status NOT IN (?, ?, ?)`,
		matchesJSON, time.Now().UTC(), id, JobComplete, JobFailed, JobCancelled,
	)
	if err != nil {
		return fmt.Errorf("models: set bulk job %q matches: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return jobUpdateBlocked(db, id)
	}
	return nil
}

// CompleteBulkJob marks a job complete with its per-item results.
func CompleteBulkJob(db *sql.DB, id, resultsJSON string) error {
	now := time.Now().UTC()
	result, err := db.Exec(
		`UPDATE bulk_import_jobs
		 SET status = ?, results = ?, current_item = NULL, completed_at = ?, updated_at = ?
		 WHERE id = ? AND status NOT IN (?, ?, ?)`,
		JobComplete, resultsJSON, now, now, id, JobComplete, JobFailed, JobCancelled,
	)
	if err != nil {
		return fmt.Errorf("models: complete bulk job %q: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return jobUpdateBlocked(db, id)
	}
	return nil
}

// FailBulkJob marks a job failed with an error message.
func FailBulkJob(db *sql.DB, id, message string) error {
	now := time.Now().UTC()
	result, err := db.Exec(
		`UPDATE bulk_import_jobs
		 SET status = ?, error = ?, current_item = NULL, completed_at = ?, updated_at = ?
		 WHERE id = ? AND status NOT IN (?, ?, ?)`,
		JobFailed, message, now, now, id, JobComplete, JobFailed, JobCancelled,
	)
	if err != nil {
		return fmt.Errorf("models: fail bulk job %q: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return jobUpdateBlocked(db, id)
	}
	return nil
}

// CancelBulkJob cancels a pending or running job. A worker mid-item observes
// the cancellation on its next progress write.
func CancelBulkJob(db *sql.DB, id, profileID string) error {
	now := time.Now().UTC()
	result, err := db.Exec(
		`UPDATE bulk_import_jobs
		 SET status = ?, current_item = NULL, completed_at = ?, updated_at = ?
		 WHERE id = ? AND profile_id = ? AND status NOT IN (?, ?, ?)`,
		JobCancelled, now, now, id, profileID, JobComplete, JobFailed, JobCancelled,
	)
	if err != nil {
		return fmt.Errorf("models: cancel bulk job %q: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		if _, err := GetBulkJob(db, id, profileID); err != nil {
			return err
		}
		return ErrJobFinished
	}
	return nil
}

// RecordCancelledBulkJobResults persists the partial results a worker had
// accumulated when it observed cancellation, and settles processed_items to
// the count it actually finished. Only a cancelled job matches, so the write
// cannot clobber a completed or failed one.
func RecordCancelledBulkJobResults(db *sql.DB, id string, processedItems int, resultsJSON string) error {
	now := time.Now().UTC()
	result, err := db.Exec(
		`UPDATE bulk_import_jobs
		 SET processed_items = ?, results = ?, completed_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		processedItems, resultsJSON, now, now, id, JobCancelled,
	)
	if err != nil {
		return fmt.Errorf("models: record cancelled bulk job %q results: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		var exists int
		if err := db.QueryRow(`SELECT 1 FROM bulk_import_jobs WHERE id = ?`, id).Scan(&exists); errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
	}
	return nil
}

// MarkAbandonedBulkJobs fails running jobs whose last update is older than
// cutoff and reports how many were swept.
func MarkAbandonedBulkJobs(db *sql.DB, cutoff time.Time) (int64, error) {
	now := time.Now().UTC()
	result, err := db.Exec(
		`UPDATE bulk_import_jobs
		 SET status = ?, error = 'abandoned', current_item = NULL, completed_at = ?, updated_at = ?
		 WHERE status = ? AND updated_at < ?`,
		JobFailed, now, now, JobRunning, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("models: mark abandoned bulk jobs: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}
