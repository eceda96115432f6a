package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/amakaflow/wmec/internal/bulkimport"
	"github.com/amakaflow/wmec/internal/models"
)

// Bulk exposes the five-phase bulk import workflow over HTTP.
type Bulk struct {
	Service *bulkimport.Service
}

// bulkError maps service and store errors onto response codes.
func bulkError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		respondError(w, "bulk import job not found", http.StatusNotFound)
	case errors.Is(err, models.ErrJobFinished):
		respondError(w, "bulk import job already finished", http.StatusConflict)
	case errors.Is(err, bulkimport.ErrJobRunning):
		respondError(w, "bulk import job already running", http.StatusConflict)
	case errors.Is(err, bulkimport.ErrInvalidInput):
		respondError(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		log.Printf("handlers: bulk import: %v", err)
		respondError(w, "internal error", http.StatusInternalServerError)
	}
}

type detectedItemDTO struct {
	ID            string          `json:"id"`
	SourceIndex   int             `json:"source_index"`
	SourceType    string          `json:"source_type"`
	SourceRef     string          `json:"source_ref"`
	Title         string          `json:"title,omitempty"`
	ExerciseCount int             `json:"exercise_count"`
	BlockCount    int             `json:"block_count"`
	Confidence    float64         `json:"confidence"`
	ParsedWorkout json.RawMessage `json:"parsed_workout,omitempty"`
	Errors        json.RawMessage `json:"errors,omitempty"`
	Warnings      json.RawMessage `json:"warnings,omitempty"`
	Selected      bool            `json:"selected"`
	IsDuplicate   bool            `json:"is_duplicate"`
	DuplicateOf   string          `json:"duplicate_of,omitempty"`
}

func detectedItemResponse(item *models.DetectedItem) detectedItemDTO {
	dto := detectedItemDTO{
		ID:            item.ID,
		SourceIndex:   item.SourceIndex,
		SourceType:    item.SourceType,
		SourceRef:     item.SourceRef,
		Title:         item.ParsedTitle.String,
		ExerciseCount: item.ParsedExerciseCount,
		BlockCount:    item.ParsedBlockCount,
		Confidence:    item.Confidence,
		Selected:      item.Selected,
		IsDuplicate:   item.IsDuplicate,
		DuplicateOf:   item.DuplicateOf.String,
	}
	if item.ParsedWorkout.Valid {
		dto.ParsedWorkout = json.RawMessage(item.ParsedWorkout.String)
	}
	if item.Errors.Valid {
		dto.Errors = json.RawMessage(item.Errors.String)
	}
	if item.Warnings.Valid {
		dto.Warnings = json.RawMessage(item.Warnings.String)
	}
	return dto
}

// Detect opens a job and turns each source into a reviewable item.
// POST /bulk/detect
func (h *Bulk) Detect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SourceType string   `json:"source_type"`
		Sources    []string `json:"sources"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.Service.Detect(r.Context(), profileID(r), req.SourceType, req.Sources)
	if err != nil {
		bulkError(w, err)
		return
	}

	items := make([]detectedItemDTO, 0, len(result.Items))
	for _, item := range result.Items {
		items = append(items, detectedItemResponse(item))
	}

	respondJSON(w, http.StatusOK, struct {
		JobID          string                     `json:"job_id"`
		Items          []detectedItemDTO          `json:"items"`
		Total          int                        `json:"total"`
		SuccessCount   int                        `json:"success_count"`
		ErrorCount     int                        `json:"error_count"`
		ColumnMappings []bulkimport.ColumnMapping `json:"column_mappings,omitempty"`
	}{result.JobID, items, result.Total, result.SuccessCount, result.ErrorCount, result.ColumnMappings})
}

// MapColumns re-parses a file job under user-chosen column mappings.
// POST /bulk/map
func (h *Bulk) MapColumns(w http.ResponseWriter, r *http.Request) {
	var req struct {
		JobID          string                     `json:"job_id"`
		ColumnMappings []bulkimport.ColumnMapping `json:"column_mappings"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.JobID == "" {
		respondError(w, "job_id is required", http.StatusUnprocessableEntity)
		return
	}

	result, err := h.Service.MapColumns(req.JobID, profileID(r), req.ColumnMappings)
	if err != nil {
		bulkError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Match resolves every distinct exercise name across the job's items.
// POST /bulk/match
func (h *Bulk) Match(w http.ResponseWriter, r *http.Request) {
	var req struct {
		JobID        string            `json:"job_id"`
		UserMappings map[string]string `json:"user_mappings"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.JobID == "" {
		respondError(w, "job_id is required", http.StatusUnprocessableEntity)
		return
	}

	result, err := h.Service.Match(req.JobID, profileID(r), req.UserMappings)
	if err != nil {
		bulkError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Preview applies the caller's selection and assembles per-item previews.
// POST /bulk/preview
func (h *Bulk) Preview(w http.ResponseWriter, r *http.Request) {
	var req struct {
		JobID       string   `json:"job_id"`
		SelectedIDs []string `json:"selected_ids"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.JobID == "" {
		respondError(w, "job_id is required", http.StatusUnprocessableEntity)
		return
	}

	result, err := h.Service.Preview(req.JobID, profileID(r), req.SelectedIDs)
	if err != nil {
		bulkError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Execute imports the selected items to the target device.
// POST /bulk/execute
func (h *Bulk) Execute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		JobID      string   `json:"job_id"`
		WorkoutIDs []string `json:"workout_ids"`
		Device     string   `json:"device"`
		AsyncMode  bool     `json:"async_mode"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.JobID == "" {
		respondError(w, "job_id is required", http.StatusUnprocessableEntity)
		return
	}

	result, err := h.Service.Execute(r.Context(), req.JobID, profileID(r), req.WorkoutIDs, req.Device, req.AsyncMode)
	if err != nil {
		bulkError(w, err)
		return
	}

	status := http.StatusOK
	if req.AsyncMode {
		status = http.StatusAccepted
	}
	respondJSON(w, status, result)
}

type bulkStatusDTO struct {
	JobID          string          `json:"job_id"`
	Status         string          `json:"status"`
	Progress       int             `json:"progress"`
	CurrentItem    string          `json:"current_item,omitempty"`
	InputType      string          `json:"input_type"`
	TargetDevice   string          `json:"target_device,omitempty"`
	TotalItems     int             `json:"total_items"`
	ProcessedItems int             `json:"processed_items"`
	Results        json.RawMessage `json:"results,omitempty"`
	Error          string          `json:"error,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
}

// Status reports a job's progress for polling clients.
// GET /bulk/status/{job_id}
func (h *Bulk) Status(w http.ResponseWriter, r *http.Request) {
	job, err := models.GetBulkJob(h.Service.DB, chi.URLParam(r, "job_id"), profileID(r))
	if err != nil {
		bulkError(w, err)
		return
	}

	dto := bulkStatusDTO{
		JobID:          job.ID,
		Status:         job.Status,
		CurrentItem:    job.CurrentItem.String,
		InputType:      job.InputType,
		TargetDevice:   job.TargetDevice.String,
		TotalItems:     job.TotalItems,
		ProcessedItems: job.ProcessedItems,
		Error:          job.Error.String,
		CreatedAt:      job.CreatedAt,
		UpdatedAt:      job.UpdatedAt,
	}
	if job.TotalItems > 0 {
		dto.Progress = job.ProcessedItems * 100 / job.TotalItems
	}
	if job.Results.Valid {
		dto.Results = json.RawMessage(job.Results.String)
	}
	if job.CompletedAt.Valid {
		t := job.CompletedAt.Time
		dto.CompletedAt = &t
	}

	respondJSON(w, http.StatusOK, dto)
}

// Cancel stops a pending or running job. The item in flight finishes; the
// worker stops before starting the next one.
// POST /bulk/cancel/{job_id}
func (h *Bulk) Cancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")

	if err := models.CancelBulkJob(h.Service.DB, jobID, profileID(r)); err != nil {
		bulkError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, struct {
		JobID   string `json:"job_id"`
		Status  string `json:"status"`
		Message string `json:"message"`
	}{jobID, models.JobCancelled, "import cancelled"})
}
