package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/amakaflow/wmec/internal/blocks"
	"github.com/amakaflow/wmec/internal/bulkimport"
	"github.com/amakaflow/wmec/internal/catalog"
	"github.com/amakaflow/wmec/internal/export/fitenc"
	"github.com/amakaflow/wmec/internal/models"
)

// Workouts manages the saved workout store.
type Workouts struct {
	DB      *sql.DB
	Catalog *catalog.Catalog
}

type workoutDTO struct {
	ID               string          `json:"id"`
	Title            string          `json:"title"`
	Description      string          `json:"description,omitempty"`
	WorkoutData      json.RawMessage `json:"workout_data"`
	Sources          json.RawMessage `json:"sources"`
	Device           string          `json:"device"`
	Exports          json.RawMessage `json:"exports,omitempty"`
	Validation       json.RawMessage `json:"validation,omitempty"`
	IsExported       bool            `json:"is_exported"`
	ExportedAt       *time.Time      `json:"exported_at,omitempty"`
	ExportedToDevice string          `json:"exported_to_device,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func workoutResponse(w *models.Workout) workoutDTO {
	dto := workoutDTO{
		ID:               w.ID,
		Title:            w.Title,
		Description:      w.Description.String,
		WorkoutData:      json.RawMessage(w.WorkoutData),
		Sources:          json.RawMessage(w.Sources),
		Device:           w.Device,
		IsExported:       w.IsExported,
		ExportedToDevice: w.ExportedToDevice.String,
		CreatedAt:        w.CreatedAt,
		UpdatedAt:        w.UpdatedAt,
	}
	if w.Exports.Valid {
		dto.Exports = json.RawMessage(w.Exports.String)
	}
	if w.Validation.Valid {
		dto.Validation = json.RawMessage(w.Validation.String)
	}
	if w.ExportedAt.Valid {
		t := w.ExportedAt.Time
		dto.ExportedAt = &t
	}
	return dto
}

func validDevice(device string) bool {
	switch device {
	case bulkimport.DeviceGarmin, bulkimport.DeviceZwift, bulkimport.DeviceApple:
		return true
	}
	return false
}

// Save stores a workout for the profile. The title+device pair is unique
// per profile.
// POST /workouts
func (h *Workouts) Save(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string          `json:"title"`
		Description string          `json:"description"`
		WorkoutData json.RawMessage `json:"workout_data"`
		Sources     []string        `json:"sources"`
		Device      string          `json:"device"`
		Exports     json.RawMessage `json:"exports"`
		Validation  json.RawMessage `json:"validation"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.WorkoutData) == 0 || string(req.WorkoutData) == "null" {
		respondError(w, "workout_data is required", http.StatusUnprocessableEntity)
		return
	}
	if req.Device == "" {
		respondError(w, "device is required", http.StatusUnprocessableEntity)
		return
	}
	if !validDevice(req.Device) {
		respondError(w, fmt.Sprintf("unknown device %q", req.Device), http.StatusUnprocessableEntity)
		return
	}

	workout, err := blocks.Parse(req.WorkoutData)
	if err != nil {
		respondError(w, fmt.Sprintf("invalid workout: %v", err), http.StatusUnprocessableEntity)
		return
	}

	title := req.Title
	if title == "" {
		title = workout.Title
	}
	if title == "" {
		title = "Imported Workout"
	}

	sources := "[]"
	if len(req.Sources) > 0 {
		data, _ := json.Marshal(req.Sources)
		sources = string(data)
	}

	saved, err := models.SaveWorkout(h.DB, profileID(r), title, req.Description,
		string(req.WorkoutData), sources, req.Device, rawOrEmpty(req.Exports), rawOrEmpty(req.Validation))
	if errors.Is(err, models.ErrWorkoutExists) {
		respondError(w, "workout already exists for this device", http.StatusConflict)
		return
	}
	if err != nil {
		log.Printf("handlers: save workout: %v", err)
		respondError(w, "cannot save workout", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusCreated, workoutResponse(saved))
}

// rawOrEmpty renders optional raw JSON for storage, treating JSON null as
// absent.
func rawOrEmpty(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	return string(raw)
}

// List returns the profile's workouts, newest first.
// GET /workouts?device=&is_exported=&limit=
func (h *Workouts) List(w http.ResponseWriter, r *http.Request) {
	var exported *bool
	if v := r.URL.Query().Get("is_exported"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, "is_exported must be true or false", http.StatusUnprocessableEntity)
			return
		}
		exported = &parsed
	}

	all, err := models.ListWorkouts(h.DB, profileID(r), r.URL.Query().Get("device"),
		exported, queryInt(r, "limit", 0))
	if err != nil {
		log.Printf("handlers: list workouts: %v", err)
		respondError(w, "cannot list workouts", http.StatusInternalServerError)
		return
	}

	workouts := make([]workoutDTO, 0, len(all))
	for _, workout := range all {
		workouts = append(workouts, workoutResponse(workout))
	}

	respondJSON(w, http.StatusOK, struct {
		Total    int          `json:"total"`
		Workouts []workoutDTO `json:"workouts"`
	}{len(workouts), workouts})
}

// Get returns one stored workout.
// GET /workouts/{id}
func (h *Workouts) Get(w http.ResponseWriter, r *http.Request) {
	workout, ok := h.lookup(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, workoutResponse(workout))
}

// Delete removes one stored workout.
// DELETE /workouts/{id}
func (h *Workouts) Delete(w http.ResponseWriter, r *http.Request) {
	err := models.DeleteWorkout(h.DB, chi.URLParam(r, "id"), profileID(r))
	if errors.Is(err, models.ErrNotFound) {
		respondError(w, "workout not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("handlers: delete workout: %v", err)
		respondError(w, "cannot delete workout", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkExported records that a workout was delivered to a device.
// POST /workouts/{id}/exported
func (h *Workouts) MarkExported(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Device string `json:"device"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Device == "" {
		respondError(w, "device is required", http.StatusUnprocessableEntity)
		return
	}
	if !validDevice(req.Device) {
		respondError(w, fmt.Sprintf("unknown device %q", req.Device), http.StatusUnprocessableEntity)
		return
	}

	id, profile := chi.URLParam(r, "id"), profileID(r)
	err := models.MarkWorkoutExported(h.DB, id, profile, req.Device)
	if errors.Is(err, models.ErrNotFound) {
		respondError(w, "workout not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("handlers: mark workout exported: %v", err)
		respondError(w, "cannot mark workout exported", http.StatusInternalServerError)
		return
	}

	workout, err := models.GetWorkout(h.DB, id, profile)
	if err != nil {
		log.Printf("handlers: reload workout: %v", err)
		respondError(w, "cannot mark workout exported", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, workoutResponse(workout))
}

// DownloadFIT renders a stored workout as a FIT file on demand.
// GET /workouts/{id}/fit?use_lap_button=
func (h *Workouts) DownloadFIT(w http.ResponseWriter, r *http.Request) {
	workout, ok := h.lookup(w, r)
	if !ok {
		return
	}

	parsed, err := blocks.Parse([]byte(workout.WorkoutData))
	if err != nil {
		log.Printf("handlers: parse stored workout %s: %v", workout.ID, err)
		respondError(w, "stored workout data is invalid", http.StatusInternalServerError)
		return
	}

	data, err := fitenc.Encode(parsed, h.Catalog, fitenc.Options{
		UseLapButton: queryBool(r, "use_lap_button", false),
	})
	if err == fitenc.ErrNoSteps {
		respondError(w, "workout has no encodable exercises", http.StatusUnprocessableEntity)
		return
	}
	if err != nil {
		respondError(w, fmt.Sprintf("cannot encode FIT: %v", err), http.StatusInternalServerError)
		return
	}

	writeAttachment(w, exportFilename(workout.Title, ".fit"), "application/octet-stream", data)
}

func (h *Workouts) lookup(w http.ResponseWriter, r *http.Request) (*models.Workout, bool) {
	workout, err := models.GetWorkout(h.DB, chi.URLParam(r, "id"), profileID(r))
	if errors.Is(err, models.ErrNotFound) {
		respondError(w, "workout not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		log.Printf("handlers: get workout: %v", err)
		respondError(w, "cannot load workout", http.StatusInternalServerError)
		return nil, false
	}
	return workout, true
}
