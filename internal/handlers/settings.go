package handlers

import (
	"database/sql"
	"log"
	"net/http"

	"github.com/amakaflow/wmec/internal/models"
)

// Settings manages per-profile export preferences.
type Settings struct {
	DB *sql.DB
}

type defaultsDTO struct {
	DistanceHandling     string `json:"distance_handling"`
	DefaultExerciseValue string `json:"default_exercise_value"`
	IgnoreDistance       bool   `json:"ignore_distance"`
}

func defaultsResponse(d *models.ProfileDefaults) defaultsDTO {
	return defaultsDTO{d.DistanceHandling, d.DefaultExerciseValue, d.IgnoreDistance}
}

// Get returns the profile's export preferences, falling back to the
// built-in defaults when none were saved.
// GET /settings/defaults
func (h *Settings) Get(w http.ResponseWriter, r *http.Request) {
	defaults, err := models.GetProfileDefaults(h.DB, profileID(r))
	if err != nil {
		log.Printf("handlers: get profile defaults: %v", err)
		respondError(w, "cannot load settings", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, defaultsResponse(defaults))
}

// Put updates the profile's export preferences. Omitted fields keep their
// current values.
// PUT /settings/defaults
func (h *Settings) Put(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DistanceHandling     *string `json:"distance_handling"`
		DefaultExerciseValue *string `json:"default_exercise_value"`
		IgnoreDistance       *bool   `json:"ignore_distance"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	profile := profileID(r)
	current, err := models.GetProfileDefaults(h.DB, profile)
	if err != nil {
		log.Printf("handlers: get profile defaults: %v", err)
		respondError(w, "cannot load settings", http.StatusInternalServerError)
		return
	}

	if req.DistanceHandling != nil {
		current.DistanceHandling = *req.DistanceHandling
	}
	if req.DefaultExerciseValue != nil {
		current.DefaultExerciseValue = *req.DefaultExerciseValue
	}
	if req.IgnoreDistance != nil {
		current.IgnoreDistance = *req.IgnoreDistance
	}

	switch current.DistanceHandling {
	case "lap", "distance":
	default:
		respondError(w, `distance_handling must be "lap" or "distance"`, http.StatusUnprocessableEntity)
		return
	}
	switch current.DefaultExerciseValue {
	case "lap", "button":
	default:
		respondError(w, `default_exercise_value must be "lap" or "button"`, http.StatusUnprocessableEntity)
		return
	}

	saved, err := models.SetProfileDefaults(h.DB, profile,
		current.DistanceHandling, current.DefaultExerciseValue, current.IgnoreDistance)
	if err != nil {
		log.Printf("handlers: set profile defaults: %v", err)
		respondError(w, "cannot save settings", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, defaultsResponse(saved))
}
