package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/amakaflow/wmec/internal/catalog"
	"github.com/amakaflow/wmec/internal/models"
)

// Mappings manages a profile's saved exercise name overrides.
type Mappings struct {
	DB *sql.DB
}

type mappingDTO struct {
	ExerciseName string    `json:"exercise_name"`
	GarminName   string    `json:"garmin_name"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func mappingResponse(m *models.UserMapping) mappingDTO {
	return mappingDTO{
		ExerciseName: m.NormalizedName,
		GarminName:   m.GarminName,
		UpdatedAt:    m.UpdatedAt,
	}
}

// Add saves a mapping override and votes it into the shared popularity
// counts.
// POST /mappings/add
func (h *Mappings) Add(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ExerciseName string `json:"exercise_name"`
		GarminName   string `json:"garmin_name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ExerciseName == "" || req.GarminName == "" {
		respondError(w, "exercise_name and garmin_name are required", http.StatusUnprocessableEntity)
		return
	}

	normalized := catalog.Normalize(req.ExerciseName)
	m, err := models.AddUserMapping(h.DB, profileID(r), normalized, req.GarminName)
	if err != nil {
		log.Printf("handlers: add mapping: %v", err)
		respondError(w, "cannot save mapping", http.StatusInternalServerError)
		return
	}
	if err := models.RecordMappingChoice(h.DB, normalized, req.GarminName); err != nil {
		log.Printf("handlers: record mapping choice: %v", err)
	}

	respondJSON(w, http.StatusCreated, struct {
		Message string     `json:"message"`
		Mapping mappingDTO `json:"mapping"`
	}{"mapping saved", mappingResponse(m)})
}

// Remove deletes one mapping override.
// DELETE /mappings/remove/{exercise_name}
func (h *Mappings) Remove(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "exercise_name")
	normalized := catalog.Normalize(name)

	err := models.RemoveUserMapping(h.DB, profileID(r), normalized)
	if errors.Is(err, models.ErrNotFound) {
		respondError(w, fmt.Sprintf("no mapping for %q", name), http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("handlers: remove mapping: %v", err)
		respondError(w, "cannot remove mapping", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "mapping removed"})
}

// List returns all of a profile's mapping overrides.
// GET /mappings
func (h *Mappings) List(w http.ResponseWriter, r *http.Request) {
	all, err := models.ListUserMappings(h.DB, profileID(r))
	if err != nil {
		log.Printf("handlers: list mappings: %v", err)
		respondError(w, "cannot list mappings", http.StatusInternalServerError)
		return
	}

	mappings := make([]mappingDTO, 0, len(all))
	for _, m := range all {
		mappings = append(mappings, mappingResponse(m))
	}

	respondJSON(w, http.StatusOK, struct {
		Total    int          `json:"total"`
		Mappings []mappingDTO `json:"mappings"`
	}{len(mappings), mappings})
}

// Lookup reports whether a profile saved a mapping for the given name.
// GET /mappings/lookup/{exercise_name}
func (h *Mappings) Lookup(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "exercise_name")

	resp := struct {
		ExerciseName string `json:"exercise_name"`
		MappedTo     string `json:"mapped_to,omitempty"`
		Exists       bool   `json:"exists"`
	}{ExerciseName: name}

	m, err := models.GetUserMapping(h.DB, profileID(r), catalog.Normalize(name))
	switch {
	case errors.Is(err, models.ErrNotFound):
	case err != nil:
		log.Printf("handlers: lookup mapping: %v", err)
		respondError(w, "cannot look up mapping", http.StatusInternalServerError)
		return
	default:
		resp.MappedTo = m.GarminName
		resp.Exists = true
	}

	respondJSON(w, http.StatusOK, resp)
}

// Clear deletes every mapping override for the profile.
// DELETE /mappings/clear
func (h *Mappings) Clear(w http.ResponseWriter, r *http.Request) {
	cleared, err := models.ClearUserMappings(h.DB, profileID(r))
	if err != nil {
		log.Printf("handlers: clear mappings: %v", err)
		respondError(w, "cannot clear mappings", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]int64{"cleared": cleared})
}
