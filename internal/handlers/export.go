package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/amakaflow/wmec/internal/blocks"
	"github.com/amakaflow/wmec/internal/catalog"
	"github.com/amakaflow/wmec/internal/export/fitenc"
	"github.com/amakaflow/wmec/internal/export/hyroxyaml"
	"github.com/amakaflow/wmec/internal/export/workoutkit"
	"github.com/amakaflow/wmec/internal/export/zwo"
	"github.com/amakaflow/wmec/internal/mapping"
)

// Export holds dependencies for the encoding and validation endpoints.
type Export struct {
	Catalog  *catalog.Catalog
	Resolver *mapping.Resolver
	Hyrox    *hyroxyaml.Encoder
}

type blocksRequest struct {
	BlocksJSON json.RawMessage `json:"blocks_json"`
}

// decodeBlocks reads a {"blocks_json": {...}} body and parses the canonical
// workout. Returns nil and writes the error response when the body is
// unusable.
func decodeBlocks(w http.ResponseWriter, r *http.Request) *blocks.Workout {
	var req blocksRequest
	if !decodeJSON(w, r, &req) {
		return nil
	}
	if len(req.BlocksJSON) == 0 || string(req.BlocksJSON) == "null" {
		respondError(w, "blocks_json is required", http.StatusUnprocessableEntity)
		return nil
	}
	workout, err := blocks.Parse(req.BlocksJSON)
	if err != nil {
		respondError(w, fmt.Sprintf("invalid workout: %v", err), http.StatusUnprocessableEntity)
		return nil
	}
	return workout
}

// queryBool parses a boolean query parameter, falling back when absent or
// malformed.
func queryBool(r *http.Request, key string, fallback bool) bool {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

// AutoMap converts a workout straight to Hyrox-style YAML, skipping the
// validation gate.
// POST /map/auto-map
func (h *Export) AutoMap(w http.ResponseWriter, r *http.Request) {
	workout := decodeBlocks(w, r)
	if workout == nil {
		return
	}

	yamlText, notes, err := h.Hyrox.Encode(profileID(r), workout)
	if err != nil {
		respondError(w, fmt.Sprintf("cannot encode workout: %v", err), http.StatusUnprocessableEntity)
		return
	}

	respondJSON(w, http.StatusOK, struct {
		YAML  string           `json:"yaml"`
		Notes []hyroxyaml.Note `json:"mapping_notes,omitempty"`
	}{yamlText, notes})
}

// ToFIT encodes a workout as a binary Garmin FIT file.
// POST /map/to-fit?sport_type=&use_lap_button=
func (h *Export) ToFIT(w http.ResponseWriter, r *http.Request) {
	workout := decodeBlocks(w, r)
	if workout == nil {
		return
	}

	data, err := fitenc.Encode(workout, h.Catalog, fitenc.Options{
		ForceSport:   r.URL.Query().Get("sport_type"),
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

// ToZWO encodes a workout as Zwift ZWO XML.
// POST /map/to-zwo?sport=
func (h *Export) ToZWO(w http.ResponseWriter, r *http.Request) {
	workout := decodeBlocks(w, r)
	if workout == nil {
		return
	}

	data, err := zwo.Encode(workout, r.URL.Query().Get("sport"))
	if err != nil {
		respondError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	writeAttachment(w, exportFilename(workout.Title, ".zwo"), "application/xml", data)
}

// ToWorkoutKit converts a workout to the Apple WorkoutKit plan DTO.
// POST /map/to-workoutkit?use_lap_button=
func (h *Export) ToWorkoutKit(w http.ResponseWriter, r *http.Request) {
	workout := decodeBlocks(w, r)
	if workout == nil {
		return
	}

	plan := workoutkit.Build(workout, h.Catalog, queryBool(r, "use_lap_button", false))
	respondJSON(w, http.StatusOK, plan)
}

// Validate resolves every exercise in a workout and reports which mapped
// cleanly, which need review, and which did not map at all.
// POST /workflow/validate
func (h *Export) Validate(w http.ResponseWriter, r *http.Request) {
	workout := decodeBlocks(w, r)
	if workout == nil {
		return
	}

	respondJSON(w, http.StatusOK, h.Resolver.Validate(profileID(r), workout, 0))
}

// Process runs the validate-then-convert workflow. auto_proceed defaults to
// true; pass auto_proceed=false to stop on unmapped exercises.
// POST /workflow/process?auto_proceed=
func (h *Export) Process(w http.ResponseWriter, r *http.Request) {
	workout := decodeBlocks(w, r)
	if workout == nil {
		return
	}

	result := h.Hyrox.Process(profileID(r), workout, queryBool(r, "auto_proceed", true))
	respondJSON(w, http.StatusOK, result)
}

// writeAttachment sends raw file bytes with a download filename.
func writeAttachment(w http.ResponseWriter, filename, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

// exportFilename derives a safe download filename from a workout title.
func exportFilename(title, ext string) string {
	name := strings.Map(func(c rune) rune {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			return c
		case c == ' ':
			return '_'
		default:
			return -1
		}
	}, title)
	if name == "" {
		name = "workout"
	}
	return name + ext
}
