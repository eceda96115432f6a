package handlers

import (
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/amakaflow/wmec/internal/bulkimport"
	"github.com/amakaflow/wmec/internal/mapping"
)

// Exercises holds dependencies for exercise matching and suggestion
// endpoints.
type Exercises struct {
	Resolver *mapping.Resolver
}

type matchResult struct {
	OriginalName string               `json:"original_name"`
	MatchedName  string               `json:"matched_name,omitempty"`
	Confidence   float64              `json:"confidence"`
	Provenance   string               `json:"provenance,omitempty"`
	Status       string               `json:"status"`
	Suggestions  []mapping.Suggestion `json:"suggestions,omitempty"`
}

// matchOne resolves one name and classifies it with the bulk import
// thresholds, so interactive matching and batch jobs agree on what counts
// as matched.
func (h *Exercises) matchOne(profile, name string, limit int) matchResult {
	res := h.Resolver.Resolve(profile, name)
	m := matchResult{
		OriginalName: name,
		MatchedName:  res.GarminName,
		Confidence:   round2(res.Confidence),
		Provenance:   res.Provenance,
	}
	switch {
	case res.Confidence >= bulkimport.MatchAutoThreshold:
		m.Status = bulkimport.MatchMatched
	case res.Confidence >= bulkimport.MatchUnmappedThreshold:
		m.Status = bulkimport.MatchNeedsReview
	default:
		m.Status = bulkimport.MatchUnmapped
	}
	if m.Status != bulkimport.MatchMatched {
		m.Suggestions = h.Resolver.Matcher().Similar(name, h.Resolver.PopularityFor(name, 50), limit, 0.30)
	}
	return m
}

// Match resolves a single exercise name against the catalog.
// POST /exercises/match
func (h *Exercises) Match(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Limit int    `json:"limit"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		respondError(w, "name is required", http.StatusUnprocessableEntity)
		return
	}

	respondJSON(w, http.StatusOK, h.matchOne(profileID(r), req.Name, clampLimit(req.Limit, 5, 50)))
}

// MatchBatch resolves a list of exercise names in one call.
// POST /exercises/match/batch
func (h *Exercises) MatchBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Names []string `json:"names"`
		Limit int      `json:"limit"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Names) == 0 {
		respondError(w, "names is required", http.StatusUnprocessableEntity)
		return
	}

	profile := profileID(r)
	limit := clampLimit(req.Limit, 5, 50)

	resp := struct {
		Results     []matchResult `json:"results"`
		Total       int           `json:"total"`
		Matched     int           `json:"matched"`
		NeedsReview int           `json:"needs_review"`
		Unmapped    int           `json:"unmapped"`
	}{Results: make([]matchResult, 0, len(req.Names))}

	for _, name := range req.Names {
		if name == "" {
			continue
		}
		m := h.matchOne(profile, name, limit)
		resp.Results = append(resp.Results, m)
		switch m.Status {
		case bulkimport.MatchMatched:
			resp.Matched++
		case bulkimport.MatchNeedsReview:
			resp.NeedsReview++
		default:
			resp.Unmapped++
		}
	}
	resp.Total = len(resp.Results)

	respondJSON(w, http.StatusOK, resp)
}

// Suggest assembles the full alternative set for a name: best match, crowd
// favorites, similar names, and same-movement-type names.
// POST /exercise/suggest
func (h *Exercises) Suggest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ExerciseName        string `json:"exercise_name"`
		IncludeSimilarTypes *bool  `json:"include_similar_types"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ExerciseName == "" {
		respondError(w, "exercise_name is required", http.StatusUnprocessableEntity)
		return
	}

	include := true
	if req.IncludeSimilarTypes != nil {
		include = *req.IncludeSimilarTypes
	}

	respondJSON(w, http.StatusOK, h.Resolver.Alternatives(req.ExerciseName, include))
}

// Similar lists catalog names close to the given one.
// GET /exercise/similar/{name}?limit=
func (h *Exercises) Similar(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		respondError(w, "exercise name required", http.StatusUnprocessableEntity)
		return
	}

	limit := clampLimit(queryInt(r, "limit", 10), 10, 50)
	similar := h.Resolver.Matcher().Similar(name, h.Resolver.PopularityFor(name, 50), limit, 0.30)

	respondJSON(w, http.StatusOK, struct {
		ExerciseName string               `json:"exercise_name"`
		Similar      []mapping.Suggestion `json:"similar"`
	}{name, similar})
}

// ByType lists catalog names that share the given name's movement pattern.
// GET /exercise/by-type/{name}?limit=
func (h *Exercises) ByType(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		respondError(w, "exercise name required", http.StatusUnprocessableEntity)
		return
	}

	limit := clampLimit(queryInt(r, "limit", 20), 20, 50)
	exercises := h.Resolver.Matcher().ByType(name, h.Resolver.PopularityFor(name, 100), limit)

	respondJSON(w, http.StatusOK, struct {
		ExerciseName string               `json:"exercise_name"`
		Category     string               `json:"category,omitempty"`
		Exercises    []mapping.Suggestion `json:"exercises"`
	}{name, mapping.MovementCategory(name), exercises})
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// queryInt parses an integer query parameter, falling back when absent or
// malformed.
func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func clampLimit(v, fallback, max int) int {
	if v <= 0 {
		return fallback
	}
	if v > max {
		return max
	}
	return v
}
