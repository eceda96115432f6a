// Package handlers exposes the JSON HTTP API: export encoding, exercise
// matching, mapping management, the workout store, bulk import, pairing,
// and per-profile settings.
package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/amakaflow/wmec/internal/middleware"
)

// DefaultProfileID is the shared profile used when a request carries no
// X-Profile-ID header and no device token. Anonymous callers all read and
// write the same mappings and workouts.
const DefaultProfileID = "default"

// respondJSON writes v as a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("handlers: encode response: %v", err)
	}
}

// respondError writes a JSON error body in the shape {"error": message}.
func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, status, map[string]string{"error": message})
}

// decodeJSON decodes the request body into dst, responding with 400 on
// malformed input. Returns false when the caller should stop.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, "invalid JSON body", http.StatusBadRequest)
		return false
	}
	return true
}

// profileID returns the profile resolved by the middleware, or
// DefaultProfileID for anonymous callers.
func profileID(r *http.Request) string {
	if id := middleware.ProfileFromContext(r.Context()); id != "" {
		return id
	}
	return DefaultProfileID
}
