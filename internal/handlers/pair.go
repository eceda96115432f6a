package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/amakaflow/wmec/internal/models"
	"github.com/amakaflow/wmec/internal/pairing"
)

// Pair exposes device pairing: token generation, redemption, status polling,
// and revocation.
type Pair struct {
	Service *pairing.Service
}

// Generate mints a pairing token, short code, and QR payload for the
// profile.
// POST /pair/generate
func (h *Pair) Generate(w http.ResponseWriter, r *http.Request) {
	result, err := h.Service.Generate(profileID(r))
	if errors.Is(err, pairing.ErrRateLimited) {
		// The limit window is an hour.
		w.Header().Set("Retry-After", "3600")
		respondError(w, err.Error(), http.StatusTooManyRequests)
		return
	}
	if err != nil {
		log.Printf("handlers: generate pairing token: %v", err)
		respondError(w, "cannot generate pairing token", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Device redeems a pairing token or short code for a long-lived device JWT.
// POST /pair/device
func (h *Pair) Device(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token      string          `json:"token"`
		ShortCode  string          `json:"short_code"`
		DeviceInfo json.RawMessage `json:"device_info"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.Service.Redeem(req.Token, req.ShortCode, rawOrEmpty(req.DeviceInfo))
	switch {
	case errors.Is(err, pairing.ErrMissingCredential):
		respondError(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, models.ErrNotFound):
		respondError(w, "pairing token not found", http.StatusNotFound)
	case errors.Is(err, models.ErrTokenUsed):
		respondError(w, "pairing token already used", http.StatusConflict)
	case errors.Is(err, pairing.ErrTokenExpired):
		respondError(w, "pairing token expired", http.StatusGone)
	case err != nil:
		log.Printf("handlers: redeem pairing token: %v", err)
		respondError(w, "cannot pair device", http.StatusInternalServerError)
	default:
		respondJSON(w, http.StatusOK, result)
	}
}

// Status reports whether a pairing token was redeemed, for the generating
// client to poll.
// GET /pair/status/{token}
func (h *Pair) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.Service.Status(chi.URLParam(r, "token"))
	if errors.Is(err, models.ErrNotFound) {
		respondError(w, "pairing token not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("handlers: pairing status: %v", err)
		respondError(w, "cannot read pairing status", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// Revoke deletes the profile's unredeemed pairing tokens. Already paired
// devices keep working.
// DELETE /pair/revoke
func (h *Pair) Revoke(w http.ResponseWriter, r *http.Request) {
	revoked, err := h.Service.Revoke(profileID(r))
	if err != nil {
		log.Printf("handlers: revoke pairing tokens: %v", err)
		respondError(w, "cannot revoke pairing tokens", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"revoked": revoked})
}
