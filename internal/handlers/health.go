package handlers

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"time"

	"github.com/amakaflow/wmec/internal/ingest"
)

// Health reports service liveness and dependency reachability.
type Health struct {
	DB       *sql.DB
	Ingestor ingest.Client
}

// Check pings the database and the ingestor. An unreachable ingestor is
// reported but not fatal; bulk URL and image imports degrade without it
// while everything else keeps working.
// GET /healthz
func (h *Health) Check(w http.ResponseWriter, r *http.Request) {
	resp := struct {
		Status   string `json:"status"`
		Database string `json:"database"`
		Ingestor string `json:"ingestor,omitempty"`
	}{Status: "ok", Database: "ok"}

	if err := h.DB.PingContext(r.Context()); err != nil {
		log.Printf("handlers: health db ping: %v", err)
		resp.Status = "degraded"
		resp.Database = "unreachable"
		respondJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	if h.Ingestor != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.Ingestor.Ping(ctx); err != nil {
			resp.Ingestor = "unreachable"
		} else {
			resp.Ingestor = "ok"
		}
	}

	respondJSON(w, http.StatusOK, resp)
}
