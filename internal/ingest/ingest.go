// Package ingest talks to the external workout ingestor service, which
// turns video URLs and workout images into canonical workout JSON. The core
// never extracts content itself; everything heavier than metadata goes
// through a Client.
package ingest

import (
	"context"
	"fmt"

	"github.com/amakaflow/wmec/internal/blocks"
)

// Client is the interface for workout extraction backends.
type Client interface {
	// IngestURL runs full extraction on a video URL. platform is one of
	// "youtube", "instagram", "tiktok", or "" for generic URLs.
	IngestURL(ctx context.Context, url, platform string) (*Result, error)

	// IngestImage runs vision extraction on a base64-encoded image.
	IngestImage(ctx context.Context, imageBase64, filename string) (*Result, error)

	// Ping validates that the ingestor is reachable.
	Ping(ctx context.Context) error
}

// Result holds one extraction outcome.
type Result struct {
	Workout     *blocks.Workout
	WorkoutJSON []byte   // the canonical workout as the ingestor sent it
	Confidence  float64  // extraction confidence on [0,1]; 0 when unreported
	Method      string   // extraction method reported by the ingestor
	Model       string   // vision/LLM model reported by the ingestor
	Warnings    []string
}

// APIError is a non-200 response from the ingestor.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ingest: ingestor HTTP %d: %s", e.StatusCode, e.Message)
}
