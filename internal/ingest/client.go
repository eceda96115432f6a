package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/amakaflow/wmec/internal/blocks"
)

// DefaultTimeout bounds one extraction. Video download and transcription can
// legitimately take minutes.
const DefaultTimeout = 120 * time.Second

// HTTPClient implements Client against a running ingestor service.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a client for the ingestor at baseURL.
// baseURL defaults to http://localhost:8004 if empty.
func NewHTTPClient(baseURL string) *HTTPClient {
	if baseURL == "" {
		baseURL = "http://localhost:8004"
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: DefaultTimeout},
	}
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("ingest: create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ingest: HTTP %d", resp.StatusCode)
	}
	return nil
}

func (c *HTTPClient) IngestURL(ctx context.Context, url, platform string) (*Result, error) {
	endpoint := "/ingest/url"
	body := map[string]any{"url": url}
	switch platform {
	case "youtube":
		endpoint = "/ingest/youtube"
	case "tiktok":
		endpoint = "/ingest/tiktok"
		body["mode"] = "auto"
	case "instagram":
		endpoint = "/ingest/instagram"
	}
	return c.post(ctx, endpoint, body)
}

func (c *HTTPClient) IngestImage(ctx context.Context, imageBase64, filename string) (*Result, error) {
	return c.post(ctx, "/ingest/image", map[string]any{
		"image_base64": imageBase64,
		"filename":     filename,
		"mode":         "vision",
	})
}

func (c *HTTPClient) post(ctx context.Context, endpoint string, payload any) (*Result, error) {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ingest: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("ingest: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ingest: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ingest: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			apiErr.Message = errResp.Error
		} else {
			apiErr.Message = string(respBody)
		}
		return nil, apiErr
	}

	return parseResult(respBody)
}

// parseResult accepts both response shapes the ingestor emits: an envelope
// carrying the workout plus extraction metadata, or the bare workout.
func parseResult(body []byte) (*Result, error) {
	res := &Result{WorkoutJSON: body}

	var envelope struct {
		Workout          json.RawMessage `json:"workout"`
		Confidence       float64         `json:"confidence"`
		ExtractionMethod string          `json:"extraction_method"`
		ModelUsed        string          `json:"model_used"`
		Warnings         []string        `json:"warnings"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Workout) > 0 {
		res.WorkoutJSON = []byte(envelope.Workout)
		res.Confidence = envelope.Confidence
		res.Method = envelope.ExtractionMethod
		res.Model = envelope.ModelUsed
		res.Warnings = envelope.Warnings
	}

	// Some ingestor builds report confidence as a percentage.
	if res.Confidence > 1 {
		res.Confidence /= 100
	}

	w, err := blocks.Parse(res.WorkoutJSON)
	if err != nil {
		return nil, fmt.Errorf("ingest: parse workout: %w", err)
	}
	res.Workout = w
	return res, nil
}
