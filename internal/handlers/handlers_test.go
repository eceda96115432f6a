package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/amakaflow/wmec/internal/bulkimport"
	"github.com/amakaflow/wmec/internal/catalog"
	"github.com/amakaflow/wmec/internal/database"
	"github.com/amakaflow/wmec/internal/export/hyroxyaml"
	"github.com/amakaflow/wmec/internal/ingest"
	"github.com/amakaflow/wmec/internal/mapping"
	"github.com/amakaflow/wmec/internal/models"
	"github.com/amakaflow/wmec/internal/pairing"
)

// testDB creates a fresh in-memory SQLite database with migrations applied.
func testDB(t testing.TB) *sql.DB {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := database.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// testRouter wires the full API router over an in-memory database, with a
// mock ingestor so no network is involved.
func testRouter(t testing.TB) (http.Handler, *sql.DB) {
	t.Helper()

	db := testDB(t)
	cat, err := catalog.Load()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}

	resolver := mapping.NewResolver(cat)
	resolver.Users = &models.MappingStore{DB: db}
	resolver.Popularity = &models.PopularityStore{DB: db}

	ingestor := &ingest.MockClient{}
	svc := bulkimport.NewService(db, cat, resolver, ingestor)
	pairSvc := pairing.NewService(db, []byte("test-signing-key"), "https://api.test.local")

	h := Routes(Deps{
		DB:       db,
		Catalog:  cat,
		Resolver: resolver,
		Hyrox:    hyroxyaml.NewEncoder(resolver),
		Bulk:     svc,
		Pairing:  pairSvc,
		Ingestor: ingestor,
	})
	return h, db
}

// doJSON sends a request with an optional JSON body through the router and
// returns the recorder. A nil body sends no payload.
func doJSON(t testing.TB, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return record(h, doJSONRequest(t, method, target, body))
}

// doJSONRequest builds the request doJSON would send without dispatching it,
// for tests that set extra headers first.
func doJSONRequest(t testing.TB, method, target string, body any) *http.Request {
	t.Helper()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(buf)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// record dispatches a prepared request through the router.
func record(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// decodeBody unmarshals a recorded JSON response into dst.
func decodeBody(t testing.TB, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
}

// sampleBlocksJSON is a small two-exercise workout used across handler tests.
const sampleBlocksJSON = `{
	"title": "Morning Intervals",
	"blocks": [
		{
			"label": "Main",
			"structure": "3 rounds",
			"exercises": [
				{"name": "Burpee", "reps": 10},
				{"name": "Goblet Squat", "reps": 12}
			]
		}
	]
}`

func TestHealthz(t *testing.T) {
	h, _ := testRouter(t)

	rr := doJSON(t, h, "GET", "/healthz", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var body struct {
		Status   string `json:"status"`
		Database string `json:"database"`
	}
	decodeBody(t, rr, &body)
	if body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
	if body.Database != "ok" {
		t.Errorf("database = %q, want ok", body.Database)
	}
}

func TestRoutes_UnknownPath(t *testing.T) {
	h, _ := testRouter(t)

	rr := doJSON(t, h, "GET", "/nope", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
}

func TestRoutes_MalformedJSONBody(t *testing.T) {
	h, _ := testRouter(t)

	req := httptest.NewRequest("POST", "/exercises/match", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}

	var body struct {
		Error string `json:"error"`
	}
	decodeBody(t, rr, &body)
	if body.Error == "" {
		t.Error("expected an error message in the body")
	}
}
