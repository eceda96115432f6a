package handlers

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/amakaflow/wmec/internal/bulkimport"
	"github.com/amakaflow/wmec/internal/catalog"
	"github.com/amakaflow/wmec/internal/export/hyroxyaml"
	"github.com/amakaflow/wmec/internal/ingest"
	"github.com/amakaflow/wmec/internal/mapping"
	"github.com/amakaflow/wmec/internal/middleware"
	"github.com/amakaflow/wmec/internal/pairing"
)

// Deps carries every collaborator the HTTP surface needs.
type Deps struct {
	DB       *sql.DB
	Catalog  *catalog.Catalog
	Resolver *mapping.Resolver
	Hyrox    *hyroxyaml.Encoder
	Bulk     *bulkimport.Service
	Pairing  *pairing.Service
	Ingestor ingest.Client

	// PairLimiter rate-limits the pairing endpoints when set.
	PairLimiter *middleware.RateLimiter
}

// Routes assembles the API router.
func Routes(d Deps) http.Handler {
	export := &Export{Catalog: d.Catalog, Resolver: d.Resolver, Hyrox: d.Hyrox}
	exercises := &Exercises{Resolver: d.Resolver}
	mappings := &Mappings{DB: d.DB}
	workouts := &Workouts{DB: d.DB, Catalog: d.Catalog}
	bulk := &Bulk{Service: d.Bulk}
	pair := &Pair{Service: d.Pairing}
	settings := &Settings{DB: d.DB}
	health := &Health{DB: d.DB, Ingestor: d.Ingestor}

	r := chi.NewRouter()
	r.Use(middleware.RequestLogger)
	r.Use(middleware.ResolveProfile(d.Pairing.VerifyDeviceJWT))

	r.Get("/healthz", health.Check)

	r.Route("/map", func(r chi.Router) {
		r.Post("/auto-map", export.AutoMap)
		r.Post("/to-fit", export.ToFIT)
		r.Post("/to-zwo", export.ToZWO)
		r.Post("/to-workoutkit", export.ToWorkoutKit)
	})

	r.Route("/workflow", func(r chi.Router) {
		r.Post("/validate", export.Validate)
		r.Post("/process", export.Process)
	})

	r.Route("/exercises", func(r chi.Router) {
		r.Post("/match", exercises.Match)
		r.Post("/match/batch", exercises.MatchBatch)
	})

	r.Route("/exercise", func(r chi.Router) {
		r.Post("/suggest", exercises.Suggest)
		r.Get("/similar/{name}", exercises.Similar)
		r.Get("/by-type/{name}", exercises.ByType)
	})

	r.Route("/mappings", func(r chi.Router) {
		r.Get("/", mappings.List)
		r.Post("/add", mappings.Add)
		r.Delete("/remove/{exercise_name}", mappings.Remove)
		r.Get("/lookup/{exercise_name}", mappings.Lookup)
		r.Delete("/clear", mappings.Clear)
	})

	r.Route("/workouts", func(r chi.Router) {
		r.Post("/", workouts.Save)
		r.Get("/", workouts.List)
		r.Get("/{id}", workouts.Get)
		r.Delete("/{id}", workouts.Delete)
		r.Post("/{id}/exported", workouts.MarkExported)
		r.Get("/{id}/fit", workouts.DownloadFIT)
	})

	r.Route("/bulk", func(r chi.Router) {
		r.Post("/detect", bulk.Detect)
		r.Post("/map", bulk.MapColumns)
		r.Post("/match", bulk.Match)
		r.Post("/preview", bulk.Preview)
		r.Post("/execute", bulk.Execute)
		r.Get("/status/{job_id}", bulk.Status)
		r.Post("/cancel/{job_id}", bulk.Cancel)
	})

	r.Route("/pair", func(r chi.Router) {
		if d.PairLimiter != nil {
			r.Use(d.PairLimiter.Limit)
		}
		r.Post("/generate", pair.Generate)
		r.Post("/device", pair.Device)
		r.Get("/status/{token}", pair.Status)
		r.Delete("/revoke", pair.Revoke)
	})

	r.Route("/settings", func(r chi.Router) {
		r.Get("/defaults", settings.Get)
		r.Put("/defaults", settings.Put)
	})

	return r
}
