package main

import (
	"crypto/rand"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/amakaflow/wmec/internal/bulkimport"
	"github.com/amakaflow/wmec/internal/catalog"
	"github.com/amakaflow/wmec/internal/database"
	"github.com/amakaflow/wmec/internal/export/hyroxyaml"
	"github.com/amakaflow/wmec/internal/handlers"
	"github.com/amakaflow/wmec/internal/ingest"
	"github.com/amakaflow/wmec/internal/mapping"
	"github.com/amakaflow/wmec/internal/middleware"
	"github.com/amakaflow/wmec/internal/models"
	"github.com/amakaflow/wmec/internal/pairing"
	"github.com/amakaflow/wmec/internal/scheduler"
)

func main() {
	// Load .env when present; deployments set real environment variables.
	if err := godotenv.Load(); err == nil {
		log.Printf("Loaded environment from .env")
	}

	// Database path defaults to ./wmec.db; override with WMEC_DB_PATH.
	dbPath := os.Getenv("WMEC_DB_PATH")
	if dbPath == "" {
		dbPath = "wmec.db"
	}

	// Listen address defaults to :8080; override with WMEC_ADDR.
	addr := os.Getenv("WMEC_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	// Open database and run migrations.
	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := database.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Printf("Database ready: %s", filepath.Clean(dbPath))

	// Load the embedded Garmin exercise catalog.
	cat, err := catalog.Load()
	if err != nil {
		log.Fatalf("Failed to load exercise catalog: %v", err)
	}
	log.Printf("Exercise catalog ready: %d exercises", len(cat.DisplayNames()))

	// Resolver layers user overrides and crowd popularity over the catalog.
	resolver := mapping.NewResolver(cat)
	resolver.Users = &models.MappingStore{DB: db}
	resolver.Popularity = &models.PopularityStore{DB: db}

	// Ingestor client for URL and image extraction. When the ingestor is
	// unreachable those sources fail per item and /healthz reports it.
	ingestor := ingest.NewHTTPClient(os.Getenv("WMEC_INGESTOR_URL"))

	bulk := bulkimport.NewService(db, cat, resolver, ingestor)
	pairSvc := pairing.NewService(db, signingSecret(), os.Getenv("WMEC_PUBLIC_URL"))

	// Per-IP limiter for the pairing endpoints. The per-profile token cap
	// lives in app settings; this one slows short-code guessing.
	limiter := middleware.NewRateLimiter(10, time.Minute, trustedProxies()...)
	defer limiter.Stop()

	router := handlers.Routes(handlers.Deps{
		DB:          db,
		Catalog:     cat,
		Resolver:    resolver,
		Hyrox:       hyroxyaml.NewEncoder(resolver),
		Bulk:        bulk,
		Pairing:     pairSvc,
		Ingestor:    ingestor,
		PairLimiter: limiter,
	})

	// Background maintenance: expired pairing tokens, abandoned bulk jobs.
	sched := scheduler.New(db)
	sched.Start()
	defer sched.Stop()

	log.Printf("WMEC listening on %s", addr)
	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// signingSecret returns the HS256 key for device JWTs. Without
// WMEC_JWT_SECRET an ephemeral key is generated, so paired devices must
// pair again after every restart.
func signingSecret() []byte {
	if s := os.Getenv("WMEC_JWT_SECRET"); s != "" {
		return []byte(s)
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		log.Fatalf("Failed to generate signing key: %v", err)
	}
	log.Printf("WMEC_JWT_SECRET not set; device tokens will not survive a restart")
	return key
}

// trustedProxies parses WMEC_TRUSTED_PROXIES, a comma-separated list of
// CIDRs or bare IPs whose X-Forwarded-For headers the rate limiter may
// trust.
func trustedProxies() []string {
	raw := os.Getenv("WMEC_TRUSTED_PROXIES")
	if raw == "" {
		return nil
	}
	var proxies []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			proxies = append(proxies, p)
		}
	}
	return proxies
}
