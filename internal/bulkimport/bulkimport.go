// Package bulkimport runs the five-phase bulk workout import: detect sources
// into reviewable items, map spreadsheet columns, match exercise names
// against the catalog, preview with validation, and execute the persisting
// import. Job and item state live in the database so readers can poll while
// a worker runs.
package bulkimport

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/amakaflow/wmec/internal/catalog"
	"github.com/amakaflow/wmec/internal/export/hyroxyaml"
	"github.com/amakaflow/wmec/internal/ingest"
	"github.com/amakaflow/wmec/internal/mapping"
	"github.com/amakaflow/wmec/internal/models"
)

// ErrInvalidInput flags requests the orchestrator cannot act on: unsupported
// source types, empty source lists, missing devices.
var ErrInvalidInput = errors.New("invalid input")

// ErrJobRunning is returned when execution is requested for a job that
// already has a worker.
var ErrJobRunning = errors.New("bulk import job already running")

// Source types accepted by Detect.
const (
	SourceFile   = "file"
	SourceURLs   = "urls"
	SourceImages = "images"
)

// Detection fan-out bounds. Images cost more per call, so they run narrower.
const (
	urlDetectConcurrency   = 5
	imageDetectConcurrency = 3
)

// Confidence assigned to URL stubs at detect time. URLs are only previewed
// here; full extraction happens during execution.
const (
	urlStubConfidence  = 0.70
	urlErrorConfidence = 0.30
)

// Service wires the orchestrator's collaborators together. One instance
// serves all requests.
type Service struct {
	DB       *sql.DB
	Catalog  *catalog.Catalog
	Resolver *mapping.Resolver
	Hyrox    *hyroxyaml.Encoder
	Ingestor ingest.Client
	Metadata *MetadataFetcher
}

// NewService builds a bulk import service around an open database and an
// ingestor client.
func NewService(db *sql.DB, cat *catalog.Catalog, resolver *mapping.Resolver, ingestor ingest.Client) *Service {
	return &Service{
		DB:       db,
		Catalog:  cat,
		Resolver: resolver,
		Hyrox:    hyroxyaml.NewEncoder(resolver),
		Ingestor: ingestor,
		Metadata: NewMetadataFetcher(),
	}
}

// DetectResult reports the job detection opened and every item it produced.
// ColumnMappings carries the auto-detected CSV column assignments for file
// jobs so the map phase can present them for review.
type DetectResult struct {
	JobID          string                 `json:"job_id"`
	Items          []*models.DetectedItem `json:"items"`
	Total          int                    `json:"total"`
	SuccessCount   int                    `json:"success_count"`
	ErrorCount     int                    `json:"error_count"`
	ColumnMappings []ColumnMapping        `json:"column_mappings,omitempty"`
}

// Detect opens a job and turns each source into a reviewable item. File
// sources parse fully, URLs get an oEmbed preview, and images go through the
// ingestor's vision extraction. Per-source failures become errored items;
// the batch itself still succeeds.
func (s *Service) Detect(ctx context.Context, profileID, sourceType string, sources []string) (*DetectResult, error) {
	switch sourceType {
	case SourceFile, SourceURLs, SourceImages:
	default:
		return nil, fmt.Errorf("%w: unsupported source type %q", ErrInvalidInput, sourceType)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: no sources given", ErrInvalidInput)
	}

	job, err := models.CreateBulkJob(s.DB, profileID, sourceType)
	if err != nil {
		return nil, err
	}

	var items []*models.DetectedItem
	switch sourceType {
	case SourceURLs:
		items = s.detectURLs(ctx, job, sources)
	case SourceImages:
		items = s.detectImages(ctx, job, sources)
	default:
		items = s.detectFiles(job, sources)
	}

	if err := models.InsertDetectedItems(s.DB, items); err != nil {
		_ = models.FailBulkJob(s.DB, job.ID, "could not store detected items")
		return nil, err
	}
	if err := models.SetBulkJobTotal(s.DB, job.ID, len(items)); err != nil {
		return nil, err
	}

	result := &DetectResult{JobID: job.ID, Items: items, Total: len(items)}
	for _, item := range items {
		if item.Errors.Valid {
			result.ErrorCount++
		} else {
			result.SuccessCount++
		}
	}
	if sourceType == SourceFile {
		result.ColumnMappings = firstColumns(items)
	}
	return result, nil
}

// firstColumns pulls the auto-detected column mappings from the first file
// item that parsed.
func firstColumns(items []*models.DetectedItem) []ColumnMapping {
	for _, item := range items {
		var raw csvRaw
		if err := json.Unmarshal([]byte(item.RawData), &raw); err != nil {
			continue
		}
		if len(raw.Columns) > 0 {
			return raw.Columns
		}
	}
	return nil
}

func (s *Service) detectURLs(ctx context.Context, job *models.BulkImportJob, urls []string) []*models.DetectedItem {
	metas := s.Metadata.FetchBatch(ctx, urls, urlDetectConcurrency)

	items := make([]*models.DetectedItem, len(metas))
	for i, meta := range metas {
		item := &models.DetectedItem{
			JobID:       job.ID,
			ProfileID:   job.ProfileID,
			SourceIndex: i,
			SourceType:  SourceURLs,
			SourceRef:   meta.URL,
			Selected:    true,
		}
		raw, _ := json.Marshal(meta)
		item.RawData = string(raw)
		item.ParsedTitle = sql.NullString{String: urlTitle(meta), Valid: true}

		if meta.Error != "" {
			item.Confidence = urlErrorConfidence
			item.Errors = jsonList([]string{meta.Error})
		} else {
			item.Confidence = urlStubConfidence
		}
		items[i] = item
	}
	return items
}

// urlTitle prefers the fetched video title and falls back to a platform
// label with a trimmed video id.
func urlTitle(meta URLMetadata) string {
	if meta.Title != "" {
		return meta.Title
	}
	title := "Video"
	if meta.Platform != "" && meta.Platform != PlatformUnknown {
		title = upperFirst(meta.Platform) + " Video"
	}
	if meta.VideoID != "" {
		id := meta.VideoID
		if len(id) > 8 {
			id = id[:8]
		}
		title += " (" + id + "...)"
	}
	return title
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (s *Service) detectImages(ctx context.Context, job *models.BulkImportJob, sources []string) []*models.DetectedItem {
	items := make([]*models.DetectedItem, len(sources))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(imageDetectConcurrency)
	for i, source := range sources {
		i, source := i, source
		g.Go(func() error {
			items[i] = s.detectImage(ctx, job, i, source)
			return nil
		})
	}
	_ = g.Wait()
	return items
}

func (s *Service) detectImage(ctx context.Context, job *models.BulkImportJob, index int, source string) *models.DetectedItem {
	filename, payload := splitNamedSource(source, fmt.Sprintf("image_%d.jpg", index))
	item := &models.DetectedItem{
		JobID:       job.ID,
		ProfileID:   job.ProfileID,
		SourceIndex: index,
		SourceType:  SourceImages,
		SourceRef:   filename,
		Selected:    true,
	}

	res, err := s.Ingestor.IngestImage(ctx, payload, filename)
	if err == nil && res.Workout == nil {
		err = fmt.Errorf("ingestor returned no workout for %s", filename)
	}
	if err != nil {
		raw, _ := json.Marshal(map[string]string{"filename": filename})
		item.RawData = string(raw)
		item.Errors = jsonList([]string{err.Error()})
		return item
	}

	raw, _ := json.Marshal(map[string]string{
		"filename":          filename,
		"extraction_method": res.Method,
		"model":             res.Model,
	})
	item.RawData = string(raw)
	item.ParsedWorkout = sql.NullString{String: string(res.WorkoutJSON), Valid: true}

	title := res.Workout.Title
	if title == "" {
		title = fileTitle(filename)
	}
	item.ParsedTitle = sql.NullString{String: title, Valid: true}
	item.ParsedExerciseCount = len(res.Workout.ExerciseRefs())
	item.ParsedBlockCount = len(res.Workout.Blocks)
	item.Confidence = res.Confidence
	item.Warnings = jsonList(res.Warnings)
	return item
}

func (s *Service) detectFiles(job *models.BulkImportJob, sources []string) []*models.DetectedItem {
	items := make([]*models.DetectedItem, len(sources))
	for i, source := range sources {
		items[i] = s.detectFile(job, i, source)
	}
	return items
}

func (s *Service) detectFile(job *models.BulkImportJob, index int, source string) *models.DetectedItem {
	filename, data, err := decodeFileSource(source, index)
	if err != nil {
		item := newFileItem(job, index, filename)
		raw, _ := json.Marshal(map[string]string{"filename": filename})
		item.RawData = string(raw)
		item.Errors = jsonList([]string{err.Error()})
		return item
	}

	header, rows, err := readCSV(data)
	if err != nil {
		item := newFileItem(job, index, filename)
		raw, _ := json.Marshal(map[string]string{"filename": filename})
		item.RawData = string(raw)
		item.Errors = jsonList([]string{err.Error()})
		return item
	}

	raw := csvRaw{
		Filename: filename,
		Header:   header,
		Rows:     rows,
		Columns:  DetectColumns(header, rows),
	}
	return s.buildFileItem(job, index, raw)
}

// csvRaw is what a file item stores so the map phase can re-parse the sheet
// under different column mappings.
type csvRaw struct {
	Filename string          `json:"filename"`
	Header   []string        `json:"header"`
	Rows     [][]string      `json:"rows"`
	Columns  []ColumnMapping `json:"columns"`
}

func newFileItem(job *models.BulkImportJob, index int, filename string) *models.DetectedItem {
	return &models.DetectedItem{
		JobID:       job.ID,
		ProfileID:   job.ProfileID,
		SourceIndex: index,
		SourceType:  SourceFile,
		SourceRef:   filename,
		Selected:    true,
	}
}

// buildFileItem parses stored CSV rows into a detected item. Both detection
// and the map phase funnel through here.
func (s *Service) buildFileItem(job *models.BulkImportJob, index int, raw csvRaw) *models.DetectedItem {
	item := newFileItem(job, index, raw.Filename)
	data, _ := json.Marshal(raw)
	item.RawData = string(data)

	w, warnings, err := buildWorkout(raw.Filename, raw.Header, raw.Rows, raw.Columns)
	item.Warnings = jsonList(warnings)
	if err != nil {
		item.Errors = jsonList([]string{err.Error()})
		return item
	}

	wJSON, _ := json.Marshal(w)
	item.ParsedWorkout = sql.NullString{String: string(wJSON), Valid: true}
	item.ParsedTitle = sql.NullString{String: w.Title, Valid: true}
	item.ParsedExerciseCount = len(w.ExerciseRefs())
	item.ParsedBlockCount = len(w.Blocks)
	item.Confidence = csvConfidence(raw.Columns)
	return item
}

// jsonList renders a string slice as a JSON array column value, or NULL for
// an empty slice.
func jsonList(vals []string) sql.NullString {
	if len(vals) == 0 {
		return sql.NullString{}
	}
	data, _ := json.Marshal(vals)
	return sql.NullString{String: string(data), Valid: true}
}

// itemTitle names an item for progress displays and import results.
func itemTitle(item *models.DetectedItem) string {
	if item.ParsedTitle.Valid && item.ParsedTitle.String != "" {
		return item.ParsedTitle.String
	}
	return fmt.Sprintf("Workout %d", item.SourceIndex+1)
}
