package bulkimport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/amakaflow/wmec/internal/blocks"
	"github.com/amakaflow/wmec/internal/export/workoutkit"
	"github.com/amakaflow/wmec/internal/export/zwo"
	"github.com/amakaflow/wmec/internal/models"
)

// Per-item outcomes of the execute phase.
const (
	ImportSuccess = "success"
	ImportFailed  = "failed"
	ImportSkipped = "skipped"
)

// Devices execution can target.
const (
	DeviceGarmin = "garmin"
	DeviceZwift  = "zwift"
	DeviceApple  = "apple"
)

// ImportResult is the outcome for one executed item.
type ImportResult struct {
	ItemID        string   `json:"item_id"`
	Title         string   `json:"title"`
	Status        string   `json:"status"`
	Error         string   `json:"error,omitempty"`
	WorkoutID     string   `json:"workout_id,omitempty"`
	ExportFormats []string `json:"export_formats,omitempty"`
}

// ExecuteResult reports how an execution call ended. In async mode it only
// confirms the worker started; callers poll the job for the rest.
type ExecuteResult struct {
	JobID   string         `json:"job_id"`
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Results []ImportResult `json:"results,omitempty"`
}

// Execute imports the listed items to the target device. In async mode the
// worker runs in a goroutine detached from the request context and the job
// row carries progress; otherwise the call blocks until the run settles.
func (s *Service) Execute(ctx context.Context, jobID, profileID string, itemIDs []string, device string, async bool) (*ExecuteResult, error) {
	if device == "" {
		return nil, fmt.Errorf("%w: no target device given", ErrInvalidInput)
	}
	if len(itemIDs) == 0 {
		return nil, fmt.Errorf("%w: no items selected for import", ErrInvalidInput)
	}

	job, err := models.GetBulkJob(s.DB, jobID, profileID)
	if err != nil {
		return nil, err
	}
	if job.Status == models.JobRunning {
		return nil, ErrJobRunning
	}

	if err := models.StartBulkJob(s.DB, jobID, device, len(itemIDs)); err != nil {
		return nil, err
	}

	if async {
		go s.runImport(context.Background(), jobID, profileID, itemIDs, device)
		return &ExecuteResult{JobID: jobID, Status: models.JobRunning, Message: "import started in background"}, nil
	}

	s.runImport(ctx, jobID, profileID, itemIDs, device)

	job, err = models.GetBulkJob(s.DB, jobID, profileID)
	if err != nil {
		return nil, err
	}
	result := &ExecuteResult{JobID: jobID, Status: job.Status}
	if job.Results.Valid {
		if err := json.Unmarshal([]byte(job.Results.String), &result.Results); err != nil {
			return nil, fmt.Errorf("bulkimport: decode results for job %q: %w", jobID, err)
		}
	}
	if job.Error.Valid {
		result.Message = job.Error.String
	}
	return result, nil
}

// runImport is the worker loop. Progress lands before and after every item:
// the before write doubles as the cancellation checkpoint, the after write
// records the finished count. An item already in flight when cancellation
// arrives runs to completion and keeps its result.
func (s *Service) runImport(ctx context.Context, jobID, profileID string, itemIDs []string, device string) {
	items, err := models.ListDetectedItems(s.DB, jobID, profileID, false)
	if err != nil {
		log.Printf("bulkimport: load items for job %q: %v", jobID, err)
		s.failJob(jobID, "could not load detected items")
		return
	}
	byID := make(map[string]*models.DetectedItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	results := make([]ImportResult, 0, len(itemIDs))
	cancelled := false
	for i, itemID := range itemIDs {
		item := byID[itemID]
		label := itemID
		if item != nil {
			label = itemTitle(item)
		}

		if stop := s.writeProgress(jobID, i, label, &cancelled); stop {
			break
		}

		results = append(results, s.importItem(ctx, profileID, device, itemID, item))

		if stop := s.writeProgress(jobID, i+1, label, &cancelled); stop {
			break
		}
	}

	data, err := json.Marshal(results)
	if err != nil {
		log.Printf("bulkimport: marshal results for job %q: %v", jobID, err)
		s.failJob(jobID, "could not record results")
		return
	}

	if cancelled {
		// The finished count follows the results even when cancellation
		// blocked the last progress write.
		if err := models.RecordCancelledBulkJobResults(s.DB, jobID, len(results), string(data)); err != nil {
			log.Printf("bulkimport: record cancelled results for job %q: %v", jobID, err)
		}
		return
	}
	if err := models.CompleteBulkJob(s.DB, jobID, string(data)); err != nil {
		log.Printf("bulkimport: complete job %q: %v", jobID, err)
	}
}

// writeProgress updates the job row and reports whether the worker should
// stop, flipping cancelled when the job went terminal underneath it.
func (s *Service) writeProgress(jobID string, processed int, label string, cancelled *bool) bool {
	err := models.UpdateBulkJobProgress(s.DB, jobID, processed, label)
	if err == nil {
		return false
	}
	if errors.Is(err, models.ErrJobFinished) {
		*cancelled = true
		return true
	}
	log.Printf("bulkimport: job %q progress: %v", jobID, err)
	return true
}

func (s *Service) failJob(jobID, message string) {
	if err := models.FailBulkJob(s.DB, jobID, message); err != nil {
		log.Printf("bulkimport: fail job %q: %v", jobID, err)
	}
}

// importItem turns one detected item into a saved workout with device
// exports. Failures land in the result instead of aborting the run.
func (s *Service) importItem(ctx context.Context, profileID, device, itemID string, item *models.DetectedItem) ImportResult {
	result := ImportResult{ItemID: itemID, Status: ImportFailed}
	if item == nil {
		result.Error = "detected item not found"
		return result
	}
	result.Title = itemTitle(item)

	w, sources, err := s.itemWorkout(ctx, item)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	if w.Title == "" {
		w.Title = result.Title
	} else {
		result.Title = w.Title
	}

	exports, formats, err := s.buildExports(profileID, device, w)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	report := s.Resolver.Validate(profileID, w, 0)
	validation, _ := json.Marshal(report)
	workoutData, _ := json.Marshal(w)
	sourcesJSON, _ := json.Marshal(sources)

	saved, err := models.SaveWorkout(s.DB, profileID, w.Title, w.Description,
		string(workoutData), string(sourcesJSON), device, exports, string(validation))
	if errors.Is(err, models.ErrWorkoutExists) {
		result.Status = ImportSkipped
		result.Error = "duplicate workout for this device"
		return result
	}
	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.Status = ImportSuccess
	result.WorkoutID = saved.ID
	result.ExportFormats = formats
	return result
}

// itemWorkout produces the canonical workout for an item. URL items run full
// extraction now; files and images were parsed at detect time.
func (s *Service) itemWorkout(ctx context.Context, item *models.DetectedItem) (*blocks.Workout, []string, error) {
	if item.SourceType == SourceURLs {
		var meta URLMetadata
		if err := json.Unmarshal([]byte(item.RawData), &meta); err != nil || meta.URL == "" {
			return nil, nil, fmt.Errorf("item %q has no source url", item.ID)
		}
		platform := meta.Platform
		if platform == PlatformUnknown {
			platform = ""
		}
		res, err := s.Ingestor.IngestURL(ctx, meta.URL, platform)
		if err != nil {
			return nil, nil, err
		}
		if res.Workout == nil {
			return nil, nil, fmt.Errorf("ingestor returned no workout for %s", meta.URL)
		}
		return res.Workout, []string{meta.URL}, nil
	}

	if !item.ParsedWorkout.Valid {
		return nil, nil, fmt.Errorf("item %q has no parsed workout", item.ID)
	}
	w, err := blocks.Parse([]byte(item.ParsedWorkout.String))
	if err != nil {
		return nil, nil, fmt.Errorf("item %q workout: %w", item.ID, err)
	}

	prefix := "file"
	if item.SourceType == SourceImages {
		prefix = "image"
	}
	var raw struct {
		Filename string `json:"filename"`
	}
	_ = json.Unmarshal([]byte(item.RawData), &raw)
	source := prefix
	if raw.Filename != "" {
		source = prefix + ":" + raw.Filename
	}
	return w, []string{source}, nil
}

// buildExports renders the formats stored for a device. FIT binaries are not
// stored; the FIT endpoint generates them on demand. Unknown devices save
// with no pre-rendered exports.
func (s *Service) buildExports(profileID, device string, w *blocks.Workout) (string, []string, error) {
	exports := make(map[string]any)
	switch device {
	case DeviceGarmin:
		yamlText, notes, err := s.Hyrox.Encode(profileID, w)
		if err != nil {
			return "", nil, fmt.Errorf("encode garmin yaml: %w", err)
		}
		exports["yaml"] = yamlText
		exports["mapping_notes"] = notes
	case DeviceZwift:
		xml, err := zwo.Encode(w, zwo.DetectSport(w))
		if err != nil {
			return "", nil, fmt.Errorf("encode zwo: %w", err)
		}
		exports["zwo"] = string(xml)
	case DeviceApple:
		exports["workoutkit"] = workoutkit.Build(w, s.Catalog, false)
	}

	data, err := json.Marshal(exports)
	if err != nil {
		return "", nil, fmt.Errorf("marshal exports: %w", err)
	}
	formats := make([]string, 0, len(exports))
	for format := range exports {
		formats = append(formats, format)
	}
	sort.Strings(formats)
	return string(data), formats, nil
}
