package bulkimport

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/amakaflow/wmec/internal/blocks"
	"github.com/amakaflow/wmec/internal/catalog"
	"github.com/amakaflow/wmec/internal/compile"
	"github.com/amakaflow/wmec/internal/mapping"
	"github.com/amakaflow/wmec/internal/models"
)

// MapResult reports how many items the map phase rebuilt.
type MapResult struct {
	JobID       string `json:"job_id"`
	MappedCount int    `json:"mapped_count"`
}

// MapColumns re-parses a file job's items under user-chosen column mappings.
// Item ids survive the rebuild so selections made against the detect
// response stay valid.
func (s *Service) MapColumns(jobID, profileID string, mappings []ColumnMapping) (*MapResult, error) {
	job, err := s.activeJob(jobID, profileID)
	if err != nil {
		return nil, err
	}
	if job.InputType != SourceFile {
		return nil, fmt.Errorf("%w: column mappings apply to file imports, job is %q", ErrInvalidInput, job.InputType)
	}
	if len(mappings) == 0 {
		return nil, fmt.Errorf("%w: no column mappings given", ErrInvalidInput)
	}

	items, err := models.ListDetectedItems(s.DB, jobID, profileID, false)
	if err != nil {
		return nil, err
	}

	rebuilt := make([]*models.DetectedItem, 0, len(items))
	for _, item := range items {
		var raw csvRaw
		if err := json.Unmarshal([]byte(item.RawData), &raw); err != nil || len(raw.Header) == 0 {
			// Items whose source never decoded carry no rows to re-parse.
			rebuilt = append(rebuilt, item)
			continue
		}
		raw.Columns = mappings
		next := s.buildFileItem(job, item.SourceIndex, raw)
		next.ID = item.ID
		next.Selected = item.Selected
		rebuilt = append(rebuilt, next)
	}

	if _, err := models.DeleteDetectedItems(s.DB, jobID); err != nil {
		return nil, err
	}
	if err := models.InsertDetectedItems(s.DB, rebuilt); err != nil {
		return nil, err
	}

	data, _ := json.Marshal(mappings)
	if err := models.SetBulkJobColumnMappings(s.DB, jobID, profileID, string(data)); err != nil {
		return nil, err
	}
	return &MapResult{JobID: jobID, MappedCount: len(rebuilt)}, nil
}

// Match statuses by resolver confidence.
const (
	MatchMatched     = "matched"
	MatchNeedsReview = "needs_review"
	MatchUnmapped    = "unmapped"
)

// Match classification thresholds.
const (
	MatchAutoThreshold     = 0.90
	MatchUnmappedThreshold = 0.50
)

// ExerciseMatch is the per-name outcome of the match phase.
type ExerciseMatch struct {
	ID                string               `json:"id"`
	OriginalName      string               `json:"original_name"`
	MatchedGarminName string               `json:"matched_garmin_name,omitempty"`
	Confidence        float64              `json:"confidence"`
	Provenance        string               `json:"provenance,omitempty"`
	Suggestions       []mapping.Suggestion `json:"suggestions"`
	Status            string               `json:"status"`
	UserSelection     string               `json:"user_selection,omitempty"`
	SourceItemIDs     []string             `json:"source_item_ids"`
	OccurrenceCount   int                  `json:"occurrence_count"`
}

// MatchResult is the match phase report with its status counters.
type MatchResult struct {
	JobID       string          `json:"job_id"`
	Exercises   []ExerciseMatch `json:"exercises"`
	Total       int             `json:"total_exercises"`
	Matched     int             `json:"matched"`
	NeedsReview int             `json:"needs_review"`
	Unmapped    int             `json:"unmapped"`
}

// Match resolves every distinct exercise name across the job's selected
// items. Caller-supplied overrides win outright and are persisted as the
// profile's mappings so every later encode resolves them the same way.
func (s *Service) Match(jobID, profileID string, overrides map[string]string) (*MatchResult, error) {
	if _, err := s.activeJob(jobID, profileID); err != nil {
		return nil, err
	}

	items, err := models.ListDetectedItems(s.DB, jobID, profileID, true)
	if err != nil {
		return nil, err
	}

	occurrences := make(map[string]int)
	sources := make(map[string][]string)
	for _, item := range items {
		if !item.ParsedWorkout.Valid {
			continue
		}
		w, err := blocks.Parse([]byte(item.ParsedWorkout.String))
		if err != nil {
			continue
		}
		seen := make(map[string]bool)
		for _, ref := range w.ExerciseRefs() {
			occurrences[ref.Name]++
			if !seen[ref.Name] {
				seen[ref.Name] = true
				sources[ref.Name] = append(sources[ref.Name], item.ID)
			}
		}
	}

	names := make([]string, 0, len(occurrences))
	for name := range occurrences {
		names = append(names, name)
	}
	sort.Strings(names)

	result := &MatchResult{JobID: jobID}
	for _, name := range names {
		m := ExerciseMatch{
			ID:              uuid.NewString(),
			OriginalName:    name,
			SourceItemIDs:   sources[name],
			OccurrenceCount: occurrences[name],
		}

		if garmin := overrides[name]; garmin != "" {
			m.MatchedGarminName = garmin
			m.UserSelection = garmin
			m.Confidence = 1.0
			m.Status = MatchMatched

			normalized := catalog.Normalize(name)
			if _, err := models.AddUserMapping(s.DB, profileID, normalized, garmin); err != nil {
				log.Printf("bulkimport: save override %q: %v", name, err)
			}
			if err := models.RecordMappingChoice(s.DB, normalized, garmin); err != nil {
				log.Printf("bulkimport: record override choice %q: %v", name, err)
			}
		} else {
			res := s.Resolver.Resolve(profileID, name)
			m.MatchedGarminName = res.GarminName
			m.Confidence = round2(res.Confidence)
			m.Provenance = res.Provenance
			m.Suggestions = s.Resolver.Matcher().Similar(name, nil, 5, 0.30)
			switch {
			case res.Confidence >= MatchAutoThreshold:
				m.Status = MatchMatched
			case res.Confidence >= MatchUnmappedThreshold:
				m.Status = MatchNeedsReview
			default:
				m.Status = MatchUnmapped
			}
		}

		switch m.Status {
		case MatchMatched:
			result.Matched++
		case MatchNeedsReview:
			result.NeedsReview++
		default:
			result.Unmapped++
		}
		result.Exercises = append(result.Exercises, m)
	}
	result.Total = len(result.Exercises)

	data, _ := json.Marshal(result.Exercises)
	if err := models.SetBulkJobMatches(s.DB, jobID, string(data)); err != nil {
		return nil, err
	}
	return result, nil
}

// Issue is one problem surfaced while previewing an item.
type Issue struct {
	Severity     string `json:"severity"` // error, warning, or info
	Field        string `json:"field"`
	Message      string `json:"message"`
	ExerciseName string `json:"exercise_name,omitempty"`
	Suggestion   string `json:"suggestion,omitempty"`
}

// PreviewWorkout is one item prepared for the final review screen.
type PreviewWorkout struct {
	ID               string          `json:"id"`
	DetectedItemID   string          `json:"detected_item_id"`
	Title            string          `json:"title"`
	Description      string          `json:"description,omitempty"`
	ExerciseCount    int             `json:"exercise_count"`
	BlockCount       int             `json:"block_count"`
	EstimatedMinutes int             `json:"estimated_duration_minutes,omitempty"`
	Issues           []Issue         `json:"validation_issues"`
	Workout          json.RawMessage `json:"workout,omitempty"`
	Selected         bool            `json:"selected"`
	IsDuplicate      bool            `json:"is_duplicate"`
	DuplicateOf      string          `json:"duplicate_of,omitempty"`
}

// Stats summarize a preview across all items.
type Stats struct {
	TotalDetected       int `json:"total_detected"`
	TotalSelected       int `json:"total_selected"`
	TotalSkipped        int `json:"total_skipped"`
	ExercisesMatched    int `json:"exercises_matched"`
	ExercisesNeedReview int `json:"exercises_needing_review"`
	ExercisesUnmapped   int `json:"exercises_unmapped"`
	EstimatedMinutes    int `json:"estimated_duration_minutes"`
	DuplicatesFound     int `json:"duplicates_found"`
	ValidationErrors    int `json:"validation_errors"`
	ValidationWarnings  int `json:"validation_warnings"`
}

// PreviewResult is the preview phase payload.
type PreviewResult struct {
	JobID    string           `json:"job_id"`
	Workouts []PreviewWorkout `json:"workouts"`
	Stats    Stats            `json:"stats"`
}

// Preview applies the caller's selection, recomputes duplicate marks against
// saved workouts and within the batch, and assembles per-item previews with
// validation issues.
func (s *Service) Preview(jobID, profileID string, selectedIDs []string) (*PreviewResult, error) {
	job, err := s.activeJob(jobID, profileID)
	if err != nil {
		return nil, err
	}

	items, err := models.ListDetectedItems(s.DB, jobID, profileID, false)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(selectedIDs))
	for _, id := range selectedIDs {
		wanted[id] = true
	}
	for _, item := range items {
		if item.Selected != wanted[item.ID] {
			if err := models.SetDetectedItemSelected(s.DB, item.ID, profileID, wanted[item.ID]); err != nil {
				return nil, err
			}
			item.Selected = wanted[item.ID]
		}
	}

	if err := models.ClearDetectedItemDuplicates(s.DB, jobID); err != nil {
		return nil, err
	}
	for _, item := range items {
		item.IsDuplicate = false
		item.DuplicateOf = sql.NullString{}
	}
	if err := s.markDuplicates(profileID, items); err != nil {
		return nil, err
	}

	matchCounts := storedMatchCounts(job)

	result := &PreviewResult{JobID: jobID}
	result.Stats.TotalDetected = len(items)
	result.Stats.ExercisesMatched = matchCounts[MatchMatched]
	result.Stats.ExercisesNeedReview = matchCounts[MatchNeedsReview]
	result.Stats.ExercisesUnmapped = matchCounts[MatchUnmapped]

	for _, item := range items {
		pv := s.previewItem(profileID, item)
		if pv.Selected {
			result.Stats.TotalSelected++
			result.Stats.EstimatedMinutes += pv.EstimatedMinutes
		} else {
			result.Stats.TotalSkipped++
		}
		if pv.IsDuplicate {
			result.Stats.DuplicatesFound++
		}
		for _, issue := range pv.Issues {
			switch issue.Severity {
			case "error":
				result.Stats.ValidationErrors++
			case "warning":
				result.Stats.ValidationWarnings++
			}
		}
		result.Workouts = append(result.Workouts, pv)
	}
	return result, nil
}

// markDuplicates flags items whose title collides with a saved workout or an
// earlier item in the batch. Duplicates drop out of the selection; execution
// can still be forced by listing them explicitly.
func (s *Service) markDuplicates(profileID string, items []*models.DetectedItem) error {
	existing, err := models.ListWorkouts(s.DB, profileID, "", nil, duplicateScanLimit)
	if err != nil {
		return err
	}
	savedByTitle := make(map[string]string, len(existing))
	for _, w := range existing {
		savedByTitle[strings.ToLower(w.Title)] = w.ID
	}

	seenInBatch := make(map[string]string)
	for _, item := range items {
		if !item.ParsedTitle.Valid || item.ParsedTitle.String == "" {
			continue
		}
		key := strings.ToLower(item.ParsedTitle.String)

		duplicateOf := savedByTitle[key]
		if duplicateOf == "" {
			duplicateOf = seenInBatch[key]
		}
		if duplicateOf == "" {
			// Only items actually being imported can collide with later ones.
			if item.Selected {
				seenInBatch[key] = item.ID
			}
			continue
		}
		if err := models.MarkDetectedItemDuplicate(s.DB, item.ID, duplicateOf); err != nil {
			return err
		}
		item.IsDuplicate = true
		item.DuplicateOf = sql.NullString{String: duplicateOf, Valid: true}
		item.Selected = false
	}
	return nil
}

// duplicateScanLimit caps how many saved workouts the duplicate check reads.
const duplicateScanLimit = 1000

func (s *Service) previewItem(profileID string, item *models.DetectedItem) PreviewWorkout {
	pv := PreviewWorkout{
		ID:             uuid.NewString(),
		DetectedItemID: item.ID,
		Title:          itemTitle(item),
		ExerciseCount:  item.ParsedExerciseCount,
		BlockCount:     item.ParsedBlockCount,
		Selected:       item.Selected,
		IsDuplicate:    item.IsDuplicate,
		DuplicateOf:    item.DuplicateOf.String,
	}

	if item.Errors.Valid {
		var errs []string
		_ = json.Unmarshal([]byte(item.Errors.String), &errs)
		for _, e := range errs {
			pv.Issues = append(pv.Issues, Issue{Severity: "error", Field: "source", Message: e})
		}
	}

	if item.ParsedWorkout.Valid {
		pv.Workout = json.RawMessage(item.ParsedWorkout.String)
		if w, err := blocks.Parse([]byte(item.ParsedWorkout.String)); err == nil {
			pv.Description = w.Description
			pv.EstimatedMinutes = estimateMinutes(w, s.Catalog)
			report := s.Resolver.Validate(profileID, w, 0)
			pv.Issues = append(pv.Issues, issuesFromReport(report)...)
		}
	} else if item.SourceType == SourceURLs && !item.Errors.Valid {
		pv.Issues = append(pv.Issues, Issue{
			Severity: "info",
			Field:    "workout",
			Message:  "full extraction runs during import",
		})
	}
	return pv
}

// issuesFromReport converts mapping validation into preview issues. Unmapped
// names appear inside NeedsReview as well, so one walk covers both.
func issuesFromReport(report mapping.Report) []Issue {
	var issues []Issue
	for _, r := range report.NeedsReview {
		issue := Issue{Severity: "warning", Field: "exercise", ExerciseName: r.OriginalName}
		if r.Status == mapping.StatusUnmapped {
			issue.Message = fmt.Sprintf("no catalog match for %q, name will be used as-is", r.OriginalName)
		} else {
			issue.Message = fmt.Sprintf("%q mapped to %q with confidence %.2f", r.OriginalName, r.MappedTo, r.Confidence)
			issue.Suggestion = r.MappedTo
		}
		if issue.Suggestion == "" && len(r.Suggestions.Similar) > 0 {
			issue.Suggestion = r.Suggestions.Similar[0].Name
		}
		issues = append(issues, issue)
	}
	return issues
}

// storedMatchCounts reads status counters back out of the job's stored match
// report, so preview does not re-run matching.
func storedMatchCounts(job *models.BulkImportJob) map[string]int {
	counts := make(map[string]int)
	if !job.ExerciseMatches.Valid {
		return counts
	}
	var matches []ExerciseMatch
	if err := json.Unmarshal([]byte(job.ExerciseMatches.String), &matches); err != nil {
		return counts
	}
	for _, m := range matches {
		counts[m.Status]++
	}
	return counts
}

// estimateMinutes walks the compiled steps with nominal paces: rep steps at
// three seconds a rep, distance at the 0.30 s/m placeholder, open steps at
// 45 seconds. Workouts that declare a duration keep it.
func estimateMinutes(w *blocks.Workout, cat *catalog.Catalog) int {
	if w == nil {
		return 0
	}
	if w.DurationMinutes > 0 {
		return w.DurationMinutes
	}

	res := compile.Compile(w, cat, compile.Options{})
	secs := make([]float64, len(res.Steps))
	for i, step := range res.Steps {
		switch step.DurationType {
		case compile.DurationTime:
			secs[i] = float64(step.DurationValue) / 1000
		case compile.DurationReps:
			secs[i] = float64(step.DurationValue) * 3
		case compile.DurationDistance:
			secs[i] = math.Max(30, 0.30*float64(step.DurationValue)/100)
		case compile.DurationOpen:
			secs[i] = 45
		}
		if step.Kind == compile.KindRepeat && step.RepeatCount > 1 {
			var span float64
			for j := step.TargetIndex; j < i; j++ {
				span += secs[j]
			}
			// Nested repeats already hold their extra passes, so the outer
			// span multiplies correctly.
			secs[i] = span * float64(step.RepeatCount-1)
		}
	}

	var total float64
	for _, v := range secs {
		total += v
	}
	return int(math.Ceil(total / 60))
}

// activeJob loads a job and rejects phases against finished ones.
func (s *Service) activeJob(jobID, profileID string) (*models.BulkImportJob, error) {
	job, err := models.GetBulkJob(s.DB, jobID, profileID)
	if err != nil {
		return nil, err
	}
	if job.Terminal() {
		return nil, models.ErrJobFinished
	}
	return job, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
