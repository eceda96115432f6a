package mapping

import (
	"strings"

	"github.com/amakaflow/wmec/internal/blocks"
)

// Validation statuses assigned to each exercise.
const (
	StatusValid       = "valid"
	StatusNeedsReview = "needs_review"
	StatusUnmapped    = "unmapped"
)

// DefaultReviewThreshold is the confidence below which a resolution is
// flagged for review.
const DefaultReviewThreshold = 0.85

// genericTerms are mapped names too vague to trust without review.
var genericTerms = map[string]bool{
	"push":   true,
	"carry":  true,
	"squat":  true,
	"plank":  true,
	"burpee": true,
}

// ValidationResult describes how one exercise resolved during validation.
type ValidationResult struct {
	OriginalName string            `json:"original_name"`
	MappedTo     string            `json:"mapped_to"`
	Confidence   float64           `json:"confidence"`
	Description  string            `json:"description"`
	Block        string            `json:"block"`
	Location     string            `json:"location"`
	Status       string            `json:"status"`
	Suggestions  ResultSuggestions `json:"suggestions"`
}

// ResultSuggestions trims the full suggestion set down to what validation
// payloads carry.
type ResultSuggestions struct {
	Similar         []Suggestion `json:"similar"`
	ByType          []Suggestion `json:"by_type"`
	Category        string       `json:"category,omitempty"`
	NeedsUserSearch bool         `json:"needs_user_search"`
}

// Report aggregates mapping validation over a whole workout. An exercise in
// Unmapped also appears in NeedsReview.
type Report struct {
	TotalExercises int                `json:"total_exercises"`
	Valid          []ValidationResult `json:"validated_exercises"`
	NeedsReview    []ValidationResult `json:"needs_review"`
	Unmapped       []ValidationResult `json:"unmapped_exercises"`
	CanProceed     bool               `json:"can_proceed"`
}

// Validate resolves every exercise in the workout and classifies each as
// valid, needing review, or unmapped. Review is triggered by confidence under
// the threshold, a generic mapped name, or a suggestion set that says the
// user must search manually. A threshold of 0 or below uses the default.
func (r *Resolver) Validate(profileID string, w *blocks.Workout, threshold float64) Report {
	if threshold <= 0 {
		threshold = DefaultReviewThreshold
	}

	refs := w.ExerciseRefs()
	report := Report{
		TotalExercises: len(refs),
		Valid:          []ValidationResult{},
		NeedsReview:    []ValidationResult{},
		Unmapped:       []ValidationResult{},
		CanProceed:     true,
	}

	for _, ref := range refs {
		res := r.Resolve(profileID, ref.Name)
		suggestions := r.Alternatives(ref.Name, true)

		confidence := 0.0
		if suggestions.Best != nil {
			confidence = suggestions.Best.Score
		}

		generic := genericTerms[strings.ToLower(res.GarminName)]
		needsReview := res.GarminName == "" || confidence < threshold || generic ||
			suggestions.NeedsUserSearch

		result := ValidationResult{
			OriginalName: ref.Name,
			MappedTo:     res.GarminName,
			Confidence:   confidence,
			Description:  Describe(ref.Name, ref.Reps, ref.DistanceM, res.GarminName),
			Block:        ref.Block,
			Location:     ref.Location,
			Status:       StatusValid,
			Suggestions: ResultSuggestions{
				Similar:         capSuggestions(suggestions.Similar, 5),
				ByType:          capSuggestions(suggestions.ByType, 10),
				Category:        suggestions.Category,
				NeedsUserSearch: suggestions.NeedsUserSearch,
			},
		}

		switch {
		case !needsReview:
			report.Valid = append(report.Valid, result)
		case res.GarminName == "" || suggestions.NeedsUserSearch:
			result.Status = StatusUnmapped
			report.NeedsReview = append(report.NeedsReview, result)
			report.Unmapped = append(report.Unmapped, result)
		default:
			result.Status = StatusNeedsReview
			report.NeedsReview = append(report.NeedsReview, result)
		}
	}

	if len(report.Unmapped) > 0 {
		report.CanProceed = false
	}
	return report
}

func capSuggestions(suggestions []Suggestion, limit int) []Suggestion {
	if len(suggestions) > limit {
		return suggestions[:limit]
	}
	return suggestions
}
