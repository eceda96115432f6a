// Package compile turns a blocks workout into the flat list of watch steps
// shared by every encoder: warm-ups, exercise sets, rests, and repeat markers
// in execution order.
package compile

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/amakaflow/wmec/internal/blocks"
	"github.com/amakaflow/wmec/internal/catalog"
)

// Step duration types from the FIT workout_step duration enum.
const (
	DurationTime     uint8 = 0  // value in milliseconds
	DurationDistance uint8 = 1  // value in centimeters
	DurationOpen     uint8 = 5  // no end condition, lap button when done
	DurationRepeat   uint8 = 6  // repeat_until_steps_cmplt
	DurationReps     uint8 = 29 // value is a rep count
)

// Step kinds.
const (
	KindWarmup   = "warmup"
	KindExercise = "exercise"
	KindRest     = "rest"
	KindRepeat   = "repeat"
)

// Step intensities.
const (
	IntensityActive uint8 = 0
	IntensityRest   uint8 = 1
	IntensityWarmup uint8 = 2
)

// Rest step styles.
const (
	RestTimed  = "timed"
	RestButton = "button"
)

// defaultRestBetweenSets applies when a block sets no inter-set rest.
const defaultRestBetweenSets = 30

// warmupActivityNames maps a block's warmup_activity to the step label shown
// on the watch.
var warmupActivityNames = map[string]string{
	"stretching":  "Stretching",
	"jump_rope":   "Jump Rope",
	"air_bike":    "Air Bike",
	"treadmill":   "Treadmill",
	"stairmaster": "Stairmaster",
	"rowing":      "Rowing",
	"custom":      "Warm-Up",
}

// Step is one executable unit on the watch. For repeat steps TargetIndex
// points at the first step of the repeated run (always earlier in the list)
// and RepeatCount is the total number of iterations, not additional ones.
type Step struct {
	Kind          string
	DisplayName   string
	Intensity     uint8
	DurationType  uint8
	DurationValue uint32
	CategoryID    uint16
	FitNameID     *uint16
	TargetIndex   int
	RepeatCount   uint32
}

// Options adjust how exercise end conditions are compiled.
type Options struct {
	// UseLapButton compiles every exercise step as open-ended so the
	// athlete presses lap when done. Preferred for conditioning work.
	UseLapButton bool
}

// Result is the compiled step list plus the set of exercise categories the
// working steps used, which drives sport-type inference. HIIT mirrors the
// workout-level interval flag so encoders downstream can pick their interval
// form without re-reading the blocks.
type Result struct {
	Steps      []Step
	Categories map[uint16]bool
	HIIT       bool
}

// Compile flattens a workout into ordered steps. Rest insertion happens at
// three levels: after each set (exercise rest_sec, else the block's rest
// between sets), after each superset (its rest_between_sec), and after each
// block (rest_between_rounds_sec). No rest is emitted after the final
// exercise of the final block.
func Compile(w *blocks.Workout, cat *catalog.Catalog, opts Options) Result {
	var steps []Step
	categories := make(map[uint16]bool)

	bs := w.Blocks
	if len(bs) == 0 || !bs[0].WarmupEnabled {
		// Default warm-up, ended by lap button press.
		steps = append(steps, warmupStep(0, ""))
	}

	for blockIdx, block := range bs {
		if block.WarmupEnabled {
			steps = append(steps, warmupStep(block.WarmupDurationSec, block.WarmupActivity))
		}

		rounds := blocks.ParseRounds(block.Structure)
		restBetweenSets := block.RestBetweenSetsSec
		if restBetweenSets == 0 {
			// Legacy field carried the same meaning.
			restBetweenSets = block.RestBetweenSec
		}
		if restBetweenSets == 0 {
			restBetweenSets = defaultRestBetweenSets
		}
		restAfterBlock := block.RestBetweenRoundsSec
		blockRestType := block.RestType
		if blockRestType == "" {
			blockRestType = RestTimed
		}
		isLastBlock := blockIdx == len(bs)-1

		all := flatten(block)
		for exIdx, item := range all {
			ex := item.Exercise
			name := ex.Name
			if name == "" {
				name = "Exercise"
			}
			sets := ex.Sets
			if sets == 0 {
				sets = rounds
			}

			match := cat.Lookup(name)
			categoryID := catalog.RemapCategory(match.CategoryID)
			categories[categoryID] = true

			display := displayName(name, match)
			durationType, durationValue := stepDuration(ex, opts.UseLapButton)

			exRestType := ex.RestType
			if exRestType == "" {
				exRestType = blockRestType
			}
			exRestSec := ex.RestSec

			if ex.WarmupSets > 0 && ex.WarmupReps > 0 {
				warmupStart := len(steps)
				steps = append(steps, Step{
					Kind:          KindExercise,
					DisplayName:   display + " (Warm-Up)",
					Intensity:     IntensityWarmup,
					DurationType:  DurationReps,
					DurationValue: uint32(ex.WarmupReps),
					CategoryID:    categoryID,
					FitNameID:     match.FitID,
				})
				if ex.WarmupSets > 1 {
					steps = append(steps, setRest(exRestType, exRestSec, restBetweenSets, blockRestType))
					steps = append(steps, repeatStep(warmupStart, ex.WarmupSets))
				}
				// Transition from warm-up sets into working sets.
				if exRestSec > 0 {
					steps = append(steps, restStep(exRestSec, exRestType))
				} else if restBetweenSets > 0 {
					steps = append(steps, restStep(restBetweenSets, blockRestType))
				}
			}

			startIndex := len(steps)
			steps = append(steps, Step{
				Kind:          KindExercise,
				DisplayName:   display,
				Intensity:     IntensityActive,
				DurationType:  durationType,
				DurationValue: durationValue,
				CategoryID:    categoryID,
				FitNameID:     match.FitID,
			})

			if sets > 1 {
				steps = append(steps, setRest(exRestType, exRestSec, restBetweenSets, blockRestType))
				steps = append(steps, repeatStep(startIndex, sets))
			}

			isLastExercise := exIdx == len(all)-1

			// Rest after the exercise. The type defaults to timed here,
			// not to the block's, so an explicit per-exercise rest
			// counts down even inside a button-rest block.
			if ex.RestSec > 0 && !(isLastBlock && isLastExercise) {
				postRestType := ex.RestType
				if postRestType == "" {
					postRestType = RestTimed
				}
				steps = append(steps, restStep(ex.RestSec, postRestType))
			}

			if item.LastInSuperset && item.SupersetRest > 0 {
				if !(isLastBlock && item.LastSuperset) {
					steps = append(steps, restStep(item.SupersetRest, item.SupersetRestType))
				}
			}
		}

		if restAfterBlock > 0 && !isLastBlock {
			steps = append(steps, restStep(restAfterBlock, blockRestType))
		}
	}

	return Result{Steps: steps, Categories: categories, HIIT: w.IsHIIT()}
}

// flatExercise is one exercise in block order with its superset context.
type flatExercise struct {
	Exercise         blocks.Exercise
	LastInSuperset   bool
	SupersetRest     int
	SupersetRestType string
	LastSuperset     bool
}

// flatten orders a block's exercises for compilation: superset members
// first, standalone exercises after.
func flatten(block blocks.Block) []flatExercise {
	var all []flatExercise
	for si, ss := range block.Supersets {
		lastSuperset := si == len(block.Supersets)-1 && len(block.Exercises) == 0
		restType := ss.RestType
		if restType == "" {
			restType = RestTimed
		}
		for ei, ex := range ss.Exercises {
			all = append(all, flatExercise{
				Exercise:         ex,
				LastInSuperset:   ei == len(ss.Exercises)-1,
				SupersetRest:     ss.RestBetweenSec,
				SupersetRestType: restType,
				LastSuperset:     lastSuperset,
			})
		}
	}
	for _, ex := range block.Exercises {
		all = append(all, flatExercise{Exercise: ex})
	}
	return all
}

// displayName picks the label the watch shows. Exact catalog matches keep the
// canonical Garmin name. Otherwise a name that already reads like a confirmed
// Garmin pick (Title Case, no distance or rep markers) is preserved verbatim,
// and anything else falls back to the matched display or category name.
func displayName(name string, match catalog.Match) string {
	switch match.MatchType {
	case catalog.MatchExact, catalog.MatchCategoryOverride:
		if match.DisplayName != "" {
			return match.DisplayName
		}
		return name
	}
	if isConfirmedName(name) {
		return name
	}
	if match.DisplayName != "" {
		return match.DisplayName
	}
	return match.CategoryName
}

var (
	distancePrefixRe = regexp.MustCompile(`^[\d.]+\s*(?i:m|km|mi)\s+`)
	repCountRe       = regexp.MustCompile(`\s*\d*(?i:x)\d+`)
)

// isConfirmedName reports whether a raw input already looks like a Garmin
// exercise name the user confirmed: mostly Title Case with no leading
// distance ("500m Run") and no rep markers ("Squat 3x10").
func isConfirmedName(name string) bool {
	if utf8.RuneCountInString(name) < 2 {
		return false
	}
	if distancePrefixRe.MatchString(name) {
		return false
	}
	if repCountRe.MatchString(name) {
		return false
	}
	words := strings.Fields(name)
	if len(words) == 0 {
		return false
	}
	capitalized := 0
	for _, w := range words {
		r, _ := utf8.DecodeRuneInString(w)
		if unicode.IsUpper(r) {
			capitalized++
		}
	}
	return float64(capitalized) >= float64(len(words))*0.6
}

var (
	repsKmRe       = regexp.MustCompile(`^([\d.]+)\s*km$`)
	repsMRe        = regexp.MustCompile(`^([\d.]+)\s*m$`)
	nameLeadDistRe = regexp.MustCompile(`^([\d.]+)\s*(km|m)\b`)
	nameTailDistRe = regexp.MustCompile(`([\d.]+)\s*(km|m)\s*$`)
)

// stepDuration picks the FIT end condition for an exercise, in priority
// order: explicit distance, distance written into the reps string, timed
// duration, explicit reps, reps range (upper bound), distance embedded in
// the name ("1km Run"), and finally open-ended.
func stepDuration(ex blocks.Exercise, useLapButton bool) (uint8, uint32) {
	if useLapButton {
		return DurationOpen, 0
	}

	var meters float64
	if ex.DistanceM != nil && *ex.DistanceM > 0 {
		meters = *ex.DistanceM
	} else if ex.Reps != nil && !ex.Reps.IsNumber {
		meters = repsDistanceMeters(ex.Reps.Raw)
	}
	if meters > 0 {
		return DurationDistance, uint32(meters * 100)
	}

	if ex.DurationSec > 0 {
		return DurationTime, uint32(ex.DurationSec) * 1000
	}
	if ex.Reps != nil {
		return DurationReps, uint32(repsCount(ex.Reps))
	}
	if ex.RepsRange != "" {
		return DurationReps, uint32(rangeUpperBound(ex.RepsRange))
	}
	if meters := nameDistanceMeters(ex.Name); meters > 0 {
		return DurationDistance, uint32(meters * 100)
	}
	return DurationOpen, 0
}

// repsDistanceMeters parses reps strings that actually carry a distance,
// like "500m" or "1.5km". Returns 0 when the string is not a distance.
func repsDistanceMeters(raw string) float64 {
	s := strings.ToLower(strings.TrimSpace(raw))
	if m := repsKmRe.FindStringSubmatch(s); m != nil {
		km, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0
		}
		return km * 1000
	}
	if m := repsMRe.FindStringSubmatch(s); m != nil {
		meters, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0
		}
		return meters
	}
	return 0
}

// nameDistanceMeters extracts a distance spelled inside the exercise name
// itself, leading ("1km Run") or trailing ("Run 1km"). Used only when no
// other end condition is present.
func nameDistanceMeters(name string) float64 {
	s := strings.ToLower(strings.TrimSpace(name))
	m := nameLeadDistRe.FindStringSubmatch(s)
	if m == nil {
		m = nameTailDistRe.FindStringSubmatch(s)
	}
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	if m[2] == "km" {
		v *= 1000
	}
	return v
}

// repsCount resolves an explicit reps value. String ranges like "8-10" take
// the lower bound; anything unparseable, and a zero count, default to 10.
func repsCount(r *blocks.Reps) int {
	if r.IsNumber {
		if r.Count != 0 {
			return r.Count
		}
		return 10
	}
	first := strings.SplitN(r.Raw, "-", 2)[0]
	n, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil {
		return 10
	}
	return n
}

// rangeUpperBound parses a reps_range like "6-8" to its upper bound,
// defaulting to 10.
func rangeUpperBound(repsRange string) int {
	parts := strings.Fields(strings.ReplaceAll(repsRange, "-", " "))
	if len(parts) == 0 {
		return 10
	}
	n, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return 10
	}
	return n
}

// warmupStep builds a warm-up step: timed when a duration is set, otherwise
// ended by lap button. Warm-ups always land in the Cardio category.
func warmupStep(durationSec int, activity string) Step {
	display := "Warm-Up"
	if activity != "" {
		if name, ok := warmupActivityNames[activity]; ok {
			display = name
		}
	}
	step := Step{
		Kind:         KindWarmup,
		DisplayName:  display,
		Intensity:    IntensityWarmup,
		DurationType: DurationOpen,
		CategoryID:   catalog.CategoryCardio,
	}
	if durationSec > 0 {
		step.DurationType = DurationTime
		step.DurationValue = uint32(durationSec) * 1000
	}
	return step
}

// setRest picks the rest between sets: button rests ignore durations,
// otherwise the exercise's own rest wins over the block's.
func setRest(exRestType string, exRestSec, restBetweenSets int, blockRestType string) Step {
	switch {
	case exRestType == RestButton:
		return restStep(0, RestButton)
	case exRestSec > 0:
		return restStep(exRestSec, RestTimed)
	default:
		return restStep(restBetweenSets, blockRestType)
	}
}

func restStep(durationSec int, restType string) Step {
	step := Step{
		Kind:        KindRest,
		DisplayName: "Rest",
		Intensity:   IntensityRest,
	}
	if restType == RestButton {
		step.DurationType = DurationOpen
		return step
	}
	step.DurationType = DurationTime
	step.DurationValue = uint32(durationSec) * 1000
	return step
}

func repeatStep(targetIndex, count int) Step {
	return Step{
		Kind:         KindRepeat,
		DisplayName:  "Repeat",
		DurationType: DurationRepeat,
		TargetIndex:  targetIndex,
		RepeatCount:  uint32(count),
	}
}
