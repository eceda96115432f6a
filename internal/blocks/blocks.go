// Package blocks defines the canonical workout structure shared by the
// mapping, compile, and export pipelines. A workout is an ordered list of
// blocks; each block holds supersets and standalone exercises plus the rest
// and round settings that shape the compiled step sequence.
package blocks

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// Workout is the top-level canonical form produced by ingestion and consumed
// by every exporter.
type Workout struct {
	Title           string   `json:"title"`
	Description     string   `json:"description,omitempty"`
	Sources         []string `json:"sources,omitempty"`
	DurationMinutes int      `json:"duration_minutes,omitempty"`
	Blocks          []Block  `json:"blocks"`
}

// Block groups exercises that share structure ("3 rounds"), rest settings,
// and an optional warmup.
type Block struct {
	Label     string `json:"label,omitempty"`
	Structure string `json:"structure,omitempty"`

	WarmupEnabled     bool   `json:"warmup_enabled,omitempty"`
	WarmupActivity    string `json:"warmup_activity,omitempty"`
	WarmupDurationSec int    `json:"warmup_duration_sec,omitempty"`

	// RestBetweenSec is the legacy name for intra-set rest; newer payloads
	// send RestBetweenSetsSec. RestBetweenRoundsSec applies after the block.
	RestBetweenSetsSec   int    `json:"rest_between_sets_sec,omitempty"`
	RestBetweenSec       int    `json:"rest_between_sec,omitempty"`
	RestBetweenRoundsSec int    `json:"rest_between_rounds_sec,omitempty"`
	RestType             string `json:"rest_type,omitempty"`

	// TimeWorkSec marks time-based interval blocks ("60s on, 90s off x3").
	TimeWorkSec int `json:"time_work_sec,omitempty"`

	Supersets []Superset `json:"supersets,omitempty"`
	Exercises []Exercise `json:"exercises,omitempty"`
}

// Superset is a group of exercises performed back to back.
type Superset struct {
	Exercises      []Exercise `json:"exercises"`
	RestBetweenSec int        `json:"rest_between_sec,omitempty"`
	RestType       string     `json:"rest_type,omitempty"`
}

// Exercise is a single movement prescription. Exactly which end condition
// applies (reps, distance, time, or open) is decided by the step compiler.
type Exercise struct {
	Name          string   `json:"name"`
	Reps          *Reps    `json:"reps,omitempty"`
	RepsRange     string   `json:"reps_range,omitempty"`
	Sets          int      `json:"sets,omitempty"`
	DurationSec   int      `json:"duration_sec,omitempty"`
	DistanceM     *float64 `json:"distance_m,omitempty"`
	DistanceRange string   `json:"distance_range,omitempty"`
	RestSec       int      `json:"rest_sec,omitempty"`
	RestType      string   `json:"rest_type,omitempty"`
	WarmupSets    int      `json:"warmup_sets,omitempty"`
	WarmupReps    int      `json:"warmup_reps,omitempty"`
	Description   string   `json:"description,omitempty"`
	Notes         string   `json:"notes,omitempty"`
}

// Reps is a rep prescription as it appears on the wire: either a bare number
// or a free-form string such as "8-10", "500m", or "max each side".
type Reps struct {
	Count    int
	Raw      string
	IsNumber bool
}

// UnmarshalJSON accepts both numeric and string rep values.
func (r *Reps) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("blocks: parse reps string: %w", err)
		}
		r.Raw = s
		r.IsNumber = false
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("blocks: parse reps number: %w", err)
	}
	r.Count = int(n)
	r.IsNumber = true
	return nil
}

// MarshalJSON writes the value back in its original form.
func (r Reps) MarshalJSON() ([]byte, error) {
	if r.IsNumber {
		return json.Marshal(r.Count)
	}
	return json.Marshal(r.Raw)
}

// String renders the prescription for display.
func (r Reps) String() string {
	if r.IsNumber {
		return strconv.Itoa(r.Count)
	}
	return r.Raw
}

// NumberOf returns a numeric Reps value.
func NumberOf(n int) *Reps {
	return &Reps{Count: n, IsNumber: true}
}

// RawOf returns a string-form Reps value.
func RawOf(s string) *Reps {
	return &Reps{Raw: s}
}

// Decode reads a canonical workout from JSON.
func Decode(r io.Reader) (*Workout, error) {
	var w Workout
	if err := json.NewDecoder(r).Decode(&w); err != nil {
		return nil, fmt.Errorf("blocks: decode workout: %w", err)
	}
	return &w, nil
}

// Parse decodes a canonical workout from a JSON byte slice.
func Parse(data []byte) (*Workout, error) {
	var w Workout
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("blocks: decode workout: %w", err)
	}
	return &w, nil
}

var firstNumberRe = regexp.MustCompile(`(\d+)`)

// ParseRounds extracts the round count from a structure string like
// "3 rounds" or "4 sets". Missing or unparseable structures count as one.
func ParseRounds(structure string) int {
	if structure == "" {
		return 1
	}
	m := firstNumberRe.FindStringSubmatch(structure)
	if m == nil {
		return 1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return 1
	}
	return n
}

var roundsPhraseRe = regexp.MustCompile(`(?i)(\d+)\s+rounds?`)

// ExtractRounds reads the round count from structures phrased like
// "3 rounds". Unlike ParseRounds it ignores bare numbers, so "4x400m"
// still counts as one round.
func ExtractRounds(structure string) int {
	m := roundsPhraseRe.FindStringSubmatch(structure)
	if m == nil {
		return 1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return 1
	}
	return n
}

var hiitStructureRe = regexp.MustCompile(`(?i)\b(tabata|amrap|emom|hiit)\b`)

// IsHIITStructure reports whether a block structure string names an interval
// scheme (tabata, AMRAP, EMOM) rather than straight sets, so encoders can
// render the block in its interval form.
func IsHIITStructure(structure string) bool {
	return hiitStructureRe.MatchString(structure)
}

// IsHIIT reports whether any block in the workout declares an interval
// scheme.
func (w *Workout) IsHIIT() bool {
	for _, block := range w.Blocks {
		if IsHIITStructure(block.Structure) {
			return true
		}
	}
	return false
}

// ExerciseRef locates one exercise inside a workout for validation reports.
// Location uses the JSON path form "supersets[i].exercises[j]" or
// "exercises[j]" relative to the block. The prescription fields ride along so
// reports can describe the exercise without re-walking the workout.
type ExerciseRef struct {
	Name      string   `json:"name"`
	Block     string   `json:"block"`
	Location  string   `json:"location"`
	Sets      int      `json:"sets,omitempty"`
	Reps      *Reps    `json:"reps,omitempty"`
	DistanceM *float64 `json:"distance_m,omitempty"`
}

// ExerciseRefs walks the workout and returns every named exercise in
// document order, supersets before standalone exercises within each block.
func (w *Workout) ExerciseRefs() []ExerciseRef {
	var refs []ExerciseRef
	for blockIdx, block := range w.Blocks {
		label := block.Label
		if label == "" {
			label = fmt.Sprintf("Block %d", blockIdx+1)
		}
		for supersetIdx, superset := range block.Supersets {
			for exIdx, ex := range superset.Exercises {
				if ex.Name == "" {
					continue
				}
				refs = append(refs, ExerciseRef{
					Name:      ex.Name,
					Block:     label,
					Location:  fmt.Sprintf("supersets[%d].exercises[%d]", supersetIdx, exIdx),
					Sets:      ex.Sets,
					Reps:      ex.Reps,
					DistanceM: ex.DistanceM,
				})
			}
		}
		for exIdx, ex := range block.Exercises {
			if ex.Name == "" {
				continue
			}
			refs = append(refs, ExerciseRef{
				Name:      ex.Name,
				Block:     label,
				Location:  fmt.Sprintf("exercises[%d]", exIdx),
				Sets:      ex.Sets,
				Reps:      ex.Reps,
				DistanceM: ex.DistanceM,
			})
		}
	}
	return refs
}

// UniqueExerciseNames returns the distinct exercise names of a workout in
// first-seen order.
func (w *Workout) UniqueExerciseNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, ref := range w.ExerciseRefs() {
		if !seen[ref.Name] {
			seen[ref.Name] = true
			names = append(names, ref.Name)
		}
	}
	return names
}
