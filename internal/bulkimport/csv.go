package bulkimport

import (
	"bytes"
	"encoding/base64"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/amakaflow/wmec/internal/blocks"
)

// Target fields a CSV column can map to.
const (
	FieldTitle    = "title"
	FieldBlock    = "block"
	FieldExercise = "exercise"
	FieldSets     = "sets"
	FieldReps     = "reps"
	FieldDuration = "duration_sec"
	FieldDistance = "distance_m"
	FieldRest     = "rest_sec"
	FieldNotes    = "notes"
	FieldIgnore   = "ignore"
)

// ColumnMapping assigns one CSV column to a workout field. Detection fills
// these automatically; the map phase lets the user override them.
type ColumnMapping struct {
	SourceColumn      string   `json:"source_column"`
	SourceColumnIndex int      `json:"source_column_index"`
	TargetField       string   `json:"target_field"`
	Confidence        float64  `json:"confidence"`
	UserOverride      bool     `json:"user_override,omitempty"`
	SampleValues      []string `json:"sample_values,omitempty"`
}

// columnGuesses pair a target field with the headers that suggest it.
// Scanning order matters: "Workout Notes" must hit notes before the
// workout keyword can claim it for title, and "Rest Between Sets" must
// hit rest before sets.
var columnGuesses = []struct {
	field   string
	exact   []string
	partial []string
}{
	{FieldExercise, []string{"exercise", "exercise name", "movement", "name"}, []string{"exercise", "movement"}},
	{FieldNotes, []string{"notes", "note", "comments"}, []string{"note", "comment"}},
	{FieldRest, []string{"rest", "rest sec", "rest seconds", "rest_sec"}, []string{"rest"}},
	{FieldReps, []string{"reps", "rep", "repetitions"}, []string{"rep"}},
	{FieldSets, []string{"sets", "set", "set count"}, []string{"set"}},
	{FieldDuration, []string{"duration", "seconds", "time", "duration_sec"}, []string{"duration", "second", "time"}},
	{FieldDistance, []string{"distance", "meters", "distance_m"}, []string{"distance", "meter"}},
	{FieldBlock, []string{"block", "section", "circuit", "round"}, []string{"block", "section", "circuit"}},
	{FieldTitle, []string{"workout", "workout name", "title", "day"}, []string{"workout", "title", "day"}},
}

// readCSV parses raw bytes into a header row plus data rows.
func readCSV(data []byte) ([]string, [][]string, error) {
	cr := csv.NewReader(bytes.NewReader(data))
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("bulkimport: read csv: %w", err)
	}
	if len(records) < 2 {
		return nil, nil, fmt.Errorf("bulkimport: csv has no data rows")
	}
	return records[0], records[1:], nil
}

// DetectColumns guesses a target field for every header column and collects
// sample values for the review UI. Columns no guess applies to map to ignore
// with zero confidence.
func DetectColumns(header []string, rows [][]string) []ColumnMapping {
	taken := make(map[string]bool)
	mappings := make([]ColumnMapping, len(header))

	for i, col := range header {
		name := strings.TrimSpace(col)
		mappings[i] = ColumnMapping{
			SourceColumn:      name,
			SourceColumnIndex: i,
			TargetField:       FieldIgnore,
			SampleValues:      sampleValues(rows, i, 3),
		}

		lower := strings.ToLower(name)
		field, confidence := guessField(lower)
		if field == "" || taken[field] {
			continue
		}
		taken[field] = true
		mappings[i].TargetField = field
		mappings[i].Confidence = confidence
	}
	return mappings
}

func guessField(lower string) (string, float64) {
	for _, g := range columnGuesses {
		for _, e := range g.exact {
			if lower == e {
				return g.field, 0.95
			}
		}
	}
	for _, g := range columnGuesses {
		for _, p := range g.partial {
			if strings.Contains(lower, p) {
				return g.field, 0.60
			}
		}
	}
	return "", 0
}

func sampleValues(rows [][]string, col, limit int) []string {
	var samples []string
	for _, row := range rows {
		if col >= len(row) {
			continue
		}
		v := strings.TrimSpace(row[col])
		if v == "" {
			continue
		}
		samples = append(samples, v)
		if len(samples) == limit {
			break
		}
	}
	return samples
}

// csvConfidence scores how much of the sheet the detected mapping explains.
// No exercise column means nothing usable was found.
func csvConfidence(mappings []ColumnMapping) float64 {
	fields := make(map[string]bool)
	for _, m := range mappings {
		if m.TargetField != "" && m.TargetField != FieldIgnore {
			fields[m.TargetField] = true
		}
	}
	if !fields[FieldExercise] {
		return 0
	}
	confidence := 0.60
	for _, f := range []string{FieldReps, FieldSets, FieldTitle} {
		if fields[f] {
			confidence += 0.10
		}
	}
	return confidence
}

// columnIndex resolves a mapping to a header position. The stored index wins
// when it still points at the named column; otherwise the header is searched
// by name so re-ordered sheets keep working.
func columnIndex(header []string, m ColumnMapping) int {
	if m.SourceColumnIndex >= 0 && m.SourceColumnIndex < len(header) {
		if m.SourceColumn == "" || strings.EqualFold(strings.TrimSpace(header[m.SourceColumnIndex]), m.SourceColumn) {
			return m.SourceColumnIndex
		}
	}
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), m.SourceColumn) {
			return i
		}
	}
	return -1
}

// buildWorkout turns mapped CSV rows into one canonical workout. Rows group
// into blocks by the block column, falling back to the title column, so a
// sheet holding several named workouts imports as one workout with a block
// per name.
func buildWorkout(filename string, header []string, rows [][]string, mappings []ColumnMapping) (*blocks.Workout, []string, error) {
	cols := make(map[string]int)
	for _, m := range mappings {
		if m.TargetField == "" || m.TargetField == FieldIgnore {
			continue
		}
		if _, dup := cols[m.TargetField]; dup {
			continue
		}
		if i := columnIndex(header, m); i >= 0 {
			cols[m.TargetField] = i
		}
	}
	if _, ok := cols[FieldExercise]; !ok {
		return nil, nil, fmt.Errorf("bulkimport: no exercise column in %s", filename)
	}

	cell := func(row []string, field string) string {
		i, ok := cols[field]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	type group struct {
		label     string
		exercises []blocks.Exercise
	}
	var groups []*group
	byLabel := make(map[string]*group)
	var titles []string
	titleSeen := make(map[string]bool)
	var warnings []string

	for rowNum, row := range rows {
		name := cell(row, FieldExercise)
		if name == "" {
			if !rowEmpty(row) {
				// Header offset plus 1-based numbering puts row 0 at line 2.
				warnings = append(warnings, fmt.Sprintf("row %d: no exercise name, skipped", rowNum+2))
			}
			continue
		}

		title := cell(row, FieldTitle)
		if title != "" && !titleSeen[title] {
			titleSeen[title] = true
			titles = append(titles, title)
		}

		label := cell(row, FieldBlock)
		if label == "" {
			label = title
		}
		g := byLabel[label]
		if g == nil {
			g = &group{label: label}
			byLabel[label] = g
			groups = append(groups, g)
		}

		ex := blocks.Exercise{Name: name}
		if v := cell(row, FieldReps); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				ex.Reps = blocks.NumberOf(n)
			} else if isRepRange(v) {
				ex.RepsRange = v
			} else {
				ex.Reps = blocks.RawOf(v)
			}
		}
		if v := cell(row, FieldSets); v != "" {
			ex.Sets, _ = strconv.Atoi(v)
		}
		if v := cell(row, FieldDuration); v != "" {
			ex.DurationSec = parseSeconds(v)
		}
		if v := cell(row, FieldDistance); v != "" {
			if meters := parseMeters(v); meters > 0 {
				ex.DistanceM = &meters
			}
		}
		if v := cell(row, FieldRest); v != "" {
			ex.RestSec = parseSeconds(v)
		}
		if v := cell(row, FieldNotes); v != "" {
			ex.Notes = v
		}
		g.exercises = append(g.exercises, ex)
	}

	if len(groups) == 0 {
		return nil, warnings, fmt.Errorf("bulkimport: no exercises parsed from %s", filename)
	}

	w := &blocks.Workout{}
	switch {
	case len(titles) == 1:
		w.Title = titles[0]
	case len(titles) > 1:
		w.Title = fmt.Sprintf("%s (+%d more)", titles[0], len(titles)-1)
	default:
		w.Title = fileTitle(filename)
	}
	for i, g := range groups {
		b := blocks.Block{Label: g.label, Exercises: g.exercises}
		if b.Label == "" && len(groups) > 1 {
			b.Label = fmt.Sprintf("Block %d", i+1)
		}
		w.Blocks = append(w.Blocks, b)
	}
	return w, warnings, nil
}

func rowEmpty(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

var repRangePattern = regexp.MustCompile(`^\d+\s*-\s*\d+$`)

func isRepRange(v string) bool {
	return repRangePattern.MatchString(v)
}

// parseSeconds reads "45", "45s", "45 sec", or "2 min".
func parseSeconds(v string) int {
	v = strings.ToLower(strings.TrimSpace(v))
	mult := 1
	switch {
	case strings.HasSuffix(v, "min"):
		v = strings.TrimSuffix(v, "min")
		mult = 60
	case strings.HasSuffix(v, "sec"):
		v = strings.TrimSuffix(v, "sec")
	case strings.HasSuffix(v, "s"):
		v = strings.TrimSuffix(v, "s")
	}
	n, _ := strconv.Atoi(strings.TrimSpace(v))
	return n * mult
}

// parseMeters reads "500", "500m", or "1.5km".
func parseMeters(v string) float64 {
	v = strings.ToLower(strings.TrimSpace(v))
	mult := 1.0
	switch {
	case strings.HasSuffix(v, "km"):
		v = strings.TrimSuffix(v, "km")
		mult = 1000
	case strings.HasSuffix(v, "meters"):
		v = strings.TrimSuffix(v, "meters")
	case strings.HasSuffix(v, "m"):
		v = strings.TrimSuffix(v, "m")
	}
	meters, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0
	}
	return meters * mult
}

func fileTitle(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// decodeFileSource splits an optional "filename.ext:" prefix off a base64
// file payload and decodes it. Bare payloads are named after their position.
func decodeFileSource(source string, index int) (string, []byte, error) {
	filename := fmt.Sprintf("file_%d.csv", index)

	if i := strings.Index(source, "base64,"); strings.HasPrefix(source, "data:") && i >= 0 {
		source = source[i+len("base64,"):]
	} else if name, rest, ok := strings.Cut(source, ":"); ok && strings.Contains(name, ".") && len(name) < 256 {
		filename = name
		source = rest
	}

	data, err := base64.StdEncoding.DecodeString(source)
	if err != nil {
		return filename, nil, fmt.Errorf("bulkimport: decode %s: %w", filename, err)
	}
	return filename, data, nil
}

// splitNamedSource splits an optional "filename.ext:" prefix off a payload
// that stays encoded, as image sources do.
func splitNamedSource(source, fallback string) (string, string) {
	if name, rest, ok := strings.Cut(source, ":"); ok && strings.Contains(name, ".") && len(name) < 256 && !strings.HasPrefix(source, "data:") {
		return name, rest
	}
	return fallback, source
}
