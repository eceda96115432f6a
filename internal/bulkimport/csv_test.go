package bulkimport

import (
	"encoding/base64"
	"math"
	"strings"
	"testing"
)

func TestDetectColumns(t *testing.T) {
	header := []string{"Workout", "Exercise", "Sets", "Reps", "Rest Between Sets", "Workout Notes", "Mystery"}
	rows := [][]string{
		{"Day 1", "Back Squat", "3", "5", "90", "pause at bottom", "x"},
		{"Day 1", "Bench Press", "3", "8-10", "60", "", "y"},
	}

	mappings := DetectColumns(header, rows)
	if len(mappings) != len(header) {
		t.Fatalf("got %d mappings, want %d", len(mappings), len(header))
	}

	want := map[string]string{
		"Workout":           FieldTitle,
		"Exercise":          FieldExercise,
		"Sets":              FieldSets,
		"Reps":              FieldReps,
		"Rest Between Sets": FieldRest,
		"Workout Notes":     FieldNotes,
		"Mystery":           FieldIgnore,
	}
	for _, m := range mappings {
		if m.TargetField != want[m.SourceColumn] {
			t.Errorf("column %q mapped to %q, want %q", m.SourceColumn, m.TargetField, want[m.SourceColumn])
		}
	}

	if mappings[1].Confidence != 0.95 {
		t.Errorf("exact header confidence = %.2f, want 0.95", mappings[1].Confidence)
	}
	if mappings[4].Confidence != 0.60 {
		t.Errorf("partial header confidence = %.2f, want 0.60", mappings[4].Confidence)
	}
	if len(mappings[1].SampleValues) != 2 || mappings[1].SampleValues[0] != "Back Squat" {
		t.Errorf("sample values = %v", mappings[1].SampleValues)
	}

	if got := csvConfidence(mappings); math.Abs(got-0.90) > 1e-9 {
		t.Errorf("csv confidence = %.2f, want 0.90", got)
	}
}

func TestDetectColumnsNoExercise(t *testing.T) {
	mappings := DetectColumns([]string{"Foo", "Bar"}, nil)
	if got := csvConfidence(mappings); got != 0 {
		t.Errorf("csv confidence = %.2f, want 0 without an exercise column", got)
	}
}

func TestDetectColumnsDuplicateHeaders(t *testing.T) {
	mappings := DetectColumns([]string{"Exercise", "Exercise"}, nil)
	if mappings[0].TargetField != FieldExercise {
		t.Errorf("first column = %q, want exercise", mappings[0].TargetField)
	}
	if mappings[1].TargetField != FieldIgnore {
		t.Errorf("second column = %q, want ignore", mappings[1].TargetField)
	}
}

func TestBuildWorkout(t *testing.T) {
	header := []string{"Workout", "Exercise", "Sets", "Reps", "Duration", "Distance", "Rest", "Notes"}
	rows := [][]string{
		{"Day 1", "Back Squat", "3", "5", "", "", "90", "pause at bottom"},
		{"Day 1", "Bench Press", "3", "8-10", "", "", "", ""},
		{"Day 1", "Farmer Carry", "", "max each side", "", "", "", ""},
		{"Day 1", "Run", "", "", "2 min", "", "", ""},
		{"Day 2", "Sled Push", "4", "", "", "50m", "60", ""},
		{"", "", "", "", "", "", "", ""},
		{"Day 2", "", "3", "", "", "", "", ""},
	}
	mappings := DetectColumns(header, rows)

	w, warnings, err := buildWorkout("week1.csv", header, rows, mappings)
	if err != nil {
		t.Fatalf("buildWorkout: %v", err)
	}

	if w.Title != "Day 1 (+1 more)" {
		t.Errorf("title = %q, want Day 1 (+1 more)", w.Title)
	}
	if len(w.Blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(w.Blocks))
	}
	if w.Blocks[0].Label != "Day 1" || w.Blocks[1].Label != "Day 2" {
		t.Errorf("block labels = %q/%q", w.Blocks[0].Label, w.Blocks[1].Label)
	}
	if len(w.Blocks[0].Exercises) != 4 || len(w.Blocks[1].Exercises) != 1 {
		t.Fatalf("exercise counts = %d/%d, want 4/1", len(w.Blocks[0].Exercises), len(w.Blocks[1].Exercises))
	}

	squat := w.Blocks[0].Exercises[0]
	if squat.Name != "Back Squat" || squat.Sets != 3 || squat.RestSec != 90 || squat.Notes != "pause at bottom" {
		t.Errorf("squat = %+v", squat)
	}
	if squat.Reps == nil || !squat.Reps.IsNumber || squat.Reps.Count != 5 {
		t.Errorf("squat reps = %v, want 5", squat.Reps)
	}

	bench := w.Blocks[0].Exercises[1]
	if bench.RepsRange != "8-10" || bench.Reps != nil {
		t.Errorf("bench reps range = %q reps = %v", bench.RepsRange, bench.Reps)
	}

	carry := w.Blocks[0].Exercises[2]
	if carry.Reps == nil || carry.Reps.IsNumber || carry.Reps.Raw != "max each side" {
		t.Errorf("carry reps = %v, want raw string", carry.Reps)
	}

	run := w.Blocks[0].Exercises[3]
	if run.DurationSec != 120 {
		t.Errorf("run duration = %d, want 120", run.DurationSec)
	}

	sled := w.Blocks[1].Exercises[0]
	if sled.DistanceM == nil || *sled.DistanceM != 50 {
		t.Errorf("sled distance = %v, want 50", sled.DistanceM)
	}
	if sled.RestSec != 60 {
		t.Errorf("sled rest = %d, want 60", sled.RestSec)
	}

	if len(warnings) != 1 || warnings[0] != "row 8: no exercise name, skipped" {
		t.Errorf("warnings = %v", warnings)
	}
}

func TestBuildWorkoutSingleTitle(t *testing.T) {
	header := []string{"Workout", "Exercise", "Reps"}
	rows := [][]string{
		{"Leg Day", "Back Squat", "5"},
		{"Leg Day", "Lunge", "10"},
	}
	w, _, err := buildWorkout("sheet.csv", header, rows, DetectColumns(header, rows))
	if err != nil {
		t.Fatalf("buildWorkout: %v", err)
	}
	if w.Title != "Leg Day" {
		t.Errorf("title = %q, want Leg Day", w.Title)
	}
	if len(w.Blocks) != 1 || w.Blocks[0].Label != "Leg Day" {
		t.Errorf("blocks = %+v", w.Blocks)
	}
}

func TestBuildWorkoutFilenameFallback(t *testing.T) {
	header := []string{"Exercise", "Reps"}
	rows := [][]string{{"Burpee", "20"}}
	w, _, err := buildWorkout("monday_wod.csv", header, rows, DetectColumns(header, rows))
	if err != nil {
		t.Fatalf("buildWorkout: %v", err)
	}
	if w.Title != "monday_wod" {
		t.Errorf("title = %q, want monday_wod", w.Title)
	}
	if len(w.Blocks) != 1 || w.Blocks[0].Label != "" {
		t.Errorf("single unlabeled group should stay unlabeled, got %+v", w.Blocks)
	}
}

func TestBuildWorkoutNoExerciseColumn(t *testing.T) {
	header := []string{"Foo"}
	rows := [][]string{{"bar"}}
	_, _, err := buildWorkout("x.csv", header, rows, DetectColumns(header, rows))
	if err == nil || !strings.Contains(err.Error(), "no exercise column") {
		t.Errorf("err = %v, want no exercise column", err)
	}
}

func TestColumnIndexSurvivesReorder(t *testing.T) {
	header := []string{"Reps", "Exercise"}
	m := ColumnMapping{SourceColumn: "Exercise", SourceColumnIndex: 0, TargetField: FieldExercise}
	if got := columnIndex(header, m); got != 1 {
		t.Errorf("columnIndex = %d, want 1 after reorder", got)
	}

	m = ColumnMapping{SourceColumn: "Exercise", SourceColumnIndex: 1, TargetField: FieldExercise}
	if got := columnIndex(header, m); got != 1 {
		t.Errorf("columnIndex = %d, want 1 when index still matches", got)
	}

	m = ColumnMapping{SourceColumn: "Gone", SourceColumnIndex: 5, TargetField: FieldNotes}
	if got := columnIndex(header, m); got != -1 {
		t.Errorf("columnIndex = %d, want -1 for a missing column", got)
	}
}

func TestParseSeconds(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"45", 45},
		{"45s", 45},
		{"45 sec", 45},
		{"2 min", 120},
		{"", 0},
		{"abc", 0},
	}
	for _, tt := range tests {
		if got := parseSeconds(tt.in); got != tt.want {
			t.Errorf("parseSeconds(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseMeters(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"500", 500},
		{"500m", 500},
		{"1.5km", 1500},
		{"25 meters", 25},
		{"abc", 0},
	}
	for _, tt := range tests {
		if got := parseMeters(tt.in); got != tt.want {
			t.Errorf("parseMeters(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDecodeFileSource(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("a,b\n1,2\n"))

	t.Run("named", func(t *testing.T) {
		name, data, err := decodeFileSource("workouts.csv:"+payload, 0)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if name != "workouts.csv" || string(data) != "a,b\n1,2\n" {
			t.Errorf("got %q / %q", name, data)
		}
	})

	t.Run("data uri", func(t *testing.T) {
		name, data, err := decodeFileSource("data:text/csv;base64,"+payload, 3)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if name != "file_3.csv" || string(data) != "a,b\n1,2\n" {
			t.Errorf("got %q / %q", name, data)
		}
	})

	t.Run("bare payload", func(t *testing.T) {
		name, _, err := decodeFileSource(payload, 2)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if name != "file_2.csv" {
			t.Errorf("name = %q, want file_2.csv", name)
		}
	})

	t.Run("bad base64", func(t *testing.T) {
		if _, _, err := decodeFileSource("sheet.csv:!!!not-base64!!!", 0); err == nil {
			t.Error("want decode error")
		}
	})
}

func TestSplitNamedSource(t *testing.T) {
	name, payload := splitNamedSource("photo.jpg:abc123", "image_0.jpg")
	if name != "photo.jpg" || payload != "abc123" {
		t.Errorf("got %q / %q", name, payload)
	}

	name, payload = splitNamedSource("abc123", "image_1.jpg")
	if name != "image_1.jpg" || payload != "abc123" {
		t.Errorf("bare payload got %q / %q", name, payload)
	}
}
