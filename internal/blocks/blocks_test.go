package blocks

import (
	"strings"
	"testing"
)

func TestDecodeWorkout(t *testing.T) {
	payload := `{
		"title": "Push Day",
		"blocks": [
			{
				"label": "Strength",
				"structure": "3 rounds",
				"supersets": [
					{
						"exercises": [
							{"name": "DB Bench Press", "reps": 8, "sets": 3, "rest_sec": 90},
							{"name": "Push Ups", "reps": "8-10"}
						],
						"rest_between_sec": 120
					}
				],
				"exercises": [
					{"name": "500m Row", "reps": "500m"},
					{"name": "Plank", "duration_sec": 60}
				]
			}
		]
	}`

	w, err := Decode(strings.NewReader(payload))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if w.Title != "Push Day" {
		t.Errorf("title = %q", w.Title)
	}
	if len(w.Blocks) != 1 {
		t.Fatalf("blocks = %d, want 1", len(w.Blocks))
	}

	block := w.Blocks[0]
	if len(block.Supersets) != 1 || len(block.Supersets[0].Exercises) != 2 {
		t.Fatalf("superset shape wrong: %+v", block.Supersets)
	}

	bench := block.Supersets[0].Exercises[0]
	if bench.Reps == nil || !bench.Reps.IsNumber || bench.Reps.Count != 8 {
		t.Errorf("numeric reps = %+v", bench.Reps)
	}

	pushUps := block.Supersets[0].Exercises[1]
	if pushUps.Reps == nil || pushUps.Reps.IsNumber || pushUps.Reps.Raw != "8-10" {
		t.Errorf("string reps = %+v", pushUps.Reps)
	}

	row := block.Exercises[0]
	if row.Reps == nil || row.Reps.Raw != "500m" {
		t.Errorf("distance reps = %+v", row.Reps)
	}
}

func TestParseRounds(t *testing.T) {
	tests := []struct {
		structure string
		want      int
	}{
		{"3 rounds", 3},
		{"4 Rounds", 4},
		{"5 sets", 5},
		{"AMRAP", 1},
		{"", 1},
		{"0 rounds", 1},
	}

	for _, tt := range tests {
		if got := ParseRounds(tt.structure); got != tt.want {
			t.Errorf("ParseRounds(%q) = %d, want %d", tt.structure, got, tt.want)
		}
	}
}

func TestExtractRounds(t *testing.T) {
	tests := []struct {
		structure string
		want      int
	}{
		{"3 rounds", 3},
		{"4 Rounds", 4},
		{"1 round", 1},
		{"4x400m", 1},
		{"5 sets", 1},
		{"", 1},
	}

	for _, tt := range tests {
		if got := ExtractRounds(tt.structure); got != tt.want {
			t.Errorf("ExtractRounds(%q) = %d, want %d", tt.structure, got, tt.want)
		}
	}
}

func TestIsHIITStructure(t *testing.T) {
	tests := []struct {
		structure string
		want      bool
	}{
		{"Tabata", true},
		{"8 rounds tabata", true},
		{"EMOM 12", true},
		{"AMRAP 20", true},
		{"20 min HIIT", true},
		{"3 rounds", false},
		{"emommy", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsHIITStructure(tt.structure); got != tt.want {
			t.Errorf("IsHIITStructure(%q) = %v, want %v", tt.structure, got, tt.want)
		}
	}
}

func TestWorkoutIsHIIT(t *testing.T) {
	plain := &Workout{Blocks: []Block{{Structure: "3 rounds"}}}
	if plain.IsHIIT() {
		t.Error("straight-sets workout reported as HIIT")
	}

	mixed := &Workout{Blocks: []Block{
		{Structure: "3 rounds"},
		{Structure: "EMOM 10"},
	}}
	if !mixed.IsHIIT() {
		t.Error("workout with an EMOM block not reported as HIIT")
	}
}

func TestExerciseRefs(t *testing.T) {
	w := &Workout{
		Title: "Mixed",
		Blocks: []Block{
			{
				Label: "Block A",
				Supersets: []Superset{
					{Exercises: []Exercise{{Name: "Squat"}, {Name: "Bench"}}},
				},
				Exercises: []Exercise{{Name: "Run"}},
			},
			{
				Exercises: []Exercise{{Name: "Plank"}},
			},
		},
	}

	refs := w.ExerciseRefs()
	if len(refs) != 4 {
		t.Fatalf("refs = %d, want 4", len(refs))
	}
	if refs[0].Location != "supersets[0].exercises[0]" || refs[0].Block != "Block A" {
		t.Errorf("first ref = %+v", refs[0])
	}
	if refs[2].Location != "exercises[0]" {
		t.Errorf("standalone ref = %+v", refs[2])
	}
	if refs[3].Block != "Block 2" {
		t.Errorf("unlabeled block = %q, want Block 2", refs[3].Block)
	}
}

func TestUniqueExerciseNames(t *testing.T) {
	w := &Workout{
		Blocks: []Block{
			{Exercises: []Exercise{{Name: "Squat"}, {Name: "Bench"}, {Name: "Squat"}}},
		},
	}
	names := w.UniqueExerciseNames()
	if len(names) != 2 || names[0] != "Squat" || names[1] != "Bench" {
		t.Errorf("unique names = %v", names)
	}
}

func TestRepsRoundTrip(t *testing.T) {
	w := &Workout{
		Blocks: []Block{
			{Exercises: []Exercise{
				{Name: "Squat", Reps: NumberOf(5)},
				{Name: "Row", Reps: RawOf("500m")},
			}},
		},
	}

	if got := w.Blocks[0].Exercises[0].Reps.String(); got != "5" {
		t.Errorf("numeric reps string = %q", got)
	}
	if got := w.Blocks[0].Exercises[1].Reps.String(); got != "500m" {
		t.Errorf("raw reps string = %q", got)
	}
}
