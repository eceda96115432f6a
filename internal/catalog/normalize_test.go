package catalog

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"A1: KB Goblet Squat x10", "goblet squat"},
		{"B2: Cable Face Pulls x12 each side", "face pulls"},
		{"Push Ups (20kg vest)", "push ups"},
		{"DB Bench Press", "bench press"},
		{"200m Ski", "ski"},
		{"Run 1.5km", "run"},
		{"500m Row", "row"},
		{"Farmers Carry x20m each arm", "farmers carry"},
		{"TRX Rows", "rows"},
		{"  Goblet   Squat  ", "goblet squat"},
		{"Deadlift|", "deadlift"},
		{"KB RDL into Goblet Squat", "rdl into goblet squat"},
		{"", ""},
	}

	for _, tt := range tests {
		got := Normalize(tt.input)
		if got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"A1: KB Goblet Squat x10",
		"200m Ski",
		"B2; DB Push Press x8 each side",
		"Run 1km",
	}
	for _, input := range inputs {
		once := Normalize(input)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize(%q) not idempotent: %q != %q", input, once, twice)
		}
	}
}
