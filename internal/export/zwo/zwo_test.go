package zwo

import (
	"strings"
	"testing"

	"github.com/amakaflow/wmec/internal/blocks"
)

func ptrFloat(v float64) *float64 { return &v }

func TestPowerTarget(t *testing.T) {
	tests := []struct {
		name string
		min  float64
		max  float64
		ok   bool
	}{
		{"103% FTP intervals", 1.03, 1.03, true},
		{"50% ftp", 0.50, 0.50, true},
		{"85-95% FTP", 0.85, 0.95, true},
		{"88–95% FTP", 0.88, 0.95, true},
		{"200-250W", 0.80, 1.00, true},
		{"hold 200w", 0.80, 0.80, true},
		{"Back Squat", 0, 0, false},
		{"easy run", 0, 0, false},
	}
	for _, tt := range tests {
		got := PowerTarget(tt.name)
		if !tt.ok {
			if got != nil {
				t.Errorf("PowerTarget(%q) = %+v, want nil", tt.name, got)
			}
			continue
		}
		if got == nil {
			t.Errorf("PowerTarget(%q) = nil, want %v-%v", tt.name, tt.min, tt.max)
			continue
		}
		if got.Type != TargetPower {
			t.Errorf("PowerTarget(%q).Type = %q, want %q", tt.name, got.Type, TargetPower)
		}
		if *got.Min != tt.min || *got.Max != tt.max {
			t.Errorf("PowerTarget(%q) = %v-%v, want %v-%v", tt.name, *got.Min, *got.Max, tt.min, tt.max)
		}
	}
}

func TestDetectSport(t *testing.T) {
	tests := []struct {
		exercise string
		want     string
	}{
		{"Assault Bike sprints", SportRide},
		{"FTP test", SportRide},
		{"30s spin ups", SportRide},
		{"250 watt hold", SportRide},
		{"Back Squat", SportRun},
		{"", SportRun},
	}
	for _, tt := range tests {
		w := &blocks.Workout{Blocks: []blocks.Block{{
			Exercises: []blocks.Exercise{{Name: tt.exercise}},
		}}}
		if got := DetectSport(w); got != tt.want {
			t.Errorf("DetectSport(%q) = %q, want %q", tt.exercise, got, tt.want)
		}
	}
}

func TestDurationSeconds(t *testing.T) {
	tests := []struct {
		step Step
		want int
	}{
		{Step{DurationS: 90}, 90},
		{Step{Kind: KindInterval, Reps: 4, WorkS: 60, RestS: 90}, 600},
		{Step{DistanceM: 1000}, 300},
		{Step{DistanceM: 50}, 30},
		{Step{}, 60},
	}
	for _, tt := range tests {
		if got := durationSeconds(tt.step); got != tt.want {
			t.Errorf("durationSeconds(%+v) = %d, want %d", tt.step, got, tt.want)
		}
	}
}

func TestBlockStepsLabels(t *testing.T) {
	tests := []struct {
		label string
		want  string
	}{
		{"Warmup", KindWarmup},
		{"Primer Circuit", KindWarmup},
		{"Cooldown", KindCooldown},
		{"Finisher", KindCooldown},
		{"Main Block", KindSteady},
	}
	for _, tt := range tests {
		steps := blockSteps(blocks.Block{Label: tt.label, TimeWorkSec: 300})
		if len(steps) != 1 {
			t.Fatalf("blockSteps(label=%q) produced %d steps, want 1", tt.label, len(steps))
		}
		if steps[0].Kind != tt.want {
			t.Errorf("blockSteps(label=%q) kind = %q, want %q", tt.label, steps[0].Kind, tt.want)
		}
	}
}

func TestBlockStepsDistanceIntervals(t *testing.T) {
	b := blocks.Block{Exercises: []blocks.Exercise{
		{Name: "400m repeats", DistanceM: ptrFloat(400), Sets: 4, RestSec: 60},
	}}
	steps := blockSteps(b)
	if len(steps) != 8 {
		t.Fatalf("blockSteps() produced %d steps, want 8", len(steps))
	}
	if steps[0].Kind != KindInterval || steps[0].DistanceM != 400 || steps[0].Reps != 1 || steps[0].RestS != 60 {
		t.Errorf("steps[0] = %+v, want 400m interval with 60s rest", steps[0])
	}
	if steps[1].Kind != KindRest || steps[1].DurationS != 60 {
		t.Errorf("steps[1] = %+v, want 60s rest", steps[1])
	}
}

func TestBlockStepsDistanceRange(t *testing.T) {
	b := blocks.Block{Label: "Cooldown", Exercises: []blocks.Exercise{
		{Name: "Jog it out", DistanceRange: "400-800"},
	}}
	steps := blockSteps(b)
	if len(steps) != 1 {
		t.Fatalf("blockSteps() produced %d steps, want 1", len(steps))
	}
	if steps[0].Kind != KindCooldown || steps[0].DistanceM != 600 {
		t.Errorf("steps[0] = %+v, want cooldown at midpoint 600m", steps[0])
	}
}

func TestBlockStepsSuperset(t *testing.T) {
	b := blocks.Block{Supersets: []blocks.Superset{{Exercises: []blocks.Exercise{
		{Name: "Row", DistanceM: ptrFloat(500)},
		{Name: "Plank", DurationSec: 60, RestSec: 30},
	}}}}
	steps := blockSteps(b)
	if len(steps) != 3 {
		t.Fatalf("blockSteps() produced %d steps, want 3", len(steps))
	}
	if steps[0].Kind != KindSteady || steps[0].DistanceM != 500 {
		t.Errorf("steps[0] = %+v, want steady 500m", steps[0])
	}
	if steps[1].Kind != KindSteady || steps[1].DurationS != 60 {
		t.Errorf("steps[1] = %+v, want steady 60s", steps[1])
	}
	if steps[2].Kind != KindRest || steps[2].DurationS != 30 {
		t.Errorf("steps[2] = %+v, want 30s rest", steps[2])
	}
}

func TestEncodeFTPIntervals(t *testing.T) {
	w := &blocks.Workout{
		Title: "FTP Intervals",
		Blocks: []blocks.Block{{
			TimeWorkSec: 60,
			Exercises:   []blocks.Exercise{{Name: "103% FTP intervals", Sets: 4, RestSec: 90}},
		}},
	}

	out, err := Encode(w, "")
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	got := string(out)

	if !strings.HasPrefix(got, `<?xml version="1.0" encoding="UTF-8"?>`) {
		t.Errorf("Encode() missing XML declaration: %q", got[:40])
	}
	if !strings.Contains(got, "<sportType>bike</sportType>") {
		t.Errorf("Encode() sport not auto-detected as bike:\n%s", got)
	}
	if !strings.Contains(got, "<name>FTP Intervals</name>") {
		t.Errorf("Encode() missing workout name:\n%s", got)
	}
	want := `<IntervalsT Repeat="4" OnDuration="60" OffDuration="90" OnPower="103" OffPower="40">`
	if !strings.Contains(got, want) {
		t.Errorf("Encode() missing %s\ngot:\n%s", want, got)
	}
}

func TestEncodeRunSteadySegments(t *testing.T) {
	w := &blocks.Workout{
		Title: "Easy Run",
		Blocks: []blocks.Block{{
			RestBetweenSec: 60,
			Exercises: []blocks.Exercise{
				{Name: "Easy jog", DurationSec: 300},
				{Name: "Tempo effort", DurationSec: 240},
			},
		}},
	}

	out, err := Encode(w, "")
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	got := string(out)

	if !strings.Contains(got, "<sportType>run</sportType>") {
		t.Errorf("Encode() sport not auto-detected as run:\n%s", got)
	}
	for _, want := range []string{
		`<SteadyState Duration="300" Pace="0.70">`,
		`<SteadyState Duration="240" Pace="0.70">`,
		`<SteadyState Duration="60" OffPace="0.40">`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Encode() missing %s\ngot:\n%s", want, got)
		}
	}
}

func TestEncodeRoundsSequence(t *testing.T) {
	w := &blocks.Workout{
		Title: "Bike Rounds",
		Blocks: []blocks.Block{{
			Structure:      "3 rounds",
			TimeWorkSec:    60,
			RestBetweenSec: 120,
			Exercises: []blocks.Exercise{
				{Name: "Bike 90% FTP", DurationSec: 60},
				{Name: "Recovery spin 50% FTP", DurationSec: 30},
			},
		}},
	}

	out, err := Encode(w, "")
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	got := string(out)

	// Three rounds of two segments with rest between rounds but not after
	// the last.
	if n := strings.Count(got, "<SteadyState "); n != 8 {
		t.Errorf("Encode() emitted %d SteadyState elements, want 8\n%s", n, got)
	}
	for _, want := range []string{
		`<SteadyState Duration="60" Power="90">`,
		`<SteadyState Duration="30" Power="50">`,
		`<SteadyState Duration="120" OffPower="40">`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Encode() missing %s\ngot:\n%s", want, got)
		}
	}
	if n := strings.Count(got, `OffPower="40"`); n != 2 {
		t.Errorf("Encode() emitted %d round rests, want 2\n%s", n, got)
	}
}

func TestEncodeDistanceFallback(t *testing.T) {
	w := &blocks.Workout{
		Title: "Track Day",
		Blocks: []blocks.Block{{
			Exercises: []blocks.Exercise{
				{Name: "400m repeats", DistanceM: ptrFloat(400), Sets: 2, RestSec: 60},
			},
		}},
	}

	out, err := Encode(w, "run")
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	got := string(out)

	// Distance intervals carry no work time, so each leg degrades to a
	// steady segment at moderate effort with the distance converted to time.
	if !strings.Contains(got, `<SteadyState Duration="120" Pace="0.60">`) {
		t.Errorf("Encode() missing distance fallback segment:\n%s", got)
	}
	if !strings.Contains(got, `<SteadyState Duration="60" OffPace="0.40">`) {
		t.Errorf("Encode() missing rest segment:\n%s", got)
	}
}

func TestEncodeDefaultTitle(t *testing.T) {
	w := &blocks.Workout{Blocks: []blocks.Block{{TimeWorkSec: 60}}}

	out, err := Encode(w, "run")
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	got := string(out)

	if !strings.Contains(got, "<name>Imported Workout</name>") {
		t.Errorf("Encode() missing default title:\n%s", got)
	}
	if !strings.Contains(got, `<SteadyState Duration="60" Pace="0.70">`) {
		t.Errorf("Encode() missing bare block segment:\n%s", got)
	}
}

func TestEncodeUnsupportedSport(t *testing.T) {
	_, err := Encode(&blocks.Workout{}, "swim")
	if err == nil {
		t.Fatal("Encode(swim) error = nil, want unsupported sport error")
	}
	if !strings.Contains(err.Error(), "unsupported sport") {
		t.Errorf("Encode(swim) error = %v, want unsupported sport", err)
	}
}
