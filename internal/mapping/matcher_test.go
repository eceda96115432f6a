package mapping

import (
	"testing"

	"github.com/amakaflow/wmec/internal/catalog"
)

func testMatcher(t *testing.T) *Matcher {
	t.Helper()
	c, err := catalog.Load()
	if err != nil {
		t.Fatalf("catalog.Load: %v", err)
	}
	return NewMatcher(c)
}

func TestMatcherFind(t *testing.T) {
	m := testMatcher(t)

	tests := []struct {
		input string
		want  string
		score float64
	}{
		{"Goblet Squat", "Goblet Squat", 1.0},
		{"A1: KB Goblet Squat x10", "Goblet Squat", 1.0},
		{"Push Ups", "Push Up", 0.95},
		{"bench", "Bench Dip", 0.95},
		{"face pulls", "Face Pull", 0.95},
	}
	for _, tt := range tests {
		got, score := m.Find(tt.input, 0.70)
		if got != tt.want || score != tt.score {
			t.Errorf("Find(%q) = %q/%.2f, want %q/%.2f", tt.input, got, score, tt.want, tt.score)
		}
	}
}

func TestMatcherFindFuzzy(t *testing.T) {
	m := testMatcher(t)

	got, score := m.Find("gobble squat", 0.40)
	if got != "Goblet Squat" {
		t.Errorf("Find(gobble squat) = %q, want Goblet Squat", got)
	}
	if score < 0.85 || score >= 1.0 {
		t.Errorf("score = %.3f, want in [0.85, 1.0)", score)
	}
}

func TestMatcherFindNoMatch(t *testing.T) {
	m := testMatcher(t)

	if got, score := m.Find("zzz qqq vvv", 0.40); got != "" || score != 0 {
		t.Errorf("Find(zzz qqq vvv) = %q/%.2f, want no match", got, score)
	}
}

func TestMatcherFuzzyMatch(t *testing.T) {
	m := testMatcher(t)

	tests := []struct {
		input string
		want  string
	}{
		{"Push Ups", "Push Up"},
		{"squat", "Air Squat"},
		{"ski", "Ski Erg"},
		{"benchhh", ""},
	}
	for _, tt := range tests {
		if got := m.FuzzyMatch(tt.input); got != tt.want {
			t.Errorf("FuzzyMatch(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestMatcherSubstringPrefersShortest(t *testing.T) {
	m := newMatcher([]string{"Decline Barbell Bench Press", "Barbell Bench Press", "Bench Dip"})

	got, score := m.Find("bench press", 0.70)
	if got != "Barbell Bench Press" || score != 0.95 {
		t.Errorf("Find(bench press) = %q/%.2f, want Barbell Bench Press/0.95", got, score)
	}
}
