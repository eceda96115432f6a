package catalog

import "testing"

func TestTokenSetRatio(t *testing.T) {
	if got := TokenSetRatio("goblet squat", "squat goblet"); got != 1.0 {
		t.Errorf("order-free ratio = %v, want 1.0", got)
	}
	if got := TokenSetRatio("squat", "goblet squat"); got != 1.0 {
		t.Errorf("subset ratio = %v, want 1.0", got)
	}
	if got := TokenSetRatio("deadlift", "bench press"); got > 0.5 {
		t.Errorf("unrelated ratio = %v, want <= 0.5", got)
	}
	if got := TokenSetRatio("", "squat"); got != 0.0 {
		t.Errorf("empty ratio = %v, want 0.0", got)
	}
}

func TestTokenSetRatioAliases(t *testing.T) {
	// "db" expands to "dumbbell" before comparison.
	if got := TokenSetRatio("db bench press", "dumbbell bench press"); got != 1.0 {
		t.Errorf("db expansion ratio = %v, want 1.0", got)
	}
	if got := TokenSetRatio("kb swing", "kettlebell swing"); got != 1.0 {
		t.Errorf("kb expansion ratio = %v, want 1.0", got)
	}
}

func TestBestMatch(t *testing.T) {
	choices := []string{"push up", "pull up", "barbell bench press", "goblet squat"}

	name, score := BestMatch("pushups", choices)
	if name != "push up" || score != 1.0 {
		t.Errorf("BestMatch(pushups) = %q, %v, want push up, 1.0", name, score)
	}

	name, score = BestMatch("squat goblet", choices)
	if name != "goblet squat" {
		t.Errorf("BestMatch(squat goblet) = %q, want goblet squat", name)
	}
	if score != 1.0 {
		t.Errorf("BestMatch(squat goblet) score = %v, want 1.0", score)
	}

	name, _ = BestMatch("", choices)
	if name != "" {
		t.Errorf("BestMatch on empty query = %q, want empty", name)
	}
}

func TestTopMatches(t *testing.T) {
	choices := []string{"barbell back squat", "goblet squat", "front squat", "bench press"}

	matches := TopMatches("squat", choices, 2, 0.3)
	if len(matches) != 2 {
		t.Fatalf("TopMatches returned %d results, want 2", len(matches))
	}
	if matches[0].Score < matches[1].Score {
		t.Errorf("results not sorted: %v before %v", matches[0].Score, matches[1].Score)
	}
	for _, m := range matches {
		if m.Score < 0.3 {
			t.Errorf("match %q score %v below cutoff", m.Name, m.Score)
		}
	}

	if got := TopMatches("", choices, 5, 0.3); got != nil {
		t.Errorf("TopMatches on empty query = %v, want nil", got)
	}
}
