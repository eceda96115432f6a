package catalog

import (
	"sort"
	"strings"
)

// canonicalMovements reduce a name to its base movement pattern and give the
// Garmin exercise that pattern falls back to when no closer match exists.
var canonicalMovements = map[string]string{
	"bench press":    "Barbell Bench Press",
	"overhead press": "Barbell Overhead Press",
	"shoulder press": "Dumbbell Overhead Press",
	"push press":     "Push Press",
	"deadlift":       "Barbell Deadlift",
	"squat":          "Barbell Back Squat",
	"lunge":          "Lunge",
	"pull up":        "Pull Up",
	"chin up":        "Chin Up",
	"pulldown":       "Lat Pulldown",
	"push up":        "Push Up",
	"row":            "Barbell Row",
	"curl":           "Bicep Curl",
	"swing":          "Kettlebell Swing",
	"carry":          "Farmer's Carry",
	"plank":          "Plank",
	"crunch":         "Crunch",
	"sit up":         "Sit Up",
	"leg raise":      "Leg Raise",
	"burpee":         "Burpee",
	"box jump":       "Box Jump",
	"wall ball":      "Wall Ball",
	"thruster":       "Thruster",
	"snatch":         "Snatch",
	"clean":          "Clean",
	"dip":            "Dip",
	"run":            "Running",
	"ski":            "Ski Moguls",
}

// canonicalPatterns holds the map keys longest first so that "bench press"
// wins over "press" and "box jump" over "jump".
var canonicalPatterns = func() []string {
	patterns := make([]string, 0, len(canonicalMovements))
	for p := range canonicalMovements {
		patterns = append(patterns, p)
	}
	sort.Slice(patterns, func(i, j int) bool {
		if len(patterns[i]) != len(patterns[j]) {
			return len(patterns[i]) > len(patterns[j])
		}
		return patterns[i] < patterns[j]
	})
	return patterns
}()

// Canonical reduces a free-form name to the Garmin exercise of its base
// movement pattern. It returns "" when the name matches no known pattern.
func Canonical(name string) string {
	normalized := Normalize(name)
	if normalized == "" {
		return ""
	}
	for _, pattern := range canonicalPatterns {
		if strings.Contains(normalized, pattern) {
			return canonicalMovements[pattern]
		}
	}
	return ""
}
