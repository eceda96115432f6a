package catalog

import (
	"regexp"
	"strings"
)

// Normalization collapses orthographic variation in free-form exercise names
// so that "A1: KB Goblet Squat x10" and "goblet squat" resolve to the same
// catalog key. The pipeline is deterministic and idempotent.

var (
	setLabelRe     = regexp.MustCompile(`^[a-z]\d+[;:\s]+`)
	parenWeightRe  = regexp.MustCompile(`\(\s*[^)]*\d[^)]*\)`)
	repMarkerRe    = regexp.MustCompile(`\s*\bx\s*\d+.*$`)
	eachSideRe     = regexp.MustCompile(`\s+(each|per)\s+(side|arm|leg).*$`)
	trailingDistRe = regexp.MustCompile(`\s*\d+(\.\d+)?\s*(km|mi|m)\s*$`)
	leadingDistRe  = regexp.MustCompile(`^\d+(\.\d+)?\s*(km|mi|m)\s+`)
	strayTokenRe   = regexp.MustCompile(`\s+[0-9a-z]$`)
	spaceRe        = regexp.MustCompile(`\s+`)
)

// equipmentPrefixes are stripped from the front of a name, in order.
var equipmentPrefixes = []string{"db ", "kb ", "bb ", "sb ", "mb ", "trx ", "cable ", "band "}

// Normalize canonicalizes a free-form exercise name: lower-case, set-label
// prefixes ("A1:", "B2;"), parenthesized weight specs, equipment prefixes,
// trailing rep markers ("x10 each side"), and leading/trailing distance
// tokens ("200m", "1.5km") are all removed, whitespace is collapsed.
// Applying Normalize to its own output is a no-op.
func Normalize(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	for {
		next := normalizeOnce(s)
		if next == s {
			return s
		}
		s = next
	}
}

func normalizeOnce(s string) string {
	s = strings.TrimSpace(strings.TrimRight(s, "|"))

	s = setLabelRe.ReplaceAllString(s, "")
	s = parenWeightRe.ReplaceAllString(s, " ")

	for _, prefix := range equipmentPrefixes {
		s = strings.TrimPrefix(s, prefix)
	}

	s = repMarkerRe.ReplaceAllString(s, "")
	s = eachSideRe.ReplaceAllString(s, "")
	s = trailingDistRe.ReplaceAllString(s, "")
	s = leadingDistRe.ReplaceAllString(s, "")
	s = strayTokenRe.ReplaceAllString(s, "")

	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}
