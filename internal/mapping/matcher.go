package mapping

import (
	"sort"
	"strings"

	"github.com/amakaflow/wmec/internal/catalog"
)

// Matcher finds Garmin display names for free-form exercise queries. Exact
// normalized matches win, then substring containment, then token-set scoring
// with a length penalty so short inputs do not latch onto long names.
type Matcher struct {
	names      []string
	normalized []string
	byNorm     map[string]string
}

// NewMatcher builds a matcher over the catalog's display names.
func NewMatcher(cat *catalog.Catalog) *Matcher {
	return newMatcher(cat.DisplayNames())
}

func newMatcher(names []string) *Matcher {
	m := &Matcher{
		names:      names,
		normalized: make([]string, len(names)),
		byNorm:     make(map[string]string, len(names)),
	}
	for i, name := range names {
		norm := catalog.Normalize(name)
		m.normalized[i] = norm
		if _, ok := m.byNorm[norm]; !ok {
			m.byNorm[norm] = name
		}
	}
	return m
}

// Find returns the catalog name closest to raw and its score. Exact
// normalized matches score 1.0 and substring containment 0.95, preferring the
// shortest containing name. Otherwise the top five token-set candidates at or
// above threshold are ranked by score discounted for length difference, and
// the raw score of the winner is returned. No candidate means ("", 0).
func (m *Matcher) Find(raw string, threshold float64) (string, float64) {
	if len(m.names) == 0 {
		return "", 0
	}
	input := catalog.Normalize(raw)

	for i, norm := range m.normalized {
		if norm == input {
			return m.names[i], 1.0
		}
	}

	var subs []string
	for i, norm := range m.normalized {
		if norm == "" {
			continue
		}
		if strings.Contains(norm, input) || strings.Contains(input, norm) {
			subs = append(subs, m.names[i])
		}
	}
	if len(subs) > 0 {
		rawLower := strings.ToLower(raw)
		sort.SliceStable(subs, func(i, j int) bool {
			di := strings.ToLower(subs[i]) != rawLower
			dj := strings.ToLower(subs[j]) != rawLower
			if di != dj {
				return !di
			}
			return len(subs[i]) < len(subs[j])
		})
		return subs[0], 0.95
	}

	var best string
	bestAdjusted := -1.0
	bestScore := 0.0
	for _, cand := range catalog.TopMatches(input, m.normalized, 5, 0) {
		if cand.Score < threshold {
			continue
		}
		display, ok := m.byNorm[cand.Name]
		if !ok {
			continue
		}
		longest := len(display)
		if len(raw) > longest {
			longest = len(raw)
		}
		if longest == 0 {
			longest = 1
		}
		diff := len(display) - len(raw)
		if diff < 0 {
			diff = -diff
		}
		adjusted := cand.Score * (1 - 0.2*float64(diff)/float64(longest))
		if adjusted > bestAdjusted || (adjusted == bestAdjusted && len(display) < len(best)) {
			best = display
			bestAdjusted = adjusted
			bestScore = cand.Score
		}
	}
	if best == "" {
		return "", 0
	}
	return best, bestScore
}

// FuzzyMatch applies the default thresholds: 0.85 for single words of five
// characters or fewer, 0.70 otherwise. A single-word hit whose length differs
// from the input by more than twice the input length is retried at 0.90 and
// kept only if the retry scores higher.
func (m *Matcher) FuzzyMatch(raw string) string {
	threshold := 0.70
	words := strings.Fields(raw)
	if len(words) <= 1 && len(raw) <= 5 {
		threshold = 0.85
	}

	name, score := m.Find(raw, threshold)

	if name != "" && len(words) == 1 {
		diff := len(name) - len(raw)
		if diff < 0 {
			diff = -diff
		}
		if diff > 2*len(raw) {
			if retry, retryScore := m.Find(raw, 0.90); retryScore > score {
				return retry
			}
		}
	}
	return name
}
