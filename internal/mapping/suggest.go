package mapping

import (
	"sort"
	"strings"

	"github.com/amakaflow/wmec/internal/catalog"
)

// Suggestion is one candidate catalog name for an exercise that did not map
// cleanly.
type Suggestion struct {
	Name       string  `json:"name"`
	Score      float64 `json:"score"`
	Normalized string  `json:"normalized"`
	Keyword    string  `json:"keyword,omitempty"`
	Popularity int     `json:"popularity"`
	IsPopular  bool    `json:"is_popular"`
}

// BestMatch is the single strongest suggestion for a name.
type BestMatch struct {
	Name       string  `json:"name"`
	Score      float64 `json:"score"`
	IsExact    bool    `json:"is_exact"`
	Popularity int     `json:"popularity"`
	IsPopular  bool    `json:"is_popular"`
}

// Suggestions bundles every alternative for one input name.
type Suggestions struct {
	Input           string          `json:"input"`
	Best            *BestMatch      `json:"best_match"`
	PopularChoices  []PopularChoice `json:"popular_choices"`
	Similar         []Suggestion    `json:"similar_exercises"`
	ByType          []Suggestion    `json:"exercises_by_type"`
	Category        string          `json:"category,omitempty"`
	NeedsUserSearch bool            `json:"needs_user_search"`
}

// movementKeywords identify the movement family a name belongs to.
var movementKeywords = []string{
	"squat", "press", "push", "pull", "row", "curl", "flye", "extension",
	"deadlift", "lunge", "plank", "crunch", "situp", "burpee", "jump",
	"swing", "carry", "drag", "pullup", "chinup", "dip", "raise", "shrug",
}

// movementCategories classify names into a movement pattern. Order matters:
// the most specific patterns come first.
var movementCategories = []struct {
	name     string
	keywords []string
}{
	{"push_up", []string{"push up", "pushup", "push-up", "hand release push"}},
	{"squat", []string{"squat"}},
	{"lunge", []string{"lunge", "split"}},
	{"deadlift", []string{"deadlift", "rdl", "romanian deadlift"}},
	{"swing", []string{"swing"}},
	{"burpee", []string{"burpee"}},
	{"plank", []string{"plank"}},
	{"carry", []string{"carry", "farmers", "walk"}},
	{"drag", []string{"drag"}},
	{"press", []string{"press", "shoulder press", "bench press", "push press"}},
	{"pull", []string{"pull", "pullup", "chinup", "chin up", "pull down"}},
	{"row", []string{"row", "inverted row"}},
	{"curl", []string{"curl", "biceps curl"}},
	{"extension", []string{"extension", "triceps extension", "back extension"}},
	{"flye", []string{"flye", "fly"}},
	{"crunch", []string{"crunch", "situp", "sit up", "ab", "abdominal"}},
	{"raise", []string{"raise", "lateral raise"}},
}

// MovementCategory classifies a name by movement pattern, or "" when none
// applies. Both the raw and normalized forms are probed so equipment
// prefixes do not hide the pattern.
func MovementCategory(name string) string {
	combined := strings.ToLower(name) + " " + catalog.Normalize(name)
	for _, category := range movementCategories {
		for _, kw := range category.keywords {
			if strings.Contains(combined, kw) {
				return category.name
			}
		}
	}
	return ""
}

// Similar returns up to limit catalog names ranked by token-set similarity,
// most popular first among those above minScore.
func (m *Matcher) Similar(raw string, popularity map[string]int, limit int, minScore float64) []Suggestion {
	if len(m.names) == 0 {
		return nil
	}
	input := catalog.Normalize(raw)

	var suggestions []Suggestion
	seen := make(map[string]bool)
	for _, cand := range catalog.TopMatches(input, m.normalized, limit*2, 0) {
		if cand.Score < minScore {
			continue
		}
		display, ok := m.byNorm[cand.Name]
		if !ok || seen[display] {
			continue
		}
		seen[display] = true
		count := popularity[display]
		suggestions = append(suggestions, Suggestion{
			Name:       display,
			Score:      cand.Score,
			Normalized: cand.Name,
			Popularity: count,
			IsPopular:  count > 0,
		})
		if len(suggestions) >= limit {
			break
		}
	}
	sortSuggestions(suggestions)
	return suggestions
}

// ByType returns catalog names sharing a movement keyword with the input, in
// catalog order, capped at limit and ranked most popular first.
func (m *Matcher) ByType(raw string, popularity map[string]int, limit int) []Suggestion {
	if len(m.names) == 0 {
		return nil
	}
	input := catalog.Normalize(raw)

	var matched []string
	for _, kw := range movementKeywords {
		if strings.Contains(input, kw) {
			matched = append(matched, kw)
		}
	}
	if len(matched) == 0 {
		matched = []string{input}
	}

	var suggestions []Suggestion
	seen := make(map[string]bool)
	for i, name := range m.names {
		if len(suggestions) >= limit {
			break
		}
		norm := m.normalized[i]
		for _, kw := range matched {
			if !strings.Contains(norm, kw) {
				continue
			}
			if !seen[name] {
				count := popularity[name]
				suggestions = append(suggestions, Suggestion{
					Name:       name,
					Score:      catalog.TokenSetRatio(input, norm),
					Normalized: norm,
					Keyword:    kw,
					Popularity: count,
					IsPopular:  count > 0,
				})
				seen[name] = true
			}
			break
		}
	}
	sortSuggestions(suggestions)
	if len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions
}

func sortSuggestions(suggestions []Suggestion) {
	sort.SliceStable(suggestions, func(i, j int) bool {
		if suggestions[i].Popularity != suggestions[j].Popularity {
			return suggestions[i].Popularity > suggestions[j].Popularity
		}
		return suggestions[i].Score > suggestions[j].Score
	})
}

// Alternatives assembles the full suggestion set for a name: the best match
// reconciled with crowd popularity, the popular choices themselves, similar
// names, and names of the same movement type.
func (r *Resolver) Alternatives(name string, includeSimilarTypes bool) Suggestions {
	normalized := catalog.Normalize(name)

	var choices []PopularChoice
	if r.Popularity != nil {
		choices = r.Popularity.PopularChoices(normalized, 5)
	}

	best, score := r.matcher.Find(name, 0.70)

	if len(choices) > 0 {
		top := choices[0]
		switch {
		case best != "" && catalog.Normalize(best) == catalog.Normalize(top.Name):
			best = top.Name
			if score < 0.85 {
				score = 0.85
			}
		case best == "" || score < 0.70:
			best = top.Name
			score = 0.60 + 0.05*float64(top.Count)
			if score > 0.85 {
				score = 0.85
			}
		}
	}

	result := Suggestions{
		Input:          name,
		PopularChoices: choices,
		Category:       MovementCategory(name),
	}

	if best != "" {
		popularityCount := 0
		if len(choices) > 0 && catalog.Normalize(best) == catalog.Normalize(choices[0].Name) {
			popularityCount = choices[0].Count
		}
		result.Best = &BestMatch{
			Name:       best,
			Score:      score,
			IsExact:    score >= 0.90,
			Popularity: popularityCount,
			IsPopular:  popularityCount > 0,
		}
	}

	result.Similar = r.matcher.Similar(name, r.popularityByName(normalized, 50), 10, 0.50)
	if includeSimilarTypes && result.Category != "" {
		result.ByType = r.matcher.ByType(name, r.popularityByName(normalized, 100), 15)
	}

	if best == "" || score < 0.70 {
		if len(result.Similar) == 0 && len(result.ByType) == 0 {
			result.NeedsUserSearch = true
		} else if score < 0.50 {
			result.NeedsUserSearch = true
		}
	}
	return result
}

// PopularityFor indexes the crowd counts for an input name by Garmin name,
// for weighting suggestion lists.
func (r *Resolver) PopularityFor(name string, limit int) map[string]int {
	return r.popularityByName(catalog.Normalize(name), limit)
}

// popularityByName indexes the crowd counts for one input by Garmin name.
func (r *Resolver) popularityByName(normalized string, limit int) map[string]int {
	counts := make(map[string]int)
	if r.Popularity == nil {
		return counts
	}
	for _, choice := range r.Popularity.PopularChoices(normalized, limit) {
		counts[choice.Name] = choice.Count
	}
	return counts
}
