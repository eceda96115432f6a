package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

//go:embed garmin_exercises.json
var garminExercises []byte

// Match types returned by Lookup, from strongest to weakest.
const (
	MatchExact            = "exact"
	MatchCategoryOverride = "exact_with_category_override"
	MatchBuiltinKeyword   = "builtin_keyword"
	MatchKeyword          = "keyword"
	MatchFuzzy            = "fuzzy"
	MatchDefault          = "default"
)

// fuzzyLookupThreshold is the minimum similarity for a fuzzy catalog hit.
const fuzzyLookupThreshold = 0.6

// Exercise is one entry of the Garmin exercise dictionary. FitID carries the
// FIT SDK exercise_name value when one is known; exercises without it get a
// sequential per-category id at encode time.
type Exercise struct {
	CategoryID   uint16  `json:"category_id"`
	CategoryKey  string  `json:"category_key"`
	CategoryName string  `json:"category_name"`
	ExerciseKey  string  `json:"exercise_key"`
	DisplayName  string  `json:"display_name"`
	FitID        *uint16 `json:"fit_id,omitempty"`
}

// CategoryInfo describes one exercise category.
type CategoryInfo struct {
	ID   uint16 `json:"id"`
	Name string `json:"name"`
}

// keywordRule routes a substring of a normalized name to a category. Rules
// are ordered; the first hit wins.
type keywordRule struct {
	Keyword      string `json:"keyword"`
	CategoryID   uint16 `json:"category_id"`
	CategoryKey  string `json:"category_key"`
	CategoryName string `json:"category_name"`
	DisplayName  string `json:"display_name"`
}

// builtinKeywords cover generic cardio terms that must resolve to categories
// a watch accepts in mixed workouts. Run inputs map to Cardio (2) because the
// Run category (32) only works with sport type running. Order matters: "ski
// erg" must be probed before the bare "ski".
var builtinKeywords = []keywordRule{
	{Keyword: "run", CategoryID: CategoryCardio, CategoryKey: "CARDIO", CategoryName: "Cardio", DisplayName: "Run"},
	{Keyword: "running", CategoryID: CategoryCardio, CategoryKey: "CARDIO", CategoryName: "Cardio", DisplayName: "Run"},
	{Keyword: "jog", CategoryID: CategoryCardio, CategoryKey: "CARDIO", CategoryName: "Cardio", DisplayName: "Run"},
	{Keyword: "sprint", CategoryID: CategoryCardio, CategoryKey: "CARDIO", CategoryName: "Cardio", DisplayName: "Run"},
	{Keyword: "ski erg", CategoryID: CategoryCardio, CategoryKey: "CARDIO", CategoryName: "Cardio", DisplayName: "Ski Erg"},
	{Keyword: "ski mogul", CategoryID: CategoryCardio, CategoryKey: "CARDIO", CategoryName: "Cardio", DisplayName: "Ski Erg"},
	{Keyword: "ski", CategoryID: CategoryCardio, CategoryKey: "CARDIO", CategoryName: "Cardio", DisplayName: "Ski Erg"},
	{Keyword: "row erg", CategoryID: CategoryRow, CategoryKey: "ROW", CategoryName: "Row", DisplayName: "Row"},
	{Keyword: "rower", CategoryID: CategoryRow, CategoryKey: "ROW", CategoryName: "Row", DisplayName: "Row"},
	{Keyword: "indoor row", CategoryID: CategoryRow, CategoryKey: "ROW", CategoryName: "Row", DisplayName: "Indoor Row"},
	{Keyword: "assault bike", CategoryID: CategoryCardio, CategoryKey: "CARDIO", CategoryName: "Cardio", DisplayName: "Assault Bike"},
	{Keyword: "echo bike", CategoryID: CategoryCardio, CategoryKey: "CARDIO", CategoryName: "Cardio", DisplayName: "Echo Bike"},
	{Keyword: "air bike", CategoryID: CategoryCardio, CategoryKey: "CARDIO", CategoryName: "Cardio", DisplayName: "Air Bike"},
	{Keyword: "bike erg", CategoryID: CategoryCardio, CategoryKey: "CARDIO", CategoryName: "Cardio", DisplayName: "Bike Erg"},
}

// Match is the result of a catalog lookup. Every lookup resolves to a
// category; MatchDefault marks the Core fallback for unrecognized names.
type Match struct {
	CategoryID     uint16  `json:"category_id"`
	CategoryKey    string  `json:"category_key"`
	CategoryName   string  `json:"category_name"`
	ExerciseKey    string  `json:"exercise_key,omitempty"`
	DisplayName    string  `json:"display_name,omitempty"`
	FitID          *uint16 `json:"fit_id,omitempty"`
	MatchType      string  `json:"match_type"`
	MatchedKeyword string  `json:"matched_keyword,omitempty"`
	MatchRatio     float64 `json:"match_ratio,omitempty"`
	Input          string  `json:"input"`
	Normalized     string  `json:"normalized"`
}

// Catalog is the in-memory Garmin exercise dictionary.
type Catalog struct {
	categories   map[string]CategoryInfo
	exercises    map[string]Exercise
	keywords     []keywordRule
	names        []string
	displayNames []string
	categoryIDs  map[string]uint16
}

type catalogJSON struct {
	Version    int                     `json:"version"`
	Categories map[string]CategoryInfo `json:"categories"`
	Exercises  map[string]Exercise     `json:"exercises"`
	Keywords   []keywordRule           `json:"keywords"`
}

// Load parses the embedded Garmin exercise dictionary.
func Load() (*Catalog, error) {
	var cj catalogJSON
	if err := json.Unmarshal(garminExercises, &cj); err != nil {
		return nil, fmt.Errorf("catalog: parse exercise data: %w", err)
	}

	c := &Catalog{
		categories:  cj.Categories,
		exercises:   cj.Exercises,
		keywords:    cj.Keywords,
		categoryIDs: make(map[string]uint16, len(cj.Categories)),
	}

	for _, info := range cj.Categories {
		c.categoryIDs[info.Name] = info.ID
	}

	c.names = make([]string, 0, len(cj.Exercises))
	for name := range cj.Exercises {
		c.names = append(c.names, name)
	}
	sort.Strings(c.names)

	c.displayNames = make([]string, 0, len(c.names))
	for _, name := range c.names {
		c.displayNames = append(c.displayNames, cj.Exercises[name].DisplayName)
	}

	return c, nil
}

// Lookup resolves a free-form exercise name to a Garmin category, trying in
// order: exact normalized match, builtin keywords, configured keywords, fuzzy
// match, and finally the Core default. Exact matches landing in the Run
// category are overridden to the builtin keyword's category so mixed workouts
// stay valid, keeping the catalog display name.
func (c *Catalog) Lookup(name string) Match {
	normalized := Normalize(name)

	if ex, ok := c.exercises[normalized]; ok {
		m := matchFromExercise(ex, MatchExact, name, normalized)
		if ex.CategoryID == CategoryRun {
			for _, rule := range builtinKeywords {
				if strings.Contains(normalized, rule.Keyword) {
					m.CategoryID = rule.CategoryID
					m.CategoryKey = rule.CategoryKey
					m.CategoryName = rule.CategoryName
					m.MatchType = MatchCategoryOverride
					break
				}
			}
		}
		return m
	}

	for _, rule := range builtinKeywords {
		if strings.Contains(normalized, rule.Keyword) {
			return matchFromKeyword(rule, MatchBuiltinKeyword, name, normalized)
		}
	}

	for _, rule := range c.keywords {
		if strings.Contains(normalized, rule.Keyword) {
			return matchFromKeyword(rule, MatchKeyword, name, normalized)
		}
	}

	var best *Exercise
	bestRatio := 0.0
	for _, candidate := range c.names {
		ratio := indelRatio(normalized, candidate)
		if ratio > bestRatio && ratio > fuzzyLookupThreshold {
			bestRatio = ratio
			ex := c.exercises[candidate]
			best = &ex
		}
	}
	if best != nil {
		m := matchFromExercise(*best, MatchFuzzy, name, normalized)
		m.MatchRatio = bestRatio
		return m
	}

	return Match{
		CategoryID:   CategoryCore,
		CategoryKey:  "CORE",
		CategoryName: "Core",
		MatchType:    MatchDefault,
		Input:        name,
		Normalized:   normalized,
	}
}

// Exercise returns the catalog entry whose normalized name matches the given
// name exactly.
func (c *Catalog) Exercise(name string) (Exercise, bool) {
	ex, ok := c.exercises[Normalize(name)]
	return ex, ok
}

// DisplayNames returns every exercise display name, ordered by normalized
// name. The slice is shared; callers must not mutate it.
func (c *Catalog) DisplayNames() []string {
	return c.displayNames
}

// CategoryID resolves a category display name to its id, defaulting to Core.
func (c *Catalog) CategoryID(categoryName string) uint16 {
	if id, ok := c.categoryIDs[categoryName]; ok {
		return id
	}
	return CategoryCore
}

// Len reports the number of exercises in the dictionary.
func (c *Catalog) Len() int {
	return len(c.exercises)
}

func matchFromExercise(ex Exercise, matchType, input, normalized string) Match {
	return Match{
		CategoryID:   ex.CategoryID,
		CategoryKey:  ex.CategoryKey,
		CategoryName: ex.CategoryName,
		ExerciseKey:  ex.ExerciseKey,
		DisplayName:  ex.DisplayName,
		FitID:        ex.FitID,
		MatchType:    matchType,
		Input:        input,
		Normalized:   normalized,
	}
}

func matchFromKeyword(rule keywordRule, matchType, input, normalized string) Match {
	return Match{
		CategoryID:     rule.CategoryID,
		CategoryKey:    rule.CategoryKey,
		CategoryName:   rule.CategoryName,
		DisplayName:    rule.DisplayName,
		MatchType:      matchType,
		MatchedKeyword: rule.Keyword,
		Input:          input,
		Normalized:     normalized,
	}
}

