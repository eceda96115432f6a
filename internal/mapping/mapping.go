// Package mapping resolves free-form exercise names to Garmin catalog names.
// Resolution is layered: a profile's saved mappings win, then crowd
// popularity, curated rules, fuzzy catalog matching, canonical movement
// patterns, and finally the normalized name itself title-cased.
package mapping

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/amakaflow/wmec/internal/catalog"
)

// Provenance labels, strongest layer first.
const (
	ProvenanceUser      = "user"
	ProvenancePopular   = "popular"
	ProvenanceCurated   = "curated"
	ProvenanceFuzzy     = "fuzzy"
	ProvenanceCanonical = "canonical"
	ProvenanceFallback  = "fallback"
)

// ConfidenceFloor is the minimum fuzzy score the resolver accepts before
// falling through to canonical patterns.
const ConfidenceFloor = 0.40

// PopularChoice is one crowd-sourced mapping with its vote count.
type PopularChoice struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// UserMappingSource supplies a profile's saved mappings keyed by normalized
// exercise name.
type UserMappingSource interface {
	UserMapping(profileID, normalized string) (string, bool)
}

// PopularitySource supplies crowd-sourced mapping counts for a normalized
// exercise name, most voted first.
type PopularitySource interface {
	PopularChoices(normalized string, limit int) []PopularChoice
}

// Resolution is the outcome of resolving one exercise name.
type Resolution struct {
	Input       string  `json:"input"`
	Normalized  string  `json:"normalized"`
	GarminName  string  `json:"garmin_name"`
	CategoryID  uint16  `json:"category_id"`
	CategoryKey string  `json:"category_key,omitempty"`
	Confidence  float64 `json:"confidence"`
	Provenance  string  `json:"provenance"`
	Popularity  int     `json:"popularity,omitempty"`
	Reason      string  `json:"reason"`
}

// Resolver maps exercise names against one catalog snapshot. Users and
// Popularity may be nil, which disables those layers.
type Resolver struct {
	cat     *catalog.Catalog
	matcher *Matcher

	Users      UserMappingSource
	Popularity PopularitySource
}

// NewResolver builds a resolver over the catalog with no mapping stores.
func NewResolver(cat *catalog.Catalog) *Resolver {
	return &Resolver{cat: cat, matcher: NewMatcher(cat)}
}

// Matcher exposes the resolver's fuzzy matcher.
func (r *Resolver) Matcher() *Matcher {
	return r.matcher
}

// Resolve maps one exercise name for a profile, trying each layer in order
// and stopping at the first hit.
func (r *Resolver) Resolve(profileID, name string) Resolution {
	res := Resolution{Input: name, Normalized: catalog.Normalize(name)}

	if r.Users != nil {
		if garmin, ok := r.Users.UserMapping(profileID, res.Normalized); ok {
			return r.finish(res, garmin, ProvenanceUser, 1.0, 0)
		}
	}

	if r.Popularity != nil {
		if choices := r.Popularity.PopularChoices(res.Normalized, 1); len(choices) > 0 {
			confidence := 0.70 + 0.05*float64(choices[0].Count)
			if confidence > 0.95 {
				confidence = 0.95
			}
			return r.finish(res, choices[0].Name, ProvenancePopular, confidence, choices[0].Count)
		}
	}

	if garmin, confidence := curatedMatch(res.Normalized); garmin != "" {
		return r.finish(res, garmin, ProvenanceCurated, confidence, 0)
	}

	if garmin, score := r.matcher.Find(name, ConfidenceFloor); garmin != "" {
		return r.finish(res, garmin, ProvenanceFuzzy, score, 0)
	}

	if garmin := catalog.Canonical(name); garmin != "" {
		return r.finish(res, garmin, ProvenanceCanonical, 0.60, 0)
	}

	return r.finish(res, capitalizeWords(res.Normalized), ProvenanceFallback, 0, 0)
}

func (r *Resolver) finish(res Resolution, garmin, provenance string, confidence float64, count int) Resolution {
	res.GarminName = garmin
	res.Provenance = provenance
	res.Confidence = confidence
	res.Popularity = count
	res.Reason = resolutionReason(provenance, confidence, count)

	match := r.cat.Lookup(garmin)
	res.CategoryID = catalog.RemapCategory(match.CategoryID)
	res.CategoryKey = match.CategoryKey
	return res
}

// resolutionReason phrases how a resolution was made for user-facing notes.
func resolutionReason(provenance string, confidence float64, count int) string {
	switch provenance {
	case ProvenanceUser:
		return "chosen from your saved preferences"
	case ProvenancePopular:
		if count == 1 {
			return "chosen as popular choice by 1 user"
		}
		return fmt.Sprintf("chosen as popular choice by %d users", count)
	case ProvenanceCurated:
		return "matched curated mapping rule"
	case ProvenanceFuzzy:
		return fmt.Sprintf("fuzzy matched with %d%% similarity", int(math.Round(confidence*100)))
	case ProvenanceCanonical:
		return "matched base movement pattern"
	default:
		return "used name as-is (no match found)"
	}
}

type curatedRule struct {
	key    string
	garmin string
}

// curatedRules pin community phrasings that fuzzy matching gets wrong onto
// the Garmin names they should land on.
var curatedRules = []curatedRule{
	{"cable/band straight arm pull down", "30-degree Lat Pull-down"},
	{"cable band straight arm pull down", "30-degree Lat Pull-down"},
	{"straight arm pull down", "30-degree Lat Pull-down"},
	{"kb rol into goblet squat", "Goblet Squat"},
	{"kb rdl into goblet squat", "Goblet Squat"},
	{"rdl into goblet squat", "Goblet Squat"},
	{"goblet squat", "Goblet Squat"},
	{"kb bottoms up press", "Kettlebell Floor to Shelf"},
	{"bottoms up press", "Kettlebell Floor to Shelf"},
	{"db incline bench press", "Incline Dumbbell Bench Press"},
	{"incline bench press", "Incline Dumbbell Bench Press"},
	{"ob single arm push jerk", "Dumbbell Power Clean and Jerk"},
	{"single arm push jerk", "Dumbbell Power Clean and Jerk"},
	{"bulgarian split squat", "Dumbbell Bulgarian Split Squat"},
	{"incline back extension/ goodmornings", "Bar Good Morning"},
	{"incline back extension goodmornings", "Bar Good Morning"},
	{"back extension goodmornings", "Bar Good Morning"},
	{"goodmornings", "Bar Good Morning"},
	{"trx rows", "TRX Inverted Row"},
	{"trx row", "TRX Inverted Row"},
	{"kneeling medball slams", "Medicine Ball Slam"},
	{"medball slams", "Medicine Ball Slam"},
	{"200m ski", "Ski Moguls"},
	{"ski", "Ski Moguls"},
	{"plank into pike", "Pike Push-up"},
	{"kb alternating plank drag", "Plank"},
	{"alternating plank drag", "Plank"},
	{"plank drag", "Plank"},
	{"backward sled drag", "Sled Backward Drag"},
	{"sled drag", "Sled Backward Drag"},
	{"backward drag", "Sled Backward Drag"},
	{"burpee max broad jumps", "Burpee"},
	{"burpee broad jump", "Burpee"},
	{"farmer carry", "Farmer's Carry"},
	{"farmers carry", "Farmer's Carry"},
	{"sled push", "Sled Push"},
	{"hand release push ups", "Hand Release Push Up"},
	{"hand release push up", "Hand Release Push Up"},
	{"db push press", "Dumbbell Push Press"},
	{"push press", "Dumbbell Push Press"},
	{"dual kb front squat", "Dumbbell Front Squat"},
	{"dual kettlebell front squat", "Dumbbell Front Squat"},
	{"kb front squat", "Dumbbell Front Squat"},
	{"kettlebell front squat", "Dumbbell Front Squat"},
	{"front squat", "Dumbbell Front Squat"},
}

// curatedByLength holds the rules longest key first so "kb rdl into goblet
// squat" is probed before "goblet squat".
var curatedByLength = func() []curatedRule {
	rules := make([]curatedRule, len(curatedRules))
	copy(rules, curatedRules)
	sort.SliceStable(rules, func(i, j int) bool {
		return len(rules[i].key) > len(rules[j].key)
	})
	return rules
}()

// curatedMatch returns the curated Garmin name for a normalized input. An
// exact key scores 1.0, the longest key contained in the input 0.95.
func curatedMatch(normalized string) (string, float64) {
	var best string
	bestLen := 0
	for _, rule := range curatedByLength {
		if normalized == rule.key {
			return rule.garmin, 1.0
		}
		if len(rule.key) > bestLen && strings.Contains(normalized, rule.key) {
			best = rule.garmin
			bestLen = len(rule.key)
		}
	}
	if best != "" {
		return best, 0.95
	}
	return "", 0
}

// capitalizeWords upper-cases the first letter of every word and lowers the
// rest.
func capitalizeWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		for j := 1; j < len(runes); j++ {
			runes[j] = unicode.ToLower(runes[j])
		}
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
