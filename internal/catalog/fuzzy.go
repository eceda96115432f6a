package catalog

import (
	"sort"
	"strings"
)

// Fuzzy name matching: token-set similarity over normalized token strings,
// with a curated alias table applied before scoring. Scores are in [0, 1].

// aliasReplacements expands common shorthand inside a name before token
// comparison ("db bench" scores as "dumbbell bench").
var aliasReplacements = []struct{ short, long string }{
	{"db ", "dumbbell "},
	{"bb ", "barbell "},
	{"wb ", "wall ball "},
	{"kb ", "kettlebell "},
	{"oh ", "overhead "},
	{"ohp", "overhead press"},
	{"pu ", "push up "},
	{"pressup", "push up"},
}

// aliasMap maps whole normalized names to their canonical catalog form. A hit
// whose target exists in the candidate set short-circuits with score 1.0.
var aliasMap = map[string]string{
	"pushups":   "push up",
	"push up":   "push up",
	"push ups":  "push up",
	"pressup":   "push up",
	"pressups":  "push up",
	"press up":  "push up",
	"press ups": "push up",

	"bench press":      "barbell bench press",
	"bench":            "barbell bench press",
	"flat bench press": "barbell bench press",
	"flat bench":       "barbell bench press",
	"incline bench":    "incline barbell bench press",
	"incline press":    "incline barbell bench press",
	"decline bench":    "decline barbell bench press",
	"decline press":    "decline barbell bench press",
	"dumbbell bench":   "dumbbell bench press",

	"squat":             "barbell back squat",
	"squats":            "barbell back squat",
	"back squat":        "barbell back squat",
	"back squats":       "barbell back squat",
	"front squat":       "barbell front squat",
	"front squats":      "barbell front squat",
	"air squat":         "air squat",
	"bodyweight squat":  "air squat",

	"deadlift":              "barbell deadlift",
	"deadlifts":             "barbell deadlift",
	"conventional deadlift": "barbell deadlift",
	"rdl":                   "romanian deadlift",
	"romanian dl":           "romanian deadlift",
	"stiff leg deadlift":    "romanian deadlift",
	"sldl":                  "romanian deadlift",

	"shoulder press":          "barbell overhead press",
	"military press":          "barbell overhead press",
	"strict press":            "barbell overhead press",
	"standing press":          "barbell overhead press",
	"dumbbell shoulder press": "dumbbell overhead press",

	"row":           "barbell row",
	"rows":          "barbell row",
	"bent over row": "barbell row",
	"pendlay row":   "barbell row",
	"one arm row":   "dumbbell row",
	"seated row":    "cable row",

	"pullup":    "pull up",
	"pullups":   "pull up",
	"pull ups":  "pull up",
	"chin up":   "chin up",
	"chin ups":  "chin up",
	"chinup":    "chin up",
	"chinups":   "chin up",
	"pulldown":  "lat pulldown",
	"pull down": "lat pulldown",

	"hip thrusts":  "hip thrust",
	"glute bridge": "glute bridge",
	"bridge":       "glute bridge",

	"bicep curls":       "bicep curl",
	"curl":              "bicep curl",
	"curls":             "bicep curl",
	"dumbbell curls":    "dumbbell bicep curl",
	"alt db curl":       "alternating dumbbell curl",
	"alt db curls":      "alternating dumbbell curl",
	"alternating curl":  "alternating dumbbell curl",
	"hammer curls":      "hammer curl",
	"preacher curl":     "preacher curl",

	"tricep extensions": "tricep extension",
	"skull crushers":    "skull crusher",
	"pushdown":          "tricep pushdown",
	"rope pushdown":     "tricep pushdown",
	"dips":              "dip",
	"bench dips":        "bench dip",

	"lunges":                "lunge",
	"walking lunges":        "walking lunge",
	"reverse lunges":        "reverse lunge",
	"bulgarian split squat": "bulgarian split squat",
	"bss":                   "bulgarian split squat",

	"planks":          "plank",
	"side plank":      "side plank",
	"crunches":        "crunch",
	"sit ups":         "sit up",
	"situp":           "sit up",
	"situps":          "sit up",
	"leg raises":      "leg raise",
	"russian twists":  "russian twist",
	"ab rollout":      "ab wheel rollout",

	"wall balls":        "wall ball",
	"burpees":           "burpee",
	"box jumps":         "box jump",
	"kettlebell swings": "kettlebell swing",
	"thrusters":         "thruster",
	"power clean":       "power clean",
	"hang clean":        "hang clean",
	"muscle ups":        "muscle up",
	"toes to bar":       "toes to bar",
	"t2b":               "toes to bar",
	"ttb":               "toes to bar",
	"knees to elbow":    "knees to elbow",
	"k2e":               "knees to elbow",
	"double unders":     "double under",
	"du":                "double under",
	"dus":               "double under",

	"run":          "running",
	"jog":          "running",
	"jogging":      "running",
	"sprint":       "running",
	"rowing":       "rowing",
	"bike":         "cycling",
	"assault bike": "assault bike",
	"airdyne":      "assault bike",
	"skierg":       "ski erg",
	"jump rope":    "jump rope",
	"skipping":     "jump rope",

	"stretch":   "stretching",
	"foam roll": "foam rolling",
}

var nonAlnumRe = strings.NewReplacer("-", " ", "_", " ")

// normalizeTokens prepares a name for token-set comparison: shorthand is
// expanded, separators become spaces, and everything that is not a letter,
// digit, or space is dropped.
func normalizeTokens(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	for _, r := range aliasReplacements {
		s = strings.ReplaceAll(s, r.short, r.long)
	}
	s = nonAlnumRe.Replace(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, c := range s {
		if c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == ' ' {
			b.WriteRune(c)
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// indelRatio is the normalized longest-common-subsequence similarity of two
// strings: 2*LCS / (len(a)+len(b)).
func indelRatio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
			} else if prev[j] >= cur[j-1] {
				cur[j] = prev[j]
			} else {
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	lcs := prev[len(b)]
	return 2.0 * float64(lcs) / float64(len(a)+len(b))
}

// TokenSetRatio compares two strings as token sets: word order and duplicate
// words do not matter, and a query whose tokens are a subset of the
// candidate's tokens scores 1.0.
func TokenSetRatio(a, b string) float64 {
	ta := strings.Fields(normalizeTokens(a))
	tb := strings.Fields(normalizeTokens(b))
	if len(ta) == 0 || len(tb) == 0 {
		return 0.0
	}

	setA := make(map[string]bool, len(ta))
	for _, t := range ta {
		setA[t] = true
	}
	setB := make(map[string]bool, len(tb))
	for _, t := range tb {
		setB[t] = true
	}

	var inter, diffA, diffB []string
	for t := range setA {
		if setB[t] {
			inter = append(inter, t)
		} else {
			diffA = append(diffA, t)
		}
	}
	for t := range setB {
		if !setA[t] {
			diffB = append(diffB, t)
		}
	}
	sort.Strings(inter)
	sort.Strings(diffA)
	sort.Strings(diffB)

	sect := strings.Join(inter, " ")
	s1 := strings.TrimSpace(sect + " " + strings.Join(diffA, " "))
	s2 := strings.TrimSpace(sect + " " + strings.Join(diffB, " "))

	best := indelRatio(s1, s2)
	if sect != "" {
		if r := indelRatio(sect, s1); r > best {
			best = r
		}
		if r := indelRatio(sect, s2); r > best {
			best = r
		}
	}
	return best
}

// ScoredName is one fuzzy-match candidate.
type ScoredName struct {
	Name  string
	Score float64
}

// BestMatch returns the highest-scoring choice for a query, with the alias
// table consulted first: an alias target present in choices wins outright.
func BestMatch(query string, choices []string) (string, float64) {
	if query == "" {
		return "", 0.0
	}
	nq := normalizeTokens(query)
	if nq == "" {
		return "", 0.0
	}

	if target, ok := aliasMap[nq]; ok {
		for _, c := range choices {
			if c == target {
				return target, 1.0
			}
		}
	}

	best := ""
	bestScore := -1.0
	for _, c := range choices {
		nc := normalizeTokens(c)
		if nc == "" {
			continue
		}
		if score := TokenSetRatio(nq, nc); score > bestScore {
			bestScore = score
			best = c
		}
	}
	if best == "" {
		return "", 0.0
	}
	return best, bestScore
}

// TopMatches ranks all choices against the query and returns up to limit
// results with score >= cutoff, best first.
func TopMatches(query string, choices []string, limit int, cutoff float64) []ScoredName {
	if query == "" {
		return nil
	}
	nq := normalizeTokens(query)
	if nq == "" {
		return nil
	}

	var scored []ScoredName
	for _, c := range choices {
		nc := normalizeTokens(c)
		if nc == "" {
			continue
		}
		if score := TokenSetRatio(nq, nc); score >= cutoff {
			scored = append(scored, ScoredName{Name: c, Score: score})
		}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}
