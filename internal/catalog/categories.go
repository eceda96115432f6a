package catalog

import "strings"

// Exercise category IDs follow the FIT SDK exercise_category enum. Watches
// reject workouts that reference ids outside 0..32, so anything newer Garmin
// data exports above that range is remapped before encoding.
const (
	CategoryBenchPress        uint16 = 0
	CategoryCalfRaise         uint16 = 1
	CategoryCardio            uint16 = 2
	CategoryCarry             uint16 = 3
	CategoryChop              uint16 = 4
	CategoryCore              uint16 = 5
	CategoryCrunch            uint16 = 6
	CategoryCurl              uint16 = 7
	CategoryDeadlift          uint16 = 8
	CategoryFlye              uint16 = 9
	CategoryHipRaise          uint16 = 10
	CategoryHipStability      uint16 = 11
	CategoryHipSwing          uint16 = 12
	CategoryHyperextension    uint16 = 13
	CategoryLateralRaise      uint16 = 14
	CategoryLegCurl           uint16 = 15
	CategoryLegRaise          uint16 = 16
	CategoryLunge             uint16 = 17
	CategoryOlympicLift       uint16 = 18
	CategoryPlank             uint16 = 19
	CategoryPlyo              uint16 = 20
	CategoryPullUp            uint16 = 21
	CategoryPushUp            uint16 = 22
	CategoryRow               uint16 = 23
	CategoryShoulderPress     uint16 = 24
	CategoryShoulderStability uint16 = 25
	CategoryShrug             uint16 = 26
	CategorySitUp             uint16 = 27
	CategorySquat             uint16 = 28
	CategoryTotalBody         uint16 = 29
	CategoryTricepsExtension  uint16 = 30
	CategoryWarmUp            uint16 = 31
	CategoryRun               uint16 = 32
)

// MaxValidCategory is the highest exercise category id Garmin devices accept.
const MaxValidCategory uint16 = 32

// categoryRemap redirects out-of-range category ids exported by newer Garmin
// web data onto ids that devices accept. 38 is the indoor rower family and
// lands on Cardio; the rest collapse to Total Body.
var categoryRemap = map[uint16]uint16{
	33: CategoryTotalBody,
	34: CategoryTotalBody,
	35: CategoryTotalBody,
	36: CategoryTotalBody,
	37: CategoryTotalBody,
	38: CategoryCardio,
	39: CategoryTotalBody,
	40: CategoryTotalBody,
	41: CategoryTotalBody,
	42: CategoryTotalBody,
	43: CategoryTotalBody,
}

// RemapCategory maps a category id onto one a Garmin device accepts. Valid
// ids pass through unchanged; everything above MaxValidCategory collapses to
// Total Body except the indoor rower family, which becomes Cardio.
func RemapCategory(id uint16) uint16 {
	if id <= MaxValidCategory {
		return id
	}
	if mapped, ok := categoryRemap[id]; ok {
		return mapped
	}
	return CategoryTotalBody
}

// annotationRules classify an exercise name into a Garmin category key by
// substring. Order matters: the most specific patterns come first so that
// "push press" wins over the generic "press" and "sled drag" over "drag".
var annotationRules = []struct {
	pattern  string
	category string
}{
	{"bulgarian split squat", "LUNGE"},
	{"good morning", "LEG_CURL"},
	{"goodmorning", "LEG_CURL"},
	{"clean and jerk", "OLYMPIC_LIFT"},
	{"medicine ball slam", "PLYO"},
	{"ski moguls", "CARDIO"},
	{"pike push", "PUSH_UP"},
	{"plank", "PLANK"},
	{"burpee", "TOTAL_BODY"},
	{"inverted row", "ROW"},
	{"trx row", "ROW"},
	{"kettlebell floor to shelf", "DEADLIFT"},
	{"kettlebell swing", "HIP_SWING"},
	{"push up", "PUSH_UP"},
	{"push-up", "PUSH_UP"},
	{"pushup", "PUSH_UP"},
	{"sled push", "SLED"},
	{"sled drag", "SLED"},
	{"backward drag", "SLED"},
	{"forward drag", "SLED"},
	{"sled", "SLED"},
	{"farmer carry", "CARRY"},
	{"farmer's carry", "CARRY"},
	{"farmers carry", "CARRY"},
	{"carry", "CARRY"},
	{"squat", "SQUAT"},
	{"push press", "SHOULDER_PRESS"},
	{"press", "BENCH_PRESS"},
	{"deadlift", "DEADLIFT"},
	{"rdl", "DEADLIFT"},
	{"lat", "PULL_UP"},
	{"pull", "PULL_UP"},
	{"row", "ROW"},
	{"lunge", "LUNGE"},
	{"swing", "HIP_SWING"},
	{"drag", "SLED"},
	{"ski", "CARDIO"},
	{"push", "BENCH_PRESS"},
}

// DetectCategoryKey returns the Garmin category key implied by an exercise
// name, or "" when no rule matches.
func DetectCategoryKey(name string) string {
	normalized := Normalize(name)
	for _, rule := range annotationRules {
		if strings.Contains(normalized, rule.pattern) {
			return rule.category
		}
	}
	return ""
}

// AnnotateCategory appends the detected category to an exercise name in the
// "Name [category: KEY]" form the Garmin YAML pipeline expects. Names with no
// detected category are returned unchanged.
func AnnotateCategory(name string) string {
	key := DetectCategoryKey(name)
	if key == "" {
		return name
	}
	return name + " [category: " + key + "]"
}
