// Package workoutkit builds the JSON plan the iOS companion feeds into Apple
// WorkoutKit: a scheduling sport, the total of the explicitly timed seconds,
// and an ordered interval tree with repeat groups restored from the compiled
// step list.
package workoutkit

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/amakaflow/wmec/internal/blocks"
	"github.com/amakaflow/wmec/internal/catalog"
	"github.com/amakaflow/wmec/internal/compile"
)

// WorkoutKit activity identifiers the companion schedules under.
const (
	SportStrength = "functionalStrengthTraining"
	SportCardio   = "mixedCardio"
	SportRunning  = "running"
	SportHIIT     = "highIntensityIntervalTraining"
)

// Interval kinds.
const (
	KindTime   = "time"
	KindReps   = "reps"
	KindRepeat = "repeat"
)

// Interval is one node of the plan. Time intervals with zero seconds are
// open-ended and the athlete ends them from the watch; Target carries the
// step label. Rep intervals absorb the timed rest that follows them into
// RestSec. On a repeat group Reps is the total pass count and the other
// fields are unused.
type Interval struct {
	Kind      string     `json:"kind"`
	Seconds   int        `json:"seconds,omitempty"`
	Target    string     `json:"target,omitempty"`
	Reps      int        `json:"reps,omitempty"`
	Name      string     `json:"name,omitempty"`
	Load      string     `json:"load,omitempty"`
	RestSec   int        `json:"restSec,omitempty"`
	Intervals []Interval `json:"intervals,omitempty"`
}

// Plan is the document the companion receives. TotalSeconds counts only
// explicitly timed work and rest; open-ended and rep-counted intervals
// contribute nothing.
type Plan struct {
	Sport        string     `json:"sport"`
	TotalSeconds int        `json:"totalSeconds"`
	Intervals    []Interval `json:"intervals"`
}

// Build compiles a workout and assembles its plan.
func Build(w *blocks.Workout, cat *catalog.Catalog, useLapButton bool) Plan {
	return FromSteps(compile.Compile(w, cat, compile.Options{UseLapButton: useLapButton}))
}

// FromSteps assembles the plan from an already compiled step list.
func FromSteps(res compile.Result) Plan {
	intervals := assemble(res.Steps)
	return Plan{
		Sport:        planSport(res),
		TotalSeconds: totalSeconds(intervals),
		Intervals:    intervals,
	}
}

// planSport picks the WorkoutKit activity. Interval-structured workouts
// always schedule as HIIT; otherwise the compiled category set decides.
func planSport(res compile.Result) string {
	if res.HIIT {
		return SportHIIT
	}
	switch _, _, name := catalog.InferSport(res.Categories); name {
	case catalog.SportNameRunning:
		return SportRunning
	case catalog.SportNameCardio:
		return SportCardio
	default:
		return SportStrength
	}
}

// built pairs an assembled interval with the index of the first compiled
// step it covers, so repeat markers can pop their body by step position.
type built struct {
	start    int
	interval Interval
}

// assemble walks the flat step list and rebuilds the interval tree. A repeat
// marker replaces every interval built from its target index onward with one
// repeat group; a timed rest directly after a rep set folds into that set's
// RestSec instead of standing alone.
func assemble(steps []compile.Step) []Interval {
	var stack []built
	for i, step := range steps {
		switch step.Kind {
		case compile.KindRepeat:
			cut := len(stack)
			for cut > 0 && stack[cut-1].start >= step.TargetIndex {
				cut--
			}
			body := make([]Interval, 0, len(stack)-cut)
			for _, b := range stack[cut:] {
				body = append(body, b.interval)
			}
			stack = append(stack[:cut], built{
				start:    step.TargetIndex,
				interval: Interval{Kind: KindRepeat, Reps: int(step.RepeatCount), Intervals: body},
			})
		case compile.KindRest:
			sec := 0
			if step.DurationType == compile.DurationTime {
				sec = int(step.DurationValue / 1000)
			}
			if sec > 0 && len(stack) > 0 {
				top := &stack[len(stack)-1]
				if top.interval.Kind == KindReps && top.start == i-1 && top.interval.RestSec == 0 {
					top.interval.RestSec = sec
					continue
				}
			}
			stack = append(stack, built{start: i, interval: Interval{Kind: KindTime, Seconds: sec, Target: "Rest"}})
		default:
			stack = append(stack, built{start: i, interval: stepInterval(step)})
		}
	}

	out := make([]Interval, 0, len(stack))
	for _, b := range stack {
		out = append(out, b.interval)
	}
	return out
}

// stepInterval converts one warm-up or exercise step. The plan has no
// distance kind, so distance end conditions ride in the label.
func stepInterval(step compile.Step) Interval {
	switch step.DurationType {
	case compile.DurationReps:
		name, load := splitLoad(step.DisplayName)
		return Interval{Kind: KindReps, Reps: int(step.DurationValue), Name: name, Load: load}
	case compile.DurationTime:
		return Interval{Kind: KindTime, Seconds: int(step.DurationValue / 1000), Target: step.DisplayName}
	case compile.DurationDistance:
		return Interval{Kind: KindTime, Target: distanceTarget(step.DisplayName, step.DurationValue)}
	default:
		return Interval{Kind: KindTime, Target: step.DisplayName}
	}
}

var loadRe = regexp.MustCompile(`(?i)\(\s*((?:[\d.]+\s*x\s*)?[\d.]+\s*(?:kg|lbs?|#)[^)]*)\)`)

// splitLoad pulls a parenthesized weight spec like "(24kg)" or "(2x24kg)"
// out of a display name so the companion can show it as the interval load.
func splitLoad(name string) (string, string) {
	m := loadRe.FindStringSubmatchIndex(name)
	if m == nil {
		return name, ""
	}
	load := strings.TrimSpace(name[m[2]:m[3]])
	rest := strings.Join(strings.Fields(name[:m[0]]+" "+name[m[1]:]), " ")
	if rest == "" {
		return name, ""
	}
	return rest, load
}

// distanceTarget renders a distance end condition into the step label. The
// value arrives in centimeters.
func distanceTarget(name string, cm uint32) string {
	dist := formatDistance(cm)
	if strings.Contains(strings.ToLower(name), dist) {
		return name
	}
	return name + " " + dist
}

func formatDistance(cm uint32) string {
	meters := float64(cm) / 100
	if km := meters / 1000; km >= 1 && km == math.Trunc(km) {
		return strconv.Itoa(int(km)) + "km"
	}
	if meters == math.Trunc(meters) {
		return strconv.Itoa(int(meters)) + "m"
	}
	return strconv.FormatFloat(meters, 'f', 1, 64) + "m"
}

// totalSeconds sums timed work, timed rest, and folded set rests, with
// repeat groups multiplying their body.
func totalSeconds(intervals []Interval) int {
	total := 0
	for _, iv := range intervals {
		if iv.Kind == KindRepeat {
			total += iv.Reps * totalSeconds(iv.Intervals)
			continue
		}
		total += iv.Seconds + iv.RestSec
	}
	return total
}
