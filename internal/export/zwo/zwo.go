// Package zwo encodes workouts as Zwift ZWO XML. Only running and cycling
// workouts are supported; strength content degrades to steady segments.
package zwo

import (
	"encoding/xml"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/amakaflow/wmec/internal/blocks"
)

// Sports accepted by the encoder.
const (
	SportRun  = "run"
	SportRide = "ride"
)

// Step kinds.
const (
	KindSteady   = "steady"
	KindInterval = "interval"
	KindRest     = "rest"
	KindWarmup   = "warmup"
	KindCooldown = "cooldown"
)

// Target types.
const (
	TargetPower = "power"
	TargetPace  = "pace"
	TargetHR    = "hr"
	TargetRPE   = "rpe"
	TargetNone  = "none"
)

// estimatedFTP approximates a rider's FTP in watts when a workout names
// absolute watt targets. Without the athlete's real FTP this anchors the
// percentage conversion.
const estimatedFTP = 250.0

// Target is an intensity band. Values are scalars where 1.00 means
// threshold: FTP for rides, threshold pace for runs.
type Target struct {
	Type string
	Min  *float64
	Max  *float64
}

// Step is one ZWO segment before serialization. Zero means unset.
type Step struct {
	Kind      string
	DurationS int
	DistanceM int
	Reps      int
	WorkS     int
	RestS     int
	Target    Target
}

// Workout is a named ordered list of segments for one sport.
type Workout struct {
	Sport string
	Name  string
	Steps []Step
}

var (
	ftpSingleRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%\s*ftp`)
	ftpRangeRe  = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*[–-]\s*(\d+(?:\.\d+)?)\s*%\s*ftp`)
	wattRangeRe = regexp.MustCompile(`(\d+)\s*[–-]\s*(\d+)\s*w`)
	wattRe      = regexp.MustCompile(`(\d+)\s*w`)
	wattDashRe  = regexp.MustCompile(`^\s*[–-]`)
	distRangeRe = regexp.MustCompile(`(\d+)-(\d+)`)
)

// PowerTarget extracts a power target written into an exercise name, like
// "103% FTP", "85-95% FTP", or "200-250W". Absolute watts are converted to
// FTP percentages against the estimated FTP. Returns nil when the name
// carries no power cue.
func PowerTarget(name string) *Target {
	s := strings.ToLower(name)

	// Ranges first: "85-95% ftp" also satisfies the single pattern at "95%".
	if m := ftpRangeRe.FindStringSubmatch(s); m != nil {
		lo := mustFloat(m[1]) / 100
		hi := mustFloat(m[2]) / 100
		return &Target{Type: TargetPower, Min: &lo, Max: &hi}
	}
	if m := ftpSingleRe.FindStringSubmatch(s); m != nil {
		pct := mustFloat(m[1]) / 100
		return &Target{Type: TargetPower, Min: &pct, Max: &pct}
	}
	if m := wattRangeRe.FindStringSubmatch(s); m != nil {
		lo := mustFloat(m[1]) / estimatedFTP
		hi := mustFloat(m[2]) / estimatedFTP
		return &Target{Type: TargetPower, Min: &lo, Max: &hi}
	}
	// A watt value directly followed by a dash is the low end of a range
	// the range pattern did not cover, not a single target.
	for _, m := range wattRe.FindAllStringSubmatchIndex(s, -1) {
		if wattDashRe.MatchString(s[m[1]:]) {
			continue
		}
		pct := mustFloat(s[m[2]:m[3]]) / estimatedFTP
		return &Target{Type: TargetPower, Min: &pct, Max: &pct}
	}
	return nil
}

func mustFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func powerTargetOrNone(name string) Target {
	if t := PowerTarget(name); t != nil {
		return *t
	}
	return Target{Type: TargetNone}
}

// Encode renders a workout as ZWO XML. Sport is "run" or "ride"; empty
// auto-detects from exercise names and defaults to run.
func Encode(w *blocks.Workout, sport string) ([]byte, error) {
	switch sport {
	case "":
		sport = DetectSport(w)
	case SportRun, SportRide:
	default:
		return nil, fmt.Errorf("zwo: unsupported sport %q", sport)
	}

	title := w.Title
	if title == "" {
		title = "Imported Workout"
	}

	var steps []Step
	for _, block := range w.Blocks {
		steps = append(steps, blockSteps(block)...)
	}

	return Export(Workout{Sport: sport, Name: title, Steps: steps})
}

var rideKeywords = []string{"bike", "ride", "cycle", "spin", "watt", "ftp"}

// DetectSport guesses run or ride from exercise names, defaulting to run.
func DetectSport(w *blocks.Workout) string {
	for _, block := range w.Blocks {
		for _, ex := range block.Exercises {
			name := strings.ToLower(ex.Name)
			for _, kw := range rideKeywords {
				if strings.Contains(name, kw) {
					return SportRide
				}
			}
		}
	}
	return SportRun
}

// blockSteps lowers one block. Branch order matters: multi-exercise blocks
// without a block-level work time become sequential segments, timed interval
// blocks are handled next, and only then individual distance or duration
// exercises and supersets.
func blockSteps(block blocks.Block) []Step {
	var steps []Step

	rounds := 1
	if block.Structure != "" {
		rounds = blocks.ExtractRounds(block.Structure)
	}
	restBetween := block.RestBetweenSec
	timeWork := block.TimeWorkSec

	label := strings.ToLower(block.Label)
	segmentKind := KindSteady
	if strings.Contains(label, "warmup") || strings.Contains(label, "primer") {
		segmentKind = KindWarmup
	} else if strings.Contains(label, "cooldown") || strings.Contains(label, "finisher") {
		segmentKind = KindCooldown
	}

	exercises := block.Exercises

	if len(exercises) > 1 && timeWork == 0 {
		// Sequential segments, one per timed exercise. Exercises without a
		// duration are descriptions and are skipped.
		for _, ex := range exercises {
			if ex.DurationSec == 0 {
				continue
			}
			steps = append(steps, Step{
				Kind:      segmentKind,
				DurationS: ex.DurationSec,
				Target:    powerTargetOrNone(ex.Name),
			})
			restSec := ex.RestSec
			if restSec == 0 {
				restSec = restBetween
			}
			if restSec > 0 {
				steps = append(steps, restStep(restSec))
			}
		}
		if len(steps) > 0 {
			return steps
		}
	}

	if timeWork > 0 {
		if len(exercises) > 0 {
			ex := exercises[0]
			durationSec := ex.DurationSec
			if durationSec == 0 {
				durationSec = timeWork
			}
			restSec := ex.RestSec
			if restSec == 0 {
				restSec = restBetween
			}
			sets := ex.Sets
			if sets == 0 {
				sets = rounds
			}
			target := powerTargetOrNone(ex.Name)

			if len(exercises) > 1 {
				// A repeating sequence: each timed exercise is one leg.
				var sequence []Step
				for _, item := range exercises {
					if item.DurationSec == 0 {
						continue
					}
					itemTarget := target
					if t := PowerTarget(item.Name); t != nil {
						itemTarget = *t
					}
					sequence = append(sequence, Step{
						Kind:      KindSteady,
						DurationS: item.DurationSec,
						Target:    itemTarget,
					})
				}
				switch {
				case rounds > 1 && len(sequence) > 0:
					for round := 0; round < rounds; round++ {
						steps = append(steps, sequence...)
						if round < rounds-1 && restBetween > 0 {
							steps = append(steps, restStep(restBetween))
						}
					}
				case len(sequence) > 0:
					steps = append(steps, sequence...)
				default:
					// Nothing timed individually; the block's work time
					// carries it, colored by the first exercise's target.
					steps = append(steps, Step{
						Kind:      segmentKind,
						DurationS: timeWork,
						Target:    powerTargetOrNone(exercises[0].Name),
					})
				}
			} else if sets > 1 && restSec > 0 {
				steps = append(steps, Step{
					Kind:   KindInterval,
					WorkS:  durationSec,
					RestS:  restSec,
					Reps:   sets,
					Target: target,
				})
			} else {
				steps = append(steps, Step{
					Kind:      segmentKind,
					DurationS: durationSec,
					Target:    target,
				})
			}
		} else {
			steps = append(steps, Step{
				Kind:      segmentKind,
				DurationS: timeWork,
				Target:    Target{Type: TargetNone},
			})
		}
		if len(steps) > 0 {
			return steps
		}
	}

	for _, ex := range exercises {
		distance := 0
		if ex.DistanceM != nil {
			distance = int(*ex.DistanceM)
		}
		sets := ex.Sets
		if sets == 0 {
			sets = rounds
		}
		target := powerTargetOrNone(ex.Name)

		switch {
		case distance > 0:
			if sets > 1 && ex.RestSec > 0 {
				for i := 0; i < sets; i++ {
					steps = append(steps, Step{
						Kind:      KindInterval,
						DistanceM: distance,
						RestS:     ex.RestSec,
						Reps:      1,
						Target:    target,
					})
					steps = append(steps, restStep(ex.RestSec))
				}
			} else {
				steps = append(steps, Step{
					Kind:      segmentKind,
					DistanceM: distance,
					Target:    target,
				})
			}
		case ex.DistanceRange != "":
			if m := distRangeRe.FindStringSubmatch(ex.DistanceRange); m != nil {
				lo, _ := strconv.Atoi(m[1])
				hi, _ := strconv.Atoi(m[2])
				steps = append(steps, Step{
					Kind:      segmentKind,
					DistanceM: (lo + hi) / 2,
					Target:    Target{Type: TargetNone},
				})
			}
		case ex.DurationSec > 0:
			steps = append(steps, Step{
				Kind:      segmentKind,
				DurationS: ex.DurationSec,
				Target:    target,
			})
			if ex.RestSec > 0 {
				steps = append(steps, restStep(ex.RestSec))
			}
		}
	}

	for _, ss := range block.Supersets {
		for _, ex := range ss.Exercises {
			distance := 0
			if ex.DistanceM != nil {
				distance = int(*ex.DistanceM)
			}
			if distance > 0 {
				steps = append(steps, Step{Kind: KindSteady, DistanceM: distance, Target: Target{Type: TargetNone}})
			} else if ex.DurationSec > 0 {
				steps = append(steps, Step{Kind: KindSteady, DurationS: ex.DurationSec, Target: Target{Type: TargetNone}})
			}
			if ex.RestSec > 0 {
				steps = append(steps, restStep(ex.RestSec))
			}
		}
	}

	return steps
}

func restStep(durationSec int) Step {
	return Step{Kind: KindRest, DurationS: durationSec, Target: Target{Type: TargetNone}}
}

// workoutFile mirrors the ZWO document shape.
type workoutFile struct {
	XMLName     xml.Name `xml:"workout_file"`
	Name        string   `xml:"name"`
	SportType   string   `xml:"sportType"`
	Description string   `xml:"description"`
	Workout     segments `xml:"workout"`
}

type segments struct {
	Elements []segment
}

// segment is one emitted element. Attribute order follows field order; only
// set attributes appear.
type segment struct {
	XMLName     xml.Name
	Repeat      string `xml:"Repeat,attr,omitempty"`
	Duration    string `xml:"Duration,attr,omitempty"`
	OnDuration  string `xml:"OnDuration,attr,omitempty"`
	OffDuration string `xml:"OffDuration,attr,omitempty"`
	Power       string `xml:"Power,attr,omitempty"`
	Pace        string `xml:"Pace,attr,omitempty"`
	OnPower     string `xml:"OnPower,attr,omitempty"`
	OffPower    string `xml:"OffPower,attr,omitempty"`
	OnPace      string `xml:"OnPace,attr,omitempty"`
	OffPace     string `xml:"OffPace,attr,omitempty"`
}

func steadyState() segment {
	return segment{XMLName: xml.Name{Local: "SteadyState"}}
}

// Export serializes a workout to ZWO XML with the standard declaration.
func Export(w Workout) ([]byte, error) {
	doc := workoutFile{
		Name:        w.Name,
		SportType:   sportType(w.Sport),
		Description: "Auto-generated from canonical JSON → ZWO",
	}

	for _, s := range w.Steps {
		dur := durationSeconds(s)

		var el segment
		switch {
		case s.Kind == KindSteady || s.Kind == KindWarmup || s.Kind == KindCooldown:
			el = steadyState()
			el.Duration = strconv.Itoa(dur)
			applyTarget(&el, s, true, w.Sport)
		case s.Kind == KindInterval && s.Reps > 0 && s.WorkS > 0 && s.RestS > 0:
			el = segment{XMLName: xml.Name{Local: "IntervalsT"}}
			el.Repeat = strconv.Itoa(s.Reps)
			el.OnDuration = strconv.Itoa(s.WorkS)
			el.OffDuration = strconv.Itoa(s.RestS)
			applyTarget(&el, s, false, w.Sport)
		case s.Kind == KindRest:
			el = steadyState()
			el.Duration = strconv.Itoa(dur)
			setIntensity(&el, w.Sport, false, 0.40)
		default:
			// Distance intervals land here: no work time to repeat, so
			// each becomes a moderate steady segment.
			el = steadyState()
			el.Duration = strconv.Itoa(dur)
			setIntensity(&el, w.Sport, true, 0.60)
		}
		doc.Workout.Elements = append(doc.Workout.Elements, el)
	}

	body, err := xml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("zwo: marshal workout: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

func sportType(sport string) string {
	if sport == SportRun {
		return "run"
	}
	return "bike"
}

// durationSeconds normalizes a step to whole seconds. Distance converts at
// roughly 5:00/km; intervals count every work and rest leg.
func durationSeconds(s Step) int {
	if s.DurationS > 0 {
		return s.DurationS
	}
	if s.Kind == KindInterval && s.Reps > 0 && s.WorkS > 0 && s.RestS > 0 {
		return s.Reps * (s.WorkS + s.RestS)
	}
	if s.DistanceM > 0 {
		d := int(math.Round(float64(s.DistanceM) * 0.30))
		if d < 30 {
			d = 30
		}
		return d
	}
	return 60
}

// avgScalar collapses a target band to one clamped scalar, defaulting to
// endurance effort.
func avgScalar(t Target) float64 {
	if t.Min != nil && t.Max != nil {
		avg := (*t.Min + *t.Max) / 2
		return math.Max(0.10, math.Min(1.50, avg))
	}
	return 0.70
}

func hrProxy(scalar float64) float64 {
	return math.Max(0.5, math.Min(1.1, 0.8*scalar))
}

func rpeProxy(scalar float64) float64 {
	return math.Max(0.5, math.Min(1.1, scalar))
}

func powerPct(v float64) string {
	return strconv.Itoa(int(math.Round(v * 100)))
}

func paceScalar(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// setIntensity writes a single intensity attribute: a pace scalar for runs,
// an integer FTP percentage for rides.
func setIntensity(el *segment, sport string, on bool, value float64) {
	if sport == SportRun {
		if on {
			el.Pace = paceScalar(value)
		} else {
			el.OffPace = paceScalar(value)
		}
		return
	}
	if on {
		el.Power = powerPct(value)
	} else {
		el.OffPower = powerPct(value)
	}
}

// applyTarget colors an element from the step's target. HR and RPE targets
// are approximated through pace or power proxies since ZWO de-emphasizes
// them; absent targets fall back to aerobic defaults.
func applyTarget(el *segment, s Step, steady bool, sport string) {
	val := avgScalar(s.Target)

	switch s.Target.Type {
	case TargetPower:
		if steady {
			el.Power = powerPct(val)
		} else {
			el.OnPower = powerPct(val)
			el.OffPower = "40"
		}
	case TargetPace:
		applyScalar(el, sport, steady, val)
	case TargetHR:
		applyScalar(el, sport, steady, hrProxy(val))
	case TargetRPE:
		applyScalar(el, sport, steady, rpeProxy(val))
	default:
		if sport == SportRun {
			if steady {
				el.Pace = "0.70"
			} else {
				el.OnPace = "0.80"
				el.OffPace = "0.90"
			}
		} else {
			if steady {
				el.Power = "70"
			} else {
				el.OnPower = "80"
				el.OffPower = "50"
			}
		}
	}
}

// applyScalar writes a pace-style scalar for runs and a power percentage
// for rides, with the standard off-leg defaults.
func applyScalar(el *segment, sport string, steady bool, val float64) {
	if sport == SportRun {
		if steady {
			el.Pace = paceScalar(val)
		} else {
			el.OnPace = paceScalar(val)
			el.OffPace = "0.90"
		}
		return
	}
	if steady {
		el.Power = powerPct(val)
	} else {
		el.OnPower = powerPct(val)
		el.OffPower = "40"
	}
}
