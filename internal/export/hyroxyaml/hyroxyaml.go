// Package hyroxyaml renders workouts as the Hyrox/Garmin YAML document the
// downstream scheduling sync consumes. Every working step value carries the
// target followed by the original exercise name and the reason it mapped the
// way it did, so the conversion can be audited from the YAML alone.
package hyroxyaml

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/amakaflow/wmec/internal/blocks"
	"github.com/amakaflow/wmec/internal/catalog"
	"github.com/amakaflow/wmec/internal/mapping"
)

// Interval scheme defaults used when the structure names a scheme but the
// exercises carry no explicit timing.
const (
	tabataRounds  = 8
	tabataWorkSec = 20
	tabataRestSec = 10
	emomMinutes   = 10
)

// scheduleLeadDays is how far ahead the generated plan starts.
const scheduleLeadDays = 7

// Encoder converts a blocks workout into the YAML document. The resolver
// supplies catalog names and mapping provenance per exercise.
type Encoder struct {
	Resolver *mapping.Resolver
}

// NewEncoder returns an Encoder over the given resolver.
func NewEncoder(r *mapping.Resolver) *Encoder {
	return &Encoder{Resolver: r}
}

// Note records how one exercise resolved while encoding, in step order. The
// same reason text is embedded in the step value after the target.
type Note struct {
	Original   string  `json:"original"`
	GarminName string  `json:"garmin_name"`
	Target     string  `json:"target"`
	Confidence float64 `json:"confidence"`
	Provenance string  `json:"provenance"`
	Reason     string  `json:"reason"`
}

// Encode renders the workout as YAML and returns the mapping notes gathered
// along the way.
func (e *Encoder) Encode(profileID string, w *blocks.Workout) (string, []Note, error) {
	run := &encodeRun{enc: e, profileID: profileID}

	steps := []*yaml.Node{
		entryNode("warmup", seqNode(entryNode("cardio", strNode("lap")))),
	}
	for _, block := range w.Blocks {
		if blocks.IsHIITStructure(block.Structure) {
			steps = append(steps, run.hiitBlock(block)...)
			continue
		}
		steps = append(steps, run.generalBlock(block)...)
	}

	name := workoutName(w.Title)
	startFrom := time.Now().AddDate(0, 0, scheduleLeadDays).Format("2006-01-02")

	root := mapNode(
		strNode("settings"), mapNode(strNode("deleteSameNameWorkout"), boolNode(true)),
		strNode("workouts"), mapNode(strNode(name), seqNode(steps...)),
		strNode("schedulePlan"), mapNode(
			strNode("start_from"), strNode(startFrom),
			strNode("workouts"), seqNode(strNode(name)),
		),
	)

	var buf bytes.Buffer
	yamlEnc := yaml.NewEncoder(&buf)
	yamlEnc.SetIndent(2)
	if err := yamlEnc.Encode(root); err != nil {
		return "", nil, fmt.Errorf("hyroxyaml: encode document: %w", err)
	}
	if err := yamlEnc.Close(); err != nil {
		return "", nil, fmt.Errorf("hyroxyaml: encode document: %w", err)
	}
	return buf.String(), run.notes, nil
}

// ProcessResult bundles a validation report with the YAML produced when
// conversion went ahead.
type ProcessResult struct {
	Validation mapping.Report `json:"validation"`
	YAML       string         `json:"yaml,omitempty"`
	Notes      []Note         `json:"mapping_notes,omitempty"`
	Message    string         `json:"message"`
}

// Process validates the workout and converts it when every exercise mapped,
// or when the caller forces conversion with autoProceed.
func (e *Encoder) Process(profileID string, w *blocks.Workout, autoProceed bool) ProcessResult {
	validation := e.Resolver.Validate(profileID, w, 0)
	result := ProcessResult{Validation: validation}

	if !validation.CanProceed && !autoProceed {
		result.Message = fmt.Sprintf("Please review %d unmapped exercises before proceeding",
			len(validation.Unmapped))
		return result
	}

	out, notes, err := e.Encode(profileID, w)
	if err != nil {
		result.Message = fmt.Sprintf("Error generating YAML: %v", err)
		return result
	}
	result.YAML = out
	result.Notes = notes
	result.Message = "Workout converted successfully"
	return result
}

// encodeRun threads the note accumulator through one Encode call.
type encodeRun struct {
	enc       *Encoder
	profileID string
	notes     []Note
}

// generalBlock renders a straight-sets block: superset exercises in order
// with rests between supersets, a lap rest closing the sequence, then
// standalone exercises, each list wrapped in repeat(N) when the structure
// declares rounds.
func (r *encodeRun) generalBlock(block blocks.Block) []*yaml.Node {
	rounds := blocks.ExtractRounds(block.Structure)

	restBetween := block.RestBetweenSec
	if restBetween == 0 {
		restBetween = block.RestBetweenSetsSec
	}

	var steps []*yaml.Node
	for si, ss := range block.Supersets {
		for _, ex := range ss.Exercises {
			if ex.Name == "" {
				continue
			}
			steps = append(steps, r.exerciseEntry(ex, generalTarget(ex)))
		}
		if si < len(block.Supersets)-1 {
			if restBetween > 0 {
				steps = append(steps, restEntry(fmt.Sprintf("%ds", restBetween)))
			} else {
				steps = append(steps, restEntry("lap"))
			}
		}
	}
	if len(steps) > 0 {
		steps = append(steps, restEntry("lap"))
	}

	var standalone []*yaml.Node
	for _, ex := range block.Exercises {
		if ex.Name == "" {
			continue
		}
		// Timed sets become their own repeat so the rest rides inside it.
		if ex.DurationSec > 0 && ex.Sets > 0 {
			body := []*yaml.Node{r.exerciseEntry(ex, fmt.Sprintf("%ds", ex.DurationSec))}
			if ex.RestSec > 0 {
				body = append(body, restEntry(fmt.Sprintf("%ds", ex.RestSec)))
			}
			standalone = append(standalone, repeatEntry(ex.Sets, body))
			continue
		}
		standalone = append(standalone, r.exerciseEntry(ex, generalTarget(ex)))
	}

	var out []*yaml.Node
	if rounds > 1 && len(steps) > 0 {
		out = append(out, repeatEntry(rounds, steps))
	} else {
		out = append(out, steps...)
	}
	if len(standalone) > 0 {
		if rounds > 1 {
			out = append(out, repeatEntry(rounds, standalone))
		} else {
			out = append(out, standalone...)
		}
	}
	return out
}

var hiitSchemeRe = regexp.MustCompile(`(?i)\b(tabata|amrap|emom|hiit)\b`)

// hiitBlock renders an interval block in its scheme form. Tabata defaults to
// 8 rounds of 20s work and 10s rest; EMOM repeats per minute with a lap rest
// closing each slot; AMRAP and plain HIIT keep natural targets with a single
// lap rest marking the round.
func (r *encodeRun) hiitBlock(block blocks.Block) []*yaml.Node {
	exs := blockExercises(block)
	if len(exs) == 0 {
		return nil
	}

	kind := strings.ToLower(hiitSchemeRe.FindString(block.Structure))
	switch kind {
	case "tabata":
		rounds := blocks.ExtractRounds(block.Structure)
		if rounds == 1 {
			rounds = tabataRounds
		}
		var body []*yaml.Node
		for _, ex := range exs {
			work := ex.DurationSec
			if work == 0 {
				work = tabataWorkSec
			}
			rest := ex.RestSec
			if rest == 0 {
				rest = tabataRestSec
			}
			body = append(body, r.exerciseEntry(ex, fmt.Sprintf("%ds", work)))
			body = append(body, restEntry(fmt.Sprintf("%ds", rest)))
		}
		return []*yaml.Node{repeatEntry(rounds, body)}

	case "emom":
		// The first number in the structure is the minute count.
		minutes := blocks.ParseRounds(block.Structure)
		if minutes <= 1 {
			minutes = emomMinutes
		}
		var body []*yaml.Node
		for _, ex := range exs {
			target := "60s"
			if ex.DurationSec > 0 {
				target = fmt.Sprintf("%ds", ex.DurationSec)
			} else if ex.Reps != nil {
				target = ex.Reps.String() + " reps"
			}
			body = append(body, r.exerciseEntry(ex, target))
			// Lap press marks the top of the next minute.
			body = append(body, restEntry("lap"))
		}
		return []*yaml.Node{repeatEntry(minutes, body)}

	default: // amrap, hiit
		rounds := blocks.ExtractRounds(block.Structure)
		var body []*yaml.Node
		for _, ex := range exs {
			body = append(body, r.exerciseEntry(ex, generalTarget(ex)))
		}
		body = append(body, restEntry("lap"))
		if rounds > 1 {
			return []*yaml.Node{repeatEntry(rounds, body)}
		}
		return body
	}
}

// exerciseEntry resolves one exercise and builds its single-key step node:
// the category-annotated catalog name mapping to
// "<target> | <original name> (<mapping reason>)".
func (r *encodeRun) exerciseEntry(ex blocks.Exercise, target string) *yaml.Node {
	res := r.enc.Resolver.Resolve(r.profileID, ex.Name)
	key := catalog.AnnotateCategory(res.GarminName)
	value := fmt.Sprintf("%s | %s (%s)", target, noteText(ex), res.Reason)

	r.notes = append(r.notes, Note{
		Original:   ex.Name,
		GarminName: res.GarminName,
		Target:     target,
		Confidence: res.Confidence,
		Provenance: res.Provenance,
		Reason:     res.Reason,
	})
	return entryNode(key, strNode(value))
}

// generalTarget picks the step directive for a straight-sets exercise:
// explicit time, then reps, then the lap button. Distance prescriptions stay
// on the lap button; the sync target cannot auto-advance on distance.
func generalTarget(ex blocks.Exercise) string {
	switch {
	case ex.DurationSec > 0:
		return fmt.Sprintf("%ds", ex.DurationSec)
	case ex.Reps != nil:
		return ex.Reps.String() + " reps"
	default:
		return "lap"
	}
}

var (
	noteRepsRe = regexp.MustCompile(`(?i)(?:\bx\s*\d|\d+\s*reps\b)`)
	noteDistRe = regexp.MustCompile(`(?i)\d+\s*(?:m|km|mi)\b`)
)

// noteText keeps the original name, minus any set marker, and appends the
// rep or distance prescription when the name does not already spell one.
func noteText(ex blocks.Exercise) string {
	note := mapping.TrimSetLabel(ex.Name)
	switch {
	case ex.Reps != nil && !noteRepsRe.MatchString(note):
		note += " x" + ex.Reps.String()
	case ex.DistanceM != nil && *ex.DistanceM > 0 && !noteDistRe.MatchString(note):
		note += " " + strconv.FormatFloat(*ex.DistanceM, 'f', -1, 64) + "m"
	}
	return note
}

// blockExercises flattens a block for interval rendering: superset members
// first, standalone exercises after, unnamed entries dropped.
func blockExercises(block blocks.Block) []blocks.Exercise {
	var exs []blocks.Exercise
	for _, ss := range block.Supersets {
		for _, ex := range ss.Exercises {
			if ex.Name != "" {
				exs = append(exs, ex)
			}
		}
	}
	for _, ex := range block.Exercises {
		if ex.Name != "" {
			exs = append(exs, ex)
		}
	}
	return exs
}

var (
	weekTitleRe = regexp.MustCompile(`(?i)week\s*(\d+)`)
	nonAlnumRe  = regexp.MustCompile(`[^a-z0-9]`)
)

// workoutName derives the YAML workout key from a title. Week-numbered
// programs become "fullhyroxweekN"; anything else is lowercased and stripped
// to alphanumerics.
func workoutName(title string) string {
	if m := weekTitleRe.FindStringSubmatch(title); m != nil {
		return "fullhyroxweek" + m[1]
	}
	name := nonAlnumRe.ReplaceAllString(strings.ToLower(title), "")
	if name == "" {
		return "workout"
	}
	return name
}

func strNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

func boolNode(b bool) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(b)}
}

func mapNode(content ...*yaml.Node) *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Content: content}
}

func seqNode(content ...*yaml.Node) *yaml.Node {
	return &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Content: content}
}

// entryNode builds the single-key mapping every workout step uses.
func entryNode(key string, value *yaml.Node) *yaml.Node {
	return mapNode(strNode(key), value)
}

func restEntry(value string) *yaml.Node {
	return entryNode("rest", strNode(value))
}

func repeatEntry(count int, body []*yaml.Node) *yaml.Node {
	return entryNode(fmt.Sprintf("repeat(%d)", count), seqNode(body...))
}
