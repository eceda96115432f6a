// Package fitenc renders compiled workouts as Garmin FIT binaries. The file
// layout is fixed: a 14-byte header, definition records for file_id,
// file_creator, workout, the three workout_step shapes, and exercise_title,
// then one data record per step, closed by a CRC-16.
package fitenc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"sort"
	"time"

	"github.com/amakaflow/wmec/internal/blocks"
	"github.com/amakaflow/wmec/internal/catalog"
	"github.com/amakaflow/wmec/internal/compile"
)

// ErrNoSteps is returned when a workout compiles to nothing the watch can run.
var ErrNoSteps = errors.New("fitenc: no exercises found")

const (
	protocolVersion = 0x10
	profileVersion  = 0x527D

	// fitEpoch is the offset between the Unix epoch and the FIT epoch
	// (1989-12-31T00:00:00Z), in seconds.
	fitEpoch = 631065600

	manufacturerGarmin = 1
	productConnect     = 65534
	fileTypeWorkout    = 5

	workoutCapabilities = 32

	// nameLen is the fixed width of string fields. Names longer than 31
	// bytes are truncated so the closing NUL always fits.
	nameLen = 32
)

// Options control sport stamping and exercise end conditions.
type Options struct {
	// ForceSport overrides sport auto-detection. One of "strength",
	// "cardio", "running", or empty to infer from the categories used.
	ForceSport string

	// UseLapButton compiles every exercise as open-ended.
	UseLapButton bool
}

// Encode compiles a workout and renders the FIT binary.
func Encode(w *blocks.Workout, cat *catalog.Catalog, opts Options) ([]byte, error) {
	title := w.Title
	if title == "" {
		title = "Workout"
	}

	res := compile.Compile(w, cat, compile.Options{UseLapButton: opts.UseLapButton})
	if len(res.Steps) == 0 {
		return nil, ErrNoSteps
	}

	sport, subSport, ok := catalog.ForcedSport(opts.ForceSport)
	if !ok {
		sport, subSport, _ = catalog.InferSport(res.Categories)
	}

	return render(title, res.Steps, sport, subSport, time.Now()), nil
}

// Metadata describes how a workout will export without rendering it.
type Metadata struct {
	DetectedSport      string   `json:"detected_sport"`
	DetectedSportID    uint8    `json:"detected_sport_id"`
	DetectedSubSportID uint8    `json:"detected_sub_sport_id"`
	Warnings           []string `json:"warnings"`
	ExerciseCount      int      `json:"exercise_count"`
	HasRunning         bool     `json:"has_running"`
	HasCardio          bool     `json:"has_cardio"`
	HasStrength        bool     `json:"has_strength"`
	CategoryIDs        []uint16 `json:"category_ids"`
	UseLapButton       bool     `json:"use_lap_button"`
}

// Describe compiles a workout and reports the sport inference and category
// mix an export would produce.
func Describe(w *blocks.Workout, cat *catalog.Catalog, useLapButton bool) Metadata {
	res := compile.Compile(w, cat, compile.Options{UseLapButton: useLapButton})
	sport, subSport, name := catalog.InferSport(res.Categories)

	hasRunning := res.Categories[catalog.CategoryRun]
	hasCardio := res.Categories[catalog.CategoryCardio]
	hasStrength := false
	ids := make([]uint16, 0, len(res.Categories))
	for id := range res.Categories {
		ids = append(ids, id)
		if id != catalog.CategoryRun && id != catalog.CategoryCardio {
			hasStrength = true
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	count := 0
	for _, s := range res.Steps {
		if s.Kind == compile.KindExercise {
			count++
		}
	}

	return Metadata{
		DetectedSport:      name,
		DetectedSportID:    sport,
		DetectedSubSportID: subSport,
		Warnings:           []string{},
		ExerciseCount:      count,
		HasRunning:         hasRunning,
		HasCardio:          hasCardio,
		HasStrength:        hasStrength,
		CategoryIDs:        ids,
		UseLapButton:       useLapButton,
	}
}

// nameIDs assigns the exercise_name value per (category, display name) pair.
// The catalog's real FIT id wins when known; everything else gets a
// sequential id per category starting at 0. Ids of 1000 and above are
// rejected by watches, which sequential assignment never reaches.
type nameIDs struct {
	assigned map[nameKey]uint16
	next     map[uint16]uint16
}

type nameKey struct {
	category uint16
	display  string
}

func newNameIDs() *nameIDs {
	return &nameIDs{
		assigned: make(map[nameKey]uint16),
		next:     make(map[uint16]uint16),
	}
}

func (n *nameIDs) idFor(step compile.Step) uint16 {
	key := nameKey{category: step.CategoryID, display: step.DisplayName}
	if id, ok := n.assigned[key]; ok {
		return id
	}
	if step.FitNameID != nil {
		n.assigned[key] = *step.FitNameID
		return *step.FitNameID
	}
	id := n.next[step.CategoryID]
	n.next[step.CategoryID]++
	n.assigned[key] = id
	return id
}

// render emits the full file. Local message types are fixed: 0 file_id,
// 1 file_creator, 2 workout, 3 exercise step, 4 rest step, 5 repeat step,
// 6 exercise_title.
func render(title string, steps []compile.Step, sport, subSport uint8, now time.Time) []byte {
	ids := newNameIDs()
	// Working exercise steps claim their ids first so a warm-up variant of
	// the same movement reuses the id instead of minting one.
	for _, s := range steps {
		if s.Kind == compile.KindExercise {
			ids.idFor(s)
		}
	}

	var w recordWriter

	timestamp := uint32(now.Unix() - fitEpoch)
	serial := timestamp

	// file_id (local 0, global 0)
	w.defHeader(0x40, 0, 5)
	w.field(3, 4, 0x8C) // serial_number
	w.field(4, 4, 0x86) // time_created
	w.field(1, 2, 0x84) // manufacturer
	w.field(2, 2, 0x84) // product
	w.field(0, 1, 0x00) // type
	w.u8(0x00)
	w.u32(serial)
	w.u32(timestamp)
	w.u16(manufacturerGarmin)
	w.u16(productConnect)
	w.u8(fileTypeWorkout)

	// file_creator (local 1, global 49)
	w.defHeader(0x41, 49, 2)
	w.field(0, 2, 0x84) // software_version
	w.field(1, 1, 0x02) // hardware_version
	w.u8(0x01)
	w.u16(0)
	w.u8(0)

	// workout (local 2, global 26)
	w.defHeader(0x42, 26, 5)
	w.field(4, 1, 0x00)       // sport
	w.field(5, 4, 0x8C)       // capabilities
	w.field(6, 2, 0x84)       // num_valid_steps
	w.field(8, nameLen, 0x07) // wkt_name
	w.field(11, 1, 0x00)      // sub_sport
	w.u8(0x02)
	w.u8(sport)
	w.u32(workoutCapabilities)
	w.u16(uint16(len(steps)))
	w.str(title, nameLen)
	w.u8(subSport)

	// workout_step, exercise shape (local 3, global 27). duration_value is
	// field 2 and target_type field 3; getting these wrong corrupts the
	// step on the watch.
	w.defHeader(0x43, 27, 7)
	w.field(254, 2, 0x84) // message_index
	w.field(2, 4, 0x86)   // duration_value
	w.field(1, 1, 0x00)   // duration_type
	w.field(3, 1, 0x00)   // target_type
	w.field(7, 1, 0x00)   // intensity
	w.field(10, 2, 0x84)  // exercise_category
	w.field(11, 2, 0x84)  // exercise_name

	// workout_step, rest shape (local 4, global 27). Same layout minus the
	// category fields; rests must not carry exercise_category.
	w.defHeader(0x44, 27, 5)
	w.field(254, 2, 0x84)
	w.field(2, 4, 0x86)
	w.field(1, 1, 0x00)
	w.field(3, 1, 0x00)
	w.field(7, 1, 0x00)

	// workout_step, repeat shape (local 5, global 27). duration_value holds
	// the index of the step to repeat back to, target_value the total count.
	w.defHeader(0x45, 27, 4)
	w.field(254, 2, 0x84)
	w.field(2, 4, 0x86)
	w.field(4, 4, 0x86)
	w.field(1, 1, 0x00)

	for i, step := range steps {
		switch step.Kind {
		case compile.KindRepeat:
			w.u8(0x05)
			w.u16(uint16(i))
			w.u32(uint32(step.TargetIndex))
			w.u32(step.RepeatCount)
			w.u8(compile.DurationRepeat)
		case compile.KindRest:
			w.u8(0x04)
			w.u16(uint16(i))
			w.u32(step.DurationValue)
			w.u8(step.DurationType)
			w.u8(0) // target_type: open, never heart_rate
			w.u8(compile.IntensityRest)
		default:
			w.u8(0x03)
			w.u16(uint16(i))
			w.u32(step.DurationValue)
			w.u8(step.DurationType)
			w.u8(0) // target_type: open, never heart_rate
			w.u8(compile.IntensityActive)
			w.u16(step.CategoryID)
			w.u16(ids.idFor(step))
		}
	}

	// exercise_title (local 6, global 264). Only working exercise steps get
	// a title record; warm-ups and rests keep their step label.
	w.defHeader(0x46, 264, 4)
	w.field(254, 2, 0x84)     // message_index
	w.field(0, 2, 0x84)       // exercise_category
	w.field(1, 2, 0x84)       // exercise_name
	w.field(2, nameLen, 0x07) // wkt_step_name

	for i, step := range steps {
		if step.Kind != compile.KindExercise {
			continue
		}
		w.u8(0x06)
		w.u16(uint16(i))
		w.u16(step.CategoryID)
		w.u16(ids.idFor(step))
		w.str(step.DisplayName, nameLen)
	}

	data := w.buf.Bytes()

	header := make([]byte, 0, 14)
	header = append(header, 14, protocolVersion)
	header = binary.LittleEndian.AppendUint16(header, profileVersion)
	header = binary.LittleEndian.AppendUint32(header, uint32(len(data)))
	header = append(header, '.', 'F', 'I', 'T')
	header = binary.LittleEndian.AppendUint16(header, crc16(header))

	out := make([]byte, 0, len(header)+len(data)+2)
	out = append(out, header...)
	out = append(out, data...)
	out = binary.LittleEndian.AppendUint16(out, crc16(data))
	return out
}

// recordWriter accumulates little-endian record bytes.
type recordWriter struct {
	buf bytes.Buffer
}

func (w *recordWriter) u8(v uint8) {
	w.buf.WriteByte(v)
}

func (w *recordWriter) u16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

func (w *recordWriter) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

// str writes a fixed-width NUL-terminated string, truncating to width-1.
func (w *recordWriter) str(s string, width int) {
	b := []byte(s)
	if len(b) > width-1 {
		b = b[:width-1]
	}
	w.buf.Write(b)
	for i := len(b); i < width; i++ {
		w.buf.WriteByte(0)
	}
}

// defHeader starts a definition record: marker byte (0x40 | local type),
// reserved, little-endian architecture, global message number, field count.
func (w *recordWriter) defHeader(marker uint8, global uint16, fieldCount uint8) {
	w.u8(marker)
	w.u8(0)
	w.u8(0)
	w.u16(global)
	w.u8(fieldCount)
}

// field appends one definition field: number, size in bytes, base type.
func (w *recordWriter) field(num, size, baseType uint8) {
	w.u8(num)
	w.u8(size)
	w.u8(baseType)
}

// crcTable drives the FIT CRC-16, processed a nibble at a time.
var crcTable = [16]uint16{
	0x0000, 0xCC01, 0xD801, 0x1400, 0xF001, 0x3C00, 0x2800, 0xE401,
	0xA001, 0x6C00, 0x7800, 0xB401, 0x5000, 0x9C01, 0x8801, 0x4400,
}

func crc16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		tmp := crcTable[crc&0xF]
		crc = (crc >> 4) & 0x0FFF
		crc = crc ^ tmp ^ crcTable[b&0xF]
		tmp = crcTable[crc&0xF]
		crc = (crc >> 4) & 0x0FFF
		crc = crc ^ tmp ^ crcTable[(b>>4)&0xF]
	}
	return crc
}
