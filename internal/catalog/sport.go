package catalog

// Sport and sub-sport ids from the FIT SDK. Custom workouts must use
// training (10); fitness_equipment (4) is rejected by most watches.
const (
	SportRunning  uint8 = 1
	SportTraining uint8 = 10

	SubSportGeneric          uint8 = 0
	SubSportStrengthTraining uint8 = 20
	SubSportCardioTraining   uint8 = 26
)

// Sport names accepted as a forced override on export.
const (
	SportNameRunning  = "running"
	SportNameCardio   = "cardio"
	SportNameStrength = "strength"
)

// InferSport picks the sport/sub-sport pair for a workout from the set of
// exercise categories it uses. Run-only workouts map to running/generic; any
// cardio content (run steps mixed with strength, ski erg, assault bike) maps
// to training/cardio_training; everything else is training/strength_training.
//
// Category 23 (Row) is deliberately not treated as cardio: it holds strength
// rows (dumbbell row, barbell row). Rowing machines arrive as category 2 via
// the builtin keyword table.
func InferSport(categoryIDs map[uint16]bool) (sport, subSport uint8, name string) {
	hasRunning := categoryIDs[CategoryRun]
	hasCardio := categoryIDs[CategoryCardio]

	hasStrength := false
	for id := range categoryIDs {
		if id != CategoryRun && id != CategoryCardio {
			hasStrength = true
			break
		}
	}

	switch {
	case hasRunning && !hasStrength && !hasCardio:
		return SportRunning, SubSportGeneric, SportNameRunning
	case hasRunning || hasCardio:
		return SportTraining, SubSportCardioTraining, SportNameCardio
	default:
		return SportTraining, SubSportStrengthTraining, SportNameStrength
	}
}

// ForcedSport translates a sport-name override into a sport/sub-sport pair.
// Unknown names return ok=false and the caller should fall back to InferSport.
func ForcedSport(name string) (sport, subSport uint8, ok bool) {
	switch name {
	case SportNameStrength:
		return SportTraining, SubSportStrengthTraining, true
	case SportNameCardio:
		return SportTraining, SubSportCardioTraining, true
	case SportNameRunning:
		return SportRunning, SubSportGeneric, true
	}
	return 0, 0, false
}
