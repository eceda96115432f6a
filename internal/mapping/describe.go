package mapping

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/amakaflow/wmec/internal/blocks"
	"github.com/amakaflow/wmec/internal/catalog"
)

// ParsedName is a raw exercise label split into its base name and the
// prescription suffix parsed off it.
type ParsedName struct {
	Base     string // label without the set marker or rep suffix
	RepsDesc string // "x10" or "x10 each side", "" when absent
	Original string // human-readable form for notes, "" when nothing parsed
}

var (
	setLabelRe     = regexp.MustCompile(`(?i)^[a-z]\d+[:\s;]+`)
	repsEachSideRe = regexp.MustCompile(`(?i)\s+x\s*(\d+)\s+each\s+side$`)
	repsSuffixRe   = regexp.MustCompile(`(?i)\s+x\s*(\d+)$`)
	repsTypoRe     = regexp.MustCompile(`(?i)\s+xi(\d+)$`)
	leadDistRe     = regexp.MustCompile(`(?i)^(\d+)\s*m\s+(.+)`)
	equipmentRe    = regexp.MustCompile(`(?i)^(kb|db|ob|trx)\s+`)
	nameSepRe      = regexp.MustCompile(`[/:]`)
)

// TrimSetLabel removes a leading set marker like "A1:" or "B2;" from a raw
// exercise label, leaving the rest untouched.
func TrimSetLabel(raw string) string {
	return strings.TrimSpace(setLabelRe.ReplaceAllString(strings.TrimSpace(raw), ""))
}

// ParseName splits prescription noise off a raw label: "A1: KB Swing x10"
// yields base "KB Swing" and reps "x10". Leading distances like "200M Ski"
// parse to base "Ski" with the distance kept as the Original text.
func ParseName(raw string) ParsedName {
	name := TrimSetLabel(raw)

	if m := repsEachSideRe.FindStringSubmatchIndex(name); m != nil {
		reps := name[m[2]:m[3]]
		base := strings.TrimSpace(name[:m[0]])
		desc := base
		if parts := nameSepRe.Split(base, -1); len(parts) > 1 {
			desc = strings.TrimSpace(parts[len(parts)-1])
		}
		desc = strings.TrimSpace(equipmentRe.ReplaceAllString(desc, ""))
		desc = strings.ReplaceAll(capitalizeWords(desc), " Into ", " into ")
		return ParsedName{
			Base:     base,
			RepsDesc: "x" + reps + " each side",
			Original: desc + " x" + reps + " each side",
		}
	}

	if m := repsSuffixRe.FindStringSubmatchIndex(name); m != nil {
		reps := name[m[2]:m[3]]
		base := strings.TrimSpace(name[:m[0]])
		desc := strings.ReplaceAll(capitalizeWords(base), " Into ", " into ")
		return ParsedName{
			Base:     base,
			RepsDesc: "x" + reps,
			Original: desc + " x" + reps,
		}
	}

	if m := repsTypoRe.FindStringSubmatchIndex(name); m != nil {
		reps := name[m[2]:m[3]]
		base := strings.TrimSpace(name[:m[0]])
		desc := capitalizeWords(strings.ReplaceAll(base, "/", " "))
		return ParsedName{
			Base:     base,
			RepsDesc: "x" + reps,
			Original: desc + " x" + reps,
		}
	}

	if m := leadDistRe.FindStringSubmatch(name); m != nil {
		return ParsedName{
			Base:     strings.TrimSpace(m[2]),
			Original: m[1] + "m",
		}
	}

	return ParsedName{Base: name}
}

var (
	trailingRepsRe = regexp.MustCompile(`(?i)\s+x\d+.*$`)
	trailingMixRe  = regexp.MustCompile(`(?i)\s+x[0-9-]+\s+[a-z0-9]+\s*$`)
	strayMarksRe   = regexp.MustCompile(`[§©®™]`)
	trailingCharRe = regexp.MustCompile(`(?i)\s+[0-9a-z]\s*$`)
)

// CleanName strips rep markers, scan artifact characters, and stray trailing
// tokens from a label.
func CleanName(name string) string {
	s := strings.TrimSpace(name)
	s = trailingRepsRe.ReplaceAllString(s, "")
	s = trailingMixRe.ReplaceAllString(s, "")
	s = strayMarksRe.ReplaceAllString(s, "")
	s = trailingCharRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

var (
	cableBandRe   = regexp.MustCompile(`(?i)^(cable/band|cable|band)\s+`)
	straightArmRe = regexp.MustCompile(`(?i)^(straight arm)\s+`)
	multiSpaceRe  = regexp.MustCompile(`\s+`)
)

// Describe renders the note text for one exercise: the cleaned name plus its
// rep prescription. Rep and time based work carries a "lap | " prefix;
// distance work does not, the distance target already names it.
func Describe(raw string, reps *blocks.Reps, distanceM *float64, garminName string) string {
	parsed := ParseName(raw)
	normalized := catalog.Normalize(CleanName(parsed.Base))

	var description string
	if parsed.Original != "" {
		descName := strings.TrimSpace(strings.ReplaceAll(parsed.Base, "/", " "))

		if strings.Contains(normalized, "straight arm pull down") ||
			strings.Contains(normalized, "cable") ||
			strings.Contains(normalized, "band") {
			descName = strings.TrimSpace(cableBandRe.ReplaceAllString(descName, ""))
			descName = straightArmRe.ReplaceAllString(descName, "Straight Arm ")
			descName = strings.ReplaceAll(descName, " Down", " down")
		}

		if strings.Contains(normalized, "incline bench press") &&
			strings.Contains(normalized, "db") && reps != nil {
			description = reps.String() + " reps"
		} else {
			descName = capitalizeWords(descName)
			descName = restoreShorthand(descName)
			descName = strings.TrimSpace(multiSpaceRe.ReplaceAllString(descName, " "))

			switch {
			case parsed.RepsDesc != "":
				description = descName + " " + formatReps(parsed.RepsDesc)
			case reps != nil:
				description = descName + " x" + reps.String()
			default:
				description = descName
			}
		}
	} else {
		namePart := capitalizeWords(strings.ReplaceAll(parsed.Base, "/", " "))
		switch {
		case distanceM != nil:
			description = strconv.FormatFloat(*distanceM, 'f', -1, 64) + "m"
		case reps != nil:
			if namePart != "" && !strings.EqualFold(namePart, garminName) {
				description = namePart + " " + reps.String() + " reps"
			} else {
				description = reps.String() + " reps"
			}
		}
	}

	if description != "" && distanceM == nil {
		description = "lap | " + description
	}
	return description
}

// restoreShorthand re-capitalizes equipment and movement abbreviations that
// word capitalization lowered.
func restoreShorthand(s string) string {
	s = strings.ReplaceAll(s, " Into ", " into ")
	s = strings.ReplaceAll(s, " Rdl ", " RDL ")
	s = strings.ReplaceAll(s, " Rol ", " ROL ")
	s = strings.ReplaceAll(s, " Kb ", " KB ")
	s = strings.ReplaceAll(s, " Db ", " DB ")
	s = strings.ReplaceAll(s, " Ob ", " OB ")
	return s
}

// formatReps tightens a parsed reps suffix, keeping the "each side"
// qualifier spaced when present.
func formatReps(repsDesc string) string {
	if strings.Contains(repsDesc, "each side") {
		return strings.ReplaceAll(repsDesc, "x ", "x")
	}
	return strings.ReplaceAll(repsDesc, " ", "")
}
