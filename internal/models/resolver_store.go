package models

import (
	"database/sql"
	"log"

	"github.com/amakaflow/wmec/internal/mapping"
)

// MappingStore adapts user_mappings rows to the resolver's per-profile
// lookup interface. Database errors degrade to a miss so resolution can fall
// through to the next layer.
type MappingStore struct {
	DB *sql.DB
}

// UserMapping returns a profile's override for a normalized name.
func (s *MappingStore) UserMapping(profileID, normalized string) (string, bool) {
	m, err := GetUserMapping(s.DB, profileID, normalized)
	if err == ErrNotFound {
		return "", false
	}
	if err != nil {
		log.Printf("models: user mapping lookup: %v", err)
		return "", false
	}
	return m.GarminName, true
}

// PopularityStore adapts exercise_popularity rows to the resolver's
// popularity interface.
type PopularityStore struct {
	DB *sql.DB
}

// PopularChoices returns the most chosen Garmin exercises for a normalized
// name across all profiles.
func (s *PopularityStore) PopularChoices(normalized string, limit int) []mapping.PopularChoice {
	popular, err := PopularMappings(s.DB, normalized, limit)
	if err != nil {
		log.Printf("models: popular mappings lookup: %v", err)
		return nil
	}

	choices := make([]mapping.PopularChoice, 0, len(popular))
	for _, p := range popular {
		choices = append(choices, mapping.PopularChoice{Name: p.GarminName, Count: p.Count})
	}
	return choices
}
