package models

import (
	"database/sql"
	"fmt"
)

// PopularMapping is an aggregate of how often a Garmin exercise was chosen
// for a normalized name across all profiles.
type PopularMapping struct {
	GarminName string
	Count      int
}

// RecordMappingChoice increments the shared popularity counter for a
// normalized name to Garmin exercise pairing.
func RecordMappingChoice(db *sql.DB, normalizedName, garminName string) error {
	_, err := db.Exec(
		`INSERT INTO exercise_popularity (normalized_name, garmin_name, count)
		 VALUES (?, ?, 1)
		 ON CONFLICT(normalized_name, garmin_name) DO UPDATE SET
		   count = count + 1,
		   updated_at = CURRENT_TIMESTAMP`,
		normalizedName, garminName,
	)
	if err != nil {
		return fmt.Errorf("models: record mapping choice %q -> %q: %w", normalizedName, garminName, err)
	}
	return nil
}

// DefaultPopularLimit caps popularity queries when the caller does not
// specify a limit.
const DefaultPopularLimit = 5

// PopularMappings returns the most chosen Garmin exercises for a normalized
// name, most popular first. Ties break alphabetically.
func PopularMappings(db *sql.DB, normalizedName string, limit int) ([]PopularMapping, error) {
	if limit <= 0 {
		limit = DefaultPopularLimit
	}

	rows, err := db.Query(
		`SELECT garmin_name, count
		 FROM exercise_popularity
		 WHERE normalized_name = ?
		 ORDER BY count DESC, garmin_name ASC
		 LIMIT ?`, normalizedName, limit)
	if err != nil {
		return nil, fmt.Errorf("models: popular mappings for %q: %w", normalizedName, err)
	}
	defer rows.Close()

	var popular []PopularMapping
	for rows.Next() {
		var p PopularMapping
		if err := rows.Scan(&p.GarminName, &p.Count); err != nil {
			return nil, fmt.Errorf("models: scan popular mapping: %w", err)
		}
		popular = append(popular, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return popular, nil
}
