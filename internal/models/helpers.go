package models

import "strings"

// isUniqueViolation reports whether a SQLite error is a unique constraint
// violation. The driver exposes no typed error for it, so the message is
// probed. Callers translate hits on the workout dedup key, user mappings,
// and pairing credentials into their own sentinels.
func isUniqueViolation(err error) bool {
	return err != nil && (errContains(err, "UNIQUE constraint failed") || errContains(err, "constraint failed: UNIQUE"))
}

// errContains checks whether an error's message contains the given substring.
func errContains(err error, substr string) bool {
	return err != nil && strings.Contains(err.Error(), substr)
}
