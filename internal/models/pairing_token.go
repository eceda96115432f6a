package models

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrTokenUsed is returned when redeeming a pairing token that was already
// redeemed.
var ErrTokenUsed = errors.New("pairing token already used")

// ErrTokenCollision is returned when a generated token or short code matches
// an existing row. Callers regenerate and retry.
var ErrTokenCollision = errors.New("pairing token or short code already exists")

// PairingToken is a short-lived credential a companion device redeems to
// pair with a profile.
type PairingToken struct {
	ID         int64
	ProfileID  string
	Token      string
	ShortCode  string
	ExpiresAt  time.Time
	UsedAt     sql.NullTime
	DeviceInfo sql.NullString
	CreatedAt  time.Time
}

// IsExpired reports whether the token's expiry has passed.
func (t *PairingToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

// IsUsed reports whether the token was already redeemed.
func (t *PairingToken) IsUsed() bool {
	return t.UsedAt.Valid
}

// InsertPairingToken stores a freshly generated token. A token or short code
// collision returns ErrTokenCollision.
func InsertPairingToken(db *sql.DB, profileID, token, shortCode string, expiresAt, createdAt time.Time) (*PairingToken, error) {
	var id int64
	err := db.QueryRow(
		`INSERT INTO pairing_tokens (profile_id, token, short_code, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?) RETURNING id`,
		profileID, token, shortCode, expiresAt, createdAt,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrTokenCollision
		}
		return nil, fmt.Errorf("models: insert pairing token for profile %q: %w", profileID, err)
	}

	return &PairingToken{
		ID:        id,
		ProfileID: profileID,
		Token:     token,
		ShortCode: shortCode,
		ExpiresAt: expiresAt,
		CreatedAt: createdAt,
	}, nil
}

// GetPairingToken retrieves a token row by its full token value.
func GetPairingToken(db *sql.DB, token string) (*PairingToken, error) {
	return getPairingToken(db, `token = ?`, token)
}

// GetPairingTokenByCode retrieves a token row by its short code.
func GetPairingTokenByCode(db *sql.DB, shortCode string) (*PairingToken, error) {
	return getPairingToken(db, `short_code = ?`, shortCode)
}

func getPairingToken(db *sql.DB, where string, arg any) (*PairingToken, error) {
	t := &PairingToken{}
	err := db.QueryRow(
		`SELECT id, profile_id, token, short_code, expires_at, used_at, device_info, created_at
		 FROM pairing_tokens
		 WHERE `+where, arg,
	).Scan(&t.ID, &t.ProfileID, &t.Token, &t.ShortCode, &t.ExpiresAt, &t.UsedAt, &t.DeviceInfo, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("models: get pairing token: %w", err)
	}
	return t, nil
}

// CountRecentPairingTokens counts tokens a profile generated since the given
// time, for rate limiting.
func CountRecentPairingTokens(db *sql.DB, profileID string, since time.Time) (int, error) {
	var count int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM pairing_tokens WHERE profile_id = ? AND created_at >= ?`,
		profileID, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("models: count recent pairing tokens for profile %q: %w", profileID, err)
	}
	return count, nil
}

// RedeemPairingToken marks a token used by a device. Only the first redeem
// wins; a second attempt returns ErrTokenUsed.
func RedeemPairingToken(db *sql.DB, id int64, deviceInfo string, usedAt time.Time) error {
	var deviceVal sql.NullString
	if deviceInfo != "" {
		deviceVal = sql.NullString{String: deviceInfo, Valid: true}
	}

	result, err := db.Exec(
		`UPDATE pairing_tokens SET used_at = ?, device_info = ? WHERE id = ? AND used_at IS NULL`,
		usedAt, deviceVal, id,
	)
	if err != nil {
		return fmt.Errorf("models: redeem pairing token %d: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrTokenUsed
	}
	return nil
}

// DeleteExpiredPairingTokens removes tokens that expired before cutoff and
// reports how many were removed.
func DeleteExpiredPairingTokens(db *sql.DB, cutoff time.Time) (int64, error) {
	result, err := db.Exec(`DELETE FROM pairing_tokens WHERE expires_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("models: delete expired pairing tokens: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}

// DeleteUnusedPairingTokens revokes a profile's outstanding tokens and
// reports how many were removed. Redeemed tokens are kept for status checks.
func DeleteUnusedPairingTokens(db *sql.DB, profileID string) (int64, error) {
	result, err := db.Exec(
		`DELETE FROM pairing_tokens WHERE profile_id = ? AND used_at IS NULL`,
		profileID,
	)
	if err != nil {
		return 0, fmt.Errorf("models: delete unused pairing tokens for profile %q: %w", profileID, err)
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}
