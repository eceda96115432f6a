// Package pairing links companion devices to profiles. The web side
// generates a short-lived token (QR payload plus a human-readable code), the
// device redeems it exactly once, and the redemption mints a long-lived
// HS256 JWT the device presents on later requests.
package pairing

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/amakaflow/wmec/internal/models"
)

// ErrRateLimited is returned when a profile has generated too many tokens in
// the last hour.
var ErrRateLimited = errors.New("pairing token rate limit reached")

// ErrTokenExpired is returned when redeeming a token past its expiry.
var ErrTokenExpired = errors.New("pairing token expired")

// ErrMissingCredential is returned when a redeem request carries neither a
// token nor a short code.
var ErrMissingCredential = errors.New("token or short code required")

const (
	// TokenTTL is how long a pairing token stays redeemable.
	TokenTTL = 5 * time.Minute
	// DeviceJWTTTL is the lifetime of a minted device JWT.
	DeviceJWTTTL = 30 * 24 * time.Hour

	tokenBytes      = 32
	shortCodeLength = 6
	// No 0/O, 1/I or l: short codes are read aloud and typed by hand.
	shortCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	jwtIssuer   = "amakaflow"
	jwtAudience = "ios_companion"

	collisionRetries = 3
)

// Service issues, redeems and reports pairing tokens for one deployment.
type Service struct {
	DB        *sql.DB
	Secret    []byte // HS256 signing key for device JWTs
	PublicURL string // API base URL advertised inside QR payloads
}

// NewService wires a pairing service. An empty publicURL falls back to the
// production API host.
func NewService(db *sql.DB, secret []byte, publicURL string) *Service {
	if publicURL == "" {
		publicURL = "https://api.amakaflow.com"
	}
	return &Service{DB: db, Secret: secret, PublicURL: publicURL}
}

// GenerateResult is returned to the web client for display as QR and code.
type GenerateResult struct {
	Token            string    `json:"token"`
	ShortCode        string    `json:"short_code"`
	QRData           string    `json:"qr_data"`
	ExpiresAt        time.Time `json:"expires_at"`
	ExpiresInSeconds int       `json:"expires_in_seconds"`
}

// Generate mints a new pairing token for a profile. Profiles are limited to
// a configurable number of tokens per hour; token or short-code collisions
// regenerate and retry.
func (s *Service) Generate(profileID string) (*GenerateResult, error) {
	limit := models.GetPairingTokensPerHour(s.DB)
	count, err := models.CountRecentPairingTokens(s.DB, profileID, time.Now().UTC().Add(-time.Hour))
	if err != nil {
		return nil, err
	}
	if count >= limit {
		return nil, fmt.Errorf("%w: maximum %d per hour", ErrRateLimited, limit)
	}

	now := time.Now().UTC()
	expiresAt := now.Add(TokenTTL)

	var row *models.PairingToken
	for attempt := 0; ; attempt++ {
		token, err := randomHex(tokenBytes)
		if err != nil {
			return nil, err
		}
		code, err := randomShortCode()
		if err != nil {
			return nil, err
		}

		row, err = models.InsertPairingToken(s.DB, profileID, token, code, expiresAt, now)
		if err == nil {
			break
		}
		if errors.Is(err, models.ErrTokenCollision) && attempt < collisionRetries {
			continue
		}
		return nil, err
	}

	qr, err := s.qrData(row.Token)
	if err != nil {
		return nil, err
	}

	return &GenerateResult{
		Token:            row.Token,
		ShortCode:        row.ShortCode,
		QRData:           qr,
		ExpiresAt:        expiresAt,
		ExpiresInSeconds: int(TokenTTL.Seconds()),
	}, nil
}

// Profile is the identity snapshot returned with a device JWT.
type Profile struct {
	ID string `json:"id"`
}

// RedeemResult is returned to the device after a successful pairing.
type RedeemResult struct {
	JWT       string    `json:"jwt"`
	Profile   Profile   `json:"profile"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Redeem validates a token (QR path) or short code (manual entry) and marks
// it used, capturing the device's self-description. Used tokens are rejected
// before expired ones so a device that raced another gets the accurate
// reason. Exactly one redeem wins.
func (s *Service) Redeem(token, shortCode, deviceInfo string) (*RedeemResult, error) {
	if token == "" && shortCode == "" {
		return nil, ErrMissingCredential
	}

	var row *models.PairingToken
	var err error
	if token != "" {
		row, err = models.GetPairingToken(s.DB, token)
	} else {
		row, err = models.GetPairingTokenByCode(s.DB, strings.ToUpper(shortCode))
	}
	if err != nil {
		return nil, err
	}

	if row.IsUsed() {
		return nil, models.ErrTokenUsed
	}
	if row.IsExpired() {
		return nil, ErrTokenExpired
	}

	if err := models.RedeemPairingToken(s.DB, row.ID, deviceInfo, time.Now().UTC()); err != nil {
		return nil, err
	}

	signed, expiry, err := s.mintDeviceJWT(row.ProfileID)
	if err != nil {
		return nil, err
	}

	return &RedeemResult{
		JWT:       signed,
		Profile:   Profile{ID: row.ProfileID},
		ExpiresAt: expiry,
	}, nil
}

// Status is the pairing state a web client polls while showing the QR code.
type Status struct {
	Paired     bool            `json:"paired"`
	Expired    bool            `json:"expired"`
	DeviceInfo json.RawMessage `json:"device_info,omitempty"`
}

// Status reports whether a token has been redeemed or has lapsed. Device
// info is only revealed once the token is paired.
func (s *Service) Status(token string) (*Status, error) {
	row, err := models.GetPairingToken(s.DB, token)
	if err != nil {
		return nil, err
	}

	st := &Status{Paired: row.IsUsed(), Expired: row.IsExpired()}
	if st.Paired && row.DeviceInfo.Valid {
		st.DeviceInfo = json.RawMessage(row.DeviceInfo.String)
	}
	return st, nil
}

// Revoke deletes a profile's outstanding unredeemed tokens and reports how
// many were removed. Redeemed rows stay for status history.
func (s *Service) Revoke(profileID string) (int64, error) {
	return models.DeleteUnusedPairingTokens(s.DB, profileID)
}

// VerifyDeviceJWT checks a device JWT's signature, issuer, audience and
// expiry, returning the profile ID it was minted for.
func (s *Service) VerifyDeviceJWT(tokenString string) (string, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (any, error) { return s.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(jwtIssuer),
		jwt.WithAudience(jwtAudience),
	)
	if err != nil {
		return "", fmt.Errorf("pairing: verify device jwt: %w", err)
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", fmt.Errorf("pairing: device jwt has no subject")
	}
	return claims.Subject, nil
}

func (s *Service) mintDeviceJWT(profileID string) (string, time.Time, error) {
	now := time.Now().UTC()
	expiry := now.Add(DeviceJWTTTL)

	claims := jwt.RegisteredClaims{
		Subject:   profileID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiry),
		Issuer:    jwtIssuer,
		Audience:  jwt.ClaimStrings{jwtAudience},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("pairing: sign device jwt: %w", err)
	}
	return signed, expiry, nil
}

// qrData renders the payload a companion app scans: enough to find the API
// and redeem the token without typing anything.
func (s *Service) qrData(token string) (string, error) {
	payload := struct {
		Type    string `json:"type"`
		Version int    `json:"version"`
		Token   string `json:"token"`
		APIURL  string `json:"api_url"`
	}{
		Type:    "amakaflow_pairing",
		Version: 1,
		Token:   token,
		APIURL:  s.PublicURL,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("pairing: marshal qr payload: %w", err)
	}
	return string(data), nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("pairing: generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func randomShortCode() (string, error) {
	b := make([]byte, shortCodeLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("pairing: generate short code: %w", err)
	}
	code := make([]byte, shortCodeLength)
	for i, v := range b {
		// 32 symbols divide 256 evenly, so the modulo is unbiased.
		code[i] = shortCodeAlphabet[int(v)%len(shortCodeAlphabet)]
	}
	return string(code), nil
}
