package pairing

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/amakaflow/wmec/internal/database"
	"github.com/amakaflow/wmec/internal/models"
)

func testPairing(t testing.TB) *Service {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := database.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewService(db, []byte("test-signing-key"), "https://api.test.local")
}

func TestGenerate(t *testing.T) {
	s := testPairing(t)

	res, err := s.Generate("p1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if len(res.Token) != 64 {
		t.Errorf("token length = %d, want 64 hex chars", len(res.Token))
	}
	if len(res.ShortCode) != 6 {
		t.Errorf("short code length = %d, want 6", len(res.ShortCode))
	}
	for _, c := range res.ShortCode {
		if !strings.ContainsRune(shortCodeAlphabet, c) {
			t.Errorf("short code %q contains %q outside the alphabet", res.ShortCode, c)
		}
	}
	if res.ExpiresInSeconds != 300 {
		t.Errorf("expires_in_seconds = %d, want 300", res.ExpiresInSeconds)
	}
	if remaining := time.Until(res.ExpiresAt); remaining < 4*time.Minute || remaining > 5*time.Minute {
		t.Errorf("expires_at %v is not about five minutes out", res.ExpiresAt)
	}

	var qr struct {
		Type    string `json:"type"`
		Version int    `json:"version"`
		Token   string `json:"token"`
		APIURL  string `json:"api_url"`
	}
	if err := json.Unmarshal([]byte(res.QRData), &qr); err != nil {
		t.Fatalf("qr data: %v", err)
	}
	if qr.Type != "amakaflow_pairing" || qr.Version != 1 {
		t.Errorf("qr envelope = %q v%d", qr.Type, qr.Version)
	}
	if qr.Token != res.Token {
		t.Error("qr token differs from response token")
	}
	if qr.APIURL != "https://api.test.local" {
		t.Errorf("qr api_url = %q", qr.APIURL)
	}

	row, err := models.GetPairingToken(s.DB, res.Token)
	if err != nil {
		t.Fatalf("get stored token: %v", err)
	}
	if row.ProfileID != "p1" || row.ShortCode != res.ShortCode {
		t.Errorf("stored row = %+v", row)
	}
}

func TestGenerateRateLimit(t *testing.T) {
	s := testPairing(t)

	for i := 0; i < 5; i++ {
		if _, err := s.Generate("p1"); err != nil {
			t.Fatalf("generate %d: %v", i+1, err)
		}
	}
	if _, err := s.Generate("p1"); !errors.Is(err, ErrRateLimited) {
		t.Errorf("sixth generate: err = %v, want ErrRateLimited", err)
	}

	// Other profiles are unaffected.
	if _, err := s.Generate("p2"); err != nil {
		t.Errorf("other profile: %v", err)
	}
}

func TestRedeemByToken(t *testing.T) {
	s := testPairing(t)

	gen, err := s.Generate("p1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	res, err := s.Redeem(gen.Token, "", `{"model":"iPhone15,2","os":"17.4"}`)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if res.Profile.ID != "p1" {
		t.Errorf("profile = %q, want p1", res.Profile.ID)
	}
	if ttl := time.Until(res.ExpiresAt); ttl < 29*24*time.Hour || ttl > 30*24*time.Hour {
		t.Errorf("jwt expiry %v is not about thirty days out", res.ExpiresAt)
	}

	profileID, err := s.VerifyDeviceJWT(res.JWT)
	if err != nil {
		t.Fatalf("verify jwt: %v", err)
	}
	if profileID != "p1" {
		t.Errorf("jwt subject = %q, want p1", profileID)
	}

	st, err := s.Status(gen.Token)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !st.Paired {
		t.Error("status not paired after redeem")
	}
	var info struct {
		Model string `json:"model"`
	}
	if err := json.Unmarshal(st.DeviceInfo, &info); err != nil || info.Model != "iPhone15,2" {
		t.Errorf("device info = %s (%v)", st.DeviceInfo, err)
	}
}

func TestRedeemByShortCode(t *testing.T) {
	s := testPairing(t)

	gen, err := s.Generate("p1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	// Manual entry is case-insensitive.
	res, err := s.Redeem("", strings.ToLower(gen.ShortCode), "")
	if err != nil {
		t.Fatalf("redeem by code: %v", err)
	}
	if res.Profile.ID != "p1" {
		t.Errorf("profile = %q", res.Profile.ID)
	}
}

func TestRedeemSingleUse(t *testing.T) {
	s := testPairing(t)

	gen, err := s.Generate("p1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := s.Redeem(gen.Token, "", ""); err != nil {
		t.Fatalf("first redeem: %v", err)
	}
	if _, err := s.Redeem(gen.Token, "", ""); !errors.Is(err, models.ErrTokenUsed) {
		t.Errorf("second redeem: err = %v, want ErrTokenUsed", err)
	}
}

func TestRedeemExpired(t *testing.T) {
	s := testPairing(t)

	past := time.Now().UTC().Add(-time.Minute)
	row, err := models.InsertPairingToken(s.DB, "p1", strings.Repeat("ab", 32), "ABCDEF", past, past.Add(-TokenTTL))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	if _, err := s.Redeem(row.Token, "", ""); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("err = %v, want ErrTokenExpired", err)
	}

	st, err := s.Status(row.Token)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !st.Expired || st.Paired {
		t.Errorf("status = %+v, want expired and unpaired", st)
	}
}

func TestRedeemUsedWinsOverExpired(t *testing.T) {
	s := testPairing(t)

	// A token that is both redeemed and expired reports "used": the polling
	// web client should show the pairing succeeded, not that it lapsed.
	past := time.Now().UTC().Add(-time.Minute)
	row, err := models.InsertPairingToken(s.DB, "p1", strings.Repeat("cd", 32), "ABCDE2", past, past.Add(-TokenTTL))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := models.RedeemPairingToken(s.DB, row.ID, "", past); err != nil {
		t.Fatalf("mark used: %v", err)
	}

	if _, err := s.Redeem(row.Token, "", ""); !errors.Is(err, models.ErrTokenUsed) {
		t.Errorf("err = %v, want ErrTokenUsed", err)
	}
}

func TestRedeemBadRequests(t *testing.T) {
	s := testPairing(t)

	if _, err := s.Redeem("", "", ""); !errors.Is(err, ErrMissingCredential) {
		t.Errorf("empty redeem: err = %v, want ErrMissingCredential", err)
	}
	if _, err := s.Redeem(strings.Repeat("ef", 32), "", ""); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("unknown token: err = %v, want ErrNotFound", err)
	}
	if _, err := s.Status(strings.Repeat("ef", 32)); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("unknown status: err = %v, want ErrNotFound", err)
	}
}

func TestStatusPending(t *testing.T) {
	s := testPairing(t)

	gen, err := s.Generate("p1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	st, err := s.Status(gen.Token)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.Paired || st.Expired {
		t.Errorf("fresh token status = %+v", st)
	}
	if st.DeviceInfo != nil {
		t.Error("unpaired status leaked device info")
	}
}

func TestRevoke(t *testing.T) {
	s := testPairing(t)

	first, err := s.Generate("p1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	second, err := s.Generate("p1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := s.Redeem(first.Token, "", ""); err != nil {
		t.Fatalf("redeem: %v", err)
	}

	revoked, err := s.Revoke("p1")
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if revoked != 1 {
		t.Errorf("revoked = %d, want 1", revoked)
	}

	// The redeemed token still answers status polls.
	if st, err := s.Status(first.Token); err != nil || !st.Paired {
		t.Errorf("redeemed token status = %+v (%v)", st, err)
	}
	// The unredeemed one is gone.
	if _, err := s.Redeem(second.Token, "", ""); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("revoked token redeem: err = %v, want ErrNotFound", err)
	}
}

func TestVerifyDeviceJWTRejectsForgeries(t *testing.T) {
	s := testPairing(t)

	gen, err := s.Generate("p1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	res, err := s.Redeem(gen.Token, "", "")
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}

	other := NewService(s.DB, []byte("a-different-key"), "")
	if _, err := other.VerifyDeviceJWT(res.JWT); err == nil {
		t.Error("jwt signed with another key verified")
	}
	if _, err := s.VerifyDeviceJWT("not.a.jwt"); err == nil {
		t.Error("malformed jwt verified")
	}
}
