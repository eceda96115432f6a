package models

import (
	"testing"
	"time"
)

func TestPairingTokenLifecycle(t *testing.T) {
	db := testDB(t)

	now := time.Now().UTC()
	token, err := InsertPairingToken(db, "profile-1", "a1b2c3d4", "ABC234", now.Add(5*time.Minute), now)
	if err != nil {
		t.Fatalf("insert pairing token: %v", err)
	}
	if token.ID == 0 {
		t.Error("id not assigned")
	}
	if token.IsExpired() {
		t.Error("fresh token reported expired")
	}
	if token.IsUsed() {
		t.Error("fresh token reported used")
	}

	t.Run("get by token", func(t *testing.T) {
		got, err := GetPairingToken(db, "a1b2c3d4")
		if err != nil {
			t.Fatalf("get pairing token: %v", err)
		}
		if got.ID != token.ID || got.ShortCode != "ABC234" {
			t.Errorf("got id %d code %q, want id %d code ABC234", got.ID, got.ShortCode, token.ID)
		}
	})

	t.Run("get by code", func(t *testing.T) {
		got, err := GetPairingTokenByCode(db, "ABC234")
		if err != nil {
			t.Fatalf("get pairing token by code: %v", err)
		}
		if got.Token != "a1b2c3d4" {
			t.Errorf("token = %q, want a1b2c3d4", got.Token)
		}
	})

	t.Run("get missing", func(t *testing.T) {
		if _, err := GetPairingToken(db, "nope"); err != ErrNotFound {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
		if _, err := GetPairingTokenByCode(db, "ZZZZ99"); err != ErrNotFound {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("collisions", func(t *testing.T) {
		if _, err := InsertPairingToken(db, "profile-2", "a1b2c3d4", "XYZ789", now.Add(5*time.Minute), now); err != ErrTokenCollision {
			t.Errorf("token collision err = %v, want ErrTokenCollision", err)
		}
		if _, err := InsertPairingToken(db, "profile-2", "ffffffff", "ABC234", now.Add(5*time.Minute), now); err != ErrTokenCollision {
			t.Errorf("code collision err = %v, want ErrTokenCollision", err)
		}
	})

	t.Run("redeem", func(t *testing.T) {
		if err := RedeemPairingToken(db, token.ID, `{"model":"iPhone 15"}`, time.Now().UTC()); err != nil {
			t.Fatalf("redeem pairing token: %v", err)
		}
		got, _ := GetPairingToken(db, "a1b2c3d4")
		if !got.IsUsed() {
			t.Error("redeemed token not marked used")
		}
		if !got.DeviceInfo.Valid || got.DeviceInfo.String != `{"model":"iPhone 15"}` {
			t.Errorf("device info = %v", got.DeviceInfo)
		}
	})

	t.Run("redeem twice", func(t *testing.T) {
		if err := RedeemPairingToken(db, token.ID, `{}`, time.Now().UTC()); err != ErrTokenUsed {
			t.Errorf("err = %v, want ErrTokenUsed", err)
		}
	})
}

func TestPairingTokenExpiry(t *testing.T) {
	db := testDB(t)

	now := time.Now().UTC()
	token, err := InsertPairingToken(db, "profile-1", "deadbeef", "EXP234", now.Add(-time.Minute), now.Add(-6*time.Minute))
	if err != nil {
		t.Fatalf("insert pairing token: %v", err)
	}
	if !token.IsExpired() {
		t.Error("past expiry not reported")
	}

	got, _ := GetPairingToken(db, "deadbeef")
	if !got.IsExpired() {
		t.Error("scanned token not reported expired")
	}
}

func TestCountRecentPairingTokens(t *testing.T) {
	db := testDB(t)

	now := time.Now().UTC()
	_, _ = InsertPairingToken(db, "profile-1", "t1", "AAA111", now.Add(5*time.Minute), now)
	_, _ = InsertPairingToken(db, "profile-1", "t2", "BBB222", now.Add(5*time.Minute), now.Add(-10*time.Minute))
	_, _ = InsertPairingToken(db, "profile-1", "t3", "CCC333", now.Add(5*time.Minute), now.Add(-2*time.Hour))
	_, _ = InsertPairingToken(db, "profile-2", "t4", "DDD444", now.Add(5*time.Minute), now)

	count, err := CountRecentPairingTokens(db, "profile-1", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("count recent: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

func TestDeleteExpiredPairingTokens(t *testing.T) {
	db := testDB(t)

	now := time.Now().UTC()
	_, _ = InsertPairingToken(db, "profile-1", "old", "OLD111", now.Add(-time.Hour), now.Add(-65*time.Minute))
	live, _ := InsertPairingToken(db, "profile-1", "live", "LIV111", now.Add(5*time.Minute), now)

	n, err := DeleteExpiredPairingTokens(db, now)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
	if _, err := GetPairingToken(db, "old"); err != ErrNotFound {
		t.Errorf("expired token survived: err = %v", err)
	}
	if _, err := GetPairingToken(db, live.Token); err != nil {
		t.Errorf("live token removed: %v", err)
	}
}

func TestDeleteUnusedPairingTokens(t *testing.T) {
	db := testDB(t)

	now := time.Now().UTC()
	_, _ = InsertPairingToken(db, "profile-1", "u1", "UUU111", now.Add(5*time.Minute), now)
	_, _ = InsertPairingToken(db, "profile-1", "u2", "UUU222", now.Add(5*time.Minute), now)
	paired, _ := InsertPairingToken(db, "profile-1", "u3", "UUU333", now.Add(5*time.Minute), now)
	_ = RedeemPairingToken(db, paired.ID, `{}`, now)

	n, err := DeleteUnusedPairingTokens(db, "profile-1")
	if err != nil {
		t.Fatalf("delete unused: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted = %d, want 2", n)
	}

	// The redeemed token stays so pairing status remains queryable.
	if _, err := GetPairingToken(db, "u3"); err != nil {
		t.Errorf("redeemed token removed: %v", err)
	}
}
