package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
)

type generateBody struct {
	Token            string `json:"token"`
	ShortCode        string `json:"short_code"`
	QRData           string `json:"qr_data"`
	ExpiresInSeconds int    `json:"expires_in_seconds"`
}

// generateToken mints a pairing token for the given profile.
func generateToken(t testing.TB, h http.Handler, profile string) generateBody {
	t.Helper()

	req := doJSONRequest(t, "POST", "/pair/generate", nil)
	req.Header.Set("X-Profile-ID", profile)
	rr := record(h, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("generate: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var body generateBody
	decodeBody(t, rr, &body)
	if body.Token == "" || body.ShortCode == "" {
		t.Fatalf("generate response incomplete: %s", rr.Body.String())
	}
	return body
}

func TestPair_FullFlow(t *testing.T) {
	h, _ := testRouter(t)

	gen := generateToken(t, h, "alice")

	if len(gen.ShortCode) != 6 {
		t.Errorf("short_code = %q, want 6 characters", gen.ShortCode)
	}
	if !strings.Contains(gen.QRData, "amakaflow_pairing") {
		t.Errorf("qr_data = %q, want pairing payload", gen.QRData)
	}
	if gen.ExpiresInSeconds != 300 {
		t.Errorf("expires_in_seconds = %d, want 300", gen.ExpiresInSeconds)
	}

	// Not redeemed yet.
	rr := doJSON(t, h, "GET", "/pair/status/"+gen.Token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: expected 200, got %d", rr.Code)
	}
	var status struct {
		Paired     bool            `json:"paired"`
		Expired    bool            `json:"expired"`
		DeviceInfo json.RawMessage `json:"device_info"`
	}
	decodeBody(t, rr, &status)
	if status.Paired || status.Expired {
		t.Errorf("fresh token status = %+v, want unpaired and unexpired", status)
	}

	// The device redeems the token and gets a JWT for alice.
	rr = doJSON(t, h, "POST", "/pair/device", map[string]any{
		"token":       gen.Token,
		"device_info": map[string]string{"model": "iPhone15,2"},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("redeem: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var redeemed struct {
		JWT     string `json:"jwt"`
		Profile struct {
			ID string `json:"id"`
		} `json:"profile"`
	}
	decodeBody(t, rr, &redeemed)
	if redeemed.JWT == "" {
		t.Fatal("redeem should return a device JWT")
	}
	if redeemed.Profile.ID != "alice" {
		t.Errorf("profile.id = %q, want alice", redeemed.Profile.ID)
	}

	// The poller now sees the pairing and the device's self-description.
	rr = doJSON(t, h, "GET", "/pair/status/"+gen.Token, nil)
	decodeBody(t, rr, &status)
	if !status.Paired {
		t.Error("status should report paired after redemption")
	}
	if !strings.Contains(string(status.DeviceInfo), "iPhone15,2") {
		t.Errorf("device_info = %s, want the device model", status.DeviceInfo)
	}

	// Exactly one redeem wins.
	rr = doJSON(t, h, "POST", "/pair/device", map[string]any{"token": gen.Token})
	if rr.Code != http.StatusConflict {
		t.Errorf("second redeem: expected 409, got %d", rr.Code)
	}

	// The minted JWT resolves to alice's profile on other endpoints.
	req := doJSONRequest(t, "POST", "/mappings/add", map[string]any{
		"exercise_name": "device move",
		"garmin_name":   "Burpee",
	})
	req.Header.Set("Authorization", "Bearer "+redeemed.JWT)
	rr = record(h, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("add mapping via JWT: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	req = doJSONRequest(t, "GET", "/mappings/lookup/device%20move", nil)
	req.Header.Set("X-Profile-ID", "alice")
	rr = record(h, req)
	var lookup struct {
		Exists bool `json:"exists"`
	}
	decodeBody(t, rr, &lookup)
	if !lookup.Exists {
		t.Error("mapping added via device JWT should land on alice's profile")
	}
}

func TestPair_Device_ShortCode(t *testing.T) {
	h, _ := testRouter(t)

	gen := generateToken(t, h, "bob")

	// Short codes are typed by hand, so case does not matter.
	rr := doJSON(t, h, "POST", "/pair/device", map[string]any{
		"short_code": strings.ToLower(gen.ShortCode),
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var redeemed struct {
		Profile struct {
			ID string `json:"id"`
		} `json:"profile"`
	}
	decodeBody(t, rr, &redeemed)
	if redeemed.Profile.ID != "bob" {
		t.Errorf("profile.id = %q, want bob", redeemed.Profile.ID)
	}
}

func TestPair_Device_Validation(t *testing.T) {
	h, _ := testRouter(t)

	rr := doJSON(t, h, "POST", "/pair/device", map[string]any{})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("no credential: expected 422, got %d", rr.Code)
	}

	rr = doJSON(t, h, "POST", "/pair/device", map[string]any{"token": "deadbeef"})
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown token: expected 404, got %d", rr.Code)
	}
}

func TestPair_Status_Unknown(t *testing.T) {
	h, _ := testRouter(t)

	rr := doJSON(t, h, "GET", "/pair/status/deadbeef", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
}

func TestPair_Revoke(t *testing.T) {
	h, _ := testRouter(t)

	gen := generateToken(t, h, "carol")
	generateToken(t, h, "carol")

	// Redeem the first; revoke should only remove the unredeemed one.
	rr := doJSON(t, h, "POST", "/pair/device", map[string]any{"token": gen.Token})
	if rr.Code != http.StatusOK {
		t.Fatalf("redeem: expected 200, got %d", rr.Code)
	}

	req := doJSONRequest(t, "DELETE", "/pair/revoke", nil)
	req.Header.Set("X-Profile-ID", "carol")
	rr = record(h, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("revoke: expected 200, got %d", rr.Code)
	}

	var body struct {
		Revoked int64 `json:"revoked"`
	}
	decodeBody(t, rr, &body)
	if body.Revoked != 1 {
		t.Errorf("revoked = %d, want 1", body.Revoked)
	}

	// The redeemed token's status is still queryable.
	rr = doJSON(t, h, "GET", "/pair/status/"+gen.Token, nil)
	if rr.Code != http.StatusOK {
		t.Errorf("redeemed token status: expected 200, got %d", rr.Code)
	}
}

func TestPair_InvalidBearerRejected(t *testing.T) {
	h, _ := testRouter(t)

	req := doJSONRequest(t, "GET", "/mappings", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rr := record(h, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}

	var body struct {
		Error string `json:"error"`
	}
	decodeBody(t, rr, &body)
	if !strings.Contains(body.Error, "device token") {
		t.Errorf("error = %q, want device token message", body.Error)
	}
}
