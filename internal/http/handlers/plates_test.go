package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"posterforge/internal/domain"
)

type scriptedRegistry struct {
	identity domain.VehicleIdentity
	found    bool
	err      error
	calls    int
}

func (s *scriptedRegistry) Lookup(context.Context, string) (domain.VehicleIdentity, bool, error) {
	s.calls++
	return s.identity, s.found, s.err
}

func TestPlateLookup_ReturnsIdentity(t *testing.T) {
	app := newTestApp(&stubSQL{queryRow: debitRow(2)})
	app.Registry = &scriptedRegistry{
		identity: domain.VehicleIdentity{Make: "Mazda", Model: "MX-5", Year: "2019"},
		found:    true,
	}

	rr := httptest.NewRecorder()
	app.PlateLookup(rr, authedRequest(t, "POST", "/v1/plates/lookup", "user-1", map[string]string{"plate": "AB12CDE"}))

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d, want 200", rr.Code)
	}
	var payload plateLookupResponse
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Make != "Mazda" || payload.Model != "MX-5" || payload.Year != "2019" {
		t.Fatalf("unexpected identity: %+v", payload)
	}
	if payload.Status != "" {
		t.Fatalf("hit must not carry a status, got %q", payload.Status)
	}
}

func TestPlateLookup_MissIsAStatusNotAnError(t *testing.T) {
	app := newTestApp(&stubSQL{queryRow: debitRow(2)})
	app.Registry = &scriptedRegistry{found: false}

	rr := httptest.NewRecorder()
	app.PlateLookup(rr, authedRequest(t, "POST", "/v1/plates/lookup", "user-1", map[string]string{"plate": "ZZ99ZZZ"}))

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d, want 200", rr.Code)
	}
	var payload plateLookupResponse
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Status != "vehicle_not_found" {
		t.Fatalf("expected vehicle_not_found, got %q", payload.Status)
	}
	if payload.StatusMessage == "" {
		t.Fatal("miss must carry a user-facing message")
	}
}

func TestPlateLookup_ExhaustedCreditBlocksLookup(t *testing.T) {
	reg := &scriptedRegistry{found: true}
	app := newTestApp(&stubSQL{queryRow: debitRow(-1)})
	app.Registry = reg

	rr := httptest.NewRecorder()
	app.PlateLookup(rr, authedRequest(t, "POST", "/v1/plates/lookup", "user-1", map[string]string{"plate": "AB12CDE"}))

	if rr.Code != http.StatusForbidden {
		t.Fatalf("unexpected status: got %d, want 403", rr.Code)
	}
	if reg.calls != 0 {
		t.Fatalf("registry must not be called on exhausted credit, got %d calls", reg.calls)
	}
}

func TestPlateLookup_RequiresPlate(t *testing.T) {
	app := newTestApp(&stubSQL{})
	app.Registry = &scriptedRegistry{}

	rr := httptest.NewRecorder()
	app.PlateLookup(rr, authedRequest(t, "POST", "/v1/plates/lookup", "user-1", map[string]string{"plate": "  "}))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d, want 400", rr.Code)
	}
}
