package registry

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"
	"time"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func newTestClient(t *testing.T, transport roundTripFunc, sleeps *[]time.Duration) *Client {
	t.Helper()
	client, err := NewClient(Options{
		APIKey:     "k",
		HTTPClient: &http.Client{Transport: transport},
		Sleep: func(d time.Duration) {
			if sleeps != nil {
				*sleeps = append(*sleeps, d)
			}
		},
	})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return client
}

func TestLookupSuccess(t *testing.T) {
	client := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		if got := r.URL.Query().Get("vrm"); got != "AB12CDE" {
			t.Fatalf("vrm = %q, want AB12CDE", got)
		}
		return jsonResponse(http.StatusOK, `{"make":"BMW","model":"M3","yearOfManufacture":"2019"}`), nil
	}, nil)

	identity, found, err := client.Lookup(context.Background(), "ab12 cde")
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if !found {
		t.Fatal("found = false, want true")
	}
	if identity.Make != "BMW" || identity.Model != "M3" || identity.Year != "2019" {
		t.Fatalf("unexpected identity: %+v", identity)
	}
}

func TestLookupServerErrorsBecomeNotFound(t *testing.T) {
	attempts := 0
	var sleeps []time.Duration
	client := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		attempts++
		return jsonResponse(http.StatusInternalServerError, `{}`), nil
	}, &sleeps)

	_, found, err := client.Lookup(context.Background(), "AB12CDE")
	if err != nil {
		t.Fatalf("Lookup returned error: %v (absence must be a soft outcome)", err)
	}
	if found {
		t.Fatal("found = true, want false")
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
	for _, d := range sleeps {
		if d < 1300*time.Millisecond {
			t.Fatalf("retry delay = %s, want >= 1.3s", d)
		}
	}
	if len(sleeps) != 2 {
		t.Fatalf("sleeps = %d, want 2 between 3 attempts", len(sleeps))
	}
}

func TestLookupMissingMakeRetriesThenSucceeds(t *testing.T) {
	attempts := 0
	client := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		attempts++
		if attempts < 3 {
			return jsonResponse(http.StatusOK, `{"model":"incomplete record"}`), nil
		}
		return jsonResponse(http.StatusOK, `{"make":"Audi","model":"RS6","yearOfManufacture":"2021"}`), nil
	}, nil)

	identity, found, err := client.Lookup(context.Background(), "XY99ZZZ")
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if !found || identity.Make != "Audi" {
		t.Fatalf("found=%v identity=%+v, want Audi record", found, identity)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestLookupRejectsEmptyPlate(t *testing.T) {
	client := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		t.Fatal("no request expected for empty plate")
		return nil, nil
	}, nil)

	if _, _, err := client.Lookup(context.Background(), "  !! "); err == nil {
		t.Fatal("expected error for empty plate")
	}
}

func TestNormalizePlate(t *testing.T) {
	cases := map[string]string{
		"ab12 cde":  "AB12CDE",
		" AB-12-CDE": "AB12CDE",
		"ab12cde":   "AB12CDE",
	}
	for input, want := range cases {
		if got := NormalizePlate(input); got != want {
			t.Fatalf("NormalizePlate(%q) = %q, want %q", input, got, want)
		}
	}
}
